// Package ledger wraps the remote per-account balance API. The remote side
// offers no multi-record transactions and throttles aggressively, so the
// client owns pacing, bounded retry and failure classification; everything
// above it works with plain errors.
package ledger

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/sudo-init-do/worldbank/internal/logger"
)

// defaultRetryAfter is used when a throttling response carries no usable
// Retry-After header.
const defaultRetryAfter = 60 * time.Second

// Balance is a point-in-time snapshot of one account.
type Balance struct {
	Cash  decimal.Decimal `json:"cash"`
	Bank  decimal.Decimal `json:"bank"`
	Total decimal.Decimal `json:"total"`
}

// Client talks to the remote balance ledger. One shared instance serves all
// callers; the pacing slot keeps the whole process under the remote rate
// limit regardless of who is calling.
type Client struct {
	baseURL    string
	token      string
	apiDelay   time.Duration
	maxRetries int
	httpc      *http.Client

	mu   sync.Mutex
	next time.Time // earliest moment the next request may go out
}

// New builds a Client. apiDelay is the minimum gap between any two requests;
// maxRetries bounds how many throttling responses a single call will absorb
// before giving up with ErrUnavailable.
func New(baseURL, token string, apiDelay time.Duration, maxRetries int) *Client {
	return &Client{
		baseURL:    baseURL,
		token:      token,
		apiDelay:   apiDelay,
		maxRetries: maxRetries,
		httpc:      &http.Client{Timeout: 30 * time.Second},
	}
}

// GetBalance fetches the current snapshot for one account.
func (c *Client) GetBalance(ctx context.Context, economyID, userID string) (*Balance, error) {
	return c.do(ctx, http.MethodGet, fmt.Sprintf("/guilds/%s/users/%s", economyID, userID), nil)
}

// SetBalance writes absolute wallet values. Nil fields are left untouched by
// the remote side. Values are rounded to two decimal places here because this
// is the ledger-write boundary.
func (c *Client) SetBalance(ctx context.Context, economyID, userID string, cash, bank *decimal.Decimal, reason string) (*Balance, error) {
	body := map[string]string{"reason": reason}
	if cash != nil {
		body["cash"] = cash.Round(2).String()
	}
	if bank != nil {
		body["bank"] = bank.Round(2).String()
	}
	return c.do(ctx, http.MethodPatch, fmt.Sprintf("/guilds/%s/users/%s", economyID, userID), body)
}

// ModifyBalance applies deltas on top of the current snapshot and fails with
// ErrNegativeResult before writing if any wallet would go below zero.
//
// This is a read-then-write pair: the remote API has no atomic increment, so
// a concurrent writer between the read and the write causes a lost update.
// Callers must serialize per (economyID, userID); see transfer.KeyedMutex.
func (c *Client) ModifyBalance(ctx context.Context, economyID, userID string, cashDelta, bankDelta *decimal.Decimal, reason string) (*Balance, error) {
	current, err := c.GetBalance(ctx, economyID, userID)
	if err != nil {
		return nil, err
	}

	newCash := current.Cash
	newBank := current.Bank
	if cashDelta != nil {
		newCash = newCash.Add(*cashDelta)
	}
	if bankDelta != nil {
		newBank = newBank.Add(*bankDelta)
	}

	if newCash.Sign() < 0 || newBank.Sign() < 0 {
		return nil, fmt.Errorf("%w: cash=%s bank=%s", ErrNegativeResult, newCash, newBank)
	}

	return c.SetBalance(ctx, economyID, userID, &newCash, &newBank, reason)
}

// ValidateAccess probes whether the ledger will serve us for this economy.
// Used during registration before an application is accepted.
func (c *Client) ValidateAccess(ctx context.Context, economyID string) error {
	_, err := c.do(ctx, http.MethodGet, fmt.Sprintf("/guilds/%s", economyID), nil)
	return err
}

// do issues one logical request: waits for its pacing slot, sends, and on
// throttling sleeps the server-specified time and retries the same request,
// up to maxRetries. 404 and 403 fail immediately.
func (c *Client) do(ctx context.Context, method, path string, body any) (*Balance, error) {
	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encode request: %w", err)
		}
	}

	url := c.baseURL + path

	for attempt := 0; ; attempt++ {
		if err := c.pace(ctx); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
		}

		var reader io.Reader
		if payload != nil {
			reader = bytes.NewReader(payload)
		}
		req, err := http.NewRequestWithContext(ctx, method, url, reader)
		if err != nil {
			return nil, fmt.Errorf("%w: build request: %v", ErrUnavailable, err)
		}
		req.Header.Set("Authorization", c.token)
		req.Header.Set("Accept", "application/json")
		if payload != nil {
			req.Header.Set("Content-Type", "application/json")
		}

		resp, err := c.httpc.Do(req)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
		}

		switch resp.StatusCode {
		case http.StatusOK:
			defer resp.Body.Close()
			var b Balance
			if err := json.NewDecoder(resp.Body).Decode(&b); err != nil {
				return nil, fmt.Errorf("%w: decode response: %v", ErrUnavailable, err)
			}
			return &b, nil

		case http.StatusTooManyRequests:
			wait := retryAfter(resp)
			resp.Body.Close()
			if attempt >= c.maxRetries {
				logger.L().Warnw("ledger retries exhausted",
					"method", method, "path", path, "attempts", attempt+1)
				return nil, fmt.Errorf("%w: throttled, %d retries exhausted", ErrUnavailable, c.maxRetries)
			}
			logger.L().Infow("ledger throttled, backing off",
				"method", method, "path", path, "wait", wait, "attempt", attempt+1)
			if err := sleep(ctx, wait); err != nil {
				return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
			}

		case http.StatusNotFound:
			resp.Body.Close()
			return nil, fmt.Errorf("%w: %s", ErrAccountNotFound, path)

		case http.StatusForbidden:
			resp.Body.Close()
			return nil, fmt.Errorf("%w: %s", ErrForbidden, path)

		default:
			msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
			resp.Body.Close()
			return nil, fmt.Errorf("%w: status=%d body=%s", ErrUnavailable, resp.StatusCode, msg)
		}
	}
}

// pace reserves the next send slot and sleeps until it arrives, keeping a
// fixed minimum gap between requests across all goroutines. A caller
// cancelled mid-wait gives its reservation back so later callers don't
// inherit the dead slot's delay.
func (c *Client) pace(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	c.mu.Lock()
	now := time.Now()
	slot := c.next
	if slot.Before(now) {
		slot = now
	}
	c.next = slot.Add(c.apiDelay)
	c.mu.Unlock()

	if err := sleep(ctx, slot.Sub(now)); err != nil {
		c.mu.Lock()
		c.next = c.next.Add(-c.apiDelay)
		c.mu.Unlock()
		return err
	}
	return nil
}

func retryAfter(resp *http.Response) time.Duration {
	secs, err := strconv.Atoi(resp.Header.Get("Retry-After"))
	if err != nil || secs < 0 {
		return defaultRetryAfter
	}
	return time.Duration(secs) * time.Second
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
