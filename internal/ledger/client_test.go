package ledger

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return New(srv.URL, "test-token", 0, 2), srv
}

func writeBalance(w http.ResponseWriter, cash, bank float64) {
	_ = json.NewEncoder(w).Encode(map[string]float64{
		"cash": cash, "bank": bank, "total": cash + bank,
	})
}

func TestGetBalance(t *testing.T) {
	t.Parallel()

	var gotPath, gotAuth string
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		writeBalance(w, 150.5, 20)
	})

	b, err := c.GetBalance(context.Background(), "econ-1", "user-1")
	require.NoError(t, err)
	assert.Equal(t, "/guilds/econ-1/users/user-1", gotPath)
	assert.Equal(t, "test-token", gotAuth)
	assert.True(t, b.Cash.Equal(decimal.RequireFromString("150.5")))
	assert.True(t, b.Bank.Equal(decimal.NewFromInt(20)))
}

func TestGetBalanceThrottledThenOK(t *testing.T) {
	t.Parallel()

	var calls int32
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.Header().Set("Retry-After", "0")
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		writeBalance(w, 10, 0)
	})

	b, err := c.GetBalance(context.Background(), "e", "u")
	require.NoError(t, err)
	assert.EqualValues(t, 2, atomic.LoadInt32(&calls))
	assert.True(t, b.Cash.Equal(decimal.NewFromInt(10)))
}

func TestGetBalanceRetriesExhausted(t *testing.T) {
	t.Parallel()

	var calls int32
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.Header().Set("Retry-After", "0")
		w.WriteHeader(http.StatusTooManyRequests)
	})

	_, err := c.GetBalance(context.Background(), "e", "u")
	assert.ErrorIs(t, err, ErrUnavailable)
	// maxRetries=2 means the original attempt plus two retries.
	assert.EqualValues(t, 3, atomic.LoadInt32(&calls))
}

func TestTerminalStatusesDoNotRetry(t *testing.T) {
	t.Parallel()

	tests := []struct {
		status int
		want   error
	}{
		{http.StatusNotFound, ErrAccountNotFound},
		{http.StatusForbidden, ErrForbidden},
		{http.StatusInternalServerError, ErrUnavailable},
	}

	for _, tt := range tests {
		var calls int32
		c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			atomic.AddInt32(&calls, 1)
			w.WriteHeader(tt.status)
		})

		_, err := c.GetBalance(context.Background(), "e", "u")
		assert.ErrorIs(t, err, tt.want, "status %d", tt.status)
		assert.EqualValues(t, 1, atomic.LoadInt32(&calls), "status %d must not retry", tt.status)
	}
}

func TestSetBalanceRoundsAtWrite(t *testing.T) {
	t.Parallel()

	var body map[string]string
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPatch, r.Method)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		writeBalance(w, 12.35, 0)
	})

	cash := decimal.RequireFromString("12.3456")
	_, err := c.SetBalance(context.Background(), "e", "u", &cash, nil, "test write")
	require.NoError(t, err)

	assert.Equal(t, "12.35", body["cash"])
	assert.Equal(t, "test write", body["reason"])
	_, hasBank := body["bank"]
	assert.False(t, hasBank, "nil bank must stay untouched")
}

func TestModifyBalance(t *testing.T) {
	t.Parallel()

	var patched map[string]string
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			writeBalance(w, 100, 50)
		case http.MethodPatch:
			require.NoError(t, json.NewDecoder(r.Body).Decode(&patched))
			writeBalance(w, 75, 50)
		}
	})

	delta := decimal.NewFromInt(-25)
	b, err := c.ModifyBalance(context.Background(), "e", "u", &delta, nil, "debit")
	require.NoError(t, err)

	assert.Equal(t, "75", patched["cash"])
	assert.Equal(t, "50", patched["bank"])
	assert.True(t, b.Cash.Equal(decimal.NewFromInt(75)))
}

func TestModifyBalanceNegativeResult(t *testing.T) {
	t.Parallel()

	var patches int32
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPatch {
			atomic.AddInt32(&patches, 1)
		}
		writeBalance(w, 10, 0)
	})

	delta := decimal.NewFromInt(-50)
	_, err := c.ModifyBalance(context.Background(), "e", "u", &delta, nil, "debit")
	assert.ErrorIs(t, err, ErrNegativeResult)
	assert.EqualValues(t, 0, atomic.LoadInt32(&patches), "no write may follow a negative result")
}

func TestValidateAccess(t *testing.T) {
	t.Parallel()

	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/guilds/known" {
			writeBalance(w, 0, 0)
			return
		}
		w.WriteHeader(http.StatusForbidden)
	})

	assert.NoError(t, c.ValidateAccess(context.Background(), "known"))
	assert.ErrorIs(t, c.ValidateAccess(context.Background(), "unknown"), ErrForbidden)
}

func TestPaceReleasesSlotOnCancellation(t *testing.T) {
	t.Parallel()

	c := New("http://ledger.invalid", "test-token", time.Hour, 0)

	// The first caller takes the immediate slot and pushes the next one out.
	require.NoError(t, c.pace(context.Background()))
	before := c.next

	// A caller cancelled mid-wait hands its reservation back.
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	require.Error(t, c.pace(ctx))
	assert.True(t, c.next.Equal(before), "cancelled caller must release its slot")

	// Cancellation before reserving never touches the schedule.
	done, stop := context.WithCancel(context.Background())
	stop()
	require.Error(t, c.pace(done))
	assert.True(t, c.next.Equal(before))
}
