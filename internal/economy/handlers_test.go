package economy

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sudo-init-do/worldbank/internal/audit"
)

// fakeRegistry mirrors the store's lifecycle semantics in memory: inserts
// start pending, transitions only leave pending, removals report misses.
type fakeRegistry struct {
	economies map[string]*Economy
}

func newFakeRegistry() *fakeRegistry {
	return &fakeRegistry{economies: map[string]*Economy{}}
}

func (f *fakeRegistry) Register(_ context.Context, e *Economy) (*Economy, error) {
	if _, ok := f.economies[e.ID]; ok {
		return nil, fmt.Errorf("%w: %s", ErrDuplicate, e.ID)
	}
	stored := *e
	stored.Status = StatusPending
	stored.AppliedAt = time.Now()
	f.economies[e.ID] = &stored
	return &stored, nil
}

func (f *fakeRegistry) Lookup(_ context.Context, id string) (*Economy, error) {
	e, ok := f.economies[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return e, nil
}

func (f *fakeRegistry) List(_ context.Context, filter Status) ([]Economy, error) {
	var out []Economy
	for _, e := range f.economies {
		if filter == "" || e.Status == filter {
			out = append(out, *e)
		}
	}
	return out, nil
}

func (f *fakeRegistry) Transition(_ context.Context, id string, newStatus Status, actingOfficer string) (*Economy, error) {
	e, ok := f.economies[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if e.Status != StatusPending {
		return nil, fmt.Errorf("%w: %s", ErrInvalidTransition, id)
	}
	e.Status = newStatus
	if newStatus == StatusApproved {
		now := time.Now()
		e.ApprovedBy = &actingOfficer
		e.ApprovedAt = &now
	}
	return e, nil
}

func (f *fakeRegistry) Remove(_ context.Context, id string) error {
	if _, ok := f.economies[id]; !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	delete(f.economies, id)
	return nil
}

type fakeAudit struct {
	actions []string
}

func (f *fakeAudit) TransferRecord(audit.TransferRecord) {}

func (f *fakeAudit) AuditEntry(action, _, _, _ string) {
	f.actions = append(f.actions, action)
}

func (f *fakeAudit) hasAction(action string) bool {
	for _, a := range f.actions {
		if a == action {
			return true
		}
	}
	return false
}

type fakeValidator struct{ err error }

func (f *fakeValidator) ValidateAccess(context.Context, string) error { return f.err }

type fakeGate struct{ authorized bool }

func (f *fakeGate) IsAuthorized(context.Context, string) (bool, error) { return f.authorized, nil }

func testHandler() (*Handler, *fakeRegistry, *fakeAudit) {
	reg := newFakeRegistry()
	aud := &fakeAudit{}
	h := &Handler{
		Store:  reg,
		Ledger: &fakeValidator{},
		Gate:   &fakeGate{},
		Audit:  aud,
		Rates: RateBounds{
			Min: decimal.NewFromFloat(0.01),
			Max: decimal.NewFromInt(10000),
		},
	}
	return h, reg, aud
}

func doRequest(t *testing.T, fn echo.HandlerFunc, method, target, body, userID, paramID string) *httptest.ResponseRecorder {
	t.Helper()

	e := echo.New()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.Set("user_id", userID)
	if paramID != "" {
		c.SetParamNames("id")
		c.SetParamValues(paramID)
	}

	require.NoError(t, fn(c))
	return rec
}

func seedPending(reg *fakeRegistry, id, appliedBy string) {
	reg.economies[id] = &Economy{
		ID:           id,
		Name:         "Alphaville",
		CurrencyName: "Alphacoin",
		RateUSD:      decimal.NewFromInt(10),
		Status:       StatusPending,
		AppliedBy:    appliedBy,
		AppliedAt:    time.Now(),
	}
}

func TestApproveOnlyOnce(t *testing.T) {
	t.Parallel()

	h, reg, aud := testHandler()
	seedPending(reg, "econ-a", "user-1")

	rec := doRequest(t, h.Approve, http.MethodPost, "/economies/econ-a/approve", "", "officer-1", "econ-a")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var approved Economy
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &approved))
	assert.Equal(t, StatusApproved, approved.Status)
	require.NotNil(t, approved.ApprovedBy)
	assert.Equal(t, "officer-1", *approved.ApprovedBy)
	assert.True(t, aud.hasAction("economy_approved"))

	// The application already left pending: a repeat approval conflicts
	// and must not disturb the recorded decision.
	rec = doRequest(t, h.Approve, http.MethodPost, "/economies/econ-a/approve", "", "officer-2", "econ-a")
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, StatusApproved, reg.economies["econ-a"].Status)
	assert.Equal(t, "officer-1", *reg.economies["econ-a"].ApprovedBy)
}

func TestRejectAfterApproveConflicts(t *testing.T) {
	t.Parallel()

	h, reg, _ := testHandler()
	seedPending(reg, "econ-a", "user-1")

	rec := doRequest(t, h.Approve, http.MethodPost, "/economies/econ-a/approve", "", "officer-1", "econ-a")
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doRequest(t, h.Reject, http.MethodPost, "/economies/econ-a/reject", "", "officer-1", "econ-a")
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, StatusApproved, reg.economies["econ-a"].Status)
}

func TestTransitionUnknownEconomy(t *testing.T) {
	t.Parallel()

	h, _, _ := testHandler()

	rec := doRequest(t, h.Approve, http.MethodPost, "/economies/ghost/approve", "", "officer-1", "ghost")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRegisterDuplicate(t *testing.T) {
	t.Parallel()

	h, reg, _ := testHandler()
	seedPending(reg, "econ-a", "user-1")

	body := `{"id":"econ-a","name":"Alphaville","currency_name":"Alphacoin","currency_symbol":"A$","rate_usd":10}`
	rec := doRequest(t, h.Register, http.MethodPost, "/economies", body, "user-2", "")
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestRegisterRateOutOfBounds(t *testing.T) {
	t.Parallel()

	h, reg, _ := testHandler()

	body := `{"id":"econ-a","name":"Alphaville","currency_name":"Alphacoin","currency_symbol":"A$","rate_usd":10001}`
	rec := doRequest(t, h.Register, http.MethodPost, "/economies", body, "user-1", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Empty(t, reg.economies)
}

func TestRemoveUnknownEconomy(t *testing.T) {
	t.Parallel()

	h, _, _ := testHandler()

	rec := doRequest(t, h.Remove, http.MethodDelete, "/economies/ghost", "", "user-1", "ghost")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRemoveByApplicantAndByOfficer(t *testing.T) {
	t.Parallel()

	h, reg, aud := testHandler()
	seedPending(reg, "econ-a", "user-1")

	// A stranger who is not an officer cannot remove it.
	rec := doRequest(t, h.Remove, http.MethodDelete, "/economies/econ-a", "", "user-2", "econ-a")
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Contains(t, reg.economies, "econ-a")

	// The applicant withdraws their own application.
	rec = doRequest(t, h.Remove, http.MethodDelete, "/economies/econ-a", "", "user-1", "econ-a")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotContains(t, reg.economies, "econ-a")
	assert.True(t, aud.hasAction("economy_withdraw"))

	// An officer kicks someone else's economy.
	seedPending(reg, "econ-b", "user-1")
	h.Gate = &fakeGate{authorized: true}
	rec = doRequest(t, h.Remove, http.MethodDelete, "/economies/econ-b", "", "officer-1", "econ-b")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, aud.hasAction("economy_kicked"))
}
