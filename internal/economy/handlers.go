package economy

import (
	"context"
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"

	"github.com/sudo-init-do/worldbank/internal/audit"
)

const (
	maxCurrencyNameLen   = 50
	maxCurrencySymbolLen = 10
)

// AccessValidator probes the remote ledger for API access to an economy
// before an application is accepted. Implemented by the ledger client.
type AccessValidator interface {
	ValidateAccess(ctx context.Context, economyID string) error
}

// AuthGate answers whether a user is an officer or the owner. Implemented
// by the officer store.
type AuthGate interface {
	IsAuthorized(ctx context.Context, userID string) (bool, error)
}

// RateBounds are the configured limits on declared exchange rates.
type RateBounds struct {
	Min decimal.Decimal
	Max decimal.Decimal
}

// Registry is the store surface the handlers depend on. *Store implements it.
type Registry interface {
	Register(ctx context.Context, e *Economy) (*Economy, error)
	Lookup(ctx context.Context, id string) (*Economy, error)
	List(ctx context.Context, filter Status) ([]Economy, error)
	Transition(ctx context.Context, id string, newStatus Status, actingOfficer string) (*Economy, error)
	Remove(ctx context.Context, id string) error
}

// Handler exposes the registry over HTTP.
type Handler struct {
	Store  Registry
	Ledger AccessValidator
	Gate   AuthGate
	Audit  audit.Recorder
	Rates  RateBounds
}

type registerRequest struct {
	ID             string          `json:"id"`
	Name           string          `json:"name"`
	CurrencyName   string          `json:"currency_name"`
	CurrencySymbol string          `json:"currency_symbol"`
	RateUSD        decimal.Decimal `json:"rate_usd"`
	Note           string          `json:"note"`
}

// Register accepts a new economy application with status pending.
func (h *Handler) Register(c echo.Context) error {
	actingID, ok := c.Get("user_id").(string)
	if !ok || actingID == "" {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}

	var req registerRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}

	switch {
	case req.ID == "" || req.Name == "":
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "id and name are required"})
	case req.CurrencyName == "" || len(req.CurrencyName) > maxCurrencyNameLen:
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "currency_name must be 1-50 characters"})
	case req.CurrencySymbol == "" || len(req.CurrencySymbol) > maxCurrencySymbolLen:
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "currency_symbol must be 1-10 characters"})
	case req.RateUSD.LessThan(h.Rates.Min) || req.RateUSD.GreaterThan(h.Rates.Max):
		return c.JSON(http.StatusBadRequest, echo.Map{
			"error": "rate_usd must be between " + h.Rates.Min.String() + " and " + h.Rates.Max.String(),
		})
	}

	// The ledger has to be reachable for this economy before the
	// application is worth an officer's time.
	if err := h.Ledger.ValidateAccess(c.Request().Context(), req.ID); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{
			"error": "ledger API access is not configured for this economy",
		})
	}

	created, err := h.Store.Register(c.Request().Context(), &Economy{
		ID:             req.ID,
		Name:           req.Name,
		CurrencyName:   req.CurrencyName,
		CurrencySymbol: req.CurrencySymbol,
		RateUSD:        req.RateUSD,
		Note:           req.Note,
		AppliedBy:      actingID,
	})
	if err != nil {
		if errors.Is(err, ErrDuplicate) {
			return c.JSON(http.StatusConflict, echo.Map{"error": "economy already registered"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "could not submit application"})
	}

	h.Audit.AuditEntry("economy_optin", actingID, req.ID,
		"currency: "+req.CurrencyName+", rate: "+req.RateUSD.String())
	return c.JSON(http.StatusCreated, created)
}

// List returns economies, optionally filtered by ?status=.
func (h *Handler) List(c echo.Context) error {
	filter := Status(c.QueryParam("status"))
	if filter != "" && !filter.Valid() {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "status must be pending, approved or rejected"})
	}

	economies, err := h.Store.List(c.Request().Context(), filter)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "could not list economies"})
	}
	if economies == nil {
		economies = []Economy{}
	}
	return c.JSON(http.StatusOK, economies)
}

// Lookup returns one economy by id.
func (h *Handler) Lookup(c echo.Context) error {
	e, err := h.Store.Lookup(c.Request().Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "economy not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "could not fetch economy"})
	}
	return c.JSON(http.StatusOK, e)
}

// Approve moves a pending application to approved. Officer only.
func (h *Handler) Approve(c echo.Context) error {
	return h.transition(c, StatusApproved, "economy_approved")
}

// Reject moves a pending application to rejected. Officer only.
func (h *Handler) Reject(c echo.Context) error {
	return h.transition(c, StatusRejected, "economy_rejected")
}

func (h *Handler) transition(c echo.Context, target Status, auditAction string) error {
	actingID, _ := c.Get("user_id").(string)
	id := c.Param("id")

	e, err := h.Store.Transition(c.Request().Context(), id, target, actingID)
	if err != nil {
		switch {
		case errors.Is(err, ErrNotFound):
			return c.JSON(http.StatusNotFound, echo.Map{"error": "economy not found"})
		case errors.Is(err, ErrInvalidTransition):
			return c.JSON(http.StatusConflict, echo.Map{"error": "application is no longer pending"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "could not update application"})
	}

	h.Audit.AuditEntry(auditAction, actingID, id, "")
	return c.JSON(http.StatusOK, e)
}

// Remove deletes an economy. The applicant may withdraw their own economy;
// officers may kick any economy, optionally with a ?reason=.
func (h *Handler) Remove(c echo.Context) error {
	actingID, ok := c.Get("user_id").(string)
	if !ok || actingID == "" {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	id := c.Param("id")

	e, err := h.Store.Lookup(c.Request().Context(), id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "economy not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "could not fetch economy"})
	}

	action := "economy_withdraw"
	if e.AppliedBy != actingID {
		authorized, err := h.Gate.IsAuthorized(c.Request().Context(), actingID)
		if err != nil {
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "authorization check failed"})
		}
		if !authorized {
			return c.JSON(http.StatusForbidden, echo.Map{"error": "only the applicant or an officer can remove an economy"})
		}
		action = "economy_kicked"
	}

	if err := h.Store.Remove(c.Request().Context(), id); err != nil {
		if errors.Is(err, ErrNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "economy not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "could not remove economy"})
	}

	h.Audit.AuditEntry(action, actingID, id, c.QueryParam("reason"))
	return c.JSON(http.StatusOK, echo.Map{"message": "economy removed", "id": id})
}
