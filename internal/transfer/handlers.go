package transfer

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"

	"github.com/sudo-init-do/worldbank/internal/audit"
	"github.com/sudo-init-do/worldbank/internal/economy"
	"github.com/sudo-init-do/worldbank/internal/ledger"
)

// Handler exposes the transfer engine and history over HTTP.
type Handler struct {
	Engine  *Engine
	History *History
	Audit   audit.Recorder
}

type createRequest struct {
	FromEconomy string          `json:"from_economy"`
	ToEconomy   string          `json:"to_economy"`
	Amount      decimal.Decimal `json:"amount"`
	Wallet      Wallet          `json:"wallet"`
}

type errorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind"`
}

// Create runs one transfer saga for the acting user.
func (h *Handler) Create(c echo.Context) error {
	userID, ok := c.Get("user_id").(string)
	if !ok || userID == "" {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}

	var req createRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, errorResponse{Error: "invalid request body", Kind: "validation"})
	}

	result, err := h.Engine.Execute(c.Request().Context(), Request{
		UserID:      userID,
		FromEconomy: req.FromEconomy,
		ToEconomy:   req.ToEconomy,
		Amount:      req.Amount,
		Wallet:      req.Wallet,
	})
	if err != nil {
		return writeSagaError(c, err)
	}

	return c.JSON(http.StatusOK, echo.Map{
		"status":        "complete",
		"transfer_id":   result.TransferID,
		"amount_source": result.AmountSource,
		"amount_target": result.AmountTarget,
		"rate_used":     result.RateUsed,
		"wallet":        result.Wallet,
	})
}

// writeSagaError maps the saga's error taxonomy onto HTTP. Ambiguous
// outcomes tell the caller not to blindly resubmit.
func writeSagaError(c echo.Context, err error) error {
	if ve, ok := AsValidation(err); ok {
		return c.JSON(http.StatusBadRequest, errorResponse{Error: ve.Error(), Kind: "validation"})
	}

	switch {
	case errors.Is(err, economy.ErrNotFound):
		return c.JSON(http.StatusNotFound, errorResponse{Error: err.Error(), Kind: "not_found"})
	case errors.Is(err, ledger.ErrAccountNotFound):
		return c.JSON(http.StatusNotFound, errorResponse{Error: err.Error(), Kind: "not_found"})
	case errors.Is(err, ErrInsufficientFunds):
		return c.JSON(http.StatusBadRequest, errorResponse{Error: err.Error(), Kind: "insufficient_funds"})
	case errors.Is(err, ErrCompensationFailed):
		return c.JSON(http.StatusInternalServerError, errorResponse{
			Error: "transfer failed and could not be rolled back; contact support before retrying",
			Kind:  "compensation_failed",
		})
	case errors.Is(err, ErrCreditRolledBack):
		return c.JSON(http.StatusBadGateway, errorResponse{
			Error: "target ledger rejected the credit; your source balance was restored",
			Kind:  "credit_rolled_back",
		})
	case errors.Is(err, ErrDebitFailed),
		errors.Is(err, ledger.ErrForbidden),
		errors.Is(err, ledger.ErrUnavailable):
		return c.JSON(http.StatusBadGateway, errorResponse{Error: err.Error(), Kind: "remote_unavailable"})
	}

	return c.JSON(http.StatusInternalServerError, errorResponse{Error: "transfer failed", Kind: "internal"})
}

// List returns the acting user's transfer history.
func (h *Handler) List(c echo.Context) error {
	userID, ok := c.Get("user_id").(string)
	if !ok || userID == "" {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}

	limit, _ := strconv.Atoi(c.QueryParam("limit"))
	records, err := h.History.ListByUser(c.Request().Context(), userID, limit)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "could not fetch transfers"})
	}
	if records == nil {
		records = []audit.TransferRecord{}
	}
	return c.JSON(http.StatusOK, records)
}

type cleanupRequest struct {
	Days int `json:"days"`
}

// Cleanup deletes old transfer records. Officer only (route middleware).
func (h *Handler) Cleanup(c echo.Context) error {
	actingID, _ := c.Get("user_id").(string)

	req := cleanupRequest{Days: 180}
	if err := c.Bind(&req); err != nil || req.Days <= 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "days must be a positive number"})
	}

	deleted, err := h.History.CleanupOlderThan(c.Request().Context(), req.Days)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "cleanup failed"})
	}

	h.Audit.AuditEntry("cleanup_transfers", actingID, "",
		fmt.Sprintf("deleted %d records older than %d days", deleted, req.Days))
	return c.JSON(http.StatusOK, echo.Map{"deleted": deleted, "days": req.Days})
}
