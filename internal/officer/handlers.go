package officer

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/sudo-init-do/worldbank/internal/audit"
)

// Handler exposes officer management over HTTP. Add and Remove are owner
// only; listing is open to any officer (route middleware enforces that).
type Handler struct {
	Store *Store
	Audit audit.Recorder
}

type addOfficerRequest struct {
	UserID string `json:"user_id"`
}

// Add grants officer status to a user. Owner only.
func (h *Handler) Add(c echo.Context) error {
	actingID, _ := c.Get("user_id").(string)
	if !h.Store.IsOwner(actingID) {
		return c.JSON(http.StatusForbidden, echo.Map{"error": "only the owner can manage officers"})
	}

	var req addOfficerRequest
	if err := c.Bind(&req); err != nil || req.UserID == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "user_id is required"})
	}

	o, err := h.Store.Add(c.Request().Context(), req.UserID, actingID)
	if err != nil {
		switch {
		case errors.Is(err, ErrOwnerReserved):
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "owner is always authorized"})
		case errors.Is(err, ErrAlreadyOfficer):
			return c.JSON(http.StatusConflict, echo.Map{"error": "user is already an officer"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "could not add officer"})
	}

	h.Audit.AuditEntry("officer_added", actingID, "", "officer: "+req.UserID)
	return c.JSON(http.StatusCreated, o)
}

// Remove revokes officer status. Owner only.
func (h *Handler) Remove(c echo.Context) error {
	actingID, _ := c.Get("user_id").(string)
	if !h.Store.IsOwner(actingID) {
		return c.JSON(http.StatusForbidden, echo.Map{"error": "only the owner can manage officers"})
	}

	userID := c.Param("id")
	if err := h.Store.Remove(c.Request().Context(), userID); err != nil {
		if errors.Is(err, ErrNotOfficer) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "user is not an officer"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "could not remove officer"})
	}

	h.Audit.AuditEntry("officer_removed", actingID, "", "officer: "+userID)
	return c.JSON(http.StatusOK, echo.Map{"message": "officer removed"})
}

// List returns the officer set.
func (h *Handler) List(c echo.Context) error {
	officers, err := h.Store.List(c.Request().Context())
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "could not list officers"})
	}
	if officers == nil {
		officers = []Officer{}
	}
	return c.JSON(http.StatusOK, officers)
}
