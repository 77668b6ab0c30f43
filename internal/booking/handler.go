// Package booking wires the bookings resource into the generic handlers
// and serves the checkout-session endpoint.
package booking

import (
	"database/sql"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/uptrace/bun"

	"github.com/natours/natours-api/internal/apperror"
	"github.com/natours/natours-api/internal/auth"
	"github.com/natours/natours-api/internal/crud"
	"github.com/natours/natours-api/internal/database"
	"github.com/natours/natours-api/internal/httputil"
	"github.com/natours/natours-api/internal/logging"
	"github.com/natours/natours-api/internal/payment"
)

var allowedFilters = []string{"tour_id", "user_id", "price", "paid"}

// NewHandler builds the bookings resource handler. Access is restricted at
// the router; the handler itself is the standard set.
func NewHandler(db *bun.DB) *crud.Handler[database.Booking] {
	return crud.NewHandler(db, crud.Config[database.Booking]{
		AllowedFilters:  allowedFilters,
		WritableColumns: []string{"price", "paid"},
		Relations:       []string{"Tour", "User"},
	})
}

// CheckoutHandler creates checkout sessions for tours through the payment
// provider.
type CheckoutHandler struct {
	db       *bun.DB
	provider payment.Provider
	logger   *logging.Logger
}

func NewCheckoutHandler(db *bun.DB, provider payment.Provider, logger *logging.Logger) *CheckoutHandler {
	return &CheckoutHandler{db: db, provider: provider, logger: logger}
}

// GetCheckoutSession handles GET /api/v1/bookings/checkout-session/{tourID}.
func (h *CheckoutHandler) GetCheckoutSession(w http.ResponseWriter, r *http.Request) {
	principal, ok := auth.PrincipalFromContext(r.Context())
	if !ok {
		httputil.RespondError(w, apperror.Unauthorized("You are not logged in! Please log in to get access."))
		return
	}

	raw := chi.URLParam(r, "tourID")
	tourID, err := uuid.Parse(raw)
	if err != nil {
		httputil.RespondError(w, apperror.BadRequest(fmt.Sprintf("Invalid id: %s", raw)))
		return
	}

	var t database.Tour
	if err := h.db.NewSelect().Model(&t).Where("?TableAlias.id = ?", tourID).Scan(r.Context()); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			httputil.RespondError(w, apperror.NotFound("No document found with that ID"))
			return
		}
		h.logger.Error("failed to load tour for checkout", "tour_id", tourID, "error", err)
		httputil.RespondError(w, err)
		return
	}

	session, err := h.provider.CreateCheckoutSession(r.Context(), payment.CheckoutRef{
		TourID:    t.ID,
		TourName:  t.Name,
		Price:     t.Price,
		UserID:    principal.ID,
		UserEmail: principal.Email,
	})
	if err != nil {
		h.logger.Error("failed to create checkout session", "tour_id", tourID, "error", err)
		httputil.RespondError(w, err)
		return
	}

	httputil.RespondJSON(w, map[string]any{
		"status":  "success",
		"session": session,
	}, http.StatusOK)
}
