// Package review wires the reviews resource into the generic handlers.
// Reviews live nested under tours; creation fills the tour and author from
// the route and the principal, and edits are limited to the author.
package review

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
)

var allowedFilters = []string{"rating", "tour_id", "user_id"}

// NewHandler builds the reviews resource handler. On the nested route the
// tour comes from the URL and the author from the principal, so clients
// cannot review on someone else's behalf.
func NewHandler(db *bun.DB) *crud.Handler[database.Review] {
	return crud.NewHandler(db, crud.Config[database.Review]{
		AllowedFilters:  allowedFilters,
		WritableColumns: []string{"review", "rating"},
		Relations:       []string{"User"},
		RequestScope: func(r *http.Request, q *bun.SelectQuery) *bun.SelectQuery {
			if tourID, err := uuid.Parse(chi.URLParam(r, "tourID")); err == nil {
				q = q.Where("?TableAlias.tour_id = ?", tourID)
			}
			return q
		},
		BeforeCreate: func(r *http.Request, model *database.Review) error {
			if raw := chi.URLParam(r, "tourID"); raw != "" {
				tourID, err := uuid.Parse(raw)
				if err != nil {
					return apperror.BadRequest(fmt.Sprintf("Invalid id: %s", raw))
				}
				model.TourID = tourID
			}

			principal, ok := auth.PrincipalFromContext(r.Context())
			if !ok {
				return apperror.Unauthorized("You are not logged in! Please log in to get access.")
			}
			model.UserID = principal.ID
			return nil
		},
	})
}

// Guard authorizes review mutations: only the author or an admin may
// update or delete a review.
type Guard struct {
	db     *bun.DB
	logger *logging.Logger
}

func NewGuard(db *bun.DB, logger *logging.Logger) *Guard {
	return &Guard{db: db, logger: logger}
}

// AuthorOrAdmin must run after Protect.
func (g *Guard) AuthorOrAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		principal, ok := auth.PrincipalFromContext(r.Context())
		if !ok {
			httputil.RespondError(w, apperror.Unauthorized("You are not logged in! Please log in to get access."))
			return
		}

		raw := chi.URLParam(r, "id")
		id, err := uuid.Parse(raw)
		if err != nil {
			httputil.RespondError(w, apperror.BadRequest(fmt.Sprintf("Invalid id: %s", raw)))
			return
		}

		if principal.Role != database.RoleAdmin {
			var existing database.Review
			err := g.db.NewSelect().Model(&existing).
				Column("user_id").
				Where("?TableAlias.id = ?", id).
				Scan(r.Context())
			if err != nil {
				if errors.Is(err, sql.ErrNoRows) {
					httputil.RespondError(w, apperror.NotFound("No document found with that ID"))
					return
				}
				g.logger.Error("failed to load review for authorization", "review_id", id, "error", err)
				httputil.RespondError(w, err)
				return
			}

			if existing.UserID != principal.ID {
				httputil.RespondError(w, apperror.Unauthorized("You don't have the permission to edit this review."))
				return
			}
		}

		next.ServeHTTP(w, r)
	})
}
