package user

import (
	"net/http"

	"github.com/uptrace/bun"

	"github.com/natours/natours-api/internal/apperror"
	"github.com/natours/natours-api/internal/crud"
	"github.com/natours/natours-api/internal/database"
)

// NewAdminHandler builds the admin-only users resource handler. The
// active-only scope applies here too: deactivated accounts are invisible
// even to admins, matching every other read path. Email updates pass
// through the same validation and lowercasing as signup.
func NewAdminHandler(db *bun.DB) *crud.Handler[database.User] {
	return crud.NewHandler(db, crud.Config[database.User]{
		AllowedFilters:  []string{"name", "email", "role"},
		WritableColumns: []string{"name", "email", "photo", "role", "active"},
		Scope: func(q *bun.SelectQuery) *bun.SelectQuery {
			return q.Where("?TableAlias.active = TRUE")
		},
		BeforeUpdate: func(r *http.Request, body map[string]any) error {
			raw, present := body["email"]
			if !present {
				return nil
			}
			email, _ := raw.(string)
			normalized, err := NormalizeEmail(email)
			if err != nil {
				return apperror.BadRequest("Please provide a valid email")
			}
			body["email"] = normalized
			return nil
		},
	})
}
