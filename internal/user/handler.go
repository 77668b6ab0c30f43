package user

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/natours/natours-api/internal/apperror"
	"github.com/natours/natours-api/internal/httputil"
	"github.com/natours/natours-api/internal/logging"
)

// PrincipalResolver returns the authenticated user from the request.
// Wired to the auth middleware; a separate type keeps this package from
// depending on the auth package.
type PrincipalResolver func(r *http.Request) (*User, bool)

// Handler serves the self-service routes: the authenticated user reading
// and maintaining their own account. Admin user management goes through
// the generic resource handlers instead.
type Handler struct {
	repo    *Repository
	resolve PrincipalResolver
	logger  *logging.Logger
}

func NewHandler(repo *Repository, resolve PrincipalResolver, logger *logging.Logger) *Handler {
	return &Handler{repo: repo, resolve: resolve, logger: logger}
}

type updateMeRequest struct {
	Name  *string `json:"name"`
	Email *string `json:"email"`
	Photo *string `json:"photo"`

	// Present only to detect misuse; password changes have their own route.
	Password        *string `json:"password"`
	PasswordConfirm *string `json:"passwordConfirm"`
}

// GetMe handles GET /api/v1/users/me.
func (h *Handler) GetMe(w http.ResponseWriter, r *http.Request) {
	principal, ok := h.resolve(r)
	if !ok {
		httputil.RespondError(w, apperror.Unauthorized("You are not logged in! Please log in to get access."))
		return
	}

	httputil.RespondData(w, principal, http.StatusOK)
}

// UpdateMe handles PATCH /api/v1/users/updateMe: profile fields only,
// password fields are rejected outright.
func (h *Handler) UpdateMe(w http.ResponseWriter, r *http.Request) {
	principal, ok := h.resolve(r)
	if !ok {
		httputil.RespondError(w, apperror.Unauthorized("You are not logged in! Please log in to get access."))
		return
	}

	var req updateMeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.RespondError(w, apperror.BadRequest("Invalid request body"))
		return
	}

	if req.Password != nil || req.PasswordConfirm != nil {
		httputil.RespondError(w, apperror.BadRequest(
			"This route is not for password updates. Please use /updateMyPassword."))
		return
	}
	if req.Name == nil && req.Email == nil && req.Photo == nil {
		httputil.RespondError(w, apperror.BadRequest("No valid fields to update"))
		return
	}
	if req.Email != nil {
		normalized, err := NormalizeEmail(*req.Email)
		if err != nil {
			httputil.RespondError(w, apperror.BadRequest("Please provide a valid email"))
			return
		}
		req.Email = &normalized
	}

	updated, err := h.repo.UpdateProfile(r.Context(), principal.ID, ProfileUpdate{
		Name:  req.Name,
		Email: req.Email,
		Photo: req.Photo,
	})
	if err != nil {
		if errors.Is(err, ErrDuplicateEmail) {
			httputil.RespondError(w, apperror.BadRequest("This email is already registered"))
			return
		}
		if errors.Is(err, ErrNotFound) {
			httputil.RespondError(w, apperror.NotFound("No document found with that ID"))
			return
		}
		h.logger.Error("failed to update profile", "user_id", principal.ID, "error", err)
		httputil.RespondError(w, err)
		return
	}

	httputil.RespondData(w, updated, http.StatusOK)
}

// DeleteMe handles DELETE /api/v1/users/deleteMe. The account is
// deactivated, not removed; deactivated accounts vanish from every read.
func (h *Handler) DeleteMe(w http.ResponseWriter, r *http.Request) {
	principal, ok := h.resolve(r)
	if !ok {
		httputil.RespondError(w, apperror.Unauthorized("You are not logged in! Please log in to get access."))
		return
	}

	if err := h.repo.Deactivate(r.Context(), principal.ID); err != nil {
		h.logger.Error("failed to deactivate account", "user_id", principal.ID, "error", err)
		httputil.RespondError(w, err)
		return
	}

	httputil.RespondNoContent(w)
}
