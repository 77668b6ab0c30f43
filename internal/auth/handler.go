package auth

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/natours/natours-api/internal/apperror"
	"github.com/natours/natours-api/internal/httputil"
	"github.com/natours/natours-api/internal/logging"
	"github.com/natours/natours-api/internal/ratelimit"
	"github.com/natours/natours-api/internal/user"
)

// Handler exposes the authentication endpoints.
type Handler struct {
	service           *Service
	tokens            TokenService
	limiter           *ratelimit.Limiter
	logger            *logging.Logger
	isProduction      bool
	cookieExpiresDays int
}

func NewHandler(
	service *Service,
	tokens TokenService,
	limiter *ratelimit.Limiter,
	logger *logging.Logger,
	isProduction bool,
	cookieExpiresDays int,
) *Handler {
	return &Handler{
		service:           service,
		tokens:            tokens,
		limiter:           limiter,
		logger:            logger,
		isProduction:      isProduction,
		cookieExpiresDays: cookieExpiresDays,
	}
}

type signupRequest struct {
	Name            string `json:"name"`
	Email           string `json:"email"`
	Password        string `json:"password"`
	PasswordConfirm string `json:"passwordConfirm"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type forgotPasswordRequest struct {
	Email string `json:"email"`
}

type resetPasswordRequest struct {
	Password        string `json:"password"`
	PasswordConfirm string `json:"passwordConfirm"`
}

type updatePasswordRequest struct {
	PasswordCurrent string `json:"passwordCurrent"`
	Password        string `json:"password"`
	PasswordConfirm string `json:"passwordConfirm"`
}

// tokenResponse is the login/signup shape: the token appears both in the
// body and in the session cookie.
type tokenResponse struct {
	Status string     `json:"status"`
	Token  string     `json:"token"`
	Data   *tokenData `json:"data,omitempty"`
}

type tokenData struct {
	User *user.User `json:"user"`
}

// Signup handles POST /api/v1/users/signup.
func (h *Handler) Signup(w http.ResponseWriter, r *http.Request) {
	if h.limitExceeded(w, r, "signup") {
		return
	}

	var req signupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.RespondError(w, apperror.BadRequest("Invalid request body"))
		return
	}

	newUser, err := h.service.Signup(r.Context(), SignupParams{
		Name:            req.Name,
		Email:           req.Email,
		Password:        req.Password,
		PasswordConfirm: req.PasswordConfirm,
	})
	if err != nil {
		h.respondSignupError(w, err)
		return
	}

	h.sendToken(w, newUser, http.StatusCreated)
}

// Login handles POST /api/v1/users/login.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	if h.limitExceeded(w, r, "login") {
		return
	}

	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.RespondError(w, apperror.BadRequest("Invalid request body"))
		return
	}
	if req.Email == "" || req.Password == "" {
		httputil.RespondError(w, apperror.BadRequest("Please provide email and password!"))
		return
	}

	existingUser, err := h.service.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		h.respondLoginError(w, err)
		return
	}

	h.sendToken(w, existingUser, http.StatusOK)
}

// Logout handles GET /api/v1/users/logout. Stateless tokens cannot be
// revoked server-side; the session cookie is replaced with a short-lived
// dummy instead.
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	ClearSessionCookie(w)
	httputil.RespondJSON(w, map[string]string{"status": "success"}, http.StatusOK)
}

// ForgotPassword handles POST /api/v1/users/forgotPassword.
func (h *Handler) ForgotPassword(w http.ResponseWriter, r *http.Request) {
	var req forgotPasswordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.RespondError(w, apperror.BadRequest("Invalid request body"))
		return
	}
	if req.Email == "" {
		httputil.RespondError(w, apperror.BadRequest("Please provide your email"))
		return
	}

	onCooldown, err := h.limiter.CheckEmailCooldown(r.Context(), req.Email)
	if err != nil {
		h.logger.Warn("email cooldown check failed", "error", err)
	}
	if onCooldown {
		httputil.RespondError(w, apperror.WithCode(http.StatusTooManyRequests,
			"EMAIL_COOLDOWN", "A reset email was sent recently. Please wait before requesting another."))
		return
	}

	if err := h.service.ForgotPassword(r.Context(), req.Email); err != nil {
		switch {
		case errors.Is(err, user.ErrNotFound):
			httputil.RespondError(w, apperror.NotFound("There is no user with this email address."))
		case errors.Is(err, ErrEmailSendFailed):
			httputil.RespondError(w, apperror.Internal("There was an error sending the email. Try again later!"))
		default:
			h.logger.Error("forgot password failed", "error", err)
			httputil.RespondError(w, err)
		}
		return
	}

	if err := h.limiter.SetEmailCooldown(r.Context(), req.Email); err != nil {
		h.logger.Warn("failed to set email cooldown", "error", err)
	}

	httputil.RespondJSON(w, map[string]string{
		"status":  "success",
		"message": "Token sent to email!",
	}, http.StatusOK)
}

// ResetPassword handles PATCH /api/v1/users/resetPassword/{token}.
func (h *Handler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	token := chi.URLParam(r, "token")

	var req resetPasswordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.RespondError(w, apperror.BadRequest("Invalid request body"))
		return
	}

	existingUser, err := h.service.ResetPassword(r.Context(), token, req.Password, req.PasswordConfirm)
	if err != nil {
		if errors.Is(err, ErrResetTokenInvalid) {
			httputil.RespondError(w, apperror.BadRequest("Token is invalid or has expired"))
			return
		}
		if msg, ok := validationMessage(err); ok {
			httputil.RespondError(w, apperror.BadRequest(msg))
			return
		}
		h.logger.Error("reset password failed", "error", err)
		httputil.RespondError(w, err)
		return
	}

	h.sendToken(w, existingUser, http.StatusOK)
}

// UpdatePassword handles PATCH /api/v1/users/updateMyPassword. Requires an
// authenticated principal.
func (h *Handler) UpdatePassword(w http.ResponseWriter, r *http.Request) {
	principal, ok := PrincipalFromContext(r.Context())
	if !ok {
		httputil.RespondError(w, apperror.Unauthorized("You are not logged in! Please log in to get access."))
		return
	}

	var req updatePasswordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.RespondError(w, apperror.BadRequest("Invalid request body"))
		return
	}

	updatedUser, err := h.service.UpdatePassword(r.Context(), principal.ID, req.PasswordCurrent, req.Password, req.PasswordConfirm)
	if err != nil {
		if errors.Is(err, ErrWrongCurrentPassword) {
			httputil.RespondError(w, apperror.Unauthorized("Your current password is wrong."))
			return
		}
		if msg, ok := validationMessage(err); ok {
			httputil.RespondError(w, apperror.BadRequest(msg))
			return
		}
		h.logger.Error("update password failed", "error", err)
		httputil.RespondError(w, err)
		return
	}

	h.sendToken(w, updatedUser, http.StatusOK)
}

// sendToken issues a session token for the user, sets the cookie and writes
// the token response. Every flow that establishes a session ends here.
func (h *Handler) sendToken(w http.ResponseWriter, u *user.User, statusCode int) {
	token, err := h.tokens.Issue(u.ID)
	if err != nil {
		h.logger.Error("failed to issue token", "user_id", u.ID, "error", err)
		httputil.RespondError(w, err)
		return
	}

	SetSessionCookie(w, token, h.isProduction, h.cookieExpiresDays)
	httputil.RespondJSON(w, tokenResponse{
		Status: "success",
		Token:  token,
		Data:   &tokenData{User: u},
	}, statusCode)
}

// limitExceeded enforces the per-purpose IP limit and records the request.
// Redis failures are logged and fail open.
func (h *Handler) limitExceeded(w http.ResponseWriter, r *http.Request, purpose string) bool {
	ip := ratelimit.ClientIP(r)

	exceeded, err := h.limiter.CheckIPRateLimitWithPurpose(r.Context(), ip, purpose)
	if err != nil {
		h.logger.Warn("rate limit check failed", "purpose", purpose, "error", err)
		return false
	}
	if exceeded {
		httputil.RespondError(w, apperror.WithCode(http.StatusTooManyRequests,
			"TOO_MANY_REQUESTS", "Too many requests from this IP, please try again in an hour!"))
		return true
	}

	if err := h.limiter.RecordIPRequestWithPurpose(r.Context(), ip, purpose); err != nil {
		h.logger.Warn("failed to record rate limit request", "purpose", purpose, "error", err)
	}
	return false
}

func (h *Handler) respondSignupError(w http.ResponseWriter, err error) {
	if errors.Is(err, user.ErrDuplicateEmail) {
		httputil.RespondError(w, apperror.BadRequest("This email is already registered"))
		return
	}
	if msg, ok := validationMessage(err); ok {
		httputil.RespondError(w, apperror.BadRequest(msg))
		return
	}
	h.logger.Error("signup failed", "error", err)
	httputil.RespondError(w, err)
}

func (h *Handler) respondLoginError(w http.ResponseWriter, err error) {
	var failedLogin *FailedLoginError
	switch {
	case errors.As(err, &failedLogin):
		httputil.RespondError(w, apperror.Unauthorized(
			loginAttemptsMessage(failedLogin.Remaining)))
	case errors.Is(err, ErrAccountLocked):
		httputil.RespondError(w, apperror.WithCode(http.StatusTooManyRequests,
			"ACCOUNT_LOCKED", "Too many attempts, account is locked. Try after an hour!"))
	case errors.Is(err, ErrInvalidCredentials):
		httputil.RespondError(w, apperror.Unauthorized("Incorrect email or password."))
	default:
		h.logger.Error("login failed", "error", err)
		httputil.RespondError(w, err)
	}
}

func loginAttemptsMessage(remaining int) string {
	if remaining <= 0 {
		return "Too many attempts, account is locked. Try after an hour!"
	}
	if remaining == 1 {
		return "Incorrect email or password. You have 1 attempt left!"
	}
	return fmt.Sprintf("Incorrect email or password. You have %d attempts left!", remaining)
}

// validationMessage maps the input validation sentinels to their client
// messages. Returns false for anything that is not a validation error.
func validationMessage(err error) (string, bool) {
	switch {
	case errors.Is(err, ErrNameRequired):
		return "Please tell us your name!", true
	case errors.Is(err, ErrEmailRequired):
		return "Please provide your email", true
	case errors.Is(err, ErrInvalidEmailFormat):
		return "Please provide a valid email", true
	case errors.Is(err, ErrPasswordRequired):
		return "Please provide a password", true
	case errors.Is(err, ErrPasswordTooShort):
		return "Password must be at least 8 characters", true
	case errors.Is(err, ErrPasswordMismatch):
		return "Passwords are not the same!", true
	}
	return "", false
}
