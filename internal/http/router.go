package http

import (
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/natours/natours-api/internal/apperror"
	"github.com/natours/natours-api/internal/auth"
	"github.com/natours/natours-api/internal/booking"
	"github.com/natours/natours-api/internal/config"
	"github.com/natours/natours-api/internal/crud"
	"github.com/natours/natours-api/internal/database"
	"github.com/natours/natours-api/internal/httputil"
	"github.com/natours/natours-api/internal/logging"
	"github.com/natours/natours-api/internal/ratelimit"
	"github.com/natours/natours-api/internal/review"
	"github.com/natours/natours-api/internal/tour"
	"github.com/natours/natours-api/internal/user"
)

// Deps carries everything the router wires together.
type Deps struct {
	Config         *config.Config
	Logger         *logging.Logger
	Limiter        *ratelimit.Limiter
	AuthHandler    *auth.Handler
	AuthMiddleware *auth.Middleware
	UserHandler    *user.Handler
	UserAdmin      *crud.Handler[database.User]
	Tours          *crud.Handler[database.Tour]
	Reviews        *crud.Handler[database.Review]
	ReviewGuard    *review.Guard
	Bookings       *crud.Handler[database.Booking]
	Checkout       *booking.CheckoutHandler
}

// NewRouter creates and configures the HTTP router
func NewRouter(d Deps) *chi.Mux {
	r := chi.NewRouter()

	// CORS - must be first
	if len(d.Config.Server.TrustedOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins:   d.Config.Server.TrustedOrigins,
			AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
			AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
			ExposedHeaders:   []string{"Content-Length"},
			AllowCredentials: true,
			MaxAge:           300, // 5 minutes
		}))
	}

	// Global middleware
	r.Use(SecurityHeaders)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(logging.RequestLogger(d.Logger))
	r.Use(middleware.Compress(5))

	r.Get("/health", handleHealth)

	protect := d.AuthMiddleware.Protect
	restrictTo := d.AuthMiddleware.RestrictTo

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(d.Limiter.Middleware)

		r.Route("/tours", func(r chi.Router) {
			// Public reads still pick up the principal when a valid session
			// cookie rides along.
			r.Group(func(r chi.Router) {
				r.Use(d.AuthMiddleware.IsLoggedIn)
				r.With(tour.AliasTopTours).Get("/top-5-cheap", d.Tours.GetAll)
				r.Get("/", d.Tours.GetAll)
				r.Get("/{id}", d.Tours.GetOne)
			})

			r.Group(func(r chi.Router) {
				r.Use(protect, restrictTo(database.RoleAdmin, database.RoleLeadGuide))
				r.Post("/", d.Tours.CreateOne)
				r.Patch("/{id}", d.Tours.UpdateOne)
				r.Delete("/{id}", d.Tours.DeleteOne)
			})

			r.Route("/{tourID}/reviews", func(r chi.Router) {
				r.Use(protect)
				r.Get("/", d.Reviews.GetAll)
				r.With(restrictTo(database.RoleUser)).Post("/", d.Reviews.CreateOne)
				r.Get("/{id}", d.Reviews.GetOne)
				r.With(d.ReviewGuard.AuthorOrAdmin).Patch("/{id}", d.Reviews.UpdateOne)
				r.With(d.ReviewGuard.AuthorOrAdmin).Delete("/{id}", d.Reviews.DeleteOne)
			})
		})

		r.Route("/users", func(r chi.Router) {
			r.Post("/signup", d.AuthHandler.Signup)
			r.Post("/login", d.AuthHandler.Login)
			r.Get("/logout", d.AuthHandler.Logout)
			r.Post("/forgotPassword", d.AuthHandler.ForgotPassword)
			r.Patch("/resetPassword/{token}", d.AuthHandler.ResetPassword)

			r.Group(func(r chi.Router) {
				r.Use(protect)
				r.Patch("/updateMyPassword", d.AuthHandler.UpdatePassword)
				r.Get("/me", d.UserHandler.GetMe)
				r.Patch("/updateMe", d.UserHandler.UpdateMe)
				r.Delete("/deleteMe", d.UserHandler.DeleteMe)
			})

			r.Group(func(r chi.Router) {
				r.Use(protect, restrictTo(database.RoleAdmin))
				r.Get("/", d.UserAdmin.GetAll)
				r.Post("/", handleCreateUserNotDefined)
				r.Get("/{id}", d.UserAdmin.GetOne)
				r.Patch("/{id}", d.UserAdmin.UpdateOne)
				r.Delete("/{id}", d.UserAdmin.DeleteOne)
			})
		})

		r.Route("/reviews", func(r chi.Router) {
			r.Use(protect)
			r.Get("/", d.Reviews.GetAll)
			r.With(restrictTo(database.RoleUser)).Post("/", d.Reviews.CreateOne)
			r.Get("/{id}", d.Reviews.GetOne)
			r.With(d.ReviewGuard.AuthorOrAdmin).Patch("/{id}", d.Reviews.UpdateOne)
			r.With(d.ReviewGuard.AuthorOrAdmin).Delete("/{id}", d.Reviews.DeleteOne)
		})

		r.Route("/bookings", func(r chi.Router) {
			r.Use(protect)
			r.Get("/checkout-session/{tourID}", d.Checkout.GetCheckoutSession)

			r.Group(func(r chi.Router) {
				r.Use(restrictTo(database.RoleAdmin, database.RoleLeadGuide))
				r.Get("/", d.Bookings.GetAll)
				r.Post("/", d.Bookings.CreateOne)
				r.Get("/{id}", d.Bookings.GetOne)
				r.Patch("/{id}", d.Bookings.UpdateOne)
				r.Delete("/{id}", d.Bookings.DeleteOne)
			})
		})
	})

	r.NotFound(handleNotFound)

	return r
}

// handleHealth is a simple health check endpoint
func handleHealth(w http.ResponseWriter, r *http.Request) {
	httputil.RespondJSON(w, map[string]string{"status": "api is running"}, http.StatusOK)
}

// handleNotFound reports unknown routes through the error envelope.
func handleNotFound(w http.ResponseWriter, r *http.Request) {
	httputil.RespondError(w, apperror.NotFound(
		fmt.Sprintf("Can't find %s on this server!", r.URL.Path)))
}

// handleCreateUserNotDefined points clients at the signup flow; admin user
// creation is intentionally not supported.
func handleCreateUserNotDefined(w http.ResponseWriter, r *http.Request) {
	httputil.RespondError(w, apperror.Internal("This route is not defined! Please use /signup instead"))
}
