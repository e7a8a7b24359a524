package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"ride-console/internal/config"
	"ride-console/internal/handler"
	"ride-console/internal/middleware"
)

type Handlers struct {
	Session       *handler.SessionHandler
	Pages         *handler.PageHandler
	Confirmations *handler.ConfirmationHandler
	Moderation    *handler.ModerationHandler
	ModerationLog *handler.ModerationLogHandler
	Health        *handler.HealthHandler
	Docs          *handler.DocsHandler
	Events        http.Handler
	Metrics       http.Handler
}

// New wires the console routes. adminRoles gates the admin pages and the
// moderation API.
func New(cfg *config.Config, guards *middleware.Guards, adminRoles []string, h Handlers) http.Handler {
	r := chi.NewRouter()
	rateLimitMiddleware := middleware.NewRateLimitMiddleware(cfg.RateLimitRPM, cfg.AuthRateLimitRPM)

	r.Use(middleware.Recovery)
	r.Use(middleware.Logging)
	r.Use(middleware.Metrics)
	r.Use(middleware.CORS(cfg.CORSOrigins))
	r.Use(middleware.SecurityHeaders)
	r.Use(rateLimitMiddleware.Handler)

	r.Get("/health", h.Health.Health)
	if h.Docs != nil {
		r.Get("/openapi.yaml", h.Docs.OpenAPI)
		r.Get("/docs", h.Docs.SwaggerUI)
	}
	if h.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", h.Metrics)
	}
	if h.Events != nil {
		r.Method(http.MethodGet, "/ws", h.Events)
	}

	r.Group(func(pages chi.Router) {
		pages.Use(middleware.Timeout(cfg.RequestTimeout))

		pages.Get("/", h.Pages.Static("home", "Home"))
		pages.Get("/unauthorized", h.Pages.Static("unauthorized", "Unauthorized"))

		pages.With(guards.GuestOnly).Get("/login", h.Pages.Static("login", "Sign in"))
		pages.With(guards.GuestOnly).Get("/register", h.Pages.Static("register", "Create account"))

		pages.With(guards.AuthenticatedOnly()).Get("/search-rides", h.Pages.Static("search-rides", "Search rides"))

		pages.Group(func(admin chi.Router) {
			admin.Use(guards.AuthenticatedOnly(adminRoles...))
			admin.Get("/dashboard", h.Pages.Static("dashboard", "Dashboard"))
			admin.Get("/admin/users", h.Pages.AdminUsers)
			admin.Get("/admin/reports/{id}", h.Pages.ReportDetails)
		})
	})

	r.Route("/api", func(api chi.Router) {
		api.Use(middleware.Timeout(cfg.RequestTimeout))

		api.Route("/session", func(session chi.Router) {
			session.Get("/", h.Session.Get)
			session.With(guards.APIGuestOnly).Post("/login", h.Session.Login)
			session.With(guards.APIGuestOnly).Post("/register", h.Session.Register)
			session.Post("/logout", h.Session.Logout)
		})

		api.Route("/confirmation", func(confirmation chi.Router) {
			confirmation.Use(guards.APIAuthenticatedOnly())
			confirmation.Get("/", h.Confirmations.Get)
			confirmation.Post("/{id}/confirm", h.Confirmations.Confirm)
			confirmation.Post("/{id}/cancel", h.Confirmations.Cancel)
		})

		api.Route("/admin", func(admin chi.Router) {
			admin.Use(guards.APIAuthenticatedOnly(adminRoles...))
			admin.Post("/users/{id}/actions", h.Moderation.UserAction)
			admin.Post("/reports/{id}/actions", h.Moderation.ReportAction)
			admin.Get("/moderation-log", h.ModerationLog.List)
		})
	})

	return r
}
