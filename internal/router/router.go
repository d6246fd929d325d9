// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

// Package router sets up all HTTP routes and middleware chains for the
// inkpost API. Routes are grouped by resource, with role requirements
// attached per group.
package router

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"

	"inkpost/internal/handlers"
	"inkpost/internal/metrics"
	"inkpost/internal/middleware"
	"inkpost/internal/models"
)

// Deps carries everything the router wires together.
type Deps struct {
	Tokens  middleware.TokenParser
	Ledger  middleware.Ledger
	Users   middleware.UserFinder
	Metrics *metrics.Metrics

	// MetricsHandler serves /metrics when set.
	MetricsHandler http.Handler
	// LoginLimiter throttles login and registration when set.
	LoginLimiter *middleware.RateLimiter
	// AllowedOrigins lists the CORS origins; empty disables CORS.
	AllowedOrigins []string
	// MediaDir is served under MediaPrefix when both are set.
	MediaDir    string
	MediaPrefix string

	Auth       *handlers.Auth
	Posts      *handlers.Posts
	Comments   *handlers.Comments
	Media      *handlers.Media
	Categories *handlers.Categories
	Tags       *handlers.Tags
	Dashboard  *handlers.Dashboard
	UserAdmin  *handlers.Users
}

// New creates and returns the configured Chi router with all middleware
// and route groups wired up.
func New(d Deps) chi.Router {
	r := chi.NewRouter()

	// Global middleware, applied to every request.
	r.Use(middleware.Recoverer)
	r.Use(middleware.Logger(d.Metrics))
	r.Use(middleware.SecureHeaders)
	if len(d.AllowedOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: d.AllowedOrigins,
			AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
			AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
			ExposedHeaders: []string{"X-Cache", "Retry-After"},
			MaxAge:         300,
		}))
	}

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		jsonMessage(w, http.StatusNotFound, "Not found.")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		jsonMessage(w, http.StatusMethodNotAllowed, "Method not allowed.")
	})

	r.Get("/health", healthHandler)
	if d.MetricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", d.MetricsHandler)
	}
	if d.MediaDir != "" && strings.HasPrefix(d.MediaPrefix, "/") {
		prefix := strings.TrimRight(d.MediaPrefix, "/")
		r.Handle(prefix+"/*", http.StripPrefix(prefix+"/", http.FileServer(http.Dir(d.MediaDir))))
	}

	staff := middleware.RequireRole(models.RoleAdmin, models.RoleModerator)
	admin := middleware.RequireRole(models.RoleAdmin)

	r.Route("/api", func(r chi.Router) {
		r.Use(middleware.Authenticate(d.Tokens, d.Ledger, d.Users))

		r.Route("/auth", func(r chi.Router) {
			r.Group(func(r chi.Router) {
				if d.LoginLimiter != nil {
					r.Use(d.LoginLimiter.Middleware)
				}
				r.Post("/register", d.Auth.Register)
				r.Post("/login", d.Auth.Login)
			})

			r.Group(func(r chi.Router) {
				r.Use(middleware.RequireAuth)
				r.Post("/logout", d.Auth.Logout)
				r.Post("/refresh", d.Auth.Refresh)
				r.Get("/profile", d.Auth.Profile)
				r.Put("/profile", d.Auth.UpdateProfile)
				r.Post("/2fa/setup", d.Auth.TwoFASetup)
				r.Post("/2fa/enable", d.Auth.TwoFAEnable)
			})
		})

		r.Route("/posts", func(r chi.Router) {
			r.Get("/", d.Posts.List)
			r.Get("/featured", d.Posts.Featured)
			r.Get("/recent", d.Posts.Recent)
			r.With(middleware.RequireAuth).Post("/", d.Posts.Create)

			r.Route("/{post}", func(r chi.Router) {
				r.Get("/", d.Posts.Show)
				r.Post("/like", d.Posts.Like)
				r.Get("/comments", d.Comments.List)
				r.Post("/comments", d.Comments.Create)

				r.Group(func(r chi.Router) {
					r.Use(middleware.RequireAuth)
					r.Put("/", d.Posts.Update)
					r.Delete("/", d.Posts.Delete)
				})
			})
		})

		r.Route("/comments/{comment}", func(r chi.Router) {
			r.Post("/like", d.Comments.Like)

			r.Group(func(r chi.Router) {
				r.Use(staff)
				r.Put("/", d.Comments.Update)
				r.Delete("/", d.Comments.Delete)
			})
		})

		r.Route("/media", func(r chi.Router) {
			r.Get("/{media}/file", d.Media.Download)

			r.Group(func(r chi.Router) {
				r.Use(middleware.RequireAuth)
				r.Get("/", d.Media.List)
				r.Post("/", d.Media.Upload)
				r.With(staff).Delete("/{media}", d.Media.Delete)
			})
		})

		r.Route("/categories", func(r chi.Router) {
			r.Get("/", d.Categories.List)
			r.Get("/{category}", d.Categories.Show)
			r.Get("/{category}/posts", d.Posts.ByCategory)

			r.Group(func(r chi.Router) {
				r.Use(admin)
				r.Post("/", d.Categories.Create)
				r.Put("/{category}", d.Categories.Update)
				r.Delete("/{category}", d.Categories.Delete)
			})
		})

		r.Route("/tags", func(r chi.Router) {
			r.Get("/", d.Tags.List)
			r.Get("/popular", d.Tags.Popular)
			r.Get("/{tag}/posts", d.Posts.ByTag)
		})

		r.Route("/dashboard", func(r chi.Router) {
			r.Use(middleware.RequireAuth)
			r.With(staff).Get("/stats", d.Dashboard.Stats)
			r.Get("/posts", d.Dashboard.MyPosts)
		})

		r.Route("/users", func(r chi.Router) {
			r.Use(admin)
			r.Get("/", d.UserAdmin.List)
			r.Put("/{user}/role", d.UserAdmin.SetRole)
			r.Post("/{user}/reset-2fa", d.UserAdmin.ResetTwoFA)
			r.Delete("/{user}", d.UserAdmin.Delete)
		})
	})

	return r
}

// healthHandler returns a simple JSON health check response.
func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"ok"}`))
}

func jsonMessage(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"message": message})
}
