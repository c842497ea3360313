/*
Package handler provides the HTTP handlers and routing setup for the mentorlink API server.

This file defines the main Router, applying logging, CORS, bearer identity extraction and
IP-based rate limiting on writes before delegating requests to the mentorship handlers.
*/
package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/cors"
	"golang.org/x/time/rate"

	"mentorlink/internal/pkg/auth/jwt"
	"mentorlink/internal/pkg/errs"
	"mentorlink/internal/pkg/limiter"
	"mentorlink/internal/pkg/logx"
	"mentorlink/internal/pkg/metrics"
	"mentorlink/internal/pkg/resp"
)

// Router sets up the main HTTP routing table for the application. ctx bounds background
// work owned by the router, such as rate limiter cleanup.
func Router(ctx context.Context, deps *AppDeps) http.Handler {
	writeLimiter := limiter.NewIPRateLimiter(ctx, rate.Limit(deps.Config.WriteRateLimit), deps.Config.WriteBurst)

	r := chi.NewRouter()

	corsAllowedOrigins := []string{}
	if deps.Config.IsDevelopment() {
		corsAllowedOrigins = []string{"*"}
	} else if len(deps.Config.AllowedOrigins) > 0 {
		corsAllowedOrigins = deps.Config.AllowedOrigins
	}

	c := cors.New(cors.Options{
		AllowedOrigins:   corsAllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{},
		AllowCredentials: true,
		MaxAge:           300,
	})
	r.Use(c.Handler)

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(logx.RequestLogger())
	r.Use(middleware.Recoverer)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		if deps.Ready != nil {
			if err := deps.Ready(r.Context()); err != nil {
				logx.Error(err, "Health check failed")
				resp.RespondError(w, r, errs.Wrap(errs.ErrUnknown, err))
				return
			}
		}

		data := map[string]string{
			"status":  "ok",
			"service": "mentorlink",
		}
		resp.RespondSuccess(w, r, data)
	})
	r.Handle("/metrics", metrics.Handler())

	r.Route("/api", func(api chi.Router) {
		api.Use(jwt.IdentityExtractorMiddleware(deps.Config.JWTSecret))

		if deps.Config.IsDevelopment() {
			api.With(writeLimiter.Middleware).Post("/auth/token", HandleIssueDevToken(deps))
		}

		api.Route("/mentorship", func(m chi.Router) {
			m.Use(jwt.RequireIdentity)
			m.Use(EnrollCaller(deps))

			m.Get("/available-mentors", HandleAvailableMentors(deps))
			m.Get("/available-students", HandleAvailableStudents(deps))
			m.Get("/mentees", HandleMentees(deps))
			m.Get("/student/mentor", HandleStudentMentor(deps))

			m.With(writeLimiter.Middleware).Post("/start", HandleStart(deps))
			m.With(writeLimiter.Middleware).Post("/end", HandleEnd(deps))

			m.Get("/messages", HandleListMessages(deps))
			m.With(writeLimiter.Middleware).Post("/messages", HandleSendMessage(deps))
			m.Post("/messages/read", HandleMarkRead(deps))
			m.With(writeLimiter.Middleware).Post("/messages/{id}/reactions", HandleReact(deps))
			m.With(writeLimiter.Middleware).Delete("/messages/{id}", HandleDeleteMessage(deps))

			m.Get("/files/{id}", HandleDownloadFile(deps))
		})
	})

	return r
}
