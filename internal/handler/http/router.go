package http

import (
	"log/slog"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/jwtauth/v5"

	"github.com/cmlabs-hris/attendance-core/internal/handler/http/middleware"
	"github.com/cmlabs-hris/attendance-core/internal/pkg/jwt"
	"github.com/cmlabs-hris/attendance-core/internal/pkg/logger"
)

type RouterOptions struct {
	AllowedOrigins []string
	Logger         *slog.Logger
}

func NewRouter(opts RouterOptions, jwtService jwt.Service, attendanceHandler AttendanceHandler, requestHandler RequestHandler, configHandler ConfigHandler) *chi.Mux {
	r := chi.NewRouter()

	origins := opts.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"http://localhost:3000"}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowCredentials: true,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token"},
		ExposedHeaders:   []string{"Link"},
		MaxAge:           300,
	}))

	r.Use(chiMiddleware.RealIP)
	if opts.Logger != nil {
		r.Use(logger.RequestLogger(opts.Logger))
	}
	r.Use(chiMiddleware.CleanPath)
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.Heartbeat("/"))

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(jwtauth.Verifier(jwtService.JWTAuth()))
		r.Use(middleware.AuthRequired(jwtService.JWTAuth()))

		r.Route("/attendance", func(r chi.Router) {
			r.Post("/punch", attendanceHandler.Punch)
			r.Get("/records", attendanceHandler.ListRecords)
			r.Post("/import", attendanceHandler.Import)
			r.Get("/stream", attendanceHandler.Stream)

			r.Route("/requests", func(r chi.Router) {
				r.Post("/", requestHandler.Create)
				r.Get("/", requestHandler.List)
				r.Route("/{id}", func(r chi.Router) {
					r.Get("/", requestHandler.Get)
					r.Get("/audit", requestHandler.Audit)
					r.Post("/approve", requestHandler.Approve)
					r.Post("/reject", requestHandler.Reject)
					r.Post("/cancel", requestHandler.Cancel)
				})
			})
		})

		r.Route("/rulesets", func(r chi.Router) {
			r.Get("/", configHandler.GetRuleSet)
			r.Put("/", configHandler.SaveRuleSet)
		})

		r.Route("/holidays", func(r chi.Router) {
			r.Get("/", configHandler.ListHolidays)
			r.Put("/", configHandler.UpsertHoliday)
			r.Post("/import", configHandler.ImportHolidays)
		})

		r.Route("/settings", func(r chi.Router) {
			r.Get("/", configHandler.GetSettings)
			r.Put("/", configHandler.SaveSettings)
		})
	})

	return r
}
