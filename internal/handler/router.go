package handler

import (
	"net/http"

	"echelon/internal/metrics"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"
)

// RouterOptions configures NewRouter. Nil Events and Metrics leave their
// endpoints unmounted.
type RouterOptions struct {
	AllowedOrigins []string
	Events         http.Handler
	Metrics        *metrics.Collector
	Logger         *zap.Logger
}

// NewRouter mounts the API on a chi router
func NewRouter(h *Handler, opts RouterOptions) http.Handler {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	origins := opts.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(requestLogger(logger))
	if opts.Metrics != nil {
		r.Use(opts.Metrics.Middleware)
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-ID"},
		ExposedHeaders: []string{"X-Request-ID"},
		MaxAge:         300,
	}))

	r.Get("/health", h.HealthCheck)
	if opts.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", opts.Metrics.Handler())
	}
	if opts.Events != nil {
		r.Method(http.MethodGet, "/events", opts.Events)
	}

	r.Route("/api", func(r chi.Router) {
		r.Route("/teams", func(r chi.Router) {
			r.Get("/", h.ListTeams)
			r.Post("/", h.CreateTeam)
			r.Get("/{teamID}/subtree", h.GetTeamSubtree)
			r.Get("/{teamID}/hierarchy", h.GetTeamHierarchy)
			r.Get("/{teamID}/bullet-points", h.GetTeamBulletPoints)
			r.Get("/{teamID}/raw-data", h.ListTeamRawData)
			r.Get("/{teamID}/ccirs", h.ListTeamCCIRs)
		})

		r.Post("/raw-data", h.CreateRawData)
		r.Post("/ccirs", h.CreateCCIR)
		r.Get("/hierarchy", h.GetHierarchy)

		r.Route("/bullet-points", func(r chi.Router) {
			r.Post("/", h.CreateBulletPoint)
			r.Post("/link", h.LinkBulletPoints)
			r.Get("/{bpID}", h.GetBulletPoint)
			r.Post("/{bpID}/invalidate", h.InvalidateBulletPoint)
		})

		r.Post("/summaries/regenerate", h.RegenerateSummaries)

		r.Get("/export/{format}", h.ExportSeed)
		r.Post("/import/{format}", h.ImportSeed)
	})

	return r
}
