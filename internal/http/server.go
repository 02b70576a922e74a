package http

import (
	"context"
	"html/template"
	"io/fs"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"salone/internal/cache"
	"salone/internal/log"
	"salone/internal/metrics"
	"salone/internal/middleware/ratelimit"
	"salone/internal/middleware/security"
	"salone/internal/middleware/trace"
	"salone/internal/services"
	"salone/internal/session"
	appweb "salone/web"
)

// Options wires a Server. Service and Metrics are required.
type Options struct {
	Addr               string
	Service            *services.AnalysisService
	Metrics            *metrics.Metrics
	Charts             *cache.LRUCache[[]byte]
	MaxUploadBytes     int64
	RateLimitPerMinute int
	Logger             *log.Logger
}

type Server struct {
	http.Server
	templates *template.Template
	svc       *services.AnalysisService
	sessions  *session.Store
	charts    *cache.LRUCache[[]byte]
	metrics   *metrics.Metrics
	limiter   *ratelimit.Limiter
	detector  *security.Detector
	logger    *log.Logger
	maxUpload int64

	shutdownOnce sync.Once
}

// ChartKeyPrefix is the chart cache prefix owned by one session. Evicting
// a session should drop every key under it.
func ChartKeyPrefix(sessionID string) string { return sessionID + "/" }

// NewServer configures routes and templates, returning a ready-to-run http.Server.
func NewServer(opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = log.Default(log.ComponentHTTP)
	}
	maxUpload := opts.MaxUploadBytes
	if maxUpload <= 0 {
		maxUpload = 32 << 20
	}
	charts := opts.Charts
	if charts == nil {
		charts = cache.NewLRUCache[[]byte](256, 30*time.Minute)
	}

	s := &Server{
		svc:       opts.Service,
		sessions:  opts.Service.Sessions(),
		charts:    charts,
		metrics:   opts.Metrics,
		limiter:   ratelimit.NewLimiter(ratelimit.Config{RequestsPerMinute: opts.RateLimitPerMinute}),
		detector:  security.NewDetector(),
		logger:    logger,
		maxUpload: maxUpload,
	}

	t, err := template.ParseFS(appweb.TemplatesFS, "templates/*.html")
	if err != nil {
		logger.Warn("Failed parsing templates", log.FieldError, err)
	}
	s.templates = t

	s.Server = http.Server{
		Addr:              opts.Addr,
		Handler:           s.routes(),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
		MaxHeaderBytes:    1 << 16,
	}
	return s
}

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()

	tracer := trace.NewMiddleware(s.logger, s.detector.ExtractClientIP, s.metrics.HTTPRequest)
	r.Use(tracer.Middleware)
	r.Use(middleware.Recoverer)
	r.Use(security.Headers(security.DefaultHeadersConfig()))
	r.Use(s.detector.Middleware(s.logger.WithComponent(log.ComponentSecurity)))
	r.Use(s.limiter.Middleware(s.detector.ExtractClientIP, func(w http.ResponseWriter, r *http.Request) {
		log.FromContext(r.Context()).WarnContext(r.Context(), "Rate limit exceeded",
			log.FieldClientIP, s.detector.ExtractClientIP(r), log.FieldPath, r.URL.Path)
		TooManyRequestsError("Troppe richieste. Riprova tra poco.").Write(w)
	}, http.MethodPost))
	r.Use(middleware.Compress(5, "text/html", "text/css", "application/json", "text/plain"))

	r.Get("/healthz", handleHealth)
	r.Get("/readyz", s.handleReady)
	r.Method(http.MethodGet, "/metrics", s.metrics.Handler())

	if sub, err := fs.Sub(appweb.StaticFS, "static"); err == nil {
		static := http.StripPrefix("/static/", http.FileServer(http.FS(sub)))
		r.Handle("/static/*", security.StaticAssetMiddleware(3600)(static))
	} else {
		s.logger.Warn("Failed to mount embedded static FS", log.FieldError, err)
	}

	r.Group(func(r chi.Router) {
		r.Use(security.NoStore)
		r.Get("/", s.handleIndex)
		r.Post("/upload", s.handleUpload)
		r.Post("/import", s.handleImport)
		r.Post("/reset", s.handleReset)
		r.Get("/analisi/globale", s.handleGlobal)
		r.Get("/analisi/mensile", s.handleMonthly)
		r.Get("/operatori", s.handleOperators)
		r.Get("/servizi", s.handleServices)
		r.Get("/suggerimenti", s.handleSuggestionsPage)
		r.Post("/suggerimenti", s.handleSuggest)
	})

	r.Get("/charts/{name}.png", s.handleOverallChart)
	r.Get("/charts/mese/{period}/{name}.png", s.handlePeriodChart)

	r.Route("/api", func(r chi.Router) {
		r.Post("/aggregate", s.handleAPIAggregate)
		r.Post("/analyze", s.handleAPIAnalyze)
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		NotFoundError("Pagina non trovata").Write(w)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		ErrorResponse(http.StatusMethodNotAllowed, "Metodo non consentito").Write(w)
	})
	return r
}

// Shutdown gracefully shuts down the server and the rate limiter.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.limiter.Stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.templates == nil {
		http.Error(w, "templates not loaded", http.StatusServiceUnavailable)
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}
