package http

import (
	"context"
	"net/http"
	"sync"
	"time"

	"ledger/internal/cache"
	"ledger/internal/core"
	"ledger/internal/ledger"
	"ledger/internal/log"
	"ledger/internal/middleware/auth"
	"ledger/internal/middleware/ratelimit"
	"ledger/internal/middleware/security"
	"ledger/internal/middleware/trace"
)

// Ledger is the dashboard surface the server presents.
type Ledger interface {
	Views() ledger.Views
	Transactions(state *ledger.ViewState) ([]core.Transaction, uint64)
	ListVersion() uint64
	Transaction(ctx context.Context, id string) (core.Transaction, error)
	NewTransaction() *ledger.EditSession
	EditTransaction(ctx context.Context, id string) (*ledger.EditSession, error)
	DeleteTransaction(ctx context.Context, id string) error
	SetChartRange(ctx context.Context, scope core.Scope) error
	ChartRange() core.Scope
	SetListRange(ctx context.Context, scope *core.Scope) error
	ListRange() *core.Scope
	Profile(ctx context.Context) (core.Profile, error)
	Watch(fn func(ledger.Update)) (cancel func())
}

// Options configures a Server.
type Options struct {
	Addr               string
	Location           *time.Location
	RateLimitPerMinute int
	// Ready probes the record store for /readyz. Nil means always ready.
	Ready  func(ctx context.Context) error
	Pages  *cache.ListPages
	Logger *log.Logger
	// Heartbeat is the interval of keep-alive comments on /api/stream.
	Heartbeat time.Duration
	// Auth guards /api/ when set.
	Auth *auth.TokenService
	// Report renders GET /api/report.pdf. Nil disables the route.
	Report ReportFunc
}

type Server struct {
	http.Server
	ledger    Ledger
	loc       *time.Location
	ready     func(ctx context.Context) error
	pages     *cache.ListPages
	limiter   *ratelimit.Limiter
	tracer    *trace.Middleware
	logger    *log.Logger
	heartbeat time.Duration
	report    ReportFunc

	// closed on shutdown so open event streams return
	done         chan struct{}
	shutdownOnce sync.Once
}

// NewServer configures routes and middleware, returning a ready-to-run server.
func NewServer(l Ledger, opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = log.Discard()
	}
	loc := opts.Location
	if loc == nil {
		loc = time.Local
	}
	pages := opts.Pages
	if pages == nil {
		pages = cache.NewListPages(cache.NewLRUCache[[]core.Transaction](100, 5*time.Minute))
	}
	heartbeat := opts.Heartbeat
	if heartbeat <= 0 {
		heartbeat = 25 * time.Second
	}
	clientIP := security.NewClientIP()

	s := &Server{
		ledger:    l,
		loc:       loc,
		ready:     opts.Ready,
		pages:     pages,
		limiter:   ratelimit.NewLimiter(ratelimit.Config{RequestsPerMinute: opts.RateLimitPerMinute}),
		tracer:    trace.NewMiddleware(logger, clientIP.Extract),
		logger:    logger.WithComponent(log.ComponentHTTP),
		heartbeat: heartbeat,
		report:    opts.Report,
		done:      make(chan struct{}),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)

	mux.HandleFunc("GET /api/views", s.handleViews)
	mux.HandleFunc("GET /api/transactions", s.handleListTransactions)
	mux.HandleFunc("POST /api/transactions", s.handleCreateTransaction)
	mux.HandleFunc("GET /api/transactions/{id}", s.handleGetTransaction)
	mux.HandleFunc("PUT /api/transactions/{id}", s.handleUpdateTransaction)
	mux.HandleFunc("DELETE /api/transactions/{id}", s.handleDeleteTransaction)
	mux.HandleFunc("GET /api/chart-range", s.handleGetChartRange)
	mux.HandleFunc("PUT /api/chart-range", s.handleSetChartRange)
	mux.HandleFunc("GET /api/list-range", s.handleGetListRange)
	mux.HandleFunc("PUT /api/list-range", s.handleSetListRange)
	mux.HandleFunc("DELETE /api/list-range", s.handleClearListRange)
	mux.HandleFunc("GET /api/categories", handleCategories)
	mux.HandleFunc("GET /api/profile", s.handleProfile)
	mux.HandleFunc("GET /api/stream", s.handleStream)
	if s.report != nil {
		mux.HandleFunc("GET /api/report.pdf", s.handleReport)
	}

	limited := s.limiter.Middleware(clientIP.Extract, s.onRateLimited,
		http.MethodPost, http.MethodPut, http.MethodDelete)

	var handler http.Handler = mux
	if opts.Auth != nil {
		handler = opts.Auth.Middleware("/api/", s.onUnauthorized)(handler)
	}
	handler = limited(handler)

	s.Server = http.Server{
		Addr:              opts.Addr,
		Handler:           s.tracer.Middleware(security.Headers(security.DefaultHeadersConfig())(handler)),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

func (s *Server) onRateLimited(w http.ResponseWriter, r *http.Request) {
	log.FromContext(r.Context()).WithComponent(log.ComponentRateLimit).WarnContext(r.Context(), "rate limit exceeded",
		log.FieldMethod, r.Method,
		log.FieldPath, r.URL.Path)
	NewJSONResponse().
		Status(http.StatusTooManyRequests).
		Body(ErrorBody{Error: "rate limit exceeded, try again later"}).
		Write(w)
}

func (s *Server) onUnauthorized(w http.ResponseWriter, r *http.Request, err error) {
	log.FromContext(r.Context()).WithComponent(log.ComponentAuth).WarnContext(r.Context(), "request rejected",
		log.FieldPath, r.URL.Path,
		log.FieldError, err)
	NewJSONResponse().
		Status(http.StatusUnauthorized).
		Body(ErrorBody{Error: "unauthorized"}).
		Write(w)
}

// Shutdown ends open event streams, stops the rate limiter and shuts the
// HTTP server down gracefully.
func (s *Server) Shutdown(ctx context.Context) error {
	var err error
	s.shutdownOnce.Do(func() {
		close(s.done)
		s.limiter.Stop()
		hits, misses := s.pages.Stats()
		s.logger.InfoContext(ctx, "http server shutting down",
			log.FieldOperation, log.OpShutdown,
			"requests", s.tracer.TotalRequests(),
			"rate_limited", s.limiter.Rejected(),
			"list_cache_hits", hits,
			"list_cache_misses", misses)
		err = s.Server.Shutdown(ctx)
	})
	return err
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.ready != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
		defer cancel()
		if err := s.ready(ctx); err != nil {
			log.FromContext(r.Context()).WarnContext(r.Context(), "readiness check failed", log.FieldError, err)
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte("not ready"))
			return
		}
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}
