package http

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"io/fs"
	"net/http"
	"sync"
	"time"

	"ledger/internal/core"
	"ledger/internal/log"
	"ledger/internal/middleware/ratelimit"
	"ledger/internal/middleware/security"
	"ledger/internal/middleware/trace"
	"ledger/internal/services"
	appweb "ledger/web"
)

// Pinger reports whether the backing database is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Options tune the middleware stack.
type Options struct {
	Logger             *log.Logger
	RateLimitPerMinute int
}

type Server struct {
	http.Server
	templates *template.Template
	ledger    *services.LedgerService
	pinger    Pinger
	logger    *log.Logger

	limiter  *ratelimit.Limiter
	detector *security.Detector
	tracer   *trace.Middleware

	started      time.Time
	now          func() time.Time
	shutdownOnce sync.Once
}

// NewServer configures routes, middleware and templates, returning a
// ready-to-run http.Server.
func NewServer(addr string, ledger *services.LedgerService, pinger Pinger, opts Options) (*Server, error) {
	logger := opts.Logger
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	logger = logger.WithComponent(log.ComponentHTTP)

	t, err := parseTemplates()
	if err != nil {
		return nil, err
	}

	limiterCfg := ratelimit.DefaultConfig()
	if opts.RateLimitPerMinute > 0 {
		limiterCfg.RequestsPerMinute = opts.RateLimitPerMinute
	}

	s := &Server{
		templates: t,
		ledger:    ledger,
		pinger:    pinger,
		logger:    logger,
		limiter:   ratelimit.NewLimiter(limiterCfg),
		detector:  security.NewDetector(),
		started:   time.Now(),
		now:       time.Now,
	}
	s.tracer = trace.NewMiddleware(logger, s.detector.ExtractClientIP)

	mux := http.NewServeMux()
	if err := s.routes(mux); err != nil {
		s.limiter.Stop()
		return nil, err
	}

	headers := security.NewHeadersMiddleware(security.DefaultHeadersConfig())
	limit := s.limiter.Middleware(s.detector.ExtractClientIP, s.onRateLimited)

	s.Server = http.Server{
		Addr:              addr,
		Handler:           s.tracer.Middleware(headers.Middleware(s.detector.Middleware(limit(mux)))),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
		MaxHeaderBytes:    1 << 16,
	}
	return s, nil
}

func (s *Server) routes(mux *http.ServeMux) error {
	static, err := fs.Sub(appweb.StaticFS, "static")
	if err != nil {
		return fmt.Errorf("mount static assets: %w", err)
	}
	mux.Handle("GET /static/", security.StaticAssetMiddleware(3600)(
		http.StripPrefix("/static/", http.FileServer(http.FS(static)))))

	mux.HandleFunc("GET /{$}", s.handleIndex)
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)

	mux.HandleFunc("POST /accounts", s.handleCreateAccount)
	mux.HandleFunc("POST /accounts/{id}/rename", s.accountHandler(log.OpRename, false,
		func(ctx context.Context, id int64, r *http.Request) error {
			return s.ledger.RenameAccount(ctx, id, r.Form.Get("name"))
		}))
	mux.HandleFunc("POST /accounts/{id}/archive", s.accountHandler(log.OpArchive, true,
		func(ctx context.Context, id int64, _ *http.Request) error {
			return s.ledger.ArchiveAccount(ctx, id)
		}))
	mux.HandleFunc("POST /accounts/{id}/restore", s.accountHandler(log.OpRestore, false,
		func(ctx context.Context, id int64, _ *http.Request) error {
			return s.ledger.RestoreAccount(ctx, id)
		}))
	mux.HandleFunc("POST /accounts/{id}/delete", s.accountHandler(log.OpDelete, true,
		func(ctx context.Context, id int64, _ *http.Request) error {
			return s.ledger.DeleteAccount(ctx, id)
		}))

	mux.HandleFunc("POST /transactions", s.handleCreateTransaction)
	mux.HandleFunc("POST /transactions/{id}/delete", s.handleDeleteTransaction)

	mux.HandleFunc("GET /export.csv", s.handleExportCSV)
	mux.HandleFunc("GET /export.xlsx", s.handleExportXLSX)
	return nil
}

func parseTemplates() (*template.Template, error) {
	funcs := template.FuncMap{
		"cents": core.FormatCents,
	}
	t, err := template.New("ledger").Funcs(funcs).ParseFS(appweb.TemplatesFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("parse templates: %w", err)
	}
	return t, nil
}

func (s *Server) onRateLimited(w http.ResponseWriter, r *http.Request) {
	log.FromContext(r.Context()).WarnContext(r.Context(), "Rate limit exceeded",
		log.FieldComponent, log.ComponentRateLimit,
		log.FieldClientIP, s.detector.ExtractClientIP(r),
		log.FieldMethod, r.Method,
		log.FieldPath, r.URL.Path)
	ErrorResponse(http.StatusTooManyRequests, "Rate limit exceeded. Please try again later.").Write(w)
}

// Shutdown stops the rate limiter and gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.limiter.Stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}

// render executes a full-page template into a buffer so that a template
// failure can still produce a clean 500.
func (s *Server) render(w http.ResponseWriter, r *http.Request, name string, data any) {
	var buf bytes.Buffer
	if err := s.templates.ExecuteTemplate(&buf, name, data); err != nil {
		writeErrorFrom(w, r, fmt.Errorf("render %s: %w", name, err), log.ComponentTemplate, log.OpRender)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

// renderPartial writes the summary and the transactions table, the two
// fragments htmx swaps after a transaction write.
func (s *Server) renderPartial(w http.ResponseWriter, r *http.Request, data pageData, resp *HTMXResponse) {
	var buf bytes.Buffer
	for _, name := range []string{"_summary.html", "_transactions_table.html"} {
		if err := s.templates.ExecuteTemplate(&buf, name, data); err != nil {
			writeErrorFrom(w, r, fmt.Errorf("render %s: %w", name, err), log.ComponentTemplate, log.OpRender)
			return
		}
	}
	resp.HTML(buf.Bytes()).Write(w)
}

// pageData is what the templates see.
type pageData struct {
	LedgerParams
	View  services.LedgerView
	Today string
}

func (s *Server) pageData(params LedgerParams, view services.LedgerView) pageData {
	params.AccountID = view.Account.ID
	return pageData{
		LedgerParams: params,
		View:         view,
		Today:        s.now().Format(core.DateLayout),
	}
}
