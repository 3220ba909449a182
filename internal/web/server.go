package web

import (
	"context"
	"embed"
	"errors"
	"html/template"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/vbonduro/containerlog/internal/domain"
	"github.com/vbonduro/containerlog/internal/format"
	"github.com/vbonduro/containerlog/internal/service"
)

type Server struct {
	service   *service.ContainerService
	templates embed.FS
	format    format.Formatter
	mux       *http.ServeMux
	tmplFuncs template.FuncMap
	logger    *slog.Logger
}

func NewServer(svc *service.ContainerService, tmpl embed.FS, f format.Formatter, logger *slog.Logger) *Server {
	s := &Server{
		service:   svc,
		templates: tmpl,
		format:    f,
		mux:       http.NewServeMux(),
		logger:    logger,
		tmplFuncs: template.FuncMap{
			"join":          strings.Join,
			"containerPath": containerPath,
			"statuses":      func() []domain.Status { return domain.Statuses },
		},
	}
	s.registerRoutes()
	return s
}

func (s *Server) registerRoutes() {
	s.mux.HandleFunc("GET /{$}", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/containers", http.StatusSeeOther)
	})
	s.mux.HandleFunc("GET /containers", s.handleListContainers)
	s.mux.HandleFunc("GET /containers/stream", s.handleStreamContainers)
	s.mux.HandleFunc("POST /containers", s.handleCreateContainer)
	s.mux.HandleFunc("POST /containers/{id}/start", s.handleStartContainer)
	s.mux.HandleFunc("POST /containers/{id}/finish", s.handleFinishContainer)
	s.mux.HandleFunc("GET /container/{number}", s.handleGetContainer)
	s.mux.HandleFunc("GET /container/{number}/edit", s.handleEditContainer)
	s.mux.HandleFunc("POST /container/{number}", s.handleSaveContainer)
	s.mux.HandleFunc("GET /container/{number}/delete", s.handleConfirmDelete)
	s.mux.HandleFunc("DELETE /container/{number}", s.handleDeleteContainer)
	s.mux.HandleFunc("GET /crew", s.handleListCrew)
	s.mux.HandleFunc("GET /crew/select", s.handleCrewSelect)
	s.mux.Handle("GET /metrics", promhttp.Handler())
}

// securityHeaders adds defensive HTTP response headers to every response.
func securityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("X-Content-Type-Options", "nosniff")
		h.Set("X-Frame-Options", "DENY")
		h.Set("Referrer-Policy", "strict-origin-when-cross-origin")
		h.Set("Content-Security-Policy",
			"default-src 'self'; "+
				"script-src 'self' 'unsafe-inline' https://unpkg.com; "+
				"style-src 'self' 'unsafe-inline'; "+
				"connect-src 'self'")
		next.ServeHTTP(w, r)
	})
}

// statusRecorder wraps http.ResponseWriter to capture the written status code.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// Unwrap lets http.ResponseController reach the underlying writer for
// flushing and deadlines.
func (r *statusRecorder) Unwrap() http.ResponseWriter {
	return r.ResponseWriter
}

func requestLogger(logger *slog.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		logger.Info("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"duration_ms", time.Since(start).Milliseconds(),
		)
	})
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	requestLogger(s.logger, securityHeaders(s.mux)).ServeHTTP(w, r)
}

// Run serves on addr until ctx is cancelled, then shuts down. Request
// contexts derive from ctx so live streams end with it.
func (s *Server) Run(ctx context.Context, addr string) error {
	s.logger.Info("starting server", "addr", addr)
	srv := &http.Server{
		Addr:         addr,
		Handler:      s,
		ReadTimeout:  60 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  120 * time.Second,
		BaseContext:  func(net.Listener) context.Context { return ctx },
	}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	s.logger.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// renderPage parses and executes a full-page template set.
func (s *Server) renderPage(w http.ResponseWriter, status int, data any, files ...string) error {
	return s.renderPartial(w, status, "base", data, files...)
}

// renderPartial parses files and executes the template defined as name.
func (s *Server) renderPartial(w http.ResponseWriter, status int, name string, data any, files ...string) error {
	tmpl, err := s.parse(files...)
	if err != nil {
		http.Error(w, "template error", http.StatusInternalServerError)
		return err
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	return tmpl.ExecuteTemplate(w, name, data)
}

func (s *Server) parse(files ...string) (*template.Template, error) {
	return template.New("").Funcs(s.tmplFuncs).ParseFS(s.templates, files...)
}

// containerPath is the detail page address of a container number.
func containerPath(number string) string {
	return "/container/" + url.PathEscape(number)
}
