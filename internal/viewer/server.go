package viewer

import (
	"context"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"strings"
	"time"

	"embedview/internal/chart"
	"embedview/internal/embeddings"
	"embedview/internal/logging"
	"embedview/internal/metrics"
	"embedview/internal/version"
)

//go:embed static/index.html
var staticFS embed.FS

// DefaultLinkPrefix is where extracted resources are served.
const DefaultLinkPrefix = "/static/"

// Options configures a Server.
type Options struct {
	// Chart is passed to the transform. An empty LinkPrefix means
	// DefaultLinkPrefix.
	Chart chart.Options
	// Metrics, when set, instruments every handler.
	Metrics *metrics.Metrics
	// MountMetrics serves Metrics at /metrics on the viewer itself.
	MountMetrics bool
	Logger       *logging.Logger

	ReadHeaderTimeout time.Duration
	ShutdownTimeout   time.Duration
}

// Server serves one Session.
type Server struct {
	session *Session
	opts    Options
	log     *logging.Logger
	started time.Time
	handler http.Handler
}

// NewServer builds the viewer routes for session.
func NewServer(session *Session, opts Options) *Server {
	if opts.Logger == nil {
		opts.Logger = logging.Nop()
	}
	if opts.Chart.LinkPrefix == "" {
		opts.Chart.LinkPrefix = DefaultLinkPrefix
	}
	if opts.ReadHeaderTimeout == 0 {
		opts.ReadHeaderTimeout = 10 * time.Second
	}
	if opts.ShutdownTimeout == 0 {
		opts.ShutdownTimeout = 5 * time.Second
	}

	s := &Server{
		session: session,
		opts:    opts,
		log:     opts.Logger.With(map[string]interface{}{"session": session.ID}),
		started: time.Now(),
	}

	mux := http.NewServeMux()
	s.handle(mux, "GET /{$}", "index", http.HandlerFunc(s.handleIndex))
	s.handle(mux, "GET /static/", "static", http.StripPrefix("/static/", noDirListing(http.FileServer(http.Dir(session.Dir)))))
	s.handle(mux, "GET /data.js", "data", http.HandlerFunc(s.handleData))
	s.handle(mux, "GET /healthz", "healthz", http.HandlerFunc(s.handleHealth))
	if opts.Metrics != nil && opts.MountMetrics {
		mux.Handle("GET /metrics", opts.Metrics.Handler())
	}
	s.handler = s.logRequests(mux)
	return s
}

func (s *Server) handle(mux *http.ServeMux, pattern, name string, h http.Handler) {
	if s.opts.Metrics != nil {
		h = s.opts.Metrics.InstrumentHandler(name, h)
	}
	mux.Handle(pattern, h)
}

// Handler returns the root handler.
func (s *Server) Handler() http.Handler { return s.handler }

// Serve accepts connections on l until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) Serve(ctx context.Context, l net.Listener) error {
	server := &http.Server{
		Handler:           s.handler,
		ReadHeaderTimeout: s.opts.ReadHeaderTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Serve(l)
	}()
	s.log.Info("viewer listening", nil, map[string]interface{}{"addr": l.Addr().String()})

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.opts.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("viewer shutdown: %w", err)
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	s.log.Info("viewer stopped", nil)
	return nil
}

// ListenAndServe listens on addr and calls Serve.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	l, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", addr, err)
	}
	return s.Serve(ctx, l)
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	page, err := staticFS.ReadFile("static/index.html")
	if err != nil {
		s.log.Error("index page missing", err, nil)
		writeJSONError(w, http.StatusInternalServerError, "index page missing")
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write(page)
}

// ChartData converts the session's meta.json with the server's options.
func (s *Server) ChartData() (chart.Charts, error) {
	start := time.Now()
	doc, err := embeddings.Load(s.session.MetaPath())
	var charts chart.Charts
	if err == nil {
		charts, err = chart.Convert(doc, s.opts.Chart)
	}
	if s.opts.Metrics != nil {
		s.opts.Metrics.ObserveTransform(time.Since(start), errorKind(err))
	}
	return charts, err
}

func (s *Server) handleData(w http.ResponseWriter, r *http.Request) {
	charts, err := s.ChartData()
	if err != nil {
		s.log.Error("transform failed", err, map[string]interface{}{"kind": errorKind(err)})
		writeJSONError(w, http.StatusInternalServerError, "failed to build chart data")
		return
	}

	script, err := EncodeScript(charts)
	if err != nil {
		s.log.Error("encode chart data", err, nil)
		writeJSONError(w, http.StatusInternalServerError, "failed to encode chart data")
		return
	}

	w.Header().Set("Content-Type", "application/javascript")
	w.Header().Set("Cache-Control", "no-store")
	w.Write(script)
}

// EncodeScript renders charts as the chartData global read by the index page.
func EncodeScript(charts chart.Charts) ([]byte, error) {
	data, err := json.Marshal(charts)
	if err != nil {
		return nil, err
	}
	return []byte(fmt.Sprintf("var chartData = %s;", data)), nil
}

// HealthResponse is the /healthz body.
type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
	Session string `json:"session"`
	Groups  int    `json:"groups"`
	Points  int    `json:"points"`
	Uptime  string `json:"uptime"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := "healthy"
	code := http.StatusOK
	if _, err := os.Stat(s.session.MetaPath()); err != nil {
		status = "degraded"
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, HealthResponse{
		Status:  status,
		Version: version.Info(),
		Session: s.session.ID,
		Groups:  s.session.Groups,
		Points:  s.session.Points,
		Uptime:  time.Since(s.started).Round(time.Second).String(),
	})
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		s.log.Debug("request", nil, map[string]interface{}{
			"method":   r.Method,
			"path":     r.URL.Path,
			"duration": time.Since(start).String(),
		})
	})
}

// noDirListing answers directory requests with 404 instead of an index.
func noDirListing(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "" || strings.HasSuffix(r.URL.Path, "/") {
			http.NotFound(w, r)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// errorKind labels a transform error for metrics.
func errorKind(err error) string {
	var fe *embeddings.FormatError
	var se *embeddings.SchemaError
	switch {
	case err == nil:
		return ""
	case errors.As(err, &fe):
		return "format"
	case errors.As(err, &se):
		return "schema"
	case errors.Is(err, os.ErrNotExist):
		return "missing"
	default:
		return "other"
	}
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeJSONError writes a JSON error response.
func writeJSONError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
