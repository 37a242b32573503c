// Package adminapi serves the plugin manager's query surface over HTTP.
//
// Routes:
//
//	GET    /health
//	GET    /plugins
//	GET    /plugins/{name}
//	POST   /plugins/{name}/load
//	POST   /plugins/{name}/unload
//	POST   /plugins/{name}/reload
//	GET    /plugins/{name}/metrics
//	DELETE /plugins/{name}/metrics
//	GET    /plugins/{name}/security
//	GET    /search?q=&translation=
//	GET    /metrics
package adminapi

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/dshills/versedeck/internal/plugin"
	"github.com/dshills/versedeck/internal/plugin/security"
)

// Plugins is the manager surface the API drives.
type Plugins interface {
	Statuses() []plugin.Status
	Status(name string) (plugin.Status, error)
	Load(ctx context.Context, name string) error
	Unload(ctx context.Context, name string) error
	Reload(ctx context.Context, name string) error
	Metrics(name string) plugin.Metrics
	ResetMetrics(name string)
}

// Searcher runs verse searches across search plugins.
type Searcher interface {
	Search(ctx context.Context, query, translation string) ([]plugin.SearchResult, error)
}

// Permissions reports security decisions for a plugin.
type Permissions interface {
	Permissions(plugin string) []string
	IsTrusted(plugin string) bool
	IsBlocked(plugin string) bool
	Violations(plugin string) []security.Violation
}

// Server is the admin HTTP API.
type Server struct {
	plugins  Plugins
	search   Searcher
	perms    Permissions
	gatherer prometheus.Gatherer
	log      *logrus.Logger
	router   *mux.Router
}

// Option configures a Server.
type Option func(*Server)

// WithSearch enables GET /search.
func WithSearch(s Searcher) Option {
	return func(srv *Server) { srv.search = s }
}

// WithPermissions enables GET /plugins/{name}/security.
func WithPermissions(p Permissions) Option {
	return func(srv *Server) { srv.perms = p }
}

// WithGatherer serves g on /metrics. Without it the default gatherer is used.
func WithGatherer(g prometheus.Gatherer) Option {
	return func(srv *Server) { srv.gatherer = g }
}

// WithLogger sets the request logger.
func WithLogger(log *logrus.Logger) Option {
	return func(srv *Server) { srv.log = log }
}

// New creates a Server over plugins.
func New(plugins Plugins, opts ...Option) *Server {
	s := &Server{
		plugins:  plugins,
		gatherer: prometheus.DefaultGatherer,
		router:   mux.NewRouter(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.log == nil {
		s.log = logrus.New()
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.router.Use(s.recoveryMiddleware, s.loggingMiddleware)

	s.router.HandleFunc("/health", s.health).Methods(http.MethodGet)

	s.router.HandleFunc("/plugins", s.listPlugins).Methods(http.MethodGet)
	s.router.HandleFunc("/plugins/{name}", s.getPlugin).Methods(http.MethodGet)
	s.router.HandleFunc("/plugins/{name}/load", s.loadPlugin).Methods(http.MethodPost)
	s.router.HandleFunc("/plugins/{name}/unload", s.unloadPlugin).Methods(http.MethodPost)
	s.router.HandleFunc("/plugins/{name}/reload", s.reloadPlugin).Methods(http.MethodPost)
	s.router.HandleFunc("/plugins/{name}/metrics", s.getMetrics).Methods(http.MethodGet)
	s.router.HandleFunc("/plugins/{name}/metrics", s.resetMetrics).Methods(http.MethodDelete)

	if s.perms != nil {
		s.router.HandleFunc("/plugins/{name}/security", s.getSecurity).Methods(http.MethodGet)
	}
	if s.search != nil {
		s.router.HandleFunc("/search", s.searchVerses).Methods(http.MethodGet)
	}

	s.router.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{})).Methods(http.MethodGet)
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Serve accepts connections on l until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) Serve(ctx context.Context, l net.Listener) error {
	srv := &http.Server{
		Handler:           s,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Serve(l)
	}()
	s.log.WithField("addr", l.Addr().String()).Info("admin API listening")

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// ListenAndServe listens on addr and calls Serve.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	l, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, l)
}
