package adminapi

import (
	"context"
	"errors"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/dshills/versedeck/internal/plugin"
	"github.com/dshills/versedeck/internal/plugin/security"
)

// MetricsResponse is the body of GET /plugins/{name}/metrics.
type MetricsResponse struct {
	Plugin string `json:"plugin"`
	plugin.Metrics
	AverageMs float64 `json:"average_ms"`
}

// SecurityResponse is the body of GET /plugins/{name}/security.
type SecurityResponse struct {
	Plugin      string               `json:"plugin"`
	Permissions []string             `json:"permissions"`
	Trusted     bool                 `json:"trusted"`
	Blocked     bool                 `json:"blocked"`
	Violations  []security.Violation `json:"violations"`
}

// SearchResponse is the body of GET /search.
type SearchResponse struct {
	Query       string                `json:"query"`
	Translation string                `json:"translation,omitempty"`
	Results     []plugin.SearchResult `json:"results"`
}

func (s *Server) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) listPlugins(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.plugins.Statuses())
}

func (s *Server) getPlugin(w http.ResponseWriter, r *http.Request) {
	st, err := s.plugins.Status(mux.Vars(r)["name"])
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (s *Server) loadPlugin(w http.ResponseWriter, r *http.Request) {
	s.transition(w, r, s.plugins.Load)
}

func (s *Server) unloadPlugin(w http.ResponseWriter, r *http.Request) {
	s.transition(w, r, s.plugins.Unload)
}

func (s *Server) reloadPlugin(w http.ResponseWriter, r *http.Request) {
	s.transition(w, r, s.plugins.Reload)
}

// transition runs op on the named plugin and responds with its status.
func (s *Server) transition(w http.ResponseWriter, r *http.Request, op func(ctx context.Context, name string) error) {
	name := mux.Vars(r)["name"]
	if err := op(r.Context(), name); err != nil {
		s.writeError(w, r, err)
		return
	}
	st, err := s.plugins.Status(name)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (s *Server) getMetrics(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]
	m := s.plugins.Metrics(name)
	writeJSON(w, http.StatusOK, MetricsResponse{
		Plugin:    name,
		Metrics:   m,
		AverageMs: m.AverageExecutionTimeMs(),
	})
}

func (s *Server) resetMetrics(w http.ResponseWriter, r *http.Request) {
	s.plugins.ResetMetrics(mux.Vars(r)["name"])
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) getSecurity(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]
	violations := s.perms.Violations(name)
	if violations == nil {
		violations = []security.Violation{}
	}
	perms := s.perms.Permissions(name)
	if perms == nil {
		perms = []string{}
	}
	writeJSON(w, http.StatusOK, SecurityResponse{
		Plugin:      name,
		Permissions: perms,
		Trusted:     s.perms.IsTrusted(name),
		Blocked:     s.perms.IsBlocked(name),
		Violations:  violations,
	})
}

func (s *Server) searchVerses(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("q")
	if query == "" {
		writeErrorMessage(w, http.StatusBadRequest, "query parameter q is required", "")
		return
	}
	translation := r.URL.Query().Get("translation")

	results, err := s.search.Search(r.Context(), query, translation)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if results == nil {
		results = []plugin.SearchResult{}
	}
	writeJSON(w, http.StatusOK, SearchResponse{
		Query:       query,
		Translation: translation,
		Results:     results,
	})
}

// statusFor maps plugin errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, plugin.ErrPluginNotFound):
		return http.StatusNotFound
	case errors.Is(err, plugin.ErrBusy):
		return http.StatusConflict
	case errors.Is(err, plugin.ErrSecurity):
		return http.StatusForbidden
	case errors.Is(err, plugin.ErrDependency):
		return http.StatusFailedDependency
	case errors.Is(err, plugin.ErrLoad), errors.Is(err, plugin.ErrContract),
		errors.Is(err, plugin.ErrInitialization):
		return http.StatusUnprocessableEntity
	case errors.Is(err, plugin.ErrCallTimeout):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}
