package adminapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/dshills/versedeck/internal/plugin"
)

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind,omitempty"`
	Hint  string `json:"hint,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeErrorMessage(w http.ResponseWriter, status int, message, hint string) {
	writeJSON(w, status, ErrorResponse{Error: message, Hint: hint})
}

// writeError responds with err classified by statusFor. Plugin errors
// carry their kind and remediation hint.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	resp := ErrorResponse{Error: err.Error()}

	var perr *plugin.Error
	if errors.As(err, &perr) {
		resp.Kind = perr.Kind.String()
		resp.Hint = perr.Hint()
	}

	entry := s.log.WithError(err).WithField("path", r.URL.Path)
	if status >= http.StatusInternalServerError {
		entry.Error("admin request failed")
	} else {
		entry.Debug("admin request rejected")
	}
	writeJSON(w, status, resp)
}
