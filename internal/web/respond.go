package web

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"interact/internal/api"
	"interact/internal/logging"
)

// failurePrefix starts every error message returned to the browser.
const failurePrefix = "inSPIRE-Interact failed with error code: "

func (s *Server) writeJSON(w http.ResponseWriter, r *http.Request, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		logging.WarnWithContext(logging.WithContext(r.Context(), s.logger), "encode response failed", "http_response",
			logging.Error(err))
	}
}

func (s *Server) writeMessage(w http.ResponseWriter, r *http.Request, message string) {
	s.writeJSON(w, r, http.StatusOK, api.Message{Message: message})
}

// writeFailure logs err and reports it as a message reply.
func (s *Server) writeFailure(w http.ResponseWriter, r *http.Request, op string, err error) {
	logging.WarnWithContext(logging.WithContext(r.Context(), s.logger), "request failed", "http_failure",
		logging.String("operation", op),
		logging.String("path", r.URL.Path),
		logging.Error(err),
	)
	s.writeMessage(w, r, failurePrefix+err.Error())
}

func (s *Server) handleNotFound(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, r, http.StatusNotFound, api.Message{Message: "not found"})
}

func (s *Server) handleMethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, r, http.StatusMethodNotAllowed, api.Message{Message: "method not allowed"})
}

// projectRef is the body shared by the JSON actions that name a project.
type projectRef struct {
	User    string `json:"user"`
	Project string `json:"project"`
}

var errEmptyBody = errors.New("empty request body")

func decodeJSON(r *http.Request, dst any) error {
	if r.Body == nil || r.ContentLength == 0 {
		return errEmptyBody
	}
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return fmt.Errorf("decode request: %w", err)
	}
	return nil
}
