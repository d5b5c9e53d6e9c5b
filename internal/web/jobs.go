package web

import (
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strconv"

	"github.com/gorilla/mux"

	"interact/internal/api"
	"interact/internal/logs"
	"interact/internal/pipeline"
	"interact/internal/services"
)

const defaultLogLines = 100

func (s *Server) handleRun(w http.ResponseWriter, r *http.Request) {
	var req pipeline.RunRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeFailure(w, r, "run", err)
		return
	}
	sub, err := s.runner.Submit(r.Context(), req)
	switch {
	case errors.Is(err, pipeline.ErrAlreadyRunning):
		s.writeMessage(w, r, "Task is already running. Check status at "+sub.StatusURL)
	case errors.Is(err, pipeline.ErrAlreadyQueued):
		s.writeMessage(w, r, "Task is already queued. Check status at "+sub.StatusURL)
	case err != nil:
		s.writeFailure(w, r, "run", err)
	default:
		s.writeMessage(w, r, sub.StatusURL)
	}
}

func (s *Server) handleCancel(w http.ResponseWriter, r *http.Request) {
	var ref projectRef
	if err := decodeJSON(r, &ref); err != nil {
		s.writeFailure(w, r, "cancel", err)
		return
	}
	msg, err := s.runner.Cancel(r.Context(), ref.User, ref.Project, 0)
	if err != nil {
		s.writeFailure(w, r, "cancel", err)
		return
	}
	s.writeMessage(w, r, msg)
}

func (s *Server) handleClearQueue(w http.ResponseWriter, r *http.Request) {
	cancelled, err := s.runner.ClearQueue(r.Context())
	if err != nil {
		s.writeFailure(w, r, "clear queue", err)
		return
	}
	s.writeMessage(w, r, fmt.Sprintf("Queue cleared. %d job(s) cancelled.", cancelled))
}

func (s *Server) handleAPIQueue(w http.ResponseWriter, r *http.Request) {
	entries, err := s.store.List(r.Context())
	if err != nil {
		s.writeFailure(w, r, "list queue", err)
		return
	}
	s.writeJSON(w, r, http.StatusOK, api.QueueListResponse{Items: api.FromQueueEntries(entries)})
}

func (s *Server) handleAPIStatus(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	home, err := s.projectHome(vars["user"], vars["project"])
	if err != nil {
		s.writeFailure(w, r, "status", err)
		return
	}
	if info, err := os.Stat(home); err != nil || !info.IsDir() {
		s.handleNotFound(w, r)
		return
	}
	snap, err := s.coordinator.Snapshot(r.Context(), vars["user"], vars["project"])
	if err != nil {
		s.writeFailure(w, r, "status", err)
		return
	}
	s.writeJSON(w, r, http.StatusOK, api.FromSnapshot(snap))
}

// handleAPILog returns job log lines. Without ?offset the last ?limit lines
// are returned; clients pass the returned offset back to poll for more.
func (s *Server) handleAPILog(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	home, err := s.projectHome(vars["user"], vars["project"])
	if err != nil {
		s.writeFailure(w, r, "log", err)
		return
	}
	if info, err := os.Stat(home); err != nil || !info.IsDir() {
		s.handleNotFound(w, r)
		return
	}
	opts := logs.Options{Offset: -1, Limit: defaultLogLines}
	query := r.URL.Query()
	if v := query.Get("offset"); v != "" {
		if opts.Offset, err = strconv.ParseInt(v, 10, 64); err != nil || opts.Offset < 0 {
			s.writeFailure(w, r, "log", services.Wrap(services.ErrValidation, "web", "log", fmt.Sprintf("invalid offset %q", v), nil))
			return
		}
	}
	if v := query.Get("limit"); v != "" {
		if opts.Limit, err = strconv.Atoi(v); err != nil || opts.Limit < 0 {
			s.writeFailure(w, r, "log", services.Wrap(services.ErrValidation, "web", "log", fmt.Sprintf("invalid limit %q", v), nil))
			return
		}
	}
	chunk, err := logs.Tail(r.Context(), filepath.Join(home, pipeline.LogFileName), opts)
	if err != nil {
		s.writeFailure(w, r, "log", err)
		return
	}
	if chunk.Lines == nil {
		chunk.Lines = []string{}
	}
	s.writeJSON(w, r, http.StatusOK, chunk)
}
