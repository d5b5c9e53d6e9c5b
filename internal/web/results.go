package web

import (
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/gorilla/mux"

	"interact/internal/pipeline"
	"interact/internal/workflow"
)

// Result artefacts, relative to the pipeline output directory.
var resultFiles = map[string]string{
	"inspire":       "finalPsmAssignments.csv",
	"inspireSelect": filepath.Join("epitope", workflow.CandidatesFileName),
	"epitopePlots":  filepath.Join("epitope", "spectralPlots.pdf"),
}

var resultPages = map[string]string{
	"performance":   workflow.ReportFileName,
	"quantReport":   filepath.Join("quant", "inspire-quant-report.html"),
	"epitopeReport": filepath.Join("epitope", "inspire-epitope-report.html"),
}

func (s *Server) handleResults(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	user, project, name := vars["user"], vars["project"], vars["workflow"]
	home, err := s.projectHome(user, project)
	if err != nil {
		s.writeFailure(w, r, "results", err)
		return
	}
	output := filepath.Join(home, pipeline.OutputDirName)

	switch {
	case name == "inspireLog":
		s.sendFile(w, r, filepath.Join(home, pipeline.LogFileName))
	case name == "quantification":
		quant := filepath.Join(output, "quant")
		if info, err := os.Stat(quant); err != nil || !info.IsDir() {
			s.handleNotFound(w, r)
			return
		}
		archive := quant + ".zip"
		if err := writeZip(archive, quant); err != nil {
			s.writeFailure(w, r, "results", err)
			return
		}
		serveAttachment(w, r, archive)
	case resultFiles[name] != "":
		s.sendFile(w, r, filepath.Join(output, resultFiles[name]))
	case resultPages[name] != "":
		data, err := os.ReadFile(filepath.Join(output, resultPages[name]))
		if err != nil {
			s.handleNotFound(w, r)
			return
		}
		page := string(data)
		if name == "epitopeReport" {
			// The report links its plots by local path; point it at this server.
			page = strings.ReplaceAll(page,
				filepath.Join(output, resultFiles["epitopePlots"]),
				fmt.Sprintf("%s/interact/get_results/%s/%s/epitopePlots", s.cfg.BaseURL(), user, project),
			)
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte(page))
	default:
		w.WriteHeader(http.StatusOK)
	}
}

func (s *Server) sendFile(w http.ResponseWriter, r *http.Request, path string) {
	if info, err := os.Stat(path); err != nil || info.IsDir() {
		s.handleNotFound(w, r)
		return
	}
	serveAttachment(w, r, path)
}
