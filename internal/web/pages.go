package web

import (
	"bytes"
	"errors"
	"html/template"
	"io/fs"
	"net/http"
	"os"
	"path/filepath"
	"sort"

	"github.com/gorilla/mux"

	"interact/internal/liveness"
	"interact/internal/logging"
	"interact/internal/pipeline"
	"interact/internal/workflow"
)

// sitePages are the pages reachable through /interact-page.
var sitePages = map[string]bool{
	"home":              true,
	"about":             true,
	"contact":           true,
	"faq":               true,
	"references":        true,
	"view-queue":        true,
	"project":           true,
	"ms":                true,
	"search":            true,
	"proteome":          true,
	"proteome-standard": true,
	"proteome-pathogen": true,
	"parameters":        true,
}

// resultImages are embedded into the ready page when the pipeline drew them.
// Only the first existing file of each group is shown.
var resultImages = [][]string{
	{"psm_fdr_curve.svg"},
	{"epitope_bar_plot.svg"},
	{"peptide_volcano.svg", "norm_correlation.svg"},
}

type pageData struct {
	ServerAddress  string
	BaseURL        string
	Mode           string
	FileserverName string
	User           string
	Project        string
	Variant        string
	Users          []string
	ProgressTable  template.HTML
	QueueTable     template.HTML
	CurrentStage   string
	SelectVisible  bool
	Images         []template.HTML
}

func (s *Server) baseData() pageData {
	return pageData{
		ServerAddress:  s.cfg.Server.ServerAddress,
		BaseURL:        s.cfg.BaseURL(),
		Mode:           s.cfg.Server.Mode,
		FileserverName: s.cfg.Server.FileserverName,
	}
}

func (s *Server) render(w http.ResponseWriter, r *http.Request, name string, data pageData) {
	var buf bytes.Buffer
	if err := s.pages.ExecuteTemplate(&buf, name+".html", data); err != nil {
		logging.ErrorWithContext(logging.WithContext(r.Context(), s.logger), "render page failed", "http_render",
			logging.String("page", name), logging.Error(err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = buf.WriteTo(w)
}

func (s *Server) handleLanding(w http.ResponseWriter, r *http.Request) {
	data := s.baseData()
	entries, err := os.ReadDir(s.cfg.ProjectsDir())
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		s.writeFailure(w, r, "landing", err)
		return
	}
	for _, e := range entries {
		if e.IsDir() {
			data.Users = append(data.Users, e.Name())
		}
	}
	sort.Strings(data.Users)
	s.render(w, r, "index", data)
}

func (s *Server) handleHome(w http.ResponseWriter, r *http.Request) {
	s.render(w, r, "home", s.baseData())
}

func (s *Server) handlePage(w http.ResponseWriter, r *http.Request) {
	page := mux.Vars(r)["page"]
	if !sitePages[page] {
		s.handleNotFound(w, r)
		return
	}
	data := s.baseData()
	if page == "view-queue" {
		entries, err := s.store.List(r.Context())
		if err != nil {
			s.writeFailure(w, r, "view queue", err)
			return
		}
		data.QueueTable = queueTable(entries)
	}
	s.render(w, r, page, data)
}

func (s *Server) handleProjectPage(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	page := vars["page"]
	home, err := s.projectHome(vars["user"], vars["project"])
	if err != nil {
		s.writeFailure(w, r, "project page", err)
		return
	}
	data := s.baseData()
	data.User, data.Project = vars["user"], vars["project"]

	meta, err := readMetadata(pipeline.MetadataPath(home, "core"))
	if err != nil {
		s.writeFailure(w, r, "project page", err)
		return
	}
	if variant, ok := meta["variant"].(string); ok && variant != "" {
		data.Variant = variant
		if page == "proteome" {
			page += "-" + variant
		}
	}
	if !sitePages[page] {
		s.handleNotFound(w, r)
		return
	}
	s.render(w, r, page, data)
}

func (s *Server) handleStatusPage(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	if vars["workflow"] != liveness.KindInspire {
		s.handleNotFound(w, r)
		return
	}
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

	data := s.baseData()
	data.User, data.Project = snap.User, snap.Project
	data.SelectVisible = workflow.SelectVisible(home)
	data.ProgressTable = progressTable(snap.Tasks)
	if current, ok := snap.Current(); ok {
		data.CurrentStage = current.TaskName
	}

	switch snap.Phase {
	case workflow.PhaseRunning:
		s.render(w, r, "status-waiting", data)
	case workflow.PhaseQueued:
		data.QueueTable = queueTable(snap.Queue)
		s.render(w, r, "status-queued", data)
	case workflow.PhaseReady:
		data.Images = readImages(filepath.Join(home, pipeline.OutputDirName, "img"))
		s.render(w, r, "status-ready", data)
	case workflow.PhaseIdle:
		s.render(w, r, "status-idle", data)
	default:
		s.render(w, r, "status-failed", data)
	}
}

func readImages(dir string) []template.HTML {
	var out []template.HTML
	for _, group := range resultImages {
		for _, name := range group {
			data, err := os.ReadFile(filepath.Join(dir, name))
			if err != nil {
				continue
			}
			out = append(out, template.HTML(data))
			break
		}
	}
	return out
}
