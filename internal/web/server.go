package web

import (
	"embed"
	"fmt"
	"html/template"
	"io/fs"
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"

	"interact/internal/config"
	"interact/internal/logging"
	"interact/internal/pipeline"
	"interact/internal/queue"
	"interact/internal/workflow"
)

//go:embed templates/*.html
var templateFS embed.FS

//go:embed static
var staticFS embed.FS

// maxUploadMemory bounds the part of a multipart upload held in memory; the
// rest spills to temporary files.
const maxUploadMemory = 64 << 20

// Server holds the dependencies shared by every handler.
type Server struct {
	cfg         *config.Config
	store       queue.Store
	runner      *pipeline.Runner
	coordinator *workflow.Coordinator
	logger      *slog.Logger
	pages       *template.Template
}

// New builds a Server and parses its page templates.
func New(cfg *config.Config, store queue.Store, runner *pipeline.Runner, coordinator *workflow.Coordinator, logger *slog.Logger) (*Server, error) {
	if cfg == nil || store == nil || runner == nil || coordinator == nil {
		return nil, fmt.Errorf("web server requires config, store, runner and coordinator")
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	pages, err := template.New("pages").ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("parse templates: %w", err)
	}
	return &Server{
		cfg:         cfg,
		store:       store,
		runner:      runner,
		coordinator: coordinator,
		logger:      logging.NewComponentLogger(logger, "web"),
		pages:       pages,
	}, nil
}

// Handler returns the routed handler wrapped in the standard middleware.
func (s *Server) Handler() http.Handler {
	r := mux.NewRouter()
	r.NotFoundHandler = http.HandlerFunc(s.handleNotFound)
	r.MethodNotAllowedHandler = http.HandlerFunc(s.handleMethodNotAllowed)

	static, _ := fs.Sub(staticFS, "static")
	r.PathPrefix("/static/").Handler(http.StripPrefix("/static/", http.FileServer(http.FS(static)))).Methods(http.MethodGet)

	r.HandleFunc("/interact", s.handleLanding).Methods(http.MethodGet)
	r.HandleFunc("/interact-home", s.handleHome).Methods(http.MethodGet)
	r.HandleFunc("/interact-page/{page}", s.handlePage).Methods(http.MethodGet)
	r.HandleFunc("/interact-page/{page}/{user}/{project}", s.handleProjectPage).Methods(http.MethodGet)

	r.HandleFunc("/interact/user/{user}", s.handleUser).Methods(http.MethodGet)
	r.HandleFunc("/interact/project/{user}/{project}", s.handleCreateProject).Methods(http.MethodGet)
	r.HandleFunc("/interact/upload/{user}/{project}/{fileType}", s.handleUpload).Methods(http.MethodPost)
	r.HandleFunc("/interact/clearPattern/{fileType}", s.handleClearPattern).Methods(http.MethodPost)
	r.HandleFunc("/interact/checkPattern/{fileType}", s.handleCheckPattern).Methods(http.MethodPost)
	r.HandleFunc("/interact/metadata", s.handleSaveMetadata).Methods(http.MethodPost)
	r.HandleFunc("/interact/metadata/{user}/{project}/{metadataType}", s.handleGetMetadata).Methods(http.MethodGet)
	r.HandleFunc("/interact/delete", s.handleDelete).Methods(http.MethodPost)
	r.HandleFunc("/interact/download/{user}/{project}", s.handleDownload).Methods(http.MethodGet)

	r.HandleFunc("/interact/inspire", s.handleRun).Methods(http.MethodPost)
	r.HandleFunc("/interact/cancel", s.handleCancel).Methods(http.MethodPost)
	r.HandleFunc("/interact/clearQueue", s.handleClearQueue).Methods(http.MethodPost)
	r.HandleFunc("/interact/get_results/{user}/{project}/{workflow}", s.handleResults).Methods(http.MethodGet)
	// Registered last: the three-segment pattern would shadow the fixed
	// prefixes above.
	r.HandleFunc("/interact/{user}/{project}/{workflow}", s.handleStatusPage).Methods(http.MethodGet)

	r.HandleFunc("/api/queue", s.handleAPIQueue).Methods(http.MethodGet)
	r.HandleFunc("/api/status/{user}/{project}", s.handleAPIStatus).Methods(http.MethodGet)
	r.HandleFunc("/api/log/{user}/{project}", s.handleAPILog).Methods(http.MethodGet)

	r.Use(requestIDMiddleware, s.recoveryMiddleware, s.loggingMiddleware, corsMiddleware)
	return r
}
