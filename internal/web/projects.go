package web

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/gorilla/mux"
	"gopkg.in/yaml.v3"

	"interact/internal/api"
	"interact/internal/fileutil"
	"interact/internal/logging"
	"interact/internal/pipeline"
	"interact/internal/services"
	"interact/internal/textutil"
)

const (
	fileTypeProteome       = pipeline.ProteomeDirName
	fileTypeProteomeSelect = pipeline.ProteomeSelectName
	fileTypeSearch         = pipeline.SearchDirName
)

func (s *Server) userHome(user string) (string, error) {
	if err := textutil.ValidateSegment("user", user); err != nil {
		return "", services.Wrap(services.ErrValidation, "web", "resolve user", "", err)
	}
	return filepath.Join(s.cfg.ProjectsDir(), user), nil
}

func (s *Server) projectHome(user, project string) (string, error) {
	if _, err := s.userHome(user); err != nil {
		return "", err
	}
	if err := textutil.ValidateSegment("project", project); err != nil {
		return "", services.Wrap(services.ErrValidation, "web", "resolve project", "", err)
	}
	return s.cfg.ProjectHome(user, project), nil
}

// projectDir resolves a subdirectory of a project named by the request.
func (s *Server) projectDir(user, project, fileType string) (string, error) {
	home, err := s.projectHome(user, project)
	if err != nil {
		return "", err
	}
	if err := textutil.ValidateSegment("file type", fileType); err != nil {
		return "", services.Wrap(services.ErrValidation, "web", "resolve directory", "", err)
	}
	return filepath.Join(home, fileType), nil
}

func (s *Server) handleUser(w http.ResponseWriter, r *http.Request) {
	home, err := s.userHome(mux.Vars(r)["user"])
	if err != nil {
		s.writeFailure(w, r, "user", err)
		return
	}
	entries, err := os.ReadDir(home)
	if errors.Is(err, fs.ErrNotExist) {
		if err := os.MkdirAll(home, 0o755); err != nil {
			s.writeFailure(w, r, "user", err)
			return
		}
		s.writeJSON(w, r, http.StatusOK, api.ListMessage{Message: []string{}})
		return
	}
	if err != nil {
		s.writeFailure(w, r, "user", err)
		return
	}
	projects := make([]string, 0, len(entries))
	for _, e := range entries {
		if strings.HasSuffix(e.Name(), ".tar") {
			continue
		}
		projects = append(projects, e.Name())
	}
	s.writeJSON(w, r, http.StatusOK, api.ListMessage{Message: projects})
}

func (s *Server) handleCreateProject(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	home, err := s.projectHome(vars["user"], vars["project"])
	if err != nil {
		s.writeFailure(w, r, "create project", err)
		return
	}
	if err := os.MkdirAll(home, 0o755); err != nil {
		s.writeFailure(w, r, "create project", err)
		return
	}
	s.writeMessage(w, r, "Ok")
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	fileType := vars["fileType"]
	dir, err := s.projectDir(vars["user"], vars["project"], fileType)
	if err != nil {
		s.writeFailure(w, r, "upload", err)
		return
	}
	if info, err := os.Stat(filepath.Dir(dir)); err != nil || !info.IsDir() {
		s.writeFailure(w, r, "upload", services.Wrap(services.ErrNotFound, "web", "upload", "project does not exist", err))
		return
	}
	if err := r.ParseMultipartForm(maxUploadMemory); err != nil {
		s.writeFailure(w, r, "upload", fmt.Errorf("parse upload: %w", err))
		return
	}
	defer r.MultipartForm.RemoveAll()
	files := r.MultipartForm.File["files"]
	if len(files) == 0 {
		s.writeFailure(w, r, "upload", services.Wrap(services.ErrValidation, "web", "upload", "no files in upload", nil))
		return
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		s.writeFailure(w, r, "upload", err)
		return
	}
	if err := storeUpload(dir, fileType, files); err != nil {
		s.writeFailure(w, r, "upload", err)
		return
	}
	s.writeMessage(w, r, "Ok")
}

// storeUpload saves files into dir under the naming rules for fileType.
func storeUpload(dir, fileType string, files []*multipart.FileHeader) error {
	switch fileType {
	case fileTypeProteome:
		return saveUpload(files[0], filepath.Join(dir, "proteome_"+uploadName(files[0])))
	case fileTypeProteomeSelect:
		if len(files) < 2 {
			return services.Wrap(services.ErrValidation, "web", "upload", "host and pathogen proteomes are both required", nil)
		}
		host := filepath.Join(dir, "host_"+uploadName(files[0]))
		pathogen := filepath.Join(dir, "pathogen_"+uploadName(files[1]))
		if err := saveUpload(files[0], host); err != nil {
			return err
		}
		if err := saveUpload(files[1], pathogen); err != nil {
			return err
		}
		return concatFiles(filepath.Join(dir, pipeline.CombinedProteome), host, pathogen)
	case fileTypeSearch:
		for i, fh := range files {
			name := strconv.Itoa(i+1) + "_" + textutil.UnderscoreSpaces(uploadName(fh))
			if err := saveUpload(fh, filepath.Join(dir, name)); err != nil {
				return err
			}
		}
		return nil
	default:
		for _, fh := range files {
			if err := saveUpload(fh, filepath.Join(dir, uploadName(fh))); err != nil {
				return err
			}
		}
		return nil
	}
}

func uploadName(fh *multipart.FileHeader) string {
	name := textutil.SanitizeFileName(filepath.Base(fh.Filename))
	if name == "" {
		return "upload"
	}
	return name
}

func saveUpload(fh *multipart.FileHeader, dst string) error {
	src, err := fh.Open()
	if err != nil {
		return fmt.Errorf("open upload %s: %w", fh.Filename, err)
	}
	defer src.Close()
	out, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("create %s: %w", filepath.Base(dst), err)
	}
	if _, err := io.Copy(out, src); err != nil {
		_ = out.Close()
		return fmt.Errorf("write %s: %w", filepath.Base(dst), err)
	}
	return out.Close()
}

func concatFiles(dst string, srcs ...string) error {
	var buf bytes.Buffer
	for _, src := range srcs {
		data, err := os.ReadFile(src)
		if err != nil {
			return fmt.Errorf("read %s: %w", filepath.Base(src), err)
		}
		buf.Write(data)
	}
	return fileutil.AtomicWrite(dst, buf.Bytes(), 0o644)
}

func (s *Server) handleClearPattern(w http.ResponseWriter, r *http.Request) {
	var ref projectRef
	if err := decodeJSON(r, &ref); err != nil {
		s.writeFailure(w, r, "clear pattern", err)
		return
	}
	dir, err := s.projectDir(ref.User, ref.Project, mux.Vars(r)["fileType"])
	if err != nil {
		s.writeFailure(w, r, "clear pattern", err)
		return
	}
	entries, err := os.ReadDir(dir)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		s.writeFailure(w, r, "clear pattern", err)
		return
	}
	for _, e := range entries {
		if err := os.RemoveAll(filepath.Join(dir, e.Name())); err != nil {
			s.writeFailure(w, r, "clear pattern", err)
			return
		}
	}
	remaining, err := listNames(dir)
	if err != nil {
		s.writeFailure(w, r, "clear pattern", err)
		return
	}
	s.writeJSON(w, r, http.StatusOK, api.ListMessage{Message: remaining})
}

func (s *Server) handleCheckPattern(w http.ResponseWriter, r *http.Request) {
	var ref projectRef
	if err := decodeJSON(r, &ref); err != nil {
		s.writeFailure(w, r, "check pattern", err)
		return
	}
	fileType := mux.Vars(r)["fileType"]
	dir, err := s.projectDir(ref.User, ref.Project, fileType)
	if err != nil {
		s.writeFailure(w, r, "check pattern", err)
		return
	}
	listPath := filepath.Join(filepath.Dir(dir), fileType+"_file_list.txt")
	if err := os.Remove(listPath); err != nil && !errors.Is(err, fs.ErrNotExist) {
		s.writeFailure(w, r, "check pattern", err)
		return
	}
	if _, err := os.Stat(dir); errors.Is(err, fs.ErrNotExist) {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			s.writeFailure(w, r, "check pattern", err)
			return
		}
		s.writeJSON(w, r, http.StatusOK, api.ListMessage{Message: []string{}})
		return
	}
	names, err := listNames(dir)
	if err != nil {
		s.writeFailure(w, r, "check pattern", err)
		return
	}
	var listing strings.Builder
	for _, name := range names {
		listing.WriteString(name)
		listing.WriteByte('\n')
	}
	if err := fileutil.AtomicWrite(listPath, []byte(listing.String()), 0o644); err != nil {
		s.writeFailure(w, r, "check pattern", err)
		return
	}
	s.writeJSON(w, r, http.StatusOK, api.ListMessage{Message: names})
}

// listNames returns the sorted entry names of dir; a missing dir is empty.
func listNames(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if errors.Is(err, fs.ErrNotExist) {
		return []string{}, nil
	}
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	sort.Strings(names)
	return names, nil
}

func (s *Server) handleSaveMetadata(w http.ResponseWriter, r *http.Request) {
	body := map[string]any{}
	if err := decodeJSON(r, &body); err != nil {
		s.writeFailure(w, r, "save metadata", err)
		return
	}
	user, _ := body["user"].(string)
	project, _ := body["project"].(string)
	kind, _ := body["metadata_type"].(string)
	delete(body, "user")
	delete(body, "project")
	delete(body, "metadata_type")

	home, err := s.projectHome(user, project)
	if err == nil {
		err = textutil.ValidateSegment("metadata type", kind)
	}
	if err != nil {
		s.writeFailure(w, r, "save metadata", err)
		return
	}
	data, err := yaml.Marshal(body)
	if err != nil {
		s.writeFailure(w, r, "save metadata", err)
		return
	}
	if err := fileutil.AtomicWrite(pipeline.MetadataPath(home, kind), data, 0o644); err != nil {
		s.writeFailure(w, r, "save metadata", err)
		return
	}
	s.writeMessage(w, r, "Ok")
}

func (s *Server) handleGetMetadata(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	home, err := s.projectHome(vars["user"], vars["project"])
	if err == nil {
		err = textutil.ValidateSegment("metadata type", vars["metadataType"])
	}
	if err != nil {
		s.writeFailure(w, r, "read metadata", err)
		return
	}
	meta, err := readMetadata(pipeline.MetadataPath(home, vars["metadataType"]))
	if err != nil {
		s.writeFailure(w, r, "read metadata", err)
		return
	}
	s.writeJSON(w, r, http.StatusOK, api.MetadataMessage{Message: meta})
}

// readMetadata loads a metadata YAML file; a missing file is empty.
func readMetadata(path string) (map[string]any, error) {
	meta := map[string]any{}
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return meta, nil
	}
	if err != nil {
		return nil, err
	}
	if err := yaml.Unmarshal(data, &meta); err != nil {
		return nil, fmt.Errorf("parse %s: %w", filepath.Base(path), err)
	}
	if meta == nil {
		meta = map[string]any{}
	}
	return meta, nil
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	var ref projectRef
	if err := decodeJSON(r, &ref); err != nil {
		s.writeFailure(w, r, "delete project", err)
		return
	}
	home, err := s.projectHome(ref.User, ref.Project)
	if err != nil {
		s.writeFailure(w, r, "delete project", err)
		return
	}
	if err := os.RemoveAll(home); err != nil {
		s.writeFailure(w, r, "delete project", err)
		return
	}
	s.logger.With(logging.Project(ref.User, ref.Project)...).Info("project deleted", logging.Event("project_deleted"))
	s.writeMessage(w, r, "Project deleted.")
}

func (s *Server) handleDownload(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	home, err := s.projectHome(vars["user"], vars["project"])
	if err != nil {
		s.writeFailure(w, r, "download", err)
		return
	}
	output := filepath.Join(home, pipeline.OutputDirName)
	if info, err := os.Stat(output); err != nil || !info.IsDir() {
		s.handleNotFound(w, r)
		return
	}
	if err := fileutil.CopyFile(filepath.Join(home, pipeline.ConfigFileName), filepath.Join(output, pipeline.ConfigFileName)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		s.writeFailure(w, r, "download", err)
		return
	}
	archive := output + ".zip"
	if err := writeZip(archive, output); err != nil {
		s.writeFailure(w, r, "download", err)
		return
	}
	serveAttachment(w, r, archive)
}

// writeZip archives dir into path through a temporary file.
func writeZip(path, dir string) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())
	if err := fileutil.ZipDir(tmp, dir, nil); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}

func serveAttachment(w http.ResponseWriter, r *http.Request, path string) {
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filepath.Base(path)))
	http.ServeFile(w, r, path)
}
