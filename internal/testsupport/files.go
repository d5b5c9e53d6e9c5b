package testsupport

import (
	"os"
	"path/filepath"
	"testing"

	"interact/internal/config"
)

// WriteFile writes content to path, creating parent directories.
func WriteFile(t testing.TB, path, content string) {
	t.Helper()

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir for %s: %v", path, err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

// ReadFile returns the content of path or fails the test.
func ReadFile(t testing.TB, path string) string {
	t.Helper()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read %s: %v", path, err)
	}
	return string(data)
}

// NewProject creates an empty project home for user/project and returns it.
func NewProject(t testing.TB, cfg *config.Config, user, project string) string {
	t.Helper()

	home := cfg.ProjectHome(user, project)
	if err := os.MkdirAll(home, 0o755); err != nil {
		t.Fatalf("mkdir project %s: %v", home, err)
	}
	return home
}

// SeedProject creates a project home ready for a run: search metadata asking
// for MSFragger, one MGF scan file and a single proteome.
func SeedProject(t testing.TB, cfg *config.Config, user, project string) string {
	t.Helper()

	home := NewProject(t, cfg, user, project)
	WriteFile(t, filepath.Join(home, "search_metadata.yml"), "searchEngine: msfragger\nrunFragger: 1\n")
	WriteFile(t, filepath.Join(home, "ms", "sample1.mgf"), "BEGIN IONS\nEND IONS\n")
	WriteFile(t, filepath.Join(home, "proteome", "proteome_human.fasta"), ">sp|P1|TEST\nMPEPTIDE\n")
	return home
}
