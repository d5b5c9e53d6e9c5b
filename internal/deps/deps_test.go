package deps

import (
	"os"
	"path/filepath"
	"testing"

	"interact/internal/testsupport"
)

func TestCheck(t *testing.T) {
	binDir := t.TempDir()
	present := filepath.Join(binDir, "present")
	if err := os.WriteFile(present, []byte("#!/bin/sh\nexit 0\n"), 0o755); err != nil {
		t.Fatalf("write stub: %v", err)
	}
	jar := filepath.Join(binDir, "MSFragger.jar")
	if err := os.WriteFile(jar, nil, 0o644); err != nil {
		t.Fatalf("write jar: %v", err)
	}

	tests := []struct {
		name      string
		req       Requirement
		available bool
	}{
		{"binary present", Requirement{Name: "Present", Command: present}, true},
		{"binary missing", Requirement{Name: "Missing", Command: "clearly-not-present-binary"}, false},
		{"not configured", Requirement{Name: "Empty", Command: "  "}, false},
		{"file present", Requirement{Name: "Jar", Command: jar, File: true}, true},
		{"file is a directory", Requirement{Name: "Dir", Command: binDir, File: true}, false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := Check([]Requirement{tc.req})[0]
			if got.Available != tc.available {
				t.Fatalf("expected available=%v, got %#v", tc.available, got)
			}
			if got.Available && got.Detail != "" {
				t.Fatalf("unexpected detail for available requirement: %s", got.Detail)
			}
			if !got.Available && got.Detail == "" {
				t.Fatal("expected a detail message")
			}
		})
	}
}

func TestRequirementsForStubbedConfig(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithStubbedBinaries("inspire", "interact"))
	statuses := Check(Requirements(cfg))
	if len(statuses) != 5 {
		t.Fatalf("expected 5 requirements, got %d", len(statuses))
	}
	for _, s := range statuses[:2] {
		if !s.Available {
			t.Fatalf("expected stub %s to be available: %s", s.Name, s.Detail)
		}
	}
	for _, s := range Missing(statuses) {
		if s.Name == "MSFragger" || s.Name == "NetMHCpan" {
			t.Fatalf("optional requirement %s reported as missing", s.Name)
		}
	}
}
