package pipeline

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"interact/internal/config"
	"interact/internal/fileutil"
	"interact/internal/services"
	"interact/internal/tasks"
)

// searchMetadata is the subset of search_metadata.yml the run needs.
type searchMetadata struct {
	SearchEngine string `yaml:"searchEngine"`
	RunFragger   *Flag  `yaml:"runFragger"`
}

// UnmarshalYAML lets runFragger be written as 0/1 or true/false.
func (f *Flag) UnmarshalYAML(node *yaml.Node) error {
	return f.UnmarshalJSON([]byte(fmt.Sprintf("%q", node.Value)))
}

// Prepare writes {projectHome}/config.yml for req and returns the stage
// selection it implies.
func Prepare(cfg *config.Config, projectHome string, req RunRequest) (tasks.Settings, error) {
	settings := tasks.Settings{Quantify: bool(req.RunQuantification)}

	meta, err := readSearchMetadata(projectHome)
	if err != nil {
		return tasks.Settings{}, err
	}

	out := map[string]any{
		"experimentTitle":     req.Project,
		"scansFormat":         "mgf",
		"outputFolder":        filepath.Join(projectHome, OutputDirName),
		"mzAccuracy":          float64(req.MzAccuracy),
		"ms1Accuracy":         float64(req.MS1Accuracy),
		"mzUnits":             req.MzUnits,
		"silentExecution":     true,
		"reuseInput":          true,
		"fraggerPath":         cfg.Pipeline.FraggerPath,
		"fraggerMemory":       cfg.Pipeline.FraggerMemory,
		"nCores":              cfg.Pipeline.MaxCPUs,
		"technicalReplicates": req.TechnicalReplicates,
		"searchEngine":        meta.SearchEngine,
		"scansFolder":         filepath.Join(projectHome, MSDirName),
	}
	settings.Fragger = meta.RunFragger == nil || bool(*meta.RunFragger)

	if req.BindingRequested() {
		out["useBindingAffinity"] = req.UseBindingAffinity
		out["alleles"] = splitList(req.Alleles)
		out["netMHCpan"] = cfg.Pipeline.NetMHCpan
		settings.Binding = true
	}

	if !settings.Fragger {
		names, err := listFiles(filepath.Join(projectHome, SearchDirName))
		if err != nil {
			return tasks.Settings{}, fmt.Errorf("list search results: %w", err)
		}
		results := make([]string, 0, len(names))
		for _, name := range names {
			results = append(results, filepath.Join(projectHome, SearchDirName, name))
		}
		out["searchResults"] = results
	}

	scans, err := listFiles(filepath.Join(projectHome, MSDirName))
	if err != nil {
		return tasks.Settings{}, services.Wrap(services.ErrValidation, "pipeline", "prepare", "no MS data uploaded", err)
	}
	raw, mgf := 0, 0
	for _, name := range scans {
		switch strings.ToLower(filepath.Ext(name)) {
		case ".raw":
			raw++
		case ".mgf":
			mgf++
		}
	}
	settings.Convert = raw != mgf

	switch meta.SearchEngine {
	case "mascot", "msfragger":
		out["rescoreMethod"] = "percolatorSeparate"
	default:
		out["rescoreMethod"] = "percolator"
	}

	pathogen, err := applyProteome(projectHome, req, out)
	if err != nil {
		return tasks.Settings{}, err
	}
	settings.Pathogen = pathogen

	for key, value := range req.AdditionalConfigs {
		out[key] = literal(value)
	}

	data, err := yaml.Marshal(out)
	if err != nil {
		return tasks.Settings{}, fmt.Errorf("encode pipeline config: %w", err)
	}
	if err := fileutil.AtomicWrite(filepath.Join(projectHome, ConfigFileName), data, 0o644); err != nil {
		return tasks.Settings{}, fmt.Errorf("write pipeline config: %w", err)
	}
	return settings, nil
}

func readSearchMetadata(projectHome string) (searchMetadata, error) {
	data, err := os.ReadFile(MetadataPath(projectHome, "search"))
	if errors.Is(err, fs.ErrNotExist) {
		return searchMetadata{}, services.Wrap(services.ErrValidation, "pipeline", "prepare", "search metadata has not been saved", nil)
	}
	if err != nil {
		return searchMetadata{}, fmt.Errorf("read search metadata: %w", err)
	}
	var meta searchMetadata
	if err := yaml.Unmarshal(data, &meta); err != nil {
		return searchMetadata{}, services.Wrap(services.ErrValidation, "pipeline", "prepare", "parse search metadata", err)
	}
	if meta.SearchEngine == "" {
		meta.SearchEngine = "msfragger"
	}
	return meta, nil
}

// applyProteome points the config at the uploaded proteome. A project with a
// plain proteome folder infers proteins from it; otherwise the host/pathogen
// pair from proteome-select makes this a pathogen run.
func applyProteome(projectHome string, req RunRequest, out map[string]any) (bool, error) {
	plain := filepath.Join(projectHome, ProteomeDirName)
	if info, err := os.Stat(plain); err == nil && info.IsDir() {
		names, err := listFiles(plain)
		if err != nil {
			return false, fmt.Errorf("list proteome: %w", err)
		}
		if len(names) > 0 {
			out["proteome"] = filepath.Join(plain, names[0])
			out["inferProteins"] = true
		}
		return false, nil
	}

	selectDir := filepath.Join(projectHome, ProteomeSelectName)
	names, err := listFiles(selectDir)
	if err != nil {
		return false, services.Wrap(services.ErrValidation, "pipeline", "prepare", "no proteome uploaded", err)
	}
	var host, pathogen string
	for _, name := range names {
		switch {
		case pathogen == "" && strings.HasPrefix(name, "pathogen_"):
			pathogen = name
		case host == "" && strings.HasPrefix(name, "host_"):
			host = name
		}
	}
	if host == "" || pathogen == "" {
		return false, services.Wrap(services.ErrValidation, "pipeline", "prepare", "host and pathogen proteomes are both required", nil)
	}
	out["proteome"] = filepath.Join(selectDir, CombinedProteome)
	out["pathogenProteome"] = filepath.Join(selectDir, pathogen)
	out["hostProteome"] = filepath.Join(selectDir, host)
	out["controlFlags"] = splitList(req.ControlFlags)
	out["inferProteins"] = true
	return true, nil
}

// literal interprets an extra config value the way a YAML scalar or flow
// collection would read, falling back to the raw string.
func literal(value string) any {
	var parsed any
	if err := yaml.Unmarshal([]byte(value), &parsed); err != nil || parsed == nil {
		return value
	}
	return parsed
}

func listFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		names = append(names, entry.Name())
	}
	sort.Strings(names)
	return names, nil
}
