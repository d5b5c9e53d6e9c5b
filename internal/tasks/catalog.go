package tasks

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Stage is one named unit of pipeline work.
type Stage struct {
	ID   string
	Name string
	// Blocking stages halt the job when they fail; later stages are skipped.
	Blocking bool
}

// Stage ids understood by the inSPIRE pipeline tool.
const (
	StageConvert           = "convert"
	StageFragger           = "fragger"
	StagePrepare           = "prepare"
	StagePredictSpectra    = "predictSpectra"
	StagePredictBinding    = "predictBinding"
	StageFeatureGeneration = "featureGeneration"
	StageFeatureSelection  = "featureSelection+"
	StageGenerateReport    = "generateReport"
	StageQuantify          = "quantify"
	StageQuantReport       = "quantReport"
	StageExtractCandidates = "extractCandidates"
)

// catalog is the hard execution order. Later stages read the outputs of
// earlier ones so a subset must keep this order.
var catalog = []Stage{
	{ID: StageConvert, Name: "Converting raw files to MGF", Blocking: true},
	{ID: StageFragger, Name: "Running MSFragger search", Blocking: true},
	{ID: StagePrepare, Name: "Preparing search results", Blocking: true},
	{ID: StagePredictSpectra, Name: "Predicting spectra", Blocking: true},
	{ID: StagePredictBinding, Name: "Predicting binding affinity", Blocking: false},
	{ID: StageFeatureGeneration, Name: "Generating features", Blocking: true},
	{ID: StageFeatureSelection, Name: "Rescoring with Percolator", Blocking: true},
	{ID: StageGenerateReport, Name: "Generating report", Blocking: false},
	{ID: StageQuantify, Name: "Quantifying peptides", Blocking: false},
	{ID: StageQuantReport, Name: "Generating quantification report", Blocking: false},
	{ID: StageExtractCandidates, Name: "Extracting pathogen candidates", Blocking: true},
}

// Catalog returns a copy of every known stage in execution order.
func Catalog() []Stage {
	return append([]Stage(nil), catalog...)
}

// Lookup returns the catalog stage for id. Unknown ids produce a blocking
// stage labelled from the id itself.
func Lookup(id string) (Stage, bool) {
	for _, s := range catalog {
		if s.ID == id {
			return s, true
		}
	}
	return Stage{ID: id, Name: labelFromID(id), Blocking: true}, false
}

// Stages resolves ids through Lookup, preserving the given order.
func Stages(ids ...string) []Stage {
	out := make([]Stage, 0, len(ids))
	for _, id := range ids {
		s, _ := Lookup(id)
		out = append(out, s)
	}
	return out
}

// IsBlocking reports whether a failure of stage id halts the job.
func IsBlocking(id string) bool {
	s, _ := Lookup(id)
	return s.Blocking
}

// labelFromID turns "featureSelection+" into "Feature Selection+".
func labelFromID(id string) string {
	var b strings.Builder
	for i, r := range id {
		if i > 0 && r >= 'A' && r <= 'Z' {
			b.WriteByte(' ')
		}
		b.WriteRune(r)
	}
	return cases.Title(language.English).String(b.String())
}

// Settings selects which optional stages a job runs.
type Settings struct {
	// Convert is set when raw files still need converting to MGF.
	Convert bool `yaml:"convert" json:"convert"`
	// Fragger is set when MSFragger should produce the search results.
	Fragger bool `yaml:"fragger" json:"fragger"`
	// Binding enables binding affinity prediction.
	Binding bool `yaml:"binding" json:"binding"`
	// Pathogen marks a dual-proteome run that extracts pathogen candidates.
	Pathogen bool `yaml:"pathogen" json:"pathogen"`
	// Quantify enables peptide quantification.
	Quantify bool `yaml:"quantify" json:"quantify"`
}

// Subset filters the catalog by settings, preserving catalog order.
func Subset(s Settings) []Stage {
	out := make([]Stage, 0, len(catalog))
	for _, stage := range catalog {
		switch stage.ID {
		case StageConvert:
			if !s.Convert {
				continue
			}
		case StageFragger:
			if !s.Fragger {
				continue
			}
		case StagePredictBinding:
			if !s.Binding {
				continue
			}
		case StageQuantify:
			if !s.Quantify {
				continue
			}
		case StageQuantReport:
			if !s.Quantify || !s.Pathogen {
				continue
			}
		case StageExtractCandidates:
			if !s.Pathogen {
				continue
			}
		}
		out = append(out, stage)
	}
	return out
}
