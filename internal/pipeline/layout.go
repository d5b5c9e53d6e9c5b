package pipeline

import "path/filepath"

// File and directory names inside a project home.
const (
	ConfigFileName     = "config.yml"
	ScriptFileName     = "inspire_script.sh"
	LogFileName        = "inspire_log.txt"
	OutputDirName      = "inspireOutput"
	MSDirName          = "ms"
	SearchDirName      = "search"
	ProteomeDirName    = "proteome"
	ProteomeSelectName = "proteome-select"
	CombinedProteome   = "proteome_combined.fasta"
	staleFormattedFile = "formated_df.csv"
)

// MetadataPath returns {projectHome}/{kind}_metadata.yml.
func MetadataPath(projectHome, kind string) string {
	return filepath.Join(projectHome, kind+"_metadata.yml")
}
