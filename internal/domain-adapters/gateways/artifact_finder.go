package gateways

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
)

// Fixed layout written by the VirSorter wrapper inside its working directory
const (
	OutputDirName         = "virsorter-out"
	PredictedSequencesDir = "Predicted_viral_sequences"
	SummaryFileName       = "VIRSorter_global-phage-signal.csv"
)

// ArtifactFinder locates the files a VirSorter run leaves behind
type ArtifactFinder struct{}

// NewArtifactFinder creates a new artifact finder
func NewArtifactFinder() *ArtifactFinder {
	return &ArtifactFinder{}
}

// OutputDir returns the tool output directory for a run working directory
func (f *ArtifactFinder) OutputDir(workDir string) string {
	return filepath.Join(workDir, OutputDirName)
}

// SummaryPath returns the path of the global phage signal summary
func (f *ArtifactFinder) SummaryPath(outputDir string) string {
	return filepath.Join(outputDir, SummaryFileName)
}

// PredictedSequences returns the predicted viral sequence files with the given
// extension, sorted by name. A missing directory yields no files.
func (f *ArtifactFinder) PredictedSequences(outputDir, ext string) ([]string, error) {
	pattern := filepath.Join(outputDir, PredictedSequencesDir, "*."+ext)
	matches, err := filepath.Glob(pattern)
	if err != nil {
		return nil, fmt.Errorf("failed to glob pattern %s: %w", pattern, err)
	}

	files := matches[:0]
	for _, match := range matches {
		info, err := os.Stat(match)
		if err != nil {
			return nil, fmt.Errorf("failed to stat %s: %w", match, err)
		}
		if info.Mode().IsRegular() {
			files = append(files, match)
		}
	}

	sort.Strings(files)
	return files, nil
}
