package gateways

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestArtifactFinder_PredictedSequences(t *testing.T) {
	outputDir := writeToolOutput(t, map[string]string{
		"b.fasta": "",
		"a.fasta": "",
		"a.gb":    "",
	})
	if err := os.Mkdir(filepath.Join(outputDir, PredictedSequencesDir, "dir.fasta"), 0750); err != nil {
		t.Fatalf("Failed to create dir: %v", err)
	}

	finder := NewArtifactFinder()

	got, err := finder.PredictedSequences(outputDir, "fasta")
	if err != nil {
		t.Fatalf("PredictedSequences() error = %v", err)
	}
	seqDir := filepath.Join(outputDir, PredictedSequencesDir)
	want := []string{filepath.Join(seqDir, "a.fasta"), filepath.Join(seqDir, "b.fasta")}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("PredictedSequences() mismatch (-want +got):\n%s", diff)
	}

	none, err := finder.PredictedSequences(t.TempDir(), "gb")
	if err != nil || len(none) != 0 {
		t.Errorf("PredictedSequences() on empty dir = %v, %v", none, err)
	}
}

func TestArtifactFinder_Paths(t *testing.T) {
	finder := NewArtifactFinder()

	if got := finder.OutputDir("/work/run_1"); got != "/work/run_1/virsorter-out" {
		t.Errorf("OutputDir() = %s", got)
	}
	if got := finder.SummaryPath("/work/run_1/virsorter-out"); got != "/work/run_1/virsorter-out/VIRSorter_global-phage-signal.csv" {
		t.Errorf("SummaryPath() = %s", got)
	}
}
