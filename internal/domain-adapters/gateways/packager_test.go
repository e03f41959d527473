package gateways

import (
	"archive/tar"
	"compress/gzip"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/ochairo/virsorter-runner/internal/domain/entities"
)

// writeToolOutput lays out a fake virsorter-out directory
func writeToolOutput(t *testing.T, files map[string]string) string {
	t.Helper()
	outputDir := filepath.Join(t.TempDir(), OutputDirName)
	seqDir := filepath.Join(outputDir, PredictedSequencesDir)
	if err := os.MkdirAll(seqDir, 0750); err != nil {
		t.Fatalf("Failed to create output dir: %v", err)
	}
	for name, content := range files {
		if err := os.WriteFile(filepath.Join(seqDir, name), []byte(content), 0600); err != nil {
			t.Fatalf("Failed to write %s: %v", name, err)
		}
	}
	return outputDir
}

// readTarGz returns member name -> content
func readTarGz(t *testing.T, path string) map[string]string {
	t.Helper()
	//nolint:gosec // G304: test archive
	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("Failed to open archive: %v", err)
	}
	defer f.Close()

	gz, err := gzip.NewReader(f)
	if err != nil {
		t.Fatalf("Failed to create gzip reader: %v", err)
	}
	defer gz.Close()

	members := map[string]string{}
	tr := tar.NewReader(gz)
	for {
		header, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatalf("Failed to read tar: %v", err)
		}
		data, err := io.ReadAll(tr)
		if err != nil {
			t.Fatalf("Failed to read member %s: %v", header.Name, err)
		}
		members[header.Name] = string(data)
	}
	return members
}

func TestPackager_Package(t *testing.T) {
	outputDir := writeToolOutput(t, map[string]string{
		"VIRSorter_cat-1.fasta": ">VIRSorter_seq_1\nACGT\n",
		"VIRSorter_cat-2.fasta": ">VIRSorter_seq_2\nTTGA\n",
		"VIRSorter_cat-1.gb":    "LOCUS seq_1\n",
		"notes.txt":             "ignored",
	})
	scratch := t.TempDir()

	bundle, err := NewPackager(scratch, nil).Package(context.Background(), outputDir, "<html></html>")
	if err != nil {
		t.Fatalf("Package() error = %v", err)
	}

	if filepath.Dir(bundle.StagingDir) != scratch || !strings.HasPrefix(filepath.Base(bundle.StagingDir), "report_") {
		t.Errorf("StagingDir = %s, want report_<uuid> under %s", bundle.StagingDir, scratch)
	}

	html, err := os.ReadFile(bundle.HTMLPath)
	if err != nil {
		t.Fatalf("Failed to read HTML: %v", err)
	}
	if string(html) != "<html></html>" || filepath.Base(bundle.HTMLPath) != IndexFileName {
		t.Errorf("HTML %s = %q", bundle.HTMLPath, html)
	}

	if len(bundle.Archives) != 2 {
		t.Fatalf("Archives = %d, want 2", len(bundle.Archives))
	}

	fasta := bundle.Archives[0]
	if fasta.Name != "VirSorter_predicted_viral_fasta.tar.gz" {
		t.Errorf("Archives[0].Name = %s", fasta.Name)
	}
	if diff := cmp.Diff([]string{"VIRSorter_cat-1.fasta", "VIRSorter_cat-2.fasta"}, fasta.Members); diff != "" {
		t.Errorf("fasta members mismatch (-want +got):\n%s", diff)
	}
	wantFasta := map[string]string{
		"VIRSorter_cat-1.fasta": ">VIRSorter_seq_1\nACGT\n",
		"VIRSorter_cat-2.fasta": ">VIRSorter_seq_2\nTTGA\n",
	}
	if diff := cmp.Diff(wantFasta, readTarGz(t, fasta.Path)); diff != "" {
		t.Errorf("fasta archive mismatch (-want +got):\n%s", diff)
	}

	gb := bundle.Archives[1]
	if diff := cmp.Diff(map[string]string{"VIRSorter_cat-1.gb": "LOCUS seq_1\n"}, readTarGz(t, gb.Path)); diff != "" {
		t.Errorf("gb archive mismatch (-want +got):\n%s", diff)
	}

	for _, archive := range bundle.Archives {
		sum, err := NewChecksumVerifier().CalculateChecksum(archive.Path)
		if err != nil {
			t.Fatalf("CalculateChecksum() error = %v", err)
		}
		if archive.SHA256 != sum {
			t.Errorf("%s SHA256 = %s, want %s", archive.Name, archive.SHA256, sum)
		}
	}
}

func TestPackager_Package_EmptyArchive(t *testing.T) {
	outputDir := writeToolOutput(t, map[string]string{
		"VIRSorter_cat-1.gb": "LOCUS seq_1\n",
	})

	bundle, err := NewPackager(t.TempDir(), nil).Package(context.Background(), outputDir, "")
	if err != nil {
		t.Fatalf("Package() error = %v", err)
	}

	fasta := bundle.Archives[0]
	if len(fasta.Members) != 0 {
		t.Errorf("fasta members = %v, want none", fasta.Members)
	}
	if members := readTarGz(t, fasta.Path); len(members) != 0 {
		t.Errorf("fasta archive members = %v, want none", members)
	}
}

func TestPackager_Package_MissingSequenceDirectory(t *testing.T) {
	bundle, err := NewPackager(t.TempDir(), nil).Package(context.Background(), t.TempDir(), "")
	if err != nil {
		t.Fatalf("Package() error = %v", err)
	}
	for _, archive := range bundle.Archives {
		if len(archive.Members) != 0 {
			t.Errorf("%s members = %v, want none", archive.Name, archive.Members)
		}
	}
}

func TestPackager_Package_StagingDirectoryError(t *testing.T) {
	// a regular file where the scratch directory should be
	scratch := filepath.Join(t.TempDir(), "scratch")
	if err := os.WriteFile(scratch, nil, 0600); err != nil {
		t.Fatalf("Failed to create file: %v", err)
	}

	_, err := NewPackager(scratch, nil).Package(context.Background(), t.TempDir(), "")

	var dirErr *entities.DirectoryCreateError
	if !errors.As(err, &dirErr) {
		t.Fatalf("Package() error = %v, want DirectoryCreateError", err)
	}
	if !strings.HasPrefix(dirErr.Path, scratch) {
		t.Errorf("DirectoryCreateError.Path = %s", dirErr.Path)
	}
}

func TestPackager_Package_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	scratch := t.TempDir()
	_, err := NewPackager(scratch, nil).Package(ctx, t.TempDir(), "")
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Package() error = %v, want context.Canceled", err)
	}

	// a failed package leaves no staging directory behind
	entries, err := os.ReadDir(scratch)
	if err != nil {
		t.Fatalf("Failed to read scratch: %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("scratch not cleaned up: %v", entries)
	}
}

func TestPackager_ArchiveDirectory(t *testing.T) {
	sourceDir := t.TempDir()
	if err := os.WriteFile(filepath.Join(sourceDir, IndexFileName), []byte("<html/>"), 0600); err != nil {
		t.Fatalf("Failed to write file: %v", err)
	}
	if err := os.MkdirAll(filepath.Join(sourceDir, "nested"), 0750); err != nil {
		t.Fatalf("Failed to create dir: %v", err)
	}
	if err := os.WriteFile(filepath.Join(sourceDir, "nested", "a.txt"), []byte("a"), 0600); err != nil {
		t.Fatalf("Failed to write file: %v", err)
	}

	tarballPath := filepath.Join(t.TempDir(), "out", "report.tar.gz")
	if err := NewPackager(t.TempDir(), nil).ArchiveDirectory(sourceDir, tarballPath); err != nil {
		t.Fatalf("ArchiveDirectory() error = %v", err)
	}

	want := map[string]string{
		"index.html":   "<html/>",
		"nested/":      "",
		"nested/a.txt": "a",
	}
	if diff := cmp.Diff(want, readTarGz(t, tarballPath)); diff != "" {
		t.Errorf("archive mismatch (-want +got):\n%s", diff)
	}
}
