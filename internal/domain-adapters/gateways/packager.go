package gateways

import (
	"archive/tar"
	"compress/gzip"
	"context"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/ochairo/virsorter-runner/internal/domain/entities"
	"github.com/ochairo/virsorter-runner/internal/domain/interfaces"
)

// IndexFileName is the name of the HTML report inside the staging directory
const IndexFileName = "index.html"

const stagingDirPrefix = "report_"

type sequenceArchive struct {
	ext         string
	name        string
	description string
}

// One archive per sequence format, always created even when nothing matched
var sequenceArchives = []sequenceArchive{
	{
		ext:         "fasta",
		name:        "VirSorter_predicted_viral_fasta.tar.gz",
		description: "FASTA format files of the predicted viral sequences",
	},
	{
		ext:         "gb",
		name:        "VirSorter_predicted_viral_gb.tar.gz",
		description: "GenBank format files of the predicted viral sequences",
	},
}

// Packager assembles report staging directories
type Packager struct {
	scratchDir string
	finder     *ArtifactFinder
	checksums  *ChecksumVerifier
	logger     interfaces.Logger
}

// NewPackager creates a packager that stages reports under scratchDir
func NewPackager(scratchDir string, logger interfaces.Logger) *Packager {
	return &Packager{
		scratchDir: scratchDir,
		finder:     NewArtifactFinder(),
		checksums:  NewChecksumVerifier(),
		logger:     interfaces.OrNoOp(logger),
	}
}

// Package archives the predicted sequences found in outputDir and writes the
// HTML report next to them in a fresh staging directory
func (p *Packager) Package(ctx context.Context, outputDir, html string) (*entities.ReportBundle, error) {
	stagingDir := filepath.Join(p.scratchDir, stagingDirPrefix+uuid.NewString())
	if err := os.MkdirAll(stagingDir, 0750); err != nil {
		return nil, &entities.DirectoryCreateError{Path: stagingDir, Err: err}
	}

	bundle, err := p.fillStagingDir(ctx, stagingDir, outputDir, html)
	if err != nil {
		if rmErr := os.RemoveAll(stagingDir); rmErr != nil {
			p.logger.Warn("Failed to remove staging directory",
				interfaces.F("path", stagingDir), interfaces.Err(rmErr))
		}
		return nil, err
	}
	return bundle, nil
}

// fillStagingDir writes the archives and the HTML page into stagingDir
func (p *Packager) fillStagingDir(ctx context.Context, stagingDir, outputDir, html string) (*entities.ReportBundle, error) {
	bundle := &entities.ReportBundle{StagingDir: stagingDir}

	for _, kind := range sequenceArchives {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		files, err := p.finder.PredictedSequences(outputDir, kind.ext)
		if err != nil {
			return nil, fmt.Errorf("failed to find .%s files: %w", kind.ext, err)
		}

		archivePath := filepath.Join(stagingDir, kind.name)
		members, err := p.createTarballFromFiles(files, archivePath)
		if err != nil {
			return nil, fmt.Errorf("failed to create %s: %w", kind.name, err)
		}

		sum, err := p.checksums.CalculateChecksum(archivePath)
		if err != nil {
			return nil, fmt.Errorf("failed to checksum %s: %w", kind.name, err)
		}

		p.logger.Info("Packaged predicted sequences",
			interfaces.F("archive", kind.name),
			interfaces.F("files", len(members)),
			interfaces.F("sha256", sum))

		bundle.Archives = append(bundle.Archives, entities.BundleFile{
			Name:        kind.name,
			Path:        archivePath,
			Description: kind.description,
			SHA256:      sum,
			Members:     members,
		})
	}

	htmlPath := filepath.Join(stagingDir, IndexFileName)
	if err := os.WriteFile(htmlPath, []byte(html), 0600); err != nil {
		return nil, fmt.Errorf("failed to write HTML report: %w", err)
	}
	bundle.HTMLPath = htmlPath

	return bundle, nil
}

// ArchiveDirectory creates a gzipped tar archive of sourceDir with member
// names relative to it
func (p *Packager) ArchiveDirectory(sourceDir, tarballPath string) error {
	return writeTarGz(tarballPath, func(tw *tar.Writer) error {
		return filepath.WalkDir(sourceDir, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}

			relPath, err := filepath.Rel(sourceDir, path)
			if err != nil {
				return fmt.Errorf("failed to get relative path: %w", err)
			}
			if relPath == "." {
				return nil
			}

			info, err := d.Info()
			if err != nil {
				return err
			}

			// Only directories and regular files belong in a report
			switch {
			case info.IsDir():
				header, err := tar.FileInfoHeader(info, "")
				if err != nil {
					return fmt.Errorf("failed to create tar header: %w", err)
				}
				header.Name = filepath.ToSlash(relPath) + "/"
				return tw.WriteHeader(header)
			case info.Mode().IsRegular():
				return addFileToTar(tw, path, filepath.ToSlash(relPath))
			default:
				p.logger.Warn("Skipping non-regular file", interfaces.F("path", path))
				return nil
			}
		})
	})
}

// createTarballFromFiles archives files flat, each under its base name
func (p *Packager) createTarballFromFiles(files []string, tarballPath string) ([]string, error) {
	members := make([]string, 0, len(files))
	err := writeTarGz(tarballPath, func(tw *tar.Writer) error {
		for _, file := range files {
			name := filepath.Base(file)
			if err := addFileToTar(tw, file, name); err != nil {
				return err
			}
			members = append(members, name)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return members, nil
}

// writeTarGz creates tarballPath and lets fill add the entries.
// Close errors are reported since they flush the gzip and tar trailers.
func writeTarGz(tarballPath string, fill func(*tar.Writer) error) (err error) {
	if err := os.MkdirAll(filepath.Dir(tarballPath), 0750); err != nil {
		return &entities.DirectoryCreateError{Path: filepath.Dir(tarballPath), Err: err}
	}

	//nolint:gosec // G304: tarballPath is constructed for package output
	file, err := os.Create(tarballPath)
	if err != nil {
		return fmt.Errorf("failed to create tarball file: %w", err)
	}
	defer func() {
		if cerr := file.Close(); err == nil && cerr != nil {
			err = fmt.Errorf("failed to close tarball file: %w", cerr)
		}
	}()

	gzipWriter := gzip.NewWriter(file)
	tarWriter := tar.NewWriter(gzipWriter)

	if err := fill(tarWriter); err != nil {
		return err
	}
	if err := tarWriter.Close(); err != nil {
		return fmt.Errorf("failed to finish tar stream: %w", err)
	}
	if err := gzipWriter.Close(); err != nil {
		return fmt.Errorf("failed to finish gzip stream: %w", err)
	}
	return nil
}

func addFileToTar(tw *tar.Writer, path, name string) error {
	//nolint:gosec // G304: path comes from the tool output or our staging directory
	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open file: %w", err)
	}
	//nolint:errcheck // Defer close on read-only file
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return fmt.Errorf("failed to stat file: %w", err)
	}

	header, err := tar.FileInfoHeader(info, "")
	if err != nil {
		return fmt.Errorf("failed to create tar header: %w", err)
	}
	header.Name = name

	if err := tw.WriteHeader(header); err != nil {
		return fmt.Errorf("failed to write tar header: %w", err)
	}
	if _, err := io.Copy(tw, file); err != nil {
		return fmt.Errorf("failed to write file to tar: %w", err)
	}
	return nil
}
