package services

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/ochairo/virsorter-runner/internal/domain/entities"
	"github.com/ochairo/virsorter-runner/internal/domain/interfaces"
	"github.com/ochairo/virsorter-runner/internal/domain/interfaces/gateways"
)

// Publish stages reported in PublishError
const (
	StagePackage  = "package"
	StageSign     = "sign"
	StageUpload   = "upload"
	StageRegister = "register"
)

const (
	reportObjectPrefix = "VirSorter_report_"
	htmlWindowHeight   = 375
)

// DirectoryArchiver packs a directory tree into a single compressed file
type DirectoryArchiver interface {
	ArchiveDirectory(sourceDir, tarballPath string) error
}

// PublishRequest carries the human-facing strings of a report
type PublishRequest struct {
	WorkspaceName string
	Message       string
}

// ReportPublisher uploads a report bundle and registers the report
type ReportPublisher struct {
	archiver DirectoryArchiver
	blobs    gateways.BlobStore
	registry gateways.ReportRegistry
	signer   gateways.Signer
	logger   interfaces.Logger
}

// NewReportPublisher creates a publisher; signer may be nil to skip signing
func NewReportPublisher(
	archiver DirectoryArchiver,
	blobs gateways.BlobStore,
	registry gateways.ReportRegistry,
	signer gateways.Signer,
	logger interfaces.Logger,
) *ReportPublisher {
	return &ReportPublisher{
		archiver: archiver,
		blobs:    blobs,
		registry: registry,
		signer:   signer,
		logger:   interfaces.OrNoOp(logger),
	}
}

// Publish uploads the staging directory as one package and registers a report for it
func (p *ReportPublisher) Publish(ctx context.Context, bundle *entities.ReportBundle, req PublishRequest) (*entities.ReportInfo, error) {
	if req.WorkspaceName == "" {
		return nil, &entities.PublishError{Stage: StageRegister, Err: fmt.Errorf("workspace name is required")}
	}

	packagePath := strings.TrimRight(bundle.StagingDir, string(filepath.Separator)) + ".tar.gz"
	if err := p.archiver.ArchiveDirectory(bundle.StagingDir, packagePath); err != nil {
		return nil, &entities.PublishError{Stage: StagePackage, Err: err}
	}

	handle, err := p.upload(ctx, packagePath)
	if err != nil {
		return nil, &entities.PublishError{Stage: StageUpload, Err: err}
	}
	p.logger.Info("Uploaded report package", interfaces.F("handle", handle.ID), interfaces.F("path", packagePath))

	descriptor := p.describe(bundle, req, handle)

	if p.signer != nil {
		sigHandle, err := p.uploadSignature(ctx, packagePath)
		if err != nil {
			return nil, err
		}
		descriptor.SignatureHandle = sigHandle.ID
		descriptor.FileLinks = append(descriptor.FileLinks, entities.FileLink{
			Handle:      sigHandle.ID,
			Name:        sigHandle.Name,
			Label:       "Signature",
			Description: "Detached OpenPGP signature of " + filepath.Base(packagePath),
		})
	}

	info, err := p.registry.Register(ctx, descriptor)
	if err != nil {
		return nil, &entities.PublishError{Stage: StageRegister, Err: err}
	}

	p.logger.Info("Registered report", interfaces.F("name", info.Name), interfaces.F("ref", info.Ref))
	return info, nil
}

func (p *ReportPublisher) upload(ctx context.Context, path string) (*entities.BlobHandle, error) {
	//nolint:gosec // G304: path is the package written by this publisher
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open package: %w", err)
	}
	//nolint:errcheck // Defer close on read-only file
	defer f.Close()

	return p.blobs.Store(ctx, filepath.Base(path), f)
}

func (p *ReportPublisher) uploadSignature(ctx context.Context, packagePath string) (*entities.BlobHandle, error) {
	//nolint:gosec // G304: path is the package written by this publisher
	f, err := os.Open(packagePath)
	if err != nil {
		return nil, &entities.PublishError{Stage: StageSign, Err: err}
	}
	//nolint:errcheck // Defer close on read-only file
	defer f.Close()

	var sig bytes.Buffer
	if err := p.signer.SignDetached(&sig, f); err != nil {
		return nil, &entities.PublishError{Stage: StageSign, Err: err}
	}

	sigPath := packagePath + ".asc"
	if err := os.WriteFile(sigPath, sig.Bytes(), 0600); err != nil {
		return nil, &entities.PublishError{Stage: StageSign, Err: fmt.Errorf("failed to write signature: %w", err)}
	}

	handle, err := p.blobs.Store(ctx, filepath.Base(sigPath), bytes.NewReader(sig.Bytes()))
	if err != nil {
		return nil, &entities.PublishError{Stage: StageUpload, Err: err}
	}
	return handle, nil
}

// describe builds the descriptor: HTML index first and directly shown, archives as attachments
func (p *ReportPublisher) describe(bundle *entities.ReportBundle, req PublishRequest, handle *entities.BlobHandle) *entities.ReportDescriptor {
	descriptor := &entities.ReportDescriptor{
		WorkspaceName: req.WorkspaceName,
		ObjectName:    reportObjectPrefix + uuid.NewString(),
		Message:       req.Message,
		HTMLLinks: []entities.HTMLLink{{
			Handle:      handle.ID,
			Name:        filepath.Base(bundle.HTMLPath),
			Label:       filepath.Base(bundle.HTMLPath),
			Description: "HTML summary report for VirSorter",
		}},
		DirectHTMLLinkIndex: 0,
		HTMLWindowHeight:    htmlWindowHeight,
	}

	for _, archive := range bundle.Archives {
		description := archive.Description
		if archive.SHA256 != "" {
			description = fmt.Sprintf("%s (sha256 %s)", description, archive.SHA256)
		}
		descriptor.FileLinks = append(descriptor.FileLinks, entities.FileLink{
			Path:        archive.Path,
			Name:        archive.Name,
			Label:       archive.Name,
			Description: description,
		})
	}

	return descriptor
}
