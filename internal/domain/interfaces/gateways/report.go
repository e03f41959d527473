// Package gateways defines interfaces for external service adapters.
package gateways

import (
	"context"
	"io"

	"github.com/ochairo/virsorter-runner/internal/domain/entities"
)

// BlobStore stores opaque byte streams and hands back a handle
type BlobStore interface {
	// Store uploads content under name and returns its handle
	Store(ctx context.Context, name string, content io.Reader) (*entities.BlobHandle, error)
}

// ReportRegistry registers report metadata with the hosting platform
type ReportRegistry interface {
	// Register submits the descriptor and returns the created report's identity
	Register(ctx context.Context, report *entities.ReportDescriptor) (*entities.ReportInfo, error)
}

// Signer produces detached signatures for uploaded packages
type Signer interface {
	// SignDetached writes an armored detached signature of message to w
	SignDetached(w io.Writer, message io.Reader) error
}
