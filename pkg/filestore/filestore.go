// Package filestore keeps uploaded files on the local disk.
package filestore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"
)

// Disk writes objects below a root directory.
type Disk struct {
	root   string
	logger zerolog.Logger
}

// New creates the root directory when missing.
func New(root string, logger zerolog.Logger) (*Disk, error) {
	root = strings.TrimSpace(root)
	if root == "" {
		return nil, errors.New("upload directory must not be empty")
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve upload directory: %w", err)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("create upload directory: %w", err)
	}
	return &Disk{root: abs, logger: logger.With().Str("component", "filestore").Logger()}, nil
}

// Upload streams reader into root/name and returns the absolute path. Names
// that would escape the root are rejected and existing files are never
// overwritten.
func (d *Disk) Upload(ctx context.Context, name string, reader io.Reader) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	clean := filepath.Base(filepath.Clean("/" + name))
	if clean == "/" || clean == "." || clean != name {
		return "", fmt.Errorf("invalid object name %q", name)
	}

	target := filepath.Join(d.root, clean)
	file, err := os.OpenFile(target, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return "", fmt.Errorf("create %s: %w", clean, err)
	}

	written, copyErr := io.Copy(file, reader)
	closeErr := file.Close()
	if copyErr != nil || closeErr != nil {
		_ = os.Remove(target)
		return "", fmt.Errorf("write %s: %w", clean, errors.Join(copyErr, closeErr))
	}

	d.logger.Debug().Str("path", target).Int64("bytes", written).Msg("file stored")
	return target, nil
}

// Root returns the absolute storage directory.
func (d *Disk) Root() string {
	return d.root
}
