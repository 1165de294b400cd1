package uploader

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// Local copies images into the configured asset folder. A folder path
// starting with "/" is resolved against the project root; anything else
// against the document's directory.
type Local struct {
	ImageFolder string
	ProjectRoot string
}

// NewLocal creates a local copier for the given folder setting.
func NewLocal(imageFolder, projectRoot string) *Local {
	return &Local{ImageFolder: imageFolder, ProjectRoot: projectRoot}
}

// Name returns the selector for local copies.
func (l *Local) Name() string {
	return "local"
}

// Upload copies sourcePath into the asset folder. An existing file of the
// same name is never overwritten; the copy gets a short random suffix
// spliced in before the extension, while the description keeps the
// original stem.
func (l *Local) Upload(ctx context.Context, sourcePath, docDir string) (*Result, error) {
	destDir := l.resolveFolder(docDir)
	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return nil, fmt.Errorf("uploader: create asset folder: %w", err)
	}

	base := filepath.Base(sourcePath)
	ext := filepath.Ext(base)
	stem := strings.TrimSuffix(base, ext)

	destName := base
	if _, err := os.Stat(filepath.Join(destDir, destName)); err == nil {
		destName = stem + "_" + uuid.NewString()[:8] + ext
	}
	destPath := filepath.Join(destDir, destName)

	if err := copyFile(ctx, sourcePath, destPath); err != nil {
		return nil, err
	}

	return &Result{
		Target:      referenceTarget(docDir, destPath),
		Description: stem,
	}, nil
}

// resolveFolder maps the folder setting onto an absolute directory.
func (l *Local) resolveFolder(docDir string) string {
	folder := l.ImageFolder
	if folder == "" {
		folder = "/assets"
	}
	if strings.HasPrefix(folder, "/") {
		root := l.ProjectRoot
		if root == "" {
			root = docDir
		}
		return filepath.Join(root, folder)
	}
	return filepath.Join(docDir, folder)
}

// referenceTarget prefers a document-relative path for the markdown link.
func referenceTarget(docDir, destPath string) string {
	rel, err := filepath.Rel(docDir, destPath)
	if err != nil {
		return destPath
	}
	return filepath.ToSlash(rel)
}

// copyFile copies src to dst, honoring context cancellation between the
// open and the transfer.
func copyFile(ctx context.Context, src, dst string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("uploader: open source: %w", err)
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("uploader: create destination: %w", err)
	}

	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		os.Remove(dst)
		return fmt.Errorf("uploader: copy: %w", err)
	}
	if err := out.Close(); err != nil {
		return fmt.Errorf("uploader: close destination: %w", err)
	}
	return nil
}
