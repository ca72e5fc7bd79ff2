// Package scorm builds SCORM 1.2 packages from course documents: a rendered
// HTML player, static assets, and an imsmanifest.xml zipped into a single
// artifact.
package scorm

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/abaykopenov/llm-scorm/internal/course"
	"github.com/abaykopenov/llm-scorm/internal/history"
	"github.com/abaykopenov/llm-scorm/pkg/storage"
)

// ErrBuild indicates the package could not be produced. The artifact store
// and history ledger are left untouched on failure.
var ErrBuild = errors.New("scorm: build failed")

// Artifact describes one built package. Artifacts are immutable; rebuilding
// the same document produces a new artifact under a new filename.
type Artifact struct {
	ID        uuid.UUID `json:"id"`
	Filename  string    `json:"filename"`
	Size      int64     `json:"size_bytes"`
	CreatedAt time.Time `json:"created_at"`
}

// Ledger records built packages. Satisfied by history.Repo.
type Ledger interface {
	Record(ctx context.Context, entry history.Entry) (history.Entry, error)
}

// Builder produces SCORM packages and persists them through the artifact
// store, recording each successful build in the ledger.
type Builder struct {
	store   storage.System
	ledger  Ledger
	maxSize int64
	logger  *slog.Logger
}

func NewBuilder(store storage.System, ledger Ledger, maxSize int64, logger *slog.Logger) *Builder {
	return &Builder{
		store:   store,
		ledger:  ledger,
		maxSize: maxSize,
		logger:  logger.With("system", "scorm"),
	}
}

// Build validates the document, renders the package, writes the zip to the
// artifact store, and appends a history entry. The history append happens
// only after the artifact is durably stored.
func (b *Builder) Build(ctx context.Context, doc *course.Document) (*Artifact, error) {
	if err := doc.Validate(); err != nil {
		return nil, err
	}
	shape, err := doc.Shape()
	if err != nil {
		return nil, err
	}

	data, err := b.assemble(doc, shape)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBuild, err)
	}

	if b.maxSize > 0 && int64(len(data)) > b.maxSize {
		return nil, fmt.Errorf("%w: package size %d exceeds limit %d", ErrBuild, len(data), b.maxSize)
	}

	id := uuid.New()
	filename := fmt.Sprintf("%s-%s.zip", Slugify(doc.Title), id.String()[:8])

	if err := b.store.Store(ctx, filename, data); err != nil {
		return nil, fmt.Errorf("%w: store artifact: %v", ErrBuild, err)
	}

	artifact := &Artifact{
		ID:        id,
		Filename:  filename,
		Size:      int64(len(data)),
		CreatedAt: time.Now().UTC(),
	}

	outline := doc.Outline()
	if _, err := b.ledger.Record(ctx, history.Entry{
		ID:        id,
		Title:     doc.Title,
		Filename:  filename,
		SizeBytes: artifact.Size,
		Shape:     shape.String(),
		Blocks:    outline.Blocks,
		Questions: outline.Questions,
		CreatedAt: artifact.CreatedAt,
	}); err != nil {
		// The zip is already durable; surface the ledger failure rather
		// than leaving a silent gap in history.
		return nil, fmt.Errorf("%w: record history: %v", ErrBuild, err)
	}

	b.logger.Info("package built",
		"filename", filename,
		"size", artifact.Size,
		"shape", shape.String())
	return artifact, nil
}

// assemble renders every package file and zips them in memory.
func (b *Builder) assemble(doc *course.Document, shape course.Shape) ([]byte, error) {
	manifest, err := generateManifest(doc.Title)
	if err != nil {
		return nil, err
	}

	index, err := renderHTML(doc, shape)
	if err != nil {
		return nil, err
	}

	files := map[string][]byte{
		"imsmanifest.xml": manifest,
		"index.html":      index,
	}
	for _, name := range []string{"style.css", "scorm_api.js"} {
		content, err := staticAsset(name)
		if err != nil {
			return nil, fmt.Errorf("read asset %s: %w", name, err)
		}
		files[name] = content
	}

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, name := range []string{"imsmanifest.xml", "index.html", "style.css", "scorm_api.js"} {
		w, err := zw.Create(name)
		if err != nil {
			return nil, fmt.Errorf("zip entry %s: %w", name, err)
		}
		if _, err := w.Write(files[name]); err != nil {
			return nil, fmt.Errorf("zip write %s: %w", name, err)
		}
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("close zip: %w", err)
	}

	return buf.Bytes(), nil
}
