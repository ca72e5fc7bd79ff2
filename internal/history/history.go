// Package history keeps the append-only ledger of built packages. Every
// successful build records one entry; entries are never updated or removed.
package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/abaykopenov/llm-scorm/pkg/repository"
)

// ErrNotFound indicates the requested history entry does not exist.
var ErrNotFound = errors.New("history: entry not found")

// ErrDuplicate indicates an entry with the same filename already exists.
// Filenames carry a random suffix, so this points at a caller bug.
var ErrDuplicate = errors.New("history: duplicate filename")

// Entry is one built package.
type Entry struct {
	ID        uuid.UUID `json:"id"`
	Title     string    `json:"title"`
	Filename  string    `json:"filename"`
	SizeBytes int64     `json:"size_bytes"`
	Shape     string    `json:"shape"`
	Blocks    int       `json:"block_count"`
	Questions int       `json:"question_count"`
	CreatedAt time.Time `json:"created_at"`
}

// Repo persists history entries in Postgres.
type Repo struct {
	db     *sql.DB
	logger *slog.Logger
}

func NewRepo(db *sql.DB, logger *slog.Logger) *Repo {
	return &Repo{
		db:     db,
		logger: logger.With("system", "history"),
	}
}

// Record appends an entry. ID and CreatedAt are assigned here when unset.
func (r *Repo) Record(ctx context.Context, entry Entry) (Entry, error) {
	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO build_history (id, title, filename, size_bytes, shape, block_count, question_count, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		entry.ID, entry.Title, entry.Filename, entry.SizeBytes,
		entry.Shape, entry.Blocks, entry.Questions, entry.CreatedAt)
	if err != nil {
		return Entry{}, fmt.Errorf("record build: %w", repository.MapError(err, ErrNotFound, ErrDuplicate))
	}

	r.logger.Info("build recorded", "filename", entry.Filename, "title", entry.Title)
	return entry, nil
}

const selectColumns = `id, title, filename, size_bytes, shape, block_count, question_count, created_at`

func scanEntry(s repository.Scanner) (Entry, error) {
	var e Entry
	err := s.Scan(&e.ID, &e.Title, &e.Filename, &e.SizeBytes,
		&e.Shape, &e.Blocks, &e.Questions, &e.CreatedAt)
	return e, err
}

// List returns entries newest-first. A non-positive limit returns everything.
func (r *Repo) List(ctx context.Context, limit int) ([]Entry, error) {
	query := `SELECT ` + selectColumns + ` FROM build_history ORDER BY created_at DESC, id DESC`
	var args []any
	if limit > 0 {
		query += ` LIMIT $1`
		args = append(args, limit)
	}

	entries, err := repository.QueryMany(ctx, r.db, query, args, scanEntry)
	if err != nil {
		return nil, fmt.Errorf("list builds: %w", err)
	}
	if entries == nil {
		entries = []Entry{}
	}
	return entries, nil
}

// GetByFilename resolves the entry for a built artifact.
func (r *Repo) GetByFilename(ctx context.Context, filename string) (Entry, error) {
	entry, err := repository.QueryOne(ctx, r.db,
		`SELECT `+selectColumns+` FROM build_history WHERE filename = $1`,
		[]any{filename}, scanEntry)
	if err != nil {
		return Entry{}, repository.MapError(err, ErrNotFound, ErrDuplicate)
	}
	return entry, nil
}
