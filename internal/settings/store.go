package settings

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/abaykopenov/llm-scorm/pkg/repository"
)

// Store reads and writes settings as key/value rows. Values absent from the
// table fall back to the configured defaults, so a fresh database behaves
// like the shipped configuration.
type Store struct {
	db       *sql.DB
	defaults Settings
	logger   *slog.Logger
}

// NewStore creates a settings store. Defaults typically come from the TOML
// configuration and cover first-run behavior before anything is saved.
func NewStore(db *sql.DB, defaults Settings, logger *slog.Logger) *Store {
	return &Store{
		db:       db,
		defaults: defaults,
		logger:   logger.With("system", "settings"),
	}
}

const (
	keyLLMBaseURL     = "llm_base_url"
	keyLLMAPIKey      = "llm_api_key"
	keyLLMModel       = "llm_model"
	keyLMSBaseURL     = "lms_base_url"
	keyLMSUsername    = "lms_username"
	keyLMSPassword    = "lms_password"
	keyLMSCourseCode  = "lms_course_code"
	keyCourseLanguage = "course_language"
)

type row struct {
	key   string
	value string
}

// Get returns the effective settings: stored values overlaid on defaults.
// Secrets are returned unmasked; callers expose them only through Masked.
func (s *Store) Get(ctx context.Context) (Settings, error) {
	rows, err := repository.QueryMany(ctx, s.db,
		`SELECT key, value FROM app_settings`,
		nil,
		func(sc repository.Scanner) (row, error) {
			var r row
			err := sc.Scan(&r.key, &r.value)
			return r, err
		})
	if err != nil {
		return Settings{}, fmt.Errorf("load settings: %w", err)
	}

	out := s.defaults
	for _, r := range rows {
		switch r.key {
		case keyLLMBaseURL:
			out.LLMBaseURL = r.value
		case keyLLMAPIKey:
			out.LLMAPIKey = r.value
		case keyLLMModel:
			out.LLMModel = r.value
		case keyLMSBaseURL:
			out.LMSBaseURL = r.value
		case keyLMSUsername:
			out.LMSUsername = r.value
		case keyLMSPassword:
			out.LMSPassword = r.value
		case keyLMSCourseCode:
			out.LMSCourseCode = r.value
		case keyCourseLanguage:
			out.CourseLanguage = r.value
		}
	}
	return out, nil
}

// Save persists incoming settings. Secret fields carrying the mask
// placeholder retain their stored value; the write is transactional so
// readers never observe a half-applied update.
func (s *Store) Save(ctx context.Context, incoming Settings) (Settings, error) {
	current, err := s.Get(ctx)
	if err != nil {
		return Settings{}, err
	}

	merged := merge(current, incoming)

	pairs := []row{
		{keyLLMBaseURL, merged.LLMBaseURL},
		{keyLLMAPIKey, merged.LLMAPIKey},
		{keyLLMModel, merged.LLMModel},
		{keyLMSBaseURL, merged.LMSBaseURL},
		{keyLMSUsername, merged.LMSUsername},
		{keyLMSPassword, merged.LMSPassword},
		{keyLMSCourseCode, merged.LMSCourseCode},
		{keyCourseLanguage, merged.CourseLanguage},
	}

	_, err = repository.WithTx(ctx, s.db, func(tx *sql.Tx) (struct{}, error) {
		for _, p := range pairs {
			err := repository.ExecExpectOne(ctx, tx,
				`INSERT INTO app_settings (key, value, updated_at)
				 VALUES ($1, $2, now())
				 ON CONFLICT (key) DO UPDATE SET value = $2, updated_at = now()`,
				p.key, p.value)
			if err != nil {
				return struct{}{}, fmt.Errorf("save setting %s: %w", p.key, err)
			}
		}
		return struct{}{}, nil
	})
	if err != nil {
		return Settings{}, err
	}

	s.logger.Info("settings saved")
	return merged, nil
}
