package statestore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/sirupsen/logrus"

	apperrors "github.com/jqsirls/character-canary/internal/errors"
	"github.com/jqsirls/character-canary/pkg/shared/logging"
)

const characterColumns = `id, name, species, species_description, traits,
	headshot_url, bodyshot_url, headshot_trace_url, bodyshot_trace_url,
	headshot_prompt_hash, bodyshot_prompt_hash, global_style_hash,
	headshot_status, bodyshot_status, character_state,
	generation_started_at, generation_completed_at,
	applied_inclusivity_traits, excluded_inclusivity_traits, image_model,
	current_headshot_attempt_id, last_good_headshot_attempt_id,
	current_bodyshot_attempt_id, last_good_bodyshot_attempt_id,
	failure_codes, reference_images, canary_nonce, user_id, library_id`

const attemptColumns = `id, character_id, asset_type, attempt_index, status,
	image_url, fail_image_url, trace_url, openai_request_id,
	failure_codes, failure_reason, validation_summary, fix_of_attempt_id,
	created_at`

// undefinedColumn is the Postgres error code for a missing column.
const undefinedColumn = "42703"

// lowerIdentifier matches identifiers Postgres folds without quoting.
var lowerIdentifier = regexp.MustCompile(`^[a-z_][a-z0-9_]*$`)

// reservedIdentifiers are SQL keywords that must be quoted even in lowercase.
var reservedIdentifiers = map[string]bool{
	"user": true, "order": true, "group": true, "table": true,
	"select": true, "where": true, "from": true, "to": true,
	"default": true, "check": true, "references": true,
}

// Store wraps the state-store queries the canary runner needs.
type Store struct {
	db  *sqlx.DB
	log *logrus.Logger
}

// New builds a Store over an open connection pool.
func New(db *sqlx.DB, log *logrus.Logger) *Store {
	return &Store{db: db, log: log}
}

// GetCharacter fetches one character row. Returns a not-found error when the
// row does not exist yet.
func (s *Store) GetCharacter(ctx context.Context, id string) (*CharacterRecord, error) {
	var record CharacterRecord
	query := fmt.Sprintf("SELECT %s FROM characters WHERE id = $1", characterColumns)
	err := s.db.GetContext(ctx, &record, query, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.NewNotFoundError("character")
	}
	if err != nil {
		return nil, apperrors.NewDatabaseError("get character", err)
	}
	return &record, nil
}

// ListAttempts fetches every generation attempt for a character, newest
// first.
func (s *Store) ListAttempts(ctx context.Context, characterID string) ([]AttemptRecord, error) {
	var attempts []AttemptRecord
	query := fmt.Sprintf(
		"SELECT %s FROM character_generation_attempts WHERE character_id = $1 ORDER BY created_at DESC",
		attemptColumns)
	if err := s.db.SelectContext(ctx, &attempts, query, characterID); err != nil {
		return nil, apperrors.NewDatabaseError("list attempts", err)
	}
	return attempts, nil
}

// InsertCharacterInput is the component-mode seed row.
type InsertCharacterInput struct {
	ID          string
	Name        string
	Species     string
	Traits      TraitMap
	UserID      string
	LibraryID   string
	CanaryNonce string
}

// InsertCanaryCharacter seeds a character row for component-mode runs.
func (s *Store) InsertCanaryCharacter(ctx context.Context, in InsertCharacterInput) error {
	query := `INSERT INTO characters
		(id, name, species, traits, user_id, library_id, canary_nonce, character_state)
		VALUES ($1, $2, $3, $4, $5, $6, $7, 'pending')`
	_, err := s.db.ExecContext(ctx, query,
		in.ID, in.Name, in.Species, in.Traits, in.UserID, in.LibraryID, in.CanaryNonce)
	if err != nil {
		return apperrors.NewDatabaseError("insert canary character", err)
	}
	s.log.WithFields(logging.DatabaseFields("insert", "characters").
		Custom("character_id", in.ID).
		ToLogrus()).Info("Seeded component-mode character")
	return nil
}

// ColumnExists probes one column of the characters table. A Postgres
// undefined_column error means the column is missing; any other error is a
// real database failure.
func (s *Store) ColumnExists(ctx context.Context, column string) (bool, error) {
	query := fmt.Sprintf("SELECT %s FROM characters LIMIT 1", QuoteIdentifier(column))
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && string(pqErr.Code) == undefinedColumn {
			return false, nil
		}
		if strings.Contains(err.Error(), "does not exist") {
			return false, nil
		}
		return false, apperrors.NewDatabaseError("probe column", err)
	}
	rows.Close()
	return true, nil
}

// QuoteIdentifier quotes an identifier when Postgres would fold or reject it
// bare: anything with uppercase characters and every reserved word.
func QuoteIdentifier(identifier string) string {
	if lowerIdentifier.MatchString(identifier) && !reservedIdentifiers[identifier] {
		return identifier
	}
	return `"` + strings.ReplaceAll(identifier, `"`, `""`) + `"`
}
