// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package runs persists extraction runs in a local SQLite database so
// earlier results can be listed and inspected.
package runs

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/pdiddy/schema-extract/pkg/types"
)

// ErrNotFound is returned when no run matches an ID.
var ErrNotFound = errors.New("run not found")

// timeLayout is fixed-width so created_at sorts as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// defaultListLimit applies when List is called with a non-positive limit.
const defaultListLimit = 20

// Store manages the run history database.
type Store struct {
	db *sql.DB
}

// NewStore opens or creates the run database at dbPath, creating parent
// directories and the schema when missing.
func NewStore(dbPath string) (*Store, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	s := &Store{db: db}
	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}
	return s, nil
}

// Close releases the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) createSchema() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS runs (
			id TEXT PRIMARY KEY,
			created_at TEXT NOT NULL,
			schema_path TEXT,
			document_path TEXT,
			provider TEXT,
			model TEXT,
			tokenizer TEXT,
			threshold INTEGER,
			missing TEXT,
			warnings TEXT,
			failed INTEGER NOT NULL DEFAULT 0
		)`,
		`CREATE TABLE IF NOT EXISTS run_chunks (
			run_id TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
			idx INTEGER NOT NULL,
			properties TEXT NOT NULL,
			tokens INTEGER,
			output TEXT,
			error TEXT,
			raw_text TEXT,
			violations TEXT,
			PRIMARY KEY (run_id, idx)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_runs_created_at ON runs(created_at)`,
	}

	for _, stmt := range statements {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("executing schema statement: %w", err)
		}
	}
	return nil
}

// Save inserts run and its chunks in one transaction. An empty ID is
// replaced with a new UUID and a zero CreatedAt with the current time.
func (s *Store) Save(ctx context.Context, run *types.Run) error {
	if run.ID == "" {
		run.ID = uuid.NewString()
	}
	if run.CreatedAt.IsZero() {
		run.CreatedAt = time.Now().UTC()
	}
	run.ChunkCount = len(run.Chunks)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO runs (id, created_at, schema_path, document_path, provider, model, tokenizer, threshold, missing, warnings, failed)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.CreatedAt.UTC().Format(timeLayout), run.SchemaPath, run.DocumentPath,
		run.Provider, run.Model, run.Tokenizer, run.Threshold,
		jsonList(run.Missing), jsonList(run.Warnings), run.Failed,
	)
	if err != nil {
		return fmt.Errorf("inserting run: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO run_chunks (run_id, idx, properties, tokens, output, error, raw_text, violations)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("preparing insert: %w", err)
	}
	defer stmt.Close()

	for _, c := range run.Chunks {
		_, err := stmt.ExecContext(ctx,
			run.ID, c.Index, jsonList(c.Properties), c.Tokens,
			string(c.Output), c.Error, c.RawText, jsonList(c.Violations),
		)
		if err != nil {
			return fmt.Errorf("inserting chunk %d: %w", c.Index, err)
		}
	}

	return tx.Commit()
}

// List returns the most recent runs first, without their chunks.
func (s *Store) List(ctx context.Context, limit int) ([]types.Run, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT r.id, r.created_at, r.schema_path, r.document_path, r.provider, r.model,
		        r.tokenizer, r.threshold, r.missing, r.warnings, r.failed,
		        (SELECT count(*) FROM run_chunks c WHERE c.run_id = r.id)
		 FROM runs r
		 ORDER BY r.created_at DESC, r.id
		 LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("listing runs: %w", err)
	}
	defer rows.Close()

	var out []types.Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, run)
	}
	return out, rows.Err()
}

// Get loads one run with its chunks. id may be a unique prefix of the
// full run ID.
func (s *Store) Get(ctx context.Context, id string) (*types.Run, error) {
	if id == "" {
		return nil, ErrNotFound
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT r.id, r.created_at, r.schema_path, r.document_path, r.provider, r.model,
		        r.tokenizer, r.threshold, r.missing, r.warnings, r.failed,
		        (SELECT count(*) FROM run_chunks c WHERE c.run_id = r.id)
		 FROM runs r
		 WHERE r.id = ? OR r.id LIKE ? ESCAPE '\'
		 ORDER BY r.id
		 LIMIT 2`, id, escapeLike(id)+"%")
	if err != nil {
		return nil, fmt.Errorf("looking up run: %w", err)
	}
	var matches []types.Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		matches = append(matches, run)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	switch {
	case len(matches) == 0:
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	case len(matches) > 1 && matches[0].ID != id:
		return nil, fmt.Errorf("run ID prefix %q is ambiguous", id)
	}
	run := matches[0]

	chunks, err := s.chunks(ctx, run.ID)
	if err != nil {
		return nil, err
	}
	run.Chunks = chunks
	return &run, nil
}

func (s *Store) chunks(ctx context.Context, runID string) ([]types.RunChunk, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT idx, properties, tokens, output, error, raw_text, violations
		 FROM run_chunks WHERE run_id = ? ORDER BY idx`, runID)
	if err != nil {
		return nil, fmt.Errorf("loading chunks: %w", err)
	}
	defer rows.Close()

	var out []types.RunChunk
	for rows.Next() {
		var (
			c                    types.RunChunk
			props, output, viols string
			errText, rawText     sql.NullString
		)
		if err := rows.Scan(&c.Index, &props, &c.Tokens, &output, &errText, &rawText, &viols); err != nil {
			return nil, fmt.Errorf("scanning chunk: %w", err)
		}
		c.Properties = parseList(props)
		c.Violations = parseList(viols)
		c.Error = errText.String
		c.RawText = rawText.String
		if output != "" {
			c.Output = json.RawMessage(output)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(row scanner) (types.Run, error) {
	var (
		run               types.Run
		created           string
		missing, warnings string
	)
	err := row.Scan(&run.ID, &created, &run.SchemaPath, &run.DocumentPath, &run.Provider, &run.Model,
		&run.Tokenizer, &run.Threshold, &missing, &warnings, &run.Failed, &run.ChunkCount)
	if err != nil {
		return types.Run{}, fmt.Errorf("scanning run: %w", err)
	}
	run.CreatedAt, err = time.Parse(timeLayout, created)
	if err != nil {
		return types.Run{}, fmt.Errorf("parsing created_at %q: %w", created, err)
	}
	run.Missing = parseList(missing)
	run.Warnings = parseList(warnings)
	return run, nil
}

// jsonList encodes a string list for a TEXT column.
func jsonList(v []string) string {
	if len(v) == 0 {
		return "[]"
	}
	data, _ := json.Marshal(v)
	return string(data)
}

func parseList(s string) []string {
	var out []string
	if s == "" {
		return nil
	}
	if err := json.Unmarshal([]byte(s), &out); err != nil || len(out) == 0 {
		return nil
	}
	return out
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}
