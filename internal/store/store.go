// Package store persists documents and IOC matches to a relational
// database, following perkeep's camdbinit/mysqlindexer pattern of raw
// SQL behind a small storage type rather than an ORM.
package store

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"

	"github.com/lib/pq"
)

//go:embed schema.sql
var schemaSQL string

// Store wraps a *sql.DB open against a Postgres database holding
// telegram_sources, documents, and iocs.
type Store struct {
	db *sql.DB
}

// Open connects to databaseURL ("postgres" driver, via lib/pq).
func Open(databaseURL string) (*Store, error) {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("store: open: %w", err)
	}
	return &Store{db: db}, nil
}

// Close releases the underlying connection pool.
func (s *Store) Close() error {
	return s.db.Close()
}

// EnsureSchema issues the CREATE TABLE IF NOT EXISTS / CREATE INDEX IF
// NOT EXISTS statements, run once at startup by every stage that opens
// the database (downloader, extractor, persister) in lieu of a migration
// framework.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("store: ensure schema: %w", err)
	}
	return nil
}

// UpsertTelegramSource inserts a telegram_sources row if one for docID
// does not yet exist, and returns its id either way. Called by the
// downloader the first time a document is actually retrieved, so the
// row only ever appears lazily, never pre-populated for every message.
func (s *Store) UpsertTelegramSource(ctx context.Context, docID, chatID int64, channelURL string) (int64, error) {
	const q = `
INSERT INTO telegram_sources (doc_id, chat_id, channel_url)
VALUES ($1, $2, $3)
ON CONFLICT (doc_id) DO UPDATE SET chat_id = EXCLUDED.chat_id
RETURNING id`
	var id int64
	if err := s.db.QueryRowContext(ctx, q, docID, chatID, channelURL).Scan(&id); err != nil {
		return 0, fmt.Errorf("store: upsert telegram source: %w", err)
	}
	return id, nil
}

// DocumentInput describes a documents row to be upserted by the
// downloader or extractor, keyed on SHA256.
type DocumentInput struct {
	SHA256      string
	SourceID    sql.NullInt64
	ParentID    sql.NullInt64
	Filename    string
	MimeType    string
	SizeBytes   int64
	StoragePath string
	Extractable bool
}

// UpsertDocument inserts or refreshes the documents row for in.SHA256,
// resolving the REDESIGN FLAG gap where downloader/extractor messages
// never wrote their own row: both stages call this before publishing
// downstream, so the persister's lookup by sha256 always succeeds.
func (s *Store) UpsertDocument(ctx context.Context, in DocumentInput) (int64, error) {
	const q = `
INSERT INTO documents (sha256, source_id, parent_id, filename, mime_type, size_bytes, storage_path, extractable)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
ON CONFLICT (sha256) DO UPDATE SET
    filename = EXCLUDED.filename,
    mime_type = EXCLUDED.mime_type,
    storage_path = EXCLUDED.storage_path
RETURNING id`
	var id int64
	err := s.db.QueryRowContext(ctx, q, in.SHA256, in.SourceID, in.ParentID, in.Filename, in.MimeType, in.SizeBytes, in.StoragePath, in.Extractable).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("store: upsert document: %w", err)
	}
	return id, nil
}

// ErrDocumentNotFound is returned by FindDocumentBySHA256 when no row
// matches; the persister treats this as a log-and-acknowledge case, not
// a retry.
var ErrDocumentNotFound = errors.New("store: document not found")

// FindDocumentBySHA256 returns the documents.id for sha256Hex, or
// ErrDocumentNotFound.
func (s *Store) FindDocumentBySHA256(ctx context.Context, sha256Hex string) (int64, error) {
	const q = `SELECT id FROM documents WHERE sha256 = $1`
	var id int64
	err := s.db.QueryRowContext(ctx, q, sha256Hex).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, ErrDocumentNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("store: find document: %w", err)
	}
	return id, nil
}

// IOCInput is one pattern hit awaiting the dedup-then-insert protocol.
type IOCInput struct {
	DocumentID int64
	IOCType    string
	Value      string
	Context    string
	LineNumber int
}

const pgUniqueViolation = "23505"

// InsertIOCDeduped runs the transactional lookup-then-insert protocol
// from spec §4.5: within one transaction, check for an existing
// (document_id, ioc_type, value) row and no-op if present, otherwise
// insert. A unique-violation on insert (races under at-least-once
// redelivery) is treated as a successful no-op, per spec's
// recommendation to declare the matching unique index.
func (s *Store) InsertIOCDeduped(ctx context.Context, in IOCInput) (inserted bool, err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("store: begin tx: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	var exists bool
	const checkQ = `SELECT EXISTS(SELECT 1 FROM iocs WHERE document_id = $1 AND ioc_type = $2 AND value = $3)`
	if qErr := tx.QueryRowContext(ctx, checkQ, in.DocumentID, in.IOCType, in.Value).Scan(&exists); qErr != nil {
		err = fmt.Errorf("store: check ioc existence: %w", qErr)
		return false, err
	}
	if exists {
		if cErr := tx.Commit(); cErr != nil {
			err = fmt.Errorf("store: commit no-op: %w", cErr)
			return false, err
		}
		return false, nil
	}

	const insertQ = `
INSERT INTO iocs (document_id, ioc_type, value, context, line_number)
VALUES ($1, $2, $3, $4, $5)`
	_, insErr := tx.ExecContext(ctx, insertQ, in.DocumentID, in.IOCType, in.Value, in.Context, in.LineNumber)
	if insErr != nil {
		var pqErr *pq.Error
		if errors.As(insErr, &pqErr) && pqErr.Code == pgUniqueViolation {
			// The failed insert aborts the transaction, so it cannot be
			// committed; roll it back and report the no-op.
			_ = tx.Rollback()
			return false, nil
		}
		err = fmt.Errorf("store: insert ioc: %w", insErr)
		return false, err
	}

	if cErr := tx.Commit(); cErr != nil {
		err = fmt.Errorf("store: commit insert: %w", cErr)
		return false, err
	}
	return true, nil
}
