package store

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Lllllllleong/legaldocflow/internal/models"
)

// ChangeChannel is the LISTEN/NOTIFY channel fed by the table trigger in schema.sql.
const ChangeChannel = "processed_documents_changes"

//go:embed schema.sql
var schemaSQL string

const selectColumns = `id::text, original_filename, file_path, content_type, status,
	processed_data, created_at, updated_at`

// PostgresStore keeps records in the processed_documents table.
type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(pool *pgxpool.Pool) (*PostgresStore, error) {
	if pool == nil {
		return nil, fmt.Errorf("postgres pool is required")
	}
	return &PostgresStore{pool: pool}, nil
}

// ConnectPostgres opens a pool and checks that the database is reachable.
func ConnectPostgres(ctx context.Context, connStr string) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, connStr)
	if err != nil {
		return nil, fmt.Errorf("unable to create connection pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("unable to reach database: %w", err)
	}
	return pool, nil
}

// Migrate creates the table, its indexes and the change-notification trigger.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("failed to apply schema: %w", err)
	}
	return nil
}

func (s *PostgresStore) Create(ctx context.Context, doc *models.Document) (*models.Document, error) {
	if err := validateNew(doc); err != nil {
		return nil, err
	}
	newDoc := *doc
	newDoc.Status = models.StatusProcessing
	newDoc.UpdatedAt = nil
	newDoc.ProcessedData = nil

	row := s.pool.QueryRow(ctx,
		`INSERT INTO processed_documents (original_filename, file_path, content_type, status)
		 VALUES ($1, $2, $3, $4)
		 RETURNING id::text, created_at`,
		newDoc.OriginalFilename, newDoc.FilePath, newDoc.ContentType, string(newDoc.Status))
	if err := row.Scan(&newDoc.ID, &newDoc.CreatedAt); err != nil {
		return nil, fmt.Errorf("failed to insert document record: %w", err)
	}
	return &newDoc, nil
}

func (s *PostgresStore) Get(ctx context.Context, id string) (*models.Document, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, ErrNotFound
	}
	row := s.pool.QueryRow(ctx, `SELECT `+selectColumns+` FROM processed_documents WHERE id = $1`, id)
	doc, err := scanDocument(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get document %s: %w", id, err)
	}
	return doc, nil
}

func (s *PostgresStore) List(ctx context.Context) ([]*models.Document, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+selectColumns+` FROM processed_documents ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list documents: %w", err)
	}
	return collectRows(rows)
}

func (s *PostgresStore) ListByStatus(ctx context.Context, st models.DocumentStatus, createdBefore time.Time) ([]*models.Document, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+selectColumns+` FROM processed_documents
		 WHERE status = $1 AND created_at < $2
		 ORDER BY created_at DESC`,
		string(st), createdBefore)
	if err != nil {
		return nil, fmt.Errorf("failed to list %s documents: %w", st, err)
	}
	return collectRows(rows)
}

func (s *PostgresStore) Complete(ctx context.Context, id string, data *models.ProcessedData, at time.Time) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("failed to encode processed data: %w", err)
	}
	return s.finalize(ctx, id,
		`UPDATE processed_documents
		 SET status = 'completed', processed_data = $2, updated_at = $3
		 WHERE id = $1 AND status = 'processing'`,
		id, payload, at.UTC())
}

func (s *PostgresStore) Fail(ctx context.Context, id string, at time.Time) error {
	return s.finalize(ctx, id,
		`UPDATE processed_documents
		 SET status = 'failed', updated_at = $2
		 WHERE id = $1 AND status = 'processing'`,
		id, at.UTC())
}

func (s *PostgresStore) finalize(ctx context.Context, id, sql string, args ...any) error {
	if _, err := uuid.Parse(id); err != nil {
		return ErrNotFound
	}
	tag, err := s.pool.Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("failed to finalize document %s: %w", id, err)
	}
	if tag.RowsAffected() == 1 {
		return nil
	}
	var exists bool
	if err := s.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM processed_documents WHERE id = $1)`, id).Scan(&exists); err != nil {
		return fmt.Errorf("failed to check document %s: %w", id, err)
	}
	if !exists {
		return ErrNotFound
	}
	return ErrAlreadyFinalized
}

type notifyPayload struct {
	Op string `json:"op"`
	ID string `json:"id"`
}

// Watch holds one pool connection in LISTEN mode until ctx is done. LISTEN
// is issued before Watch returns.
func (s *PostgresStore) Watch(ctx context.Context) (<-chan ChangeEvent, error) {
	conn, err := s.pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to acquire listener connection: %w", err)
	}
	if _, err := conn.Exec(ctx, "LISTEN "+ChangeChannel); err != nil {
		conn.Release()
		return nil, fmt.Errorf("failed to listen on %s: %w", ChangeChannel, err)
	}

	ch := make(chan ChangeEvent, watcherBuffer)
	go func() {
		defer close(ch)
		defer func() {
			// The connection goes back to the pool, so stop listening first.
			if _, err := conn.Exec(context.Background(), "UNLISTEN *"); err != nil {
				_ = conn.Conn().Close(context.Background())
			}
			conn.Release()
		}()

		for {
			n, err := conn.Conn().WaitForNotification(ctx)
			if err != nil {
				if ctx.Err() == nil {
					slog.Error("Postgres change listener failed", "channel", ChangeChannel, "error", err)
				}
				return
			}
			var p notifyPayload
			if err := json.Unmarshal([]byte(n.Payload), &p); err != nil {
				slog.Warn("Ignoring malformed change notification", "payload", n.Payload, "error", err)
				continue
			}
			select {
			case ch <- ChangeEvent{Op: ChangeOp(p.Op), DocumentID: p.ID}:
			case <-ctx.Done():
				return
			}
		}
	}()
	return ch, nil
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

func collectRows(rows pgx.Rows) ([]*models.Document, error) {
	defer rows.Close()
	var docs []*models.Document
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read document rows: %w", err)
	}
	return docs, nil
}

func scanDocument(row pgx.Row) (*models.Document, error) {
	var (
		doc    models.Document
		status string
		data   []byte
	)
	if err := row.Scan(&doc.ID, &doc.OriginalFilename, &doc.FilePath, &doc.ContentType,
		&status, &data, &doc.CreatedAt, &doc.UpdatedAt); err != nil {
		return nil, err
	}
	doc.Status = models.DocumentStatus(status)
	if len(data) > 0 {
		var pd models.ProcessedData
		if err := json.Unmarshal(data, &pd); err != nil {
			return nil, fmt.Errorf("failed to decode processed_data of %s: %w", doc.ID, err)
		}
		doc.ProcessedData = &pd
	}
	return &doc, nil
}
