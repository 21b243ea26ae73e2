package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/bnema/vidq/internal/domain"
	"github.com/bnema/vidq/internal/port"
	"github.com/pressly/goose/v3"
	"modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrations embed.FS

const DBName = "vidq.db"

// Store is the job ledger. It records what happened to each upload; the
// in-memory dispatch queue remains the source of truth for scheduling.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

var hookOnce sync.Once

func registerHook() {
	hookOnce.Do(func() {
		sqlite.RegisterConnectionHook(func(conn sqlite.ExecQuerierContext, dsn string) error {
			pragmas := []string{
				"PRAGMA journal_mode = WAL",
				"PRAGMA busy_timeout = 5000",
				"PRAGMA synchronous = NORMAL",
				"PRAGMA cache_size = -8000", // 8MB
			}
			for _, p := range pragmas {
				if _, err := conn.ExecContext(context.Background(), p, nil); err != nil {
					return fmt.Errorf("execute %s: %w", p, err)
				}
			}
			return nil
		})
	})
}

func NewStore(dataDir string) (*Store, error) {
	registerHook()

	db, err := sql.Open("sqlite", filepath.Join(dataDir, DBName))
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// One writer at a time.
	db.SetMaxOpenConns(1)

	goose.SetBaseFS(migrations)
	if err := goose.SetDialect("sqlite3"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set goose dialect: %w", err)
	}
	if err := goose.Up(db, "migrations"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &Store{db: db, now: time.Now}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

const recordColumns = `id, original_name, content_hash, chunk_count, size, status,
	error_message, thumb_path, preview_path, output_path, created_at, updated_at`

func (s *Store) Save(r *domain.Record) error {
	ctx := context.Background()
	if r.CreatedAt.IsZero() {
		r.CreatedAt = s.now()
	}
	r.UpdatedAt = s.now()

	_, err := s.db.ExecContext(ctx, `INSERT INTO jobs (`+recordColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.OriginalName, r.ContentHash, r.ChunkCount, r.Size, string(r.Status),
		r.ErrorMessage, r.ThumbPath, r.PreviewPath, r.OutputPath,
		r.CreatedAt.UnixNano(), r.UpdatedAt.UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("insert job %s: %w", r.ID, err)
	}
	return nil
}

func (s *Store) Get(id string) (*domain.Record, error) {
	ctx := context.Background()
	row := s.db.QueryRowContext(ctx, `SELECT `+recordColumns+` FROM jobs WHERE id = ?`, id)
	r, err := scanRecord(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return r, nil
}

// ListAll returns every record, newest first.
func (s *Store) ListAll() ([]*domain.Record, error) {
	ctx := context.Background()
	rows, err := s.db.QueryContext(ctx, `SELECT `+recordColumns+` FROM jobs ORDER BY created_at DESC`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var result []*domain.Record
	for rows.Next() {
		r, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, r)
	}
	return result, rows.Err()
}

func (s *Store) UpdateStatus(id string, status domain.JobStatus, errMsg string) error {
	ctx := context.Background()
	res, err := s.db.ExecContext(ctx,
		`UPDATE jobs SET status = ?, error_message = ?, updated_at = ? WHERE id = ?`,
		string(status), errMsg, s.now().UnixNano(), id,
	)
	if err != nil {
		return err
	}
	return requireRow(res)
}

// UpdateOutputs stores the artifact paths and final status of r.
func (s *Store) UpdateOutputs(r *domain.Record) error {
	ctx := context.Background()
	r.UpdatedAt = s.now()
	res, err := s.db.ExecContext(ctx,
		`UPDATE jobs SET content_hash = ?, thumb_path = ?, preview_path = ?, output_path = ?,
			status = ?, error_message = ?, updated_at = ? WHERE id = ?`,
		r.ContentHash, r.ThumbPath, r.PreviewPath, r.OutputPath,
		string(r.Status), r.ErrorMessage, r.UpdatedAt.UnixNano(), r.ID,
	)
	if err != nil {
		return err
	}
	return requireRow(res)
}

// ResetStalled marks jobs that were queued or processing when the previous
// process stopped. Their chunks lived in memory and cannot be recovered.
func (s *Store) ResetStalled() (int64, error) {
	ctx := context.Background()
	res, err := s.db.ExecContext(ctx,
		`UPDATE jobs SET status = ?, error_message = ?, updated_at = ? WHERE status IN (?, ?)`,
		string(domain.JobStatusAbandoned), "interrupted by restart", s.now().UnixNano(),
		string(domain.JobStatusQueued), string(domain.JobStatusProcessing),
	)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(sc scanner) (*domain.Record, error) {
	var (
		r                  domain.Record
		status             string
		createdAt, updated int64
	)
	err := sc.Scan(
		&r.ID, &r.OriginalName, &r.ContentHash, &r.ChunkCount, &r.Size, &status,
		&r.ErrorMessage, &r.ThumbPath, &r.PreviewPath, &r.OutputPath, &createdAt, &updated,
	)
	if err != nil {
		return nil, err
	}
	r.Status = domain.JobStatus(status)
	r.CreatedAt = time.Unix(0, createdAt).UTC()
	r.UpdatedAt = time.Unix(0, updated).UTC()
	return &r, nil
}

func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return domain.ErrNotFound
	}
	return nil
}

var _ port.JobLedger = (*Store)(nil)
