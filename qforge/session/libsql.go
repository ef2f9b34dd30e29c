package session

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/pressly/goose/v3"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// libsqlStore persists sessions in a libsql/sqlite table. The full aggregate
// lives in a JSON document column; status and version are mirrored into
// their own columns for queries and the optimistic write guard.
type libsqlStore struct {
	db    *sql.DB
	table string
}

var _ Store = (*libsqlStore)(nil)

func newLibSQLStore(cfg *storeConfig) (*libsqlStore, error) {
	if cfg.db == nil {
		return nil, fmt.Errorf("%w: libsql driver requires WithDB", ErrInvalidConfig)
	}
	store := &libsqlStore{db: cfg.db, table: cfg.table}
	if err := store.migrate(); err != nil {
		return nil, err
	}
	return store, nil
}

// migrate brings the schema up to date using the embedded goose migrations.
func (l *libsqlStore) migrate() error {
	goose.SetBaseFS(migrationsFS)
	if err := goose.SetDialect("sqlite3"); err != nil {
		return fmt.Errorf("failed to set goose dialect: %w", err)
	}
	if err := goose.Up(l.db, "migrations"); err != nil {
		return fmt.Errorf("failed to run goose migrations: %w", err)
	}
	return nil
}

func (l *libsqlStore) Create(ctx context.Context, s *Session) error {
	doc, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}

	query := fmt.Sprintf(`
		INSERT OR IGNORE INTO %s (id, status, version, document, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)`, l.table)

	res, err := l.db.ExecContext(ctx, query,
		s.ID, string(s.Status), s.Version, string(doc), s.CreatedAt.UTC(), s.LastActivity.UTC())
	if err != nil {
		return fmt.Errorf("create session: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("create session: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("%w: %s", ErrAlreadyExists, s.ID)
	}
	return nil
}

func (l *libsqlStore) Get(ctx context.Context, id string) (*Session, error) {
	query := fmt.Sprintf(`SELECT document FROM %s WHERE id = ?`, l.table)

	var doc string
	err := l.db.QueryRowContext(ctx, query, id).Scan(&doc)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}

	var s Session
	if err := json.Unmarshal([]byte(doc), &s); err != nil {
		return nil, fmt.Errorf("unmarshal session: %w", err)
	}
	return &s, nil
}

func (l *libsqlStore) Patch(ctx context.Context, id string, p Patch) error {
	if p.IsZero() {
		return nil
	}
	return l.update(ctx, id, func(s *Session) error {
		p.apply(s, time.Now().UTC())
		return nil
	})
}

func (l *libsqlStore) TransitionStatus(ctx context.Context, id string, from, to Status) error {
	return l.update(ctx, id, func(s *Session) error {
		if err := checkTransition(s.Status, from, to); err != nil {
			return err
		}
		if from == to {
			return nil
		}
		s.Status = to
		s.LastActivity = time.Now().UTC()
		s.Version++
		return nil
	})
}

// update loads the document inside a transaction, applies mutate, and writes
// it back guarded by the version it read.
func (l *libsqlStore) update(ctx context.Context, id string, mutate func(*Session) error) error {
	tx, err := l.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin update: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	selectQuery := fmt.Sprintf(`SELECT document, version FROM %s WHERE id = ?`, l.table)

	var (
		doc     string
		version int64
	)
	err = tx.QueryRowContext(ctx, selectQuery, id).Scan(&doc, &version)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return fmt.Errorf("load session: %w", err)
	}

	var s Session
	if err := json.Unmarshal([]byte(doc), &s); err != nil {
		return fmt.Errorf("unmarshal session: %w", err)
	}

	if err := mutate(&s); err != nil {
		return err
	}

	newDoc, err := json.Marshal(&s)
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}

	updateQuery := fmt.Sprintf(`
		UPDATE %s SET status = ?, version = ?, document = ?, updated_at = ?
		WHERE id = ? AND version = ?`, l.table)

	res, err := tx.ExecContext(ctx, updateQuery,
		string(s.Status), s.Version, string(newDoc), time.Now().UTC(), id, version)
	if err != nil {
		return fmt.Errorf("write session: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("write session: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("%w: %s", ErrVersionConflict, id)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit update: %w", err)
	}
	return nil
}

func (l *libsqlStore) Close() error {
	return l.db.Close()
}
