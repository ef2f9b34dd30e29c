package session

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/supabase-community/supabase-go"
)

// supabaseRow is the wire shape of one session in the hosted table. The full
// aggregate is stored as a JSON document; id, status, and version are lifted
// into columns for filtering and the optimistic write guard.
type supabaseRow struct {
	ID        string          `json:"id"`
	Status    string          `json:"status"`
	Version   int64           `json:"version"`
	Document  json.RawMessage `json:"document"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// supabaseStore persists sessions through the Supabase REST interface.
type supabaseStore struct {
	client *supabase.Client
	table  string
}

var _ Store = (*supabaseStore)(nil)

func newSupabaseStore(cfg *storeConfig) (*supabaseStore, error) {
	if cfg.supabaseClient == nil {
		return nil, fmt.Errorf("%w: supabase driver requires WithSupabaseClient", ErrInvalidConfig)
	}
	return &supabaseStore{client: cfg.supabaseClient, table: cfg.table}, nil
}

func (s *supabaseStore) row(sess *Session) (supabaseRow, error) {
	doc, err := json.Marshal(sess)
	if err != nil {
		return supabaseRow{}, fmt.Errorf("marshal session: %w", err)
	}
	return supabaseRow{
		ID:        sess.ID,
		Status:    string(sess.Status),
		Version:   sess.Version,
		Document:  doc,
		CreatedAt: sess.CreatedAt.UTC(),
		UpdatedAt: sess.LastActivity.UTC(),
	}, nil
}

func (s *supabaseStore) Create(ctx context.Context, sess *Session) error {
	existing, err := s.fetch(ctx, sess.ID)
	if err == nil && existing != nil {
		return fmt.Errorf("%w: %s", ErrAlreadyExists, sess.ID)
	}

	row, err := s.row(sess)
	if err != nil {
		return err
	}

	var inserted []supabaseRow
	_, err = s.client.From(s.table).
		Insert(row, false, "", "", "").
		ExecuteTo(&inserted)
	if err != nil {
		return fmt.Errorf("failed to create session: %w", err)
	}
	return nil
}

// fetch loads the raw row, or returns (nil, nil) when the session does not
// exist.
func (s *supabaseStore) fetch(_ context.Context, id string) (*supabaseRow, error) {
	var rows []supabaseRow
	_, err := s.client.From(s.table).
		Select("*", "", false).
		Eq("id", id).
		ExecuteTo(&rows)
	if err != nil {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return &rows[0], nil
}

func (s *supabaseStore) Get(ctx context.Context, id string) (*Session, error) {
	row, err := s.fetch(ctx, id)
	if err != nil {
		return nil, err
	}
	if row == nil {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}

	var sess Session
	if err := json.Unmarshal(row.Document, &sess); err != nil {
		return nil, fmt.Errorf("unmarshal session: %w", err)
	}
	return &sess, nil
}

func (s *supabaseStore) Patch(ctx context.Context, id string, p Patch) error {
	if p.IsZero() {
		return nil
	}
	return s.update(ctx, id, func(sess *Session) error {
		p.apply(sess, time.Now().UTC())
		return nil
	})
}

func (s *supabaseStore) TransitionStatus(ctx context.Context, id string, from, to Status) error {
	return s.update(ctx, id, func(sess *Session) error {
		if err := checkTransition(sess.Status, from, to); err != nil {
			return err
		}
		if from == to {
			return nil
		}
		sess.Status = to
		sess.LastActivity = time.Now().UTC()
		sess.Version++
		return nil
	})
}

// update applies mutate to the stored session and writes it back filtered on
// the version it read. A write that matches zero rows lost the race.
func (s *supabaseStore) update(ctx context.Context, id string, mutate func(*Session) error) error {
	row, err := s.fetch(ctx, id)
	if err != nil {
		return err
	}
	if row == nil {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}

	var sess Session
	if err := json.Unmarshal(row.Document, &sess); err != nil {
		return fmt.Errorf("unmarshal session: %w", err)
	}

	if err := mutate(&sess); err != nil {
		return err
	}

	updated, err := s.row(&sess)
	if err != nil {
		return err
	}

	_, count, err := s.client.From(s.table).
		Update(updated, "", "exact").
		Eq("id", id).
		Eq("version", strconv.FormatInt(row.Version, 10)).
		Execute()
	if err != nil {
		return fmt.Errorf("failed to update session: %w", err)
	}
	if count == 0 {
		return fmt.Errorf("%w: %s", ErrVersionConflict, id)
	}
	return nil
}

func (s *supabaseStore) Close() error {
	// The REST client holds no connections worth closing.
	return nil
}
