package history

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/EternisAI/netmeasure/internal/netmeasure"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	DefaultLimit = 20
	MaxLimit     = 200
)

// Entry is one recorded probe outcome.
type Entry struct {
	ID        uuid.UUID       `json:"id"`
	Node      string          `json:"node"`
	Kind      string          `json:"kind"`
	Target    string          `json:"target"`
	OK        bool            `json:"ok"`
	Summary   json.RawMessage `json:"summary"`
	CreatedAt time.Time       `json:"created_at"`
}

type Filter struct {
	Node  string
	Kind  string
	Limit int
}

// Normalize applies the default page size and the upper bound.
func (f Filter) Normalize() Filter {
	if f.Limit <= 0 {
		f.Limit = DefaultLimit
	}
	if f.Limit > MaxLimit {
		f.Limit = MaxLimit
	}
	return f
}

type Store struct {
	pool *pgxpool.Pool
}

func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

const insertResult = `
INSERT INTO probe_results (id, node, kind, target, ok, summary, created_at)
VALUES ($1::uuid, $2, $3, $4, $5, $6, $7)`

// Record implements netmeasure.Recorder.
func (s *Store) Record(ctx context.Context, o netmeasure.Outcome) error {
	summary, err := marshalSummary(o.Summary)
	if err != nil {
		return err
	}

	createdAt := o.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	_, err = s.pool.Exec(ctx, insertResult,
		uuid.New().String(), o.Node, o.Kind.String(), o.Target, o.OK, summary, createdAt.UTC())
	if err != nil {
		return fmt.Errorf("insert probe result: %w", err)
	}
	return nil
}

const listResults = `
SELECT id::text, node, kind, target, ok, summary, created_at
FROM probe_results
WHERE ($1::text = '' OR node = $1::text)
  AND ($2::text = '' OR kind = $2::text)
ORDER BY created_at DESC
LIMIT $3`

func (s *Store) List(ctx context.Context, f Filter) ([]Entry, error) {
	f = f.Normalize()

	rows, err := s.pool.Query(ctx, listResults, f.Node, f.Kind, f.Limit)
	if err != nil {
		return nil, fmt.Errorf("query probe results: %w", err)
	}
	defer rows.Close()

	entries := make([]Entry, 0, f.Limit)
	for rows.Next() {
		var (
			e  Entry
			id string
		)
		if err := rows.Scan(&id, &e.Node, &e.Kind, &e.Target, &e.OK, &e.Summary, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan probe result: %w", err)
		}
		if e.ID, err = uuid.Parse(id); err != nil {
			return nil, fmt.Errorf("parse probe result id: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate probe results: %w", err)
	}
	return entries, nil
}

func marshalSummary(v any) ([]byte, error) {
	if v == nil {
		return []byte("{}"), nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("marshal summary: %w", err)
	}
	if string(b) == "null" {
		return []byte("{}"), nil
	}
	return b, nil
}
