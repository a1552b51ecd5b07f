package audit

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/roach88/thinkgraph/internal/graph"
	"github.com/roach88/thinkgraph/internal/metrics"
	"github.com/roach88/thinkgraph/internal/store"
)

// Limits applied to List and Export. A zero limit selects the default;
// anything else is clamped to [1, max].
const (
	DefaultListLimit   = 200
	MaxListLimit       = 1000
	DefaultExportLimit = 2000
	MaxExportLimit     = 5000
)

// Entry is one audit record to be written.
type Entry struct {
	EntityType graph.EntityType
	EntityID   string
	Action     graph.Action
	Actor      string
	Reason     string
	Before     graph.State
	After      graph.State
	At         time.Time
}

// Record is an audit entry as read back from storage.
type Record struct {
	ID          int64            `json:"id"`
	EntityType  graph.EntityType `json:"entity_type"`
	EntityID    string           `json:"entity_id"`
	Action      graph.Action     `json:"action"`
	Actor       string           `json:"actor"`
	Reason      *string          `json:"reason"`
	BeforeState graph.State      `json:"before_state"`
	AfterState  graph.State      `json:"after_state"`
	CreatedAt   string           `json:"created_at"`
}

// Filter narrows List and Export. Empty fields match everything.
type Filter struct {
	EntityType graph.EntityType
	EntityID   string
	Limit      int
}

// Write appends e inside tx. The states required by e.Action must be
// present; an empty reason is stored as NULL.
func Write(ctx context.Context, tx *store.Tx, e Entry) error {
	if err := checkStates(e); err != nil {
		return err
	}

	before, err := encodeNullable(e.Before)
	if err != nil {
		return err
	}
	after, err := encodeNullable(e.After)
	if err != nil {
		return err
	}
	var reason sql.NullString
	if e.Reason != "" {
		reason = sql.NullString{String: e.Reason, Valid: true}
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO audits (entity_type, entity_id, action, actor, reason, before_state, after_state, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, string(e.EntityType), e.EntityID, string(e.Action), e.Actor, reason, before, after, graph.FormatTime(e.At))
	if err != nil {
		return fmt.Errorf("insert audit %s:%s %s: %w", e.EntityType, e.EntityID, e.Action, err)
	}

	metrics.MutationsTotal.WithLabelValues(string(e.EntityType), string(e.Action)).Inc()
	return nil
}

func checkStates(e Entry) error {
	switch e.Action {
	case graph.ActionCreate:
		if e.After == nil {
			return fmt.Errorf("audit %s:%s create requires after state", e.EntityType, e.EntityID)
		}
	case graph.ActionUpdate:
		if e.Before == nil || e.After == nil {
			return fmt.Errorf("audit %s:%s update requires before and after states", e.EntityType, e.EntityID)
		}
	case graph.ActionDelete:
		if e.Before == nil {
			return fmt.Errorf("audit %s:%s delete requires before state", e.EntityType, e.EntityID)
		}
	default:
		return fmt.Errorf("audit %s:%s: unknown action %q", e.EntityType, e.EntityID, e.Action)
	}
	return nil
}

func encodeNullable(s graph.State) (sql.NullString, error) {
	if s == nil {
		return sql.NullString{}, nil
	}
	text, err := graph.EncodeState(s)
	if err != nil {
		return sql.NullString{}, err
	}
	return sql.NullString{String: text, Valid: true}, nil
}

// Trail reads the audit log.
type Trail struct {
	db    *store.Store
	log   *zap.Logger
	clock graph.Clock
}

// Option configures a Trail.
type Option func(*Trail)

// WithClock sets the clock used for exported_at and checked_at stamps.
func WithClock(c graph.Clock) Option {
	return func(t *Trail) { t.clock = c }
}

// NewTrail returns a Trail reading from db. A nil logger discards output.
func NewTrail(db *store.Store, log *zap.Logger, opts ...Option) *Trail {
	if log == nil {
		log = zap.NewNop()
	}
	t := &Trail{db: db, log: log, clock: graph.SystemClock{}}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// List returns entries matching f, newest first.
func (t *Trail) List(ctx context.Context, f Filter) ([]Record, error) {
	return list(ctx, t.db, f, clampLimit(f.Limit, DefaultListLimit, MaxListLimit))
}

func clampLimit(limit, def, maxLimit int) int {
	if limit == 0 {
		return def
	}
	return min(max(limit, 1), maxLimit)
}

func list(ctx context.Context, q store.Querier, f Filter, limit int) ([]Record, error) {
	query := `SELECT id, entity_type, entity_id, action, actor, reason, before_state, after_state, created_at
		FROM audits WHERE 1 = 1`
	var args []any
	if f.EntityType != "" {
		query += ` AND entity_type = ?`
		args = append(args, string(f.EntityType))
	}
	if f.EntityID != "" {
		query += ` AND entity_id = ?`
		args = append(args, f.EntityID)
	}
	query += ` ORDER BY id DESC LIMIT ?`
	args = append(args, limit)

	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query audits: %w", err)
	}
	defer rows.Close()

	out := []Record{}
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate audits: %w", err)
	}
	return out, nil
}

func scanRecord(rows *sql.Rows) (Record, error) {
	var (
		rec                   Record
		entityType, action    string
		reason, before, after sql.NullString
	)
	if err := rows.Scan(&rec.ID, &entityType, &rec.EntityID, &action, &rec.Actor,
		&reason, &before, &after, &rec.CreatedAt); err != nil {
		return Record{}, fmt.Errorf("scan audit: %w", err)
	}
	rec.EntityType = graph.EntityType(entityType)
	rec.Action = graph.Action(action)
	if reason.Valid {
		r := reason.String
		rec.Reason = &r
	}

	var err error
	if rec.BeforeState, err = graph.DecodeState(before.String); err != nil {
		return Record{}, fmt.Errorf("audit %d before_state: %w", rec.ID, err)
	}
	if rec.AfterState, err = graph.DecodeState(after.String); err != nil {
		return Record{}, fmt.Errorf("audit %d after_state: %w", rec.ID, err)
	}
	return rec, nil
}
