package snapshot

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/roach88/thinkgraph/internal/graph"
	"github.com/roach88/thinkgraph/internal/graphstore"
	"github.com/roach88/thinkgraph/internal/store"
)

// savedDocument is the JSON stored in graph_snapshots.payload.
type savedDocument struct {
	Name        string        `json:"name"`
	SavedAt     string        `json:"saved_at"`
	Reason      *string       `json:"reason"`
	Nodes       []graph.State `json:"nodes"`
	Connections []graph.State `json:"connections"`
}

// SaveResult reports a saved snapshot.
type SaveResult struct {
	Name            string `json:"name"`
	NodeCount       int    `json:"node_count"`
	ConnectionCount int    `json:"connection_count"`
	Actor           string `json:"actor"`
	SavedAt         string `json:"saved_at"`
	Message         string `json:"message"`
}

// SavedGraph summarizes a stored snapshot.
type SavedGraph struct {
	Name            string `json:"name"`
	NodeCount       int    `json:"node_count"`
	ConnectionCount int    `json:"connection_count"`
	Actor           string `json:"actor"`
	SavedAt         string `json:"saved_at"`
}

// LoadResult reports a load and carries the graph as it now stands.
type LoadResult struct {
	Name     string    `json:"name"`
	LoadedAt string    `json:"loaded_at"`
	Message  string    `json:"message"`
	Snapshot *Snapshot `json:"snapshot"`
}

// DeleteResult reports a removed snapshot.
type DeleteResult struct {
	Name      string `json:"name"`
	DeletedAt string `json:"deleted_at"`
	Message   string `json:"message"`
}

// SaveGraph stores the live graph under name, replacing any snapshot that
// already has it. Saving writes no audit entries: entities are unchanged.
func (e *Engine) SaveGraph(ctx context.Context, name string, m graphstore.Meta) (*SaveResult, error) {
	name, err := graph.NormalizeSnapshotName(name)
	if err != nil {
		return nil, err
	}
	savedAt := graph.FormatTime(e.gs.Clock().Now())

	var res *SaveResult
	err = e.db.WithTx(ctx, func(tx *store.Tx) error {
		snap, err := readSnapshot(ctx, tx)
		if err != nil {
			return err
		}
		doc := savedDocument{
			Name:        name,
			SavedAt:     savedAt,
			Nodes:       nodeStates(snap.Nodes),
			Connections: connectionStates(snap.Connections),
		}
		if m.Reason != "" {
			doc.Reason = &m.Reason
		}
		payload, err := json.Marshal(doc)
		if err != nil {
			return fmt.Errorf("encode snapshot: %w", err)
		}

		_, err = tx.ExecContext(ctx, `
			INSERT INTO graph_snapshots (name, payload, node_count, connection_count, actor, saved_at)
			VALUES (?, ?, ?, ?, ?, ?)
			ON CONFLICT(name) DO UPDATE SET
				payload = excluded.payload,
				node_count = excluded.node_count,
				connection_count = excluded.connection_count,
				actor = excluded.actor,
				saved_at = excluded.saved_at
		`, name, string(payload), len(doc.Nodes), len(doc.Connections), m.Actor, savedAt)
		if err != nil {
			return fmt.Errorf("upsert snapshot %q: %w", name, err)
		}

		res = &SaveResult{
			Name:            name,
			NodeCount:       len(doc.Nodes),
			ConnectionCount: len(doc.Connections),
			Actor:           m.Actor,
			SavedAt:         savedAt,
			Message:         "graph snapshot saved",
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	e.log.Info("graph snapshot saved",
		zap.String("name", name),
		zap.String("actor", m.Actor),
		zap.Int("nodes", res.NodeCount),
		zap.Int("connections", res.ConnectionCount),
	)
	return res, nil
}

// ListSavedGraphs returns snapshot summaries, most recently saved first.
func (e *Engine) ListSavedGraphs(ctx context.Context) ([]SavedGraph, error) {
	rows, err := e.db.QueryContext(ctx, `
		SELECT name, node_count, connection_count, actor, saved_at
		FROM graph_snapshots
		ORDER BY saved_at DESC, name ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query snapshots: %w", err)
	}
	defer rows.Close()

	out := []SavedGraph{}
	for rows.Next() {
		var s SavedGraph
		if err := rows.Scan(&s.Name, &s.NodeCount, &s.ConnectionCount, &s.Actor, &s.SavedAt); err != nil {
			return nil, fmt.Errorf("scan snapshot: %w", err)
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate snapshots: %w", err)
	}
	return out, nil
}

// LoadGraph replaces the live graph with the snapshot saved under name.
// An unknown name is a graph.NotFoundError.
func (e *Engine) LoadGraph(ctx context.Context, name string, m graphstore.Meta) (*LoadResult, error) {
	name, err := graph.NormalizeSnapshotName(name)
	if err != nil {
		return nil, err
	}
	m = withDefaultReason(m, loadReasonPrefix+name)

	var (
		counts replaceCounts
		snap   *Snapshot
	)
	err = e.db.WithTx(ctx, func(tx *store.Tx) error {
		var payload string
		err := tx.QueryRowContext(ctx, `SELECT payload FROM graph_snapshots WHERE name = ?`, name).Scan(&payload)
		if errors.Is(err, sql.ErrNoRows) {
			return graph.NewNotFoundError("saved graph", name)
		}
		if err != nil {
			return fmt.Errorf("read snapshot %q: %w", name, err)
		}

		var doc ImportPayload
		if err := json.Unmarshal([]byte(payload), &doc); err != nil {
			return fmt.Errorf("decode snapshot %q: %w", name, err)
		}
		nodes, conns, err := doc.Entities()
		if err != nil {
			return err
		}

		counts, err = e.replace(ctx, tx, nodes, conns, m.WithSuffix(ClearSuffix), m.WithSuffix(RestoreSuffix))
		if err != nil {
			return err
		}
		snap, err = readSnapshot(ctx, tx)
		return err
	})
	if err != nil {
		return nil, err
	}
	e.logReplace("load", m, counts)

	return &LoadResult{
		Name:     name,
		LoadedAt: graph.FormatTime(e.gs.Clock().Now()),
		Message:  "graph snapshot loaded",
		Snapshot: snap,
	}, nil
}

// DeleteSavedGraph removes the snapshot saved under name. Live entities are
// not touched. An unknown name is a graph.NotFoundError.
func (e *Engine) DeleteSavedGraph(ctx context.Context, name string, m graphstore.Meta) (*DeleteResult, error) {
	name, err := graph.NormalizeSnapshotName(name)
	if err != nil {
		return nil, err
	}

	err = e.db.WithTx(ctx, func(tx *store.Tx) error {
		res, err := tx.ExecContext(ctx, `DELETE FROM graph_snapshots WHERE name = ?`, name)
		if err != nil {
			return fmt.Errorf("delete snapshot %q: %w", name, err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("delete snapshot %q: %w", name, err)
		}
		if n == 0 {
			return graph.NewNotFoundError("saved graph", name)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	e.log.Info("graph snapshot deleted", zap.String("name", name), zap.String("actor", m.Actor))
	return &DeleteResult{
		Name:      name,
		DeletedAt: graph.FormatTime(e.gs.Clock().Now()),
		Message:   "saved graph deleted",
	}, nil
}
