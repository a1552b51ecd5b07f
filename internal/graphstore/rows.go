package graphstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/roach88/thinkgraph/internal/audit"
	"github.com/roach88/thinkgraph/internal/graph"
	"github.com/roach88/thinkgraph/internal/store"
)

// CascadeSuffix marks connection deletes caused by deleting a node.
const CascadeSuffix = " [cascade by node deletion]"

const nodeColumns = `id, content, summary, position_x, position_y, color, size, tags,
	confidence, evidence, created_at, updated_at, version, is_deleted`

const connectionColumns = `id, source_id, target_id, conn_type, description, strength,
	created_at, updated_at, version, is_deleted`

// order by creation time; rowid breaks ties in insertion order
const creationOrder = ` ORDER BY created_at ASC, rowid ASC`

type scanner interface {
	Scan(dest ...any) error
}

func scanNode(row scanner) (graph.Node, error) {
	var (
		n                    graph.Node
		tags, evidence       string
		createdAt, updatedAt string
	)
	err := row.Scan(&n.ID, &n.Content, &n.Summary, &n.Position.X, &n.Position.Y,
		&n.Color, &n.Size, &tags, &n.Confidence, &evidence,
		&createdAt, &updatedAt, &n.Version, &n.IsDeleted)
	if err != nil {
		return graph.Node{}, err
	}
	n.Tags = graph.DecodeList(tags)
	n.Evidence = graph.DecodeList(evidence)
	if n.CreatedAt, err = graph.ParseTime(createdAt); err != nil {
		return graph.Node{}, fmt.Errorf("node %s created_at: %w", n.ID, err)
	}
	if n.UpdatedAt, err = graph.ParseTime(updatedAt); err != nil {
		return graph.Node{}, fmt.Errorf("node %s updated_at: %w", n.ID, err)
	}
	return n, nil
}

func scanConnection(row scanner) (graph.Connection, error) {
	var (
		c                    graph.Connection
		connType             string
		createdAt, updatedAt string
	)
	err := row.Scan(&c.ID, &c.SourceID, &c.TargetID, &connType, &c.Description, &c.Strength,
		&createdAt, &updatedAt, &c.Version, &c.IsDeleted)
	if err != nil {
		return graph.Connection{}, err
	}
	c.ConnType = graph.ConnType(connType)
	if c.CreatedAt, err = graph.ParseTime(createdAt); err != nil {
		return graph.Connection{}, fmt.Errorf("connection %s created_at: %w", c.ID, err)
	}
	if c.UpdatedAt, err = graph.ParseTime(updatedAt); err != nil {
		return graph.Connection{}, fmt.Errorf("connection %s updated_at: %w", c.ID, err)
	}
	return c, nil
}

// LoadNode reads one node row, deleted or not. The bool is false when no
// row has the id.
func LoadNode(ctx context.Context, q store.Querier, id string) (graph.Node, bool, error) {
	n, err := scanNode(q.QueryRowContext(ctx, `SELECT `+nodeColumns+` FROM nodes WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return graph.Node{}, false, nil
	}
	if err != nil {
		return graph.Node{}, false, fmt.Errorf("load node %s: %w", id, err)
	}
	return n, true, nil
}

// LoadConnection reads one connection row, deleted or not.
func LoadConnection(ctx context.Context, q store.Querier, id string) (graph.Connection, bool, error) {
	c, err := scanConnection(q.QueryRowContext(ctx, `SELECT `+connectionColumns+` FROM connections WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return graph.Connection{}, false, nil
	}
	if err != nil {
		return graph.Connection{}, false, fmt.Errorf("load connection %s: %w", id, err)
	}
	return c, true, nil
}

// LoadNodes returns nodes in creation order, live only unless
// includeDeleted. The result is never nil.
func LoadNodes(ctx context.Context, q store.Querier, includeDeleted bool) ([]graph.Node, error) {
	query := `SELECT ` + nodeColumns + ` FROM nodes`
	if !includeDeleted {
		query += ` WHERE is_deleted = 0`
	}
	rows, err := q.QueryContext(ctx, query+creationOrder)
	if err != nil {
		return nil, fmt.Errorf("query nodes: %w", err)
	}
	defer rows.Close()

	out := []graph.Node{}
	for rows.Next() {
		n, err := scanNode(rows)
		if err != nil {
			return nil, fmt.Errorf("scan node: %w", err)
		}
		out = append(out, n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate nodes: %w", err)
	}
	return out, nil
}

// LoadConnections returns connections in creation order, live only unless
// includeDeleted. The result is never nil.
func LoadConnections(ctx context.Context, q store.Querier, includeDeleted bool) ([]graph.Connection, error) {
	query := `SELECT ` + connectionColumns + ` FROM connections`
	if !includeDeleted {
		query += ` WHERE is_deleted = 0`
	}
	return queryConnections(ctx, q, query+creationOrder)
}

func queryConnections(ctx context.Context, q store.Querier, query string, args ...any) ([]graph.Connection, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query connections: %w", err)
	}
	defer rows.Close()

	out := []graph.Connection{}
	for rows.Next() {
		c, err := scanConnection(rows)
		if err != nil {
			return nil, fmt.Errorf("scan connection: %w", err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate connections: %w", err)
	}
	return out, nil
}

// nodeIsLive reports whether id names a node that is not deleted.
func nodeIsLive(ctx context.Context, q store.Querier, id string) (bool, error) {
	var one int
	err := q.QueryRowContext(ctx, `SELECT 1 FROM nodes WHERE id = ? AND is_deleted = 0`, id).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("check node %s: %w", id, err)
	}
	return true, nil
}

// InsertNode writes n as a new row together with its create entry.
func InsertNode(ctx context.Context, tx *store.Tx, n graph.Node, m Meta) error {
	tags, err := graph.EncodeList(n.Tags)
	if err != nil {
		return err
	}
	evidence, err := graph.EncodeList(n.Evidence)
	if err != nil {
		return err
	}
	_, err = tx.ExecContext(ctx, `INSERT INTO nodes (`+nodeColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		n.ID, n.Content, n.Summary, n.Position.X, n.Position.Y, n.Color, n.Size, tags,
		n.Confidence, evidence, graph.FormatTime(n.CreatedAt), graph.FormatTime(n.UpdatedAt),
		n.Version, n.IsDeleted)
	if err != nil {
		return fmt.Errorf("insert node %s: %w", n.ID, err)
	}
	return audit.Write(ctx, tx, audit.Entry{
		EntityType: graph.EntityNode,
		EntityID:   n.ID,
		Action:     graph.ActionCreate,
		Actor:      m.Actor,
		Reason:     m.Reason,
		After:      n.ToState(),
		At:         n.CreatedAt,
	})
}

// InsertConnection writes c as a new row together with its create entry.
// Endpoint liveness is the caller's concern; the foreign keys only
// guarantee the endpoint rows exist.
func InsertConnection(ctx context.Context, tx *store.Tx, c graph.Connection, m Meta) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO connections (`+connectionColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		c.ID, c.SourceID, c.TargetID, string(c.ConnType), c.Description, c.Strength,
		graph.FormatTime(c.CreatedAt), graph.FormatTime(c.UpdatedAt), c.Version, c.IsDeleted)
	if err != nil {
		return fmt.Errorf("insert connection %s: %w", c.ID, err)
	}
	return audit.Write(ctx, tx, audit.Entry{
		EntityType: graph.EntityConnection,
		EntityID:   c.ID,
		Action:     graph.ActionCreate,
		Actor:      m.Actor,
		Reason:     m.Reason,
		After:      c.ToState(),
		At:         c.CreatedAt,
	})
}

func updateNodeRow(ctx context.Context, tx *store.Tx, before, after graph.Node, m Meta) error {
	tags, err := graph.EncodeList(after.Tags)
	if err != nil {
		return err
	}
	evidence, err := graph.EncodeList(after.Evidence)
	if err != nil {
		return err
	}
	_, err = tx.ExecContext(ctx, `
		UPDATE nodes SET content = ?, summary = ?, position_x = ?, position_y = ?, color = ?,
			size = ?, tags = ?, confidence = ?, evidence = ?, updated_at = ?, version = ?
		WHERE id = ?`,
		after.Content, after.Summary, after.Position.X, after.Position.Y, after.Color,
		after.Size, tags, after.Confidence, evidence, graph.FormatTime(after.UpdatedAt),
		after.Version, after.ID)
	if err != nil {
		return fmt.Errorf("update node %s: %w", after.ID, err)
	}
	return audit.Write(ctx, tx, audit.Entry{
		EntityType: graph.EntityNode,
		EntityID:   after.ID,
		Action:     graph.ActionUpdate,
		Actor:      m.Actor,
		Reason:     m.Reason,
		Before:     before.ToState(),
		After:      after.ToState(),
		At:         after.UpdatedAt,
	})
}

func updateConnectionRow(ctx context.Context, tx *store.Tx, before, after graph.Connection, m Meta) error {
	_, err := tx.ExecContext(ctx, `
		UPDATE connections SET conn_type = ?, description = ?, strength = ?, updated_at = ?, version = ?
		WHERE id = ?`,
		string(after.ConnType), after.Description, after.Strength,
		graph.FormatTime(after.UpdatedAt), after.Version, after.ID)
	if err != nil {
		return fmt.Errorf("update connection %s: %w", after.ID, err)
	}
	return audit.Write(ctx, tx, audit.Entry{
		EntityType: graph.EntityConnection,
		EntityID:   after.ID,
		Action:     graph.ActionUpdate,
		Actor:      m.Actor,
		Reason:     m.Reason,
		Before:     before.ToState(),
		After:      after.ToState(),
		At:         after.UpdatedAt,
	})
}

// SoftDeleteNode tombstones a live node at time at and writes its delete
// entry. Incident connections are not touched; see Store.DeleteNode.
func SoftDeleteNode(ctx context.Context, tx *store.Tx, n graph.Node, m Meta, at time.Time) (graph.Node, error) {
	dead := n.Tombstone(at)
	_, err := tx.ExecContext(ctx, `UPDATE nodes SET is_deleted = 1, version = ?, updated_at = ? WHERE id = ?`,
		dead.Version, graph.FormatTime(dead.UpdatedAt), dead.ID)
	if err != nil {
		return graph.Node{}, fmt.Errorf("delete node %s: %w", n.ID, err)
	}
	err = audit.Write(ctx, tx, audit.Entry{
		EntityType: graph.EntityNode,
		EntityID:   n.ID,
		Action:     graph.ActionDelete,
		Actor:      m.Actor,
		Reason:     m.Reason,
		Before:     n.ToState(),
		After:      dead.ToState(),
		At:         at,
	})
	return dead, err
}

// SoftDeleteConnection tombstones a live connection at time at and writes
// its delete entry.
func SoftDeleteConnection(ctx context.Context, tx *store.Tx, c graph.Connection, m Meta, at time.Time) (graph.Connection, error) {
	dead := c.Tombstone(at)
	_, err := tx.ExecContext(ctx, `UPDATE connections SET is_deleted = 1, version = ?, updated_at = ? WHERE id = ?`,
		dead.Version, graph.FormatTime(dead.UpdatedAt), dead.ID)
	if err != nil {
		return graph.Connection{}, fmt.Errorf("delete connection %s: %w", c.ID, err)
	}
	err = audit.Write(ctx, tx, audit.Entry{
		EntityType: graph.EntityConnection,
		EntityID:   c.ID,
		Action:     graph.ActionDelete,
		Actor:      m.Actor,
		Reason:     m.Reason,
		Before:     c.ToState(),
		After:      dead.ToState(),
		At:         at,
	})
	return dead, err
}
