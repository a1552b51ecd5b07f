package graphstore

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/roach88/thinkgraph/internal/graph"
	"github.com/roach88/thinkgraph/internal/store"
)

// ListNodes returns nodes in creation order; deleted ones only when
// includeDeleted is set.
func (s *Store) ListNodes(ctx context.Context, includeDeleted bool) ([]graph.Node, error) {
	return LoadNodes(ctx, s.db, includeDeleted)
}

// GetNode returns the live node with id, or nil when it is missing or
// deleted.
func (s *Store) GetNode(ctx context.Context, id string) (*graph.Node, error) {
	n, ok, err := LoadNode(ctx, s.db, id)
	if err != nil || !ok || n.IsDeleted {
		return nil, err
	}
	return &n, nil
}

// CreateNode validates p and stores it as a new version-1 node.
func (s *Store) CreateNode(ctx context.Context, p graph.NodeCreate, m Meta) (graph.Node, error) {
	n, err := p.Build(s.newID(), s.clock.Now())
	if err != nil {
		return graph.Node{}, err
	}

	if err := s.db.WithTx(ctx, func(tx *store.Tx) error {
		return InsertNode(ctx, tx, n, m)
	}); err != nil {
		return graph.Node{}, fmt.Errorf("create node: %w", err)
	}

	s.log.Debug("node created", zap.String("id", n.ID), zap.String("actor", m.Actor))
	return n, nil
}

// UpdateNode applies p to the live node with id. It returns nil, nil when
// the node is missing or deleted.
func (s *Store) UpdateNode(ctx context.Context, id string, p graph.NodeUpdate, m Meta) (*graph.Node, error) {
	var updated *graph.Node
	err := s.db.WithTx(ctx, func(tx *store.Tx) error {
		cur, ok, err := LoadNode(ctx, tx, id)
		if err != nil || !ok || cur.IsDeleted {
			return err
		}

		next, err := p.Apply(cur)
		if err != nil {
			return err
		}
		next.Version = cur.Version + 1
		next.UpdatedAt = s.clock.Now()

		if err := updateNodeRow(ctx, tx, cur, next, m); err != nil {
			return err
		}
		updated = &next
		return nil
	})
	if err != nil {
		if graph.IsValidationError(err) {
			return nil, err
		}
		return nil, fmt.Errorf("update node: %w", err)
	}

	if updated != nil {
		s.log.Debug("node updated", zap.String("id", id), zap.Int64("version", updated.Version))
	}
	return updated, nil
}

// DeleteNode soft-deletes the live node with id and every live connection
// incident to it, all in one transaction. It returns false when the node is
// missing or already deleted.
func (s *Store) DeleteNode(ctx context.Context, id string, m Meta) (bool, error) {
	deleted := false
	cascaded := 0
	err := s.db.WithTx(ctx, func(tx *store.Tx) error {
		n, ok, err := LoadNode(ctx, tx, id)
		if err != nil || !ok || n.IsDeleted {
			return err
		}

		at := s.clock.Now()
		if _, err := SoftDeleteNode(ctx, tx, n, m, at); err != nil {
			return err
		}

		incident, err := queryConnections(ctx, tx, `SELECT `+connectionColumns+` FROM connections
			WHERE is_deleted = 0 AND (source_id = ? OR target_id = ?)`+creationOrder, id, id)
		if err != nil {
			return err
		}
		cascade := m.WithSuffix(CascadeSuffix)
		for _, c := range incident {
			if _, err := SoftDeleteConnection(ctx, tx, c, cascade, s.clock.Now()); err != nil {
				return err
			}
		}

		deleted = true
		cascaded = len(incident)
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("delete node: %w", err)
	}

	if deleted {
		s.log.Debug("node deleted", zap.String("id", id), zap.String("actor", m.Actor))
		if cascaded > 0 {
			s.log.Info("cascade deleted connections", zap.String("node", id), zap.Int("count", cascaded))
		}
	}
	return deleted, nil
}
