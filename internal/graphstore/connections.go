package graphstore

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/roach88/thinkgraph/internal/graph"
	"github.com/roach88/thinkgraph/internal/store"
)

// ListConnections returns connections in creation order; deleted ones only
// when includeDeleted is set.
func (s *Store) ListConnections(ctx context.Context, includeDeleted bool) ([]graph.Connection, error) {
	return LoadConnections(ctx, s.db, includeDeleted)
}

// CreateConnection validates p and stores it as a new version-1 connection.
// Both endpoints must be live nodes at the time of the write.
func (s *Store) CreateConnection(ctx context.Context, p graph.ConnectionCreate, m Meta) (graph.Connection, error) {
	if err := p.Validate(); err != nil {
		return graph.Connection{}, err
	}
	c := p.Build(s.newID(), s.clock.Now())

	err := s.db.WithTx(ctx, func(tx *store.Tx) error {
		for _, id := range []string{c.SourceID, c.TargetID} {
			live, err := nodeIsLive(ctx, tx, id)
			if err != nil {
				return err
			}
			if !live {
				return graph.NewValidationError("", "source/target node does not exist or is deleted")
			}
		}
		return InsertConnection(ctx, tx, c, m)
	})
	if err != nil {
		if graph.IsValidationError(err) {
			return graph.Connection{}, err
		}
		return graph.Connection{}, fmt.Errorf("create connection: %w", err)
	}

	s.log.Debug("connection created",
		zap.String("id", c.ID),
		zap.String("source", c.SourceID),
		zap.String("target", c.TargetID),
		zap.String("type", string(c.ConnType)),
	)
	return c, nil
}

// UpdateConnection applies p to the live connection with id. It returns
// nil, nil when the connection is missing or deleted.
func (s *Store) UpdateConnection(ctx context.Context, id string, p graph.ConnectionUpdate, m Meta) (*graph.Connection, error) {
	var updated *graph.Connection
	err := s.db.WithTx(ctx, func(tx *store.Tx) error {
		cur, ok, err := LoadConnection(ctx, tx, id)
		if err != nil || !ok || cur.IsDeleted {
			return err
		}

		next, err := p.Apply(cur)
		if err != nil {
			return err
		}
		next.Version = cur.Version + 1
		next.UpdatedAt = s.clock.Now()

		if err := updateConnectionRow(ctx, tx, cur, next, m); err != nil {
			return err
		}
		updated = &next
		return nil
	})
	if err != nil {
		if graph.IsValidationError(err) {
			return nil, err
		}
		return nil, fmt.Errorf("update connection: %w", err)
	}

	if updated != nil {
		s.log.Debug("connection updated", zap.String("id", id), zap.Int64("version", updated.Version))
	}
	return updated, nil
}

// DeleteConnection soft-deletes the live connection with id. It returns
// false when the connection is missing or already deleted.
func (s *Store) DeleteConnection(ctx context.Context, id string, m Meta) (bool, error) {
	deleted := false
	err := s.db.WithTx(ctx, func(tx *store.Tx) error {
		c, ok, err := LoadConnection(ctx, tx, id)
		if err != nil || !ok || c.IsDeleted {
			return err
		}
		if _, err := SoftDeleteConnection(ctx, tx, c, m, s.clock.Now()); err != nil {
			return err
		}
		deleted = true
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("delete connection: %w", err)
	}

	if deleted {
		s.log.Debug("connection deleted", zap.String("id", id), zap.String("actor", m.Actor))
	}
	return deleted, nil
}
