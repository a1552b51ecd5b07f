package audit

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/roach88/thinkgraph/internal/graph"
	"github.com/roach88/thinkgraph/internal/metrics"
)

// Report is the result of an integrity check. Issues are reported, never
// raised: a failing check leaves the system fully usable.
type Report struct {
	OK        bool     `json:"ok"`
	Issues    []string `json:"issues"`
	CheckedAt string   `json:"checked_at"`
}

type entityRow struct {
	entityType graph.EntityType
	id         string
	deleted    bool
}

type auditRow struct {
	action    graph.Action
	hasBefore bool
	hasAfter  bool
}

var entityTables = []struct {
	entityType graph.EntityType
	table      string
}{
	{graph.EntityNode, "nodes"},
	{graph.EntityConnection, "connections"},
}

// Verify checks every entity row, live or deleted, against the audit log:
//   - a create entry exists, and it carries an after state
//   - a deleted entity has a delete entry, which carries a before state
//   - every update entry carries both states
func (t *Trail) Verify(ctx context.Context) (*Report, error) {
	// Read each result set fully before issuing the next query: the store
	// holds a single connection.
	var entities []entityRow
	for _, et := range entityTables {
		rows, err := t.loadEntities(ctx, et.entityType, et.table)
		if err != nil {
			return nil, err
		}
		entities = append(entities, rows...)
	}

	audits, err := t.loadAudits(ctx)
	if err != nil {
		return nil, err
	}

	issues := []string{}
	for _, e := range entities {
		key := string(e.entityType) + ":" + e.id
		entries := audits[key]

		seen := map[graph.Action]bool{}
		for _, a := range entries {
			seen[a.action] = true
		}
		if !seen[graph.ActionCreate] {
			issues = append(issues, key+" missing create audit.")
		}
		if e.deleted && !seen[graph.ActionDelete] {
			issues = append(issues, key+" missing delete audit.")
		}

		for _, a := range entries {
			switch a.action {
			case graph.ActionCreate:
				if !a.hasAfter {
					issues = append(issues, key+" create audit missing after_state.")
				}
			case graph.ActionUpdate:
				if !a.hasBefore || !a.hasAfter {
					issues = append(issues, key+" update audit missing state snapshot.")
				}
			case graph.ActionDelete:
				if !a.hasBefore {
					issues = append(issues, key+" delete audit missing before_state.")
				}
			}
		}
	}

	metrics.IntegrityIssues.Set(float64(len(issues)))
	if len(issues) > 0 {
		t.log.Warn("audit integrity check failed",
			zap.Int("issues", len(issues)),
			zap.Int("entities", len(entities)),
			zap.String("first_issue", issues[0]),
		)
	} else {
		t.log.Debug("audit integrity check passed", zap.Int("entities", len(entities)))
	}

	return &Report{
		OK:        len(issues) == 0,
		Issues:    issues,
		CheckedAt: graph.FormatTime(t.clock.Now()),
	}, nil
}

func (t *Trail) loadEntities(ctx context.Context, entityType graph.EntityType, table string) ([]entityRow, error) {
	rows, err := t.db.QueryContext(ctx,
		`SELECT id, is_deleted FROM `+table+` ORDER BY created_at ASC, rowid ASC`)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", table, err)
	}
	defer rows.Close()

	var out []entityRow
	for rows.Next() {
		r := entityRow{entityType: entityType}
		if err := rows.Scan(&r.id, &r.deleted); err != nil {
			return nil, fmt.Errorf("scan %s: %w", table, err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate %s: %w", table, err)
	}
	return out, nil
}

// loadAudits groups audit entries by "type:id", each group in id order.
// A state counts as present only when it is non-NULL and non-empty.
func (t *Trail) loadAudits(ctx context.Context) (map[string][]auditRow, error) {
	rows, err := t.db.QueryContext(ctx, `
		SELECT entity_type, entity_id, action,
		       COALESCE(before_state, '') <> '', COALESCE(after_state, '') <> ''
		FROM audits ORDER BY id ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query audits: %w", err)
	}
	defer rows.Close()

	out := map[string][]auditRow{}
	for rows.Next() {
		var (
			entityType, entityID, action string
			a                            auditRow
		)
		if err := rows.Scan(&entityType, &entityID, &action, &a.hasBefore, &a.hasAfter); err != nil {
			return nil, fmt.Errorf("scan audit: %w", err)
		}
		a.action = graph.Action(action)
		key := entityType + ":" + entityID
		out[key] = append(out[key], a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate audits: %w", err)
	}
	return out, nil
}
