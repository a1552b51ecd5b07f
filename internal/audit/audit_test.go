package audit

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/thinkgraph/internal/graph"
	"github.com/roach88/thinkgraph/internal/store"
	"github.com/roach88/thinkgraph/internal/testutil"
)

type fixture struct {
	st    *store.Store
	clock *testutil.DeterministicClock
	trail *Trail
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	st := testutil.OpenStore(t)
	clock := testutil.NewDeterministicClock()
	return &fixture{st: st, clock: clock, trail: NewTrail(st, nil, WithClock(clock))}
}

// insertNode writes a node row and its create entry, as the entity store would.
func (f *fixture) insertNode(t *testing.T, id, actor string) graph.Node {
	t.Helper()
	n, err := graph.NodeCreate{Content: "node " + id}.Build(id, f.clock.Now())
	require.NoError(t, err)

	err = f.st.WithTx(context.Background(), func(tx *store.Tx) error {
		if _, err := tx.ExecContext(context.Background(), `
			INSERT INTO nodes (id, content, created_at, updated_at)
			VALUES (?, ?, ?, ?)
		`, n.ID, n.Content, graph.FormatTime(n.CreatedAt), graph.FormatTime(n.UpdatedAt)); err != nil {
			return err
		}
		return Write(context.Background(), tx, Entry{
			EntityType: graph.EntityNode,
			EntityID:   n.ID,
			Action:     graph.ActionCreate,
			Actor:      actor,
			After:      n.ToState(),
			At:         n.CreatedAt,
		})
	})
	require.NoError(t, err)
	return n
}

func (f *fixture) write(t *testing.T, e Entry) {
	t.Helper()
	require.NoError(t, f.st.WithTx(context.Background(), func(tx *store.Tx) error {
		return Write(context.Background(), tx, e)
	}))
}

func TestWrite_RejectsMissingStates(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	tests := []Entry{
		{EntityType: graph.EntityNode, EntityID: "a", Action: graph.ActionCreate},
		{EntityType: graph.EntityNode, EntityID: "a", Action: graph.ActionUpdate, After: graph.State{}},
		{EntityType: graph.EntityNode, EntityID: "a", Action: graph.ActionDelete, After: graph.State{}},
		{EntityType: graph.EntityNode, EntityID: "a", Action: "touch", After: graph.State{}},
	}
	for _, e := range tests {
		err := f.st.WithTx(ctx, func(tx *store.Tx) error { return Write(ctx, tx, e) })
		assert.Error(t, err, "action %s", e.Action)
	}

	records, err := f.trail.List(ctx, Filter{})
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestWrite_RolledBackWithMutation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	err := f.st.WithTx(ctx, func(tx *store.Tx) error {
		if err := Write(ctx, tx, Entry{
			EntityType: graph.EntityNode, EntityID: "a", Action: graph.ActionCreate,
			Actor: "u", After: graph.State{"id": "a"}, At: f.clock.Now(),
		}); err != nil {
			return err
		}
		return assert.AnError
	})
	require.ErrorIs(t, err, assert.AnError)

	records, err := f.trail.List(ctx, Filter{})
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestList_NewestFirstWithFilters(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	a := f.insertNode(t, "a", "alice")
	f.insertNode(t, "b", "bob")
	f.write(t, Entry{
		EntityType: graph.EntityNode, EntityID: "a", Action: graph.ActionUpdate, Actor: "alice",
		Reason: "tidy", Before: a.ToState(), After: a.ToState(), At: f.clock.Now(),
	})

	all, err := f.trail.List(ctx, Filter{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, graph.ActionUpdate, all[0].Action)
	assert.Equal(t, "b", all[1].EntityID)
	assert.Equal(t, "a", all[2].EntityID)
	assert.Greater(t, all[0].ID, all[1].ID)

	require.NotNil(t, all[0].Reason)
	assert.Equal(t, "tidy", *all[0].Reason)
	assert.Nil(t, all[1].Reason, "empty reason is stored as NULL")
	assert.Nil(t, all[2].BeforeState)
	assert.Equal(t, "node a", all[2].AfterState["content"])

	onlyA, err := f.trail.List(ctx, Filter{EntityType: graph.EntityNode, EntityID: "a"})
	require.NoError(t, err)
	assert.Len(t, onlyA, 2)

	conns, err := f.trail.List(ctx, Filter{EntityType: graph.EntityConnection})
	require.NoError(t, err)
	assert.Empty(t, conns)
}

func TestList_ClampsLimit(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	for _, id := range []string{"a", "b", "c"} {
		f.insertNode(t, id, "u")
	}

	one, err := f.trail.List(ctx, Filter{Limit: -5})
	require.NoError(t, err)
	assert.Len(t, one, 1)

	two, err := f.trail.List(ctx, Filter{Limit: 2})
	require.NoError(t, err)
	assert.Len(t, two, 2)

	assert.Equal(t, 1, clampLimit(-1, DefaultListLimit, MaxListLimit))
	assert.Equal(t, DefaultListLimit, clampLimit(0, DefaultListLimit, MaxListLimit))
	assert.Equal(t, MaxListLimit, clampLimit(1_000_000, DefaultListLimit, MaxListLimit))
	assert.Equal(t, MaxExportLimit, clampLimit(1_000_000, DefaultExportLimit, MaxExportLimit))
}

func TestExport_AggregatesCounts(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	a := f.insertNode(t, "a", "alice")
	f.insertNode(t, "b", "bob")
	f.write(t, Entry{
		EntityType: graph.EntityNode, EntityID: "a", Action: graph.ActionDelete, Actor: "alice",
		Before: a.ToState(), After: a.Tombstone(f.clock.Peek()).ToState(), At: f.clock.Now(),
	})

	at := f.clock.Peek()
	exp, err := f.trail.Export(ctx, Filter{})
	require.NoError(t, err)

	assert.Equal(t, ReportFormat, exp.Format)
	assert.Equal(t, 3, exp.RecordCount)
	assert.Equal(t, map[string]int{"node": 3}, exp.EntityCounts)
	assert.Equal(t, map[string]int{"create": 2, "delete": 1}, exp.ActionCounts)
	assert.Equal(t, map[string]int{"alice": 2, "bob": 1}, exp.ActorCounts)
	assert.Equal(t, graph.FormatTime(at), exp.ExportedAt)
	assert.Equal(t, "thinking-graph-audit-report-"+graph.FileStamp(at)+".json", exp.SuggestedFileName)
	assert.Len(t, exp.Audits, 3)
}

func TestVerify_CleanLog(t *testing.T) {
	f := newFixture(t)
	f.insertNode(t, "a", "u")

	report, err := f.trail.Verify(context.Background())
	require.NoError(t, err)
	assert.True(t, report.OK)
	assert.Empty(t, report.Issues)
	assert.NotEmpty(t, report.CheckedAt)
}

func TestVerify_ReportsOutOfBandTampering(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.insertNode(t, "a", "u")
	f.insertNode(t, "b", "u")

	// Remove a's create entry and mark b deleted without a delete entry.
	_, err := f.st.DB().ExecContext(ctx, `DELETE FROM audits WHERE entity_id = 'a'`)
	require.NoError(t, err)
	_, err = f.st.DB().ExecContext(ctx, `UPDATE nodes SET is_deleted = 1 WHERE id = 'b'`)
	require.NoError(t, err)
	_, err = f.st.DB().ExecContext(ctx, `
		INSERT INTO audits (entity_type, entity_id, action, actor, before_state, after_state, created_at)
		VALUES ('node', 'b', 'update', 'u', NULL, '{}', '2026-01-01T00:00:00.000000+00:00')
	`)
	require.NoError(t, err)

	report, err := f.trail.Verify(ctx)
	require.NoError(t, err)
	assert.False(t, report.OK)
	assert.Equal(t, []string{
		"node:a missing create audit.",
		"node:b missing delete audit.",
		"node:b update audit missing state snapshot.",
	}, report.Issues)
}

func TestVerify_EmptyStateCountsAsMissing(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.insertNode(t, "a", "u")

	_, err := f.st.DB().ExecContext(ctx, `UPDATE audits SET after_state = '' WHERE entity_id = 'a'`)
	require.NoError(t, err)

	report, err := f.trail.Verify(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"node:a create audit missing after_state."}, report.Issues)
}
