package harness

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"reflect"
	"slices"
	"strings"

	"go.uber.org/zap"

	"github.com/roach88/thinkgraph/internal/audit"
	"github.com/roach88/thinkgraph/internal/graph"
	"github.com/roach88/thinkgraph/internal/graphstore"
	"github.com/roach88/thinkgraph/internal/snapshot"
	"github.com/roach88/thinkgraph/internal/store"
	"github.com/roach88/thinkgraph/internal/testutil"
)

// IDPrefix prefixes every id a scenario allocates: "id-0001", "id-0002", ...
const IDPrefix = "id"

// Harness executes one scenario against its own database.
type Harness struct {
	db        *store.Store
	graph     *graphstore.Store
	snapshots *snapshot.Engine
	trail     *audit.Trail
	actor     string
	bindings  map[string]string
}

// Run executes a scenario and returns the result.
//
// Each scenario runs in a fresh in-memory database with a deterministic
// clock and sequential ids. A returned error means the scenario could not
// be executed at all (storage failure, unbound reference); expectation
// mismatches are reported in Result.Errors instead.
func Run(scenario *Scenario) (*Result, error) {
	st, err := store.Open(":memory:")
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory store: %w", err)
	}
	defer st.Close()

	clock := testutil.NewDeterministicClock()
	ids := testutil.NewSequentialIDs(IDPrefix)
	log := zap.NewNop()
	gs := graphstore.New(st, log,
		graphstore.WithClock(clock),
		graphstore.WithIDGenerator(ids.Generate),
	)

	actor := scenario.Actor
	if actor == "" {
		actor = DefaultActor
	}
	h := &Harness{
		db:        st,
		graph:     gs,
		snapshots: snapshot.New(gs),
		trail:     audit.NewTrail(st, log, audit.WithClock(clock)),
		actor:     actor,
		bindings:  map[string]string{},
	}

	ctx := context.Background()
	result := NewResult()

	for i, step := range scenario.Flow {
		if err := h.executeStep(ctx, i, step, result); err != nil {
			return nil, fmt.Errorf("flow[%d] %s: %w", i, step.Op, err)
		}
	}

	trace, err := h.loadTrace(ctx)
	if err != nil {
		return nil, err
	}
	result.Trace = trace

	for _, msg := range h.evaluateAssertions(ctx, trace, scenario.Assertions) {
		result.AddError(msg)
	}
	for k, v := range h.bindings {
		result.Bindings[k] = v
	}
	return result, nil
}

// executeStep runs one step and records any expectation mismatch.
func (h *Harness) executeStep(ctx context.Context, i int, step Step, result *Result) error {
	value, bind, err := h.invoke(ctx, step)

	outcome := OutcomeOK
	switch {
	case err == nil:
	case graph.IsValidationError(err):
		outcome = OutcomeValidation
	case graph.IsNotFoundError(err):
		outcome = OutcomeNotFound
	default:
		return err
	}

	want := OutcomeOK
	if step.Expect != nil {
		want = step.Expect.Outcome
	}
	if outcome != want {
		msg := fmt.Sprintf("flow[%d] %s: expected outcome %s, got %s", i, step.Op, want, outcome)
		if err != nil {
			msg += ": " + err.Error()
		}
		result.AddError(msg)
		return nil
	}
	if outcome != OutcomeOK {
		return nil
	}

	if step.As != "" {
		h.bindings[step.As] = bind
	}
	if step.Expect != nil && len(step.Expect.Result) > 0 {
		if msg := h.compareResult(step.Expect.Result, value); msg != "" {
			result.AddError(fmt.Sprintf("flow[%d] %s: %s", i, step.Op, msg))
		}
	}
	return nil
}

// invoke dispatches a step. It returns the operation's result value and the
// id or name a following "as" binds.
func (h *Harness) invoke(ctx context.Context, step Step) (any, string, error) {
	args, err := h.resolve(step.Args)
	if err != nil {
		return nil, "", err
	}
	id, err := h.resolveString(step.ID)
	if err != nil {
		return nil, "", err
	}
	m := graphstore.Meta{Actor: h.actor, Reason: step.Reason}

	switch step.Op {
	case "node.create":
		var p graph.NodeCreate
		if err := decodeArgs(args, &p); err != nil {
			return nil, "", err
		}
		n, err := h.graph.CreateNode(ctx, p, m)
		if err != nil {
			return nil, "", err
		}
		return n.ToState(), n.ID, nil

	case "node.update":
		var p graph.NodeUpdate
		if err := decodeArgs(args, &p); err != nil {
			return nil, "", err
		}
		n, err := h.graph.UpdateNode(ctx, id, p, m)
		if err != nil {
			return nil, "", err
		}
		if n == nil {
			return nil, "", graph.NewNotFoundError("node", id)
		}
		return n.ToState(), n.ID, nil

	case "node.delete":
		ok, err := h.graph.DeleteNode(ctx, id, m)
		if err != nil {
			return nil, "", err
		}
		if !ok {
			return nil, "", graph.NewNotFoundError("node", id)
		}
		return map[string]any{"deleted": true}, id, nil

	case "conn.create":
		var p graph.ConnectionCreate
		if err := decodeArgs(args, &p); err != nil {
			return nil, "", err
		}
		c, err := h.graph.CreateConnection(ctx, p, m)
		if err != nil {
			return nil, "", err
		}
		return c.ToState(), c.ID, nil

	case "conn.update":
		var p graph.ConnectionUpdate
		if err := decodeArgs(args, &p); err != nil {
			return nil, "", err
		}
		c, err := h.graph.UpdateConnection(ctx, id, p, m)
		if err != nil {
			return nil, "", err
		}
		if c == nil {
			return nil, "", graph.NewNotFoundError("connection", id)
		}
		return c.ToState(), c.ID, nil

	case "conn.delete":
		ok, err := h.graph.DeleteConnection(ctx, id, m)
		if err != nil {
			return nil, "", err
		}
		if !ok {
			return nil, "", graph.NewNotFoundError("connection", id)
		}
		return map[string]any{"deleted": true}, id, nil

	case "graph.import":
		data, err := json.Marshal(args)
		if err != nil {
			return nil, "", err
		}
		p, err := snapshot.DecodeImport(data)
		if err != nil {
			return nil, "", err
		}
		res, err := h.snapshots.ImportGraph(ctx, p, m)
		if err != nil {
			return nil, "", err
		}
		return res, "", nil

	case "graph.clear":
		res, err := h.snapshots.ClearGraph(ctx, m)
		if err != nil {
			return nil, "", err
		}
		return res, "", nil

	case "graph.save":
		res, err := h.snapshots.SaveGraph(ctx, step.Name, m)
		if err != nil {
			return nil, "", err
		}
		return res, res.Name, nil

	case "graph.load":
		res, err := h.snapshots.LoadGraph(ctx, step.Name, m)
		if err != nil {
			return nil, "", err
		}
		return res, res.Name, nil

	case "graph.delete_saved":
		res, err := h.snapshots.DeleteSavedGraph(ctx, step.Name, m)
		if err != nil {
			return nil, "", err
		}
		return res, res.Name, nil
	}
	return nil, "", fmt.Errorf("unknown op %q", step.Op)
}

// decodeArgs decodes args exactly as a JSON request body would be.
func decodeArgs(args any, dst any) error {
	data, err := json.Marshal(args)
	if err != nil {
		return fmt.Errorf("encode args: %w", err)
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return graph.NewValidationError("", err.Error())
	}
	return nil
}

// resolve replaces $references in v with bound ids.
func (h *Harness) resolve(v any) (any, error) {
	switch val := v.(type) {
	case string:
		return h.resolveString(val)
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, item := range val {
			r, err := h.resolve(item)
			if err != nil {
				return nil, err
			}
			out[k] = r
		}
		return out, nil
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			r, err := h.resolve(item)
			if err != nil {
				return nil, err
			}
			out[i] = r
		}
		return out, nil
	}
	return v, nil
}

func (h *Harness) resolveString(s string) (string, error) {
	if len(s) < 2 || !strings.HasPrefix(s, "$") {
		return s, nil
	}
	id, ok := h.bindings[s[1:]]
	if !ok {
		return "", fmt.Errorf("unbound reference %s", s)
	}
	return id, nil
}

// compareResult checks that every expected key matches value after a JSON
// round trip of both sides. It returns an empty string on success.
func (h *Harness) compareResult(expected map[string]any, value any) string {
	resolved, err := h.resolve(expected)
	if err != nil {
		return err.Error()
	}
	want, err := normalize(resolved)
	if err != nil {
		return err.Error()
	}
	got, err := normalize(value)
	if err != nil {
		return err.Error()
	}
	wantMap, _ := want.(map[string]any)
	gotMap, _ := got.(map[string]any)

	keys := make([]string, 0, len(wantMap))
	for k := range wantMap {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	for _, k := range keys {
		if !reflect.DeepEqual(wantMap[k], gotMap[k]) {
			return fmt.Sprintf("result field %q = %v, want %v", k, gotMap[k], wantMap[k])
		}
	}
	return ""
}

func normalize(v any) (any, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var out any
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// loadTrace returns the whole audit log, oldest entry first.
func (h *Harness) loadTrace(ctx context.Context) ([]TraceEvent, error) {
	rows, err := h.db.QueryContext(ctx, `
		SELECT id, entity_type, entity_id, action, actor, reason
		FROM audits
		ORDER BY id ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("load audit trace: %w", err)
	}
	defer rows.Close()

	trace := []TraceEvent{}
	for rows.Next() {
		var (
			ev     TraceEvent
			reason sql.NullString
		)
		if err := rows.Scan(&ev.Seq, &ev.EntityType, &ev.EntityID, &ev.Action, &ev.Actor, &reason); err != nil {
			return nil, fmt.Errorf("scan audit trace: %w", err)
		}
		ev.Reason = reason.String
		trace = append(trace, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate audit trace: %w", err)
	}
	return trace, nil
}
