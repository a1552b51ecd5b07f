package harness

import (
	"context"
	"fmt"
	"reflect"
	"regexp"
	"slices"
	"strings"
)

// validIdentifier matches valid SQL identifiers (table/column names).
// Identifiers cannot be parameterized, so they are checked before being
// interpolated into a query.
var validIdentifier = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// AssertionError is returned when an assertion fails.
type AssertionError struct {
	Type     string
	Expected string
	Actual   string
	Trace    []TraceEvent
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder
	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)
	if len(e.Trace) > 0 {
		fmt.Fprintf(&buf, "\nAudit trace:\n")
		for _, ev := range e.Trace {
			fmt.Fprintf(&buf, "  [%d] %s %s:%s\n", ev.Seq, ev.Action, ev.EntityType, ev.EntityID)
		}
	}
	return buf.String()
}

// evaluateAssertions runs every assertion and returns one message per
// failure.
func (h *Harness) evaluateAssertions(ctx context.Context, trace []TraceEvent, assertions []Assertion) []string {
	var errs []string
	for i, a := range assertions {
		if err := h.evaluate(ctx, trace, a); err != nil {
			errs = append(errs, fmt.Sprintf("assertions[%d]: %v", i, err))
		}
	}
	return errs
}

func (h *Harness) evaluate(ctx context.Context, trace []TraceEvent, a Assertion) error {
	switch a.Type {
	case AssertAuditContains:
		return h.assertAuditContains(trace, a)
	case AssertAuditCount:
		return h.assertAuditCount(trace, a)
	case AssertAuditOrder:
		return h.assertAuditOrder(trace, a)
	case AssertFinalState:
		return h.assertFinalState(ctx, a)
	case AssertLiveCount:
		return h.assertLiveCount(ctx, a)
	case AssertIntegrityOK:
		return h.assertIntegrityOK(ctx)
	}
	return fmt.Errorf("unknown assertion type %q", a.Type)
}

// filter is the resolved audit-entry filter of an assertion.
type filter struct {
	entity, id, action string
	reason             *string
}

func (h *Harness) filterOf(a Assertion) (filter, error) {
	id, err := h.resolveString(a.ID)
	if err != nil {
		return filter{}, err
	}
	return filter{entity: a.Entity, id: id, action: a.Action, reason: a.Reason}, nil
}

func (f filter) matches(ev TraceEvent) bool {
	if f.entity != "" && ev.EntityType != f.entity {
		return false
	}
	if f.id != "" && ev.EntityID != f.id {
		return false
	}
	if f.action != "" && ev.Action != f.action {
		return false
	}
	if f.reason != nil && ev.Reason != *f.reason {
		return false
	}
	return true
}

func (f filter) String() string {
	s := fmt.Sprintf("%s %s:%s", f.action, f.entity, f.id)
	if f.reason != nil {
		s += fmt.Sprintf(" reason=%q", *f.reason)
	}
	return s
}

func (h *Harness) assertAuditContains(trace []TraceEvent, a Assertion) error {
	f, err := h.filterOf(a)
	if err != nil {
		return err
	}
	if slices.ContainsFunc(trace, f.matches) {
		return nil
	}
	return &AssertionError{
		Type:     AssertAuditContains,
		Expected: f.String(),
		Actual:   "not found in audit trace",
		Trace:    trace,
	}
}

func (h *Harness) assertAuditCount(trace []TraceEvent, a Assertion) error {
	f, err := h.filterOf(a)
	if err != nil {
		return err
	}
	count := 0
	for _, ev := range trace {
		if f.matches(ev) {
			count++
		}
	}
	if count != *a.Count {
		return &AssertionError{
			Type:     AssertAuditCount,
			Expected: fmt.Sprintf("%d entries matching %s", *a.Count, f),
			Actual:   fmt.Sprintf("%d entries", count),
			Trace:    trace,
		}
	}
	return nil
}

// assertAuditOrder checks that each entry occurs after the previous one.
// Entries need not be consecutive.
func (h *Harness) assertAuditOrder(trace []TraceEvent, a Assertion) error {
	pos := -1
	for _, entry := range a.Entries {
		f, err := h.parseEntry(entry)
		if err != nil {
			return err
		}
		next := -1
		for i := pos + 1; i < len(trace); i++ {
			if f.matches(trace[i]) {
				next = i
				break
			}
		}
		if next < 0 {
			return &AssertionError{
				Type:     AssertAuditOrder,
				Expected: fmt.Sprintf("entries in order: %v", a.Entries),
				Actual:   fmt.Sprintf("%q not found after position %d", entry, pos+1),
				Trace:    trace,
			}
		}
		pos = next
	}
	return nil
}

// parseEntry parses "<action> <entity>:<id>".
func (h *Harness) parseEntry(entry string) (filter, error) {
	action, target, ok := strings.Cut(strings.TrimSpace(entry), " ")
	if !ok {
		return filter{}, fmt.Errorf("malformed audit_order entry %q", entry)
	}
	entity, rawID, ok := strings.Cut(strings.TrimSpace(target), ":")
	if !ok {
		return filter{}, fmt.Errorf("malformed audit_order entry %q", entry)
	}
	id, err := h.resolveString(rawID)
	if err != nil {
		return filter{}, err
	}
	return filter{entity: entity, id: id, action: action}, nil
}

// assertFinalState checks that exactly one row of the table matches Where
// and carries the Expect values.
func (h *Harness) assertFinalState(ctx context.Context, a Assertion) error {
	if !validIdentifier.MatchString(a.Table) {
		return fmt.Errorf("invalid table name %q", a.Table)
	}

	keys := make([]string, 0, len(a.Where))
	for k := range a.Where {
		if !validIdentifier.MatchString(k) {
			return fmt.Errorf("invalid column name %q in where clause", k)
		}
		keys = append(keys, k)
	}
	slices.Sort(keys)

	clauses := make([]string, 0, len(keys))
	args := make([]any, 0, len(keys))
	for _, k := range keys {
		v, err := h.resolve(a.Where[k])
		if err != nil {
			return err
		}
		clauses = append(clauses, k+" = ?")
		args = append(args, v)
	}

	query := "SELECT * FROM " + a.Table
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}
	where := strings.Join(clauses, " AND ")

	rows, err := h.db.QueryContext(ctx, query, args...)
	if err != nil {
		return &AssertionError{
			Type:     AssertFinalState,
			Expected: "query table " + a.Table,
			Actual:   fmt.Sprintf("query error: %v", err),
		}
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return fmt.Errorf("get columns: %w", err)
	}
	if !rows.Next() {
		return &AssertionError{
			Type:     AssertFinalState,
			Expected: fmt.Sprintf("row in %s where %s %v", a.Table, where, args),
			Actual:   "row not found",
		}
	}
	values := make([]any, len(columns))
	ptrs := make([]any, len(columns))
	for i := range values {
		ptrs[i] = &values[i]
	}
	if err := rows.Scan(ptrs...); err != nil {
		return fmt.Errorf("scan row: %w", err)
	}
	if rows.Next() {
		return &AssertionError{
			Type:     AssertFinalState,
			Expected: fmt.Sprintf("exactly one row in %s where %s %v", a.Table, where, args),
			Actual:   "multiple rows matched",
		}
	}
	if err := rows.Err(); err != nil {
		return err
	}

	row := make(map[string]any, len(columns))
	for i, col := range columns {
		row[col] = values[i]
	}

	expectKeys := make([]string, 0, len(a.Expect))
	for k := range a.Expect {
		expectKeys = append(expectKeys, k)
	}
	slices.Sort(expectKeys)
	for _, k := range expectKeys {
		actual, ok := row[k]
		if !ok {
			return &AssertionError{
				Type:     AssertFinalState,
				Expected: fmt.Sprintf("column %q", k),
				Actual:   fmt.Sprintf("columns are %v", columns),
			}
		}
		expected, err := h.resolve(a.Expect[k])
		if err != nil {
			return err
		}
		if !sqlValuesEqual(expected, actual) {
			return &AssertionError{
				Type:     AssertFinalState,
				Expected: fmt.Sprintf("%s.%s = %v", a.Table, k, expected),
				Actual:   fmt.Sprintf("%v", sqlValue(actual)),
			}
		}
	}
	return nil
}

func (h *Harness) assertLiveCount(ctx context.Context, a Assertion) error {
	if a.Nodes != nil {
		nodes, err := h.graph.ListNodes(ctx, false)
		if err != nil {
			return err
		}
		if len(nodes) != *a.Nodes {
			return &AssertionError{
				Type:     AssertLiveCount,
				Expected: fmt.Sprintf("%d live nodes", *a.Nodes),
				Actual:   fmt.Sprintf("%d live nodes", len(nodes)),
			}
		}
	}
	if a.Connections != nil {
		conns, err := h.graph.ListConnections(ctx, false)
		if err != nil {
			return err
		}
		if len(conns) != *a.Connections {
			return &AssertionError{
				Type:     AssertLiveCount,
				Expected: fmt.Sprintf("%d live connections", *a.Connections),
				Actual:   fmt.Sprintf("%d live connections", len(conns)),
			}
		}
	}
	return nil
}

func (h *Harness) assertIntegrityOK(ctx context.Context) error {
	report, err := h.trail.Verify(ctx)
	if err != nil {
		return err
	}
	if !report.OK {
		return &AssertionError{
			Type:     AssertIntegrityOK,
			Expected: "no integrity issues",
			Actual:   strings.Join(report.Issues, "; "),
		}
	}
	return nil
}

// sqlValue flattens a SQLite column value for comparison.
func sqlValue(v any) any {
	switch val := v.(type) {
	case []byte:
		return string(val)
	case int64:
		return float64(val)
	case int:
		return float64(val)
	case bool:
		if val {
			return float64(1)
		}
		return float64(0)
	}
	return v
}

// sqlValuesEqual compares a YAML value with a SQLite column value. Numbers
// compare by value and booleans as 0/1, matching SQLite storage.
func sqlValuesEqual(expected, actual any) bool {
	return reflect.DeepEqual(sqlValue(expected), sqlValue(actual))
}
