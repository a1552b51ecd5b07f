package audit

import (
	"context"

	"github.com/roach88/thinkgraph/internal/graph"
)

// ReportFormat tags audit export documents.
const ReportFormat = "thinking-graph-audit-report-v1"

// Export is a downloadable audit report.
type Export struct {
	Format            string         `json:"format"`
	ExportedAt        string         `json:"exported_at"`
	RecordCount       int            `json:"record_count"`
	EntityCounts      map[string]int `json:"entity_counts"`
	ActionCounts      map[string]int `json:"action_counts"`
	ActorCounts       map[string]int `json:"actor_counts"`
	SuggestedFileName string         `json:"suggested_file_name"`
	Audits            []Record       `json:"audits"`
}

// Export lists entries matching f, newest first, and aggregates them by
// entity type, action and actor. The limit is clamped to [1, MaxExportLimit].
func (t *Trail) Export(ctx context.Context, f Filter) (*Export, error) {
	records, err := list(ctx, t.db, f, clampLimit(f.Limit, DefaultExportLimit, MaxExportLimit))
	if err != nil {
		return nil, err
	}

	out := &Export{
		Format:       ReportFormat,
		RecordCount:  len(records),
		EntityCounts: map[string]int{},
		ActionCounts: map[string]int{},
		ActorCounts:  map[string]int{},
		Audits:       records,
	}
	for _, rec := range records {
		out.EntityCounts[string(rec.EntityType)]++
		out.ActionCounts[string(rec.Action)]++
		out.ActorCounts[rec.Actor]++
	}

	now := t.clock.Now()
	out.ExportedAt = graph.FormatTime(now)
	out.SuggestedFileName = "thinking-graph-audit-report-" + graph.FileStamp(now) + ".json"
	return out, nil
}
