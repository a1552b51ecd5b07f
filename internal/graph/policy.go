package graph

import (
	"math"
	"strings"
	"time"

	"golang.org/x/text/unicode/norm"
)

// Numeric floors and bounds. Out-of-range values are coerced on write,
// never rejected.
const (
	MinSize     = 0.2
	MinStrength = 0.1
)

// TimeLayout is the persisted timestamp format: fixed-width ISO-8601 with
// microseconds and an explicit offset, so text order matches time order.
const TimeLayout = "2006-01-02T15:04:05.000000-07:00"

// FormatTime renders t in TimeLayout, in UTC.
func FormatTime(t time.Time) string {
	return t.UTC().Format(TimeLayout)
}

// ParseTime parses a persisted timestamp. RFC 3339 input is accepted as well
// so hand-written import documents round-trip.
func ParseTime(s string) (time.Time, error) {
	if t, err := time.Parse(TimeLayout, s); err == nil {
		return t.UTC(), nil
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, err
	}
	return t.UTC(), nil
}

// ClampConfidence bounds c to [0, 1]. NaN becomes DefaultConfidence.
func ClampConfidence(c float64) float64 {
	if math.IsNaN(c) {
		return DefaultConfidence
	}
	return min(max(c, 0), 1)
}

// FloorSize applies the node size floor. NaN and +Inf become DefaultSize.
func FloorSize(s float64) float64 {
	if math.IsNaN(s) || math.IsInf(s, 1) {
		return DefaultSize
	}
	return max(s, MinSize)
}

// FloorStrength applies the connection strength floor. NaN and +Inf become
// DefaultStrength.
func FloorStrength(s float64) float64 {
	if math.IsNaN(s) || math.IsInf(s, 1) {
		return DefaultStrength
	}
	return max(s, MinStrength)
}

// CleanPosition replaces non-finite coordinates with 0.
func CleanPosition(p Position) Position {
	return Position{X: finiteOr(p.X, 0), Y: finiteOr(p.Y, 0)}
}

func finiteOr(f, def float64) float64 {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return def
	}
	return f
}

// CleanText trims surrounding whitespace and NFC-normalizes s.
func CleanText(s string) string {
	return norm.NFC.String(strings.TrimSpace(s))
}

func cleanList(items []string) []string {
	out := make([]string, 0, len(items))
	for _, item := range items {
		out = append(out, norm.NFC.String(item))
	}
	return out
}

// FileStamp renders t for use in a suggested file name: ':' and '.' become
// '-', '+' becomes 'p'.
func FileStamp(t time.Time) string {
	return strings.NewReplacer(":", "-", ".", "-", "+", "p").Replace(FormatTime(t))
}

// Clock supplies the time stamped on entities and audit entries.
type Clock interface {
	Now() time.Time
}

// SystemClock reads the wall clock, in UTC, truncated to the persisted
// microsecond precision so in-memory values equal their stored form.
type SystemClock struct{}

// Now implements Clock.
func (SystemClock) Now() time.Time {
	return time.Now().UTC().Truncate(time.Microsecond)
}
