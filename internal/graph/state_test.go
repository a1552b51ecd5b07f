package graph

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNodeState_RoundTripsThroughJSON(t *testing.T) {
	n := Node{
		ID:         "n1",
		Content:    "Coffee improves focus",
		Summary:    "coffee",
		Position:   Position{X: 12.5, Y: -3},
		Color:      "#ff0000",
		Size:       2,
		Tags:       []string{"health"},
		Confidence: 0.75,
		Evidence:   []string{"study A"},
		CreatedAt:  testNow,
		UpdatedAt:  testNow.Add(time.Second),
		Version:    3,
	}

	text, err := EncodeState(n.ToState())
	require.NoError(t, err)
	s, err := DecodeState(text)
	require.NoError(t, err)

	assert.Equal(t, n, NodeFromState(s))
}

func TestConnectionState_RoundTripsThroughJSON(t *testing.T) {
	c := Connection{
		ID:          "c1",
		SourceID:    "a",
		TargetID:    "b",
		ConnType:    ConnDerivesFrom,
		Description: "because",
		Strength:    0.4,
		CreatedAt:   testNow,
		UpdatedAt:   testNow,
		Version:     2,
		IsDeleted:   true,
	}

	text, err := EncodeState(c.ToState())
	require.NoError(t, err)
	s, err := DecodeState(text)
	require.NoError(t, err)

	assert.Equal(t, c, ConnectionFromState(s))
}

func TestEncodeState_IsStable(t *testing.T) {
	s := State{"b": 1, "a": "<x>"}
	text, err := EncodeState(s)
	require.NoError(t, err)
	assert.Equal(t, `{"a":"<x>","b":1}`, text)
}

func TestDecodeState_Empty(t *testing.T) {
	s, err := DecodeState("")
	require.NoError(t, err)
	assert.Nil(t, s)
}

func TestNodeFromState_LenientCoercion(t *testing.T) {
	n := NodeFromState(State{
		"content":    "x",
		"size":       "2.5",
		"version":    "4",
		"is_deleted": "yes",
		"tags":       []any{"a", 3.0},
	})

	assert.NotEmpty(t, n.ID, "missing id gets a fresh one")
	assert.Equal(t, 2.5, n.Size)
	assert.Equal(t, int64(4), n.Version)
	assert.True(t, n.IsDeleted)
	assert.Equal(t, []string{"a", "3"}, n.Tags)
	assert.Equal(t, DefaultColor, n.Color)
	assert.Equal(t, []string{}, n.Evidence)
}

func TestNodeFromState_NonFiniteStringsFallBack(t *testing.T) {
	n := NodeFromState(State{
		"content":    "x",
		"position":   map[string]any{"x": "NaN", "y": "-Inf"},
		"size":       "+Inf",
		"confidence": "NaN",
	})

	assert.Equal(t, Position{}, n.Position)
	assert.Equal(t, DefaultSize, n.Size)
	assert.Equal(t, DefaultConfidence, n.Confidence)

	c := ConnectionFromState(State{"id": "c1", "source_id": "a", "target_id": "b", "strength": "Inf"})
	assert.Equal(t, DefaultStrength, c.Strength)
}

func TestConnectionFromState_UnknownTypeDegradesToRelates(t *testing.T) {
	c := ConnectionFromState(State{"id": "c1", "source_id": "a", "target_id": "b", "conn_type": "contradicts"})
	assert.Equal(t, ConnRelates, c.ConnType)
	assert.Equal(t, DefaultStrength, c.Strength)
}

func TestDecodeList_Malformed(t *testing.T) {
	assert.Equal(t, []string{}, DecodeList("not json"))
	assert.Equal(t, []string{"a"}, DecodeList(`["a"]`))
}

func TestParseTime_AcceptsRFC3339(t *testing.T) {
	got, err := ParseTime("2026-03-01T13:00:00.123456+01:00")
	require.NoError(t, err)
	assert.Equal(t, testNow, got)
	assert.Equal(t, "2026-03-01T12:00:00.123456+00:00", FormatTime(got))
}

func TestFileStamp(t *testing.T) {
	assert.Equal(t, "2026-03-01T12-00-00-123456p00-00", FileStamp(testNow))
}
