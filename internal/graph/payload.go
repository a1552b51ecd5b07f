package graph

import (
	"errors"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

// MaxSnapshotNameLength bounds saved snapshot names, counted in runes.
const MaxSnapshotNameLength = 120

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return fld.Name
		}
		return name
	})
	return v
}

// NodeCreate is the payload for creating a node.
type NodeCreate struct {
	Content    string            `json:"content"`
	Summary    string            `json:"summary"`
	Position   Position          `json:"position"`
	Color      Optional[string]  `json:"color"`
	Size       Optional[float64] `json:"size"`
	Tags       []string          `json:"tags"`
	Confidence Optional[float64] `json:"confidence"`
	Evidence   []string          `json:"evidence"`
}

// Build validates p and returns the version-1 node it describes.
func (p NodeCreate) Build(id string, now time.Time) (Node, error) {
	content := CleanText(p.Content)
	if content == "" {
		return Node{}, NewValidationError("content", "`content` is required")
	}
	color := CleanText(p.Color.Or(DefaultColor))
	if color == "" {
		color = DefaultColor
	}
	return Node{
		ID:         id,
		Content:    content,
		Summary:    CleanText(p.Summary),
		Position:   CleanPosition(p.Position),
		Color:      color,
		Size:       FloorSize(p.Size.Or(DefaultSize)),
		Tags:       cleanList(p.Tags),
		Confidence: ClampConfidence(p.Confidence.Or(DefaultConfidence)),
		Evidence:   cleanList(p.Evidence),
		CreatedAt:  now,
		UpdatedAt:  now,
		Version:    1,
	}, nil
}

// NodeUpdate is a partial node update. Only provided fields are applied;
// an explicit null is ignored for every field except content, where it is
// a validation error.
type NodeUpdate struct {
	Content    Optional[string]   `json:"content"`
	Summary    Optional[string]   `json:"summary"`
	Position   Optional[Position] `json:"position"`
	Color      Optional[string]   `json:"color"`
	Size       Optional[float64]  `json:"size"`
	Tags       Optional[[]string] `json:"tags"`
	Confidence Optional[float64]  `json:"confidence"`
	Evidence   Optional[[]string] `json:"evidence"`
}

// Apply returns cur with the provided fields overwritten. Version and
// timestamps are left to the caller.
func (p NodeUpdate) Apply(cur Node) (Node, error) {
	out := cur.Clone()
	if p.Content.Provided() {
		content, _ := p.Content.Get()
		content = CleanText(content)
		if content == "" {
			return Node{}, NewValidationError("content", "`content` cannot be empty")
		}
		out.Content = content
	}
	if v, ok := p.Summary.Get(); ok {
		out.Summary = CleanText(v)
	}
	if v, ok := p.Position.Get(); ok {
		out.Position = CleanPosition(v)
	}
	if v, ok := p.Color.Get(); ok {
		if v = CleanText(v); v == "" {
			v = DefaultColor
		}
		out.Color = v
	}
	if v, ok := p.Size.Get(); ok {
		out.Size = FloorSize(v)
	}
	if v, ok := p.Tags.Get(); ok {
		out.Tags = cleanList(v)
	}
	if v, ok := p.Confidence.Get(); ok {
		out.Confidence = ClampConfidence(v)
	}
	if v, ok := p.Evidence.Get(); ok {
		out.Evidence = cleanList(v)
	}
	return out, nil
}

// ConnectionCreate is the payload for creating a connection. Endpoint
// liveness is checked by the store, not here.
type ConnectionCreate struct {
	SourceID    string            `json:"source_id" validate:"required"`
	TargetID    string            `json:"target_id" validate:"required,nefield=SourceID"`
	ConnType    ConnType          `json:"conn_type" validate:"omitempty,oneof=supports opposes relates leads_to derives_from"`
	Description string            `json:"description"`
	Strength    Optional[float64] `json:"strength"`
}

// Validate checks the payload shape: both endpoints present, no self-loop,
// and a known connection type.
func (p ConnectionCreate) Validate() error {
	p.SourceID = strings.TrimSpace(p.SourceID)
	p.TargetID = strings.TrimSpace(p.TargetID)
	return translate(validate.Struct(p))
}

// Build returns the version-1 connection p describes. Call Validate first.
func (p ConnectionCreate) Build(id string, now time.Time) Connection {
	ct := p.ConnType
	if ct == "" {
		ct = DefaultConnType
	}
	return Connection{
		ID:          id,
		SourceID:    strings.TrimSpace(p.SourceID),
		TargetID:    strings.TrimSpace(p.TargetID),
		ConnType:    ct,
		Description: CleanText(p.Description),
		Strength:    FloorStrength(p.Strength.Or(DefaultStrength)),
		CreatedAt:   now,
		UpdatedAt:   now,
		Version:     1,
	}
}

// ConnectionUpdate is a partial connection update. Endpoints are not
// updatable.
type ConnectionUpdate struct {
	ConnType    Optional[ConnType] `json:"conn_type"`
	Description Optional[string]   `json:"description"`
	Strength    Optional[float64]  `json:"strength"`
}

// Apply returns cur with the provided fields overwritten.
func (p ConnectionUpdate) Apply(cur Connection) (Connection, error) {
	out := cur
	if v, ok := p.ConnType.Get(); ok {
		if !v.Valid() {
			return Connection{}, NewValidationError("conn_type", "invalid `conn_type`")
		}
		out.ConnType = v
	}
	if v, ok := p.Description.Get(); ok {
		out.Description = CleanText(v)
	}
	if v, ok := p.Strength.Get(); ok {
		out.Strength = FloorStrength(v)
	}
	return out, nil
}

// NormalizeSnapshotName trims and NFC-normalizes name and checks it is
// present and at most MaxSnapshotNameLength runes.
func NormalizeSnapshotName(name string) (string, error) {
	name = CleanText(name)
	if err := validate.Var(name, "required,max="+strconv.Itoa(MaxSnapshotNameLength)); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 && verrs[0].Tag() == "max" {
			return "", NewValidationError("name", "`name` is too long (max 120 characters)")
		}
		return "", NewValidationError("name", "`name` is required")
	}
	return name, nil
}

// translate converts validator output into a ValidationError.
func translate(err error) error {
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return NewValidationError("", err.Error())
	}
	fe := verrs[0]
	switch fe.Tag() {
	case "required":
		return NewValidationError(fe.Field(), "`source_id` and `target_id` are required")
	case "nefield":
		return NewValidationError(fe.Field(), "self-loop is not allowed for connection")
	case "oneof":
		return NewValidationError(fe.Field(), "invalid `conn_type`")
	default:
		return NewValidationError(fe.Field(), fe.Error())
	}
}
