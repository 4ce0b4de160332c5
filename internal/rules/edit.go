package rules

import (
	"github.com/samber/lo"

	"github.com/deskforge/deskcfg/internal/errors"
	"github.com/deskforge/deskcfg/internal/schema"
)

// EditResult is a tentatively applied field edit.
// The caller either commits After or keeps Before; the resolver holds no state.
type EditResult struct {
	Field  string     `json:"field"`
	Value  string     `json:"value"`
	Before Normalized `json:"before"`
	After  Normalized `json:"after"`

	// Changes lists the fields the rules had to adjust. The edited field
	// appears only when it was overridden, as a change from the requested value.
	Changes []schema.Change `json:"changes"`

	// Overridden is set when the edited field itself did not keep the requested value.
	Overridden bool `json:"overridden"`

	NeedsConfirm bool `json:"needs_confirm"`
}

// Edit applies value to field on top of current and normalizes the result.
// Legacy option aliases are accepted for value.
func (r *Resolver) Edit(current schema.Values, field, value string) (*EditResult, error) {
	if _, ok := r.schema.Field(field); !ok {
		return nil, errors.NewInvalidRequest("unknown field: " + field)
	}
	resolved, ok := r.schema.Resolve(field, value)
	if !ok {
		return nil, errors.NewInvalidValue(field, value)
	}

	before := r.Normalize(current)
	candidate := before.Values.Clone()
	candidate[field] = resolved
	after := r.Normalize(candidate)

	changes := lo.Filter(schema.Diff(before.Values, after.Values), func(c schema.Change, _ int) bool {
		return c.Field != field
	})

	overridden := after.Values[field] != resolved
	if overridden {
		changes = append([]schema.Change{{Field: field, From: resolved, To: after.Values[field]}}, changes...)
	}

	return &EditResult{
		Field:        field,
		Value:        resolved,
		Before:       before,
		After:        after,
		Changes:      changes,
		Overridden:   overridden,
		NeedsConfirm: len(changes) > 0,
	}, nil
}
