package ops

import (
	"context"

	"github.com/deskforge/deskcfg/internal/schema"
)

// EditInput contains parameters for the Edit operation.
type EditInput struct {
	Token string // current configuration
	Field string // required
	Value string // required; legacy aliases accepted

	// Confirm commits an edit that forces other fields to change.
	Confirm bool

	// TableQuantity overrides the token's quantity when non-zero.
	TableQuantity int
}

// EditOutput contains the result of the Edit operation.
type EditOutput struct {
	// Configuration is the committed state, or the unchanged current state
	// when the edit is waiting for confirmation.
	*Configuration

	Field        string          `json:"field"`
	Value        string          `json:"value"`
	Changes      []schema.Change `json:"changes"`
	Overridden   bool            `json:"overridden"`
	NeedsConfirm bool            `json:"needs_confirm"`
	Committed    bool            `json:"committed"`

	// PendingToken is the token the edit would produce once confirmed.
	PendingToken string `json:"pending_token,omitempty"`
}

// Edit changes one field of the current configuration. When other fields
// would change as a consequence, or the field cannot take the requested
// value, and Confirm is not set, nothing is committed and the current token
// is returned.
func Edit(ctx context.Context, p *Pipeline, input EditInput) (*EditOutput, error) {
	if err := validateQuantity(input.TableQuantity); err != nil {
		return nil, err
	}

	d := p.decode(input.Token)
	qty := d.TableQuantity
	if input.TableQuantity > 0 {
		qty = input.TableQuantity
	}

	res, err := p.Resolver.Edit(d.Values, input.Field, input.Value)
	if err != nil {
		return nil, err
	}

	out := &EditOutput{
		Field:        res.Field,
		Value:        res.Value,
		Changes:      res.Changes,
		Overridden:   res.Overridden,
		NeedsConfirm: res.NeedsConfirm,
	}

	if res.NeedsConfirm && !input.Confirm {
		pending, err := p.Codec.Encode(res.After.Values, qty)
		if err != nil {
			return nil, err
		}
		out.PendingToken = pending
		out.Configuration, err = p.snapshot(res.Before, qty, d.Kind)
		if err != nil {
			return nil, err
		}
		return out, nil
	}

	out.Committed = true
	out.Configuration, err = p.snapshot(res.After, qty, d.Kind)
	if err != nil {
		return nil, err
	}
	p.Logger.Debug("configuration edited", "field", res.Field, "value", res.Value, "changes", len(res.Changes), "token", out.Token)
	return out, nil
}
