package ops

import (
	"context"

	"github.com/samber/lo"

	"github.com/deskforge/deskcfg/internal/codec"
	"github.com/deskforge/deskcfg/internal/errors"
	"github.com/deskforge/deskcfg/internal/schema"
)

// ConfigureInput contains parameters for the Configure operation.
type ConfigureInput struct {
	Token  string            // optional share token
	Values map[string]string // optional explicit values, applied over the token

	// TableQuantity overrides the token's quantity when non-zero.
	TableQuantity int
}

// ConfigureOutput contains the result of the Configure operation.
type ConfigureOutput struct {
	*Configuration
}

// Configure builds the configuration described by a token and explicit values.
// Unknown tokens fall back to the defaults.
func Configure(ctx context.Context, p *Pipeline, input ConfigureInput) (*ConfigureOutput, error) {
	if err := validateQuantity(input.TableQuantity); err != nil {
		return nil, err
	}

	d := p.decode(input.Token)
	values, err := p.overlay(d.Values, input.Values)
	if err != nil {
		return nil, err
	}

	qty := d.TableQuantity
	if input.TableQuantity > 0 {
		qty = input.TableQuantity
	}

	cfg, err := p.snapshot(p.Resolver.Normalize(values), qty, d.Kind)
	if err != nil {
		return nil, err
	}
	return &ConfigureOutput{Configuration: cfg}, nil
}

// overlay applies explicit values over base. Aliases are resolved; unknown
// fields and values are rejected.
func (p *Pipeline) overlay(base schema.Values, explicit map[string]string) (schema.Values, error) {
	out := base.Clone()
	for field, value := range explicit {
		if _, ok := p.Schema.Field(field); !ok {
			return nil, errors.NewInvalidRequest("unknown field: " + field)
		}
		id, ok := p.Schema.Resolve(field, value)
		if !ok {
			return nil, errors.NewInvalidValue(field, value)
		}
		out[field] = id
	}
	return out, nil
}

// DecodeInput contains parameters for the Decode operation.
type DecodeInput struct {
	Token string
}

// DecodeOutput reports the raw and normalized reading of a token.
type DecodeOutput struct {
	Kind          codec.Kind    `json:"kind"`
	Values        schema.Values `json:"values,omitempty"`
	Normalized    schema.Values `json:"normalized"`
	TableQuantity int           `json:"table_quantity"`

	// Token is the canonical token of the normalized configuration.
	Token string `json:"token"`
}

// Decode reads a token without building layers or articles.
func Decode(ctx context.Context, p *Pipeline, input DecodeInput) (*DecodeOutput, error) {
	d := p.decode(input.Token)
	n := p.Resolver.Normalize(d.Values)

	token, err := p.Codec.Encode(n.Values, d.TableQuantity)
	if err != nil {
		return nil, err
	}
	return &DecodeOutput{
		Kind:          d.Kind,
		Values:        d.Values,
		Normalized:    n.Values,
		TableQuantity: d.TableQuantity,
		Token:         token,
	}, nil
}

// EncodeInput contains parameters for the Encode operation.
type EncodeInput struct {
	Values        map[string]string
	TableQuantity int  // default: 1
	Legacy        bool // write the old compressed format
}

// EncodeOutput contains the result of the Encode operation.
type EncodeOutput struct {
	Token    string `json:"token"`
	ShareURL string `json:"share_url"`
	Legacy   bool   `json:"legacy,omitempty"`
}

// Encode normalizes values and renders their token. The old format carries
// no table quantity.
func Encode(ctx context.Context, p *Pipeline, input EncodeInput) (*EncodeOutput, error) {
	if err := validateQuantity(input.TableQuantity); err != nil {
		return nil, err
	}
	qty := input.TableQuantity
	if qty == 0 {
		qty = 1
	}

	values, err := p.overlay(nil, input.Values)
	if err != nil {
		return nil, err
	}
	n := p.Resolver.Normalize(values)

	var token string
	if input.Legacy {
		token = p.Codec.EncodeLegacy(n.Values)
	} else {
		token, err = p.Codec.Encode(n.Values, qty)
		if err != nil {
			return nil, err
		}
	}
	return &EncodeOutput{Token: token, ShareURL: p.ShareURL(token), Legacy: input.Legacy}, nil
}

// SchemaOutput describes the form. Options is keyed by field id.
type SchemaOutput struct {
	Groups     []schema.Group             `json:"groups"`
	Options    map[string][]schema.Option `json:"options"`
	Defaults   schema.Values              `json:"defaults"`
	FieldOrder []string                   `json:"field_order"`
}

// Describe returns the form description of the pipeline's schema.
func Describe(p *Pipeline) *SchemaOutput {
	return &SchemaOutput{
		Groups:     p.Schema.Groups,
		Options: lo.Associate(p.Schema.Fields(), func(f schema.Field) (string, []schema.Option) {
			return f.ID, p.Schema.OptionsFor(f.ID)
		}),
		Defaults:   p.Schema.Defaults(),
		FieldOrder: p.Schema.FieldOrder,
	}
}
