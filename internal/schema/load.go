package schema

import (
	_ "embed"
	"fmt"
	"os"

	"github.com/samber/lo"
	"gopkg.in/yaml.v3"

	"github.com/deskforge/deskcfg/internal/errors"
)

//go:embed product.yaml
var defaultSchema []byte

// Default parses the embedded AST31 product schema.
func Default() (*Schema, error) {
	return Parse(defaultSchema)
}

// Load reads a schema from path. An empty path yields the embedded default.
func Load(path string) (*Schema, error) {
	if path == "" {
		return Default()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read schema: %w", err)
	}
	return Parse(data)
}

// Parse decodes YAML schema data, indexes it, and validates cross references.
func Parse(data []byte) (*Schema, error) {
	s := &Schema{}
	if err := yaml.Unmarshal(data, s); err != nil {
		return nil, errors.NewInvalidSchema(fmt.Sprintf("parse schema: %v", err))
	}

	s.fieldIdx = make(map[string]int)
	for _, g := range s.Groups {
		for _, sec := range g.Sections {
			for _, f := range sec.Fields {
				if _, dup := s.fieldIdx[f.ID]; dup {
					return nil, errors.NewInvalidSchema(fmt.Sprintf("duplicate field %q", f.ID))
				}
				s.fieldIdx[f.ID] = len(s.fields)
				s.fields = append(s.fields, f)
			}
		}
	}

	for i := range s.Layers {
		s.Layers[i].Clauses = ParseDependsOn(s.Layers[i].DependsOn)
	}
	if len(s.LegacyOrder) == 0 {
		s.LegacyOrder = s.FieldOrder
	}

	if err := s.validate(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Schema) validate() error {
	if len(s.fields) == 0 {
		return errors.NewInvalidSchema("schema declares no fields")
	}

	for _, f := range s.fields {
		opts, ok := s.Options[f.Options]
		if !ok || len(opts) == 0 {
			return errors.NewInvalidSchema(fmt.Sprintf("field %q references unknown option group %q", f.ID, f.Options))
		}
		defaults := lo.CountBy(opts, func(o Option) bool { return o.Default })
		if defaults > 1 {
			return errors.NewInvalidSchema(fmt.Sprintf("option group %q declares %d defaults", f.Options, defaults))
		}
		if dups := lo.FindDuplicatesBy(opts, func(o Option) string { return o.ID }); len(dups) > 0 {
			return errors.NewInvalidSchema(fmt.Sprintf("option group %q repeats option %q", f.Options, dups[0].ID))
		}
	}

	if err := s.validateOrder("field_order", s.FieldOrder); err != nil {
		return err
	}
	for _, id := range s.LegacyOrder {
		if _, ok := s.fieldIdx[id]; !ok {
			return errors.NewInvalidSchema(fmt.Sprintf("legacy_order names unknown field %q", id))
		}
	}

	seen := make(map[string]bool, len(s.Layers))
	for _, l := range s.Layers {
		if l.ID == "" {
			return errors.NewInvalidSchema("layer without id")
		}
		if seen[l.ID] {
			return errors.NewInvalidSchema(fmt.Sprintf("duplicate layer %q", l.ID))
		}
		seen[l.ID] = true

		for _, c := range l.Clauses {
			if _, ok := s.fieldIdx[c.Field]; !ok {
				return errors.NewInvalidSchema(fmt.Sprintf("layer %q depends on unknown field %q", l.ID, c.Field))
			}
		}
		if l.OffsetGroup != "" {
			if _, ok := s.Offsets[l.OffsetGroup]; !ok {
				return errors.NewInvalidSchema(fmt.Sprintf("layer %q references unknown offset group %q", l.ID, l.OffsetGroup))
			}
		}
	}
	return nil
}

// validateOrder checks that order names every field exactly once.
func (s *Schema) validateOrder(name string, order []string) error {
	if len(order) != len(s.fields) {
		return errors.NewInvalidSchema(fmt.Sprintf("%s lists %d fields, schema has %d", name, len(order), len(s.fields)))
	}
	listed := make(map[string]bool, len(order))
	for _, id := range order {
		if _, ok := s.fieldIdx[id]; !ok {
			return errors.NewInvalidSchema(fmt.Sprintf("%s names unknown field %q", name, id))
		}
		if listed[id] {
			return errors.NewInvalidSchema(fmt.Sprintf("%s repeats field %q", name, id))
		}
		listed[id] = true
	}
	return nil
}
