// Package schema holds the static product description: form fields and their
// option enumerations, the preview layers, and the offset tables that place them.
package schema

import (
	"strings"

	"github.com/samber/lo"
)

// Option is one selectable value of a field.
type Option struct {
	ID      string   `yaml:"id" json:"id"`
	Label   string   `yaml:"label" json:"label"`
	Default bool     `yaml:"default,omitempty" json:"default,omitempty"`
	Aliases []string `yaml:"aliases,omitempty" json:"aliases,omitempty"`
}

// Field is a form control bound to an option group.
type Field struct {
	ID      string `yaml:"id" json:"id"`
	Label   string `yaml:"label" json:"label"`
	Options string `yaml:"options" json:"options"`
	Slider  bool   `yaml:"slider,omitempty" json:"slider,omitempty"`
}

// Section groups fields under a sub-heading.
type Section struct {
	Title  string  `yaml:"title" json:"title"`
	Fields []Field `yaml:"fields" json:"fields"`
}

// Group is a top-level accordion entry of the sidebar.
type Group struct {
	ID       string    `yaml:"id" json:"id"`
	Title    string    `yaml:"title" json:"title"`
	Sections []Section `yaml:"sections" json:"sections"`
}

// Clause is one `field:opt1|opt2` or `field:!opt1|opt2` term of a dependency expression.
type Clause struct {
	Field   string   `json:"field"`
	Negate  bool     `json:"negate"`
	Options []string `json:"options"`
}

// Pass reports whether the clause keeps a layer visible for the given values.
func (c Clause) Pass(v Values) bool {
	listed := lo.Contains(c.Options, v[c.Field])
	if c.Negate {
		return !listed
	}
	return listed
}

// ParseDependsOn splits a dependency expression into clauses.
// Terms without both a field and a condition are ignored.
func ParseDependsOn(expr string) []Clause {
	if strings.TrimSpace(expr) == "" {
		return nil
	}
	var clauses []Clause
	for _, rule := range strings.Split(expr, ",") {
		field, cond, ok := strings.Cut(strings.TrimSpace(rule), ":")
		if !ok || field == "" || cond == "" {
			continue
		}
		negate := strings.HasPrefix(cond, "!")
		clauses = append(clauses, Clause{
			Field:   field,
			Negate:  negate,
			Options: strings.Split(strings.TrimPrefix(cond, "!"), "|"),
		})
	}
	return clauses
}

// Layer is one visual element of the composite preview.
type Layer struct {
	ID          string `yaml:"id" json:"id"`
	Folder      string `yaml:"folder" json:"folder"`
	KeyPattern  string `yaml:"key_pattern" json:"key_pattern"`
	DependsOn   string `yaml:"depends_on,omitempty" json:"depends_on,omitempty"`
	OffsetGroup string `yaml:"offset_group,omitempty" json:"offset_group,omitempty"`
	FlipX       bool   `yaml:"flip_x,omitempty" json:"flip_x,omitempty"`
	Width       int    `yaml:"width,omitempty" json:"width,omitempty"`
	Height      int    `yaml:"height,omitempty" json:"height,omitempty"`

	Clauses []Clause `yaml:"-" json:"clauses,omitempty"`
}

// Offset is the placement of a layer image for one lookup key.
// An entry is addressed either by id (ID or any of IDs) or by Width and Side.
type Offset struct {
	ID     string   `yaml:"id,omitempty" json:"id,omitempty"`
	IDs    []string `yaml:"ids,omitempty" json:"ids,omitempty"`
	Width  string   `yaml:"width,omitempty" json:"width,omitempty"`
	Side   string   `yaml:"side,omitempty" json:"side,omitempty"`
	X      float64  `yaml:"x" json:"x"`
	Y      float64  `yaml:"y" json:"y"`
	ScaleX float64  `yaml:"scale_x" json:"scale_x"`
	ScaleY float64  `yaml:"scale_y" json:"scale_y"`
}

// Matches reports whether the entry is addressed by id.
func (o Offset) Matches(id string) bool {
	return o.ID == id || lo.Contains(o.IDs, id)
}

// Stage is the size of the preview canvas in pixels.
type Stage struct {
	Width  int `yaml:"width" json:"width"`
	Height int `yaml:"height" json:"height"`
}

// Schema is the complete product description. It is immutable after Parse.
type Schema struct {
	Stage       Stage               `yaml:"stage" json:"stage"`
	ImageBase   string              `yaml:"image_base" json:"image_base"`
	Groups      []Group             `yaml:"groups" json:"groups"`
	Options     map[string][]Option `yaml:"options" json:"options"`
	FieldOrder  []string            `yaml:"field_order" json:"field_order"`
	LegacyOrder []string            `yaml:"legacy_order,omitempty" json:"legacy_order,omitempty"`
	Layers      []Layer             `yaml:"layers" json:"layers"`
	Offsets     map[string][]Offset `yaml:"offsets" json:"offsets"`

	fields   []Field
	fieldIdx map[string]int
}

// Fields returns every field in form order.
func (s *Schema) Fields() []Field {
	return s.fields
}

// Field returns the field with the given id.
func (s *Schema) Field(id string) (Field, bool) {
	i, ok := s.fieldIdx[id]
	if !ok {
		return Field{}, false
	}
	return s.fields[i], true
}

// OptionsFor returns the ordered options of a field.
func (s *Schema) OptionsFor(field string) []Option {
	f, ok := s.Field(field)
	if !ok {
		return nil
	}
	return s.Options[f.Options]
}

// OptionIDs returns the ordered option ids of a field.
func (s *Schema) OptionIDs(field string) []string {
	return lo.Map(s.OptionsFor(field), func(o Option, _ int) string { return o.ID })
}

// Default returns the default option id of a field.
func (s *Schema) Default(field string) string {
	opts := s.OptionsFor(field)
	for _, o := range opts {
		if o.Default {
			return o.ID
		}
	}
	if len(opts) > 0 {
		return opts[0].ID
	}
	return ""
}

// Defaults returns the default value of every field.
func (s *Schema) Defaults() Values {
	v := make(Values, len(s.fields))
	for _, f := range s.fields {
		v[f.ID] = s.Default(f.ID)
	}
	return v
}

// Has reports whether value is a valid option id of field.
func (s *Schema) Has(field, value string) bool {
	return lo.ContainsBy(s.OptionsFor(field), func(o Option) bool { return o.ID == value })
}

// Resolve maps value, or one of an option's legacy aliases, to the option id.
func (s *Schema) Resolve(field, value string) (string, bool) {
	for _, o := range s.OptionsFor(field) {
		if o.ID == value || lo.Contains(o.Aliases, value) {
			return o.ID, true
		}
	}
	return "", false
}

// Label returns the display label of an option, falling back to its id.
func (s *Schema) Label(field, value string) string {
	for _, o := range s.OptionsFor(field) {
		if o.ID == value && o.Label != "" {
			return o.Label
		}
	}
	return value
}

// Complete returns a copy of v in which every field holds a valid option.
// Unset or unknown values are replaced by the field default; unknown fields are dropped.
func (s *Schema) Complete(v Values) Values {
	out := make(Values, len(s.fields))
	for _, f := range s.fields {
		if val, ok := v[f.ID]; ok && s.Has(f.ID, val) {
			out[f.ID] = val
			continue
		}
		out[f.ID] = s.Default(f.ID)
	}
	return out
}

// Layer returns the layer with the given id.
func (s *Schema) Layer(id string) (Layer, bool) {
	return lo.Find(s.Layers, func(l Layer) bool { return l.ID == id })
}

// FindOffset looks up an entry of group by id.
func (s *Schema) FindOffset(group, id string) (Offset, bool) {
	return lo.Find(s.Offsets[group], func(o Offset) bool { return o.Matches(id) })
}

// FindSideOffset looks up an entry of group by width and side.
func (s *Schema) FindSideOffset(group, width, side string) (Offset, bool) {
	return lo.Find(s.Offsets[group], func(o Offset) bool { return o.Width == width && o.Side == side })
}

// OffsetIDs lists the addressable keys of a group, for diagnostics.
func (s *Schema) OffsetIDs(group string) []string {
	var ids []string
	for _, o := range s.Offsets[group] {
		switch {
		case o.ID != "":
			ids = append(ids, o.ID)
		case len(o.IDs) > 0:
			ids = append(ids, o.IDs...)
		default:
			ids = append(ids, o.Width+"/"+o.Side)
		}
	}
	return ids
}
