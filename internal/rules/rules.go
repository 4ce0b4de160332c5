// Package rules normalizes a candidate field selection against the fixed AST31
// rule set and reports which fields and options the form must lock or disable.
package rules

import (
	"slices"

	"github.com/samber/lo"

	"github.com/deskforge/deskcfg/internal/schema"
)

// FieldState is the derived lock/disable record of one form field.
type FieldState struct {
	Locked   bool     `json:"locked"`
	Disabled []string `json:"disabled,omitempty"`
}

// Enabled reports whether option may be selected.
func (f FieldState) Enabled(option string) bool {
	return !lo.Contains(f.Disabled, option)
}

// SlotRemap maps a shelf count to the physical shelf slots the shelves occupy.
type SlotRemap map[string][]string

// Normalized is a complete, rule-consistent field selection plus its derived state.
type Normalized struct {
	Values    schema.Values         `json:"values"`
	Fields    map[string]FieldState `json:"fields"`
	SlotRemap SlotRemap             `json:"slot_remap,omitempty"`
}

// State returns the derived state of field. Fields untouched by any rule are unlocked.
func (n Normalized) State(field string) FieldState {
	return n.Fields[field]
}

// Slots returns the physical slots for the current shelf count, or nil without a remap.
func (n Normalized) Slots() []string {
	if n.SlotRemap == nil {
		return nil
	}
	return n.SlotRemap[n.Values[schema.FieldShelfCount]]
}

func (n *Normalized) force(field, value string) {
	n.Values[field] = value
	st := n.Fields[field]
	st.Locked = true
	n.Fields[field] = st
}

func (n *Normalized) lock(field string, locked bool) {
	st := n.Fields[field]
	st.Locked = locked
	n.Fields[field] = st
}

// disable marks options unavailable and moves the current value to fallback
// when it is one of them.
func (n *Normalized) disable(field, fallback string, options ...string) {
	st := n.Fields[field]
	st.Disabled = append([]string(nil), options...)
	n.Fields[field] = st
	if lo.Contains(options, n.Values[field]) {
		n.Values[field] = fallback
	}
}

// Resolver applies the AST31 rule chain.
type Resolver struct {
	schema *schema.Schema
}

// New creates a Resolver for the given schema.
func New(s *schema.Schema) *Resolver {
	return &Resolver{schema: s}
}

// Schema returns the schema the resolver completes values against.
func (r *Resolver) Schema() *schema.Schema {
	return r.schema
}

// rule is one step of the chain. Later rules read fields earlier rules may have forced.
type rule struct {
	name  string
	apply func(n *Normalized)
}

var chain = []rule{
	{"frame", applyFrame},
	{"superstructure", applySuperstructure},
	{"width", applyWidth},
	{"rails", applyRails},
	{"shelf-board", applyShelfBoard},
}

// Normalize completes v with defaults and runs the full rule chain on a copy.
// The input is never modified; the result is rebuilt from scratch on every call.
func (r *Resolver) Normalize(v schema.Values) Normalized {
	n := Normalized{
		Values: r.schema.Complete(v),
		Fields: make(map[string]FieldState, len(r.schema.Fields())),
	}
	for _, f := range r.schema.Fields() {
		n.Fields[f.ID] = FieldState{}
	}
	for _, step := range chain {
		step.apply(&n)
	}
	return n
}

// applyFrame locks colour and side panels for the electronics frame.
func applyFrame(n *Normalized) {
	if n.Values[schema.FieldFrame] == schema.FrameElectronics {
		n.force(schema.FieldColor, schema.ColorAluminiumWhite)
		n.force(schema.FieldSidePanel, schema.None)
		n.force(schema.FieldSidePanelColor, schema.MatchFrame)
		return
	}
	n.lock(schema.FieldColor, false)
	n.lock(schema.FieldSidePanel, false)
	n.lock(schema.FieldSidePanelColor, n.Values[schema.FieldSidePanel] == schema.None)
}

// outcome is what one (superstructure, pegboard-count) pair does to the
// pegboard and shelf fields. Empty force strings leave the field unlocked.
type outcome struct {
	pegboardForce string
	shelfForce    string
	shelfDisabled []string
	remap         SlotRemap
}

// anyPegboards is the fallback input of a superstructure row.
const anyPegboards = "*"

var highTwoPegboards = SlotRemap{
	"0": {},
	"1": {"boden3"},
	"2": {"boden3", "boden4"},
}

// superstructureTable is indexed by superstructure value, then pegboard count.
var superstructureTable = map[string]map[string]outcome{
	schema.None: {
		anyPegboards: {pegboardForce: "0", shelfForce: "0"},
	},
	schema.SuperstructureLow: {
		"2":          {shelfForce: "0"},
		anyPegboards: {shelfDisabled: []string{"3", "4"}},
	},
	schema.SuperstructureHigh: {
		"3":          {shelfForce: "0"},
		"2":          {shelfDisabled: []string{"3", "4"}, remap: highTwoPegboards},
		anyPegboards: {},
	},
}

// transition looks up the outcome for a superstructure state and pegboard input.
func transition(superstructure, pegboards string) outcome {
	row, ok := superstructureTable[superstructure]
	if !ok {
		return outcome{}
	}
	if out, ok := row[pegboards]; ok {
		return out
	}
	return row[anyPegboards]
}

// shelfFallback is where a disabled shelf count of 3 or 4 lands.
const shelfFallback = "2"

func applySuperstructure(n *Normalized) {
	out := transition(n.Values[schema.FieldSuperstructure], n.Values[schema.FieldPegboardCount])

	if out.pegboardForce != "" {
		n.force(schema.FieldPegboardCount, out.pegboardForce)
	} else {
		n.lock(schema.FieldPegboardCount, false)
	}

	switch {
	case out.shelfForce != "":
		n.force(schema.FieldShelfCount, out.shelfForce)
	case len(out.shelfDisabled) > 0:
		n.lock(schema.FieldShelfCount, false)
		n.disable(schema.FieldShelfCount, shelfFallback, out.shelfDisabled...)
	default:
		n.lock(schema.FieldShelfCount, false)
	}

	if out.remap != nil {
		n.SlotRemap = make(SlotRemap, len(out.remap))
		for count, slots := range out.remap {
			n.SlotRemap[count] = slices.Clone(slots)
		}
	}
}

// applyWidth rules out containers on both sides of the narrow table.
func applyWidth(n *Normalized) {
	if n.Values[schema.FieldWidth] == schema.Width750 {
		n.disable(schema.FieldContainerPosition, schema.None, schema.LeftRight)
	}
}

func applyRails(n *Normalized) {
	if n.Values[schema.FieldSuperstructure] != schema.SuperstructureHigh {
		n.force(schema.FieldRailCount, "0")
		return
	}
	n.lock(schema.FieldRailCount, false)
}

func applyShelfBoard(n *Normalized) {
	if n.Values[schema.FieldFrame] == schema.FrameElectronics {
		n.force(schema.FieldShelfBoard, schema.None)
		return
	}
	n.lock(schema.FieldShelfBoard, false)
}
