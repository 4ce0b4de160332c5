// Package layers turns a normalized configuration into the visibility, image
// path, and placement of every preview layer.
package layers

import (
	"fmt"
	"log/slog"
	"path"
	"strings"

	"github.com/deskforge/deskcfg/internal/rules"
	"github.com/deskforge/deskcfg/internal/schema"
)

// Placement is where and how a layer image is drawn on the stage.
type Placement struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	ScaleX float64 `json:"scale_x"`
	ScaleY float64 `json:"scale_y"`
	FlipX  bool    `json:"flip_x,omitempty"`
	Width  int     `json:"width"`
	Height int     `json:"height"`
}

// Result is the resolved state of one layer.
type Result struct {
	ID       string `json:"id"`
	TargetID string `json:"target_id"`
	Key      string `json:"key"`
	Image    string `json:"image"`
	Visible  bool   `json:"visible"`

	// Placement is nil for hidden layers.
	Placement *Placement `json:"placement,omitempty"`

	// Missing names the offset selector that had no entry.
	Missing string `json:"missing,omitempty"`
}

// Engine resolves layers against one schema.
type Engine struct {
	schema *schema.Schema
	logger *slog.Logger
}

// New creates an Engine. A nil logger uses slog.Default().
func New(s *schema.Schema, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{schema: s, logger: logger}
}

// Resolve returns one Result per schema layer, back to front.
func (e *Engine) Resolve(n rules.Normalized) []Result {
	out := make([]Result, 0, len(e.schema.Layers))
	for _, l := range e.schema.Layers {
		out = append(out, e.resolve(l, n))
	}
	return out
}

// Visible returns only the layers that are drawn.
func Visible(results []Result) []Result {
	var out []Result
	for _, r := range results {
		if r.Visible {
			out = append(out, r)
		}
	}
	return out
}

func (e *Engine) resolve(l schema.Layer, n rules.Normalized) Result {
	v := n.Values
	res := Result{ID: l.ID, TargetID: l.ID}

	visible := true
	for _, c := range l.Clauses {
		if !c.Pass(v) {
			visible = false
			break
		}
	}

	if target, ok := retarget(l.ID, n); ok {
		res.TargetID = target
	} else {
		visible = false
	}

	res.Key = Interpolate(l.KeyPattern, v)
	res.Image = path.Join(e.schema.ImageBase, l.Folder, res.Key+".png")
	if !visible {
		return res
	}

	if l.OffsetGroup == "" {
		return res
	}

	off, selector, found := e.lookup(l.OffsetGroup, res.TargetID, res.Key, v)
	if !found {
		res.Missing = selector
		e.logger.Warn("no offset for layer",
			"layer", l.ID,
			"group", l.OffsetGroup,
			"selector", selector,
			"available", e.schema.OffsetIDs(l.OffsetGroup))
		return res
	}

	w, h := l.Width, l.Height
	if w == 0 {
		w = e.schema.Stage.Width
	}
	if h == 0 {
		h = e.schema.Stage.Height
	}

	res.Visible = true
	res.Placement = &Placement{
		X:      off.X,
		Y:      off.Y,
		ScaleX: off.ScaleX,
		ScaleY: off.ScaleY,
		FlipX:  l.FlipX,
		Width:  w,
		Height: h,
	}
	return res
}

// retarget applies the shelf slot remap. It returns the physical slot a shelf
// layer draws into, or false when the layer has no slot under the current count.
func retarget(id string, n rules.Normalized) (string, bool) {
	if n.SlotRemap == nil || !strings.HasPrefix(id, "boden") {
		return id, true
	}

	count := n.Values[schema.FieldShelfCount]
	for _, slot := range n.SlotRemap[count] {
		if slot == id {
			return id, true
		}
	}

	switch {
	case id == "boden1" && (count == "1" || count == "2"):
		return "boden3", true
	case id == "boden2" && count == "2":
		return "boden4", true
	}
	return "", false
}

// lookup finds the offset entry of a visible layer and reports the selector it tried.
func (e *Engine) lookup(group, target, key string, v schema.Values) (schema.Offset, string, bool) {
	width := v[schema.FieldWidth]

	switch {
	case strings.HasPrefix(target, "boden"),
		strings.HasPrefix(target, "platte"),
		strings.HasPrefix(target, "laufschiene"):
		id := target + "-" + width
		off, ok := e.schema.FindOffset(group, id)
		return off, id, ok

	case target == "seitenLinks", target == "containerLinks":
		off, ok := e.schema.FindSideOffset(group, width, schema.Left)
		return off, fmt.Sprintf("%s/%s", width, schema.Left), ok

	case target == "seitenRechts", target == "containerRechts":
		off, ok := e.schema.FindSideOffset(group, width, schema.Right)
		return off, fmt.Sprintf("%s/%s", width, schema.Right), ok
	}

	off, ok := e.schema.FindOffset(group, key)
	return off, key, ok
}

// Interpolate replaces every {field} placeholder in pattern with the field's value.
// Add-on colours set to match-frame take the frame colour. Unknown placeholders stay verbatim.
func Interpolate(pattern string, v schema.Values) string {
	subst := substitutions(v)
	pairs := make([]string, 0, 2*len(subst))
	for field, value := range subst {
		pairs = append(pairs, "{"+field+"}", value)
	}
	return strings.NewReplacer(pairs...).Replace(pattern)
}

// substitutions is the value each placeholder renders as.
func substitutions(v schema.Values) map[string]string {
	out := make(map[string]string, len(v))
	for field, value := range v {
		out[field] = value
	}
	for _, field := range []string{schema.FieldSidePanelColor, schema.FieldContainerColor} {
		if out[field] == schema.MatchFrame {
			out[field] = v[schema.FieldColor]
		}
	}
	return out
}

// ResolveColor returns the concrete colour of an add-on colour field.
func ResolveColor(v schema.Values, field string) string {
	return substitutions(v)[field]
}
