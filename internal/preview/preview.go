// Package preview composes the visible layers into a single SVG image.
package preview

import (
	"bytes"
	"fmt"
	"io"
	"strconv"

	svg "github.com/ajstarks/svgo"

	"github.com/deskforge/deskcfg/internal/layers"
	"github.com/deskforge/deskcfg/internal/schema"
)

// Options controls how image references are written.
type Options struct {
	// ImagePrefix is prepended to every layer image path, e.g. "/" or a CDN base.
	ImagePrefix string
}

// Render writes the composite preview of results to w. Hidden layers are skipped.
func Render(w io.Writer, stage schema.Stage, results []layers.Result, opts Options) {
	canvas := svg.New(w)
	canvas.Start(stage.Width, stage.Height)
	canvas.Title("AST31 preview")

	for _, r := range layers.Visible(results) {
		p := r.Placement
		canvas.Gtransform(Transform(*p))
		canvas.Image(0, 0, p.Width, p.Height, opts.ImagePrefix+r.Image, `id="layer-`+r.ID+`"`)
		canvas.Gend()
	}

	canvas.End()
}

// Bytes renders the preview into memory.
func Bytes(stage schema.Stage, results []layers.Result, opts Options) []byte {
	var buf bytes.Buffer
	Render(&buf, stage, results, opts)
	return buf.Bytes()
}

// Transform is the SVG transform placing a layer. The horizontal flip mirrors
// the image inside its own box after placement.
func Transform(p layers.Placement) string {
	t := fmt.Sprintf("translate(%s,%s) scale(%s,%s)", num(p.X), num(p.Y), num(p.ScaleX), num(p.ScaleY))
	if p.FlipX {
		t += fmt.Sprintf(" translate(%d,0) scale(-1,1)", p.Width)
	}
	return t
}

func num(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
