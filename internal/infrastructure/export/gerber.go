package export

import (
	"archive/zip"
	"fmt"
	"math"
	"os"
	"sort"
	"strings"

	"github.com/coilforge/coilforge/internal/domain/geometry"
	"github.com/coilforge/coilforge/pkg/errors"
)

// RS-274X output uses 4.6 millimeter coordinates: integer micrometer
// thousandths.
const gerberScale = 1e9 // meters to 4.6 fixed-point millimeters

// gerberUnits converts a length in meters to the fixed-point coordinate.
func gerberUnits(v float64) int64 {
	return int64(math.Round(v * gerberScale))
}

// gerberLayer accumulates the apertures and draw commands of one copper
// layer.
type gerberLayer struct {
	apertures []float64 // diameters in mm, index+10 is the D-code
	body      strings.Builder
}

// aperture returns the D-code for a circle aperture of the given diameter
// in meters, registering it on first use.
func (g *gerberLayer) aperture(diameter float64) int {
	mm := diameter * 1e3
	for i, d := range g.apertures {
		if math.Abs(d-mm) < 1e-9 {
			return i + 10
		}
	}
	g.apertures = append(g.apertures, mm)
	return len(g.apertures) + 9
}

// stroke draws a polyline with per-segment circle apertures sized to the
// mean of the segment's endpoint widths.  Round endcaps reproduce the
// disk-based copper model the rule checker measures.
func (g *gerberLayer) stroke(coord []geometry.Point, width []float64) {
	for i := 0; i < len(coord)-1; i++ {
		code := g.aperture((width[i] + width[i+1]) / 2)
		fmt.Fprintf(&g.body, "D%d*\n", code)
		fmt.Fprintf(&g.body, "X%dY%dD02*\n", gerberUnits(coord[i].X), gerberUnits(coord[i].Y))
		fmt.Fprintf(&g.body, "X%dY%dD01*\n", gerberUnits(coord[i+1].X), gerberUnits(coord[i+1].Y))
	}
}

// flash places a circle pad at p.
func (g *gerberLayer) flash(p geometry.Point, diameter float64) {
	code := g.aperture(diameter)
	fmt.Fprintf(&g.body, "D%d*\n", code)
	fmt.Fprintf(&g.body, "X%dY%dD03*\n", gerberUnits(p.X), gerberUnits(p.Y))
}

// render emits the complete layer file.
func (g *gerberLayer) render() string {
	var b strings.Builder
	b.WriteString("%FSLAX46Y46*%\n")
	b.WriteString("%MOMM*%\n")
	b.WriteString("%LPD*%\n")
	for i, d := range g.apertures {
		fmt.Fprintf(&b, "%%ADD%dC,%.6f*%%\n", i+10, d)
	}
	b.WriteString(g.body.String())
	b.WriteString("M02*\n")
	return b.String()
}

// copperLayers returns the sorted set of layers carrying copper.
func copperLayers(ss geometry.ShapeSet) []int {
	seen := map[int]bool{}
	for _, s := range ss.All() {
		for _, l := range s.Layers {
			seen[l] = true
		}
	}
	layers := make([]int, 0, len(seen))
	for l := range seen {
		layers = append(layers, l)
	}
	sort.Ints(layers)
	return layers
}

// buildGerberLayer collects every shape occupying one copper layer.
func buildGerberLayer(ss geometry.ShapeSet, layer int) *gerberLayer {
	g := &gerberLayer{}
	for _, s := range ss.Traces {
		if s.OnLayer(layer) {
			g.stroke(s.Coord, s.Width)
		}
	}
	for _, s := range ss.Vias {
		if s.OnLayer(layer) {
			g.flash(s.Coord[0], s.Width[0])
		}
	}
	for _, s := range []geometry.Shape{ss.Src, ss.Sink} {
		if s.OnLayer(layer) {
			g.flash(s.Coord[0], s.Width[0])
		}
	}
	return g
}

// renderOutline emits the board outline as a zero-ish width contour layer.
func renderOutline(outline geometry.Polygon) string {
	g := &gerberLayer{}
	draw := func(ring []geometry.Point) {
		closed := append(append([]geometry.Point{}, ring...), ring[0])
		widths := make([]float64, len(closed))
		for i := range widths {
			widths[i] = 0.1e-3
		}
		g.stroke(closed, widths)
	}
	draw(outline.Outer)
	for _, hole := range outline.Holes {
		draw(hole)
	}
	return g.render()
}

// renderDrill emits an Excellon drill file with one hit per layer switch.
// Via drills reuse the node width as the finished hole size.
func renderDrill(ss geometry.ShapeSet) string {
	var b strings.Builder
	b.WriteString("M48\n")
	b.WriteString("METRIC,TZ\n")

	var tools []float64
	tool := func(diameter float64) int {
		mm := diameter * 1e3
		for i, d := range tools {
			if math.Abs(d-mm) < 1e-9 {
				return i + 1
			}
		}
		tools = append(tools, mm)
		return len(tools)
	}

	type hit struct {
		tool int
		p    geometry.Point
	}
	var hits []hit
	for _, v := range ss.Vias {
		hits = append(hits, hit{tool: tool(v.Width[0]), p: v.Coord[0]})
	}

	for i, d := range tools {
		fmt.Fprintf(&b, "T%02dC%.3f\n", i+1, d)
	}
	b.WriteString("%\n")
	for i := range tools {
		fmt.Fprintf(&b, "T%02d\n", i+1)
		for _, h := range hits {
			if h.tool == i+1 {
				fmt.Fprintf(&b, "X%.3fY%.3f\n", h.p.X*1e3, h.p.Y*1e3)
			}
		}
	}
	b.WriteString("M30\n")
	return b.String()
}

// writeGerberArchive decomposes the winding into copper primitives and
// writes one GERBER file per copper layer, the board outline, and the via
// drill file into a single zip archive.
func writeGerberArchive(path string, w geometry.Winding, outline *geometry.Polygon, maskSrc, maskSink int) error {
	ss, err := geometry.BuildShapes(w, maskSrc, maskSink)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeExportFailed, "cannot decompose winding for fabrication output")
	}

	f, err := os.Create(path)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeExportFailed, "failed to create fabrication archive")
	}
	defer f.Close()

	zw := zip.NewWriter(f)
	add := func(name, content string) error {
		entry, err := zw.Create(name)
		if err != nil {
			return err
		}
		_, err = entry.Write([]byte(content))
		return err
	}

	for _, layer := range copperLayers(ss) {
		g := buildGerberLayer(ss, layer)
		if err := add(fmt.Sprintf("copper_l%d.gbr", layer), g.render()); err != nil {
			return errors.Wrap(err, errors.ErrCodeExportFailed, "failed to write copper layer")
		}
	}
	if outline != nil {
		if err := add("outline.gbr", renderOutline(*outline)); err != nil {
			return errors.Wrap(err, errors.ErrCodeExportFailed, "failed to write board outline")
		}
	}
	if err := add("drill.drl", renderDrill(ss)); err != nil {
		return errors.Wrap(err, errors.ErrCodeExportFailed, "failed to write drill file")
	}

	if err := zw.Close(); err != nil {
		return errors.Wrap(err, errors.ErrCodeExportFailed, "failed to finalize fabrication archive")
	}
	return nil
}
