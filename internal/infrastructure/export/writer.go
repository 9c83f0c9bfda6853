package export

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/coilforge/coilforge/internal/application/evaluate"
	"github.com/coilforge/coilforge/internal/domain/drc"
	"github.com/coilforge/coilforge/internal/domain/geometry"
	"github.com/coilforge/coilforge/pkg/errors"
)

// designRecord is the JSON shape of one exported design.
type designRecord struct {
	DesignID  int64     `json:"design_id"`
	StudyID   int64     `json:"study_id"`
	NWdg      int       `json:"n_wdg"`
	CoordX    []float64 `json:"coord_x"`
	CoordY    []float64 `json:"coord_y"`
	Width     []float64 `json:"width"`
	Layer     []int     `json:"layer"`
	Checked   bool      `json:"checked"`
	Solved    bool      `json:"solved"`
	Scored    bool      `json:"scored"`
	Validity  []float64 `json:"validity,omitempty"`
	Loss      []float64 `json:"loss,omitempty"`
	Penalty   []float64 `json:"penalty,omitempty"`
	Cond      float64   `json:"cond"`
	Obj       float64   `json:"obj"`
	CreatedAt time.Time `json:"created_at"`
}

func toRecord(d *evaluate.Design) designRecord {
	n := d.Winding.Size()
	rec := designRecord{
		DesignID:  d.ID,
		StudyID:   d.StudyID,
		NWdg:      n,
		CoordX:    make([]float64, n),
		CoordY:    make([]float64, n),
		Width:     d.Winding.Width,
		Layer:     d.Winding.Layer,
		Checked:   d.Checked,
		Solved:    d.Solved,
		Scored:    d.Scored,
		Loss:      d.Loss,
		Penalty:   d.Penalty,
		Cond:      d.Cond,
		Obj:       d.Obj,
		CreatedAt: d.CreatedAt,
	}
	for i, p := range d.Winding.Coord {
		rec.CoordX[i] = p.X
		rec.CoordY[i] = p.Y
	}
	if d.Checked {
		rec.Validity = d.Validity.Vector()
	}
	return rec
}

// writeCSV writes one row per design with the signed rule results in
// canonical category order.
func writeCSV(path string, designs []*evaluate.Design) error {
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeExportFailed, "failed to create csv file")
	}
	defer f.Close()

	w := csv.NewWriter(f)

	header := []string{
		"design_id", "study_id", "n_wdg",
		"coord_x", "coord_y", "width", "layer",
		"checked", "solved", "scored", "cond", "obj",
	}
	for _, c := range drc.Categories() {
		header = append(header, "valid_"+c.String())
	}
	if err := w.Write(header); err != nil {
		return errors.Wrap(err, errors.ErrCodeExportFailed, "failed to write csv header")
	}

	for _, d := range designs {
		rec := toRecord(d)
		row := []string{
			strconv.FormatInt(rec.DesignID, 10),
			strconv.FormatInt(rec.StudyID, 10),
			strconv.Itoa(rec.NWdg),
			joinFloats(rec.CoordX),
			joinFloats(rec.CoordY),
			joinFloats(rec.Width),
			joinInts(rec.Layer),
			strconv.FormatBool(rec.Checked),
			strconv.FormatBool(rec.Solved),
			strconv.FormatBool(rec.Scored),
			formatFloat(rec.Cond),
			formatFloat(rec.Obj),
		}
		for _, c := range drc.Categories() {
			row = append(row, formatFloat(d.Validity.Get(c)))
		}
		if err := w.Write(row); err != nil {
			return errors.Wrap(err, errors.ErrCodeExportFailed, "failed to write csv row")
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return errors.Wrap(err, errors.ErrCodeExportFailed, "failed to flush csv file")
	}
	return nil
}

// writeJSON writes the manifest summary together with the full design
// records.
func writeJSON(path string, m Manifest, designs []*evaluate.Design) error {
	records := make([]designRecord, len(designs))
	for i, d := range designs {
		records[i] = toRecord(d)
	}
	doc := struct {
		Manifest
		Designs []designRecord `json:"designs"`
	}{Manifest: m, Designs: records}

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeExportFailed, "failed to marshal designs")
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return errors.Wrap(err, errors.ErrCodeExportFailed, "failed to write json file")
	}
	return nil
}

// layerPalette maps metal layers to distinct stroke colors, cycling when a
// stackup has more layers than colors.
var layerPalette = []string{"#c0392b", "#2980b9", "#27ae60", "#8e44ad", "#f39c12", "#16a085"}

// writeSVG renders a winding preview: one polyline per copper trace, split
// at layer switches, drawn over the board outline when available.  The
// viewport is in millimeters.
func writeSVG(path string, w geometry.Winding, outline *geometry.Polygon) error {
	if err := w.Validate(); err != nil {
		return errors.Wrap(err, errors.ErrCodeExportFailed, "cannot render invalid winding")
	}

	minX, minY, maxX, maxY := bounds(w, outline)
	pad := 0.1 * (maxX - minX)
	if pad <= 0 {
		pad = 1e-4
	}

	var b strings.Builder
	fmt.Fprintf(&b,
		"<svg xmlns=\"http://www.w3.org/2000/svg\" viewBox=\"%.4f %.4f %.4f %.4f\">\n",
		mm(minX-pad), mm(minY-pad), mm(maxX-minX+2*pad), mm(maxY-minY+2*pad),
	)

	if outline != nil {
		writeRing(&b, outline.Outer)
		for _, hole := range outline.Holes {
			writeRing(&b, hole)
		}
	}

	// split the winding into per-layer traces at the switch nodes
	start := 0
	for i := 0; i <= len(w.Layer); i++ {
		if i < len(w.Layer) && w.Layer[i] == w.Layer[start] {
			continue
		}
		layer := w.Layer[start]
		avg := 0.0
		for _, width := range w.Width[start : i+1] {
			avg += width
		}
		avg /= float64(i + 1 - start)

		fmt.Fprintf(&b, "  <polyline points=\"")
		for j, p := range w.Coord[start : i+1] {
			if j > 0 {
				b.WriteByte(' ')
			}
			fmt.Fprintf(&b, "%.4f,%.4f", mm(p.X), mm(p.Y))
		}
		fmt.Fprintf(&b,
			"\" fill=\"none\" stroke=\"%s\" stroke-width=\"%.4f\" stroke-linecap=\"round\" stroke-linejoin=\"round\"/>\n",
			layerPalette[layerIndex(layer)%len(layerPalette)], mm(avg),
		)
		start = i
	}

	b.WriteString("</svg>\n")

	if err := os.WriteFile(path, []byte(b.String()), 0o644); err != nil {
		return errors.Wrap(err, errors.ErrCodeExportFailed, "failed to write svg file")
	}
	return nil
}

func writeRing(b *strings.Builder, ring []geometry.Point) {
	b.WriteString("  <polygon points=\"")
	for i, p := range ring {
		if i > 0 {
			b.WriteByte(' ')
		}
		fmt.Fprintf(b, "%.4f,%.4f", mm(p.X), mm(p.Y))
	}
	b.WriteString("\" fill=\"none\" stroke=\"#7f8c8d\" stroke-width=\"0.02\"/>\n")
}

func bounds(w geometry.Winding, outline *geometry.Polygon) (minX, minY, maxX, maxY float64) {
	pts := w.Coord
	if outline != nil {
		pts = append(append([]geometry.Point{}, pts...), outline.Outer...)
	}
	minX, minY = pts[0].X, pts[0].Y
	maxX, maxY = pts[0].X, pts[0].Y
	for _, p := range pts[1:] {
		if p.X < minX {
			minX = p.X
		}
		if p.X > maxX {
			maxX = p.X
		}
		if p.Y < minY {
			minY = p.Y
		}
		if p.Y > maxY {
			maxY = p.Y
		}
	}
	return minX, minY, maxX, maxY
}

// mm converts meters to millimeters for the SVG viewport.
func mm(v float64) float64 { return v * 1e3 }

func layerIndex(layer int) int {
	if layer < 0 {
		return -layer
	}
	return layer
}

func joinFloats(vs []float64) string {
	parts := make([]string, len(vs))
	for i, v := range vs {
		parts[i] = formatFloat(v)
	}
	return strings.Join(parts, ";")
}

func joinInts(vs []int) string {
	parts := make([]string, len(vs))
	for i, v := range vs {
		parts[i] = strconv.Itoa(v)
	}
	return strings.Join(parts, ";")
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}
