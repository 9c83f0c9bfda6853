// Package export writes evaluated designs to dataset files (CSV, JSON),
// renders winding previews (SVG), and produces GERBER fabrication archives,
// optionally pushing the artifacts to the object store.
package export

import (
	"context"
	"fmt"
	"math"
	"os"
	"path/filepath"

	"github.com/coilforge/coilforge/internal/application/evaluate"
	"github.com/coilforge/coilforge/internal/config"
	"github.com/coilforge/coilforge/internal/domain/geometry"
	"github.com/coilforge/coilforge/internal/infrastructure/monitoring/logging"
	"github.com/coilforge/coilforge/internal/infrastructure/monitoring/prometheus"
	"github.com/coilforge/coilforge/pkg/errors"
)

// Uploader pushes a local artifact into the object store.
type Uploader interface {
	UploadFile(ctx context.Context, objectName, filePath string) (string, error)
}

// Manifest lists the artifacts produced by one study export.
type Manifest struct {
	Study    string   `json:"study"`
	NDesign  int      `json:"n_design"`
	NValid   int      `json:"n_valid"`
	ObjMin   float64  `json:"obj_min"`
	ObjAvg   float64  `json:"obj_avg"`
	ObjMax   float64  `json:"obj_max"`
	Files    []string `json:"files"`
	Uploaded []string `json:"uploaded,omitempty"`
}

// Exporter writes study exports below the configured directory, one
// subdirectory per study.
type Exporter struct {
	dir      string
	upload   bool
	store    Uploader
	outline  *geometry.Polygon
	maskSrc  int
	maskSink int
	log      logging.Logger
	metrics  *prometheus.CoilMetrics
}

// Option customizes an Exporter.
type Option func(*Exporter)

// WithOutline draws the board outline behind exported winding previews.
func WithOutline(p geometry.Polygon) Option {
	return func(e *Exporter) { e.outline = &p }
}

// WithTerminalMasks marks the masked source and sink node counts so the
// fabrication output exempts the external pad regions.
func WithTerminalMasks(src, sink int) Option {
	return func(e *Exporter) { e.maskSrc, e.maskSink = src, sink }
}

// New builds an Exporter.  store may be nil when uploads are disabled.
func New(cfg config.ExportConfig, store Uploader, log logging.Logger, metrics *prometheus.CoilMetrics, opts ...Option) (*Exporter, error) {
	if cfg.Dir == "" {
		return nil, errors.New(errors.ErrCodeConfigInvalid, "export directory is empty")
	}
	if cfg.Upload && store == nil {
		return nil, errors.New(errors.ErrCodeConfigInvalid, "upload requested without an object store")
	}
	if log == nil {
		log = logging.NewNopLogger()
	}
	e := &Exporter{
		dir:     cfg.Dir,
		upload:  cfg.Upload,
		store:   store,
		log:     log.Named("export"),
		metrics: metrics,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// ExportStudy writes the designs of one study as CSV and JSON datasets plus
// an SVG preview and a GERBER fabrication archive of the best design, and
// uploads the files when configured.
// Designs are expected best-first; an empty set is an error.
func (e *Exporter) ExportStudy(ctx context.Context, study string, designs []*evaluate.Design) (Manifest, error) {
	if len(designs) == 0 {
		err := errors.New(errors.ErrCodeExportFailed, "design data is empty").
			WithDetailf("study %q", study)
		prometheus.RecordExport(e.metrics, "study", err)
		return Manifest{}, err
	}

	dir := filepath.Join(e.dir, study)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return Manifest{}, errors.Wrap(err, errors.ErrCodeExportFailed, "failed to create export directory")
	}

	m := e.summarize(study, designs)

	csvPath := filepath.Join(dir, "designs.csv")
	err := writeCSV(csvPath, designs)
	prometheus.RecordExport(e.metrics, "csv", err)
	if err != nil {
		return Manifest{}, err
	}
	m.Files = append(m.Files, csvPath)

	jsonPath := filepath.Join(dir, "designs.json")
	err = writeJSON(jsonPath, m, designs)
	prometheus.RecordExport(e.metrics, "json", err)
	if err != nil {
		return Manifest{}, err
	}
	m.Files = append(m.Files, jsonPath)

	svgPath := filepath.Join(dir, "best.svg")
	err = writeSVG(svgPath, designs[0].Winding, e.outline)
	prometheus.RecordExport(e.metrics, "svg", err)
	if err != nil {
		return Manifest{}, err
	}
	m.Files = append(m.Files, svgPath)

	gerberPath := filepath.Join(dir, "gerber.zip")
	err = writeGerberArchive(gerberPath, designs[0].Winding, e.outline, e.maskSrc, e.maskSink)
	prometheus.RecordExport(e.metrics, "gerber", err)
	if err != nil {
		return Manifest{}, err
	}
	m.Files = append(m.Files, gerberPath)

	e.log.Info("study exported",
		logging.String("study", study),
		logging.Int("n_design", m.NDesign),
		logging.Int("n_valid", m.NValid),
		logging.Float64("obj_min", m.ObjMin),
		logging.Float64("obj_max", m.ObjMax),
	)

	if e.upload {
		for _, f := range m.Files {
			object := fmt.Sprintf("%s/%s", study, filepath.Base(f))
			if _, err := e.store.UploadFile(ctx, object, f); err != nil {
				return Manifest{}, err
			}
			m.Uploaded = append(m.Uploaded, object)
		}
	}
	return m, nil
}

func (e *Exporter) summarize(study string, designs []*evaluate.Design) Manifest {
	m := Manifest{
		Study:   study,
		NDesign: len(designs),
		ObjMin:  math.Inf(1),
		ObjMax:  math.Inf(-1),
	}
	sum := 0.0
	for _, d := range designs {
		if d.Cond <= 0 {
			m.NValid++
		}
		sum += d.Obj
		m.ObjMin = math.Min(m.ObjMin, d.Obj)
		m.ObjMax = math.Max(m.ObjMax, d.Obj)
	}
	m.ObjAvg = sum / float64(len(designs))
	return m
}
