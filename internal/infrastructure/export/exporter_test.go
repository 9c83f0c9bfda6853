package export_test

import (
	"archive/zip"
	"context"
	"encoding/csv"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coilforge/coilforge/internal/application/evaluate"
	"github.com/coilforge/coilforge/internal/config"
	"github.com/coilforge/coilforge/internal/domain/drc"
	"github.com/coilforge/coilforge/internal/domain/geometry"
	"github.com/coilforge/coilforge/internal/infrastructure/export"
	"github.com/coilforge/coilforge/pkg/errors"
)

type fakeUploader struct {
	objects map[string]string
	err     error
}

func (f *fakeUploader) UploadFile(_ context.Context, objectName, filePath string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	if f.objects == nil {
		f.objects = make(map[string]string)
	}
	f.objects[objectName] = filePath
	return objectName, nil
}

func testDesigns() []*evaluate.Design {
	var results drc.Results
	for i := range results {
		results[i] = -1
	}
	return []*evaluate.Design{
		{
			ID:      11,
			StudyID: 3,
			Winding: geometry.Winding{
				Coord: []geometry.Point{{X: -0.4e-3, Y: 0}, {X: 0, Y: 0.2e-3}, {X: 0.4e-3, Y: 0}},
				Width: []float64{100e-6, 100e-6, 100e-6},
				Layer: []int{0, 0},
			},
			Checked:  true,
			Validity: results,
			Solved:   true,
			Scored:   true,
			Loss:     []float64{0.5},
			Penalty:  []float64{0},
			Cond:     -1,
			Obj:      0.5,
		},
		{
			ID:      12,
			StudyID: 3,
			Winding: geometry.Winding{
				Coord: []geometry.Point{{X: -0.3e-3, Y: 0.1e-3}, {X: 0.3e-3, Y: 0.1e-3}},
				Width: []float64{120e-6, 120e-6},
				Layer: []int{4},
			},
			Checked: true,
			Validity: drc.Results{
				drc.CategoryAngle: 0.5,
			},
			Cond: 0.5,
			Obj:  100.5,
		},
	}
}

func TestNew_Invalid(t *testing.T) {
	t.Parallel()

	_, err := export.New(config.ExportConfig{}, nil, nil, nil)
	assert.True(t, errors.IsCode(err, errors.ErrCodeConfigInvalid))

	_, err = export.New(config.ExportConfig{Dir: t.TempDir(), Upload: true}, nil, nil, nil)
	assert.True(t, errors.IsCode(err, errors.ErrCodeConfigInvalid))
}

func TestExportStudy_NoDesigns(t *testing.T) {
	t.Parallel()

	e, err := export.New(config.ExportConfig{Dir: t.TempDir()}, nil, nil, nil)
	require.NoError(t, err)

	_, err = e.ExportStudy(context.Background(), "probe", nil)
	assert.True(t, errors.IsCode(err, errors.ErrCodeExportFailed))
}

func TestExportStudy_WritesArtifacts(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	outline := geometry.Polygon{
		Outer: []geometry.Point{
			{X: -0.5e-3, Y: -0.5e-3}, {X: 0.5e-3, Y: -0.5e-3},
			{X: 0.5e-3, Y: 0.5e-3}, {X: -0.5e-3, Y: 0.5e-3},
		},
	}
	e, err := export.New(config.ExportConfig{Dir: dir}, nil, nil, nil, export.WithOutline(outline))
	require.NoError(t, err)

	m, err := e.ExportStudy(context.Background(), "probe", testDesigns())
	require.NoError(t, err)

	assert.Equal(t, "probe", m.Study)
	assert.Equal(t, 2, m.NDesign)
	assert.Equal(t, 1, m.NValid)
	assert.InDelta(t, 0.5, m.ObjMin, 1e-12)
	assert.InDelta(t, 100.5, m.ObjMax, 1e-12)
	assert.Len(t, m.Files, 4)
	assert.Empty(t, m.Uploaded)

	// CSV carries one header plus one row per design, with a signed result
	// column for every rule category.
	f, err := os.Open(filepath.Join(dir, "probe", "designs.csv"))
	require.NoError(t, err)
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Len(t, rows[0], 12+len(drc.Categories()))
	assert.Equal(t, "11", rows[1][0])
	assert.Contains(t, rows[0], "valid_"+drc.CategoryAngle.String())

	var doc struct {
		export.Manifest
		Designs []struct {
			DesignID int64     `json:"design_id"`
			CoordX   []float64 `json:"coord_x"`
			Layer    []int     `json:"layer"`
		} `json:"designs"`
	}
	data, err := os.ReadFile(filepath.Join(dir, "probe", "designs.json"))
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(data, &doc))
	require.Len(t, doc.Designs, 2)
	assert.Equal(t, int64(11), doc.Designs[0].DesignID)
	assert.Equal(t, []int{4}, doc.Designs[1].Layer)
	assert.Equal(t, 2, doc.NDesign)

	svg, err := os.ReadFile(filepath.Join(dir, "probe", "best.svg"))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(svg), "<svg"))
	assert.Contains(t, string(svg), "<polyline")
	assert.Contains(t, string(svg), "<polygon")

	zr, err := zip.OpenReader(filepath.Join(dir, "probe", "gerber.zip"))
	require.NoError(t, err)
	defer zr.Close()
	names := make([]string, 0, len(zr.File))
	for _, f := range zr.File {
		names = append(names, f.Name)
	}
	assert.Contains(t, names, "copper_l0.gbr")
	assert.Contains(t, names, "outline.gbr")
	assert.Contains(t, names, "drill.drl")

	rc, err := zr.File[0].Open()
	require.NoError(t, err)
	defer rc.Close()
	content, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Contains(t, string(content), "%MOMM*%")
	assert.Contains(t, string(content), "M02*")
}

func TestExportStudy_Uploads(t *testing.T) {
	t.Parallel()

	store := &fakeUploader{}
	e, err := export.New(config.ExportConfig{Dir: t.TempDir(), Upload: true}, store, nil, nil)
	require.NoError(t, err)

	m, err := e.ExportStudy(context.Background(), "probe", testDesigns())
	require.NoError(t, err)

	require.Len(t, m.Uploaded, 4)
	assert.Contains(t, store.objects, "probe/designs.csv")
	assert.Contains(t, store.objects, "probe/designs.json")
	assert.Contains(t, store.objects, "probe/best.svg")
	assert.Contains(t, store.objects, "probe/gerber.zip")
}

func TestExportStudy_UploadFailure(t *testing.T) {
	t.Parallel()

	store := &fakeUploader{err: errors.New(errors.ErrCodeStorageError, "bucket unreachable")}
	e, err := export.New(config.ExportConfig{Dir: t.TempDir(), Upload: true}, store, nil, nil)
	require.NoError(t, err)

	_, err = e.ExportStudy(context.Background(), "probe", testDesigns())
	assert.True(t, errors.IsCode(err, errors.ErrCodeStorageError))
}
