package repositories

import (
	"context"
	"database/sql"
	"time"

	"github.com/lib/pq"

	"github.com/coilforge/coilforge/internal/application/evaluate"
	"github.com/coilforge/coilforge/internal/domain/drc"
	"github.com/coilforge/coilforge/internal/domain/geometry"
	"github.com/coilforge/coilforge/internal/infrastructure/database/postgres"
	"github.com/coilforge/coilforge/internal/infrastructure/monitoring/logging"
	"github.com/coilforge/coilforge/internal/infrastructure/monitoring/prometheus"
	"github.com/coilforge/coilforge/pkg/errors"
)

// Study is a named group of designs.
type Study struct {
	ID        int64     `json:"study_id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

// StudyStats summarizes the designs stored under one study.
type StudyStats struct {
	NDesign int64   `json:"n_design"`
	NValid  int64   `json:"n_valid"`
	ObjMin  float64 `json:"obj_min"`
	ObjAvg  float64 `json:"obj_avg"`
	ObjMax  float64 `json:"obj_max"`
}

// DesignRepo stores studies and evaluated designs.  It satisfies the dataset
// Repository and the optimizer SeedSource/Archive contracts.
type DesignRepo struct {
	conn     *postgres.Connection
	log      logging.Logger
	metrics  *prometheus.CoilMetrics
	executor queryExecutor
}

// NewDesignRepo builds a DesignRepo on an established connection.
func NewDesignRepo(conn *postgres.Connection, log logging.Logger, metrics *prometheus.CoilMetrics) *DesignRepo {
	if log == nil {
		log = logging.NewNopLogger()
	}
	return &DesignRepo{
		conn:     conn,
		log:      log.Named("design_repo"),
		metrics:  metrics,
		executor: conn.DB(),
	}
}

// WithTx runs fn against a repository bound to a single transaction.
func (r *DesignRepo) WithTx(ctx context.Context, fn func(*DesignRepo) error) error {
	tx, err := r.conn.DB().BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to begin transaction")
	}

	txRepo := &DesignRepo{
		conn:     r.conn,
		log:      r.log,
		metrics:  r.metrics,
		executor: tx,
	}

	if err := fn(txRepo); err != nil {
		tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to commit transaction")
	}
	return nil
}

// Studies

// CreateStudy creates a new named study and returns its id.
func (r *DesignRepo) CreateStudy(ctx context.Context, name string) (int64, error) {
	start := time.Now()
	var id int64
	err := r.executor.QueryRowContext(ctx,
		`INSERT INTO study (name) VALUES ($1) RETURNING study_id`, name,
	).Scan(&id)
	prometheus.RecordDBQuery(r.metrics, "create_study", time.Since(start), err)
	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23505" {
			return 0, errors.Wrap(err, errors.ErrCodeStudyExists, "study name already exists").
				WithDetailf("name %q", name)
		}
		return 0, errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to create study")
	}
	r.log.Info("study created", logging.String("name", name), logging.Int64("study_id", id))
	return id, nil
}

// GetStudyID resolves a study name.
func (r *DesignRepo) GetStudyID(ctx context.Context, name string) (int64, error) {
	start := time.Now()
	var id int64
	err := r.executor.QueryRowContext(ctx,
		`SELECT study_id FROM study WHERE name = $1`, name,
	).Scan(&id)
	prometheus.RecordDBQuery(r.metrics, "get_study", time.Since(start), err)
	if err == sql.ErrNoRows {
		return 0, errors.New(errors.ErrCodeStudyNotFound, "study not found").
			WithDetailf("name %q", name)
	}
	if err != nil {
		return 0, errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to query study")
	}
	return id, nil
}

// DeleteStudy removes a study and all its designs.
func (r *DesignRepo) DeleteStudy(ctx context.Context, name string) error {
	start := time.Now()
	res, err := r.executor.ExecContext(ctx,
		`DELETE FROM study WHERE name = $1`, name,
	)
	prometheus.RecordDBQuery(r.metrics, "delete_study", time.Since(start), err)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to delete study")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return errors.New(errors.ErrCodeStudyNotFound, "study not found").
			WithDetailf("name %q", name)
	}
	r.log.Info("study deleted", logging.String("name", name))
	return nil
}

// RenameStudy changes a study name.
func (r *DesignRepo) RenameStudy(ctx context.Context, oldName, newName string) error {
	start := time.Now()
	res, err := r.executor.ExecContext(ctx,
		`UPDATE study SET name = $2 WHERE name = $1`, oldName, newName,
	)
	prometheus.RecordDBQuery(r.metrics, "rename_study", time.Since(start), err)
	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23505" {
			return errors.Wrap(err, errors.ErrCodeStudyExists, "study name already exists").
				WithDetailf("name %q", newName)
		}
		return errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to rename study")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return errors.New(errors.ErrCodeStudyNotFound, "study not found").
			WithDetailf("name %q", oldName)
	}
	return nil
}

// ListStudies returns all studies ordered by creation time.
func (r *DesignRepo) ListStudies(ctx context.Context) ([]Study, error) {
	start := time.Now()
	rows, err := r.executor.QueryContext(ctx,
		`SELECT study_id, name, created_at FROM study ORDER BY created_at`,
	)
	prometheus.RecordDBQuery(r.metrics, "list_studies", time.Since(start), err)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to list studies")
	}
	defer rows.Close()

	var studies []Study
	for rows.Next() {
		var s Study
		if err := rows.Scan(&s.ID, &s.Name, &s.CreatedAt); err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to scan study")
		}
		studies = append(studies, s)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to iterate studies")
	}
	return studies, nil
}

// ensureStudy resolves the study id, creating the study on first use.
func (r *DesignRepo) ensureStudy(ctx context.Context, name string) (int64, error) {
	var id int64
	err := r.executor.QueryRowContext(ctx, `
		INSERT INTO study (name) VALUES ($1)
		ON CONFLICT (name) DO UPDATE SET name = EXCLUDED.name
		RETURNING study_id
	`, name).Scan(&id)
	if err != nil {
		return 0, errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to resolve study")
	}
	return id, nil
}

// Designs

const designColumns = `
	design_id, study_id, n_wdg, coord_x, coord_y, width, layer,
	checked, solved, scored, validity, loss, penalty, cond, obj, created_at
`

// InsertDesigns stores a batch of designs under the named study, creating the
// study on first use.  The whole batch is written in one transaction.
func (r *DesignRepo) InsertDesigns(ctx context.Context, study string, designs []*evaluate.Design) error {
	if len(designs) == 0 {
		return nil
	}
	start := time.Now()
	err := r.WithTx(ctx, func(tx *DesignRepo) error {
		studyID, err := tx.ensureStudy(ctx, study)
		if err != nil {
			return err
		}
		for _, d := range designs {
			if d == nil {
				continue
			}
			if err := tx.insertDesign(ctx, studyID, d); err != nil {
				return err
			}
		}
		return nil
	})
	prometheus.RecordDBQuery(r.metrics, "insert_designs", time.Since(start), err)
	if err != nil {
		return err
	}
	r.log.Debug("designs stored",
		logging.String("study", study),
		logging.Int("count", len(designs)),
	)
	return nil
}

func (r *DesignRepo) insertDesign(ctx context.Context, studyID int64, d *evaluate.Design) error {
	n := d.Winding.Size()
	coordX := make([]float64, n)
	coordY := make([]float64, n)
	for i, p := range d.Winding.Coord {
		coordX[i] = p.X
		coordY[i] = p.Y
	}
	layer := make([]int64, len(d.Winding.Layer))
	for i, l := range d.Winding.Layer {
		layer[i] = int64(l)
	}

	err := r.executor.QueryRowContext(ctx, `
		INSERT INTO design (
			study_id, n_wdg, coord_x, coord_y, width, layer,
			checked, solved, scored, validity, loss, penalty, cond, obj
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		RETURNING design_id, created_at
	`,
		studyID, n,
		pq.Array(coordX), pq.Array(coordY), pq.Array(d.Winding.Width), pq.Array(layer),
		d.Checked, d.Solved, d.Scored,
		pq.Array(d.Validity.Vector()), pq.Array(d.Loss), pq.Array(d.Penalty),
		d.Cond, d.Obj,
	).Scan(&d.ID, &d.CreatedAt)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to insert design")
	}
	d.StudyID = studyID
	return nil
}

// GetDesign fetches a single design by id.
func (r *DesignRepo) GetDesign(ctx context.Context, id int64) (*evaluate.Design, error) {
	start := time.Now()
	row := r.executor.QueryRowContext(ctx,
		`SELECT `+designColumns+` FROM design WHERE design_id = $1`, id,
	)
	d, err := scanDesign(row)
	prometheus.RecordDBQuery(r.metrics, "get_design", time.Since(start), err)
	if err == sql.ErrNoRows {
		return nil, errors.New(errors.ErrCodeDesignNotFound, "design not found").
			WithDetailf("design_id %d", id)
	}
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to query design")
	}
	return d, nil
}

// SeedDesigns returns up to limit designs of a study with cond below condMax,
// best objective first.  It feeds the optimizer's initial population.
func (r *DesignRepo) SeedDesigns(ctx context.Context, study string, condMax float64, limit int) ([]*evaluate.Design, error) {
	start := time.Now()
	rows, err := r.executor.QueryContext(ctx, `
		SELECT `+designColumns+`
		FROM design
		JOIN study USING (study_id)
		WHERE study.name = $1 AND cond <= $2
		ORDER BY obj ASC
		LIMIT $3
	`, study, condMax, limit)
	prometheus.RecordDBQuery(r.metrics, "seed_designs", time.Since(start), err)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to query seed designs")
	}
	defer rows.Close()

	return collectDesigns(rows)
}

// BestDesigns returns the lowest-objective designs of a study.
func (r *DesignRepo) BestDesigns(ctx context.Context, study string, limit int) ([]*evaluate.Design, error) {
	start := time.Now()
	rows, err := r.executor.QueryContext(ctx, `
		SELECT `+designColumns+`
		FROM design
		JOIN study USING (study_id)
		WHERE study.name = $1
		ORDER BY obj ASC
		LIMIT $2
	`, study, limit)
	prometheus.RecordDBQuery(r.metrics, "best_designs", time.Since(start), err)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to query best designs")
	}
	defer rows.Close()

	return collectDesigns(rows)
}

// TrimStudy deletes all but the keep lowest-objective designs of a study
// and returns the number of removed designs.
func (r *DesignRepo) TrimStudy(ctx context.Context, study string, keep int) (int64, error) {
	if keep < 1 {
		return 0, errors.New(errors.ErrCodeConfigInvalid, "trim keep count must be >= 1").
			WithDetailf("keep %d", keep)
	}
	id, err := r.GetStudyID(ctx, study)
	if err != nil {
		return 0, err
	}

	start := time.Now()
	res, err := r.executor.ExecContext(ctx, `
		DELETE FROM design
		WHERE study_id = $1
		  AND design_id NOT IN (
			SELECT design_id FROM design
			WHERE study_id = $1
			ORDER BY obj ASC
			LIMIT $2
		  )
	`, id, keep)
	prometheus.RecordDBQuery(r.metrics, "trim_study", time.Since(start), err)
	if err != nil {
		return 0, errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to trim study").
			WithDetailf("study %q", study)
	}
	removed, err := res.RowsAffected()
	if err != nil {
		return 0, errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to read trim result")
	}

	r.log.Info("study trimmed",
		logging.String("study", study),
		logging.Int("keep", keep),
		logging.Int64("removed", removed),
	)
	return removed, nil
}

// Stats aggregates design counts and objective statistics for a study.
func (r *DesignRepo) Stats(ctx context.Context, study string) (StudyStats, error) {
	start := time.Now()
	var s StudyStats
	err := r.executor.QueryRowContext(ctx, `
		SELECT
			COUNT(*),
			COUNT(*) FILTER (WHERE cond <= 0),
			COALESCE(MIN(obj), 0),
			COALESCE(AVG(obj), 0),
			COALESCE(MAX(obj), 0)
		FROM design
		JOIN study USING (study_id)
		WHERE study.name = $1
	`, study).Scan(&s.NDesign, &s.NValid, &s.ObjMin, &s.ObjAvg, &s.ObjMax)
	prometheus.RecordDBQuery(r.metrics, "study_stats", time.Since(start), err)
	if err != nil {
		return StudyStats{}, errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to query study stats")
	}
	return s, nil
}

func collectDesigns(rows *sql.Rows) ([]*evaluate.Design, error) {
	var designs []*evaluate.Design
	for rows.Next() {
		d, err := scanDesign(rows)
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to scan design")
		}
		designs = append(designs, d)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to iterate designs")
	}
	return designs, nil
}

func scanDesign(sc scanner) (*evaluate.Design, error) {
	var (
		d        evaluate.Design
		nWdg     int
		coordX   pq.Float64Array
		coordY   pq.Float64Array
		width    pq.Float64Array
		layer    pq.Int64Array
		validity pq.Float64Array
		loss     pq.Float64Array
		penalty  pq.Float64Array
	)
	err := sc.Scan(
		&d.ID, &d.StudyID, &nWdg, &coordX, &coordY, &width, &layer,
		&d.Checked, &d.Solved, &d.Scored, &validity, &loss, &penalty,
		&d.Cond, &d.Obj, &d.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	w := geometry.Winding{
		Coord: make([]geometry.Point, len(coordX)),
		Width: []float64(width),
		Layer: make([]int, len(layer)),
	}
	for i := range coordX {
		w.Coord[i] = geometry.Point{X: coordX[i], Y: coordY[i]}
	}
	for i, l := range layer {
		w.Layer[i] = int(l)
	}
	d.Winding = w

	if d.Checked {
		res, err := drc.ResultsFromVector(validity)
		if err != nil {
			return nil, err
		}
		d.Validity = res
	}
	d.Loss = []float64(loss)
	d.Penalty = []float64(penalty)
	return &d, nil
}
