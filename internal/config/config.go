// Package config defines all configuration structures for the coilforge
// optimizer.  No I/O or parsing logic lives here — only plain data types and
// validation.
package config

import (
	"fmt"
	"math"
	"time"

	"github.com/coilforge/coilforge/pkg/types/common"
)

// ─────────────────────────────────────────────────────────────────────────────
// Sub-configuration structs
// ─────────────────────────────────────────────────────────────────────────────

// TerminalNodeConfig pins the components of one terminal node.  A nil
// component is free and keeps whatever value the decoder or generator
// produces for it.
type TerminalNodeConfig struct {
	X     *float64 `mapstructure:"x"`
	Y     *float64 `mapstructure:"y"`
	Width *float64 `mapstructure:"width"`
	Layer *int     `mapstructure:"layer"`
}

// TerminalConfig describes one terminal (source or sink) as an ordered node
// list.  The node count must match the encoding's n_add_src / n_add_sink.
type TerminalConfig struct {
	Nodes []TerminalNodeConfig `mapstructure:"nodes"`
}

// BoardConfig holds the physical board description shared by the encoder,
// the generator, and the rule checker.
type BoardConfig struct {
	// Outline is the board boundary polygon as [x, y] vertex pairs.
	Outline [][]float64 `mapstructure:"outline"`
	// Keepout lists forbidden polygons inside the outline.
	Keepout [][][]float64 `mapstructure:"keepout"`
	// LayerList enumerates the usable conductor layers (physical indices,
	// strictly increasing).  The layer selector of the variable vector
	// indexes into this list.
	LayerList []int `mapstructure:"layer_list"`
}

// EncodingConfig fixes the variable-vector layout and the physical ranges
// the normalized values are rescaled into.
type EncodingConfig struct {
	NWdg     int          `mapstructure:"n_wdg"`
	NormMin  float64      `mapstructure:"norm_min"`
	NormMax  float64      `mapstructure:"norm_max"`
	X        common.Range `mapstructure:"x"`
	Y        common.Range `mapstructure:"y"`
	Width    common.Range `mapstructure:"width"`
	NAddSrc  int          `mapstructure:"n_add_src"`
	NAddSink int          `mapstructure:"n_add_sink"`
	// NMaskSrc / NMaskSink nodes at either end are exempt from outline
	// containment (external pads may sit outside the board).
	NMaskSrc  int            `mapstructure:"n_mask_src"`
	NMaskSink int            `mapstructure:"n_mask_sink"`
	SrcGeom   TerminalConfig `mapstructure:"src_geom"`
	SinkGeom  TerminalConfig `mapstructure:"sink_geom"`
}

// GeneratorConfig bounds the random topology generator.  The retry budgets
// guarantee termination even for geometrically infeasible boards.
type GeneratorConfig struct {
	NWdg       common.IntRange `mapstructure:"n_wdg"`
	NInit      common.IntRange `mapstructure:"n_init"`
	NIterInit  int             `mapstructure:"n_iter_init"`
	NIterTree  int             `mapstructure:"n_iter_tree"`
	NIterFail  int             `mapstructure:"n_iter_fail"`
	NIterReset int             `mapstructure:"n_iter_reset"`
	// SegmentMin and AngleMin (degrees) are the cheap partial-rule limits
	// applied during incremental growth.
	SegmentMin float64 `mapstructure:"segment_min"`
	AngleMin   float64 `mapstructure:"angle_min"`
	// Seed fixes the random source when non-zero (reproducible runs).
	Seed int64 `mapstructure:"seed"`
}

// RuleLimits holds the per-category design-rule limits.  Range limits use
// -Inf / +Inf for one-sided constraints; an angle upper bound of 360 degrees
// disables the upper check.
type RuleLimits struct {
	// Boundary is the scale constant for the signed outline distance.
	Boundary  float64      `mapstructure:"boundary"`
	Clearance common.Range `mapstructure:"clearance"`
	Distance  common.Range `mapstructure:"distance"`
	Angle     common.Range `mapstructure:"angle"`
	Width     common.Range `mapstructure:"width"`
	Length    common.Range `mapstructure:"length"`
	Radius    common.Range `mapstructure:"radius"`
	Diff      common.Range `mapstructure:"diff"`
}

// DistanceOptions tunes the self-clearance measurement of a single trace.
type DistanceOptions struct {
	SizeMin     int     `mapstructure:"size_min"`
	DisResample float64 `mapstructure:"dis_resample"`
	// TolAngle (degrees) and TolAdd soften the check near sharp bends
	// where nominal clearance is expected to tighten.
	TolAngle float64 `mapstructure:"tol_angle"`
	TolAdd   float64 `mapstructure:"tol_add"`
}

// AverageOptions tunes the moving-window width-gradient and curvature-rate
// measurements (diff / radius categories).
type AverageOptions struct {
	SizeMin     int     `mapstructure:"size_min"`
	WindowConv  string  `mapstructure:"window_conv"` // "boxcar" | "hann"
	LengthMin   float64 `mapstructure:"length_min"`
	DisResample float64 `mapstructure:"dis_resample"`
	DisAverage  float64 `mapstructure:"dis_average"`
}

// RuleConfig assembles the full design-rule checker configuration.
type RuleConfig struct {
	Limits   RuleLimits      `mapstructure:"limits"`
	Clamp    common.Range    `mapstructure:"clamp"`
	Distance DistanceOptions `mapstructure:"distance"`
	Average  AverageOptions  `mapstructure:"average"`
}

// ObjectiveConfig holds the validity / score combination weights and clamp
// ceilings.  Every ceiling doubles as the worst-case sentinel for failed
// measurements, so the optimizer always receives a finite ordered value.
type ObjectiveConfig struct {
	CondScale     float64   `mapstructure:"cond_scale"`
	CondMax       float64   `mapstructure:"cond_max"`
	ValidityScale float64   `mapstructure:"validity_scale"`
	ValidityMax   float64   `mapstructure:"validity_max"`
	ScoreScale    float64   `mapstructure:"score_scale"`
	ScoreMax      float64   `mapstructure:"score_max"`
	LossScale     []float64 `mapstructure:"loss_scale"`
	PenaltyScale  []float64 `mapstructure:"penalty_scale"`
	// CondSolve gates the external solver: designs whose aggregate
	// constraint exceeds it are scored without solving.
	CondSolve float64 `mapstructure:"cond_solve"`
}

// DatasetConfig drives parallel random-design dataset generation.
type DatasetConfig struct {
	NDesign      int           `mapstructure:"n_design"`
	NParallel    int           `mapstructure:"n_parallel"`
	Mode         string        `mapstructure:"mode"` // "single" | "iter"
	// CondGen gates generation on a full rule check; <= 0 disables the gate.
	CondGen float64 `mapstructure:"cond_gen"`
	// ObjKeep stores only designs with obj below it; <= 0 keeps everything.
	ObjKeep float64 `mapstructure:"obj_keep"`
	DelayCollect time.Duration `mapstructure:"delay_collect"`
	BatchSize    int           `mapstructure:"batch_size"`
}

// OptimizeConfig drives the differential-evolution optimizer.
type OptimizeConfig struct {
	PopSize       int          `mapstructure:"pop_size"`
	NGen          int          `mapstructure:"n_gen"`
	Weight        common.Range `mapstructure:"weight"` // dither range for F
	CrossoverRate float64      `mapstructure:"crossover_rate"`
	NParallel     int          `mapstructure:"n_parallel"`
	// NSeed designs below CondSeed are pulled from the repository to seed
	// the initial population; the remainder is random.
	NSeed    int     `mapstructure:"n_seed"`
	CondSeed float64 `mapstructure:"cond_seed"`
	Seed     int64   `mapstructure:"seed"`
}

// DatabaseConfig holds PostgreSQL connection parameters.
type DatabaseConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	DBName          string        `mapstructure:"db_name"`
	SSLMode         string        `mapstructure:"ssl_mode"`
	MaxConns        int           `mapstructure:"max_conns"`
	MinConns        int           `mapstructure:"min_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `mapstructure:"conn_max_idle_time"`
	MigrationPath   string        `mapstructure:"migration_path"`
}

// RedisConfig holds the evaluated-design signature cache parameters.
type RedisConfig struct {
	Addr         string        `mapstructure:"addr"`
	Password     string        `mapstructure:"password"`
	DB           int           `mapstructure:"db"`
	PoolSize     int           `mapstructure:"pool_size"`
	DialTimeout  time.Duration `mapstructure:"dial_timeout"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	DefaultTTL   time.Duration `mapstructure:"default_ttl"`
	KeyPrefix    string        `mapstructure:"key_prefix"`
}

// MinIOConfig holds S3-compatible object-storage parameters for export
// artifacts.
type MinIOConfig struct {
	Endpoint  string `mapstructure:"endpoint"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
	Bucket    string `mapstructure:"bucket"`
	UseSSL    bool   `mapstructure:"use_ssl"`
}

// ExportConfig holds fabrication-export parameters.
type ExportConfig struct {
	Dir string `mapstructure:"dir"`
	// Upload pushes the archived export to MinIO after writing it locally.
	Upload bool `mapstructure:"upload"`
}

// LogConfig holds structured-logging parameters.
type LogConfig struct {
	Level            string `mapstructure:"level"`  // "debug" | "info" | "warn" | "error"
	Format           string `mapstructure:"format"` // "json" | "text"
	Output           string `mapstructure:"output"`
	EnableCaller     bool   `mapstructure:"enable_caller"`
	EnableStacktrace bool   `mapstructure:"enable_stacktrace"`
}

// ─────────────────────────────────────────────────────────────────────────────
// Root Config
// ─────────────────────────────────────────────────────────────────────────────

// Config is the root configuration structure.  Every component reads its
// settings from the relevant sub-struct; the whole tree is read-only after
// Load.
type Config struct {
	Board     BoardConfig     `mapstructure:"board"`
	Encoding  EncodingConfig  `mapstructure:"encoding"`
	Generator GeneratorConfig `mapstructure:"generator"`
	Rules     RuleConfig      `mapstructure:"rules"`
	Objective ObjectiveConfig `mapstructure:"objective"`
	Dataset   DatasetConfig   `mapstructure:"dataset"`
	Optimize  OptimizeConfig  `mapstructure:"optimize"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Redis     RedisConfig     `mapstructure:"redis"`
	MinIO     MinIOConfig     `mapstructure:"minio"`
	Export    ExportConfig    `mapstructure:"export"`
	Log       LogConfig       `mapstructure:"log"`
}

// ─────────────────────────────────────────────────────────────────────────────
// Validation
// ─────────────────────────────────────────────────────────────────────────────

// Validate performs semantic validation of the fully-populated Config.
// It returns the first error encountered; callers should treat any error as
// fatal and refuse to start.
func (c *Config) Validate() error {
	// Board
	if len(c.Board.Outline) < 3 {
		return fmt.Errorf("config: board.outline needs at least 3 vertices, got %d", len(c.Board.Outline))
	}
	for i, v := range c.Board.Outline {
		if len(v) != 2 {
			return fmt.Errorf("config: board.outline vertex %d has %d components, want 2", i, len(v))
		}
	}
	for i, hole := range c.Board.Keepout {
		if len(hole) < 3 {
			return fmt.Errorf("config: board.keepout %d needs at least 3 vertices, got %d", i, len(hole))
		}
	}
	if len(c.Board.LayerList) == 0 {
		return fmt.Errorf("config: board.layer_list must not be empty")
	}
	for i := 1; i < len(c.Board.LayerList); i++ {
		if c.Board.LayerList[i] <= c.Board.LayerList[i-1] {
			return fmt.Errorf("config: board.layer_list must be strictly increasing, got %v", c.Board.LayerList)
		}
	}

	// Encoding
	if c.Encoding.NWdg < 2 {
		return fmt.Errorf("config: encoding.n_wdg must be >= 2, got %d", c.Encoding.NWdg)
	}
	if c.Encoding.NormMin >= c.Encoding.NormMax {
		return fmt.Errorf("config: encoding norm range is inverted: [%v, %v]", c.Encoding.NormMin, c.Encoding.NormMax)
	}
	for name, r := range map[string]common.Range{
		"encoding.x":     c.Encoding.X,
		"encoding.y":     c.Encoding.Y,
		"encoding.width": c.Encoding.Width,
	} {
		if err := r.Validate(); err != nil {
			return fmt.Errorf("config: %s: %w", name, err)
		}
	}
	if c.Encoding.Width.Min <= 0 {
		return fmt.Errorf("config: encoding.width.min must be positive, got %v", c.Encoding.Width.Min)
	}
	if c.Encoding.NAddSrc < 0 || c.Encoding.NAddSink < 0 {
		return fmt.Errorf("config: encoding terminal paddings must be non-negative")
	}
	if len(c.Encoding.SrcGeom.Nodes) != c.Encoding.NAddSrc {
		return fmt.Errorf("config: encoding.src_geom has %d nodes, n_add_src is %d",
			len(c.Encoding.SrcGeom.Nodes), c.Encoding.NAddSrc)
	}
	if len(c.Encoding.SinkGeom.Nodes) != c.Encoding.NAddSink {
		return fmt.Errorf("config: encoding.sink_geom has %d nodes, n_add_sink is %d",
			len(c.Encoding.SinkGeom.Nodes), c.Encoding.NAddSink)
	}
	if c.Encoding.NMaskSrc < 0 || c.Encoding.NMaskSink < 0 {
		return fmt.Errorf("config: encoding mask counts must be non-negative")
	}
	if c.Encoding.NAddSrc+c.Encoding.NAddSink >= c.Encoding.NWdg {
		return fmt.Errorf("config: terminal padding %d+%d leaves no free nodes for n_wdg %d",
			c.Encoding.NAddSrc, c.Encoding.NAddSink, c.Encoding.NWdg)
	}
	for _, tc := range []struct {
		name  string
		nodes []TerminalNodeConfig
	}{
		{"encoding.src_geom", c.Encoding.SrcGeom.Nodes},
		{"encoding.sink_geom", c.Encoding.SinkGeom.Nodes},
	} {
		for i, n := range tc.nodes {
			if n.Width != nil && *n.Width <= 0 {
				return fmt.Errorf("config: %s node %d has non-positive width %v", tc.name, i, *n.Width)
			}
			if n.Layer != nil && !containsInt(c.Board.LayerList, *n.Layer) {
				return fmt.Errorf("config: %s node %d pins layer %d outside board.layer_list %v",
					tc.name, i, *n.Layer, c.Board.LayerList)
			}
		}
	}

	// Generator
	if err := c.Generator.NWdg.Validate(); err != nil {
		return fmt.Errorf("config: generator.n_wdg: %w", err)
	}
	if err := c.Generator.NInit.Validate(); err != nil {
		return fmt.Errorf("config: generator.n_init: %w", err)
	}
	if c.Generator.NWdg.Min < 2 {
		return fmt.Errorf("config: generator.n_wdg.min must be >= 2, got %d", c.Generator.NWdg.Min)
	}
	if c.Generator.NInit.Min < 2 {
		return fmt.Errorf("config: generator.n_init.min must be >= 2, got %d", c.Generator.NInit.Min)
	}
	for name, v := range map[string]int{
		"generator.n_iter_init":  c.Generator.NIterInit,
		"generator.n_iter_tree":  c.Generator.NIterTree,
		"generator.n_iter_fail":  c.Generator.NIterFail,
		"generator.n_iter_reset": c.Generator.NIterReset,
	} {
		if v < 1 {
			return fmt.Errorf("config: %s must be >= 1, got %d", name, v)
		}
	}
	if c.Generator.SegmentMin < 0 {
		return fmt.Errorf("config: generator.segment_min must be non-negative, got %v", c.Generator.SegmentMin)
	}
	if c.Generator.AngleMin < 0 || c.Generator.AngleMin > 180 {
		return fmt.Errorf("config: generator.angle_min %v is out of range [0, 180]", c.Generator.AngleMin)
	}

	// Rules
	if err := c.Rules.Clamp.Validate(); err != nil {
		return fmt.Errorf("config: rules.clamp: %w", err)
	}
	if math.IsInf(c.Rules.Clamp.Min, 0) || math.IsInf(c.Rules.Clamp.Max, 0) {
		return fmt.Errorf("config: rules.clamp must be finite, got [%v, %v]", c.Rules.Clamp.Min, c.Rules.Clamp.Max)
	}
	if c.Rules.Limits.Boundary <= 0 {
		return fmt.Errorf("config: rules.limits.boundary must be positive, got %v", c.Rules.Limits.Boundary)
	}
	for name, r := range map[string]common.Range{
		"rules.limits.clearance": c.Rules.Limits.Clearance,
		"rules.limits.distance":  c.Rules.Limits.Distance,
		"rules.limits.angle":     c.Rules.Limits.Angle,
		"rules.limits.width":     c.Rules.Limits.Width,
		"rules.limits.length":    c.Rules.Limits.Length,
		"rules.limits.radius":    c.Rules.Limits.Radius,
		"rules.limits.diff":      c.Rules.Limits.Diff,
	} {
		if err := r.Validate(); err != nil {
			return fmt.Errorf("config: %s: %w", name, err)
		}
	}
	if c.Rules.Distance.SizeMin < 2 {
		return fmt.Errorf("config: rules.distance.size_min must be >= 2, got %d", c.Rules.Distance.SizeMin)
	}
	if c.Rules.Distance.DisResample <= 0 {
		return fmt.Errorf("config: rules.distance.dis_resample must be positive, got %v", c.Rules.Distance.DisResample)
	}
	if c.Rules.Distance.TolAngle <= 0 || c.Rules.Distance.TolAngle > 180 {
		return fmt.Errorf("config: rules.distance.tol_angle %v is out of range (0, 180]", c.Rules.Distance.TolAngle)
	}
	if c.Rules.Average.SizeMin < 2 {
		return fmt.Errorf("config: rules.average.size_min must be >= 2, got %d", c.Rules.Average.SizeMin)
	}
	if c.Rules.Average.DisResample <= 0 || c.Rules.Average.DisAverage <= 0 {
		return fmt.Errorf("config: rules.average resample/average spacings must be positive")
	}
	switch c.Rules.Average.WindowConv {
	case "boxcar", "hann":
	default:
		return fmt.Errorf("config: rules.average.window_conv %q is invalid; expected boxcar|hann", c.Rules.Average.WindowConv)
	}

	// Objective
	for name, v := range map[string]float64{
		"objective.cond_max":     c.Objective.CondMax,
		"objective.validity_max": c.Objective.ValidityMax,
		"objective.score_max":    c.Objective.ScoreMax,
	} {
		if v <= 0 || math.IsInf(v, 0) || math.IsNaN(v) {
			return fmt.Errorf("config: %s must be positive and finite, got %v", name, v)
		}
	}
	for name, v := range map[string]float64{
		"objective.cond_scale":     c.Objective.CondScale,
		"objective.validity_scale": c.Objective.ValidityScale,
		"objective.score_scale":    c.Objective.ScoreScale,
	} {
		if v <= 0 {
			return fmt.Errorf("config: %s must be positive, got %v", name, v)
		}
	}

	// Dataset
	if c.Dataset.NParallel < 1 {
		return fmt.Errorf("config: dataset.n_parallel must be >= 1, got %d", c.Dataset.NParallel)
	}
	switch c.Dataset.Mode {
	case "single", "iter":
	default:
		return fmt.Errorf("config: dataset.mode %q is invalid; expected single|iter", c.Dataset.Mode)
	}
	if c.Dataset.BatchSize < 1 {
		return fmt.Errorf("config: dataset.batch_size must be >= 1, got %d", c.Dataset.BatchSize)
	}

	// Optimize
	if c.Optimize.PopSize < 4 {
		return fmt.Errorf("config: optimize.pop_size must be >= 4, got %d", c.Optimize.PopSize)
	}
	if err := c.Optimize.Weight.Validate(); err != nil {
		return fmt.Errorf("config: optimize.weight: %w", err)
	}
	if c.Optimize.CrossoverRate <= 0 || c.Optimize.CrossoverRate > 1 {
		return fmt.Errorf("config: optimize.crossover_rate %v is out of range (0, 1]", c.Optimize.CrossoverRate)
	}

	// Database
	if c.Database.Host == "" {
		return fmt.Errorf("config: database.host is required")
	}
	if c.Database.Port < 1 || c.Database.Port > 65535 {
		return fmt.Errorf("config: database.port %d is out of range [1, 65535]", c.Database.Port)
	}
	if c.Database.User == "" {
		return fmt.Errorf("config: database.user is required")
	}
	if c.Database.DBName == "" {
		return fmt.Errorf("config: database.db_name is required")
	}
	if c.Database.MaxConns < 1 {
		return fmt.Errorf("config: database.max_conns must be >= 1, got %d", c.Database.MaxConns)
	}

	// Redis
	if c.Redis.Addr == "" {
		return fmt.Errorf("config: redis.addr is required")
	}
	if c.Redis.DB < 0 {
		return fmt.Errorf("config: redis.db must be >= 0, got %d", c.Redis.DB)
	}

	// Log
	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("config: log.level %q is invalid; expected debug|info|warn|error", c.Log.Level)
	}
	switch c.Log.Format {
	case "json", "text":
	default:
		return fmt.Errorf("config: log.format %q is invalid; expected json|text", c.Log.Format)
	}

	return nil
}

func containsInt(s []int, v int) bool {
	for _, x := range s {
		if x == v {
			return true
		}
	}
	return false
}
