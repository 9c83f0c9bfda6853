// Package config provides configuration loading, defaults, and validation
// for the coilforge optimizer.
package config

import (
	"math"
	"time"

	"github.com/coilforge/coilforge/pkg/types/common"
)

// ─────────────────────────────────────────────────────────────────────────────
// Default value constants
// ─────────────────────────────────────────────────────────────────────────────

const (
	DefaultNWdg    = 16
	DefaultNormMin = -1.0
	DefaultNormMax = +1.0

	DefaultNIterInit  = 100
	DefaultNIterTree  = 1000
	DefaultNIterFail  = 25
	DefaultNIterReset = 50
	DefaultSegmentMin = 50e-6
	DefaultAngleMin   = 75.0

	DefaultClampMin = -10.0
	DefaultClampMax = +10.0

	DefaultCondScale     = 1.0
	DefaultCondMax       = 100.0
	DefaultValidityScale = 1.0
	DefaultValidityMax   = 100.0
	DefaultScoreScale    = 1.0
	DefaultScoreMax      = 100.0

	DefaultDatasetParallel  = 8
	DefaultDatasetMode      = "iter"
	DefaultDatasetBatchSize = 100
	DefaultDelayCollect     = 2 * time.Second

	DefaultPopSize       = 64
	DefaultNGen          = 100
	DefaultCrossoverRate = 0.9

	DefaultDBHost     = "localhost"
	DefaultDBPort     = 5432
	DefaultDBName     = "coilforge"
	DefaultDBMaxConns = 25

	DefaultRedisAddr = "localhost:6379"
	DefaultRedisTTL  = 24 * time.Hour
	DefaultKeyPrefix = "coilforge"

	DefaultMinIOEndpoint = "localhost:9000"
	DefaultMinIOBucket   = "coilforge-exports"

	DefaultExportDir = "export"

	DefaultLogLevel  = "info"
	DefaultLogFormat = "json"
)

// ApplyDefaults fills every zero-value field in cfg with the platform
// default.  Fields that have already been set by the caller are left
// unchanged so that explicit configuration always wins.
func ApplyDefaults(cfg *Config) {
	if cfg == nil {
		return
	}

	// ── Board ────────────────────────────────────────────────────────────────
	if len(cfg.Board.LayerList) == 0 {
		cfg.Board.LayerList = []int{0, 4}
	}

	// ── Encoding ─────────────────────────────────────────────────────────────
	if cfg.Encoding.NWdg == 0 {
		cfg.Encoding.NWdg = DefaultNWdg
	}
	if cfg.Encoding.NormMin == 0 && cfg.Encoding.NormMax == 0 {
		cfg.Encoding.NormMin = DefaultNormMin
		cfg.Encoding.NormMax = DefaultNormMax
	}

	// ── Generator ────────────────────────────────────────────────────────────
	if cfg.Generator.NWdg.Min == 0 && cfg.Generator.NWdg.Max == 0 {
		cfg.Generator.NWdg.Min = cfg.Encoding.NWdg
		cfg.Generator.NWdg.Max = cfg.Encoding.NWdg
	}
	if cfg.Generator.NInit.Min == 0 && cfg.Generator.NInit.Max == 0 {
		cfg.Generator.NInit.Min = 3
		cfg.Generator.NInit.Max = 5
	}
	if cfg.Generator.NIterInit == 0 {
		cfg.Generator.NIterInit = DefaultNIterInit
	}
	if cfg.Generator.NIterTree == 0 {
		cfg.Generator.NIterTree = DefaultNIterTree
	}
	if cfg.Generator.NIterFail == 0 {
		cfg.Generator.NIterFail = DefaultNIterFail
	}
	if cfg.Generator.NIterReset == 0 {
		cfg.Generator.NIterReset = DefaultNIterReset
	}
	if cfg.Generator.SegmentMin == 0 {
		cfg.Generator.SegmentMin = DefaultSegmentMin
	}
	if cfg.Generator.AngleMin == 0 {
		cfg.Generator.AngleMin = DefaultAngleMin
	}

	// ── Rules ────────────────────────────────────────────────────────────────
	if cfg.Rules.Clamp.Min == 0 && cfg.Rules.Clamp.Max == 0 {
		cfg.Rules.Clamp.Min = DefaultClampMin
		cfg.Rules.Clamp.Max = DefaultClampMax
	}
	if cfg.Rules.Limits.Boundary == 0 {
		cfg.Rules.Limits.Boundary = 100e-6
	}
	applyRangeDefault(&cfg.Rules.Limits.Clearance, 100e-6, math.Inf(1))
	applyRangeDefault(&cfg.Rules.Limits.Distance, 100e-6, math.Inf(1))
	applyRangeDefault(&cfg.Rules.Limits.Angle, DefaultAngleMin, 360.0)
	applyRangeDefault(&cfg.Rules.Limits.Width, 50e-6, 500e-6)
	applyRangeDefault(&cfg.Rules.Limits.Length, 50e-6, math.Inf(1))
	applyRangeDefault(&cfg.Rules.Limits.Radius, math.Inf(-1), 50.0)
	applyRangeDefault(&cfg.Rules.Limits.Diff, math.Inf(-1), 2.0)
	if cfg.Rules.Distance.SizeMin == 0 {
		cfg.Rules.Distance.SizeMin = 10
	}
	if cfg.Rules.Distance.DisResample == 0 {
		cfg.Rules.Distance.DisResample = 20e-6
	}
	if cfg.Rules.Distance.TolAngle == 0 {
		cfg.Rules.Distance.TolAngle = 120.0
	}
	if cfg.Rules.Average.SizeMin == 0 {
		cfg.Rules.Average.SizeMin = 10
	}
	if cfg.Rules.Average.WindowConv == "" {
		cfg.Rules.Average.WindowConv = "boxcar"
	}
	if cfg.Rules.Average.LengthMin == 0 {
		cfg.Rules.Average.LengthMin = 200e-6
	}
	if cfg.Rules.Average.DisResample == 0 {
		cfg.Rules.Average.DisResample = 20e-6
	}
	if cfg.Rules.Average.DisAverage == 0 {
		cfg.Rules.Average.DisAverage = 100e-6
	}

	// ── Objective ────────────────────────────────────────────────────────────
	if cfg.Objective.CondScale == 0 {
		cfg.Objective.CondScale = DefaultCondScale
	}
	if cfg.Objective.CondMax == 0 {
		cfg.Objective.CondMax = DefaultCondMax
	}
	if cfg.Objective.ValidityScale == 0 {
		cfg.Objective.ValidityScale = DefaultValidityScale
	}
	if cfg.Objective.ValidityMax == 0 {
		cfg.Objective.ValidityMax = DefaultValidityMax
	}
	if cfg.Objective.ScoreScale == 0 {
		cfg.Objective.ScoreScale = DefaultScoreScale
	}
	if cfg.Objective.ScoreMax == 0 {
		cfg.Objective.ScoreMax = DefaultScoreMax
	}

	// ── Dataset ──────────────────────────────────────────────────────────────
	if cfg.Dataset.NParallel == 0 {
		cfg.Dataset.NParallel = DefaultDatasetParallel
	}
	if cfg.Dataset.Mode == "" {
		cfg.Dataset.Mode = DefaultDatasetMode
	}
	if cfg.Dataset.BatchSize == 0 {
		cfg.Dataset.BatchSize = DefaultDatasetBatchSize
	}
	if cfg.Dataset.DelayCollect == 0 {
		cfg.Dataset.DelayCollect = DefaultDelayCollect
	}
	// Zero or negative thresholds disable the dataset filters entirely.
	if cfg.Dataset.CondGen <= 0 {
		cfg.Dataset.CondGen = math.Inf(1)
	}
	if cfg.Dataset.ObjKeep <= 0 {
		cfg.Dataset.ObjKeep = math.Inf(1)
	}

	// ── Optimize ─────────────────────────────────────────────────────────────
	if cfg.Optimize.PopSize == 0 {
		cfg.Optimize.PopSize = DefaultPopSize
	}
	if cfg.Optimize.NGen == 0 {
		cfg.Optimize.NGen = DefaultNGen
	}
	if cfg.Optimize.Weight.Min == 0 && cfg.Optimize.Weight.Max == 0 {
		cfg.Optimize.Weight.Min = 0.5
		cfg.Optimize.Weight.Max = 1.0
	}
	if cfg.Optimize.CrossoverRate == 0 {
		cfg.Optimize.CrossoverRate = DefaultCrossoverRate
	}
	if cfg.Optimize.NParallel == 0 {
		cfg.Optimize.NParallel = DefaultDatasetParallel
	}

	// ── Database ─────────────────────────────────────────────────────────────
	if cfg.Database.Host == "" {
		cfg.Database.Host = DefaultDBHost
	}
	if cfg.Database.Port == 0 {
		cfg.Database.Port = DefaultDBPort
	}
	if cfg.Database.DBName == "" {
		cfg.Database.DBName = DefaultDBName
	}
	if cfg.Database.MaxConns == 0 {
		cfg.Database.MaxConns = DefaultDBMaxConns
	}
	if cfg.Database.SSLMode == "" {
		cfg.Database.SSLMode = "disable"
	}

	// ── Redis ────────────────────────────────────────────────────────────────
	if cfg.Redis.Addr == "" {
		cfg.Redis.Addr = DefaultRedisAddr
	}
	if cfg.Redis.DefaultTTL == 0 {
		cfg.Redis.DefaultTTL = DefaultRedisTTL
	}
	if cfg.Redis.KeyPrefix == "" {
		cfg.Redis.KeyPrefix = DefaultKeyPrefix
	}

	// ── MinIO ────────────────────────────────────────────────────────────────
	if cfg.MinIO.Endpoint == "" {
		cfg.MinIO.Endpoint = DefaultMinIOEndpoint
	}
	if cfg.MinIO.Bucket == "" {
		cfg.MinIO.Bucket = DefaultMinIOBucket
	}

	// ── Export ───────────────────────────────────────────────────────────────
	if cfg.Export.Dir == "" {
		cfg.Export.Dir = DefaultExportDir
	}

	// ── Log ──────────────────────────────────────────────────────────────────
	if cfg.Log.Level == "" {
		cfg.Log.Level = DefaultLogLevel
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = DefaultLogFormat
	}
	if cfg.Log.Output == "" {
		cfg.Log.Output = "stdout"
	}
}

func applyRangeDefault(r *common.Range, min, max float64) {
	if r.Min == 0 && r.Max == 0 {
		r.Min = min
		r.Max = max
	}
}
