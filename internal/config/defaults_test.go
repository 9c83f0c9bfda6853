package config

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestApplyDefaults_FillsZeroValues(t *testing.T) {
	t.Parallel()

	cfg := &Config{}
	ApplyDefaults(cfg)

	assert.Equal(t, DefaultNWdg, cfg.Encoding.NWdg)
	assert.Equal(t, DefaultNormMin, cfg.Encoding.NormMin)
	assert.Equal(t, DefaultNormMax, cfg.Encoding.NormMax)
	assert.Equal(t, []int{0, 4}, cfg.Board.LayerList)
	assert.Equal(t, DefaultNIterReset, cfg.Generator.NIterReset)
	assert.Equal(t, cfg.Encoding.NWdg, cfg.Generator.NWdg.Min)
	assert.Equal(t, DefaultClampMin, cfg.Rules.Clamp.Min)
	assert.Equal(t, "boxcar", cfg.Rules.Average.WindowConv)
	assert.Equal(t, DefaultCondMax, cfg.Objective.CondMax)
	assert.True(t, math.IsInf(cfg.Dataset.CondGen, 1))
	assert.True(t, math.IsInf(cfg.Dataset.ObjKeep, 1))
	assert.Equal(t, DefaultDatasetMode, cfg.Dataset.Mode)
	assert.Equal(t, DefaultPopSize, cfg.Optimize.PopSize)
	assert.Equal(t, DefaultDBHost, cfg.Database.Host)
	assert.Equal(t, "disable", cfg.Database.SSLMode)
	assert.Equal(t, DefaultRedisAddr, cfg.Redis.Addr)
	assert.Equal(t, DefaultMinIOBucket, cfg.MinIO.Bucket)
	assert.Equal(t, DefaultLogLevel, cfg.Log.Level)
	assert.Equal(t, "stdout", cfg.Log.Output)
}

func TestApplyDefaults_PreservesExplicitValues(t *testing.T) {
	t.Parallel()

	cfg := &Config{}
	cfg.Encoding.NWdg = 8
	cfg.Dataset.Mode = "single"
	cfg.Database.Host = "db.internal"
	ApplyDefaults(cfg)

	assert.Equal(t, 8, cfg.Encoding.NWdg)
	assert.Equal(t, 8, cfg.Generator.NWdg.Max)
	assert.Equal(t, "single", cfg.Dataset.Mode)
	assert.Equal(t, "db.internal", cfg.Database.Host)
}

func TestApplyDefaults_DisabledFiltersStayDisabled(t *testing.T) {
	t.Parallel()

	cfg := &Config{}
	cfg.Dataset.CondGen = -1
	cfg.Dataset.ObjKeep = -1
	ApplyDefaults(cfg)

	assert.True(t, math.IsInf(cfg.Dataset.CondGen, 1))
	assert.True(t, math.IsInf(cfg.Dataset.ObjKeep, 1))

	cfg = &Config{}
	cfg.Dataset.CondGen = 5
	cfg.Dataset.ObjKeep = 200
	ApplyDefaults(cfg)

	assert.Equal(t, 5.0, cfg.Dataset.CondGen)
	assert.Equal(t, 200.0, cfg.Dataset.ObjKeep)
}

func TestApplyDefaults_NilConfig(t *testing.T) {
	t.Parallel()
	assert.NotPanics(t, func() { ApplyDefaults(nil) })
}
