package config_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coilforge/coilforge/internal/config"
	"github.com/coilforge/coilforge/pkg/types/common"
)

// validConfig returns a Config that passes Validate() with all required
// fields set.
func validConfig() *config.Config {
	cfg := &config.Config{}
	config.ApplyDefaults(cfg)
	// Fill required fields that have no default.
	cfg.Board.Outline = [][]float64{
		{-0.5e-3, -0.5e-3},
		{+0.5e-3, -0.5e-3},
		{+0.5e-3, +0.5e-3},
		{-0.5e-3, +0.5e-3},
	}
	cfg.Encoding.X = common.Range{Min: -0.5e-3, Max: 0.5e-3}
	cfg.Encoding.Y = common.Range{Min: -0.5e-3, Max: 0.5e-3}
	cfg.Encoding.Width = common.Range{Min: 50e-6, Max: 250e-6}
	cfg.Database.User = "coilforge"
	cfg.Database.Password = "secret"
	return cfg
}

func TestConfig_Validate_ValidConfig(t *testing.T) {
	t.Parallel()
	assert.NoError(t, validConfig().Validate())
}

func TestConfig_Validate_OutlineTooSmall(t *testing.T) {
	t.Parallel()
	cfg := validConfig()
	cfg.Board.Outline = cfg.Board.Outline[:2]
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "board.outline")
}

func TestConfig_Validate_LayerListNotIncreasing(t *testing.T) {
	t.Parallel()
	cfg := validConfig()
	cfg.Board.LayerList = []int{0, 4, 4}
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "layer_list")
}

func TestConfig_Validate_InvertedNormRange(t *testing.T) {
	t.Parallel()
	cfg := validConfig()
	cfg.Encoding.NormMin = 1
	cfg.Encoding.NormMax = -1
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "norm range")
}

func TestConfig_Validate_InvertedBound(t *testing.T) {
	t.Parallel()
	cfg := validConfig()
	cfg.Encoding.X = common.Range{Min: 1e-3, Max: -1e-3}
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "encoding.x")
}

func TestConfig_Validate_TerminalCountMismatch(t *testing.T) {
	t.Parallel()
	cfg := validConfig()
	cfg.Encoding.NAddSrc = 2
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "src_geom")
}

func TestConfig_Validate_TerminalLayerOutsideList(t *testing.T) {
	t.Parallel()
	cfg := validConfig()
	layer := 7
	cfg.Encoding.NAddSrc = 1
	cfg.Encoding.SrcGeom.Nodes = []config.TerminalNodeConfig{{Layer: &layer}}
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "layer 7")
}

func TestConfig_Validate_RetryBudgets(t *testing.T) {
	t.Parallel()
	cfg := validConfig()
	cfg.Generator.NIterReset = 0
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "n_iter_reset")
}

func TestConfig_Validate_InvertedRuleLimit(t *testing.T) {
	t.Parallel()
	cfg := validConfig()
	cfg.Rules.Limits.Width = common.Range{Min: 500e-6, Max: 50e-6}
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rules.limits.width")
}

func TestConfig_Validate_InvalidWindow(t *testing.T) {
	t.Parallel()
	cfg := validConfig()
	cfg.Rules.Average.WindowConv = "gauss"
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "window_conv")
}

func TestConfig_Validate_NonPositiveCeiling(t *testing.T) {
	t.Parallel()
	cfg := validConfig()
	cfg.Objective.CondMax = -5
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cond_max")
}

func TestConfig_Validate_DatasetMode(t *testing.T) {
	t.Parallel()
	cfg := validConfig()
	cfg.Dataset.Mode = "batch"
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "dataset.mode")
}

func TestConfig_Validate_MissingDatabaseUser(t *testing.T) {
	t.Parallel()
	cfg := validConfig()
	cfg.Database.User = ""
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "database.user")
}

func TestConfig_Validate_InvalidLogLevel(t *testing.T) {
	t.Parallel()
	cfg := validConfig()
	cfg.Log.Level = "verbose"
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "log.level")
}
