package config

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func newFlagSet(t *testing.T, args ...string) *pflag.FlagSet {
	t.Helper()
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	BindFlags(fs)
	require.NoError(t, fs.Parse(args))
	return fs
}

func TestDefaultsMatchResetValues(t *testing.T) {
	d := Defaults()
	require.NoError(t, d.Validate())
	assert.Equal(t, 25.0, d.ItemDefaults.Value)
	assert.Equal(t, 5.0, d.ItemDefaults.Weight)
	assert.Equal(t, 0.65, d.Optimizer.MutationProbability)
	assert.Equal(t, 1000.0, d.Optimizer.FitnessLimit)
	assert.Equal(t, 10, d.Optimizer.PopulationSize)
	assert.Equal(t, 100, d.Optimizer.GenerationLimit)
}

func TestLoadWithoutSourcesReturnsDefaults(t *testing.T) {
	cfg, err := Load(nil)
	require.NoError(t, err)
	assert.Equal(t, Defaults(), cfg)
}

func TestValidateRejectsOddPopulation(t *testing.T) {
	cfg := Defaults()
	cfg.Optimizer.PopulationSize = 7
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "even")
}

func TestValidateCollectsAllViolations(t *testing.T) {
	cfg := Defaults()
	cfg.Optimizer.PopulationSize = 1
	cfg.Optimizer.GenerationLimit = 0
	cfg.Optimizer.MutationProbability = 1.5
	cfg.Optimizer.WeightLimit = -1
	cfg.Optimizer.Selection = "rank"
	cfg.Store.Kind = "redis"

	err := cfg.Validate()
	require.Error(t, err)
	for _, fragment := range []string{"population_size", "generation_limit", "mutation_probability", "weight_limit", "selection", "store kind"} {
		assert.Contains(t, err.Error(), fragment)
	}
}

func TestLoadConfigFileEnvAndFlagPrecedence(t *testing.T) {
	path := filepath.Join(t.TempDir(), "knapsack.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
optimizer:
  population_size: 12
  generation_limit: 40
  weight_limit: 15
log:
  level: debug
`), 0o644))

	t.Setenv("KNAPSACK_OPTIMIZER_GENERATION_LIMIT", "60")
	t.Setenv("KNAPSACK_OPTIMIZER_WEIGHT_LIMIT", "20")

	fs := newFlagSet(t, "--config", path, "--weight-limit", "30")
	cfg, err := Load(fs)
	require.NoError(t, err)

	assert.Equal(t, 12, cfg.Optimizer.PopulationSize, "config file beats defaults")
	assert.Equal(t, 60, cfg.Optimizer.GenerationLimit, "env beats config file")
	assert.Equal(t, 30.0, cfg.Optimizer.WeightLimit, "flag beats env")
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, 0.65, cfg.Optimizer.MutationProbability)
}

func TestLoadRejectsInvalidFlags(t *testing.T) {
	fs := newFlagSet(t, "--population", "5")
	_, err := Load(fs)
	assert.Error(t, err)
}

func TestLoadMissingConfigFile(t *testing.T) {
	fs := newFlagSet(t, "--config", filepath.Join(t.TempDir(), "missing.yaml"))
	_, err := Load(fs)
	assert.Error(t, err)
}

func TestWriteYAMLRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteYAML(&buf, Defaults()))

	var decoded Config
	require.NoError(t, yaml.Unmarshal(buf.Bytes(), &decoded))
	assert.Equal(t, Defaults(), decoded)

	path := filepath.Join(t.TempDir(), "defaults.yaml")
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o644))
	cfg, err := Load(newFlagSet(t, "--config", path))
	require.NoError(t, err)
	assert.Equal(t, Defaults(), cfg)
}
