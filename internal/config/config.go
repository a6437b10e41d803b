package config

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"knapsack/internal/logging"
	"knapsack/internal/storage"
)

// EnvPrefix namespaces environment overrides, e.g.
// KNAPSACK_OPTIMIZER_POPULATION_SIZE=20.
const EnvPrefix = "KNAPSACK"

type Config struct {
	Optimizer    Optimizer    `mapstructure:"optimizer" yaml:"optimizer"`
	ItemDefaults ItemDefaults `mapstructure:"item_defaults" yaml:"item_defaults"`
	Store        Store        `mapstructure:"store" yaml:"store"`
	Log          Log          `mapstructure:"log" yaml:"log"`
	Catalog      string       `mapstructure:"catalog" yaml:"catalog"`
	MetricsFile  string       `mapstructure:"metrics_file" yaml:"metrics_file"`
}

type Optimizer struct {
	WeightLimit         float64 `mapstructure:"weight_limit" yaml:"weight_limit"`
	FitnessLimit        float64 `mapstructure:"fitness_limit" yaml:"fitness_limit"`
	PopulationSize      int     `mapstructure:"population_size" yaml:"population_size"`
	GenerationLimit     int     `mapstructure:"generation_limit" yaml:"generation_limit"`
	MutationProbability float64 `mapstructure:"mutation_probability" yaml:"mutation_probability"`
	MutationRepeats     int     `mapstructure:"mutation_repeats" yaml:"mutation_repeats"`
	Selection           string  `mapstructure:"selection" yaml:"selection"`
	TournamentSize      int     `mapstructure:"tournament_size" yaml:"tournament_size"`
	Seed                int64   `mapstructure:"seed" yaml:"seed"`
	FitnessCacheSize    int     `mapstructure:"fitness_cache_size" yaml:"fitness_cache_size"`
}

// ItemDefaults are the value and weight offered for a new catalog item.
type ItemDefaults struct {
	Value  float64 `mapstructure:"value" yaml:"value"`
	Weight float64 `mapstructure:"weight" yaml:"weight"`
}

type Store struct {
	Kind string `mapstructure:"kind" yaml:"kind"`
	Path string `mapstructure:"path" yaml:"path"`
}

type Log struct {
	Level  string `mapstructure:"level" yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"`
	Output string `mapstructure:"output" yaml:"output"`
}

// Defaults is the parameter set a clear/reset restores.
func Defaults() Config {
	logDefaults := logging.DefaultConfig()
	return Config{
		Optimizer: Optimizer{
			WeightLimit:         50,
			FitnessLimit:        1000,
			PopulationSize:      10,
			GenerationLimit:     100,
			MutationProbability: 0.65,
			MutationRepeats:     1,
			Selection:           "roulette",
			TournamentSize:      3,
			FitnessCacheSize:    4096,
		},
		ItemDefaults: ItemDefaults{Value: 25, Weight: 5},
		Store: Store{
			Kind: storage.DefaultStoreKind,
			Path: storage.DefaultSQLitePath,
		},
		Log: Log{
			Level:  logDefaults.Level,
			Format: logDefaults.Format,
			Output: logDefaults.Output,
		},
	}
}

func (c Config) Validate() error {
	var errs []error
	if err := c.Optimizer.Validate(); err != nil {
		errs = append(errs, err)
	}
	if c.ItemDefaults.Value < 0 || c.ItemDefaults.Weight < 0 {
		errs = append(errs, fmt.Errorf("item defaults must be >= 0"))
	}
	switch c.Store.Kind {
	case "memory", "sqlite":
	default:
		errs = append(errs, fmt.Errorf("unsupported store kind %q (want one of %s)", c.Store.Kind, strings.Join(storage.SupportedKinds(), ", ")))
	}
	if _, err := logging.ParseLevel(c.Log.Level); err != nil {
		errs = append(errs, err)
	}
	switch c.Log.Format {
	case "console", "json":
	default:
		errs = append(errs, fmt.Errorf("unsupported log format %q", c.Log.Format))
	}
	return errors.Join(errs...)
}

func (o Optimizer) Validate() error {
	var errs []error
	if o.WeightLimit < 0 {
		errs = append(errs, fmt.Errorf("weight_limit must be >= 0, got %v", o.WeightLimit))
	}
	if o.PopulationSize < 2 {
		errs = append(errs, fmt.Errorf("population_size must be >= 2, got %d", o.PopulationSize))
	} else if o.PopulationSize%2 != 0 {
		errs = append(errs, fmt.Errorf("population_size must be even, got %d", o.PopulationSize))
	}
	if o.GenerationLimit < 1 {
		errs = append(errs, fmt.Errorf("generation_limit must be >= 1, got %d", o.GenerationLimit))
	}
	if o.MutationProbability < 0 || o.MutationProbability > 1 {
		errs = append(errs, fmt.Errorf("mutation_probability must be in [0,1], got %v", o.MutationProbability))
	}
	if o.MutationRepeats < 1 {
		errs = append(errs, fmt.Errorf("mutation_repeats must be >= 1, got %d", o.MutationRepeats))
	}
	switch o.Selection {
	case "roulette", "tournament":
	default:
		errs = append(errs, fmt.Errorf("unsupported selection %q", o.Selection))
	}
	if o.TournamentSize < 0 {
		errs = append(errs, fmt.Errorf("tournament_size must be >= 0, got %d", o.TournamentSize))
	}
	if o.FitnessCacheSize < 0 {
		errs = append(errs, fmt.Errorf("fitness_cache_size must be >= 0, got %d", o.FitnessCacheSize))
	}
	return errors.Join(errs...)
}

// flagKeys maps command-line flags to viper keys.
var flagKeys = map[string]string{
	"weight-limit":         "optimizer.weight_limit",
	"fitness-limit":        "optimizer.fitness_limit",
	"population":           "optimizer.population_size",
	"generations":          "optimizer.generation_limit",
	"mutation-probability": "optimizer.mutation_probability",
	"mutation-repeats":     "optimizer.mutation_repeats",
	"selection":            "optimizer.selection",
	"tournament-size":      "optimizer.tournament_size",
	"seed":                 "optimizer.seed",
	"fitness-cache-size":   "optimizer.fitness_cache_size",
	"item-value":           "item_defaults.value",
	"item-weight":          "item_defaults.weight",
	"store":                "store.kind",
	"db-path":              "store.path",
	"log-level":            "log.level",
	"log-format":           "log.format",
	"log-output":           "log.output",
	"catalog":              "catalog",
	"metrics-file":         "metrics_file",
}

// BindFlags registers every configuration flag on fs plus --config.
func BindFlags(fs *pflag.FlagSet) {
	d := Defaults()
	fs.String("config", "", "config file (yaml, toml or json)")
	fs.Float64("weight-limit", d.Optimizer.WeightLimit, "knapsack weight budget")
	fs.Float64("fitness-limit", d.Optimizer.FitnessLimit, "stop once best fitness exceeds this value")
	fs.Int("population", d.Optimizer.PopulationSize, "population size (even, >= 2)")
	fs.Int("generations", d.Optimizer.GenerationLimit, "generation limit")
	fs.Float64("mutation-probability", d.Optimizer.MutationProbability, "bit flip probability per mutation draw")
	fs.Int("mutation-repeats", d.Optimizer.MutationRepeats, "mutation draws per offspring")
	fs.String("selection", d.Optimizer.Selection, "parent selection: roulette|tournament")
	fs.Int("tournament-size", d.Optimizer.TournamentSize, "tournament sample size")
	fs.Int64("seed", d.Optimizer.Seed, "random seed")
	fs.Int("fitness-cache-size", d.Optimizer.FitnessCacheSize, "memoized fitness entries (0 disables)")
	fs.Float64("item-value", d.ItemDefaults.Value, "default value for new catalog items")
	fs.Float64("item-weight", d.ItemDefaults.Weight, "default weight for new catalog items")
	fs.String("store", d.Store.Kind, "store backend: memory|sqlite")
	fs.String("db-path", d.Store.Path, "sqlite database path")
	fs.String("log-level", d.Log.Level, "log level: debug|info|warn|error")
	fs.String("log-format", d.Log.Format, "log format: console|json")
	fs.String("log-output", d.Log.Output, "log output: stdout|stderr|<path>")
	fs.String("catalog", d.Catalog, "item catalog file (.yaml, .yml, .json, .csv)")
	fs.String("metrics-file", d.MetricsFile, "write Prometheus metrics to this textfile after the run")
}

// Load resolves configuration with precedence flags > environment > config
// file > defaults, then validates it. fs may be nil.
func Load(fs *pflag.FlagSet) (Config, error) {
	v := viper.New()
	setDefaults(v, Defaults())

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	if fs != nil {
		if f := fs.Lookup("config"); f != nil && f.Value.String() != "" {
			v.SetConfigFile(f.Value.String())
			if err := v.ReadInConfig(); err != nil {
				return Config{}, fmt.Errorf("read config %s: %w", f.Value.String(), err)
			}
		}
		for name, key := range flagKeys {
			f := fs.Lookup(name)
			if f == nil {
				continue
			}
			if err := v.BindPFlag(key, f); err != nil {
				return Config{}, fmt.Errorf("bind flag %s: %w", name, err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper, d Config) {
	v.SetDefault("optimizer.weight_limit", d.Optimizer.WeightLimit)
	v.SetDefault("optimizer.fitness_limit", d.Optimizer.FitnessLimit)
	v.SetDefault("optimizer.population_size", d.Optimizer.PopulationSize)
	v.SetDefault("optimizer.generation_limit", d.Optimizer.GenerationLimit)
	v.SetDefault("optimizer.mutation_probability", d.Optimizer.MutationProbability)
	v.SetDefault("optimizer.mutation_repeats", d.Optimizer.MutationRepeats)
	v.SetDefault("optimizer.selection", d.Optimizer.Selection)
	v.SetDefault("optimizer.tournament_size", d.Optimizer.TournamentSize)
	v.SetDefault("optimizer.seed", d.Optimizer.Seed)
	v.SetDefault("optimizer.fitness_cache_size", d.Optimizer.FitnessCacheSize)
	v.SetDefault("item_defaults.value", d.ItemDefaults.Value)
	v.SetDefault("item_defaults.weight", d.ItemDefaults.Weight)
	v.SetDefault("store.kind", d.Store.Kind)
	v.SetDefault("store.path", d.Store.Path)
	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.format", d.Log.Format)
	v.SetDefault("log.output", d.Log.Output)
	v.SetDefault("catalog", d.Catalog)
	v.SetDefault("metrics_file", d.MetricsFile)
}

func (c Config) LoggingConfig() logging.Config {
	return logging.Config{Level: c.Log.Level, Format: c.Log.Format, Output: c.Log.Output}
}

// WriteYAML renders cfg in the config file format Load accepts.
func WriteYAML(w io.Writer, cfg Config) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(cfg); err != nil {
		return err
	}
	return enc.Close()
}
