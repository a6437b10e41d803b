package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"knapsack/internal/catalog"
	"knapsack/internal/config"
	"knapsack/internal/logging"
	"knapsack/internal/model"
	"knapsack/internal/stats"
	"knapsack/pkg/knapsack"
)

func main() {
	if err := run(context.Background(), os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return usageError("missing command")
	}

	switch args[0] {
	case "init":
		return runInit(ctx, args[1:])
	case "reset":
		return runReset(ctx, args[1:])
	case "solve":
		return runSolve(ctx, args[1:])
	case "runs":
		return runRuns(ctx, args[1:])
	case "show":
		return runShow(ctx, args[1:])
	case "export":
		return runExport(ctx, args[1:])
	case "defaults":
		return runDefaults(ctx, args[1:])
	default:
		return usageError(fmt.Sprintf("unknown command: %s", args[0]))
	}
}

func newFlagSet(name string) *pflag.FlagSet {
	fs := pflag.NewFlagSet(name, pflag.ContinueOnError)
	config.BindFlags(fs)
	return fs
}

// openClient builds a client and its logger from cfg. The caller owns both.
func openClient(cfg config.Config) (*knapsack.Client, *zap.Logger, error) {
	logger, err := logging.New(cfg.LoggingConfig())
	if err != nil {
		return nil, nil, err
	}
	client, err := knapsack.New(knapsack.Options{
		StoreKind:     cfg.Store.Kind,
		DBPath:        cfg.Store.Path,
		Logger:        logger,
		EnableMetrics: cfg.MetricsFile != "",
	})
	if err != nil {
		_ = logger.Sync()
		return nil, nil, err
	}
	return client, logger, nil
}

func closeClient(client *knapsack.Client, logger *zap.Logger) {
	_ = client.Close()
	_ = logger.Sync()
}

func runInit(ctx context.Context, args []string) error {
	fs := newFlagSet("init")
	if err := fs.Parse(args); err != nil {
		return err
	}
	cfg, err := config.Load(fs)
	if err != nil {
		return err
	}
	client, logger, err := openClient(cfg)
	if err != nil {
		return err
	}
	defer closeClient(client, logger)

	if err := client.Init(ctx); err != nil {
		return err
	}
	fmt.Printf("initialized store=%s\n", cfg.Store.Kind)
	return nil
}

func runReset(ctx context.Context, args []string) error {
	fs := newFlagSet("reset")
	if err := fs.Parse(args); err != nil {
		return err
	}
	cfg, err := config.Load(fs)
	if err != nil {
		return err
	}
	client, logger, err := openClient(cfg)
	if err != nil {
		return err
	}
	defer closeClient(client, logger)

	if err := client.Reset(ctx); err != nil {
		return err
	}
	fmt.Printf("reset store=%s\n", cfg.Store.Kind)
	return nil
}

func runSolve(ctx context.Context, args []string) error {
	fs := newFlagSet("solve")
	itemSpecs := fs.StringArray("item", nil, "item as name:value:weight (repeatable, appended after --catalog items)")
	timeout := fs.Duration("timeout", 0, "abort the run after this long; 0 disables")
	runID := fs.String("run-id", "", "explicit run id (default: random uuid)")
	jsonOut := fs.Bool("json", false, "emit run summary as JSON")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := config.Load(fs)
	if err != nil {
		return err
	}
	items, err := loadItems(cfg.Catalog, *itemSpecs)
	if err != nil {
		return err
	}
	if len(items) == 0 {
		return usageError("solve requires --catalog or at least one --item")
	}

	client, logger, err := openClient(cfg)
	if err != nil {
		return err
	}
	defer closeClient(client, logger)

	if *timeout < 0 {
		return errors.New("timeout must be >= 0")
	}
	if *timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, *timeout)
		defer cancel()
	}

	o := cfg.Optimizer
	cacheSize := o.FitnessCacheSize
	if cacheSize == 0 {
		cacheSize = -1
	}
	summary, runErr := client.Solve(ctx, knapsack.SolveRequest{
		RunID:               *runID,
		Items:               items,
		WeightLimit:         o.WeightLimit,
		FitnessLimit:        o.FitnessLimit,
		PopulationSize:      o.PopulationSize,
		GenerationLimit:     o.GenerationLimit,
		MutationProbability: o.MutationProbability,
		MutationRepeats:     o.MutationRepeats,
		Selection:           o.Selection,
		TournamentSize:      o.TournamentSize,
		Seed:                o.Seed,
		FitnessCacheSize:    cacheSize,
	})
	if summary.RunID == "" {
		return runErr
	}
	if err := client.WriteMetrics(cfg.MetricsFile); err != nil {
		return err
	}

	if *jsonOut {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(toSolveOutput(summary)); err != nil {
			return err
		}
		return runErr
	}

	fmt.Printf("run_id=%s stop_reason=%s generation=%d best_fitness=%.6f best_weight=%.6f best=%s duration=%s\n",
		summary.RunID,
		summary.StopReason,
		summary.Generation,
		summary.BestFitness,
		summary.BestWeight,
		summary.Best,
		summary.Duration,
	)
	if len(summary.SelectedNames) == 0 {
		fmt.Println("selected: none")
	}
	for _, name := range summary.SelectedNames {
		fmt.Printf("selected: %s\n", name)
	}
	return runErr
}

type solveOutput struct {
	RunID            string    `json:"run_id"`
	SelectedNames    []string  `json:"selected_names"`
	Best             string    `json:"best"`
	BestFitness      float64   `json:"best_fitness"`
	BestWeight       float64   `json:"best_weight"`
	Generation       int       `json:"generation"`
	StopReason       string    `json:"stop_reason"`
	BestByGeneration []float64 `json:"best_by_generation"`
	DurationMS       int64     `json:"duration_ms"`
}

func toSolveOutput(s knapsack.SolveSummary) solveOutput {
	return solveOutput{
		RunID:            s.RunID,
		SelectedNames:    s.SelectedNames,
		Best:             s.Best,
		BestFitness:      s.BestFitness,
		BestWeight:       s.BestWeight,
		Generation:       s.Generation,
		StopReason:       s.StopReason,
		BestByGeneration: s.BestByGeneration,
		DurationMS:       s.Duration.Milliseconds(),
	}
}

func runRuns(ctx context.Context, args []string) error {
	fs := newFlagSet("runs")
	limit := fs.Int("limit", 20, "max runs to list")
	jsonOut := fs.Bool("json", false, "emit runs list as JSON")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *limit <= 0 {
		return errors.New("limit must be > 0")
	}

	cfg, err := config.Load(fs)
	if err != nil {
		return err
	}
	client, logger, err := openClient(cfg)
	if err != nil {
		return err
	}
	defer closeClient(client, logger)

	runs, err := client.Runs(ctx, knapsack.RunsRequest{Limit: *limit})
	if err != nil {
		return err
	}
	if *jsonOut {
		type runsItem struct {
			RunID         string   `json:"run_id"`
			CreatedAtUTC  string   `json:"created_at_utc"`
			Items         int      `json:"items"`
			BestFitness   float64  `json:"best_fitness"`
			Generation    int      `json:"generation"`
			StopReason    string   `json:"stop_reason"`
			SelectedNames []string `json:"selected_names"`
		}
		items := make([]runsItem, 0, len(runs))
		for _, r := range runs {
			items = append(items, runsItem(r))
		}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(items)
	}
	if len(runs) == 0 {
		fmt.Println("no runs found")
		return nil
	}

	for _, r := range runs {
		fmt.Printf("run_id=%s created=%s items=%d best_fitness=%s generation=%d stop_reason=%s selected=%s\n",
			r.RunID,
			relativeTime(r.CreatedAtUTC),
			r.Items,
			humanize.Commaf(r.BestFitness),
			r.Generation,
			r.StopReason,
			strings.Join(r.SelectedNames, ","),
		)
	}
	return nil
}

func runShow(ctx context.Context, args []string) error {
	fs := newFlagSet("show")
	runID := fs.String("run-id", "", "run id to show")
	latest := fs.Bool("latest", false, "show the most recent run")
	jsonOut := fs.Bool("json", false, "emit run as JSON")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := config.Load(fs)
	if err != nil {
		return err
	}
	client, logger, err := openClient(cfg)
	if err != nil {
		return err
	}
	defer closeClient(client, logger)

	detail, err := client.Run(ctx, knapsack.RunRequest{RunID: *runID, Latest: *latest})
	if err != nil {
		return err
	}
	if *jsonOut {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(struct {
			Run              model.RunRecord               `json:"run"`
			BestByGeneration []float64                     `json:"best_by_generation"`
			Diagnostics      []model.GenerationDiagnostics `json:"diagnostics"`
		}{detail.Record, detail.BestByGeneration, detail.Diagnostics})
	}

	r := detail.Record
	p := r.Parameters
	fmt.Printf("run_id=%s created=%s (%s)\n", r.ID, r.CreatedAtUTC, relativeTime(r.CreatedAtUTC))
	fmt.Printf("parameters weight_limit=%g fitness_limit=%g population=%d generations=%d mutation_probability=%g mutation_repeats=%d selection=%s seed=%d\n",
		p.WeightLimit, p.FitnessLimit, p.PopulationSize, p.GenerationLimit, p.MutationProbability, p.MutationRepeats, p.Selection, p.Seed)
	fmt.Printf("result stop_reason=%s generation=%d best=%s best_fitness=%g best_weight=%g duration_ms=%d\n",
		r.StopReason, r.Generation, r.Best, r.BestFitness, r.BestWeight, r.DurationMS)
	for i, item := range r.Items {
		mark := " "
		if i < len(r.Best) && r.Best[i] == 1 {
			mark = "x"
		}
		fmt.Printf("[%s] %s value=%g weight=%g\n", mark, item.Name, item.Value, item.Weight)
	}
	for _, d := range detail.Diagnostics {
		fmt.Printf("generation=%d size=%d best=%.6f mean=%.6f min=%.6f std=%.6f\n", d.Generation, d.Size, d.Best, d.Mean, d.Min, d.StdDev)
	}
	return nil
}

func runExport(ctx context.Context, args []string) error {
	fs := newFlagSet("export")
	runID := fs.String("run-id", "", "run id to export")
	latest := fs.Bool("latest", false, "export the most recent run")
	outDir := fs.String("out", "exports", "directory receiving one subdirectory per run")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *outDir == "" {
		return errors.New("--out is required")
	}

	cfg, err := config.Load(fs)
	if err != nil {
		return err
	}
	client, logger, err := openClient(cfg)
	if err != nil {
		return err
	}
	defer closeClient(client, logger)

	detail, err := client.Run(ctx, knapsack.RunRequest{RunID: *runID, Latest: *latest})
	if err != nil {
		return err
	}
	runDir, err := stats.WriteRunArtifacts(*outDir, stats.RunArtifacts{
		Run:              detail.Record,
		BestByGeneration: detail.BestByGeneration,
		Diagnostics:      detail.Diagnostics,
	})
	if err != nil {
		return err
	}
	fmt.Printf("exported run_id=%s dir=%s\n", detail.Record.ID, runDir)
	return nil
}

func runDefaults(_ context.Context, args []string) error {
	fs := newFlagSet("defaults")
	template := fs.String("catalog-template", "", "also write a one-item catalog template to this path (.yaml, .json or .csv)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	defaults := config.Defaults()
	if err := config.WriteYAML(os.Stdout, defaults); err != nil {
		return err
	}
	if *template != "" {
		if err := catalog.Save(*template, catalog.Template(defaults.ItemDefaults.Value, defaults.ItemDefaults.Weight)); err != nil {
			return err
		}
		fmt.Fprintf(os.Stderr, "wrote catalog template %s\n", *template)
	}
	return nil
}

func loadItems(catalogPath string, specs []string) ([]model.Item, error) {
	var items []model.Item
	if catalogPath != "" {
		loaded, err := catalog.Load(catalogPath)
		if err != nil {
			return nil, err
		}
		items = append(items, loaded...)
	}
	for _, spec := range specs {
		item, err := parseItemSpec(spec)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	if err := catalog.Validate(items); err != nil {
		return nil, err
	}
	return items, nil
}

// parseItemSpec reads name:value:weight. The name may itself contain colons.
func parseItemSpec(spec string) (model.Item, error) {
	parts := strings.Split(spec, ":")
	if len(parts) < 3 {
		return model.Item{}, fmt.Errorf("item %q: want name:value:weight", spec)
	}
	name := strings.Join(parts[:len(parts)-2], ":")
	value, err := strconv.ParseFloat(parts[len(parts)-2], 64)
	if err != nil {
		return model.Item{}, fmt.Errorf("item %q: value: %w", spec, err)
	}
	weight, err := strconv.ParseFloat(parts[len(parts)-1], 64)
	if err != nil {
		return model.Item{}, fmt.Errorf("item %q: weight: %w", spec, err)
	}
	return model.Item{Name: name, Value: value, Weight: weight}, nil
}

func relativeTime(createdAtUTC string) string {
	ts, err := time.Parse(model.TimestampLayout, createdAtUTC)
	if err != nil {
		return createdAtUTC
	}
	return humanize.Time(ts)
}

func usageError(msg string) error {
	return fmt.Errorf("%s\nusage: knapsackctl <init|reset|solve|runs|show|export|defaults> [flags]", msg)
}
