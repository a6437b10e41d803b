// Package knapsack is the public entry point to the knapsack optimizer.
package knapsack

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"knapsack/internal/config"
	"knapsack/internal/evo"
	"knapsack/internal/metrics"
	"knapsack/internal/model"
	"knapsack/internal/platform"
	"knapsack/internal/storage"
)

type Item = model.Item

var (
	ErrRunNotFound  = errors.New("run not found")
	ErrInvalidInput = evo.ErrInvalidInput
)

type Options struct {
	StoreKind     string
	DBPath        string
	Logger        *zap.Logger
	EnableMetrics bool
}

type Client struct {
	store   storage.Store
	solver  *platform.Solver
	log     *zap.Logger
	metrics *metrics.Recorder
}

type SolveRequest struct {
	RunID          string
	Items          []Item
	WeightLimit    float64
	FitnessLimit   float64
	PopulationSize int
	// GenerationLimit defaults to 100 when <= 0.
	GenerationLimit int
	// MutationProbability is used as given; 0 disables mutation.
	MutationProbability float64
	MutationRepeats     int
	Selection           string
	TournamentSize      int
	Seed                int64
	// FitnessCacheSize 0 selects the default size, < 0 disables memoization.
	FitnessCacheSize int
}

type SolveSummary struct {
	RunID            string
	SelectedNames    []string
	Best             string
	BestFitness      float64
	BestWeight       float64
	Generation       int
	StopReason       string
	BestByGeneration []float64
	Duration         time.Duration
}

type RunsRequest struct {
	Limit int
}

type RunItem struct {
	RunID         string
	CreatedAtUTC  string
	Items         int
	BestFitness   float64
	Generation    int
	StopReason    string
	SelectedNames []string
}

type RunRequest struct {
	RunID  string
	Latest bool
}

type RunDetail struct {
	Record           model.RunRecord
	BestByGeneration []float64
	Diagnostics      []model.GenerationDiagnostics
}

func New(opts Options) (*Client, error) {
	defaults := config.Defaults()
	storeKind := opts.StoreKind
	if storeKind == "" {
		storeKind = defaults.Store.Kind
	}
	dbPath := opts.DBPath
	if dbPath == "" {
		dbPath = defaults.Store.Path
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	store, err := storage.NewStore(storeKind, dbPath)
	if err != nil {
		return nil, err
	}

	c := &Client{store: store, log: logger}
	if opts.EnableMetrics {
		c.metrics = metrics.NewRecorder()
	}
	c.solver = platform.NewSolver(platform.Config{
		Store:   store,
		Logger:  logger,
		Metrics: c.metrics,
	})
	return c, nil
}

// DefaultRequest returns the reset parameter set with no items.
func DefaultRequest() SolveRequest {
	o := config.Defaults().Optimizer
	return SolveRequest{
		WeightLimit:         o.WeightLimit,
		FitnessLimit:        o.FitnessLimit,
		PopulationSize:      o.PopulationSize,
		GenerationLimit:     o.GenerationLimit,
		MutationProbability: o.MutationProbability,
		MutationRepeats:     o.MutationRepeats,
		Selection:           o.Selection,
		TournamentSize:      o.TournamentSize,
		Seed:                o.Seed,
		FitnessCacheSize:    o.FitnessCacheSize,
	}
}

func (c *Client) Close() error {
	return storage.CloseIfSupported(c.store)
}

func (c *Client) Init(ctx context.Context) error {
	return c.solver.Init(ctx)
}

func (c *Client) Reset(ctx context.Context) error {
	return c.solver.Reset(ctx)
}

// Solve runs the optimizer over req.Items and returns the chosen item names
// and the generation reached. On cancellation the partial summary is returned
// with the context error.
func (c *Client) Solve(ctx context.Context, req SolveRequest) (SolveSummary, error) {
	defaults := DefaultRequest()
	if req.PopulationSize <= 0 {
		req.PopulationSize = defaults.PopulationSize
	}
	if req.GenerationLimit <= 0 {
		req.GenerationLimit = defaults.GenerationLimit
	}
	if req.MutationRepeats <= 0 {
		req.MutationRepeats = defaults.MutationRepeats
	}
	if req.Selection == "" {
		req.Selection = defaults.Selection
	}
	switch {
	case req.FitnessCacheSize == 0:
		req.FitnessCacheSize = defaults.FitnessCacheSize
	case req.FitnessCacheSize < 0:
		req.FitnessCacheSize = 0
	}
	if err := c.solver.Init(ctx); err != nil {
		return SolveSummary{}, err
	}

	result, err := c.solver.Solve(ctx, platform.SolveConfig{
		RunID:               req.RunID,
		Items:               req.Items,
		WeightLimit:         req.WeightLimit,
		FitnessLimit:        req.FitnessLimit,
		PopulationSize:      req.PopulationSize,
		GenerationLimit:     req.GenerationLimit,
		MutationProbability: req.MutationProbability,
		MutationRepeats:     req.MutationRepeats,
		Selection:           req.Selection,
		TournamentSize:      req.TournamentSize,
		Seed:                req.Seed,
		FitnessCacheSize:    req.FitnessCacheSize,
	})
	if result.Run.ID == "" {
		return SolveSummary{}, err
	}
	run := result.Run
	return SolveSummary{
		RunID:            run.ID,
		SelectedNames:    run.SelectedNames,
		Best:             run.Best.String(),
		BestFitness:      run.BestFitness,
		BestWeight:       run.BestWeight,
		Generation:       run.Generation,
		StopReason:       run.StopReason,
		BestByGeneration: result.BestByGeneration,
		Duration:         time.Duration(run.DurationMS) * time.Millisecond,
	}, err
}

func (c *Client) Runs(ctx context.Context, req RunsRequest) ([]RunItem, error) {
	if req.Limit <= 0 {
		req.Limit = 20
	}
	if err := c.solver.Init(ctx); err != nil {
		return nil, err
	}
	runs, err := c.solver.Runs(ctx, req.Limit)
	if err != nil {
		return nil, err
	}

	out := make([]RunItem, 0, len(runs))
	for _, run := range runs {
		out = append(out, RunItem{
			RunID:         run.ID,
			CreatedAtUTC:  run.CreatedAtUTC,
			Items:         len(run.Items),
			BestFitness:   run.BestFitness,
			Generation:    run.Generation,
			StopReason:    run.StopReason,
			SelectedNames: run.SelectedNames,
		})
	}
	return out, nil
}

func (c *Client) Run(ctx context.Context, req RunRequest) (RunDetail, error) {
	if req.RunID != "" && req.Latest {
		return RunDetail{}, errors.New("use either run id or latest")
	}
	if req.RunID == "" && !req.Latest {
		return RunDetail{}, errors.New("run lookup requires run id or latest")
	}
	if err := c.solver.Init(ctx); err != nil {
		return RunDetail{}, err
	}

	runID := req.RunID
	if req.Latest {
		runs, err := c.solver.Runs(ctx, 1)
		if err != nil {
			return RunDetail{}, err
		}
		if len(runs) == 0 {
			return RunDetail{}, fmt.Errorf("no runs available: %w", ErrRunNotFound)
		}
		runID = runs[0].ID
	}

	details, ok, err := c.solver.Run(ctx, runID)
	if err != nil {
		return RunDetail{}, err
	}
	if !ok {
		return RunDetail{}, fmt.Errorf("%s: %w", runID, ErrRunNotFound)
	}
	return RunDetail{
		Record:           details.Run,
		BestByGeneration: details.BestByGeneration,
		Diagnostics:      details.Diagnostics,
	}, nil
}

// WriteMetrics dumps the client's Prometheus registry to a textfile. It is a
// no-op unless the client was built with EnableMetrics.
func (c *Client) WriteMetrics(path string) error {
	if c.metrics == nil || path == "" {
		return nil
	}
	if err := c.metrics.WriteTextfile(path); err != nil {
		return fmt.Errorf("write metrics %s: %w", path, err)
	}
	c.log.Debug("metrics written", zap.String("path", path))
	return nil
}
