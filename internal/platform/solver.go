package platform

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"knapsack/internal/evo"
	"knapsack/internal/metrics"
	"knapsack/internal/model"
	"knapsack/internal/storage"
)

type Config struct {
	Store   storage.Store
	Logger  *zap.Logger
	Metrics *metrics.Recorder
	// Now and NewID are overridable for tests.
	Now   func() time.Time
	NewID func() string
}

type SolveConfig struct {
	RunID               string
	Items               []model.Item
	WeightLimit         float64
	FitnessLimit        float64
	PopulationSize      int
	GenerationLimit     int
	MutationProbability float64
	MutationRepeats     int
	Selection           string
	TournamentSize      int
	Seed                int64
	FitnessCacheSize    int
}

type SolveResult struct {
	Run              model.RunRecord
	BestByGeneration []float64
	Diagnostics      []model.GenerationDiagnostics
	FinalPopulation  []evo.ScoredGenome
}

// RunDetails is a persisted run with its per-generation history.
type RunDetails struct {
	Run              model.RunRecord
	BestByGeneration []float64
	Diagnostics      []model.GenerationDiagnostics
}

// Solver owns a run store and executes optimizer runs against it.
type Solver struct {
	store   storage.Store
	log     *zap.Logger
	metrics *metrics.Recorder
	now     func() time.Time
	newID   func() string

	mu      sync.RWMutex
	started bool
}

func NewSolver(cfg Config) *Solver {
	s := &Solver{
		store:   cfg.Store,
		log:     cfg.Logger,
		metrics: cfg.Metrics,
		now:     cfg.Now,
		newID:   cfg.NewID,
	}
	if s.log == nil {
		s.log = zap.NewNop()
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.newID == nil {
		s.newID = uuid.NewString
	}
	return s
}

func (s *Solver) Init(ctx context.Context) error {
	if s.store == nil {
		return fmt.Errorf("store is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return nil
	}
	if err := s.store.Init(ctx); err != nil {
		return err
	}
	s.started = true
	return nil
}

// Reset drops every persisted run and leaves the solver initialized.
func (s *Solver) Reset(ctx context.Context) error {
	if err := s.Init(ctx); err != nil {
		return err
	}
	if resetter, ok := s.store.(storage.Resetter); ok {
		if err := resetter.Reset(ctx); err != nil {
			return err
		}
	}
	s.log.Info("run store reset")
	return nil
}

func (s *Solver) Started() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.started
}

// Solve runs the optimizer and persists the run summary. A cancelled run is
// still persisted from its last ranked generation and the context error is
// returned alongside the result.
func (s *Solver) Solve(ctx context.Context, cfg SolveConfig) (SolveResult, error) {
	if !s.Started() {
		return SolveResult{}, fmt.Errorf("solver is not initialized")
	}
	if len(cfg.Items) == 0 {
		return SolveResult{}, fmt.Errorf("item list is empty: %w", evo.ErrInvalidInput)
	}
	if cfg.MutationProbability < 0 || cfg.MutationProbability > 1 {
		return SolveResult{}, fmt.Errorf("mutation probability must be in [0,1]: %w", evo.ErrInvalidInput)
	}
	if cfg.MutationRepeats <= 0 {
		cfg.MutationRepeats = 1
	}

	evaluator, err := evo.NewKnapsackEvaluator(cfg.Items, cfg.WeightLimit, cfg.FitnessCacheSize)
	if err != nil {
		return SolveResult{}, err
	}
	selector, err := evo.SelectorFromName(cfg.Selection, cfg.TournamentSize)
	if err != nil {
		return SolveResult{}, err
	}

	runID := cfg.RunID
	if runID == "" {
		runID = s.newID()
	}
	runLog := s.log.With(zap.String("run_id", runID))

	monitorCfg := evo.MonitorConfig{
		Populate:        evo.RandomPopulation(cfg.PopulationSize, len(cfg.Items)),
		Fitness:         evaluator.Fitness,
		FitnessLimit:    cfg.FitnessLimit,
		Selector:        selector,
		Crossover:       evo.SinglePointCrossover{},
		Mutator:         evo.BitFlipMutation{Repeats: cfg.MutationRepeats, Probability: cfg.MutationProbability},
		GenerationLimit: cfg.GenerationLimit,
		Seed:            cfg.Seed,
		Logger:          runLog,
	}
	if s.metrics != nil {
		monitorCfg.Observer = s.metrics
	}
	monitor, err := evo.NewPopulationMonitor(monitorCfg)
	if err != nil {
		return SolveResult{}, err
	}

	started := s.now()
	result, runErr := monitor.Run(ctx)
	elapsed := s.now().Sub(started)
	if runErr != nil && !(errors.Is(runErr, context.Canceled) || errors.Is(runErr, context.DeadlineExceeded)) {
		return SolveResult{}, runErr
	}
	best, ok := result.Best()
	if !ok {
		return SolveResult{}, runErr
	}

	record := storage.StampVersion(model.RunRecord{
		ID:           runID,
		CreatedAtUTC: started.UTC().Format(model.TimestampLayout),
		Items:        append([]model.Item(nil), cfg.Items...),
		Parameters: model.RunParameters{
			WeightLimit:         cfg.WeightLimit,
			FitnessLimit:        cfg.FitnessLimit,
			PopulationSize:      cfg.PopulationSize,
			GenerationLimit:     monitorGenerationLimit(cfg.GenerationLimit),
			MutationProbability: cfg.MutationProbability,
			MutationRepeats:     cfg.MutationRepeats,
			Selection:           selector.Name(),
			Seed:                cfg.Seed,
		},
		Best:          best.Genome.Clone(),
		BestFitness:   best.Fitness,
		BestWeight:    best.Genome.TotalWeight(cfg.Items),
		SelectedNames: best.Genome.SelectedNames(cfg.Items),
		Generation:    result.Generation,
		StopReason:    string(result.StopReason),
		DurationMS:    elapsed.Milliseconds(),
	})

	// Persist with a fresh context so a cancelled run is still recorded.
	persistCtx := context.WithoutCancel(ctx)
	if err := s.store.SaveRun(persistCtx, record); err != nil {
		return SolveResult{}, fmt.Errorf("save run %s: %w", runID, err)
	}
	if err := s.store.SaveFitnessHistory(persistCtx, runID, result.BestByGeneration); err != nil {
		return SolveResult{}, fmt.Errorf("save fitness history %s: %w", runID, err)
	}
	if err := s.store.SaveGenerationDiagnostics(persistCtx, runID, result.Diagnostics); err != nil {
		return SolveResult{}, fmt.Errorf("save generation diagnostics %s: %w", runID, err)
	}
	if s.metrics != nil {
		s.metrics.ObserveRun(record.StopReason, elapsed, evaluator.CacheLen())
	}
	runLog.Info("run persisted",
		zap.Float64("best_fitness", record.BestFitness),
		zap.Int("generation", record.Generation),
		zap.String("stop_reason", record.StopReason),
		zap.Strings("selected", record.SelectedNames),
	)

	return SolveResult{
		Run:              record,
		BestByGeneration: result.BestByGeneration,
		Diagnostics:      result.Diagnostics,
		FinalPopulation:  result.FinalPopulation,
	}, runErr
}

// Runs lists persisted runs newest first. limit <= 0 returns all of them.
func (s *Solver) Runs(ctx context.Context, limit int) ([]model.RunRecord, error) {
	if !s.Started() {
		return nil, fmt.Errorf("solver is not initialized")
	}
	runs, err := s.store.ListRuns(ctx)
	if err != nil {
		return nil, err
	}
	if limit > 0 && len(runs) > limit {
		runs = runs[:limit]
	}
	return runs, nil
}

func (s *Solver) Run(ctx context.Context, id string) (RunDetails, bool, error) {
	if !s.Started() {
		return RunDetails{}, false, fmt.Errorf("solver is not initialized")
	}
	run, ok, err := s.store.GetRun(ctx, id)
	if err != nil || !ok {
		return RunDetails{}, ok, err
	}
	history, _, err := s.store.GetFitnessHistory(ctx, id)
	if err != nil {
		return RunDetails{}, false, err
	}
	diagnostics, _, err := s.store.GetGenerationDiagnostics(ctx, id)
	if err != nil {
		return RunDetails{}, false, err
	}
	return RunDetails{Run: run, BestByGeneration: history, Diagnostics: diagnostics}, true, nil
}

func monitorGenerationLimit(limit int) int {
	if limit == 0 {
		return evo.DefaultGenerationLimit
	}
	return limit
}
