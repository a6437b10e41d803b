package evo

import (
	"context"
	"fmt"
	"math/rand"
	"sort"

	"go.uber.org/zap"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"knapsack/internal/model"
)

const DefaultGenerationLimit = 100

// eliteCount genomes survive each generation unchanged.
const eliteCount = 2

const maxHistoryPrealloc = 1024

type ScoredGenome struct {
	Genome  model.Genome
	Fitness float64
}

type StopReason string

const (
	StopFitnessLimit    StopReason = "fitness_limit"
	StopGenerationLimit StopReason = "generation_limit"
	StopCancelled       StopReason = "cancelled"
)

// GenerationObserver is notified after each generation is ranked.
type GenerationObserver interface {
	ObserveGeneration(model.GenerationDiagnostics)
}

type RunResult struct {
	// FinalPopulation is sorted by descending fitness.
	FinalPopulation  []ScoredGenome
	Generation       int
	StopReason       StopReason
	BestByGeneration []float64
	Diagnostics      []model.GenerationDiagnostics
}

func (r RunResult) Best() (ScoredGenome, bool) {
	if len(r.FinalPopulation) == 0 {
		return ScoredGenome{}, false
	}
	return r.FinalPopulation[0], true
}

func (r RunResult) Population() model.Population {
	out := make(model.Population, 0, len(r.FinalPopulation))
	for _, item := range r.FinalPopulation {
		out = append(out, item.Genome)
	}
	return out
}

type MonitorConfig struct {
	Populate        PopulateFunc
	Fitness         FitnessFunc
	FitnessLimit    float64
	Selector        Selector
	Crossover       Crossover
	Mutator         Mutator
	GenerationLimit int
	Seed            int64
	// Rand overrides the Seed-derived source when set.
	Rand     *rand.Rand
	Logger   *zap.Logger
	Observer GenerationObserver
}

// PopulationMonitor drives the generational loop. It is single threaded and
// every random draw comes from one source, so a fixed seed reproduces a run.
// Draw order per offspring pair: both selection draws, the crossover point,
// then the mutation draws of the first child and of the second child.
type PopulationMonitor struct {
	cfg MonitorConfig
	rng *rand.Rand
	log *zap.Logger
}

func NewPopulationMonitor(cfg MonitorConfig) (*PopulationMonitor, error) {
	if cfg.Populate == nil {
		return nil, fmt.Errorf("populate function is required")
	}
	if cfg.Fitness == nil {
		return nil, fmt.Errorf("fitness function is required")
	}
	if cfg.GenerationLimit == 0 {
		cfg.GenerationLimit = DefaultGenerationLimit
	}
	if cfg.GenerationLimit < 0 {
		return nil, fmt.Errorf("generation limit must be > 0")
	}
	if cfg.Selector == nil {
		cfg.Selector = RouletteSelector{}
	}
	if cfg.Crossover == nil {
		cfg.Crossover = SinglePointCrossover{}
	}
	if cfg.Mutator == nil {
		cfg.Mutator = DefaultBitFlipMutation()
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}

	rng := cfg.Rand
	if rng == nil {
		rng = rand.New(rand.NewSource(cfg.Seed))
	}
	return &PopulationMonitor{
		cfg: cfg,
		rng: rng,
		log: cfg.Logger.With(
			zap.String("selection", cfg.Selector.Name()),
			zap.String("crossover", cfg.Crossover.Name()),
			zap.String("mutation", cfg.Mutator.Name()),
		),
	}, nil
}

// Run evolves until the best fitness strictly exceeds FitnessLimit or
// GenerationLimit generations have run. The returned generation is the loop
// index at exit. On cancellation the last ranked population is returned with
// the context error.
func (m *PopulationMonitor) Run(ctx context.Context) (RunResult, error) {
	population := m.cfg.Populate(m.rng)
	if len(population) < eliteCount {
		return RunResult{}, fmt.Errorf("population size must be >= %d, got %d: %w", eliteCount, len(population), ErrInvalidInput)
	}
	for i, genome := range population {
		if len(genome) != len(population[0]) {
			return RunResult{}, fmt.Errorf("genome %d: %w", i, &LengthMismatchError{Subject: "genome", Want: len(population[0]), Got: len(genome)})
		}
	}

	scored, err := m.rank(population)
	if err != nil {
		return RunResult{}, err
	}

	historyCap := min(m.cfg.GenerationLimit, maxHistoryPrealloc)
	result := RunResult{
		StopReason:       StopGenerationLimit,
		BestByGeneration: make([]float64, 0, historyCap),
		Diagnostics:      make([]model.GenerationDiagnostics, 0, historyCap),
	}

	gen := 0
	for ; gen < m.cfg.GenerationLimit; gen++ {
		if err := ctx.Err(); err != nil {
			result.FinalPopulation = scored
			result.Generation = gen
			result.StopReason = StopCancelled
			m.log.Info("evolution cancelled", zap.Int("generation", gen), zap.Error(err))
			return result, err
		}

		diag := summarizeGeneration(scored, gen)
		result.BestByGeneration = append(result.BestByGeneration, diag.Best)
		result.Diagnostics = append(result.Diagnostics, diag)
		if m.cfg.Observer != nil {
			m.cfg.Observer.ObserveGeneration(diag)
		}
		m.log.Debug("generation ranked",
			zap.Int("generation", gen),
			zap.Int("size", diag.Size),
			zap.Float64("best", diag.Best),
			zap.Float64("mean", diag.Mean),
		)

		if scored[0].Fitness > m.cfg.FitnessLimit {
			result.StopReason = StopFitnessLimit
			break
		}

		next, err := m.nextGeneration(scored)
		if err != nil {
			return RunResult{}, fmt.Errorf("generation %d: %w", gen, err)
		}
		scored, err = m.rank(next)
		if err != nil {
			return RunResult{}, fmt.Errorf("generation %d: %w", gen, err)
		}
	}
	if gen == m.cfg.GenerationLimit {
		gen--
	}

	result.FinalPopulation = scored
	result.Generation = gen
	m.log.Info("evolution finished",
		zap.Int("generation", gen),
		zap.String("stop_reason", string(result.StopReason)),
		zap.Float64("best_fitness", scored[0].Fitness),
		zap.Int("population", len(scored)),
	)
	return result, nil
}

// nextGeneration keeps the two best genomes and breeds len/2-1 offspring
// pairs. Odd population sizes therefore shrink by one.
func (m *PopulationMonitor) nextGeneration(ranked []ScoredGenome) (model.Population, error) {
	next := make(model.Population, 0, len(ranked))
	for _, elite := range ranked[:eliteCount] {
		next = append(next, elite.Genome)
	}

	if Degenerate(ranked) {
		m.log.Debug("all fitness scores are zero, parent selection is uniform")
	}

	pairs := len(ranked)/2 - 1
	for i := 0; i < pairs; i++ {
		a, b, err := m.cfg.Selector.SelectPair(m.rng, ranked)
		if err != nil {
			return nil, fmt.Errorf("select parents: %w", err)
		}
		childA, childB, err := m.cfg.Crossover.Cross(m.rng, a, b)
		if err != nil {
			return nil, fmt.Errorf("crossover: %w", err)
		}
		childA = m.cfg.Mutator.Mutate(m.rng, childA)
		childB = m.cfg.Mutator.Mutate(m.rng, childB)
		next = append(next, childA, childB)
	}
	return next, nil
}

func (m *PopulationMonitor) rank(population model.Population) ([]ScoredGenome, error) {
	scored, err := ScorePopulation(population, m.cfg.Fitness)
	if err != nil {
		return nil, err
	}
	SortScored(scored)
	return scored, nil
}

// ScorePopulation evaluates every genome once, preserving order.
func ScorePopulation(population model.Population, fitness FitnessFunc) ([]ScoredGenome, error) {
	scored := make([]ScoredGenome, len(population))
	for i, genome := range population {
		score, err := fitness(genome)
		if err != nil {
			return nil, fmt.Errorf("score genome %d: %w", i, err)
		}
		scored[i] = ScoredGenome{Genome: genome, Fitness: score}
	}
	return scored, nil
}

// SortScored orders by descending fitness; ties keep their relative order.
func SortScored(scored []ScoredGenome) {
	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].Fitness > scored[j].Fitness
	})
}

func summarizeGeneration(scored []ScoredGenome, generation int) model.GenerationDiagnostics {
	if len(scored) == 0 {
		return model.GenerationDiagnostics{Generation: generation}
	}
	values := make([]float64, len(scored))
	for i, item := range scored {
		values[i] = item.Fitness
	}
	mean, std := stat.PopMeanStdDev(values, nil)
	return model.GenerationDiagnostics{
		Generation: generation,
		Size:       len(scored),
		Best:       floats.Max(values),
		Mean:       mean,
		Min:        floats.Min(values),
		StdDev:     std,
	}
}
