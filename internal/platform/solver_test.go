package platform

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"knapsack/internal/evo"
	"knapsack/internal/metrics"
	"knapsack/internal/model"
	"knapsack/internal/storage"
)

func scenarioItems() []model.Item {
	return []model.Item{
		{Name: "A", Value: 10, Weight: 5},
		{Name: "B", Value: 6, Weight: 4},
		{Name: "C", Value: 8, Weight: 3},
	}
}

func newTestSolver(t *testing.T) (*Solver, *storage.MemoryStore) {
	t.Helper()
	store := storage.NewMemoryStore()
	ids := 0
	solver := NewSolver(Config{
		Store:  store,
		Logger: zaptest.NewLogger(t),
		Now: func() time.Time {
			return time.Date(2026, 3, 1, 12, 0, ids, 0, time.UTC)
		},
		NewID: func() string {
			ids++
			return "run-" + string(rune('0'+ids))
		},
	})
	require.NoError(t, solver.Init(context.Background()))
	return solver, store
}

func baseSolveConfig() SolveConfig {
	return SolveConfig{
		Items:               scenarioItems(),
		WeightLimit:         7,
		FitnessLimit:        1000,
		PopulationSize:      10,
		GenerationLimit:     30,
		MutationProbability: 0.65,
		MutationRepeats:     1,
		Seed:                42,
		FitnessCacheSize:    64,
	}
}

func TestSolverSolvePersistsRun(t *testing.T) {
	ctx := context.Background()
	solver, _ := newTestSolver(t)

	result, err := solver.Solve(ctx, baseSolveConfig())
	require.NoError(t, err)

	run := result.Run
	assert.Equal(t, "run-1", run.ID)
	assert.Equal(t, "2026-03-01T12:00:01.000Z", run.CreatedAtUTC)
	assert.Equal(t, string(evo.StopGenerationLimit), run.StopReason)
	assert.Equal(t, 29, run.Generation)
	assert.Equal(t, "roulette", run.Parameters.Selection)
	assert.Equal(t, storage.CurrentSchemaVersion, run.SchemaVersion)

	score, err := evo.Fitness(run.Best, scenarioItems(), 7)
	require.NoError(t, err)
	assert.Equal(t, score, run.BestFitness)
	assert.Equal(t, run.Best.SelectedNames(scenarioItems()), run.SelectedNames)
	assert.LessOrEqual(t, run.BestWeight, 7.0)
	assert.Len(t, result.BestByGeneration, 30)
	assert.Len(t, result.Diagnostics, 30)

	details, ok, err := solver.Run(ctx, run.ID)
	require.NoError(t, err)
	require.True(t, ok)
	if diff := cmp.Diff(run, details.Run); diff != "" {
		t.Fatalf("persisted run mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, result.BestByGeneration, details.BestByGeneration)
	assert.Equal(t, result.Diagnostics, details.Diagnostics)
}

func TestSolverStopsOnFitnessLimit(t *testing.T) {
	solver, _ := newTestSolver(t)

	cfg := baseSolveConfig()
	cfg.Items = []model.Item{{Name: "x", Value: 1}, {Name: "y", Value: 2}}
	cfg.WeightLimit = 0
	cfg.FitnessLimit = -1

	result, err := solver.Solve(context.Background(), cfg)
	require.NoError(t, err)
	assert.Equal(t, string(evo.StopFitnessLimit), result.Run.StopReason)
	assert.Equal(t, 0, result.Run.Generation)
}

func TestSolverDeterministicForSeed(t *testing.T) {
	solver, _ := newTestSolver(t)

	first, err := solver.Solve(context.Background(), baseSolveConfig())
	require.NoError(t, err)
	second, err := solver.Solve(context.Background(), baseSolveConfig())
	require.NoError(t, err)

	assert.NotEqual(t, first.Run.ID, second.Run.ID)
	assert.Equal(t, first.Run.Best, second.Run.Best)
	assert.Equal(t, first.BestByGeneration, second.BestByGeneration)
}

func TestSolverRejectsEmptyItems(t *testing.T) {
	solver, _ := newTestSolver(t)
	cfg := baseSolveConfig()
	cfg.Items = nil
	_, err := solver.Solve(context.Background(), cfg)
	assert.ErrorIs(t, err, evo.ErrInvalidInput)
}

func TestSolverRejectsBadParameters(t *testing.T) {
	solver, _ := newTestSolver(t)

	cfg := baseSolveConfig()
	cfg.MutationProbability = 2
	_, err := solver.Solve(context.Background(), cfg)
	assert.ErrorIs(t, err, evo.ErrInvalidInput)

	cfg = baseSolveConfig()
	cfg.Selection = "rank"
	_, err = solver.Solve(context.Background(), cfg)
	assert.Error(t, err)

	cfg = baseSolveConfig()
	cfg.PopulationSize = 1
	_, err = solver.Solve(context.Background(), cfg)
	assert.ErrorIs(t, err, evo.ErrInvalidInput)

	runs, err := solver.Runs(context.Background(), 0)
	require.NoError(t, err)
	assert.Empty(t, runs)
}

func TestSolverCancelledRunIsPersisted(t *testing.T) {
	solver, _ := newTestSolver(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result, err := solver.Solve(ctx, baseSolveConfig())
	require.True(t, errors.Is(err, context.Canceled))
	assert.Equal(t, string(evo.StopCancelled), result.Run.StopReason)

	_, ok, err := solver.Run(context.Background(), result.Run.ID)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestSolverRunsLimitAndReset(t *testing.T) {
	ctx := context.Background()
	solver, _ := newTestSolver(t)
	for i := 0; i < 3; i++ {
		_, err := solver.Solve(ctx, baseSolveConfig())
		require.NoError(t, err)
	}

	runs, err := solver.Runs(ctx, 2)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "run-3", runs[0].ID)
	assert.Equal(t, "run-2", runs[1].ID)

	require.NoError(t, solver.Reset(ctx))
	runs, err = solver.Runs(ctx, 0)
	require.NoError(t, err)
	assert.Empty(t, runs)
}

func TestSolverRequiresInit(t *testing.T) {
	solver := NewSolver(Config{Store: storage.NewMemoryStore()})
	_, err := solver.Solve(context.Background(), baseSolveConfig())
	assert.Error(t, err)
	_, err = solver.Runs(context.Background(), 0)
	assert.Error(t, err)

	assert.Error(t, NewSolver(Config{}).Init(context.Background()))
}

func TestSolverRecordsMetrics(t *testing.T) {
	recorder := metrics.NewRecorder()
	solver := NewSolver(Config{Store: storage.NewMemoryStore(), Metrics: recorder})
	require.NoError(t, solver.Init(context.Background()))

	_, err := solver.Solve(context.Background(), baseSolveConfig())
	require.NoError(t, err)

	families, err := recorder.Registry().Gather()
	require.NoError(t, err)
	values := map[string]float64{}
	for _, family := range families {
		for _, metric := range family.GetMetric() {
			if c := metric.GetCounter(); c != nil {
				values[family.GetName()] += c.GetValue()
			}
		}
	}
	assert.Equal(t, 30.0, values["knapsack_generations_total"])
	assert.Equal(t, 1.0, values["knapsack_runs_total"])
}
