package evo

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"knapsack/internal/model"
)

func TestRouletteSelectorOnlyPicksWeightedGenomes(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	scored := []ScoredGenome{
		{Genome: model.Genome{0, 0}, Fitness: 0},
		{Genome: model.Genome{1, 1}, Fitness: 5},
		{Genome: model.Genome{0, 1}, Fitness: 0},
	}
	for i := 0; i < 100; i++ {
		a, b, err := RouletteSelector{}.SelectPair(rng, scored)
		require.NoError(t, err)
		assert.Equal(t, model.Genome{1, 1}, a)
		assert.Equal(t, model.Genome{1, 1}, b)
	}
}

func TestRouletteSelectorFavorsHigherFitness(t *testing.T) {
	rng := rand.New(rand.NewSource(2))
	scored := []ScoredGenome{
		{Genome: model.Genome{1}, Fitness: 9},
		{Genome: model.Genome{0}, Fitness: 1},
	}
	heavy := 0
	for i := 0; i < 1000; i++ {
		a, b, err := RouletteSelector{}.SelectPair(rng, scored)
		require.NoError(t, err)
		heavy += int(a[0]) + int(b[0])
	}
	assert.Greater(t, heavy, 1600)
}

func TestRouletteSelectorUniformFallback(t *testing.T) {
	rng := rand.New(rand.NewSource(4))
	scored := []ScoredGenome{
		{Genome: model.Genome{0, 0}},
		{Genome: model.Genome{0, 1}},
		{Genome: model.Genome{1, 0}},
		{Genome: model.Genome{1, 1}},
	}
	require.True(t, Degenerate(scored))

	seen := map[string]int{}
	for i := 0; i < 400; i++ {
		a, b, err := RouletteSelector{}.SelectPair(rng, scored)
		require.NoError(t, err)
		seen[a.String()]++
		seen[b.String()]++
	}
	assert.Len(t, seen, len(scored))
}

func TestRouletteSelectorEmptyPopulation(t *testing.T) {
	_, _, err := RouletteSelector{}.SelectPair(rand.New(rand.NewSource(1)), nil)
	assert.ErrorIs(t, err, ErrEmptyPopulation)
}

func TestTournamentSelectorReturnsMembers(t *testing.T) {
	rng := rand.New(rand.NewSource(8))
	scored := []ScoredGenome{
		{Genome: model.Genome{1, 1, 0}, Fitness: 3},
		{Genome: model.Genome{0, 1, 0}, Fitness: 2},
	}
	members := map[string]bool{"110": true, "010": true}
	for i := 0; i < 50; i++ {
		a, b, err := TournamentSelector{Size: 5}.SelectPair(rng, scored)
		require.NoError(t, err)
		assert.True(t, members[a.String()])
		assert.True(t, members[b.String()])
	}
}

func TestSelectionPairScoresPopulation(t *testing.T) {
	items := scenarioItems()
	population := model.Population{{1, 0, 1}, {0, 1, 1}}
	fitness := func(g model.Genome) (float64, error) { return Fitness(g, items, 7) }

	a, b, err := SelectionPair(rand.New(rand.NewSource(9)), population, fitness)
	require.NoError(t, err)
	assert.Equal(t, model.Genome{0, 1, 1}, a)
	assert.Equal(t, model.Genome{0, 1, 1}, b)
}

func TestSelectorFromName(t *testing.T) {
	sel, err := SelectorFromName("", 0)
	require.NoError(t, err)
	assert.Equal(t, "roulette", sel.Name())

	sel, err = SelectorFromName("tournament", 4)
	require.NoError(t, err)
	assert.Equal(t, TournamentSelector{Size: 4}, sel)

	_, err = SelectorFromName("rank", 0)
	assert.Error(t, err)
}
