package evo

import (
	"fmt"
	"math"
	"math/rand"

	"knapsack/internal/model"
)

// Selector chooses a breeding pair from a scored population.
type Selector interface {
	Name() string
	SelectPair(rng *rand.Rand, scored []ScoredGenome) (model.Genome, model.Genome, error)
}

// RouletteSelector draws two parents independently, with replacement, with
// probability proportional to fitness. When every weight is zero it falls back
// to uniform draws over the population.
type RouletteSelector struct{}

func (RouletteSelector) Name() string {
	return "roulette"
}

func (RouletteSelector) SelectPair(rng *rand.Rand, scored []ScoredGenome) (model.Genome, model.Genome, error) {
	if rng == nil {
		return nil, nil, fmt.Errorf("random source is required")
	}
	if len(scored) == 0 {
		return nil, nil, ErrEmptyPopulation
	}

	cumulative := make([]float64, len(scored))
	total := 0.0
	for i, item := range scored {
		if item.Fitness > 0 && !math.IsInf(item.Fitness, 0) {
			total += item.Fitness
		}
		cumulative[i] = total
	}

	pick := func() model.Genome {
		if total <= 0 || math.IsInf(total, 0) || math.IsNaN(total) {
			return scored[rng.Intn(len(scored))].Genome
		}
		spin := rng.Float64() * total
		for i, cum := range cumulative {
			if spin < cum {
				return scored[i].Genome
			}
		}
		return scored[len(scored)-1].Genome
	}

	first := pick()
	second := pick()
	return first, second, nil
}

// Degenerate reports whether roulette weighting has no mass and would fall
// back to uniform sampling.
func Degenerate(scored []ScoredGenome) bool {
	for _, item := range scored {
		if item.Fitness > 0 {
			return false
		}
	}
	return true
}

// TournamentSelector samples Size candidates uniformly per parent and keeps
// the fittest of each sample.
type TournamentSelector struct {
	Size int
}

func (TournamentSelector) Name() string {
	return "tournament"
}

func (s TournamentSelector) SelectPair(rng *rand.Rand, scored []ScoredGenome) (model.Genome, model.Genome, error) {
	if rng == nil {
		return nil, nil, fmt.Errorf("random source is required")
	}
	if len(scored) == 0 {
		return nil, nil, ErrEmptyPopulation
	}

	size := s.Size
	if size <= 0 {
		size = 3
	}
	if size > len(scored) {
		size = len(scored)
	}

	pick := func() model.Genome {
		best := scored[rng.Intn(len(scored))]
		for i := 1; i < size; i++ {
			candidate := scored[rng.Intn(len(scored))]
			if candidate.Fitness > best.Fitness {
				best = candidate
			}
		}
		return best.Genome
	}

	first := pick()
	second := pick()
	return first, second, nil
}

// SelectionPair scores population with fitness and draws a roulette pair.
func SelectionPair(rng *rand.Rand, population model.Population, fitness FitnessFunc) (model.Genome, model.Genome, error) {
	scored, err := ScorePopulation(population, fitness)
	if err != nil {
		return nil, nil, err
	}
	return RouletteSelector{}.SelectPair(rng, scored)
}

func SelectorFromName(name string, tournamentSize int) (Selector, error) {
	switch name {
	case "", "roulette":
		return RouletteSelector{}, nil
	case "tournament":
		return TournamentSelector{Size: tournamentSize}, nil
	default:
		return nil, fmt.Errorf("unsupported selection strategy: %s", name)
	}
}
