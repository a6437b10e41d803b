package evo

import (
	"fmt"
	"math/rand"

	"knapsack/internal/model"
)

// Crossover recombines two parents into two offspring.
type Crossover interface {
	Name() string
	Cross(rng *rand.Rand, a, b model.Genome) (model.Genome, model.Genome, error)
}

// SinglePointCrossover splices both parents at one point drawn uniformly
// from [1, len-1].
type SinglePointCrossover struct{}

func (SinglePointCrossover) Name() string {
	return "single_point"
}

func (SinglePointCrossover) Cross(rng *rand.Rand, a, b model.Genome) (model.Genome, model.Genome, error) {
	if len(a) != len(b) {
		return nil, nil, &LengthMismatchError{Subject: "crossover parent", Want: len(a), Got: len(b)}
	}
	if len(a) < 2 {
		return a.Clone(), b.Clone(), nil
	}
	if rng == nil {
		return nil, nil, fmt.Errorf("random source is required")
	}
	p := 1 + rng.Intn(len(a)-1)
	return CrossAt(a, b, p)
}

// CrossAt returns (a[:p]+b[p:], b[:p]+a[p:]) as fresh genomes.
func CrossAt(a, b model.Genome, p int) (model.Genome, model.Genome, error) {
	if len(a) != len(b) {
		return nil, nil, &LengthMismatchError{Subject: "crossover parent", Want: len(a), Got: len(b)}
	}
	if p < 1 || p > len(a)-1 {
		return nil, nil, fmt.Errorf("crossover point %d outside [1, %d]: %w", p, len(a)-1, ErrInvalidInput)
	}

	childA := make(model.Genome, 0, len(a))
	childA = append(childA, a[:p]...)
	childA = append(childA, b[p:]...)

	childB := make(model.Genome, 0, len(b))
	childB = append(childB, b[:p]...)
	childB = append(childB, a[p:]...)
	return childA, childB, nil
}
