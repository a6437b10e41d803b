package evo

import (
	"math/rand"

	"knapsack/internal/model"
)

// DefaultMutationProbability is the chance that a drawn locus flips.
const DefaultMutationProbability = 0.65

// Mutator perturbs a genome and returns the result as a new genome.
type Mutator interface {
	Name() string
	Mutate(rng *rand.Rand, genome model.Genome) model.Genome
}

// BitFlipMutation picks Repeats loci uniformly (with repetition) and flips
// each with Probability. A locus picked twice and flipped twice is restored.
type BitFlipMutation struct {
	Repeats     int
	Probability float64
}

func DefaultBitFlipMutation() BitFlipMutation {
	return BitFlipMutation{Repeats: 1, Probability: DefaultMutationProbability}
}

func (BitFlipMutation) Name() string {
	return "bit_flip"
}

func (m BitFlipMutation) Mutate(rng *rand.Rand, genome model.Genome) model.Genome {
	out := genome.Clone()
	if len(out) == 0 {
		return out
	}
	for i := 0; i < m.Repeats; i++ {
		idx := rng.Intn(len(out))
		if rng.Float64() < m.Probability {
			out[idx] ^= 1
		}
	}
	return out
}
