package evo

import (
	"math/rand"

	"knapsack/internal/model"
)

// PopulateFunc builds the generation 0 population from the run's random source.
type PopulateFunc func(rng *rand.Rand) model.Population

// GenerateGenome draws length independent uniform bits in index order.
func GenerateGenome(rng *rand.Rand, length int) model.Genome {
	if length < 0 {
		length = 0
	}
	g := make(model.Genome, length)
	for i := range g {
		g[i] = uint8(rng.Intn(2))
	}
	return g
}

func GeneratePopulation(rng *rand.Rand, size, length int) model.Population {
	if size < 0 {
		size = 0
	}
	population := make(model.Population, size)
	for i := range population {
		population[i] = GenerateGenome(rng, length)
	}
	return population
}

// RandomPopulation returns a PopulateFunc producing size random genomes of
// the given length.
func RandomPopulation(size, length int) PopulateFunc {
	return func(rng *rand.Rand) model.Population {
		return GeneratePopulation(rng, size, length)
	}
}
