package evo

import (
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"

	"knapsack/internal/model"
)

// FitnessFunc scores a genome. Scores are non-negative for knapsack runs.
type FitnessFunc func(model.Genome) (float64, error)

const DefaultFitnessCacheSize = 4096

// Fitness sums the values of included items, scanning in item order. As soon
// as the running weight exceeds weightLimit the genome scores 0, whatever was
// collected before the overflow.
func Fitness(genome model.Genome, items []model.Item, weightLimit float64) (float64, error) {
	if len(genome) != len(items) {
		return 0, &LengthMismatchError{Subject: "genome", Want: len(items), Got: len(genome)}
	}

	weight := 0.0
	value := 0.0
	for i, item := range items {
		if genome[i] != 1 {
			continue
		}
		weight += item.Weight
		value += item.Value
		if weight > weightLimit {
			return 0, nil
		}
	}
	return value, nil
}

// KnapsackEvaluator binds an item list and weight budget. Scores are
// memoized per bit string; items and budget must not change after
// construction.
type KnapsackEvaluator struct {
	items       []model.Item
	weightLimit float64
	cache       *lru.Cache[string, float64]
}

func NewKnapsackEvaluator(items []model.Item, weightLimit float64, cacheSize int) (*KnapsackEvaluator, error) {
	if weightLimit < 0 {
		return nil, fmt.Errorf("weight limit must be >= 0: %w", ErrInvalidInput)
	}
	for i, item := range items {
		if item.Value < 0 || item.Weight < 0 {
			return nil, fmt.Errorf("item %d (%s) must have non-negative value and weight: %w", i, item.Name, ErrInvalidInput)
		}
	}
	e := &KnapsackEvaluator{
		items:       append([]model.Item(nil), items...),
		weightLimit: weightLimit,
	}
	if cacheSize > 0 {
		cache, err := lru.New[string, float64](cacheSize)
		if err != nil {
			return nil, err
		}
		e.cache = cache
	}
	return e, nil
}

func (e *KnapsackEvaluator) Items() []model.Item {
	return append([]model.Item(nil), e.items...)
}

func (e *KnapsackEvaluator) WeightLimit() float64 {
	return e.weightLimit
}

func (e *KnapsackEvaluator) Fitness(genome model.Genome) (float64, error) {
	if e.cache == nil {
		return Fitness(genome, e.items, e.weightLimit)
	}
	key := genome.String()
	if score, ok := e.cache.Get(key); ok {
		return score, nil
	}
	score, err := Fitness(genome, e.items, e.weightLimit)
	if err != nil {
		return 0, err
	}
	e.cache.Add(key, score)
	return score, nil
}

// CacheLen reports how many distinct genomes have been memoized.
func (e *KnapsackEvaluator) CacheLen() int {
	if e.cache == nil {
		return 0
	}
	return e.cache.Len()
}
