package model

// TimestampLayout is the fixed-width UTC layout of RunRecord.CreatedAtUTC.
const TimestampLayout = "2006-01-02T15:04:05.000Z"

// VersionedRecord captures schema and codec evolution for persistent data.
type VersionedRecord struct {
	SchemaVersion int `json:"schema_version"`
	CodecVersion  int `json:"codec_version"`
}

// Item is one candidate for the knapsack. Its position in the item list is
// the locus a genome bit refers to.
type Item struct {
	Name   string  `json:"name" yaml:"name"`
	Value  float64 `json:"value" yaml:"value"`
	Weight float64 `json:"weight" yaml:"weight"`
}

type Population []Genome

type GenerationDiagnostics struct {
	Generation int     `json:"generation"`
	Size       int     `json:"size"`
	Best       float64 `json:"best"`
	Mean       float64 `json:"mean"`
	Min        float64 `json:"min"`
	StdDev     float64 `json:"std_dev"`
}

// RunParameters are the scalar inputs of one optimizer run.
type RunParameters struct {
	WeightLimit         float64 `json:"weight_limit"`
	FitnessLimit        float64 `json:"fitness_limit"`
	PopulationSize      int     `json:"population_size"`
	GenerationLimit     int     `json:"generation_limit"`
	MutationProbability float64 `json:"mutation_probability"`
	MutationRepeats     int     `json:"mutation_repeats"`
	Selection           string  `json:"selection"`
	Seed                int64   `json:"seed"`
}

// RunRecord is the persisted summary of a finished run. Final populations
// are deliberately not part of it.
type RunRecord struct {
	VersionedRecord
	ID            string        `json:"id"`
	CreatedAtUTC  string        `json:"created_at_utc"`
	Items         []Item        `json:"items"`
	Parameters    RunParameters `json:"parameters"`
	Best          Genome        `json:"best"`
	BestFitness   float64       `json:"best_fitness"`
	BestWeight    float64       `json:"best_weight"`
	SelectedNames []string      `json:"selected_names"`
	Generation    int           `json:"generation"`
	StopReason    string        `json:"stop_reason"`
	DurationMS    int64         `json:"duration_ms"`
}
