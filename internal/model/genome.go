package model

import (
	"fmt"
	"strings"
)

// Genome is an inclusion bit vector: bit i set to 1 means item i is packed.
type Genome []uint8

// ParseGenome reads a string of '0' and '1' characters.
func ParseGenome(s string) (Genome, error) {
	g := make(Genome, 0, len(s))
	for i, r := range s {
		switch r {
		case '0':
			g = append(g, 0)
		case '1':
			g = append(g, 1)
		default:
			return nil, fmt.Errorf("invalid genome bit %q at position %d", r, i)
		}
	}
	return g, nil
}

func (g Genome) Clone() Genome {
	if g == nil {
		return nil
	}
	out := make(Genome, len(g))
	copy(out, g)
	return out
}

func (g Genome) String() string {
	var sb strings.Builder
	sb.Grow(len(g))
	for _, bit := range g {
		if bit == 1 {
			sb.WriteByte('1')
		} else {
			sb.WriteByte('0')
		}
	}
	return sb.String()
}

// Ones counts the included loci.
func (g Genome) Ones() int {
	n := 0
	for _, bit := range g {
		if bit == 1 {
			n++
		}
	}
	return n
}

// SelectedNames lists the names of included items in item order. Loci past
// the end of items are ignored.
func (g Genome) SelectedNames(items []Item) []string {
	names := make([]string, 0, g.Ones())
	for i, bit := range g {
		if i >= len(items) {
			break
		}
		if bit == 1 {
			names = append(names, items[i].Name)
		}
	}
	return names
}

func (g Genome) TotalWeight(items []Item) float64 {
	total := 0.0
	for i, bit := range g {
		if i < len(items) && bit == 1 {
			total += items[i].Weight
		}
	}
	return total
}

func (g Genome) TotalValue(items []Item) float64 {
	total := 0.0
	for i, bit := range g {
		if i < len(items) && bit == 1 {
			total += items[i].Value
		}
	}
	return total
}

// MarshalText encodes the genome as its bit string so JSON and YAML records
// stay readable.
func (g Genome) MarshalText() ([]byte, error) {
	return []byte(g.String()), nil
}

func (g *Genome) UnmarshalText(text []byte) error {
	parsed, err := ParseGenome(string(text))
	if err != nil {
		return err
	}
	*g = parsed
	return nil
}
