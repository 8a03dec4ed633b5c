package stats

import (
	"sort"

	"github.com/AaronLay10/ProgressionSim/internal/progression"
)

// Counter accumulates one value per sample for a single key.
type Counter struct {
	Sum    float64   `json:"sum"`
	Values []float64 `json:"values"`
}

func (c *Counter) add(v float64) {
	c.Sum += v
	c.Values = append(c.Values, v)
}

// Family is a set of counters keyed by node id, type or transition.
type Family map[string]*Counter

func (f Family) add(key string, v float64) {
	c, ok := f[key]
	if !ok {
		c = &Counter{}
		f[key] = c
	}
	c.add(v)
}

// Keys returns the family's keys sorted.
func (f Family) Keys() []string {
	keys := make([]string, 0, len(f))
	for k := range f {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Aggregator folds finished trials into counter families. It only reads
// the states handed to Add and keeps no reference to them.
type Aggregator struct {
	graph *progression.Graph

	Steps      Family
	Open       Family
	EndState   Family
	Unfinished Family
	Added      Family
	Consumed   Family

	samples int
	steps   int
}

// NewAggregator returns an empty aggregator for trials over g.
func NewAggregator(g *progression.Graph) *Aggregator {
	return &Aggregator{
		graph:      g,
		Steps:      make(Family),
		Open:       make(Family),
		EndState:   make(Family),
		Unfinished: make(Family),
		Added:      make(Family),
		Consumed:   make(Family),
	}
}

// Add folds one finished trial.
func (a *Aggregator) Add(s *progression.State) {
	a.samples++

	transitions := make(map[string]float64)
	prev := ""
	for _, step := range s.Path {
		key := step.Trigger
		if prev != "" {
			key = prev + "->" + step.Trigger
		}
		transitions[key]++
		prev = step.Trigger

		for typ, n := range step.AvailableByType {
			a.Open.add(typ, float64(n))
		}
		a.steps++
	}
	for key, n := range transitions {
		a.Steps.add(key, n)
	}

	for id, v := range s.Status {
		a.EndState.add(id, v.AsNumber())
	}
	for _, id := range s.Hidden {
		a.Unfinished.add(id, 1)
	}
	for id, v := range s.AddedTokens {
		a.Added.add(id, v)
	}
	for id, v := range s.ConsumedTokens {
		a.Consumed.add(id, v)
	}
}

// SampleCount is the number of trials added.
func (a *Aggregator) SampleCount() int {
	return a.samples
}

// StepCount is the number of steps across all trials added.
func (a *Aggregator) StepCount() int {
	return a.steps
}

// Summarize reduces values over base samples. Samples that never recorded
// a value count as zeros placed ahead of the recorded ones.
func Summarize(values []float64, sum float64, base int, extended bool) Summary {
	out := Summary{Samples: len(values)}
	if base <= 0 {
		if extended {
			out.Min, out.Max = new(float64), new(float64)
		}
		return out
	}
	out.Mean = sum / float64(base)

	padded := make([]float64, 0, max(base, len(values)))
	for i := len(values); i < base; i++ {
		padded = append(padded, 0)
	}
	padded = append(padded, values...)
	sort.Float64s(padded)

	out.Median = padded[len(padded)/2]
	out.Mode = mode(padded)
	if extended {
		lo, hi := padded[0], padded[len(padded)-1]
		out.Min, out.Max = &lo, &hi
	}
	return out
}

// mode returns the value of the first longest run in a sorted slice.
func mode(sorted []float64) float64 {
	best, bestLen := sorted[0], 0
	run := 0
	for i, v := range sorted {
		if i > 0 && v == sorted[i-1] {
			run++
		} else {
			run = 1
		}
		if run > bestLen {
			best, bestLen = v, run
		}
	}
	return best
}
