package stats

import (
	"fmt"
	"math"
	"strconv"
)

// Section names in report order.
const (
	SectionSteps      = "steps"
	SectionOpen       = "open"
	SectionTokens     = "tokens"
	SectionNodes      = "nodes"
	SectionUnfinished = "unfinished"
	SectionAdded      = "added"
	SectionConsumed   = "consumed"
)

// Summary describes one key over the sample base. Min and Max are only
// set for extended reports.
type Summary struct {
	Mean    float64  `json:"mean"`
	Median  float64  `json:"median"`
	Mode    float64  `json:"mode"`
	Min     *float64 `json:"min,omitempty"`
	Max     *float64 `json:"max,omitempty"`
	Samples int      `json:"samples"`
}

// Entry is a keyed summary.
type Entry struct {
	Key string `json:"key"`
	Summary
}

// Section is one counter family reduced over its base.
type Section struct {
	Name    string  `json:"name"`
	Base    int     `json:"base"`
	Entries []Entry `json:"entries"`
}

// Report is the processed result of a batch.
type Report struct {
	Trials   int       `json:"trials"`
	Steps    int       `json:"steps"`
	Extended bool      `json:"extended"`
	Sections []Section `json:"sections"`
}

// Section returns the named section, or nil.
func (r *Report) Section(name string) *Section {
	for i := range r.Sections {
		if r.Sections[i].Name == name {
			return &r.Sections[i]
		}
	}
	return nil
}

// Lookup returns the summary for key in section name.
func (r *Report) Lookup(name, key string) (Summary, bool) {
	sec := r.Section(name)
	if sec == nil {
		return Summary{}, false
	}
	for _, e := range sec.Entries {
		if e.Key == key {
			return e.Summary, true
		}
	}
	return Summary{}, false
}

// Process reduces every family. Open is summarized over the step count,
// everything else over the trial count. End-state values are split into
// tokens, in declaration order, and sorted node ids.
func (a *Aggregator) Process(extended bool) *Report {
	r := &Report{
		Trials:   a.samples,
		Steps:    a.steps,
		Extended: extended,
	}

	var tokenKeys, nodeKeys []string
	if a.graph != nil {
		for _, id := range a.graph.TokenIDs {
			if _, ok := a.EndState[id]; ok {
				tokenKeys = append(tokenKeys, id)
			}
		}
	}
	for _, id := range a.EndState.Keys() {
		if a.graph == nil || !a.graph.IsToken(id) {
			nodeKeys = append(nodeKeys, id)
		}
	}

	r.Sections = []Section{
		a.section(SectionSteps, a.Steps, a.Steps.Keys(), a.samples, extended),
		a.section(SectionOpen, a.Open, a.Open.Keys(), a.steps, extended),
		a.section(SectionTokens, a.EndState, tokenKeys, a.samples, extended),
		a.section(SectionNodes, a.EndState, nodeKeys, a.samples, extended),
		a.section(SectionUnfinished, a.Unfinished, a.Unfinished.Keys(), a.samples, extended),
		a.section(SectionAdded, a.Added, a.Added.Keys(), a.samples, extended),
		a.section(SectionConsumed, a.Consumed, a.Consumed.Keys(), a.samples, extended),
	}
	return r
}

func (a *Aggregator) section(name string, f Family, keys []string, base int, extended bool) Section {
	sec := Section{Name: name, Base: base, Entries: make([]Entry, 0, len(keys))}
	for _, k := range keys {
		c := f[k]
		sec.Entries = append(sec.Entries, Entry{Key: k, Summary: Summarize(c.Values, c.Sum, base, extended)})
	}
	return sec
}

// FormatReport renders the report as milestone lines: a header per
// non-empty section followed by one line per key.
func FormatReport(r *Report) []string {
	if r == nil {
		return nil
	}
	lines := []string{fmt.Sprintf("trials: %d, steps: %d", r.Trials, r.Steps)}
	for _, sec := range r.Sections {
		if len(sec.Entries) == 0 {
			continue
		}
		lines = append(lines, fmt.Sprintf("== %s (n=%d)", sec.Name, sec.Base))
		for _, e := range sec.Entries {
			lines = append(lines, formatEntry(e))
		}
	}
	return lines
}

func formatEntry(e Entry) string {
	line := fmt.Sprintf("%s: mean %s, median %s, mode %s", e.Key, num(e.Mean), num(e.Median), num(e.Mode))
	if e.Min != nil && e.Max != nil {
		line += fmt.Sprintf(", min %s, max %s", num(*e.Min), num(*e.Max))
	}
	return line
}

func num(v float64) string {
	return strconv.FormatFloat(math.Round(v*100)/100, 'f', -1, 64)
}
