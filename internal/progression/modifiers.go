package progression

import (
	"fmt"
	"strconv"
	"strings"
)

// Modifiers holds per-token multipliers applied to produced and consumed
// amounts. A traversal always works on its own copy.
type Modifiers struct {
	Add     map[string]float64 `json:"add" yaml:"add"`
	Consume map[string]float64 `json:"consume" yaml:"consume"`
}

// NewModifiers returns a set with every token id at 1.0.
func NewModifiers(tokenIDs []string) *Modifiers {
	m := &Modifiers{}
	m.ResetToDefaults(tokenIDs)
	return m
}

// ResetToDefaults discards all overrides and sets every token id to 1.0.
func (m *Modifiers) ResetToDefaults(tokenIDs []string) {
	m.Add = make(map[string]float64, len(tokenIDs))
	m.Consume = make(map[string]float64, len(tokenIDs))
	for _, id := range tokenIDs {
		m.Add[id] = 1
		m.Consume[id] = 1
	}
}

// FillMissingDefaults sets 1.0 for token ids without an entry and keeps
// existing overrides.
func (m *Modifiers) FillMissingDefaults(tokenIDs []string) {
	if m.Add == nil {
		m.Add = make(map[string]float64, len(tokenIDs))
	}
	if m.Consume == nil {
		m.Consume = make(map[string]float64, len(tokenIDs))
	}
	for _, id := range tokenIDs {
		if _, ok := m.Add[id]; !ok {
			m.Add[id] = 1
		}
		if _, ok := m.Consume[id]; !ok {
			m.Consume[id] = 1
		}
	}
}

// Copy deep-copies m into target and returns it. A nil target is allocated.
// Entries in target that m lacks are removed.
func (m *Modifiers) Copy(target *Modifiers) *Modifiers {
	if target == nil {
		target = &Modifiers{}
	}
	target.Add = copyFloats(m.Add)
	target.Consume = copyFloats(m.Consume)
	return target
}

// SetAdd overrides the production multiplier for a token.
func (m *Modifiers) SetAdd(id string, v float64) {
	if m.Add == nil {
		m.Add = make(map[string]float64)
	}
	m.Add[id] = v
}

// SetConsume overrides the consumption multiplier for a token.
func (m *Modifiers) SetConsume(id string, v float64) {
	if m.Consume == nil {
		m.Consume = make(map[string]float64)
	}
	m.Consume[id] = v
}

// AddFactor returns the production multiplier, 1.0 when absent.
func (m *Modifiers) AddFactor(id string) float64 {
	if m == nil {
		return 1
	}
	if v, ok := m.Add[id]; ok {
		return v
	}
	return 1
}

// ConsumeFactor returns the consumption multiplier, 1.0 when absent.
func (m *Modifiers) ConsumeFactor(id string) float64 {
	if m == nil {
		return 1
	}
	if v, ok := m.Consume[id]; ok {
		return v
	}
	return 1
}

// ParseOverride parses "token=factor" as given on the command line.
func ParseOverride(s string) (string, float64, error) {
	id, raw, ok := strings.Cut(s, "=")
	id = strings.TrimSpace(id)
	if !ok || id == "" {
		return "", 0, fmt.Errorf("invalid modifier %q: expected token=factor", s)
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil {
		return "", 0, fmt.Errorf("invalid modifier %q: %w", s, err)
	}
	if v < 0 {
		return "", 0, fmt.Errorf("invalid modifier %q: factor must not be negative", s)
	}
	return id, v, nil
}

func copyFloats(src map[string]float64) map[string]float64 {
	out := make(map[string]float64, len(src))
	for k, v := range src {
		out[k] = v
	}
	return out
}
