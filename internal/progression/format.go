package progression

import (
	"fmt"
	"strconv"
	"strings"
)

// FormatStep renders a step as a single log line, e.g.
//
//	forge: +sword, gold -25, unlocked castle
func FormatStep(step *Step) string {
	if step == nil {
		return ""
	}
	parts := make([]string, 0, len(step.Changes))
	for _, c := range step.Changes {
		parts = append(parts, formatChange(c))
	}
	if len(parts) == 0 {
		return step.Trigger
	}
	return step.Trigger + ": " + strings.Join(parts, ", ")
}

func formatChange(c StepChange) string {
	if c.Unlocked {
		return "unlocked " + c.ID
	}
	switch c.Delta.Kind() {
	case AmountBool:
		if c.Delta.Bool() {
			return "+" + c.ID
		}
		return "-" + c.ID
	case AmountNumber:
		return fmt.Sprintf("%s %s", c.ID, signed(c.Delta.Number()))
	default:
		return c.ID
	}
}

// FormatTokens renders one line per token in declaration order:
//
//	gold: 35 (+40 / -5)
func FormatTokens(s *State, g *Graph) []string {
	lines := make([]string, 0, len(g.TokenIDs))
	for _, id := range g.TokenIDs {
		lines = append(lines, fmt.Sprintf("%s: %s (+%s / -%s)",
			id,
			s.Status[id].String(),
			trimFloat(s.AddedTokens[id]),
			trimFloat(s.ConsumedTokens[id]),
		))
	}
	return lines
}

// FormatMissing renders why a node never became available.
func FormatMissing(id string, needsUnlock bool, missing []string) string {
	var reasons []string
	if needsUnlock {
		reasons = append(reasons, "needs unlock")
	}
	if len(missing) > 0 {
		reasons = append(reasons, "missing "+strings.Join(missing, ", "))
	}
	if len(reasons) == 0 {
		return id
	}
	return id + ": " + strings.Join(reasons, "; ")
}

func signed(v float64) string {
	if v >= 0 {
		return "+" + trimFloat(v)
	}
	return trimFloat(v)
}

func trimFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
