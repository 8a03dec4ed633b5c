package progression

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"math/rand/v2"
	"sort"
	"time"
)

var (
	// ErrNotAvailable is returned by StepNode for a node that is not on
	// the frontier.
	ErrNotAvailable = errors.New("node is not available")
	// ErrManualTraversalDisabled is returned by StepNode for a node that
	// only the random walk may visit.
	ErrManualTraversalDisabled = errors.New("manual traversal disabled for node")
)

// Engine drives traversals over one graph. The only non-deterministic
// input is rng; everything else is a pure function of state and graph.
type Engine struct {
	graph  *Graph
	rng    *rand.Rand
	logger *slog.Logger
}

// NewEngine creates an engine for g. A nil rng is seeded from the clock and
// a nil logger discards output.
func NewEngine(g *Graph, rng *rand.Rand, logger *slog.Logger) *Engine {
	if rng == nil {
		seed := uint64(time.Now().UnixNano())
		rng = rand.New(rand.NewPCG(seed, seed>>1))
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Engine{graph: g, rng: rng, logger: logger}
}

// Graph returns the definition this engine traverses.
func (e *Engine) Graph() *Graph {
	return e.graph
}

// Reset prepares s for a fresh trial. When mods is nil the state's previous
// modifiers are kept and only missing entries are filled with 1.0.
func (e *Engine) Reset(s *State, mods *Modifiers) {
	prev := s.Modifiers
	s.clear()

	for id, v := range e.graph.StartWith {
		s.Status[id] = v
	}
	for _, id := range e.graph.TokenIDs {
		if _, ok := s.Status[id]; !ok {
			s.Status[id] = Number(0)
		}
	}
	for _, id := range e.graph.NodeIDs {
		if s.Status[id].Truthy() {
			s.moveTo(id, PlacementVisited)
		} else {
			s.moveTo(id, PlacementHidden)
		}
	}

	if mods != nil {
		s.Modifiers = mods.Copy(prev)
	} else if prev != nil {
		s.Modifiers = prev
	} else {
		s.Modifiers = &Modifiers{}
	}
	s.Modifiers.FillMissingDefaults(e.graph.TokenIDs)

	e.settle(s, nil)
}

// Step visits one randomly chosen available node, folding every automatic
// unlock it causes into the same step. It returns nil once nothing is
// available.
func (e *Engine) Step(s *State) *Step {
	n := len(s.Available)
	if n == 0 {
		return nil
	}
	e.rng.Shuffle(n, func(i, j int) {
		s.Available[i], s.Available[j] = s.Available[j], s.Available[i]
	})
	return e.advance(s, s.Available[n-1])
}

// StepNode visits a caller-chosen available node.
func (e *Engine) StepNode(s *State, id string) (*Step, error) {
	if e.graph.DisableManualTraversal[id] {
		return nil, fmt.Errorf("%w: %s", ErrManualTraversalDisabled, id)
	}
	if !s.IsAvailable(id) {
		return nil, fmt.Errorf("%w: %s", ErrNotAvailable, id)
	}
	return e.advance(s, id), nil
}

func (e *Engine) advance(s *State, id string) *Step {
	step := &Step{Trigger: id}
	e.visit(s, id, step)
	e.settle(s, step)
	step.AvailableByType = e.tallyAvailable(s)
	s.Path = append(s.Path, step)
	return step
}

// settle rescans until no further automatic node qualifies.
func (e *Engine) settle(s *State, step *Step) {
	for {
		auto, changes := e.scan(s)
		if changes > 0 {
			e.logger.Debug("visibility changed", "changes", changes, "auto", len(auto))
		}
		if len(auto) == 0 {
			return
		}
		for _, id := range auto {
			if !s.IsAvailable(id) || !e.SatisfiesRequirements(s, id) {
				continue
			}
			e.visit(s, id, step)
		}
	}
}

// visit runs a breadth-first cascade rooted at rootID. Only the root pays
// its requirements; nodes reached through results just apply their own
// results.
func (e *Engine) visit(s *State, rootID string, step *Step) {
	queue := []string{rootID}
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]

		if s.Visited[id] {
			continue
		}
		if _, isNode := e.graph.Nodes[id]; isNode {
			s.moveTo(id, PlacementVisited)
		} else {
			s.Visited[id] = true
		}
		if e.changeStatus(s, id, Bool(true)) == NewAsset {
			step.record(id, Bool(true), false)
		}

		def := e.graph.Lookup(id)
		if def == nil {
			e.logger.Warn("visited unknown node", "node_id", id, "root", rootID)
			continue
		}
		if id == rootID {
			e.applyRequirements(s, def, step)
		}
		queue = e.applyResults(s, def, step, queue)
	}
}

func (e *Engine) applyRequirements(s *State, def *NodeDefinition, step *Step) {
	for _, req := range def.Requires {
		if req.Consume {
			e.consume(s, def.ID, req, step)
		}
	}
}

func (e *Engine) applyResults(s *State, def *NodeDefinition, step *Step, queue []string) []string {
	for _, ref := range def.Results {
		switch {
		case ref.Consume:
			e.consume(s, def.ID, ref, step)
		case ref.Unlock:
			if !s.Unlocked[ref.Target] {
				s.Unlocked[ref.Target] = true
				step.record(ref.Target, ref.Amount, true)
			}
		default:
			if e.graph.Lookup(ref.Target) == nil {
				e.logger.Warn("result targets unknown node", "node_id", def.ID, "target", ref.Target)
				continue
			}
			v := e.resolve(s, ref.Target, ref.Amount, false)
			res := e.changeStatus(s, ref.Target, v)
			if res != NoChange {
				step.record(ref.Target, v, false)
			}
			if res == NewAsset {
				queue = append(queue, ref.Target)
			}
		}
	}
	return queue
}

func (e *Engine) consume(s *State, owner string, ref NodeReference, step *Step) {
	if e.graph.Lookup(ref.Target) == nil {
		e.logger.Warn("consume targets unknown node", "node_id", owner, "target", ref.Target)
		return
	}
	flip := e.resolve(s, ref.Target, ref.Amount.Negate(), true)
	if e.changeStatus(s, ref.Target, flip) != NoChange {
		step.record(ref.Target, flip, false)
	}
}

// ChangeStatus applies amount to id. Flags toggle only on change; quantities
// are added and clamped at zero, with the applied delta folded into the
// lifetime added/consumed totals.
func (e *Engine) ChangeStatus(s *State, id string, amount Amount) ChangeResult {
	return e.changeStatus(s, id, amount)
}

func (e *Engine) changeStatus(s *State, id string, amount Amount) ChangeResult {
	old, had := s.Status[id]
	switch amount.Kind() {
	case AmountBool:
		if had && old.IsNumber() {
			e.logger.Warn("flag applied to numeric status", "node_id", id)
		}
		if old.Truthy() == amount.Bool() {
			return NoChange
		}
		s.Status[id] = amount
		if amount.Bool() {
			return NewAsset
		}
		return RemovedAsset

	case AmountNumber:
		var cur float64
		if old.IsNumber() {
			cur = old.Number()
		} else if had {
			e.logger.Warn("quantity applied to flag status", "node_id", id)
		}
		next := math.Max(0, cur+amount.Number())
		if next == cur {
			if !old.IsNumber() {
				s.Status[id] = Number(cur)
			}
			return NoChange
		}
		s.Status[id] = Number(next)
		if next < cur {
			s.ConsumedTokens[id] += cur - next
		} else {
			s.AddedTokens[id] += next - cur
		}
		return Modified
	}
	return NoChange
}

// Resolve scales a quantity by the token's multiplier and rounds to the
// nearest integer. Flags pass through unchanged.
func (e *Engine) Resolve(s *State, id string, amount Amount, forceConsume bool) Amount {
	return e.resolve(s, id, amount, forceConsume)
}

func (e *Engine) resolve(s *State, id string, amount Amount, forceConsume bool) Amount {
	if !amount.IsNumber() {
		return amount
	}
	n := amount.Number()
	if forceConsume || n < 0 {
		n *= s.Modifiers.ConsumeFactor(id)
	} else {
		n *= s.Modifiers.AddFactor(id)
	}
	return Number(math.Floor(n + 0.5))
}

// SatisfiesRequirements reports whether every requirement of id holds.
// Numeric thresholds are scaled by the consume multiplier even when the
// requirement is never consumed.
func (e *Engine) SatisfiesRequirements(s *State, id string) bool {
	def := e.graph.Lookup(id)
	if def == nil {
		return false
	}
	for _, req := range def.Requires {
		if !e.requirementMet(s, req) {
			return false
		}
	}
	return true
}

func (e *Engine) requirementMet(s *State, req NodeReference) bool {
	cur := s.Status[req.Target]
	if req.Amount.IsBool() {
		return cur.Truthy() == req.Amount.Bool()
	}
	need := e.resolve(s, req.Target, req.Amount, true)
	return cur.AsNumber() >= need.Number()
}

// scan moves hidden nodes whose gates now hold onto the frontier and drops
// frontier nodes whose requirements no longer hold. Newly available
// automatic nodes are returned for immediate visiting.
func (e *Engine) scan(s *State) ([]string, int) {
	var auto []string
	changes := 0

	for i := len(s.Hidden) - 1; i >= 0; i-- {
		id := s.Hidden[i]
		def := e.graph.Nodes[id]
		if def == nil {
			continue
		}
		if def.Unlock == UnlockManual && !s.Unlocked[id] {
			continue
		}
		if !e.SatisfiesRequirements(s, id) {
			continue
		}
		s.moveTo(id, PlacementAvailable)
		changes++
		if def.Unlock == UnlockAuto {
			auto = append(auto, id)
		}
	}

	for i := len(s.Available) - 1; i >= 0; i-- {
		id := s.Available[i]
		if !e.SatisfiesRequirements(s, id) {
			s.moveTo(id, PlacementHidden)
			changes++
		}
	}

	return auto, changes
}

func (e *Engine) tallyAvailable(s *State) map[string]int {
	counts := make(map[string]int)
	for _, id := range s.Available {
		if def := e.graph.Nodes[id]; def != nil && def.Type != "" {
			counts[def.Type]++
		}
	}
	return counts
}

// MissingRequirements reports whether id still needs a manual unlock grant
// and which prerequisites are unmet. It does not mutate s.
func (e *Engine) MissingRequirements(s *State, id string) (bool, []string) {
	def := e.graph.Lookup(id)
	if def == nil {
		return false, nil
	}
	needsUnlock := def.Unlock == UnlockManual && !s.Unlocked[id]
	var missing []string
	for _, req := range def.Requires {
		if !e.requirementMet(s, req) {
			missing = append(missing, req.Target)
		}
	}
	return needsUnlock, missing
}

// Remaining returns the ids still hidden, sorted.
func (e *Engine) Remaining(s *State) []string {
	out := append([]string(nil), s.Hidden...)
	sort.Strings(out)
	return out
}

// Run steps s until the frontier is empty and returns the step count.
func (e *Engine) Run(s *State) int {
	n := 0
	for e.Step(s) != nil {
		n++
	}
	return n
}
