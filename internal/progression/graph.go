package progression

import (
	"fmt"
	"strings"
)

// UnlockKind controls how a node becomes available.
type UnlockKind string

const (
	// UnlockTraverse nodes become available once their requirements hold.
	UnlockTraverse UnlockKind = "traverse"
	// UnlockManual nodes additionally need an explicit unlock grant.
	UnlockManual UnlockKind = "manual"
	// UnlockAuto nodes are visited as soon as they become available.
	UnlockAuto UnlockKind = "auto"
)

// ParseUnlockKind maps a config string to an UnlockKind.
// Empty defaults to traverse.
func ParseUnlockKind(s string) (UnlockKind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "traverse":
		return UnlockTraverse, nil
	case "manual":
		return UnlockManual, nil
	case "auto":
		return UnlockAuto, nil
	default:
		return "", fmt.Errorf("unknown unlock kind: %q", s)
	}
}

// NodeReference points at another node or token. As a requirement it is a
// gate; as a result it is an effect.
type NodeReference struct {
	Target  string `json:"id"`
	Amount  Amount `json:"amount"`
	Consume bool   `json:"consume,omitempty"`
	Unlock  bool   `json:"unlock,omitempty"`
}

// NodeDefinition describes one achievement, item or token.
type NodeDefinition struct {
	ID                     string          `json:"id"`
	Type                   string          `json:"type,omitempty"`
	IsToken                bool            `json:"token,omitempty"`
	DisableManualTraversal bool            `json:"disable_manual_traversal,omitempty"`
	Unlock                 UnlockKind      `json:"unlock"`
	Requires               []NodeReference `json:"requires,omitempty"`
	Results                []NodeReference `json:"results,omitempty"`
}

// Graph is the immutable definition shared by every traversal that uses it.
type Graph struct {
	Nodes                  map[string]*NodeDefinition
	Tokens                 map[string]*NodeDefinition
	NodeIDs                []string
	TokenIDs               []string
	StartWith              map[string]Amount
	DisableManualTraversal map[string]bool
	Constants              map[string]Amount

	// Warnings collects non-fatal problems found while building the graph.
	Warnings []string
}

// NewGraph returns an empty graph ready for AddNode calls.
func NewGraph() *Graph {
	return &Graph{
		Nodes:                  make(map[string]*NodeDefinition),
		Tokens:                 make(map[string]*NodeDefinition),
		StartWith:              make(map[string]Amount),
		DisableManualTraversal: make(map[string]bool),
		Constants:              make(map[string]Amount),
	}
}

// AddNode registers a node or token definition. A duplicate id replaces
// the earlier definition and records a warning.
func (g *Graph) AddNode(def *NodeDefinition) {
	if def.Unlock == "" {
		def.Unlock = UnlockTraverse
	}
	for i := range def.Requires {
		if !def.Requires[i].Amount.IsSet() {
			def.Requires[i].Amount = Bool(true)
		}
	}
	for i := range def.Results {
		if !def.Results[i].Amount.IsSet() {
			def.Results[i].Amount = Bool(true)
		}
	}

	if g.Lookup(def.ID) != nil {
		g.warnf("duplicate node id %q, later definition wins", def.ID)
		g.remove(def.ID)
	}

	if def.IsToken {
		g.Tokens[def.ID] = def
		g.TokenIDs = append(g.TokenIDs, def.ID)
	} else {
		g.Nodes[def.ID] = def
		g.NodeIDs = append(g.NodeIDs, def.ID)
	}
	if def.DisableManualTraversal {
		g.DisableManualTraversal[def.ID] = true
	}
}

// Lookup returns the node or token definition for id, or nil.
func (g *Graph) Lookup(id string) *NodeDefinition {
	if def, ok := g.Nodes[id]; ok {
		return def
	}
	if def, ok := g.Tokens[id]; ok {
		return def
	}
	return nil
}

// IsToken reports whether id names a token.
func (g *Graph) IsToken(id string) bool {
	_, ok := g.Tokens[id]
	return ok
}

// Types returns the distinct node types in declaration order.
func (g *Graph) Types() []string {
	seen := make(map[string]bool)
	var out []string
	for _, id := range g.NodeIDs {
		t := g.Nodes[id].Type
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, t)
	}
	return out
}

// Validate records a warning for every reference to an undefined id.
// It never fails; the engine treats dangling references as no-ops.
func (g *Graph) Validate() {
	check := func(owner, kind string, refs []NodeReference) {
		for _, ref := range refs {
			if g.Lookup(ref.Target) == nil {
				g.warnf("node %q %s unknown id %q", owner, kind, ref.Target)
			}
		}
	}
	for _, id := range g.NodeIDs {
		def := g.Nodes[id]
		check(id, "requires", def.Requires)
		check(id, "results in", def.Results)
	}
	for _, id := range g.TokenIDs {
		def := g.Tokens[id]
		check(id, "requires", def.Requires)
		check(id, "results in", def.Results)
	}
	for id := range g.StartWith {
		if g.Lookup(id) == nil {
			g.warnf("start_with references unknown id %q", id)
		}
	}
}

func (g *Graph) remove(id string) {
	delete(g.Nodes, id)
	delete(g.Tokens, id)
	delete(g.DisableManualTraversal, id)
	g.NodeIDs = removeID(g.NodeIDs, id)
	g.TokenIDs = removeID(g.TokenIDs, id)
}

func (g *Graph) warnf(format string, args ...any) {
	g.Warnings = append(g.Warnings, fmt.Sprintf(format, args...))
}

func removeID(ids []string, id string) []string {
	for i, v := range ids {
		if v == id {
			return append(ids[:i], ids[i+1:]...)
		}
	}
	return ids
}
