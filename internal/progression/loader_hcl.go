package progression

import (
	"fmt"
	"sort"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/gocty"
)

// hclGraphFile decodes the top-level blocks of an HCL graph definition:
//
//	version = 1
//	constants { sword_cost = 25 }
//	token "gold" { start = 10 }
//	node "forge" {
//	  type = "craft"
//	  requires {
//	    id      = "gold"
//	    amount  = sword_cost
//	    consume = true
//	  }
//	  result { id = "sword" }
//	}
type hclGraphFile struct {
	Version   int           `hcl:"version"`
	Constants *hclAttrBlock `hcl:"constants,block"`
	StartWith *hclAttrBlock `hcl:"start_with,block"`
	Tokens    []*hclNode    `hcl:"token,block"`
	Nodes     []*hclNode    `hcl:"node,block"`
}

type hclAttrBlock struct {
	Body hcl.Body `hcl:",remain"`
}

type hclNode struct {
	ID                     string         `hcl:"id,label"`
	Type                   string         `hcl:"type,optional"`
	Unlock                 string         `hcl:"unlock,optional"`
	DisableManualTraversal bool           `hcl:"disable_manual_traversal,optional"`
	Start                  hcl.Expression `hcl:"start,optional"`
	Requires               []*hclRef      `hcl:"requires,block"`
	Results                []*hclRef      `hcl:"result,block"`
}

type hclRef struct {
	ID      string         `hcl:"id"`
	Amount  hcl.Expression `hcl:"amount,optional"`
	Consume bool           `hcl:"consume,optional"`
	Unlock  bool           `hcl:"unlock,optional"`
}

// parseHCL decodes an HCL graph. Constants are exposed to amount
// expressions as variables, so both `amount = sword_cost` and
// `amount = "sword_cost"` resolve.
func parseHCL(data []byte, filename string) (*Graph, error) {
	parser := hclparse.NewParser()
	file, diags := parser.ParseHCL(data, filename)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to parse HCL file %s: %w", filename, diags)
	}

	var root hclGraphFile
	if diags := gohcl.DecodeBody(file.Body, nil, &root); diags.HasErrors() {
		return nil, fmt.Errorf("failed to decode HCL file %s: %w", filename, diags)
	}
	if root.Version != 1 {
		return nil, fmt.Errorf("unsupported graph version: %d", root.Version)
	}

	h := &hclBuilder{
		graphBuilder: graphBuilder{graph: NewGraph()},
		vars:         make(map[string]cty.Value),
	}

	if root.Constants != nil {
		attrs, diags := root.Constants.Body.JustAttributes()
		if diags.HasErrors() {
			return nil, fmt.Errorf("failed to decode constants in %s: %w", filename, diags)
		}
		for _, name := range sortedAttrNames(attrs) {
			v, diags := attrs[name].Expr.Value(nil)
			if diags.HasErrors() {
				h.graph.warnf("constant %s: %s, using true", name, diags.Error())
				h.graph.Constants[name] = Bool(true)
				continue
			}
			h.vars[name] = v
			h.graph.Constants[name] = h.literal(v, "constant "+name)
		}
	}
	h.ctx = &hcl.EvalContext{Variables: h.vars}

	for _, n := range root.Tokens {
		if err := h.addNode(n, true); err != nil {
			return nil, err
		}
	}
	for _, n := range root.Nodes {
		if err := h.addNode(n, false); err != nil {
			return nil, err
		}
	}

	if root.StartWith != nil {
		attrs, diags := root.StartWith.Body.JustAttributes()
		if diags.HasErrors() {
			return nil, fmt.Errorf("failed to decode start_with in %s: %w", filename, diags)
		}
		for _, id := range sortedAttrNames(attrs) {
			if amt := h.expr(attrs[id].Expr, "start_with "+id); amt.IsSet() {
				h.graph.StartWith[id] = amt
			}
		}
	}

	h.graph.Validate()
	return h.graph, nil
}

type hclBuilder struct {
	graphBuilder
	vars map[string]cty.Value
	ctx  *hcl.EvalContext
}

func (h *hclBuilder) addNode(n *hclNode, token bool) error {
	kind, err := ParseUnlockKind(n.Unlock)
	if err != nil {
		return fmt.Errorf("node %s: %w", n.ID, err)
	}
	def := &NodeDefinition{
		ID:                     n.ID,
		Type:                   n.Type,
		IsToken:                token,
		DisableManualTraversal: n.DisableManualTraversal,
		Unlock:                 kind,
	}
	for i, ref := range n.Requires {
		def.Requires = append(def.Requires, h.reference(ref, fmt.Sprintf("%s.requires[%d]", n.ID, i)))
	}
	for i, ref := range n.Results {
		def.Results = append(def.Results, h.reference(ref, fmt.Sprintf("%s.result[%d]", n.ID, i)))
	}
	h.graph.AddNode(def)

	if amt := h.expr(n.Start, n.ID+".start"); amt.IsSet() {
		h.graph.StartWith[n.ID] = amt
	}
	return nil
}

func (h *hclBuilder) reference(ref *hclRef, where string) NodeReference {
	return NodeReference{
		Target:  ref.ID,
		Amount:  h.expr(ref.Amount, where),
		Consume: ref.Consume,
		Unlock:  ref.Unlock,
	}
}

// expr evaluates an amount expression. Missing attributes evaluate to null
// and stay unset; unknown variables resolve to Bool(true) with a warning.
func (h *hclBuilder) expr(e hcl.Expression, where string) Amount {
	if e == nil {
		return Amount{}
	}
	v, diags := e.Value(h.ctx)
	if diags.HasErrors() {
		h.graph.warnf("%s: %s, using true", where, diags.Error())
		return Bool(true)
	}
	if v.IsNull() {
		return Amount{}
	}
	if v.Type() == cty.String {
		return h.constant(v.AsString(), where)
	}
	return h.literal(v, where)
}

// literal converts a cty bool or number.
func (h *hclBuilder) literal(v cty.Value, where string) Amount {
	if !v.IsKnown() || v.IsNull() {
		return Amount{}
	}
	switch v.Type() {
	case cty.Bool:
		return Bool(v.True())
	case cty.Number:
		var f float64
		if err := gocty.FromCtyValue(v, &f); err != nil {
			h.graph.warnf("%s: %v, using true", where, err)
			return Bool(true)
		}
		return Number(f)
	default:
		h.graph.warnf("%s: unsupported amount of type %s, using true", where, v.Type().FriendlyName())
		return Bool(true)
	}
}

func sortedAttrNames(attrs hcl.Attributes) []string {
	names := make([]string, 0, len(attrs))
	for name := range attrs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
