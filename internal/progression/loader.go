package progression

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Format names a graph definition encoding.
type Format string

const (
	FormatYAML Format = "yaml"
	FormatJSON Format = "json"
	FormatHCL  Format = "hcl"
)

// DetectFormat picks the format from a file extension, defaulting to YAML.
func DetectFormat(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return FormatJSON
	case ".hcl":
		return FormatHCL
	default:
		return FormatYAML
	}
}

// graphFile is the YAML/JSON document shape.
type graphFile struct {
	Version   int            `json:"version" yaml:"version"`
	Constants map[string]any `json:"constants" yaml:"constants"`
	StartWith map[string]any `json:"start_with" yaml:"start_with"`
	Tokens    []nodeEntry    `json:"tokens" yaml:"tokens"`
	Nodes     []nodeEntry    `json:"nodes" yaml:"nodes"`
}

type nodeEntry struct {
	ID                     string     `json:"id" yaml:"id"`
	Type                   string     `json:"type" yaml:"type"`
	Token                  bool       `json:"token" yaml:"token"`
	Unlock                 string     `json:"unlock" yaml:"unlock"`
	DisableManualTraversal bool       `json:"disable_manual_traversal" yaml:"disable_manual_traversal"`
	Start                  any        `json:"start" yaml:"start"`
	Requires               []refEntry `json:"requires" yaml:"requires"`
	Results                []refEntry `json:"results" yaml:"results"`
}

type refEntry struct {
	ID      string `json:"id" yaml:"id"`
	Amount  any    `json:"amount" yaml:"amount"`
	Consume bool   `json:"consume" yaml:"consume"`
	Unlock  bool   `json:"unlock" yaml:"unlock"`
}

// LoadGraph loads a graph definition from a YAML, JSON or HCL file.
// A nil graph is returned with the error for unreadable or malformed input.
func LoadGraph(path string) (*Graph, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read graph file: %w", err)
	}
	format := DetectFormat(path)
	if format == FormatHCL {
		return parseHCL(data, path)
	}
	return ParseGraph(data, format)
}

// ParseGraph decodes a graph definition. Named constants are resolved here;
// an unknown constant becomes Bool(true) and is reported in Graph.Warnings.
func ParseGraph(data []byte, format Format) (*Graph, error) {
	var f graphFile
	switch format {
	case FormatJSON:
		if err := json.Unmarshal(data, &f); err != nil {
			return nil, fmt.Errorf("failed to parse graph JSON: %w", err)
		}
	case FormatYAML:
		if err := yaml.Unmarshal(data, &f); err != nil {
			return nil, fmt.Errorf("failed to parse graph YAML: %w", err)
		}
	case FormatHCL:
		return parseHCL(data, "graph.hcl")
	default:
		return nil, fmt.Errorf("unsupported graph format: %q", format)
	}

	if f.Version != 1 {
		return nil, fmt.Errorf("unsupported graph version: %d", f.Version)
	}

	b := &graphBuilder{graph: NewGraph()}
	for name, raw := range f.Constants {
		b.graph.Constants[name] = b.literal(raw, "constant "+name)
	}
	for _, entry := range f.Tokens {
		entry.Token = true
		if err := b.addEntry(entry); err != nil {
			return nil, err
		}
	}
	for _, entry := range f.Nodes {
		if err := b.addEntry(entry); err != nil {
			return nil, err
		}
	}
	for id, raw := range f.StartWith {
		if amt := b.amount(raw, "start_with "+id); amt.IsSet() {
			b.graph.StartWith[id] = amt
		}
	}

	b.graph.Validate()
	return b.graph, nil
}

type graphBuilder struct {
	graph *Graph
}

func (b *graphBuilder) addEntry(entry nodeEntry) error {
	if entry.ID == "" {
		return fmt.Errorf("node without id")
	}
	kind, err := ParseUnlockKind(entry.Unlock)
	if err != nil {
		return fmt.Errorf("node %s: %w", entry.ID, err)
	}
	def := &NodeDefinition{
		ID:                     entry.ID,
		Type:                   entry.Type,
		IsToken:                entry.Token,
		DisableManualTraversal: entry.DisableManualTraversal,
		Unlock:                 kind,
	}
	for i, ref := range entry.Requires {
		def.Requires = append(def.Requires, b.reference(ref, fmt.Sprintf("%s.requires[%d]", entry.ID, i)))
	}
	for i, ref := range entry.Results {
		def.Results = append(def.Results, b.reference(ref, fmt.Sprintf("%s.results[%d]", entry.ID, i)))
	}
	b.graph.AddNode(def)

	if amt := b.amount(entry.Start, entry.ID+".start"); amt.IsSet() {
		b.graph.StartWith[entry.ID] = amt
	}
	return nil
}

func (b *graphBuilder) reference(ref refEntry, where string) NodeReference {
	return NodeReference{
		Target:  ref.ID,
		Amount:  b.amount(ref.Amount, where),
		Consume: ref.Consume,
		Unlock:  ref.Unlock,
	}
}

// amount converts a decoded value, resolving string values as constant
// names. A nil value stays unset.
func (b *graphBuilder) amount(raw any, where string) Amount {
	if name, ok := raw.(string); ok {
		return b.constant(name, where)
	}
	return b.literal(raw, where)
}

func (b *graphBuilder) constant(name, where string) Amount {
	if c, ok := b.graph.Constants[name]; ok {
		return c
	}
	b.graph.warnf("%s: unresolved constant %q, using true", where, name)
	return Bool(true)
}

func (b *graphBuilder) literal(raw any, where string) Amount {
	switch v := raw.(type) {
	case nil:
		return Amount{}
	case bool:
		return Bool(v)
	case int:
		return Number(float64(v))
	case int64:
		return Number(float64(v))
	case uint64:
		return Number(float64(v))
	case float64:
		return Number(v)
	default:
		b.graph.warnf("%s: unsupported amount %v, using true", where, raw)
		return Bool(true)
	}
}
