// Package filtergraph builds ffmpeg filter graphs as typed values.
//
// Nodes hold a linear chain of filters between labeled pads. Nothing is
// turned into filtergraph text until Render, which is the only place
// escaping happens.
package filtergraph

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Pad is a labeled stream. Input stream specifiers look like "0:v" or
// "1:a"; everything else is an internal link label.
type Pad string

// IsInputStream reports whether p refers to a stream of an input file.
func (p Pad) IsInputStream() bool {
	s := string(p)
	i := strings.IndexByte(s, ':')
	if i <= 0 {
		return false
	}
	_, err := strconv.Atoi(s[:i])
	return err == nil
}

// Param is a filter option. An empty Key renders positionally.
type Param struct {
	Key   string
	Value string
}

// KV builds a keyed option, formatting numbers compactly.
func KV(key string, v any) Param {
	return Param{Key: key, Value: format(v)}
}

// Pos builds a positional option.
func Pos(v any) Param {
	return Param{Value: format(v)}
}

// Filter is one filter invocation.
type Filter struct {
	Name   string
	Params []Param
}

// F is shorthand for constructing a Filter.
func F(name string, params ...Param) Filter {
	return Filter{Name: name, Params: params}
}

// String renders the filter with graph-level escaping applied.
func (f Filter) String() string {
	if len(f.Params) == 0 {
		return f.Name
	}
	parts := make([]string, len(f.Params))
	for i, p := range f.Params {
		v := escapeGraph(escapeOption(p.Value))
		if p.Key == "" {
			parts[i] = v
		} else {
			parts[i] = p.Key + "=" + v
		}
	}
	return f.Name + "=" + strings.Join(parts, ":")
}

// Node applies Chain to Inputs and produces Outputs. Source filters such
// as anullsrc have no inputs.
type Node struct {
	Inputs  []Pad
	Chain   []Filter
	Outputs []Pad
}

// Graph is an ordered set of nodes.
type Graph struct {
	nodes  []Node
	labels map[string]int
}

// New returns an empty graph.
func New() *Graph {
	return &Graph{labels: make(map[string]int)}
}

// Label returns a fresh link label with the given prefix.
func (g *Graph) Label(prefix string) Pad {
	n := g.labels[prefix]
	g.labels[prefix] = n + 1
	return Pad(fmt.Sprintf("%s%d", prefix, n))
}

// Add appends a node. Outputs are returned for convenient chaining.
func (g *Graph) Add(inputs []Pad, chain []Filter, outputs ...Pad) []Pad {
	g.nodes = append(g.nodes, Node{Inputs: inputs, Chain: chain, Outputs: outputs})
	return outputs
}

// Pipe is Add for the common single-in single-out case.
func (g *Graph) Pipe(in Pad, prefix string, chain ...Filter) Pad {
	out := g.Label(prefix)
	g.Add([]Pad{in}, chain, out)
	return out
}

// Nodes returns the nodes in insertion order.
func (g *Graph) Nodes() []Node {
	return g.nodes
}

// Validate checks that every link label is produced once before it is
// consumed, consumed at most once, and that every entry of mapped is
// either an input stream or an unconsumed produced label.
func (g *Graph) Validate(mapped []Pad) error {
	produced := make(map[Pad]bool)
	consumed := make(map[Pad]bool)
	for i, n := range g.nodes {
		if len(n.Chain) == 0 {
			return fmt.Errorf("filtergraph: node %d has no filters", i)
		}
		for _, in := range n.Inputs {
			if in.IsInputStream() {
				continue
			}
			if !produced[in] {
				return fmt.Errorf("filtergraph: node %d consumes unknown label %q", i, in)
			}
			if consumed[in] {
				return fmt.Errorf("filtergraph: label %q consumed twice", in)
			}
			consumed[in] = true
		}
		for _, out := range n.Outputs {
			if produced[out] {
				return fmt.Errorf("filtergraph: label %q produced twice", out)
			}
			produced[out] = true
		}
	}
	for _, m := range mapped {
		if m.IsInputStream() || strings.HasSuffix(string(m), "?") {
			continue
		}
		if !produced[m] {
			return fmt.Errorf("filtergraph: mapped label %q is never produced", m)
		}
		if consumed[m] {
			return fmt.Errorf("filtergraph: mapped label %q is already consumed", m)
		}
	}
	return nil
}

// Render produces the -filter_complex argument.
func (g *Graph) Render() string {
	stmts := make([]string, len(g.nodes))
	for i, n := range g.nodes {
		var b strings.Builder
		for _, in := range n.Inputs {
			b.WriteString("[" + string(in) + "]")
		}
		b.WriteString(Chain(n.Chain...))
		for _, out := range n.Outputs {
			b.WriteString("[" + string(out) + "]")
		}
		stmts[i] = b.String()
	}
	return strings.Join(stmts, ";")
}

// Chain renders filters as a comma-separated linear chain, suitable for
// -vf / -af.
func Chain(filters ...Filter) string {
	parts := make([]string, len(filters))
	for i, f := range filters {
		parts[i] = f.String()
	}
	return strings.Join(parts, ",")
}

// MapArg renders a pad the way -map expects it.
func MapArg(p Pad) string {
	if p.IsInputStream() {
		return string(p)
	}
	return "[" + string(p) + "]"
}

func format(v any) string {
	switch x := v.(type) {
	case string:
		return x
	case float64:
		return Num(x)
	case int:
		return strconv.Itoa(x)
	case bool:
		if x {
			return "1"
		}
		return "0"
	default:
		return fmt.Sprint(x)
	}
}

// Num formats a float without trailing zeros, rounded to microseconds.
func Num(v float64) string {
	r := math.Round(v*1e6) / 1e6
	if r == 0 {
		r = 0 // normalise -0
	}
	return strconv.FormatFloat(r, 'f', -1, 64)
}

// Option level: the filter's own key=value parser splits on ':'.
func escapeOption(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `'`, `\'`, `:`, `\:`)
	return r.Replace(s)
}

// Graph level: the graph parser splits on ',', ';' and brackets.
func escapeGraph(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `'`, `\'`, `[`, `\[`, `]`, `\]`, `,`, `\,`, `;`, `\;`)
	return r.Replace(s)
}
