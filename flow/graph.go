package flow

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
)

// End is the terminal marker. An edge or router producing End completes
// the instance.
const End = "__end__"

// Router computes the successor node name from the current state. It is
// evaluated after the node it is attached to has executed and its update
// has been merged. Routers should be pure functions of state.
type Router func(st State) string

// GraphBuilder assembles a workflow graph. Construction order is free;
// validation happens in Build.
type GraphBuilder struct {
	nodes   map[string]Node
	edges   map[string]string
	routers map[string]Router
	entry   string
	errs    []error
}

// NewGraph returns an empty builder.
func NewGraph() *GraphBuilder {
	return &GraphBuilder{
		nodes:   make(map[string]Node),
		edges:   make(map[string]string),
		routers: make(map[string]Router),
	}
}

// Add registers a node under a unique name.
func (b *GraphBuilder) Add(name string, node Node) *GraphBuilder {
	switch {
	case name == "":
		b.errs = append(b.errs, fmt.Errorf("node name cannot be empty"))
	case name == End:
		b.errs = append(b.errs, fmt.Errorf("node name %q is reserved", End))
	case node == nil:
		b.errs = append(b.errs, fmt.Errorf("node %q cannot be nil", name))
	default:
		if _, exists := b.nodes[name]; exists {
			b.errs = append(b.errs, fmt.Errorf("duplicate node %q", name))
			return b
		}
		b.nodes[name] = node
	}
	return b
}

// SetEntry designates the entry node.
func (b *GraphBuilder) SetEntry(name string) *GraphBuilder {
	b.entry = name
	return b
}

// Connect adds a fixed edge from one node to another (or to End).
func (b *GraphBuilder) Connect(from, to string) *GraphBuilder {
	if from == "" || to == "" {
		b.errs = append(b.errs, fmt.Errorf("edge endpoints cannot be empty"))
		return b
	}
	if _, dup := b.edges[from]; dup {
		b.errs = append(b.errs, fmt.Errorf("node %q already has a fixed edge", from))
		return b
	}
	b.edges[from] = to
	return b
}

// Route attaches a router function to a node. A node has either a fixed
// edge or a router, not both.
func (b *GraphBuilder) Route(from string, r Router) *GraphBuilder {
	if from == "" || r == nil {
		b.errs = append(b.errs, fmt.Errorf("router for %q is invalid", from))
		return b
	}
	if _, dup := b.routers[from]; dup {
		b.errs = append(b.errs, fmt.Errorf("node %q already has a router", from))
		return b
	}
	b.routers[from] = r
	return b
}

// Build validates the topology and freezes it into an immutable Graph.
//
// Validation: entry is set and registered; every fixed edge references a
// registered node or End; no node carries both a fixed edge and a router.
// Router targets are by nature dynamic and are checked at runtime
// (ErrRouting).
func (b *GraphBuilder) Build() (*Graph, error) {
	errs := b.errs

	if b.entry == "" {
		errs = append(errs, fmt.Errorf("entry node not set"))
	} else if _, ok := b.nodes[b.entry]; !ok {
		errs = append(errs, fmt.Errorf("entry node %q not registered", b.entry))
	}

	for from, to := range b.edges {
		if _, ok := b.nodes[from]; !ok {
			errs = append(errs, fmt.Errorf("edge source %q not registered", from))
		}
		if to != End {
			if _, ok := b.nodes[to]; !ok {
				errs = append(errs, fmt.Errorf("edge %q -> %q targets unknown node", from, to))
			}
		}
		if _, both := b.routers[from]; both {
			errs = append(errs, fmt.Errorf("node %q has both a fixed edge and a router", from))
		}
	}
	for from := range b.routers {
		if _, ok := b.nodes[from]; !ok {
			errs = append(errs, fmt.Errorf("router source %q not registered", from))
		}
	}

	if len(errs) > 0 {
		parts := make([]string, len(errs))
		for i, e := range errs {
			parts[i] = e.Error()
		}
		return nil, fmt.Errorf("invalid graph: %s", strings.Join(parts, "; "))
	}

	g := &Graph{
		nodes:   b.nodes,
		edges:   b.edges,
		routers: b.routers,
		entry:   b.entry,
	}
	g.version = g.computeVersion()
	return g, nil
}

// Graph is an immutable workflow definition, built once at process start
// and shared read-only across all concurrent executions.
type Graph struct {
	nodes   map[string]Node
	edges   map[string]string
	routers map[string]Router
	entry   string
	version string
}

// Entry returns the entry node name.
func (g *Graph) Entry() string {
	return g.entry
}

// Node looks up a registered node.
func (g *Graph) Node(name string) (Node, bool) {
	n, ok := g.nodes[name]
	return n, ok
}

// Nodes returns the sorted node name set.
func (g *Graph) Nodes() []string {
	names := make([]string, 0, len(g.nodes))
	for name := range g.nodes {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Version is a stable hash of the topology, exposed for diagnostics.
// Two processes running the same graph report the same version.
func (g *Graph) Version() string {
	return g.version
}

// next resolves the successor of a node after its update has been merged.
// Precedence: explicit hint (handled by the executor) > fixed edge >
// router. Returns ErrRouting if the resolved name is not registered.
func (g *Graph) next(from string, st State) (string, error) {
	if to, ok := g.edges[from]; ok {
		return to, nil
	}
	if r, ok := g.routers[from]; ok {
		to := r(st)
		if to == End {
			return End, nil
		}
		if _, known := g.nodes[to]; !known {
			return "", fmt.Errorf("%w: router for %q returned unknown node %q", ErrRouting, from, to)
		}
		return to, nil
	}
	return "", fmt.Errorf("%w: node %q has no successor", ErrRouting, from)
}

// router returns the router attached to a node, used on resume to let the
// approval decision pick the successor.
func (g *Graph) router(from string) (Router, bool) {
	r, ok := g.routers[from]
	return r, ok
}

func (g *Graph) computeVersion() string {
	h := sha256.New()
	for _, name := range g.Nodes() {
		h.Write([]byte(name))
		h.Write([]byte{0})
		if to, ok := g.edges[name]; ok {
			h.Write([]byte("->" + to))
		}
		if _, ok := g.routers[name]; ok {
			h.Write([]byte("->?"))
		}
		h.Write([]byte{0})
	}
	h.Write([]byte("entry:" + g.entry))
	return "sha256:" + hex.EncodeToString(h.Sum(nil))[:16]
}
