package compiler

import (
	"blc/pkg/opcode"

	mapset "github.com/deckarep/golang-set"
)

// Resolution classifies an instruction name met in a CALL.
type Resolution int

const (
	Primitive  Resolution = iota // built into the machine
	Expandable                   // declared and not on the current path
	Undefined                    // neither primitive nor declared
	InProgress                   // already being expanded: a cycle
)

func (r Resolution) String() string {
	switch r {
	case Primitive:
		return "primitive"
	case Expandable:
		return "expandable"
	case Undefined:
		return "undefined"
	case InProgress:
		return "in-progress"
	}
	return "unknown"
}

// Resolve decides how a CALL to name is handled given the instructions
// currently being expanded.
func Resolve(name string, set *opcode.Set, ctx *Context, expanding mapset.Set) Resolution {
	switch {
	case set.IsPrimitive(name):
		return Primitive
	case expanding != nil && expanding.Contains(name):
		return InProgress
	case !ctx.Has(name):
		return Undefined
	default:
		return Expandable
	}
}

// edge is one CALL site.
type edge struct {
	callee string
	line   int
}

// CallGraph is the instruction name graph of a program: an edge A -> B for
// every CALL B inside the body of A. Primitive calls are not edges.
type CallGraph struct {
	set   *opcode.Set
	names []string // declaration order
	edges map[string][]edge
	roots []edge // user calls made by the program body
}

// BuildCallGraph derives the call graph of p under the instruction set.
func BuildCallGraph(p *Program, set *opcode.Set) *CallGraph {
	g := &CallGraph{
		set:   set,
		names: p.Context.Names(),
		edges: make(map[string][]edge),
	}
	for _, name := range g.names {
		body, _ := p.Context.Lookup(name)
		g.edges[name] = g.collect(body)
	}
	g.roots = g.collect(p.Body)
	return g
}

// collect lists the non-primitive calls inside s, in source order, once each.
func (g *CallGraph) collect(s *Block) []edge {
	var out []edge
	seen := mapset.NewThreadUnsafeSet()
	Walk(s, func(n Statement) bool {
		if c, ok := n.(*Call); ok && !g.set.IsPrimitive(c.Name) && seen.Add(c.Name) {
			out = append(out, edge{callee: c.Name, line: c.Line})
		}
		return true
	})
	return out
}

// Names returns the instructions in declaration order.
func (g *CallGraph) Names() []string { return g.names }

// Callees returns the distinct non-primitive names called by instruction name.
func (g *CallGraph) Callees(name string) []string {
	return calleeNames(g.edges[name])
}

// Roots returns the distinct non-primitive names called by the program body.
func (g *CallGraph) Roots() []string {
	return calleeNames(g.roots)
}

func calleeNames(edges []edge) []string {
	out := make([]string, len(edges))
	for i, e := range edges {
		out[i] = e.callee
	}
	return out
}

// Reachable returns the set of instructions reachable from the program body.
func (g *CallGraph) Reachable() mapset.Set {
	reachable := mapset.NewThreadUnsafeSet()
	var worklist []string

	add := func(name string) {
		if _, declared := g.edges[name]; declared && reachable.Add(name) {
			worklist = append(worklist, name)
		}
	}
	for _, r := range g.roots {
		add(r.callee)
	}
	for len(worklist) > 0 {
		curr := worklist[0]
		worklist = worklist[1:]
		for _, e := range g.edges[curr] {
			add(e.callee)
		}
	}
	return reachable
}

// Unused lists declared instructions the program body never reaches, in
// declaration order.
func (g *CallGraph) Unused() []string {
	reachable := g.Reachable()
	var out []string
	for _, name := range g.names {
		if !reachable.Contains(name) {
			out = append(out, name)
		}
	}
	return out
}

// Validate checks every instruction, reachable or not: all calls must
// resolve and the graph must be acyclic. Instructions are visited in
// declaration order so the reported cycle does not depend on which caller
// the program body reaches first.
func (g *CallGraph) Validate() error {
	for _, e := range g.roots {
		if _, ok := g.edges[e.callee]; !ok {
			return &UndefinedInstructionError{Name: e.callee, Line: e.line}
		}
	}

	done := mapset.NewThreadUnsafeSet()
	onPath := mapset.NewThreadUnsafeSet()
	var path []string

	var visit func(name string) error
	visit = func(name string) error {
		if done.Contains(name) {
			return nil
		}
		onPath.Add(name)
		path = append(path, name)
		for _, e := range g.edges[name] {
			if _, ok := g.edges[e.callee]; !ok {
				return &UndefinedInstructionError{Name: e.callee, Line: e.line}
			}
			if onPath.Contains(e.callee) {
				return newRecursionError(path, e.callee)
			}
			if err := visit(e.callee); err != nil {
				return err
			}
		}
		path = path[:len(path)-1]
		onPath.Remove(name)
		done.Add(name)
		return nil
	}

	for _, name := range g.names {
		if err := visit(name); err != nil {
			return err
		}
	}
	return nil
}

// newRecursionError cuts the cycle closing at name out of path.
func newRecursionError(path []string, name string) *RecursionError {
	start := 0
	for i, n := range path {
		if n == name {
			start = i
			break
		}
	}
	cycle := append(append([]string(nil), path[start:]...), name)
	return &RecursionError{Name: name, Path: cycle}
}

// Validate checks p against the default instruction set.
func Validate(p *Program) error {
	return BuildCallGraph(p, opcode.Default()).Validate()
}
