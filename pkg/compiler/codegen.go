package compiler

import (
	"fmt"

	"blc/pkg/opcode"

	mapset "github.com/deckarep/golang-set"
	"github.com/ethereum/go-ethereum/log"
	lru "github.com/hashicorp/golang-lru"
)

const (
	// DefaultMaxDepth bounds inlining depth plus statement nesting.
	DefaultMaxDepth = 1024
	// DefaultMaxOutput bounds the number of opcodes one program may produce.
	DefaultMaxOutput = 1 << 20

	expansionCacheSize = 256
)

// Generator lowers a Program into a flat opcode sequence, inlining every
// user instruction. A Generator is not safe for concurrent use.
type Generator struct {
	set       *opcode.Set
	maxDepth  int
	maxOutput int
	log       log.Logger

	// per-run state
	prog      *Program
	expanding mapset.Set // instructions whose body is on the inlining stack
	path      []string   // same names, in stack order, for error reports
	depth     int
	peak      int // deepest depth reached by the innermost open expansion
	emitted   int
	done      *lru.ARCCache // instruction name -> expansion
}

// expansion is the inlined body of a completed instruction and the depth it
// needed below its call site.
type expansion struct {
	code  []int
	depth int
}

// GeneratorOption configures a Generator.
type GeneratorOption func(*Generator)

// WithOpcodes selects the machine instruction set.
func WithOpcodes(set *opcode.Set) GeneratorOption {
	return func(g *Generator) { g.set = set }
}

// WithLimits sets the depth and output bounds. Non-positive values keep the
// defaults.
func WithLimits(maxDepth, maxOutput int) GeneratorOption {
	return func(g *Generator) {
		if maxDepth > 0 {
			g.maxDepth = maxDepth
		}
		if maxOutput > 0 {
			g.maxOutput = maxOutput
		}
	}
}

// WithLogger routes expansion traces to l.
func WithLogger(l log.Logger) GeneratorOption {
	return func(g *Generator) { g.log = l }
}

func NewGenerator(opts ...GeneratorOption) *Generator {
	g := &Generator{
		set:       opcode.Default(),
		maxDepth:  DefaultMaxDepth,
		maxOutput: DefaultMaxOutput,
		log:       log.Root(),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

func (g *Generator) reset(p *Program) {
	g.prog = p
	g.expanding = mapset.NewThreadUnsafeSet()
	g.path = g.path[:0]
	g.depth = 0
	g.peak = 0
	g.emitted = 0
	cache, err := lru.NewARC(expansionCacheSize)
	if err != nil {
		panic(err)
	}
	g.done = cache
}

// Generate returns the opcodes of every primitive action p performs, in
// execution order, with all user instructions inlined. p is only read. On
// error no output is returned.
func (g *Generator) Generate(p *Program) ([]int, error) {
	g.reset(p)
	defer func() { g.prog, g.done = nil, nil }()

	var out []int
	if err := g.genBlock(p.Body, &out); err != nil {
		return nil, err
	}
	g.log.Debug("Generated program", "name", p.Name, "opcodes", len(out))
	return out, nil
}

// emit appends codes to out, enforcing the output bound.
func (g *Generator) emit(out *[]int, codes ...int) error {
	g.emitted += len(codes)
	if g.emitted > g.maxOutput {
		return &ResourceExhaustedError{Resource: "output", Limit: g.maxOutput}
	}
	*out = append(*out, codes...)
	return nil
}

// enter / leave track nesting of both statements and inlined calls.
func (g *Generator) enter() error {
	if g.depth >= g.maxDepth {
		return &ResourceExhaustedError{Resource: "depth", Limit: g.maxDepth}
	}
	g.depth++
	if g.depth > g.peak {
		g.peak = g.depth
	}
	return nil
}

func (g *Generator) leave() { g.depth-- }

func (g *Generator) condition(name string, line int) (int, error) {
	code, ok := g.set.Condition(name)
	if !ok {
		return 0, fmt.Errorf("line %d: unknown condition %q", line, name)
	}
	return code, nil
}

func (g *Generator) genBlock(b *Block, out *[]int) error {
	if b == nil {
		return nil
	}
	for _, s := range b.Stmts {
		if err := g.genStmt(s, out); err != nil {
			return err
		}
	}
	return nil
}

func (g *Generator) genStmt(s Statement, out *[]int) error {
	if err := g.enter(); err != nil {
		return err
	}
	defer g.leave()

	switch n := s.(type) {
	case *Block:
		return g.genBlock(n, out)

	case *If:
		cond, err := g.condition(n.Cond, n.Line)
		if err != nil {
			return err
		}
		if err := g.emit(out, opcode.If, cond); err != nil {
			return err
		}
		if err := g.genBlock(n.Body, out); err != nil {
			return err
		}
		return g.emit(out, opcode.End)

	case *IfElse:
		cond, err := g.condition(n.Cond, n.Line)
		if err != nil {
			return err
		}
		if err := g.emit(out, opcode.If, cond); err != nil {
			return err
		}
		if err := g.genBlock(n.Then, out); err != nil {
			return err
		}
		if err := g.emit(out, opcode.Else); err != nil {
			return err
		}
		if err := g.genBlock(n.Else, out); err != nil {
			return err
		}
		return g.emit(out, opcode.End)

	case *While:
		cond, err := g.condition(n.Cond, n.Line)
		if err != nil {
			return err
		}
		if err := g.emit(out, opcode.While, cond); err != nil {
			return err
		}
		if err := g.genBlock(n.Body, out); err != nil {
			return err
		}
		return g.emit(out, opcode.End)

	case *Call:
		return g.genCall(n, out)

	default:
		return fmt.Errorf("unhandled statement %T", s)
	}
}

// genCall emits a primitive opcode or splices in the expansion of a user
// instruction.
func (g *Generator) genCall(c *Call, out *[]int) error {
	switch Resolve(c.Name, g.set, g.prog.Context, g.expanding) {
	case Primitive:
		code, _ := g.set.Primitive(c.Name)
		return g.emit(out, code)
	case InProgress:
		return newRecursionError(g.path, c.Name)
	case Undefined:
		return &UndefinedInstructionError{Name: c.Name, Line: c.Line}
	}

	// A completed expansion cannot contain a cycle, so it is valid on any
	// later path as long as it still fits under the depth bound.
	if cached, ok := g.done.Get(c.Name); ok {
		exp := cached.(*expansion)
		if g.depth+exp.depth > g.maxDepth {
			return &ResourceExhaustedError{Resource: "depth", Limit: g.maxDepth}
		}
		if g.depth+exp.depth > g.peak {
			g.peak = g.depth + exp.depth
		}
		return g.emit(out, exp.code...)
	}

	body, _ := g.prog.Context.Lookup(c.Name)
	g.log.Trace("Expanding instruction", "name", c.Name, "depth", len(g.path)+1)

	outerPeak, start := g.peak, g.depth
	g.peak = start
	g.expanding.Add(c.Name)
	g.path = append(g.path, c.Name)
	var code []int
	err := g.genBlock(body, &code)
	g.path = g.path[:len(g.path)-1]
	g.expanding.Remove(c.Name)
	if err != nil {
		return err
	}
	exp := &expansion{code: code, depth: g.peak - start}
	if outerPeak > g.peak {
		g.peak = outerPeak
	}

	// emitted already counts the expansion; splice without recounting.
	*out = append(*out, code...)
	g.done.Add(c.Name, exp)
	return nil
}

// Generate lowers p with the default instruction set and limits.
func Generate(p *Program) ([]int, error) {
	return NewGenerator().Generate(p)
}
