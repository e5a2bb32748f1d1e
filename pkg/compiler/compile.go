package compiler

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"blc/pkg/opcode"

	"github.com/ethereum/go-ethereum/log"
	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"
)

// Options configures a full compilation.
type Options struct {
	Opcodes *opcode.Set
	// LaxLexing drops unrecognized lexemes with a warning instead of
	// failing with a LexicalError.
	LaxLexing  bool
	MaxNesting int
	MaxDepth   int
	MaxOutput  int
	Log        log.Logger
}

// DefaultOptions returns strict lexing, the default instruction set and the
// default limits. Zero fields of an Options value fall back to these.
func DefaultOptions() Options {
	return Options{
		Opcodes:    opcode.Default(),
		MaxNesting: DefaultMaxNesting,
		MaxDepth:   DefaultMaxDepth,
		MaxOutput:  DefaultMaxOutput,
		Log:        log.Root(),
	}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.Opcodes == nil {
		o.Opcodes = d.Opcodes
	}
	if o.MaxNesting <= 0 {
		o.MaxNesting = d.MaxNesting
	}
	if o.MaxDepth <= 0 {
		o.MaxDepth = d.MaxDepth
	}
	if o.MaxOutput <= 0 {
		o.MaxOutput = d.MaxOutput
	}
	if o.Log == nil {
		o.Log = d.Log
	}
	return o
}

// Result is the product of a successful compilation.
type Result struct {
	Program *Program
	Code    []int
	Unused  []string // declared instructions the body never reaches
}

// Compile runs lex -> parse -> validate -> generate over src.
func Compile(src string, opts Options) (*Result, error) {
	opts = opts.withDefaults()

	lexer := &Lexer{Strict: !opts.LaxLexing, Log: opts.Log}
	q, err := lexer.Tokenize(strings.NewReader(src))
	if err != nil {
		return nil, err
	}

	prog, err := NewParser(q,
		WithSource(src),
		WithInstructionSet(opts.Opcodes),
		WithMaxNesting(opts.MaxNesting),
	).Parse()
	if err != nil {
		return nil, err
	}

	graph := BuildCallGraph(prog, opts.Opcodes)
	if err := graph.Validate(); err != nil {
		return nil, err
	}
	unused := graph.Unused()
	for _, name := range unused {
		opts.Log.Warn("Instruction is never called", "program", prog.Name, "instruction", name)
	}

	code, err := NewGenerator(
		WithOpcodes(opts.Opcodes),
		WithLimits(opts.MaxDepth, opts.MaxOutput),
		WithLogger(opts.Log),
	).Generate(prog)
	if err != nil {
		return nil, err
	}
	return &Result{Program: prog, Code: code, Unused: unused}, nil
}

// CompileFile reads path, resolves its includes and compiles it. Errors are
// prefixed with the file name; errors.As still reaches the typed cause.
func CompileFile(path string, opts Options) (*Result, error) {
	source, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "read %s", path)
	}
	src, err := Preprocess(string(source), filepath.Dir(path))
	if err != nil {
		return nil, errors.Wrapf(err, "preprocess %s", path)
	}
	res, err := Compile(src, opts)
	if err != nil {
		return nil, errors.Wrap(err, path)
	}
	return res, nil
}

// CompileFiles compiles paths concurrently, at most limit at a time
// (limit <= 0 means no bound), and returns results in input order. The first
// failure cancels the files not yet started.
func CompileFiles(ctx context.Context, paths []string, opts Options, limit int) ([]*Result, error) {
	results := make([]*Result, len(paths))
	g, ctx := errgroup.WithContext(ctx)
	if limit > 0 {
		g.SetLimit(limit)
	}
	for i, path := range paths {
		i, path := i, path
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			res, err := CompileFile(path, opts)
			if err != nil {
				return err
			}
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}
