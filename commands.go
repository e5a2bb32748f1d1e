package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"blc/pkg/asm"
	"blc/pkg/compiler"
	"blc/pkg/config"

	"github.com/davecgh/go-spew/spew"
	"github.com/ethereum/go-ethereum/log"
	"github.com/olekukonko/tablewriter"
	"gopkg.in/urfave/cli.v1"
)

var (
	outFlag = cli.StringFlag{
		Name:  "out",
		Usage: "output file (default: input with .ops extension)",
	}
	listingFlag = cli.BoolFlag{
		Name:  "listing",
		Usage: "print the disassembly of each compiled program",
	}
	dumpFlag = cli.BoolFlag{
		Name:  "dump",
		Usage: "dump the Go data structures instead of BL source",
	}
	writeFlag = cli.BoolFlag{
		Name:  "w",
		Usage: "write result to the source file instead of stdout",
	}
	tableFlag = cli.BoolFlag{
		Name:  "table",
		Usage: "print a table of offsets, codes and mnemonics",
	}
	offsetsFlag = cli.BoolFlag{
		Name:  "offsets",
		Usage: "prefix every listing line with its code offset",
	}

	tokensCommand = cli.Command{
		Action:    tokensCmd,
		Name:      "tokens",
		Usage:     "Print the token stream of a BL source file",
		ArgsUsage: "<file.bl>",
	}
	astCommand = cli.Command{
		Action:    astCmd,
		Name:      "ast",
		Usage:     "Print the parsed program",
		ArgsUsage: "<file.bl>",
		Flags:     []cli.Flag{dumpFlag},
	}
	fmtCommand = cli.Command{
		Action:    fmtCmd,
		Name:      "fmt",
		Usage:     "Rewrite BL sources in canonical layout",
		ArgsUsage: "<file.bl>...",
		Flags:     []cli.Flag{writeFlag},
		Description: `Without -w the formatted program is printed with includes expanded.
-w rewrites files in place and refuses sources holding #include lines or
comments, and always lexes strictly.`,
	}
	checkCommand = cli.Command{
		Action:    checkCmd,
		Name:      "check",
		Usage:     "Lex, parse and validate BL sources",
		ArgsUsage: "<file.bl>...",
	}
	buildCommand = cli.Command{
		Action:    buildCmd,
		Name:      "build",
		Usage:     "Compile BL sources to opcode files",
		ArgsUsage: "<file.bl>...",
		Flags:     []cli.Flag{outFlag, listingFlag},
		Description: `Each source is compiled to a .ops file holding the opcodes as
space separated decimal integers. --out is only allowed with a single source.`,
	}
	disasmCommand = cli.Command{
		Action:    disasmCmd,
		Name:      "disasm",
		Usage:     "List an opcode file as mnemonics",
		ArgsUsage: "<file.ops>",
		Flags:     []cli.Flag{tableFlag, offsetsFlag},
	}
	asmCommand = cli.Command{
		Action:    asmCmd,
		Name:      "asm",
		Usage:     "Encode a mnemonic listing into an opcode file",
		ArgsUsage: "<file.lst>",
		Flags:     []cli.Flag{outFlag},
	}
	opcodesCommand = cli.Command{
		Action: opcodesCmd,
		Name:   "opcodes",
		Usage:  "Print the opcode table of the configured machine",
	}
	dumpConfigCommand = cli.Command{
		Action:      dumpConfig,
		Name:        "dumpconfig",
		Usage:       "Show configuration values",
		ArgsUsage:   "[<file.toml>]",
		Description: `The dumpconfig command shows configuration values.`,
	}
)

func requireArgs(ctx *cli.Context, n int) error {
	if ctx.NArg() < n {
		return fmt.Errorf("%s: missing arguments, usage: %s %s", ctx.Command.Name, ctx.Command.Name, ctx.Command.ArgsUsage)
	}
	return nil
}

// readSource loads a source file with its includes resolved.
func readSource(path string) (string, error) {
	source, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return compiler.Preprocess(string(source), filepath.Dir(path))
}

func parseFile(path string, opts compiler.Options) (*compiler.Program, error) {
	src, err := readSource(path)
	if err != nil {
		return nil, err
	}
	lexer := &compiler.Lexer{Strict: !opts.LaxLexing, Log: log.Root()}
	q, err := lexer.Tokenize(strings.NewReader(src))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	prog, err := compiler.NewParser(q,
		compiler.WithSource(src),
		compiler.WithInstructionSet(opts.Opcodes),
		compiler.WithMaxNesting(opts.MaxNesting),
	).Parse()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return prog, nil
}

func tokensCmd(ctx *cli.Context) error {
	if err := requireArgs(ctx, 1); err != nil {
		return err
	}
	path := ctx.Args().First()
	src, err := readSource(path)
	if err != nil {
		return err
	}
	lexer := &compiler.Lexer{Strict: !cfg.Compiler.LaxLexing, Log: log.Root()}
	q, err := lexer.Tokenize(strings.NewReader(src))
	if err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}

	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"Line", "Type", "Lexeme"})
	for _, tok := range q.Tokens() {
		table.Append([]string{strconv.Itoa(tok.Line), tok.Type.String(), tok.Lexeme})
	}
	table.Render()
	return nil
}

func astCmd(ctx *cli.Context) error {
	if err := requireArgs(ctx, 1); err != nil {
		return err
	}
	prog, err := parseFile(ctx.Args().First(), compileOptions())
	if err != nil {
		return err
	}
	if ctx.Bool(dumpFlag.Name) {
		cs := spew.ConfigState{Indent: "  ", DisablePointerAddresses: true, DisableCapacities: true, SortKeys: true}
		cs.Fdump(os.Stdout, prog)
		return nil
	}
	return compiler.Format(os.Stdout, prog)
}

func fmtCmd(ctx *cli.Context) error {
	if err := requireArgs(ctx, 1); err != nil {
		return err
	}
	opts := compileOptions()
	write := ctx.Bool(writeFlag.Name)
	if write {
		// A rewrite must not lose anything the printer cannot reproduce.
		opts.LaxLexing = false
	}
	for _, path := range ctx.Args() {
		if write {
			if err := checkRewritable(path); err != nil {
				return err
			}
		}
		prog, err := parseFile(path, opts)
		if err != nil {
			return err
		}
		if !write {
			if err := compiler.Format(os.Stdout, prog); err != nil {
				return err
			}
			continue
		}
		if err := os.WriteFile(path, []byte(compiler.Sprint(prog)), 0o644); err != nil {
			return err
		}
		log.Info("Formatted source", "file", path)
	}
	return nil
}

// checkRewritable refuses sources whose #include lines or comments would be
// dropped by reprinting the parsed program.
func checkRewritable(path string) error {
	source, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	for i, line := range strings.Split(string(source), "\n") {
		switch {
		case strings.HasPrefix(strings.TrimSpace(line), "#include"):
			return fmt.Errorf("fmt: %s:%d: cannot rewrite a source with #include lines", path, i+1)
		case strings.Contains(line, "//"):
			return fmt.Errorf("fmt: %s:%d: cannot rewrite a source with comments", path, i+1)
		}
	}
	return nil
}

func checkCmd(ctx *cli.Context) error {
	if err := requireArgs(ctx, 1); err != nil {
		return err
	}
	paths := []string(ctx.Args())
	results, err := compiler.CompileFiles(context.Background(), paths, compileOptions(), cfg.Compiler.Jobs)
	if err != nil {
		return err
	}
	for i, res := range results {
		log.Info("Program is valid", "file", paths[i], "name", res.Program.Name,
			"instructions", res.Program.Context.Len(), "unused", len(res.Unused), "opcodes", len(res.Code))
	}
	return nil
}

func buildCmd(ctx *cli.Context) error {
	if err := requireArgs(ctx, 1); err != nil {
		return err
	}
	paths := []string(ctx.Args())
	out := ctx.String(outFlag.Name)
	if out != "" && len(paths) > 1 {
		return fmt.Errorf("build: --out needs exactly one source, got %d", len(paths))
	}

	opts := compileOptions()
	results, err := compiler.CompileFiles(context.Background(), paths, opts, cfg.Compiler.Jobs)
	if err != nil {
		return err
	}
	for i, res := range results {
		output := out
		if output == "" {
			output = defaultOutputPath(paths[i])
		}
		if err := writeCode(output, res.Code); err != nil {
			return fmt.Errorf("failed to write opcode file %q: %v", output, err)
		}
		log.Info("Compiled program", "file", paths[i], "name", res.Program.Name, "opcodes", len(res.Code), "out", output)

		if ctx.Bool(listingFlag.Name) {
			listing, err := asm.Disassemble(res.Code, opts.Opcodes, true)
			if err != nil {
				return err
			}
			fmt.Printf("; %s\n%s", res.Program.Name, listing)
		}
	}
	return nil
}

func disasmCmd(ctx *cli.Context) error {
	if err := requireArgs(ctx, 1); err != nil {
		return err
	}
	code, err := readCode(ctx.Args().First())
	if err != nil {
		return err
	}
	set := compileOptions().Opcodes

	if ctx.Bool(tableFlag.Name) {
		instrs, verr := asm.Instructions(code, set)
		table := tablewriter.NewWriter(os.Stdout)
		table.SetHeader([]string{"Offset", "Codes", "Mnemonic"})
		for _, ins := range instrs {
			codes := strconv.Itoa(ins.Op)
			if ins.Cond >= 0 {
				codes += " " + strconv.Itoa(ins.Cond)
			}
			mnemonic := strings.Repeat("  ", ins.Depth) + strings.ReplaceAll(asm.Mnemonic(ins, set), "\n", "; ")
			table.Append([]string{strconv.Itoa(ins.Offset), codes, mnemonic})
		}
		table.Render()
		return verr
	}

	listing, err := asm.Disassemble(code, set, ctx.Bool(offsetsFlag.Name))
	fmt.Print(listing)
	return err
}

func asmCmd(ctx *cli.Context) error {
	if err := requireArgs(ctx, 1); err != nil {
		return err
	}
	path := ctx.Args().First()
	listing, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	set := compileOptions().Opcodes
	code, sourceMap, err := asm.NewAssembler(set).Assemble(string(listing))
	if err != nil {
		return fmt.Errorf("%s: %v", path, err)
	}
	if errs := asm.Verify(code, set); len(errs) > 0 {
		for _, e := range errs {
			log.Error("Malformed opcode stream", "file", path, "line", sourceMap[e.Offset], "offset", e.Offset, "err", e.Message)
		}
		return &errs[0]
	}

	output := ctx.String(outFlag.Name)
	if output == "" {
		output = defaultOutputPath(path)
	}
	if err := writeCode(output, code); err != nil {
		return err
	}
	log.Info("Assembled listing", "file", path, "opcodes", len(code), "out", output)
	return nil
}

func opcodesCmd(ctx *cli.Context) error {
	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"Code", "Name", "Kind"})
	for _, e := range compileOptions().Opcodes.Table() {
		table.Append([]string{strconv.Itoa(e.Code), e.Name, e.Kind})
	}
	table.Render()
	return nil
}

func dumpConfig(ctx *cli.Context) error {
	out, err := config.Marshal(&cfg)
	if err != nil {
		return err
	}

	dump := os.Stdout
	if ctx.NArg() > 0 {
		dump, err = os.OpenFile(ctx.Args().Get(0), os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0644)
		if err != nil {
			return err
		}
		defer dump.Close()
	}
	_, err = dump.Write(out)
	return err
}

func defaultOutputPath(inPath string) string {
	ext := filepath.Ext(inPath)
	if ext == "" {
		return inPath + ".ops"
	}
	return strings.TrimSuffix(inPath, ext) + ".ops"
}

// writeCode stores opcodes as space separated decimal integers.
func writeCode(path string, code []int) error {
	fields := make([]string, len(code))
	for i, c := range code {
		fields[i] = strconv.Itoa(c)
	}
	return os.WriteFile(path, []byte(strings.Join(fields, " ")+"\n"), 0o644)
}

func readCode(path string) ([]int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	fields := strings.Fields(string(data))
	code := make([]int, 0, len(fields))
	for i, f := range fields {
		c, err := strconv.Atoi(f)
		if err != nil || c < 0 {
			return nil, fmt.Errorf("%s: invalid opcode %q at offset %d", path, f, i)
		}
		code = append(code, c)
	}
	return code, nil
}
