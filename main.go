// Command blc compiles BL programs into flat opcode streams.
//
// Usage:
//
//	blc [global flags] <command> [flags] <file>...
//
// Commands:
//
//	tokens     print the token stream of a source file
//	ast        print the parsed program
//	fmt        rewrite sources in canonical layout
//	check      lex, parse and validate sources without writing output
//	build      compile sources to .ops opcode files
//	disasm     list an .ops file as block-indented mnemonics
//	asm        encode a listing back into an .ops file
//	opcodes    print the encoding table of the configured machine
//	dumpconfig print the effective configuration
package main

import (
	"fmt"
	"os"

	"blc/pkg/compiler"
	"blc/pkg/config"

	"github.com/ethereum/go-ethereum/log"
	"github.com/fatih/color"
	"github.com/mattn/go-colorable"
	"github.com/mattn/go-isatty"
	"gopkg.in/urfave/cli.v1"
)

var (
	configFileFlag = cli.StringFlag{
		Name:  "config",
		Usage: "TOML configuration file",
	}
	verbosityFlag = cli.IntFlag{
		Name:  "verbosity",
		Usage: "Logging verbosity: 0=crit, 1=error, 2=warn, 3=info, 4=debug, 5=trace (default taken from config)",
		Value: -1,
	}
	laxFlag = cli.BoolFlag{
		Name:  "lax",
		Usage: "Skip unrecognized lexemes with a warning instead of failing",
	}
)

// loaded configuration, set up in before.
var cfg = config.Defaults

func newApp() *cli.App {
	app := cli.NewApp()
	app.Name = "blc"
	app.Usage = "the BL compiler"
	app.Version = "0.3.0"
	app.Flags = []cli.Flag{configFileFlag, verbosityFlag, laxFlag}
	app.Before = before
	app.Commands = []cli.Command{
		tokensCommand,
		astCommand,
		fmtCommand,
		checkCommand,
		buildCommand,
		disasmCommand,
		asmCommand,
		opcodesCommand,
		dumpConfigCommand,
	}
	return app
}

func main() {
	if err := newApp().Run(os.Args); err != nil {
		fatalf("%v", err)
	}
}

// before loads the configuration file and installs the terminal logger.
func before(ctx *cli.Context) error {
	cfg = config.Defaults
	if file := ctx.GlobalString(configFileFlag.Name); file != "" {
		loaded, err := config.Load(file)
		if err != nil {
			return err
		}
		cfg = *loaded
	}
	if v := ctx.GlobalInt(verbosityFlag.Name); v >= 0 {
		cfg.Log.Verbosity = v
	}
	if ctx.GlobalBool(laxFlag.Name) {
		cfg.Compiler.LaxLexing = true
	}

	useColor := !cfg.Log.NoColor && (isatty.IsTerminal(os.Stderr.Fd()) || isatty.IsCygwinTerminal(os.Stderr.Fd()))
	output := colorable.NewColorableStderr()
	if !useColor {
		output = colorable.NewNonColorable(os.Stderr)
	}
	level := log.FromLegacyLevel(cfg.Log.Verbosity)
	log.SetDefault(log.NewLogger(log.NewTerminalHandlerWithLevel(output, level, useColor)))
	color.NoColor = !useColor
	return nil
}

// compileOptions returns the pipeline options of the loaded configuration.
func compileOptions() compiler.Options {
	opts, err := cfg.CompileOptions(log.Root())
	if err != nil {
		fatalf("%v", err)
	}
	return opts
}

func fatalf(format string, args ...any) {
	color.New(color.FgRed, color.Bold).Fprint(os.Stderr, "Fatal: ")
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
