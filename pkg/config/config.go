// Package config loads blc settings from a TOML file. Keys use the Go field
// names, as in:
//
//	[Compiler]
//	LaxLexing = false
//	MaxDepth = 1024
//
//	[Machine.Primitives]
//	turn = 7
//
//	[Log]
//	Verbosity = 3
package config

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"reflect"

	"blc/pkg/compiler"
	"blc/pkg/opcode"

	"github.com/ethereum/go-ethereum/log"
	"github.com/naoina/toml"
)

// These settings ensure that TOML keys use the same names as Go struct fields.
var tomlSettings = toml.Config{
	NormFieldName: func(rt reflect.Type, key string) string {
		return key
	},
	FieldToKey: func(rt reflect.Type, field string) string {
		return field
	},
	MissingField: func(rt reflect.Type, field string) error {
		return fmt.Errorf("field '%s' is not defined in %s", field, rt.String())
	},
}

// CompilerConfig holds the pipeline limits and lexing mode.
type CompilerConfig struct {
	LaxLexing  bool
	MaxNesting int
	MaxDepth   int
	MaxOutput  int
	// Jobs bounds how many files build compiles at once; 0 means no bound.
	Jobs int
}

// MachineConfig describes the instruction set of the target machine. An
// empty Primitives table selects the published BL set.
type MachineConfig struct {
	Primitives map[string]int `toml:",omitempty"`
	Conditions map[string]int `toml:",omitempty"`
}

// LogConfig selects the log verbosity (0 = critical only, 5 = trace) and
// whether terminal colours may be used.
type LogConfig struct {
	Verbosity int
	NoColor   bool
}

// Config is the top level configuration file.
type Config struct {
	Compiler CompilerConfig
	Machine  MachineConfig
	Log      LogConfig
}

// Defaults holds the settings used when no file overrides them.
var Defaults = Config{
	Compiler: CompilerConfig{
		MaxNesting: compiler.DefaultMaxNesting,
		MaxDepth:   compiler.DefaultMaxDepth,
		MaxOutput:  compiler.DefaultMaxOutput,
		Jobs:       4,
	},
	Log: LogConfig{
		Verbosity: 3,
	},
}

// Load reads file on top of the defaults.
func Load(file string) (*Config, error) {
	cfg := Defaults
	if err := loadConfig(file, &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func loadConfig(file string, cfg *Config) error {
	f, err := os.Open(file)
	if err != nil {
		return err
	}
	defer f.Close()

	err = tomlSettings.NewDecoder(bufio.NewReader(f)).Decode(cfg)
	// Add file name to errors that have a line number.
	if _, ok := err.(*toml.LineError); ok {
		err = errors.New(file + ", " + err.Error())
	}
	return err
}

// Marshal encodes cfg in the file format Load reads.
func Marshal(cfg *Config) ([]byte, error) {
	return tomlSettings.Marshal(cfg)
}

// Opcodes builds the instruction set described by the Machine section.
func (c *Config) Opcodes() (*opcode.Set, error) {
	if len(c.Machine.Primitives) == 0 && len(c.Machine.Conditions) == 0 {
		return opcode.Default(), nil
	}
	primitives, conditions := c.Machine.Primitives, c.Machine.Conditions
	if len(primitives) == 0 {
		primitives = opcode.Default().PrimitiveCodes()
	}
	if len(conditions) == 0 {
		conditions = nil
	}
	set, err := opcode.NewSet(primitives, conditions)
	if err != nil {
		return nil, fmt.Errorf("invalid [Machine] section: %v", err)
	}
	return set, nil
}

// CompileOptions converts the configuration into pipeline options logging
// to logger.
func (c *Config) CompileOptions(logger log.Logger) (compiler.Options, error) {
	set, err := c.Opcodes()
	if err != nil {
		return compiler.Options{}, err
	}
	return compiler.Options{
		Opcodes:    set,
		LaxLexing:  c.Compiler.LaxLexing,
		MaxNesting: c.Compiler.MaxNesting,
		MaxDepth:   c.Compiler.MaxDepth,
		MaxOutput:  c.Compiler.MaxOutput,
		Log:        logger,
	}, nil
}
