package config

import (
	"os"
	"path/filepath"
	"testing"

	"blc/pkg/compiler"
	"blc/pkg/opcode"

	"github.com/ethereum/go-ethereum/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "blc.toml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad(t *testing.T) {
	path := writeConfig(t, `
[Compiler]
LaxLexing = true
MaxDepth = 64

[Machine.Primitives]
turn = 7
step = 8

[Log]
Verbosity = 5
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.True(t, cfg.Compiler.LaxLexing)
	assert.Equal(t, 64, cfg.Compiler.MaxDepth)
	assert.Equal(t, compiler.DefaultMaxOutput, cfg.Compiler.MaxOutput, "unset keys keep their defaults")
	assert.Equal(t, 5, cfg.Log.Verbosity)

	set, err := cfg.Opcodes()
	require.NoError(t, err)
	code, ok := set.Primitive("turn")
	assert.True(t, ok)
	assert.Equal(t, 7, code)
	assert.False(t, set.IsPrimitive("move"))
}

func TestLoad_Errors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.toml"))
	assert.Error(t, err)

	path := writeConfig(t, "[Compiler]\nMaxDepht = 3\n")
	_, err = Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "MaxDepht")

	path = writeConfig(t, "[Compiler]\nMaxDepth = \"deep\"\n")
	_, err = Load(path)
	assert.Error(t, err)
}

func TestDefaultsRoundTrip(t *testing.T) {
	cfg := Defaults
	cfg.Machine.Primitives = map[string]int{"turn": 7}
	out, err := Marshal(&cfg)
	require.NoError(t, err)

	path := writeConfig(t, string(out))
	back, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, cfg.Compiler, back.Compiler)
	assert.Equal(t, cfg.Log, back.Log)
	assert.Equal(t, cfg.Machine.Primitives, back.Machine.Primitives)
}

func TestOpcodes(t *testing.T) {
	cfg := Defaults
	set, err := cfg.Opcodes()
	require.NoError(t, err)
	code, _ := set.Primitive("infect")
	assert.Equal(t, opcode.Infect, code)

	cfg.Machine.Conditions = map[string]int{"true": 200}
	_, err = cfg.Opcodes()
	require.Error(t, err, "a partial condition table is rejected")

	cfg.Machine.Conditions = nil
	cfg.Machine.Primitives = map[string]int{"move": 240}
	_, err = cfg.Opcodes()
	assert.Error(t, err)
}

func TestCompileOptions(t *testing.T) {
	cfg := Defaults
	cfg.Compiler.LaxLexing = true
	cfg.Compiler.MaxOutput = 2
	cfg.Machine.Primitives = map[string]int{"turn": 7}

	opts, err := cfg.CompileOptions(log.New())
	require.NoError(t, err)
	assert.True(t, opts.LaxLexing)

	res, err := compiler.Compile("PROGRAM p IS BEGIN CALL turn CALL turn END p", opts)
	require.NoError(t, err)
	assert.Equal(t, []int{7, 7}, res.Code)

	_, err = compiler.Compile("PROGRAM p IS BEGIN CALL turn CALL turn CALL turn END p", opts)
	var resErr *compiler.ResourceExhaustedError
	require.ErrorAs(t, err, &resErr)
}
