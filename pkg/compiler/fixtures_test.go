package compiler

import (
	"errors"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"blc/pkg/asm"
	"blc/pkg/opcode"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
	"golang.org/x/tools/txtar"
)

// TestFixtures compiles every testdata/*.txtar archive. An archive holds
// input.bl and either a "want" file of space separated opcodes or an "error"
// file naming the expected failure class.
func TestFixtures(t *testing.T) {
	files, err := filepath.Glob(filepath.Join("testdata", "*.txtar"))
	require.NoError(t, err)
	require.NotEmpty(t, files)

	for _, file := range files {
		t.Run(strings.TrimSuffix(filepath.Base(file), ".txtar"), func(t *testing.T) {
			ar, err := txtar.ParseFile(file)
			require.NoError(t, err)
			sections := make(map[string]string)
			for _, f := range ar.Files {
				sections[f.Name] = string(f.Data)
			}
			src, ok := sections["input.bl"]
			require.True(t, ok, "archive has no input.bl")

			res, err := Compile(src, Options{})
			if class, ok := sections["error"]; ok {
				require.Error(t, err)
				if got, want := errorClass(err), strings.TrimSpace(class); got != want {
					t.Fatalf("error class = %q (%v); want %q", got, err, want)
				}
				return
			}
			require.NoError(t, err)

			want := parseCodes(t, sections["want"])
			if diff := cmp.Diff(want, res.Code); diff != "" {
				t.Errorf("opcode mismatch (-want +got):\n%s", diff)
			}
			if diff := cmp.Diff(reference(t, res.Program), res.Code); diff != "" {
				t.Errorf("generator disagrees with reference expansion (-ref +got):\n%s", diff)
			}
			if errs := asm.Verify(res.Code, opcode.Default()); len(errs) != 0 {
				t.Errorf("generated stream is malformed: %v", errs)
			}
		})
	}
}

func errorClass(err error) string {
	var (
		lexErr   *LexicalError
		synErr   *SyntaxError
		undefErr *UndefinedInstructionError
		recErr   *RecursionError
		resErr   *ResourceExhaustedError
	)
	switch {
	case errors.As(err, &lexErr):
		return "lexical"
	case errors.As(err, &synErr):
		return "syntax"
	case errors.As(err, &undefErr):
		return "undefined"
	case errors.As(err, &recErr):
		return "recursion"
	case errors.As(err, &resErr):
		return "resource"
	}
	return "other"
}

func parseCodes(t *testing.T, s string) []int {
	t.Helper()
	var out []int
	for _, field := range strings.Fields(s) {
		n, err := strconv.Atoi(field)
		require.NoError(t, err)
		out = append(out, n)
	}
	return out
}

// reference expands p by plain substitution with no caching and no limits.
// Callers only use it on programs that compiled successfully.
func reference(t *testing.T, p *Program) []int {
	t.Helper()
	set := opcode.Default()
	var out []int
	var expand func(b *Block)
	expand = func(b *Block) {
		for _, s := range b.Stmts {
			switch n := s.(type) {
			case *Call:
				if code, ok := set.Primitive(n.Name); ok {
					out = append(out, code)
					continue
				}
				body, ok := p.Context.Lookup(n.Name)
				require.True(t, ok)
				expand(body)
			case *If:
				cond, _ := set.Condition(n.Cond)
				out = append(out, opcode.If, cond)
				expand(n.Body)
				out = append(out, opcode.End)
			case *IfElse:
				cond, _ := set.Condition(n.Cond)
				out = append(out, opcode.If, cond)
				expand(n.Then)
				out = append(out, opcode.Else)
				expand(n.Else)
				out = append(out, opcode.End)
			case *While:
				cond, _ := set.Condition(n.Cond)
				out = append(out, opcode.While, cond)
				expand(n.Body)
				out = append(out, opcode.End)
			}
		}
	}
	expand(p.Body)
	return out
}
