package compiler

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormat(t *testing.T) {
	prog := mustParse(t, `PROGRAM walker IS INSTRUCTION turnaround IS CALL turnleft CALL turnleft END turnaround
		BEGIN WHILE true IF next-is-wall CALL turnaround ELSE CALL move END IF END WHILE END walker`)

	want := `PROGRAM walker IS

  INSTRUCTION turnaround IS
    CALL turnleft
    CALL turnleft
  END turnaround

BEGIN
  WHILE true
    IF next-is-wall
      CALL turnaround
    ELSE
      CALL move
    END IF
  END WHILE
END walker
`
	if diff := cmp.Diff(want, Sprint(prog)); diff != "" {
		t.Errorf("Format mismatch (-want +got):\n%s", diff)
	}
}

func TestFormat_RoundTrip(t *testing.T) {
	inputs := []string{
		"PROGRAM p IS BEGIN END p",
		"PROGRAM p IS INSTRUCTION e IS END e BEGIN IF random END IF END p",
		`PROGRAM p IS
			INSTRUCTION a IS IF next-is-enemy CALL infect ELSE CALL b END IF END a
			INSTRUCTION b IS WHILE next-is-not-wall CALL move END WHILE CALL turnright END b
			BEGIN CALL a CALL b IF true ELSE CALL skip END IF END p`,
	}
	for _, src := range inputs {
		prog := mustParse(t, src)
		formatted := Sprint(prog)

		again, err := ParseString(formatted)
		require.NoError(t, err, "formatted output must parse:\n%s", formatted)
		if diff := cmp.Diff(prog.Body, again.Body, ignorePositions()); diff != "" {
			t.Errorf("body changed across round trip (-want +got):\n%s", diff)
		}
		assert.Equal(t, prog.Context.Names(), again.Context.Names())
		assert.Equal(t, formatted, Sprint(again), "Format is a fixed point")

		want, err := Generate(prog)
		require.NoError(t, err)
		got, err := Generate(again)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
}

func TestFormatStatement(t *testing.T) {
	var sb strings.Builder
	require.NoError(t, FormatStatement(&sb, &While{Cond: "true", Body: blk(call("move"))}, 1))
	assert.Equal(t, "  WHILE true\n    CALL move\n  END WHILE\n", sb.String())
}
