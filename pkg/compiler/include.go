package compiler

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	mapset "github.com/deckarep/golang-set"
)

const includeDirective = "#include"

// Preprocess splices instruction libraries into src. A line of the form
//
//	#include "turns.bl"
//
// is replaced by the content of that library, typically a run of INSTRUCTION
// definitions placed before BEGIN. Libraries are looked up relative to
// baseDir, then to the working directory, and may include other libraries.
// A library is spliced at most once; a library that reaches itself again
// through its own includes is an error.
func Preprocess(src string, baseDir string) (string, error) {
	inc := &includer{
		active:  mapset.NewThreadUnsafeSet(),
		spliced: mapset.NewThreadUnsafeSet(),
	}
	return inc.expand(src, baseDir)
}

// includer holds the absolute paths of libraries being expanded and of every
// library spliced so far.
type includer struct {
	active  mapset.Set
	spliced mapset.Set
}

func (inc *includer) expand(src, dir string) (string, error) {
	lines := strings.Split(src, "\n")
	out := make([]string, 0, len(lines))
	for i, line := range lines {
		name, ok, err := includeTarget(line)
		if err != nil {
			return "", fmt.Errorf("line %d: %w", i+1, err)
		}
		if !ok {
			out = append(out, line)
			continue
		}
		lib, err := inc.library(name, dir)
		if err != nil {
			return "", fmt.Errorf("line %d: %w", i+1, err)
		}
		out = append(out, lib)
	}
	return strings.Join(out, "\n"), nil
}

// includeTarget returns the library named by an include line. ok is false
// for any other line.
func includeTarget(line string) (name string, ok bool, err error) {
	rest, found := strings.CutPrefix(strings.TrimSpace(line), includeDirective)
	if !found {
		return "", false, nil
	}
	name, err = strconv.Unquote(strings.TrimSpace(stripComment(rest)))
	if err != nil || name == "" {
		return "", false, fmt.Errorf("malformed %s, want %s \"file.bl\": %s", includeDirective, includeDirective, strings.TrimSpace(line))
	}
	return name, true, nil
}

// library returns the expanded content of name, or "" if it was already
// spliced.
func (inc *includer) library(name, dir string) (string, error) {
	path := filepath.Join(dir, name)
	if _, err := os.Stat(path); err != nil {
		if _, cwdErr := os.Stat(name); cwdErr == nil {
			path = name
		}
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}
	if inc.active.Contains(abs) {
		return "", fmt.Errorf("include loop through library %s", name)
	}
	if !inc.spliced.Add(abs) {
		return "", nil
	}

	content, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("library %s: %w", name, err)
	}
	inc.active.Add(abs)
	defer inc.active.Remove(abs)

	out, err := inc.expand(string(content), filepath.Dir(path))
	if err != nil {
		return "", fmt.Errorf("%s: %w", name, err)
	}
	return out, nil
}
