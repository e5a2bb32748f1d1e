// Package opcode publishes the integer encoding shared between the BL code
// generator and the virtual machine that executes its output.
//
// A generated program is a flat sequence of non-negative integers:
//
//	0..4      primitive actions (move, turnleft, turnright, infect, skip)
//	16..25    condition tests, only ever found right after IF or WHILE
//	240..243  control markers IF, ELSE, WHILE, END
//
// Control structures are bracketed so the stream decodes without addresses:
//
//	IF c <then> END
//	IF c <then> ELSE <else> END
//	WHILE c <body> END
package opcode

import (
	"fmt"
	"sort"
)

// Primitive actions.
const (
	Move      = 0
	TurnLeft  = 1
	TurnRight = 2
	Infect    = 3
	Skip      = 4
)

// Condition tests.
const (
	NextIsEmpty     = 16
	NextIsNotEmpty  = 17
	NextIsWall      = 18
	NextIsNotWall   = 19
	NextIsFriend    = 20
	NextIsNotFriend = 21
	NextIsEnemy     = 22
	NextIsNotEnemy  = 23
	Random          = 24
	True            = 25
)

// Control markers. Every primitive or condition code must stay below
// ControlBase.
const (
	ControlBase = 240

	If    = 240
	Else  = 241
	While = 242
	End   = 243
)

// ConditionNames lists the BL condition tests in their published order.
var ConditionNames = []string{
	"next-is-empty",
	"next-is-not-empty",
	"next-is-wall",
	"next-is-not-wall",
	"next-is-friend",
	"next-is-not-friend",
	"next-is-enemy",
	"next-is-not-enemy",
	"random",
	"true",
}

var controlNames = map[int]string{
	If:    "IF",
	Else:  "ELSE",
	While: "WHILE",
	End:   "END",
}

// ControlName returns the mnemonic of a control marker.
func ControlName(code int) (string, bool) {
	name, ok := controlNames[code]
	return name, ok
}

// IsControl reports whether code is one of the reserved control markers.
func IsControl(code int) bool {
	_, ok := controlNames[code]
	return ok
}

// Set maps primitive and condition names to the opcodes a particular machine
// understands. The zero value is empty; use Default or NewSet.
type Set struct {
	primitives map[string]int
	conditions map[string]int

	// reverse lookups for decoding
	primByCode map[int]string
	condByCode map[int]string
}

// Default returns the published BL instruction set.
func Default() *Set {
	s, err := NewSet(
		map[string]int{
			"move":      Move,
			"turnleft":  TurnLeft,
			"turnright": TurnRight,
			"infect":    Infect,
			"skip":      Skip,
		},
		map[string]int{
			"next-is-empty":      NextIsEmpty,
			"next-is-not-empty":  NextIsNotEmpty,
			"next-is-wall":       NextIsWall,
			"next-is-not-wall":   NextIsNotWall,
			"next-is-friend":     NextIsFriend,
			"next-is-not-friend": NextIsNotFriend,
			"next-is-enemy":      NextIsEnemy,
			"next-is-not-enemy":  NextIsNotEnemy,
			"random":             Random,
			"true":               True,
		},
	)
	if err != nil {
		panic(err)
	}
	return s
}

// NewSet builds an instruction set. Codes must be non-negative, below
// ControlBase and unique across primitives and conditions. A nil conditions
// map selects the default condition codes.
func NewSet(primitives, conditions map[string]int) (*Set, error) {
	if conditions == nil {
		conditions = make(map[string]int, len(ConditionNames))
		for i, name := range ConditionNames {
			conditions[name] = NextIsEmpty + i
		}
	}
	s := &Set{
		primitives: make(map[string]int, len(primitives)),
		conditions: make(map[string]int, len(conditions)),
		primByCode: make(map[int]string, len(primitives)),
		condByCode: make(map[int]string, len(conditions)),
	}
	used := make(map[int]string)
	claim := func(name string, code int) error {
		if code < 0 || code >= ControlBase {
			return fmt.Errorf("opcode %d for %q outside range 0..%d", code, name, ControlBase-1)
		}
		if other, ok := used[code]; ok {
			return fmt.Errorf("opcode %d assigned to both %q and %q", code, other, name)
		}
		used[code] = name
		return nil
	}

	for _, name := range sortedKeys(primitives) {
		if isCondition(name) {
			return nil, fmt.Errorf("primitive %q collides with a condition name", name)
		}
		code := primitives[name]
		if err := claim(name, code); err != nil {
			return nil, err
		}
		s.primitives[name] = code
		s.primByCode[code] = name
	}
	for _, name := range sortedKeys(conditions) {
		if !isCondition(name) {
			return nil, fmt.Errorf("unknown condition %q", name)
		}
		code := conditions[name]
		if err := claim(name, code); err != nil {
			return nil, err
		}
		s.conditions[name] = code
		s.condByCode[code] = name
	}
	for _, name := range ConditionNames {
		if _, ok := s.conditions[name]; !ok {
			return nil, fmt.Errorf("condition %q has no opcode", name)
		}
	}
	return s, nil
}

// Primitive returns the opcode of a primitive action.
func (s *Set) Primitive(name string) (int, bool) {
	code, ok := s.primitives[name]
	return code, ok
}

// IsPrimitive reports whether name is a primitive action of this set.
func (s *Set) IsPrimitive(name string) bool {
	_, ok := s.primitives[name]
	return ok
}

// Condition returns the opcode of a condition test.
func (s *Set) Condition(name string) (int, bool) {
	code, ok := s.conditions[name]
	return code, ok
}

// PrimitiveName decodes a primitive opcode.
func (s *Set) PrimitiveName(code int) (string, bool) {
	name, ok := s.primByCode[code]
	return name, ok
}

// ConditionName decodes a condition opcode.
func (s *Set) ConditionName(code int) (string, bool) {
	name, ok := s.condByCode[code]
	return name, ok
}

// Primitives returns the primitive names in opcode order.
func (s *Set) Primitives() []string {
	names := make([]string, 0, len(s.primitives))
	for name := range s.primitives {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool {
		return s.primitives[names[i]] < s.primitives[names[j]]
	})
	return names
}

// PrimitiveCodes returns a copy of the name -> opcode table of primitives.
func (s *Set) PrimitiveCodes() map[string]int {
	out := make(map[string]int, len(s.primitives))
	for name, code := range s.primitives {
		out[name] = code
	}
	return out
}

// Entry is one row of the encoding table.
type Entry struct {
	Code int
	Name string
	Kind string // "action", "condition" or "control"
}

// Table returns every opcode known to the set, ordered by code.
func (s *Set) Table() []Entry {
	var out []Entry
	for name, code := range s.primitives {
		out = append(out, Entry{Code: code, Name: name, Kind: "action"})
	}
	for name, code := range s.conditions {
		out = append(out, Entry{Code: code, Name: name, Kind: "condition"})
	}
	for code, name := range controlNames {
		out = append(out, Entry{Code: code, Name: name, Kind: "control"})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out
}

func isCondition(name string) bool {
	for _, c := range ConditionNames {
		if c == name {
			return true
		}
	}
	return false
}

func sortedKeys(m map[string]int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
