package compiler

import "fmt"

// Kind tags the statement variants.
type Kind int

const (
	BLOCK Kind = iota
	IF_STMT
	IF_ELSE
	WHILE_STMT
	CALL_STMT
)

var kindNames = [...]string{
	BLOCK:      "BLOCK",
	IF_STMT:    "IF",
	IF_ELSE:    "IF_ELSE",
	WHILE_STMT: "WHILE",
	CALL_STMT:  "CALL",
}

func (k Kind) String() string {
	if int(k) >= 0 && int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Statement is implemented by the five BL statement nodes. The set is closed:
// every type switch over Statement handles *Block, *If, *IfElse, *While and
// *Call.
type Statement interface {
	stmtNode()
	Kind() Kind
	String() string
}

// constructors is the kind -> empty node registry used by New.
var constructors = map[Kind]func() Statement{
	BLOCK:      func() Statement { return &Block{} },
	IF_STMT:    func() Statement { return &If{Body: &Block{}} },
	IF_ELSE:    func() Statement { return &IfElse{Then: &Block{}, Else: &Block{}} },
	WHILE_STMT: func() Statement { return &While{Body: &Block{}} },
	CALL_STMT:  func() Statement { return &Call{} },
}

// New returns an empty statement of the given kind. Child blocks are
// allocated, conditions and names are left zero.
func New(k Kind) Statement {
	ctor, ok := constructors[k]
	if !ok {
		panic(fmt.Sprintf("compiler: no constructor for %s", k))
	}
	return ctor()
}

// Empty returns a fresh, empty statement of the same kind as s.
func Empty(s Statement) Statement {
	return New(s.Kind())
}

// Block is an ordered sequence of statements executed in order.
//
//	CALL move CALL turnleft
//	^^^^^^^^^^^^^^^^^^^^^^^  Block{Stmts: [Call(move), Call(turnleft)]}
type Block struct {
	Stmts []Statement
	Line  int
}

func (*Block) stmtNode()  {}
func (*Block) Kind() Kind { return BLOCK }
func (b *Block) String() string {
	return fmt.Sprintf("Block(len=%d)", len(b.Stmts))
}

// Len returns the number of children.
func (b *Block) Len() int { return len(b.Stmts) }

// Child returns the i-th child.
func (b *Block) Child(i int) Statement { return b.Stmts[i] }

// Add inserts s at position pos (0 <= pos <= Len).
func (b *Block) Add(pos int, s Statement) {
	b.Stmts = append(b.Stmts, nil)
	copy(b.Stmts[pos+1:], b.Stmts[pos:])
	b.Stmts[pos] = s
}

// Append adds s after the last child.
func (b *Block) Append(s Statement) {
	b.Stmts = append(b.Stmts, s)
}

// Remove deletes and returns the child at pos.
func (b *Block) Remove(pos int) Statement {
	s := b.Stmts[pos]
	b.Stmts = append(b.Stmts[:pos], b.Stmts[pos+1:]...)
	return s
}

// If runs Body when Cond holds.
type If struct {
	Cond string
	Body *Block
	Line int
}

func (*If) stmtNode()  {}
func (*If) Kind() Kind { return IF_STMT }
func (i *If) String() string {
	return fmt.Sprintf("If(%s then %s)", i.Cond, i.Body)
}

// IfElse runs Then when Cond holds and Else otherwise.
type IfElse struct {
	Cond string
	Then *Block
	Else *Block
	Line int
}

func (*IfElse) stmtNode()  {}
func (*IfElse) Kind() Kind { return IF_ELSE }
func (i *IfElse) String() string {
	return fmt.Sprintf("IfElse(%s then %s else %s)", i.Cond, i.Then, i.Else)
}

// While repeats Body while Cond holds.
type While struct {
	Cond string
	Body *Block
	Line int
}

func (*While) stmtNode()  {}
func (*While) Kind() Kind { return WHILE_STMT }
func (w *While) String() string {
	return fmt.Sprintf("While(%s do %s)", w.Cond, w.Body)
}

// Call invokes a primitive or a user instruction by name.
//
//	CALL turnaround
//	     ^^^^^^^^^^  Call{Name: "turnaround"}
type Call struct {
	Name string
	Line int
}

func (*Call) stmtNode()  {}
func (*Call) Kind() Kind { return CALL_STMT }
func (c *Call) String() string {
	return fmt.Sprintf("Call(%s)", c.Name)
}

// Clone returns a deep copy of s.
func Clone(s Statement) Statement {
	out := Empty(s)
	switch n := s.(type) {
	case *Block:
		b := out.(*Block)
		b.Line = n.Line
		for _, child := range n.Stmts {
			b.Append(Clone(child))
		}
	case *If:
		c := out.(*If)
		c.Cond, c.Line = n.Cond, n.Line
		c.Body = cloneBlock(n.Body)
	case *IfElse:
		c := out.(*IfElse)
		c.Cond, c.Line = n.Cond, n.Line
		c.Then = cloneBlock(n.Then)
		c.Else = cloneBlock(n.Else)
	case *While:
		c := out.(*While)
		c.Cond, c.Line = n.Cond, n.Line
		c.Body = cloneBlock(n.Body)
	case *Call:
		c := out.(*Call)
		c.Name, c.Line = n.Name, n.Line
	default:
		panic(fmt.Sprintf("compiler: unhandled statement %T", s))
	}
	return out
}

func cloneBlock(b *Block) *Block {
	if b == nil {
		return &Block{}
	}
	return Clone(b).(*Block)
}

// Walk calls fn for s and every statement nested in it, parents first.
// Returning false from fn skips the node's children.
func Walk(s Statement, fn func(Statement) bool) {
	if b, ok := s.(*Block); ok && b == nil {
		return
	}
	if !fn(s) {
		return
	}
	switch n := s.(type) {
	case *Block:
		for _, child := range n.Stmts {
			Walk(child, fn)
		}
	case *If:
		Walk(n.Body, fn)
	case *IfElse:
		Walk(n.Then, fn)
		Walk(n.Else, fn)
	case *While:
		Walk(n.Body, fn)
	case *Call:
	default:
		panic(fmt.Sprintf("compiler: unhandled statement %T", s))
	}
}
