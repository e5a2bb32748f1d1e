package compiler

import "fmt"

// DefaultProgramName is the name of a freshly constructed Program.
const DefaultProgramName = "Unnamed"

// Context maps instruction names to their bodies. Names are unique and the
// declaration order is remembered.
type Context struct {
	bodies map[string]*Block
	order  []string
}

// NewContext returns an empty context.
func NewContext() *Context {
	return &Context{bodies: make(map[string]*Block)}
}

// Add declares an instruction. Redefining a name is an error.
func (c *Context) Add(name string, body *Block) error {
	if _, exists := c.bodies[name]; exists {
		return fmt.Errorf("instruction %q already defined", name)
	}
	c.bodies[name] = body
	c.order = append(c.order, name)
	return nil
}

// Lookup returns the body of an instruction.
func (c *Context) Lookup(name string) (*Block, bool) {
	b, ok := c.bodies[name]
	return b, ok
}

// Has reports whether name is declared.
func (c *Context) Has(name string) bool {
	_, ok := c.bodies[name]
	return ok
}

// Remove deletes an instruction and returns its body.
func (c *Context) Remove(name string) (*Block, bool) {
	b, ok := c.bodies[name]
	if !ok {
		return nil, false
	}
	delete(c.bodies, name)
	for i, n := range c.order {
		if n == name {
			c.order = append(c.order[:i], c.order[i+1:]...)
			break
		}
	}
	return b, true
}

// Names returns the instruction names in declaration order.
func (c *Context) Names() []string {
	out := make([]string, len(c.order))
	copy(out, c.order)
	return out
}

// Len returns the number of declared instructions.
func (c *Context) Len() int { return len(c.order) }

// Program is a parsed BL program: a name, the user instructions and the
// main body.
type Program struct {
	Name    string
	Context *Context
	Body    *Block
}

// NewProgram returns an empty program named "Unnamed".
func NewProgram() *Program {
	p := &Program{}
	p.Reset()
	return p
}

// Reset restores p to the state NewProgram returns.
func (p *Program) Reset() {
	p.Name = DefaultProgramName
	p.Context = NewContext()
	p.Body = &Block{}
}

// Clone returns a deep copy of p.
func (p *Program) Clone() *Program {
	out := &Program{Name: p.Name, Context: NewContext(), Body: cloneBlock(p.Body)}
	for _, name := range p.Context.Names() {
		body, _ := p.Context.Lookup(name)
		_ = out.Context.Add(name, cloneBlock(body))
	}
	return out
}

func (p *Program) String() string {
	return Sprint(p)
}
