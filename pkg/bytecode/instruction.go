// Package bytecode models machine instructions, assembles them into an
// action image and decodes images back into listings.
//
// An action image is a u16 little-endian stack size followed by the
// instruction stream. Jump and call targets are u16 little-endian offsets
// measured from the start of the instruction stream.
package bytecode

import (
	"fmt"
	"strings"

	"github.com/zurustar/padscript/pkg/opcode"
)

// LabelID names a jump or call target.
type LabelID int

func (l LabelID) String() string {
	return fmt.Sprintf("L%d", int(l))
}

// Instruction is one element of a program. Label markers are instructions
// that emit no bytes.
type Instruction interface {
	fmt.Stringer
	encode(e *emitter) error
}

// Label marks the position its ID resolves to.
type Label struct {
	ID LabelID
}

// Binary computes dst = dst op src.
type Binary struct {
	Op  opcode.SubType
	Dst opcode.Addr
	Src opcode.Addr
}

// Unary modifies Dst in place.
type Unary struct {
	Op  opcode.SubType
	Dst opcode.Addr
}

// Call pushes the return address and jumps to Target.
type Call struct {
	Target LabelID
}

// Ret returns to the address on top of the stack.
type Ret struct{}

// Yield suspends the VM until the next step.
type Yield struct{}

// Jump continues execution at Target.
type Jump struct {
	Target LabelID
}

// JZ jumps to Target when Cond equals zero.
type JZ struct {
	Cond   opcode.Addr
	Target LabelID
}

// Push pushes an operand or literal.
type Push struct {
	Src opcode.Addr
}

// Pop pops into a register.
type Pop struct {
	Dst opcode.Addr
}

func (l Label) String() string { return l.ID.String() + ":" }

func (b Binary) String() string {
	return fmt.Sprintf("\t%s\t%s, %s", b.Mnemonic(), b.Dst, b.Src)
}

// Mnemonic returns the operation name with its variant suffix.
func (b Binary) Mnemonic() string {
	name, _ := opcode.Name(opcode.Binary, b.Op)
	if b.Src.IsConst() {
		return name + "C"
	}
	return name + "A"
}

func (u Unary) String() string {
	name, _ := opcode.Name(opcode.Unary, u.Op)
	return fmt.Sprintf("\t%s\t%s", name, u.Dst)
}

func (c Call) String() string { return "\tCALL\t" + c.Target.String() }
func (Ret) String() string    { return "\tRET" }
func (Yield) String() string  { return "\tYIELD" }
func (j Jump) String() string { return "\tJUMP\t" + j.Target.String() }
func (j JZ) String() string   { return fmt.Sprintf("\t%s\t%s, %s", j.Mnemonic(), j.Cond, j.Target) }
func (p Push) String() string { return fmt.Sprintf("\t%s\t%s", p.Mnemonic(), p.Src) }
func (p Pop) String() string  { return fmt.Sprintf("\tPOP\t%s", p.Dst) }

// Mnemonic returns JZ, JZI or JZF depending on the condition operand.
func (j JZ) Mnemonic() string {
	switch {
	case !j.Cond.IsConst():
		return "JZ"
	case j.Cond.Type == opcode.FloatValue:
		return "JZF"
	}
	return "JZI"
}

// Mnemonic returns PUSH, PUSHI or PUSHF depending on the operand.
func (p Push) Mnemonic() string {
	name, _ := opcode.Name(opcode.Stack, p.subtype())
	return name
}

func (p Push) subtype() opcode.SubType {
	switch {
	case !p.Src.IsConst():
		return opcode.Push
	case p.Src.Type == opcode.FloatValue:
		return opcode.PushF
	}
	return opcode.PushI
}

// Listing renders a program one instruction per line.
func Listing(prog []Instruction) string {
	var out strings.Builder
	for _, ins := range prog {
		out.WriteString(ins.String())
		out.WriteByte('\n')
	}
	return out.String()
}
