// Package opcode defines the instruction set of the action virtual machine.
// This package is the foundation that both the code generator and the VM depend on.
// The code generator emits opcode bytes and addressing modes, and the VM decodes them.
//
// An opcode is a single byte laid out as maintype:2 | subtype:4 | variant:2,
// most significant bit first.
package opcode

import "fmt"

// MainType is the 2-bit instruction class.
type MainType byte

// Instruction classes.
const (
	// Binary operations take a destination and a source: dst = dst op src.
	Binary MainType = 0x00

	// Unary operations modify their single operand in place.
	Unary MainType = 0x01

	// Flow instructions change the program counter.
	Flow MainType = 0x02

	// Stack instructions push to or pop from the VM stack.
	Stack MainType = 0x03
)

// SubType is the 4-bit operation selector. Its meaning depends on the MainType.
type SubType byte

// Binary subtypes.
const (
	Add  SubType = 0x00
	Sub  SubType = 0x01
	Mul  SubType = 0x02
	Div  SubType = 0x03
	CLT  SubType = 0x04 // dst = dst < src
	CGT  SubType = 0x05 // dst = dst > src
	CLTE SubType = 0x06 // dst = dst <= src
	CGTE SubType = 0x07 // dst = dst >= src
	CE   SubType = 0x08 // dst = dst == src
	CN   SubType = 0x09 // dst = dst != src
	And  SubType = 0x0A
	Or   SubType = 0x0B

	// Load copies src into dst, converting between int and float storage.
	Load SubType = 0x0C

	// Cast converts src numerically into the type of dst.
	Cast SubType = 0x0D
)

// Unary subtypes.
const (
	Neg SubType = 0x00
	Not SubType = 0x01
)

// Flow subtypes.
const (
	// Call pushes the return address and jumps to an inline u16 target.
	Call SubType = 0x00

	// Ret pops the return address and jumps to it.
	Ret SubType = 0x01

	// Yield suspends execution until the next step.
	Yield SubType = 0x02

	// Jump sets the program counter to an inline u16 target.
	Jump SubType = 0x03

	// JZ jumps to an inline u16 target when its condition equals zero.
	JZ SubType = 0x04
)

// Stack subtypes.
const (
	PushI SubType = 0x00 // inline i16
	PushF SubType = 0x01 // inline f32
	Push  SubType = 0x02 // addressed operand
	Pop   SubType = 0x03 // addressed operand, SP or TH only
)

// Variant is the 2-bit operand class of the source (binary) or condition (JZ).
type Variant byte

const (
	// VariantA selects an addressed operand (register or register+offset).
	VariantA Variant = 0x00

	// VariantC selects an inline i16 or f32 constant, typed like the destination.
	VariantC Variant = 0x01

	// VariantCI and VariantCF select an inline int or float condition for JZ.
	VariantCI Variant = 0x01
	VariantCF Variant = 0x02
)

// Encode packs an opcode byte.
func Encode(m MainType, s SubType, v Variant) byte {
	return byte(m&0x03)<<6 | byte(s&0x0F)<<2 | byte(v&0x03)
}

// Split unpacks an opcode byte.
func Split(b byte) (MainType, SubType, Variant) {
	return MainType(b >> 6), SubType((b >> 2) & 0x0F), Variant(b & 0x03)
}

var binaryNames = []string{"ADD", "SUB", "MUL", "DIV", "CLT", "CGT", "CLTE", "CGTE", "CE", "CN", "AND", "OR", "LOAD", "CAST"}
var unaryNames = []string{"NEG", "NOT"}
var flowNames = []string{"CALL", "RET", "YIELD", "JUMP", "JZ"}
var stackNames = []string{"PUSHI", "PUSHF", "PUSH", "POP"}

// Name returns the base mnemonic of an operation, without variant suffix.
func Name(m MainType, s SubType) (string, bool) {
	var names []string
	switch m {
	case Binary:
		names = binaryNames
	case Unary:
		names = unaryNames
	case Flow:
		names = flowNames
	case Stack:
		names = stackNames
	}
	if int(s) >= len(names) {
		return "", false
	}
	return names[s], true
}

// Mnemonic returns the assembler name of an opcode byte, including the
// variant suffix used by binary operations and JZ.
func Mnemonic(b byte) (string, error) {
	m, s, v := Split(b)
	name, ok := Name(m, s)
	if !ok {
		return "", fmt.Errorf("invalid opcode 0x%02X", b)
	}
	switch {
	case m == Binary:
		switch v {
		case VariantA:
			return name + "A", nil
		case VariantC:
			return name + "C", nil
		}
	case m == Flow && s == JZ:
		switch v {
		case VariantA:
			return name, nil
		case VariantCI:
			return name + "I", nil
		case VariantCF:
			return name + "F", nil
		}
	case v == VariantA:
		return name, nil
	}
	return "", fmt.Errorf("invalid variant %d for opcode 0x%02X", v, b)
}
