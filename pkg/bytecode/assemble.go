package bytecode

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"

	"github.com/zurustar/padscript/pkg/opcode"
)

var (
	// ErrUnknownLabel is returned when a target has no Label marker.
	ErrUnknownLabel = errors.New("unknown label")

	// ErrDuplicateLabel is returned when a Label marker appears twice.
	ErrDuplicateLabel = errors.New("duplicate label")

	// ErrOperand is returned for operands an instruction cannot take.
	ErrOperand = errors.New("invalid operand")

	// ErrTooLarge is returned when the image or stack exceeds the u16 range.
	ErrTooLarge = errors.New("program too large")
)

// HeaderSize is the size of the stack-size header preceding the code.
const HeaderSize = 2

type patch struct {
	at     int
	target LabelID
}

type emitter struct {
	buf     []byte
	labels  map[LabelID]int
	patches []patch
}

func (e *emitter) op(m opcode.MainType, s opcode.SubType, v opcode.Variant) {
	e.buf = append(e.buf, opcode.Encode(m, s, v))
}

func (e *emitter) addr(a opcode.Addr) error {
	buf, err := a.Append(e.buf)
	if err != nil {
		return err
	}
	e.buf = buf
	return nil
}

func (e *emitter) target(l LabelID) {
	e.patches = append(e.patches, patch{at: len(e.buf), target: l})
	e.buf = append(e.buf, 0, 0)
}

// Assemble encodes a program, prefixed by its stack size, and resolves
// every jump and call target.
func Assemble(stackSize int, prog []Instruction) ([]byte, error) {
	if stackSize < 0 || stackSize > math.MaxUint16 {
		return nil, fmt.Errorf("%w: stack size %d", ErrTooLarge, stackSize)
	}
	e := &emitter{labels: make(map[LabelID]int)}
	e.buf = binary.LittleEndian.AppendUint16(e.buf, uint16(stackSize))

	for _, ins := range prog {
		if err := ins.encode(e); err != nil {
			return nil, fmt.Errorf("%s: %w", ins, err)
		}
	}

	for _, p := range e.patches {
		off, ok := e.labels[p.target]
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrUnknownLabel, p.target)
		}
		if off > math.MaxUint16 {
			return nil, fmt.Errorf("%w: %s at offset %d", ErrTooLarge, p.target, off)
		}
		binary.LittleEndian.PutUint16(e.buf[p.at:], uint16(off))
	}
	return e.buf, nil
}

// SourceType returns the type of an inline constant source for a binary
// operation on dst. Register destinations compute on ints; CAST takes
// the opposite type of its destination.
func SourceType(op opcode.SubType, dst opcode.Addr) opcode.ValueType {
	t := opcode.IntValue
	if dst.Kind == opcode.RegOffAddr {
		t = dst.Type
	}
	if op == opcode.Cast {
		t ^= 1
	}
	return t
}

func (l Label) encode(e *emitter) error {
	if _, ok := e.labels[l.ID]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateLabel, l.ID)
	}
	e.labels[l.ID] = len(e.buf) - HeaderSize
	return nil
}

func (b Binary) encode(e *emitter) error {
	if _, ok := opcode.Name(opcode.Binary, b.Op); !ok {
		return fmt.Errorf("%w: binary operation %d", ErrOperand, b.Op)
	}
	if b.Dst.IsConst() {
		return fmt.Errorf("%w: constant destination", ErrOperand)
	}
	v := opcode.VariantA
	if b.Src.IsConst() {
		if want := SourceType(b.Op, b.Dst); b.Src.Type != want {
			return fmt.Errorf("%w: constant %s does not match destination %s", ErrOperand, b.Src, b.Dst)
		}
		v = opcode.VariantC
	}
	e.op(opcode.Binary, b.Op, v)
	if err := e.addr(b.Dst); err != nil {
		return err
	}
	return e.addr(b.Src)
}

func (u Unary) encode(e *emitter) error {
	if _, ok := opcode.Name(opcode.Unary, u.Op); !ok {
		return fmt.Errorf("%w: unary operation %d", ErrOperand, u.Op)
	}
	if u.Dst.IsConst() {
		return fmt.Errorf("%w: constant destination", ErrOperand)
	}
	e.op(opcode.Unary, u.Op, opcode.VariantA)
	return e.addr(u.Dst)
}

func (c Call) encode(e *emitter) error {
	e.op(opcode.Flow, opcode.Call, opcode.VariantA)
	e.target(c.Target)
	return nil
}

func (Ret) encode(e *emitter) error {
	e.op(opcode.Flow, opcode.Ret, opcode.VariantA)
	return nil
}

func (Yield) encode(e *emitter) error {
	e.op(opcode.Flow, opcode.Yield, opcode.VariantA)
	return nil
}

func (j Jump) encode(e *emitter) error {
	e.op(opcode.Flow, opcode.Jump, opcode.VariantA)
	e.target(j.Target)
	return nil
}

func (j JZ) encode(e *emitter) error {
	v := opcode.VariantA
	if j.Cond.IsConst() {
		v = opcode.VariantCI
		if j.Cond.Type == opcode.FloatValue {
			v = opcode.VariantCF
		}
	}
	e.op(opcode.Flow, opcode.JZ, v)
	if err := e.addr(j.Cond); err != nil {
		return err
	}
	e.target(j.Target)
	return nil
}

func (p Push) encode(e *emitter) error {
	e.op(opcode.Stack, p.subtype(), opcode.VariantA)
	return e.addr(p.Src)
}

func (p Pop) encode(e *emitter) error {
	if p.Dst.Kind != opcode.RegAddr || (p.Dst.Reg != opcode.SP && p.Dst.Reg != opcode.TH) {
		return fmt.Errorf("%w: cannot pop into %s", ErrOperand, p.Dst)
	}
	e.op(opcode.Stack, opcode.Pop, opcode.VariantA)
	return e.addr(p.Dst)
}
