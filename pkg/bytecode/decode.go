package bytecode

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/zurustar/padscript/pkg/opcode"
)

// ErrTruncated is returned when an image ends in the middle of an instruction.
var ErrTruncated = errors.New("truncated bytecode")

// Decoded is one instruction read back from an instruction stream.
type Decoded struct {
	Offset   int
	Raw      []byte
	Opcode   byte
	Mnemonic string
	Operands []opcode.Addr

	// Target is the jump or call destination when HasTarget is set.
	Target    int
	HasTarget bool
}

func (d Decoded) String() string {
	args := make([]string, 0, len(d.Operands)+1)
	for _, a := range d.Operands {
		args = append(args, a.String())
	}
	if d.HasTarget {
		args = append(args, fmt.Sprintf("%d", d.Target))
	}
	if len(args) == 0 {
		return d.Mnemonic
	}
	return d.Mnemonic + "\t" + strings.Join(args, ", ")
}

// ParseHeader splits an action image into its stack size and instruction stream.
func ParseHeader(image []byte) (int, []byte, error) {
	if len(image) < HeaderSize {
		return 0, nil, fmt.Errorf("%w: missing header", ErrTruncated)
	}
	return int(binary.LittleEndian.Uint16(image)), image[HeaderSize:], nil
}

// DecodeOne decodes the instruction at offset off of code.
func DecodeOne(code []byte, off int) (Decoded, error) {
	if off < 0 || off >= len(code) {
		return Decoded{}, fmt.Errorf("%w: offset %d", ErrTruncated, off)
	}
	b := code[off]
	name, err := opcode.Mnemonic(b)
	if err != nil {
		return Decoded{}, fmt.Errorf("offset %d: %w", off, err)
	}
	d := Decoded{Offset: off, Opcode: b, Mnemonic: name}
	pos := off + 1

	addr := func() (opcode.Addr, error) {
		a, n, err := opcode.DecodeAddr(code[pos:])
		if err != nil {
			return a, fmt.Errorf("offset %d: %w", off, err)
		}
		pos += n
		return a, nil
	}
	literal := func(t opcode.ValueType) (opcode.Addr, error) {
		a, n, err := opcode.DecodeConst(code[pos:], t)
		if err != nil {
			return a, fmt.Errorf("offset %d: %w", off, err)
		}
		pos += n
		return a, nil
	}
	target := func() error {
		if pos+2 > len(code) {
			return fmt.Errorf("%w: offset %d", ErrTruncated, off)
		}
		d.Target = int(binary.LittleEndian.Uint16(code[pos:]))
		d.HasTarget = true
		pos += 2
		return nil
	}

	m, s, v := opcode.Split(b)
	switch m {
	case opcode.Binary:
		dst, err := addr()
		if err != nil {
			return d, err
		}
		var src opcode.Addr
		if v == opcode.VariantC {
			src, err = literal(SourceType(s, dst))
		} else {
			src, err = addr()
		}
		if err != nil {
			return d, err
		}
		d.Operands = []opcode.Addr{dst, src}

	case opcode.Unary:
		dst, err := addr()
		if err != nil {
			return d, err
		}
		d.Operands = []opcode.Addr{dst}

	case opcode.Flow:
		switch s {
		case opcode.Call, opcode.Jump:
			if err := target(); err != nil {
				return d, err
			}
		case opcode.JZ:
			var cond opcode.Addr
			var err error
			switch v {
			case opcode.VariantCI:
				cond, err = literal(opcode.IntValue)
			case opcode.VariantCF:
				cond, err = literal(opcode.FloatValue)
			default:
				cond, err = addr()
			}
			if err != nil {
				return d, err
			}
			d.Operands = []opcode.Addr{cond}
			if err := target(); err != nil {
				return d, err
			}
		}

	case opcode.Stack:
		var a opcode.Addr
		var err error
		switch s {
		case opcode.PushI:
			a, err = literal(opcode.IntValue)
		case opcode.PushF:
			a, err = literal(opcode.FloatValue)
		default:
			a, err = addr()
		}
		if err != nil {
			return d, err
		}
		d.Operands = []opcode.Addr{a}
	}

	d.Raw = code[off:pos]
	return d, nil
}

// Decode decodes a whole instruction stream.
func Decode(code []byte) ([]Decoded, error) {
	var out []Decoded
	for off := 0; off < len(code); {
		d, err := DecodeOne(code, off)
		if err != nil {
			return out, err
		}
		out = append(out, d)
		off += len(d.Raw)
	}
	return out, nil
}

// Disassemble writes a listing of an action image: offset, instruction
// and raw bytes, one instruction per line.
func Disassemble(w io.Writer, image []byte) error {
	stackSize, code, err := ParseHeader(image)
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "; stack size %d, %d code bytes\n", stackSize, len(code))
	decoded, err := Decode(code)
	for _, d := range decoded {
		fmt.Fprintf(w, "%04X\t%-32s\t; % X\n", d.Offset, d.String(), d.Raw)
	}
	return err
}
