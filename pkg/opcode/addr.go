package opcode

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"strconv"
)

// AddrKind tells how an operand is stored.
type AddrKind byte

const (
	// RegAddr is register-direct, encoded in one byte: 00 | 6-bit index.
	RegAddr AddrKind = iota

	// RegOffAddr is a stack location relative to SP, TH or ZR, encoded in
	// two big-endian bytes: 01 | reg:2 | valtype:1 | sign:1 | magnitude:10.
	RegOffAddr

	// ConstAddr is an inline i16 or f32 literal, little-endian.
	ConstAddr
)

// ValueType is the storage type of a register+offset operand or constant.
type ValueType byte

const (
	IntValue   ValueType = 0x00
	FloatValue ValueType = 0x01
)

// Size is the number of stack bytes a value of type t occupies.
func (t ValueType) Size() int {
	if t == FloatValue {
		return 4
	}
	return 2
}

func (t ValueType) suffix() string {
	if t == FloatValue {
		return "f"
	}
	return "i"
}

// MaxOffset is the largest magnitude of a register+offset displacement.
const MaxOffset = 0x3FF

var (
	// ErrOffsetRange is returned for displacements outside ±MaxOffset.
	ErrOffsetRange = errors.New("offset out of range")

	// ErrInvalidAddr is returned for operands that cannot be encoded or decoded.
	ErrInvalidAddr = errors.New("invalid address")
)

// Addr is an instruction operand.
type Addr struct {
	Kind   AddrKind
	Reg    Register
	Offset int
	Type   ValueType

	// Int or Float holds the literal of a ConstAddr, depending on Type.
	Int   int16
	Float float32
}

// Reg returns a register-direct operand.
func Reg(r Register) Addr {
	return Addr{Kind: RegAddr, Reg: r, Type: registerType(r)}
}

// RegOff returns a register+offset operand.
func RegOff(r Register, offset int, t ValueType) Addr {
	return Addr{Kind: RegOffAddr, Reg: r, Offset: offset, Type: t}
}

// ConstInt returns an inline int literal.
func ConstInt(v int16) Addr {
	return Addr{Kind: ConstAddr, Type: IntValue, Int: v}
}

// ConstFloat returns an inline float literal.
func ConstFloat(v float32) Addr {
	return Addr{Kind: ConstAddr, Type: FloatValue, Float: v}
}

func registerType(r Register) ValueType {
	if r.IsFloat() {
		return FloatValue
	}
	return IntValue
}

// IsConst reports whether a is an inline literal.
func (a Addr) IsConst() bool {
	return a.Kind == ConstAddr
}

// Value returns the literal of a ConstAddr as a float64.
func (a Addr) Value() float64 {
	if a.Type == FloatValue {
		return float64(a.Float)
	}
	return float64(a.Int)
}

func (a Addr) String() string {
	switch a.Kind {
	case RegAddr:
		return a.Reg.String()
	case RegOffAddr:
		sign := "+"
		if a.Offset < 0 {
			sign = ""
		}
		return fmt.Sprintf("[%s%s%d]%s", a.Reg, sign, a.Offset, a.Type.suffix())
	}
	if a.Type == FloatValue {
		return strconv.FormatFloat(float64(a.Float), 'g', -1, 32)
	}
	return strconv.Itoa(int(a.Int))
}

// Append appends the encoding of a to buf.
func (a Addr) Append(buf []byte) ([]byte, error) {
	switch a.Kind {
	case RegAddr:
		if !a.Reg.Valid() {
			return buf, fmt.Errorf("%w: register %d", ErrInvalidAddr, byte(a.Reg))
		}
		return append(buf, byte(a.Reg)), nil

	case RegOffAddr:
		if a.Reg != SP && a.Reg != TH && a.Reg != ZR {
			return buf, fmt.Errorf("%w: %s cannot be used as a base register", ErrInvalidAddr, a.Reg)
		}
		if a.Offset < -MaxOffset || a.Offset > MaxOffset {
			return buf, fmt.Errorf("%w: %d", ErrOffsetRange, a.Offset)
		}
		if a.Reg == ZR && a.Offset < 0 {
			return buf, fmt.Errorf("%w: negative offset %d from %s", ErrOffsetRange, a.Offset, a.Reg)
		}
		off := uint16(a.Offset)
		if a.Offset < 0 {
			off = uint16(-a.Offset) | 1<<10
		}
		v := uint16(RegOffAddr)<<14 | uint16(a.Reg)<<12 | uint16(a.Type&1)<<11 | off
		return binary.BigEndian.AppendUint16(buf, v), nil

	case ConstAddr:
		if a.Type == FloatValue {
			return binary.LittleEndian.AppendUint32(buf, math.Float32bits(a.Float)), nil
		}
		return binary.LittleEndian.AppendUint16(buf, uint16(a.Int)), nil
	}
	return buf, fmt.Errorf("%w: kind %d", ErrInvalidAddr, a.Kind)
}

// Size returns the number of bytes the encoding of a occupies.
func (a Addr) Size() int {
	switch a.Kind {
	case RegAddr:
		return 1
	case RegOffAddr:
		return 2
	}
	return a.Type.Size()
}

// DecodeAddr decodes a register or register+offset operand at the start of
// b and returns it with the number of bytes consumed.
func DecodeAddr(b []byte) (Addr, int, error) {
	if len(b) == 0 {
		return Addr{}, 0, fmt.Errorf("%w: truncated operand", ErrInvalidAddr)
	}
	switch AddrKind(b[0] >> 6) {
	case RegAddr:
		r := Register(b[0] & 0x3F)
		if !r.Valid() {
			return Addr{}, 0, fmt.Errorf("%w: register %d", ErrInvalidAddr, byte(r))
		}
		return Reg(r), 1, nil
	case RegOffAddr:
		if len(b) < 2 {
			return Addr{}, 0, fmt.Errorf("%w: truncated operand", ErrInvalidAddr)
		}
		v := binary.BigEndian.Uint16(b)
		r := Register((v >> 12) & 0x03)
		if r > ZR {
			return Addr{}, 0, fmt.Errorf("%w: base register %d", ErrInvalidAddr, byte(r))
		}
		t := ValueType((v >> 11) & 0x01)
		off := int(v & MaxOffset)
		if v&(1<<10) != 0 {
			off = -off
		}
		return RegOff(r, off, t), 2, nil
	}
	return Addr{}, 0, fmt.Errorf("%w: address type %d", ErrInvalidAddr, b[0]>>6)
}

// DecodeConst decodes an inline literal of type t at the start of b.
func DecodeConst(b []byte, t ValueType) (Addr, int, error) {
	if len(b) < t.Size() {
		return Addr{}, 0, fmt.Errorf("%w: truncated literal", ErrInvalidAddr)
	}
	if t == FloatValue {
		return ConstFloat(math.Float32frombits(binary.LittleEndian.Uint32(b))), 4, nil
	}
	return ConstInt(int16(binary.LittleEndian.Uint16(b))), 2, nil
}

// ErrLiteralRange is returned for int literals that do not fit in an i16.
var ErrLiteralRange = errors.New("literal out of range")

// IntLiteral returns an inline int literal, checking that v fits in an i16.
func IntLiteral(v int64) (Addr, error) {
	if v < math.MinInt16 || v > math.MaxInt16 {
		return Addr{}, fmt.Errorf("%w: %d", ErrLiteralRange, v)
	}
	return ConstInt(int16(v)), nil
}
