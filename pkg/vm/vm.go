// Package vm executes action bytecode against controller reports.
//
// A VM owns one stack buffer and the SP and TH registers. The host calls
// Run once per report; the action runs until it yields, and the next call
// resumes after the yield. Globals live at the bottom of the stack and
// survive between reports.
package vm

import (
	"encoding/binary"
	"errors"
	"log/slog"
	"math"

	"github.com/zurustar/padscript/pkg/bytecode"
	"github.com/zurustar/padscript/pkg/logger"
	"github.com/zurustar/padscript/pkg/opcode"
)

// DefaultStepLimit is the number of instructions Run executes without a
// yield before it gives up.
const DefaultStepLimit = 100000

// VM is one running action.
type VM struct {
	code  []byte
	stack []byte

	offset int
	sp     int16
	th     int16

	// err is the fatal error that stopped the VM, if any.
	err error

	stepLimit int
	log       *slog.Logger
}

// Option is a functional option for configuring the VM.
type Option func(*VM)

// WithStepLimit sets how many instructions Run may execute before a
// yield. Zero or less disables the limit.
func WithStepLimit(n int) Option {
	return func(vm *VM) {
		vm.stepLimit = n
	}
}

// WithLogger sets a custom logger.
func WithLogger(log *slog.Logger) Option {
	return func(vm *VM) {
		vm.log = log
	}
}

// New creates a VM for an instruction stream with a stack of stackSize
// bytes.
func New(code []byte, stackSize int, opts ...Option) *VM {
	vm := &VM{
		code:      code,
		stack:     make([]byte, stackSize),
		stepLimit: DefaultStepLimit,
		log:       logger.GetLogger(),
	}
	for _, opt := range opts {
		opt(vm)
	}
	return vm
}

// Load creates a VM from an action image, which starts with the stack
// size header.
func Load(image []byte, opts ...Option) (*VM, error) {
	size, code, err := bytecode.ParseHeader(image)
	if err != nil {
		return nil, err
	}
	return New(code, size, opts...), nil
}

// SP returns the stack pointer.
func (vm *VM) SP() int16 { return vm.sp }

// TH returns the struct instance register.
func (vm *VM) TH() int16 { return vm.th }

// SetSP sets the stack pointer.
func (vm *VM) SetSP(v int16) { vm.sp = v }

// SetTH sets the struct instance register.
func (vm *VM) SetTH(v int16) { vm.th = v }

// Offset returns the code offset of the next instruction.
func (vm *VM) Offset() int { return vm.offset }

// Stack returns the stack buffer. It is not a copy.
func (vm *VM) Stack() []byte { return vm.stack }

// Err returns the fatal error that stopped the VM, or nil.
func (vm *VM) Err() error { return vm.err }

// Push pushes a constant onto the stack.
func (vm *VM) Push(c opcode.Addr) error {
	if !c.IsConst() {
		return NewRuntimeError(ErrorInvalidOperand, vm.offset, "push of non-constant %s", c)
	}
	return vm.push(c.Type, c.Value())
}

// Reset rewinds the VM to the start of its code and clears the stack.
func (vm *VM) Reset() {
	vm.offset, vm.sp, vm.th, vm.err = 0, 0, 0, nil
	clear(vm.stack)
}

// Run steps until the action yields. The step limit guards against
// actions that loop without yielding.
func (vm *VM) Run(r *Report) error {
	for steps := 0; ; steps++ {
		if vm.stepLimit > 0 && steps >= vm.stepLimit {
			return vm.fail(NewRuntimeError(ErrorStepLimit, vm.offset, "no yield after %d steps", steps))
		}
		yielded, err := vm.Step(r)
		if err != nil {
			return err
		}
		if yielded {
			return nil
		}
	}
}

// Step executes one instruction and reports whether it was a yield.
// After a fatal error every further call returns that error.
func (vm *VM) Step(r *Report) (bool, error) {
	if vm.err != nil {
		return false, vm.err
	}
	d, err := bytecode.DecodeOne(vm.code, vm.offset)
	if err != nil {
		return false, vm.fail(decodeError(vm.offset, err))
	}
	next := vm.offset + len(d.Raw)

	m, s, _ := opcode.Split(d.Opcode)
	switch m {
	case opcode.Binary:
		err = vm.binary(s, d, r)
	case opcode.Unary:
		err = vm.unary(s, d, r)
	case opcode.Stack:
		err = vm.stackOp(s, d, r)
	case opcode.Flow:
		var yielded bool
		yielded, next, err = vm.flow(s, d, next, r)
		if err != nil {
			return false, vm.fail(err)
		}
		vm.offset = next
		return yielded, nil
	}
	if err != nil {
		return false, vm.fail(err)
	}
	vm.offset = next
	return false, nil
}

func decodeError(off int, err error) *RuntimeError {
	switch {
	case errors.Is(err, bytecode.ErrTruncated):
		return NewRuntimeError(ErrorTruncated, off, "%v", err)
	case errors.Is(err, opcode.ErrInvalidAddr):
		return NewRuntimeError(ErrorInvalidOperand, off, "%v", err)
	}
	return NewRuntimeError(ErrorInvalidOpcode, off, "%v", err)
}

func (vm *VM) fail(err error) error {
	vm.log.Error("action stopped", "error", err)
	vm.err = err
	return err
}

func (vm *VM) binary(s opcode.SubType, d bytecode.Decoded, r *Report) error {
	dst, src := d.Operands[0], d.Operands[1]
	y, err := vm.read(src, r, d.Offset)
	if err != nil {
		return err
	}
	if s == opcode.Load || s == opcode.Cast {
		return vm.write(dst, r, convert(y, dst.Type), d.Offset)
	}

	x, err := vm.read(dst, r, d.Offset)
	if err != nil {
		return err
	}
	if dst.Type == opcode.FloatValue {
		return vm.write(dst, r, float64(floatOp(s, float32(x), float32(y))), d.Offset)
	}
	res, ok := intOp(s, int32(x), int32(toInt(y)))
	if !ok {
		vm.log.Warn("runtime error", "error", NewRuntimeError(ErrorDivisionByZero, d.Offset, "integer division by zero"))
	}
	return vm.write(dst, r, float64(res), d.Offset)
}

func (vm *VM) unary(s opcode.SubType, d bytecode.Decoded, r *Report) error {
	dst := d.Operands[0]
	x, err := vm.read(dst, r, d.Offset)
	if err != nil {
		return err
	}
	switch s {
	case opcode.Neg:
		x = -x
	case opcode.Not:
		x = truth(x == 0)
	}
	return vm.write(dst, r, convert(x, dst.Type), d.Offset)
}

func (vm *VM) stackOp(s opcode.SubType, d bytecode.Decoded, r *Report) error {
	a := d.Operands[0]
	if s == opcode.Pop {
		if a.Kind != opcode.RegAddr || (a.Reg != opcode.SP && a.Reg != opcode.TH) {
			return NewRuntimeError(ErrorInvalidOperand, d.Offset, "cannot pop into %s", a)
		}
		v, err := vm.popU16()
		if err != nil {
			return err
		}
		if a.Reg == opcode.SP {
			vm.sp = int16(v)
		} else {
			vm.th = int16(v)
		}
		return nil
	}
	v, err := vm.read(a, r, d.Offset)
	if err != nil {
		return err
	}
	return vm.push(a.Type, v)
}

// flow executes a control transfer and returns the offset to continue at.
func (vm *VM) flow(s opcode.SubType, d bytecode.Decoded, next int, r *Report) (bool, int, error) {
	switch s {
	case opcode.Call:
		if err := vm.pushU16(uint16(next)); err != nil {
			return false, next, err
		}
		return false, d.Target, nil
	case opcode.Ret:
		v, err := vm.popU16()
		return false, int(v), err
	case opcode.Yield:
		return true, next, nil
	case opcode.Jump:
		return false, d.Target, nil
	case opcode.JZ:
		v, err := vm.read(d.Operands[0], r, d.Offset)
		if err != nil {
			return false, next, err
		}
		if v == 0 {
			return false, d.Target, nil
		}
		return false, next, nil
	}
	return false, next, NewRuntimeError(ErrorInvalidOpcode, d.Offset, "invalid flow instruction 0x%02X", d.Opcode)
}

// location returns the stack index of a register+offset operand.
func (vm *VM) location(a opcode.Addr, at int) (int, error) {
	var base int16
	switch a.Reg {
	case opcode.SP:
		base = vm.sp
	case opcode.TH:
		base = vm.th
	}
	loc := int(base) + a.Offset
	if loc < 0 || loc+a.Type.Size() > len(vm.stack) {
		return 0, NewRuntimeError(ErrorStackAccess, at, "%s resolves to %d, outside the %d byte stack", a, loc, len(vm.stack))
	}
	return loc, nil
}

// read returns the value of an operand in its own type.
func (vm *VM) read(a opcode.Addr, r *Report, at int) (float64, error) {
	switch a.Kind {
	case opcode.ConstAddr:
		return a.Value(), nil
	case opcode.RegAddr:
		switch a.Reg {
		case opcode.SP:
			return float64(vm.sp), nil
		case opcode.TH:
			return float64(vm.th), nil
		case opcode.ZR:
			return 0, nil
		}
		if f := r.floatField(a.Reg); f != nil {
			return float64(*f), nil
		}
		if p := r.intField(a.Reg); p != nil {
			return float64(*p), nil
		}
		return 0, NewRuntimeError(ErrorInvalidOperand, at, "unknown register %s", a.Reg)
	}
	loc, err := vm.location(a, at)
	if err != nil {
		return 0, err
	}
	if a.Type == opcode.FloatValue {
		return float64(math.Float32frombits(binary.LittleEndian.Uint32(vm.stack[loc:]))), nil
	}
	return float64(int16(binary.LittleEndian.Uint16(vm.stack[loc:]))), nil
}

// write stores v, already converted to the operand's type.
func (vm *VM) write(a opcode.Addr, r *Report, v float64, at int) error {
	switch a.Kind {
	case opcode.ConstAddr:
		return NewRuntimeError(ErrorInvalidOperand, at, "cannot write to constant %s", a)
	case opcode.RegAddr:
		if ReadOnly(a.Reg) {
			return NewRuntimeError(ErrorReadOnly, at, "%s is read-only", a.Reg)
		}
		switch a.Reg {
		case opcode.SP:
			vm.sp = int16(v)
			return nil
		case opcode.TH:
			vm.th = int16(v)
			return nil
		}
		p := r.intField(a.Reg)
		if p == nil {
			return NewRuntimeError(ErrorInvalidOperand, at, "unknown register %s", a.Reg)
		}
		*p = clamp(a.Reg, int16(v))
		return nil
	}
	loc, err := vm.location(a, at)
	if err != nil {
		return err
	}
	if a.Type == opcode.FloatValue {
		binary.LittleEndian.PutUint32(vm.stack[loc:], math.Float32bits(float32(v)))
	} else {
		binary.LittleEndian.PutUint16(vm.stack[loc:], uint16(int16(v)))
	}
	return nil
}

func (vm *VM) push(t opcode.ValueType, v float64) error {
	a := opcode.RegOff(opcode.SP, 0, t)
	if int(vm.sp)+t.Size() > len(vm.stack) {
		return NewRuntimeError(ErrorStackOverflow, vm.offset, "push of %d bytes at SP=%d overflows the %d byte stack", t.Size(), vm.sp, len(vm.stack))
	}
	if err := vm.write(a, nil, convert(v, t), vm.offset); err != nil {
		return err
	}
	vm.sp += int16(t.Size())
	return nil
}

func (vm *VM) pushU16(v uint16) error {
	if vm.sp < 0 || int(vm.sp)+2 > len(vm.stack) {
		return NewRuntimeError(ErrorStackOverflow, vm.offset, "call at SP=%d overflows the %d byte stack", vm.sp, len(vm.stack))
	}
	binary.LittleEndian.PutUint16(vm.stack[vm.sp:], v)
	vm.sp += 2
	return nil
}

func (vm *VM) popU16() (uint16, error) {
	if vm.sp < 2 || int(vm.sp) > len(vm.stack) {
		return 0, NewRuntimeError(ErrorStackAccess, vm.offset, "pop with SP=%d", vm.sp)
	}
	vm.sp -= 2
	return binary.LittleEndian.Uint16(vm.stack[vm.sp:]), nil
}

// convert rounds v to what a value of type t can hold.
func convert(v float64, t opcode.ValueType) float64 {
	if t == opcode.FloatValue {
		return float64(float32(v))
	}
	return float64(toInt(v))
}

// toInt truncates toward zero and saturates to int16. NaN becomes 0.
func toInt(v float64) int16 {
	switch {
	case math.IsNaN(v):
		return 0
	case v <= math.MinInt16:
		return math.MinInt16
	case v >= math.MaxInt16:
		return math.MaxInt16
	}
	return int16(v)
}

func saturate(v int32) int16 {
	return int16(min(max(v, math.MinInt16), math.MaxInt16))
}

func truth(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

// intOp computes x op y in 32 bits and saturates the result. It reports
// false for a division by zero, whose result is 0.
func intOp(s opcode.SubType, x, y int32) (int16, bool) {
	switch s {
	case opcode.Add:
		x += y
	case opcode.Sub:
		x -= y
	case opcode.Mul:
		x *= y
	case opcode.Div:
		if y == 0 {
			return 0, false
		}
		x /= y
	default:
		return int16(compare(s, float64(x), float64(y))), true
	}
	return saturate(x), true
}

func floatOp(s opcode.SubType, x, y float32) float32 {
	switch s {
	case opcode.Add:
		return x + y
	case opcode.Sub:
		return x - y
	case opcode.Mul:
		return x * y
	case opcode.Div:
		return x / y
	}
	return float32(compare(s, float64(x), float64(y)))
}

func compare(s opcode.SubType, x, y float64) float64 {
	switch s {
	case opcode.CLT:
		return truth(x < y)
	case opcode.CGT:
		return truth(x > y)
	case opcode.CLTE:
		return truth(x <= y)
	case opcode.CGTE:
		return truth(x >= y)
	case opcode.CE:
		return truth(x == y)
	case opcode.CN:
		return truth(x != y)
	case opcode.And:
		return truth(x != 0 && y != 0)
	case opcode.Or:
		return truth(x != 0 || y != 0)
	}
	return 0
}
