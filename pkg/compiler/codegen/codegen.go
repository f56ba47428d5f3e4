// Package codegen selects bytecode instructions for intermediate code and
// computes the stack an action needs.
package codegen

import (
	"fmt"

	"github.com/zurustar/padscript/pkg/bytecode"
	"github.com/zurustar/padscript/pkg/compiler/ast"
	"github.com/zurustar/padscript/pkg/compiler/ic"
	"github.com/zurustar/padscript/pkg/opcode"
)

var binaryOps = map[string]opcode.SubType{
	"+":  opcode.Add,
	"-":  opcode.Sub,
	"*":  opcode.Mul,
	"/":  opcode.Div,
	"<":  opcode.CLT,
	">":  opcode.CGT,
	"<=": opcode.CLTE,
	">=": opcode.CGTE,
	"==": opcode.CE,
	"!=": opcode.CN,
	"&&": opcode.And,
	"||": opcode.Or,
}

// Generator converts intermediate code to bytecode instructions.
type Generator struct {
	unit   *ast.Unit
	out    []bytecode.Instruction
	errors []string

	// pushed is the number of argument bytes pushed for calls not yet made.
	pushed int
}

// New creates a code generator for unit. The intermediate code must have
// been generated for the same unit so that temporaries have storage.
func New(unit *ast.Unit) *Generator {
	return &Generator{
		unit:   unit,
		errors: []string{},
	}
}

// Errors returns the generator errors.
func (g *Generator) Errors() []string {
	return g.errors
}

// Generate converts intermediate operations to instructions.
func (g *Generator) Generate(ops []ic.Op) []bytecode.Instruction {
	g.out = nil
	g.pushed = 0
	for _, op := range ops {
		if err := g.generateOp(op); err != nil {
			g.errors = append(g.errors, fmt.Sprintf("%s: %v", op, err))
		}
	}
	return g.out
}

func (g *Generator) emit(ins ...bytecode.Instruction) {
	g.out = append(g.out, ins...)
}

// generateOp converts one operation.
func (g *Generator) generateOp(op ic.Op) error {
	switch op := op.(type) {
	case *ic.LineMarker:
		return nil
	case *ic.Label:
		return g.generateLabel(op)
	case *ic.Assign:
		dst, src, err := g.operands(op.Scope, op.Dst, op.Src)
		if err != nil {
			return err
		}
		g.emit(bytecode.Binary{Op: opcode.Load, Dst: dst, Src: src})
	case *ic.BinaryOp:
		return g.generateBinary(op)
	case *ic.UnaryOp:
		return g.generateUnary(op)
	case *ic.Return:
		return g.generateReturn(op)
	case *ic.IfFalse:
		cond, err := g.address(op.Cond, op.Scope)
		if err != nil {
			return err
		}
		g.emit(bytecode.JZ{Cond: cond, Target: bytecode.LabelID(op.Target)})
	case *ic.Jump:
		g.emit(bytecode.Jump{Target: bytecode.LabelID(op.Target)})
	case *ic.Exit:
		size := g.frameSize(op.Scope, func(t *ast.Table) bool { return t.ID == op.Outer })
		if err := g.adjustSP(opcode.Sub, size); err != nil {
			return err
		}
		g.emit(bytecode.Jump{Target: bytecode.LabelID(op.Target)})
	case *ic.Arg:
		src, err := g.address(op.Value, op.Scope)
		if err != nil {
			return err
		}
		g.emit(bytecode.Push{Src: src})
		g.pushed += op.Value.Type().Size()
	case *ic.FunctionCall:
		return g.generateCall(op.Func, bytecode.LabelID(op.Target), nil)
	case *ic.MethodCall:
		receiver, err := g.address(op.Receiver, op.Scope)
		if err != nil {
			return err
		}
		return g.generateCall(op.Method, bytecode.LabelID(op.Target), &receiver)
	case *ic.Yield:
		g.emit(bytecode.Yield{})
	case *ic.Go:
		size, err := opcode.IntLiteral(int64(g.unit.Table(g.unit.Global).Size()))
		if err != nil {
			return err
		}
		g.emit(
			bytecode.Binary{Op: opcode.Load, Dst: opcode.Reg(opcode.SP), Src: size},
			bytecode.Jump{Target: bytecode.LabelID(op.Target)},
		)
	default:
		return fmt.Errorf("unknown operation %T", op)
	}
	return nil
}

func (g *Generator) operands(scope ast.ScopeID, dst, src ic.Operand) (opcode.Addr, opcode.Addr, error) {
	d, err := g.address(dst, scope)
	if err != nil {
		return d, opcode.Addr{}, err
	}
	s, err := g.address(src, scope)
	return d, s, err
}

// adjustSP emits op %SP, C(n) unless n is zero.
func (g *Generator) adjustSP(op opcode.SubType, n int) error {
	if n == 0 {
		return nil
	}
	c, err := opcode.IntLiteral(int64(n))
	if err != nil {
		return err
	}
	g.emit(bytecode.Binary{Op: op, Dst: opcode.Reg(opcode.SP), Src: c})
	return nil
}

func (g *Generator) generateLabel(l *ic.Label) error {
	g.emit(bytecode.Label{ID: bytecode.LabelID(l.ID)})
	switch l.Kind {
	case ic.StateEnterLabel, ic.CompoundStartLabel:
		return g.adjustSP(opcode.Add, g.unit.Table(l.Scope).Size())
	case ic.CompoundEndLabel:
		return g.adjustSP(opcode.Sub, g.unit.Table(l.Scope).Size())
	}
	return nil
}

func (g *Generator) generateBinary(op *ic.BinaryOp) error {
	code, ok := binaryOps[op.Op]
	if !ok {
		return fmt.Errorf("unknown binary operator %q", op.Op)
	}
	dst, x, err := g.operands(op.Scope, op.Dst, op.X)
	if err != nil {
		return err
	}
	y, err := g.address(op.Y, op.Scope)
	if err != nil {
		return err
	}
	if dst != x {
		g.emit(bytecode.Binary{Op: opcode.Load, Dst: dst, Src: x})
	}
	g.emit(bytecode.Binary{Op: code, Dst: dst, Src: y})
	return nil
}

func (g *Generator) generateUnary(op *ic.UnaryOp) error {
	dst, x, err := g.operands(op.Scope, op.Dst, op.X)
	if err != nil {
		return err
	}
	switch op.Op {
	case "casti", "castf":
		g.emit(bytecode.Binary{Op: opcode.Cast, Dst: dst, Src: x})
	case "-":
		g.emit(bytecode.Binary{Op: opcode.Load, Dst: dst, Src: x}, bytecode.Unary{Op: opcode.Neg, Dst: dst})
	case "!":
		g.emit(bytecode.Binary{Op: opcode.Load, Dst: dst, Src: x}, bytecode.Unary{Op: opcode.Not, Dst: dst})
	default:
		return fmt.Errorf("unknown unary operator %q", op.Op)
	}
	return nil
}

// generateReturn stores the value in the return slot below the saved
// registers and return address, releases the callable's locals and returns.
func (g *Generator) generateReturn(op *ic.Return) error {
	if op.Func == nil {
		return fmt.Errorf("return outside of function")
	}
	t := op.Func.Type()
	locals := g.frameSize(op.Scope, func(t *ast.Table) bool { return t.Kind == ast.ArgsScope })

	if op.Value != nil {
		ret := op.Func.Decl().Ret
		slot := opcode.RegOff(opcode.SP, -(2 + ret.Size() + t.SaveSize() + locals), valueType(ret))
		v, err := g.address(op.Value, op.Scope)
		if err != nil {
			return err
		}
		g.emit(bytecode.Binary{Op: opcode.Load, Dst: slot, Src: v})
	}
	if err := g.adjustSP(opcode.Sub, locals); err != nil {
		return err
	}
	g.emit(bytecode.Ret{})
	return nil
}

// generateCall reserves the return slot, calls target and drops the
// arguments and return slot. The return value stays readable just above SP.
// Method calls save TH and point it at the receiver for the duration of
// the call.
func (g *Generator) generateCall(fn ast.Callable, target bytecode.LabelID, receiver *opcode.Addr) error {
	t := fn.Type()
	ret := fn.Decl().Ret.Size()
	args := t.ArgSize()

	if err := g.adjustSP(opcode.Add, ret); err != nil {
		return err
	}
	if receiver != nil {
		g.emit(bytecode.Push{Src: opcode.Reg(opcode.TH)})
		if err := g.loadReceiver(*receiver, ret); err != nil {
			return err
		}
	}
	g.emit(bytecode.Call{Target: target})
	if receiver != nil {
		g.emit(bytecode.Pop{Dst: opcode.Reg(opcode.TH)})
	}
	if err := g.adjustSP(opcode.Sub, ret+args); err != nil {
		return err
	}
	g.pushed -= args
	return nil
}

// loadReceiver points TH at the receiver. An SP-relative receiver address
// was resolved before the return slot and saved TH were pushed.
func (g *Generator) loadReceiver(r opcode.Addr, ret int) error {
	th := opcode.Reg(opcode.TH)
	switch {
	case r.Kind == opcode.RegOffAddr && r.Reg == opcode.ZR:
		c, err := opcode.IntLiteral(int64(r.Offset))
		if err != nil {
			return err
		}
		g.emit(bytecode.Binary{Op: opcode.Load, Dst: th, Src: c})
	case r.Kind == opcode.RegOffAddr && r.Reg == opcode.SP:
		c, err := opcode.IntLiteral(int64(2 - r.Offset + ret))
		if err != nil {
			return err
		}
		g.emit(
			bytecode.Binary{Op: opcode.Load, Dst: th, Src: opcode.Reg(opcode.SP)},
			bytecode.Binary{Op: opcode.Sub, Dst: th, Src: c},
		)
	case r.Kind == opcode.RegOffAddr && r.Reg == opcode.TH:
		if r.Offset == 0 {
			return nil
		}
		c, err := opcode.IntLiteral(int64(r.Offset))
		if err != nil {
			return err
		}
		g.emit(bytecode.Binary{Op: opcode.Add, Dst: th, Src: c})
	default:
		return fmt.Errorf("invalid receiver %s", r)
	}
	return nil
}
