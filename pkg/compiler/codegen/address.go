package codegen

import (
	"fmt"

	"github.com/zurustar/padscript/pkg/compiler/ast"
	"github.com/zurustar/padscript/pkg/compiler/ic"
	"github.com/zurustar/padscript/pkg/opcode"
)

func valueType(t *ast.Type) opcode.ValueType {
	if t != nil && t.Kind == ast.FloatKind {
		return opcode.FloatValue
	}
	return opcode.IntValue
}

// address resolves an operand as seen from scope, accounting for the call
// arguments pushed so far.
func (g *Generator) address(o ic.Operand, scope ast.ScopeID) (opcode.Addr, error) {
	switch o := o.(type) {
	case ic.Const:
		if o.IsFloat {
			return opcode.ConstFloat(float32(o.Float)), nil
		}
		return opcode.IntLiteral(o.Int)
	case ic.Var:
		return g.bindingAddress(o.Name, o.Binding, scope)
	case *ic.Temp:
		return g.bindingAddress(o.String(), o, scope)
	case ic.Member:
		root, err := g.bindingAddress(o.Root.Name, o.Root.Binding, scope)
		if err != nil {
			return root, err
		}
		t := o.Root.Type()
		for _, field := range o.Fields() {
			off, ft, ok := memberOffset(t, field)
			if !ok {
				return root, fmt.Errorf("%s has no member %q", t, field)
			}
			root.Offset += off
			t = ft
		}
		root.Type = valueType(t)
		return root, nil
	case ic.This:
		return opcode.RegOff(opcode.TH, 0, opcode.IntValue), nil
	case ic.Retval:
		argSize := o.Func.Type().ArgSize()
		return opcode.RegOff(opcode.SP, argSize, valueType(o.Type())), nil
	}
	return opcode.Addr{}, fmt.Errorf("cannot address %v", o)
}

// bindingAddress walks from scope to the table declaring b. Frame-relative
// tables are stacked below SP, so every table walked past moves the
// address down by its size.
func (g *Generator) bindingAddress(name string, b ast.Binding, scope ast.ScopeID) (opcode.Addr, error) {
	t := valueType(b.Type())
	if builtin, ok := b.(*ast.Builtin); ok {
		r, ok := opcode.LookupRegister(builtin.Name)
		if !ok {
			return opcode.Addr{}, fmt.Errorf("no register for %q", builtin.Name)
		}
		return opcode.Reg(r), nil
	}

	walked := 0
	for id := scope; id != ast.NoScope; {
		table := g.unit.Table(id)
		off, ok := table.OffsetOf(b)
		if !ok {
			walked += table.Size()
			id = table.Parent
			continue
		}
		switch table.Kind {
		case ast.GlobalScope:
			return opcode.RegOff(opcode.ZR, off, t), nil
		case ast.ThisScope:
			return opcode.RegOff(opcode.TH, off, t), nil
		case ast.ArgsScope:
			return opcode.RegOff(opcode.SP, -2-walked-table.Size()+off-g.pushed, t), nil
		default:
			return opcode.RegOff(opcode.SP, -walked-table.Size()+off-g.pushed, t), nil
		}
	}
	return opcode.Addr{}, fmt.Errorf("%q is not in scope", name)
}

// memberOffset returns the offset and type of a field inside a struct value.
func memberOffset(t *ast.Type, name string) (int, *ast.Type, bool) {
	if t == nil || t.Kind != ast.StructKind {
		return 0, nil, false
	}
	off := 0
	for _, m := range t.Struct.Members {
		if m.Name == name {
			return off, m.T, true
		}
		off += m.T.Size()
	}
	return 0, nil, false
}

// frameSize sums the sizes of the tables from scope up to, and excluding,
// the first table for which stop returns true.
func (g *Generator) frameSize(scope ast.ScopeID, stop func(*ast.Table) bool) int {
	size := 0
	for id := scope; id != ast.NoScope; {
		table := g.unit.Table(id)
		if stop(table) {
			break
		}
		size += table.Size()
		id = table.Parent
	}
	return size
}
