package ic

import (
	"fmt"
	"slices"
	"strings"

	"github.com/zurustar/padscript/pkg/compiler/ast"
)

type loopLabels struct {
	start *Label
	end   *Label
	scope ast.ScopeID
}

type stateLabels struct {
	enter *Label
	main  *Label
}

type unresolved struct {
	target  ast.Node
	resolve func(*Label)
}

// Generator lowers a checked AST to intermediate code.
type Generator struct {
	unit   *ast.Unit
	ops    []Op
	errors []string

	scopes []ast.ScopeID
	loops  []loopLabels
	cache  exprCache
	line   int

	labels     int
	temps      int
	callables  map[ast.Node]*Label
	states     map[*ast.StateDecl]stateLabels
	unresolved []unresolved
}

// New creates a generator for unit. Temporaries are added to the symbol
// tables of unit.
func New(unit *ast.Unit) *Generator {
	return &Generator{
		unit:      unit,
		errors:    []string{},
		callables: make(map[ast.Node]*Label),
		states:    make(map[*ast.StateDecl]stateLabels),
	}
}

// Errors returns the generator errors.
func (g *Generator) Errors() []string {
	return g.errors
}

// Generate lowers the program root. Global variables come first, then the
// idle state so that execution falls into it, then everything else.
func (g *Generator) Generate(root *ast.Compound) []Op {
	statements := slices.Clone(root.Statements)
	slices.SortStableFunc(statements, func(a, b ast.Node) int {
		return rootOrder(a) - rootOrder(b)
	})

	g.compound(root, statements)

	for _, u := range g.unresolved {
		var label *Label
		switch n := u.target.(type) {
		case *ast.StateDecl:
			label = g.states[n].enter
		default:
			label = g.callables[n]
		}
		if label == nil {
			g.errorf("no code generated for %s", u.target.TokenLiteral())
			continue
		}
		u.resolve(label)
	}
	return g.ops
}

func rootOrder(n ast.Node) int {
	switch n := n.(type) {
	case *ast.VarDecl:
		return 0
	case *ast.StateDecl:
		if n.Name == "idle" {
			return 1
		}
		return 2
	}
	return 3
}

func (g *Generator) errorf(format string, args ...any) {
	g.errors = append(g.errors, fmt.Sprintf(format, args...))
}

func (g *Generator) emit(op Op) {
	g.ops = append(g.ops, op)
}

func (g *Generator) scope() ast.ScopeID {
	return g.scopes[len(g.scopes)-1]
}

func (g *Generator) enterScope(id ast.ScopeID) {
	g.scopes = append(g.scopes, id)
	g.cache.push(false)
}

func (g *Generator) leaveScope() {
	g.scopes = g.scopes[:len(g.scopes)-1]
	g.cache.pop()
}

func (g *Generator) newLabel(kind LabelKind, scope ast.ScopeID, name string) *Label {
	l := &Label{ID: g.labels, Kind: kind, Scope: scope, Name: name}
	g.labels++
	return l
}

func (g *Generator) newTemp(t *ast.Type) *Temp {
	tmp := &Temp{ID: g.temps, T: t}
	g.temps++
	g.unit.Table(g.scope()).Add(tmp.String(), tmp, t.Size())
	return tmp
}

func (g *Generator) mark(n ast.Node) {
	if line := n.Pos().Line; line != 0 && line != g.line {
		g.line = line
		g.emit(&LineMarker{Line: line})
	}
}

// Statements

func (g *Generator) compound(n *ast.Compound, statements []ast.Node) {
	g.enterScope(n.Scope)
	g.emit(g.newLabel(CompoundStartLabel, n.Scope, ""))
	for _, s := range statements {
		g.statement(s)
	}
	g.emit(g.newLabel(CompoundEndLabel, n.Scope, ""))
	g.leaveScope()
}

func (g *Generator) statement(n ast.Node) {
	if n == nil {
		return
	}
	g.mark(n)
	switch n := n.(type) {
	case *ast.Compound:
		g.compound(n, n.Statements)
	case *ast.VarDecl:
		if n.Init.IsRValue() {
			src := g.expr(n.Init)
			dst := Var{Name: n.Name, Binding: n}
			g.emit(&Assign{Scope: g.scope(), Dst: dst, Src: src})
			g.cache.written(dst)
		}
	case *ast.Assign:
		g.assign(n)
	case *ast.If:
		g.ifStatement(n)
	case *ast.While:
		g.while(n)
	case *ast.Break:
		g.exit(n, false)
	case *ast.Continue:
		g.exit(n, true)
	case *ast.Yield:
		g.emit(&Yield{})
		g.cache.clobbered()
	case *ast.Return:
		var value Operand
		if n.Value.IsRValue() {
			value = g.expr(n.Value)
		}
		g.emit(&Return{Scope: g.scope(), Func: n.Func, Value: value})
	case *ast.Go:
		g.goStatement(n)
	case *ast.StructDecl:
		g.enterScope(n.Scope)
		for _, m := range n.Methods {
			g.callable(m)
		}
		g.leaveScope()
	case *ast.StateDecl:
		g.state(n)
	case *ast.FunctionDecl:
		g.callable(n)
	case *ast.MemberDecl, *ast.Param, *ast.Empty:
	case ast.Expr:
		g.expr(n)
	default:
		g.errorf("unexpected statement %T", n)
	}
}

func (g *Generator) assign(n *ast.Assign) {
	dst := g.expr(n.Target)
	src := g.expr(n.Value)
	if n.Op == "=" {
		g.emit(&Assign{Scope: g.scope(), Dst: dst, Src: src})
	} else {
		op := n.Op[:1]
		g.emit(&BinaryOp{Scope: g.scope(), Dst: dst, Op: op, X: dst, Y: src})
	}
	g.cache.written(dst)
}

func (g *Generator) branch(n ast.Node) {
	g.cache.push(false)
	g.statement(n)
	g.cache.pop()
}

func (g *Generator) ifStatement(n *ast.If) {
	cond := g.expr(n.Cond)
	next := g.newLabel(PlainLabel, g.scope(), "")
	g.emit(&IfFalse{Scope: g.scope(), Cond: cond, Target: next.ID})
	g.branch(n.Then)
	if n.Else == nil {
		g.emit(next)
		return
	}
	end := g.newLabel(PlainLabel, g.scope(), "")
	g.emit(&Jump{Target: end.ID})
	g.emit(next)
	g.branch(n.Else)
	g.emit(end)
}

func (g *Generator) while(n *ast.While) {
	loop := loopLabels{
		start: g.newLabel(PlainLabel, g.scope(), ""),
		end:   g.newLabel(PlainLabel, g.scope(), ""),
		scope: g.scope(),
	}
	g.cache.push(true)
	g.emit(loop.start)
	cond := g.expr(n.Cond)
	g.emit(&IfFalse{Scope: g.scope(), Cond: cond, Target: loop.end.ID})

	g.loops = append(g.loops, loop)
	g.statement(n.Body)
	g.loops = g.loops[:len(g.loops)-1]

	g.emit(&Jump{Target: loop.start.ID})
	g.emit(loop.end)
	g.cache.pop()
}

func (g *Generator) exit(n ast.Node, toStart bool) {
	if len(g.loops) == 0 {
		g.errorf("%s: %s outside of loop", n.Pos(), n.TokenLiteral())
		return
	}
	loop := g.loops[len(g.loops)-1]
	target := loop.end
	if toStart {
		target = loop.start
	}
	g.emit(&Exit{Scope: g.scope(), Outer: loop.scope, Target: target.ID})
}

func (g *Generator) goStatement(n *ast.Go) {
	if n.State == nil {
		g.errorf("%s: unresolved state %q", n.Pos(), n.Target)
		return
	}
	op := &Go{Scope: g.scope(), State: n.State}
	g.emit(op)
	g.unresolved = append(g.unresolved, unresolved{target: n.State, resolve: func(l *Label) { op.Target = l.ID }})
}

func (g *Generator) callable(c ast.Callable) {
	decl := c.Decl()
	label := g.newLabel(CallableLabel, decl.Scope, decl.Name)
	g.callables[c] = label
	g.emit(label)
	g.enterScope(decl.Scope)
	g.statement(decl.Body)
	g.leaveScope()
}

func (g *Generator) state(n *ast.StateDecl) {
	labels := stateLabels{
		enter: g.newLabel(StateEnterLabel, n.Scope, n.Name),
		main:  g.newLabel(PlainLabel, n.Scope, n.Name),
	}
	g.states[n] = labels

	g.enterScope(n.Scope)
	g.emit(labels.enter)
	g.stateMethod(n.Enter)
	g.emit(labels.main)
	g.stateMethod(n.Main)
	g.emit(&Yield{})
	g.emit(&Jump{Target: labels.main.ID})
	g.leaveScope()
}

func (g *Generator) stateMethod(m *ast.StateMethodDecl) {
	if m == nil {
		return
	}
	g.enterScope(m.Scope)
	g.statement(m.Body)
	g.leaveScope()
}

// Expressions

// expr lowers e and returns the operand holding its value. It returns nil
// for void calls and empty expressions.
func (g *Generator) expr(e ast.Expr) Operand {
	switch e := e.(type) {
	case *ast.Empty:
		return nil
	case *ast.Constant:
		if e.IsFloat {
			return Const{IsFloat: true, Float: e.Float}
		}
		return Const{Int: e.Int}
	case *ast.Identifier:
		return Var{Name: e.Name, Binding: e.Binding}
	case *ast.Access:
		return g.member(e)
	case *ast.Unary:
		return g.unary(e)
	case *ast.Binary:
		return g.binary(e)
	case *ast.PrefixUnary:
		v := g.expr(e.Target)
		g.emit(&BinaryOp{Scope: g.scope(), Dst: v, Op: e.Op[:1], X: v, Y: one(v.Type())})
		g.cache.written(v)
		return v
	case *ast.PostfixUnary:
		v := g.expr(e.Target)
		res := g.newTemp(e.Type())
		g.emit(&Assign{Scope: g.scope(), Dst: res, Src: v})
		g.emit(&BinaryOp{Scope: g.scope(), Dst: v, Op: e.Op[:1], X: v, Y: one(v.Type())})
		g.cache.written(v)
		return res
	case *ast.Call:
		return g.call(e)
	}
	g.errorf("%s: unexpected expression %T", e.Pos(), e)
	return Const{}
}

func one(t *ast.Type) Const {
	if t.Kind == ast.FloatKind {
		return Const{IsFloat: true, Float: 1}
	}
	return Const{Int: 1}
}

func (g *Generator) member(e *ast.Access) Operand {
	fields := []string{e.Name}
	target := e.Target
	for {
		switch t := target.(type) {
		case *ast.Access:
			fields = append(fields, t.Name)
			target = t.Target
			continue
		case *ast.Identifier:
			slices.Reverse(fields)
			path := strings.Join(fields, ".")
			return Member{Root: Var{Name: t.Name, Binding: t.Binding}, Path: path, T: e.Type()}
		}
		g.errorf("%s: member access on %s", e.Pos(), target)
		return Const{}
	}
}

func (g *Generator) unary(e *ast.Unary) Operand {
	x := g.expr(e.X)
	if e.Op == "+" {
		return x
	}
	key := exprKey{op: e.Op, x: x}
	if t := g.cache.lookup(key); t != nil {
		return t
	}
	t := g.newTemp(e.Type())
	g.emit(&UnaryOp{Scope: g.scope(), Dst: t, Op: e.Op, X: x})
	g.cache.add(key, t)
	return t
}

func (g *Generator) binary(e *ast.Binary) Operand {
	x := g.expr(e.X)
	y := g.expr(e.Y)
	key := exprKey{op: e.Op, x: x, y: y}
	if t := g.cache.lookup(key); t != nil {
		return t
	}
	t := g.newTemp(e.Type())
	g.emit(&BinaryOp{Scope: g.scope(), Dst: t, Op: e.Op, X: x, Y: y})
	g.cache.add(key, t)
	return t
}

func (g *Generator) call(e *ast.Call) Operand {
	for _, arg := range e.Args {
		g.emit(&Arg{Scope: g.scope(), Value: g.expr(arg)})
	}

	callee := e.Callee()
	switch fn := callee.(type) {
	case *ast.FunctionDecl:
		op := &FunctionCall{Func: fn}
		g.emit(op)
		g.unresolved = append(g.unresolved, unresolved{target: fn, resolve: func(l *Label) { op.Target = l.ID }})
	case *ast.MethodDecl:
		var receiver Operand = This{T: fn.Owner.T}
		if access, ok := e.Target.(*ast.Access); ok {
			receiver = g.expr(access.Target)
		}
		op := &MethodCall{Scope: g.scope(), Receiver: receiver, Method: fn}
		g.emit(op)
		g.unresolved = append(g.unresolved, unresolved{target: fn, resolve: func(l *Label) { op.Target = l.ID }})
	default:
		g.errorf("%s: cannot call %s", e.Pos(), e.Target)
		return Const{}
	}
	g.cache.clobbered()

	ret := callee.Decl().Ret
	if ret.Kind == ast.VoidKind {
		return nil
	}
	t := g.newTemp(ret)
	g.emit(&Assign{Scope: g.scope(), Dst: t, Src: Retval{Func: callee}})
	return t
}
