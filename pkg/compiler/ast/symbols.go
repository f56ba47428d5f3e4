package ast

import (
	"fmt"
	"io"
	"strings"
)

// ScopeKind tells the code generator how to address the symbols of a table.
type ScopeKind int

const (
	GlobalScope    ScopeKind = iota // absolute, from ZR
	LocalScope                      // frame-relative, from SP
	ArgsScope                       // callable parameters and return slot
	ThisScope                       // struct members, from TH
	InheritedScope                  // nested block, addressed like its parent frame
)

var scopeKindNames = map[ScopeKind]string{
	GlobalScope:    "GLOBAL",
	LocalScope:     "LOCAL",
	ArgsScope:      "ARGS",
	ThisScope:      "THIS",
	InheritedScope: "INHERITED",
}

func (k ScopeKind) String() string {
	if s, ok := scopeKindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("ScopeKind(%d)", int(k))
}

// ScopeID indexes a Table inside a Tables arena.
type ScopeID int

// NoScope is the parent of the global table.
const NoScope ScopeID = -1

// Binding is anything a name can be bound to.
type Binding interface {
	Type() *Type
}

// Symbol is one named entry of a table.
type Symbol struct {
	Name    string
	Binding Binding
	Size    int
}

// Table is a single lexical scope.
type Table struct {
	ID      ScopeID
	Kind    ScopeKind
	Parent  ScopeID
	Symbols []Symbol

	size int
}

// Add appends a symbol and grows the table by size bytes.
func (t *Table) Add(name string, b Binding, size int) {
	t.Symbols = append(t.Symbols, Symbol{Name: name, Binding: b, Size: size})
	t.size += size
}

// AddSize grows the table without adding a symbol.
func (t *Table) AddSize(n int) {
	t.size += n
}

// Size is the number of stack bytes the table occupies.
func (t *Table) Size() int {
	return t.size
}

// Find looks name up in this table only.
func (t *Table) Find(name string) (Symbol, bool) {
	for _, s := range t.Symbols {
		if s.Name == name {
			return s, true
		}
	}
	return Symbol{}, false
}

// Offset returns the sum of the sizes of the symbols declared before name.
func (t *Table) Offset(name string) (int, bool) {
	offset := 0
	for _, s := range t.Symbols {
		if s.Name == name {
			return offset, true
		}
		offset += s.Size
	}
	return 0, false
}

// OffsetOf is like Offset but matches the binding itself.
func (t *Table) OffsetOf(b Binding) (int, bool) {
	offset := 0
	for _, s := range t.Symbols {
		if s.Binding == b {
			return offset, true
		}
		offset += s.Size
	}
	return 0, false
}

// Tables is the arena holding every scope of a compile unit.
type Tables struct {
	tables []*Table
}

// NewTables returns an empty arena.
func NewTables() *Tables {
	return &Tables{}
}

// New creates a table under parent. A table without parent is global,
// nested tables default to InheritedScope until the parser sets their kind.
func (ts *Tables) New(parent ScopeID) ScopeID {
	id := ScopeID(len(ts.tables))
	kind := InheritedScope
	if parent == NoScope {
		kind = GlobalScope
	}
	ts.tables = append(ts.tables, &Table{ID: id, Kind: kind, Parent: parent})
	return id
}

// Get returns the table with the given id.
func (ts *Tables) Get(id ScopeID) *Table {
	return ts.tables[id]
}

// Len returns the number of tables.
func (ts *Tables) Len() int {
	return len(ts.tables)
}

// Lookup finds name in id or any enclosing table.
func (ts *Tables) Lookup(id ScopeID, name string) (Symbol, bool) {
	for id != NoScope {
		t := ts.tables[id]
		if s, ok := t.Find(name); ok {
			return s, true
		}
		id = t.Parent
	}
	return Symbol{}, false
}

// Has reports whether name is bound in id, and in enclosing tables when recurse is set.
func (ts *Tables) Has(id ScopeID, name string, recurse bool) bool {
	if !recurse {
		_, ok := ts.tables[id].Find(name)
		return ok
	}
	_, ok := ts.Lookup(id, name)
	return ok
}

// Dump writes every table with its symbols, offsets and sizes.
func (ts *Tables) Dump(w io.Writer) {
	for _, t := range ts.tables {
		parent := "-"
		if t.Parent != NoScope {
			parent = fmt.Sprintf("%d", t.Parent)
		}
		fmt.Fprintf(w, "table %d (%s, parent %s, size %d)\n", t.ID, t.Kind, parent, t.size)
		offset := 0
		for _, s := range t.Symbols {
			fmt.Fprintf(w, "  %-16s %4d %3d  %s\n", s.Name, offset, s.Size, bindingKind(s.Binding))
			offset += s.Size
		}
	}
}

func bindingKind(b Binding) string {
	switch v := b.(type) {
	case *TypeName:
		return "type " + v.T.Name
	case *Builtin:
		return "builtin " + v.T.Name
	case *VarDecl:
		return "var " + v.T.Name
	case *MemberDecl:
		return "member " + v.T.Name
	case *Param:
		return "param " + v.T.Name
	case *FunctionDecl:
		return "function"
	case *MethodDecl:
		return "method"
	case *StateMethodDecl:
		return "state method"
	case *StateDecl:
		return "state"
	}
	return strings.ToLower(fmt.Sprintf("%T", b))
}

// TypeName binds a name to a type.
type TypeName struct {
	T *Type
}

func (t *TypeName) Type() *Type { return t.T }

// IsLValueBinding reports whether a binding can be assigned to.
func IsLValueBinding(b Binding) bool {
	switch v := b.(type) {
	case *VarDecl, *MemberDecl, *Param:
		return b.Type().IsNumeric()
	case *Builtin:
		return v.T.IsNumeric() && !v.ReadOnly
	}
	return false
}

// IsRValueBinding reports whether a binding yields a value.
func IsRValueBinding(b Binding) bool {
	switch v := b.(type) {
	case *VarDecl, *MemberDecl, *Param, *Builtin:
		return true
	case Callable:
		return v.Decl().Ret.Kind != VoidKind
	}
	return false
}
