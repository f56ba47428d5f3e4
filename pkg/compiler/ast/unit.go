package ast

import "github.com/zurustar/padscript/pkg/compiler/diag"

// Builtins are the controller fields visible to every program, in register order.
var Builtins = []*Builtin{
	{Name: "LPadX", T: Int},
	{Name: "LPadY", T: Int},
	{Name: "RPadX", T: Int},
	{Name: "RPadY", T: Int},
	{Name: "Hat", T: Int},
	{Name: "Square", T: Int},
	{Name: "Cross", T: Int},
	{Name: "Circle", T: Int},
	{Name: "Triangle", T: Int},
	{Name: "L1", T: Int},
	{Name: "L2", T: Int},
	{Name: "R1", T: Int},
	{Name: "R2", T: Int},
	{Name: "Share", T: Int},
	{Name: "Options", T: Int},
	{Name: "L3", T: Int},
	{Name: "R3", T: Int},
	{Name: "PS", T: Int},
	{Name: "TPad", T: Int},
	{Name: "L2Value", T: Int},
	{Name: "R2Value", T: Int},
	{Name: "IMUX", T: Float, ReadOnly: true},
	{Name: "IMUY", T: Float, ReadOnly: true},
	{Name: "IMUZ", T: Float, ReadOnly: true},
	{Name: "DELTA", T: Int, ReadOnly: true},
	{Name: "ACCELX", T: Int, ReadOnly: true},
	{Name: "ACCELY", T: Int, ReadOnly: true},
	{Name: "ACCELZ", T: Int, ReadOnly: true},
}

// Unit is the state shared by every phase compiling one source text.
type Unit struct {
	Tables *Tables
	Global ScopeID
	Root   *Compound
	Diags  diag.List
}

// NewUnit returns a unit whose global table holds the basic types and the builtins.
func NewUnit() *Unit {
	ts := NewTables()
	global := ts.New(NoScope)
	table := ts.Get(global)
	for _, t := range []*Type{Void, Int, Float} {
		table.Add(t.Name, &TypeName{T: t}, 0)
	}
	for _, b := range Builtins {
		table.Add(b.Name, b, 0)
	}
	return &Unit{Tables: ts, Global: global}
}

// Table returns the table of a scope.
func (u *Unit) Table(id ScopeID) *Table {
	return u.Tables.Get(id)
}
