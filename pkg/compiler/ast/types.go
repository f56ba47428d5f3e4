package ast

import "fmt"

// TypeKind discriminates Type values.
type TypeKind int

const (
	VoidKind TypeKind = iota
	IntKind
	FloatKind
	StructKind
	StateKind
	FunctionKind
	MethodKind
	StateMethodKind
)

// Type describes the static type of an expression or binding.
type Type struct {
	Kind TypeKind
	Name string

	size int

	// Struct is set for StructKind.
	Struct *StructDecl

	// Return and Params are set for the callable kinds.
	Return *Type
	Params []*Type
}

var (
	Void  = &Type{Kind: VoidKind, Name: "void"}
	Int   = &Type{Kind: IntKind, Name: "int", size: 2}
	Float = &Type{Kind: FloatKind, Name: "float", size: 4}
	State = &Type{Kind: StateKind, Name: "state"}
)

// NewStructType returns the type of a struct declaration. Its size is the
// sum of the member sizes.
func NewStructType(decl *StructDecl) *Type {
	size := 0
	for _, m := range decl.Members {
		size += m.T.Size()
	}
	return &Type{Kind: StructKind, Name: decl.Name, size: size, Struct: decl}
}

// NewCallableType returns a function, method or state method type.
func NewCallableType(kind TypeKind, ret *Type, params []*Type) *Type {
	return &Type{Kind: kind, Name: "function", Return: ret, Params: params}
}

func (t *Type) String() string { return t.Name }

// Size is the number of stack bytes a value of this type occupies.
func (t *Type) Size() int { return t.size }

// IsNumeric reports whether t is int or float.
func (t *Type) IsNumeric() bool {
	return t.Kind == IntKind || t.Kind == FloatKind
}

// IsCallable reports whether t is a function, method or state method type.
func (t *Type) IsCallable() bool {
	switch t.Kind {
	case FunctionKind, MethodKind, StateMethodKind:
		return true
	}
	return false
}

// ArgSize is the total size of the parameters of a callable type.
func (t *Type) ArgSize() int {
	size := 0
	for _, p := range t.Params {
		size += p.Size()
	}
	return size
}

// SaveSize is the number of bytes saved on the stack between the return
// slot and the return address. Methods save the caller's TH register.
func (t *Type) SaveSize() int {
	if t.Kind == MethodKind {
		return 2
	}
	return 0
}

// HasMember reports whether the struct type has a member or method called name.
func (t *Type) HasMember(name string) bool {
	return t.MemberType(name) != nil
}

// MemberType returns the type of a struct member or method, or nil.
func (t *Type) MemberType(name string) *Type {
	if t.Kind != StructKind {
		return nil
	}
	for _, m := range t.Struct.Members {
		if m.Name == name {
			return m.T
		}
	}
	for _, m := range t.Struct.Methods {
		if m.Name == name {
			return m.Type()
		}
	}
	return nil
}

// Same reports whether two types are the same. Named types compare by name.
func Same(a, b *Type) bool {
	if a == b {
		return true
	}
	if a == nil || b == nil || a.Kind != b.Kind {
		return false
	}
	return a.Name == b.Name
}

// CastError is raised when two types cannot be reconciled.
type CastError struct {
	Message string
}

func (e *CastError) Error() string { return e.Message }

// MaxType returns the common type of a binary operation.
func MaxType(a, b *Type) (*Type, error) {
	if Same(a, b) {
		return a, nil
	}
	if a.IsNumeric() && b.IsNumeric() {
		return Float, nil
	}
	return nil, &CastError{Message: fmt.Sprintf("incompatible types %s and %s", a, b)}
}

// CastOp returns the unary operator converting a value of type from into
// type to. It returns "" when no conversion is needed.
func CastOp(to, from *Type) (string, error) {
	switch to.Kind {
	case IntKind:
		switch from.Kind {
		case IntKind:
			return "", nil
		case FloatKind:
			return "casti", nil
		}
		return "", &CastError{Message: fmt.Sprintf("cannot convert %s to int", from)}
	case FloatKind:
		switch from.Kind {
		case FloatKind:
			return "", nil
		case IntKind:
			return "castf", nil
		}
		return "", &CastError{Message: fmt.Sprintf("cannot convert %s to float", from)}
	}
	return "", &CastError{Message: fmt.Sprintf("cannot cast %s to %s", to, from)}
}

// EnsureType converts expr to type t. Constants are converted in place,
// other expressions are wrapped in a casti/castf unary node when needed.
func EnsureType(t *Type, expr Expr) (Expr, error) {
	op, err := CastOp(t, expr.Type())
	if err != nil {
		return nil, err
	}
	if c, ok := expr.(*Constant); ok {
		return c.Convert(t), nil
	}
	if op == "" {
		return expr, nil
	}
	return &Unary{Token: expr.Tok(), Op: op, X: expr}, nil
}
