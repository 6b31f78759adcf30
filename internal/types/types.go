// Package types implements Dust's type lattice: the primitive, list and
// function type variants, structural equality, and unification.
// Simplified from a Hindley-Milner type system (kinds, TVar/TApp/TCon,
// row polymorphism) since Dust's type system has no inference
// variables to generalize — every binding's type is fully determined
// at its point of declaration.
package types

import (
	"fmt"
	"strings"
)

// Type is the closed lattice of Dust value types.
type Type interface {
	String() string
	Equal(Type) bool
	isType()
}

// primitive is a nullary type constructor (Bool, Byte, Char, Float,
// Int, Str, None).
type primitive struct{ name string }

func (p primitive) String() string { return p.name }
func (p primitive) isType()        {}
func (p primitive) Equal(o Type) bool {
	op, ok := o.(primitive)
	return ok && op.name == p.name
}

var (
	Bool  Type = primitive{"bool"}
	Byte  Type = primitive{"byte"}
	Char  Type = primitive{"char"}
	Float Type = primitive{"float"}
	Int   Type = primitive{"int"}
	Str   Type = primitive{"str"}
	None  Type = primitive{"none"}
)

// List is a homogeneous list type.
type List struct{ Elem Type }

func (l List) String() string { return fmt.Sprintf("list<%s>", l.Elem) }
func (l List) isType()        {}
func (l List) Equal(o Type) bool {
	ol, ok := o.(List)
	return ok && l.Elem.Equal(ol.Elem)
}

// Function is a first-order function type.
type Function struct {
	Params []Type
	Return Type
}

func (f Function) String() string {
	parts := make([]string, len(f.Params))
	for i, p := range f.Params {
		parts[i] = p.String()
	}
	return fmt.Sprintf("fn(%s) -> %s", strings.Join(parts, ", "), f.Return)
}

func (f Function) isType() {}
func (f Function) Equal(o Type) bool {
	of, ok := o.(Function)
	if !ok || len(of.Params) != len(f.Params) || !f.Return.Equal(of.Return) {
		return false
	}
	for i := range f.Params {
		if !f.Params[i].Equal(of.Params[i]) {
			return false
		}
	}
	return true
}

// IsNumeric reports whether t is Int or Float.
func IsNumeric(t Type) bool {
	return t.Equal(Int) || t.Equal(Float)
}
