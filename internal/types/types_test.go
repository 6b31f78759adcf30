package types

import "testing"

func TestEqualityStructural(t *testing.T) {
	a := List{Elem: Int}
	b := List{Elem: Int}
	if !a.Equal(b) {
		t.Fatalf("expected structurally equal list types to be equal")
	}
	c := List{Elem: Float}
	if a.Equal(c) {
		t.Fatalf("expected list<int> != list<float>")
	}
}

func TestFunctionEquality(t *testing.T) {
	f1 := Function{Params: []Type{Int, Int}, Return: Int}
	f2 := Function{Params: []Type{Int, Int}, Return: Int}
	if !f1.Equal(f2) {
		t.Fatalf("expected equal function types")
	}
	f3 := Function{Params: []Type{Int}, Return: Int}
	if f1.Equal(f3) {
		t.Fatalf("expected different arity to differ")
	}
}

func TestUnifyMismatch(t *testing.T) {
	if err := Unify(Int, Float); err == nil {
		t.Fatalf("expected mismatch error")
	}
	if err := Unify(Int, Int); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
