package natives

import (
	"bytes"
	"strings"
	"testing"
)

func TestWriteLine(t *testing.T) {
	var out bytes.Buffer
	table := NewTable(&out, strings.NewReader(""))
	e, ok := table.Lookup("write_line")
	if !ok {
		t.Fatal("write_line not registered")
	}
	if _, err := e.Fn([]any{"Hello world"}); err != nil {
		t.Fatal(err)
	}
	if out.String() != "Hello world\n" {
		t.Fatalf("got %q", out.String())
	}
}

func TestReadLine(t *testing.T) {
	table := NewTable(&bytes.Buffer{}, strings.NewReader("hi there\n"))
	e, _ := table.Lookup("read_line")
	result, err := e.Fn(nil)
	if err != nil {
		t.Fatal(err)
	}
	if result.(string) != "hi there" {
		t.Fatalf("got %q", result)
	}
}

func TestIntToStr(t *testing.T) {
	table := NewTable(&bytes.Buffer{}, strings.NewReader(""))
	e, _ := table.Lookup("int_to_str")
	result, err := e.Fn([]any{int64(-42)})
	if err != nil {
		t.Fatal(err)
	}
	if result.(string) != "-42" {
		t.Fatalf("got %q", result)
	}
}

func TestUnknownNativeNotRegistered(t *testing.T) {
	table := NewTable(&bytes.Buffer{}, strings.NewReader(""))
	if _, ok := table.Lookup("not_a_native"); ok {
		t.Fatal("expected lookup to fail for unknown native")
	}
}

func TestByID(t *testing.T) {
	table := NewTable(&bytes.Buffer{}, strings.NewReader(""))
	e, _ := table.Lookup("write_line")
	if table.ByID(e.ID).Name != "write_line" {
		t.Fatalf("ByID mismatch")
	}
}
