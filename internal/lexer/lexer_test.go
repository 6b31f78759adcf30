package lexer

import (
	"testing"

	"github.com/dust-lang/dust/internal/token"
)

func collect(src string) []token.Token {
	l := New(src)
	var toks []token.Token
	for {
		tok := l.NextToken()
		toks = append(toks, tok)
		if tok.Kind == token.EOF {
			break
		}
	}
	return toks
}

func TestBasicTokens(t *testing.T) {
	toks := collect(`let mut x = 1 + 2.5 * fib(n-1)`)
	wantKinds := []token.Kind{
		token.LET, token.MUT, token.IDENT, token.ASSIGN, token.INT, token.PLUS,
		token.FLOAT, token.ASTERISK, token.IDENT, token.LPAREN, token.IDENT,
		token.MINUS, token.INT, token.RPAREN, token.EOF,
	}
	if len(toks) != len(wantKinds) {
		t.Fatalf("got %d tokens, want %d: %+v", len(toks), len(wantKinds), toks)
	}
	for i, k := range wantKinds {
		if toks[i].Kind != k {
			t.Errorf("token %d: got %s, want %s", i, toks[i].Kind, k)
		}
	}
}

func TestStringEscapes(t *testing.T) {
	toks := collect(`"hi\nthere\x41\u{1F600}"`)
	if toks[0].Kind != token.STRING {
		t.Fatalf("got kind %s", toks[0].Kind)
	}
	got := toks[0].Literal.(string)
	want := "hi\nthereA\U0001F600"
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestUnterminatedString(t *testing.T) {
	toks := collect(`"oops`)
	if toks[0].Kind != token.ILLEGAL {
		t.Fatalf("expected ILLEGAL, got %s", toks[0].Kind)
	}
}

func TestByteHexLiteral(t *testing.T) {
	toks := collect(`0xFF`)
	if toks[0].Kind != token.BYTE_HEX || toks[0].Literal.(byte) != 0xFF {
		t.Fatalf("got %+v", toks[0])
	}
}

func TestCharLiteral(t *testing.T) {
	toks := collect(`'a' '\n'`)
	if toks[0].Kind != token.CHAR || toks[0].Literal.(rune) != 'a' {
		t.Fatalf("got %+v", toks[0])
	}
	if toks[1].Kind != token.CHAR || toks[1].Literal.(rune) != '\n' {
		t.Fatalf("got %+v", toks[1])
	}
}

func TestIntWrapLexemePreserved(t *testing.T) {
	toks := collect(`9223372036854775807`)
	if toks[0].Kind != token.INT || toks[0].Literal.(int64) != 9223372036854775807 {
		t.Fatalf("got %+v", toks[0])
	}
}

func TestLineComment(t *testing.T) {
	toks := collect("let x = 1 // trailing\nlet y = 2")
	var kinds []token.Kind
	for _, tk := range toks {
		kinds = append(kinds, tk.Kind)
	}
	foundNewline := false
	for _, k := range kinds {
		if k == token.NEWLINE {
			foundNewline = true
		}
	}
	if !foundNewline {
		t.Fatalf("expected a NEWLINE token, got %+v", kinds)
	}
}

func TestTotality(t *testing.T) {
	// Lexer totality: arbitrary bytes must terminate with an EOF token.
	inputs := []string{"", "\x00\x01", "let", "\"\\q\"", "'", "@#$"}
	for _, in := range inputs {
		toks := collect(in)
		if len(toks) == 0 || toks[len(toks)-1].Kind != token.EOF {
			t.Fatalf("input %q: lexer did not terminate with EOF: %+v", in, toks)
		}
	}
}
