package parser_test

import (
	"errors"
	"testing"

	"github.com/sandrolain/searchexpr/pkg/parser"
	"github.com/sandrolain/searchexpr/pkg/types"
)

func TestParseCall(t *testing.T) {
	n, err := parser.Parse(`Sort{t:mesh, @label, desc}`)
	if err != nil {
		t.Fatal(err)
	}
	if !n.Types.Has(types.Function|types.Iterable) || n.Name != "sort" {
		t.Fatalf("unexpected root %s %q", n.Types, n.Name)
	}
	if n.Outer != `Sort{t:mesh, @label, desc}` || n.Inner != `t:mesh, @label, desc` {
		t.Fatalf("unexpected spans %q / %q", n.Outer, n.Inner)
	}
	if len(n.Args) != 3 {
		t.Fatalf("expected 3 args, got %d", len(n.Args))
	}

	q, sel, kw := n.Args[0], n.Args[1], n.Args[2]
	if !q.Types.Has(types.QueryString) || q.Types.Has(types.Keyword) || q.Inner != "t:mesh" || q.Name != "query" {
		t.Errorf("arg 0: %s %q", q.Types, q.Inner)
	}
	if sel.Types != types.Selector || sel.Inner != "label" || sel.Outer != "@label" {
		t.Errorf("arg 1: %s %q", sel.Types, sel.Outer)
	}
	if !kw.Types.Has(types.Keyword|types.QueryString|types.Iterable) || kw.Inner != "desc" {
		t.Errorf("arg 2: %s %q", kw.Types, kw.Inner)
	}
	if kw.Position != 21 {
		t.Errorf("arg 2 position = %d", kw.Position)
	}
}

func TestParseLiterals(t *testing.T) {
	tests := []struct {
		input string
		flags types.TypeFlags
		value interface{}
	}{
		{`"text"`, types.Text, "text"},
		{`'single'`, types.Text, "single"},
		{`"a\"b"`, types.Text, `a"b`},
		{`42`, types.Number, 42.0},
		{`-1.5`, types.Number, -1.5},
		{`2e3`, types.Number, 2000.0},
		{`true`, types.Boolean, true},
		{`false`, types.Boolean, false},
	}
	for _, tt := range tests {
		n, err := parser.Parse(tt.input)
		if err != nil {
			t.Fatalf("%s: %v", tt.input, err)
		}
		if n.Types != tt.flags || n.Value != tt.value {
			t.Errorf("%s: got %s %v, want %s %v", tt.input, n.Types, n.Value, tt.flags, tt.value)
		}
	}
}

func TestParseGroup(t *testing.T) {
	n := parser.MustParse(`{a, 1, "b"}`)
	if !n.Types.Has(types.Group) || n.Name != "set" || len(n.Args) != 3 {
		t.Fatalf("unexpected group %s %q with %d args", n.Types, n.Name, len(n.Args))
	}

	empty := parser.MustParse(`set{}`)
	if len(empty.Args) != 0 || empty.Inner != "" {
		t.Fatalf("unexpected empty call %+v", empty)
	}
}

func TestParseQueryText(t *testing.T) {
	tests := []struct {
		input string
		inner string
		args  int
	}{
		{`t:mesh`, "t:mesh", 0},
		{`*`, "*", 0},
		{`size>10 -t:light`, "size>10 -t:light", 0},
		{`label="a b"`, `label="a b"`, 0},
		{`t:mesh ref={set{a,b}}`, "t:mesh ref={set{a,b}}", 1},
		{`"a" b`, `"a" b`, 0},
	}
	for _, tt := range tests {
		n, err := parser.Parse(tt.input)
		if err != nil {
			t.Fatalf("%s: %v", tt.input, err)
		}
		if !n.Types.Has(types.QueryString|types.Iterable) || n.Types.Has(types.Keyword) {
			t.Errorf("%s: flags %s", tt.input, n.Types)
		}
		if n.Inner != tt.inner || len(n.Args) != tt.args {
			t.Errorf("%s: got %q with %d args", tt.input, n.Inner, len(n.Args))
		}
	}

	spread := parser.MustParse(`t:mesh ref={set{a,b}}`).Args[0]
	if !spread.Types.Has(types.Group) || spread.Outer != "{set{a,b}}" {
		t.Fatalf("unexpected spread argument %s %q", spread.Types, spread.Outer)
	}
}

func TestParseAlias(t *testing.T) {
	n := parser.MustParse(`count{t:mesh} as meshes`)
	if n.Alias != "meshes" || n.Outer != "count{t:mesh}" {
		t.Fatalf("got alias %q outer %q", n.Alias, n.Outer)
	}
	if n.String() != "count{t:mesh} as meshes" {
		t.Fatalf("String() = %q", n.String())
	}

	q := parser.MustParse(`union{t:mesh as meshes, @size as "file size"}`)
	if q.Args[0].Alias != "meshes" || q.Args[0].Inner != "t:mesh" {
		t.Errorf("query alias: %q / %q", q.Args[0].Alias, q.Args[0].Inner)
	}
	if q.Args[1].Alias != "file size" {
		t.Errorf("quoted alias: %q", q.Args[1].Alias)
	}

	// "as" inside free text only aliases when it ends the term.
	free := parser.MustParse(`label:as`)
	if free.Alias != "" {
		t.Errorf("unexpected alias %q", free.Alias)
	}
}

func TestParseComments(t *testing.T) {
	n, err := parser.Parse(`/* all meshes */ count{ /* here */ t:mesh}`)
	if err != nil {
		t.Fatal(err)
	}
	if n.Name != "count" || len(n.Args) != 1 {
		t.Fatalf("unexpected node %q with %d args", n.Name, len(n.Args))
	}
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		input string
		code  types.ErrorCode
	}{
		{``, types.ErrEmptyExpression},
		{`   `, types.ErrEmptyExpression},
		{`"abc`, types.ErrStringNotClosed},
		{`union{a`, types.ErrUnexpectedEnd},
		{`union{a}}`, types.ErrUnexpectedToken},
		{`{,}`, types.ErrUnexpectedToken},
		{`/* open`, types.ErrUnexpectedEnd},
	}
	for _, tt := range tests {
		_, err := parser.Parse(tt.input)
		var xe *types.Error
		if !errors.As(err, &xe) {
			t.Errorf("%q: expected *types.Error, got %v", tt.input, err)
			continue
		}
		if xe.Code != tt.code {
			t.Errorf("%q: expected %s, got %s (%s)", tt.input, tt.code, xe.Code, xe.Message)
		}
	}
}

func TestParseMaxDepth(t *testing.T) {
	_, err := parser.Compile(`set{set{set{1}}}`, parser.WithMaxDepth(2))
	var xe *types.Error
	if !errors.As(err, &xe) || xe.Code != types.ErrMaxDepthExceeded {
		t.Fatalf("expected %s, got %v", types.ErrMaxDepthExceeded, err)
	}
	if _, err := parser.Compile(`set{set{set{1}}}`, parser.WithMaxDepth(3)); err != nil {
		t.Fatal(err)
	}
}

func TestMustParsePanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic")
		}
	}()
	parser.MustParse(`union{`)
}
