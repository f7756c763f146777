package evaluator_test

import (
	"errors"
	"testing"

	"github.com/sandrolain/searchexpr/pkg/evaluator"
	"github.com/sandrolain/searchexpr/pkg/types"
)

var (
	numberArg   = types.NewLiteral(types.Number, 1.0, "1", 0)
	textArg     = types.NewLiteral(types.Text, "a", `"a"`, 0)
	queryArg    = types.NewNode(types.QueryString|types.Iterable, "query", "t:mesh", "t:mesh", 0)
	selectorArg = types.NewNode(types.Selector, "selector", "@size", "size", 0)
	keywordArg  = types.NewNode(types.Keyword|types.QueryString|types.Iterable, "query", "desc", "desc", 0)
	callArg     = types.NewNode(types.Function|types.Iterable, "count", "count{*}", "*", 0)
)

func TestParseSignature(t *testing.T) {
	tests := []struct {
		sig    string
		params int
	}{
		{"<>", 0},
		{"<i+>", 1},
		{"<n?-i+>", 2},
		{"<s?-i!+>", 2},
		{"<i-*-n-(tk)?+>", 4},
		{"<i-(stfk)+>", 2},
	}
	for _, tt := range tests {
		s, err := evaluator.ParseSignature(tt.sig)
		if err != nil {
			t.Fatalf("%s: %v", tt.sig, err)
		}
		if len(s.Params) != tt.params {
			t.Errorf("%s: got %d params, want %d", tt.sig, len(s.Params), tt.params)
		}
		if s.String() != tt.sig {
			t.Errorf("String() = %s, want %s", s.String(), tt.sig)
		}
	}

	s, _ := evaluator.ParseSignature("<s?-i!+>")
	if !s.Params[0].Has(types.Selector|types.Optional) || !s.Params[1].Has(types.Iterable|types.Variadic|types.AlwaysExpand) {
		t.Errorf("modifiers not parsed: %s, %s", s.Params[0], s.Params[1])
	}
}

func TestParseSignatureErrors(t *testing.T) {
	for _, sig := range []string{"i", "<z>", "<i+-s>", "<(is>", "<()>", "<i%>", "<i--s>"} {
		_, err := evaluator.ParseSignature(sig)
		var xe *types.Error
		if !errors.As(err, &xe) || xe.Code != types.ErrInvalidSignature {
			t.Errorf("%s: expected %s, got %v", sig, types.ErrInvalidSignature, err)
		}
	}
}

func TestSignatureMatch(t *testing.T) {
	tests := []struct {
		sig  string
		args []*types.Node
		ok   bool
	}{
		{"<>", nil, true},
		{"<>", []*types.Node{numberArg}, false},
		{"<n?-i+>", []*types.Node{numberArg, queryArg, callArg}, true},
		{"<n?-i+>", []*types.Node{queryArg}, true},
		{"<n?-i+>", []*types.Node{numberArg}, false},
		{"<i-s-(bk)?>", []*types.Node{queryArg, selectorArg}, true},
		{"<i-s-(bk)?>", []*types.Node{queryArg, selectorArg, keywordArg}, true},
		{"<i-s-(bk)?>", []*types.Node{queryArg, selectorArg, numberArg}, false},
		{"<i-s-x>", []*types.Node{queryArg, selectorArg, textArg}, true},
		{"<i-f+>", []*types.Node{queryArg, callArg, callArg}, true},
		{"<i-f+>", []*types.Node{queryArg, queryArg}, false},
	}
	for _, tt := range tests {
		s, err := evaluator.ParseSignature(tt.sig)
		if err != nil {
			t.Fatal(err)
		}
		params, ok := s.Match(tt.args)
		if ok != tt.ok {
			t.Errorf("%s with %d args: match = %v, want %v", tt.sig, len(tt.args), ok, tt.ok)
			continue
		}
		if ok && len(params) != len(tt.args) {
			t.Errorf("%s: got %d matched params for %d args", tt.sig, len(params), len(tt.args))
		}
	}

	s, _ := evaluator.ParseSignature("<n?-i+>")
	params, _ := s.Match([]*types.Node{numberArg, queryArg})
	if params[0].Kinds() != types.Number || params[1].Kinds() != types.Iterable {
		t.Errorf("unexpected params %v", params)
	}
}
