package provider

import (
	"strconv"
	"strings"

	"github.com/lithammer/fuzzysearch/fuzzy"
	"github.com/spf13/cast"

	"github.com/sandrolain/searchexpr/pkg/types"
)

// fieldAliases maps filter shorthands onto field names.
var fieldAliases = map[string]string{
	"t": "type",
	"l": "label",
	"d": "description",
}

// term is one whitespace separated token of provider query text.
type term struct {
	field string
	op    string
	value string
	// negate inverts the term ("-word", "-field:value").
	negate bool
}

// Filter is a parsed provider query. All terms must match.
type Filter struct {
	terms []term
	all   bool
}

// ParseFilter parses provider query text. Supported terms are "*", bare
// words matched fuzzily on label and id, "field:value" (case insensitive
// contains), "field=value", "field>n", "field<n", "field>=n" and "field<=n".
// A leading "-" negates a term.
func ParseFilter(text string) *Filter {
	f := &Filter{}
	for _, tok := range tokenize(text) {
		if tok == "*" {
			f.all = true
			continue
		}
		t := term{}
		if strings.HasPrefix(tok, "-") && len(tok) > 1 {
			t.negate = true
			tok = tok[1:]
		}
		if i := strings.IndexAny(tok, ":=<>"); i > 0 {
			t.field = tok[:i]
			t.op = string(tok[i])
			rest := tok[i+1:]
			if (t.op == "<" || t.op == ">") && strings.HasPrefix(rest, "=") {
				t.op += "="
				rest = rest[1:]
			}
			t.value = unquote(rest)
			if alias, ok := fieldAliases[t.field]; ok {
				t.field = alias
			}
		} else {
			t.value = unquote(tok)
		}
		f.terms = append(f.terms, t)
	}
	if len(f.terms) == 0 {
		f.all = true
	}
	return f
}

// Match reports whether r satisfies every term.
func (f *Filter) Match(r *types.Record) bool {
	for _, t := range f.terms {
		if t.match(r) == t.negate {
			return false
		}
	}
	return true
}

func (t term) match(r *types.Record) bool {
	if t.field == "" {
		return fuzzy.MatchFold(t.value, r.Label) || fuzzy.MatchFold(t.value, r.ID)
	}
	v, ok := r.Select(t.field)
	if !ok {
		return false
	}
	switch t.op {
	case ":":
		return strings.Contains(strings.ToLower(cast.ToString(v)), strings.ToLower(t.value))
	case "=":
		return strings.EqualFold(cast.ToString(v), t.value)
	}
	left, err := cast.ToFloat64E(v)
	if err != nil {
		return false
	}
	right, err := strconv.ParseFloat(t.value, 64)
	if err != nil {
		return false
	}
	switch t.op {
	case ">":
		return left > right
	case ">=":
		return left >= right
	case "<":
		return left < right
	case "<=":
		return left <= right
	}
	return false
}

// tokenize splits on whitespace, keeping double quoted spans together.
func tokenize(text string) []string {
	var out []string
	var b strings.Builder
	quoted := false
	for _, ch := range text {
		switch {
		case ch == '"':
			quoted = !quoted
			b.WriteRune(ch)
		case !quoted && (ch == ' ' || ch == '\t' || ch == '\n' || ch == '\r'):
			if b.Len() > 0 {
				out = append(out, b.String())
				b.Reset()
			}
		default:
			b.WriteRune(ch)
		}
	}
	if b.Len() > 0 {
		out = append(out, b.String())
	}
	return out
}

func unquote(s string) string {
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		return strings.ReplaceAll(s[1:len(s)-1], `\"`, `"`)
	}
	return s
}
