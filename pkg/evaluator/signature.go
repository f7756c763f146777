package evaluator

import (
	"fmt"
	"strings"

	"github.com/sandrolain/searchexpr/pkg/types"
)

// typeCodes maps signature codes to type flags.
var typeCodes = map[byte]types.TypeFlags{
	'i': types.Iterable,
	's': types.Selector,
	't': types.Text,
	'n': types.Number,
	'b': types.Boolean,
	'k': types.Keyword,
	'f': types.Function,
	'g': types.Group,
	'q': types.QueryString,
	'x': types.AnyValue,
	'*': types.AnyExpression,
}

// Signature is a parsed evaluator signature: one flag set per parameter,
// modifiers included.
type Signature struct {
	Text   string
	Params []types.TypeFlags
}

// ParseSignature parses a compact signature string.
// Examples: "<i+>", "<i-s?>", "<s?-i!+>", "<i-(stfk)+>"
func ParseSignature(sig string) (*Signature, error) {
	if !strings.HasPrefix(sig, "<") || !strings.HasSuffix(sig, ">") {
		return nil, signatureError(sig, "must be enclosed in < >")
	}

	s := &Signature{Text: sig}
	body := sig[1 : len(sig)-1]
	if body == "" {
		return s, nil
	}

	for _, part := range strings.Split(body, "-") {
		p, err := parseParam(part)
		if err != nil {
			return nil, signatureError(sig, err.Error())
		}
		s.Params = append(s.Params, p)
	}

	for i, p := range s.Params {
		if p.Has(types.Variadic) && i != len(s.Params)-1 {
			return nil, signatureError(sig, "only the last parameter may be variadic")
		}
	}
	return s, nil
}

// parseParam parses one parameter: a type code or a parenthesised union,
// followed by modifiers.
func parseParam(part string) (types.TypeFlags, error) {
	if part == "" {
		return 0, fmt.Errorf("empty parameter")
	}

	var flags types.TypeFlags
	i := 0
	if part[0] == '(' {
		end := strings.IndexByte(part, ')')
		if end < 0 {
			return 0, fmt.Errorf("unclosed union in %q", part)
		}
		for j := 1; j < end; j++ {
			f, ok := typeCodes[part[j]]
			if !ok {
				return 0, fmt.Errorf("unknown type code %q", part[j])
			}
			flags |= f
		}
		if flags == 0 {
			return 0, fmt.Errorf("empty union")
		}
		i = end + 1
	} else {
		f, ok := typeCodes[part[0]]
		if !ok {
			return 0, fmt.Errorf("unknown type code %q", part[0])
		}
		flags = f
		i = 1
	}

	for ; i < len(part); i++ {
		switch part[i] {
		case '?':
			flags |= types.Optional
		case '+':
			flags |= types.Variadic
		case '!':
			flags |= types.AlwaysExpand
		default:
			return 0, fmt.Errorf("unknown modifier %q", part[i])
		}
	}
	return flags, nil
}

func signatureError(sig, msg string) error {
	return types.NewError(types.ErrInvalidSignature, fmt.Sprintf("Invalid signature %s: %s", sig, msg), -1)
}

// Match checks args against the signature. On success it returns, for each
// argument, the parameter flags it was matched to.
func (s *Signature) Match(args []*types.Node) ([]types.TypeFlags, bool) {
	matched := make([]types.TypeFlags, len(args))
	j := 0
	for _, p := range s.Params {
		want := p.Kinds()
		if p.Has(types.Variadic) {
			n := 0
			for j < len(args) && args[j].Types.Any(want) {
				matched[j] = p
				j++
				n++
			}
			if n == 0 && !p.Has(types.Optional) {
				return nil, false
			}
			continue
		}
		if j < len(args) && args[j].Types.Any(want) {
			matched[j] = p
			j++
			continue
		}
		if p.Has(types.Optional) {
			continue
		}
		return nil, false
	}
	if j != len(args) {
		return nil, false
	}
	return matched, true
}

// sameShape reports whether two signatures cannot be told apart by arity or
// leading parameter kinds.
func sameShape(a, b *Signature) bool {
	if len(a.Params) != len(b.Params) {
		return false
	}
	if len(a.Params) == 0 {
		return true
	}
	return a.Params[0].Kinds() == b.Params[0].Kinds()
}

// String returns the signature source text.
func (s *Signature) String() string {
	return s.Text
}
