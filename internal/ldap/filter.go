package ldap

import (
	"encoding/hex"
	"errors"
	"strings"

	"github.com/KilimcininKorOglu/adnotify/internal/ber"
)

// Filter tag numbers (context-specific) per RFC 4511
const (
	FilterTagAnd            = 0 // [0] SET OF filter
	FilterTagOr             = 1 // [1] SET OF filter
	FilterTagNot            = 2 // [2] Filter
	FilterTagEquality       = 3 // [3] AttributeValueAssertion
	FilterTagSubstrings     = 4 // [4] SubstringFilter
	FilterTagGreaterOrEqual = 5 // [5] AttributeValueAssertion
	FilterTagLessOrEqual    = 6 // [6] AttributeValueAssertion
	FilterTagPresent        = 7 // [7] AttributeDescription
	FilterTagApproxMatch    = 8 // [8] AttributeValueAssertion
)

// Substring filter component tags
const (
	SubstringInitial = 0
	SubstringAny     = 1
	SubstringFinal   = 2
)

// Filter parser errors
var (
	ErrEmptyFilter      = errors.New("ldap: empty filter")
	ErrInvalidFilter    = errors.New("ldap: invalid filter syntax")
	ErrUnbalancedParens = errors.New("ldap: unbalanced parentheses in filter")
	ErrMissingAttribute = errors.New("ldap: missing attribute name in filter")
	ErrInvalidEscape    = errors.New("ldap: invalid escape in filter value")
)

// Filter is a search filter tree.
type Filter struct {
	Tag       int
	Attribute string
	Value     []byte
	Children  []*Filter
	// Substring components, only for FilterTagSubstrings.
	Initial []byte
	Any     [][]byte
	Final   []byte
}

// PresentFilter matches entries that have the attribute.
func PresentFilter(attr string) *Filter {
	return &Filter{Tag: FilterTagPresent, Attribute: attr}
}

// EqualityFilter matches entries whose attribute equals value.
func EqualityFilter(attr string, value []byte) *Filter {
	return &Filter{Tag: FilterTagEquality, Attribute: attr, Value: value}
}

// And matches entries that match every child.
func And(children ...*Filter) *Filter {
	return &Filter{Tag: FilterTagAnd, Children: children}
}

// Or matches entries that match any child.
func Or(children ...*Filter) *Filter {
	return &Filter{Tag: FilterTagOr, Children: children}
}

// Not negates child.
func Not(child *Filter) *Filter {
	return &Filter{Tag: FilterTagNot, Children: []*Filter{child}}
}

func (f *Filter) encode(enc *ber.Encoder) error {
	switch f.Tag {
	case FilterTagAnd, FilterTagOr, FilterTagNot:
		if f.Tag == FilterTagNot && len(f.Children) != 1 {
			return ErrInvalidFilter
		}
		pos := enc.BeginContext(f.Tag)
		for _, c := range f.Children {
			if err := c.encode(enc); err != nil {
				return err
			}
		}
		return enc.End(pos)

	case FilterTagPresent:
		return enc.WriteTaggedValue(FilterTagPresent, false, []byte(f.Attribute))

	case FilterTagEquality, FilterTagGreaterOrEqual, FilterTagLessOrEqual, FilterTagApproxMatch:
		pos := enc.BeginContext(f.Tag)
		if err := enc.WriteString(f.Attribute); err != nil {
			return err
		}
		if err := enc.WriteOctetString(f.Value); err != nil {
			return err
		}
		return enc.End(pos)

	case FilterTagSubstrings:
		pos := enc.BeginContext(FilterTagSubstrings)
		if err := enc.WriteString(f.Attribute); err != nil {
			return err
		}
		seq := enc.BeginSequence()
		if f.Initial != nil {
			if err := enc.WriteTaggedValue(SubstringInitial, false, f.Initial); err != nil {
				return err
			}
		}
		for _, a := range f.Any {
			if err := enc.WriteTaggedValue(SubstringAny, false, a); err != nil {
				return err
			}
		}
		if f.Final != nil {
			if err := enc.WriteTaggedValue(SubstringFinal, false, f.Final); err != nil {
				return err
			}
		}
		if err := enc.End(seq); err != nil {
			return err
		}
		return enc.End(pos)

	default:
		return ErrInvalidFilter
	}
}

// ParseFilter parses an RFC 4515 filter string such as
// "(&(objectClass=dnsNode)(dc=srv*))". A bare "attr=value" without
// parentheses is accepted.
func ParseFilter(s string) (*Filter, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, ErrEmptyFilter
	}
	if !strings.HasPrefix(s, "(") {
		if strings.ContainsAny(s, "()") {
			return nil, ErrInvalidFilter
		}
		s = "(" + s + ")"
	}
	f, rest, err := parseFilter(s)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(rest) != "" {
		return nil, ErrInvalidFilter
	}
	return f, nil
}

// parseFilter consumes one parenthesised filter and returns what follows.
func parseFilter(s string) (*Filter, string, error) {
	if s == "" || s[0] != '(' {
		return nil, "", ErrInvalidFilter
	}
	end := matchingParen(s)
	if end < 0 {
		return nil, "", ErrUnbalancedParens
	}
	inner, rest := s[1:end], s[end+1:]
	if inner == "" {
		return nil, "", ErrEmptyFilter
	}

	switch inner[0] {
	case '&', '|':
		children, err := parseFilterList(inner[1:])
		if err != nil {
			return nil, "", err
		}
		if len(children) == 0 {
			return nil, "", ErrInvalidFilter
		}
		if inner[0] == '&' {
			return And(children...), rest, nil
		}
		return Or(children...), rest, nil
	case '!':
		children, err := parseFilterList(inner[1:])
		if err != nil {
			return nil, "", err
		}
		if len(children) != 1 {
			return nil, "", ErrInvalidFilter
		}
		return Not(children[0]), rest, nil
	default:
		f, err := parseItem(inner)
		return f, rest, err
	}
}

func matchingParen(s string) int {
	depth := 0
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '(':
			depth++
		case ')':
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}

func parseFilterList(s string) ([]*Filter, error) {
	var filters []*Filter
	s = strings.TrimSpace(s)
	for s != "" {
		f, rest, err := parseFilter(s)
		if err != nil {
			return nil, err
		}
		filters = append(filters, f)
		s = strings.TrimSpace(rest)
	}
	return filters, nil
}

func parseItem(s string) (*Filter, error) {
	for _, op := range []struct {
		token string
		tag   int
	}{
		{">=", FilterTagGreaterOrEqual},
		{"<=", FilterTagLessOrEqual},
		{"~=", FilterTagApproxMatch},
	} {
		if idx := strings.Index(s, op.token); idx >= 0 {
			attr := strings.TrimSpace(s[:idx])
			if attr == "" {
				return nil, ErrMissingAttribute
			}
			value, err := unescapeValue(s[idx+2:])
			if err != nil {
				return nil, err
			}
			return &Filter{Tag: op.tag, Attribute: attr, Value: value}, nil
		}
	}

	idx := strings.IndexByte(s, '=')
	if idx < 0 {
		return nil, ErrInvalidFilter
	}
	attr := strings.TrimSpace(s[:idx])
	if attr == "" {
		return nil, ErrMissingAttribute
	}
	raw := s[idx+1:]

	if raw == "*" {
		return PresentFilter(attr), nil
	}
	if !strings.Contains(raw, "*") {
		value, err := unescapeValue(raw)
		if err != nil {
			return nil, err
		}
		return EqualityFilter(attr, value), nil
	}

	parts := strings.Split(raw, "*")
	f := &Filter{Tag: FilterTagSubstrings, Attribute: attr}
	for i, part := range parts {
		if part == "" {
			continue
		}
		value, err := unescapeValue(part)
		if err != nil {
			return nil, err
		}
		switch i {
		case 0:
			f.Initial = value
		case len(parts) - 1:
			f.Final = value
		default:
			f.Any = append(f.Any, value)
		}
	}
	return f, nil
}

// unescapeValue decodes RFC 4515 \XX escapes.
func unescapeValue(s string) ([]byte, error) {
	if !strings.Contains(s, `\`) {
		return []byte(s), nil
	}
	out := make([]byte, 0, len(s))
	for i := 0; i < len(s); i++ {
		if s[i] != '\\' {
			out = append(out, s[i])
			continue
		}
		if i+3 > len(s) {
			return nil, ErrInvalidEscape
		}
		b, err := hex.DecodeString(s[i+1 : i+3])
		if err != nil {
			return nil, ErrInvalidEscape
		}
		out = append(out, b[0])
		i += 2
	}
	return out, nil
}
