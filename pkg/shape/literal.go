package shape

import (
	"regexp"
	"strconv"
	"strings"

	cerrors "github.com/ajitpratap0/shapecsv/pkg/errors"
)

var numberPattern = regexp.MustCompile(`^[+-]?(\d+\.?\d*|\.\d+)([eE][+-]?\d+)?$`)

// ParseValue converts one CSV cell to a typed element: a number, a boolean,
// nil, a quoted string, a list of those, or, when the cell is none of these,
// the cell text itself.
func ParseValue(s string) interface{} {
	v, err := ParseLiteral(s)
	if err != nil {
		return s
	}
	return v
}

// ParseLiteral parses a restricted literal. Accepted forms are numbers,
// True/False/None, single- or double-quoted strings and bracketed lists of
// literals. Anything else, including identifiers and expressions, is
// rejected.
func ParseLiteral(s string) (interface{}, error) {
	p := &literalParser{src: s}
	p.skipSpace()
	v, err := p.value()
	if err != nil {
		return nil, err
	}
	p.skipSpace()
	if p.pos != len(p.src) {
		return nil, p.fail("unexpected trailing text")
	}
	return v, nil
}

type literalParser struct {
	src string
	pos int
}

func (p *literalParser) fail(msg string) error {
	return cerrors.New(cerrors.ErrorTypeValidation, "invalid literal: "+msg).
		WithDetail("value", truncate(p.src)).
		WithDetail("offset", p.pos)
}

func (p *literalParser) skipSpace() {
	for p.pos < len(p.src) && strings.ContainsRune(" \t\r\n", rune(p.src[p.pos])) {
		p.pos++
	}
}

func (p *literalParser) value() (interface{}, error) {
	if p.pos >= len(p.src) {
		return nil, p.fail("empty value")
	}
	switch c := p.src[p.pos]; {
	case c == '[' || c == '(':
		return p.list()
	case c == '\'' || c == '"':
		return p.quoted()
	default:
		return p.scalar()
	}
}

func (p *literalParser) list() (interface{}, error) {
	closer := byte(']')
	if p.src[p.pos] == '(' {
		closer = ')'
	}
	p.pos++
	out := make([]interface{}, 0)
	for {
		p.skipSpace()
		if p.pos >= len(p.src) {
			return nil, p.fail("unterminated list")
		}
		if p.src[p.pos] == closer {
			p.pos++
			return out, nil
		}
		v, err := p.value()
		if err != nil {
			return nil, err
		}
		out = append(out, v)
		p.skipSpace()
		if p.pos >= len(p.src) {
			return nil, p.fail("unterminated list")
		}
		switch p.src[p.pos] {
		case ',':
			p.pos++
		case closer:
		default:
			return nil, p.fail("expected ',' in list")
		}
	}
}

func (p *literalParser) quoted() (interface{}, error) {
	quote := p.src[p.pos]
	p.pos++
	var b strings.Builder
	for p.pos < len(p.src) {
		c := p.src[p.pos]
		switch {
		case c == '\\' && p.pos+1 < len(p.src):
			b.WriteByte(p.src[p.pos+1])
			p.pos += 2
		case c == quote:
			p.pos++
			return b.String(), nil
		default:
			b.WriteByte(c)
			p.pos++
		}
	}
	return nil, p.fail("unterminated string")
}

func (p *literalParser) scalar() (interface{}, error) {
	start := p.pos
	for p.pos < len(p.src) && !strings.ContainsRune(",])( \t\r\n", rune(p.src[p.pos])) {
		p.pos++
	}
	tok := p.src[start:p.pos]
	switch tok {
	case "True", "true":
		return true, nil
	case "False", "false":
		return false, nil
	case "None", "null":
		return nil, nil
	}
	if numberPattern.MatchString(tok) {
		f, err := strconv.ParseFloat(tok, 64)
		if err == nil {
			return f, nil
		}
	}
	p.pos = start
	return nil, p.fail("unsupported token")
}
