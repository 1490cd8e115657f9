package selector

import (
	"fmt"
	"strings"

	"anvil/internal/model"
)

// kindAliases are selector names covering several shape kinds.
var kindAliases = map[string][]model.ShapeKind{
	"collection": {model.ListKind, model.SetKind},
	"number": {
		model.ByteKind, model.ShortKind, model.IntegerKind, model.LongKind,
		model.FloatKind, model.DoubleKind, model.BigIntegerKind, model.BigDecimalKind,
	},
	"simpleType": {
		model.BlobKind, model.BooleanKind, model.StringKind, model.ByteKind,
		model.ShortKind, model.IntegerKind, model.LongKind, model.FloatKind,
		model.DoubleKind, model.BigIntegerKind, model.BigDecimalKind,
		model.TimestampKind, model.DocumentKind,
	},
}

// Parse compiles selector text. Errors carry the byte position of the
// offending token inside src.
func Parse(src string) (*Selector, error) {
	p := &parser{src: src}
	sel, err := p.selector(true)
	if err != nil {
		return nil, err
	}
	p.skipSpace()
	if !p.eof() {
		return nil, p.errorf("unexpected %q", p.rest())
	}
	sel.src = src
	return sel, nil
}

type parser struct {
	src string
	pos int
}

func (p *parser) errorf(format string, args ...any) error {
	return fmt.Errorf("selector %q at offset %d: %s", p.src, p.pos, fmt.Sprintf(format, args...))
}

func (p *parser) eof() bool {
	return p.pos >= len(p.src)
}

func (p *parser) rest() string {
	if p.eof() {
		return ""
	}
	return p.src[p.pos:]
}

func (p *parser) peek() byte {
	if p.eof() {
		return 0
	}
	return p.src[p.pos]
}

func (p *parser) skipSpace() bool {
	skipped := false
	for !p.eof() && (p.src[p.pos] == ' ' || p.src[p.pos] == '\t' || p.src[p.pos] == '\n' || p.src[p.pos] == '\r') {
		p.pos++
		skipped = true
	}
	return skipped
}

// selector parses a combinator-separated sequence of simple selectors.
// A leading combinator is accepted only inside function arguments
// (allowLeading false at top level would reject ":test(> member)" bodies).
func (p *parser) selector(topLevel bool) (*Selector, error) {
	sel := &Selector{}
	p.skipSpace()

	comb := combNone
	if !topLevel && p.peek() == '>' {
		p.pos++
		comb = combChild
		p.skipSpace()
	}
	first, err := p.simple()
	if err != nil {
		return nil, err
	}
	sel.segs = append(sel.segs, segment{comb: comb, simple: first})

	for {
		hadSpace := p.skipSpace()
		if p.eof() || p.peek() == ')' || p.peek() == ',' {
			return sel, nil
		}
		comb := combDescendant
		if p.peek() == '>' {
			p.pos++
			comb = combChild
			p.skipSpace()
		} else if !hadSpace {
			return nil, p.errorf("expected combinator before %q", p.rest())
		}
		next, err := p.simple()
		if err != nil {
			return nil, err
		}
		sel.segs = append(sel.segs, segment{comb: comb, simple: next})
	}
}

func (p *parser) simple() (simple, error) {
	switch {
	case p.eof():
		return nil, p.errorf("expected a simple selector")
	case p.peek() == '*':
		p.pos++
		return anyShape{}, nil
	case p.peek() == '[':
		return p.attribute()
	case p.peek() == ':':
		return p.function()
	default:
		name := p.ident()
		if name == "" {
			return nil, p.errorf("expected a simple selector, found %q", p.rest())
		}
		if kinds, ok := kindAliases[name]; ok {
			return kindSel{kinds: kinds}, nil
		}
		if kind, ok := model.KindByName(name); ok {
			return kindSel{kinds: []model.ShapeKind{kind}}, nil
		}
		return nil, p.errorf("unknown shape kind %q", name)
	}
}

// attribute parses `[trait|id]`, `[id = value]` and `[id|path = value]`.
func (p *parser) attribute() (simple, error) {
	p.pos++ // '['
	p.skipSpace()
	head := p.ident()
	switch head {
	case "trait":
		if p.peek() != '|' {
			return nil, p.errorf("expected '|' after 'trait'")
		}
		p.pos++
		raw := p.shapeIDText()
		if raw == "" {
			return nil, p.errorf("expected a trait ID")
		}
		tid, err := parseTraitID(raw)
		if err != nil {
			return nil, p.errorf("%v", err)
		}
		if err := p.expect(']'); err != nil {
			return nil, err
		}
		return traitPresent{trait: tid}, nil
	case "id":
		path := ""
		if p.peek() == '|' {
			p.pos++
			path = p.ident()
			switch path {
			case "namespace", "name", "member":
			default:
				return nil, p.errorf("unknown id attribute path %q", path)
			}
		}
		p.skipSpace()
		if err := p.expect('='); err != nil {
			return nil, err
		}
		p.skipSpace()
		value, err := p.attrValue()
		if err != nil {
			return nil, err
		}
		if err := p.expect(']'); err != nil {
			return nil, err
		}
		return attrEq{path: path, value: value}, nil
	default:
		return nil, p.errorf("unknown attribute %q", head)
	}
}

func (p *parser) function() (simple, error) {
	p.pos++ // ':'
	name := p.ident()
	if err := p.expect('('); err != nil {
		return nil, err
	}
	var alts []*Selector
	for {
		alt, err := p.selector(false)
		if err != nil {
			return nil, err
		}
		alts = append(alts, alt)
		p.skipSpace()
		if p.peek() == ',' {
			p.pos++
			continue
		}
		break
	}
	if err := p.expect(')'); err != nil {
		return nil, err
	}
	switch name {
	case "is":
		return isSel{alts: alts}, nil
	case "not":
		return notSel{alts: alts}, nil
	case "test":
		return testSel{alts: alts}, nil
	default:
		return nil, p.errorf("unknown selector function :%s", name)
	}
}

func (p *parser) expect(c byte) error {
	p.skipSpace()
	if p.peek() != c {
		return p.errorf("expected %q, found %q", string(c), p.rest())
	}
	p.pos++
	return nil
}

func (p *parser) ident() string {
	start := p.pos
	for !p.eof() {
		c := p.src[p.pos]
		if c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c == '_' || (p.pos > start && c >= '0' && c <= '9') {
			p.pos++
			continue
		}
		break
	}
	return p.src[start:p.pos]
}

// shapeIDText scans identifier text permitting namespace dots, '#' and '$'.
func (p *parser) shapeIDText() string {
	start := p.pos
	for !p.eof() {
		c := p.src[p.pos]
		if c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c >= '0' && c <= '9' ||
			c == '_' || c == '.' || c == '#' || c == '$' {
			p.pos++
			continue
		}
		break
	}
	return p.src[start:p.pos]
}

func (p *parser) attrValue() (string, error) {
	if p.peek() == '\'' || p.peek() == '"' {
		quote := p.peek()
		p.pos++
		start := p.pos
		for !p.eof() && p.src[p.pos] != quote {
			p.pos++
		}
		if p.eof() {
			return "", p.errorf("unterminated string")
		}
		v := p.src[start:p.pos]
		p.pos++
		return v, nil
	}
	v := p.shapeIDText()
	if v == "" {
		return "", p.errorf("expected an attribute value")
	}
	return v, nil
}

// parseTraitID resolves selector trait references: bare names belong to the
// prelude.
func parseTraitID(raw string) (model.ShapeID, error) {
	if strings.IndexByte(raw, '#') < 0 {
		raw = model.PreludeNamespace + "#" + raw
	}
	return model.ParseShapeID(raw)
}
