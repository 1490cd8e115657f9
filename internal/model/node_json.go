package model

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"

	"fortio.org/safecast"

	"anvil/internal/source"
)

// ParseJSON reads a document into a Node tree. Spans are derived from the
// decoder's input offset, so every value (and object key) points back into
// the file for diagnostics.
func ParseJSON(f *source.File) (Node, error) {
	dec := json.NewDecoder(bytes.NewReader(f.Content))
	dec.UseNumber()
	r := jsonReader{dec: dec, file: f.ID}
	node, err := r.value()
	if err != nil {
		return Node{}, fmt.Errorf("%s: %w", f.Path, err)
	}
	// Trailing garbage after the top-level value is a syntax error too.
	if _, err := dec.Token(); err != io.EOF {
		return Node{}, fmt.Errorf("%s: unexpected content after top-level value", f.Path)
	}
	return node, nil
}

type jsonReader struct {
	dec  *json.Decoder
	file source.FileID
}

func (r *jsonReader) offset() uint32 {
	off, err := safecast.Conv[uint32](r.dec.InputOffset())
	if err != nil {
		panic(fmt.Errorf("input offset overflow: %w", err))
	}
	return off
}

func (r *jsonReader) value() (Node, error) {
	start := r.offset()
	tok, err := r.dec.Token()
	if err != nil {
		return Node{}, err
	}
	return r.valueFrom(tok, start)
}

func (r *jsonReader) valueFrom(tok json.Token, start uint32) (Node, error) {
	span := source.Span{File: r.file, Start: start, End: r.offset()}
	switch t := tok.(type) {
	case nil:
		return Node{Kind: NullNode, Span: span}, nil
	case bool:
		return Node{Kind: BoolNode, Span: span, Bool: t}, nil
	case json.Number:
		f, err := t.Float64()
		if err != nil {
			return Node{}, err
		}
		return Node{Kind: NumberNode, Span: span, Number: f}, nil
	case string:
		return Node{Kind: StringNode, Span: span, Str: t}, nil
	case json.Delim:
		switch t {
		case '{':
			return r.object(start)
		case '[':
			return r.array(start)
		}
	}
	return Node{}, fmt.Errorf("unexpected token %v", tok)
}

func (r *jsonReader) object(start uint32) (Node, error) {
	n := Node{Kind: ObjectNode}
	for r.dec.More() {
		keyStart := r.offset()
		tok, err := r.dec.Token()
		if err != nil {
			return Node{}, err
		}
		key, ok := tok.(string)
		if !ok {
			return Node{}, fmt.Errorf("object key must be a string, got %v", tok)
		}
		keySpan := source.Span{File: r.file, Start: keyStart, End: r.offset()}
		val, err := r.value()
		if err != nil {
			return Node{}, err
		}
		n.Fields = append(n.Fields, Field{Key: key, KeySpan: keySpan, Value: val})
	}
	if _, err := r.dec.Token(); err != nil { // consume '}'
		return Node{}, err
	}
	n.Span = source.Span{File: r.file, Start: start, End: r.offset()}
	return n, nil
}

func (r *jsonReader) array(start uint32) (Node, error) {
	n := Node{Kind: ArrayNode}
	for r.dec.More() {
		val, err := r.value()
		if err != nil {
			return Node{}, err
		}
		n.Items = append(n.Items, val)
	}
	if _, err := r.dec.Token(); err != nil { // consume ']'
		return Node{}, err
	}
	n.Span = source.Span{File: r.file, Start: start, End: r.offset()}
	return n, nil
}
