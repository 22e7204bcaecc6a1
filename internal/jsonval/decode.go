// Package jsonval bridges the value.Value variant to JSON text and to
// JSON-path addressing, keeping object
// key order stable the way encoding/json's map[string]any decoding does
// not.
package jsonval

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"

	"github.com/blackcoderx/talon/internal/value"
)

// Parse decodes JSON text into a value.Value, preserving object key
// order via json.Decoder's token stream instead of unmarshaling into
// map[string]any (which Go randomizes on re-marshal).
func Parse(text string) (value.Value, error) {
	dec := json.NewDecoder(bytes.NewReader([]byte(text)))
	dec.UseNumber()
	v, err := decodeValue(dec)
	if err != nil {
		return value.Null(), err
	}
	return v, nil
}

func decodeValue(dec *json.Decoder) (value.Value, error) {
	tok, err := dec.Token()
	if err != nil {
		return value.Null(), err
	}
	return decodeToken(dec, tok)
}

func decodeToken(dec *json.Decoder, tok json.Token) (value.Value, error) {
	switch t := tok.(type) {
	case nil:
		return value.Null(), nil
	case bool:
		return value.NewBool(t), nil
	case json.Number:
		if i, err := t.Int64(); err == nil {
			return value.NewInt(i), nil
		}
		f, err := t.Float64()
		if err != nil {
			return value.Null(), err
		}
		return value.NewFloat(f), nil
	case string:
		return value.NewString(t), nil
	case json.Delim:
		switch t {
		case '{':
			om := value.NewOrderedMap()
			for dec.More() {
				keyTok, err := dec.Token()
				if err != nil {
					return value.Null(), err
				}
				key, ok := keyTok.(string)
				if !ok {
					return value.Null(), fmt.Errorf("jsonval: expected object key, got %v", keyTok)
				}
				val, err := decodeValue(dec)
				if err != nil {
					return value.Null(), err
				}
				om.Set(key, val)
			}
			if _, err := dec.Token(); err != nil && err != io.EOF { // consume '}'
				return value.Null(), err
			}
			return value.NewMap(om), nil
		case '[':
			var list []value.Value
			for dec.More() {
				val, err := decodeValue(dec)
				if err != nil {
					return value.Null(), err
				}
				list = append(list, val)
			}
			if _, err := dec.Token(); err != nil && err != io.EOF { // consume ']'
				return value.Null(), err
			}
			return value.NewList(list), nil
		}
	}
	return value.Null(), fmt.Errorf("jsonval: unexpected token %v", tok)
}

// IsJSONLiteral reports whether text looks like it starts a JSON object
// or array literal, the gate rule 3 uses before attempting a
// parse.
func IsJSONLiteral(text string) bool {
	for _, r := range text {
		switch r {
		case ' ', '\t', '\n', '\r':
			continue
		case '{', '[':
			return true
		default:
			return false
		}
	}
	return false
}
