// Package wire implements the structured message format spoken on the
// administration channel: bencoded dictionaries with string keys.
package wire

import (
	"github.com/pkg/errors"
	"github.com/zeebo/bencode"
)

// Dict is a single structured message. Values are strings, int64s, nested
// Dicts or lists, matching what the bencode codec produces when decoding
// into an untyped map.
type Dict map[string]interface{}

// Encode serializes d into its wire form.
func Encode(d Dict) ([]byte, error) {
	b, err := bencode.EncodeBytes(map[string]interface{}(d))
	if err != nil {
		return nil, errors.Wrap(err, "encode message")
	}
	return b, nil
}

// Decode parses one message from b.
func Decode(b []byte) (Dict, error) {
	var m map[string]interface{}
	if err := bencode.DecodeBytes(b, &m); err != nil {
		return nil, errors.Wrap(err, "decode message")
	}
	return Dict(m), nil
}

// GetString returns the string stored under key, if present and a string.
func (d Dict) GetString(key string) (string, bool) {
	v, ok := d[key]
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

// GetInt returns the integer stored under key, if present and an integer.
func (d Dict) GetInt(key string) (int64, bool) {
	v, ok := d[key]
	if !ok {
		return 0, false
	}
	switch n := v.(type) {
	case int64:
		return n, true
	case int:
		return int64(n), true
	}
	return 0, false
}

// GetDict returns the nested dictionary stored under key.
func (d Dict) GetDict(key string) (Dict, bool) {
	v, ok := d[key]
	if !ok {
		return nil, false
	}
	switch m := v.(type) {
	case map[string]interface{}:
		return Dict(m), true
	case Dict:
		return m, true
	}
	return nil, false
}

// Copy returns a shallow copy of d.
func (d Dict) Copy() Dict {
	c := make(Dict, len(d)+1)
	for k, v := range d {
		c[k] = v
	}
	return c
}
