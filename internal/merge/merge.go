// Package merge combines JSON object files with object-spread semantics:
// later keys overwrite earlier ones, first-seen key order is kept.
package merge

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/tidwall/gjson"
)

const indent = "    "

var ErrNotObject = errors.New("merge: top-level value is not an object")

// Object accumulates members in first-seen order. Values are raw JSON and
// are never re-encoded.
type Object struct {
	keys   []string
	rawKey map[string]string
	values map[string]string
}

func NewObject() *Object {
	return &Object{
		rawKey: make(map[string]string),
		values: make(map[string]string),
	}
}

func (o *Object) Len() int { return len(o.keys) }

// Add spreads the members of the JSON object in data over o.
func (o *Object) Add(data []byte) error {
	if !gjson.ValidBytes(data) {
		return errors.New("merge: invalid JSON")
	}
	parsed := gjson.ParseBytes(data)
	if !parsed.IsObject() {
		return ErrNotObject
	}

	parsed.ForEach(func(key, value gjson.Result) bool {
		name := key.String()
		if _, seen := o.values[name]; !seen {
			o.keys = append(o.keys, name)
			o.rawKey[name] = key.Raw
		}
		o.values[name] = value.Raw
		return true
	})
	return nil
}

// Bytes renders the object with a 4-space indent and no trailing newline.
func (o *Object) Bytes() ([]byte, error) {
	var compact bytes.Buffer
	compact.WriteByte('{')
	for i, name := range o.keys {
		if i > 0 {
			compact.WriteByte(',')
		}
		compact.WriteString(o.rawKey[name])
		compact.WriteByte(':')
		compact.WriteString(o.values[name])
	}
	compact.WriteByte('}')

	var out bytes.Buffer
	if err := json.Indent(&out, compact.Bytes(), "", indent); err != nil {
		return nil, fmt.Errorf("merge: indent: %w", err)
	}
	return out.Bytes(), nil
}

// Files reads inputs in order and returns the rendered merge.
func Files(inputs []string) ([]byte, error) {
	obj := NewObject()
	for _, path := range inputs {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("merge: %w", err)
		}
		if err := obj.Add(data); err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
	}
	return obj.Bytes()
}

// Run merges inputs into output. Nothing is written unless every input
// merged cleanly.
func Run(inputs []string, output string) error {
	data, err := Files(inputs)
	if err != nil {
		return err
	}
	if err := os.WriteFile(output, data, 0o644); err != nil {
		return fmt.Errorf("merge: write %s: %w", output, err)
	}
	return nil
}
