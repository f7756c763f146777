package types

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

// Fields is an insertion-ordered string-keyed map of named side values.
type Fields struct {
	Keys   []string
	Values map[string]interface{}
}

// NewFields creates an empty field map.
func NewFields() *Fields {
	return &Fields{Values: make(map[string]interface{})}
}

// Get retrieves a value by key.
func (f *Fields) Get(key string) (interface{}, bool) {
	if f == nil {
		return nil, false
	}
	value, ok := f.Values[key]
	return value, ok
}

// Set inserts or replaces a value, keeping the first insertion position.
func (f *Fields) Set(key string, value interface{}) {
	if _, ok := f.Values[key]; !ok {
		f.Keys = append(f.Keys, key)
	}
	f.Values[key] = value
}

// Len returns the number of fields.
func (f *Fields) Len() int {
	if f == nil {
		return 0
	}
	return len(f.Keys)
}

// Clone returns a shallow copy.
func (f *Fields) Clone() *Fields {
	if f == nil {
		return nil
	}
	c := &Fields{
		Keys:   make([]string, len(f.Keys)),
		Values: make(map[string]interface{}, len(f.Values)),
	}
	copy(c.Keys, f.Keys)
	for k, v := range f.Values {
		c.Values[k] = v
	}
	return c
}

// MarshalJSON preserves key order during marshaling.
func (f *Fields) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, key := range f.Keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		buf.WriteString(strconv.Quote(key))
		buf.WriteByte(':')
		valueBytes, err := json.Marshal(f.Values[key])
		if err != nil {
			return nil, err
		}
		buf.Write(valueBytes)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON decodes a JSON object keeping the key order.
func (f *Fields) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return fmt.Errorf("fields: expected object, got %v", tok)
	}
	f.Keys = nil
	f.Values = make(map[string]interface{})
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		key, _ := tok.(string)
		var raw interface{}
		if err := dec.Decode(&raw); err != nil {
			return err
		}
		f.Set(key, normalizeNumber(raw))
	}
	_, err = dec.Token()
	return err
}

// normalizeNumber turns json.Number values into float64 recursively.
func normalizeNumber(v interface{}) interface{} {
	switch x := v.(type) {
	case json.Number:
		if f, err := x.Float64(); err == nil {
			return f
		}
		return x.String()
	case []interface{}:
		for i := range x {
			x[i] = normalizeNumber(x[i])
		}
	case map[string]interface{}:
		for k := range x {
			x[k] = normalizeNumber(x[k])
		}
	}
	return v
}

// Record is the unit of data flowing through an evaluation pipeline.
type Record struct {
	ID          string      `json:"id"`
	Value       interface{} `json:"value"`
	Score       int         `json:"score"`
	Label       string      `json:"label,omitempty"`
	Description string      `json:"description,omitempty"`
	Fields      *Fields     `json:"fields,omitempty"`
	// Provider is the provenance of the record; groupBy rewrites it.
	Provider string `json:"provider,omitempty"`
	// Ref points at the record a projection was built from.
	Ref *Record `json:"-"`
}

// NewRecord creates a record with the given identity and value.
func NewRecord(id string, value interface{}) *Record {
	return &Record{ID: id, Value: value}
}

// Clone returns a copy that can be mutated without affecting r.
func (r *Record) Clone() *Record {
	c := *r
	c.Fields = r.Fields.Clone()
	return &c
}

// SetField sets a named side value, allocating the field map on demand.
func (r *Record) SetField(name string, value interface{}) {
	if r.Fields == nil {
		r.Fields = NewFields()
	}
	r.Fields.Set(name, value)
}

// Field returns a named side value.
func (r *Record) Field(name string) (interface{}, bool) {
	return r.Fields.Get(name)
}

// Select resolves a selector name against the record: built-in properties
// first, then named fields, then the back-reference chain.
func (r *Record) Select(name string) (interface{}, bool) {
	for cur := r; cur != nil; cur = cur.Ref {
		switch name {
		case "id":
			return cur.ID, true
		case "value":
			return cur.Value, true
		case "label":
			if cur.Label != "" {
				return cur.Label, true
			}
		case "description", "desc":
			if cur.Description != "" {
				return cur.Description, true
			}
		case "score":
			return float64(cur.Score), true
		case "provider":
			return cur.Provider, true
		}
		if v, ok := cur.Fields.Get(name); ok {
			return v, true
		}
	}
	return nil, false
}

// String returns a short human readable representation.
func (r *Record) String() string {
	if r.Label != "" {
		return fmt.Sprintf("%s(%v)", r.Label, r.Value)
	}
	return fmt.Sprintf("%v", r.Value)
}
