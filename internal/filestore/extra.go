package filestore

import (
	"bytes"
	"encoding/json"
	"reflect"
	"slices"
	"strings"
)

// Extra holds the keys of a stored object that its Go type does not
// declare. Types that share files with other tools keep an Extra so a
// read-modify-write cycle does not drop those keys.
type Extra map[string]json.RawMessage

// UnmarshalExtra decodes data into v, which must point to a struct, and
// returns the keys that match none of its JSON fields. Returns nil when
// there are none.
func UnmarshalExtra(data []byte, v any) (Extra, error) {
	if err := json.Unmarshal(data, v); err != nil {
		return nil, err
	}

	var all map[string]json.RawMessage
	if err := json.Unmarshal(data, &all); err != nil || len(all) == 0 {
		// Non-object input (null) has no extra keys.
		return nil, nil
	}

	known := fieldNames(reflect.TypeOf(v))
	var extra Extra
	for key, raw := range all {
		if known[strings.ToLower(key)] {
			continue
		}
		if extra == nil {
			extra = Extra{}
		}
		extra[key] = raw
	}
	return extra, nil
}

// MarshalExtra encodes v and appends the keys of extra that v does not
// already write. Declared fields keep their order; extra keys follow in
// sorted order.
func MarshalExtra(v any, extra Extra) ([]byte, error) {
	data, err := marshalCompact(v)
	if err != nil || len(extra) == 0 || len(data) == 0 || data[0] != '{' {
		return data, err
	}

	var written map[string]json.RawMessage
	if err := json.Unmarshal(data, &written); err != nil {
		return nil, err
	}

	keys := make([]string, 0, len(extra))
	for key := range extra {
		if _, ok := written[key]; !ok {
			keys = append(keys, key)
		}
	}
	if len(keys) == 0 {
		return data, nil
	}
	slices.Sort(keys)

	var buf bytes.Buffer
	buf.Write(data[:len(data)-1])
	for i, key := range keys {
		if len(written) > 0 || i > 0 {
			buf.WriteByte(',')
		}
		name, err := marshalCompact(key)
		if err != nil {
			return nil, err
		}
		buf.Write(name)
		buf.WriteByte(':')
		buf.Write(extra[key])
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// marshalCompact is json.Marshal without HTML escaping.
func marshalCompact(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

// fieldNames returns the lowercased JSON names of a struct's fields.
// encoding/json matches keys case-insensitively, so lookups are too.
func fieldNames(t reflect.Type) map[string]bool {
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	names := map[string]bool{}
	if t.Kind() != reflect.Struct {
		return names
	}
	for i := range t.NumField() {
		f := t.Field(i)
		if !f.IsExported() {
			continue
		}
		tag := f.Tag.Get("json")
		if tag == "-" {
			continue
		}
		name, _, _ := strings.Cut(tag, ",")
		if name == "" {
			name = f.Name
		}
		names[strings.ToLower(name)] = true
	}
	return names
}
