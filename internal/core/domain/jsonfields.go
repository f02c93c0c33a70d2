package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
)

// Extras holds JSON members the core does not interpret. Values are kept as raw
// JSON and written back verbatim.
type Extras map[string]json.RawMessage

// Clone copies the map. The raw values are shared and must not be modified.
func (e Extras) Clone() Extras {
	if e == nil {
		return nil
	}
	out := make(Extras, len(e))
	for k, v := range e {
		out[k] = v
	}
	return out
}

// Get decodes a single extra into v. It reports false when the key is absent.
func (e Extras) Get(key string, v any) (bool, error) {
	raw, ok := e[key]
	if !ok {
		return false, nil
	}
	return true, json.Unmarshal(raw, v)
}

// Set encodes v and stores it under key.
func (e Extras) Set(key string, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return err
	}
	e[key] = raw
	return nil
}

func isNull(raw json.RawMessage) bool {
	return bytes.Equal(bytes.TrimSpace(raw), []byte("null"))
}

// splitObject decodes a JSON object into its members and moves every member
// not listed in known into the returned Extras.
func splitObject(data []byte, known ...string) (map[string]json.RawMessage, Extras, error) {
	var members map[string]json.RawMessage
	if err := json.Unmarshal(data, &members); err != nil {
		return nil, nil, err
	}
	if members == nil {
		return nil, nil, fmt.Errorf("expected JSON object, got null")
	}
	var extras Extras
	for k, v := range members {
		if contains(known, k) {
			continue
		}
		if extras == nil {
			extras = make(Extras)
		}
		extras[k] = v
		delete(members, k)
	}
	return members, extras, nil
}

// joinObject appends extras (sorted, skipping known keys) to an encoded object.
func joinObject(base []byte, extras Extras, known ...string) ([]byte, error) {
	if len(extras) == 0 {
		return base, nil
	}
	keys := make([]string, 0, len(extras))
	for k := range extras {
		if !contains(known, k) {
			keys = append(keys, k)
		}
	}
	if len(keys) == 0 {
		return base, nil
	}
	sort.Strings(keys)

	trimmed := bytes.TrimRight(base, " \n")
	if len(trimmed) < 2 || trimmed[len(trimmed)-1] != '}' {
		return nil, fmt.Errorf("join extras: base is not a JSON object")
	}
	var buf bytes.Buffer
	buf.Write(trimmed[:len(trimmed)-1])
	first := bytes.Equal(bytes.TrimSpace(trimmed), []byte("{}"))
	for _, k := range keys {
		v := extras[k]
		if !json.Valid(v) {
			return nil, fmt.Errorf("extra %q is not valid JSON", k)
		}
		if !first {
			buf.WriteByte(',')
		}
		first = false
		name, _ := json.Marshal(k)
		buf.Write(name)
		buf.WriteByte(':')
		buf.Write(v)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
