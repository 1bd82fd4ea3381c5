// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package parse extracts structured JSON records from free-form LLM
// output. Models wrap their answers in <output> tags, markdown fences,
// or nothing at all, and frequently emit JSON with trailing commas or
// unescaped newlines. Extract runs a chain of recovery strategies and
// never returns an error; callers branch on the ok flag instead.
package parse

import "encoding/json"

// Record is a parsed JSON object. Accessors tolerate missing keys and
// wrong types, returning zero values, so phase code can read optional
// fields without nil checks at every call site.
type Record map[string]any

// NewRecord returns an empty Record.
func NewRecord() Record {
	return Record{}
}

// Has reports whether key is present.
func (r Record) Has(key string) bool {
	_, ok := r[key]
	return ok
}

// String returns the value at key if it is a string, else "".
func (r Record) String(key string) string {
	if v, ok := r[key].(string); ok {
		return v
	}
	return ""
}

// Float returns the value at key as a float64. JSON numbers decode to
// float64, so this is the canonical numeric accessor.
func (r Record) Float(key string) float64 {
	switch v := r[key].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	case json.Number:
		f, err := v.Float64()
		if err != nil {
			return 0
		}
		return f
	}
	return 0
}

// Int returns the value at key truncated to an int.
func (r Record) Int(key string) int {
	return int(r.Float(key))
}

// Bool returns the value at key if it is a bool, else false.
func (r Record) Bool(key string) bool {
	if v, ok := r[key].(bool); ok {
		return v
	}
	return false
}

// Slice returns the value at key if it is an array, else nil.
func (r Record) Slice(key string) []any {
	if v, ok := r[key].([]any); ok {
		return v
	}
	return nil
}

// StringSlice returns the string elements of the array at key.
// Non-string elements are skipped.
func (r Record) StringSlice(key string) []string {
	items := r.Slice(key)
	if items == nil {
		return nil
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

// Map returns the value at key if it is a nested object, else nil.
func (r Record) Map(key string) Record {
	if v, ok := r[key].(map[string]any); ok {
		return Record(v)
	}
	return nil
}

// Maps returns the object elements of the array at key.
func (r Record) Maps(key string) []Record {
	items := r.Slice(key)
	if items == nil {
		return nil
	}
	out := make([]Record, 0, len(items))
	for _, item := range items {
		if m, ok := item.(map[string]any); ok {
			out = append(out, Record(m))
		}
	}
	return out
}

// JSON renders the record as indented JSON. Used when a record is
// embedded into a downstream prompt or exported to disk.
func (r Record) JSON() string {
	b, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return "{}"
	}
	return string(b)
}
