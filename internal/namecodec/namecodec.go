// Package namecodec translates between a flat, separator-delimited tag
// name and the nested mapping the cloud namespace actually uses.
package namecodec

import "strings"

// Pair is one flattened leaf: a fully-qualified name and its scalar value.
type Pair struct {
	Name  string
	Value any
}

// Flatten walks tree, a nested map[string]any, and yields one Pair per
// scalar leaf. Non-map values are leaves; map[string]any values recurse.
func Flatten(tree map[string]any, sep string) []Pair {
	return flatten(tree, nil, sep)
}

func flatten(tree map[string]any, prefix []string, sep string) []Pair {
	var out []Pair
	for k, v := range tree {
		path := append(append([]string{}, prefix...), k)
		if nested, ok := v.(map[string]any); ok {
			out = append(out, flatten(nested, path, sep)...)
			continue
		}
		out = append(out, Pair{Name: strings.Join(path, sep), Value: v})
	}
	return out
}

// Unflatten splits name on sep and builds the nested mapping it denotes,
// with value at the deepest level: {p0: {p1: ... {p_{N-1}: value}}}.
//
// Full right-nesting for N>2 is a deliberate normalization of a documented
// quirk in the system this was adapted from, which built only pairwise
// {s[i]: {s[i+1]: value}} mappings and silently dropped segments beyond the
// second for deeper names.
func Unflatten(name string, value any, sep string) map[string]any {
	parts := strings.Split(name, sep)
	if len(parts) == 1 {
		return map[string]any{parts[0]: value}
	}

	var node any = value
	for i := len(parts) - 1; i >= 1; i-- {
		node = map[string]any{parts[i]: node}
	}
	return map[string]any{parts[0]: node}
}

// Merge deep-merges src into dst, combining nested maps rather than
// overwriting them outright, so that multiple Unflatten results for
// different names under the same top-level key combine into one message
// instead of clobbering each other.
func Merge(dst, src map[string]any) map[string]any {
	if dst == nil {
		dst = map[string]any{}
	}
	for k, v := range src {
		if vm, ok := v.(map[string]any); ok {
			if existing, ok := dst[k].(map[string]any); ok {
				dst[k] = Merge(existing, vm)
				continue
			}
		}
		dst[k] = v
	}
	return dst
}

// Retrieve splits flatName on sep and descends tree, returning the value
// at the path and true, or nil and false if the path dead-ends.
func Retrieve(tree map[string]any, flatName string, sep string) (any, bool) {
	parts := strings.Split(flatName, sep)
	if len(parts) == 0 {
		return nil, false
	}

	var cur any = tree
	for _, p := range parts {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		cur, ok = m[p]
		if !ok {
			return nil, false
		}
	}
	return cur, true
}
