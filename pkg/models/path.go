package models

import (
	"fmt"
	"strconv"
	"strings"
)

// PathSeparator separates the segments of a dot path such as
// "settings.links.0.target".
const PathSeparator = "."

// SplitPath splits a dot path into its segments.
func SplitPath(path string) []string {
	if path == "" {
		return nil
	}
	return strings.Split(path, PathSeparator)
}

// JoinPath joins non-empty segments into a dot path.
func JoinPath(parts ...string) string {
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p != "" {
			out = append(out, p)
		}
	}
	return strings.Join(out, PathSeparator)
}

// Lookup returns the value at path inside nested maps and slices.
func Lookup(v any, path string) (any, bool) {
	cur := v
	for _, seg := range SplitPath(path) {
		switch c := cur.(type) {
		case map[string]any:
			next, ok := c[seg]
			if !ok {
				return nil, false
			}
			cur = next
		case Entity:
			next, ok := c[seg]
			if !ok {
				return nil, false
			}
			cur = next
		case []any:
			i, err := strconv.Atoi(seg)
			if err != nil || i < 0 || i >= len(c) {
				return nil, false
			}
			cur = c[i]
		default:
			return nil, false
		}
	}
	return cur, true
}

// Assign writes value at path inside v and returns the updated container.
// Missing intermediate maps are created; v may be nil.
func Assign(v any, path string, value any) (any, error) {
	segs := SplitPath(path)
	if len(segs) == 0 {
		return value, nil
	}
	return assign(v, segs, value)
}

func assign(v any, segs []string, value any) (any, error) {
	if len(segs) == 0 {
		return value, nil
	}
	seg, rest := segs[0], segs[1:]

	switch c := v.(type) {
	case nil:
		child, err := assign(nil, rest, value)
		if err != nil {
			return nil, err
		}
		return map[string]any{seg: child}, nil
	case map[string]any:
		child, err := assign(c[seg], rest, value)
		if err != nil {
			return nil, err
		}
		c[seg] = child
		return c, nil
	case Entity:
		child, err := assign(c[seg], rest, value)
		if err != nil {
			return nil, err
		}
		c[seg] = child
		return c, nil
	case []any:
		i, err := strconv.Atoi(seg)
		if err != nil || i < 0 || i >= len(c) {
			return nil, fmt.Errorf("invalid list index %q", seg)
		}
		child, err := assign(c[i], rest, value)
		if err != nil {
			return nil, err
		}
		c[i] = child
		return c, nil
	default:
		return nil, fmt.Errorf("cannot descend into %T at %q", v, seg)
	}
}

// Transform rebuilds v, calling fn on every leaf with its dot path relative
// to base. Maps and slices are copied, so v is never modified.
func Transform(v any, base string, fn func(path string, leaf any) (any, error)) (any, error) {
	switch c := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(c))
		for k, child := range c {
			next, err := Transform(child, JoinPath(base, k), fn)
			if err != nil {
				return nil, err
			}
			out[k] = next
		}
		return out, nil
	case Entity:
		return Transform(map[string]any(c), base, fn)
	case []any:
		out := make([]any, len(c))
		for i, child := range c {
			next, err := Transform(child, JoinPath(base, strconv.Itoa(i)), fn)
			if err != nil {
				return nil, err
			}
			out[i] = next
		}
		return out, nil
	default:
		return fn(base, v)
	}
}

// Clone deep-copies nested maps and slices. Leaves are shared.
func Clone(v any) any {
	switch c := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(c))
		for k, child := range c {
			out[k] = Clone(child)
		}
		return out
	case Entity:
		out := make(Entity, len(c))
		for k, child := range c {
			out[k] = Clone(child)
		}
		return out
	case []any:
		out := make([]any, len(c))
		for i, child := range c {
			out[i] = Clone(child)
		}
		return out
	default:
		return v
	}
}
