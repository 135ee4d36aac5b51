package guard

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/jsonschema"
)

// RepairResult is the outcome of one repair pass. Value is a copy; the input is never
// modified.
type RepairResult struct {
	Value     any
	Changed   bool
	ChangeLog []string
}

// Repair applies deterministic fixes for the violations it understands: missing
// required fields get a type default, invalid enum values snap to the closest option,
// and over-long strings are truncated. Identifier fields are never touched.
func Repair(contract *jsonschema.Schema, value any, violations []Violation) RepairResult {
	out := RepairResult{Value: deepCopy(value)}
	for _, v := range violations {
		path := splitPath(v.Field)
		if len(path) == 0 || isIDField(path[len(path)-1]) {
			continue
		}
		sub := schemaAt(contract, path)
		if sub == nil {
			continue
		}

		switch v.Code {
		case CodeRequired:
			if _, exists := lookup(out.Value, path); exists {
				continue
			}
			def := defaultFor(sub)
			if assign(out.Value, path, def) {
				out.Changed = true
				out.ChangeLog = append(out.ChangeLog, fmt.Sprintf("%s: set missing field to %v", v.Field, describe(def)))
			}

		case CodeEnum:
			cur, ok := lookup(out.Value, path)
			if !ok {
				continue
			}
			s, _ := cur.(string)
			choice, ok := closestEnum(s, sub.Enum)
			if !ok || choice == s {
				continue
			}
			if assign(out.Value, path, choice) {
				out.Changed = true
				out.ChangeLog = append(out.ChangeLog, fmt.Sprintf("%s: %q -> %q", v.Field, s, choice))
			}

		case CodeMaxLength:
			cur, ok := lookup(out.Value, path)
			s, isString := cur.(string)
			if !ok || !isString || sub.MaxLength == nil {
				continue
			}
			runes := []rune(s)
			if len(runes) <= *sub.MaxLength {
				continue
			}
			if assign(out.Value, path, string(runes[:*sub.MaxLength])) {
				out.Changed = true
				out.ChangeLog = append(out.ChangeLog, fmt.Sprintf("%s: truncated to %d characters", v.Field, *sub.MaxLength))
			}
		}
	}
	return out
}

func isIDField(name string) bool {
	return name == "id" || strings.HasSuffix(name, "Id") || strings.HasSuffix(name, "ID")
}

func splitPath(field string) []string {
	if field == "" {
		return nil
	}
	return strings.Split(field, ".")
}

// schemaAt walks the contract along path. Numeric segments step into array items.
func schemaAt(s *jsonschema.Schema, path []string) *jsonschema.Schema {
	for _, seg := range path {
		if s == nil {
			return nil
		}
		if _, err := strconv.Atoi(seg); err == nil && s.Items != nil {
			s = s.Items
			continue
		}
		s = s.Properties[seg]
	}
	return s
}

func defaultFor(s *jsonschema.Schema) any {
	switch s.Type {
	case "string":
		return ""
	case "number", "integer":
		var v float64
		if s.Minimum != nil && *s.Minimum > v {
			v = *s.Minimum
		}
		return v
	case "boolean":
		return false
	case "array":
		return []any{}
	default:
		return map[string]any{}
	}
}

func describe(v any) string {
	switch t := v.(type) {
	case string:
		return strconv.Quote(t)
	case []any:
		return "[]"
	case map[string]any:
		return "{}"
	default:
		return fmt.Sprint(t)
	}
}

// closestEnum matches case-insensitively, then by substring, then takes the first option.
func closestEnum(s string, options []any) (string, bool) {
	names := make([]string, 0, len(options))
	for _, o := range options {
		if str, ok := o.(string); ok {
			names = append(names, str)
		}
	}
	if len(names) == 0 {
		return "", false
	}

	lower := strings.ToLower(strings.TrimSpace(s))
	for _, n := range names {
		if strings.ToLower(n) == lower {
			return n, true
		}
	}
	if lower != "" {
		for _, n := range names {
			ln := strings.ToLower(n)
			if strings.Contains(lower, ln) || strings.Contains(ln, lower) {
				return n, true
			}
		}
	}
	return names[0], true
}

func lookup(doc any, path []string) (any, bool) {
	cur := doc
	for _, seg := range path {
		switch node := cur.(type) {
		case map[string]any:
			v, ok := node[seg]
			if !ok {
				return nil, false
			}
			cur = v
		case []any:
			i, err := strconv.Atoi(seg)
			if err != nil || i < 0 || i >= len(node) {
				return nil, false
			}
			cur = node[i]
		default:
			return nil, false
		}
	}
	return cur, true
}

// assign sets the value at path inside doc, whose containers are mutated in place.
func assign(doc any, path []string, v any) bool {
	parent, ok := lookup(doc, path[:len(path)-1])
	if !ok {
		return false
	}
	last := path[len(path)-1]
	switch node := parent.(type) {
	case map[string]any:
		node[last] = v
		return true
	case []any:
		i, err := strconv.Atoi(last)
		if err != nil || i < 0 || i >= len(node) {
			return false
		}
		node[i] = v
		return true
	}
	return false
}

func deepCopy(v any) any {
	switch t := v.(type) {
	case map[string]any:
		m := make(map[string]any, len(t))
		for k, val := range t {
			m[k] = deepCopy(val)
		}
		return m
	case []any:
		s := make([]any, len(t))
		for i, val := range t {
			s[i] = deepCopy(val)
		}
		return s
	default:
		return v
	}
}
