package guard

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/modelcontextprotocol/go-sdk/jsonschema"
	"github.com/xeipuuv/gojsonschema"
)

const (
	CodeRequired  = "REQUIRED_FIELD_MISSING"
	CodeEnum      = "INVALID_ENUM_VALUE"
	CodeMinLength = "MIN_LENGTH_VIOLATION"
	CodeMaxLength = "MAX_LENGTH_VIOLATION"
	CodeMinItems  = "MIN_ITEMS_VIOLATION"
	CodeMaxItems  = "MAX_ITEMS_VIOLATION"
	CodeRange     = "RANGE_VIOLATION"
	CodeType      = "INVALID_TYPE"
	CodeSchema    = "SCHEMA_VIOLATION"
)

// Violation is one field that failed its contract. Field is a dotted path such as
// "intents.0.category"; an empty Field means the document root.
type Violation struct {
	Field   string `json:"field"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Validated is a value that passed its contract.
type Validated[T any] struct {
	Data      T
	Warnings  []string
	Repaired  bool
	ChangeLog []string
}

var compiled sync.Map // contract JSON -> *gojsonschema.Schema

func compile(contract *jsonschema.Schema) (*gojsonschema.Schema, error) {
	b, err := json.Marshal(contract)
	if err != nil {
		return nil, fmt.Errorf("marshal contract: %w", err)
	}
	key := string(b)
	if s, ok := compiled.Load(key); ok {
		return s.(*gojsonschema.Schema), nil
	}
	s, err := gojsonschema.NewSchema(gojsonschema.NewBytesLoader(b))
	if err != nil {
		return nil, fmt.Errorf("compile contract: %w", err)
	}
	compiled.Store(key, s)
	return s, nil
}

// extractJSON pulls the outermost JSON object out of model text that may be wrapped
// in code fences or prose.
func extractJSON(raw string) (string, bool) {
	s := strings.TrimSpace(raw)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```json")
		s = strings.TrimPrefix(s, "```")
		s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	}
	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start < 0 || end <= start {
		return "", false
	}
	return s[start : end+1], true
}

func parseDocument(raw, label string) (any, error) {
	text, ok := extractJSON(raw)
	if !ok {
		return nil, &Error{
			Kind:      KindParse,
			Message:   fmt.Sprintf("no JSON object found in %s output", label),
			Retryable: true,
			Context:   map[string]any{"context": label, "raw_length": len(raw)},
		}
	}
	var doc any
	if err := json.Unmarshal([]byte(text), &doc); err != nil {
		return nil, &Error{
			Kind:      KindParse,
			Message:   fmt.Sprintf("invalid JSON in %s output: %v", label, err),
			Retryable: true,
			Context:   map[string]any{"context": label},
			Err:       err,
		}
	}
	return doc, nil
}

func check(contract *jsonschema.Schema, doc any) ([]Violation, error) {
	schema, err := compile(contract)
	if err != nil {
		return nil, err
	}
	res, err := schema.Validate(gojsonschema.NewGoLoader(doc))
	if err != nil {
		return nil, fmt.Errorf("validate document: %w", err)
	}
	if res.Valid() {
		return nil, nil
	}

	out := make([]Violation, 0, len(res.Errors()))
	for _, re := range res.Errors() {
		out = append(out, toViolation(re))
	}
	return out, nil
}

func toViolation(re gojsonschema.ResultError) Violation {
	field := re.Field()
	if field == "(root)" {
		field = ""
	}

	code := CodeSchema
	switch re.Type() {
	case "required":
		code = CodeRequired
		if prop, ok := re.Details()["property"].(string); ok && field != prop && !strings.HasSuffix(field, "."+prop) {
			field = joinPath(field, prop)
		}
	case "enum":
		code = CodeEnum
	case "string_gte":
		code = CodeMinLength
	case "string_lte":
		code = CodeMaxLength
	case "array_min_items":
		code = CodeMinItems
	case "array_max_items":
		code = CodeMaxItems
	case "number_gte", "number_lte", "number_gt", "number_lt":
		code = CodeRange
	case "invalid_type":
		code = CodeType
	}
	return Violation{Field: field, Code: code, Message: re.Description()}
}

func joinPath(parent, child string) string {
	if parent == "" {
		return child
	}
	return parent + "." + child
}

func validationError(label string, violations []Violation) *Error {
	fields := make([]string, 0, len(violations))
	for _, v := range violations {
		fields = append(fields, fmt.Sprintf("%s (%s)", displayField(v.Field), v.Code))
	}
	return &Error{
		Kind:       KindValidation,
		Message:    fmt.Sprintf("%s failed contract: %s", label, strings.Join(fields, ", ")),
		Context:    map[string]any{"context": label, "violations": len(violations)},
		Violations: violations,
	}
}

func displayField(f string) string {
	if f == "" {
		return "(root)"
	}
	return f
}

func decode[T any](doc any, label string) (T, error) {
	var out T
	b, err := json.Marshal(doc)
	if err != nil {
		return out, &Error{Kind: KindParse, Message: fmt.Sprintf("re-encode %s: %v", label, err), Retryable: true, Err: err}
	}
	if err := json.Unmarshal(b, &out); err != nil {
		return out, &Error{Kind: KindParse, Message: fmt.Sprintf("decode %s: %v", label, err), Retryable: true, Err: err}
	}
	return out, nil
}

func warnings[T any](v T, checks []func(T) []string) []string {
	var out []string
	for _, c := range checks {
		out = append(out, c(v)...)
	}
	return out
}

// Validate parses raw model output and checks it against contract. Parse failures are
// retryable ParseErrors; contract failures are ValidationErrors carrying every
// violation. checks add non-fatal warnings to a valid value.
func Validate[T any](contract *jsonschema.Schema, raw, label string, checks ...func(T) []string) (Validated[T], error) {
	doc, err := parseDocument(raw, label)
	if err != nil {
		return Validated[T]{}, err
	}
	violations, err := check(contract, doc)
	if err != nil {
		return Validated[T]{}, Classify(err)
	}
	if len(violations) > 0 {
		return Validated[T]{}, validationError(label, violations)
	}
	data, err := decode[T](doc, label)
	if err != nil {
		return Validated[T]{}, err
	}
	return Validated[T]{Data: data, Warnings: warnings(data, checks)}, nil
}

// ValidateWithRepair is Validate with one repair pass between a failed check and the
// ValidationError.
func ValidateWithRepair[T any](contract *jsonschema.Schema, raw, label string, checks ...func(T) []string) (Validated[T], error) {
	doc, err := parseDocument(raw, label)
	if err != nil {
		return Validated[T]{}, err
	}
	violations, err := check(contract, doc)
	if err != nil {
		return Validated[T]{}, Classify(err)
	}

	var log []string
	if len(violations) > 0 {
		fixed := Repair(contract, doc, violations)
		if !fixed.Changed {
			return Validated[T]{}, validationError(label, violations)
		}
		remaining, err := check(contract, fixed.Value)
		if err != nil {
			return Validated[T]{}, Classify(err)
		}
		if len(remaining) > 0 {
			verr := validationError(label, remaining)
			verr.Context["repairs"] = fixed.ChangeLog
			return Validated[T]{}, verr
		}
		doc, log = fixed.Value, fixed.ChangeLog
	}

	data, err := decode[T](doc, label)
	if err != nil {
		return Validated[T]{}, err
	}
	return Validated[T]{
		Data:      data,
		Warnings:  warnings(data, checks),
		Repaired:  len(log) > 0,
		ChangeLog: log,
	}, nil
}

// AssertSubset returns the ids in selected that are not in candidates, in input order
// without duplicates. A non-empty difference is a HallucinationError.
func AssertSubset(selected, candidates []string, label string) ([]string, error) {
	known := make(map[string]bool, len(candidates))
	for _, c := range candidates {
		known[c] = true
	}

	var offending []string
	seen := map[string]bool{}
	for _, s := range selected {
		if known[s] || seen[s] {
			continue
		}
		seen[s] = true
		offending = append(offending, s)
	}
	if len(offending) == 0 {
		return nil, nil
	}
	return offending, &Error{
		Kind:      KindHallucination,
		Message:   fmt.Sprintf("%s selected unknown ids: %s", label, strings.Join(offending, ", ")),
		Context:   map[string]any{"context": label, "candidates": len(candidates)},
		Offending: offending,
	}
}
