package tool

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/hupe1980/reactmesh/internal/util"
)

// ArgumentsFromInput translates the free-text tool_input emitted by the model
// into structured arguments for a tool declaring the given schema.
//
// A JSON object input is used as-is. Any other input is bound to the schema's
// primary field: the first required property, or the only property when there
// is exactly one. Numeric, boolean and array fields are coerced from the text.
// Schemas without properties receive {"input": text} for non-empty input.
func ArgumentsFromInput(schema map[string]any, input string) (map[string]any, error) {
	trimmed := strings.TrimSpace(input)

	if strings.HasPrefix(trimmed, "{") {
		var args map[string]any
		if err := json.Unmarshal([]byte(trimmed), &args); err == nil {
			return args, nil
		}
	}

	field := PrimaryField(schema)
	if field == "" {
		if trimmed == "" {
			return map[string]any{}, nil
		}
		return map[string]any{"input": unquote(trimmed)}, nil
	}

	value, err := coerce(unquote(trimmed), util.PropertyType(schema, field))
	if err != nil {
		return nil, fmt.Errorf("field %q: %w", field, err)
	}

	return map[string]any{field: value}, nil
}

// PrimaryField returns the property a plain-text input binds to, or "".
func PrimaryField(schema map[string]any) string {
	props := util.Properties(schema)
	for _, name := range util.RequiredFields(schema) {
		if _, ok := props[name]; ok {
			return name
		}
	}

	if len(props) == 0 {
		return ""
	}

	if len(props) == 1 {
		for name := range props {
			return name
		}
	}

	// Several optional properties: prefer a string one, deterministically.
	names := make([]string, 0, len(props))
	for name := range props {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		if util.PropertyType(schema, name) == "string" {
			return name
		}
	}

	return names[0]
}

func coerce(text, typ string) (any, error) {
	switch typ {
	case "integer":
		n, err := strconv.ParseInt(text, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("expected integer, got %q", text)
		}
		return n, nil
	case "number":
		f, err := strconv.ParseFloat(text, 64)
		if err != nil {
			return nil, fmt.Errorf("expected number, got %q", text)
		}
		return f, nil
	case "boolean":
		b, err := strconv.ParseBool(strings.ToLower(text))
		if err != nil {
			return nil, fmt.Errorf("expected boolean, got %q", text)
		}
		return b, nil
	case "array":
		var arr []any
		if err := json.Unmarshal([]byte(text), &arr); err == nil {
			return arr, nil
		}
		return []any{text}, nil
	default:
		return text, nil
	}
}

// unquote strips one level of matching surrounding quotes or backticks.
func unquote(s string) string {
	if len(s) < 2 {
		return s
	}
	first, last := s[0], s[len(s)-1]
	if first != last {
		return s
	}
	switch first {
	case '"':
		if u, err := strconv.Unquote(s); err == nil {
			return u
		}
		return s[1 : len(s)-1]
	case '\'', '`':
		return s[1 : len(s)-1]
	}
	return s
}

// FormatResult renders a tool result as observation text.
func FormatResult(v any) string {
	switch r := v.(type) {
	case nil:
		return ""
	case string:
		return r
	case []byte:
		return string(r)
	case fmt.Stringer:
		return r.String()
	case float64:
		return strconv.FormatFloat(r, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(r), 'f', -1, 32)
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64, bool:
		return fmt.Sprint(r)
	}

	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(b)
}
