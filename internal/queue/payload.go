package queue

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Payload is either a mapping from measurement name to value or free text for
// narrative results. The zero value is empty.
type Payload struct {
	Values map[string]any
	Text   string
}

// TextPayload wraps narrative text.
func TextPayload(text string) Payload {
	return Payload{Text: strings.TrimSpace(text)}
}

// ValuesPayload wraps a measurement mapping.
func ValuesPayload(values map[string]any) Payload {
	return Payload{Values: values}
}

// IsZero reports whether the payload carries nothing.
func (p Payload) IsZero() bool {
	return p.Text == "" && len(p.Values) == 0
}

// IsNarrative reports whether the payload is free text.
func (p Payload) IsNarrative() bool {
	return p.Text != "" && len(p.Values) == 0
}

// Keys returns measurement names in sorted order.
func (p Payload) Keys() []string {
	keys := make([]string, 0, len(p.Values))
	for key := range p.Values {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

// String renders the payload for prompts and tables, one "name: value" pair per
// measurement separated by "; ".
func (p Payload) String() string {
	if len(p.Values) == 0 {
		return p.Text
	}
	parts := make([]string, 0, len(p.Values))
	for _, key := range p.Keys() {
		parts = append(parts, key+": "+FormatValue(p.Values[key]))
	}
	return strings.Join(parts, "; ")
}

// FormatValue renders one measurement value without float noise.
func FormatValue(value any) string {
	switch v := value.(type) {
	case nil:
		return ""
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(v), 'f', -1, 32)
	case int:
		return strconv.Itoa(v)
	case int64:
		return strconv.FormatInt(v, 10)
	case json.Number:
		return v.String()
	case string:
		return v
	default:
		return fmt.Sprint(v)
	}
}

// MarshalJSON encodes narrative payloads as a JSON string and measurement
// payloads as an object.
func (p Payload) MarshalJSON() ([]byte, error) {
	switch {
	case len(p.Values) > 0:
		return json.Marshal(p.Values)
	case p.Text != "":
		return json.Marshal(p.Text)
	default:
		return []byte("null"), nil
	}
}

// UnmarshalJSON accepts a JSON object, a JSON string, or null.
func (p *Payload) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	*p = Payload{}
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil
	}
	switch trimmed[0] {
	case '"':
		var text string
		if err := json.Unmarshal(trimmed, &text); err != nil {
			return err
		}
		p.Text = strings.TrimSpace(text)
		return nil
	case '{':
		values := map[string]any{}
		if err := json.Unmarshal(trimmed, &values); err != nil {
			return err
		}
		p.Values = values
		return nil
	default:
		return fmt.Errorf("payload: expected object or string, got %s", summarize(trimmed))
	}
}

func (p Payload) encode() (any, error) {
	if p.IsZero() {
		return nil, nil
	}
	data, err := json.Marshal(p)
	if err != nil {
		return nil, err
	}
	return string(data), nil
}

func decodePayload(raw string) (Payload, error) {
	var p Payload
	if strings.TrimSpace(raw) == "" {
		return p, nil
	}
	err := json.Unmarshal([]byte(raw), &p)
	return p, err
}

func summarize(data []byte) string {
	if len(data) > 40 {
		return string(data[:40]) + "..."
	}
	return string(data)
}
