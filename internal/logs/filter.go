package logs

import (
	"encoding/json"
	"strings"

	"labtriage/internal/logging"
)

var levelRank = map[string]int{
	"debug": 0,
	"info":  1,
	"warn":  2,
	"error": 3,
}

// Filter selects log lines. Zero fields match everything.
type Filter struct {
	ItemID   string
	PassID   string
	MinLevel string
}

// IsZero reports whether the filter matches every line.
func (f Filter) IsZero() bool {
	return strings.TrimSpace(f.ItemID) == "" && strings.TrimSpace(f.PassID) == "" && strings.TrimSpace(f.MinLevel) == ""
}

// Match reports whether line passes the filter.
func (f Filter) Match(line string) bool {
	if f.IsZero() {
		return true
	}
	trimmed := strings.TrimSpace(line)
	if trimmed == "" {
		return false
	}
	if strings.HasPrefix(trimmed, "{") {
		var record map[string]any
		if err := json.Unmarshal([]byte(trimmed), &record); err == nil {
			return f.matchJSON(record)
		}
	}
	return f.matchConsole(trimmed)
}

func (f Filter) matchJSON(record map[string]any) bool {
	field := func(key string) string {
		value, _ := record[key].(string)
		return value
	}
	if id := strings.TrimSpace(f.ItemID); id != "" && field(logging.FieldItemID) != id {
		return false
	}
	if id := strings.TrimSpace(f.PassID); id != "" && field(logging.FieldPassID) != id {
		return false
	}
	return f.levelAllowed(field("level"))
}

// Console lines look like "<ts> LEVEL component [item/stage]: message key=value ...".
func (f Filter) matchConsole(line string) bool {
	fields := strings.Fields(line)
	level := ""
	if len(fields) > 1 {
		level = fields[1]
	}
	if !f.levelAllowed(level) {
		return false
	}
	if id := strings.TrimSpace(f.ItemID); id != "" {
		if !strings.Contains(line, "["+id+"]") && !strings.Contains(line, "["+id+"/") &&
			!strings.Contains(line, logging.FieldItemID+"="+id) {
			return false
		}
	}
	if id := strings.TrimSpace(f.PassID); id != "" && !strings.Contains(line, logging.FieldPassID+"="+id) {
		return false
	}
	return true
}

func (f Filter) levelAllowed(level string) bool {
	minimum := strings.ToLower(strings.TrimSpace(f.MinLevel))
	if minimum == "" {
		return true
	}
	want, ok := levelRank[minimum]
	if !ok {
		return true
	}
	got, ok := levelRank[strings.ToLower(strings.TrimSpace(level))]
	if !ok {
		return false
	}
	return got >= want
}
