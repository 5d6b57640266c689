package validation

import (
	"sort"
	"strings"
)

// Error carries every field violation found in one request, so callers see
// the full breakdown instead of the first failure.
type Error struct {
	Fields map[string]string
}

func (e *Error) Error() string {
	if e == nil || len(e.Fields) == 0 {
		return "validation failed"
	}
	names := make([]string, 0, len(e.Fields))
	for name := range e.Fields {
		names = append(names, name)
	}
	sort.Strings(names)
	return "validation failed: " + strings.Join(names, ", ")
}

// Collector accumulates field violations.
type Collector struct {
	fields map[string]string
}

func (c *Collector) Add(field, message string) {
	if c.fields == nil {
		c.fields = make(map[string]string)
	}
	if _, exists := c.fields[field]; !exists {
		c.fields[field] = message
	}
}

// Err returns an *Error when any violation was recorded, else nil.
func (c *Collector) Err() error {
	if c == nil || len(c.fields) == 0 {
		return nil
	}
	return &Error{Fields: c.fields}
}
