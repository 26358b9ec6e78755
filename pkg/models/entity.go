package models

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/nexuscrm/formengine/pkg/constants"
)

// Entity is a related record returned by a candidate lookup (account, contact, user, product)
type Entity map[string]interface{}

// ID returns the entity identifier as a string
func (e Entity) ID() string {
	return e.String(constants.AttrID)
}

// String returns the attribute as a trimmed string, or "" when absent
func (e Entity) String(key string) string {
	v, ok := e[key]
	if !ok || v == nil {
		return ""
	}
	switch val := v.(type) {
	case string:
		return strings.TrimSpace(val)
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	default:
		return strings.TrimSpace(fmt.Sprint(val))
	}
}

// FirstNonEmpty returns the first attribute among keys with a non-blank value
func (e Entity) FirstNonEmpty(keys ...string) string {
	for _, k := range keys {
		if s := e.String(k); s != "" {
			return s
		}
	}
	return ""
}

// Float returns the attribute as a number. Strings are parsed; anything else is 0.
func (e Entity) Float(key string) float64 {
	switch v := e[key].(type) {
	case float64:
		return v
	case float32:
		return float64(v)
	case int:
		return float64(v)
	case int64:
		return float64(v)
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err == nil {
			return f
		}
	}
	return 0
}
