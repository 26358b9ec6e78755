// Package validator provides the format validators applied to field values written into a draft
package validator

import (
	"fmt"
	"net/mail"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/nexuscrm/formengine/pkg/constants"
	"github.com/nexuscrm/formengine/pkg/fieldtypes"
)

// ValidatorFunc is the signature for validator functions
// Takes a value and optional configuration, returns an error if validation fails
type ValidatorFunc func(value interface{}, config map[string]interface{}) error

// Registry holds registered validators
type Registry struct {
	validators map[string]ValidatorFunc
	// byType names the validator that checks each field type
	byType   map[constants.FieldType]string
	patterns map[string]*regexp.Regexp
	mu       sync.RWMutex
}

var (
	defaultRegistry *Registry
	once            sync.Once
)

var nonDigits = regexp.MustCompile(`[^\d]`)

// GetRegistry returns the singleton validator registry
func GetRegistry() *Registry {
	once.Do(func() {
		defaultRegistry = NewRegistry()
	})
	return defaultRegistry
}

// NewRegistry creates a registry with the built-in validators
func NewRegistry() *Registry {
	r := &Registry{
		validators: make(map[string]ValidatorFunc),
		byType:     make(map[constants.FieldType]string),
		patterns:   make(map[string]*regexp.Regexp),
	}
	r.registerBuiltins()
	return r
}

// Register adds a validator to the registry
func (r *Registry) Register(name string, fn ValidatorFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.validators[name] = fn
}

// Get returns a validator by name
func (r *Registry) Get(name string) (ValidatorFunc, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	fn, ok := r.validators[name]
	return fn, ok
}

// Validate runs a named validator
func (r *Registry) Validate(name string, value interface{}, config map[string]interface{}) error {
	fn, ok := r.Get(name)
	if !ok {
		return fmt.Errorf("validator '%s' not found", name)
	}
	return fn(value, config)
}

// ValidateFieldType runs the validator bound to a field type, then the type's catalogue pattern.
// Blank values pass; required checks belong to form validation.
func (r *Registry) ValidateFieldType(t constants.FieldType, value interface{}) error {
	if isBlank(value) {
		return nil
	}
	r.mu.RLock()
	name, ok := r.byType[t]
	r.mu.RUnlock()
	if ok {
		if err := r.Validate(name, value, nil); err != nil {
			return err
		}
	}

	pattern, message := fieldtypes.GetRegistry().GetPattern(t)
	if pattern == "" {
		return nil
	}
	return r.Validate("regex", value, map[string]interface{}{"pattern": pattern, "message": message})
}

func (r *Registry) compiled(pattern string) (*regexp.Regexp, error) {
	r.mu.RLock()
	re, ok := r.patterns[pattern]
	r.mu.RUnlock()
	if ok {
		return re, nil
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, err
	}
	r.mu.Lock()
	r.patterns[pattern] = re
	r.mu.Unlock()
	return re, nil
}

// registerBuiltins registers all built-in validators
func (r *Registry) registerBuiltins() {
	r.Register("email", func(value interface{}, config map[string]interface{}) error {
		str := toString(value)
		if str == "" {
			return nil
		}
		addr, err := mail.ParseAddress(str)
		if err != nil || addr.Address != str {
			return fmt.Errorf("invalid email format")
		}
		return nil
	})

	r.Register("url", func(value interface{}, config map[string]interface{}) error {
		str := toString(value)
		if str == "" {
			return nil
		}
		if !strings.HasPrefix(str, "http://") && !strings.HasPrefix(str, "https://") {
			return fmt.Errorf("URL must start with http:// or https://")
		}
		return nil
	})

	r.Register("phone", func(value interface{}, config map[string]interface{}) error {
		str := toString(value)
		if str == "" {
			return nil
		}
		cleaned := nonDigits.ReplaceAllString(str, "")
		if len(cleaned) < 7 || len(cleaned) > 15 {
			return fmt.Errorf("phone number must have 7-15 digits")
		}
		return nil
	})

	r.Register("number", func(value interface{}, config map[string]interface{}) error {
		switch v := value.(type) {
		case float64, float32, int, int64, int32:
			return nil
		case string:
			if _, err := strconv.ParseFloat(strings.TrimSpace(v), 64); err != nil {
				return fmt.Errorf("must be a number")
			}
			return nil
		}
		return fmt.Errorf("must be a number")
	})

	r.Register("date", func(value interface{}, config map[string]interface{}) error {
		str := toString(value)
		if str == "" {
			return nil
		}
		if _, err := time.Parse("2006-01-02", str); err != nil {
			return fmt.Errorf("must be a date in YYYY-MM-DD format")
		}
		return nil
	})

	r.Register("regex", func(value interface{}, config map[string]interface{}) error {
		str := toString(value)
		if str == "" {
			return nil
		}
		pattern, _ := config["pattern"].(string)
		if pattern == "" {
			return nil
		}
		re, err := r.compiled(pattern)
		if err != nil {
			return fmt.Errorf("invalid regex pattern: %v", err)
		}
		if !re.MatchString(str) {
			if msg, ok := config["message"].(string); ok && msg != "" {
				return fmt.Errorf("%s", msg)
			}
			return fmt.Errorf("value does not match required pattern")
		}
		return nil
	})

	r.byType[constants.FieldTypeEmail] = "email"
	r.byType[constants.FieldTypeURL] = "url"
	r.byType[constants.FieldTypeTel] = "phone"
	r.byType[constants.FieldTypeNumber] = "number"
	r.byType[constants.FieldTypeDate] = "date"
}

func toString(value interface{}) string {
	if value == nil {
		return ""
	}
	if s, ok := value.(string); ok {
		return strings.TrimSpace(s)
	}
	return strings.TrimSpace(fmt.Sprint(value))
}

func isBlank(value interface{}) bool {
	return toString(value) == ""
}
