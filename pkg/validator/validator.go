// Package validator wraps go-playground/validator with json field names,
// readable messages and the agent-specific rules.
package validator

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
)

var (
	once     sync.Once
	validate *validator.Validate
)

var (
	agentRoles     = []string{"owner", "administrator", "agent", "viewer"}
	availabilities = []string{"online", "busy", "offline"}
)

// ValidationError represents a single field validation failure. Field is the
// json path relative to the validated value, such as "permissions[1]".
type ValidationError struct {
	Field   string `json:"field"`
	Tag     string `json:"tag"`
	Param   string `json:"param,omitempty"`
	Message string `json:"message"`
}

// ValidationErrors collects multiple validation failures.
type ValidationErrors []ValidationError

func (v ValidationErrors) Error() string {
	if len(v) == 0 {
		return "validation failed"
	}
	parts := make([]string, len(v))
	for i, err := range v {
		parts[i] = err.Message
	}
	return strings.Join(parts, "; ")
}

// ValidateStruct validates a struct using registered rules.
func ValidateStruct(s interface{}) error {
	err := getValidator().Struct(s)
	if err == nil {
		return nil
	}

	var ve validator.ValidationErrors
	if !errors.As(err, &ve) {
		return err
	}

	failures := make(ValidationErrors, 0, len(ve))
	for _, fe := range ve {
		field := fieldPath(fe)
		failures = append(failures, ValidationError{
			Field:   field,
			Tag:     fe.Tag(),
			Param:   fe.Param(),
			Message: message(field, fe.Tag(), fe.Param()),
		})
	}
	return failures
}

// RegisterValidation exposes underlying validator custom rules.
func RegisterValidation(tag string, fn validator.Func) error {
	return getValidator().RegisterValidation(tag, fn)
}

// fieldPath drops the root struct name from the namespace.
func fieldPath(fe validator.FieldError) string {
	ns := fe.Namespace()
	if _, rest, ok := strings.Cut(ns, "."); ok {
		return rest
	}
	return fe.Field()
}

func message(field, tag, param string) string {
	name := strings.ToLower(strings.ReplaceAll(field, "_", " "))
	if name == "" {
		name = "field"
	}

	switch tag {
	case "required":
		return name + " is required"
	case "email":
		return name + " must be a valid email address"
	case "uuid":
		return name + " must be a valid UUID"
	case "min":
		return fmt.Sprintf("%s must be at least %s characters", name, param)
	case "max":
		return fmt.Sprintf("%s must be at most %s characters", name, param)
	case "oneof":
		return fmt.Sprintf("%s must be one of %s", name, strings.ReplaceAll(param, " ", ", "))
	case "agent_role":
		return fmt.Sprintf("%s must be one of %s", name, strings.Join(agentRoles, ", "))
	case "availability":
		return fmt.Sprintf("%s must be one of %s", name, strings.Join(availabilities, ", "))
	}
	if param != "" {
		return fmt.Sprintf("%s failed validation: %s=%s", name, tag, param)
	}
	return fmt.Sprintf("%s failed validation: %s", name, tag)
}

func getValidator() *validator.Validate {
	once.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
			if name == "" || name == "-" {
				return fld.Name
			}
			return name
		})
		_ = validate.RegisterValidation("agent_role", oneOf(agentRoles...))
		_ = validate.RegisterValidation("availability", oneOf(availabilities...))
	})
	return validate
}

func oneOf(values ...string) validator.Func {
	allowed := make(map[string]struct{}, len(values))
	for _, v := range values {
		allowed[v] = struct{}{}
	}
	return func(fl validator.FieldLevel) bool {
		_, ok := allowed[strings.ToLower(strings.TrimSpace(fl.Field().String()))]
		return ok
	}
}
