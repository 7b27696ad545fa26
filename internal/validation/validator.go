package validation

import (
	"fmt"
	"reflect"
	"strconv"
	"strings"
)

// FieldError reports the first rule a field failed
type FieldError struct {
	Field   string
	Message string
}

func (e *FieldError) Error() string {
	return e.Field + ": " + e.Message
}

// Validator validates request structs against their `validate` tags.
//
// Supported rules: required, min=N, max=N and oneof=a b c. min and max bound
// the length of strings and slices and the value of numbers. Nil pointers
// skip every rule except required. Fields are reported by their json name.
type Validator struct{}

// NewValidator creates a new validator
func NewValidator() *Validator {
	return &Validator{}
}

// Validate validates a struct
func (v *Validator) Validate(s interface{}) error {
	val := reflect.ValueOf(s)
	if val.Kind() == reflect.Ptr {
		val = val.Elem()
	}

	if val.Kind() != reflect.Struct {
		return fmt.Errorf("validate expects a struct")
	}

	typ := val.Type()

	for i := 0; i < val.NumField(); i++ {
		fieldType := typ.Field(i)
		tag := fieldType.Tag.Get("validate")

		if tag == "" {
			continue
		}

		if err := v.validateField(val.Field(i), tag); err != nil {
			return &FieldError{Field: fieldName(fieldType), Message: err.Error()}
		}
	}

	return nil
}

func fieldName(f reflect.StructField) string {
	name := strings.Split(f.Tag.Get("json"), ",")[0]
	if name == "" || name == "-" {
		return f.Name
	}
	return name
}

// validateField validates a single field
func (v *Validator) validateField(field reflect.Value, tag string) error {
	rules := strings.Split(tag, ",")

	if field.Kind() == reflect.Ptr {
		if field.IsNil() {
			for _, rule := range rules {
				if rule == "required" {
					return fmt.Errorf("field is required")
				}
			}
			return nil
		}
		field = field.Elem()
	}

	for _, rule := range rules {
		parts := strings.SplitN(rule, "=", 2)
		ruleName := parts[0]
		arg := ""
		if len(parts) == 2 {
			arg = parts[1]
		}

		switch ruleName {
		case "required":
			if isEmpty(field) {
				return fmt.Errorf("field is required")
			}

		case "min", "max":
			limit, err := strconv.ParseFloat(arg, 64)
			if err != nil {
				return fmt.Errorf("bad %s rule %q", ruleName, arg)
			}
			n, unit, ok := measure(field)
			if !ok {
				continue
			}
			if ruleName == "min" && n < limit {
				return fmt.Errorf("minimum %s is %s", unit, arg)
			}
			if ruleName == "max" && n > limit {
				return fmt.Errorf("maximum %s is %s", unit, arg)
			}

		case "oneof":
			if field.Kind() != reflect.String || field.String() == "" {
				continue
			}
			allowed := strings.Fields(arg)
			found := false
			for _, a := range allowed {
				if field.String() == a {
					found = true
					break
				}
			}
			if !found {
				return fmt.Errorf("must be one of %s", strings.Join(allowed, ", "))
			}
		}
	}

	return nil
}

func isEmpty(field reflect.Value) bool {
	switch field.Kind() {
	case reflect.String:
		return strings.TrimSpace(field.String()) == ""
	case reflect.Slice, reflect.Map:
		return field.IsNil()
	default:
		return field.IsZero()
	}
}

// measure returns the quantity min and max compare against
func measure(field reflect.Value) (float64, string, bool) {
	switch field.Kind() {
	case reflect.String:
		return float64(len(strings.TrimSpace(field.String()))), "length", true
	case reflect.Slice, reflect.Map:
		return float64(field.Len()), "length", true
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return float64(field.Int()), "value", true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return float64(field.Uint()), "value", true
	case reflect.Float32, reflect.Float64:
		return field.Float(), "value", true
	}
	return 0, "", false
}
