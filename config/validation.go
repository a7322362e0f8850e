package config

import (
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/golobby/cast"
)

const (
	tagDefault  = "default"
	tagRequired = "required"
	tagDesc     = "desc"
)

// Validator is implemented by configuration structs with checks beyond
// required fields. It runs after defaults have been applied.
type Validator interface {
	Validate() error
}

// ProcessDefaults sets every zero-valued field carrying a `default:"..."`
// tag. Nested structs are processed recursively; slices and maps take their
// default as JSON.
func ProcessDefaults(cfg any) error {
	v, err := structValue(cfg)
	if err != nil {
		return err
	}
	return applyDefaults(v, "")
}

func structValue(cfg any) (reflect.Value, error) {
	if cfg == nil {
		return reflect.Value{}, ErrConfigNil
	}
	v := reflect.ValueOf(cfg)
	if v.Kind() != reflect.Ptr || v.IsNil() || v.Elem().Kind() != reflect.Struct {
		return reflect.Value{}, ErrConfigNotPointer
	}
	return v.Elem(), nil
}

func applyDefaults(v reflect.Value, prefix string) error {
	t := v.Type()
	for i := 0; i < v.NumField(); i++ {
		field := v.Field(i)
		sf := t.Field(i)
		if !field.CanSet() {
			continue
		}
		name := joinPath(prefix, sf.Name)

		if field.Kind() == reflect.Struct && field.Type() != reflect.TypeOf(time.Time{}) {
			if err := applyDefaults(field, name); err != nil {
				return err
			}
			continue
		}

		def, ok := sf.Tag.Lookup(tagDefault)
		if !ok || !isZeroValue(field) {
			continue
		}
		if err := setDefaultValue(field, def); err != nil {
			return fmt.Errorf("failed to set default value for %s: %w", name, err)
		}
	}
	return nil
}

// ValidateRequired reports every `required:"true"` field left at its zero
// value, by dotted Go field path.
func ValidateRequired(cfg any) error {
	v, err := structValue(cfg)
	if err != nil {
		return err
	}
	var missing []string
	collectMissing(v, "", &missing)
	if len(missing) > 0 {
		return fmt.Errorf("%w: %s", ErrRequiredFieldMissing, strings.Join(missing, ", "))
	}
	return nil
}

func collectMissing(v reflect.Value, prefix string, missing *[]string) {
	t := v.Type()
	for i := 0; i < v.NumField(); i++ {
		field := v.Field(i)
		sf := t.Field(i)
		if !field.CanSet() {
			continue
		}
		name := joinPath(prefix, sf.Name)
		if field.Kind() == reflect.Struct {
			collectMissing(field, name, missing)
			continue
		}
		if sf.Tag.Get(tagRequired) == "true" && isZeroValue(field) {
			*missing = append(*missing, name)
		}
	}
}

// Validate applies defaults, checks required fields and finally calls
// Validate on cfg when it implements Validator.
func Validate(cfg any) error {
	if err := ProcessDefaults(cfg); err != nil {
		return err
	}
	if err := ValidateRequired(cfg); err != nil {
		return err
	}
	if v, ok := cfg.(Validator); ok {
		return v.Validate()
	}
	return nil
}

// Describe lists dotted field paths with their `desc` tags, for help output.
func Describe(cfg any) map[string]string {
	v, err := structValue(cfg)
	if err != nil {
		return nil
	}
	out := make(map[string]string)
	describe(v.Type(), "", out)
	return out
}

func describe(t reflect.Type, prefix string, out map[string]string) {
	for i := 0; i < t.NumField(); i++ {
		sf := t.Field(i)
		if !sf.IsExported() {
			continue
		}
		key := joinPath(prefix, tagName(sf))
		if sf.Type.Kind() == reflect.Struct && sf.Type != reflect.TypeOf(time.Time{}) {
			describe(sf.Type, key, out)
			continue
		}
		if d := sf.Tag.Get(tagDesc); d != "" {
			out[key] = d
		}
	}
}

func joinPath(prefix, name string) string {
	if prefix == "" {
		return name
	}
	return prefix + "." + name
}

// isZeroValue determines if a field contains its zero value
func isZeroValue(v reflect.Value) bool {
	switch v.Kind() {
	case reflect.Array, reflect.Map, reflect.Slice, reflect.String:
		return v.Len() == 0
	case reflect.Interface, reflect.Ptr:
		return v.IsNil()
	case reflect.Invalid:
		return true
	case reflect.Chan, reflect.Func, reflect.Struct, reflect.UnsafePointer:
		return false
	default:
		return v.IsZero()
	}
}

// setDefaultValue sets a default value from a string to the proper field type
func setDefaultValue(field reflect.Value, def string) error {
	if field.Type() == reflect.TypeOf(time.Duration(0)) {
		d, err := time.ParseDuration(def)
		if err != nil {
			return fmt.Errorf("failed to parse duration value: %w", err)
		}
		field.SetInt(int64(d))
		return nil
	}

	switch field.Kind() {
	case reflect.Slice, reflect.Map:
		ptr := reflect.New(field.Type())
		if err := json.Unmarshal([]byte(def), ptr.Interface()); err != nil {
			return fmt.Errorf("failed to unmarshal JSON default: %w", err)
		}
		field.Set(ptr.Elem())
		return nil
	case reflect.String, reflect.Bool,
		reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		converted, err := cast.FromType(def, field.Type())
		if err != nil {
			return fmt.Errorf("cannot convert %q to %s: %w", def, field.Type(), err)
		}
		field.Set(reflect.ValueOf(converted).Convert(field.Type()))
		return nil
	default:
		return fmt.Errorf("%w: %s", ErrUnsupportedTypeForDefault, field.Kind())
	}
}
