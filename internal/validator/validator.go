package validator

import (
	"fmt"
	"reflect"
)

// Validate checks that every dependency passed to a constructor is
// usable: nilable values must be non-nil and everything else must be
// non-zero. name identifies the component in the returned error.
func Validate(name string, deps ...any) error {
	for _, dep := range deps {
		v := reflect.ValueOf(dep)
		if !v.IsValid() {
			return fmt.Errorf("missing required deps for component: %s", name)
		}

		switch v.Kind() {
		case reflect.Ptr, reflect.Interface, reflect.Map, reflect.Slice, reflect.Chan, reflect.Func:
			if v.IsNil() {
				return fmt.Errorf("missing required deps for component: %s", name)
			}
		default:
			if v.IsZero() {
				return fmt.Errorf("missing required deps for component: %s", name)
			}
		}
	}

	return nil
}
