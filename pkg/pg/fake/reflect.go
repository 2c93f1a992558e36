package fake

import (
	"fmt"
	"reflect"
)

// assignReflect handles column types fake.assign's type switch doesn't
// special-case directly: []byte, time.Time, *T nullable columns, slices,
// maps, and anything else assignable via reflection.
func assignReflect(dest, v any) error {
	dv := reflect.ValueOf(dest)
	if dv.Kind() != reflect.Ptr || dv.IsNil() {
		return fmt.Errorf("dest %T is not a non-nil pointer", dest)
	}
	elem := dv.Elem()

	if v == nil {
		elem.Set(reflect.Zero(elem.Type()))
		return nil
	}

	vv := reflect.ValueOf(v)

	// dest is itself a pointer-to-pointer (nullable column): **T.
	if elem.Kind() == reflect.Ptr {
		if vv.Type() == elem.Type() {
			elem.Set(vv)
			return nil
		}
		inner := reflect.New(elem.Type().Elem())
		if !vv.Type().AssignableTo(inner.Elem().Type()) {
			return fmt.Errorf("value %T not assignable to %s", v, inner.Elem().Type())
		}
		inner.Elem().Set(vv)
		elem.Set(inner)
		return nil
	}

	if !vv.Type().AssignableTo(elem.Type()) {
		return fmt.Errorf("value %T not assignable to %s", v, elem.Type())
	}
	elem.Set(vv)
	return nil
}
