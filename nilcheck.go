package cache

import "reflect"

// isNilValue reports whether v is a nil pointer, interface, map, slice,
// channel, or func — the cases Go lets a generic V be "null" in. Value
// types (structs, numbers, strings) are never nil and always pass.
func isNilValue(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Ptr, reflect.Interface, reflect.Map, reflect.Slice, reflect.Chan, reflect.Func:
		return rv.IsNil()
	default:
		return false
	}
}
