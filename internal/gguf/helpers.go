package gguf

import "math"

// Lookup returns the value for key. The metadata table keeps duplicates, so
// with a repeated key the last occurrence wins: later entries override
// earlier ones the way the file author wrote them.
func Lookup(f *File, key string) (Value, bool) {
	for i := len(f.Entries) - 1; i >= 0; i-- {
		if f.Entries[i].Key == key {
			return f.Entries[i].Value, true
		}
	}
	return Value{}, false
}

func GetString(f *File, key string) (string, bool) {
	v, ok := Lookup(f, key)
	if !ok {
		return "", false
	}
	s, ok := v.Value.(string)
	return s, ok
}

func GetBool(f *File, key string) (bool, bool) {
	v, ok := Lookup(f, key)
	if !ok {
		return false, false
	}
	b, ok := v.Value.(bool)
	return b, ok
}

func GetUint64(f *File, key string) (uint64, bool) {
	v, ok := Lookup(f, key)
	if !ok {
		return 0, false
	}
	return asUint64(v.Value)
}

func GetInt64(f *File, key string) (int64, bool) {
	v, ok := Lookup(f, key)
	if !ok {
		return 0, false
	}
	switch t := v.Value.(type) {
	case int8:
		return int64(t), true
	case int16:
		return int64(t), true
	case int32:
		return int64(t), true
	case int64:
		return t, true
	case uint8:
		return int64(t), true
	case uint16:
		return int64(t), true
	case uint32:
		return int64(t), true
	case uint64:
		if t > math.MaxInt64 {
			return 0, false
		}
		return int64(t), true
	default:
		return 0, false
	}
}

func GetFloat64(f *File, key string) (float64, bool) {
	v, ok := Lookup(f, key)
	if !ok {
		return 0, false
	}
	switch t := v.Value.(type) {
	case float32:
		return float64(t), true
	case float64:
		return t, true
	default:
		return 0, false
	}
}

// GetArray retrieves the elements of an array value as a []T. It fails if the
// key is missing, the value is not an array, or any element is not a T.
func GetArray[T any](f *File, key string) ([]T, bool) {
	v, ok := Lookup(f, key)
	if !ok {
		return nil, false
	}
	arr, ok := v.Value.(ArrayValue)
	if !ok {
		return nil, false
	}

	out := make([]T, 0, len(arr.Values))
	for _, item := range arr.Values {
		tItem, ok := item.(T)
		if !ok {
			return nil, false
		}
		out = append(out, tItem)
	}
	return out, true
}

func asUint64(v any) (uint64, bool) {
	switch t := v.(type) {
	case uint8:
		return uint64(t), true
	case uint16:
		return uint64(t), true
	case uint32:
		return uint64(t), true
	case uint64:
		return t, true
	case int8:
		if t < 0 {
			return 0, false
		}
		return uint64(t), true
	case int16:
		if t < 0 {
			return 0, false
		}
		return uint64(t), true
	case int32:
		if t < 0 {
			return 0, false
		}
		return uint64(t), true
	case int64:
		if t < 0 {
			return 0, false
		}
		return uint64(t), true
	default:
		return 0, false
	}
}
