package gguf

import "fmt"

// readValue decodes one value of type t from the cursor. Array values recurse
// through readValue for each element; nesting depth is whatever the file
// declares.
func readValue(r *reader, t ValueType) (Value, error) {
	switch t {
	case TypeUint8:
		v, err := r.readU8()
		if err != nil {
			return Value{}, err
		}
		return Value{Type: t, Value: v}, nil
	case TypeInt8:
		v, err := r.readI8()
		if err != nil {
			return Value{}, err
		}
		return Value{Type: t, Value: v}, nil
	case TypeUint16:
		v, err := r.readU16()
		if err != nil {
			return Value{}, err
		}
		return Value{Type: t, Value: v}, nil
	case TypeInt16:
		v, err := r.readI16()
		if err != nil {
			return Value{}, err
		}
		return Value{Type: t, Value: v}, nil
	case TypeUint32:
		v, err := r.readU32()
		if err != nil {
			return Value{}, err
		}
		return Value{Type: t, Value: v}, nil
	case TypeInt32:
		v, err := r.readI32()
		if err != nil {
			return Value{}, err
		}
		return Value{Type: t, Value: v}, nil
	case TypeUint64:
		v, err := r.readU64()
		if err != nil {
			return Value{}, err
		}
		return Value{Type: t, Value: v}, nil
	case TypeInt64:
		v, err := r.readI64()
		if err != nil {
			return Value{}, err
		}
		return Value{Type: t, Value: v}, nil
	case TypeFloat32:
		v, err := r.readF32()
		if err != nil {
			return Value{}, err
		}
		return Value{Type: t, Value: v}, nil
	case TypeFloat64:
		v, err := r.readF64()
		if err != nil {
			return Value{}, err
		}
		return Value{Type: t, Value: v}, nil
	case TypeBool:
		// The wire reserves 0/1 but the decoder keeps the established
		// leniency: any nonzero byte is true.
		v, err := r.readU8()
		if err != nil {
			return Value{}, err
		}
		return Value{Type: t, Value: v != 0}, nil
	case TypeString:
		s, err := r.readString()
		if err != nil {
			return Value{}, err
		}
		return Value{Type: t, Value: s}, nil
	case TypeArray:
		return readArray(r)
	default:
		return Value{}, &UnknownValueTypeError{Code: uint32(t)}
	}
}

// readArray decodes the element type tag, the element count and then that
// many elements of the declared type. The count is not checked against the
// remaining stream up front; a short stream fails element by element with
// ErrTruncated.
func readArray(r *reader) (Value, error) {
	code, err := r.readU32()
	if err != nil {
		return Value{}, fmt.Errorf("array element type: %w", err)
	}
	elemType, err := ParseValueType(code)
	if err != nil {
		return Value{}, fmt.Errorf("array element type at offset %d: %w", r.off-4, err)
	}
	count, err := r.readU64()
	if err != nil {
		return Value{}, fmt.Errorf("array length: %w", err)
	}

	values := make([]any, 0, capHint(count))
	for i := uint64(0); i < count; i++ {
		v, err := readValue(r, elemType)
		if err != nil {
			return Value{}, fmt.Errorf("array element %d: %w", i, err)
		}
		values = append(values, v.Value)
	}
	return Value{Type: TypeArray, Value: ArrayValue{ElemType: elemType, Values: values}}, nil
}
