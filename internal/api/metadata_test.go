package api

import (
	"reflect"
	"testing"

	"github.com/samcharles93/loupe/internal/gguf"
)

func TestValueJSONScalarPassthrough(t *testing.T) {
	t.Parallel()

	if got := valueJSON(int32(42)); got != int32(42) {
		t.Errorf("valueJSON(42) = %v", got)
	}
	if got := valueJSON("hello"); got != "hello" {
		t.Errorf("valueJSON(hello) = %v", got)
	}
}

func TestValueJSONNestedArray(t *testing.T) {
	t.Parallel()

	in := gguf.ArrayValue{
		ElemType: gguf.TypeArray,
		Values: []any{
			gguf.ArrayValue{ElemType: gguf.TypeUint8, Values: []any{uint8(1), uint8(2)}},
		},
	}
	want := map[string]any{
		"elem_type": "array",
		"values": []any{
			map[string]any{
				"elem_type": "u8",
				"values":    []any{uint8(1), uint8(2)},
			},
		},
	}
	if got := valueJSON(in); !reflect.DeepEqual(got, want) {
		t.Errorf("valueJSON = %#v, want %#v", got, want)
	}
}
