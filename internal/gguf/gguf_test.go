package gguf

import (
	"bytes"
	"encoding/binary"
	"errors"
	"math"
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

// enc builds container bytes for tests. The production package is
// decode-only, so the encoder lives here.
type enc struct {
	buf bytes.Buffer
}

func (e *enc) raw(b []byte) *enc {
	e.buf.Write(b)
	return e
}

func (e *enc) u32(v uint32) *enc {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	e.buf.Write(b[:])
	return e
}

func (e *enc) u64(v uint64) *enc {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], v)
	e.buf.Write(b[:])
	return e
}

func (e *enc) str(s string) *enc {
	e.u64(uint64(len(s)))
	e.buf.WriteString(s)
	return e
}

func (e *enc) header(version uint32, tensors, kvs uint64) *enc {
	e.buf.WriteString(magicGGUF)
	e.u32(version)
	e.u64(tensors)
	e.u64(kvs)
	return e
}

// value encodes one payload of type t. Arrays are passed as ArrayValue and
// recurse, so nested fixtures compose naturally.
func (e *enc) value(t *testing.T, vt ValueType, v any) *enc {
	t.Helper()
	switch vt {
	case TypeUint8:
		e.buf.WriteByte(v.(uint8))
	case TypeInt8:
		e.buf.WriteByte(byte(v.(int8)))
	case TypeUint16:
		var b [2]byte
		binary.LittleEndian.PutUint16(b[:], v.(uint16))
		e.buf.Write(b[:])
	case TypeInt16:
		var b [2]byte
		binary.LittleEndian.PutUint16(b[:], uint16(v.(int16)))
		e.buf.Write(b[:])
	case TypeUint32:
		e.u32(v.(uint32))
	case TypeInt32:
		e.u32(uint32(v.(int32)))
	case TypeUint64:
		e.u64(v.(uint64))
	case TypeInt64:
		e.u64(uint64(v.(int64)))
	case TypeFloat32:
		e.u32(math.Float32bits(v.(float32)))
	case TypeFloat64:
		e.u64(math.Float64bits(v.(float64)))
	case TypeBool:
		if v.(bool) {
			e.buf.WriteByte(1)
		} else {
			e.buf.WriteByte(0)
		}
	case TypeString:
		e.str(v.(string))
	case TypeArray:
		arr := v.(ArrayValue)
		e.u32(uint32(arr.ElemType))
		e.u64(uint64(len(arr.Values)))
		for _, item := range arr.Values {
			e.value(t, arr.ElemType, item)
		}
	default:
		t.Fatalf("encode: unhandled value type %d", vt)
	}
	return e
}

func (e *enc) kv(t *testing.T, key string, vt ValueType, v any) *enc {
	t.Helper()
	e.str(key)
	e.u32(uint32(vt))
	return e.value(t, vt, v)
}

func (e *enc) bytes() []byte {
	return e.buf.Bytes()
}

func TestReadBasic(t *testing.T) {
	data := new(enc).
		header(3, 0, 1).
		kv(t, "answer", TypeInt32, int32(42)).
		bytes()

	f, err := Read(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("Read: %v", err)
	}

	if f.Header.Version != 3 {
		t.Errorf("Version = %d, want 3", f.Header.Version)
	}
	if f.Header.TensorCount != 0 {
		t.Errorf("TensorCount = %d, want 0", f.Header.TensorCount)
	}
	if f.Header.KVCount != 1 {
		t.Errorf("KVCount = %d, want 1", f.Header.KVCount)
	}

	want := []Entry{{Key: "answer", Value: Value{Type: TypeInt32, Value: int32(42)}}}
	if !reflect.DeepEqual(f.Entries, want) {
		t.Errorf("Entries = %#v, want %#v", f.Entries, want)
	}
}

func TestReadBadMagic(t *testing.T) {
	valid := new(enc).header(3, 0, 0).bytes()

	for i := 0; i < 4; i++ {
		data := append([]byte(nil), valid...)
		data[i] ^= 0xff
		_, err := Read(bytes.NewReader(data))
		if !errors.Is(err, ErrBadMagic) {
			t.Errorf("corrupt magic byte %d: err = %v, want ErrBadMagic", i, err)
		}
	}

	// An entirely different marker fails the same way.
	data := append([]byte("MOST"), valid[4:]...)
	if _, err := Read(bytes.NewReader(data)); !errors.Is(err, ErrBadMagic) {
		t.Errorf("foreign magic: err = %v, want ErrBadMagic", err)
	}
}

// TestReadTruncatedEverywhere cuts a valid stream at every byte boundary
// before its logical end; each cut must fail with ErrTruncated and nothing
// else.
func TestReadTruncatedEverywhere(t *testing.T) {
	valid := new(enc).
		header(3, 7, 3).
		kv(t, "general.name", TypeString, "tiny").
		kv(t, "flag", TypeBool, true).
		kv(t, "dims", TypeArray, ArrayValue{ElemType: TypeUint32, Values: []any{uint32(2), uint32(4)}}).
		bytes()

	if _, err := Read(bytes.NewReader(valid)); err != nil {
		t.Fatalf("full stream must decode: %v", err)
	}

	for cut := 0; cut < len(valid); cut++ {
		_, err := Read(bytes.NewReader(valid[:cut]))
		if err == nil {
			t.Fatalf("cut at %d: decode succeeded", cut)
		}
		if !errors.Is(err, ErrTruncated) {
			t.Errorf("cut at %d: err = %v, want ErrTruncated", cut, err)
		}
	}
}

func TestReadKeyLengthBeyondStream(t *testing.T) {
	e := new(enc).header(3, 0, 1)
	e.u64(100)
	e.raw(bytes.Repeat([]byte{'k'}, 10))

	_, err := Read(bytes.NewReader(e.bytes()))
	if !errors.Is(err, ErrTruncated) {
		t.Errorf("err = %v, want ErrTruncated", err)
	}
}

func TestReadUnknownValueType(t *testing.T) {
	e := new(enc).header(3, 0, 1)
	e.str("bad")
	e.u32(13)

	_, err := Read(bytes.NewReader(e.bytes()))
	var unknown *UnknownValueTypeError
	if !errors.As(err, &unknown) {
		t.Fatalf("err = %v, want UnknownValueTypeError", err)
	}
	if unknown.Code != 13 {
		t.Errorf("Code = %d, want 13", unknown.Code)
	}
}

func TestReadInvalidUTF8Key(t *testing.T) {
	e := new(enc).header(3, 0, 1)
	e.u64(2)
	e.raw([]byte{0xff, 0xfe})

	_, err := Read(bytes.NewReader(e.bytes()))
	if !errors.Is(err, ErrInvalidUTF8) {
		t.Errorf("err = %v, want ErrInvalidUTF8", err)
	}
}

func TestReadInvalidUTF8Value(t *testing.T) {
	e := new(enc).header(3, 0, 1)
	e.str("name")
	e.u32(uint32(TypeString))
	e.u64(3)
	e.raw([]byte{0x41, 0xc0, 0x41})

	_, err := Read(bytes.NewReader(e.bytes()))
	if !errors.Is(err, ErrInvalidUTF8) {
		t.Errorf("err = %v, want ErrInvalidUTF8", err)
	}
}

func TestReadDuplicateKeysRetained(t *testing.T) {
	data := new(enc).
		header(3, 0, 2).
		kv(t, "general.name", TypeString, "first").
		kv(t, "general.name", TypeString, "second").
		bytes()

	f, err := Read(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if len(f.Entries) != 2 {
		t.Fatalf("len(Entries) = %d, want 2 (duplicates retained)", len(f.Entries))
	}
	if f.Entries[0].Value.Value != "first" || f.Entries[1].Value.Value != "second" {
		t.Errorf("entries out of file order: %#v", f.Entries)
	}
	if s, _ := GetString(f, "general.name"); s != "second" {
		t.Errorf("Lookup returned %q, want last occurrence %q", s, "second")
	}
}

func TestReadDeterministic(t *testing.T) {
	data := new(enc).
		header(2, 1, 2).
		kv(t, "a", TypeFloat32, float32(1.5)).
		kv(t, "b", TypeArray, ArrayValue{ElemType: TypeInt8, Values: []any{int8(-1), int8(2)}}).
		bytes()

	first, err := Read(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	second, err := Read(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("Read (repeat): %v", err)
	}
	if !reflect.DeepEqual(first, second) {
		t.Errorf("repeated decode differs:\n%#v\n%#v", first, second)
	}

	bad := append([]byte(nil), data...)
	bad = bad[:len(bad)-1]
	err1 := func() error { _, err := Read(bytes.NewReader(bad)); return err }()
	err2 := func() error { _, err := Read(bytes.NewReader(bad)); return err }()
	if !errors.Is(err1, ErrTruncated) || !errors.Is(err2, ErrTruncated) {
		t.Errorf("repeated failing decode changed kind: %v vs %v", err1, err2)
	}
}

// TestReadRoundTrip encodes a table covering every value type, decodes it and
// compares the result entry by entry, in order.
func TestReadRoundTrip(t *testing.T) {
	entries := []Entry{
		{Key: "u8", Value: Value{Type: TypeUint8, Value: uint8(255)}},
		{Key: "i8", Value: Value{Type: TypeInt8, Value: int8(-128)}},
		{Key: "u16", Value: Value{Type: TypeUint16, Value: uint16(65535)}},
		{Key: "i16", Value: Value{Type: TypeInt16, Value: int16(-32768)}},
		{Key: "u32", Value: Value{Type: TypeUint32, Value: uint32(4096)}},
		{Key: "i32", Value: Value{Type: TypeInt32, Value: int32(-7)}},
		{Key: "f32", Value: Value{Type: TypeFloat32, Value: float32(0.25)}},
		{Key: "bool", Value: Value{Type: TypeBool, Value: true}},
		{Key: "str", Value: Value{Type: TypeString, Value: "hello"}},
		{Key: "empty", Value: Value{Type: TypeString, Value: ""}},
		{Key: "u64", Value: Value{Type: TypeUint64, Value: uint64(1) << 40}},
		{Key: "i64", Value: Value{Type: TypeInt64, Value: int64(-1)}},
		{Key: "f64", Value: Value{Type: TypeFloat64, Value: float64(3.5)}},
		{Key: "arr", Value: Value{Type: TypeArray, Value: ArrayValue{
			ElemType: TypeString,
			Values:   []any{"a", "b", "c"},
		}}},
		{Key: "nested", Value: Value{Type: TypeArray, Value: ArrayValue{
			ElemType: TypeArray,
			Values: []any{
				ArrayValue{ElemType: TypeUint8, Values: []any{uint8(1), uint8(2)}},
				ArrayValue{ElemType: TypeUint8, Values: []any{uint8(3)}},
			},
		}}},
	}

	e := new(enc).header(3, 0, uint64(len(entries)))
	for _, entry := range entries {
		e.kv(t, entry.Key, entry.Value.Type, entry.Value.Value)
	}

	f, err := Read(bytes.NewReader(e.bytes()))
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if !reflect.DeepEqual(f.Entries, entries) {
		t.Errorf("round trip mismatch:\ngot  %#v\nwant %#v", f.Entries, entries)
	}
}

func TestOpen(t *testing.T) {
	data := new(enc).
		header(3, 2, 1).
		kv(t, "general.architecture", TypeString, "llama").
		bytes()

	path := filepath.Join(t.TempDir(), "model.gguf")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	f, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if f.Path != path {
		t.Errorf("Path = %q, want %q", f.Path, path)
	}
	if f.Size != int64(len(data)) {
		t.Errorf("Size = %d, want %d", f.Size, len(data))
	}
	if arch, _ := GetString(f, "general.architecture"); arch != "llama" {
		t.Errorf("architecture = %q, want llama", arch)
	}
	if f.Header.TensorCount != 2 {
		t.Errorf("TensorCount = %d, want 2", f.Header.TensorCount)
	}
}

func TestOpenMissingFile(t *testing.T) {
	_, err := Open(filepath.Join(t.TempDir(), "nope.gguf"))
	if err == nil {
		t.Fatal("expected error for missing file")
	}
	if errors.Is(err, ErrBadMagic) || errors.Is(err, ErrTruncated) {
		t.Errorf("source failure misclassified as structural error: %v", err)
	}
}
