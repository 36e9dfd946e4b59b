// Package gguf decodes the header and metadata section of GGUF model
// containers. It reads the magic marker, the declared schema version, the
// tensor count and the ordered metadata key/value table; tensor descriptors
// and tensor data are never touched.
package gguf

import (
	"bytes"
	"fmt"
	"io"
	"os"

	"golang.org/x/sys/unix"
)

const magicGGUF = "GGUF"

// ValueType is the wire-level tag identifying how a metadata value is encoded.
type ValueType uint32

const (
	TypeUint8   ValueType = 0
	TypeInt8    ValueType = 1
	TypeUint16  ValueType = 2
	TypeInt16   ValueType = 3
	TypeUint32  ValueType = 4
	TypeInt32   ValueType = 5
	TypeFloat32 ValueType = 6
	TypeBool    ValueType = 7
	TypeString  ValueType = 8
	TypeArray   ValueType = 9
	TypeUint64  ValueType = 10
	TypeInt64   ValueType = 11
	TypeFloat64 ValueType = 12
)

// ParseValueType maps a wire tag to its ValueType. The tag set is closed;
// anything outside 0..12 fails with an UnknownValueTypeError.
func ParseValueType(code uint32) (ValueType, error) {
	if code > uint32(TypeFloat64) {
		return 0, &UnknownValueTypeError{Code: code}
	}
	return ValueType(code), nil
}

func (t ValueType) String() string {
	switch t {
	case TypeUint8:
		return "u8"
	case TypeInt8:
		return "i8"
	case TypeUint16:
		return "u16"
	case TypeInt16:
		return "i16"
	case TypeUint32:
		return "u32"
	case TypeInt32:
		return "i32"
	case TypeUint64:
		return "u64"
	case TypeInt64:
		return "i64"
	case TypeFloat32:
		return "f32"
	case TypeFloat64:
		return "f64"
	case TypeBool:
		return "bool"
	case TypeString:
		return "string"
	case TypeArray:
		return "array"
	default:
		return fmt.Sprintf("type(%d)", uint32(t))
	}
}

// ArrayValue holds the decoded elements of an array value together with the
// element type declared on the wire. Elements of a nested array are
// ArrayValues themselves.
type ArrayValue struct {
	ElemType ValueType
	Values   []any
}

// Value is one decoded metadata value. Value holds the Go representation
// matching Type: uint8..float64 for scalars, bool, string, or ArrayValue.
// The pairing is established during decode and never revalidated.
type Value struct {
	Type  ValueType
	Value any
}

// Entry is one key/value pair of the metadata table.
type Entry struct {
	Key   string
	Value Value
}

type Header struct {
	Version     uint32
	TensorCount uint64
	KVCount     uint64
}

// File is the decoded header and metadata table of a container. Entries keeps
// file order; duplicate keys are legal and all occurrences are retained.
type File struct {
	Path    string
	Size    int64
	Header  Header
	Entries []Entry
}

// Read decodes a container from r, consuming it front to back. It returns
// either a fully populated File or the first error encountered; a partially
// decoded table is never handed back.
func Read(r io.Reader) (*File, error) {
	return read(r, -1)
}

// Open decodes the container at path. The file is mapped read-only where
// mmap is available so that decoding a few kilobytes of metadata does not
// copy gigabytes of tensor data, with a plain-read fallback otherwise. The
// mapping and the file handle are released before Open returns, on every
// path.
func Open(path string) (*File, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()

	st, err := f.Stat()
	if err != nil {
		return nil, err
	}
	size := st.Size()

	if size > 0 && size <= int64(int(^uint(0)>>1)) {
		if data, merr := unix.Mmap(int(f.Fd()), 0, int(size), unix.PROT_READ, unix.MAP_SHARED); merr == nil {
			file, rerr := read(bytes.NewReader(data), size)
			_ = unix.Munmap(data)
			if rerr != nil {
				return nil, rerr
			}
			file.Path = path
			file.Size = size
			return file, nil
		}
	}

	file, err := read(f, size)
	if err != nil {
		return nil, err
	}
	file.Path = path
	file.Size = size
	return file, nil
}

// read drives the linear decode: magic, header, then kvCount metadata
// entries. size < 0 means the stream length is unknown.
func read(rd io.Reader, size int64) (*File, error) {
	r := newReader(rd, size)

	magic, err := r.readN(4)
	if err != nil {
		return nil, fmt.Errorf("read magic: %w", err)
	}
	if string(magic) != magicGGUF {
		return nil, fmt.Errorf("magic %q: %w", string(magic), ErrBadMagic)
	}

	version, err := r.readU32()
	if err != nil {
		return nil, fmt.Errorf("read version: %w", err)
	}
	tensorCount, err := r.readU64()
	if err != nil {
		return nil, fmt.Errorf("read tensor count: %w", err)
	}
	kvCount, err := r.readU64()
	if err != nil {
		return nil, fmt.Errorf("read metadata kv count: %w", err)
	}

	entries := make([]Entry, 0, capHint(kvCount))
	for i := uint64(0); i < kvCount; i++ {
		key, err := r.readString()
		if err != nil {
			return nil, fmt.Errorf("read key %d: %w", i, err)
		}
		code, err := r.readU32()
		if err != nil {
			return nil, fmt.Errorf("read value type for %s: %w", key, err)
		}
		vtype, err := ParseValueType(code)
		if err != nil {
			return nil, fmt.Errorf("value type for %s at offset %d: %w", key, r.off-4, err)
		}
		val, err := readValue(r, vtype)
		if err != nil {
			return nil, fmt.Errorf("read value for %s: %w", key, err)
		}
		entries = append(entries, Entry{Key: key, Value: val})
	}

	return &File{
		Header:  Header{Version: version, TensorCount: tensorCount, KVCount: kvCount},
		Entries: entries,
	}, nil
}

// capHint bounds slice preallocation so a lying count field cannot force a
// huge up-front allocation; decoding still runs to the declared count.
func capHint(n uint64) int {
	const max = 4096
	if n > max {
		return max
	}
	return int(n)
}
