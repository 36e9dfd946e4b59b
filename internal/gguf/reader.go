package gguf

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"unicode/utf8"
)

// reader is a forward-only byte cursor over the container stream. It tracks
// the absolute offset for error reporting and, when the stream length is
// known, rejects reads past the end up front.
type reader struct {
	r    *bufio.Reader
	off  int64
	size int64
}

func newReader(rd io.Reader, size int64) *reader {
	return &reader{
		r:    bufio.NewReader(rd),
		size: size,
	}
}

// chunk limits a single allocation in readN. A declared length larger than
// this is read incrementally so a lying prefix on an unbounded stream cannot
// force one huge make before the stream runs dry.
const chunk = 1 << 20

func (r *reader) readN(n uint64) ([]byte, error) {
	if n == 0 {
		return nil, nil
	}
	if r.size >= 0 && (n > uint64(r.size) || r.off > r.size-int64(n)) {
		return nil, fmt.Errorf("offset %d: need %d bytes: %w", r.off, n, ErrTruncated)
	}

	if n <= chunk {
		buf := make([]byte, n)
		if _, err := io.ReadFull(r.r, buf); err != nil {
			return nil, r.readErr(err)
		}
		r.off += int64(n)
		return buf, nil
	}

	buf := make([]byte, 0, chunk)
	for remaining := n; remaining > 0; {
		c := remaining
		if c > chunk {
			c = chunk
		}
		start := len(buf)
		buf = append(buf, make([]byte, c)...)
		if _, err := io.ReadFull(r.r, buf[start:]); err != nil {
			return nil, r.readErr(err)
		}
		r.off += int64(c)
		remaining -= c
	}
	return buf, nil
}

// readErr classifies a short read as truncation and passes every other
// source failure through untouched.
func (r *reader) readErr(err error) error {
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return fmt.Errorf("offset %d: %w", r.off, ErrTruncated)
	}
	return fmt.Errorf("offset %d: %w", r.off, err)
}

func (r *reader) readU8() (uint8, error) {
	b, err := r.readN(1)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

func (r *reader) readI8() (int8, error) {
	v, err := r.readU8()
	return int8(v), err
}

func (r *reader) readU16() (uint16, error) {
	b, err := r.readN(2)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint16(b), nil
}

func (r *reader) readI16() (int16, error) {
	v, err := r.readU16()
	return int16(v), err
}

func (r *reader) readU32() (uint32, error) {
	b, err := r.readN(4)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(b), nil
}

func (r *reader) readI32() (int32, error) {
	v, err := r.readU32()
	return int32(v), err
}

func (r *reader) readU64() (uint64, error) {
	b, err := r.readN(8)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(b), nil
}

func (r *reader) readI64() (int64, error) {
	v, err := r.readU64()
	return int64(v), err
}

func (r *reader) readF32() (float32, error) {
	u, err := r.readU32()
	if err != nil {
		return 0, err
	}
	return math.Float32frombits(u), nil
}

func (r *reader) readF64() (float64, error) {
	u, err := r.readU64()
	if err != nil {
		return 0, err
	}
	return math.Float64frombits(u), nil
}

// readString reads a u64-length-prefixed UTF-8 string. Zero-length strings
// are valid and decode to "".
func (r *reader) readString() (string, error) {
	start := r.off
	n, err := r.readU64()
	if err != nil {
		return "", err
	}
	b, err := r.readN(n)
	if err != nil {
		return "", err
	}
	if !utf8.Valid(b) {
		return "", fmt.Errorf("offset %d: %w", start, ErrInvalidUTF8)
	}
	return string(b), nil
}
