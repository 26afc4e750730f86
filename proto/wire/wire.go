// Package wire holds the big-endian field helpers shared by the binary codecs.
//
// Message layouts are declared as ordered field lists and handed to Put and
// Get, which delegate to encoding/binary. Variable length members are either
// length-prefixed byte strings or count-prefixed arrays of fixed-size records.
package wire

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/5g-empower/empower-runtime-sub001/errors"
)

// Order is the byte order of every southbound binary protocol.
var Order = binary.BigEndian

// Put appends each fixed-size field to buf in order.
func Put(buf *bytes.Buffer, fields ...any) error {
	for _, f := range fields {
		if err := binary.Write(buf, Order, f); err != nil {
			return errors.WrapInvalid(err, "wire", "Put", fmt.Sprintf("encode %T", f))
		}
	}
	return nil
}

// Get fills each field pointer from r in order.
func Get(r *bytes.Reader, fields ...any) error {
	for _, f := range fields {
		if err := binary.Read(r, Order, f); err != nil {
			return short(err, "Get", fmt.Sprintf("decode %T", f))
		}
	}
	return nil
}

// PutString8 writes a one-byte length followed by the bytes of s.
func PutString8(buf *bytes.Buffer, s string) error {
	if len(s) > 0xff {
		return errors.WrapInvalid(errors.ErrInvalidData, "wire", "PutString8", "string longer than 255 bytes")
	}
	buf.WriteByte(byte(len(s)))
	buf.WriteString(s)
	return nil
}

// GetString8 reads a one-byte length prefixed string.
func GetString8(r *bytes.Reader) (string, error) {
	n, err := r.ReadByte()
	if err != nil {
		return "", short(err, "GetString8", "read length")
	}
	b := make([]byte, n)
	if _, err := io.ReadFull(r, b); err != nil {
		return "", short(err, "GetString8", "read bytes")
	}
	return string(b), nil
}

// PutArray8 writes a one-byte element count followed by each element.
func PutArray8[T any](buf *bytes.Buffer, items []T) error {
	if len(items) > 0xff {
		return errors.WrapInvalid(errors.ErrInvalidData, "wire", "PutArray8", "more than 255 elements")
	}
	buf.WriteByte(byte(len(items)))
	for i := range items {
		if err := Put(buf, &items[i]); err != nil {
			return err
		}
	}
	return nil
}

// GetArray reads count fixed-size elements.
func GetArray[T any](r *bytes.Reader, count int) ([]T, error) {
	if count == 0 {
		return nil, nil
	}
	var probe T
	if size := binary.Size(probe); size <= 0 || count*size > r.Len() {
		return nil, errors.WrapInvalid(errors.ErrShortFrame, "wire", "GetArray",
			fmt.Sprintf("%d elements of %T", count, probe))
	}
	items := make([]T, count)
	for i := range items {
		if err := Get(r, &items[i]); err != nil {
			return nil, err
		}
	}
	return items, nil
}

// Rest returns every unread byte of r.
func Rest(r *bytes.Reader) []byte {
	b := make([]byte, r.Len())
	_, _ = io.ReadFull(r, b)
	return b
}

func short(err error, method, action string) error {
	if err == io.EOF || err == io.ErrUnexpectedEOF {
		err = errors.ErrShortFrame
	}
	return errors.WrapInvalid(err, "wire", method, action)
}
