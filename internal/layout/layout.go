// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

// Package layout describes fixed-size on-disk records as explicit field descriptors.
//
// Each field carries its offset, width and byte order, so encoding never depends
// on host struct layout or host endianness.
package layout

import (
	"bytes"
	"encoding/binary"
	"fmt"
)

// Field describes a single field of an on-disk record.
type Field struct {
	// Order is nil for byte arrays.
	Order binary.ByteOrder

	Name   string
	Offset int
	Size   int
}

// End returns the offset just past the field.
func (f Field) End() int {
	return f.Offset + f.Size
}

// Bytes returns the field contents as a sub-slice of buf.
func (f Field) Bytes(buf []byte) []byte {
	return buf[f.Offset:f.End():f.End()]
}

// Uint decodes an unsigned integer field.
func (f Field) Uint(buf []byte) uint64 {
	b := f.Bytes(buf)

	switch f.Size {
	case 1:
		return uint64(b[0])
	case 2:
		return uint64(f.Order.Uint16(b))
	case 4:
		return uint64(f.Order.Uint32(b))
	case 8:
		return f.Order.Uint64(b)
	default:
		panic(fmt.Sprintf("layout: field %q of size %d is not an integer", f.Name, f.Size))
	}
}

// PutUint encodes an unsigned integer field, truncating v to the field width.
func (f Field) PutUint(buf []byte, v uint64) {
	b := f.Bytes(buf)

	switch f.Size {
	case 1:
		b[0] = byte(v)
	case 2:
		f.Order.PutUint16(b, uint16(v))
	case 4:
		f.Order.PutUint32(b, uint32(v))
	case 8:
		f.Order.PutUint64(b, v)
	default:
		panic(fmt.Sprintf("layout: field %q of size %d is not an integer", f.Name, f.Size))
	}
}

// PutBytes copies v into the field and zero-fills the remainder.
//
// It returns the number of bytes of v that did not fit.
func (f Field) PutBytes(buf, v []byte) int {
	b := f.Bytes(buf)

	n := copy(b, v)
	clear(b[n:])

	return len(v) - n
}

// CString returns the field contents up to the first NUL byte.
//
// If the field is not NUL-terminated, the whole field is returned and terminated is false.
func (f Field) CString(buf []byte) (s string, terminated bool) {
	b := f.Bytes(buf)

	idx := bytes.IndexByte(b, 0)
	if idx == -1 {
		return string(b), false
	}

	return string(b[:idx]), true
}

// Cursor assigns consecutive offsets to fields of a record with a fixed byte order.
type Cursor struct {
	order  binary.ByteOrder
	fields []Field
	offset int
}

// NewCursor starts a record at offset zero.
func NewCursor(order binary.ByteOrder) *Cursor {
	return &Cursor{order: order}
}

func (c *Cursor) next(name string, size int, order binary.ByteOrder) Field {
	f := Field{
		Name:   name,
		Offset: c.offset,
		Size:   size,
		Order:  order,
	}

	c.offset += size
	c.fields = append(c.fields, f)

	return f
}

// Uint8 appends a single byte field.
func (c *Cursor) Uint8(name string) Field {
	return c.next(name, 1, c.order)
}

// Uint16 appends a 16-bit field.
func (c *Cursor) Uint16(name string) Field {
	return c.next(name, 2, c.order)
}

// Uint32 appends a 32-bit field.
func (c *Cursor) Uint32(name string) Field {
	return c.next(name, 4, c.order)
}

// Uint64 appends a 64-bit field.
func (c *Cursor) Uint64(name string) Field {
	return c.next(name, 8, c.order)
}

// Bytes appends a byte array field.
func (c *Cursor) Bytes(name string, size int) Field {
	return c.next(name, size, nil)
}

// Pad appends size bytes of padding.
func (c *Cursor) Pad(size int) Field {
	return c.next("_pad", size, nil)
}

// Size returns the record size so far.
func (c *Cursor) Size() int {
	return c.offset
}

// Fields returns all fields in declaration order.
func (c *Cursor) Fields() []Field {
	return c.fields
}
