// File: mbuf/codec.go
// Package mbuf
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Typed, bounds-checked access to a buffer's data region. Values are
// overlaid on the packet bytes in place, so T must be a fixed-layout struct
// of wire-sized fields. Headers in package nethdr satisfy this.

package mbuf

import (
	"unsafe"

	"github.com/momentics/hioload-fwd/api"
)

// Read returns a pointer to the T stored at offset in the data region.
// The pointee aliases packet memory and is invalidated by Extend/Shrink.
func Read[T any](b *Buffer, offset int) (*T, error) {
	var zero T
	size := int(unsafe.Sizeof(zero))
	if offset >= b.DataLen() {
		return nil, api.ErrBadOffset
	}
	if offset+size > b.DataLen() {
		return nil, api.ErrOutOfBuffer
	}
	p := unsafe.Pointer(&b.seg.Buf[int(b.seg.DataOff)+offset])
	return (*T)(p), nil
}

// Write copies item into the data region at offset and returns the stored
// copy. Call Extend first to reserve the space.
func Write[T any](b *Buffer, offset int, item *T) (*T, error) {
	var zero T
	size := int(unsafe.Sizeof(zero))
	if offset+size > b.DataLen() {
		return nil, api.ErrOutOfBuffer
	}
	p := (*T)(unsafe.Pointer(&b.seg.Buf[int(b.seg.DataOff)+offset]))
	*p = *item
	return p, nil
}

// ReadSlice returns a slice of count Ts overlaid at offset.
func ReadSlice[T any](b *Buffer, offset, count int) ([]T, error) {
	var zero T
	size := int(unsafe.Sizeof(zero))
	if offset >= b.DataLen() {
		return nil, api.ErrBadOffset
	}
	if offset+size*count > b.DataLen() {
		return nil, api.ErrOutOfBuffer
	}
	p := (*T)(unsafe.Pointer(&b.seg.Buf[int(b.seg.DataOff)+offset]))
	return unsafe.Slice(p, count), nil
}

// WriteSlice copies items into the data region at offset and returns the
// stored copy.
func WriteSlice[T any](b *Buffer, offset int, items []T) ([]T, error) {
	var zero T
	size := int(unsafe.Sizeof(zero))
	if offset+size*len(items) > b.DataLen() {
		return nil, api.ErrOutOfBuffer
	}
	p := (*T)(unsafe.Pointer(&b.seg.Buf[int(b.seg.DataOff)+offset]))
	dst := unsafe.Slice(p, len(items))
	copy(dst, items)
	return dst, nil
}
