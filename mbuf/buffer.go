// File: mbuf/buffer.go
// Package mbuf
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// PacketBuffer: the handle to a single-segment packet carried through the
// data plane. Multi-segment packets are rejected by construction; the
// application must keep the device MTU below the segment dataroom.

package mbuf

import (
	"github.com/momentics/hioload-fwd/api"
	"github.com/momentics/hioload-fwd/driver"
)

// Tag tells whether dropping the handle returns the segment to its pool.
type Tag int

const (
	// Owned buffers go back to their pool on Release.
	Owned Tag = iota
	// Borrowed buffers wrap memory the handle does not own; Release never
	// frees them.
	Borrowed
)

// Buffer is a handle to one packet segment.
type Buffer struct {
	seg *driver.Seg
	tag Tag
}

// New allocates a buffer from the calling core's bound pool.
func New() (*Buffer, error) {
	p, err := Bound()
	if err != nil {
		return nil, err
	}
	return p.Alloc()
}

// FromBytes allocates a buffer from the bound pool and copies data into it.
func FromBytes(data []byte) (*Buffer, error) {
	b, err := New()
	if err != nil {
		return nil, err
	}
	if err := b.Extend(0, len(data)); err != nil {
		b.Release()
		return nil, err
	}
	if _, err := WriteSlice(b, 0, data); err != nil {
		b.Release()
		return nil, err
	}
	return b, nil
}

// FromSeg adopts an existing segment. The buffer owns it and will return it
// to its pool on Release.
func FromSeg(s *driver.Seg) *Buffer {
	return &Buffer{seg: s, tag: Owned}
}

// BorrowSeg wraps a segment without taking ownership.
func BorrowSeg(s *driver.Seg) *Buffer {
	return &Buffer{seg: s, tag: Borrowed}
}

// Tag returns the ownership tag.
func (b *Buffer) Tag() Tag { return b.tag }

// Seg returns the underlying segment for driver calls. Ownership is
// unchanged.
func (b *Buffer) Seg() *driver.Seg { return b.seg }

// IntoSeg relinquishes ownership and returns the underlying segment. The
// caller is responsible for handing it to a ring, a TX queue, or a pool;
// otherwise the segment leaks.
func (b *Buffer) IntoSeg() *driver.Seg {
	s := b.seg
	b.seg = nil
	return s
}

// Release returns an owned buffer's segment to its pool. Safe to call more
// than once; never frees a borrowed segment.
func (b *Buffer) Release() {
	if b.seg == nil || b.tag != Owned {
		b.seg = nil
		return
	}
	if p := b.seg.Pool(); p != nil {
		p.Free(b.seg)
	}
	b.seg = nil
}

// DataLen returns the amount of data stored in the buffer.
func (b *Buffer) DataLen() int { return int(b.seg.DataLen) }

// PktLen returns the total packet length.
func (b *Buffer) PktLen() int { return int(b.seg.PktLen) }

// BufLen returns the backing slab length.
func (b *Buffer) BufLen() int { return b.seg.BufLen() }

// Tailroom returns the bytes left in the buffer.
func (b *Buffer) Tailroom() int { return b.seg.Tailroom() }

// Bytes returns the current data window. The slice aliases the segment.
func (b *Buffer) Bytes() []byte { return b.seg.Data() }

// Extend grows the data region by n bytes at offset. If offset is not the
// end of data, the tail is shifted down to make room.
func (b *Buffer) Extend(offset, n int) error {
	if n <= 0 || offset > b.DataLen() || n >= b.Tailroom() {
		return api.ErrBufferNotResized
	}
	toCopy := b.DataLen() - offset
	if toCopy > 0 {
		data := b.seg.Buf[b.seg.DataOff:]
		copy(data[offset+n:offset+n+toCopy], data[offset:offset+toCopy])
	}
	b.seg.DataLen += uint16(n)
	b.seg.PktLen += uint32(n)
	return nil
}

// Shrink removes n bytes of the data region at offset. The tail is shifted
// up to fill the room.
func (b *Buffer) Shrink(offset, n int) error {
	if n <= 0 || offset+n > b.DataLen() {
		return api.ErrBufferNotResized
	}
	toCopy := b.DataLen() - offset - n
	if toCopy > 0 {
		data := b.seg.Buf[b.seg.DataOff:]
		copy(data[offset:offset+toCopy], data[offset+n:offset+n+toCopy])
	}
	b.seg.DataLen -= uint16(n)
	b.seg.PktLen -= uint32(n)
	return nil
}

// Resize grows or shrinks the data region depending on the sign of n.
func (b *Buffer) Resize(offset, n int) error {
	if n < 0 {
		return b.Shrink(offset, -n)
	}
	return b.Extend(offset, n)
}

// Truncate cuts the data region down to toLen bytes.
func (b *Buffer) Truncate(toLen int) error {
	if toLen >= b.DataLen() {
		return api.ErrBufferNotResized
	}
	b.seg.DataLen = uint16(toLen)
	b.seg.PktLen = uint32(toLen)
	return nil
}
