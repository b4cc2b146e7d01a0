// File: driver/seg.go
// Package driver
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Seg is the raw single-segment packet buffer handed out by pools and carried
// by rings and device queues. Field layout follows the classic mbuf shape:
// a fixed slab with headroom, a data window, and tailroom.

package driver

// Seg is a raw packet segment. The data region is Buf[DataOff:DataOff+DataLen].
type Seg struct {
	// Buf is the backing slab: headroom + dataroom.
	Buf []byte
	// DataOff is the start of packet data within Buf.
	DataOff uint16
	// DataLen is the amount of packet data in this segment.
	DataLen uint16
	// PktLen is the total packet length. Equal to DataLen for single-segment
	// packets, which are the only kind this driver produces.
	PktLen uint32

	pool Pool
}

// NewSeg wraps an externally allocated slab in a segment with no owning pool.
func NewSeg(buf []byte) *Seg {
	return &Seg{Buf: buf, DataOff: 0}
}

// Pool returns the owning pool, or nil for adopted segments.
func (s *Seg) Pool() Pool { return s.pool }

// BufLen returns the slab length.
func (s *Seg) BufLen() int { return len(s.Buf) }

// Tailroom returns the bytes left between the end of data and the end of the
// slab.
func (s *Seg) Tailroom() int {
	return len(s.Buf) - int(s.DataOff) - int(s.DataLen)
}

// Data returns the current data window.
func (s *Seg) Data() []byte {
	return s.Buf[s.DataOff : int(s.DataOff)+int(s.DataLen)]
}

// Reset restores the segment to its freshly allocated state.
func (s *Seg) Reset() {
	if len(s.Buf) > DefaultHeadroom {
		s.DataOff = DefaultHeadroom
	} else {
		s.DataOff = 0
	}
	s.DataLen = 0
	s.PktLen = 0
}
