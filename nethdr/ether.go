// File: nethdr/ether.go
// Package nethdr
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Ethernet header in wire layout, suitable for in-place overlay on packet
// bytes via mbuf.Read. Multi-byte fields are byte arrays so the overlay is
// endian-correct on any host; accessors do the conversion.

package nethdr

import "encoding/binary"

// EtherHdrLen is the untagged Ethernet header size.
const EtherHdrLen = 14

// EtherTypeIPv4 in host order.
const EtherTypeIPv4 = 0x0800

// EtherHdr is the untagged Ethernet header. Field order and sizes match the
// wire; do not reorder.
type EtherHdr struct {
	Dst       MacAddr
	Src       MacAddr
	EtherType [2]byte
}

// Type returns the EtherType in host order.
func (h *EtherHdr) Type() uint16 {
	return binary.BigEndian.Uint16(h.EtherType[:])
}

// SetType stores an EtherType given in host order.
func (h *EtherHdr) SetType(t uint16) {
	binary.BigEndian.PutUint16(h.EtherType[:], t)
}
