// File: nethdr/ipv4.go
// Package nethdr
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// IPv4 header in wire layout for in-place overlay. Options are not parsed;
// IHL is available for callers that need the payload offset.

package nethdr

import (
	"encoding/binary"
	"net/netip"
)

// IPv4HdrLen is the option-less IPv4 header size.
const IPv4HdrLen = 20

// IP protocol numbers the classifier cares about.
const (
	ProtoICMP = 1
	ProtoTCP  = 6
	ProtoUDP  = 17
	ProtoSCTP = 132
)

// IPv4Hdr is the fixed 20-byte IPv4 header. Field order and sizes match the
// wire; do not reorder.
type IPv4Hdr struct {
	VersionIHL uint8
	TOS        uint8
	TotalLen   [2]byte
	ID         [2]byte
	FragOff    [2]byte
	TTL        uint8
	Proto      uint8
	Checksum   [2]byte
	SrcAddr    [4]byte
	DstAddr    [4]byte
}

// Version returns the IP version field.
func (h *IPv4Hdr) Version() uint8 { return h.VersionIHL >> 4 }

// HeaderLen returns the header length in bytes from IHL.
func (h *IPv4Hdr) HeaderLen() int { return int(h.VersionIHL&0x0f) * 4 }

// TotalLength returns the datagram length in host order.
func (h *IPv4Hdr) TotalLength() uint16 {
	return binary.BigEndian.Uint16(h.TotalLen[:])
}

// Src returns the source address.
func (h *IPv4Hdr) Src() netip.Addr { return netip.AddrFrom4(h.SrcAddr) }

// Dst returns the destination address.
func (h *IPv4Hdr) Dst() netip.Addr { return netip.AddrFrom4(h.DstAddr) }
