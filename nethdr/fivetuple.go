// File: nethdr/fivetuple.go
// Package nethdr
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package nethdr

import (
	"fmt"
	"net/netip"
)

// FiveTuple is the classification key extracted from an Ethernet+IPv4 header
// pair.
type FiveTuple struct {
	SrcMAC MacAddr
	DstMAC MacAddr
	SrcIP  netip.Addr
	DstIP  netip.Addr
	Proto  uint8
}

// TupleFromHeaders builds a FiveTuple from parsed headers.
func TupleFromHeaders(eth *EtherHdr, ip *IPv4Hdr) FiveTuple {
	return FiveTuple{
		SrcMAC: eth.Src,
		DstMAC: eth.Dst,
		SrcIP:  ip.Src(),
		DstIP:  ip.Dst(),
		Proto:  ip.Proto,
	}
}

func (t FiveTuple) String() string {
	return fmt.Sprintf("%s/%s -> %s/%s proto=%d", t.SrcMAC, t.SrcIP, t.DstMAC, t.DstIP, t.Proto)
}
