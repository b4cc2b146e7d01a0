// File: nethdr/mac.go
// Package nethdr
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package nethdr

import (
	"fmt"
	"strconv"
	"strings"
)

// MacAddr is an Ethernet hardware address in wire order.
type MacAddr [6]byte

// ParseMac parses the colon-separated hexadecimal form.
func ParseMac(s string) (MacAddr, error) {
	var mac MacAddr
	parts := strings.Split(s, ":")
	if len(parts) != 6 {
		return mac, fmt.Errorf("nethdr: invalid mac %q", s)
	}
	for i, part := range parts {
		v, err := strconv.ParseUint(part, 16, 8)
		if err != nil {
			return mac, fmt.Errorf("nethdr: invalid mac %q: %w", s, err)
		}
		mac[i] = byte(v)
	}
	return mac, nil
}

func (m MacAddr) String() string {
	return fmt.Sprintf("%02x:%02x:%02x:%02x:%02x:%02x", m[0], m[1], m[2], m[3], m[4], m[5])
}

// IsMulticast reports whether the group bit is set.
func (m MacAddr) IsMulticast() bool { return m[0]&0x01 != 0 }
