// File: route/routing.go
// Package route
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// RoutingTable maps between the MAC and IPv4 addresses of colocated clients,
// populated from observed traffic. Two directional tables under one
// reader/writer lock: both directions are always taken together, so the pair
// can never diverge.

package route

import (
	"errors"
	"net/netip"
	"sync"

	"github.com/momentics/hioload-fwd/nethdr"
)

// ErrConflict is returned when an insert disagrees with an existing entry in
// either direction. The table is left unchanged.
var ErrConflict = errors.New("route: conflicting routing entry")

// RoutingTable is a concurrent MAC<->IPv4 bidirectional map.
type RoutingTable struct {
	mu       sync.RWMutex
	macTable map[nethdr.MacAddr]netip.Addr
	ipTable  map[netip.Addr]nethdr.MacAddr
}

// NewRoutingTable returns an empty table.
func NewRoutingTable() *RoutingTable {
	return &RoutingTable{
		macTable: make(map[nethdr.MacAddr]netip.Addr),
		ipTable:  make(map[netip.Addr]nethdr.MacAddr),
	}
}

// Add inserts the (mac, ip) pair into both directions atomically.
//
// Writes run much less often than lookups; this is the only method that
// takes the write lock. If both directions already hold exactly this pair
// the call is a no-op. If either direction holds a different value for the
// same key, nothing is inserted and ErrConflict is returned.
func (t *RoutingTable) Add(mac nethdr.MacAddr, ip netip.Addr) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	haveIP, macKnown := t.macTable[mac]
	haveMAC, ipKnown := t.ipTable[ip]
	if macKnown && ipKnown && haveIP == ip && haveMAC == mac {
		return nil
	}
	if (macKnown && haveIP != ip) || (ipKnown && haveMAC != mac) {
		return ErrConflict
	}
	t.macTable[mac] = ip
	t.ipTable[ip] = mac
	return nil
}

// LookupIP returns the IPv4 address registered for mac.
func (t *RoutingTable) LookupIP(mac nethdr.MacAddr) (netip.Addr, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	ip, ok := t.macTable[mac]
	return ip, ok
}

// LookupMAC returns the MAC address registered for ip.
func (t *RoutingTable) LookupMAC(ip netip.Addr) (nethdr.MacAddr, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	mac, ok := t.ipTable[ip]
	return mac, ok
}

// ContainsMAC reports whether mac is registered.
func (t *RoutingTable) ContainsMAC(mac nethdr.MacAddr) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	_, ok := t.macTable[mac]
	return ok
}

// ContainsIP reports whether ip is registered.
func (t *RoutingTable) ContainsIP(ip netip.Addr) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	_, ok := t.ipTable[ip]
	return ok
}

// Len returns the number of entries.
func (t *RoutingTable) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.macTable)
}
