// File: driver/doc.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

// Package driver is the seam between the forwarding engine and the poll-mode
// NIC driver underneath it: named segment pools, named lock-free MPMC rings,
// and Ethernet devices with per-queue burst receive/transmit.
//
// The engine consumes only the Driver/Pool/Ring/Device contracts. The Mem
// backend in this package is a complete software implementation (loopback
// devices with an injectable receive feed), which keeps the whole engine
// runnable and testable on any host. A hardware-backed implementation plugs
// in behind the same contracts and lives out of tree.
package driver
