//go:build !linux
// +build !linux

// File: mbuf/tls_stub.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Without a thread id syscall every binding collapses onto one slot. Fine
// for development hosts; worker placement only matters on Linux anyway.

package mbuf

func threadID() int { return 0 }
