//go:build linux
// +build linux

// File: mbuf/tls_linux.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package mbuf

import "golang.org/x/sys/unix"

// threadID returns the kernel thread id of the calling OS thread.
func threadID() int { return unix.Gettid() }
