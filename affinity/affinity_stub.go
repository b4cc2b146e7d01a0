//go:build !linux
// +build !linux

// File: affinity/affinity_stub.go
// Author: momentics <momentics@gmail.com>
//
// Fallback for platforms without thread affinity support. Pinning is a no-op
// so the engine still runs, just without core placement guarantees.

package affinity

func setAffinityPlatform(cpuID int) error { return nil }

func socketOfCPUPlatform(cpuID int) int { return -1 }
