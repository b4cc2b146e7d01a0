//go:build linux
// +build linux

// File: affinity/affinity_linux.go
// Author: momentics <momentics@gmail.com>
//
// Linux implementation of thread CPU affinity via sched_setaffinity(2).

package affinity

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"golang.org/x/sys/unix"
)

// setAffinityPlatform sets thread affinity to a given CPU for Linux.
// pid 0 targets the calling thread.
func setAffinityPlatform(cpuID int) error {
	var set unix.CPUSet
	set.Zero()
	set.Set(cpuID)
	if err := unix.SchedSetaffinity(0, &set); err != nil {
		return fmt.Errorf("affinity: sched_setaffinity(cpu=%d) failed: %w", cpuID, err)
	}
	return nil
}

// socketOfCPUPlatform resolves the NUMA node of a CPU through sysfs.
// The node directory is a sibling of the cpu entry:
// /sys/devices/system/cpu/cpu<N>/node<M>.
func socketOfCPUPlatform(cpuID int) int {
	dir := fmt.Sprintf("/sys/devices/system/cpu/cpu%d", cpuID)
	entries, err := os.ReadDir(dir)
	if err != nil {
		return -1
	}
	for _, e := range entries {
		name := e.Name()
		if strings.HasPrefix(name, "node") {
			if node, err := strconv.Atoi(name[len("node"):]); err == nil {
				return node
			}
		}
	}
	return -1
}
