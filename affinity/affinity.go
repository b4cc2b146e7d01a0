// File: affinity/affinity.go
// Author: momentics <momentics@gmail.com>
//
// Platform-neutral API for CPU affinity and NUMA topology. Platform-specific
// implementations are located in separate files (affinity_linux.go,
// affinity_stub.go, etc.) guarded by build tags.

package affinity

// SetAffinity pins the current OS thread to a given logical CPU/core on
// supported platforms. On unsupported platforms returns an error.
//
// The caller must have locked the goroutine to its OS thread first
// (runtime.LockOSThread), otherwise the pin outlives the goroutine.
func SetAffinity(cpuID int) error {
	return setAffinityPlatform(cpuID)
}

// SocketOfCPU returns the NUMA node the given CPU belongs to, or -1 when the
// topology cannot be determined.
func SocketOfCPU(cpuID int) int {
	return socketOfCPUPlatform(cpuID)
}

// Sockets returns the distinct NUMA nodes covering the given CPU set.
// Single-node and unknown topologies collapse to node -1 handled by callers
// as "system default".
func Sockets(cpuIDs []int) []int {
	seen := make(map[int]bool)
	var out []int
	for _, cpu := range cpuIDs {
		node := SocketOfCPU(cpu)
		if !seen[node] {
			seen[node] = true
			out = append(out, node)
		}
	}
	return out
}
