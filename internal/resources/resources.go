// Package resources probes the host for CPU and memory headroom.
package resources

import (
	"fmt"
	"runtime"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
)

// DefaultWorkers returns the number of logical CPUs, falling back to
// runtime.NumCPU when the host cannot be probed.
func DefaultWorkers() int {
	n, err := cpu.Counts(true)
	if err != nil || n < 1 {
		n = runtime.NumCPU()
	}
	if n < 1 {
		n = 1
	}
	return n
}

// MatrixBytes is the memory needed by the center and context matrices of a
// vocabulary of size vocab at the given dimension (float32 cells).
func MatrixBytes(vocab, dimension int) uint64 {
	return 2 * uint64(vocab) * uint64(dimension) * 4
}

// Headroom reports whether need bytes fit in the currently available memory.
// When memory cannot be probed it reports ok with available = 0.
func Headroom(need uint64) (ok bool, available uint64) {
	vm, err := mem.VirtualMemory()
	if err != nil || vm == nil {
		return true, 0
	}
	return need <= vm.Available, vm.Available
}

// FormatBytes renders a byte count with a binary unit.
func FormatBytes(b uint64) string {
	const unit = 1024
	if b < unit {
		return fmt.Sprintf("%d B", b)
	}
	div, exp := uint64(unit), 0
	for n := b / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(b)/float64(div), "KMGTPE"[exp])
}
