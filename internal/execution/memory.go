package execution

import (
	"github.com/shirou/gopsutil/v4/mem"
)

// MemorySample is one observation of system memory pressure.
type MemorySample struct {
	Fraction float64
	Used     uint64
	Total    uint64
}

// Sampler reports current memory utilization. The smart-flush controller
// takes one so tests can force utilization above or below threshold.
type Sampler func() (MemorySample, error)

// SystemMemory samples the host's virtual memory via gopsutil.
func SystemMemory() (MemorySample, error) {
	vm, err := mem.VirtualMemory()
	if err != nil {
		return MemorySample{}, err
	}
	return MemorySample{
		Fraction: vm.UsedPercent / 100,
		Used:     vm.Used,
		Total:    vm.Total,
	}, nil
}
