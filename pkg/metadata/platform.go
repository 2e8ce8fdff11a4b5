package metadata

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/shirou/gopsutil/cpu"
	"github.com/shirou/gopsutil/host"
	"github.com/shirou/gopsutil/load"
	"github.com/shirou/gopsutil/mem"
	log "github.com/sirupsen/logrus"
)

const (
	// CPUModelNameKey defines a key in the platform metrics map.
	CPUModelNameKey = "cpu_model"
	// CPUCoresKey defines a key in the platform metrics map.
	CPUCoresKey = "cpu_cores"
	// CPUThreadsKey defines a key in the platform metrics map.
	CPUThreadsKey = "cpu_threads"
	// KernelVersionKey defines a key in the platform metrics map.
	KernelVersionKey = "kernel_version"
	// OSKey defines a key in the platform metrics map.
	OSKey = "os"
	// PlatformKey defines a key in the platform metrics map.
	PlatformKey = "platform"
	// TotalMemoryKey defines a key in the platform metrics map.
	TotalMemoryKey = "total_memory"
	// LoadAverageKey defines a key in the platform metrics map.
	LoadAverageKey = "load_average"
)

// PlatformMetrics returns a map of host characteristics measurements were
// taken on. A metric that cannot be read is logged and skipped, never
// fatal.
func PlatformMetrics() map[string]string {
	metrics := map[string]string{}

	if info, err := cpu.Info(); err != nil {
		log.Warnf("PlatformMetrics: cannot read cpu info: %s", err)
	} else if len(info) > 0 {
		metrics[CPUModelNameKey] = info[0].ModelName
	}

	if cores, err := cpu.Counts(false); err != nil {
		log.Warnf("PlatformMetrics: cannot count physical cores: %s", err)
	} else {
		metrics[CPUCoresKey] = strconv.Itoa(cores)
	}

	if threads, err := cpu.Counts(true); err != nil {
		log.Warnf("PlatformMetrics: cannot count logical cpus: %s", err)
	} else {
		metrics[CPUThreadsKey] = strconv.Itoa(threads)
	}

	if info, err := host.Info(); err != nil {
		log.Warnf("PlatformMetrics: cannot read host info: %s", err)
	} else {
		metrics[KernelVersionKey] = info.KernelVersion
		metrics[OSKey] = info.OS
		metrics[PlatformKey] = strings.TrimSpace(info.Platform + " " + info.PlatformVersion)
	}

	if virtual, err := mem.VirtualMemory(); err != nil {
		log.Warnf("PlatformMetrics: cannot read memory info: %s", err)
	} else {
		metrics[TotalMemoryKey] = strconv.FormatUint(virtual.Total, 10)
	}

	if avg, err := load.Avg(); err != nil {
		log.Warnf("PlatformMetrics: cannot read load average: %s", err)
	} else {
		metrics[LoadAverageKey] = fmt.Sprintf("%.2f %.2f %.2f", avg.Load1, avg.Load5, avg.Load15)
	}

	return metrics
}
