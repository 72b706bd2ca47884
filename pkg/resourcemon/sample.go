// Package resourcemon implements the Resource Monitor: periodic OS
// sampling of disk, CPU and memory, each raising or clearing one alarm
// through the Fault pipeline against a configurable high-water-mark.
package resourcemon

import "math"

// DiskSample is one mount point's usage reading.
type DiskSample struct {
	MountPoint    string
	UsedPercent   float64
	InodeUsedPct  float64
}

// SampleDisk computes used% and inode_used% for one mount point from raw
// statfs-style counters:
//
//	used%       = 100*(total-free)/(total-free+available)
//	inode_used% = 100*(files-freeFiles)/files
func SampleDisk(mountPoint string, total, free, available uint64, files, freeFiles uint64) DiskSample {
	denom := total - free + available
	used := 0.0
	if denom > 0 {
		used = 100 * float64(total-free) / float64(denom)
	}
	inode := 0.0
	if files > 0 {
		inode = 100 * float64(files-freeFiles) / float64(files)
	}
	return DiskSample{MountPoint: mountPoint, UsedPercent: used, InodeUsedPct: inode}
}

// CPUJiffies is one reading of cumulative /proc/stat-style jiffy counters.
type CPUJiffies struct {
	User, Nice, System, Idle uint64
}

func (j CPUJiffies) busy() uint64 { return j.User + j.Nice + j.System }
func (j CPUJiffies) total() uint64 { return j.busy() + j.Idle }

// CPUSampler tracks the previous jiffy reading so consecutive calls can
// compute a delta-based percentage; the zero value is ready to use and
// returns 0% on its first sample.
type CPUSampler struct {
	prev    CPUJiffies
	hasPrev bool
}

// Sample computes cpu% from curr against the previous reading, clamped to
// [0,100]. The first call (no previous reading) returns 0 and stores curr
// as the baseline.
func (s *CPUSampler) Sample(curr CPUJiffies) int {
	if !s.hasPrev {
		s.prev = curr
		s.hasPrev = true
		return 0
	}
	prevBusy, prevTotal := s.prev.busy(), s.prev.total()
	busy, total := curr.busy(), curr.total()

	deltaBusy := float64(busy) - float64(prevBusy)
	deltaTotal := float64(total) - float64(prevTotal)

	s.prev = curr

	if deltaTotal <= 0 {
		return 0
	}
	pct := int(math.Round(100 * deltaBusy / deltaTotal))
	if pct < 0 {
		pct = 0
	}
	if pct > 100 {
		pct = 100
	}
	return pct
}

// MemoryReading is the parsed key-value table of memory totals.
type MemoryReading struct {
	MemTotal, MemFree, Buffers, Cached uint64
	SwapTotal, SwapFree, SwapCached    uint64
}

// MemorySample is the computed physical/swap usage.
type MemorySample struct {
	PhysUsedPercent float64
	SwapUsedPercent float64
}

// SampleMemory computes phys_used% (the only one that alarms; swap is
// measured and logged but never alarms).
func SampleMemory(r MemoryReading) MemorySample {
	phys := 0.0
	if r.MemTotal > 0 {
		used := float64(r.MemTotal) - float64(r.MemFree) - float64(r.Buffers) - float64(r.Cached)
		phys = used / float64(r.MemTotal) * 100
	}
	swap := 0.0
	if r.SwapTotal > 0 {
		used := float64(r.SwapTotal) - float64(r.SwapFree) - float64(r.SwapCached)
		swap = used / float64(r.SwapTotal) * 100
	}
	return MemorySample{PhysUsedPercent: phys, SwapUsedPercent: swap}
}
