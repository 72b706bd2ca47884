package resourcemon

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// TestCPUSamplingTwoTickDelta covers a first tick
// (user=10,nice=0,system=5,idle=85) followed by a second tick
// (user=60,nice=0,system=20,idle=120). Applying the delta formula
// (busy = user+nice+system; cpu% = round(100*(busy-prevBusy)/((busy+idle)
// -(prevBusy+prevIdle)))) to these counters gives busy2=80 and cpu%=65.
func TestCPUSamplingTwoTickDelta(t *testing.T) {
	var s CPUSampler
	require.Equal(t, 0, s.Sample(CPUJiffies{User: 10, Nice: 0, System: 5, Idle: 85}))
	require.Equal(t, 65, s.Sample(CPUJiffies{User: 60, Nice: 0, System: 20, Idle: 120}))
}

func TestSampleDiskUsedPercent(t *testing.T) {
	sample := SampleDisk("/data", 1000, 200, 200, 100, 10)
	require.InDelta(t, 80.0, sample.UsedPercent, 0.01)
	require.InDelta(t, 90.0, sample.InodeUsedPct, 0.01)
}

func TestSampleMemoryOnlyPhysicalAlarmable(t *testing.T) {
	sample := SampleMemory(MemoryReading{
		MemTotal: 1000, MemFree: 100, Buffers: 100, Cached: 100,
		SwapTotal: 500, SwapFree: 500,
	})
	require.InDelta(t, 70.0, sample.PhysUsedPercent, 0.01)
	require.InDelta(t, 0.0, sample.SwapUsedPercent, 0.01)
}

func TestSkipMountExcludesNamedCategories(t *testing.T) {
	require.True(t, skipMount("# comment", "/mnt/x", "ext4"))
	require.True(t, skipMount("server:/export", "/data", "nfs"))
	require.True(t, skipMount("/dev/sr0", "/media/cdrom", "iso9660"))
	require.True(t, skipMount("/dev/sdb1", "/mnt/usb", "vfat"))
	require.False(t, skipMount("/dev/sda1", "/", "ext4"))
}
