package resourcemon

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"

	"golang.org/x/sys/unix"
)

// MountPoint is one entry from the static mount list Resource Monitor
// walks each tick, derived at init from the system's fstab equivalent.
type MountPoint struct {
	Path string
}

// skipMount reports whether fstab line fields should be excluded from
// monitoring: cdroms, floppies, network mounts, comments, /mnt/*.
func skipMount(device, mountPoint, fsType string) bool {
	if strings.HasPrefix(strings.TrimSpace(device), "#") {
		return true
	}
	switch fsType {
	case "iso9660", "udf", "nfs", "nfs4", "cifs", "smbfs":
		return true
	}
	if strings.Contains(strings.ToLower(device), "cdrom") || strings.Contains(strings.ToLower(device), "floppy") {
		return true
	}
	if strings.HasPrefix(mountPoint, "/mnt/") {
		return true
	}
	return false
}

// LoadMountPoints parses an fstab-formatted file at path into the static
// mount list, excluding removable and network mounts via skipMount.
func LoadMountPoints(path string) ([]MountPoint, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("resourcemon: open fstab %s: %w", path, err)
	}
	defer f.Close()

	var mounts []MountPoint
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) < 3 {
			continue
		}
		device, mountPoint, fsType := fields[0], fields[1], fields[2]
		if skipMount(device, mountPoint, fsType) {
			continue
		}
		mounts = append(mounts, MountPoint{Path: mountPoint})
	}
	return mounts, scanner.Err()
}

// ReadDiskStat statfs's mountPoint into the raw counters SampleDisk needs.
func ReadDiskStat(mountPoint string) (total, free, available, files, freeFiles uint64, err error) {
	var st unix.Statfs_t
	if err = unix.Statfs(mountPoint, &st); err != nil {
		return 0, 0, 0, 0, 0, fmt.Errorf("resourcemon: statfs %s: %w", mountPoint, err)
	}
	blockSize := uint64(st.Bsize)
	total = st.Blocks * blockSize
	free = st.Bfree * blockSize
	available = st.Bavail * blockSize
	files = st.Files
	freeFiles = st.Ffree
	return total, free, available, files, freeFiles, nil
}

// ReadCPUJiffies parses the aggregate "cpu" line of /proc/stat.
func ReadCPUJiffies() (CPUJiffies, error) {
	f, err := os.Open("/proc/stat")
	if err != nil {
		return CPUJiffies{}, fmt.Errorf("resourcemon: open /proc/stat: %w", err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) < 5 || fields[0] != "cpu" {
			continue
		}
		user, _ := strconv.ParseUint(fields[1], 10, 64)
		nice, _ := strconv.ParseUint(fields[2], 10, 64)
		system, _ := strconv.ParseUint(fields[3], 10, 64)
		idle, _ := strconv.ParseUint(fields[4], 10, 64)
		return CPUJiffies{User: user, Nice: nice, System: system, Idle: idle}, nil
	}
	return CPUJiffies{}, fmt.Errorf("resourcemon: no cpu line in /proc/stat")
}

// ReadMemoryInfo parses the key-value table of /proc/meminfo.
func ReadMemoryInfo() (MemoryReading, error) {
	f, err := os.Open("/proc/meminfo")
	if err != nil {
		return MemoryReading{}, fmt.Errorf("resourcemon: open /proc/meminfo: %w", err)
	}
	defer f.Close()

	values := make(map[string]uint64)
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		parts := strings.SplitN(scanner.Text(), ":", 2)
		if len(parts) != 2 {
			continue
		}
		key := strings.TrimSpace(parts[0])
		fields := strings.Fields(parts[1])
		if len(fields) == 0 {
			continue
		}
		v, err := strconv.ParseUint(fields[0], 10, 64)
		if err != nil {
			continue
		}
		values[key] = v * 1024 // /proc/meminfo reports kB
	}
	return MemoryReading{
		MemTotal:   values["MemTotal"],
		MemFree:    values["MemFree"],
		Buffers:    values["Buffers"],
		Cached:     values["Cached"],
		SwapTotal:  values["SwapTotal"],
		SwapFree:   values["SwapFree"],
		SwapCached: values["SwapCached"],
	}, nil
}
