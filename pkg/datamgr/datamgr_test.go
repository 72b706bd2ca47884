package datamgr

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoadThresholdsReadsConfiguredValues(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "thresholds.ini")
	content := "[resource_thresholds]\ndisk-usage = 80\ncpu-usage = 50\nmemory-usage = 90\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	conns, err := OpenINIConnectionSet(path)
	require.NoError(t, err)
	defer conns.Close()

	thresholds, err := LoadThresholds(conns)
	require.NoError(t, err)
	require.Equal(t, 80, thresholds["disk-usage"])
	require.Equal(t, 50, thresholds["cpu-usage"])
	require.Equal(t, 90, thresholds["memory-usage"])
}

func TestLoadThresholdsFailsLoudButContinuesWithZero(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "thresholds.ini")
	require.NoError(t, os.WriteFile(path, []byte("[resource_thresholds]\ncpu-usage = 50\n"), 0o644))

	conns, err := OpenINIConnectionSet(path)
	require.NoError(t, err)
	defer conns.Close()

	thresholds, err := LoadThresholds(conns)
	require.Error(t, err) // disk-usage and memory-usage are missing
	require.Equal(t, 0, thresholds["disk-usage"])
	require.Equal(t, 50, thresholds["cpu-usage"])
	require.Equal(t, 0, thresholds["memory-usage"])
}
