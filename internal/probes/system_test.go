package probes

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ttone18/gpu-inspector/internal/models"
)

func TestParseDiskUsage(t *testing.T) {
	thresholds := models.Thresholds{"disk_usage_percent": 85}
	t.Run("below threshold", func(t *testing.T) {
		f := parseDiskUsage(models.RawPayload{Success: true, Output: "/dev/sda1 100G 50G 50G 50% /"}, models.NodeSpec{}, thresholds)
		require.True(t, f.Success)
	})
	t.Run("at threshold fails", func(t *testing.T) {
		f := parseDiskUsage(models.RawPayload{Success: true, Output: "/dev/sda1 100G 85G 15G 85% /"}, models.NodeSpec{}, thresholds)
		require.False(t, f.Success)
		require.Equal(t, models.TypeDiskUsage, f.IssueType)
	})
	t.Run("unparsable df output", func(t *testing.T) {
		f := parseDiskUsage(models.RawPayload{Success: true, Output: "garbage"}, models.NodeSpec{}, thresholds)
		require.False(t, f.Success)
		require.Equal(t, models.TypeUnknown, f.IssueType)
	})
}

func TestParseMemoryUsage(t *testing.T) {
	thresholds := models.Thresholds{"memory_usage_percent": 85}
	t.Run("below threshold", func(t *testing.T) {
		f := parseMemoryUsage(models.RawPayload{Success: true, Output: "40"}, models.NodeSpec{}, thresholds)
		require.True(t, f.Success)
	})
	t.Run("over threshold", func(t *testing.T) {
		f := parseMemoryUsage(models.RawPayload{Success: true, Output: "92"}, models.NodeSpec{}, thresholds)
		require.False(t, f.Success)
		require.Equal(t, models.TypeMemoryUsage, f.IssueType)
	})
}

func TestParseHWError(t *testing.T) {
	t.Run("restricted dmesg is success", func(t *testing.T) {
		f := parseHWError(models.RawPayload{Success: false}, models.NodeSpec{}, noThresholds)
		require.True(t, f.Success)
	})
	t.Run("error lines present", func(t *testing.T) {
		f := parseHWError(models.RawPayload{Success: true, Output: "Hardware error: bank 4"}, models.NodeSpec{}, noThresholds)
		require.False(t, f.Success)
		require.Equal(t, models.TypeHWError, f.IssueType)
	})
}
