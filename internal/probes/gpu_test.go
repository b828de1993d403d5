package probes

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ttone18/gpu-inspector/internal/models"
)

var noThresholds = models.Thresholds{}

func TestParseGPUCount(t *testing.T) {
	t.Run("matches expected", func(t *testing.T) {
		f := parseGPUCount(models.RawPayload{Success: true, Output: "8\n"}, models.NodeSpec{}, noThresholds)
		require.True(t, f.Success)
	})
	t.Run("mismatch fails", func(t *testing.T) {
		f := parseGPUCount(models.RawPayload{Success: true, Output: "6\n"}, models.NodeSpec{}, noThresholds)
		require.False(t, f.Success)
		require.Equal(t, models.TypeGPUCount, f.IssueType)
	})
	t.Run("command failure", func(t *testing.T) {
		f := parseGPUCount(models.RawPayload{Success: false, Error: "boom"}, models.NodeSpec{}, noThresholds)
		require.False(t, f.Success)
		require.Equal(t, models.TypeSMICmdError, f.IssueType)
	})
	t.Run("unparsable output", func(t *testing.T) {
		f := parseGPUCount(models.RawPayload{Success: true, Output: "not-a-number"}, models.NodeSpec{}, noThresholds)
		require.False(t, f.Success)
		require.Equal(t, models.TypeUnknown, f.IssueType)
	})
}

func TestParseGPUTemp(t *testing.T) {
	t.Run("all cool", func(t *testing.T) {
		f := parseGPUTemp(models.RawPayload{Success: true, Output: "60\n65\n"}, models.NodeSpec{}, noThresholds)
		require.True(t, f.Success)
	})
	t.Run("warning range", func(t *testing.T) {
		f := parseGPUTemp(models.RawPayload{Success: true, Output: "82\n"}, models.NodeSpec{}, noThresholds)
		require.False(t, f.Success)
		require.Equal(t, models.TypeGPUTemp, f.IssueType)
	})
	t.Run("critical range wins over warning", func(t *testing.T) {
		f := parseGPUTemp(models.RawPayload{Success: true, Output: "82\n90\n"}, models.NodeSpec{}, noThresholds)
		require.False(t, f.Success)
		require.Equal(t, models.TypeGPUHighTemp, f.IssueType)
	})
}

func TestParseXID(t *testing.T) {
	t.Run("command unavailable is success", func(t *testing.T) {
		f := parseXID(models.RawPayload{Success: false}, models.NodeSpec{}, noThresholds)
		require.True(t, f.Success)
	})
	t.Run("empty output is success", func(t *testing.T) {
		f := parseXID(models.RawPayload{Success: true, Output: "  \n"}, models.NodeSpec{}, noThresholds)
		require.True(t, f.Success)
	})
	t.Run("critical xid 79", func(t *testing.T) {
		f := parseXID(models.RawPayload{Success: true, Output: "NVRM: Xid: 79: GPU has fallen off the bus"}, models.NodeSpec{}, noThresholds)
		require.False(t, f.Success)
		require.Equal(t, models.TypeXIDError, f.IssueType)
	})
	t.Run("non-critical xid is informational", func(t *testing.T) {
		f := parseXID(models.RawPayload{Success: true, Output: "NVRM: Xid: 13: Graphics Exception"}, models.NodeSpec{}, noThresholds)
		require.False(t, f.Success)
		require.Equal(t, models.TypeXIDInfo, f.IssueType)
	})
}

func TestParseNVLinkStatus(t *testing.T) {
	thresholds := models.Thresholds{"nvlink_bridge_count": 4}
	t.Run("matches", func(t *testing.T) {
		f := parseNVLinkStatus(models.RawPayload{Success: true, Output: "4"}, models.NodeSpec{}, thresholds)
		require.True(t, f.Success)
	})
	t.Run("mismatch", func(t *testing.T) {
		f := parseNVLinkStatus(models.RawPayload{Success: true, Output: "2"}, models.NodeSpec{}, thresholds)
		require.False(t, f.Success)
		require.Equal(t, models.TypeNVLinkStatus, f.IssueType)
	})
}

func TestParsePCIeStatus(t *testing.T) {
	t.Run("no degradation", func(t *testing.T) {
		f := parsePCIeStatus(models.RawPayload{Success: true, Output: ""}, models.NodeSpec{}, noThresholds)
		require.True(t, f.Success)
	})
	t.Run("degradation reported", func(t *testing.T) {
		f := parsePCIeStatus(models.RawPayload{Success: true, Output: "DEGRADED: Device 0000:01:00.0"}, models.NodeSpec{}, noThresholds)
		require.False(t, f.Success)
		require.Equal(t, models.TypePCIeStatus, f.IssueType)
	})
}

func TestParseGDRStatus(t *testing.T) {
	t.Run("module loaded", func(t *testing.T) {
		f := parseGDRStatus(models.RawPayload{Success: true, Output: "1"}, models.NodeSpec{}, noThresholds)
		require.True(t, f.Success)
	})
	t.Run("module missing", func(t *testing.T) {
		f := parseGDRStatus(models.RawPayload{Success: true, Output: "0"}, models.NodeSpec{}, noThresholds)
		require.False(t, f.Success)
		require.Equal(t, models.TypeGDRStatus, f.IssueType)
	})
}

func TestParseACSStatus(t *testing.T) {
	t.Run("clean", func(t *testing.T) {
		f := parseACSStatus(models.RawPayload{Success: true, Output: ""}, models.NodeSpec{}, noThresholds)
		require.True(t, f.Success)
	})
	t.Run("acs enabled is a fault", func(t *testing.T) {
		f := parseACSStatus(models.RawPayload{Success: true, Output: "ACSCtl: SrcValid+"}, models.NodeSpec{}, noThresholds)
		require.False(t, f.Success)
		require.Equal(t, models.TypeACSStatus, f.IssueType)
	})
}

func TestParseFabricManager(t *testing.T) {
	t.Run("absent service is success", func(t *testing.T) {
		f := parseFabricManager(models.RawPayload{Success: false}, models.NodeSpec{}, noThresholds)
		require.True(t, f.Success)
	})
	t.Run("active", func(t *testing.T) {
		f := parseFabricManager(models.RawPayload{Success: true, Output: "active\n"}, models.NodeSpec{}, noThresholds)
		require.True(t, f.Success)
	})
	t.Run("inactive", func(t *testing.T) {
		f := parseFabricManager(models.RawPayload{Success: true, Output: "inactive"}, models.NodeSpec{}, noThresholds)
		require.False(t, f.Success)
		require.Equal(t, models.TypeFabricManager, f.IssueType)
	})
}

func TestParseGPUThermalSlowdown(t *testing.T) {
	t.Run("all not active", func(t *testing.T) {
		f := parseGPUThermalSlowdown(models.RawPayload{Success: true, Output: "SW Thermal Slowdown: Not Active\nHW Thermal Slowdown: Not Active"}, models.NodeSpec{}, noThresholds)
		require.True(t, f.Success)
	})
	t.Run("one active triggers failure", func(t *testing.T) {
		f := parseGPUThermalSlowdown(models.RawPayload{Success: true, Output: "SW Thermal Slowdown: Active\nHW Thermal Slowdown: Not Active"}, models.NodeSpec{}, noThresholds)
		require.False(t, f.Success)
		require.Equal(t, models.TypeGPUThermalSlowdown, f.IssueType)
	})
}

func TestParseECCSoftError(t *testing.T) {
	t.Run("zero everywhere", func(t *testing.T) {
		f := parseECCSoftError(models.RawPayload{Success: true, Output: "0\n0\n"}, models.NodeSpec{}, noThresholds)
		require.True(t, f.Success)
	})
	t.Run("nonzero flags the GPU", func(t *testing.T) {
		f := parseECCSoftError(models.RawPayload{Success: true, Output: "0\n3\n"}, models.NodeSpec{}, noThresholds)
		require.False(t, f.Success)
		require.Equal(t, models.TypeECCSoftError, f.IssueType)
	})
}

func TestSplitNonEmptyLines(t *testing.T) {
	require.Equal(t, []string{"a", "b"}, splitNonEmptyLines("a\n\nb\n"))
	require.Nil(t, splitNonEmptyLines("   \n"))
}

func TestTruncate(t *testing.T) {
	require.Equal(t, "abc", truncate("abc", 10))
	require.Equal(t, "ab", truncate("abcdef", 2))
}
