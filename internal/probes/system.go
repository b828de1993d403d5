package probes

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/ttone18/gpu-inspector/internal/models"
)

// SystemProbes returns the OS-level probe family, grounded in
// checks/system_checks.py.
func SystemProbes() []Probe {
	return []Probe{
		{Name: models.TypeDiskUsage, Command: constCommand("df -Ph / | tail -n 1"), Parse: parseDiskUsage},
		{Name: models.TypeMemoryUsage, Command: constCommand(`free -m | awk '/^Mem:/{printf("%.0f", $3/$2 * 100)}'`), Parse: parseMemoryUsage},
		{Name: models.TypeHWError, Command: constCommand("dmesg -T | grep -i 'Hardware error' | tail -n 20"), Parse: parseHWError},
	}
}

func parseDiskUsage(payload models.RawPayload, node models.NodeSpec, thresholds models.Thresholds) models.Finding {
	if !payload.Success {
		return models.NewFailure(models.TypeUnknown, fmt.Sprintf("[Disk] Command execution failed: %s", payload.Error))
	}
	threshold := thresholds.DiskUsagePercent()
	parts := strings.Fields(payload.Output)
	if len(parts) < 5 {
		return models.NewFailure(models.TypeUnknown, fmt.Sprintf("[Disk] Failed to parse df output: '%s'", payload.Output))
	}
	pctStr := strings.TrimSuffix(parts[4], "%")
	pct, err := strconv.Atoi(pctStr)
	if err != nil {
		return models.NewFailure(models.TypeUnknown, fmt.Sprintf("[Disk] Could not parse percentage from '%s'. Error: %v", payload.Output, err))
	}
	if pct >= threshold {
		return models.NewFailure(models.TypeDiskUsage, fmt.Sprintf("Root disk usage is at %d%% (threshold >= %d%%).", pct, threshold))
	}
	return models.NewSuccess(models.TypeDiskUsage, models.TypeShutdown)
}

func parseMemoryUsage(payload models.RawPayload, node models.NodeSpec, thresholds models.Thresholds) models.Finding {
	if !payload.Success {
		return models.NewFailure(models.TypeUnknown, fmt.Sprintf("[Memory] Command execution failed: %s", payload.Error))
	}
	threshold := thresholds.MemoryUsagePercent()
	pct, err := strconv.Atoi(strings.TrimSpace(payload.Output))
	if err != nil {
		return models.NewFailure(models.TypeUnknown, fmt.Sprintf("[Memory] Could not parse percentage from `free` output: '%s'. Error: %v", payload.Output, err))
	}
	if pct >= threshold {
		return models.NewFailure(models.TypeMemoryUsage, fmt.Sprintf("Memory usage is at %d%% (threshold >= %d%%).", pct, threshold))
	}
	return models.NewSuccess(models.TypeMemoryUsage, models.TypeShutdown)
}

func parseHWError(payload models.RawPayload, node models.NodeSpec, thresholds models.Thresholds) models.Finding {
	if !payload.Success {
		// dmesg access restrictions are common and not themselves a fault.
		return models.NewSuccess(models.TypeHWError, models.TypeShutdown)
	}
	if strings.TrimSpace(payload.Output) != "" {
		return models.NewFailure(models.TypeHWError, fmt.Sprintf("Recent hardware error detected in dmesg. Last few lines: %s", payload.Output))
	}
	return models.NewSuccess(models.TypeHWError, models.TypeShutdown)
}
