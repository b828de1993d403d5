package probes

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/ttone18/gpu-inspector/internal/models"
)

// MuxiProbes returns the Muxi-vendor GPU probe family used by the
// muxi_c100 profile, grounded in checks/muxi_checks.py.
func MuxiProbes() []Probe {
	return []Probe{
		{Name: models.TypeMuxiGPUCount, Command: constCommand("mxgpu-smi -L | wc -l"), Parse: parseMuxiGPUCount},
		{Name: models.TypeMuxiGPUTemp, Command: constCommand("mxgpu-smi --query-gpu=temperature.gpu --format=csv,noheader"), Parse: parseMuxiGPUTemp},
		{Name: models.TypeMuxiECCState, Command: constCommand("mxgpu-smi -q -d ECC"), Parse: parseMuxiECCState},
		{Name: models.TypeMuxiPCIeStatus, Command: constCommand("mxgpu-smi --query-gpu=pci.link.gen.current,pci.link.gen.max,pci.link.width.current,pci.link.width.max --format=csv,noheader"), Parse: parseMuxiPCIeStatus},
		{Name: models.TypeMuxiThermalStatus, Command: constCommand("mxgpu-smi -q -d PERFORMANCE"), Parse: parseMuxiThermalStatus},
		{Name: models.TypeMuxiMetaXLinkStatus, Command: constCommand("mxgpu-smi metaxlink -s"), Parse: parseMuxiMetaXLinkStatus},
	}
}

const muxiGPUCountExpected = 8
const muxiGPUTempThreshold = 85

func parseMuxiGPUCount(payload models.RawPayload, node models.NodeSpec, thresholds models.Thresholds) models.Finding {
	if !payload.Success {
		return models.NewFailure(models.TypeMuxiSMICmdError, fmt.Sprintf("Command to get Muxi GPU count failed: %s", payload.Error))
	}
	count, err := strconv.Atoi(strings.TrimSpace(payload.Output))
	if err != nil {
		return models.NewFailure(models.TypeUnknown, fmt.Sprintf("Could not parse Muxi GPU count from output: '%s'", payload.Output))
	}
	if count != muxiGPUCountExpected {
		return models.NewFailure(models.TypeMuxiGPUCount, fmt.Sprintf("Expected %d Muxi GPUs, but found %d.", muxiGPUCountExpected, count))
	}
	return models.NewSuccess(models.TypeMuxiGPUCount, models.TypeMuxiSMICmdError)
}

func parseMuxiGPUTemp(payload models.RawPayload, node models.NodeSpec, thresholds models.Thresholds) models.Finding {
	if !payload.Success {
		return models.NewFailure(models.TypeMuxiSMICmdError, fmt.Sprintf("Command to get Muxi GPU temperature failed: %s", payload.Error))
	}
	var problematic []string
	for i, field := range strings.Fields(payload.Output) {
		temp, err := strconv.Atoi(strings.TrimSpace(field))
		if err != nil {
			return models.NewFailure(models.TypeUnknown, fmt.Sprintf("Failed to parse Muxi GPU temperature. Error: %v. Output: '%s'", err, truncate(payload.Output, 100)))
		}
		if temp > muxiGPUTempThreshold {
			problematic = append(problematic, fmt.Sprintf("GPU-%d at %dC", i, temp))
		}
	}
	if len(problematic) > 0 {
		return models.NewFailure(models.TypeMuxiGPUTemp, fmt.Sprintf("Muxi GPU temperature over %dC: %s", muxiGPUTempThreshold, strings.Join(problematic, "; ")))
	}
	return models.NewSuccess(models.TypeMuxiGPUTemp, models.TypeMuxiSMICmdError)
}

func parseMuxiECCState(payload models.RawPayload, node models.NodeSpec, thresholds models.Thresholds) models.Finding {
	if !payload.Success {
		return models.NewFailure(models.TypeMuxiSMICmdError, fmt.Sprintf("Command for Muxi ECC state failed: %s", payload.Error))
	}
	var errorsFound []string
	for _, line := range strings.Split(payload.Output, "\n") {
		if strings.Contains(line, "Errors") && !strings.Contains(line, " 0") {
			errorsFound = append(errorsFound, strings.TrimSpace(line))
		}
	}
	if len(errorsFound) > 0 {
		return models.NewFailure(models.TypeMuxiECCState, fmt.Sprintf("Muxi ECC errors detected: %s", strings.Join(errorsFound, "; ")))
	}
	return models.NewSuccess(models.TypeMuxiECCState)
}

func parseMuxiPCIeStatus(payload models.RawPayload, node models.NodeSpec, thresholds models.Thresholds) models.Finding {
	if !payload.Success {
		return models.NewFailure(models.TypeMuxiSMICmdError, fmt.Sprintf("[PCIe] Command execution failed: %s", payload.Error))
	}
	var degraded []string
	for i, field := range strings.Fields(payload.Output) {
		parts := strings.Split(field, ",")
		if len(parts) < 4 {
			continue
		}
		genCurr, err1 := strconv.Atoi(strings.TrimSpace(parts[0]))
		genMax, err2 := strconv.Atoi(strings.TrimSpace(parts[1]))
		widthCurr, err3 := strconv.Atoi(strings.TrimSpace(parts[2]))
		widthMax, err4 := strconv.Atoi(strings.TrimSpace(parts[3]))
		if err1 != nil || err2 != nil || err3 != nil || err4 != nil {
			return models.NewFailure(models.TypeUnknown, fmt.Sprintf("[PCIe] Failed to parse Muxi PCIe status. Output: '%s'", truncate(payload.Output, 100)))
		}
		if genCurr < genMax || widthCurr < widthMax {
			degraded = append(degraded, fmt.Sprintf("GPU-%d degraded (Gen:%d/%d, Width:x%d/x%d)", i, genCurr, genMax, widthCurr, widthMax))
		}
	}
	if len(degraded) > 0 {
		return models.NewFailure(models.TypeMuxiPCIeStatus, fmt.Sprintf("Muxi PCIe link degradation detected: %s", strings.Join(degraded, "; ")))
	}
	return models.NewSuccess(models.TypeMuxiPCIeStatus)
}

func parseMuxiThermalStatus(payload models.RawPayload, node models.NodeSpec, thresholds models.Thresholds) models.Finding {
	if !payload.Success {
		return models.NewFailure(models.TypeMuxiSMICmdError, fmt.Sprintf("[Thermal] Command execution failed: %s", payload.Error))
	}
	var throttling []string
	for _, line := range strings.Split(payload.Output, "\n") {
		if (strings.Contains(line, "Throttle") || strings.Contains(line, "Slowdown")) &&
			!strings.Contains(line, "Not Active") && !strings.Contains(line, "None") {
			throttling = append(throttling, strings.TrimSpace(line))
		}
	}
	if len(throttling) > 0 {
		return models.NewFailure(models.TypeMuxiThermalStatus, fmt.Sprintf("Muxi GPU Thermal Slowdown detected: %s", strings.Join(throttling, "; ")))
	}
	return models.NewSuccess(models.TypeMuxiThermalStatus)
}

func parseMuxiMetaXLinkStatus(payload models.RawPayload, node models.NodeSpec, thresholds models.Thresholds) models.Finding {
	if !payload.Success {
		return models.NewFailure(models.TypeMuxiSMICmdError, fmt.Sprintf("[MetaXLink] Command execution failed: %s", payload.Error))
	}
	var inactive []string
	for _, field := range strings.Fields(payload.Output) {
		if strings.Contains(field, "Link") && !strings.Contains(field, "Active") && !strings.Contains(field, "UP") {
			inactive = append(inactive, strings.TrimSpace(field))
		}
	}
	if len(inactive) > 0 {
		return models.NewFailure(models.TypeMuxiMetaXLinkStatus, fmt.Sprintf("Muxi MetaXLink inactive links found: %s", strings.Join(inactive, "; ")))
	}
	return models.NewSuccess(models.TypeMuxiMetaXLinkStatus)
}
