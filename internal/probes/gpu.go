package probes

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/ttone18/gpu-inspector/internal/models"
)

// GPUProbes returns the NVIDIA GPU probe family, grounded in
// checks/gpu_checks.py from the original implementation.
func GPUProbes() []Probe {
	return []Probe{
		{Name: models.TypeGPUCount, Command: constCommand("nvidia-smi --query-gpu=gpu_uuid --format=csv,noheader | wc -l"), Parse: parseGPUCount},
		{Name: models.TypeGPUTemp, Command: constCommand("nvidia-smi --query-gpu=temperature.gpu --format=csv,noheader"), Parse: parseGPUTemp},
		{Name: models.TypeGPUThermalSlowdown, Command: constCommand("nvidia-smi -q | grep 'Thermal Slowdown'"), Parse: parseGPUThermalSlowdown},
		{Name: models.TypeECCSoftError, Command: constCommand("nvidia-smi --query-gpu=ecc.errors.uncorrected.volatile.total --format=csv,noheader"), Parse: parseECCSoftError},
		{Name: models.TypeXIDError, Command: constCommand("dmesg -T | grep -i xid | tail -n 20"), Parse: parseXID},
		{Name: models.TypeNVLinkStatus, Command: constCommand("lspci | grep -i 'nvidia' | grep -c 'bridge'"), Parse: parseNVLinkStatus},
		{Name: models.TypePCIeStatus, Command: constCommand(pcieLinkScript), Parse: parsePCIeStatus},
		{Name: models.TypeGDRStatus, Command: constCommand("lsmod | grep -c 'nv_peer_mem'"), Parse: parseGDRStatus},
		{Name: models.TypeACSStatus, Command: constCommand("lspci -vvv | grep ACSCtl | grep 'SrcValid+'"), Parse: parseACSStatus},
		{Name: models.TypeFabricManager, Command: constCommand("systemctl is-active nvidia-fabricmanager.service"), Parse: parseFabricManager},
	}
}

const pcieLinkScript = `
for dev_pci_addr in $(ibdev2netdev -v | grep 'ConnectX-7' | awk '{print $1}'); do
  status=$(lspci -vv -s "$dev_pci_addr" | grep 'LnkSta:');
  capability=$(lspci -vv -s "$dev_pci_addr" | grep 'LnkCap:');
  status_speed=$(echo "$status" | awk -F',|:' '{print $2}' | sed 's/Speed //g;s/GT.*//g' | xargs);
  status_width=$(echo "$status" | awk -F',|:' '{print $3}' | sed 's/Width //g' | xargs);
  cap_speed=$(echo "$capability" | awk -F',|:' '{print $2}' | sed 's/Speed //g;s/GT.*//g' | xargs);
  cap_width=$(echo "$capability" | awk -F',|:' '{print $3}' | sed 's/Width //g' | xargs);
  if [ $(echo "$status_speed < $cap_speed" | bc) -ne 0 ] || [ "$status_width" != "$cap_width" ]; then
    echo "DEGRADED: Device $dev_pci_addr. Capability:[$capability], Current Status:[$status]";
  fi
done
`

func parseGPUCount(payload models.RawPayload, node models.NodeSpec, thresholds models.Thresholds) models.Finding {
	if !payload.Success {
		return models.NewFailure(models.TypeSMICmdError, fmt.Sprintf("Command to get GPU count failed: %s", payload.Error))
	}
	expected := thresholds.GPUCount()
	count, err := strconv.Atoi(strings.TrimSpace(payload.Output))
	if err != nil {
		return models.NewFailure(models.TypeUnknown, fmt.Sprintf("Could not parse GPU count from output: '%s'", payload.Output))
	}
	if count != expected {
		return models.NewFailure(models.TypeGPUCount, fmt.Sprintf("Expected %d GPUs, but found %d.", expected, count))
	}
	return models.NewSuccess(models.TypeGPUCount, models.TypeSMICmdError)
}

func parseGPUTemp(payload models.RawPayload, node models.NodeSpec, thresholds models.Thresholds) models.Finding {
	if !payload.Success {
		return models.NewFailure(models.TypeSMICmdError, fmt.Sprintf("Command to get GPU temperature failed: %s", payload.Error))
	}
	warnThreshold := thresholds.GPUTemp()
	highThreshold := thresholds.GPUHighTemp()

	var highTemps, warnTemps []string
	for i, line := range splitNonEmptyLines(payload.Output) {
		temp, err := strconv.Atoi(strings.TrimSpace(line))
		if err != nil {
			return models.NewFailure(models.TypeUnknown, fmt.Sprintf("Failed to parse GPU temperature output. Error: %v. Output: '%s'", err, truncate(payload.Output, 100)))
		}
		switch {
		case temp > highThreshold:
			highTemps = append(highTemps, fmt.Sprintf("GPU-%d at %dC", i, temp))
		case temp > warnThreshold:
			warnTemps = append(warnTemps, fmt.Sprintf("GPU-%d at %dC", i, temp))
		}
	}
	if len(highTemps) > 0 {
		return models.NewFailure(models.TypeGPUHighTemp, fmt.Sprintf("Critical temperature detected: %s", strings.Join(highTemps, "; ")))
	}
	if len(warnTemps) > 0 {
		return models.NewFailure(models.TypeGPUTemp, fmt.Sprintf("Warning temperature detected: %s", strings.Join(warnTemps, "; ")))
	}
	return models.NewSuccess(models.TypeGPUHighTemp, models.TypeGPUTemp, models.TypeSMICmdError)
}

func parseXID(payload models.RawPayload, node models.NodeSpec, thresholds models.Thresholds) models.Finding {
	if !payload.Success {
		// dmesg access is frequently restricted; absence of the command is not
		// itself a fault, mirroring the original's debug-and-clear behavior.
		return models.NewSuccess(models.TypeXIDError, models.TypeXIDInfo)
	}
	output := payload.Output
	if strings.TrimSpace(output) == "" {
		return models.NewSuccess(models.TypeXIDError, models.TypeXIDInfo)
	}
	if strings.Contains(output, "Xid: 79") {
		return models.NewFailure(models.TypeXIDError, fmt.Sprintf("Critical XID error found. Recent logs: %s", output))
	}
	return models.NewFailure(models.TypeXIDInfo, fmt.Sprintf("Non-critical XID error found (P3). Recent logs: %s", output))
}

func parseECCSoftError(payload models.RawPayload, node models.NodeSpec, thresholds models.Thresholds) models.Finding {
	return parseNumericListThreshold(payload, models.TypeECCSoftError, 0, "ECC Soft Uncorr")
}

func parseNVLinkStatus(payload models.RawPayload, node models.NodeSpec, thresholds models.Thresholds) models.Finding {
	if !payload.Success {
		return models.NewFailure(models.TypeUnknown, fmt.Sprintf("[NVLink] Command execution failed: %s", payload.Error))
	}
	expected := thresholds.NVLinkBridgeCount()
	count, err := strconv.Atoi(strings.TrimSpace(payload.Output))
	if err != nil {
		return models.NewFailure(models.TypeUnknown, fmt.Sprintf("[NVLink] Could not parse bridge count from output: '%s'", payload.Output))
	}
	if count != expected {
		return models.NewFailure(models.TypeNVLinkStatus, fmt.Sprintf("Expected %d NVIDIA bridges, but found %d.", expected, count))
	}
	return models.NewSuccess(models.TypeNVLinkStatus)
}

func parsePCIeStatus(payload models.RawPayload, node models.NodeSpec, thresholds models.Thresholds) models.Finding {
	if !payload.Success {
		return models.NewFailure(models.TypeUnknown, fmt.Sprintf("[PCIe] Command execution failed: %s", payload.Error))
	}
	if strings.TrimSpace(payload.Output) != "" {
		return models.NewFailure(models.TypePCIeStatus, fmt.Sprintf("PCIe link degradation detected: %s", payload.Output))
	}
	return models.NewSuccess(models.TypePCIeStatus)
}

func parseGDRStatus(payload models.RawPayload, node models.NodeSpec, thresholds models.Thresholds) models.Finding {
	if !payload.Success {
		return models.NewFailure(models.TypeUnknown, fmt.Sprintf("[GDR] Command execution failed: %s", payload.Error))
	}
	count, err := strconv.Atoi(strings.TrimSpace(payload.Output))
	if err != nil {
		return models.NewFailure(models.TypeUnknown, fmt.Sprintf("[GDR] Could not parse lsmod output: '%s'", payload.Output))
	}
	if count == 0 {
		return models.NewFailure(models.TypeGDRStatus, "GPUDirect RDMA module (nv_peer_mem) is not loaded.")
	}
	return models.NewSuccess(models.TypeGDRStatus)
}

func parseACSStatus(payload models.RawPayload, node models.NodeSpec, thresholds models.Thresholds) models.Finding {
	if !payload.Success {
		return models.NewFailure(models.TypeUnknown, fmt.Sprintf("[ACS] Command execution failed: %s", payload.Error))
	}
	if strings.TrimSpace(payload.Output) != "" {
		return models.NewFailure(models.TypeACSStatus, fmt.Sprintf("ACS validation is improperly enabled on one or more devices: %s", payload.Output))
	}
	return models.NewSuccess(models.TypeACSStatus)
}

func parseFabricManager(payload models.RawPayload, node models.NodeSpec, thresholds models.Thresholds) models.Finding {
	if !payload.Success {
		// Fabric Manager is only present on NVLink-switched systems; its
		// absence is expected on many nodes.
		return models.NewSuccess(models.TypeFabricManager)
	}
	output := strings.TrimSpace(payload.Output)
	if output != "active" {
		return models.NewFailure(models.TypeFabricManager, fmt.Sprintf("NVIDIA Fabric Manager service is not active. Current state: %s.", output))
	}
	return models.NewSuccess(models.TypeFabricManager)
}

func parseGPUThermalSlowdown(payload models.RawPayload, node models.NodeSpec, thresholds models.Thresholds) models.Finding {
	if !payload.Success {
		return models.NewFailure(models.TypeSMICmdError, fmt.Sprintf("[Thermal] Command execution failed: %s", payload.Error))
	}
	var problematic []string
	for _, line := range splitNonEmptyLines(payload.Output) {
		if !strings.Contains(line, "Not Active") {
			problematic = append(problematic, strings.TrimSpace(line))
		}
	}
	if len(problematic) > 0 {
		return models.NewFailure(models.TypeGPUThermalSlowdown, fmt.Sprintf("GPU Thermal Slowdown detected: %s", strings.Join(problematic, "; ")))
	}
	return models.NewSuccess(models.TypeGPUThermalSlowdown)
}

// parseNumericListThreshold applies the shared "one integer per line, flag
// any value over threshold" pattern used by several GPU probes.
func parseNumericListThreshold(payload models.RawPayload, issueType string, threshold int, checkName string) models.Finding {
	if !payload.Success {
		return models.NewFailure(models.TypeSMICmdError, fmt.Sprintf("[%s] Command execution failed: %s", checkName, payload.Error))
	}
	var problematic []string
	for i, line := range splitNonEmptyLines(payload.Output) {
		value, err := strconv.Atoi(strings.TrimSpace(line))
		if err != nil {
			return models.NewFailure(models.TypeUnknown, fmt.Sprintf("[%s] Failed to parse output. Error: %v. Output: '%s'", checkName, err, truncate(payload.Output, 100)))
		}
		if value > threshold {
			problematic = append(problematic, fmt.Sprintf("GPU-%d value is %d", i, value))
		}
	}
	if len(problematic) > 0 {
		return models.NewFailure(issueType, fmt.Sprintf("[%s] Found %d GPU(s) over threshold > %d. Details: %s", checkName, len(problematic), threshold, strings.Join(problematic, "; ")))
	}
	return models.NewSuccess(issueType, models.TypeSMICmdError)
}

func splitNonEmptyLines(s string) []string {
	var out []string
	for _, line := range strings.Split(strings.TrimSpace(s), "\n") {
		if line == "" {
			continue
		}
		out = append(out, line)
	}
	return out
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
