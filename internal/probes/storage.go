package probes

import (
	"fmt"
	"strings"

	"github.com/ttone18/gpu-inspector/internal/models"
)

// StorageProbes returns the storage probe family, grounded in
// checks/storage_checks.py.
func StorageProbes() []Probe {
	return []Probe{
		{Name: models.TypeGPFSStatus, Command: gpfsStatusCommand, Parse: parseGPFSStatus},
	}
}

func gpfsStatusCommand(thresholds models.Thresholds) string {
	path := thresholds.GPFSMountPath()
	return fmt.Sprintf("if [ -d '%s' ]; then echo 'mounted'; else echo 'not_mounted'; fi", path)
}

func parseGPFSStatus(payload models.RawPayload, node models.NodeSpec, thresholds models.Thresholds) models.Finding {
	path := thresholds.GPFSMountPath()
	if !payload.Success {
		return models.NewFailure(models.TypeUnknown, fmt.Sprintf("[GPFS] Command execution failed: %s", payload.Error))
	}
	output := strings.TrimSpace(payload.Output)
	switch output {
	case "not_mounted":
		return models.NewFailure(models.TypeGPFSStatus, fmt.Sprintf("GPFS directory '%s' is not mounted.", path))
	case "mounted":
		return models.NewSuccess(models.TypeGPFSStatus, models.TypeShutdown)
	default:
		return models.NewFailure(models.TypeUnknown, fmt.Sprintf("[GPFS] Unexpected output from check command: '%s'", output))
	}
}
