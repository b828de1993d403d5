package probes

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/ttone18/gpu-inspector/internal/models"
)

// NetworkProbes returns the network-fabric probe family, grounded in
// checks/network_checks.py.
func NetworkProbes() []Probe {
	return []Probe{
		{Name: models.TypeRoute, Command: constCommand(routeTableScript), Parse: parseRouteStatus},
		{Name: models.TypeIBDevStatus, Command: constCommand("ibdev2netdev -v | grep -i 'link_state: down'"), Parse: parseIBDevStatus},
		{Name: models.TypeIBDevCount, Command: constCommand("ibdev2netdev | wc -l"), Parse: parseIBDevCount},
		{Name: models.TypeIPRule, Command: constCommand("ip rule list | wc -l"), Parse: parseIPRuleCount},
	}
}

const routeTableScript = `
for table in $(ip rule list | grep -i 'static' | awk '{for(i=1;i<=NF;i++) if($i=="lookup") print $(i+1)}'); do
    if [ -z "$(ip route show table $table)" ]; then
        echo "$table"
    fi
done
`

func parseRouteStatus(payload models.RawPayload, node models.NodeSpec, thresholds models.Thresholds) models.Finding {
	if !payload.Success {
		return models.NewFailure(models.TypeUnknown, fmt.Sprintf("[Route] Command execution failed: %s", payload.Error))
	}
	output := strings.TrimSpace(payload.Output)
	if output != "" {
		emptyTables := strings.Split(output, " ")
		return models.NewFailure(models.TypeRoute, fmt.Sprintf("Found empty static route tables: %s", strings.Join(emptyTables, ", ")))
	}
	return models.NewSuccess(models.TypeRoute, models.TypeIPRule, models.TypeShutdown)
}

func parseIBDevStatus(payload models.RawPayload, node models.NodeSpec, thresholds models.Thresholds) models.Finding {
	if !payload.Success {
		return models.NewFailure(models.TypeUnknown, fmt.Sprintf("[IB Status] Command execution failed: %s", payload.Error))
	}
	output := strings.TrimSpace(payload.Output)
	if output != "" {
		return models.NewFailure(models.TypeIBDevStatus, fmt.Sprintf("One or more InfiniBand devices are down: %s", output))
	}
	return models.NewSuccess(models.TypeIBDevStatus, models.TypeShutdown)
}

func parseIBDevCount(payload models.RawPayload, node models.NodeSpec, thresholds models.Thresholds) models.Finding {
	if !payload.Success {
		return models.NewFailure(models.TypeUnknown, fmt.Sprintf("[IB Count] Command execution failed: %s", payload.Error))
	}
	expected := thresholds.ExpectedIBDevCount()
	count, err := strconv.Atoi(strings.TrimSpace(payload.Output))
	if err != nil {
		return models.NewFailure(models.TypeUnknown, fmt.Sprintf("[IB Count] Failed to parse count from output: '%s'", payload.Output))
	}
	if count != expected {
		return models.NewFailure(models.TypeIBDevCount, fmt.Sprintf("Expected %d IB devices, but found %d.", expected, count))
	}
	return models.NewSuccess(models.TypeIBDevCount, models.TypeShutdown)
}

func parseIPRuleCount(payload models.RawPayload, node models.NodeSpec, thresholds models.Thresholds) models.Finding {
	if !payload.Success {
		return models.NewFailure(models.TypeUnknown, fmt.Sprintf("[IP Rule] Command execution failed: %s", payload.Error))
	}
	expected := thresholds.ExpectedIPRuleCount()
	count, err := strconv.Atoi(strings.TrimSpace(payload.Output))
	if err != nil {
		return models.NewFailure(models.TypeUnknown, fmt.Sprintf("[IP Rule] Failed to parse count from output: '%s'", payload.Output))
	}
	if count != expected {
		return models.NewFailure(models.TypeIPRule, fmt.Sprintf("Expected %d IP rules, but found %d.", expected, count))
	}
	return models.NewSuccess(models.TypeIPRule, models.TypeShutdown)
}
