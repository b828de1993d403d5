package models

// Issue-type constants. Dotted names identify the probe family the type
// belongs to; values are stable and persisted in the state store, so they
// must never be renamed once shipped.
const (
	TypeUnknown = "unknown"

	// System
	TypeSSH          = "system.ssh"
	TypeShutdown     = "system.shutdown"
	TypeDiskUsage    = "system.disk_usage"
	TypeMemoryUsage  = "system.memory_usage"
	TypeHWError      = "system.hw_error"

	// Network
	TypeRoute       = "network.route"
	TypeIBDevStatus = "network.ib_device_status"
	TypeIBDevCount  = "network.ib_device_count"
	TypeIPRule      = "network.ip_rule"

	// GPU (NVIDIA)
	TypeGPUCount           = "gpu.count"
	TypeGPUTemp            = "gpu.temperature"
	TypeGPUHighTemp        = "gpu.high_temp"
	TypeGPUThermalSlowdown = "gpu.thermal_slowdown"
	TypeECCSoftError       = "gpu.ecc_soft_error"
	TypeXIDError           = "gpu.xid_error"
	TypeXIDInfo            = "gpu.xid_info"
	TypeNVLinkStatus       = "gpu.nvlink_status"
	TypePCIeStatus         = "gpu.pcie_status"
	TypeGDRStatus          = "gpu.gdr_status"
	TypeACSStatus          = "gpu.acs_status"
	TypeFabricManager      = "gpu.fabric_manager_status"
	TypeSMICmdError        = "gpu.smi_cmd_error"

	// Storage
	TypeGPFSStatus = "storage.gpfs"

	// GPU (Muxi)
	TypeMuxiSMICmdError     = "gpu.muxi.smi_cmd_error"
	TypeMuxiGPUCount        = "gpu.muxi.count"
	TypeMuxiGPUTemp         = "gpu.muxi.temperature"
	TypeMuxiECCState        = "gpu.muxi.ecc_state"
	TypeMuxiPCIeStatus      = "gpu.muxi.pcie_status"
	TypeMuxiThermalStatus   = "gpu.muxi.thermal_status"
	TypeMuxiMetaXLinkStatus = "network.muxi.metaxlink_status"
)

// DefaultAlertMetadata is the static issue-type -> priority/group/title
// table. Probes never name priorities or groups; they only name types.
var DefaultAlertMetadata = map[string]AlertMeta{
	// P1 / hardware
	TypeSSH:             {PriorityP1, GroupHardware, "Node SSH login failed"},
	TypeIBDevStatus:     {PriorityP1, GroupHardware, "Node network port is down"},
	TypeGPUCount:        {PriorityP1, GroupHardware, "Node GPU count mismatch"},
	TypeECCSoftError:    {PriorityP1, GroupHardware, "Node GPU reported an ECC error"},
	TypeSMICmdError:     {PriorityP1, GroupHardware, "Node nvidia-smi command hung or failed"},
	TypeIBDevCount:      {PriorityP1, GroupHardware, "Node IB device count check failed"},
	TypeGPUHighTemp:     {PriorityP1, GroupHardware, "Node GPU temperature critical (>85C)"},
	TypeXIDError:        {PriorityP1, GroupHardware, "Node reported a critical XID error (e.g. XID 79)"},
	TypeShutdown:        {PriorityP1, GroupHardware, "Node instance unreachable (no ping)"},
	TypeHWError:         {PriorityP1, GroupHardware, "Node hardware error detected"},
	TypeNVLinkStatus:    {PriorityP1, GroupHardware, "Node NVLink status abnormal"},
	TypeMuxiPCIeStatus:  {PriorityP1, GroupHardware, "Node Muxi GPU PCIe link degraded"},

	// P2 / software
	TypePCIeStatus:        {PriorityP2, GroupSoftware, "Node network card PCIe link degraded"},
	TypeDiskUsage:         {PriorityP2, GroupSoftware, "Node disk usage at or above threshold"},
	TypeMemoryUsage:       {PriorityP2, GroupSoftware, "Node memory usage at or above threshold"},
	TypeGPUTemp:           {PriorityP2, GroupSoftware, "Node GPU temperature elevated (80C-85C)"},
	TypeACSStatus:         {PriorityP2, GroupSoftware, "Node PCIe ACS state abnormal"},
	TypeFabricManager:     {PriorityP2, GroupSoftware, "Node Fabric Manager service abnormal"},
	TypeGDRStatus:         {PriorityP2, GroupSoftware, "Node GPUDirect RDMA (GDR) abnormal"},
	TypeGPFSStatus:        {PriorityP2, GroupSoftware, "Node GPFS mount abnormal"},
	TypeRoute:             {PriorityP2, GroupSoftware, "Node route table abnormal"},
	TypeUnknown:           {PriorityP2, GroupSoftware, "Unknown check error"},
	TypeMuxiSMICmdError:   {PriorityP2, GroupSoftware, "Node mxgpu-smi command hung or failed"},
	TypeMuxiGPUCount:      {PriorityP2, GroupSoftware, "Node Muxi GPU count mismatch"},
	TypeMuxiGPUTemp:       {PriorityP2, GroupSoftware, "Node Muxi GPU temperature elevated"},
	TypeMuxiECCState:      {PriorityP2, GroupSoftware, "Node Muxi GPU reported an ECC error"},
	TypeMuxiMetaXLinkStatus: {PriorityP2, GroupSoftware, "Node Muxi MetaXLink status abnormal"},

	// P3 / analytics
	TypeGPUThermalSlowdown: {PriorityP3, GroupAnalytics, "Node GPU throttling observed (record only)"},
	TypeXIDInfo:            {PriorityP3, GroupAnalytics, "Node reported a non-critical XID error (record only)"},
	TypeIPRule:             {PriorityP3, GroupAnalytics, "Node IP rule check abnormal (record only)"},
	TypeMuxiThermalStatus:  {PriorityP3, GroupAnalytics, "Node Muxi GPU overheating observed (record only)"},
}

// Lookup returns the metadata for an issue-type, or the documented P2/software
// default when the type is absent from the table. The default is never used
// to silently drop a finding.
func Lookup(table map[string]AlertMeta, issueType string) AlertMeta {
	if meta, ok := table[issueType]; ok {
		return meta
	}
	return AlertMeta{Priority: PriorityP2, Group: GroupSoftware, Title: "Unclassified check failure"}
}
