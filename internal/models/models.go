// Package models holds the data types shared across the inspection
// pipeline: node inventory, probe contracts, findings, and the durable
// issue record schema.
package models

import "time"

// NodeSpec identifies one inventory node and the credentials used to reach
// it. It is immutable for the lifetime of a cycle.
type NodeSpec struct {
	Host        string `yaml:"host" json:"host"`
	Hostname    string `yaml:"hostname,omitempty" json:"hostname,omitempty"`
	Port        int    `yaml:"port,omitempty" json:"port,omitempty"`
	Username    string `yaml:"username" json:"username"`
	Password    string `yaml:"password" json:"-"`
	DisplayName string `yaml:"display_name,omitempty" json:"displayName,omitempty"`
}

// DisplayHost returns the hostname if set, otherwise the bare address.
func (n NodeSpec) DisplayHost() string {
	if n.Hostname != "" {
		return n.Hostname
	}
	return n.Host
}

// EffectivePort returns the configured port, defaulting to 22.
func (n NodeSpec) EffectivePort() int {
	if n.Port == 0 {
		return 22
	}
	return n.Port
}

// TaskClass is a periodic-inspection category.
type TaskClass string

const (
	TaskClassGPU     TaskClass = "gpu"
	TaskClassSystem  TaskClass = "system"
	TaskClassNetwork TaskClass = "network"
	TaskClassStorage TaskClass = "storage"
)

// AllTaskClasses lists every task class the scheduler drives.
var AllTaskClasses = []TaskClass{TaskClassGPU, TaskClassSystem, TaskClassNetwork, TaskClassStorage}

// Profile classifies a node and maps each task class to an ordered probe list.
type Profile struct {
	Name  string
	Tasks map[TaskClass][]string
}

// ProbeNamesFor returns the probe names configured for a task class, or nil
// if the profile has none (including the unknown profile).
func (p Profile) ProbeNamesFor(task TaskClass) []string {
	if p.Tasks == nil {
		return nil
	}
	return p.Tasks[task]
}

const (
	ProfileMuxiC100         = "muxi_c100"
	ProfileNvidia4090       = "nvidia_4090"
	ProfileNvidiaDatacenter = "nvidia_datacenter"
	ProfileUnknown          = "unknown"
)

// RawPayload is the unparsed result of running one probe's command.
type RawPayload struct {
	Success bool
	Output  string
	Error   string
}

// Finding is the output of a probe parser. Exactly one of the two shapes is
// populated: a success finding names the issue-types it clears, a failure
// finding names the single issue-type it opens plus a detail string.
type Finding struct {
	Success bool

	// Populated when Success is true: issue-types this probe run covers.
	ClearedTypes []string

	// Populated when Success is false.
	IssueType string
	Extra     string
}

// NewSuccess builds a success Finding covering the given issue-types.
func NewSuccess(types ...string) Finding {
	return Finding{Success: true, ClearedTypes: types}
}

// NewFailure builds a failure Finding for a single issue-type.
func NewFailure(issueType, extra string) Finding {
	return Finding{Success: false, IssueType: issueType, Extra: extra}
}

// Priority is the alert severity label.
type Priority string

const (
	PriorityP0 Priority = "P0"
	PriorityP1 Priority = "P1"
	PriorityP2 Priority = "P2"
	PriorityP3 Priority = "P3"
)

// Group is the webhook routing bucket a priority maps to.
type Group string

const (
	GroupHardware  Group = "hardware"
	GroupSoftware  Group = "software"
	GroupAnalytics Group = "analytics"
)

// AlertMeta is one static entry in the issue-type -> priority/group/title table.
type AlertMeta struct {
	Priority Priority
	Group    Group
	Title    string
}

// IssueStatus is the lifecycle state of a durable issue record.
type IssueStatus string

const (
	StatusReported IssueStatus = "reported"
	StatusResolved IssueStatus = "resolved"
)

// IssueRecord is the durable per-(host, type) record.
type IssueRecord struct {
	Host       string
	Hostname   string
	Type       string
	Extra      string
	Status     IssueStatus
	Priority   Priority
	FirstSeen  time.Time
	LastUpdate time.Time
}

// EventLogEntry is an append-only snapshot of a reported or resolved transition.
type EventLogEntry struct {
	Host      string
	Hostname  string
	Type      string
	Detail    string
	Timestamp time.Time
}

// Thresholds is the flat, probe-consumed configuration map. Typed accessors
// apply the defaults documented in spec.md §6.
type Thresholds map[string]any

func (t Thresholds) intOr(key string, def int) int {
	v, ok := t[key]
	if !ok {
		return def
	}
	switch n := v.(type) {
	case int:
		return n
	case int64:
		return int(n)
	case float64:
		return int(n)
	}
	return def
}

func (t Thresholds) stringOr(key, def string) string {
	v, ok := t[key]
	if !ok {
		return def
	}
	if s, ok := v.(string); ok && s != "" {
		return s
	}
	return def
}

func (t Thresholds) GPUCount() int             { return t.intOr("gpu_count", 8) }
func (t Thresholds) GPUTemp() int              { return t.intOr("gpu_temp", 80) }
func (t Thresholds) GPUHighTemp() int          { return t.intOr("gpu_high_temp", 85) }
func (t Thresholds) NVLinkBridgeCount() int    { return t.intOr("nvlink_bridge_count", 4) }
func (t Thresholds) ExpectedIBDevCount() int   { return t.intOr("expected_ibdev_count", 8) }
func (t Thresholds) ExpectedIPRuleCount() int  { return t.intOr("expected_ip_rule_count", 19) }
func (t Thresholds) GPFSMountPath() string     { return t.stringOr("gpfs_mount_path", "/gpfs/pvc") }
func (t Thresholds) DiskUsagePercent() int     { return t.intOr("disk_usage_percent", 85) }
func (t Thresholds) MemoryUsagePercent() int   { return t.intOr("memory_usage_percent", 85) }
