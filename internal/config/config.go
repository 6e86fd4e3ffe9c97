// Package config holds the static and dynamic configuration consumed by the
// slot manager and its collaborators.
package config

import (
	"fmt"
	"os"

	"github.com/goccy/go-json"
	"gopkg.in/yaml.v3"
)

// LocationConfig describes a single configured slot location (a filesystem
// mountpoint used to back job sandboxes).
type LocationConfig struct {
	Path       string `name:"path" json:"path" yaml:"path" description:"Filesystem path backing this location."`
	MediumName string `name:"medium-name" json:"medium_name" yaml:"medium_name" description:"Name of the storage medium resolved via InitMedia."`
	DiskLimit  int64  `name:"disk-limit" json:"disk_limit" yaml:"disk_limit" description:"Maximum number of bytes this location may use."`
}

// NumaNodeConfig describes one NUMA node available on the host.
type NumaNodeConfig struct {
	Id       int64   `name:"id" json:"id" yaml:"id"`
	CpuSet   string  `name:"cpu-set" json:"cpu_set" yaml:"cpu_set" description:"Opaque CPU set descriptor, e.g. a cpuset(7) string."`
	CpuCount float64 `name:"cpu-count" json:"cpu_count" yaml:"cpu_count"`
}

// TestingOptions bundles configuration knobs that only matter in test harnesses.
type TestingOptions struct {
	SkipJobProxyUnavailableAlert bool `name:"testing.skip-job-proxy-unavailable-alert" json:"skip_job_proxy_unavailable_alert" yaml:"skip_job_proxy_unavailable_alert"`
}

// SlotManagerConfig is the static configuration used to construct a slot
// manager. Fields marked dynamic below are also present in DynamicConfig and
// are refreshed via OnDynamicConfigChanged without requiring a restart.
type SlotManagerConfig struct {
	SlotCount          int              `name:"slot-count" json:"slot_count" yaml:"slot_count" description:"Total number of execution slots on this node."`
	Locations          []LocationConfig `name:"locations" json:"locations" yaml:"locations"`
	JobEnvironment     string           `name:"job-environment" json:"job_environment" yaml:"job_environment" description:"One of 'process' or 'container'."`
	EnableTmpfs        bool             `name:"enable-tmpfs" json:"enable_tmpfs" yaml:"enable_tmpfs"`
	NumaNodes          []NumaNodeConfig `name:"numa-nodes" json:"numa_nodes" yaml:"numa_nodes"`
	DefaultMediumName  string           `name:"default-medium-name" json:"default_medium_name" yaml:"default_medium_name"`
	TotalCpu           float64          `name:"total-cpu" json:"total_cpu" yaml:"total_cpu" description:"Total CPU (in cores) this node's job environment is told to manage."`
	NodeTagPrefix      string           `name:"node-tag-prefix" json:"node_tag_prefix" yaml:"node_tag_prefix" description:"Prefix used when deriving the diagnostic node tag."`
	RpcPort            int              `name:"rpc-port" json:"rpc_port" yaml:"rpc_port"`
	PrometheusPort     int              `name:"prometheus-port" json:"prometheus_port" yaml:"prometheus_port" description:"Port on which to serve Prometheus metrics. 0 disables the HTTP server."`

	MaxConsecutiveJobAborts      int `name:"max-consecutive-job-aborts" json:"max_consecutive_job_aborts" yaml:"max_consecutive_job_aborts"`
	MaxConsecutiveGpuJobFailures int `name:"max-consecutive-gpu-job-failures" json:"max_consecutive_gpu_job_failures" yaml:"max_consecutive_gpu_job_failures"`
	// DisableJobsTimeoutSeconds is the base recovery delay; the auto-reset adds a uniform random jitter in [0, this delay).
	DisableJobsTimeoutSeconds int `name:"disable-jobs-timeout-seconds" json:"disable_jobs_timeout_seconds" yaml:"disable_jobs_timeout_seconds"`

	// ⟳dynamic defaults; overridden at runtime by DynamicConfig when present.
	DisableJobsOnGpuCheckFailure bool    `name:"disable-jobs-on-gpu-check-failure" json:"disable_jobs_on_gpu_check_failure" yaml:"disable_jobs_on_gpu_check_failure"`
	IdleCpuFraction              float64 `name:"idle-cpu-fraction" json:"idle_cpu_fraction" yaml:"idle_cpu_fraction"`
	EnableNumaNodeScheduling     bool    `name:"enable-numa-node-scheduling" json:"enable_numa_node_scheduling" yaml:"enable_numa_node_scheduling"`

	Testing TestingOptions `name:"testing" json:"testing" yaml:"testing"`
}

// PrettyString renders the configuration as indented JSON, matching the
// CommonOptions.PrettyString convention used elsewhere in this codebase.
func (c *SlotManagerConfig) PrettyString(indentSize int) string {
	indentBuilder := make([]byte, indentSize)
	for i := range indentBuilder {
		indentBuilder[i] = ' '
	}

	m, err := json.MarshalIndent(c, "", string(indentBuilder))
	if err != nil {
		panic(err)
	}

	return string(m)
}

// Clone returns a shallow copy of the configuration suitable for handing to
// a collaborator that should not observe later mutations of the original.
func (c *SlotManagerConfig) Clone() *SlotManagerConfig {
	clone := *c
	clone.Locations = append([]LocationConfig(nil), c.Locations...)
	clone.NumaNodes = append([]NumaNodeConfig(nil), c.NumaNodes...)
	return &clone
}

// DynamicConfig holds the subset of SlotManagerConfig that may change while
// the manager is running. It is published and loaded atomically (see
// slotmanager.Manager.OnDynamicConfigChanged).
type DynamicConfig struct {
	DisableJobsOnGpuCheckFailure *bool
	IdleCpuFraction              *float64
	EnableNumaNodeScheduling     *bool
}

// Resolve returns the effective value for each ⟳dynamic field, preferring
// the dynamic override when present and falling back to the static config.
func (d *DynamicConfig) Resolve(static *SlotManagerConfig) (disableOnGpuCheckFailure bool, idleCpuFraction float64, enableNuma bool) {
	disableOnGpuCheckFailure = static.DisableJobsOnGpuCheckFailure
	idleCpuFraction = static.IdleCpuFraction
	enableNuma = static.EnableNumaNodeScheduling

	if d == nil {
		return
	}

	if d.DisableJobsOnGpuCheckFailure != nil {
		disableOnGpuCheckFailure = *d.DisableJobsOnGpuCheckFailure
	}
	if d.IdleCpuFraction != nil {
		idleCpuFraction = *d.IdleCpuFraction
	}
	if d.EnableNumaNodeScheduling != nil {
		enableNuma = *d.EnableNumaNodeScheduling
	}

	return
}

// Load reads a SlotManagerConfig from a YAML file on disk.
func Load(path string) (*SlotManagerConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("could not read slot manager config from %q: %w", path, err)
	}

	cfg := &SlotManagerConfig{}
	if err = yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("could not parse slot manager config at %q: %w", path, err)
	}

	return cfg, nil
}
