package config

import (
	"bytes"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/snippits/govpmu/vpmuerr"
)

// StreamConfig configures one Stream<T>: its back-end choice and the
// simulator descriptors it builds (see SimDescriptor).
type StreamConfig struct {
	Backend        string   `yaml:"backend"` // "single", "multithread", or "multiprocess"
	Simulators     []string `yaml:"simulators"`
	DescriptorFile string   `yaml:"descriptor_file"`
}

// RunConfig is the top-level YAML run configuration: platform info,
// per-stream backend choice, and the knobs spec.md §5/§9 name
// (heartbeat timeout, boot-sync timeout, phase window/threshold).
type RunConfig struct {
	Platform struct {
		CoreCount    int     `yaml:"core_count"`
		FrequencyMHz float64 `yaml:"frequency_mhz"`
	} `yaml:"platform"`

	Streams map[string]StreamConfig `yaml:"streams"`

	HeartbeatIntervalMS int `yaml:"heartbeat_interval_ms"`
	ReapTimeoutMS       int `yaml:"reap_timeout_ms"`
	BootSyncTimeoutMS   int `yaml:"boot_sync_timeout_ms"`

	Phase struct {
		WindowSize int     `yaml:"window_size"`
		VectorSize int     `yaml:"vector_size"`
		Threshold  float64 `yaml:"similarity_threshold"`
	} `yaml:"phase"`
}

// HeartbeatInterval returns the configured heartbeat cadence, defaulting
// to 5ms when unset.
func (c RunConfig) HeartbeatInterval() time.Duration {
	if c.HeartbeatIntervalMS <= 0 {
		return 5 * time.Millisecond
	}
	return time.Duration(c.HeartbeatIntervalMS) * time.Millisecond
}

// ReapTimeout returns the configured reaper grace period, defaulting
// to 200ms when unset.
func (c RunConfig) ReapTimeout() time.Duration {
	if c.ReapTimeoutMS <= 0 {
		return 200 * time.Millisecond
	}
	return time.Duration(c.ReapTimeoutMS) * time.Millisecond
}

// BootSyncTimeout returns the configured boot-sync deadline, defaulting
// to 2s when unset.
func (c RunConfig) BootSyncTimeout() time.Duration {
	if c.BootSyncTimeoutMS <= 0 {
		return 2 * time.Second
	}
	return time.Duration(c.BootSyncTimeoutMS) * time.Millisecond
}

// LoadRunConfig parses a top-level YAML run configuration with strict
// field checking (KnownFields(true)), matching the teacher's
// defaults.yaml loader: typos in the config file are a ConfigError,
// not silently ignored.
func LoadRunConfig(data []byte) (RunConfig, error) {
	var cfg RunConfig
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&cfg); err != nil {
		return RunConfig{}, vpmuerr.Config("run config", err)
	}
	return cfg, nil
}

// LoadRunConfigFile reads path and parses it as a RunConfig.
func LoadRunConfigFile(path string) (RunConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return RunConfig{}, vpmuerr.Resource("read run config file "+path, err)
	}
	return LoadRunConfig(data)
}
