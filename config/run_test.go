package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleRunConfig = `
platform:
  core_count: 4
  frequency_mhz: 2000
streams:
  branch:
    backend: multithread
    simulators: ["branch-two-bit"]
    descriptor_file: branch.json
heartbeat_interval_ms: 10
reap_timeout_ms: 300
phase:
  window_size: 1000
  vector_size: 8
  similarity_threshold: 0.05
`

func TestLoadRunConfigParsesKnownFields(t *testing.T) {
	cfg, err := LoadRunConfig([]byte(sampleRunConfig))
	require.NoError(t, err)
	assert.Equal(t, 4, cfg.Platform.CoreCount)
	assert.Equal(t, 2000.0, cfg.Platform.FrequencyMHz)
	require.Contains(t, cfg.Streams, "branch")
	assert.Equal(t, "multithread", cfg.Streams["branch"].Backend)
	assert.Equal(t, 1000, cfg.Phase.WindowSize)
	assert.Equal(t, 10*time.Millisecond, cfg.HeartbeatInterval())
	assert.Equal(t, 300*time.Millisecond, cfg.ReapTimeout())
}

func TestLoadRunConfigRejectsUnknownField(t *testing.T) {
	_, err := LoadRunConfig([]byte("platform:\n  core_count: 1\nbogus_key: 1\n"))
	require.Error(t, err)
}

func TestRunConfigDefaultsWhenUnset(t *testing.T) {
	var cfg RunConfig
	assert.Equal(t, 5*time.Millisecond, cfg.HeartbeatInterval())
	assert.Equal(t, 200*time.Millisecond, cfg.ReapTimeout())
	assert.Equal(t, 2*time.Second, cfg.BootSyncTimeout())
}
