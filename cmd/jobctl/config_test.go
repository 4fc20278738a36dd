package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	t.Parallel()
	cfg, err := loadConfig("")
	require.NoError(t, err)
	assert.Empty(t, cfg.Backend)
	assert.Equal(t, "warn", cfg.LogLevel)
}

func TestLoadConfigFile(t *testing.T) {
	t.Parallel()
	p := filepath.Join(t.TempDir(), "jobctl.yaml")
	content := `backend: cgroup
device: /dev/job0
cgroup_prefix: hpcjobs
slack: 64
log_level: debug
`
	require.NoError(t, os.WriteFile(p, []byte(content), 0644))

	cfg, err := loadConfig(p)
	require.NoError(t, err)
	assert.Equal(t, "cgroup", cfg.Backend)
	assert.Equal(t, "/dev/job0", cfg.Device)
	assert.Equal(t, "hpcjobs", cfg.CgroupPrefix)
	assert.Equal(t, 64, cfg.Slack)
	assert.Equal(t, "debug", cfg.LogLevel)
}

func TestLoadConfigMissingFile(t *testing.T) {
	t.Parallel()
	_, err := loadConfig(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestLoadConfigBadYAML(t *testing.T) {
	t.Parallel()
	p := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(p, []byte("backend: [unclosed"), 0644))
	_, err := loadConfig(p)
	assert.Error(t, err)
}

func TestApplyFlags(t *testing.T) {
	t.Parallel()
	cfg := &Config{Backend: "cgroup", LogLevel: "warn"}
	cfg.applyFlags("jobdev", "/dev/job1", "", "debug")
	assert.Equal(t, "jobdev", cfg.Backend)
	assert.Equal(t, "/dev/job1", cfg.Device)
	assert.Empty(t, cfg.CgroupPrefix)
	assert.Equal(t, "debug", cfg.LogLevel)
}
