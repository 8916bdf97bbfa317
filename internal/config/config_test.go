package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewDefault(t *testing.T) {
	cfg := NewDefault()
	require.Equal(t, "INFO", cfg.LogLevel)
	require.Equal(t, ":9090", cfg.MetricsAddr)
	require.Equal(t, "go-fuse", cfg.FuseImpl)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:   "valid config",
			mutate: func(c *Config) { c.ImagePath = "/tmp/x.img"; c.MountPoint = "/mnt/x" },
		},
		{
			name:    "missing image path",
			mutate:  func(c *Config) { c.MountPoint = "/mnt/x" },
			wantErr: "image_path is required",
		},
		{
			name:    "missing mount point",
			mutate:  func(c *Config) { c.ImagePath = "/tmp/x.img" },
			wantErr: "mount_point is required",
		},
		{
			name: "invalid fuse impl",
			mutate: func(c *Config) {
				c.ImagePath = "/tmp/x.img"
				c.MountPoint = "/mnt/x"
				c.FuseImpl = "ntfs"
			},
			wantErr: "invalid fuse_impl",
		},
		{
			name: "invalid log level",
			mutate: func(c *Config) {
				c.ImagePath = "/tmp/x.img"
				c.MountPoint = "/mnt/x"
				c.LogLevel = "TRACE"
			},
			wantErr: "invalid log_level",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := NewDefault()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				require.NoError(t, err)
				return
			}
			require.ErrorContains(t, err, tt.wantErr)
		})
	}
}

func TestLoadFromFile(t *testing.T) {
	configFile := filepath.Join(t.TempDir(), "config.yaml")
	content := `
image_path: /var/lib/logfs/data.img
mount_point: /mnt/logfs
gc_threshold: 128
log_level: DEBUG
metrics_addr: :9191
fuse_impl: cgofuse
`
	require.NoError(t, os.WriteFile(configFile, []byte(content), 0600))

	cfg := NewDefault()
	require.NoError(t, cfg.LoadFromFile(configFile))

	require.Equal(t, "/var/lib/logfs/data.img", cfg.ImagePath)
	require.Equal(t, "/mnt/logfs", cfg.MountPoint)
	require.Equal(t, uint32(128), cfg.GCThreshold)
	require.Equal(t, "DEBUG", cfg.LogLevel)
	require.Equal(t, ":9191", cfg.MetricsAddr)
	require.Equal(t, "cgofuse", cfg.FuseImpl)
}

func TestLoadFromFileNonExistent(t *testing.T) {
	cfg := NewDefault()
	require.Error(t, cfg.LoadFromFile("/nonexistent/config.yaml"))
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("LOGFS_IMAGE_PATH", "/data/root.img")
	t.Setenv("LOGFS_MOUNT_POINT", "/mnt/root")
	t.Setenv("LOGFS_GC_THRESHOLD", "64")
	t.Setenv("LOGFS_LOG_LEVEL", "WARN")
	t.Setenv("LOGFS_FUSE_IMPL", "cgofuse")

	cfg := NewDefault()
	require.NoError(t, cfg.LoadFromEnv())

	require.Equal(t, "/data/root.img", cfg.ImagePath)
	require.Equal(t, "/mnt/root", cfg.MountPoint)
	require.Equal(t, uint32(64), cfg.GCThreshold)
	require.Equal(t, "WARN", cfg.LogLevel)
	require.Equal(t, "cgofuse", cfg.FuseImpl)
}
