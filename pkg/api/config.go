package api

import (
	"time"

	"github.com/marmos91/streamfs/internal/bytesize"
)

// Config configures the streaming HTTP server.
type Config struct {
	// Host is the listen address.
	// Default: 0.0.0.0
	Host string `mapstructure:"host" yaml:"host"`

	// Port is the HTTP port.
	// Default: 8080
	Port int `mapstructure:"port" validate:"omitempty,min=1,max=65535" yaml:"port"`

	// ReadHeaderTimeout bounds how long reading request headers may take.
	// Default: 10s
	ReadHeaderTimeout time.Duration `mapstructure:"read_header_timeout" yaml:"read_header_timeout"`

	// IdleTimeout is the keep-alive idle connection timeout.
	// Default: 60s
	IdleTimeout time.Duration `mapstructure:"idle_timeout" yaml:"idle_timeout"`

	// ChunkSize is the transfer chunk size for downloads and uploads.
	// Default: 64KiB
	ChunkSize bytesize.ByteSize `mapstructure:"chunk_size" yaml:"chunk_size"`

	// IdleWriteTimeout bounds a single chunk write to a stalled client.
	// Zero disables the per-chunk deadline.
	// Default: 30s
	IdleWriteTimeout time.Duration `mapstructure:"idle_write_timeout" yaml:"idle_write_timeout"`

	// MaxBytesPerSec caps the per-session outbound byte rate.
	// Zero means unlimited.
	MaxBytesPerSec bytesize.ByteSize `mapstructure:"max_bytes_per_sec" yaml:"max_bytes_per_sec"`

	// MaxUploadSize caps a single upload body. Zero means unlimited.
	MaxUploadSize bytesize.ByteSize `mapstructure:"max_upload_size" yaml:"max_upload_size"`
}

// applyDefaults fills in zero values with sensible defaults.
//
// There is deliberately no global write timeout: downloads of large
// resources run as long as the client keeps draining, bounded per chunk by
// IdleWriteTimeout instead.
func (c *Config) applyDefaults() {
	if c.Host == "" {
		c.Host = "0.0.0.0"
	}
	if c.Port <= 0 {
		c.Port = 8080
	}
	if c.ReadHeaderTimeout == 0 {
		c.ReadHeaderTimeout = 10 * time.Second
	}
	if c.IdleTimeout == 0 {
		c.IdleTimeout = 60 * time.Second
	}
	if c.ChunkSize == 0 {
		c.ChunkSize = 64 * bytesize.KiB
	}
	if c.IdleWriteTimeout == 0 {
		c.IdleWriteTimeout = 30 * time.Second
	}
}
