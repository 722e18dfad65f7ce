package admin

import (
	"github.com/pkg/errors"
)

const (
	// DefaultBindAddress is the loopback-only default for the admin channel.
	DefaultBindAddress = "127.0.0.1:11234"

	// DefaultBuffer is the default depth of the incoming packet channel.
	DefaultBuffer = 100
)

type Config struct {
	Enabled     bool   `toml:"enabled"`
	BindAddress string `toml:"bind-address"`

	// ReadBuffer is the size of the OS receive buffer, 0 leaves the OS default.
	ReadBuffer int `toml:"read-buffer"`
	// Buffer is the depth of the incoming packet channel.
	Buffer int `toml:"buffer"`
}

func NewConfig() Config {
	return Config{
		Enabled:     true,
		BindAddress: DefaultBindAddress,
		Buffer:      DefaultBuffer,
	}
}

// WithDefaults takes the given config and returns a new config with any required
// default values set.
func (c *Config) WithDefaults() *Config {
	d := *c
	if d.BindAddress == "" {
		d.BindAddress = DefaultBindAddress
	}
	if d.Buffer == 0 {
		d.Buffer = DefaultBuffer
	}
	return &d
}

func (c Config) Validate() error {
	if !c.Enabled {
		return nil
	}
	if c.BindAddress == "" {
		return errors.New("admin: bind address must be specified")
	}
	if c.ReadBuffer < 0 {
		return errors.New("admin: read buffer must not be negative")
	}
	return nil
}
