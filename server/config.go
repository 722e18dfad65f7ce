package server

import (
	"os"

	"github.com/pkg/errors"

	"github.com/logtap/logtap/services/admin"
	"github.com/logtap/logtap/services/logging"
)

// Config represents the configuration format for the logtapd binary.
type Config struct {
	Hostname string `toml:"hostname"`

	Logging logging.Config `toml:"logging"`
	Admin   admin.Config   `toml:"admin"`
}

// NewConfig returns an instance of Config with reasonable defaults.
func NewConfig() *Config {
	c := &Config{
		Hostname: "localhost",
		Logging:  logging.NewConfig(),
		Admin:    admin.NewConfig(),
	}
	if h, err := os.Hostname(); err == nil && h != "" {
		c.Hostname = h
	}
	return c
}

// Validate returns an error if the config is invalid.
func (c *Config) Validate() error {
	if c.Hostname == "" {
		return errors.New("must configure valid hostname")
	}
	if err := c.Admin.Validate(); err != nil {
		return err
	}
	return nil
}
