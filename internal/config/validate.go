package config

import (
	"errors"
	"fmt"
	"strings"
)

// Validate ensures the configuration is usable for a reconciliation run.
func (c *Config) Validate() error {
	if err := c.validateHaloLink(); err != nil {
		return err
	}
	if err := c.validateRedcap(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateHaloLink() error {
	if c.HaloLink.URL == "" {
		return errors.New("halolink.url must be set")
	}
	if !strings.HasPrefix(c.HaloLink.URL, "ws://") && !strings.HasPrefix(c.HaloLink.URL, "wss://") {
		return fmt.Errorf("halolink.url must be a websocket url, got %q", c.HaloLink.URL)
	}
	return nil
}

func (c *Config) validateRedcap() error {
	if c.Redcap.APIURL == "" {
		return errors.New("redcap.api_url must be set")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.LogFormat {
	case "console", "json":
	default:
		return fmt.Errorf("log_format must be console or json, got %q", c.LogFormat)
	}
	return nil
}
