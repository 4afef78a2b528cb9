package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeHaloLink()
	c.normalizeRedcap()
	c.normalizeUploader()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	if c.Paths.ReportDir, err = expandPath(c.Paths.ReportDir); err != nil {
		return fmt.Errorf("paths.report_dir: %w", err)
	}
	if c.Paths.JournalPath, err = expandPath(c.Paths.JournalPath); err != nil {
		return fmt.Errorf("paths.journal_path: %w", err)
	}
	if c.Paths.LockPath, err = expandPath(c.Paths.LockPath); err != nil {
		return fmt.Errorf("paths.lock_path: %w", err)
	}
	return nil
}

func (c *Config) normalizeHaloLink() {
	c.HaloLink.URL = strings.TrimSpace(c.HaloLink.URL)
	if c.HaloLink.AccessToken == "" {
		if value, ok := os.LookupEnv("halolink_access_token"); ok {
			c.HaloLink.AccessToken = value
		}
	}
	if strings.TrimSpace(c.HaloLink.IntermediateLabel) == "" {
		c.HaloLink.IntermediateLabel = defaultIntermediateLabel
	}
	if strings.TrimSpace(c.HaloLink.FinalLabel) == "" {
		c.HaloLink.FinalLabel = defaultFinalLabel
	}
}

func (c *Config) normalizeRedcap() {
	c.Redcap.APIURL = strings.TrimSpace(c.Redcap.APIURL)
	if c.Redcap.Token == "" {
		if value, ok := os.LookupEnv("redcap_token"); ok {
			c.Redcap.Token = value
		}
	}
	if c.Redcap.RequestsPerSecond <= 0 {
		c.Redcap.RequestsPerSecond = defaultRedcapRPS
	}
	if c.Redcap.BreakerFailures <= 0 {
		c.Redcap.BreakerFailures = defaultBreakerFailures
	}
	if c.Redcap.BreakerTimeoutSeconds <= 0 {
		c.Redcap.BreakerTimeoutSeconds = defaultBreakerTimeoutSeconds
	}
}

func (c *Config) normalizeUploader() {
	c.Uploader.URI = strings.TrimSpace(c.Uploader.URI)
	if c.Uploader.Host == "" {
		if value, ok := os.LookupEnv("uploader_host"); ok {
			c.Uploader.Host = value
		}
	}
	if c.Uploader.Port == "" {
		if value, ok := os.LookupEnv("uploader_port"); ok {
			c.Uploader.Port = value
		}
	}
	if c.Uploader.Database == "" {
		if value, ok := os.LookupEnv("uploader_database"); ok {
			c.Uploader.Database = value
		}
	}
	if c.Uploader.TimeoutSeconds <= 0 {
		c.Uploader.TimeoutSeconds = defaultUploaderTimeoutSeconds
	}
}

func (c *Config) normalizeLogging() {
	c.LogFormat = strings.ToLower(strings.TrimSpace(c.LogFormat))
	if c.LogFormat == "" {
		c.LogFormat = defaultLogFormat
	}
	c.LogLevel = strings.ToLower(strings.TrimSpace(c.LogLevel))
	if c.LogLevel == "" {
		c.LogLevel = defaultLogLevel
	}
}
