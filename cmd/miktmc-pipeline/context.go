package main

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/Kretzler-Lab/miktmc-uploader-pipeline/internal/config"
	"github.com/Kretzler-Lab/miktmc-uploader-pipeline/internal/logging"
	"github.com/Kretzler-Lab/miktmc-uploader-pipeline/internal/services/halolink"
	"github.com/Kretzler-Lab/miktmc-uploader-pipeline/internal/services/redcap"
	"github.com/Kretzler-Lab/miktmc-uploader-pipeline/internal/services/uploader"
)

type commandContext struct {
	configFlag *string

	configOnce sync.Once
	config     *config.Config
	configErr  error
}

func newCommandContext(configFlag *string) *commandContext {
	return &commandContext{configFlag: configFlag}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		var path string
		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}
		cfg, _, _, err := config.Load(path)
		if err != nil {
			c.configErr = err
			return
		}
		if err := cfg.EnsureDirectories(); err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
	})
	return c.config, c.configErr
}

func (c *commandContext) logger() (*slog.Logger, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	return logging.NewFromConfig(cfg)
}

func (c *commandContext) dialPlatform(ctx context.Context) (*halolink.Client, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	return halolink.Dial(ctx, halolink.Options{
		URL:         cfg.HaloLink.URL,
		AccessToken: cfg.HaloLink.AccessToken,
		LocalBearer: cfg.HaloLink.LocalBearer,
	})
}

func (c *commandContext) registryClient() (*redcap.Client, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	return redcap.NewClient(redcap.Options{
		APIURL:            cfg.Redcap.APIURL,
		Token:             cfg.Redcap.Token,
		RequestsPerSecond: cfg.Redcap.RequestsPerSecond,
		BreakerFailures:   uint32(cfg.Redcap.BreakerFailures),
		BreakerTimeout:    time.Duration(cfg.Redcap.BreakerTimeoutSeconds) * time.Second,
	})
}

// connectLookup returns nil without error when the uploader store is not
// configured; study backfill then falls back to the default study.
func (c *commandContext) connectLookup(ctx context.Context) (*uploader.Client, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	if cfg.Uploader.URI == "" && cfg.Uploader.Host == "" {
		return nil, nil
	}
	return uploader.Connect(ctx, uploader.Options{
		URI:      cfg.Uploader.URI,
		Host:     cfg.Uploader.Host,
		Port:     cfg.Uploader.Port,
		Database: cfg.Uploader.Database,
		Timeout:  time.Duration(cfg.Uploader.TimeoutSeconds) * time.Second,
	})
}
