package testsupport

import (
	"path/filepath"
	"testing"

	"github.com/Kretzler-Lab/miktmc-uploader-pipeline/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*config.Config)

// NewConfig produces a config seeded with unique temp directories per test.
// It defaults common fields and applies any provided options.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfg := config.Default()
	cfg.Paths.LogDir = filepath.Join(base, "logs")
	cfg.Paths.ReportDir = filepath.Join(base, "reports")
	cfg.Paths.JournalPath = filepath.Join(base, "journal.db")
	cfg.Paths.LockPath = filepath.Join(base, "pipeline.lock")
	cfg.HaloLink.AccessToken = "test"
	cfg.HaloLink.IncomingStudyPK = 100
	cfg.HaloLink.IntermediateStudyPK = 201
	cfg.HaloLink.FinalStudyPK = 202
	cfg.Redcap.Token = "test"
	cfg.Pipeline.DefaultStudy = "NEPTUNE"

	for _, opt := range opts {
		opt(&cfg)
	}

	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("ensure directories: %v", err)
	}
	return &cfg
}
