package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory and file-location configuration.
type Paths struct {
	LogDir      string `toml:"log_dir"`
	ReportDir   string `toml:"report_dir"`
	JournalPath string `toml:"journal_path"`
	LockPath    string `toml:"lock_path"`
}

// HaloLink contains configuration for the image-management platform.
type HaloLink struct {
	URL         string `toml:"url"`
	AccessToken string `toml:"access_token"`
	LocalBearer bool   `toml:"local_bearer"`

	IncomingStudyPK     int64  `toml:"incoming_study_pk"`
	IntermediateStudyPK int64  `toml:"intermediate_study_pk"`
	IntermediateLabel   string `toml:"intermediate_label"`
	FinalStudyPK        int64  `toml:"final_study_pk"`
	FinalLabel          string `toml:"final_label"`
}

// Redcap contains configuration for the clinical registry API.
type Redcap struct {
	APIURL                string  `toml:"api_url"`
	Token                 string  `toml:"token"`
	RequestsPerSecond     float64 `toml:"requests_per_second"`
	BreakerFailures       int     `toml:"breaker_failures"`
	BreakerTimeoutSeconds int     `toml:"breaker_timeout_seconds"`
}

// Uploader contains configuration for the supplementary lookup store.
type Uploader struct {
	URI            string `toml:"uri"`
	Host           string `toml:"host"`
	Port           string `toml:"port"`
	Database       string `toml:"database"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

// Pipeline contains run defaults.
type Pipeline struct {
	DefaultStudy string `toml:"default_study"`
	DryRun       bool   `toml:"dry_run"`
}

// Config is the root configuration object.
type Config struct {
	Paths    Paths    `toml:"paths"`
	HaloLink HaloLink `toml:"halolink"`
	Redcap   Redcap   `toml:"redcap"`
	Uploader Uploader `toml:"uploader"`
	Pipeline Pipeline `toml:"pipeline"`

	LogLevel  string `toml:"log_level"`
	LogFormat string `toml:"log_format"`
}

// SampleConfig returns the embedded sample configuration text.
func SampleConfig() string {
	return sampleConfig
}

// Load reads configuration from path (or the default locations when path is
// empty), applies environment fallbacks, and validates the result. The
// second return is the resolved path, the third whether a file existed.
func Load(path string) (*Config, string, bool, error) {
	// Match the original tooling: secrets may live in a .env next to the
	// working directory. Missing files are fine.
	_ = godotenv.Load(".env")

	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := expandPath("~/.config/miktmc-pipeline/config.toml")
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("miktmc-pipeline.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}
	return defaultPath, false, nil
}

// DefaultConfigPath returns the canonical config location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/miktmc-pipeline/config.toml")
}

// EnsureDirectories creates the directories a run needs.
func (c *Config) EnsureDirectories() error {
	dirs := []string{c.Paths.LogDir, c.Paths.ReportDir}
	for _, file := range []string{c.Paths.JournalPath, c.Paths.LockPath} {
		if strings.TrimSpace(file) != "" {
			dirs = append(dirs, filepath.Dir(file))
		}
	}
	for _, dir := range dirs {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}
