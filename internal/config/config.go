package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory configuration.
type Paths struct {
	DataDir string `toml:"data_dir"`
	LogDir  string `toml:"log_dir"`
	BlobDir string `toml:"blob_dir"`
}

// Server contains configuration for the upload gateway server.
type Server struct {
	Bind          string `toml:"bind"`
	PublicBaseURL string `toml:"public_base_url"`
	APIToken      string `toml:"api_token"`
	MaxUploadMiB  int    `toml:"max_upload_mib"`
}

// Gateway contains the client-side settings used to reach the upload gateway.
type Gateway struct {
	BaseURL        string `toml:"base_url"`
	APIToken       string `toml:"api_token"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

// Storage selects and configures the blob store behind the gateway server.
type Storage struct {
	Backend         string `toml:"backend"`
	S3Bucket        string `toml:"s3_bucket"`
	S3Region        string `toml:"s3_region"`
	S3Endpoint      string `toml:"s3_endpoint"`
	S3AccessKey     string `toml:"s3_access_key"`
	S3SecretKey     string `toml:"s3_secret_key"`
	S3PublicBaseURL string `toml:"s3_public_base_url"`
}

// Generative contains connection settings for the generative image model.
type Generative struct {
	APIKey         string `toml:"api_key"`
	BaseURL        string `toml:"base_url"`
	Model          string `toml:"model"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
	MaxAttempts    int    `toml:"max_attempts"`
}

// Imaging contains transcoding and album layout settings.
type Imaging struct {
	MaxDimension int `toml:"max_dimension"`
	JPEGQuality  int `toml:"jpeg_quality"`
	AlbumWidth   int `toml:"album_width"`
	AlbumHeight  int `toml:"album_height"`
}

// Share contains link sharing settings.
type Share struct {
	AppBaseURL string `toml:"app_base_url"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for anniversary.
//
// Configuration sections by subsystem:
//   - Paths: workspace, log, and local blob directories
//   - Server: gateway server bind address and upload limits
//   - Gateway: upload gateway endpoint used by the CLI
//   - Storage: blob store backend (fs or s3)
//   - Generative: image model credentials and retry bounds
//   - Imaging: resize bounds and album sheet size
//   - Share: application link used for shareable URLs
//   - Logging: log format and level
type Config struct {
	Paths      Paths      `toml:"paths"`
	Server     Server     `toml:"server"`
	Gateway    Gateway    `toml:"gateway"`
	Storage    Storage    `toml:"storage"`
	Generative Generative `toml:"generative"`
	Imaging    Imaging    `toml:"imaging"`
	Share      Share      `toml:"share"`
	Logging    Logging    `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath(defaultConfigPath)
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
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

	defaultPath, err := expandPath(defaultConfigPath)
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("anniversary.toml")
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

// EnsureDirectories creates the workspace, log, and blob directories.
// The blob directory is only required when the fs backend is active.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.DataDir, c.Paths.LogDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	if c.Storage.Backend == BackendFS && strings.TrimSpace(c.Paths.BlobDir) != "" {
		if err := os.MkdirAll(c.Paths.BlobDir, 0o755); err != nil {
			return fmt.Errorf("create blob directory %q: %w", c.Paths.BlobDir, err)
		}
	}
	return nil
}

// WorkspaceDBPath returns the SQLite file holding the working timeline.
func (c *Config) WorkspaceDBPath() string {
	return filepath.Join(c.Paths.DataDir, "timeline.db")
}

// WorkspaceLockPath returns the lock file guarding the working timeline.
func (c *Config) WorkspaceLockPath() string {
	return filepath.Join(c.Paths.DataDir, "timeline.lock")
}

// GatewayTimeout returns the HTTP timeout for gateway requests.
func (c *Config) GatewayTimeout() time.Duration {
	return time.Duration(c.Gateway.TimeoutSeconds) * time.Second
}

// MaxUploadBytes returns the largest request body the gateway server accepts.
func (c *Config) MaxUploadBytes() int64 {
	return int64(c.Server.MaxUploadMiB) << 20
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

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
