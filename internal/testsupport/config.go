package testsupport

import (
	"path/filepath"
	"testing"

	"github.com/wenyongqd/anniversary/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// It defaults common fields and applies any provided options.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.DataDir = filepath.Join(base, "data")
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfgVal.Paths.BlobDir = filepath.Join(base, "blobs")
	cfgVal.Server.Bind = "127.0.0.1:0"
	cfgVal.Generative.APIKey = "test-key"

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}
	for _, opt := range opts {
		opt(builder)
	}
	return builder.cfg
}

// WithAPIToken sets the bearer token shared by the server and the gateway client.
func WithAPIToken(token string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Server.APIToken = token
		b.cfg.Gateway.APIToken = token
	}
}

// WithGatewayURL points the gateway client at baseURL, typically an httptest server.
func WithGatewayURL(baseURL string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Gateway.BaseURL = baseURL
		b.cfg.Server.PublicBaseURL = baseURL
	}
}

// WithoutGenerativeKey clears the model API key.
func WithoutGenerativeKey() ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Generative.APIKey = ""
	}
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.DataDir)
}
