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
	c.normalizeServer()
	c.normalizeGateway()
	c.normalizeStorage()
	c.normalizeGenerative()
	c.normalizeImaging()
	c.normalizeShare()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.DataDir) == "" {
		c.Paths.DataDir = defaultDataDir
	}
	if c.Paths.DataDir, err = expandPath(c.Paths.DataDir); err != nil {
		return fmt.Errorf("paths.data_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = defaultLogDir
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.BlobDir) == "" {
		c.Paths.BlobDir = defaultBlobDir
	}
	if c.Paths.BlobDir, err = expandPath(c.Paths.BlobDir); err != nil {
		return fmt.Errorf("paths.blob_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeServer() {
	c.Server.Bind = strings.TrimSpace(c.Server.Bind)
	if c.Server.Bind == "" {
		c.Server.Bind = defaultServerBind
	}
	c.Server.PublicBaseURL = strings.TrimRight(strings.TrimSpace(c.Server.PublicBaseURL), "/")
	if c.Server.PublicBaseURL == "" {
		c.Server.PublicBaseURL = "http://" + c.Server.Bind
	}
	c.Server.APIToken = strings.TrimSpace(c.Server.APIToken)
}

func (c *Config) normalizeGateway() {
	if value, ok := os.LookupEnv("ANNIVERSARY_GATEWAY_URL"); ok && strings.TrimSpace(value) != "" {
		c.Gateway.BaseURL = value
	}
	c.Gateway.BaseURL = strings.TrimRight(strings.TrimSpace(c.Gateway.BaseURL), "/")
	if c.Gateway.BaseURL == "" {
		c.Gateway.BaseURL = defaultGatewayBaseURL
	}
	c.Gateway.APIToken = strings.TrimSpace(c.Gateway.APIToken)
	if c.Gateway.APIToken == "" {
		c.Gateway.APIToken = c.Server.APIToken
	}
}

func (c *Config) normalizeStorage() {
	c.Storage.Backend = strings.ToLower(strings.TrimSpace(c.Storage.Backend))
	if c.Storage.Backend == "" {
		c.Storage.Backend = BackendFS
	}
	c.Storage.S3Bucket = strings.TrimSpace(c.Storage.S3Bucket)
	c.Storage.S3Region = strings.TrimSpace(c.Storage.S3Region)
	if c.Storage.S3Region == "" {
		c.Storage.S3Region = defaultS3Region
	}
	c.Storage.S3Endpoint = strings.TrimRight(strings.TrimSpace(c.Storage.S3Endpoint), "/")
	c.Storage.S3PublicBaseURL = strings.TrimRight(strings.TrimSpace(c.Storage.S3PublicBaseURL), "/")
	c.Storage.S3AccessKey = strings.TrimSpace(c.Storage.S3AccessKey)
	if c.Storage.S3AccessKey == "" {
		if value, ok := os.LookupEnv("AWS_ACCESS_KEY_ID"); ok {
			c.Storage.S3AccessKey = strings.TrimSpace(value)
		}
	}
	c.Storage.S3SecretKey = strings.TrimSpace(c.Storage.S3SecretKey)
	if c.Storage.S3SecretKey == "" {
		if value, ok := os.LookupEnv("AWS_SECRET_ACCESS_KEY"); ok {
			c.Storage.S3SecretKey = strings.TrimSpace(value)
		}
	}
}

func (c *Config) normalizeGenerative() {
	c.Generative.APIKey = strings.TrimSpace(c.Generative.APIKey)
	if c.Generative.APIKey == "" {
		if value, ok := os.LookupEnv("GEMINI_API_KEY"); ok && strings.TrimSpace(value) != "" {
			c.Generative.APIKey = strings.TrimSpace(value)
		} else if value, ok := os.LookupEnv("API_KEY"); ok {
			c.Generative.APIKey = strings.TrimSpace(value)
		}
	}
	c.Generative.BaseURL = strings.TrimRight(strings.TrimSpace(c.Generative.BaseURL), "/")
	if c.Generative.BaseURL == "" {
		c.Generative.BaseURL = defaultGenerativeBaseURL
	}
	c.Generative.Model = strings.TrimSpace(c.Generative.Model)
	if c.Generative.Model == "" {
		c.Generative.Model = defaultGenerativeModel
	}
}

func (c *Config) normalizeImaging() {
	if c.Imaging.JPEGQuality == 0 {
		c.Imaging.JPEGQuality = defaultJPEGQuality
	}
}

func (c *Config) normalizeShare() {
	c.Share.AppBaseURL = strings.TrimSpace(c.Share.AppBaseURL)
	if c.Share.AppBaseURL == "" {
		c.Share.AppBaseURL = c.Server.PublicBaseURL + "/"
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	switch c.Logging.Format {
	case "", "console":
		c.Logging.Format = "console"
	case "json":
	default:
		c.Logging.Format = "console"
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}
