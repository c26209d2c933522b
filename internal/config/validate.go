package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateServer(); err != nil {
		return err
	}
	if err := c.validateGateway(); err != nil {
		return err
	}
	if err := c.validateStorage(); err != nil {
		return err
	}
	if err := c.validateGenerative(); err != nil {
		return err
	}
	if err := c.validateImaging(); err != nil {
		return err
	}
	if err := c.validateShare(); err != nil {
		return err
	}
	return c.validateLogging()
}

func (c *Config) validateServer() error {
	if c.Server.MaxUploadMiB <= 0 {
		return errors.New("server.max_upload_mib must be positive")
	}
	if err := validateHTTPURL("server.public_base_url", c.Server.PublicBaseURL); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateGateway() error {
	if err := validateHTTPURL("gateway.base_url", c.Gateway.BaseURL); err != nil {
		return err
	}
	if c.Gateway.TimeoutSeconds <= 0 {
		return errors.New("gateway.timeout_seconds must be positive")
	}
	return nil
}

func (c *Config) validateStorage() error {
	switch c.Storage.Backend {
	case BackendFS:
		if strings.TrimSpace(c.Paths.BlobDir) == "" {
			return errors.New("paths.blob_dir must be set when storage.backend is fs")
		}
	case BackendS3:
		if c.Storage.S3Bucket == "" {
			return errors.New("storage.s3_bucket must be set when storage.backend is s3")
		}
		if c.Storage.S3Endpoint != "" {
			if err := validateHTTPURL("storage.s3_endpoint", c.Storage.S3Endpoint); err != nil {
				return err
			}
		}
		if (c.Storage.S3AccessKey == "") != (c.Storage.S3SecretKey == "") {
			return errors.New("storage.s3_access_key and storage.s3_secret_key must be set together")
		}
	default:
		return fmt.Errorf("storage.backend %q is not supported (use fs or s3)", c.Storage.Backend)
	}
	return nil
}

func (c *Config) validateGenerative() error {
	if err := validateHTTPURL("generative.base_url", c.Generative.BaseURL); err != nil {
		return err
	}
	if c.Generative.TimeoutSeconds <= 0 {
		return errors.New("generative.timeout_seconds must be positive")
	}
	if c.Generative.MaxAttempts <= 0 {
		return errors.New("generative.max_attempts must be positive")
	}
	return nil
}

func (c *Config) validateImaging() error {
	if c.Imaging.MaxDimension <= 0 {
		return errors.New("imaging.max_dimension must be positive")
	}
	if c.Imaging.JPEGQuality < 1 || c.Imaging.JPEGQuality > 100 {
		return errors.New("imaging.jpeg_quality must be between 1 and 100")
	}
	if c.Imaging.AlbumWidth <= 0 || c.Imaging.AlbumHeight <= 0 {
		return errors.New("imaging.album_width and imaging.album_height must be positive")
	}
	return nil
}

func (c *Config) validateShare() error {
	return validateHTTPURL("share.app_base_url", c.Share.AppBaseURL)
}

func (c *Config) validateLogging() error {
	switch c.Logging.Level {
	case "debug", "info", "warn", "warning", "error":
		return nil
	default:
		return fmt.Errorf("logging.level %q is not supported", c.Logging.Level)
	}
}

func validateHTTPURL(field, value string) error {
	parsed, err := url.Parse(value)
	if err != nil {
		return fmt.Errorf("%s: %w", field, err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("%s must be an http or https URL, got %q", field, value)
	}
	if parsed.Host == "" {
		return fmt.Errorf("%s must include a host, got %q", field, value)
	}
	return nil
}
