package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/wenyongqd/anniversary/internal/imaging"
	"github.com/wenyongqd/anniversary/internal/services"
)

const (
	defaultHTTPTimeout = 60 * time.Second
	maxFetchBytes      = 64 << 20
	maxErrorBody       = 4 << 10

	// UploadJSONPath accepts raw JSON documents.
	UploadJSONPath = "/api/upload"
	// UploadImagePath accepts raw image bytes.
	UploadImagePath = "/api/upload-image"
	// ConfigPath returns the fallback generative API key.
	ConfigPath = "/api/config"
)

// Config captures the settings required to reach the gateway.
type Config struct {
	BaseURL        string
	APIToken       string
	TimeoutSeconds int
}

// Client uploads to and fetches from the asset gateway.
type Client struct {
	cfg        Config
	httpClient *http.Client
}

// Option customizes the client.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// NewClient constructs a gateway client.
func NewClient(cfg Config, opts ...Option) *Client {
	timeout := defaultHTTPTimeout
	if cfg.TimeoutSeconds > 0 {
		timeout = time.Duration(cfg.TimeoutSeconds) * time.Second
	}
	client := &Client{
		cfg: Config{
			BaseURL:        strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/"),
			APIToken:       strings.TrimSpace(cfg.APIToken),
			TimeoutSeconds: cfg.TimeoutSeconds,
		},
		httpClient: &http.Client{Timeout: timeout},
	}
	for _, opt := range opts {
		opt(client)
	}
	return client
}

// StatusError reports a non-success HTTP status together with the response body.
type StatusError struct {
	Op         string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	body := strings.TrimSpace(e.Body)
	if body == "" {
		body = http.StatusText(e.StatusCode)
	}
	return fmt.Sprintf("%s: http %d: %s", e.Op, e.StatusCode, body)
}

type uploadResponse struct {
	URL string `json:"url"`
}

type configResponse struct {
	APIKey string `json:"apiKey"`
}

// UploadImage stores raw image bytes and returns their public URL.
func (c *Client) UploadImage(ctx context.Context, payload imaging.Payload) (string, error) {
	contentType := strings.TrimSpace(payload.ContentType)
	if !strings.HasPrefix(contentType, "image/") {
		return "", services.Wrap(services.ErrValidation, "gateway", "upload image", fmt.Sprintf("content type %q is not an image", contentType), nil)
	}
	if len(payload.Data) == 0 {
		return "", services.Wrap(services.ErrValidation, "gateway", "upload image", "image is empty", nil)
	}
	return c.upload(ctx, UploadImagePath, contentType, payload.Data, "upload image")
}

// UploadJSON stores a raw JSON document and returns its public URL.
func (c *Client) UploadJSON(ctx context.Context, body []byte) (string, error) {
	if !json.Valid(body) {
		return "", services.Wrap(services.ErrValidation, "gateway", "upload json", "body is not valid JSON", nil)
	}
	return c.upload(ctx, UploadJSONPath, "application/json", body, "upload json")
}

func (c *Client) upload(ctx context.Context, path, contentType string, body []byte, op string) (string, error) {
	endpoint, err := c.endpoint(path)
	if err != nil {
		return "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return "", services.Wrap(services.ErrValidation, "gateway", op, "build request", err)
	}
	req.Header.Set("Content-Type", contentType)
	c.authorize(req)

	respBody, err := c.do(req, op, maxErrorBody<<4)
	if err != nil {
		return "", err
	}
	var parsed uploadResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return "", services.Wrap(services.ErrExternal, "gateway", op, "decode response", err)
	}
	if strings.TrimSpace(parsed.URL) == "" {
		return "", services.Wrap(services.ErrExternal, "gateway", op, "response did not include a url", nil)
	}
	return strings.TrimSpace(parsed.URL), nil
}

// Fetch downloads the resource at rawURL. Data URLs are decoded in place.
func (c *Client) Fetch(ctx context.Context, rawURL string) (imaging.Payload, error) {
	rawURL = strings.TrimSpace(rawURL)
	if strings.HasPrefix(rawURL, "data:") {
		return imaging.ParseDataURL(rawURL)
	}
	parsed, err := url.Parse(rawURL)
	if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") {
		return imaging.Payload{}, services.Wrap(services.ErrValidation, "gateway", "fetch", fmt.Sprintf("unsupported url %q", rawURL), err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return imaging.Payload{}, services.Wrap(services.ErrValidation, "gateway", "fetch", "build request", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return imaging.Payload{}, services.Wrap(services.ErrExternal, "gateway", "fetch", "http error", err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxFetchBytes+1))
	if err != nil {
		return imaging.Payload{}, services.Wrap(services.ErrExternal, "gateway", "fetch", "read body", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return imaging.Payload{}, services.Wrap(services.ErrExternal, "gateway", "", "", &StatusError{Op: "fetch", StatusCode: resp.StatusCode, Body: truncate(body)})
	}
	if len(body) > maxFetchBytes {
		return imaging.Payload{}, services.Wrap(services.ErrValidation, "gateway", "fetch", "resource exceeds size limit", nil)
	}
	contentType := resp.Header.Get("Content-Type")
	if base, _, ok := strings.Cut(contentType, ";"); ok {
		contentType = base
	}
	contentType = strings.TrimSpace(contentType)
	if contentType == "" || contentType == "application/octet-stream" {
		contentType = http.DetectContentType(body)
		if base, _, ok := strings.Cut(contentType, ";"); ok {
			contentType = base
		}
	}
	return imaging.Payload{ContentType: contentType, Data: body}, nil
}

// FetchAPIKey asks the gateway for the fallback generative API key.
func (c *Client) FetchAPIKey(ctx context.Context) (string, error) {
	endpoint, err := c.endpoint(ConfigPath)
	if err != nil {
		return "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return "", services.Wrap(services.ErrValidation, "gateway", "fetch api key", "build request", err)
	}
	c.authorize(req)
	body, err := c.do(req, "fetch api key", maxErrorBody)
	if err != nil {
		return "", err
	}
	var parsed configResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", services.Wrap(services.ErrExternal, "gateway", "fetch api key", "decode response", err)
	}
	key := strings.TrimSpace(parsed.APIKey)
	if key == "" {
		return "", services.Wrap(services.ErrConfiguration, "gateway", "fetch api key", "gateway returned an empty key", nil)
	}
	return key, nil
}

func (c *Client) endpoint(path string) (string, error) {
	if c.cfg.BaseURL == "" {
		return "", services.Wrap(services.ErrConfiguration, "gateway", "", "gateway base url is not configured", nil)
	}
	endpoint, err := url.JoinPath(c.cfg.BaseURL, path)
	if err != nil {
		return "", services.Wrap(services.ErrConfiguration, "gateway", "", "build url", err)
	}
	return endpoint, nil
}

func (c *Client) authorize(req *http.Request) {
	if c.cfg.APIToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.APIToken)
	}
}

func (c *Client) do(req *http.Request, op string, limit int64) ([]byte, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, services.Wrap(services.ErrExternal, "gateway", op, "http error", err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(io.LimitReader(resp.Body, limit))
	if err != nil {
		return nil, services.Wrap(services.ErrExternal, "gateway", op, "read body", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, services.Wrap(services.ErrExternal, "gateway", "", "", &StatusError{Op: op, StatusCode: resp.StatusCode, Body: truncate(body)})
	}
	return body, nil
}

func truncate(body []byte) string {
	if len(body) > maxErrorBody {
		body = body[:maxErrorBody]
	}
	return strings.TrimSpace(string(body))
}
