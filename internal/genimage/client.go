package genimage

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/wenyongqd/anniversary/internal/imaging"
	"github.com/wenyongqd/anniversary/internal/logging"
	"github.com/wenyongqd/anniversary/internal/services"
)

const (
	defaultHTTPTimeout    = 120 * time.Second
	defaultRetryAttempts  = 3
	defaultRetryBaseDelay = 1 * time.Second
	defaultRetryMaxDelay  = 8 * time.Second
	defaultBaseURL        = "https://generativelanguage.googleapis.com/v1beta"
	defaultModel          = "gemini-2.5-flash-image-preview"
	maxResponseBytes      = 64 << 20
)

// PromptTemplate is filled with the entry message before every call.
const PromptTemplate = `Re-imagine this photo as a warm, hand-painted illustration for an anniversary timeline.
The memory behind it: "%s".
Keep the people, their poses and the composition recognizable, soften the background, and use a gentle pastel palette.
Respond with the illustrated image only.`

// Fetcher downloads the source photo.
type Fetcher interface {
	Fetch(ctx context.Context, rawURL string) (imaging.Payload, error)
}

// Config captures the runtime settings required to talk to the model.
type Config struct {
	APIKey         string
	BaseURL        string
	Model          string
	TimeoutSeconds int
	MaxAttempts    int
}

// Client wraps the generateContent endpoint of the image model.
type Client struct {
	cfg        Config
	fetcher    Fetcher
	httpClient *http.Client
	logger     *slog.Logger

	retryBaseDelay time.Duration
	retryMaxDelay  time.Duration
	sleeper        func(time.Duration)
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

// WithRetryBackoff overrides the retry backoff delays.
func WithRetryBackoff(baseDelay, maxDelay time.Duration) Option {
	return func(c *Client) {
		c.retryBaseDelay = baseDelay
		c.retryMaxDelay = maxDelay
	}
}

// WithSleeper overrides how retry sleeps are performed (useful for tests).
func WithSleeper(sleeper func(time.Duration)) Option {
	return func(c *Client) {
		c.sleeper = sleeper
	}
}

// WithLogger attaches a logger for retry diagnostics.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// NewClient constructs a model client. The fetcher resolves source URLs.
func NewClient(cfg Config, fetcher Fetcher, opts ...Option) *Client {
	timeout := defaultHTTPTimeout
	if cfg.TimeoutSeconds > 0 {
		timeout = time.Duration(cfg.TimeoutSeconds) * time.Second
	}
	client := &Client{
		cfg: Config{
			APIKey:         strings.TrimSpace(cfg.APIKey),
			BaseURL:        strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/"),
			Model:          strings.TrimSpace(cfg.Model),
			TimeoutSeconds: cfg.TimeoutSeconds,
			MaxAttempts:    cfg.MaxAttempts,
		},
		fetcher:        fetcher,
		httpClient:     &http.Client{Timeout: timeout},
		retryBaseDelay: defaultRetryBaseDelay,
		retryMaxDelay:  defaultRetryMaxDelay,
	}
	for _, opt := range opts {
		opt(client)
	}
	if client.cfg.BaseURL == "" {
		client.cfg.BaseURL = defaultBaseURL
	}
	if client.cfg.Model == "" {
		client.cfg.Model = defaultModel
	}
	if client.cfg.MaxAttempts <= 0 {
		client.cfg.MaxAttempts = defaultRetryAttempts
	}
	client.logger = logging.NewComponentLogger(client.logger, "genimage")
	return client
}

// GenerateTimelineImage turns the photo at sourceURL into an illustration of message.
func (c *Client) GenerateTimelineImage(ctx context.Context, sourceURL, message string) (imaging.Payload, error) {
	if c.cfg.APIKey == "" {
		return imaging.Payload{}, services.Wrap(services.ErrConfiguration, "genimage", "generate", "api key required", nil)
	}
	if strings.TrimSpace(sourceURL) == "" {
		return imaging.Payload{}, services.Wrap(services.ErrValidation, "genimage", "generate", "source image url required", nil)
	}
	if c.fetcher == nil {
		return imaging.Payload{}, services.Wrap(services.ErrConfiguration, "genimage", "generate", "no source fetcher configured", nil)
	}

	source, err := c.fetcher.Fetch(ctx, sourceURL)
	if err != nil {
		return imaging.Payload{}, fmt.Errorf("fetch source image: %w", err)
	}
	mimeType := source.ContentType
	if !strings.HasPrefix(mimeType, "image/") {
		mimeType = imaging.JPEGContentType
	}

	request := generateRequest{
		Contents: []content{{
			Parts: []part{
				{InlineData: &inlineData{MimeType: mimeType, Data: source.Base64()}},
				{Text: fmt.Sprintf(PromptTemplate, strings.TrimSpace(message))},
			},
		}},
		GenerationConfig: &generationConfig{ResponseModalities: []string{"IMAGE", "TEXT"}},
	}
	return c.generateWithRetry(ctx, request)
}

func (c *Client) generateWithRetry(ctx context.Context, request generateRequest) (imaging.Payload, error) {
	attempts := c.cfg.MaxAttempts
	var lastErr error

	for attempt := 1; attempt <= attempts; attempt++ {
		response, err := c.sendOnce(ctx, request)
		if err == nil {
			return extractImage(response)
		}

		delay, retry := c.retryDelay(ctx, err, attempt, attempts)
		if !retry {
			if lastErr != nil && isServerFault(err) {
				return imaging.Payload{}, fmt.Errorf("generate image: failed after %d attempts: %w", attempt, err)
			}
			return imaging.Payload{}, err
		}
		logging.WarnWithContext(logging.WithContext(ctx, c.logger), "model call failed, retrying", "generation_retry",
			logging.Int("attempt", attempt),
			logging.Int("max_attempts", attempts),
			logging.Duration("delay", delay),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "the model reported a server fault"),
		)
		if err := c.sleep(ctx, delay); err != nil {
			return imaging.Payload{}, err
		}
		lastErr = err
	}

	if lastErr == nil {
		lastErr = errors.New("unknown retry failure")
	}
	return imaging.Payload{}, fmt.Errorf("generate image: failed after %d attempts: %w", attempts, lastErr)
}

func (c *Client) sendOnce(ctx context.Context, request generateRequest) (generateResponse, error) {
	var response generateResponse
	endpoint, err := url.JoinPath(c.cfg.BaseURL, "models", c.cfg.Model+":generateContent")
	if err != nil {
		return response, services.Wrap(services.ErrConfiguration, "genimage", "request", "build url", err)
	}
	encoded, err := json.Marshal(request)
	if err != nil {
		return response, services.Wrap(services.ErrValidation, "genimage", "request", "encode body", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(encoded))
	if err != nil {
		return response, services.Wrap(services.ErrValidation, "genimage", "request", "new request", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-goog-api-key", c.cfg.APIKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return response, services.Wrap(services.ErrExternal, "genimage", "request", "http error", err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return response, services.Wrap(services.ErrExternal, "genimage", "request", "read body", err)
	}

	if resp.StatusCode >= http.StatusMultipleChoices {
		statusErr := &httpStatusError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(body))}
		var envelope generateResponse
		if json.Unmarshal(body, &envelope) == nil && envelope.Error != nil {
			statusErr.Status = envelope.Error.Status
			statusErr.Message = envelope.Error.Message
		}
		return response, classify(statusErr)
	}
	if err := json.Unmarshal(body, &response); err != nil {
		return response, services.Wrap(services.ErrExternal, "genimage", "request", "decode response", err)
	}
	if response.Error != nil {
		apiErr := &httpStatusError{
			StatusCode: response.Error.Code,
			Status:     response.Error.Status,
			Message:    response.Error.Message,
			Body:       strings.TrimSpace(string(body)),
		}
		return response, classify(apiErr)
	}
	return response, nil
}

func classify(err *httpStatusError) error {
	marker := services.ErrExternal
	if err.serverFault() {
		marker = services.ErrTransient
	}
	return services.Wrap(marker, "genimage", "", "", err)
}

func isServerFault(err error) bool {
	var statusErr *httpStatusError
	return errors.As(err, &statusErr) && statusErr.serverFault()
}

func (c *Client) retryDelay(ctx context.Context, err error, attempt, maxAttempts int) (time.Duration, bool) {
	if attempt >= maxAttempts || err == nil {
		return 0, false
	}
	if ctx.Err() != nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return 0, false
	}
	if !services.IsTransient(err) {
		return 0, false
	}
	return c.backoffDelay(attempt), true
}

// backoffDelay returns the wait after the given 1-based attempt:
// base, base*2, base*4, capped at the max delay.
func (c *Client) backoffDelay(attempt int) time.Duration {
	if c.retryBaseDelay <= 0 {
		return 0
	}
	delay := c.retryBaseDelay
	for i := 1; i < attempt; i++ {
		if c.retryMaxDelay > 0 && delay > c.retryMaxDelay/2 {
			return c.retryMaxDelay
		}
		delay *= 2
	}
	if c.retryMaxDelay > 0 && delay > c.retryMaxDelay {
		return c.retryMaxDelay
	}
	return delay
}

func (c *Client) sleep(ctx context.Context, delay time.Duration) error {
	if delay <= 0 {
		return nil
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}
	if c.sleeper != nil {
		c.sleeper(delay)
		return ctx.Err()
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func extractImage(response generateResponse) (imaging.Payload, error) {
	var texts []string
	for _, candidate := range response.Candidates {
		if candidate.Content == nil {
			continue
		}
		for _, p := range candidate.Content.Parts {
			if p.InlineData != nil && p.InlineData.Data != "" {
				data, err := base64.StdEncoding.DecodeString(p.InlineData.Data)
				if err != nil {
					return imaging.Payload{}, services.Wrap(services.ErrExternal, "genimage", "extract", "decode inline image", err)
				}
				mimeType := p.InlineData.MimeType
				if mimeType == "" {
					mimeType = http.DetectContentType(data)
				}
				return imaging.Payload{ContentType: mimeType, Data: data}, nil
			}
			if text := strings.TrimSpace(p.Text); text != "" {
				texts = append(texts, text)
			}
		}
	}
	if len(texts) > 0 {
		return imaging.Payload{}, services.Wrap(services.ErrExternal, "genimage", "", "", &TextResponseError{Text: strings.Join(texts, "\n")})
	}
	reason := "response contained no image"
	if response.PromptFeedback != nil && response.PromptFeedback.BlockReason != "" {
		reason = "prompt blocked: " + response.PromptFeedback.BlockReason
	} else if len(response.Candidates) > 0 && response.Candidates[0].FinishReason != "" {
		reason = "response contained no image (finish_reason=" + response.Candidates[0].FinishReason + ")"
	}
	return imaging.Payload{}, services.Wrap(services.ErrExternal, "genimage", "extract", reason, nil)
}
