package genimage

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/wenyongqd/anniversary/internal/imaging"
	"github.com/wenyongqd/anniversary/internal/services"
)

type stubFetcher struct {
	payload imaging.Payload
	err     error
	calls   int
}

func (f *stubFetcher) Fetch(_ context.Context, _ string) (imaging.Payload, error) {
	f.calls++
	return f.payload, f.err
}

func newSource() *stubFetcher {
	return &stubFetcher{payload: imaging.Payload{ContentType: "image/jpeg", Data: []byte("source-bytes")}}
}

func imageReply(data []byte) map[string]any {
	return map[string]any{
		"candidates": []any{
			map[string]any{
				"content": map[string]any{
					"parts": []any{
						map[string]any{"text": "Here you go."},
						map[string]any{"inlineData": map[string]any{
							"mimeType": "image/png",
							"data":     base64.StdEncoding.EncodeToString(data),
						}},
					},
				},
			},
		},
	}
}

func internalError(w http.ResponseWriter) {
	w.WriteHeader(http.StatusInternalServerError)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"error": map[string]any{"code": 500, "message": "An internal error has occurred.", "status": "INTERNAL"},
	})
}

func newTestClient(serverURL string, fetcher Fetcher, sleeps *[]time.Duration) *Client {
	return NewClient(
		Config{APIKey: "test-key", BaseURL: serverURL, Model: "demo-model"},
		fetcher,
		WithSleeper(func(d time.Duration) { *sleeps = append(*sleeps, d) }),
	)
}

func TestGenerateTimelineImageBuildsRequest(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/models/demo-model:generateContent" {
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
		if got := r.Header.Get("x-goog-api-key"); got != "test-key" {
			t.Fatalf("unexpected api key header %q", got)
		}
		var req generateRequest
		body, _ := io.ReadAll(r.Body)
		if err := json.Unmarshal(body, &req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		parts := req.Contents[0].Parts
		if len(parts) != 2 || parts[0].InlineData == nil {
			t.Fatalf("expected inline image then prompt, got %s", body)
		}
		if parts[0].InlineData.MimeType != "image/jpeg" {
			t.Fatalf("unexpected mime type %q", parts[0].InlineData.MimeType)
		}
		if parts[0].InlineData.Data != base64.StdEncoding.EncodeToString([]byte("source-bytes")) {
			t.Fatalf("unexpected inline data %q", parts[0].InlineData.Data)
		}
		if !strings.Contains(parts[1].Text, `"our first trip to the sea"`) {
			t.Fatalf("prompt missing message: %q", parts[1].Text)
		}
		if req.GenerationConfig == nil || req.GenerationConfig.ResponseModalities[0] != "IMAGE" {
			t.Fatalf("expected image response modality, got %s", body)
		}
		_ = json.NewEncoder(w).Encode(imageReply([]byte("generated")))
	}))
	defer server.Close()

	var sleeps []time.Duration
	client := newTestClient(server.URL, newSource(), &sleeps)
	payload, err := client.GenerateTimelineImage(context.Background(), "https://cdn.example.com/a.jpg", "  our first trip to the sea ")
	if err != nil {
		t.Fatalf("GenerateTimelineImage returned error: %v", err)
	}
	if payload.ContentType != "image/png" || string(payload.Data) != "generated" {
		t.Fatalf("unexpected payload %+v", payload)
	}
	if len(sleeps) != 0 {
		t.Fatalf("expected no retries, got %v", sleeps)
	}
}

func TestGenerateRetriesInternalErrorsThenSucceeds(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) <= 2 {
			internalError(w)
			return
		}
		_ = json.NewEncoder(w).Encode(imageReply([]byte("third time")))
	}))
	defer server.Close()

	var sleeps []time.Duration
	client := newTestClient(server.URL, newSource(), &sleeps)
	payload, err := client.GenerateTimelineImage(context.Background(), "https://cdn.example.com/a.jpg", "anniversary")
	if err != nil {
		t.Fatalf("expected success on third attempt, got %v", err)
	}
	if string(payload.Data) != "third time" {
		t.Fatalf("unexpected payload %q", payload.Data)
	}
	if calls.Load() != 3 {
		t.Fatalf("expected 3 calls, got %d", calls.Load())
	}
	want := []time.Duration{time.Second, 2 * time.Second}
	if len(sleeps) != len(want) || sleeps[0] != want[0] || sleeps[1] != want[1] {
		t.Fatalf("unexpected backoff %v, want %v", sleeps, want)
	}
}

func TestGenerateGivesUpAfterMaxAttempts(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		internalError(w)
	}))
	defer server.Close()

	var sleeps []time.Duration
	client := newTestClient(server.URL, newSource(), &sleeps)
	_, err := client.GenerateTimelineImage(context.Background(), "https://cdn.example.com/a.jpg", "anniversary")
	if err == nil {
		t.Fatal("expected error")
	}
	if calls.Load() != 3 {
		t.Fatalf("expected 3 calls, got %d", calls.Load())
	}
	if !strings.Contains(err.Error(), "failed after 3 attempts") {
		t.Fatalf("unexpected error %v", err)
	}
}

func TestGenerateDoesNotRetryClientErrors(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadRequest)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"error": map[string]any{"code": 400, "message": "API key not valid.", "status": "INVALID_ARGUMENT"},
		})
	}))
	defer server.Close()

	var sleeps []time.Duration
	client := newTestClient(server.URL, newSource(), &sleeps)
	_, err := client.GenerateTimelineImage(context.Background(), "https://cdn.example.com/a.jpg", "anniversary")
	if err == nil || !strings.Contains(err.Error(), "API key not valid") {
		t.Fatalf("expected surfaced api error, got %v", err)
	}
	if calls.Load() != 1 || len(sleeps) != 0 {
		t.Fatalf("expected a single attempt, got %d calls and sleeps %v", calls.Load(), sleeps)
	}
}

func TestGenerateTextOnlyReplyFailsWithoutRetry(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"candidates": []any{map[string]any{
				"content": map[string]any{"parts": []any{map[string]any{"text": "I cannot edit photos of people."}}},
			}},
		})
	}))
	defer server.Close()

	var sleeps []time.Duration
	client := newTestClient(server.URL, newSource(), &sleeps)
	_, err := client.GenerateTimelineImage(context.Background(), "https://cdn.example.com/a.jpg", "anniversary")
	var textErr *TextResponseError
	if !errors.As(err, &textErr) {
		t.Fatalf("expected TextResponseError, got %v", err)
	}
	if !strings.Contains(err.Error(), "I cannot edit photos of people.") {
		t.Fatalf("expected text in error, got %q", err.Error())
	}
	if calls.Load() != 1 {
		t.Fatalf("expected no retry, got %d calls", calls.Load())
	}
}

func TestGenerateFetchFailure(t *testing.T) {
	fetcher := &stubFetcher{err: errors.New("http 404: not found")}
	var sleeps []time.Duration
	client := newTestClient("http://127.0.0.1:1", fetcher, &sleeps)
	_, err := client.GenerateTimelineImage(context.Background(), "https://cdn.example.com/missing.jpg", "anniversary")
	if err == nil || !strings.Contains(err.Error(), "fetch source image") {
		t.Fatalf("expected fetch error, got %v", err)
	}
}

func TestGenerateRequiresAPIKey(t *testing.T) {
	client := NewClient(Config{}, newSource())
	_, err := client.GenerateTimelineImage(context.Background(), "https://cdn.example.com/a.jpg", "anniversary")
	if !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
}

func TestBackoffDelay(t *testing.T) {
	client := NewClient(Config{APIKey: "k"}, nil)
	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{1, time.Second},
		{2, 2 * time.Second},
		{3, 4 * time.Second},
		{4, 8 * time.Second},
		{5, 8 * time.Second},
	}
	for _, tc := range tests {
		if got := client.backoffDelay(tc.attempt); got != tc.want {
			t.Fatalf("backoffDelay(%d) = %s, want %s", tc.attempt, got, tc.want)
		}
	}
}

func TestWithRetryBackoffOverridesDefaults(t *testing.T) {
	client := NewClient(Config{APIKey: "k"}, nil, WithRetryBackoff(10*time.Millisecond, 30*time.Millisecond))
	want := []time.Duration{10 * time.Millisecond, 20 * time.Millisecond, 30 * time.Millisecond, 30 * time.Millisecond}
	for i, w := range want {
		if got := client.backoffDelay(i + 1); got != w {
			t.Fatalf("backoffDelay(%d) = %s, want %s", i+1, got, w)
		}
	}
}

type stubKeySource struct {
	key string
	err error
}

func (s stubKeySource) FetchAPIKey(context.Context) (string, error) { return s.key, s.err }

func TestResolveAPIKey(t *testing.T) {
	key, err := ResolveAPIKey(context.Background(), " configured ", stubKeySource{key: "remote"})
	if err != nil || key != "configured" {
		t.Fatalf("expected configured key, got %q (%v)", key, err)
	}
	key, err = ResolveAPIKey(context.Background(), "", stubKeySource{key: "remote"})
	if err != nil || key != "remote" {
		t.Fatalf("expected remote key, got %q (%v)", key, err)
	}
	if _, err := ResolveAPIKey(context.Background(), "", stubKeySource{err: errors.New("404")}); !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
	if _, err := ResolveAPIKey(context.Background(), "", nil); err == nil {
		t.Fatal("expected error without fallback")
	}
}
