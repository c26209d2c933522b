package server_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/wenyongqd/anniversary/internal/blobstore"
	"github.com/wenyongqd/anniversary/internal/config"
	"github.com/wenyongqd/anniversary/internal/gateway"
	"github.com/wenyongqd/anniversary/internal/imaging"
	"github.com/wenyongqd/anniversary/internal/server"
	"github.com/wenyongqd/anniversary/internal/testsupport"
)

type harness struct {
	cfg    *config.Config
	srv    *server.Server
	http   *httptest.Server
	client *gateway.Client
}

func newHarness(t *testing.T, opts ...testsupport.ConfigOption) *harness {
	t.Helper()

	var handler http.Handler
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		handler.ServeHTTP(w, r)
	}))
	t.Cleanup(ts.Close)

	cfg := testsupport.NewConfig(t, append([]testsupport.ConfigOption{testsupport.WithGatewayURL(ts.URL)}, opts...)...)
	cfg.Server.MaxUploadMiB = 1
	store, err := blobstore.NewFSStore(cfg.Paths.BlobDir, cfg.Server.PublicBaseURL)
	if err != nil {
		t.Fatalf("NewFSStore: %v", err)
	}
	clock := func() time.Time { return time.Date(2024, 2, 14, 12, 0, 0, 0, time.UTC) }
	srv, err := server.New(cfg, store, nil, server.WithClock(clock))
	if err != nil {
		t.Fatalf("server.New: %v", err)
	}
	handler = srv.Handler()

	client := gateway.NewClient(gateway.Config{BaseURL: cfg.Gateway.BaseURL, APIToken: cfg.Gateway.APIToken, TimeoutSeconds: 5})
	return &harness{cfg: cfg, srv: srv, http: ts, client: client}
}

func TestUploadImageAndFetchBack(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	data := testsupport.PNG(t, 12, 8)

	url, err := h.client.UploadImage(ctx, imaging.Payload{ContentType: "image/png", Data: data})
	if err != nil {
		t.Fatalf("UploadImage: %v", err)
	}
	if !strings.HasPrefix(url, h.http.URL+"/files/images/2024/02/14/") || !strings.HasSuffix(url, ".png") {
		t.Fatalf("unexpected url %q", url)
	}

	fetched, err := h.client.Fetch(ctx, url)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if fetched.ContentType != "image/png" || !bytes.Equal(fetched.Data, data) {
		t.Fatalf("fetched object differs: %s, %d bytes", fetched.ContentType, len(fetched.Data))
	}
}

func TestUploadJSON(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	body := []byte(`[{"id":"a","imageUrl":"u"}]`)
	url, err := h.client.UploadJSON(ctx, body)
	if err != nil {
		t.Fatalf("UploadJSON: %v", err)
	}
	if !strings.Contains(url, "/files/timelines/") || !strings.HasSuffix(url, ".json") {
		t.Fatalf("unexpected url %q", url)
	}
	fetched, err := h.client.Fetch(ctx, url)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if !bytes.Equal(fetched.Data, body) {
		t.Fatalf("unexpected document %s", fetched.Data)
	}
}

func TestUploadRejections(t *testing.T) {
	h := newHarness(t)
	tests := []struct {
		name        string
		path        string
		contentType string
		body        []byte
		status      int
	}{
		{"invalid json", "/api/upload", "application/json", []byte(`{"open":`), http.StatusBadRequest},
		{"not an image", "/api/upload-image", "text/plain", []byte("hello"), http.StatusUnsupportedMediaType},
		{"empty image", "/api/upload-image", "image/png", nil, http.StatusBadRequest},
		{"too large", "/api/upload-image", "image/png", bytes.Repeat([]byte{1}, 2<<20), http.StatusRequestEntityTooLarge},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, tc.path, bytes.NewReader(tc.body))
			req.Header.Set("Content-Type", tc.contentType)
			rec := httptest.NewRecorder()
			h.srv.Handler().ServeHTTP(rec, req)
			if rec.Code != tc.status {
				t.Fatalf("status = %d, want %d", rec.Code, tc.status)
			}
			if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/plain") {
				t.Fatalf("expected plain text failure, got %q", ct)
			}
		})
	}

	resp, err := http.Get(h.http.URL + "/api/upload")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", resp.StatusCode)
	}
}

func TestConfigEndpoint(t *testing.T) {
	h := newHarness(t)
	key, err := h.client.FetchAPIKey(context.Background())
	if err != nil {
		t.Fatalf("FetchAPIKey: %v", err)
	}
	if key != "test-key" {
		t.Fatalf("unexpected key %q", key)
	}

	empty := newHarness(t, testsupport.WithoutGenerativeKey())
	_, err = empty.client.FetchAPIKey(context.Background())
	var statusErr *gateway.StatusError
	if !errors.As(err, &statusErr) || statusErr.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404 status error, got %v", err)
	}
}

func TestBearerAuth(t *testing.T) {
	h := newHarness(t, testsupport.WithAPIToken("s3cret"))

	resp, err := http.Post(h.http.URL+"/api/upload", "application/json", strings.NewReader(`{}`))
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", resp.StatusCode)
	}

	if _, err := h.client.UploadJSON(context.Background(), []byte(`{}`)); err != nil {
		t.Fatalf("UploadJSON with token: %v", err)
	}

	health, err := http.Get(h.http.URL + "/healthz")
	if err != nil {
		t.Fatalf("healthz: %v", err)
	}
	health.Body.Close()
	if health.StatusCode != http.StatusOK {
		t.Fatalf("healthz should not need auth, got %d", health.StatusCode)
	}
}

func TestFilesRefuseTraversalAndMissing(t *testing.T) {
	h := newHarness(t)
	for _, path := range []string{"/files/images/missing.png", "/files/../timeline.db", "/files/.upload-123"} {
		resp, err := http.Get(h.http.URL + path)
		if err != nil {
			t.Fatalf("get %s: %v", path, err)
		}
		body, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		if resp.StatusCode != http.StatusNotFound {
			t.Fatalf("%s: expected 404, got %d (%s)", path, resp.StatusCode, body)
		}
	}
}

func TestRequestIDEchoed(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set(server.RequestIDHeader, "req-123")
	rec := httptest.NewRecorder()

	srv, err := server.New(cfg, &memoryStore{}, nil)
	if err != nil {
		t.Fatalf("server.New: %v", err)
	}
	srv.Handler().ServeHTTP(rec, req)
	if rec.Header().Get(server.RequestIDHeader) != "req-123" {
		t.Fatalf("request id not echoed: %v", rec.Header())
	}
	var body map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil || body["status"] != "ok" {
		t.Fatalf("unexpected health body %s", rec.Body.String())
	}
}

type memoryStore struct {
	objects []blobstore.Object
	err     error
}

func (m *memoryStore) Put(_ context.Context, obj blobstore.Object) (string, error) {
	if m.err != nil {
		return "", m.err
	}
	m.objects = append(m.objects, obj)
	return "https://bucket.example.com/" + obj.Name, nil
}

func TestNonFileStoreBackends(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := &memoryStore{}
	srv, err := server.New(cfg, store, nil)
	if err != nil {
		t.Fatalf("server.New: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, "/api/upload-image", bytes.NewReader([]byte{0xff, 0xd8}))
	req.Header.Set("Content-Type", "image/jpeg; charset=binary")
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var resp server.UploadResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !strings.HasPrefix(resp.URL, "https://bucket.example.com/images/") || store.objects[0].ContentType != "image/jpeg" {
		t.Fatalf("unexpected upload %+v / %+v", resp, store.objects)
	}

	rec = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/files/images/x.jpg", nil))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("files should not be served for remote backends, got %d", rec.Code)
	}

	store.err = errors.New("bucket unavailable")
	req = httptest.NewRequest(http.MethodPost, "/api/upload", strings.NewReader(`{}`))
	rec = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusBadGateway {
		t.Fatalf("expected 502 on store failure, got %d", rec.Code)
	}
}
