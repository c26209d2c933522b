package main

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/pelletier/go-toml/v2"

	"github.com/wenyongqd/anniversary/internal/blobstore"
	"github.com/wenyongqd/anniversary/internal/config"
	"github.com/wenyongqd/anniversary/internal/logging"
	"github.com/wenyongqd/anniversary/internal/server"
	"github.com/wenyongqd/anniversary/internal/testsupport"
)

type cliTestEnv struct {
	cfg        *config.Config
	configPath string
	gateway    *httptest.Server
	model      *fakeModel
	baseDir    string
}

// fakeModel answers generateContent calls with a fixed PNG or a server fault.
type fakeModel struct {
	server *httptest.Server
	calls  atomic.Int32
	fail   atomic.Bool
}

func newFakeModel(t *testing.T) *fakeModel {
	t.Helper()
	m := &fakeModel{}
	image := base64.StdEncoding.EncodeToString(testsupport.PNG(t, 40, 30))
	m.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		m.calls.Add(1)
		if !strings.HasSuffix(r.URL.Path, ":generateContent") || r.Header.Get("x-goog-api-key") == "" {
			http.Error(w, "bad request", http.StatusBadRequest)
			return
		}
		if m.fail.Load() {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"error":{"code":400,"message":"prompt rejected","status":"INVALID_ARGUMENT"}}`))
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"candidates": []any{map[string]any{
				"content": map[string]any{
					"parts": []any{map[string]any{
						"inlineData": map[string]any{"mimeType": "image/png", "data": image},
					}},
				},
			}},
		})
	}))
	t.Cleanup(m.server.Close)
	return m
}

func setupCLITestEnv(t *testing.T) *cliTestEnv {
	t.Helper()
	t.Setenv("ANNIVERSARY_GATEWAY_URL", "")

	var handler http.Handler
	gw := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		handler.ServeHTTP(w, r)
	}))
	t.Cleanup(gw.Close)

	model := newFakeModel(t)
	cfg := testsupport.NewConfig(t, testsupport.WithGatewayURL(gw.URL), testsupport.WithAPIToken("cli-token"))
	cfg.Generative.BaseURL = model.server.URL
	cfg.Generative.MaxAttempts = 1
	cfg.Share.AppBaseURL = "https://timeline.example/app/"
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("ensure directories: %v", err)
	}

	files, err := blobstore.NewFSStore(cfg.Paths.BlobDir, cfg.Server.PublicBaseURL)
	if err != nil {
		t.Fatalf("NewFSStore: %v", err)
	}
	srv, err := server.New(cfg, files, logging.NewNop())
	if err != nil {
		t.Fatalf("server.New: %v", err)
	}
	handler = srv.Handler()

	baseDir := testsupport.BaseDir(cfg)
	configPath := filepath.Join(baseDir, "config.toml")
	writeTestConfig(t, configPath, cfg)

	return &cliTestEnv{
		cfg:        cfg,
		configPath: configPath,
		gateway:    gw,
		model:      model,
		baseDir:    baseDir,
	}
}

func writeTestConfig(t *testing.T, path string, cfg *config.Config) {
	t.Helper()
	content, err := toml.Marshal(cfg)
	if err != nil {
		t.Fatalf("encode config: %v", err)
	}
	if err := os.WriteFile(path, content, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
}

func runCLI(t *testing.T, args []string, configPath string) (string, string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	var flags []string
	if configPath != "" {
		flags = append(flags, "--config", configPath)
	}
	cmd.SetArgs(append(flags, args...))
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func (env *cliTestEnv) run(t *testing.T, args ...string) string {
	t.Helper()
	out, stderr, err := runCLI(t, args, env.configPath)
	if err != nil {
		t.Fatalf("%s: %v\nstdout: %s\nstderr: %s", strings.Join(args, " "), err, out, stderr)
	}
	return out
}

func (env *cliTestEnv) writePhoto(t *testing.T, name string) string {
	t.Helper()
	path := filepath.Join(env.baseDir, name)
	testsupport.WriteFile(t, path, testsupport.PNG(t, 120, 80))
	return path
}

// listJSON returns the workspace entries in display order.
func (env *cliTestEnv) listJSON(t *testing.T) []listedEntry {
	t.Helper()
	out := env.run(t, "list", "--json")
	var entries []listedEntry
	if err := json.Unmarshal([]byte(out), &entries); err != nil {
		t.Fatalf("decode list output %q: %v", out, err)
	}
	return entries
}

type listedEntry struct {
	ID                string `json:"id"`
	ImageURL          string `json:"imageUrl"`
	Date              string `json:"date"`
	Message           string `json:"message"`
	Status            string `json:"status"`
	GeneratedImageURL string `json:"generatedImageUrl"`
	ErrorDetail       string `json:"errorDetail"`
}

func requireContains(t *testing.T, output, substr string) {
	t.Helper()
	if !strings.Contains(output, substr) {
		t.Fatalf("expected %q to contain %q", output, substr)
	}
}
