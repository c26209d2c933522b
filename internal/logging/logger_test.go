package logging_test

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/wenyongqd/anniversary/internal/config"
	"github.com/wenyongqd/anniversary/internal/logging"
	"github.com/wenyongqd/anniversary/internal/services"
)

func TestNewFromConfigWritesJSONLogFile(t *testing.T) {
	cfg := config.Default()
	cfg.Paths.LogDir = t.TempDir()
	cfg.Logging.Level = "info"

	logger, err := logging.NewFromConfig(&cfg)
	if err != nil {
		t.Fatalf("NewFromConfig returned error: %v", err)
	}
	logger.Info("timeline loaded", logging.Int("entries", 2))

	content, err := os.ReadFile(filepath.Join(cfg.Paths.LogDir, logging.LogFileName))
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	var record map[string]any
	if err := json.Unmarshal(bytes.TrimSpace(content), &record); err != nil {
		t.Fatalf("log file is not JSON: %v (%q)", err, content)
	}
	if record["msg"] != "timeline loaded" {
		t.Fatalf("unexpected msg: %v", record["msg"])
	}
	if record["level"] != "info" {
		t.Fatalf("unexpected level: %v", record["level"])
	}
	if _, ok := record["ts"]; !ok {
		t.Fatalf("expected ts key in %v", record)
	}
}

func TestConsoleLoggerOmitsCallerForInfo(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "console-info.log")
	logger, err := logging.New(logging.Options{Format: "console", Level: "info", OutputPaths: []string{logPath}})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}

	logger.Info("message without caller")

	content, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	if strings.Contains(string(content), ".go:") {
		t.Fatalf("expected no caller information in info logs, got %q", content)
	}
}

func TestConsoleLoggerIncludesCallerForDebug(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "console-debug.log")
	logger, err := logging.New(logging.Options{Format: "console", Level: "debug", OutputPaths: []string{logPath}})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}

	logger.Info("message with caller")

	content, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	if !strings.Contains(string(content), ".go:") {
		t.Fatalf("expected caller information in debug logs, got %q", content)
	}
}

func TestConsoleLoggerRendersSubject(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "console-subject.log")
	logger, err := logging.New(logging.Options{Format: "console", Level: "info", OutputPaths: []string{logPath}})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}

	ctx := services.WithPhotoID(context.Background(), "3f1c2b7a-9d2e-4e55-a1a0-2c7d6c1f0b11")
	ctx = services.WithOperation(ctx, "generate")
	component := logging.NewComponentLogger(logger, "timeline")
	logging.WithContext(ctx, component).Info("generation complete", logging.String("note", "two words"))

	content, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	line := string(content)
	if !strings.Contains(line, "INFO timeline [photo 3f1c2b7a/generate]: generation complete") {
		t.Fatalf("unexpected console header: %q", line)
	}
	if !strings.Contains(line, `note="two words"`) {
		t.Fatalf("expected quoted value, got %q", line)
	}
	if strings.Contains(line, "photo_id=") {
		t.Fatalf("photo_id should be folded into the header, got %q", line)
	}
}

func TestNewRejectsUnknownFormat(t *testing.T) {
	if _, err := logging.New(logging.Options{Format: "xml"}); err == nil {
		t.Fatal("expected error for unsupported format")
	}
}

type captureHandler struct {
	records *[]slog.Record
	attrs   []slog.Attr
}

func (h captureHandler) Enabled(context.Context, slog.Level) bool { return true }

func (h captureHandler) Handle(_ context.Context, r slog.Record) error {
	r.AddAttrs(h.attrs...)
	*h.records = append(*h.records, r)
	return nil
}

func (h captureHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return captureHandler{records: h.records, attrs: append(append([]slog.Attr(nil), h.attrs...), attrs...)}
}

func (h captureHandler) WithGroup(string) slog.Handler { return h }

func recordAttrs(r slog.Record) map[string]string {
	out := map[string]string{}
	r.Attrs(func(a slog.Attr) bool {
		out[a.Key] = a.Value.String()
		return true
	})
	return out
}

func TestWithContextAddsFields(t *testing.T) {
	ctx := context.Background()
	ctx = services.WithPhotoID(ctx, "photo-1")
	ctx = services.WithOperation(ctx, "upload")
	ctx = services.WithRequestID(ctx, "req-xyz")

	var records []slog.Record
	logger := slog.New(captureHandler{records: &records})

	logging.WithContext(ctx, logger).Info("contextual log")

	if len(records) != 1 {
		t.Fatalf("expected 1 log entry, got %d", len(records))
	}
	attrs := recordAttrs(records[0])
	for key, want := range map[string]string{
		logging.FieldPhotoID:       "photo-1",
		logging.FieldOperation:     "upload",
		logging.FieldCorrelationID: "req-xyz",
	} {
		if attrs[key] != want {
			t.Fatalf("field %s = %q, want %q", key, attrs[key], want)
		}
	}
}

func TestTeeHandlerDuplicatesRecords(t *testing.T) {
	var first, second []slog.Record
	logger := slog.New(logging.TeeHandler(captureHandler{records: &first}, nil, captureHandler{records: &second}))
	logger.With(logging.String("component", "server")).Warn("upload rejected")

	if len(first) != 1 || len(second) != 1 {
		t.Fatalf("expected one record per handler, got %d and %d", len(first), len(second))
	}
	if recordAttrs(second[0])["component"] != "server" {
		t.Fatalf("expected WithAttrs to reach every handler")
	}
}

func TestErrorWithContextInjectsDefaults(t *testing.T) {
	var records []slog.Record
	logger := slog.New(captureHandler{records: &records})
	logging.ErrorWithContext(logger, "upload failed", "upload_failed", logging.String(logging.FieldErrorHint, "check gateway"))

	attrs := recordAttrs(records[0])
	if attrs[logging.FieldEventType] != "upload_failed" {
		t.Fatalf("unexpected event_type %q", attrs[logging.FieldEventType])
	}
	if attrs[logging.FieldErrorHint] != "check gateway" {
		t.Fatalf("caller hint should win, got %q", attrs[logging.FieldErrorHint])
	}
}

func TestURLElidesLongQueryValues(t *testing.T) {
	long := strings.Repeat("A", 200)
	attr := logging.URL("link", "https://timeline.example/app/?data="+long)
	got := attr.Value.String()
	if strings.Contains(got, long) {
		t.Fatalf("expected data value to be elided, got %q", got)
	}
	if !strings.HasPrefix(got, "https://timeline.example/app/?data=AAAA") {
		t.Fatalf("unexpected elided url %q", got)
	}

	short := "https://gw.example/files/images/a.jpg?v=1"
	if got := logging.URL("image_url", short).Value.String(); got != short {
		t.Fatalf("short url changed: %q", got)
	}
}

func TestJSONLogTruncatesLargeValues(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "big.log")
	logger, err := logging.New(logging.Options{Format: "json", Level: "info", OutputPaths: []string{logPath}})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	logger.Info("payload", logging.String("data_url", "data:image/png;base64,"+strings.Repeat("x", 5000)))

	content, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	var record map[string]any
	if err := json.Unmarshal(bytes.TrimSpace(content), &record); err != nil {
		t.Fatalf("log file is not JSON: %v", err)
	}
	value, _ := record["data_url"].(string)
	if len(value) > 1100 || !strings.HasSuffix(value, "(5022 bytes)") {
		t.Fatalf("expected truncated value, got %d chars ending %q", len(value), value[len(value)-20:])
	}
}

func TestTransitionGroupsStatus(t *testing.T) {
	var records []slog.Record
	logger := slog.New(captureHandler{records: &records})
	logger.Info("generation started", logging.Transition("idle", "pending"))

	var group []slog.Attr
	records[0].Attrs(func(a slog.Attr) bool {
		if a.Key == logging.FieldStatus {
			group = a.Value.Group()
		}
		return true
	})
	if len(group) != 2 || group[0].Value.String() != "idle" || group[1].Value.String() != "pending" {
		t.Fatalf("unexpected status group %v", group)
	}
}
