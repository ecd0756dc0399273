package app

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestStashHandler_Handle(t *testing.T) {
	ts := time.Date(2024, 6, 15, 14, 30, 45, 0, time.UTC)

	tests := []struct {
		name    string
		opID    string
		level   slog.Level
		message string
		attrs   []slog.Attr
		want    string
	}{
		{
			name:    "basic info message",
			opID:    "op-123",
			level:   slog.LevelInfo,
			message: "file uploaded",
			want:    "2024-06-15T14:30:45Z\tINFO\top-123\tfile uploaded\n",
		},
		{
			name:    "with record attrs",
			opID:    "op-789",
			level:   slog.LevelWarn,
			message: "file access denied",
			attrs:   []slog.Attr{slog.Int64("user_id", 2), slog.Int64("file_id", 42)},
			want:    "2024-06-15T14:30:45Z\tWARN\top-789\tfile access denied\tuser_id=2\tfile_id=42\n",
		},
		{
			name:    "redacts secrets",
			opID:    "op-1",
			level:   slog.LevelInfo,
			message: "login",
			attrs:   []slog.Attr{slog.String("username", "alice"), slog.String("password", "hunter2"), slog.String("Token", "abc")},
			want:    "2024-06-15T14:30:45Z\tINFO\top-1\tlogin\tusername=alice\tpassword=[redacted]\tToken=[redacted]\n",
		},
		{
			name:    "flattens groups",
			opID:    "op-2",
			level:   slog.LevelInfo,
			message: "request",
			attrs:   []slog.Attr{slog.Group("http", slog.String("method", "GET"), slog.Int("status", 200))},
			want:    "2024-06-15T14:30:45Z\tINFO\top-2\trequest\thttp.method=GET\thttp.status=200\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			h := newStashHandler(&buf, tt.opID, slog.LevelDebug)

			r := slog.NewRecord(ts, tt.level, tt.message, 0)
			for _, a := range tt.attrs {
				r.AddAttrs(a)
			}

			if err := h.Handle(context.Background(), r); err != nil {
				t.Fatalf("Handle() error = %v", err)
			}

			if got := buf.String(); got != tt.want {
				t.Errorf("Handle() output =\n%q\nwant:\n%q", got, tt.want)
			}
		})
	}
}

func TestStashHandler_WithAttrs(t *testing.T) {
	var buf bytes.Buffer
	h := newStashHandler(&buf, "op-1", slog.LevelDebug)

	h2 := h.WithAttrs([]slog.Attr{slog.String("request_id", "r-1")}).(*stashHandler)
	if len(h.attrs) != 0 {
		t.Errorf("original handler attrs modified: got %d, want 0", len(h.attrs))
	}

	r := slog.NewRecord(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), slog.LevelInfo, "upload", 0)
	r.AddAttrs(slog.String("path", "1/reports/q1.pdf"))

	if err := h2.Handle(context.Background(), r); err != nil {
		t.Fatalf("Handle() error = %v", err)
	}

	got := buf.String()
	if !strings.Contains(got, "\trequest_id=r-1\tpath=1/reports/q1.pdf\n") {
		t.Errorf("unexpected attr order or content: %q", got)
	}
}

func TestStashHandler_WithGroup(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(newStashHandler(&buf, "op-1", slog.LevelDebug)).WithGroup("api").With("route", "/api/files")

	logger.Info("served", "status", 201)

	got := buf.String()
	if !strings.Contains(got, "api.route=/api/files") || !strings.Contains(got, "api.status=201") {
		t.Errorf("group prefix missing: %q", got)
	}
}

func TestStashHandler_Enabled(t *testing.T) {
	h := newStashHandler(&bytes.Buffer{}, "op", slog.LevelInfo)

	if h.Enabled(context.Background(), slog.LevelDebug) {
		t.Error("Enabled(DEBUG) = true with INFO minimum")
	}
	for _, level := range []slog.Level{slog.LevelInfo, slog.LevelWarn, slog.LevelError} {
		if !h.Enabled(context.Background(), level) {
			t.Errorf("Enabled(%v) = false, want true", level)
		}
	}
}

func TestNewLogger(t *testing.T) {
	dir := t.TempDir()
	var stderr bytes.Buffer

	logger, f, err := newLogger(filepath.Join(dir, "log"), "test-op", &stderr, slog.LevelInfo)
	if err != nil {
		t.Fatalf("newLogger() error = %v", err)
	}
	defer f.Close()

	logger.Info("hello", "k", "v")

	data, err := os.ReadFile(filepath.Join(dir, "log", "stash.log"))
	if err != nil {
		t.Fatalf("reading log file: %v", err)
	}
	if !strings.Contains(string(data), "\ttest-op\thello\tk=v") {
		t.Errorf("log file content = %q", data)
	}
	if stderr.String() != string(data) {
		t.Errorf("stderr = %q, want same as file", stderr.String())
	}
}
