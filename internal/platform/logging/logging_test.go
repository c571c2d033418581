package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
)

func TestParseLevel(t *testing.T) {
	level, err := ParseLevel("warn")
	if err != nil || level != slog.LevelWarn {
		t.Fatalf("ParseLevel(warn)=%v err=%v", level, err)
	}
	if _, err := ParseLevel("loud"); err == nil {
		t.Fatalf("expected error")
	}
}

func TestNewWithWriterFiltersAndTags(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWithWriter(&buf, slog.LevelWarn, "staffline")
	logger.Info("dropped")
	logger.Warn("kept", "project_id", "p-1")

	var line map[string]any
	if err := json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &line); err != nil {
		t.Fatalf("unmarshal %q: %v", buf.String(), err)
	}
	if line["msg"] != "kept" || line["service"] != "staffline" || line["project_id"] != "p-1" {
		t.Fatalf("line=%v", line)
	}
}

func TestNewWritesRotatedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "staffline.log")
	logger, closer := New(Config{Level: slog.LevelInfo, File: path, MaxSizeMB: 1}, "staffline")
	logger.Info("hello")
	if err := closer.Close(); err != nil {
		t.Fatalf("Close() err=%v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	if !bytes.Contains(data, []byte(`"msg":"hello"`)) {
		t.Fatalf("log file=%q", data)
	}
}

func TestConfigValidate(t *testing.T) {
	if err := (Config{}).Validate(); err != nil {
		t.Fatalf("stdout-only config err=%v", err)
	}
	if err := (Config{File: "x.log"}).Validate(); err == nil {
		t.Fatalf("expected error for zero max size")
	}
}
