package logging

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestDailyWriterCreatesDayDirectory(t *testing.T) {
	dir := t.TempDir()
	w, err := newDailyWriter(filepath.Join(dir, "engine.log"), 1, 1, 7, false)
	if err != nil {
		t.Fatalf("newDailyWriter failed: %v", err)
	}
	if _, err := w.Write([]byte("hello\n")); err != nil {
		t.Fatalf("Write failed: %v", err)
	}

	day := time.Now().Format("2006-01-02")
	path := filepath.Join(dir, day, "engine.log")
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("expected log file at %s: %v", path, err)
	}
	if string(data) != "hello\n" {
		t.Fatalf("unexpected content: %q", string(data))
	}
}

func TestDailyWriterRejectsEmptyName(t *testing.T) {
	if _, err := newDailyWriter("", 1, 1, 7, false); err == nil {
		t.Fatal("expected an error for an empty log path")
	}
}

func TestLoggerLevels(t *testing.T) {
	dir := t.TempDir()
	logger, err := NewLogger(filepath.Join(dir, "engine.log"), 1, 1, 7, false, WARNING)
	if err != nil {
		t.Fatalf("NewLogger failed: %v", err)
	}

	logger.Debug("debug %d", 1)
	logger.Info("info %d", 2)
	logger.Warning("warning %d", 3)
	logger.Error("error %d", 4)

	day := time.Now().Format("2006-01-02")
	data, err := os.ReadFile(filepath.Join(dir, day, "engine.log"))
	if err != nil {
		t.Fatalf("failed to read log file: %v", err)
	}
	content := string(data)
	for _, absent := range []string{"[DEBUG]", "[INFO]"} {
		if strings.Contains(content, absent) {
			t.Fatalf("level below WARNING leaked into the log: %s", absent)
		}
	}
	for _, present := range []string{"[WARN]", "[ERROR]"} {
		if !strings.Contains(content, present) {
			t.Fatalf("expected %s in log, got %q", present, content)
		}
	}

	logger.ChangeLogLevel(DEBUG)
	logger.Debug("debug %d", 5)
	data, _ = os.ReadFile(filepath.Join(dir, day, "engine.log"))
	if !strings.Contains(string(data), "[DEBUG]") {
		t.Fatal("debug line missing after lowering the level")
	}
}
