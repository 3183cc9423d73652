package logging

import (
	"os"
	"strings"
	"sync"
	"testing"
)

// setupTestDir points the package at a temp log directory and resets the
// process-global session state.
func setupTestDir(t *testing.T) {
	t.Helper()

	origLogDir := logDir
	origInitErr := initErr
	origSessionID := sessionID

	logDir = t.TempDir()
	initErr = nil
	initOnce = sync.Once{}
	initOnce.Do(func() {}) // mark directory init done
	sessionID = ""
	sessionIDOnce = sync.Once{}

	t.Cleanup(func() {
		logDir = origLogDir
		initErr = origInitErr
		initOnce = sync.Once{}
		if origLogDir != "" || origInitErr != nil {
			initOnce.Do(func() {}) // directory init had already run
		}
		sessionID = origSessionID
		sessionIDOnce = sync.Once{}
		if origSessionID != "" {
			sessionIDOnce.Do(func() {}) // session ID had already been assigned
		}
	})
}

func TestNewLogger(t *testing.T) {
	setupTestDir(t)

	logger, err := NewLogger("analyzer")
	if err != nil {
		t.Fatalf("Failed to create logger: %v", err)
	}
	defer logger.Close()

	if logger.component != "analyzer" {
		t.Errorf("Expected component 'analyzer', got %q", logger.component)
	}
	if logger.SessionID() == "" {
		t.Error("Expected non-empty session ID")
	}
	if _, err := os.Stat(logger.LogPath()); err != nil {
		t.Errorf("Log file does not exist at %s: %v", logger.LogPath(), err)
	}
}

func TestLoggersShareSessionFile(t *testing.T) {
	setupTestDir(t)

	first, err := NewLogger("analyzer")
	if err != nil {
		t.Fatalf("Failed to create logger: %v", err)
	}
	defer first.Close()

	second, err := NewLogger("executor")
	if err != nil {
		t.Fatalf("Failed to create logger: %v", err)
	}
	defer second.Close()

	if first.LogPath() != second.LogPath() {
		t.Errorf("Components should share the session file: %q vs %q", first.LogPath(), second.LogPath())
	}
	if first.SessionID() != second.SessionID() {
		t.Error("Components should share the process session ID")
	}
}

func TestLoggerLevelsAndRunTag(t *testing.T) {
	setupTestDir(t)

	logger, err := NewLogger("executor")
	if err != nil {
		t.Fatalf("Failed to create logger: %v", err)
	}
	defer logger.Close()

	logger.Infof("plain message %d", 1)
	logger.Errorf("broken: %v", "nope")

	runLogger := logger.WithRun("run-123")
	runLogger.Infof("tagged message")

	data, err := os.ReadFile(logger.LogPath())
	if err != nil {
		t.Fatalf("Failed to read log file: %v", err)
	}
	content := string(data)

	for _, want := range []string{
		"[executor] [INFO] plain message 1",
		"[executor] [ERROR] broken: nope",
		"[run=run-123] tagged message",
	} {
		if !strings.Contains(content, want) {
			t.Errorf("Log file missing %q in:\n%s", want, content)
		}
	}
	if strings.Contains(content, "[run=run-123] plain message") {
		t.Error("Run tag must not leak onto the parent logger's lines")
	}
}

func TestFallbackLogger(t *testing.T) {
	setupTestDir(t)
	initErr = os.ErrPermission

	logger, err := NewLogger("cli")
	if err == nil {
		t.Fatal("Expected an error when the log directory is unavailable")
	}
	if logger == nil {
		t.Fatal("A fallback logger must still be returned")
	}
	defer logger.Close()

	if logger.LogPath() != "" {
		t.Errorf("Fallback logger should have no file path, got %q", logger.LogPath())
	}
	// Must not panic without a file.
	logger.Warnf("running on stderr")
}

func TestLoggerCloseIsIdempotent(t *testing.T) {
	setupTestDir(t)

	logger, err := NewLogger("cli")
	if err != nil {
		t.Fatalf("Failed to create logger: %v", err)
	}

	if err := logger.Close(); err != nil {
		t.Errorf("First close failed: %v", err)
	}
	if err := logger.Close(); err != nil {
		t.Errorf("Second close should be a no-op, got %v", err)
	}

	child := logger.WithRun("run-9")
	if err := child.Close(); err != nil {
		t.Errorf("Child close shares the parent's close state, got %v", err)
	}
}
