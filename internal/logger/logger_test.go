package logger

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"faceid-kiosk/config"

	log "github.com/sirupsen/logrus"
)

func TestInitWritesToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "kiosk.log")

	closer, err := Init(config.LogConfig{Level: "debug", File: path})
	if err != nil {
		t.Fatalf("Init failed: %v", err)
	}
	if closer == nil {
		t.Fatal("Expected a closer for the log file")
	}
	defer func() {
		log.SetOutput(os.Stdout)
		closer.Close()
	}()

	if log.GetLevel() != log.DebugLevel {
		t.Errorf("Expected debug level, got %s", log.GetLevel())
	}

	log.Info("hello from test")

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to read log file: %v", err)
	}
	if !strings.Contains(string(data), "hello from test") {
		t.Errorf("Expected log file to contain message, got %q", string(data))
	}
}

func TestInitInvalidLevelFallsBack(t *testing.T) {
	closer, err := Init(config.LogConfig{Level: "loud"})
	if err != nil {
		t.Fatalf("Init failed: %v", err)
	}
	if closer != nil {
		t.Error("Expected no closer without a log file")
	}
	if log.GetLevel() != log.InfoLevel {
		t.Errorf("Expected info level fallback, got %s", log.GetLevel())
	}
}
