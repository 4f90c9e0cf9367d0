package obslog

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func TestSettingsFromEnvDefaults(t *testing.T) {
	for _, k := range []string{"LOG_LEVEL", "LOG_FORMAT", "LOG_TO_CONSOLE", "LOG_TO_FILE", "LOG_FILE", "LOG_CALLER"} {
		t.Setenv(k, "")
	}
	s := SettingsFromEnv()
	if s.Level != "info" || s.Format != "legacy" || !s.Console || s.ToFile {
		t.Fatalf("unexpected defaults %+v", s)
	}
}

func TestBuildWritesJSONFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "app.log")
	logger, err := Build(Settings{Level: "debug", Format: "json", ToFile: true, FilePath: path})
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	logger.Debug("archive month fetched", zap.Int("month", 3))
	_ = logger.Sync()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	if !strings.Contains(string(data), `"msg":"archive month fetched"`) {
		t.Fatalf("log file missing entry: %s", data)
	}
}

func TestBuildWithoutSinksIsNop(t *testing.T) {
	logger, err := Build(Settings{})
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if logger.Core().Enabled(zapcore.ErrorLevel) {
		t.Fatalf("expected nop logger")
	}
}

func TestSetNilRestoresNop(t *testing.T) {
	Set(nil)
	if L() == nil {
		t.Fatalf("L() returned nil")
	}
}
