package logging

import (
	"bytes"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"github.com/nerrad567/greenhouse-catalog/internal/infrastructure/config"
)

// newBufferLogger builds a logger that writes JSON lines to buf.
func newBufferLogger(buf *bytes.Buffer, level slog.Level) *Logger {
	lv := new(slog.LevelVar)
	lv.Set(level)
	return newLogger(buf, "json", lv, "catalog", "test")
}

// lines decodes every JSON line written to buf.
func lines(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()
	var out []map[string]any
	for _, raw := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if raw == "" {
			continue
		}
		var entry map[string]any
		if err := json.Unmarshal([]byte(raw), &entry); err != nil {
			t.Fatalf("failed to parse JSON line %q: %v", raw, err)
		}
		out = append(out, entry)
	}
	return out
}

func TestNew_LevelFromConfig(t *testing.T) {
	tests := []struct {
		name  string
		level string
		want  slog.Level
	}{
		{"debug", "debug", slog.LevelDebug},
		{"warn", "warn", slog.LevelWarn},
		{"empty is info", "", slog.LevelInfo},
		{"unknown falls back to info", "verbose", slog.LevelInfo},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger := New(config.LoggingConfig{Level: tt.level, Format: "json", Output: "stdout"}, "catalog", "1.0.0")
			if got := logger.Level(); got != tt.want {
				t.Errorf("Level() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestNew_TextFormat(t *testing.T) {
	var buf bytes.Buffer
	lv := new(slog.LevelVar)
	logger := newLogger(&buf, "TEXT", lv, "deviceagent", "1.0.0")

	logger.Info("started")

	out := buf.String()
	if !strings.Contains(out, "service=deviceagent") {
		t.Errorf("expected text output with service field, got %q", out)
	}
	if strings.HasPrefix(out, "{") {
		t.Errorf("expected text output, got JSON %q", out)
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    slog.Level
		wantErr bool
	}{
		{name: "debug level", input: "debug", want: slog.LevelDebug},
		{name: "info level", input: "info", want: slog.LevelInfo},
		{name: "warn level", input: "warn", want: slog.LevelWarn},
		{name: "warning level", input: "warning", want: slog.LevelWarn},
		{name: "error level", input: "error", want: slog.LevelError},
		{name: "empty is info", input: "", want: slog.LevelInfo},
		{name: "case insensitive", input: " DEBUG ", want: slog.LevelDebug},
		{name: "unknown", input: "trace", want: slog.LevelInfo, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseLevel(tt.input)
			if tt.wantErr {
				if !errors.Is(err, ErrUnknownLevel) {
					t.Fatalf("ParseLevel(%q) error = %v, want ErrUnknownLevel", tt.input, err)
				}
			} else if err != nil {
				t.Fatalf("ParseLevel(%q) unexpected error: %v", tt.input, err)
			}
			if got != tt.want {
				t.Errorf("ParseLevel(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestLogger_OutputContainsDefaultFields(t *testing.T) {
	var buf bytes.Buffer
	logger := newBufferLogger(&buf, slog.LevelInfo)

	logger.Info("test message", "key", "value")

	entries := lines(t, &buf)
	if len(entries) != 1 {
		t.Fatalf("expected 1 line, got %d", len(entries))
	}
	entry := entries[0]
	if entry["service"] != "catalog" || entry["version"] != "test" {
		t.Errorf("missing default fields: %v", entry)
	}
	if entry["msg"] != "test message" || entry["key"] != "value" {
		t.Errorf("unexpected entry: %v", entry)
	}
}

func TestLogger_Component(t *testing.T) {
	var buf bytes.Buffer
	logger := newBufferLogger(&buf, slog.LevelInfo)

	logger.Component(ComponentReaper).Info("sweep complete", "expired", 2)
	logger.Info("root line")

	entries := lines(t, &buf)
	if len(entries) != 2 {
		t.Fatalf("expected 2 lines, got %d", len(entries))
	}
	if entries[0]["component"] != "reaper" {
		t.Errorf("component = %v, want reaper", entries[0]["component"])
	}
	if _, ok := entries[1]["component"]; ok {
		t.Error("component attribute leaked into the parent logger")
	}
}

func TestLogger_Peer(t *testing.T) {
	var buf bytes.Buffer
	logger := newBufferLogger(&buf, slog.LevelInfo)

	logger.Component(ComponentRegistrar).Peer("devices", 7).Info("heartbeat")

	entry := lines(t, &buf)[0]
	if entry["component"] != "registrar" || entry["target"] != "devices" {
		t.Errorf("unexpected entry: %v", entry)
	}
	// JSON numbers decode as float64.
	if entry["peer_id"] != float64(7) {
		t.Errorf("peer_id = %v, want 7", entry["peer_id"])
	}
}

func TestLogger_SetLevelSharedByChildren(t *testing.T) {
	var buf bytes.Buffer
	root := newBufferLogger(&buf, slog.LevelInfo)
	child := root.Component(ComponentLocator)

	child.Debug("hidden")
	if buf.Len() != 0 {
		t.Fatalf("debug line written at info level: %q", buf.String())
	}

	if err := root.SetLevel("debug"); err != nil {
		t.Fatalf("SetLevel() error = %v", err)
	}
	child.Debug("visible")
	if !strings.Contains(buf.String(), "visible") {
		t.Error("child did not pick up the root level change")
	}

	if err := child.SetLevel("error"); err != nil {
		t.Fatalf("SetLevel() error = %v", err)
	}
	if root.Level() != slog.LevelError {
		t.Errorf("root level = %v, want error", root.Level())
	}
}

func TestLogger_SetLevelUnknownKeepsLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := newBufferLogger(&buf, slog.LevelWarn)

	err := logger.SetLevel("chatty")
	if !errors.Is(err, ErrUnknownLevel) {
		t.Fatalf("SetLevel() error = %v, want ErrUnknownLevel", err)
	}
	if logger.Level() != slog.LevelWarn {
		t.Errorf("level = %v, want warn", logger.Level())
	}
}

func TestLogger_ToggleDebug(t *testing.T) {
	var buf bytes.Buffer
	logger := newBufferLogger(&buf, slog.LevelWarn)

	if got := logger.toggleDebug(slog.LevelWarn); got != slog.LevelDebug {
		t.Fatalf("first toggle = %v, want debug", got)
	}
	if got := logger.toggleDebug(slog.LevelWarn); got != slog.LevelWarn {
		t.Fatalf("second toggle = %v, want warn", got)
	}

	// A process started at debug stays at debug.
	if got := logger.toggleDebug(slog.LevelDebug); got != slog.LevelDebug {
		t.Fatalf("toggle from debug base = %v, want debug", got)
	}
	if got := logger.toggleDebug(slog.LevelDebug); got != slog.LevelDebug {
		t.Fatalf("second toggle from debug base = %v, want debug", got)
	}
}

func TestDefault(t *testing.T) {
	logger := Default("catalog")

	if logger == nil {
		t.Fatal("expected non-nil default logger")
	}
	if logger.Level() != slog.LevelInfo {
		t.Errorf("default level = %v, want info", logger.Level())
	}
}

func TestDiscard(t *testing.T) {
	logger := Discard()

	logger.Component(ComponentAPI).Error("dropped")
	if err := logger.SetLevel("debug"); err != nil {
		t.Fatalf("SetLevel() error = %v", err)
	}
}

func TestNewTo_WritesToGivenWriter(t *testing.T) {
	var buf bytes.Buffer
	logger := NewTo(&buf, config.LoggingConfig{Level: "debug", Format: "text"}, "catalogctl", "1.0.0")

	logger.Debug("using catalog", "url", "http://127.0.0.1:8080")

	out := buf.String()
	if !strings.Contains(out, "using catalog") || !strings.Contains(out, "service=catalogctl") {
		t.Errorf("unexpected output %q", out)
	}
}
