package slogutil

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"
)

func TestLineHandler_Format(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&buf, slog.LevelInfo)

	logger.Info("Run started", "epoch", 3, "root", "#project")

	line := strings.TrimSuffix(buf.String(), "\n")
	_, rest, ok := strings.Cut(line, " ")
	if !ok {
		t.Fatalf("missing timestamp: %q", line)
	}
	if want := "[info] Run started | epoch=3 root=#project"; rest != want {
		t.Errorf("line = %q, want %q", rest, want)
	}
}

func TestLineHandler_LevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&buf, slog.LevelWarn)

	logger.Debug("debug message")
	logger.Info("info message")
	logger.Warn("warn message")
	logger.Error("error message")

	output := buf.String()
	for _, hidden := range []string{"debug message", "info message"} {
		if strings.Contains(output, hidden) {
			t.Errorf("%q should be filtered", hidden)
		}
	}
	for _, shown := range []string{"[warn] warn message", "[error] error message"} {
		if !strings.Contains(output, shown) {
			t.Errorf("%q missing from %q", shown, output)
		}
	}
}

func TestLineHandler_GroupsAndAttrs(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&buf, slog.LevelDebug).
		With("run", 7).
		WithGroup("query").
		With("tag", "#a")

	logger.Debug("done", "rows", 2, slog.Group("timing", "ms", 12))

	want := " | run=7 query.tag=#a query.rows=2 query.timing.ms=12\n"
	if !strings.HasSuffix(buf.String(), want) {
		t.Errorf("output = %q, want suffix %q", buf.String(), want)
	}
}

func TestLineHandler_QuotesValues(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&buf, slog.LevelDebug)

	logger.Debug("query", "text", "TABLE x\nGROUP BY Tag", "tag", "#a", "error", errors.New("no such table"), "empty", "")

	output := buf.String()
	if strings.Count(output, "\n") != 1 {
		t.Errorf("record should occupy a single line, got: %q", output)
	}
	for _, want := range []string{
		`text="TABLE x\nGROUP BY Tag"`,
		"tag=#a",
		`error="no such table"`,
		`empty=""`,
	} {
		if !strings.Contains(output, want) {
			t.Errorf("missing %s in %s", want, output)
		}
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input   string
		want    slog.Level
		wantErr bool
	}{
		{"debug", slog.LevelDebug, false},
		{"INFO", slog.LevelInfo, false},
		{"warn", slog.LevelWarn, false},
		{"warning", slog.LevelWarn, false},
		{"error", slog.LevelError, false},
		{"silent", LevelSilent, false},
		{"unknown", 0, true},
		{"", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseLevel(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseLevel(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if !tt.wantErr && got != tt.want {
				t.Errorf("ParseLevel(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}

	if got := LevelFromString("unknown"); got != slog.LevelInfo {
		t.Errorf("LevelFromString fallback = %v, want info", got)
	}
}

func TestLevelFromVerbosity(t *testing.T) {
	tests := []struct {
		verbosity int
		quiet     bool
		expected  slog.Level
	}{
		{0, false, slog.LevelWarn},
		{1, false, slog.LevelInfo},
		{2, false, slog.LevelDebug},
		{3, false, slog.LevelDebug},
		{0, true, LevelSilent},
		{5, true, LevelSilent},
	}

	for _, tt := range tests {
		got := LevelFromVerbosity(tt.verbosity, tt.quiet)
		if got != tt.expected {
			t.Errorf("LevelFromVerbosity(%d, %v) = %v, want %v",
				tt.verbosity, tt.quiet, got, tt.expected)
		}
	}
}

func TestNewDiscardLogger(t *testing.T) {
	logger := NewDiscardLogger()
	if logger.Enabled(context.Background(), slog.LevelError) {
		t.Error("discard logger should not be enabled")
	}
	logger.Error("dropped")
}

func TestTeeHandler(t *testing.T) {
	var info, warn bytes.Buffer
	logger := NewTeeLogger(
		NewLineHandler(&info, &slog.HandlerOptions{Level: slog.LevelInfo}),
		NewLineHandler(&warn, &slog.HandlerOptions{Level: slog.LevelWarn}),
	).With("vault", "notes")

	logger.Info("info message")
	logger.Warn("warn message")

	if !strings.Contains(info.String(), "info message") || !strings.Contains(info.String(), "warn message") {
		t.Errorf("info handler = %q, want both records", info.String())
	}
	if strings.Contains(warn.String(), "info message") {
		t.Error("warn handler should not get the info record")
	}
	if !strings.Contains(warn.String(), "warn message | vault=notes") {
		t.Errorf("warn handler = %q, want the warn record with attrs", warn.String())
	}
}
