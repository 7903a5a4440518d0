// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package logging

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// =============================================================================
// Level Tests
// =============================================================================

func TestLevel_String(t *testing.T) {
	tests := []struct {
		level Level
		want  string
	}{
		{LevelDebug, "DEBUG"},
		{LevelInfo, "INFO"},
		{LevelWarn, "WARN"},
		{LevelError, "ERROR"},
		{Level(99), "UNKNOWN"},
		{Level(-1), "UNKNOWN"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			got := tt.level.String()
			if got != tt.want {
				t.Errorf("Level.String() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestLevel_toSlogLevel(t *testing.T) {
	tests := []struct {
		level Level
		want  slog.Level
	}{
		{LevelDebug, slog.LevelDebug},
		{LevelInfo, slog.LevelInfo},
		{LevelWarn, slog.LevelWarn},
		{LevelError, slog.LevelError},
		{Level(99), slog.LevelInfo}, // Unknown defaults to Info
	}

	for _, tt := range tests {
		t.Run(tt.level.String(), func(t *testing.T) {
			got := tt.level.toSlogLevel()
			if got != tt.want {
				t.Errorf("Level.toSlogLevel() = %v, want %v", got, tt.want)
			}
		})
	}
}

// =============================================================================
// Logger Tests
// =============================================================================

func TestNew_DefaultConfig(t *testing.T) {
	logger := New(Config{})
	if logger == nil {
		t.Fatal("New() returned nil")
	}
	if logger.slog == nil {
		t.Error("logger.slog is nil")
	}
	if logger.file != nil {
		t.Error("file logging should be disabled by default")
	}
}

func TestNew_FileLogging(t *testing.T) {
	tmpDir := t.TempDir()

	logger := New(Config{
		Level:   LevelInfo,
		LogDir:  tmpDir,
		Service: "apply-test",
		Quiet:   true,
	})
	defer logger.Close()

	logger.Info("patch applied", "files", 2)

	wantName := "apply-test_" + time.Now().Format("2006-01-02") + ".log"
	content, err := os.ReadFile(filepath.Join(tmpDir, wantName))
	if err != nil {
		t.Fatalf("log file missing: %v", err)
	}
	if !strings.Contains(string(content), "patch applied") {
		t.Errorf("log file missing message: %s", content)
	}
	if !strings.Contains(string(content), `"service":"apply-test"`) {
		t.Errorf("log file missing service attribute: %s", content)
	}
}

func TestNew_LevelFiltering(t *testing.T) {
	tmpDir := t.TempDir()

	logger := New(Config{
		Level:  LevelWarn,
		LogDir: tmpDir,
		Quiet:  true,
	})
	defer logger.Close()

	logger.Info("filtered out")
	logger.Warn("kept")

	wantName := "autopack_" + time.Now().Format("2006-01-02") + ".log"
	content, err := os.ReadFile(filepath.Join(tmpDir, wantName))
	if err != nil {
		t.Fatalf("log file missing: %v", err)
	}
	if strings.Contains(string(content), "filtered out") {
		t.Error("Info message should be filtered at Warn level")
	}
	if !strings.Contains(string(content), "kept") {
		t.Error("Warn message missing")
	}
}

func TestLogger_With(t *testing.T) {
	tmpDir := t.TempDir()

	logger := New(Config{LogDir: tmpDir, Service: "with-test", Quiet: true})
	defer logger.Close()

	child := logger.With("phase_id", "p1")
	child.Info("scoped message")

	wantName := "with-test_" + time.Now().Format("2006-01-02") + ".log"
	content, err := os.ReadFile(filepath.Join(tmpDir, wantName))
	if err != nil {
		t.Fatalf("log file missing: %v", err)
	}
	if !strings.Contains(string(content), `"phase_id":"p1"`) {
		t.Errorf("child attribute missing: %s", content)
	}
}

func TestLogger_CloseIdempotent(t *testing.T) {
	logger := New(Config{LogDir: t.TempDir(), Quiet: true})
	if err := logger.Close(); err != nil {
		t.Fatalf("first Close() error = %v", err)
	}
	if err := logger.Close(); err != nil {
		t.Fatalf("second Close() error = %v", err)
	}
}

func TestMultiHandler_FanOut(t *testing.T) {
	opts := &slog.HandlerOptions{Level: slog.LevelInfo}

	tmpDir := t.TempDir()
	fileA, err := os.Create(filepath.Join(tmpDir, "a.log"))
	if err != nil {
		t.Fatal(err)
	}
	defer fileA.Close()
	fileB, err := os.Create(filepath.Join(tmpDir, "b.log"))
	if err != nil {
		t.Fatal(err)
	}
	defer fileB.Close()

	h := &multiHandler{handlers: []slog.Handler{
		slog.NewJSONHandler(fileA, opts),
		slog.NewTextHandler(fileB, opts),
	}}
	slog.New(h).Info("fan out")

	for _, path := range []string{"a.log", "b.log"} {
		content, err := os.ReadFile(filepath.Join(tmpDir, path))
		if err != nil {
			t.Fatal(err)
		}
		if !strings.Contains(string(content), "fan out") {
			t.Errorf("%s missing record: %s", path, content)
		}
	}

	if !h.Enabled(context.Background(), slog.LevelInfo) {
		t.Error("Enabled() = false for Info")
	}
}

func TestExpandPath(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skip("no home directory")
	}
	if got := expandPath("~/logs"); got != filepath.Join(home, "logs") {
		t.Errorf("expandPath(~/logs) = %q", got)
	}
	if got := expandPath("/var/log"); got != "/var/log" {
		t.Errorf("expandPath(/var/log) = %q", got)
	}
}
