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
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

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
			if got := tt.level.String(); got != tt.want {
				t.Errorf("Level.String() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		name string
		want Level
	}{
		{"debug", LevelDebug},
		{"DEBUG", LevelDebug},
		{"info", LevelInfo},
		{"warn", LevelWarn},
		{"warning", LevelWarn},
		{"error", LevelError},
		{" Error ", LevelError},
		{"", LevelInfo},
		{"bogus", LevelInfo},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ParseLevel(tt.name); got != tt.want {
				t.Errorf("ParseLevel(%q) = %v, want %v", tt.name, got, tt.want)
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
		{Level(99), slog.LevelInfo},
	}

	for _, tt := range tests {
		if got := tt.level.toSlogLevel(); got != tt.want {
			t.Errorf("toSlogLevel(%v) = %v, want %v", tt.level, got, tt.want)
		}
	}
}

func TestNew_ZeroConfig(t *testing.T) {
	logger := New(Config{})

	if logger.Slog() == nil {
		t.Fatal("Slog() returned nil")
	}
	// Stderr-only logger has no file to close.
	if err := logger.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
}

func TestNew_FileLogging(t *testing.T) {
	dir := t.TempDir()

	logger := New(Config{
		Level:   LevelDebug,
		LogDir:  dir,
		Service: "codegraph",
		Quiet:   true,
	})
	logger.Slog().Info("graph build finished", "nodes", 42)
	if err := logger.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir() error = %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("got %d log files, want 1", len(entries))
	}
	if !strings.HasPrefix(entries[0].Name(), "codegraph_") {
		t.Errorf("log file name = %q, want codegraph_ prefix", entries[0].Name())
	}

	raw, err := os.ReadFile(filepath.Join(dir, entries[0].Name()))
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	var entry map[string]any
	if err := json.Unmarshal(raw, &entry); err != nil {
		t.Fatalf("log file is not JSON: %v", err)
	}
	if entry["msg"] != "graph build finished" {
		t.Errorf("msg = %q", entry["msg"])
	}
	if entry["service"] != "codegraph" {
		t.Errorf("service = %q, want codegraph", entry["service"])
	}
}

func TestNew_LevelFilter(t *testing.T) {
	dir := t.TempDir()

	logger := New(Config{
		Level:  LevelWarn,
		LogDir: dir,
		Quiet:  true,
	})
	logger.Slog().Info("filtered out")
	logger.Slog().Warn("kept")
	if err := logger.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir() error = %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("got %d log files, want 1", len(entries))
	}
	raw, err := os.ReadFile(filepath.Join(dir, entries[0].Name()))
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	content := string(raw)
	if strings.Contains(content, "filtered out") {
		t.Error("info entry was not filtered at warn level")
	}
	if !strings.Contains(content, "kept") {
		t.Error("warn entry is missing")
	}
}

func TestNew_BadLogDirFallsBackToStderr(t *testing.T) {
	// A file in place of the directory makes MkdirAll fail.
	dir := t.TempDir()
	blocker := filepath.Join(dir, "occupied")
	if err := os.WriteFile(blocker, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	logger := New(Config{LogDir: blocker, Quiet: true})
	defer logger.Close()

	if logger.file != nil {
		t.Error("expected no log file when the directory cannot be created")
	}
	// Logging must still work.
	logger.Slog().Info("still alive")
}

func TestExpandPath(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skip("no home directory in test environment")
	}

	got := expandPath("~/logs")
	want := filepath.Join(home, "logs")
	if got != want {
		t.Errorf("expandPath(~/logs) = %q, want %q", got, want)
	}

	if got := expandPath("/var/log"); got != "/var/log" {
		t.Errorf("expandPath(/var/log) = %q", got)
	}
}
