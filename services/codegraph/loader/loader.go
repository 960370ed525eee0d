// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package loader reads source files out of a checked-out repository tree,
// honoring .gitignore and skipping the usual build and dependency
// directories. It feeds the extract package, so it only surfaces files the
// extractor registry can handle.
package loader

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	ignore "github.com/sabhiram/go-gitignore"
)

// DefaultMaxFileSize caps the size of files the loader reads.
const DefaultMaxFileSize = 10 * 1024 * 1024 // 10MB

// skipDirs are never descended into regardless of .gitignore.
var skipDirs = map[string]struct{}{
	"node_modules": {},
	"vendor":       {},
	"__pycache__":  {},
	"venv":         {},
	"dist":         {},
	"build":        {},
	"target":       {},
	"egg-info":     {},
}

// Document is one loaded source file. Path is relative to the load root
// with forward slashes.
type Document struct {
	Path    string
	Content []byte
}

// Option configures a Loader.
type Option func(*Loader)

// WithMaxFileSize sets the per-file size cap.
func WithMaxFileSize(bytes int64) Option {
	return func(l *Loader) {
		if bytes > 0 {
			l.maxFileSize = bytes
		}
	}
}

// Loader walks repository trees and reads the files whose extensions it was
// built with.
type Loader struct {
	extensions  map[string]struct{}
	maxFileSize int64
}

// New creates a loader accepting the given file extensions (with dot).
func New(extensions []string, opts ...Option) *Loader {
	l := &Loader{
		extensions:  make(map[string]struct{}, len(extensions)),
		maxFileSize: DefaultMaxFileSize,
	}
	for _, ext := range extensions {
		l.extensions[ext] = struct{}{}
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Load walks root and returns every matching file, sorted by path.
//
// Unreadable files and directories are skipped with a diagnostic rather
// than failing the walk; an invalid root is an error.
func (l *Loader) Load(ctx context.Context, root string) ([]Document, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("stat load root: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("load root %q is not a directory", root)
	}

	gi := loadGitignore(root)

	var docs []Document
	err = filepath.WalkDir(root, func(path string, d os.DirEntry, walkErr error) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		if walkErr != nil {
			slog.Warn("Skipping unreadable path", "path", path, "error", walkErr)
			return nil
		}

		name := d.Name()

		if d.IsDir() {
			if path == root {
				return nil
			}
			if _, skip := skipDirs[name]; skip || strings.HasPrefix(name, ".") {
				return filepath.SkipDir
			}
			return nil
		}

		if strings.HasPrefix(name, ".") {
			return nil
		}
		if d.Type()&os.ModeSymlink != 0 {
			return nil
		}

		rel, err := filepath.Rel(root, path)
		if err != nil {
			return nil
		}
		rel = filepath.ToSlash(rel)

		if gi != nil && gi.MatchesPath(rel) {
			return nil
		}
		if _, ok := l.extensions[filepath.Ext(name)]; !ok {
			return nil
		}

		fi, err := d.Info()
		if err != nil {
			slog.Warn("Skipping file without info", "path", rel, "error", err)
			return nil
		}
		if fi.Size() > l.maxFileSize {
			slog.Warn("Skipping oversized file", "path", rel, "size", fi.Size())
			return nil
		}

		content, err := os.ReadFile(path)
		if err != nil {
			slog.Warn("Skipping unreadable file", "path", rel, "error", err)
			return nil
		}
		docs = append(docs, Document{Path: rel, Content: content})
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(docs, func(i, j int) bool { return docs[i].Path < docs[j].Path })

	slog.Info("Loaded codebase", "root", root, "files", len(docs))
	return docs, nil
}

func loadGitignore(root string) *ignore.GitIgnore {
	path := filepath.Join(root, ".gitignore")
	gi, err := ignore.CompileIgnoreFile(path)
	if err != nil {
		return nil
	}
	return gi
}
