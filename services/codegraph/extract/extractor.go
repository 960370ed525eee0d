// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package extract turns source files into the generic parse trees the graph
// ingestor consumes. Each language has its own tree-sitter extractor; the
// registry picks one by file extension.
package extract

import (
	"context"
	"errors"
	"sync"

	"github.com/AleutianAI/codegraph/services/codegraph/datatypes"
)

// DefaultMaxFileSize is the largest source file an extractor accepts.
const DefaultMaxFileSize = 10 * 1024 * 1024 // 10MB

var (
	// ErrFileTooLarge is returned when content exceeds the size limit.
	ErrFileTooLarge = errors.New("file exceeds maximum size")

	// ErrInvalidContent is returned for content that is not valid UTF-8.
	ErrInvalidContent = errors.New("invalid content")
)

// Extractor extracts the structural tree of one source file.
//
// Implementations must be safe for concurrent use; each Extract call creates
// its own tree-sitter parser internally.
type Extractor interface {
	// Extract parses content and returns the file's structural tree. The
	// tree contains class and function nodes only; syntactically invalid
	// files yield partial trees rather than errors where possible.
	Extract(ctx context.Context, content []byte, filePath string) (*datatypes.FileTree, error)

	// Language returns the canonical lowercase language name.
	Language() string

	// Extensions returns the file extensions this extractor handles,
	// including the leading dot.
	Extensions() []string
}

// Registry maps file extensions and language names to extractors.
//
// Thread safe: registration takes a write lock, lookups a read lock.
type Registry struct {
	mu          sync.RWMutex
	byLanguage  map[string]Extractor
	byExtension map[string]Extractor
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		byLanguage:  make(map[string]Extractor),
		byExtension: make(map[string]Extractor),
	}
}

// DefaultRegistry returns a registry with all built-in extractors.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register(NewPythonExtractor())
	r.Register(NewGoExtractor())
	return r
}

// Register adds an extractor under its language and all its extensions,
// overwriting previous registrations.
func (r *Registry) Register(e Extractor) {
	if e == nil {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.byLanguage[e.Language()] = e
	for _, ext := range e.Extensions() {
		r.byExtension[ext] = e
	}
}

// GetByLanguage returns the extractor for a language name.
func (r *Registry) GetByLanguage(language string) (Extractor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.byLanguage[language]
	return e, ok
}

// GetByExtension returns the extractor for a file extension (with dot).
func (r *Registry) GetByExtension(ext string) (Extractor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.byExtension[ext]
	return e, ok
}

// Extensions returns all registered file extensions.
func (r *Registry) Extensions() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	extensions := make([]string, 0, len(r.byExtension))
	for ext := range r.byExtension {
		extensions = append(extensions, ext)
	}
	return extensions
}
