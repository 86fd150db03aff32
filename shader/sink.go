// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package shader

import (
	"sort"
	"sync"
)

// Artifact names written by Compile.
const (
	ArtifactDump  = "debug.txt"
	ArtifactSPIRV = "debug.spv"
	ArtifactGLSL  = "debug.glsl"
	ArtifactMSL   = "debug.metal"
	ArtifactHLSL  = "debug.hlsl"
)

// Sink receives named debug artifacts. An implementation must either store
// an artifact completely or return an error.
type Sink interface {
	WriteArtifact(name string, data []byte) error
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(name string, data []byte) error

// WriteArtifact calls f.
func (f SinkFunc) WriteArtifact(name string, data []byte) error { return f(name, data) }

// MemorySink keeps artifacts in memory.
type MemorySink struct {
	mu        sync.Mutex
	artifacts map[string][]byte
}

// NewMemorySink returns an empty MemorySink.
func NewMemorySink() *MemorySink {
	return &MemorySink{artifacts: make(map[string][]byte)}
}

// WriteArtifact stores a copy of data under name, replacing any previous value.
func (s *MemorySink) WriteArtifact(name string, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.artifacts[name] = append([]byte(nil), data...)
	return nil
}

// Get returns the artifact stored under name.
func (s *MemorySink) Get(name string) ([]byte, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.artifacts[name]
	return b, ok
}

// Names returns the stored artifact names in sorted order.
func (s *MemorySink) Names() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	names := make([]string, 0, len(s.artifacts))
	for n := range s.artifacts {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
