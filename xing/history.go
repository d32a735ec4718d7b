package main

import (
	"sync"
	"time"

	"github.com/itohio/goxing/pkg/sample"
)

// history keeps the samples of the last span, oldest first.
type history struct {
	mu      sync.Mutex
	span    time.Duration
	samples []sample.Sample
}

func newHistory(span time.Duration) *history {
	return &history{span: span, samples: make([]sample.Sample, 0, 1024)}
}

// Add appends s and drops samples older than span relative to s.
func (h *history) Add(s sample.Sample) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.samples = append(h.samples, s)
	cutoff := s.Timestamp.Add(-h.span)
	drop := 0
	for drop < len(h.samples) && h.samples[drop].Timestamp.Before(cutoff) {
		drop++
	}
	if drop > 0 {
		h.samples = append(h.samples[:0], h.samples[drop:]...)
	}
}

// Snapshot returns a copy of the kept samples.
func (h *history) Snapshot() []sample.Sample {
	h.mu.Lock()
	defer h.mu.Unlock()
	result := make([]sample.Sample, len(h.samples))
	copy(result, h.samples)
	return result
}

// Reset drops every sample.
func (h *history) Reset() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.samples = h.samples[:0]
}
