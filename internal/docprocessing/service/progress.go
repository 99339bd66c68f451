package service

import (
	"sync"

	"github.com/medflow/medical-ocr/internal/docprocessing/domain"
)

// tracker forwards progress clamped to 0..100 and never lets the
// percentage go backwards, e.g. when a fallback strategy restarts its
// own count.
type tracker struct {
	mu   sync.Mutex
	last int
	sink domain.ProgressFunc
}

func newTracker(sink domain.ProgressFunc) *tracker {
	return &tracker{sink: sink}
}

func (t *tracker) report(percent int, message string) {
	t.forward(domain.Progress{Percent: percent, Message: message})
}

func (t *tracker) forward(p domain.Progress) {
	t.mu.Lock()
	defer t.mu.Unlock()

	p.Percent = max(0, min(100, p.Percent))
	if p.Percent < t.last {
		p.Percent = t.last
	}
	t.last = p.Percent

	if t.sink != nil {
		t.sink(p)
	}
}

// fn adapts the tracker to a domain.ProgressFunc for renderers.
func (t *tracker) fn() domain.ProgressFunc {
	return t.forward
}
