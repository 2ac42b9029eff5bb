package scheduler

import (
	"context"
	"sync"
)

// Loader loads a detector at most once per process. A failed load leaves it unloaded so a later
// session may try again.
type Loader struct {
	detector Detector

	mu     sync.Mutex
	loaded bool
}

func NewLoader(d Detector) *Loader {
	return &Loader{detector: d}
}

// Load initializes the detector unless a previous call already succeeded.
func (l *Loader) Load(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.loaded {
		return nil
	}
	if err := l.detector.Load(ctx); err != nil {
		return err
	}
	l.loaded = true
	return nil
}

func (l *Loader) Loaded() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.loaded
}
