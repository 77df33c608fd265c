package workspace

import (
	"context"
	"sync"
	"time"
)

// DefaultAutosaveDelay is the quiet period after the last keystroke before
// the pending content is written out.
const DefaultAutosaveDelay = time.Second

// SaveFunc persists one artifact's content. The autosaver funnels every
// write through it; wiring it to the optimistic cache keeps rollback
// semantics intact.
type SaveFunc func(ctx context.Context, artifactID, content string) error

// Autosaver debounces per-artifact content writes. Each artifact owns one
// pending-write slot: rapid successive writes overwrite the slot and reset
// its timer, so only the most recent content is sent, once per quiet
// period. Flush and Close drain deterministically, for artifact switch and
// teardown.
type Autosaver struct {
	mu      sync.Mutex
	delay   time.Duration
	save    SaveFunc
	onError func(artifactID string, err error)
	pending map[string]*pendingWrite
	closed  bool
	wg      sync.WaitGroup
}

type pendingWrite struct {
	content string
	timer   *time.Timer
}

// NewAutosaver creates a debounced writer. onError, when non-nil, receives
// failures from timer-driven saves, which have no caller to return to.
func NewAutosaver(delay time.Duration, save SaveFunc, onError func(artifactID string, err error)) *Autosaver {
	if delay <= 0 {
		delay = DefaultAutosaveDelay
	}
	return &Autosaver{
		delay:   delay,
		save:    save,
		onError: onError,
		pending: make(map[string]*pendingWrite),
	}
}

// Queue records content as the artifact's pending write and (re)starts its
// trailing timer. Returns immediately.
func (a *Autosaver) Queue(artifactID, content string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return
	}

	if slot, ok := a.pending[artifactID]; ok {
		slot.content = content
		slot.timer.Reset(a.delay)
		return
	}

	slot := &pendingWrite{content: content}
	slot.timer = time.AfterFunc(a.delay, func() {
		a.fire(artifactID)
	})
	a.pending[artifactID] = slot
}

// Pending reports whether the artifact has a queued write that has not
// fired yet.
func (a *Autosaver) Pending(artifactID string) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	_, ok := a.pending[artifactID]
	return ok
}

// fire runs when an artifact's quiet period elapses.
func (a *Autosaver) fire(artifactID string) {
	a.mu.Lock()
	slot, ok := a.pending[artifactID]
	if !ok {
		a.mu.Unlock()
		return
	}
	delete(a.pending, artifactID)
	content := slot.content
	a.wg.Add(1)
	a.mu.Unlock()

	defer a.wg.Done()
	if err := a.save(context.Background(), artifactID, content); err != nil && a.onError != nil {
		a.onError(artifactID, err)
	}
}

// Flush writes the artifact's pending content now, if any, cancelling the
// timer. Used when the editor switches away from an artifact.
func (a *Autosaver) Flush(ctx context.Context, artifactID string) error {
	a.mu.Lock()
	slot, ok := a.pending[artifactID]
	if ok {
		slot.timer.Stop()
		delete(a.pending, artifactID)
	}
	a.mu.Unlock()
	if !ok {
		return nil
	}
	return a.save(ctx, artifactID, slot.content)
}

// FlushAll drains every pending write. The first error is returned but the
// drain continues past it.
func (a *Autosaver) FlushAll(ctx context.Context) error {
	a.mu.Lock()
	slots := make(map[string]string, len(a.pending))
	for id, slot := range a.pending {
		slot.timer.Stop()
		slots[id] = slot.content
	}
	a.pending = make(map[string]*pendingWrite)
	a.mu.Unlock()

	var first error
	for id, content := range slots {
		if err := a.save(ctx, id, content); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// Close drains pending writes, waits for in-flight timer saves, and
// rejects further queuing.
func (a *Autosaver) Close(ctx context.Context) error {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return nil
	}
	a.closed = true
	a.mu.Unlock()

	err := a.FlushAll(ctx)
	a.wg.Wait()
	return err
}
