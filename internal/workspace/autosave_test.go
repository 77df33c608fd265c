package workspace

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type saveRecorder struct {
	mu    sync.Mutex
	saves []string // "id=content"
	err   error
}

func (r *saveRecorder) save(_ context.Context, artifactID, content string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.saves = append(r.saves, artifactID+"="+content)
	return nil
}

func (r *saveRecorder) all() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.saves))
	copy(out, r.saves)
	return out
}

func TestAutosaveCoalescesRapidWrites(t *testing.T) {
	rec := &saveRecorder{}
	a := NewAutosaver(30*time.Millisecond, rec.save, nil)
	defer func() { _ = a.Close(context.Background()) }()

	a.Queue("doc1", "v1")
	a.Queue("doc1", "v2")
	a.Queue("doc1", "v3")

	require.Eventually(t, func() bool {
		return len(rec.all()) == 1
	}, time.Second, 5*time.Millisecond)

	// Only the most recent pending content was sent, once.
	assert.Equal(t, []string{"doc1=v3"}, rec.all())
}

func TestAutosaveSeparateSlotsPerArtifact(t *testing.T) {
	rec := &saveRecorder{}
	a := NewAutosaver(20*time.Millisecond, rec.save, nil)
	defer func() { _ = a.Close(context.Background()) }()

	a.Queue("doc1", "a")
	a.Queue("doc2", "b")

	require.Eventually(t, func() bool {
		return len(rec.all()) == 2
	}, time.Second, 5*time.Millisecond)
	assert.ElementsMatch(t, []string{"doc1=a", "doc2=b"}, rec.all())
}

func TestFlushWritesImmediately(t *testing.T) {
	rec := &saveRecorder{}
	a := NewAutosaver(time.Hour, rec.save, nil)
	defer func() { _ = a.Close(context.Background()) }()

	a.Queue("doc1", "pending")
	require.NoError(t, a.Flush(context.Background(), "doc1"))
	assert.Equal(t, []string{"doc1=pending"}, rec.all())

	// Nothing left; a second flush is a no-op.
	require.NoError(t, a.Flush(context.Background(), "doc1"))
	assert.Len(t, rec.all(), 1)
}

func TestPendingTracksQueuedWrites(t *testing.T) {
	rec := &saveRecorder{}
	a := NewAutosaver(time.Hour, rec.save, nil)
	defer func() { _ = a.Close(context.Background()) }()

	assert.False(t, a.Pending("doc1"))
	a.Queue("doc1", "draft")
	assert.True(t, a.Pending("doc1"))
	assert.False(t, a.Pending("doc2"))

	require.NoError(t, a.Flush(context.Background(), "doc1"))
	assert.False(t, a.Pending("doc1"))
}

func TestCloseDrainsAndStopsAccepting(t *testing.T) {
	rec := &saveRecorder{}
	a := NewAutosaver(time.Hour, rec.save, nil)

	a.Queue("doc1", "last words")
	require.NoError(t, a.Close(context.Background()))
	assert.Equal(t, []string{"doc1=last words"}, rec.all())

	a.Queue("doc1", "after close")
	require.NoError(t, a.Flush(context.Background(), "doc1"))
	assert.Len(t, rec.all(), 1)
}

func TestTimerSaveFailureReportsViaCallback(t *testing.T) {
	rec := &saveRecorder{err: errors.New("offline")}

	var mu sync.Mutex
	var failures []string
	a := NewAutosaver(10*time.Millisecond, rec.save, func(artifactID string, err error) {
		mu.Lock()
		failures = append(failures, artifactID+": "+err.Error())
		mu.Unlock()
	})
	defer func() { _ = a.Close(context.Background()) }()

	a.Queue("doc1", "v1")

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(failures) == 1
	}, time.Second, 5*time.Millisecond)
	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, "doc1: offline", failures[0])
}
