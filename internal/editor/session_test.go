package editor

import (
	"context"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mbd888/tariffdesk/internal/tariff"
)

type stubLoader struct {
	calls atomic.Int32
	c     func() tariff.Collection
}

func (s *stubLoader) Load(ctx context.Context) tariff.Collection {
	s.calls.Add(1)
	if s.c == nil {
		return tariff.Collection{}
	}
	return s.c()
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestManager(loader Loader) *Manager {
	return NewManager(NewMemoryStore(), loader, discardLogger())
}

func TestManager_OpenLoadsFreshCopy(t *testing.T) {
	loader := &stubLoader{c: sampleCollection}
	m := newTestManager(loader)
	ctx := context.Background()

	a, err := m.Open(ctx)
	require.NoError(t, err)
	b, err := m.Open(ctx)
	require.NoError(t, err)

	assert.NotEqual(t, a.ID, b.ID)
	assert.Equal(t, int32(2), loader.calls.Load())

	a.Editor.RemoveTariff(a.Editor.View()[0].Key)
	assert.Len(t, a.Editor.View(), 1)
	assert.Len(t, b.Editor.View(), 2, "sessions must not share state")
}

func TestManager_OpenWithEmptyLoad(t *testing.T) {
	m := newTestManager(&stubLoader{})
	s, err := m.Open(context.Background())
	require.NoError(t, err)

	out, err := s.Editor.SerializeOutput()
	require.NoError(t, err)
	assert.Equal(t, "[]", out)
}

func TestManager_GetAndClose(t *testing.T) {
	m := newTestManager(&stubLoader{})
	ctx := context.Background()

	s, err := m.Open(ctx)
	require.NoError(t, err)

	got, err := m.Get(ctx, s.ID)
	require.NoError(t, err)
	assert.Equal(t, s.ID, got.ID)
	assert.Same(t, s.Editor, got.Editor)

	_, err = m.Get(ctx, "not-a-uuid")
	assert.ErrorIs(t, err, ErrSessionNotFound)

	require.NoError(t, m.Close(ctx, s.ID))
	_, err = m.Get(ctx, s.ID)
	assert.ErrorIs(t, err, ErrSessionNotFound)
	assert.ErrorIs(t, m.Close(ctx, s.ID), ErrSessionNotFound)
}

func TestManager_GetReturnsTouchedSnapshot(t *testing.T) {
	m := newTestManager(&stubLoader{})
	ctx := context.Background()

	base := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return base }
	s, err := m.Open(ctx)
	require.NoError(t, err)

	m.now = func() time.Time { return base.Add(time.Minute) }
	first, err := m.Get(ctx, s.ID)
	require.NoError(t, err)
	assert.Equal(t, base.Add(time.Minute), first.LastUsed)
	assert.Equal(t, base, first.CreatedAt)

	m.now = func() time.Time { return base.Add(time.Hour) }
	second, err := m.Get(ctx, s.ID)
	require.NoError(t, err)
	assert.Equal(t, base.Add(time.Hour), second.LastUsed)
	assert.Equal(t, base.Add(time.Minute), first.LastUsed, "earlier snapshot must not change")
	assert.Equal(t, base, s.LastUsed, "session returned by Open is not shared with the store")
}

func TestManager_EvictIdle(t *testing.T) {
	m := newTestManager(&stubLoader{})
	ctx := context.Background()

	base := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return base }
	stale, err := m.Open(ctx)
	require.NoError(t, err)

	m.now = func() time.Time { return base.Add(time.Hour) }
	fresh, err := m.Open(ctx)
	require.NoError(t, err)

	n, err := m.EvictIdle(ctx, base.Add(30*time.Minute))
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	_, err = m.Get(ctx, stale.ID)
	assert.ErrorIs(t, err, ErrSessionNotFound)
	_, err = m.Get(ctx, fresh.ID)
	assert.NoError(t, err)
}

func TestJanitor_StartStop(t *testing.T) {
	m := newTestManager(&stubLoader{})
	j := NewJanitor(m, time.Minute, discardLogger())
	if j.interval != 15*time.Second {
		t.Errorf("Expected 15s interval, got %v", j.interval)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan struct{})
	go func() {
		j.Start(ctx)
		close(done)
	}()

	require.Eventually(t, j.Running, time.Second, 5*time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("janitor did not stop")
	}
	assert.False(t, j.Running())
}

func TestJanitor_SweepEvicts(t *testing.T) {
	m := newTestManager(&stubLoader{})
	ctx := context.Background()

	base := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return base }
	s, err := m.Open(ctx)
	require.NoError(t, err)

	j := NewJanitor(m, time.Minute, discardLogger())
	m.now = func() time.Time { return base.Add(2 * time.Minute) }
	j.safeSweep(ctx)

	_, err = m.store.Get(ctx, s.ID)
	assert.ErrorIs(t, err, ErrSessionNotFound)
}
