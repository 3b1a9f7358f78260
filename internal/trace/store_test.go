package trace

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "trace.db"))
	require.NoError(t, err)
	t.Cleanup(func() {
		require.NoError(t, s.Close())
	})
	return s
}

func TestStore_OpenIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "trace.db")

	s1, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, s1.Close())

	// Reopening the same file applies the schema again without error.
	s2, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, s2.Close())
}

func TestStore_WriteAndReadEvents(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	at := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, s.WriteEvent(ctx, Event{
		Token: "inst-1", Kind: KindAdmitted, Name: "disk", Priority: 10, Seq: 2, At: at,
	}))
	require.NoError(t, s.WriteEvent(ctx, Event{
		Token: "inst-1", Kind: KindFinished, Name: "disk", Priority: 10, Seq: 5, At: at.Add(time.Second),
	}))

	events, err := s.ReadEvents(ctx)
	require.NoError(t, err)
	require.Len(t, events, 2)

	assert.Equal(t, KindAdmitted, events[0].Kind)
	assert.Equal(t, int64(2), events[0].Seq)
	assert.Equal(t, at, events[0].At)
	assert.Equal(t, KindFinished, events[1].Kind)
	assert.Equal(t, "disk", events[1].Name)
	assert.Equal(t, 10, events[1].Priority)
}

func TestStore_ReadEvents_SeqOrderNotInsertionOrder(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	// Insert out of seq order; reads must come back in seq order.
	require.NoError(t, s.WriteEvent(ctx, Event{Token: "b", Kind: KindAdmitted, Name: "high", Priority: 100, Seq: 3, At: time.Now()}))
	require.NoError(t, s.WriteEvent(ctx, Event{Token: "a", Kind: KindAdmitted, Name: "low", Priority: 10, Seq: 1, At: time.Now()}))

	events, err := s.ReadEvents(ctx)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, "low", events[0].Name)
	assert.Equal(t, "high", events[1].Name)
}

func TestStore_WriteEvent_Idempotent(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	ev := Event{Token: "inst-1", Kind: KindAdmitted, Name: "disk", Priority: 10, Seq: 1, At: time.Now()}
	require.NoError(t, s.WriteEvent(ctx, ev))

	// Second write with the same (token, kind) is silently ignored.
	ev.Priority = 999
	require.NoError(t, s.WriteEvent(ctx, ev))

	events, err := s.ReadEvents(ctx)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, 10, events[0].Priority, "first write wins")
}

func TestStore_ReadEvents_EmptyReturnsEmptySlice(t *testing.T) {
	s := openTestStore(t)

	events, err := s.ReadEvents(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, events)
	assert.Empty(t, events)
}

func TestStore_ReadTimeline_FiltersNameAndConditions(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	now := time.Now()

	require.NoError(t, s.WriteEvent(ctx, Event{Token: "a", Kind: KindAdmitted, Name: "disk", Priority: 10, Seq: 1, At: now}))
	require.NoError(t, s.WriteEvent(ctx, Event{Token: "b", Kind: KindAdmitted, Name: "net", Priority: 20, Seq: 2, At: now}))
	require.NoError(t, s.WriteEvent(ctx, Event{Token: "a", Kind: KindSkipped, Name: "disk", Priority: 10, Seq: 3, At: now, Detail: "no handler registered"}))
	require.NoError(t, s.WriteEvent(ctx, Event{Token: "a", Kind: KindFinished, Name: "disk", Priority: 10, Seq: 4, At: now}))

	events, err := s.ReadTimeline(ctx, "disk")
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, KindAdmitted, events[0].Kind)
	assert.Equal(t, KindFinished, events[1].Kind)
}
