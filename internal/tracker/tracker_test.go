package tracker

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nerrad567/weddingcue-core/internal/engine"
	"github.com/nerrad567/weddingcue-core/internal/notify"
	"github.com/nerrad567/weddingcue-core/internal/timeline"
)

var t0 = time.Date(2026, 6, 20, 15, 0, 0, 0, time.UTC)

type capture struct {
	mu     sync.Mutex
	events []string
	last   any
}

func (c *capture) Publish(_ context.Context, _, event string, payload any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, event)
	c.last = payload
	return nil
}

func setup(t *testing.T) (*Tracker, *engine.Engine, *timeline.MemoryStore, *engine.ManualClock, *capture) {
	t.Helper()
	ctx := context.Background()

	store := timeline.NewMemoryStore()
	clock := engine.NewManualClock(t0)
	pub := &capture{}
	eng := engine.NewEngine(store, pub, clock, nil)

	require.NoError(t, store.CreateEvent(ctx, &timeline.Event{ID: "evt", Name: "Reception", EventDate: t0}))
	require.NoError(t, store.CreateTimer(ctx, &timeline.Timer{
		ID: "speech", EventID: "evt", Name: "Best man speech", OrderIndex: 1, DurationMinutes: timeline.IntPtr(20),
	}))
	for _, a := range []timeline.Action{
		{ID: "outro", TimerID: "speech", OrderIndex: 3, Type: timeline.ActionSound, Trigger: timeline.TriggerAtEnd},
		{ID: "intro", TimerID: "speech", OrderIndex: 1, Type: timeline.ActionSound, Trigger: timeline.TriggerAfterStart, TriggerOffsetMinutes: 0},
		{ID: "slides", TimerID: "speech", OrderIndex: 2, Type: timeline.ActionGallery, Trigger: timeline.TriggerBeforeEnd, TriggerOffsetMinutes: 5},
	} {
		require.NoError(t, store.CreateAction(ctx, &a))
	}

	return New(eng, nil), eng, store, clock, pub
}

func TestRecordExecuted(t *testing.T) {
	ctx := context.Background()
	tr, _, store, clock, pub := setup(t)

	res, err := tr.RecordExecuted(ctx, "intro")
	require.NoError(t, err)
	assert.False(t, res.AlreadyExecuted)
	assert.False(t, res.AllActionsExecuted)
	assert.Equal(t, "speech", res.TimerID)
	assert.Equal(t, t0, res.ExecutedAt)
	assert.Equal(t, []string{notify.EventActionExecuted}, pub.events)

	_, err = tr.RecordExecuted(ctx, "slides")
	require.NoError(t, err)
	res, err = tr.RecordExecuted(ctx, "outro")
	require.NoError(t, err)
	assert.True(t, res.AllActionsExecuted)
	assert.True(t, pub.last.(notify.ActionExecuted).AllActionsExecuted)

	// Tracking never completes the timer.
	timer, err := store.GetTimer(ctx, "speech")
	require.NoError(t, err)
	assert.Equal(t, timeline.StatusPending, timer.Status)

	t.Run("second call keeps first timestamp", func(t *testing.T) {
		clock.Advance(time.Minute)
		before := len(pub.events)

		again, err := tr.RecordExecuted(ctx, "intro")
		require.NoError(t, err)
		assert.True(t, again.AlreadyExecuted)
		assert.Equal(t, t0, again.ExecutedAt)
		assert.True(t, again.AllActionsExecuted)
		assert.Len(t, pub.events, before, "no notification on repeat")

		a, err := store.GetAction(ctx, "intro")
		require.NoError(t, err)
		assert.Equal(t, t0, *a.ExecutedAt)
	})
}

func TestRecordExecuted_UnknownAction(t *testing.T) {
	tr, _, _, _, _ := setup(t)
	_, err := tr.RecordExecuted(context.Background(), "nope")
	assert.ErrorIs(t, err, timeline.ErrActionNotFound)
}

func TestDueActions(t *testing.T) {
	ctx := context.Background()
	tr, eng, _, clock, _ := setup(t)

	t.Run("not started", func(t *testing.T) {
		due, err := tr.DueActions(ctx, "speech")
		require.NoError(t, err)
		require.Len(t, due, 3)
		assert.Equal(t, "intro", due[0].ID)
		assert.Nil(t, due[0].DueAt)
	})

	_, err := eng.StartWedding(ctx, "evt")
	require.NoError(t, err)
	clock.Advance(time.Minute)
	_, err = tr.RecordExecuted(ctx, "intro")
	require.NoError(t, err)

	t.Run("running", func(t *testing.T) {
		due, err := tr.DueActions(ctx, "speech")
		require.NoError(t, err)
		require.Len(t, due, 2)

		assert.Equal(t, "slides", due[0].ID)
		assert.Equal(t, t0.Add(15*time.Minute), *due[0].DueAt)
		assert.Equal(t, "outro", due[1].ID)
		assert.Equal(t, t0.Add(20*time.Minute), *due[1].DueAt)
	})

	t.Run("unknown timer", func(t *testing.T) {
		_, err := tr.DueActions(ctx, "nope")
		assert.ErrorIs(t, err, timeline.ErrTimerNotFound)
	})
}
