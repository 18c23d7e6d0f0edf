package rehearsal

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

var t0 = time.Date(2026, 6, 20, 18, 30, 0, 0, time.UTC)

type capture struct {
	mu       sync.Mutex
	events   []string
	payloads []any
}

func (c *capture) Publish(_ context.Context, _, event string, payload any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, event)
	c.payloads = append(c.payloads, payload)
	return nil
}

type fixture struct {
	ctl   *Controller
	eng   *engine.Engine
	store *timeline.MemoryStore
	clock *engine.ManualClock
	pub   *capture
}

func newFixture(t *testing.T, demo bool) *fixture {
	t.Helper()
	ctx := context.Background()

	f := &fixture{
		store: timeline.NewMemoryStore(),
		clock: engine.NewManualClock(t0),
		pub:   &capture{},
	}
	f.eng = engine.NewEngine(f.store, f.pub, f.clock, nil)
	f.ctl = NewController(f.eng, nil)

	eventDate := time.Date(2026, 5, 2, 14, 0, 0, 0, time.UTC)
	require.NoError(t, f.store.CreateEvent(ctx, &timeline.Event{ID: "evt", Name: "Demo", EventDate: eventDate, IsDemo: demo}))

	timers := []timeline.Timer{
		{ID: "t1", OrderIndex: 1, Name: "Drinks", DurationMinutes: timeline.IntPtr(60), ScheduledStartTime: timeline.TimePtr(eventDate)},
		{ID: "t2", OrderIndex: 2, Name: "Entrance", ScheduledStartTime: timeline.TimePtr(eventDate.Add(time.Hour))},
		{ID: "t3", OrderIndex: 3, Name: "First dance", DurationMinutes: timeline.IntPtr(10)},
		{ID: "t4", OrderIndex: 4, Name: "Dinner", DurationMinutes: timeline.IntPtr(90), ScheduledStartTime: timeline.TimePtr(eventDate.Add(2 * time.Hour))},
	}
	for i := range timers {
		timers[i].EventID = "evt"
		require.NoError(t, f.store.CreateTimer(ctx, &timers[i]))
	}
	return f
}

func (f *fixture) timer(t *testing.T, id string) *timeline.Timer {
	t.Helper()
	tm, err := f.store.GetTimer(context.Background(), id)
	require.NoError(t, err)
	return tm
}

func TestBackdatedStart(t *testing.T) {
	lead := 15 * time.Second

	tests := []struct {
		name    string
		actions []timeline.Action
		want    time.Time
	}{
		{"no actions", nil, t0.Add(-lead)},
		{"after start", []timeline.Action{{Trigger: timeline.TriggerAfterStart, TriggerOffsetMinutes: 2}}, t0.Add(-lead)},
		{"before end", []timeline.Action{{Trigger: timeline.TriggerBeforeEnd, TriggerOffsetMinutes: 2}}, t0.Add(-lead - 2*time.Minute)},
		{"only first counts", []timeline.Action{
			{Trigger: timeline.TriggerAtEnd},
			{Trigger: timeline.TriggerBeforeEnd, TriggerOffsetMinutes: 5},
		}, t0.Add(-lead)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, BackdatedStart(t0, lead, tt.actions))
		})
	}
}

func TestJumpToTimer(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, true)
	require.NoError(t, f.store.CreateAction(ctx, &timeline.Action{
		ID: "music", TimerID: "t3", OrderIndex: 1, Type: timeline.ActionSound,
		Trigger: timeline.TriggerBeforeEnd, TriggerOffsetMinutes: 2,
	}))

	_, err := f.eng.StartWedding(ctx, "evt")
	require.NoError(t, err)

	res, err := f.ctl.JumpToTimer(ctx, "t3", 0)
	require.NoError(t, err)

	want := t0.Add(-DefaultLead - 2*time.Minute)
	assert.Equal(t, want, res.StartedAt)
	assert.Equal(t, 2, res.CompletedBefore)

	assert.Equal(t, timeline.StatusCompleted, f.timer(t, "t1").Status)
	assert.Equal(t, timeline.StatusCompleted, f.timer(t, "t2").Status)
	target := f.timer(t, "t3")
	assert.Equal(t, timeline.StatusRunning, target.Status)
	assert.Equal(t, want, *target.StartedAt)
	assert.Equal(t, timeline.StatusPending, f.timer(t, "t4").Status)

	event, err := f.store.GetEvent(ctx, "evt")
	require.NoError(t, err)
	assert.Equal(t, "t3", *event.CurrentTimerID)

	// StartWedding plus exactly one jump notification.
	assert.Equal(t, []string{notify.EventTimerStarted, notify.EventJumpPerformed}, f.pub.events)

	// Cues of completed timers are not replayed.
	actions, err := f.store.ListActions(ctx, "t3")
	require.NoError(t, err)
	assert.Nil(t, actions[0].ExecutedAt)
}

func TestJumpToTimer_CustomLeadAndUnknownTimer(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, true)

	res, err := f.ctl.JumpToTimer(ctx, "t2", 30*time.Second)
	require.NoError(t, err)
	assert.Equal(t, t0.Add(-30*time.Second), res.StartedAt)
	assert.Equal(t, 1, res.CompletedBefore)

	_, err = f.ctl.JumpToTimer(ctx, "missing", 0)
	assert.ErrorIs(t, err, timeline.ErrTimerNotFound)
}

func TestReset(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, true)
	require.NoError(t, f.store.CreateAction(ctx, &timeline.Action{
		ID: "a", TimerID: "t1", Type: timeline.ActionImage, Trigger: timeline.TriggerAfterStart,
	}))

	_, err := f.eng.StartWedding(ctx, "evt")
	require.NoError(t, err)
	_, err = f.store.MarkActionExecuted(ctx, "a", t0)
	require.NoError(t, err)
	_, err = f.eng.CompleteTimer(ctx, "t1")
	require.NoError(t, err)

	require.NoError(t, f.ctl.Reset(ctx, "evt"))

	for _, id := range []string{"t1", "t2", "t3", "t4"} {
		tm := f.timer(t, id)
		assert.Equal(t, timeline.StatusPending, tm.Status, id)
		assert.Nil(t, tm.StartedAt, id)
		assert.Nil(t, tm.CompletedAt, id)
	}
	a, err := f.store.GetAction(ctx, "a")
	require.NoError(t, err)
	assert.Nil(t, a.ExecutedAt)

	event, err := f.store.GetEvent(ctx, "evt")
	require.NoError(t, err)
	assert.Nil(t, event.CurrentTimerID)
	assert.Contains(t, f.pub.events, notify.EventResetPerformed)

	// The wedding can be run again.
	_, err = f.eng.StartWedding(ctx, "evt")
	assert.NoError(t, err)

	assert.ErrorIs(t, f.ctl.Reset(ctx, "missing"), timeline.ErrEventNotFound)
}

func TestRebaseToToday(t *testing.T) {
	ctx := context.Background()

	t.Run("demo event", func(t *testing.T) {
		f := newFixture(t, true)

		moved, err := f.ctl.RebaseToToday(ctx, "evt")
		require.NoError(t, err)
		assert.Equal(t, 3, moved)

		assert.Equal(t, time.Date(2026, 6, 20, 14, 0, 0, 0, time.UTC), *f.timer(t, "t1").ScheduledStartTime)
		assert.Equal(t, time.Date(2026, 6, 20, 16, 0, 0, 0, time.UTC), *f.timer(t, "t4").ScheduledStartTime)
		assert.Nil(t, f.timer(t, "t3").ScheduledStartTime)

		event, err := f.store.GetEvent(ctx, "evt")
		require.NoError(t, err)
		assert.Equal(t, time.Date(2026, 6, 20, 14, 0, 0, 0, time.UTC), event.EventDate)
	})

	t.Run("real event refused", func(t *testing.T) {
		f := newFixture(t, false)
		_, err := f.ctl.RebaseToToday(ctx, "evt")
		assert.ErrorIs(t, err, timeline.ErrNotDemo)
		assert.Equal(t, time.Date(2026, 5, 2, 14, 0, 0, 0, time.UTC), *f.timer(t, "t1").ScheduledStartTime)
	})
}
