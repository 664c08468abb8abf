package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"example.com/powermon/config"
	"example.com/powermon/internal/cache"
	"example.com/powermon/internal/messaging"
	"example.com/powermon/internal/models"
	"example.com/powermon/internal/repository"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
)

// recordingNotifier captures sent messages and can fail per chat
type recordingNotifier struct {
	mu      sync.Mutex
	sent    map[int64][]string
	failFor map[int64]bool
}

func newRecordingNotifier() *recordingNotifier {
	return &recordingNotifier{
		sent:    make(map[int64][]string),
		failFor: make(map[int64]bool),
	}
}

func (r *recordingNotifier) Send(ctx context.Context, chatID int64, text string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failFor[chatID] {
		return errors.New("send failed")
	}
	r.sent[chatID] = append(r.sent[chatID], text)
	return nil
}

func (r *recordingNotifier) messages(chatID int64) []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.sent[chatID]...)
}

// recordingPublisher captures queue messages
type recordingPublisher struct {
	mu   sync.Mutex
	msgs []messaging.TransitionMessage
}

func (p *recordingPublisher) PublishTransition(ctx context.Context, msg messaging.TransitionMessage) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.msgs = append(p.msgs, msg)
	return nil
}

func (p *recordingPublisher) Close() error { return nil }

func (p *recordingPublisher) published() []messaging.TransitionMessage {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]messaging.TransitionMessage(nil), p.msgs...)
}

func testLogger() *logrus.Logger {
	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)
	return log
}

func newTestMonitor(repo repository.Repository, n *recordingNotifier, p *recordingPublisher) *Monitor {
	log := testLogger()
	dispatcher := NewDispatcher(repo, n, "", log)
	return NewMonitor(config.MonitorConfig{
		IntervalSeconds:         30,
		HeartbeatTimeoutSeconds: 15,
	}, repo, dispatcher, p, cache.NewNoopClient(), log)
}

func seedDevice(t *testing.T, repo repository.Repository, id string, heartbeat *time.Time) {
	t.Helper()
	require.NoError(t, repo.CreateDevice(context.Background(), &models.Device{
		ID:        id,
		Heartbeat: heartbeat,
	}))
}

func TestTickColdStartCreatesOpenEventWithoutNotification(t *testing.T) {
	ctx := context.Background()
	repo := repository.NewMemoryRepository()
	n := newRecordingNotifier()
	p := &recordingPublisher{}
	m := newTestMonitor(repo, n, p)

	now := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return now }

	seedDevice(t, repo, "fridge", ptr(now.Add(-5*time.Second)))
	require.NoError(t, repo.CreateSubscriber(ctx, &models.Subscriber{ChatID: 100, IsActive: true}))

	m.tick(ctx)

	events, err := repo.ListEvents(ctx, "fridge")
	require.NoError(t, err)
	require.Len(t, events, 1)
	require.True(t, events[0].IsPowerOn)
	require.True(t, events[0].StartAt.Equal(now))
	require.Nil(t, events[0].EndAt)

	// Cold start has no prior state to contrast against.
	require.Empty(t, n.messages(100))
	require.Empty(t, p.published())
}

func TestTickDetectsTransitionToOff(t *testing.T) {
	ctx := context.Background()
	repo := repository.NewMemoryRepository()
	n := newRecordingNotifier()
	p := &recordingPublisher{}
	m := newTestMonitor(repo, n, p)

	t0 := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	seedDevice(t, repo, "fridge", ptr(t0))
	require.NoError(t, repo.CreateSubscriber(ctx, &models.Subscriber{ChatID: 100, IsActive: true}))

	m.now = func() time.Time { return t0 }
	m.tick(ctx)

	// One hour later the heartbeat has gone stale.
	t1 := t0.Add(time.Hour)
	m.now = func() time.Time { return t1 }
	m.tick(ctx)

	events, err := repo.ListEvents(ctx, "fridge")
	require.NoError(t, err)
	require.Len(t, events, 2)

	require.True(t, events[0].IsPowerOn)
	require.NotNil(t, events[0].EndAt)
	require.True(t, events[0].EndAt.Equal(t1))

	require.False(t, events[1].IsPowerOn)
	require.True(t, events[1].StartAt.Equal(t1))
	require.Nil(t, events[1].EndAt)

	msgs := n.messages(100)
	require.Len(t, msgs, 1)
	require.Contains(t, msgs[0], "OFF")
	require.Contains(t, msgs[0], "1hr 00min")

	published := p.published()
	require.Len(t, published, 1)
	require.Equal(t, "fridge", published[0].DeviceID)
	require.False(t, published[0].IsPowerOn)
	require.Equal(t, 3600.0, published[0].PreviousDurationSeconds)
}

func TestTickIsIdempotentWithoutStateChange(t *testing.T) {
	ctx := context.Background()
	repo := repository.NewMemoryRepository()
	n := newRecordingNotifier()
	p := &recordingPublisher{}
	m := newTestMonitor(repo, n, p)

	now := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return now }

	seedDevice(t, repo, "fridge", ptr(now.Add(-2*time.Second)))

	m.tick(ctx)
	m.tick(ctx)
	m.tick(ctx)

	events, err := repo.ListEvents(ctx, "fridge")
	require.NoError(t, err)
	require.Len(t, events, 1)
	require.Empty(t, p.published())
}

// flakyRepo makes the transactional read fail for one device
type flakyRepo struct {
	repository.Repository
	failDevice string
}

func (f *flakyRepo) WithTransaction(ctx context.Context, fn func(ctx context.Context, txRepo repository.Repository) error) error {
	return f.Repository.WithTransaction(ctx, func(ctx context.Context, tx repository.Repository) error {
		return fn(ctx, &flakyTx{Repository: tx, failDevice: f.failDevice})
	})
}

type flakyTx struct {
	repository.Repository
	failDevice string
}

func (f *flakyTx) LatestEvent(ctx context.Context, deviceID string) (*models.Event, error) {
	if deviceID == f.failDevice {
		return nil, errors.New("store unavailable")
	}
	return f.Repository.LatestEvent(ctx, deviceID)
}

func TestTickIsolatesPerDeviceFailures(t *testing.T) {
	ctx := context.Background()
	mem := repository.NewMemoryRepository()
	repo := &flakyRepo{Repository: mem, failDevice: "broken"}
	n := newRecordingNotifier()
	p := &recordingPublisher{}
	m := newTestMonitor(repo, n, p)

	now := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return now }

	seedDevice(t, mem, "broken", ptr(now))
	seedDevice(t, mem, "healthy", ptr(now))

	m.tick(ctx)

	// The broken device must not prevent the healthy one from being recorded.
	healthy, err := mem.ListEvents(ctx, "healthy")
	require.NoError(t, err)
	require.Len(t, healthy, 1)

	broken, err := mem.ListEvents(ctx, "broken")
	require.NoError(t, err)
	require.Empty(t, broken)
}

func TestEventLogStaysAlternatingAndContiguous(t *testing.T) {
	ctx := context.Background()
	repo := repository.NewMemoryRepository()
	n := newRecordingNotifier()
	p := &recordingPublisher{}
	m := newTestMonitor(repo, n, p)

	start := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	seedDevice(t, repo, "pump", ptr(start))

	// Alternate between fresh and stale heartbeats over many ticks.
	now := start
	for i := 0; i < 20; i++ {
		now = now.Add(10 * time.Minute)
		if i%3 == 0 {
			require.NoError(t, repo.UpsertHeartbeat(ctx, "pump", now))
		}
		m.now = func() time.Time { return now }
		m.tick(ctx)
	}

	events, err := repo.ListEvents(ctx, "pump")
	require.NoError(t, err)
	require.NotEmpty(t, events)

	openCount := 0
	for i, ev := range events {
		if ev.EndAt == nil {
			openCount++
			require.Equal(t, len(events)-1, i, "only the last event may be open")
			continue
		}
		require.True(t, ev.EndAt.After(ev.StartAt))
	}
	require.Equal(t, 1, openCount)

	for i := 0; i+1 < len(events); i++ {
		require.NotEqual(t, events[i].IsPowerOn, events[i+1].IsPowerOn, "events must alternate")
		require.True(t, events[i].EndAt.Equal(events[i+1].StartAt), "events must be contiguous")
	}
}

func TestTransitionToOnNotifiesWithOutageDuration(t *testing.T) {
	ctx := context.Background()
	repo := repository.NewMemoryRepository()
	n := newRecordingNotifier()
	p := &recordingPublisher{}
	m := newTestMonitor(repo, n, p)

	t0 := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	seedDevice(t, repo, "fridge", nil)
	require.NoError(t, repo.CreateSubscriber(ctx, &models.Subscriber{ChatID: 7, IsActive: true}))

	// Cold start records OFF (no heartbeat at all).
	m.now = func() time.Time { return t0 }
	m.tick(ctx)

	// Heartbeat arrives, power is back.
	t1 := t0.Add(45 * time.Minute)
	require.NoError(t, repo.UpsertHeartbeat(ctx, "fridge", t1))
	m.now = func() time.Time { return t1 }
	m.tick(ctx)

	msgs := n.messages(7)
	require.Len(t, msgs, 1)
	require.Contains(t, msgs[0], "ON")
	require.True(t, strings.Contains(msgs[0], "45min"))
}

func TestTickToleratesClosedLatestEvent(t *testing.T) {
	ctx := context.Background()
	repo := repository.NewMemoryRepository()
	n := newRecordingNotifier()
	p := &recordingPublisher{}
	m := newTestMonitor(repo, n, p)

	now := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return now }

	// Historical data written before the open-interval invariant was
	// enforced: the latest event is already closed.
	start := now.Add(-time.Hour)
	end := now.Add(-30 * time.Minute)
	require.NoError(t, repo.CreateEvent(ctx, &models.Event{
		DeviceID:  "fridge",
		IsPowerOn: true,
		StartAt:   start,
		EndAt:     &end,
	}))
	seedDevice(t, repo, "fridge", ptr(now.Add(-time.Hour)))
	require.NoError(t, repo.CreateSubscriber(ctx, &models.Subscriber{ChatID: 100, IsActive: true}))

	m.tick(ctx)

	events, err := repo.ListEvents(ctx, "fridge")
	require.NoError(t, err)
	require.Len(t, events, 2)

	// The closed event keeps its original end.
	require.NotNil(t, events[0].EndAt)
	require.True(t, events[0].EndAt.Equal(end))

	// A fresh open interval starts at the tick regardless.
	require.False(t, events[1].IsPowerOn)
	require.True(t, events[1].StartAt.Equal(now))
	require.Nil(t, events[1].EndAt)

	require.Len(t, n.messages(100), 1)
	require.Len(t, p.published(), 1)
}
