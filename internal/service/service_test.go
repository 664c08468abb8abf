package service

import (
	"context"
	"testing"
	"time"

	"example.com/powermon/internal/models"
	"example.com/powermon/internal/repository"

	"github.com/stretchr/testify/require"
)

func TestRecordHeartbeatValidation(t *testing.T) {
	svc := newTestService(t, repository.NewMemoryRepository())

	_, err := svc.RecordHeartbeat(context.Background(), HeartbeatInput{DeviceID: "  "})
	require.ErrorIs(t, err, ErrValidation)
}

func TestRecordHeartbeatAutoProvisions(t *testing.T) {
	ctx := context.Background()
	repo := repository.NewMemoryRepository()
	svc := newTestService(t, repo)

	ts := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	device, err := svc.RecordHeartbeat(ctx, HeartbeatInput{
		DeviceID:    "well-pump",
		Description: "Well pump",
		Timestamp:   ptr(ts),
	})
	require.NoError(t, err)
	require.Equal(t, "well-pump", device.ID)
	require.Equal(t, "Well pump", device.Description)
	require.NotNil(t, device.Heartbeat)
	require.True(t, device.Heartbeat.Equal(ts))
}

func TestRecordHeartbeatRejectsUnknownDeviceWhenAutoCreateOff(t *testing.T) {
	svc, err := NewService(ServiceConfig{
		Repository: repository.NewMemoryRepository(),
		Logger:     testLogger(),
	})
	require.NoError(t, err)

	_, err = svc.RecordHeartbeat(context.Background(), HeartbeatInput{DeviceID: "unknown"})
	require.ErrorIs(t, err, ErrUnknownDevice)
}

func TestRecordHeartbeatEnforcesDeviceKey(t *testing.T) {
	ctx := context.Background()
	repo := repository.NewMemoryRepository()
	require.NoError(t, repo.CreateDevice(ctx, &models.Device{ID: "well-pump", HeartbeatKey: "secret"}))
	svc := newTestService(t, repo)

	_, err := svc.RecordHeartbeat(ctx, HeartbeatInput{DeviceID: "well-pump", DeviceKey: "wrong"})
	require.ErrorIs(t, err, ErrUnauthorized)

	device, err := svc.RecordHeartbeat(ctx, HeartbeatInput{DeviceID: "well-pump", DeviceKey: "secret"})
	require.NoError(t, err)
	require.NotNil(t, device.Heartbeat)
}

func TestRecordHeartbeatIgnoresStaleTimestamps(t *testing.T) {
	ctx := context.Background()
	repo := repository.NewMemoryRepository()
	svc := newTestService(t, repo)

	later := time.Date(2025, 3, 1, 12, 5, 0, 0, time.UTC)
	earlier := later.Add(-time.Minute)

	_, err := svc.RecordHeartbeat(ctx, HeartbeatInput{DeviceID: "well-pump", Timestamp: ptr(later)})
	require.NoError(t, err)

	device, err := svc.RecordHeartbeat(ctx, HeartbeatInput{DeviceID: "well-pump", Timestamp: ptr(earlier)})
	require.NoError(t, err)
	require.True(t, device.Heartbeat.Equal(later), "a replayed older ping must not move the heartbeat back")
}

func TestRecordHeartbeatKeepsTimestampAcrossDescriptionChange(t *testing.T) {
	ctx := context.Background()
	repo := repository.NewMemoryRepository()
	svc := newTestService(t, repo)

	t1 := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	t2 := t1.Add(30 * time.Second)

	_, err := svc.RecordHeartbeat(ctx, HeartbeatInput{DeviceID: "well-pump", Timestamp: ptr(t1)})
	require.NoError(t, err)

	device, err := svc.RecordHeartbeat(ctx, HeartbeatInput{
		DeviceID:    "well-pump",
		Timestamp:   ptr(t2),
		Description: "Well pump",
	})
	require.NoError(t, err)
	require.Equal(t, "Well pump", device.Description)
	require.NotNil(t, device.Heartbeat)
	require.True(t, device.Heartbeat.Equal(t2),
		"a description change must not write back a stale heartbeat")
}

func TestGetMonthlyStatsUnknownDevice(t *testing.T) {
	svc := newTestService(t, repository.NewMemoryRepository())

	now := time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)
	_, err := svc.GetMonthlyStats(context.Background(), "nope", 2025, time.March, now)
	require.ErrorIs(t, err, ErrUnknownDevice)
}

func TestGetMonthlyStatsFutureMonthIsEmpty(t *testing.T) {
	ctx := context.Background()
	repo := repository.NewMemoryRepository()
	require.NoError(t, repo.CreateDevice(ctx, &models.Device{ID: "well-pump"}))
	svc := newTestService(t, repo)

	now := time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)
	stats, err := svc.GetMonthlyStats(ctx, "well-pump", 2025, time.April, now)
	require.NoError(t, err)
	require.Len(t, stats.PerDay, 30)
	for _, day := range stats.PerDay {
		require.Zero(t, day.OnSeconds)
		require.Zero(t, day.OffSeconds)
	}
	require.Zero(t, stats.OutageCount)
	require.Zero(t, stats.UptimePercent)
}

func TestListDeviceStatusesUsesLatestEvent(t *testing.T) {
	ctx := context.Background()
	repo := repository.NewMemoryRepository()
	require.NoError(t, repo.CreateDevice(ctx, &models.Device{ID: "well-pump"}))
	start := time.Now().Add(-90 * time.Minute)
	require.NoError(t, repo.CreateEvent(ctx, openEvent("well-pump", false, start)))
	svc := newTestService(t, repo)

	statuses, err := svc.ListDeviceStatuses(ctx)
	require.NoError(t, err)
	require.Len(t, statuses, 1)
	require.NotNil(t, statuses[0].IsPowerOn)
	require.False(t, *statuses[0].IsPowerOn)
	require.NotNil(t, statuses[0].Since)
	require.True(t, statuses[0].Since.Equal(start))
	require.Equal(t, "1hr 30min", statuses[0].SinceText)
}
