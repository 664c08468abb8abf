package service

import (
	"context"
	"testing"
	"time"

	"example.com/powermon/internal/repository"

	"github.com/stretchr/testify/require"
)

func newTestService(t *testing.T, repo repository.Repository) Service {
	t.Helper()
	svc, err := NewService(ServiceConfig{
		Repository:        repo,
		Logger:            testLogger(),
		AutoCreateDevices: true,
	})
	require.NoError(t, err)
	return svc
}

func TestExportImportRoundTrip(t *testing.T) {
	ctx := context.Background()
	loc := time.UTC
	t0 := time.Date(2025, 3, 1, 0, 0, 0, 0, loc)
	t1 := t0.Add(4 * time.Hour)
	t2 := t1.Add(30 * time.Minute)

	source := repository.NewMemoryRepository()
	require.NoError(t, source.CreateEvent(ctx, closedEvent("a", true, t0, t1)))
	require.NoError(t, source.CreateEvent(ctx, closedEvent("a", false, t1, t2)))
	require.NoError(t, source.CreateEvent(ctx, openEvent("a", true, t2)))
	require.NoError(t, source.CreateEvent(ctx, openEvent("b", false, t0)))

	exported, err := newTestService(t, source).ExportEvents(ctx)
	require.NoError(t, err)
	require.Len(t, exported, 4)

	target := repository.NewMemoryRepository()
	targetSvc := newTestService(t, target)
	require.NoError(t, targetSvc.ImportEvents(ctx, exported))

	reExported, err := targetSvc.ExportEvents(ctx)
	require.NoError(t, err)
	require.Len(t, reExported, len(exported))

	for i := range exported {
		require.Equal(t, exported[i].DeviceID, reExported[i].DeviceID)
		require.Equal(t, exported[i].IsPowerOn, reExported[i].IsPowerOn)
		require.True(t, exported[i].StartAt.Equal(reExported[i].StartAt))
		if exported[i].EndAt == nil {
			require.Nil(t, reExported[i].EndAt)
		} else {
			require.NotNil(t, reExported[i].EndAt)
			require.True(t, exported[i].EndAt.Equal(*reExported[i].EndAt))
		}
	}
}

func TestValidateEventLog(t *testing.T) {
	loc := time.UTC
	t0 := time.Date(2025, 3, 1, 0, 0, 0, 0, loc)
	t1 := t0.Add(time.Hour)
	t2 := t1.Add(time.Hour)

	valid := []ExportedEvent{
		{DeviceID: "a", IsPowerOn: true, StartAt: t0, EndAt: &t1},
		{DeviceID: "a", IsPowerOn: false, StartAt: t1, EndAt: &t2},
		{DeviceID: "a", IsPowerOn: true, StartAt: t2},
	}
	require.NoError(t, ValidateEventLog(valid))

	t.Run("alternation violation", func(t *testing.T) {
		bad := []ExportedEvent{
			{DeviceID: "a", IsPowerOn: true, StartAt: t0, EndAt: &t1},
			{DeviceID: "a", IsPowerOn: true, StartAt: t1},
		}
		err := ValidateEventLog(bad)
		require.ErrorIs(t, err, ErrInvariantViolation)
	})

	t.Run("gap between intervals", func(t *testing.T) {
		bad := []ExportedEvent{
			{DeviceID: "a", IsPowerOn: true, StartAt: t0, EndAt: &t1},
			{DeviceID: "a", IsPowerOn: false, StartAt: t2},
		}
		err := ValidateEventLog(bad)
		require.ErrorIs(t, err, ErrInvariantViolation)
	})

	t.Run("open interval before the last", func(t *testing.T) {
		bad := []ExportedEvent{
			{DeviceID: "a", IsPowerOn: true, StartAt: t0},
			{DeviceID: "a", IsPowerOn: false, StartAt: t1},
		}
		err := ValidateEventLog(bad)
		require.ErrorIs(t, err, ErrInvariantViolation)
	})

	t.Run("interval ends before it starts", func(t *testing.T) {
		bad := []ExportedEvent{
			{DeviceID: "a", IsPowerOn: true, StartAt: t1, EndAt: &t0},
		}
		err := ValidateEventLog(bad)
		require.ErrorIs(t, err, ErrInvariantViolation)
	})

	t.Run("empty device id", func(t *testing.T) {
		bad := []ExportedEvent{
			{DeviceID: "", IsPowerOn: true, StartAt: t0},
		}
		err := ValidateEventLog(bad)
		require.ErrorIs(t, err, ErrInvariantViolation)
	})
}

func TestImportRejectsViolatingSetWholesale(t *testing.T) {
	ctx := context.Background()
	loc := time.UTC
	t0 := time.Date(2025, 3, 1, 0, 0, 0, 0, loc)
	t1 := t0.Add(time.Hour)

	repo := repository.NewMemoryRepository()
	svc := newTestService(t, repo)

	bad := []ExportedEvent{
		{DeviceID: "a", IsPowerOn: true, StartAt: t0, EndAt: &t1},
		{DeviceID: "a", IsPowerOn: true, StartAt: t1},
	}
	require.ErrorIs(t, svc.ImportEvents(ctx, bad), ErrInvariantViolation)

	events, err := repo.ListAllEvents(ctx)
	require.NoError(t, err)
	require.Empty(t, events, "nothing may be committed from a rejected import")
}
