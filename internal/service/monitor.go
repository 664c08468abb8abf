package service

import (
	"context"
	"time"

	"example.com/powermon/config"
	"example.com/powermon/internal/cache"
	"example.com/powermon/internal/messaging"
	"example.com/powermon/internal/models"
	"example.com/powermon/internal/repository"

	"github.com/sirupsen/logrus"
)

// Monitor is the periodic liveness evaluator. On every tick it computes
// each device's liveness from its last heartbeat, closes and opens event
// intervals on a change, and hands detected transitions to the dispatcher
// and the queue publisher.
type Monitor struct {
	repo       repository.Repository
	dispatcher *Dispatcher
	publisher  messaging.Publisher
	cache      cache.Client
	log        *logrus.Logger

	interval time.Duration
	timeout  time.Duration

	// now is replaceable in tests
	now func() time.Time
}

// NewMonitor creates a new Monitor instance
func NewMonitor(
	cfg config.MonitorConfig,
	repo repository.Repository,
	dispatcher *Dispatcher,
	publisher messaging.Publisher,
	cacheClient cache.Client,
	log *logrus.Logger,
) *Monitor {
	return &Monitor{
		repo:       repo,
		dispatcher: dispatcher,
		publisher:  publisher,
		cache:      cacheClient,
		log:        log,
		interval:   time.Duration(cfg.IntervalSeconds) * time.Second,
		timeout:    time.Duration(cfg.HeartbeatTimeoutSeconds) * time.Second,
		now:        time.Now,
	}
}

// Run executes ticks until ctx is cancelled. It never terminates on its
// own: per-tick failures are logged and retried on the next tick.
func (m *Monitor) Run(ctx context.Context) {
	m.log.WithFields(logrus.Fields{
		"interval": m.interval,
		"timeout":  m.timeout,
	}).Info("Liveness monitor started")

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			m.log.Info("Liveness monitor stopped")
			return
		case <-ticker.C:
			m.tick(ctx)
		}
	}
}

// tick evaluates every known device once. A failure on one device must not
// prevent the rest from being evaluated.
func (m *Monitor) tick(ctx context.Context) {
	now := m.now()

	devices, err := m.repo.ListDevices(ctx)
	if err != nil {
		m.log.WithError(err).Error("Failed to list devices, skipping tick")
		return
	}

	for _, device := range devices {
		if err := m.evaluateDevice(ctx, device, now); err != nil {
			m.log.WithError(err).WithField("device_id", device.ID).
				Error("Device evaluation failed, will retry next tick")
		}
	}
}

// evaluateDevice runs one device's state machine step. The close+open pair
// commits atomically before any notification is attempted.
func (m *Monitor) evaluateDevice(ctx context.Context, device *models.Device, now time.Time) error {
	alive := IsAlive(device.Heartbeat, now, m.timeout)

	var transition *Transition
	changed := false

	err := m.repo.WithTransaction(ctx, func(ctx context.Context, tx repository.Repository) error {
		last, err := tx.LatestEvent(ctx, device.ID)
		if err != nil {
			return err
		}

		if last == nil {
			// Cold start: record the current state with no prior state to
			// contrast against, so nobody gets notified.
			changed = true
			return tx.CreateEvent(ctx, &models.Event{
				DeviceID:  device.ID,
				IsPowerOn: alive,
				StartAt:   now,
			})
		}

		if last.IsPowerOn == alive {
			return nil
		}

		// A pre-existing closed latest event means historical data written
		// before invariant enforcement; skip the close, still open anew.
		if last.Open() {
			if err := tx.CloseEvent(ctx, last.ID, now); err != nil {
				return err
			}
		}
		if err := tx.CreateEvent(ctx, &models.Event{
			DeviceID:  device.ID,
			IsPowerOn: alive,
			StartAt:   now,
		}); err != nil {
			return err
		}

		changed = true
		transition = &Transition{
			DeviceID:         device.ID,
			Description:      device.Description,
			IsPowerOn:        alive,
			At:               now,
			PreviousDuration: now.Sub(last.StartAt),
		}
		return nil
	})
	if err != nil {
		return err
	}

	if changed {
		m.cacheState(ctx, device.ID, alive)
	}
	if transition == nil {
		return nil
	}

	// The event log already reflects truth; delivery failures stay local.
	m.dispatcher.NotifyTransition(ctx, *transition)

	if err := m.publisher.PublishTransition(ctx, messaging.TransitionMessage{
		DeviceID:                transition.DeviceID,
		IsPowerOn:               transition.IsPowerOn,
		At:                      transition.At,
		PreviousDurationSeconds: transition.PreviousDuration.Seconds(),
	}); err != nil {
		m.log.WithError(err).WithField("device_id", device.ID).Warn("Failed to publish transition")
	}

	return nil
}

func (m *Monitor) cacheState(ctx context.Context, deviceID string, alive bool) {
	state := "off"
	if alive {
		state = "on"
	}
	if err := m.cache.Set(ctx, cache.StateKey(deviceID), state, 24*time.Hour); err != nil {
		m.log.WithError(err).WithField("device_id", deviceID).Debug("Failed to update state cache")
	}
}
