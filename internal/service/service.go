package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"example.com/powermon/internal/cache"
	"example.com/powermon/internal/models"
	"example.com/powermon/internal/repository"

	"github.com/sirupsen/logrus"
)

// HeartbeatInput carries one heartbeat ping.
type HeartbeatInput struct {
	DeviceID    string
	Timestamp   *time.Time
	Description string
	// DeviceKey is matched against the device's HeartbeatKey when one is set.
	DeviceKey string
}

// DeviceStatus is a device together with its current power state.
type DeviceStatus struct {
	Device    *models.Device `json:"device"`
	IsPowerOn *bool          `json:"is_power_on"`
	Since     *time.Time     `json:"since"`
	SinceText string         `json:"since_text,omitempty"`
}

// Service defines the business logic operations
type Service interface {
	// Heartbeat ingestion
	RecordHeartbeat(ctx context.Context, in HeartbeatInput) (*models.Device, error)

	// Device operations
	CreateDevice(ctx context.Context, device *models.Device) error
	GetDevice(ctx context.Context, id string) (*models.Device, error)
	ListDeviceStatuses(ctx context.Context) ([]DeviceStatus, error)
	ListDeviceEvents(ctx context.Context, deviceID string) ([]*models.Event, error)

	// Statistics
	GetMonthlyStats(ctx context.Context, deviceID string, year int, month time.Month, now time.Time) (*MonthlyStats, error)

	// Subscriber operations
	CreateSubscriber(ctx context.Context, sub *models.Subscriber) error
	UpdateSubscriber(ctx context.Context, sub *models.Subscriber) error
	DeleteSubscriber(ctx context.Context, id uint) error
	ListSubscribers(ctx context.Context) ([]*models.Subscriber, error)

	// Event export/import
	ExportEvents(ctx context.Context) ([]ExportedEvent, error)
	ImportEvents(ctx context.Context, events []ExportedEvent) error
}

// service is an implementation of the Service interface
type service struct {
	repo       repository.Repository
	cache      cache.Client
	log        *logrus.Logger
	autoCreate bool
	now        func() time.Time
}

// ServiceConfig holds the configuration for the service
type ServiceConfig struct {
	Repository repository.Repository
	Cache      cache.Client
	Logger     *logrus.Logger
	// AutoCreateDevices provisions unknown devices on first heartbeat
	// instead of rejecting them.
	AutoCreateDevices bool
}

// NewService creates a new service instance
func NewService(cfg ServiceConfig) (Service, error) {
	if cfg.Repository == nil {
		return nil, errors.New("repository is required")
	}
	if cfg.Cache == nil {
		cfg.Cache = cache.NewNoopClient()
	}
	if cfg.Logger == nil {
		cfg.Logger = logrus.New()
	}

	return &service{
		repo:       cfg.Repository,
		cache:      cfg.Cache,
		log:        cfg.Logger,
		autoCreate: cfg.AutoCreateDevices,
		now:        time.Now,
	}, nil
}

// RecordHeartbeat upserts the device's last-heartbeat timestamp. The stored
// value only ever moves forward, so replayed pings cannot regress it.
func (s *service) RecordHeartbeat(ctx context.Context, in HeartbeatInput) (*models.Device, error) {
	deviceID := strings.TrimSpace(in.DeviceID)
	if deviceID == "" {
		return nil, fmt.Errorf("%w: device id is required", ErrValidation)
	}

	ts := s.now()
	if in.Timestamp != nil {
		ts = *in.Timestamp
	}

	device, err := s.repo.FindDeviceByID(ctx, deviceID)
	if err != nil {
		return nil, fmt.Errorf("failed to look up device: %w", err)
	}

	if device == nil {
		if !s.autoCreate {
			return nil, fmt.Errorf("%w: %s", ErrUnknownDevice, deviceID)
		}
		device = &models.Device{
			ID:          deviceID,
			Description: in.Description,
		}
		if err := s.repo.CreateDevice(ctx, device); err != nil {
			return nil, fmt.Errorf("failed to provision device: %w", err)
		}
		s.log.WithField("device_id", deviceID).Info("Auto-provisioned device on first heartbeat")
	}

	if device.HeartbeatKey != "" && device.HeartbeatKey != in.DeviceKey {
		return nil, fmt.Errorf("%w: invalid heartbeat key for %s", ErrUnauthorized, deviceID)
	}

	if err := s.repo.UpsertHeartbeat(ctx, deviceID, ts); err != nil {
		return nil, fmt.Errorf("failed to record heartbeat: %w", err)
	}

	if in.Description != "" && in.Description != device.Description {
		// Field-only update: the struct in hand predates the heartbeat
		// upsert and must not be written back whole.
		if err := s.repo.UpdateDeviceDescription(ctx, deviceID, in.Description); err != nil {
			return nil, fmt.Errorf("failed to update device description: %w", err)
		}
	}

	return s.repo.FindDeviceByID(ctx, deviceID)
}

// Device operations implementation

func (s *service) CreateDevice(ctx context.Context, device *models.Device) error {
	if strings.TrimSpace(device.ID) == "" {
		return fmt.Errorf("%w: device id is required", ErrValidation)
	}

	if err := s.repo.CreateDevice(ctx, device); err != nil {
		return fmt.Errorf("failed to create device: %w", err)
	}
	return nil
}

func (s *service) GetDevice(ctx context.Context, id string) (*models.Device, error) {
	device, err := s.repo.FindDeviceByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if device == nil {
		return nil, fmt.Errorf("%w: %s", ErrUnknownDevice, id)
	}
	return device, nil
}

// ListDeviceStatuses returns all devices with their current power state.
// The state comes from the monitor's cache when warm, otherwise from the
// latest event.
func (s *service) ListDeviceStatuses(ctx context.Context) ([]DeviceStatus, error) {
	devices, err := s.repo.ListDevices(ctx)
	if err != nil {
		return nil, err
	}

	now := s.now()
	statuses := make([]DeviceStatus, 0, len(devices))
	for _, device := range devices {
		status := DeviceStatus{Device: device}

		if state, err := s.cache.Get(ctx, cache.StateKey(device.ID)); err == nil {
			on := state == "on"
			status.IsPowerOn = &on
		}

		last, err := s.repo.LatestEvent(ctx, device.ID)
		if err != nil {
			return nil, err
		}
		if last != nil {
			if status.IsPowerOn == nil {
				on := last.IsPowerOn
				status.IsPowerOn = &on
			}
			start := last.StartAt
			status.Since = &start
			status.SinceText = FormatDuration(now.Sub(start))
		}

		statuses = append(statuses, status)
	}

	return statuses, nil
}

func (s *service) ListDeviceEvents(ctx context.Context, deviceID string) ([]*models.Event, error) {
	if _, err := s.GetDevice(ctx, deviceID); err != nil {
		return nil, err
	}
	return s.repo.ListEvents(ctx, deviceID)
}

// GetMonthlyStats derives the month aggregate for one device. The current
// month is clipped to "now".
func (s *service) GetMonthlyStats(ctx context.Context, deviceID string, year int, month time.Month, now time.Time) (*MonthlyStats, error) {
	if month < time.January || month > time.December {
		return nil, fmt.Errorf("%w: month out of range", ErrValidation)
	}
	if year < 1 {
		return nil, fmt.Errorf("%w: year out of range", ErrValidation)
	}

	if _, err := s.GetDevice(ctx, deviceID); err != nil {
		return nil, err
	}

	windowStart, windowEnd := MonthWindow(year, month, now)
	if !windowStart.Before(windowEnd) {
		// Month entirely in the future: an empty window.
		return ComputeMonthlyStats(deviceID, year, month, nil, now), nil
	}

	events, err := s.repo.EventsOverlapping(ctx, deviceID, windowStart, windowEnd)
	if err != nil {
		return nil, fmt.Errorf("failed to load events: %w", err)
	}

	return ComputeMonthlyStats(deviceID, year, month, events, now), nil
}

// Subscriber operations implementation

func (s *service) CreateSubscriber(ctx context.Context, sub *models.Subscriber) error {
	if sub.ChatID == 0 {
		return fmt.Errorf("%w: chat id is required", ErrValidation)
	}
	return s.repo.CreateSubscriber(ctx, sub)
}

func (s *service) UpdateSubscriber(ctx context.Context, sub *models.Subscriber) error {
	return s.repo.UpdateSubscriber(ctx, sub)
}

func (s *service) DeleteSubscriber(ctx context.Context, id uint) error {
	return s.repo.DeleteSubscriber(ctx, id)
}

func (s *service) ListSubscribers(ctx context.Context) ([]*models.Subscriber, error) {
	return s.repo.ListSubscribers(ctx)
}

// Event export/import implementation

func (s *service) ExportEvents(ctx context.Context) ([]ExportedEvent, error) {
	events, err := s.repo.ListAllEvents(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load events: %w", err)
	}
	return toExported(events), nil
}

// ImportEvents replaces the event log of every device present in the set.
// The invariants are re-validated first; a violating set is rejected whole.
func (s *service) ImportEvents(ctx context.Context, events []ExportedEvent) error {
	if err := ValidateEventLog(events); err != nil {
		return err
	}

	if err := s.repo.ReplaceEvents(ctx, toModels(events)); err != nil {
		return fmt.Errorf("failed to import events: %w", err)
	}

	s.log.WithField("events", len(events)).Info("Event log imported")
	return nil
}
