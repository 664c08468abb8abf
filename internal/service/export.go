package service

import (
	"fmt"
	"time"

	"example.com/powermon/internal/models"
)

// ExportedEvent is one record of the stable event interchange format:
// ordered by (device_id, start_at), RFC3339 timestamps, null end_at for the
// open interval.
type ExportedEvent struct {
	DeviceID  string     `json:"device_id"`
	IsPowerOn bool       `json:"is_power_on"`
	StartAt   time.Time  `json:"start_at"`
	EndAt     *time.Time `json:"end_at"`
}

func toExported(events []*models.Event) []ExportedEvent {
	out := make([]ExportedEvent, 0, len(events))
	for _, e := range events {
		out = append(out, ExportedEvent{
			DeviceID:  e.DeviceID,
			IsPowerOn: e.IsPowerOn,
			StartAt:   e.StartAt,
			EndAt:     e.EndAt,
		})
	}
	return out
}

func toModels(events []ExportedEvent) []*models.Event {
	out := make([]*models.Event, 0, len(events))
	for _, e := range events {
		out = append(out, &models.Event{
			DeviceID:  e.DeviceID,
			IsPowerOn: e.IsPowerOn,
			StartAt:   e.StartAt,
			EndAt:     e.EndAt,
		})
	}
	return out
}

// ValidateEventLog checks the per-device invariants of an event set before
// it may be committed: ascending, contiguous, alternating intervals with at
// most one open interval per device, which must be the last one.
func ValidateEventLog(events []ExportedEvent) error {
	byDevice := make(map[string][]ExportedEvent)
	for _, e := range events {
		if e.DeviceID == "" {
			return fmt.Errorf("%w: event with empty device id", ErrInvariantViolation)
		}
		byDevice[e.DeviceID] = append(byDevice[e.DeviceID], e)
	}

	for deviceID, evs := range byDevice {
		for i, e := range evs {
			if e.EndAt != nil && !e.EndAt.After(e.StartAt) {
				return fmt.Errorf("%w: device %s event %d ends before it starts", ErrInvariantViolation, deviceID, i)
			}
			if i == len(evs)-1 {
				continue
			}
			next := evs[i+1]
			if e.EndAt == nil {
				return fmt.Errorf("%w: device %s has an open interval before the last event", ErrInvariantViolation, deviceID)
			}
			if !e.StartAt.Before(next.StartAt) {
				return fmt.Errorf("%w: device %s events %d..%d out of order", ErrInvariantViolation, deviceID, i, i+1)
			}
			if !e.EndAt.Equal(next.StartAt) {
				return fmt.Errorf("%w: device %s events %d..%d are not contiguous", ErrInvariantViolation, deviceID, i, i+1)
			}
			if e.IsPowerOn == next.IsPowerOn {
				return fmt.Errorf("%w: device %s events %d..%d do not alternate", ErrInvariantViolation, deviceID, i, i+1)
			}
		}
	}

	return nil
}
