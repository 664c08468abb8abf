package repository

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"example.com/powermon/internal/models"
)

// memoryRepo is an in-memory Repository used in tests and for running the
// service without a database.
type memoryRepo struct {
	mu   sync.Mutex
	txMu sync.Mutex

	devices     map[string]*models.Device
	events      []*models.Event
	subscribers []*models.Subscriber

	nextEventID uint
	nextSubID   uint
}

// NewMemoryRepository creates an empty in-memory repository.
func NewMemoryRepository() Repository {
	return &memoryRepo{
		devices:     make(map[string]*models.Device),
		nextEventID: 1,
		nextSubID:   1,
	}
}

// WithTransaction serializes transactional sections and rolls the event log
// back if fn fails, so a close+open pair never commits halfway.
func (m *memoryRepo) WithTransaction(ctx context.Context, fn func(ctx context.Context, txRepo Repository) error) error {
	m.txMu.Lock()
	defer m.txMu.Unlock()

	m.mu.Lock()
	snapshot := make([]*models.Event, len(m.events))
	for i, e := range m.events {
		cp := *e
		snapshot[i] = &cp
	}
	nextID := m.nextEventID
	m.mu.Unlock()

	if err := fn(ctx, m); err != nil {
		m.mu.Lock()
		m.events = snapshot
		m.nextEventID = nextID
		m.mu.Unlock()
		return err
	}
	return nil
}

func (m *memoryRepo) CreateDevice(ctx context.Context, device *models.Device) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.devices[device.ID]; ok {
		return fmt.Errorf("device %q already exists", device.ID)
	}
	device.CreatedAt = time.Now()
	device.UpdatedAt = device.CreatedAt
	cp := *device
	m.devices[device.ID] = &cp
	return nil
}

func (m *memoryRepo) UpdateDeviceDescription(ctx context.Context, id, description string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if d, ok := m.devices[id]; ok {
		d.Description = description
		d.UpdatedAt = time.Now()
	}
	return nil
}

func (m *memoryRepo) FindDeviceByID(ctx context.Context, id string) (*models.Device, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	d, ok := m.devices[id]
	if !ok {
		return nil, nil
	}
	cp := *d
	return &cp, nil
}

func (m *memoryRepo) ListDevices(ctx context.Context) ([]*models.Device, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]*models.Device, 0, len(m.devices))
	for _, d := range m.devices {
		cp := *d
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *memoryRepo) UpsertHeartbeat(ctx context.Context, id string, ts time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	d, ok := m.devices[id]
	if !ok {
		return nil
	}
	if d.Heartbeat == nil || d.Heartbeat.Before(ts) {
		t := ts
		d.Heartbeat = &t
		d.UpdatedAt = time.Now()
	}
	return nil
}

func (m *memoryRepo) CreateEvent(ctx context.Context, event *models.Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if event.ID == 0 {
		event.ID = m.nextEventID
		m.nextEventID++
	} else if event.ID >= m.nextEventID {
		m.nextEventID = event.ID + 1
	}
	event.CreatedAt = time.Now()
	event.UpdatedAt = event.CreatedAt
	cp := *event
	m.events = append(m.events, &cp)
	return nil
}

func (m *memoryRepo) CloseEvent(ctx context.Context, eventID uint, endAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, e := range m.events {
		if e.ID == eventID && e.EndAt == nil {
			t := endAt
			e.EndAt = &t
			e.UpdatedAt = time.Now()
			return nil
		}
	}
	return nil
}

func (m *memoryRepo) LatestEvent(ctx context.Context, deviceID string) (*models.Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var latest *models.Event
	for _, e := range m.events {
		if e.DeviceID != deviceID {
			continue
		}
		if latest == nil || e.StartAt.After(latest.StartAt) {
			latest = e
		}
	}
	if latest == nil {
		return nil, nil
	}
	cp := *latest
	return &cp, nil
}

func (m *memoryRepo) EventsOverlapping(ctx context.Context, deviceID string, from, to time.Time) ([]*models.Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []*models.Event
	for _, e := range m.events {
		if e.DeviceID != deviceID {
			continue
		}
		if !e.StartAt.Before(to) {
			continue
		}
		if e.EndAt != nil && !e.EndAt.After(from) {
			continue
		}
		cp := *e
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartAt.Before(out[j].StartAt) })
	return out, nil
}

func (m *memoryRepo) ListEvents(ctx context.Context, deviceID string) ([]*models.Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []*models.Event
	for _, e := range m.events {
		if e.DeviceID == deviceID {
			cp := *e
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartAt.Before(out[j].StartAt) })
	return out, nil
}

func (m *memoryRepo) ListAllEvents(ctx context.Context) ([]*models.Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]*models.Event, 0, len(m.events))
	for _, e := range m.events {
		cp := *e
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].DeviceID != out[j].DeviceID {
			return out[i].DeviceID < out[j].DeviceID
		}
		return out[i].StartAt.Before(out[j].StartAt)
	})
	return out, nil
}

func (m *memoryRepo) ReplaceEvents(ctx context.Context, events []*models.Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	replaced := make(map[string]bool)
	for _, e := range events {
		replaced[e.DeviceID] = true
	}
	if len(replaced) == 0 {
		return nil
	}

	kept := m.events[:0]
	for _, e := range m.events {
		if !replaced[e.DeviceID] {
			kept = append(kept, e)
		}
	}
	m.events = kept

	for _, e := range events {
		cp := *e
		if cp.ID == 0 {
			cp.ID = m.nextEventID
			m.nextEventID++
		} else if cp.ID >= m.nextEventID {
			m.nextEventID = cp.ID + 1
		}
		m.events = append(m.events, &cp)
	}
	return nil
}

func (m *memoryRepo) CreateSubscriber(ctx context.Context, sub *models.Subscriber) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if sub.ID == 0 {
		sub.ID = m.nextSubID
		m.nextSubID++
	}
	sub.CreatedAt = time.Now()
	sub.UpdatedAt = sub.CreatedAt
	cp := *sub
	m.subscribers = append(m.subscribers, &cp)
	return nil
}

func (m *memoryRepo) UpdateSubscriber(ctx context.Context, sub *models.Subscriber) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i, s := range m.subscribers {
		if s.ID == sub.ID {
			sub.UpdatedAt = time.Now()
			cp := *sub
			m.subscribers[i] = &cp
			return nil
		}
	}
	return fmt.Errorf("subscriber %d not found", sub.ID)
}

func (m *memoryRepo) DeleteSubscriber(ctx context.Context, id uint) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i, s := range m.subscribers {
		if s.ID == id {
			m.subscribers = append(m.subscribers[:i], m.subscribers[i+1:]...)
			return nil
		}
	}
	return nil
}

func (m *memoryRepo) ListSubscribers(ctx context.Context) ([]*models.Subscriber, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]*models.Subscriber, 0, len(m.subscribers))
	for _, s := range m.subscribers {
		cp := *s
		out = append(out, &cp)
	}
	return out, nil
}

func (m *memoryRepo) ListActiveSubscribers(ctx context.Context, deviceID string) ([]*models.Subscriber, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []*models.Subscriber
	for _, s := range m.subscribers {
		if !s.IsActive {
			continue
		}
		if s.DeviceID != nil && *s.DeviceID != deviceID {
			continue
		}
		cp := *s
		out = append(out, &cp)
	}
	return out, nil
}
