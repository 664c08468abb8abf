package repository

import (
	"context"
	"errors"
	"time"

	"example.com/powermon/internal/database"
	"example.com/powermon/internal/models"

	"gorm.io/gorm"
)

// Repository provides data access methods. Two implementations exist: the
// GORM-backed one created by NewRepository and the in-memory one used in
// tests (see memory.go).
type Repository interface {
	// WithTransaction runs fn against a transactional view of the
	// repository. The monitor relies on this to close and open intervals
	// atomically.
	WithTransaction(ctx context.Context, fn func(ctx context.Context, txRepo Repository) error) error

	// Device operations
	CreateDevice(ctx context.Context, device *models.Device) error
	UpdateDeviceDescription(ctx context.Context, id, description string) error
	FindDeviceByID(ctx context.Context, id string) (*models.Device, error)
	ListDevices(ctx context.Context) ([]*models.Device, error)
	// UpsertHeartbeat advances the device's heartbeat to ts unless the
	// stored value is already newer.
	UpsertHeartbeat(ctx context.Context, id string, ts time.Time) error

	// Event operations
	CreateEvent(ctx context.Context, event *models.Event) error
	CloseEvent(ctx context.Context, eventID uint, endAt time.Time) error
	// LatestEvent returns nil, nil when the device has no events yet.
	LatestEvent(ctx context.Context, deviceID string) (*models.Event, error)
	// EventsOverlapping returns the device's events intersecting
	// [from, to), including open events, ordered by start_at.
	EventsOverlapping(ctx context.Context, deviceID string, from, to time.Time) ([]*models.Event, error)
	ListEvents(ctx context.Context, deviceID string) ([]*models.Event, error)
	ListAllEvents(ctx context.Context) ([]*models.Event, error)
	// ReplaceEvents swaps out the full event log of every device present
	// in events.
	ReplaceEvents(ctx context.Context, events []*models.Event) error

	// Subscriber operations
	CreateSubscriber(ctx context.Context, sub *models.Subscriber) error
	UpdateSubscriber(ctx context.Context, sub *models.Subscriber) error
	DeleteSubscriber(ctx context.Context, id uint) error
	ListSubscribers(ctx context.Context) ([]*models.Subscriber, error)
	// ListActiveSubscribers returns active subscribers interested in the
	// given device: those with no device filter plus those filtered to it.
	ListActiveSubscribers(ctx context.Context, deviceID string) ([]*models.Subscriber, error)
}

// repo is an implementation of the Repository interface
type repo struct {
	db database.DB
}

// Helper type for transaction support
type dbWrapper struct {
	db *gorm.DB
}

func (w *dbWrapper) DB() (*gorm.DB, error) {
	return w.db, nil
}

func (w *dbWrapper) Close() error {
	return nil
}

// NewRepository creates a new repository instance
func NewRepository(db database.DB) Repository {
	return &repo{
		db: db,
	}
}

// WithTransaction executes the given function within a database transaction
func (r *repo) WithTransaction(ctx context.Context, fn func(ctx context.Context, txRepo Repository) error) error {
	gormDB, err := r.db.DB()
	if err != nil {
		return err
	}

	return gormDB.Transaction(func(tx *gorm.DB) error {
		txRepo := &repo{
			db: &dbWrapper{db: tx},
		}
		return fn(ctx, txRepo)
	})
}

// Device operations implementation

func (r *repo) CreateDevice(ctx context.Context, device *models.Device) error {
	gormDB, err := r.db.DB()
	if err != nil {
		return err
	}

	return gormDB.WithContext(ctx).Create(device).Error
}

// UpdateDeviceDescription touches only the description column so concurrent
// heartbeat writes are never overwritten by a stale struct.
func (r *repo) UpdateDeviceDescription(ctx context.Context, id, description string) error {
	gormDB, err := r.db.DB()
	if err != nil {
		return err
	}

	return gormDB.WithContext(ctx).
		Model(&models.Device{}).
		Where("id = ?", id).
		Update("description", description).Error
}

func (r *repo) FindDeviceByID(ctx context.Context, id string) (*models.Device, error) {
	gormDB, err := r.db.DB()
	if err != nil {
		return nil, err
	}

	var device models.Device
	if err := gormDB.WithContext(ctx).Where("id = ?", id).First(&device).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}

	return &device, nil
}

func (r *repo) ListDevices(ctx context.Context) ([]*models.Device, error) {
	gormDB, err := r.db.DB()
	if err != nil {
		return nil, err
	}

	var devices []*models.Device
	if err := gormDB.WithContext(ctx).Order("id").Find(&devices).Error; err != nil {
		return nil, err
	}

	return devices, nil
}

func (r *repo) UpsertHeartbeat(ctx context.Context, id string, ts time.Time) error {
	gormDB, err := r.db.DB()
	if err != nil {
		return err
	}

	// Monotonic: a replayed or out-of-order ping must not regress the
	// stored heartbeat.
	return gormDB.WithContext(ctx).Model(&models.Device{}).
		Where("id = ?", id).
		Update("heartbeat", gorm.Expr(
			"CASE WHEN heartbeat IS NULL OR heartbeat < ? THEN ? ELSE heartbeat END", ts, ts,
		)).Error
}

// Event operations implementation

func (r *repo) CreateEvent(ctx context.Context, event *models.Event) error {
	gormDB, err := r.db.DB()
	if err != nil {
		return err
	}

	return gormDB.WithContext(ctx).Create(event).Error
}

func (r *repo) CloseEvent(ctx context.Context, eventID uint, endAt time.Time) error {
	gormDB, err := r.db.DB()
	if err != nil {
		return err
	}

	return gormDB.WithContext(ctx).Model(&models.Event{}).
		Where("id = ? AND end_at IS NULL", eventID).
		Update("end_at", endAt).Error
}

func (r *repo) LatestEvent(ctx context.Context, deviceID string) (*models.Event, error) {
	gormDB, err := r.db.DB()
	if err != nil {
		return nil, err
	}

	var event models.Event
	err = gormDB.WithContext(ctx).
		Where("device_id = ?", deviceID).
		Order("start_at DESC").
		First(&event).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}

	return &event, nil
}

func (r *repo) EventsOverlapping(ctx context.Context, deviceID string, from, to time.Time) ([]*models.Event, error) {
	gormDB, err := r.db.DB()
	if err != nil {
		return nil, err
	}

	var events []*models.Event
	err = gormDB.WithContext(ctx).
		Where("device_id = ? AND start_at < ? AND (end_at IS NULL OR end_at > ?)", deviceID, to, from).
		Order("start_at").
		Find(&events).Error
	if err != nil {
		return nil, err
	}

	return events, nil
}

func (r *repo) ListEvents(ctx context.Context, deviceID string) ([]*models.Event, error) {
	gormDB, err := r.db.DB()
	if err != nil {
		return nil, err
	}

	var events []*models.Event
	err = gormDB.WithContext(ctx).
		Where("device_id = ?", deviceID).
		Order("start_at").
		Find(&events).Error
	if err != nil {
		return nil, err
	}

	return events, nil
}

func (r *repo) ListAllEvents(ctx context.Context) ([]*models.Event, error) {
	gormDB, err := r.db.DB()
	if err != nil {
		return nil, err
	}

	var events []*models.Event
	if err := gormDB.WithContext(ctx).Order("device_id, start_at").Find(&events).Error; err != nil {
		return nil, err
	}

	return events, nil
}

func (r *repo) ReplaceEvents(ctx context.Context, events []*models.Event) error {
	gormDB, err := r.db.DB()
	if err != nil {
		return err
	}

	deviceIDs := make([]string, 0)
	seen := make(map[string]bool)
	for _, e := range events {
		if !seen[e.DeviceID] {
			seen[e.DeviceID] = true
			deviceIDs = append(deviceIDs, e.DeviceID)
		}
	}
	if len(deviceIDs) == 0 {
		return nil
	}

	return gormDB.Transaction(func(tx *gorm.DB) error {
		if err := tx.WithContext(ctx).Where("device_id IN ?", deviceIDs).Delete(&models.Event{}).Error; err != nil {
			return err
		}
		for _, e := range events {
			if err := tx.WithContext(ctx).Create(e).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

// Subscriber operations implementation

func (r *repo) CreateSubscriber(ctx context.Context, sub *models.Subscriber) error {
	gormDB, err := r.db.DB()
	if err != nil {
		return err
	}

	return gormDB.WithContext(ctx).Create(sub).Error
}

func (r *repo) UpdateSubscriber(ctx context.Context, sub *models.Subscriber) error {
	gormDB, err := r.db.DB()
	if err != nil {
		return err
	}

	return gormDB.WithContext(ctx).Save(sub).Error
}

func (r *repo) DeleteSubscriber(ctx context.Context, id uint) error {
	gormDB, err := r.db.DB()
	if err != nil {
		return err
	}

	return gormDB.WithContext(ctx).Delete(&models.Subscriber{}, id).Error
}

func (r *repo) ListSubscribers(ctx context.Context) ([]*models.Subscriber, error) {
	gormDB, err := r.db.DB()
	if err != nil {
		return nil, err
	}

	var subs []*models.Subscriber
	if err := gormDB.WithContext(ctx).Order("id").Find(&subs).Error; err != nil {
		return nil, err
	}

	return subs, nil
}

func (r *repo) ListActiveSubscribers(ctx context.Context, deviceID string) ([]*models.Subscriber, error) {
	gormDB, err := r.db.DB()
	if err != nil {
		return nil, err
	}

	var subs []*models.Subscriber
	err = gormDB.WithContext(ctx).
		Where("is_active = ? AND (device_id IS NULL OR device_id = ?)", true, deviceID).
		Order("id").
		Find(&subs).Error
	if err != nil {
		return nil, err
	}

	return subs, nil
}
