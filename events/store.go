package events

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"nonprofit-records/common"
)

// Store persists events and their attendee lists.
type Store struct {
	db        *gorm.DB
	batchSize int
}

func NewStore(db *gorm.DB, batchSize int) *Store {
	if batchSize <= 0 {
		batchSize = 500
	}
	return &Store{db: db, batchSize: batchSize}
}

// Live returns every event that is not soft-deleted, earliest first.
func (s *Store) Live(ctx context.Context) ([]Event, error) {
	var live []Event
	err := s.db.WithContext(ctx).
		Where("time_to_live IS NULL").
		Order("start_date, name").
		Find(&live).Error
	if err != nil {
		return nil, fmt.Errorf("load events: %w", err)
	}
	return live, nil
}

// CreateBatch writes records atomically, assigning ids in place.
func (s *Store) CreateBatch(ctx context.Context, records []Event) error {
	now := time.Now()
	for i := range records {
		if records[i].ID == "" {
			records[i].ID = uuid.NewString()
		}
		records[i].CreatedAt = now
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.CreateInBatches(records, s.batchSize).Error; err != nil {
			return fmt.Errorf("write events: %w", err)
		}
		return nil
	})
}

// Get returns a single live event by id.
func (s *Store) Get(ctx context.Context, id string) (*Event, error) {
	var event Event
	err := s.db.WithContext(ctx).
		Where("time_to_live IS NULL").
		First(&event, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, common.NewError(common.CodeNotFound, "Event not found.")
	}
	if err != nil {
		return nil, fmt.Errorf("get event %s: %w", id, err)
	}
	return &event, nil
}

// Attendees returns the attendee list of an event in sign-up order.
func (s *Store) Attendees(ctx context.Context, eventID string) ([]Attendee, error) {
	var attendees []Attendee
	err := s.db.WithContext(ctx).
		Where("event_id = ?", eventID).
		Order("created_at, id").
		Find(&attendees).Error
	if err != nil {
		return nil, fmt.Errorf("load attendees of %s: %w", eventID, err)
	}
	return attendees, nil
}

// AddAttendee appends a to its event's attendee list.
func (s *Store) AddAttendee(ctx context.Context, a *Attendee) error {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	a.CreatedAt = time.Now()
	if err := s.db.WithContext(ctx).Create(a).Error; err != nil {
		return fmt.Errorf("add attendee to %s: %w", a.EventID, err)
	}
	return nil
}

func (s *Store) SoftDelete(ctx context.Context, id string, ttl time.Time) error {
	return s.db.WithContext(ctx).Model(&Event{}).Where("id = ?", id).Update("time_to_live", ttl).Error
}
