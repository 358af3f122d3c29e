package volunteers

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
)

// Store persists volunteers with gorm.
type Store struct {
	db *gorm.DB
}

func NewStore(db *gorm.DB) *Store {
	return &Store{db: db}
}

// Live returns every volunteer that is not soft-deleted.
func (s *Store) Live(ctx context.Context) ([]Volunteer, error) {
	var live []Volunteer
	err := s.db.WithContext(ctx).
		Where("time_to_live IS NULL").
		Order("created_at, email").
		Find(&live).Error
	if err != nil {
		return nil, fmt.Errorf("load volunteers: %w", err)
	}
	return live, nil
}

// ErrExists is returned by Create when a live volunteer already holds the uid.
var ErrExists = errors.New("volunteer already exists")

// Create writes one volunteer document keyed by its account uid. A
// soft-deleted document with the same uid is replaced and made live again.
func (s *Store) Create(ctx context.Context, v Volunteer) error {
	if v.ID == "" {
		return fmt.Errorf("volunteer %s has no account uid", v.Email)
	}
	v.CreatedAt = time.Now()
	v.TimeToLive = nil

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing Volunteer
		err := tx.Select("id", "time_to_live").First(&existing, "id = ?", v.ID).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			return tx.Create(&v).Error
		case err != nil:
			return err
		case existing.TimeToLive == nil:
			return ErrExists
		}
		return tx.Save(&v).Error
	})
	if err != nil {
		return fmt.Errorf("write volunteer %s: %w", v.Email, err)
	}
	return nil
}

// SoftDelete schedules id for purging at ttl.
func (s *Store) SoftDelete(ctx context.Context, id string, ttl time.Time) error {
	return s.db.WithContext(ctx).Model(&Volunteer{}).Where("id = ?", id).Update("time_to_live", ttl).Error
}
