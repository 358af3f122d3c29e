package beneficiaries

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Store persists beneficiaries with gorm.
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

// Live returns every beneficiary that is not soft-deleted.
func (s *Store) Live(ctx context.Context) ([]Beneficiary, error) {
	var live []Beneficiary
	err := s.db.WithContext(ctx).
		Where("time_to_live IS NULL").
		Order("created_at, id").
		Find(&live).Error
	if err != nil {
		return nil, fmt.Errorf("load beneficiaries: %w", err)
	}
	return live, nil
}

// CreateBatch writes records in one transaction: all commit or none do.
// Ids and creation times are assigned in place.
func (s *Store) CreateBatch(ctx context.Context, records []Beneficiary) error {
	now := time.Now()
	for i := range records {
		if records[i].ID == "" {
			records[i].ID = uuid.NewString()
		}
		records[i].CreatedAt = now
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.CreateInBatches(records, s.batchSize).Error; err != nil {
			return fmt.Errorf("write beneficiaries: %w", err)
		}
		return nil
	})
}

// FindByIDs returns the beneficiaries with the given document ids, live or not.
func (s *Store) FindByIDs(ctx context.Context, ids []string) ([]Beneficiary, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var found []Beneficiary
	if err := s.db.WithContext(ctx).Where("id IN ?", ids).Find(&found).Error; err != nil {
		return nil, fmt.Errorf("find beneficiaries: %w", err)
	}
	return found, nil
}

// SoftDelete schedules id for purging at ttl.
func (s *Store) SoftDelete(ctx context.Context, id string, ttl time.Time) error {
	return s.db.WithContext(ctx).Model(&Beneficiary{}).Where("id = ?", id).Update("time_to_live", ttl).Error
}
