package beneficiaries

import (
	"time"

	"gorm.io/gorm"
)

// MaxGuardians is the number of guardian column groups in a beneficiary row.
const MaxGuardians = 3

// Guardian is a contact person for a beneficiary. Any field may be blank.
type Guardian struct {
	Name          string `json:"name"`
	Relation      string `json:"relation"`
	ContactNumber string `json:"contact_number"`
	Email         string `json:"email"`
}

// Beneficiary is a program participant.
// A nil AccreditedID marks a waitlisted beneficiary, identified by name instead.
type Beneficiary struct {
	ID           string     `gorm:"primaryKey;type:text" json:"id"`
	AccreditedID *float64   `gorm:"index" json:"accredited_id"`
	FirstName    string     `gorm:"not null" json:"first_name"`
	LastName     string     `gorm:"not null" json:"last_name"`
	Sex          string     `json:"sex"`         // "", "M" or "F"
	Birthdate    time.Time  `json:"birthdate"`
	GradeLevel   string     `json:"grade_level"` // "", "1".."12", "N" or "K"
	Address      string     `json:"address"`
	Cluster      string     `json:"cluster"`
	Guardians    []Guardian `gorm:"serializer:json;type:text" json:"guardians"`
	TimeToLive   *time.Time `gorm:"index" json:"time_to_live"`
	CreatedAt    time.Time  `gorm:"not null" json:"created_at"`
}

func (Beneficiary) TableName() string {
	return "beneficiaries"
}

// Waitlisted reports whether b has no accredited id.
func (b Beneficiary) Waitlisted() bool {
	return b.AccreditedID == nil
}

// AutoMigrate creates the beneficiaries table
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(&Beneficiary{})
}
