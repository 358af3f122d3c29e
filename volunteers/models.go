package volunteers

import (
	"time"

	"gorm.io/gorm"
)

const (
	RoleAdmin     = "Admin"
	RoleVolunteer = "Volunteer"
)

// Volunteer is a sign-in capable helper. ID is the identity account uid.
type Volunteer struct {
	ID            string     `gorm:"primaryKey;type:text" json:"id"`
	Email         string     `gorm:"index;not null" json:"email"`
	FirstName     string     `gorm:"not null" json:"first_name"`
	LastName      string     `gorm:"not null" json:"last_name"`
	Sex           string     `json:"sex"`
	Birthdate     time.Time  `json:"birthdate"`
	Address       string     `json:"address"`
	ContactNumber string     `json:"contact_number"`
	IsAdmin       bool       `gorm:"not null" json:"is_admin"`
	Role          string     `gorm:"not null" json:"role"` // Admin or Volunteer
	TimeToLive    *time.Time `gorm:"index" json:"time_to_live"`
	CreatedAt     time.Time  `gorm:"not null" json:"created_at"`
}

func (Volunteer) TableName() string {
	return "volunteers"
}

// DisplayName is the name shown on the volunteer's account.
func (v Volunteer) DisplayName() string {
	return v.FirstName + " " + v.LastName
}

// AutoMigrate creates the volunteers table
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(&Volunteer{})
}
