package events

import (
	"time"

	"gorm.io/gorm"
)

// Local is the fixed zone event times are entered and exported in.
var Local = time.FixedZone("UTC+8", 8*60*60)

// MaxDescription is the longest description kept, in characters.
const MaxDescription = 255

type Event struct {
	ID          string     `gorm:"primaryKey;type:text" json:"id"`
	Name        string     `gorm:"not null" json:"name"`
	Description string     `gorm:"size:255" json:"description"`
	StartDate   time.Time  `gorm:"not null;index" json:"start_date"`
	EndDate     time.Time  `gorm:"not null" json:"end_date"`
	Location    string     `json:"location"`
	TimeToLive  *time.Time `gorm:"index" json:"time_to_live"`
	CreatedAt   time.Time  `gorm:"not null" json:"created_at"`
}

func (Event) TableName() string {
	return "events"
}

// Attendee links a beneficiary to an event. BeneficiaryID is the
// beneficiary's document id, not its accredited number.
type Attendee struct {
	ID            string    `gorm:"primaryKey;type:text" json:"id"`
	EventID       string    `gorm:"not null;index" json:"event_id"`
	BeneficiaryID string    `gorm:"index" json:"beneficiary_id"`
	FirstName     string    `json:"first_name"`
	LastName      string    `json:"last_name"`
	Email         string    `json:"email"`
	ContactNumber string    `json:"contact_number"`
	Attended      bool      `json:"attended"`
	WhoAttended   string    `json:"who_attended"`
	CreatedAt     time.Time `gorm:"not null" json:"created_at"`
}

func (Attendee) TableName() string {
	return "event_attendees"
}

func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(&Event{}, &Attendee{})
}
