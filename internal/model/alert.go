package model

import "time"

// AlertRecord is the audit entry written for every emergency alert attempt.
// It is created before delivery and updated with the outcome afterwards.
type AlertRecord struct {
	ID          string    `gorm:"primaryKey;size:26" json:"id"`
	TriggeredAt time.Time `gorm:"not null;index" json:"triggeredAt"`

	RiderName   string `gorm:"not null" json:"riderName"`
	RiderPhone  string `json:"riderPhone"`
	BloodGroup  string `json:"bloodGroup"`
	Vehicle     string `json:"vehicle"`
	CrashGforce string `json:"crashGforce"`

	Latitude  *float64 `json:"latitude"`
	Longitude *float64 `json:"longitude"`
	MapLink   string   `json:"mapLink"`

	ContactCount   int    `gorm:"not null;default:0" json:"contactCount"`
	Outcome        string `gorm:"not null;default:pending;index" json:"outcome"`
	SentCount      int    `gorm:"not null;default:0" json:"sentCount"`
	FailedCount    int    `gorm:"not null;default:0" json:"failedCount"`
	FailedContacts string `json:"failedContacts"`
	Message        string `json:"message"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}
