package model

import "time"

// PushSubscription holds the information for a browser push subscription.
// Every subscription receives the emergency notification.
type PushSubscription struct {
	Endpoint  string    `gorm:"primaryKey"`
	P256DH    string    `gorm:"column:p256dh;not null"`
	Auth      string    `gorm:"not null"`
	Label     string    `gorm:"size:64"`
	CreatedAt time.Time `gorm:"not null"`
}
