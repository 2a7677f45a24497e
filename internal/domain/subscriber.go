package domain

import (
	"strings"
	"time"
)

// Subscriber is a newsletter address. A pending subscriber carries a
// verification token; confirming it clears the token and sets Verified.
type Subscriber struct {
	Email             string     `gorm:"primaryKey;size:320" json:"email"`
	CreatedAt         time.Time  `json:"createdAt"`
	Verified          bool       `gorm:"not null;index" json:"verified"`
	VerificationToken *string    `gorm:"uniqueIndex;size:64" json:"verificationToken,omitempty"`
	TokenExpires      *time.Time `json:"tokenExpires,omitempty"`
}

// TableName specifies the table name for Subscriber
func (Subscriber) TableName() string {
	return "subscribers"
}

// NormalizeEmail lowercases and trims an address so uniqueness is
// case-insensitive
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// DailyStat is the counter row for one calendar day (YYYY-MM-DD)
type DailyStat struct {
	Date            string `gorm:"primaryKey;size:10" json:"date"`
	Visits          int    `gorm:"not null;default:0" json:"visits"`
	MessageCount    int    `gorm:"not null;default:0" json:"messageCount"`
	SubscriberCount int    `gorm:"not null;default:0" json:"subscriberCount"`
}

// TableName specifies the table name for DailyStat
func (DailyStat) TableName() string {
	return "daily_stats"
}

// StatCounter names one of the additive counters of a DailyStat
type StatCounter string

const (
	CounterVisits      StatCounter = "visits"
	CounterMessages    StatCounter = "message_count"
	CounterSubscribers StatCounter = "subscriber_count"
)

// Add applies delta to the named counter
func (d *DailyStat) Add(counter StatCounter, delta int) {
	switch counter {
	case CounterVisits:
		d.Visits += delta
	case CounterMessages:
		d.MessageCount += delta
	case CounterSubscribers:
		d.SubscriberCount += delta
	}
}

// AdminCredential is the stored admin password derivation, hex encoded
type AdminCredential struct {
	Salt string `json:"salt"`
	Hash string `json:"hash"`
}
