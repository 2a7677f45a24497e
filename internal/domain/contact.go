package domain

import (
	"time"
)

// Message status values
const (
	MessageUnread = "unread"
	MessageRead   = "read"
)

// Message is a contact or recruitment form submission.
// Only Status changes after creation.
type Message struct {
	ID          uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	Date        time.Time `gorm:"not null;index" json:"date"`
	Name        string    `gorm:"not null" json:"name"`
	Email       string    `gorm:"not null;index" json:"email"`
	Message     string    `gorm:"type:text;not null" json:"message"`
	Status      string    `gorm:"not null;size:16" json:"status"`
	Company     *string   `json:"company,omitempty"`
	ProjectType *string   `json:"projectType,omitempty"`
	Budget      *string   `json:"budget,omitempty"`
	Timeline    *string   `json:"timeline,omitempty"`
	Recruitment bool      `gorm:"not null" json:"recruitment"`
}

// TableName specifies the table name for Message
func (Message) TableName() string {
	return "messages"
}

// IsValidMessageStatus reports whether status is a known message status
func IsValidMessageStatus(status string) bool {
	return status == MessageUnread || status == MessageRead
}

// Appointment status values
const (
	AppointmentPending   = "pending"
	AppointmentConfirmed = "confirmed"
	AppointmentCancelled = "cancelled"
)

// Appointment is a call request. Date is YYYY-MM-DD and Time is HH:MM.
type Appointment struct {
	ID        uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	Date      string    `gorm:"not null;size:10;index" json:"date"`
	Time      string    `gorm:"not null;size:5" json:"time"`
	Name      string    `gorm:"not null" json:"name"`
	Email     string    `gorm:"not null" json:"email"`
	Topic     string    `gorm:"type:text" json:"topic"`
	Status    string    `gorm:"not null;size:16" json:"status"`
	CreatedAt time.Time `json:"createdAt"`
}

// TableName specifies the table name for Appointment
func (Appointment) TableName() string {
	return "appointments"
}

// IsValidAppointmentStatus reports whether status is a known appointment status
func IsValidAppointmentStatus(status string) bool {
	switch status {
	case AppointmentPending, AppointmentConfirmed, AppointmentCancelled:
		return true
	}
	return false
}
