// Package storage keeps all durable site data behind one Backend, either a
// relational database reached through gorm or a single JSON file, chosen
// once at startup.
package storage

import (
	"context"
	"fmt"
	"log"
	"time"

	"gorm.io/datatypes"

	"portfolio/internal/config"
	"portfolio/internal/database"
	"portfolio/internal/domain"
	apperrors "portfolio/pkg/errors"
)

var (
	// ErrNotFound is returned when a keyed row does not exist
	ErrNotFound = apperrors.New(apperrors.ErrCodeNotFound, "record not found")
	// ErrAlreadySubscribed is returned when a verified subscriber re-subscribes
	ErrAlreadySubscribed = apperrors.New(apperrors.ErrCodeConflict, "email already subscribed")
)

// ConfigStore holds singleton documents keyed by name. Writes are upserts.
type ConfigStore interface {
	GetConfig(ctx context.Context, key string) (datatypes.JSON, bool, error)
	PutConfig(ctx context.Context, key string, value datatypes.JSON) error
}

// CollectionStore holds keyed collections and the daily stats series
type CollectionStore interface {
	// ReplaceContent deletes and reinserts every collection present in u
	// and upserts its sections, all or nothing.
	ReplaceContent(ctx context.Context, u *domain.ContentUpdate) error
	// Import inserts everything in data, skipping rows whose key exists.
	Import(ctx context.Context, data *domain.SiteData) error

	AddSubscriber(ctx context.Context, sub domain.Subscriber) error
	RemoveSubscriber(ctx context.Context, email string) (domain.Subscriber, error)
	ConfirmSubscriber(ctx context.Context, token string, now time.Time) (string, error)

	// AddMessage stores msg and counts it in day's row in one step
	AddMessage(ctx context.Context, msg *domain.Message, day string, window int) error
	SetMessageStatus(ctx context.Context, id uint, status string) error
	DeleteMessage(ctx context.Context, id uint) error

	AddAppointment(ctx context.Context, appt *domain.Appointment) error
	SetAppointmentStatus(ctx context.Context, id uint, status string) (domain.Appointment, error)

	// IncrementStat adds delta to one counter of day's row, creating the row
	// if needed, then evicts the oldest rows beyond window.
	IncrementStat(ctx context.Context, day string, counter domain.StatCounter, delta, window int) error
	DailyStats(ctx context.Context) ([]domain.DailyStat, error)
	ResetStats(ctx context.Context) error
}

// Backend is one complete storage implementation
type Backend interface {
	ConfigStore
	CollectionStore

	// Load returns every entity; totals are left for the caller.
	Load(ctx context.Context) (*domain.SiteData, error)
	Name() string
	Relational() bool
	Close() error
}

// Open selects the backend from configuration: a relational store when a
// connection string is present, the JSON file otherwise.
func Open(cfg *config.Config) (Backend, error) {
	if cfg.Database.IsConfigured() {
		db, err := database.Open(&cfg.Database)
		if err != nil {
			return nil, apperrors.Wrap(apperrors.ErrCodeBackendUnavailable, "relational store unavailable", err)
		}
		log.Printf("[STORE] Using relational backend (%s)", db.Dialector.Name())
		return NewRelationalBackend(db), nil
	}

	backend, err := NewFileBackend(cfg.Storage.DataFile)
	if err != nil {
		return nil, fmt.Errorf("failed to open data file: %w", err)
	}
	log.Printf("[STORE] Using file backend at %s", cfg.Storage.DataFile)
	return backend, nil
}
