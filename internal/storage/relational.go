package storage

import (
	"context"
	"database/sql/driver"
	"errors"
	"fmt"
	"net"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"portfolio/internal/database"
	"portfolio/internal/domain"
	apperrors "portfolio/pkg/errors"
)

// RelationalBackend stores site data in PostgreSQL or SQLite through gorm
type RelationalBackend struct {
	db *gorm.DB
}

// NewRelationalBackend wraps an opened and migrated database handle
func NewRelationalBackend(db *gorm.DB) *RelationalBackend {
	return &RelationalBackend{db: db}
}

// DB exposes the handle for health checks
func (b *RelationalBackend) DB() *gorm.DB {
	return b.db
}

func (b *RelationalBackend) Name() string {
	return b.db.Dialector.Name()
}

func (b *RelationalBackend) Relational() bool {
	return true
}

func (b *RelationalBackend) Close() error {
	database.Close(b.db)
	return nil
}

// classify marks connectivity failures as BackendUnavailable and wraps the rest
func classify(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		return err
	}
	var netErr net.Error
	if errors.Is(err, driver.ErrBadConn) || errors.Is(err, context.DeadlineExceeded) || errors.As(err, &netErr) {
		return apperrors.Wrap(apperrors.ErrCodeBackendUnavailable, op+" failed", err)
	}
	return fmt.Errorf("%s: %w", op, err)
}

func (b *RelationalBackend) GetConfig(ctx context.Context, key string) (datatypes.JSON, bool, error) {
	var row domain.SiteConfig
	err := b.db.WithContext(ctx).Where("key = ?", key).Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, classify("get config", err)
	}
	return row.Value, true, nil
}

func (b *RelationalBackend) PutConfig(ctx context.Context, key string, value datatypes.JSON) error {
	return classify("put config", upsertConfig(b.db.WithContext(ctx), key, value))
}

func upsertConfig(tx *gorm.DB, key string, value datatypes.JSON) error {
	return tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value"}),
	}).Create(&domain.SiteConfig{Key: key, Value: value}).Error
}

func (b *RelationalBackend) Load(ctx context.Context) (*domain.SiteData, error) {
	db := b.db.WithContext(ctx)
	data := &domain.SiteData{}

	var configs []domain.SiteConfig
	if err := db.Where("key IN ?", domain.ContentSections).Find(&configs).Error; err != nil {
		return nil, classify("load config", err)
	}
	for _, c := range configs {
		data.SetSection(c.Key, c.Value)
	}

	if err := db.Order("display_order").Find(&data.Projects).Error; err != nil {
		return nil, classify("load projects", err)
	}
	if err := db.Order("display_order").Find(&data.Skills).Error; err != nil {
		return nil, classify("load skills", err)
	}
	if err := db.Order("display_order").Find(&data.Experiences).Error; err != nil {
		return nil, classify("load experiences", err)
	}
	if err := db.Order("display_order").Find(&data.Testimonials).Error; err != nil {
		return nil, classify("load testimonials", err)
	}
	if err := db.Order("id").Find(&data.Messages).Error; err != nil {
		return nil, classify("load messages", err)
	}
	if err := db.Order("id").Find(&data.Appointments).Error; err != nil {
		return nil, classify("load appointments", err)
	}

	var subscribers []domain.Subscriber
	if err := db.Order("created_at, email").Find(&subscribers).Error; err != nil {
		return nil, classify("load subscribers", err)
	}
	data.Subscribers, data.PendingSubscribers = splitSubscribers(subscribers)

	stats, err := b.DailyStats(ctx)
	if err != nil {
		return nil, err
	}
	data.DailyStats = stats
	return data, nil
}

func splitSubscribers(all []domain.Subscriber) (verified, pending []domain.Subscriber) {
	verified = []domain.Subscriber{}
	pending = []domain.Subscriber{}
	for _, s := range all {
		if s.Verified {
			verified = append(verified, s)
		} else {
			pending = append(pending, s)
		}
	}
	return verified, pending
}

func (b *RelationalBackend) ReplaceContent(ctx context.Context, u *domain.ContentUpdate) error {
	err := b.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for key, value := range u.Sections() {
			if err := upsertConfig(tx, key, value); err != nil {
				return err
			}
		}
		if u.Projects != nil {
			if err := replaceAll(tx, &domain.Project{}, u.Projects); err != nil {
				return err
			}
		}
		if u.Skills != nil {
			if err := replaceAll(tx, &domain.Skill{}, u.Skills); err != nil {
				return err
			}
		}
		if u.Experiences != nil {
			if err := replaceAll(tx, &domain.Experience{}, u.Experiences); err != nil {
				return err
			}
		}
		if u.Testimonials != nil {
			if err := replaceAll(tx, &domain.Testimonial{}, u.Testimonials); err != nil {
				return err
			}
		}
		return nil
	})
	return classify("replace content", err)
}

// replaceAll deletes every row of model's table and inserts rows
func replaceAll[T any](tx *gorm.DB, model *T, rows []T) error {
	if err := tx.Where("1 = 1").Delete(model).Error; err != nil {
		return err
	}
	if len(rows) == 0 {
		return nil
	}
	return tx.Create(&rows).Error
}

func insertIgnore[T any](tx *gorm.DB, rows []T) error {
	if len(rows) == 0 {
		return nil
	}
	return tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&rows).Error
}

func (b *RelationalBackend) Import(ctx context.Context, data *domain.SiteData) error {
	err := b.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, key := range domain.ContentSections {
			value := data.Section(key)
			if value == nil {
				continue
			}
			row := domain.SiteConfig{Key: key, Value: value}
			if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&row).Error; err != nil {
				return err
			}
		}
		if err := insertIgnore(tx, data.Projects); err != nil {
			return err
		}
		if err := insertIgnore(tx, data.Skills); err != nil {
			return err
		}
		if err := insertIgnore(tx, data.Experiences); err != nil {
			return err
		}
		if err := insertIgnore(tx, data.Testimonials); err != nil {
			return err
		}
		if err := insertIgnore(tx, data.Messages); err != nil {
			return err
		}
		if err := insertIgnore(tx, data.Appointments); err != nil {
			return err
		}
		subscribers := append(append([]domain.Subscriber{}, data.Subscribers...), data.PendingSubscribers...)
		if err := insertIgnore(tx, subscribers); err != nil {
			return err
		}
		if err := insertIgnore(tx, data.DailyStats); err != nil {
			return err
		}
		return syncSequences(tx)
	})
	return classify("import", err)
}

// syncSequences moves PostgreSQL serial sequences past imported explicit ids
func syncSequences(tx *gorm.DB) error {
	if tx.Dialector.Name() != "postgres" {
		return nil
	}
	for _, table := range []string{"messages", "appointments"} {
		stmt := fmt.Sprintf("SELECT setval(pg_get_serial_sequence('%[1]s', 'id'), COALESCE((SELECT MAX(id) FROM %[1]s), 0) + 1, false)", table)
		if err := tx.Exec(stmt).Error; err != nil {
			return err
		}
	}
	return nil
}

func (b *RelationalBackend) AddSubscriber(ctx context.Context, sub domain.Subscriber) error {
	err := b.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "email"}},
			DoNothing: true,
		}).Create(&sub)
		if res.Error != nil || res.RowsAffected == 1 {
			return res.Error
		}

		var existing domain.Subscriber
		if err := tx.Where("email = ?", sub.Email).Take(&existing).Error; err != nil {
			return err
		}
		if existing.Verified {
			return ErrAlreadySubscribed
		}
		// Pending: a new request replaces the old token.
		return tx.Model(&existing).Updates(map[string]interface{}{
			"verified":           sub.Verified,
			"verification_token": sub.VerificationToken,
			"token_expires":      sub.TokenExpires,
		}).Error
	})
	return classify("add subscriber", err)
}

func (b *RelationalBackend) RemoveSubscriber(ctx context.Context, email string) (domain.Subscriber, error) {
	var removed domain.Subscriber
	err := b.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("email = ?", email).Take(&removed).Error; err != nil {
			return err
		}
		return tx.Delete(&removed).Error
	})
	if err != nil {
		return domain.Subscriber{}, classify("remove subscriber", err)
	}
	return removed, nil
}

func (b *RelationalBackend) ConfirmSubscriber(ctx context.Context, token string, now time.Time) (string, error) {
	var email string
	err := b.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var sub domain.Subscriber
		err := tx.Where("verification_token = ? AND verified = ?", token, false).Take(&sub).Error
		if err != nil {
			return err
		}
		if sub.TokenExpires != nil && now.After(*sub.TokenExpires) {
			return ErrNotFound
		}
		email = sub.Email
		return tx.Model(&sub).Updates(map[string]interface{}{
			"verified":           true,
			"verification_token": nil,
			"token_expires":      nil,
		}).Error
	})
	if err != nil {
		return "", classify("confirm subscriber", err)
	}
	return email, nil
}

func (b *RelationalBackend) AddMessage(ctx context.Context, msg *domain.Message, day string, window int) error {
	err := b.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(msg).Error; err != nil {
			return err
		}
		return incrementStat(tx, day, domain.CounterMessages, 1, window)
	})
	return classify("add message", err)
}

func (b *RelationalBackend) SetMessageStatus(ctx context.Context, id uint, status string) error {
	res := b.db.WithContext(ctx).Model(&domain.Message{}).Where("id = ?", id).Update("status", status)
	if res.Error != nil {
		return classify("set message status", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (b *RelationalBackend) DeleteMessage(ctx context.Context, id uint) error {
	res := b.db.WithContext(ctx).Where("id = ?", id).Delete(&domain.Message{})
	if res.Error != nil {
		return classify("delete message", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (b *RelationalBackend) AddAppointment(ctx context.Context, appt *domain.Appointment) error {
	return classify("add appointment", b.db.WithContext(ctx).Create(appt).Error)
}

func (b *RelationalBackend) SetAppointmentStatus(ctx context.Context, id uint, status string) (domain.Appointment, error) {
	var appt domain.Appointment
	err := b.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("id = ?", id).Take(&appt).Error; err != nil {
			return err
		}
		appt.Status = status
		return tx.Model(&appt).Update("status", status).Error
	})
	if err != nil {
		return domain.Appointment{}, classify("set appointment status", err)
	}
	return appt, nil
}

func (b *RelationalBackend) IncrementStat(ctx context.Context, day string, counter domain.StatCounter, delta, window int) error {
	err := b.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return incrementStat(tx, day, counter, delta, window)
	})
	return classify("increment "+string(counter), err)
}

// incrementStat upserts day's row and evicts the rows beyond window
func incrementStat(tx *gorm.DB, day string, counter domain.StatCounter, delta, window int) error {
	column := string(counter)
	row := domain.DailyStat{Date: day}
	row.Add(counter, delta)
	// INSERT ... ON CONFLICT (date) DO UPDATE SET col = daily_stats.col + delta
	err := tx.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "date"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			column: gorm.Expr("daily_stats."+column+" + ?", delta),
		}),
	}).Create(&row).Error
	if err != nil {
		return err
	}

	var dates []string
	if err := tx.Model(&domain.DailyStat{}).Pluck("date", &dates).Error; err != nil {
		return err
	}
	if stale := staleDays(dates, window); len(stale) > 0 {
		return tx.Where("date IN ?", stale).Delete(&domain.DailyStat{}).Error
	}
	return nil
}

func (b *RelationalBackend) DailyStats(ctx context.Context) ([]domain.DailyStat, error) {
	stats := []domain.DailyStat{}
	if err := b.db.WithContext(ctx).Order("date").Find(&stats).Error; err != nil {
		return nil, classify("load daily stats", err)
	}
	return stats, nil
}

func (b *RelationalBackend) ResetStats(ctx context.Context) error {
	return classify("reset stats", b.db.WithContext(ctx).Where("1 = 1").Delete(&domain.DailyStat{}).Error)
}
