package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/datatypes"

	"portfolio/internal/config"
	"portfolio/internal/domain"
	"portfolio/internal/metrics"
	apperrors "portfolio/pkg/errors"
)

// Gateway is the single entry point to site persistence. It owns one
// Backend for the life of the process, bounds every call with a deadline
// and keeps the daily stats series in step with visitor events.
type Gateway struct {
	backend Backend
	window  int
	timeout time.Duration
	now     func() time.Time
}

// NewGateway wraps backend using the window and timeout from cfg
func NewGateway(backend Backend, cfg *config.StorageConfig) *Gateway {
	return &Gateway{
		backend: backend,
		window:  cfg.StatsWindowDays,
		timeout: cfg.OperationTimeout,
		now:     time.Now,
	}
}

// WithClock replaces the time source, for tests
func (g *Gateway) WithClock(now func() time.Time) *Gateway {
	g.now = now
	return g
}

// Backend returns the active backend
func (g *Gateway) Backend() Backend {
	return g.backend
}

// IsBackendConfigured reports whether the relational backend is active
func (g *Gateway) IsBackendConfigured() bool {
	return g.backend.Relational()
}

// Close releases the backend
func (g *Gateway) Close() error {
	return g.backend.Close()
}

func (g *Gateway) run(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	start := time.Now()
	err := fn(ctx)
	metrics.RecordStorageOp(g.backend.Name(), op, time.Since(start), err)
	if errors.Is(err, context.DeadlineExceeded) {
		return apperrors.Wrap(apperrors.ErrCodeBackendUnavailable, op+" timed out", err)
	}
	return err
}

// LoadData returns the full snapshot with totals derived from the stats series
func (g *Gateway) LoadData(ctx context.Context) (*domain.SiteData, error) {
	var data *domain.SiteData
	err := g.run(ctx, "load", func(ctx context.Context) error {
		var err error
		data, err = g.backend.Load(ctx)
		return err
	})
	if err != nil {
		return nil, err
	}
	fillEmpty(data)
	data.Visits, data.MessageCount = Totals(data.DailyStats)
	return data, nil
}

// fillEmpty replaces nil collections so both backends serialize alike
func fillEmpty(d *domain.SiteData) {
	if d.Projects == nil {
		d.Projects = []domain.Project{}
	}
	if d.Skills == nil {
		d.Skills = []domain.Skill{}
	}
	if d.Experiences == nil {
		d.Experiences = []domain.Experience{}
	}
	if d.Testimonials == nil {
		d.Testimonials = []domain.Testimonial{}
	}
	if d.Messages == nil {
		d.Messages = []domain.Message{}
	}
	if d.Appointments == nil {
		d.Appointments = []domain.Appointment{}
	}
	if d.Subscribers == nil {
		d.Subscribers = []domain.Subscriber{}
	}
	if d.PendingSubscribers == nil {
		d.PendingSubscribers = []domain.Subscriber{}
	}
	if d.DailyStats == nil {
		d.DailyStats = []domain.DailyStat{}
	}
}

// UpdateContent replaces every collection and section present in u. The
// update is validated in full first; an invalid entry rejects all of it.
func (g *Gateway) UpdateContent(ctx context.Context, u *domain.ContentUpdate) error {
	if u == nil || u.IsEmpty() {
		return nil
	}
	u.Normalize()
	if err := u.Validate(); err != nil {
		return err
	}
	return g.run(ctx, "update_content", func(ctx context.Context) error {
		return g.backend.ReplaceContent(ctx, u)
	})
}

// Import inserts data without overwriting existing rows
func (g *Gateway) Import(ctx context.Context, data *domain.SiteData) error {
	return g.run(ctx, "import", func(ctx context.Context) error {
		return g.backend.Import(ctx, data)
	})
}

// GetConfig reads a singleton document
func (g *Gateway) GetConfig(ctx context.Context, key string) (datatypes.JSON, bool, error) {
	var (
		value datatypes.JSON
		found bool
	)
	err := g.run(ctx, "get_config", func(ctx context.Context) error {
		var err error
		value, found, err = g.backend.GetConfig(ctx, key)
		return err
	})
	return value, found, err
}

// PutConfig upserts a singleton document
func (g *Gateway) PutConfig(ctx context.Context, key string, value datatypes.JSON) error {
	return g.run(ctx, "put_config", func(ctx context.Context) error {
		return g.backend.PutConfig(ctx, key, value)
	})
}

// AddSubscriber stores email as pending under token until expires, or as
// verified right away when token is empty. Re-adding a pending address
// replaces its token; re-adding a verified one fails with ErrAlreadySubscribed.
func (g *Gateway) AddSubscriber(ctx context.Context, email, token string, expires time.Time) error {
	email = domain.NormalizeEmail(email)
	if email == "" || !strings.Contains(email, "@") {
		return apperrors.New(apperrors.ErrCodeBadRequest, "invalid email address")
	}

	sub := domain.Subscriber{
		Email:     email,
		CreatedAt: g.now().UTC(),
		Verified:  token == "",
	}
	if token != "" {
		expiresUTC := expires.UTC()
		sub.VerificationToken = &token
		sub.TokenExpires = &expiresUTC
	}

	err := g.run(ctx, "add_subscriber", func(ctx context.Context) error {
		return g.backend.AddSubscriber(ctx, sub)
	})
	if err != nil {
		return err
	}
	if sub.Verified {
		return g.bump(ctx, domain.CounterSubscribers, 1)
	}
	return nil
}

// RemoveSubscriber deletes email in either state
func (g *Gateway) RemoveSubscriber(ctx context.Context, email string) error {
	var removed domain.Subscriber
	err := g.run(ctx, "remove_subscriber", func(ctx context.Context) error {
		var err error
		removed, err = g.backend.RemoveSubscriber(ctx, domain.NormalizeEmail(email))
		return err
	})
	if err != nil {
		return err
	}
	if removed.Verified {
		return g.bump(ctx, domain.CounterSubscribers, -1)
	}
	return nil
}

// ConfirmSubscriber promotes the pending subscriber holding token. It
// returns false when the token is unknown, already used or expired.
func (g *Gateway) ConfirmSubscriber(ctx context.Context, token string) (string, bool, error) {
	if token == "" {
		return "", false, nil
	}
	var email string
	err := g.run(ctx, "confirm_subscriber", func(ctx context.Context) error {
		var err error
		email, err = g.backend.ConfirmSubscriber(ctx, token, g.now().UTC())
		return err
	})
	if apperrors.IsNotFound(err) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	if err := g.bump(ctx, domain.CounterSubscribers, 1); err != nil {
		return email, true, err
	}
	return email, true, nil
}

// AddMessage stores a form submission, assigns its id and counts it for
// today. The message and the counter change succeed or fail together.
func (g *Gateway) AddMessage(ctx context.Context, msg *domain.Message) error {
	if msg.Date.IsZero() {
		msg.Date = g.now().UTC()
	}
	if msg.Status == "" {
		msg.Status = domain.MessageUnread
	}
	msg.Email = domain.NormalizeEmail(msg.Email)
	day := Day(g.now())
	return g.run(ctx, "add_message", func(ctx context.Context) error {
		return g.backend.AddMessage(ctx, msg, day, g.window)
	})
}

// SetMessageStatus marks a message read or unread
func (g *Gateway) SetMessageStatus(ctx context.Context, id uint, status string) error {
	if !domain.IsValidMessageStatus(status) {
		return apperrors.New(apperrors.ErrCodeBadRequest, fmt.Sprintf("unknown message status %q", status))
	}
	return g.run(ctx, "set_message_status", func(ctx context.Context) error {
		return g.backend.SetMessageStatus(ctx, id, status)
	})
}

// DeleteMessage removes a message
func (g *Gateway) DeleteMessage(ctx context.Context, id uint) error {
	return g.run(ctx, "delete_message", func(ctx context.Context) error {
		return g.backend.DeleteMessage(ctx, id)
	})
}

// AddAppointment stores a pending appointment and assigns its id
func (g *Gateway) AddAppointment(ctx context.Context, appt *domain.Appointment) error {
	appt.Status = domain.AppointmentPending
	appt.CreatedAt = g.now().UTC()
	appt.Email = domain.NormalizeEmail(appt.Email)
	return g.run(ctx, "add_appointment", func(ctx context.Context) error {
		return g.backend.AddAppointment(ctx, appt)
	})
}

// SetAppointmentStatus moves an appointment to status and returns it
func (g *Gateway) SetAppointmentStatus(ctx context.Context, id uint, status string) (domain.Appointment, error) {
	if !domain.IsValidAppointmentStatus(status) {
		return domain.Appointment{}, apperrors.New(apperrors.ErrCodeBadRequest, fmt.Sprintf("unknown appointment status %q", status))
	}
	var appt domain.Appointment
	err := g.run(ctx, "set_appointment_status", func(ctx context.Context) error {
		var err error
		appt, err = g.backend.SetAppointmentStatus(ctx, id, status)
		return err
	})
	return appt, err
}

// IncrementVisits counts one visit for today and returns the total
func (g *Gateway) IncrementVisits(ctx context.Context) (int, error) {
	if err := g.bump(ctx, domain.CounterVisits, 1); err != nil {
		return 0, err
	}
	visits, _, err := g.totals(ctx)
	return visits, err
}

// IncrementMessages counts one message for today without storing one and
// returns the total. AddMessage already counts what it stores.
func (g *Gateway) IncrementMessages(ctx context.Context) (int, error) {
	if err := g.bump(ctx, domain.CounterMessages, 1); err != nil {
		return 0, err
	}
	_, messages, err := g.totals(ctx)
	return messages, err
}

// ResetStats clears the daily series, and with it both totals
func (g *Gateway) ResetStats(ctx context.Context) error {
	return g.run(ctx, "reset_stats", func(ctx context.Context) error {
		return g.backend.ResetStats(ctx)
	})
}

func (g *Gateway) bump(ctx context.Context, counter domain.StatCounter, delta int) error {
	day := Day(g.now())
	return g.run(ctx, "increment_"+string(counter), func(ctx context.Context) error {
		return g.backend.IncrementStat(ctx, day, counter, delta, g.window)
	})
}

func (g *Gateway) totals(ctx context.Context) (visits, messages int, err error) {
	var stats []domain.DailyStat
	err = g.run(ctx, "daily_stats", func(ctx context.Context) error {
		var err error
		stats, err = g.backend.DailyStats(ctx)
		return err
	})
	if err != nil {
		return 0, 0, err
	}
	visits, messages = Totals(stats)
	return visits, messages, nil
}
