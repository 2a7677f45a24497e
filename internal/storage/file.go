package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"gorm.io/datatypes"

	"portfolio/internal/domain"
)

const fileFormatVersion = 1

// fileDocument is the on-disk layout of the JSON backend. Subscribers keeps
// both pending and verified entries, told apart by the Verified flag.
type fileDocument struct {
	Version      int                       `json:"version"`
	Config       map[string]datatypes.JSON `json:"config"`
	Projects     []domain.Project          `json:"projects"`
	Skills       []domain.Skill            `json:"skills"`
	Experiences  []domain.Experience       `json:"experiences"`
	Testimonials []domain.Testimonial      `json:"testimonials"`
	Messages     []domain.Message          `json:"messages"`
	Appointments []domain.Appointment      `json:"appointments"`
	Subscribers  []domain.Subscriber       `json:"subscribers"`
	DailyStats   []domain.DailyStat        `json:"dailyStats"`

	// High-water marks so ids are never reused after a delete
	LastMessageID     uint `json:"lastMessageId"`
	LastAppointmentID uint `json:"lastAppointmentId"`
}

// FileBackend keeps all data in a single JSON document that is read in full
// and rewritten in full on every mutation. All access holds mu, so
// concurrent requests in this process never lose each other's updates.
type FileBackend struct {
	path string
	mu   sync.Mutex
}

// NewFileBackend creates the data directory if needed
func NewFileBackend(path string) (*FileBackend, error) {
	if path == "" {
		return nil, errors.New("data file path is empty")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}
	return &FileBackend{path: path}, nil
}

func (b *FileBackend) Name() string {
	return "file"
}

func (b *FileBackend) Relational() bool {
	return false
}

func (b *FileBackend) Close() error {
	return nil
}

// Path returns the location of the data file
func (b *FileBackend) Path() string {
	return b.path
}

func (b *FileBackend) read() (*fileDocument, error) {
	doc := &fileDocument{Version: fileFormatVersion}
	raw, err := os.ReadFile(b.path)
	if errors.Is(err, os.ErrNotExist) {
		doc.Config = make(map[string]datatypes.JSON)
		return doc, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read data file: %w", err)
	}
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, doc); err != nil {
			return nil, fmt.Errorf("failed to parse data file: %w", err)
		}
	}
	if doc.Config == nil {
		doc.Config = make(map[string]datatypes.JSON)
	}
	return doc, nil
}

// write replaces the file through a rename so readers never see a partial document
func (b *FileBackend) write(doc *fileDocument) error {
	doc.Version = fileFormatVersion
	raw, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to serialize data: %w", err)
	}

	dir := filepath.Dir(b.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create data directory: %w", err)
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(b.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(raw); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write data file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to sync data file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close data file: %w", err)
	}
	if err := os.Rename(tmp.Name(), b.path); err != nil {
		return fmt.Errorf("failed to replace data file: %w", err)
	}
	return nil
}

func (b *FileBackend) view(ctx context.Context, fn func(doc *fileDocument) error) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return err
	}
	doc, err := b.read()
	if err != nil {
		return err
	}
	return fn(doc)
}

// mutate runs fn on a fresh copy of the document and writes it back only if
// fn succeeds
func (b *FileBackend) mutate(ctx context.Context, fn func(doc *fileDocument) error) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return err
	}
	doc, err := b.read()
	if err != nil {
		return err
	}
	if err := fn(doc); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	return b.write(doc)
}

func (b *FileBackend) GetConfig(ctx context.Context, key string) (datatypes.JSON, bool, error) {
	var (
		value datatypes.JSON
		found bool
	)
	err := b.view(ctx, func(doc *fileDocument) error {
		value, found = doc.Config[key]
		return nil
	})
	return value, found, err
}

func (b *FileBackend) PutConfig(ctx context.Context, key string, value datatypes.JSON) error {
	return b.mutate(ctx, func(doc *fileDocument) error {
		doc.Config[key] = value
		return nil
	})
}

func (b *FileBackend) Load(ctx context.Context) (*domain.SiteData, error) {
	data := &domain.SiteData{}
	err := b.view(ctx, func(doc *fileDocument) error {
		for _, key := range domain.ContentSections {
			if value, ok := doc.Config[key]; ok {
				data.SetSection(key, value)
			}
		}
		data.Projects = doc.Projects
		data.Skills = doc.Skills
		data.Experiences = doc.Experiences
		data.Testimonials = doc.Testimonials
		data.Messages = doc.Messages
		data.Appointments = doc.Appointments
		data.Subscribers, data.PendingSubscribers = splitSubscribers(doc.Subscribers)
		data.DailyStats = doc.DailyStats
		return nil
	})
	if err != nil {
		return nil, err
	}
	return data, nil
}

func (b *FileBackend) ReplaceContent(ctx context.Context, u *domain.ContentUpdate) error {
	return b.mutate(ctx, func(doc *fileDocument) error {
		for key, value := range u.Sections() {
			doc.Config[key] = value
		}
		if u.Projects != nil {
			doc.Projects = u.Projects
		}
		if u.Skills != nil {
			doc.Skills = u.Skills
		}
		if u.Experiences != nil {
			doc.Experiences = u.Experiences
		}
		if u.Testimonials != nil {
			doc.Testimonials = u.Testimonials
		}
		return nil
	})
}

// appendMissing adds the rows of incoming whose key is not already present
func appendMissing[T any, K comparable](existing, incoming []T, key func(T) K) []T {
	seen := make(map[K]bool, len(existing))
	for _, row := range existing {
		seen[key(row)] = true
	}
	for _, row := range incoming {
		if !seen[key(row)] {
			existing = append(existing, row)
			seen[key(row)] = true
		}
	}
	return existing
}

func (b *FileBackend) Import(ctx context.Context, data *domain.SiteData) error {
	return b.mutate(ctx, func(doc *fileDocument) error {
		for _, key := range domain.ContentSections {
			if value := data.Section(key); value != nil {
				if _, ok := doc.Config[key]; !ok {
					doc.Config[key] = value
				}
			}
		}
		doc.Projects = appendMissing(doc.Projects, data.Projects, func(p domain.Project) string { return p.ID })
		doc.Skills = appendMissing(doc.Skills, data.Skills, func(s domain.Skill) string { return s.Name })
		doc.Experiences = appendMissing(doc.Experiences, data.Experiences, func(e domain.Experience) string { return e.ID })
		doc.Testimonials = appendMissing(doc.Testimonials, data.Testimonials, func(t domain.Testimonial) string { return t.ID })
		doc.Messages = appendMissing(doc.Messages, data.Messages, func(m domain.Message) uint { return m.ID })
		doc.Appointments = appendMissing(doc.Appointments, data.Appointments, func(a domain.Appointment) uint { return a.ID })
		doc.Subscribers = appendMissing(doc.Subscribers, data.Subscribers, func(s domain.Subscriber) string { return s.Email })
		doc.Subscribers = appendMissing(doc.Subscribers, data.PendingSubscribers, func(s domain.Subscriber) string { return s.Email })
		doc.DailyStats = appendMissing(doc.DailyStats, data.DailyStats, func(d domain.DailyStat) string { return d.Date })
		sort.Slice(doc.Messages, func(i, j int) bool { return doc.Messages[i].ID < doc.Messages[j].ID })
		sort.Slice(doc.Appointments, func(i, j int) bool { return doc.Appointments[i].ID < doc.Appointments[j].ID })
		sort.Slice(doc.DailyStats, func(i, j int) bool { return doc.DailyStats[i].Date < doc.DailyStats[j].Date })
		return nil
	})
}

func (b *FileBackend) AddSubscriber(ctx context.Context, sub domain.Subscriber) error {
	return b.mutate(ctx, func(doc *fileDocument) error {
		for i := range doc.Subscribers {
			existing := &doc.Subscribers[i]
			if existing.Email != sub.Email {
				continue
			}
			if existing.Verified {
				return ErrAlreadySubscribed
			}
			existing.Verified = sub.Verified
			existing.VerificationToken = sub.VerificationToken
			existing.TokenExpires = sub.TokenExpires
			return nil
		}
		doc.Subscribers = append(doc.Subscribers, sub)
		return nil
	})
}

func (b *FileBackend) RemoveSubscriber(ctx context.Context, email string) (domain.Subscriber, error) {
	var removed domain.Subscriber
	err := b.mutate(ctx, func(doc *fileDocument) error {
		for i, s := range doc.Subscribers {
			if s.Email == email {
				removed = s
				doc.Subscribers = append(doc.Subscribers[:i], doc.Subscribers[i+1:]...)
				return nil
			}
		}
		return ErrNotFound
	})
	if err != nil {
		return domain.Subscriber{}, err
	}
	return removed, nil
}

func (b *FileBackend) ConfirmSubscriber(ctx context.Context, token string, now time.Time) (string, error) {
	var email string
	err := b.mutate(ctx, func(doc *fileDocument) error {
		for i := range doc.Subscribers {
			s := &doc.Subscribers[i]
			if s.Verified || s.VerificationToken == nil || *s.VerificationToken != token {
				continue
			}
			if s.TokenExpires != nil && now.After(*s.TokenExpires) {
				return ErrNotFound
			}
			s.Verified = true
			s.VerificationToken = nil
			s.TokenExpires = nil
			email = s.Email
			return nil
		}
		return ErrNotFound
	})
	if err != nil {
		return "", err
	}
	return email, nil
}

func (b *FileBackend) AddMessage(ctx context.Context, msg *domain.Message, day string, window int) error {
	return b.mutate(ctx, func(doc *fileDocument) error {
		maxID := doc.LastMessageID
		for _, m := range doc.Messages {
			if m.ID > maxID {
				maxID = m.ID
			}
		}
		msg.ID = maxID + 1
		doc.LastMessageID = msg.ID
		doc.Messages = append(doc.Messages, *msg)
		doc.DailyStats = applyIncrement(doc.DailyStats, day, domain.CounterMessages, 1, window)
		return nil
	})
}

func (b *FileBackend) SetMessageStatus(ctx context.Context, id uint, status string) error {
	return b.mutate(ctx, func(doc *fileDocument) error {
		for i := range doc.Messages {
			if doc.Messages[i].ID == id {
				doc.Messages[i].Status = status
				return nil
			}
		}
		return ErrNotFound
	})
}

func (b *FileBackend) DeleteMessage(ctx context.Context, id uint) error {
	return b.mutate(ctx, func(doc *fileDocument) error {
		for i, m := range doc.Messages {
			if m.ID == id {
				doc.Messages = append(doc.Messages[:i], doc.Messages[i+1:]...)
				return nil
			}
		}
		return ErrNotFound
	})
}

func (b *FileBackend) AddAppointment(ctx context.Context, appt *domain.Appointment) error {
	return b.mutate(ctx, func(doc *fileDocument) error {
		maxID := doc.LastAppointmentID
		for _, a := range doc.Appointments {
			if a.ID > maxID {
				maxID = a.ID
			}
		}
		appt.ID = maxID + 1
		doc.LastAppointmentID = appt.ID
		doc.Appointments = append(doc.Appointments, *appt)
		return nil
	})
}

func (b *FileBackend) SetAppointmentStatus(ctx context.Context, id uint, status string) (domain.Appointment, error) {
	var updated domain.Appointment
	err := b.mutate(ctx, func(doc *fileDocument) error {
		for i := range doc.Appointments {
			if doc.Appointments[i].ID == id {
				doc.Appointments[i].Status = status
				updated = doc.Appointments[i]
				return nil
			}
		}
		return ErrNotFound
	})
	if err != nil {
		return domain.Appointment{}, err
	}
	return updated, nil
}

func (b *FileBackend) IncrementStat(ctx context.Context, day string, counter domain.StatCounter, delta, window int) error {
	return b.mutate(ctx, func(doc *fileDocument) error {
		doc.DailyStats = applyIncrement(doc.DailyStats, day, counter, delta, window)
		return nil
	})
}

func (b *FileBackend) DailyStats(ctx context.Context) ([]domain.DailyStat, error) {
	var stats []domain.DailyStat
	err := b.view(ctx, func(doc *fileDocument) error {
		stats = append([]domain.DailyStat{}, doc.DailyStats...)
		sort.Slice(stats, func(i, j int) bool { return stats[i].Date < stats[j].Date })
		return nil
	})
	return stats, err
}

func (b *FileBackend) ResetStats(ctx context.Context) error {
	return b.mutate(ctx, func(doc *fileDocument) error {
		doc.DailyStats = []domain.DailyStat{}
		return nil
	})
}
