package domain

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	apperrors "portfolio/pkg/errors"
)

// SiteData is the aggregate snapshot of every stored entity except the
// admin credential. Subscribers holds verified addresses only; pending ones
// are listed separately. Visits and MessageCount are sums over DailyStats.
type SiteData struct {
	Hero     datatypes.JSON `json:"hero,omitempty"`
	About    datatypes.JSON `json:"about,omitempty"`
	Contact  datatypes.JSON `json:"contact,omitempty"`
	Settings datatypes.JSON `json:"settings,omitempty"`
	Bento    datatypes.JSON `json:"bento,omitempty"`

	Projects     []Project     `json:"projects"`
	Skills       []Skill       `json:"skills"`
	Experiences  []Experience  `json:"experiences"`
	Testimonials []Testimonial `json:"testimonials"`

	Messages           []Message     `json:"messages"`
	Appointments       []Appointment `json:"appointments"`
	Subscribers        []Subscriber  `json:"subscribers"`
	PendingSubscribers []Subscriber  `json:"pendingSubscribers"`
	DailyStats         []DailyStat   `json:"dailyStats"`

	Visits       int `json:"visits"`
	MessageCount int `json:"messageCount"`
}

// Section returns the config section stored under key
func (d *SiteData) Section(key string) datatypes.JSON {
	switch key {
	case SectionHero:
		return d.Hero
	case SectionAbout:
		return d.About
	case SectionContact:
		return d.Contact
	case SectionSettings:
		return d.Settings
	case SectionBento:
		return d.Bento
	}
	return nil
}

// SetSection stores value under the config section key. Unknown keys are ignored.
func (d *SiteData) SetSection(key string, value datatypes.JSON) {
	switch key {
	case SectionHero:
		d.Hero = value
	case SectionAbout:
		d.About = value
	case SectionContact:
		d.Contact = value
	case SectionSettings:
		d.Settings = value
	case SectionBento:
		d.Bento = value
	}
}

// PublicView strips visitor data and per-day stats, keeping totals
func (d *SiteData) PublicView() *SiteData {
	return &SiteData{
		Hero:         d.Hero,
		About:        d.About,
		Contact:      d.Contact,
		Settings:     d.Settings,
		Bento:        d.Bento,
		Projects:     d.Projects,
		Skills:       d.Skills,
		Experiences:  d.Experiences,
		Testimonials: d.Testimonials,
		Visits:       d.Visits,
	}
}

// ContentUpdate is a partial CMS save. A nil field is left untouched; a
// non-nil collection replaces the stored one entirely, so an empty slice
// clears it.
type ContentUpdate struct {
	Hero     datatypes.JSON `json:"hero,omitempty"`
	About    datatypes.JSON `json:"about,omitempty"`
	Contact  datatypes.JSON `json:"contact,omitempty"`
	Settings datatypes.JSON `json:"settings,omitempty"`
	Bento    datatypes.JSON `json:"bento,omitempty"`

	Projects     []Project     `json:"projects,omitempty"`
	Skills       []Skill       `json:"skills,omitempty"`
	Experiences  []Experience  `json:"experiences,omitempty"`
	Testimonials []Testimonial `json:"testimonials,omitempty"`
}

// Sections returns the config sections present in the update
func (u *ContentUpdate) Sections() map[string]datatypes.JSON {
	sections := make(map[string]datatypes.JSON)
	for key, value := range map[string]datatypes.JSON{
		SectionHero:     u.Hero,
		SectionAbout:    u.About,
		SectionContact:  u.Contact,
		SectionSettings: u.Settings,
		SectionBento:    u.Bento,
	} {
		if value != nil {
			sections[key] = value
		}
	}
	return sections
}

// IsEmpty reports whether the update touches nothing
func (u *ContentUpdate) IsEmpty() bool {
	return len(u.Sections()) == 0 && u.Projects == nil && u.Skills == nil &&
		u.Experiences == nil && u.Testimonials == nil
}

// Normalize assigns display order from slice position and gives
// experiences and testimonials without an id a fresh one
func (u *ContentUpdate) Normalize() {
	for i := range u.Projects {
		u.Projects[i].ID = strings.TrimSpace(u.Projects[i].ID)
		u.Projects[i].DisplayOrder = i
	}
	for i := range u.Skills {
		u.Skills[i].Name = strings.TrimSpace(u.Skills[i].Name)
		u.Skills[i].DisplayOrder = i
	}
	for i := range u.Experiences {
		if u.Experiences[i].ID == "" {
			u.Experiences[i].ID = uuid.NewString()
		}
		u.Experiences[i].DisplayOrder = i
	}
	for i := range u.Testimonials {
		if u.Testimonials[i].ID == "" {
			u.Testimonials[i].ID = uuid.NewString()
		}
		u.Testimonials[i].DisplayOrder = i
	}
}

// Validate checks every entry of every supplied collection. The first
// problem found rejects the whole update. Call Normalize first.
func (u *ContentUpdate) Validate() error {
	for key, value := range u.Sections() {
		if !json.Valid(value) {
			return malformed("%s: value is not valid JSON", key)
		}
	}

	seen := make(map[string]bool)
	for i, p := range u.Projects {
		if strings.TrimSpace(p.ID) == "" {
			return malformed("projects[%d]: id is required", i)
		}
		if strings.TrimSpace(p.Title) == "" {
			return malformed("projects[%d]: title is required", i)
		}
		if seen[p.ID] {
			return malformed("projects[%d]: duplicate id %q", i, p.ID)
		}
		seen[p.ID] = true
	}

	seen = make(map[string]bool)
	for i, s := range u.Skills {
		if strings.TrimSpace(s.Name) == "" {
			return malformed("skills[%d]: name is required", i)
		}
		if seen[s.Name] {
			return malformed("skills[%d]: duplicate name %q", i, s.Name)
		}
		seen[s.Name] = true
		if s.Level < 0 || s.Level > 100 {
			return malformed("skills[%d]: level must be between 0 and 100", i)
		}
		if s.Expertise != "" && !IsValidExpertise(s.Expertise) {
			return malformed("skills[%d]: unknown expertise %q", i, s.Expertise)
		}
		if len(s.Color) != 0 && len(s.Color) != 3 {
			return malformed("skills[%d]: color must have exactly three tokens", i)
		}
	}

	seen = make(map[string]bool)
	for i, e := range u.Experiences {
		if strings.TrimSpace(e.Title) == "" {
			return malformed("experiences[%d]: title is required", i)
		}
		if seen[e.ID] {
			return malformed("experiences[%d]: duplicate id %q", i, e.ID)
		}
		seen[e.ID] = true
	}

	seen = make(map[string]bool)
	for i, t := range u.Testimonials {
		if strings.TrimSpace(t.Name) == "" {
			return malformed("testimonials[%d]: name is required", i)
		}
		if seen[t.ID] {
			return malformed("testimonials[%d]: duplicate id %q", i, t.ID)
		}
		seen[t.ID] = true
	}
	return nil
}

func malformed(format string, args ...any) error {
	return apperrors.New(apperrors.ErrCodeMalformedUpdate, fmt.Sprintf(format, args...))
}
