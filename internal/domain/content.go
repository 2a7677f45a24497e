package domain

import (
	"gorm.io/datatypes"
)

// Singleton config keys. Content sections are editable through the CMS,
// AdminCredentialKey is written only by the credential manager.
const (
	SectionHero     = "hero"
	SectionAbout    = "about"
	SectionContact  = "contact"
	SectionSettings = "settings"
	SectionBento    = "bento"

	AdminCredentialKey = "admin"
)

// ContentSections lists the config keys exposed in the site snapshot
var ContentSections = []string{SectionHero, SectionAbout, SectionContact, SectionSettings, SectionBento}

// SiteConfig is a named singleton document
type SiteConfig struct {
	Key   string         `gorm:"primaryKey;size:64" json:"key"`
	Value datatypes.JSON `gorm:"not null" json:"value"`
}

// TableName specifies the table name for SiteConfig
func (SiteConfig) TableName() string {
	return "site_config"
}

// Project is a portfolio entry. ID is assigned by the caller.
type Project struct {
	ID           string                      `gorm:"primaryKey;size:128" json:"id"`
	Title        string                      `gorm:"not null" json:"title"`
	Category     string                      `json:"category"`
	Description  string                      `gorm:"type:text" json:"description"`
	Tools        datatypes.JSONSlice[string] `json:"tools"`
	Image        string                      `json:"image"`
	Year         int                         `json:"year"`
	Role         string                      `json:"role"`
	Link         *string                     `json:"link,omitempty"`
	Github       *string                     `json:"github,omitempty"`
	DisplayOrder int                         `gorm:"not null;index" json:"displayOrder"`
}

// TableName specifies the table name for Project
func (Project) TableName() string {
	return "projects"
}

// Skill expertise labels. The French ones predate the English labels and are
// still accepted on input.
const (
	ExpertiseExpert   = "Expert"
	ExpertiseAdvanced = "Advanced"
	ExpertiseMastered = "Mastered"

	ExpertiseAvance   = "Avancé"
	ExpertiseMaitrise = "Maîtrisé"
)

var validExpertise = map[string]bool{
	ExpertiseExpert:   true,
	ExpertiseAdvanced: true,
	ExpertiseMastered: true,
	ExpertiseAvance:   true,
	ExpertiseMaitrise: true,
}

// IsValidExpertise reports whether label is a known expertise level
func IsValidExpertise(label string) bool {
	return validExpertise[label]
}

// Skill is keyed by name
type Skill struct {
	Name         string                      `gorm:"primaryKey;size:128" json:"name"`
	Description  string                      `gorm:"type:text" json:"description"`
	Expertise    string                      `json:"expertise"`
	Icon         string                      `json:"icon"`
	Level        int                         `json:"level"`
	Color        datatypes.JSONSlice[string] `json:"color"`
	DisplayOrder int                         `gorm:"not null;index" json:"displayOrder"`
}

// TableName specifies the table name for Skill
func (Skill) TableName() string {
	return "skills"
}

// Experience is a career timeline entry
type Experience struct {
	ID           string `gorm:"primaryKey;size:128" json:"id"`
	Title        string `gorm:"not null" json:"title"`
	Company      string `json:"company"`
	Period       string `json:"period"`
	Description  string `gorm:"type:text" json:"description"`
	DisplayOrder int    `gorm:"not null;index" json:"displayOrder"`
}

// TableName specifies the table name for Experience
func (Experience) TableName() string {
	return "experiences"
}

// Testimonial is a quote shown on the home page
type Testimonial struct {
	ID           string `gorm:"primaryKey;size:128" json:"id"`
	Name         string `gorm:"not null" json:"name"`
	Role         string `json:"role"`
	Content      string `gorm:"type:text" json:"content"`
	Avatar       string `json:"avatar"`
	DisplayOrder int    `gorm:"not null;index" json:"displayOrder"`
}

// TableName specifies the table name for Testimonial
func (Testimonial) TableName() string {
	return "testimonials"
}
