package services

import (
	"context"
	"fmt"
	"log"
	"regexp"
	"strings"
	"time"

	"portfolio/internal/domain"
	"portfolio/internal/metrics"
	"portfolio/internal/storage"
	apperrors "portfolio/pkg/errors"
)

var emailRegex = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)

// ContactPayload is a contact form submission
type ContactPayload struct {
	Name    string `json:"name"`
	Email   string `json:"email"`
	Message string `json:"message"`
}

// RecruitmentPayload is a recruitment form submission
type RecruitmentPayload struct {
	ContactPayload
	Company     string `json:"company"`
	ProjectType string `json:"projectType"`
	Budget      string `json:"budget"`
	Timeline    string `json:"timeline"`
}

// AppointmentPayload is a call request
type AppointmentPayload struct {
	Date  string `json:"date"`
	Time  string `json:"time"`
	Name  string `json:"name"`
	Email string `json:"email"`
	Topic string `json:"topic"`
}

// SubmitResult acknowledges a stored submission
type SubmitResult struct {
	ID      uint   `json:"id"`
	Message string `json:"message"`
}

// ContactService handles contact, recruitment and appointment intake
type ContactService struct {
	gw         *storage.Gateway
	mailer     Mailer
	adminEmail string
}

// NewContactService creates a new contact service
func NewContactService(gw *storage.Gateway, mailer Mailer, adminEmail string) *ContactService {
	return &ContactService{gw: gw, mailer: mailer, adminEmail: adminEmail}
}

// Submit stores a contact message
func (s *ContactService) Submit(ctx context.Context, p *ContactPayload) (*SubmitResult, error) {
	log.Printf("[CONTACT] Submit request: name=%s, email=%s", strings.TrimSpace(p.Name), strings.TrimSpace(p.Email))

	if err := validateContactForm(p); err != nil {
		log.Printf("[CONTACT] Submit failed: validation error: %v", err)
		return nil, err
	}

	msg := &domain.Message{
		Name:    strings.TrimSpace(p.Name),
		Email:   p.Email,
		Message: strings.TrimSpace(p.Message),
	}
	return s.store(ctx, msg)
}

// SubmitRecruitment stores a recruitment message with its project details
func (s *ContactService) SubmitRecruitment(ctx context.Context, p *RecruitmentPayload) (*SubmitResult, error) {
	log.Printf("[CONTACT] Recruitment request: name=%s, company=%s", strings.TrimSpace(p.Name), strings.TrimSpace(p.Company))

	if err := validateContactForm(&p.ContactPayload); err != nil {
		log.Printf("[CONTACT] Recruitment failed: validation error: %v", err)
		return nil, err
	}

	msg := &domain.Message{
		Name:        strings.TrimSpace(p.Name),
		Email:       p.Email,
		Message:     strings.TrimSpace(p.Message),
		Company:     optional(p.Company),
		ProjectType: optional(p.ProjectType),
		Budget:      optional(p.Budget),
		Timeline:    optional(p.Timeline),
		Recruitment: true,
	}
	return s.store(ctx, msg)
}

func (s *ContactService) store(ctx context.Context, msg *domain.Message) (*SubmitResult, error) {
	if err := s.gw.AddMessage(ctx, msg); err != nil {
		log.Printf("[CONTACT] Submit failed: storage error: %v", err)
		return nil, err
	}

	log.Printf("[CONTACT] Submit successful: id=%d, recruitment=%v", msg.ID, msg.Recruitment)
	metrics.RecordMessage(msg.Recruitment)

	notice := *msg
	go func() {
		if err := s.notifyAdmin(&notice); err != nil {
			log.Printf("[CONTACT] Warning: failed to send notification email: %v", err)
		}
	}()

	return &SubmitResult{ID: msg.ID, Message: "Thank you for your message! I'll get back to you soon."}, nil
}

// RequestAppointment stores a pending appointment
func (s *ContactService) RequestAppointment(ctx context.Context, p *AppointmentPayload) (*SubmitResult, error) {
	log.Printf("[APPOINTMENT] Request: date=%s, time=%s, email=%s", p.Date, p.Time, strings.TrimSpace(p.Email))

	if err := validateAppointment(p); err != nil {
		log.Printf("[APPOINTMENT] Request failed: validation error: %v", err)
		return nil, err
	}

	appt := &domain.Appointment{
		Date:  p.Date,
		Time:  p.Time,
		Name:  strings.TrimSpace(p.Name),
		Email: p.Email,
		Topic: strings.TrimSpace(p.Topic),
	}
	if err := s.gw.AddAppointment(ctx, appt); err != nil {
		log.Printf("[APPOINTMENT] Request failed: storage error: %v", err)
		return nil, err
	}

	log.Printf("[APPOINTMENT] Request stored: id=%d", appt.ID)
	metrics.RecordAppointment()

	notice := *appt
	go func() {
		body := fmt.Sprintf("New appointment request\n\nName: %s\nEmail: %s\nWhen: %s %s\n\nTopic:\n%s\n",
			notice.Name, notice.Email, notice.Date, notice.Time, notice.Topic)
		if err := s.sendAdmin(fmt.Sprintf("New appointment request from %s", notice.Name), body); err != nil {
			log.Printf("[APPOINTMENT] Warning: failed to send notification email: %v", err)
		}
	}()

	return &SubmitResult{ID: appt.ID, Message: "Your appointment request has been received."}, nil
}

// SetMessageStatus marks a message read or unread
func (s *ContactService) SetMessageStatus(ctx context.Context, id uint, status string) error {
	if err := s.gw.SetMessageStatus(ctx, id, status); err != nil {
		log.Printf("[CONTACT] Status update failed: id=%d: %v", id, err)
		return err
	}
	return nil
}

// DeleteMessage removes a message
func (s *ContactService) DeleteMessage(ctx context.Context, id uint) error {
	if err := s.gw.DeleteMessage(ctx, id); err != nil {
		log.Printf("[CONTACT] Delete failed: id=%d: %v", id, err)
		return err
	}
	log.Printf("[CONTACT] Message deleted: id=%d", id)
	return nil
}

// SetAppointmentStatus moves an appointment and tells the requester
func (s *ContactService) SetAppointmentStatus(ctx context.Context, id uint, status string) (*domain.Appointment, error) {
	appt, err := s.gw.SetAppointmentStatus(ctx, id, status)
	if err != nil {
		log.Printf("[APPOINTMENT] Status update failed: id=%d: %v", id, err)
		return nil, err
	}
	log.Printf("[APPOINTMENT] Status updated: id=%d, status=%s", id, status)

	if status != domain.AppointmentPending {
		go func() {
			subject := fmt.Sprintf("Your appointment on %s is %s", appt.Date, appt.Status)
			body := fmt.Sprintf("Hello %s,\n\nYour appointment on %s at %s has been %s.\n", appt.Name, appt.Date, appt.Time, appt.Status)
			if err := s.mailer.Send(appt.Email, subject, body); err != nil {
				log.Printf("[APPOINTMENT] Warning: failed to notify requester: %v", err)
			}
		}()
	}
	return &appt, nil
}

func (s *ContactService) notifyAdmin(msg *domain.Message) error {
	kind := "contact"
	if msg.Recruitment {
		kind = "recruitment"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "New %s message\n\nName: %s\nEmail: %s\n", kind, msg.Name, msg.Email)
	for label, value := range map[string]*string{
		"Company": msg.Company, "Project type": msg.ProjectType, "Budget": msg.Budget, "Timeline": msg.Timeline,
	} {
		if value != nil {
			fmt.Fprintf(&b, "%s: %s\n", label, *value)
		}
	}
	fmt.Fprintf(&b, "Submitted: %s\n\nMessage:\n%s\n", msg.Date.Format("January 2, 2006 at 3:04 PM"), msg.Message)

	return s.sendAdmin(fmt.Sprintf("New %s message from %s", kind, msg.Name), b.String())
}

func (s *ContactService) sendAdmin(subject, body string) error {
	if s.adminEmail == "" {
		log.Printf("[CONTACT] ADMIN_EMAIL not set, skipping notification: %s", subject)
		return nil
	}
	return s.mailer.Send(s.adminEmail, subject, body)
}

func validateContactForm(p *ContactPayload) error {
	name := strings.TrimSpace(p.Name)
	if len(name) < 2 || len(name) > 100 {
		return apperrors.New(apperrors.ErrCodeBadRequest, "name must be between 2 and 100 characters")
	}
	if !emailRegex.MatchString(strings.TrimSpace(p.Email)) {
		return apperrors.New(apperrors.ErrCodeBadRequest, "invalid email address")
	}
	message := strings.TrimSpace(p.Message)
	if message == "" {
		return apperrors.New(apperrors.ErrCodeBadRequest, "message is required")
	}
	if len(message) > 5000 {
		return apperrors.New(apperrors.ErrCodeBadRequest, "message must not exceed 5000 characters")
	}
	return nil
}

func validateAppointment(p *AppointmentPayload) error {
	if strings.TrimSpace(p.Name) == "" {
		return apperrors.New(apperrors.ErrCodeBadRequest, "name is required")
	}
	if !emailRegex.MatchString(strings.TrimSpace(p.Email)) {
		return apperrors.New(apperrors.ErrCodeBadRequest, "invalid email address")
	}
	if _, err := time.Parse("2006-01-02", p.Date); err != nil {
		return apperrors.New(apperrors.ErrCodeBadRequest, "date must be YYYY-MM-DD")
	}
	if _, err := time.Parse("15:04", p.Time); err != nil {
		return apperrors.New(apperrors.ErrCodeBadRequest, "time must be HH:MM")
	}
	return nil
}

func optional(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}
