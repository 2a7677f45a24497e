package services

import (
	"context"
	"fmt"
	"log"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"portfolio/internal/config"
	"portfolio/internal/metrics"
	"portfolio/internal/storage"
	apperrors "portfolio/pkg/errors"
)

// BroadcastPayload is a newsletter issue
type BroadcastPayload struct {
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

// BroadcastResult reports how many recipients were queued
type BroadcastResult struct {
	Recipients int `json:"recipients"`
}

// ConfirmPath is the route the emailed confirmation link points at
const ConfirmPath = "/api/newsletter/confirm"

// NewsletterService runs double opt-in subscriptions and broadcasts
type NewsletterService struct {
	gw       *storage.Gateway
	mailer   Mailer
	apiURL   string
	tokenTTL time.Duration
	now      func() time.Time

	wg sync.WaitGroup
}

// NewNewsletterService creates a new newsletter service
func NewNewsletterService(gw *storage.Gateway, mailer Mailer, cfg *config.NewsletterConfig) *NewsletterService {
	return &NewsletterService{
		gw:       gw,
		mailer:   mailer,
		apiURL:   cfg.APIURL,
		tokenTTL: time.Duration(cfg.TokenTTLHours) * time.Hour,
		now:      time.Now,
	}
}

// Subscribe stores email as pending and mails the confirmation link
func (s *NewsletterService) Subscribe(ctx context.Context, email string) error {
	email = strings.TrimSpace(email)
	if !emailRegex.MatchString(email) {
		return apperrors.New(apperrors.ErrCodeBadRequest, "invalid email address")
	}

	token := strings.ReplaceAll(uuid.NewString(), "-", "")
	if err := s.gw.AddSubscriber(ctx, email, token, s.now().Add(s.tokenTTL)); err != nil {
		log.Printf("[NEWSLETTER] Subscribe failed: %v", err)
		return err
	}
	metrics.RecordNewsletterEvent("subscribe")

	link := fmt.Sprintf("%s%s?token=%s", s.apiURL, ConfirmPath, url.QueryEscape(token))
	body := fmt.Sprintf("Hello,\n\nPlease confirm your subscription by opening this link:\n%s\n\nThe link expires in %d hours.\n",
		link, int(s.tokenTTL.Hours()))
	if err := s.mailer.Send(email, "Confirm your subscription", body); err != nil {
		log.Printf("[NEWSLETTER] Warning: failed to send confirmation: %v", err)
	}
	log.Printf("[NEWSLETTER] Pending subscriber added")
	return nil
}

// Confirm promotes the pending subscriber holding token
func (s *NewsletterService) Confirm(ctx context.Context, token string) (string, error) {
	email, ok, err := s.gw.ConfirmSubscriber(ctx, strings.TrimSpace(token))
	if err != nil {
		log.Printf("[NEWSLETTER] Confirm failed: %v", err)
		return "", err
	}
	if !ok {
		return "", apperrors.New(apperrors.ErrCodeNotFound, "invalid or expired confirmation link")
	}
	metrics.RecordNewsletterEvent("confirm")
	log.Printf("[NEWSLETTER] Subscriber confirmed")
	return email, nil
}

// Unsubscribe removes email whether pending or verified
func (s *NewsletterService) Unsubscribe(ctx context.Context, email string) error {
	if err := s.gw.RemoveSubscriber(ctx, email); err != nil {
		if !apperrors.IsNotFound(err) {
			log.Printf("[NEWSLETTER] Unsubscribe failed: %v", err)
		}
		return err
	}
	metrics.RecordNewsletterEvent("unsubscribe")
	log.Printf("[NEWSLETTER] Subscriber removed")
	return nil
}

// Broadcast mails an issue to every verified subscriber. Sending continues
// after the call returns.
func (s *NewsletterService) Broadcast(ctx context.Context, p *BroadcastPayload) (*BroadcastResult, error) {
	if strings.TrimSpace(p.Subject) == "" || strings.TrimSpace(p.Body) == "" {
		return nil, apperrors.New(apperrors.ErrCodeBadRequest, "subject and body are required")
	}

	data, err := s.gw.LoadData(ctx)
	if err != nil {
		return nil, err
	}
	recipients := make([]string, 0, len(data.Subscribers))
	for _, sub := range data.Subscribers {
		recipients = append(recipients, sub.Email)
	}

	log.Printf("[NEWSLETTER] Broadcast queued: recipients=%d", len(recipients))
	metrics.RecordNewsletterEvent("broadcast")

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		sent := 0
		for _, to := range recipients {
			if err := s.mailer.Send(to, p.Subject, p.Body); err != nil {
				log.Printf("[NEWSLETTER] Warning: broadcast to %s failed: %v", to, err)
				continue
			}
			sent++
		}
		log.Printf("[NEWSLETTER] Broadcast finished: sent=%d/%d", sent, len(recipients))
	}()

	return &BroadcastResult{Recipients: len(recipients)}, nil
}

// Wait blocks until queued broadcasts have finished
func (s *NewsletterService) Wait() {
	s.wg.Wait()
}
