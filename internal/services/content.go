package services

import (
	"context"
	"log"

	"portfolio/internal/domain"
	"portfolio/internal/metrics"
	"portfolio/internal/storage"
)

// VisitResult reports the running visit total
type VisitResult struct {
	Visits int `json:"visits"`
}

// ContentService serves the site snapshot and CMS saves
type ContentService struct {
	gw *storage.Gateway
}

// NewContentService creates a new content service
func NewContentService(gw *storage.Gateway) *ContentService {
	return &ContentService{gw: gw}
}

// Public returns the snapshot rendered by the public site
func (s *ContentService) Public(ctx context.Context) (*domain.SiteData, error) {
	data, err := s.gw.LoadData(ctx)
	if err != nil {
		log.Printf("[CONTENT] Load failed: %v", err)
		return nil, err
	}
	return data.PublicView(), nil
}

// AdminData returns everything, including visitor data and the stats series
func (s *ContentService) AdminData(ctx context.Context) (*domain.SiteData, error) {
	data, err := s.gw.LoadData(ctx)
	if err != nil {
		log.Printf("[CONTENT] Admin load failed: %v", err)
		return nil, err
	}
	return data, nil
}

// Update applies a CMS save
func (s *ContentService) Update(ctx context.Context, u *domain.ContentUpdate) error {
	if err := s.gw.UpdateContent(ctx, u); err != nil {
		log.Printf("[CONTENT] Update failed: %v", err)
		return err
	}
	log.Printf("[CONTENT] Update saved: sections=%d projects=%v skills=%v experiences=%v testimonials=%v",
		len(u.Sections()), u.Projects != nil, u.Skills != nil, u.Experiences != nil, u.Testimonials != nil)
	return nil
}

// RecordVisit counts a page view
func (s *ContentService) RecordVisit(ctx context.Context) (*VisitResult, error) {
	visits, err := s.gw.IncrementVisits(ctx)
	if err != nil {
		log.Printf("[CONTENT] Visit increment failed: %v", err)
		return nil, err
	}
	metrics.RecordVisit()
	return &VisitResult{Visits: visits}, nil
}

// ResetStats clears the daily counters
func (s *ContentService) ResetStats(ctx context.Context) error {
	if err := s.gw.ResetStats(ctx); err != nil {
		log.Printf("[CONTENT] Stats reset failed: %v", err)
		return err
	}
	log.Printf("[CONTENT] Stats reset")
	return nil
}
