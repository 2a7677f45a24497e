// Package api mounts the site's HTTP endpoints on a goa muxer.
package api

import (
	"context"
	"log"
	"net/http"
	"strconv"

	goahttp "goa.design/goa/v3/http"
	"goa.design/goa/v3/http/middleware"

	"portfolio/internal/services"
	apperrors "portfolio/pkg/errors"
)

const maxBodyBytes = 5 << 20

// Services groups the handlers' collaborators
type Services struct {
	Auth       *services.AuthService
	Content    *services.ContentService
	Contact    *services.ContactService
	Newsletter *services.NewsletterService
	Health     *services.HealthService

	// PublicURL is where the newsletter confirmation redirects to
	PublicURL string
}

// Server routes requests to the services
type Server struct {
	svc   Services
	mux   goahttp.Muxer
	admin func(http.Handler) http.Handler
}

// New builds the handler for every public and admin route
func New(svc Services) http.Handler {
	s := &Server{svc: svc, mux: goahttp.NewMuxer()}
	s.admin = services.RequireAdmin(svc.Auth, func(w http.ResponseWriter, err error) {
		s.writeError(context.Background(), w, err)
	})
	s.mount()

	var handler http.Handler = s.mux
	handler = middleware.PopulateRequestContext()(handler)
	handler = middleware.RequestID()(handler)
	return handler
}

func (s *Server) mount() {
	s.mux.Handle("GET", "/health", s.health)
	s.mux.Handle("GET", "/api/content", s.getContent)
	s.mux.Handle("POST", "/api/visit", s.recordVisit)
	s.mux.Handle("POST", "/api/contact", s.submitContact)
	s.mux.Handle("POST", "/api/recruitment", s.submitRecruitment)
	s.mux.Handle("POST", "/api/appointments", s.requestAppointment)
	s.mux.Handle("POST", "/api/newsletter/subscribe", s.subscribe)
	s.mux.Handle("GET", services.ConfirmPath, s.confirmSubscription)
	s.mux.Handle("POST", "/api/newsletter/unsubscribe", s.unsubscribe)

	s.mux.Handle("POST", "/api/admin/login", s.login)
	s.mux.Handle("POST", "/api/admin/verify-2fa", s.verify2FA)

	s.handleAdmin("GET", "/api/admin/data", s.adminData)
	s.handleAdmin("POST", "/api/admin/content", s.updateContent)
	s.handleAdmin("POST", "/api/admin/password", s.changePassword)
	s.handleAdmin("PATCH", "/api/admin/messages/{id}", s.setMessageStatus)
	s.handleAdmin("DELETE", "/api/admin/messages/{id}", s.deleteMessage)
	s.handleAdmin("PATCH", "/api/admin/appointments/{id}", s.setAppointmentStatus)
	s.handleAdmin("DELETE", "/api/admin/subscribers/{email}", s.removeSubscriber)
	s.handleAdmin("POST", "/api/admin/broadcast", s.broadcast)
	s.handleAdmin("POST", "/api/admin/stats/reset", s.resetStats)
}

func (s *Server) handleAdmin(method, pattern string, h http.HandlerFunc) {
	s.mux.Handle(method, pattern, s.admin(h).ServeHTTP)
}

func (s *Server) decode(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := goahttp.RequestDecoder(r).Decode(v); err != nil {
		return apperrors.Wrap(apperrors.ErrCodeBadRequest, "invalid request body", err)
	}
	return nil
}

func (s *Server) write(ctx context.Context, w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v == nil {
		return
	}
	if err := goahttp.ResponseEncoder(ctx, w).Encode(v); err != nil {
		log.Printf("[ERROR] failed to encode response: %v", err)
	}
}

func (s *Server) writeError(ctx context.Context, w http.ResponseWriter, err error) {
	status := services.StatusFor(err)
	if status >= http.StatusInternalServerError {
		log.Printf("[ERROR] %v", err)
	}
	s.write(ctx, w, status, services.NewErrorResponse(err))
}

func (s *Server) pathID(r *http.Request) (uint, error) {
	id, err := strconv.ParseUint(s.mux.Vars(r)["id"], 10, 64)
	if err != nil || id == 0 {
		return 0, apperrors.New(apperrors.ErrCodeBadRequest, "invalid id")
	}
	return uint(id), nil
}

type okResult struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}
