package api

import (
	"net/http"
	"net/url"

	"portfolio/internal/domain"
	"portfolio/internal/services"
)

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	result := s.svc.Health.Check(r.Context())
	status := http.StatusOK
	if result.Status != "healthy" {
		status = http.StatusServiceUnavailable
	}
	s.write(r.Context(), w, status, result)
}

func (s *Server) getContent(w http.ResponseWriter, r *http.Request) {
	data, err := s.svc.Content.Public(r.Context())
	if err != nil {
		s.writeError(r.Context(), w, err)
		return
	}
	s.write(r.Context(), w, http.StatusOK, data)
}

func (s *Server) recordVisit(w http.ResponseWriter, r *http.Request) {
	result, err := s.svc.Content.RecordVisit(r.Context())
	if err != nil {
		s.writeError(r.Context(), w, err)
		return
	}
	s.write(r.Context(), w, http.StatusOK, result)
}

func (s *Server) submitContact(w http.ResponseWriter, r *http.Request) {
	var p services.ContactPayload
	if err := s.decode(w, r, &p); err != nil {
		s.writeError(r.Context(), w, err)
		return
	}
	result, err := s.svc.Contact.Submit(r.Context(), &p)
	if err != nil {
		s.writeError(r.Context(), w, err)
		return
	}
	s.write(r.Context(), w, http.StatusCreated, result)
}

func (s *Server) submitRecruitment(w http.ResponseWriter, r *http.Request) {
	var p services.RecruitmentPayload
	if err := s.decode(w, r, &p); err != nil {
		s.writeError(r.Context(), w, err)
		return
	}
	result, err := s.svc.Contact.SubmitRecruitment(r.Context(), &p)
	if err != nil {
		s.writeError(r.Context(), w, err)
		return
	}
	s.write(r.Context(), w, http.StatusCreated, result)
}

func (s *Server) requestAppointment(w http.ResponseWriter, r *http.Request) {
	var p services.AppointmentPayload
	if err := s.decode(w, r, &p); err != nil {
		s.writeError(r.Context(), w, err)
		return
	}
	result, err := s.svc.Contact.RequestAppointment(r.Context(), &p)
	if err != nil {
		s.writeError(r.Context(), w, err)
		return
	}
	s.write(r.Context(), w, http.StatusCreated, result)
}

type emailPayload struct {
	Email string `json:"email"`
}

func (s *Server) subscribe(w http.ResponseWriter, r *http.Request) {
	var p emailPayload
	if err := s.decode(w, r, &p); err != nil {
		s.writeError(r.Context(), w, err)
		return
	}
	if err := s.svc.Newsletter.Subscribe(r.Context(), p.Email); err != nil {
		s.writeError(r.Context(), w, err)
		return
	}
	s.write(r.Context(), w, http.StatusOK, okResult{Success: true, Message: "Check your inbox to confirm your subscription"})
}

// confirmSubscription is opened from the emailed link, so it answers with
// a redirect back to the site rather than JSON
func (s *Server) confirmSubscription(w http.ResponseWriter, r *http.Request) {
	outcome := "confirmed"
	if _, err := s.svc.Newsletter.Confirm(r.Context(), r.URL.Query().Get("token")); err != nil {
		if services.StatusFor(err) >= http.StatusInternalServerError {
			s.writeError(r.Context(), w, err)
			return
		}
		outcome = "invalid"
	}
	http.Redirect(w, r, s.svc.PublicURL+"/?newsletter="+url.QueryEscape(outcome), http.StatusFound)
}

func (s *Server) unsubscribe(w http.ResponseWriter, r *http.Request) {
	var p emailPayload
	if err := s.decode(w, r, &p); err != nil {
		s.writeError(r.Context(), w, err)
		return
	}
	if err := s.svc.Newsletter.Unsubscribe(r.Context(), p.Email); err != nil {
		s.writeError(r.Context(), w, err)
		return
	}
	s.write(r.Context(), w, http.StatusOK, okResult{Success: true})
}

type loginPayload struct {
	Password string `json:"password"`
}

func (s *Server) login(w http.ResponseWriter, r *http.Request) {
	var p loginPayload
	if err := s.decode(w, r, &p); err != nil {
		s.writeError(r.Context(), w, err)
		return
	}
	result, err := s.svc.Auth.Login(r.Context(), p.Password)
	if err != nil {
		s.writeError(r.Context(), w, err)
		return
	}
	s.write(r.Context(), w, http.StatusOK, result)
}

type verifyPayload struct {
	Code string `json:"code"`
}

func (s *Server) verify2FA(w http.ResponseWriter, r *http.Request) {
	var p verifyPayload
	if err := s.decode(w, r, &p); err != nil {
		s.writeError(r.Context(), w, err)
		return
	}
	result, err := s.svc.Auth.Verify2FA(r.Context(), p.Code)
	if err != nil {
		s.writeError(r.Context(), w, err)
		return
	}
	s.write(r.Context(), w, http.StatusOK, result)
}

func (s *Server) adminData(w http.ResponseWriter, r *http.Request) {
	data, err := s.svc.Content.AdminData(r.Context())
	if err != nil {
		s.writeError(r.Context(), w, err)
		return
	}
	s.write(r.Context(), w, http.StatusOK, data)
}

func (s *Server) updateContent(w http.ResponseWriter, r *http.Request) {
	var u domain.ContentUpdate
	if err := s.decode(w, r, &u); err != nil {
		s.writeError(r.Context(), w, err)
		return
	}
	if err := s.svc.Content.Update(r.Context(), &u); err != nil {
		s.writeError(r.Context(), w, err)
		return
	}
	s.write(r.Context(), w, http.StatusOK, okResult{Success: true})
}

type passwordPayload struct {
	Current string `json:"current"`
	Next    string `json:"next"`
}

func (s *Server) changePassword(w http.ResponseWriter, r *http.Request) {
	var p passwordPayload
	if err := s.decode(w, r, &p); err != nil {
		s.writeError(r.Context(), w, err)
		return
	}
	if err := s.svc.Auth.ChangePassword(r.Context(), p.Current, p.Next); err != nil {
		s.writeError(r.Context(), w, err)
		return
	}
	s.write(r.Context(), w, http.StatusOK, okResult{Success: true})
}

type statusPayload struct {
	Status string `json:"status"`
}

func (s *Server) setMessageStatus(w http.ResponseWriter, r *http.Request) {
	id, err := s.pathID(r)
	if err != nil {
		s.writeError(r.Context(), w, err)
		return
	}
	var p statusPayload
	if err := s.decode(w, r, &p); err != nil {
		s.writeError(r.Context(), w, err)
		return
	}
	if err := s.svc.Contact.SetMessageStatus(r.Context(), id, p.Status); err != nil {
		s.writeError(r.Context(), w, err)
		return
	}
	s.write(r.Context(), w, http.StatusOK, okResult{Success: true})
}

func (s *Server) deleteMessage(w http.ResponseWriter, r *http.Request) {
	id, err := s.pathID(r)
	if err != nil {
		s.writeError(r.Context(), w, err)
		return
	}
	if err := s.svc.Contact.DeleteMessage(r.Context(), id); err != nil {
		s.writeError(r.Context(), w, err)
		return
	}
	s.write(r.Context(), w, http.StatusOK, okResult{Success: true})
}

func (s *Server) setAppointmentStatus(w http.ResponseWriter, r *http.Request) {
	id, err := s.pathID(r)
	if err != nil {
		s.writeError(r.Context(), w, err)
		return
	}
	var p statusPayload
	if err := s.decode(w, r, &p); err != nil {
		s.writeError(r.Context(), w, err)
		return
	}
	appt, err := s.svc.Contact.SetAppointmentStatus(r.Context(), id, p.Status)
	if err != nil {
		s.writeError(r.Context(), w, err)
		return
	}
	s.write(r.Context(), w, http.StatusOK, appt)
}

func (s *Server) removeSubscriber(w http.ResponseWriter, r *http.Request) {
	email, err := url.PathUnescape(s.mux.Vars(r)["email"])
	if err != nil {
		email = s.mux.Vars(r)["email"]
	}
	if err := s.svc.Newsletter.Unsubscribe(r.Context(), email); err != nil {
		s.writeError(r.Context(), w, err)
		return
	}
	s.write(r.Context(), w, http.StatusOK, okResult{Success: true})
}

func (s *Server) broadcast(w http.ResponseWriter, r *http.Request) {
	var p services.BroadcastPayload
	if err := s.decode(w, r, &p); err != nil {
		s.writeError(r.Context(), w, err)
		return
	}
	result, err := s.svc.Newsletter.Broadcast(r.Context(), &p)
	if err != nil {
		s.writeError(r.Context(), w, err)
		return
	}
	s.write(r.Context(), w, http.StatusAccepted, result)
}

func (s *Server) resetStats(w http.ResponseWriter, r *http.Request) {
	if err := s.svc.Content.ResetStats(r.Context()); err != nil {
		s.writeError(r.Context(), w, err)
		return
	}
	s.write(r.Context(), w, http.StatusOK, okResult{Success: true})
}
