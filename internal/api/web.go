package api

import (
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/bher20/utilityrates/internal/rates"
	"github.com/bher20/utilityrates/internal/storage"
	"github.com/bher20/utilityrates/internal/ui"
)

func (s *server) handleIndex(w http.ResponseWriter, r *http.Request) {
	s.render(w, http.StatusOK, ui.PageData{})
}

// handleSubmit stores the form as a Submission, looks up rates for it and
// re-renders the page with the outcome.
func (s *server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		s.render(w, http.StatusBadRequest, ui.PageData{Error: "could not read the form"})
		return
	}
	form := ui.Form{
		Address:         r.PostFormValue("user_address"),
		Consumption:     r.PostFormValue("user_consumption"),
		PercentageScale: r.PostFormValue("user_percentage_scale"),
	}
	data := ui.PageData{Form: form}

	sub := storage.Submission{
		ID:              uuid.New().String(),
		Address:         form.Address,
		Consumption:     form.Consumption,
		PercentageScale: form.PercentageScale,
		CreatedAt:       time.Now().UTC(),
	}
	if s.Store != nil {
		if err := s.Store.SaveSubmission(r.Context(), sub); err != nil {
			s.Log.WithError(err).Warn("save submission failed")
		} else {
			data.SubmissionID = sub.ID
		}
	}

	res, err := s.Rates.Lookup(r.Context(), rates.Lookup{
		Address:         form.Address,
		Consumption:     form.Consumption,
		PercentageScale: form.PercentageScale,
	})
	if err != nil {
		s.Log.WithError(err).WithField("submission", sub.ID).Warn("rates lookup failed")
		data.Error = userMessage(err)
		s.render(w, statusFor(err), data)
		return
	}
	data.Lookup = res
	s.render(w, http.StatusOK, data)
}

func (s *server) render(w http.ResponseWriter, status int, data ui.PageData) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := ui.Render(w, data); err != nil {
		s.Log.WithError(err).Error("render page failed")
	}
}
