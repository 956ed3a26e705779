package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/bher20/utilityrates/internal/auth"
	"github.com/bher20/utilityrates/internal/cron"
	"github.com/bher20/utilityrates/internal/openei"
	"github.com/bher20/utilityrates/internal/rates"
	"github.com/bher20/utilityrates/internal/storage"
)

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

// statusFor maps lookup failures onto HTTP statuses. Anything that went wrong
// talking to OpenEI is a bad gateway.
func statusFor(err error) int {
	var apiErr *openei.APIError
	var netErr *openei.NetworkError
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.As(err, &apiErr), errors.As(err, &netErr), errors.Is(err, openei.ErrMalformedPayload):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func userMessage(err error) string {
	var apiErr *openei.APIError
	switch {
	case errors.As(err, &apiErr):
		return "The rates service rejected the request: " + apiErr.Error()
	case errors.Is(err, context.DeadlineExceeded):
		return "The rates service took too long to answer."
	default:
		var netErr *openei.NetworkError
		if errors.As(err, &netErr) {
			return "The rates service could not be reached."
		}
		return "Rates lookup failed."
	}
}

func (s *server) handleUtilityRates(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	res, err := s.Rates.Lookup(r.Context(), rates.Lookup{
		Address:         q.Get("address"),
		Consumption:     q.Get("consumption"),
		PercentageScale: q.Get("percentage_scale"),
	})
	if err != nil {
		s.Log.WithError(err).Warn("api: rates lookup failed")
		writeError(w, statusFor(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *server) handleListSubmissions(w http.ResponseWriter, r *http.Request) {
	subs, err := s.Store.ListSubmissions(r.Context())
	if err != nil {
		s.Log.WithError(err).Error("api: list submissions failed")
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if subs == nil {
		subs = []storage.Submission{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"submissions": subs})
}

type submissionRequest struct {
	UserID          string `json:"user_id"`
	Address         string `json:"address"`
	Consumption     string `json:"consumption"`
	PercentageScale string `json:"percentage_scale"`
}

func (s *server) handleCreateSubmission(w http.ResponseWriter, r *http.Request) {
	var req submissionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	sub := storage.Submission{
		ID:              uuid.New().String(),
		UserID:          req.UserID,
		Address:         req.Address,
		Consumption:     req.Consumption,
		PercentageScale: req.PercentageScale,
		CreatedAt:       time.Now().UTC(),
	}
	if err := s.Store.SaveSubmission(r.Context(), sub); err != nil {
		s.Log.WithError(err).Error("api: save submission failed")
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	res, err := s.Rates.Lookup(r.Context(), rates.Lookup{
		Address:         sub.Address,
		Consumption:     sub.Consumption,
		PercentageScale: sub.PercentageScale,
	})
	if err != nil {
		s.Log.WithError(err).WithField("submission", sub.ID).Warn("api: lookup for new submission failed")
		writeError(w, statusFor(err), err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"submission": sub, "rates": res})
}

func (s *server) handleRefreshSubmission(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	sub, err := s.Store.GetSubmission(r.Context(), id)
	if err != nil {
		s.Log.WithError(err).Error("api: get submission failed")
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if sub == nil {
		writeError(w, http.StatusNotFound, "submission not found")
		return
	}

	res, err := s.Rates.ForceRefresh(r.Context(), rates.Lookup{
		Address:         sub.Address,
		Consumption:     sub.Consumption,
		PercentageScale: sub.PercentageScale,
	})
	if err != nil {
		s.Log.WithError(err).WithField("submission", id).Warn("api: refresh failed")
		writeError(w, statusFor(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"submission": sub, "rates": res})
}

func (s *server) handleListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := s.Store.ListUsers(r.Context())
	if err != nil {
		s.Log.WithError(err).Error("api: list users failed")
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if users == nil {
		users = []storage.User{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"users": users})
}

type userRequest struct {
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Role      string `json:"role"`
}

func (s *server) handleCreateUser(w http.ResponseWriter, r *http.Request) {
	var req userRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if strings.TrimSpace(req.FirstName) == "" {
		writeError(w, http.StatusBadRequest, "first_name is required")
		return
	}
	if req.Role == "" {
		req.Role = auth.RoleViewer
	}
	if !auth.ValidRole(req.Role) {
		writeError(w, http.StatusBadRequest, "unknown role")
		return
	}

	now := time.Now().UTC()
	u := storage.User{
		ID:        uuid.New().String(),
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Role:      req.Role,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.Store.CreateUser(r.Context(), u); err != nil {
		s.Log.WithError(err).Error("api: create user failed")
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusCreated, u)
}

func (s *server) handleGetJob(w http.ResponseWriter, r *http.Request) {
	job, err := s.Store.GetScheduledJob(r.Context(), r.PathValue("name"))
	if err != nil {
		s.Log.WithError(err).Error("api: get job failed")
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if job == nil {
		writeError(w, http.StatusNotFound, "job has not run yet")
		return
	}
	writeJSON(w, http.StatusOK, job)
}

type intervalRequest struct {
	Interval string `json:"interval"`
}

// handleSetRefreshInterval stores the worker interval override. Running
// workers pick it up on their next tick.
func (s *server) handleSetRefreshInterval(w http.ResponseWriter, r *http.Request) {
	var req intervalRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if !cron.ValidInterval(req.Interval) {
		writeError(w, http.StatusBadRequest, "interval must be positive seconds or a cron expression")
		return
	}
	if err := s.Store.SetSetting(r.Context(), cron.IntervalSettingKey, req.Interval); err != nil {
		s.Log.WithError(err).Error("api: set interval failed")
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, req)
}
