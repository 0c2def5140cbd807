package internalhttp

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	log "github.com/sirupsen/logrus"
	"github.com/teamcal/teamcal/internal/app"
	"github.com/teamcal/teamcal/internal/interval"
	"github.com/teamcal/teamcal/internal/storage"
)

// Current-profile stand-in for real authentication: callers identify
// themselves with this header.
const profileHeader = "X-Profile-ID"

const localStampLayout = "2006-01-02T15:04:05.000-07:00"

type errorBody struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

type profileRequest struct {
	Name     string `json:"name"`
	Timezone string `json:"timezone"`
}

type timezoneRequest struct {
	Timezone string `json:"timezone"`
}

type createEventRequest struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Profiles    []string `json:"profiles"`
	Timezone    string   `json:"timezone"`
	StartDate   string   `json:"startDate"`
	StartTime   string   `json:"startTime"`
	EndDate     string   `json:"endDate"`
	EndTime     string   `json:"endTime"`
	CreatedBy   string   `json:"createdBy"`
}

type updateEventRequest struct {
	Title        *string  `json:"title"`
	Description  *string  `json:"description"`
	Profiles     []string `json:"profiles"`
	Timezone     *string  `json:"timezone"`
	StartDate    string   `json:"startDate"`
	StartTime    string   `json:"startTime"`
	EndDate      string   `json:"endDate"`
	EndTime      string   `json:"endTime"`
	UpdatedBy    string   `json:"updatedBy"`
	UserTimezone string   `json:"userTimezone"`
}

type eventResponse struct {
	storage.Event
	StartLocal string `json:"startLocal,omitempty"`
	EndLocal   string `json:"endLocal,omitempty"`
}

type updateEventResponse struct {
	Message string        `json:"message,omitempty"`
	Event   eventResponse `json:"event"`
}

func (s *Server) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":    "ok",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) setupAdmin(w http.ResponseWriter, r *http.Request) {
	var req profileRequest
	if !decode(w, r, &req) {
		return
	}
	p, err := s.app.SetupAdmin(r.Context(), req.Name, req.Timezone)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, p)
}

func (s *Server) currentProfile(w http.ResponseWriter, r *http.Request) {
	id := r.Header.Get(profileHeader)
	if id == "" {
		writeJSON(w, http.StatusUnauthorized, errorBody{Kind: "unauthenticated", Message: "profile header missing"})
		return
	}
	p, err := s.app.GetProfile(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) listProfiles(w http.ResponseWriter, r *http.Request) {
	profiles, err := s.app.ListProfiles(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, profiles)
}

func (s *Server) createProfile(w http.ResponseWriter, r *http.Request) {
	var req profileRequest
	if !decode(w, r, &req) {
		return
	}
	p, err := s.app.CreateProfile(r.Context(), req.Name, req.Timezone)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, p)
}

func (s *Server) getProfile(w http.ResponseWriter, r *http.Request) {
	p, err := s.app.GetProfile(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) updateProfileTimezone(w http.ResponseWriter, r *http.Request) {
	var req timezoneRequest
	if !decode(w, r, &req) {
		return
	}
	p, err := s.app.UpdateProfileTimezone(r.Context(), chi.URLParam(r, "id"), req.Timezone)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) listEvents(w http.ResponseWriter, r *http.Request) {
	events, err := s.app.ListEvents(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	s.renderEvents(w, r, events)
}

func (s *Server) listEventsForProfile(w http.ResponseWriter, r *http.Request) {
	events, err := s.app.ListEventsForProfile(r.Context(), chi.URLParam(r, "profileID"))
	if err != nil {
		writeError(w, err)
		return
	}
	s.renderEvents(w, r, events)
}

func (s *Server) createEvent(w http.ResponseWriter, r *http.Request) {
	var req createEventRequest
	if !decode(w, r, &req) {
		return
	}
	if req.CreatedBy == "" {
		req.CreatedBy = r.Header.Get(profileHeader)
	}
	e, err := s.app.CreateEvent(r.Context(), app.CreateEventInput{
		Title:       req.Title,
		Description: req.Description,
		Profiles:    req.Profiles,
		Timezone:    req.Timezone,
		StartDate:   req.StartDate,
		StartTime:   req.StartTime,
		EndDate:     req.EndDate,
		EndTime:     req.EndTime,
		CreatedBy:   req.CreatedBy,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, renderEvent(e, r.URL.Query().Get("tz")))
}

func (s *Server) getEvent(w http.ResponseWriter, r *http.Request) {
	e, err := s.app.GetEvent(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, renderEvent(e, r.URL.Query().Get("tz")))
}

func (s *Server) updateEvent(w http.ResponseWriter, r *http.Request) {
	var req updateEventRequest
	if !decode(w, r, &req) {
		return
	}
	if req.UpdatedBy == "" {
		req.UpdatedBy = r.Header.Get(profileHeader)
	}
	e, changed, err := s.app.UpdateEvent(r.Context(), chi.URLParam(r, "id"), app.UpdateEventInput{
		UpdatedBy:    req.UpdatedBy,
		UserTimezone: req.UserTimezone,
		Title:        req.Title,
		Description:  req.Description,
		Profiles:     req.Profiles,
		Timezone:     req.Timezone,
		StartDate:    req.StartDate,
		StartTime:    req.StartTime,
		EndDate:      req.EndDate,
		EndTime:      req.EndTime,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	resp := updateEventResponse{Event: renderEvent(e, r.URL.Query().Get("tz"))}
	if !changed {
		resp.Message = "no changes detected"
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) listEventLogs(w http.ResponseWriter, r *http.Request) {
	// The event must exist even when it has no logs yet.
	if _, err := s.app.GetEvent(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeError(w, err)
		return
	}
	logs, err := s.app.ListEventLogs(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, logs)
}

func (s *Server) renderEvents(w http.ResponseWriter, r *http.Request, events []storage.Event) {
	tz := r.URL.Query().Get("tz")
	out := make([]eventResponse, 0, len(events))
	for _, e := range events {
		out = append(out, renderEvent(e, tz))
	}
	writeJSON(w, http.StatusOK, out)
}

// renderEvent adds wall-clock renderings in the requested zone next to the
// canonical UTC instants. A bad zone falls back to plain UTC output rather
// than failing a read.
func renderEvent(e storage.Event, tz string) eventResponse {
	resp := eventResponse{Event: e}
	if tz == "" {
		return resp
	}
	start, err := interval.InZone(e.StartTime, tz)
	if err != nil {
		return resp
	}
	end, _ := interval.InZone(e.EndTime, tz)
	resp.StartLocal = start.Format(localStampLayout)
	resp.EndLocal = end.Format(localStampLayout)
	return resp
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Kind: "validation_error", Message: "invalid request body"})
		return false
	}
	return true
}

func writeError(w http.ResponseWriter, err error) {
	var status int
	var kind string
	switch {
	case errors.Is(err, app.ErrValidation), errors.Is(err, storage.ErrAdminExists):
		status, kind = http.StatusBadRequest, "validation_error"
	case errors.Is(err, app.ErrUnknownProfile):
		status, kind = http.StatusBadRequest, "unknown_profile"
	case errors.Is(err, interval.ErrInvalidTimestamp):
		status, kind = http.StatusBadRequest, "invalid_timestamp"
	case errors.Is(err, interval.ErrInvalidInterval):
		status, kind = http.StatusBadRequest, "invalid_interval"
	case errors.Is(err, storage.ErrNotFoundEvent), errors.Is(err, storage.ErrNotFoundProfile):
		status, kind = http.StatusNotFound, "not_found"
	case errors.Is(err, storage.ErrVersionConflict):
		status, kind = http.StatusConflict, "conflict"
	default:
		log.Errorf("request failed: %v", err)
		writeJSON(w, http.StatusInternalServerError, errorBody{Kind: "internal_error", Message: "internal server error"})
		return
	}
	writeJSON(w, status, errorBody{Kind: kind, Message: err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Errorf("failed to write response: %v", err)
	}
}
