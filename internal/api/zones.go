package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/samber/lo"

	"github.com/openhab/openhab-addons-sub192/internal/bridges/nobo"
)

// UpdateZoneRequest is the body of PATCH /zones/{id}. Every field is
// optional but at least one must be set.
type UpdateZoneRequest struct {
	ComfortTemperature *int `json:"comfort_temperature,omitempty"`
	EcoTemperature     *int `json:"eco_temperature,omitempty"`
	WeekProfileID      *int `json:"week_profile_id,omitempty"`
}

// CommandResult reports one command line written to the hub.
type CommandResult struct {
	CommandID string `json:"command_id"`
	Command   string `json:"command"`
	Line      string `json:"line"`
}

// handleListZones returns all zones.
//
// GET /zones
// Response: {"zones": [...], "count": N}
func (s *Server) handleListZones(w http.ResponseWriter, _ *http.Request) {
	zones := lo.Map(s.bridge.State().Zones(), func(z nobo.Zone, _ int) nobo.ZoneView {
		return nobo.NewZoneView(z)
	})
	writeJSON(w, http.StatusOK, map[string]any{"zones": zones, "count": len(zones)})
}

// handleGetZone returns a single zone.
//
// GET /zones/{id}
func (s *Server) handleGetZone(w http.ResponseWriter, r *http.Request) {
	z, ok := s.zoneFromPath(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, nobo.NewZoneView(z))
}

// handleUpdateZone changes set points or the week profile of a zone.
//
// All fields go to the hub as one U00 record. The hub echoes the change
// as a V00 line, so the stored zone is only updated once the hub
// confirms it.
//
// PATCH /zones/{id}
// Body: {"comfort_temperature": 22, "eco_temperature": 17, "week_profile_id": 2}
// Response: 202 Accepted with the command result
func (s *Server) handleUpdateZone(w http.ResponseWriter, r *http.Request) {
	z, ok := s.zoneFromPath(w, r)
	if !ok {
		return
	}

	var req UpdateZoneRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	params := req.parameters(z.ID())
	if len(params) == 1 {
		writeBadRequest(w, "at least one of comfort_temperature, eco_temperature or week_profile_id is required")
		return
	}

	res, err := s.execute(r, s.newCommand(nobo.CommandSetZone, params))
	if err != nil {
		s.logger.Warn("zone update failed", "zone", z.ID(), "error", err)
		writeCommandError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, res)
}

// parameters maps the request onto set_zone parameters.
func (req UpdateZoneRequest) parameters(zoneID int) map[string]any {
	p := map[string]any{"zone_id": zoneID}
	if req.WeekProfileID != nil {
		p["week_profile_id"] = *req.WeekProfileID
	}
	if req.ComfortTemperature != nil {
		p["comfort_temperature"] = *req.ComfortTemperature
	}
	if req.EcoTemperature != nil {
		p["eco_temperature"] = *req.EcoTemperature
	}
	return p
}

// handleGetZoneStatus evaluates the effective status of a zone.
//
// GET /zones/{id}/status
// GET /zones/{id}/status?at=2026-05-01T07:30:00+02:00
// Response: {"zone_id": 1, "status": "COMFORT", "source": "week_profile", ...}
func (s *Server) handleGetZoneStatus(w http.ResponseWriter, r *http.Request) {
	z, ok := s.zoneFromPath(w, r)
	if !ok {
		return
	}

	at := s.now().In(s.location)
	if raw := r.URL.Query().Get("at"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			writeBadRequest(w, "at must be an RFC 3339 timestamp")
			return
		}
		at = t.In(s.location)
	}

	st, err := s.bridge.State().ZoneStatus(z.ID(), at)
	if err != nil {
		if errors.Is(err, nobo.ErrNotFound) {
			writeNotFound(w, err.Error())
			return
		}
		s.logger.Error("failed to evaluate zone status", "zone", z.ID(), "error", err)
		writeInternalError(w, "failed to evaluate zone status")
		return
	}
	writeJSON(w, http.StatusOK, nobo.NewZoneStatusView(st, at))
}

// zoneFromPath resolves the {id} URL parameter. It writes the error
// response itself and reports false when the zone cannot be used.
func (s *Server) zoneFromPath(w http.ResponseWriter, r *http.Request) (nobo.Zone, bool) {
	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil {
		writeBadRequest(w, "zone id must be a number")
		return nobo.Zone{}, false
	}
	z, ok := s.bridge.State().Zone(id)
	if !ok {
		writeNotFound(w, "zone not found")
		return nobo.Zone{}, false
	}
	return z, true
}

// newCommand builds an API-sourced command with a fresh ID.
func (s *Server) newCommand(name string, params map[string]any) nobo.CommandMessage {
	return nobo.CommandMessage{
		ID:         uuid.NewString(),
		Timestamp:  s.now().UTC(),
		Command:    name,
		Parameters: params,
		Source:     "api",
	}
}

// execute sends one command through the bridge and records the outcome.
func (s *Server) execute(r *http.Request, cmd nobo.CommandMessage) (CommandResult, error) {
	line, err := s.bridge.Execute(r.Context(), cmd)
	s.recordCommand(r, cmd, line, err)
	if err != nil {
		return CommandResult{}, err
	}
	s.logger.Info("api command accepted",
		"command_id", cmd.ID,
		"command", cmd.Command,
		"request_id", requestID(r),
	)
	return CommandResult{CommandID: cmd.ID, Command: cmd.Command, Line: line}, nil
}
