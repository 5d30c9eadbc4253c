package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/samber/lo"

	"github.com/openhab/openhab-addons-sub192/internal/bridges/nobo"
)

// CreateOverrideRequest is the body of POST /overrides.
//
// Mode is required. Type defaults to "constant" and Target to "hub";
// TargetID is required for zone targets.
type CreateOverrideRequest struct {
	Mode     string     `json:"mode"`
	Type     string     `json:"type,omitempty"`
	Target   string     `json:"target,omitempty"`
	TargetID *int       `json:"target_id,omitempty"`
	Start    *time.Time `json:"start,omitempty"`
	End      *time.Time `json:"end,omitempty"`
}

// parameters converts the request to bridge command parameters.
func (req CreateOverrideRequest) parameters() map[string]any {
	p := map[string]any{"mode": req.Mode}
	if req.Type != "" {
		p["type"] = req.Type
	}
	if req.Target != "" {
		p["target"] = req.Target
	}
	if req.TargetID != nil {
		p["target_id"] = *req.TargetID
	}
	if req.Start != nil {
		p["start"] = req.Start.Format(time.RFC3339)
	}
	if req.End != nil {
		p["end"] = req.End.Format(time.RFC3339)
	}
	return p
}

// handleGetHub returns the hub record and its active override.
//
// GET /hub
// Response: {"hub": {...}, "active_override": {...}|null}
func (s *Server) handleGetHub(w http.ResponseWriter, _ *http.Request) {
	state := s.bridge.State()
	h, ok := state.Hub()
	if !ok {
		writeNotFound(w, "hub information has not been received yet")
		return
	}

	resp := map[string]any{"hub": nobo.NewHubView(h), "active_override": nil}
	if o, ok := state.ActiveHubOverride(); ok {
		resp["active_override"] = nobo.NewOverrideView(o)
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleListWeekProfiles returns all week profiles.
//
// GET /weekprofiles
// Response: {"week_profiles": [...], "count": N}
func (s *Server) handleListWeekProfiles(w http.ResponseWriter, _ *http.Request) {
	profiles := lo.Map(s.bridge.State().WeekProfiles(), func(p nobo.WeekProfile, _ int) nobo.WeekProfileView {
		return nobo.NewWeekProfileView(p)
	})
	writeJSON(w, http.StatusOK, map[string]any{"week_profiles": profiles, "count": len(profiles)})
}

// handleGetWeekProfile returns a single week profile.
//
// GET /weekprofiles/{id}
func (s *Server) handleGetWeekProfile(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil {
		writeBadRequest(w, "week profile id must be a number")
		return
	}
	p, ok := s.bridge.State().WeekProfile(id)
	if !ok {
		writeNotFound(w, "week profile not found")
		return
	}
	writeJSON(w, http.StatusOK, nobo.NewWeekProfileView(p))
}

// handleListOverrides returns all override plans known to the hub.
//
// GET /overrides
// Response: {"overrides": [...], "count": N}
func (s *Server) handleListOverrides(w http.ResponseWriter, _ *http.Request) {
	overrides := lo.Map(s.bridge.State().Overrides(), func(o nobo.OverridePlan, _ int) nobo.OverrideView {
		return nobo.NewOverrideView(o)
	})
	writeJSON(w, http.StatusOK, map[string]any{"overrides": overrides, "count": len(overrides)})
}

// handleCreateOverride asks the hub to add an override plan. The hub
// assigns the id and echoes the plan as a B03 line.
//
// POST /overrides
// Body: {"mode": "away", "type": "timer", "target": "hub", "end": "..."}
// Response: 202 Accepted with {"command_id": "...", "command": "set_override", "line": "A03 ..."}
func (s *Server) handleCreateOverride(w http.ResponseWriter, r *http.Request) {
	var req CreateOverrideRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	if req.Mode == "" {
		writeBadRequest(w, "mode is required")
		return
	}

	res, err := s.execute(r, s.newCommand(nobo.CommandSetOverride, req.parameters()))
	if err != nil {
		s.logger.Warn("override creation failed", "mode", req.Mode, "error", err)
		writeCommandError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, res)
}
