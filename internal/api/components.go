package api

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/samber/lo"

	"github.com/openhab/openhab-addons-sub192/internal/bridges/nobo"
)

// handleListComponents returns components, optionally filtered by zone.
//
// GET /components
// GET /components?zone=1
// Response: {"components": [...], "count": N}
func (s *Server) handleListComponents(w http.ResponseWriter, r *http.Request) {
	components := s.bridge.State().Components()

	if raw := r.URL.Query().Get("zone"); raw != "" {
		zoneID, err := strconv.Atoi(raw)
		if err != nil {
			writeBadRequest(w, "zone must be a number")
			return
		}
		components = lo.Filter(components, func(c nobo.Component, _ int) bool {
			return c.ZoneID() == zoneID
		})
	}

	views := lo.Map(components, func(c nobo.Component, _ int) nobo.ComponentView {
		return nobo.NewComponentView(c)
	})
	writeJSON(w, http.StatusOK, map[string]any{"components": views, "count": len(views)})
}

// handleGetComponent returns a single component by serial number.
//
// GET /components/{serial}
func (s *Server) handleGetComponent(w http.ResponseWriter, r *http.Request) {
	serial := nobo.SerialNumber(chi.URLParam(r, "serial"))
	if !serial.IsWellFormed() {
		writeBadRequest(w, "serial must be 12 digits")
		return
	}
	c, ok := s.bridge.State().Component(serial)
	if !ok {
		writeNotFound(w, "component not found")
		return
	}
	writeJSON(w, http.StatusOK, nobo.NewComponentView(c))
}
