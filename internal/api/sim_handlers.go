package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/simshield/simshield-server/internal/models"
)

// ========== Simulation control handlers ==========

// HandleGetState returns the full simulation state snapshot
func (s *RESTServer) HandleGetState(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, s.engine.State())
}

// HandleStart starts the simulation
func (s *RESTServer) HandleStart(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, s.engine.Start())
}

// HandlePause pauses the simulation
func (s *RESTServer) HandlePause(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, s.engine.Pause())
}

// HandleReset resets the simulation to a fresh state
func (s *RESTServer) HandleReset(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, s.engine.Reset())
}

// HandleSetAttack merges a partial attack configuration update.
// Out-of-range intensities are rejected here, before the engine sees them.
func (s *RESTServer) HandleSetAttack(w http.ResponseWriter, r *http.Request) {
	var update models.AttackUpdate
	if err := json.NewDecoder(r.Body).Decode(&update); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := s.validator.Validate(update); err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	s.respondJSON(w, http.StatusOK, s.engine.SetAttackState(update))
}

// HandleSetDefense merges a partial defense configuration update
func (s *RESTServer) HandleSetDefense(w http.ResponseWriter, r *http.Request) {
	var update models.DefenseUpdate
	if err := json.NewDecoder(r.Body).Decode(&update); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	s.respondJSON(w, http.StatusOK, s.engine.SetDefenseState(update))
}

// ========== Device handlers ==========

// HandleListDevices lists device snapshots
func (s *RESTServer) HandleListDevices(w http.ResponseWriter, r *http.Request) {
	state := s.engine.State()
	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"devices": state.Devices,
		"total":   len(state.Devices),
	})
}

// HandleGetDevice returns one device snapshot
func (s *RESTServer) HandleGetDevice(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	device := s.engine.DeviceByID(id)
	if device == nil {
		s.respondError(w, http.StatusNotFound, "device not found")
		return
	}

	s.respondJSON(w, http.StatusOK, device)
}

// ========== Event handlers ==========

// HandleListEvents lists archived events, newest first
func (s *RESTServer) HandleListEvents(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
	if offset < 0 {
		offset = 0
	}

	events, total, err := s.store.ListEvents(r.Context(), limit, offset)
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"events": events,
		"total":  total,
	})
}
