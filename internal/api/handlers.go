package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/nvqhuy/homewatt/internal/engine"
	"github.com/nvqhuy/homewatt/internal/settings"
	"github.com/nvqhuy/homewatt/internal/threshold"
)

// stateBody is the JSON shape of a device state in responses and
// WebSocket broadcasts.
type stateBody struct {
	RoomID      string    `json:"room_id"`
	DeviceID    string    `json:"device_id"`
	On          bool      `json:"on"`
	PowerWatts  float64   `json:"power_watts"`
	Origin      string    `json:"origin"`
	Stale       bool      `json:"stale"`
	LastUpdated time.Time `json:"last_updated,omitempty"`
}

func deviceStateBody(roomID, deviceID string, st engine.DeviceState) stateBody {
	return stateBody{
		RoomID:      roomID,
		DeviceID:    deviceID,
		On:          st.On,
		PowerWatts:  st.PowerWatts,
		Origin:      st.Origin.String(),
		Stale:       st.Stale,
		LastUpdated: st.LastUpdated,
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"version": s.version,
		"devices": s.reg.DeviceCount(),
	})
}

func (s *Server) handleListRooms(w http.ResponseWriter, r *http.Request) {
	type roomBody struct {
		ID         string      `json:"id"`
		Name       string      `json:"name"`
		PowerWatts float64     `json:"power_watts"`
		Devices    []stateBody `json:"devices"`
	}

	var out []roomBody
	for _, room := range s.reg.Rooms() {
		rb := roomBody{ID: room.ID, Name: room.Name}
		for _, dev := range room.Devices {
			st, err := s.engine.GetDeviceState(room.ID, dev.ID)
			if err != nil {
				continue
			}
			rb.Devices = append(rb.Devices, deviceStateBody(room.ID, dev.ID, st))
		}
		rb.PowerWatts, _ = s.engine.RoomPower(room.ID)
		out = append(out, rb)
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleGetRoom(w http.ResponseWriter, r *http.Request) {
	roomID := chi.URLParam(r, "roomID")
	room, err := s.reg.Room(roomID)
	if err != nil {
		writeError(w, http.StatusNotFound, ErrCodeNotFound, "unknown room: "+roomID)
		return
	}

	devices := make([]stateBody, 0, len(room.Devices))
	for _, dev := range room.Devices {
		st, err := s.engine.GetDeviceState(roomID, dev.ID)
		if err != nil {
			continue
		}
		devices = append(devices, deviceStateBody(roomID, dev.ID, st))
	}
	power, _ := s.engine.RoomPower(roomID)

	writeJSON(w, http.StatusOK, map[string]any{
		"id":          room.ID,
		"name":        room.Name,
		"power_watts": power,
		"devices":     devices,
	})
}

func (s *Server) handleRoomPower(w http.ResponseWriter, r *http.Request) {
	roomID := chi.URLParam(r, "roomID")
	watts, err := s.engine.RoomPower(roomID)
	if err != nil {
		writeCommandError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"room_id": roomID, "power_watts": watts})
}

func (s *Server) handleGetDeviceState(w http.ResponseWriter, r *http.Request) {
	roomID := chi.URLParam(r, "roomID")
	deviceID := chi.URLParam(r, "deviceID")

	st, err := s.engine.GetDeviceState(roomID, deviceID)
	if err != nil {
		writeCommandError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, deviceStateBody(roomID, deviceID, st))
}

func (s *Server) handleSetDeviceState(w http.ResponseWriter, r *http.Request) {
	roomID := chi.URLParam(r, "roomID")
	deviceID := chi.URLParam(r, "deviceID")

	var body struct {
		On *bool `json:"on"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.On == nil {
		writeError(w, http.StatusBadRequest, ErrCodeBadRequest, "body must carry an \"on\" flag")
		return
	}

	st, err := s.engine.SetDevice(r.Context(), roomID, deviceID, *body.On)
	if err != nil {
		writeCommandError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, deviceStateBody(roomID, deviceID, st))
}

func (s *Server) handleToggleDevice(w http.ResponseWriter, r *http.Request) {
	roomID := chi.URLParam(r, "roomID")
	deviceID := chi.URLParam(r, "deviceID")

	st, err := s.engine.ToggleDevice(r.Context(), roomID, deviceID)
	if err != nil {
		writeCommandError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, deviceStateBody(roomID, deviceID, st))
}

func (s *Server) handlePowerSummary(w http.ResponseWriter, r *http.Request) {
	total := s.engine.TotalPower()
	rooms := s.engine.RoomPowers()
	res := s.engine.EvaluateThresholds()

	writeJSON(w, http.StatusOK, map[string]any{
		"total_watts": total,
		"rooms":       rooms,
		"energy_kwh":  s.engine.EnergyKWh(),
		"alert": map[string]any{
			"level":         res.Level.String(),
			"message":       res.Message,
			"overage_rooms": res.OverageRooms,
		},
	})
}

func (s *Server) handleComputeBill(w http.ResponseWriter, r *http.Request) {
	kwh, err := strconv.ParseFloat(r.URL.Query().Get("kwh"), 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, ErrCodeBadRequest, "kwh query parameter must be a number")
		return
	}

	bill, err := s.engine.ComputeBill(kwh)
	if err != nil {
		writeCommandError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, bill)
}

func (s *Server) handleEstimateMonthly(w http.ResponseWriter, r *http.Request) {
	bill, err := s.engine.EstimateMonthly()
	if err != nil {
		writeCommandError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, bill)
}

// settingsBody is the JSON shape of the settings endpoints.
type settingsBody struct {
	WarningWatts     float64   `json:"warning_watts"`
	CriticalWatts    float64   `json:"critical_watts"`
	RoomCeilingWatts float64   `json:"room_ceiling_watts"`
	TierPrices       []float64 `json:"tier_prices"`
	VAT              float64   `json:"vat"`
}

func (s *Server) handleGetSettings(w http.ResponseWriter, r *http.Request) {
	tc := s.engine.ThresholdConfig()
	bc := s.engine.BillingConfig()

	writeJSON(w, http.StatusOK, settingsBody{
		WarningWatts:     tc.WarningWatts,
		CriticalWatts:    tc.CriticalWatts,
		RoomCeilingWatts: tc.RoomCeilingWatts,
		TierPrices:       bc.Prices(),
		VAT:              bc.VAT,
	})
}

func (s *Server) handlePutSettings(w http.ResponseWriter, r *http.Request) {
	var body settingsBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, ErrCodeBadRequest, "malformed settings body")
		return
	}

	next := settings.Settings{
		Thresholds: threshold.Config{
			WarningWatts:     body.WarningWatts,
			CriticalWatts:    body.CriticalWatts,
			RoomCeilingWatts: body.RoomCeilingWatts,
		},
		TierPrices: body.TierPrices,
		VAT:        body.VAT,
	}

	err := s.engine.UpdateSettings(r.Context(), next)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, map[string]any{"applied": true, "persisted": true})
	case isPersistError(err):
		// Validated and applied in memory; only the durable write
		// failed.
		writeJSON(w, http.StatusInternalServerError, map[string]any{
			"applied":   true,
			"persisted": false,
			"error":     err.Error(),
		})
	default:
		writeCommandError(w, err)
	}
}

func isPersistError(err error) bool {
	return errors.Is(err, settings.ErrPersist)
}
