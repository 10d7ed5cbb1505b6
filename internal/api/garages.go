package api

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"pitstop/internal/cache"
	"pitstop/internal/metrics"
)

// GarageResponse represents a garage in API responses.
type GarageResponse struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

// handleGarages returns all garages currently open for booking.
// GET /api/garages
func (s *HTTPServer) handleGarages(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("garages")
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	garages, err := s.booking.ListBookableGarages(r.Context())
	if err != nil {
		s.log.Error().Err(err).Msg("list bookable garages failed")
		writeDomainError(w, err)
		return
	}

	out := make([]GarageResponse, 0, len(garages))
	for _, g := range garages {
		out = append(out, GarageResponse{ID: g.ID, Name: g.Name, Description: g.Description})
	}
	writeJSON(w, http.StatusOK, map[string]any{"garages": out})
}

// handleGarageSubresource routes /api/garages/{id}/{sub}.
func (s *HTTPServer) handleGarageSubresource(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/api/garages/")
	idStr, sub, _ := strings.Cut(rest, "/")
	garageID, err := strconv.ParseInt(idStr, 10, 64)
	if err != nil || garageID <= 0 {
		writeError(w, http.StatusBadRequest, "invalid garage id")
		return
	}

	switch sub {
	case "slots":
		s.handleGarageSlots(w, r, garageID)
	case "availability":
		s.handleGarageAvailability(w, r, garageID)
	case "report":
		s.handleGarageReport(w, r, garageID)
	default:
		writeError(w, http.StatusNotFound, "unknown resource")
	}
}

// SlotsResponse is the availability listing for one garage and date.
type SlotsResponse struct {
	GarageID int64    `json:"garage_id"`
	Date     string   `json:"date"`
	Slots    []string `json:"slots"`
}

// handleGarageSlots returns bookable slot labels for a date.
// GET /api/garages/{id}/slots?date=YYYY-MM-DD&slot=HH:MM
func (s *HTTPServer) handleGarageSlots(w http.ResponseWriter, r *http.Request, garageID int64) {
	metrics.IncHTTP("garage_slots")
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	date := r.URL.Query().Get("date")
	if date == "" {
		writeError(w, http.StatusBadRequest, "date is required")
		return
	}
	requested := r.URL.Query().Get("slot")

	// Full listings may be served from cache; the single-slot probe and the
	// commit path always recompute.
	key := cache.SlotsKey(garageID, date)
	if requested == "" && s.cache != nil {
		var cached SlotsResponse
		if s.cache.Get(r.Context(), key, &cached) {
			metrics.IncCache("hit")
			writeJSON(w, http.StatusOK, cached)
			return
		}
		metrics.IncCache("miss")
	}

	slots, err := s.availability.AvailableSlots(r.Context(), garageID, date, s.now(), requested)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if slots == nil {
		slots = []string{}
	}

	resp := SlotsResponse{GarageID: garageID, Date: date, Slots: slots}
	if requested == "" && s.cache != nil {
		s.cache.Set(r.Context(), key, resp, s.cacheTTL)
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleGarageAvailability returns per-day availability over a date range.
// GET /api/garages/{id}/availability?from=YYYY-MM-DD&to=YYYY-MM-DD
func (s *HTTPServer) handleGarageAvailability(w http.ResponseWriter, r *http.Request, garageID int64) {
	metrics.IncHTTP("garage_availability")
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	from := r.URL.Query().Get("from")
	to := r.URL.Query().Get("to")
	if from == "" || to == "" {
		writeError(w, http.StatusBadRequest, "from and to are required")
		return
	}

	days, err := s.booking.RangeAvailability(r.Context(), garageID, from, to)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"garage_id": garageID,
		"from":      from,
		"to":        to,
		"days":      days,
	})
}

// handleGarageReport streams an Excel report of reservations in a range.
// GET /api/garages/{id}/report?from=YYYY-MM-DD&to=YYYY-MM-DD
func (s *HTTPServer) handleGarageReport(w http.ResponseWriter, r *http.Request, garageID int64) {
	metrics.IncHTTP("garage_report")
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	from := r.URL.Query().Get("from")
	to := r.URL.Query().Get("to")
	if from == "" || to == "" {
		writeError(w, http.StatusBadRequest, "from and to are required")
		return
	}

	// Garage must exist before we commit to streaming a workbook.
	if _, err := s.store.GarageByID(r.Context(), garageID); err != nil {
		writeDomainError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=reservations_%d_%s_%s.xlsx", garageID, from, to))
	if err := s.reports.WriteReservations(r.Context(), w, garageID, from, to); err != nil {
		s.log.Error().Err(err).Int64("garage_id", garageID).Msg("report export failed")
	}
}
