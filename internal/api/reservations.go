package api

import (
	"net/http"
	"strconv"
	"strings"

	"pitstop/internal/booking"
	"pitstop/internal/metrics"
	"pitstop/internal/model"
)

// CreateReservationRequest is the request body for POST /api/reservations.
type CreateReservationRequest struct {
	GarageID    int64  `json:"garage_id"`
	RequesterID int64  `json:"requester_id"`
	VehicleID   int64  `json:"vehicle_id"`
	Date        string `json:"date"` // Format: YYYY-MM-DD
	Slot        string `json:"slot"` // Format: HH:MM
	Notes       string `json:"notes,omitempty"`
}

// ReservationResponse represents a reservation in API responses.
type ReservationResponse struct {
	ID          int64  `json:"id"`
	Reference   string `json:"reference"`
	GarageID    int64  `json:"garage_id"`
	RequesterID int64  `json:"requester_id"`
	VehicleID   int64  `json:"vehicle_id"`
	Date        string `json:"date"`
	Slot        string `json:"slot"`
	Status      string `json:"status"`
	Notes       string `json:"notes,omitempty"`
	CancelNote  string `json:"cancel_note,omitempty"`
}

func toReservationResponse(r *model.Reservation) ReservationResponse {
	return ReservationResponse{
		ID:          r.ID,
		Reference:   r.Reference,
		GarageID:    r.GarageID,
		RequesterID: r.RequesterID,
		VehicleID:   r.VehicleID,
		Date:        r.Date,
		Slot:        r.Slot,
		Status:      string(r.Status),
		Notes:       r.Notes,
		CancelNote:  r.CancelNote,
	}
}

// handleReservations creates reservations and lists them by requester.
// POST /api/reservations
// GET  /api/reservations?requester_id=N
func (s *HTTPServer) handleReservations(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		s.handleCreateReservation(w, r)
	case http.MethodGet:
		s.handleListReservations(w, r)
	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (s *HTTPServer) handleCreateReservation(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("create_reservation")

	var req CreateReservationRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.GarageID <= 0 || req.RequesterID <= 0 {
		writeError(w, http.StatusBadRequest, "garage_id and requester_id are required")
		return
	}
	if req.Date == "" || req.Slot == "" {
		writeError(w, http.StatusBadRequest, "date and slot are required")
		return
	}

	reservation, err := s.booking.Reserve(r.Context(), booking.ReserveInput{
		GarageID:    req.GarageID,
		RequesterID: req.RequesterID,
		VehicleID:   req.VehicleID,
		Date:        req.Date,
		Slot:        req.Slot,
		Notes:       req.Notes,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}

	// A committed slot invalidates the cached listing for its day.
	if s.cache != nil {
		s.cache.Delete(r.Context(), cacheKeyFor(reservation))
	}
	writeJSON(w, http.StatusCreated, toReservationResponse(reservation))
}

func (s *HTTPServer) handleListReservations(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("list_reservations")

	requesterID, err := strconv.ParseInt(r.URL.Query().Get("requester_id"), 10, 64)
	if err != nil || requesterID <= 0 {
		writeError(w, http.StatusBadRequest, "requester_id is required")
		return
	}

	reservations, err := s.store.ListRequesterReservations(r.Context(), requesterID)
	if err != nil {
		s.log.Error().Err(err).Int64("requester_id", requesterID).Msg("list reservations failed")
		writeDomainError(w, err)
		return
	}

	out := make([]ReservationResponse, 0, len(reservations))
	for i := range reservations {
		out = append(out, toReservationResponse(&reservations[i]))
	}
	writeJSON(w, http.StatusOK, map[string]any{"reservations": out})
}

// StatusRequest is the request body for reservation lifecycle actions.
type StatusRequest struct {
	Action string `json:"action"` // "confirm", "start", "complete", "no_show"
}

// CancelRequest is the request body for cancelling a reservation.
type CancelRequest struct {
	Reason string `json:"reason,omitempty"`
}

// handleReservationSubresource routes /api/reservations/{reference} and its
// actions.
func (s *HTTPServer) handleReservationSubresource(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/api/reservations/")
	reference, sub, _ := strings.Cut(rest, "/")
	if reference == "" {
		writeError(w, http.StatusBadRequest, "reference is required")
		return
	}

	switch sub {
	case "":
		s.handleGetReservation(w, r, reference)
	case "cancel":
		s.handleCancelReservation(w, r, reference)
	case "status":
		s.handleReservationStatus(w, r, reference)
	default:
		writeError(w, http.StatusNotFound, "unknown resource")
	}
}

// handleGetReservation looks a reservation up by its reference.
// GET /api/reservations/{reference}
func (s *HTTPServer) handleGetReservation(w http.ResponseWriter, r *http.Request, reference string) {
	metrics.IncHTTP("get_reservation")
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	reservation, err := s.store.ReservationByReference(r.Context(), reference)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toReservationResponse(reservation))
}

// handleCancelReservation cancels a pending or confirmed reservation.
// POST /api/reservations/{reference}/cancel
func (s *HTTPServer) handleCancelReservation(w http.ResponseWriter, r *http.Request, reference string) {
	metrics.IncHTTP("cancel_reservation")
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req CancelRequest
	if r.ContentLength > 0 {
		if err := decodeBody(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
	}

	reservation, err := s.store.ReservationByReference(r.Context(), reference)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	cancelled, err := s.booking.Cancel(r.Context(), reservation.ID, req.Reason)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	if s.cache != nil {
		s.cache.Delete(r.Context(), cacheKeyFor(cancelled))
	}
	writeJSON(w, http.StatusOK, toReservationResponse(cancelled))
}

// handleReservationStatus applies a lifecycle action to a reservation.
// POST /api/reservations/{reference}/status
func (s *HTTPServer) handleReservationStatus(w http.ResponseWriter, r *http.Request, reference string) {
	metrics.IncHTTP("reservation_status")
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req StatusRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	reservation, err := s.store.ReservationByReference(r.Context(), reference)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	var updated *model.Reservation
	switch req.Action {
	case "confirm":
		updated, err = s.booking.Confirm(r.Context(), reservation.ID)
	case "start":
		updated, err = s.booking.Start(r.Context(), reservation.ID)
	case "complete":
		updated, err = s.booking.Complete(r.Context(), reservation.ID)
	case "no_show":
		updated, err = s.booking.MarkNoShow(r.Context(), reservation.ID)
	default:
		writeError(w, http.StatusBadRequest, "action must be one of: confirm, start, complete, no_show")
		return
	}
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toReservationResponse(updated))
}
