package handlers

import (
	"net/http"
	"strconv"

	"github.com/slotbook/slotbook/libs/httpx"
	"github.com/slotbook/slotbook/services/scheduling-service/internal/identity"
	"github.com/slotbook/slotbook/services/scheduling-service/internal/model"
	"github.com/slotbook/slotbook/services/scheduling-service/internal/reservation"
)

type reserveRequest struct {
	SlotID      string `json:"slotId" validate:"required"`
	ServiceType string `json:"serviceType" validate:"required,max=100"`
	Notes       string `json:"notes" validate:"max=2000"`
}

type cancelRequest struct {
	AppointmentID string `json:"appointmentId" validate:"required"`
	Reason        string `json:"reason" validate:"max=500"`
}

type completeRequest struct {
	AppointmentID string `json:"appointmentId" validate:"required"`
}

// Reserve books a slot for the calling client.
func (h *Handler) Reserve(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, http.MethodPost)
		return
	}
	role, ok := h.role(w, r)
	if !ok {
		return
	}
	client, isClient := role.(identity.Client)
	if !isClient {
		writeError(w, r, h.logger, "reserve", errClientOnly)
		return
	}

	var req reserveRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		badRequest(w, "invalid json body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		writeError(w, r, h.logger, "reserve", err)
		return
	}

	appt, err := h.coordinator.ReserveSlot(r.Context(), reservation.Request{
		SlotID:      req.SlotID,
		ClientID:    client.ClientID,
		ClientEmail: client.Email,
		ServiceType: req.ServiceType,
		Notes:       req.Notes,
	})
	if err != nil {
		writeError(w, r, h.logger, "reserve", err)
		return
	}
	httpx.WriteJSON(w, http.StatusCreated, reserved{Success: true, AppointmentID: appt.ID})
}

// ListAppointments returns the caller's appointments, newest first.
func (h *Handler) ListAppointments(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, http.MethodGet)
		return
	}
	role, ok := h.role(w, r)
	if !ok {
		return
	}

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			writeError(w, r, h.logger, "list appointments", &model.ValidationError{Field: "limit", Message: "must be a positive integer"})
			return
		}
		limit = n
	}

	appts, err := h.ledger.ListFor(r.Context(), role, limit)
	if err != nil {
		writeError(w, r, h.logger, "list appointments", err)
		return
	}
	if appts == nil {
		appts = []model.Appointment{}
	}
	httpx.WriteJSON(w, http.StatusOK, appts)
}

func (h *Handler) CancelAppointment(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, http.MethodPost)
		return
	}
	role, ok := h.role(w, r)
	if !ok {
		return
	}

	var req cancelRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		badRequest(w, "invalid json body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		writeError(w, r, h.logger, "cancel appointment", err)
		return
	}

	appt, err := h.ledger.MarkCancelled(r.Context(), req.AppointmentID, role, req.Reason)
	if err != nil {
		writeError(w, r, h.logger, "cancel appointment", err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, statusChanged{Success: true, AppointmentID: appt.ID, Status: appt.Status})
}

func (h *Handler) CompleteAppointment(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, http.MethodPost)
		return
	}
	role, ok := h.role(w, r)
	if !ok {
		return
	}

	var req completeRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		badRequest(w, "invalid json body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		writeError(w, r, h.logger, "complete appointment", err)
		return
	}

	appt, err := h.ledger.MarkCompleted(r.Context(), req.AppointmentID, role)
	if err != nil {
		writeError(w, r, h.logger, "complete appointment", err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, statusChanged{Success: true, AppointmentID: appt.ID, Status: appt.Status})
}
