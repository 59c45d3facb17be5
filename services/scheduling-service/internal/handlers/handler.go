// Package handlers exposes the scheduling operations over HTTP/JSON.
package handlers

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/slotbook/slotbook/libs/httpx"
	"github.com/slotbook/slotbook/services/scheduling-service/internal/identity"
	"github.com/slotbook/slotbook/services/scheduling-service/internal/ledger"
	"github.com/slotbook/slotbook/services/scheduling-service/internal/reservation"
	"github.com/slotbook/slotbook/services/scheduling-service/internal/slots"
)

type Handler struct {
	slots       *slots.Service
	coordinator *reservation.Coordinator
	ledger      *ledger.Service
	validator   *requestValidator
	loc         *time.Location
	now         func() time.Time
	logger      *slog.Logger
}

func New(slotSvc *slots.Service, coordinator *reservation.Coordinator, led *ledger.Service, loc *time.Location, logger *slog.Logger) (*Handler, error) {
	v, err := newRequestValidator()
	if err != nil {
		return nil, err
	}
	if loc == nil {
		loc = time.UTC
	}
	return &Handler{
		slots:       slotSvc,
		coordinator: coordinator,
		ledger:      led,
		validator:   v,
		loc:         loc,
		now:         time.Now,
		logger:      logger,
	}, nil
}

// Register mounts every route on mux. writes wraps the state-changing
// endpoints, typically with a rate limiter; nil leaves them bare.
func (h *Handler) Register(mux *http.ServeMux, writes httpx.Middleware) {
	if writes == nil {
		writes = func(next http.Handler) http.Handler { return next }
	}
	mux.HandleFunc("/api/v1/practitioner/calendar", h.Calendar)
	mux.HandleFunc("/api/v1/practitioner/calendar.ics", h.CalendarICS)
	mux.Handle("/api/v1/practitioner/slots", writes(http.HandlerFunc(h.Slots)))
	mux.Handle("/api/v1/practitioner/slots/delete", writes(http.HandlerFunc(h.DeleteSlot)))
	mux.HandleFunc("/api/v1/public/availability", h.PublicAvailability)
	mux.Handle("/api/v1/reservations", writes(http.HandlerFunc(h.Reserve)))
	mux.HandleFunc("/api/v1/appointments", h.ListAppointments)
	mux.Handle("/api/v1/appointments/cancel", writes(http.HandlerFunc(h.CancelAppointment)))
	mux.Handle("/api/v1/appointments/complete", writes(http.HandlerFunc(h.CompleteAppointment)))
}

// practitioner returns the calling practitioner or writes a 401/403.
func (h *Handler) practitioner(w http.ResponseWriter, r *http.Request) (int64, bool) {
	if _, ok := identity.RoleFrom(r.Context()); !ok {
		writeError(w, r, h.logger, "authenticate", identity.ErrUnauthenticated)
		return 0, false
	}
	id, ok := identity.CurrentPractitioner(r)
	if !ok {
		writeError(w, r, h.logger, "authorize", errPractitionerOnly)
		return 0, false
	}
	return id, true
}

func (h *Handler) role(w http.ResponseWriter, r *http.Request) (identity.UserRole, bool) {
	role, ok := identity.RoleFrom(r.Context())
	if !ok {
		writeError(w, r, h.logger, "authenticate", identity.ErrUnauthenticated)
		return nil, false
	}
	return role, true
}
