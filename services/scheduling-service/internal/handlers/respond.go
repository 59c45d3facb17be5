package handlers

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/slotbook/slotbook/libs/httpx"
	otelx "github.com/slotbook/slotbook/libs/otel"
	"github.com/slotbook/slotbook/services/scheduling-service/internal/identity"
	"github.com/slotbook/slotbook/services/scheduling-service/internal/model"
)

var (
	errPractitionerOnly = fmt.Errorf("practitioner role required: %w", model.ErrPermission)
	errClientOnly       = fmt.Errorf("only clients may reserve slots: %w", model.ErrPermission)
)

type slotsCreated struct {
	Success  bool     `json:"success"`
	EventIDs []string `json:"eventIds"`
}

type reserved struct {
	Success       bool   `json:"success"`
	AppointmentID string `json:"appointmentId"`
}

type statusChanged struct {
	Success       bool                    `json:"success"`
	AppointmentID string                  `json:"appointmentId"`
	Status        model.AppointmentStatus `json:"status"`
}

type done struct {
	Success bool `json:"success"`
}

func statusFor(err error) int {
	var verr *model.ValidationError
	var oerr *model.OverlapError
	switch {
	case errors.Is(err, identity.ErrUnauthenticated):
		return http.StatusUnauthorized
	case errors.As(err, &verr):
		return http.StatusBadRequest
	case errors.As(err, &oerr):
		return http.StatusConflict
	case errors.Is(err, model.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, model.ErrPermission):
		return http.StatusForbidden
	case errors.Is(err, model.ErrAlreadyReserved),
		errors.Is(err, model.ErrLockTimeout),
		errors.Is(err, model.ErrInvalidTransition):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// writeError renders err as a failure body. Unclassified errors are logged
// and replaced by a generic message.
func writeError(w http.ResponseWriter, r *http.Request, logger *slog.Logger, op string, err error) {
	status := statusFor(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		logger.Error(op+" failed", "err", err,
			"request_id", httpx.RequestIDFromContext(r.Context()),
			"trace_id", otelx.TraceID(r.Context()),
		)
		msg = "internal error"
	}
	httpx.WriteFailure(w, status, msg, model.Retryable(err))
}

func badRequest(w http.ResponseWriter, msg string) {
	httpx.WriteFailure(w, http.StatusBadRequest, msg, false)
}

func methodNotAllowed(w http.ResponseWriter, allowed string) {
	w.Header().Set("Allow", allowed)
	httpx.WriteFailure(w, http.StatusMethodNotAllowed, "method not allowed", false)
}
