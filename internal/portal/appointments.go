package portal

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/wolfman30/patient-portal/internal/identity"
	"github.com/wolfman30/patient-portal/internal/notify"
	"github.com/wolfman30/patient-portal/internal/ptbr"
	"github.com/wolfman30/patient-portal/internal/scheduling"
)

// ScheduleRequest asks for a new appointment.
type ScheduleRequest struct {
	Specialty string `json:"specialty"`
	Time      string `json:"time"`
}

// MutationResponse reports the outcome of a schedule or cancel call.
type MutationResponse struct {
	Appointment  *AppointmentView     `json:"appointment,omitempty"`
	Notification *notify.Notification `json:"notification,omitempty"`
}

// CancellationPrompt is the confirmation step shown before cancelling.
type CancellationPrompt struct {
	Token       string          `json:"confirmation"`
	ExpiresAt   time.Time       `json:"expires_at"`
	Prompt      string          `json:"prompt"`
	Appointment AppointmentView `json:"appointment"`
}

func scheduledMessage(specialty scheduling.Specialty) string {
	return fmt.Sprintf("Solicitação para %s enviada com sucesso!", specialty)
}

func cancellationPrompt(a scheduling.Appointment) string {
	return fmt.Sprintf("Você tem certeza que deseja cancelar a consulta de %s no dia %s?",
		a.Specialty, ptbr.Format(a.Date, ptbr.DayMonth))
}

// ScheduleAppointment handles POST /api/appointments.
func (h *Handler) ScheduleAppointment(w http.ResponseWriter, r *http.Request) {
	var req ScheduleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	created, err := h.store.ScheduleAppointment(r.Context(),
		scheduling.Specialty(strings.TrimSpace(req.Specialty)),
		scheduling.TimeSlot(strings.TrimSpace(req.Time)),
	)
	if err != nil {
		if h.abandoned(r, err) {
			return
		}
		status := http.StatusInternalServerError
		if scheduling.IsInvalidInput(err) {
			status = http.StatusUnprocessableEntity
			h.logger.Warn("rejected appointment request", "error", err)
		} else {
			h.logger.Error("failed to schedule appointment", "error", err)
		}
		h.fail(w, r, status, MsgScheduleFailed)
		return
	}

	view := newAppointmentView(*created)
	writeJSON(w, http.StatusCreated, MutationResponse{
		Appointment:  &view,
		Notification: h.notifyRequest(r, notify.KindSuccess, scheduledMessage(created.Specialty)),
	})
}

// RequestCancellation handles POST /api/appointments/{id}/cancellation.
func (h *Handler) RequestCancellation(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSpace(chi.URLParam(r, "id"))
	appts, err := h.store.ListAppointments(r.Context())
	if err != nil {
		if h.abandoned(r, err) {
			return
		}
		h.logger.Error("failed to load appointment for cancellation", "appointment_id", id, "error", err)
		h.fail(w, r, http.StatusBadGateway, MsgLoadFailed)
		return
	}

	for _, a := range appts {
		if a.ID != id {
			continue
		}
		sessionID, _ := identity.SessionIDFromContext(r.Context())
		token, expiresAt := h.confirmations.issue(sessionID, id)
		writeJSON(w, http.StatusOK, CancellationPrompt{
			Token:       token,
			ExpiresAt:   expiresAt,
			Prompt:      cancellationPrompt(a),
			Appointment: newAppointmentView(a),
		})
		return
	}
	h.logger.Warn("cancellation requested for unknown appointment", "appointment_id", id)
	h.fail(w, r, http.StatusNotFound, MsgCancelFailed)
}

// CancelAppointment handles DELETE /api/appointments/{id}?confirmation=<token>.
// The confirmation is spent whatever the outcome.
func (h *Handler) CancelAppointment(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSpace(chi.URLParam(r, "id"))
	sessionID, _ := identity.SessionIDFromContext(r.Context())
	token := strings.TrimSpace(r.URL.Query().Get("confirmation"))
	if !h.confirmations.consume(sessionID, id, token) {
		writeJSON(w, http.StatusConflict, errorResponse{Error: "confirmation required"})
		return
	}

	err := h.store.CancelAppointment(r.Context(), id)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, MutationResponse{
			Notification: h.notifyRequest(r, notify.KindSuccess, MsgCancelSucceeded),
		})
	case h.abandoned(r, err):
	case errors.Is(err, scheduling.ErrNotFound):
		h.logger.Warn("cancel requested for unknown appointment", "appointment_id", id)
		h.fail(w, r, http.StatusNotFound, MsgCancelFailed)
	default:
		h.logger.Error("failed to cancel appointment", "appointment_id", id, "error", err)
		h.fail(w, r, http.StatusInternalServerError, MsgCancelFailed)
	}
}
