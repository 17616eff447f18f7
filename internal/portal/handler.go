// Package portal exposes the patient scheduling portal over HTTP.
package portal

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/wolfman30/patient-portal/internal/identity"
	"github.com/wolfman30/patient-portal/internal/notify"
	"github.com/wolfman30/patient-portal/internal/scheduling"
	"github.com/wolfman30/patient-portal/pkg/logging"
)

// Patient-facing messages.
const (
	MsgInvalidCredentials = "senha ou numero errado"
	MsgLoadFailed         = "Erro ao carregar os dados. Tente novamente mais tarde."
	MsgScheduleFailed     = "Erro ao agendar consulta."
	MsgCancelSucceeded    = "Consulta cancelada com sucesso!"
	MsgCancelFailed       = "Erro ao cancelar consulta."
)

// Scheduler is the store the portal drives.
type Scheduler interface {
	ListAppointments(ctx context.Context) ([]scheduling.Appointment, error)
	ListWaitingList(ctx context.Context) ([]scheduling.WaitingListItem, error)
	ScheduleAppointment(ctx context.Context, specialty scheduling.Specialty, preferred scheduling.TimeSlot) (*scheduling.Appointment, error)
	CancelAppointment(ctx context.Context, id string) error
}

// SessionIssuer signs login sessions.
type SessionIssuer interface {
	Issue(patientID string) (identity.Session, error)
}

// LoginObserver counts login attempts.
type LoginObserver interface {
	ObserveLogin(success bool)
}

// Handler serves the portal endpoints.
type Handler struct {
	store         Scheduler
	center        *notify.Center
	sessions      SessionIssuer
	confirmations *confirmations
	logger        *logging.Logger
	logins        LoginObserver
	streamOrigin  func(origin string) bool
}

func NewHandler(store Scheduler, center *notify.Center, sessions SessionIssuer, logger *logging.Logger) *Handler {
	if store == nil {
		panic("portal: scheduler required")
	}
	if center == nil {
		panic("portal: notification center required")
	}
	if sessions == nil {
		panic("portal: session issuer required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{
		store:         store,
		center:        center,
		sessions:      sessions,
		confirmations: newConfirmations(DefaultConfirmationTTL),
		logger:        logger,
	}
}

// WithConfirmationTTL sets how long a cancellation confirmation stays valid.
func (h *Handler) WithConfirmationTTL(ttl time.Duration) *Handler {
	h.confirmations = newConfirmations(ttl)
	return h
}

// WithStreamOrigins restricts the notification websocket to browser origins
// accepted by allow. Without it any well-formed Origin may connect.
func (h *Handler) WithStreamOrigins(allow func(origin string) bool) *Handler {
	h.streamOrigin = allow
	return h
}

func (h *Handler) WithLoginObserver(o LoginObserver) *Handler {
	h.logins = o
	return h
}

type errorResponse struct {
	Error        string               `json:"error"`
	Notification *notify.Notification `json:"notification,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// fail raises an error notification for the session and writes it with the status.
func (h *Handler) fail(w http.ResponseWriter, r *http.Request, status int, message string) {
	n := h.notifyRequest(r, notify.KindError, message)
	writeJSON(w, status, errorResponse{Error: message, Notification: n})
}

func (h *Handler) notifyRequest(r *http.Request, kind notify.Kind, message string) *notify.Notification {
	sessionID, ok := identity.SessionIDFromContext(r.Context())
	if !ok {
		return nil
	}
	n := h.center.Push(sessionID, kind, message)
	return &n
}
