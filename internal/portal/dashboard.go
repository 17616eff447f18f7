package portal

import (
	"context"
	"errors"
	"net/http"

	"golang.org/x/sync/errgroup"

	"github.com/wolfman30/patient-portal/internal/notify"
	"github.com/wolfman30/patient-portal/internal/scheduling"
)

// DashboardResponse is everything the home screen renders.
type DashboardResponse struct {
	Appointments []AppointmentView `json:"appointments"`
	WaitingList  []WaitingListView `json:"waiting_list"`
}

type dashboardError struct {
	DashboardResponse
	errorResponse
}

// CatalogResponse lists the choices offered by the scheduling form.
type CatalogResponse struct {
	Specialties []scheduling.Specialty `json:"specialties"`
	TimeSlots   []scheduling.TimeSlot  `json:"time_slots"`
}

// Dashboard handles GET /api/dashboard, loading both lists concurrently.
func (h *Handler) Dashboard(w http.ResponseWriter, r *http.Request) {
	var (
		appts []scheduling.Appointment
		items []scheduling.WaitingListItem
	)
	g, ctx := errgroup.WithContext(r.Context())
	g.Go(func() error {
		var err error
		appts, err = h.store.ListAppointments(ctx)
		return err
	})
	g.Go(func() error {
		var err error
		items, err = h.store.ListWaitingList(ctx)
		return err
	})
	if err := g.Wait(); err != nil {
		if h.abandoned(r, err) {
			return
		}
		h.logger.Error("failed to load dashboard", "error", err)
		n := h.notifyRequest(r, notify.KindError, MsgLoadFailed)
		writeJSON(w, http.StatusBadGateway, dashboardError{
			DashboardResponse: DashboardResponse{
				Appointments: []AppointmentView{},
				WaitingList:  []WaitingListView{},
			},
			errorResponse: errorResponse{Error: MsgLoadFailed, Notification: n},
		})
		return
	}

	writeJSON(w, http.StatusOK, DashboardResponse{
		Appointments: appointmentViews(appts),
		WaitingList:  waitingListViews(items),
	})
}

// ListAppointments handles GET /api/appointments.
func (h *Handler) ListAppointments(w http.ResponseWriter, r *http.Request) {
	appts, err := h.store.ListAppointments(r.Context())
	if err != nil {
		if h.abandoned(r, err) {
			return
		}
		h.logger.Error("failed to list appointments", "error", err)
		h.fail(w, r, http.StatusBadGateway, MsgLoadFailed)
		return
	}
	writeJSON(w, http.StatusOK, appointmentViews(appts))
}

// ListWaitingList handles GET /api/waiting-list.
func (h *Handler) ListWaitingList(w http.ResponseWriter, r *http.Request) {
	items, err := h.store.ListWaitingList(r.Context())
	if err != nil {
		if h.abandoned(r, err) {
			return
		}
		h.logger.Error("failed to list waiting list", "error", err)
		h.fail(w, r, http.StatusBadGateway, MsgLoadFailed)
		return
	}
	writeJSON(w, http.StatusOK, waitingListViews(items))
}

// Catalog handles GET /api/catalog.
func (h *Handler) Catalog(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, CatalogResponse{
		Specialties: scheduling.Specialties(),
		TimeSlots:   scheduling.TimeSlots(),
	})
}

// abandoned reports whether the client went away before the store answered.
// Nobody is listening, so no response or notification is produced.
func (h *Handler) abandoned(r *http.Request, err error) bool {
	if r.Context().Err() == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		h.logger.Debug("request abandoned", "path", r.URL.Path)
		return true
	}
	return false
}
