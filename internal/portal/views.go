package portal

import (
	"github.com/wolfman30/patient-portal/internal/ptbr"
	"github.com/wolfman30/patient-portal/internal/scheduling"
)

const statusConfirmed = "Confirmado"

// AppointmentView is an appointment with its display labels.
type AppointmentView struct {
	scheduling.Appointment
	Status         string `json:"status"`
	DateLabel      string `json:"date_label"`
	FullDateLabel  string `json:"full_date_label"`
	DoctorAssigned bool   `json:"doctor_assigned"`
}

// WaitingListView is a queue entry with its progress and display labels.
type WaitingListView struct {
	scheduling.WaitingListItem
	Progress           float64 `json:"progress"`
	LastInLine         bool    `json:"last_in_line"`
	RequestDateLabel   string  `json:"request_date_label"`
	EstimatedDateLabel string  `json:"estimated_date_label"`
}

func newAppointmentView(a scheduling.Appointment) AppointmentView {
	return AppointmentView{
		Appointment:    a,
		Status:         statusConfirmed,
		DateLabel:      ptbr.Format(a.Date, ptbr.LongDate),
		FullDateLabel:  ptbr.Format(a.Date, ptbr.FullDate),
		DoctorAssigned: a.DoctorAssigned(),
	}
}

func newWaitingListView(item scheduling.WaitingListItem) WaitingListView {
	return WaitingListView{
		WaitingListItem:    item,
		Progress:           item.Progress(),
		LastInLine:         item.LastInLine(),
		RequestDateLabel:   ptbr.Format(item.RequestDate, ptbr.ShortDate),
		EstimatedDateLabel: ptbr.Format(item.EstimatedDate, ptbr.LongDate),
	}
}

func appointmentViews(list []scheduling.Appointment) []AppointmentView {
	out := make([]AppointmentView, 0, len(list))
	for _, a := range list {
		out = append(out, newAppointmentView(a))
	}
	return out
}

func waitingListViews(list []scheduling.WaitingListItem) []WaitingListView {
	out := make([]WaitingListView, 0, len(list))
	for _, item := range list {
		out = append(out, newWaitingListView(item))
	}
	return out
}
