package events

import "time"

const (
	TypeAppointmentScheduled = "scheduling.appointment.scheduled.v1"
	TypeAppointmentCancelled = "scheduling.appointment.cancelled.v1"
)

// AppointmentScheduledV1 is emitted after a new appointment request is stored.
type AppointmentScheduledV1 struct {
	AppointmentID string    `json:"appointment_id"`
	PatientID     string    `json:"patient_id,omitempty"`
	Specialty     string    `json:"specialty"`
	Date          string    `json:"date"`
	Time          string    `json:"time"`
	OccurredAt    time.Time `json:"occurred_at"`
}

func (AppointmentScheduledV1) EventType() string {
	return TypeAppointmentScheduled
}

// AppointmentCancelledV1 is emitted after an appointment is removed.
type AppointmentCancelledV1 struct {
	AppointmentID string    `json:"appointment_id"`
	PatientID     string    `json:"patient_id,omitempty"`
	Specialty     string    `json:"specialty,omitempty"`
	Date          string    `json:"date,omitempty"`
	OccurredAt    time.Time `json:"occurred_at"`
}

func (AppointmentCancelledV1) EventType() string {
	return TypeAppointmentCancelled
}
