package scheduling

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// DateLayout is the ISO 8601 calendar date format used for appointment dates.
const DateLayout = "2006-01-02"

// Placeholders for appointments that were requested but not yet allocated.
const (
	PlaceholderDoctor   = "A ser definido"
	PlaceholderLocation = "Local a ser confirmado"
	PlaceholderClinic   = "Unidade de Saúde a definir"
)

// Specialty is a medical department drawn from a closed set.
type Specialty string

const (
	SpecialtyClinicaMedica Specialty = "Clínica Médica"
	SpecialtyCardiologia   Specialty = "Cardiologia"
	SpecialtyOrtopedia     Specialty = "Ortopedia"
	SpecialtyDermatologia  Specialty = "Dermatologia"
	SpecialtyPediatria     Specialty = "Pediatria"
)

var specialties = []Specialty{
	SpecialtyClinicaMedica,
	SpecialtyCardiologia,
	SpecialtyOrtopedia,
	SpecialtyDermatologia,
	SpecialtyPediatria,
}

// Specialties returns the bookable specialties in display order.
func Specialties() []Specialty {
	return append([]Specialty(nil), specialties...)
}

// Valid reports whether s belongs to the closed specialty set.
func (s Specialty) Valid() bool {
	for _, known := range specialties {
		if s == known {
			return true
		}
	}
	return false
}

// ParseSpecialty converts raw input into a Specialty, rejecting unknown values.
func ParseSpecialty(raw string) (Specialty, error) {
	s := Specialty(strings.TrimSpace(raw))
	if !s.Valid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidSpecialty, raw)
	}
	return s, nil
}

// TimeSlot is a half-hour clock slot (HH:MM) within clinic hours.
type TimeSlot string

// Morning slots run 08:00-11:30 and afternoon slots 13:00-17:00.
var timeSlots = []TimeSlot{
	"08:00", "08:30", "09:00", "09:30", "10:00", "10:30", "11:00", "11:30",
	"13:00", "13:30", "14:00", "14:30", "15:00", "15:30", "16:00", "16:30", "17:00",
}

// TimeSlots returns every bookable slot in chronological order.
func TimeSlots() []TimeSlot {
	return append([]TimeSlot(nil), timeSlots...)
}

// Valid reports whether t is one of the fixed clinic slots.
func (t TimeSlot) Valid() bool {
	for _, known := range timeSlots {
		if t == known {
			return true
		}
	}
	return false
}

// ParseTimeSlot converts raw input into a TimeSlot, rejecting anything off the grid.
func ParseTimeSlot(raw string) (TimeSlot, error) {
	t := TimeSlot(strings.TrimSpace(raw))
	if !t.Valid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidTimeSlot, raw)
	}
	return t, nil
}

// Appointment is a confirmed, scheduled clinical visit.
type Appointment struct {
	ID        string    `json:"id"`
	Specialty Specialty `json:"specialty"`
	Doctor    string    `json:"doctor"`
	Date      string    `json:"date"`
	Time      TimeSlot  `json:"time"`
	Location  string    `json:"location"`
	Clinic    string    `json:"clinic"`
}

// Day parses the appointment date.
func (a Appointment) Day() (time.Time, error) {
	return time.Parse(DateLayout, a.Date)
}

// DoctorAssigned reports whether a physician has been allocated.
func (a Appointment) DoctorAssigned() bool {
	return a.Doctor != "" && a.Doctor != PlaceholderDoctor
}

// WaitingListItem is a pending request ranked by queue position.
type WaitingListItem struct {
	ID            string    `json:"id"`
	Specialty     Specialty `json:"specialty"`
	Position      int       `json:"position"`
	TotalInQueue  int       `json:"total_in_queue"`
	RequestDate   string    `json:"request_date"`
	EstimatedDate string    `json:"estimated_date"`
}

// Validate checks 1 <= position <= total.
func (w WaitingListItem) Validate() error {
	if w.Position < 1 || w.Position > w.TotalInQueue {
		return fmt.Errorf("scheduling: waiting list entry %s has position %d of %d", w.ID, w.Position, w.TotalInQueue)
	}
	return nil
}

// Progress is the share of the queue already ahead of this entry, in [0, 1).
// Last in line yields 0, not completion.
func (w WaitingListItem) Progress() float64 {
	if w.TotalInQueue <= 0 || w.Position < 1 {
		return 0
	}
	p := float64(w.TotalInQueue-w.Position) / float64(w.TotalInQueue)
	if p < 0 {
		return 0
	}
	return p
}

// LastInLine reports whether nobody is queued behind this entry.
func (w WaitingListItem) LastInLine() bool {
	return w.Position == w.TotalInQueue
}

// sortAppointments orders by date, then slot, then id so ties are stable across backends.
func sortAppointments(list []Appointment) {
	sort.SliceStable(list, func(i, j int) bool {
		a, b := list[i], list[j]
		if a.Date != b.Date {
			return a.Date < b.Date
		}
		if a.Time != b.Time {
			return a.Time < b.Time
		}
		return a.ID < b.ID
	})
}

func cloneAppointments(list []Appointment) []Appointment {
	out := make([]Appointment, len(list))
	copy(out, list)
	return out
}

func cloneWaitingList(list []WaitingListItem) []WaitingListItem {
	out := make([]WaitingListItem, len(list))
	copy(out, list)
	return out
}
