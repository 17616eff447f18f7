package scheduling

import (
	"context"
	"fmt"
	"sync"
)

// Repository defines the storage behind the scheduling store.
type Repository interface {
	ListAppointments(ctx context.Context) ([]Appointment, error)
	ListWaitingList(ctx context.Context) ([]WaitingListItem, error)
	// InsertAppointment stores a new record, or returns ErrDuplicateID when the id is taken.
	InsertAppointment(ctx context.Context, appt Appointment) error
	// DeleteAppointment removes and returns the record, or ErrNotFound when id is absent.
	DeleteAppointment(ctx context.Context, id string) (Appointment, error)
}

// SeedAppointments returns the demo appointments every new store starts with.
func SeedAppointments() []Appointment {
	return []Appointment{
		{
			ID:        "1",
			Specialty: SpecialtyCardiologia,
			Doctor:    "Dr. João da Silva",
			Date:      "2024-08-15",
			Time:      "10:30",
			Location:  "Rua das Flores, 123 - Sala 2",
			Clinic:    "UBS Centro",
		},
		{
			ID:        "2",
			Specialty: SpecialtyDermatologia,
			Doctor:    "Dra. Maria Oliveira",
			Date:      "2024-09-02",
			Time:      "14:00",
			Location:  "Av. Principal, 456 - Consultório 5",
			Clinic:    "Hospital Municipal",
		},
	}
}

// SeedWaitingList returns the demo waiting-list entries.
func SeedWaitingList() []WaitingListItem {
	return []WaitingListItem{
		{
			ID:            "wl1",
			Specialty:     SpecialtyOrtopedia,
			Position:      12,
			TotalInQueue:  87,
			RequestDate:   "2024-05-20",
			EstimatedDate: "2024-11-10",
		},
		{
			ID:            "wl2",
			Specialty:     SpecialtyClinicaMedica,
			Position:      5,
			TotalInQueue:  23,
			RequestDate:   "2024-07-10",
			EstimatedDate: "2024-08-05",
		},
	}
}

// MemoryRepository keeps both collections in process memory.
type MemoryRepository struct {
	mu           sync.RWMutex
	appointments []Appointment
	waitingList  []WaitingListItem
}

// NewMemoryRepository creates a repository holding the given records.
func NewMemoryRepository(appointments []Appointment, waitingList []WaitingListItem) *MemoryRepository {
	appts := cloneAppointments(appointments)
	sortAppointments(appts)
	return &MemoryRepository{
		appointments: appts,
		waitingList:  cloneWaitingList(waitingList),
	}
}

// NewSeededMemoryRepository creates a repository with the demo seed data.
func NewSeededMemoryRepository() *MemoryRepository {
	return NewMemoryRepository(SeedAppointments(), SeedWaitingList())
}

// ListAppointments returns a copy ordered by date.
func (r *MemoryRepository) ListAppointments(ctx context.Context) ([]Appointment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return cloneAppointments(r.appointments), nil
}

// ListWaitingList returns a copy of the waiting list.
func (r *MemoryRepository) ListWaitingList(ctx context.Context) ([]WaitingListItem, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return cloneWaitingList(r.waitingList), nil
}

// InsertAppointment appends and re-sorts by date. Ids must be unique.
func (r *MemoryRepository) InsertAppointment(ctx context.Context, appt Appointment) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.appointments {
		if existing.ID == appt.ID {
			return fmt.Errorf("%w: %s", ErrDuplicateID, appt.ID)
		}
	}
	r.appointments = append(r.appointments, appt)
	sortAppointments(r.appointments)
	return nil
}

// DeleteAppointment removes the record with id.
func (r *MemoryRepository) DeleteAppointment(ctx context.Context, id string) (Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, appt := range r.appointments {
		if appt.ID == id {
			r.appointments = append(r.appointments[:i], r.appointments[i+1:]...)
			return appt, nil
		}
	}
	return Appointment{}, ErrNotFound
}
