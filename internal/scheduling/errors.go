package scheduling

import "errors"

var (
	// ErrNotFound is returned when no appointment with the given id exists.
	ErrNotFound = errors.New("appointment not found")

	// ErrDuplicateID is returned when inserting an appointment whose id is taken.
	ErrDuplicateID = errors.New("appointment id already exists")

	// ErrInvalidSpecialty is returned for specialties outside the closed set.
	ErrInvalidSpecialty = errors.New("invalid specialty")

	// ErrInvalidTimeSlot is returned for times that are not a clinic slot.
	ErrInvalidTimeSlot = errors.New("invalid time slot")

	// ErrFetchFailed wraps failures of either list operation.
	ErrFetchFailed = errors.New("failed to load scheduling data")

	// ErrScheduleFailed wraps failures of the create operation.
	ErrScheduleFailed = errors.New("failed to schedule appointment")

	// ErrCancelFailed wraps failures of the cancel operation, including ErrNotFound.
	ErrCancelFailed = errors.New("failed to cancel appointment")
)

// IsInvalidInput reports whether err was caused by a rejected specialty or slot.
func IsInvalidInput(err error) bool {
	return errors.Is(err, ErrInvalidSpecialty) || errors.Is(err, ErrInvalidTimeSlot)
}
