package scheduling

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/wolfman30/patient-portal/internal/audit"
	"github.com/wolfman30/patient-portal/internal/events"
	"github.com/wolfman30/patient-portal/internal/identity"
	"github.com/wolfman30/patient-portal/pkg/logging"
)

var schedulingTracer = otel.Tracer("portal.internal.scheduling")

// New appointments land between leadDays and leadDays+leadSpread-1 days out.
const (
	leadDays   = 30
	leadSpread = 30
)

// Latency is the artificial delay applied before each operation resolves.
type Latency struct {
	List     time.Duration
	Schedule time.Duration
	Cancel   time.Duration
}

// DefaultLatency mirrors a slow remote backend.
func DefaultLatency() Latency {
	return Latency{
		List:     800 * time.Millisecond,
		Schedule: 1200 * time.Millisecond,
		Cancel:   800 * time.Millisecond,
	}
}

// OperationObserver receives per-operation outcomes.
type OperationObserver interface {
	ObserveOperation(operation, status string, seconds float64)
}

// AuditRecorder persists an audit trail of mutations.
type AuditRecorder interface {
	Record(ctx context.Context, entry audit.Entry) error
}

// Store is the appointment and waiting-list store used by the portal.
type Store struct {
	repo      Repository
	logger    *logging.Logger
	latency   Latency
	now       func() time.Time
	intn      func(n int) int
	publisher events.Publisher
	auditor   AuditRecorder
	metrics   OperationObserver
	tracer    trace.Tracer
}

// NewStore constructs a store over repo with default latency.
func NewStore(repo Repository, logger *logging.Logger) *Store {
	if repo == nil {
		panic("scheduling: repository required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Store{
		repo:    repo,
		logger:  logger,
		latency: DefaultLatency(),
		now:     time.Now,
		intn:    rand.Intn,
		tracer:  schedulingTracer,
	}
}

func (s *Store) WithLatency(l Latency) *Store {
	s.latency = l
	return s
}

func (s *Store) WithClock(now func() time.Time) *Store {
	if now != nil {
		s.now = now
	}
	return s
}

// WithRandom replaces the source used to pick the appointment date offset.
func (s *Store) WithRandom(intn func(n int) int) *Store {
	if intn != nil {
		s.intn = intn
	}
	return s
}

func (s *Store) WithPublisher(p events.Publisher) *Store {
	s.publisher = p
	return s
}

func (s *Store) WithAuditor(a AuditRecorder) *Store {
	s.auditor = a
	return s
}

func (s *Store) WithMetrics(m OperationObserver) *Store {
	s.metrics = m
	return s
}

func (s *Store) WithTracer(t trace.Tracer) *Store {
	if t != nil {
		s.tracer = t
	}
	return s
}

// ListAppointments returns a snapshot of all appointments ordered by date.
func (s *Store) ListAppointments(ctx context.Context) (appts []Appointment, err error) {
	ctx, span := s.tracer.Start(ctx, "scheduling.list_appointments")
	defer endSpan(span, &err)
	defer s.observe("list_appointments", time.Now(), &err)

	appts, err = s.repo.ListAppointments(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrFetchFailed, err)
	}
	sortAppointments(appts)
	if err = wait(ctx, s.latency.List); err != nil {
		return nil, err
	}
	span.SetAttributes(attribute.Int("portal.appointments", len(appts)))
	return appts, nil
}

// ListWaitingList returns a snapshot of all waiting-list entries.
func (s *Store) ListWaitingList(ctx context.Context) (items []WaitingListItem, err error) {
	ctx, span := s.tracer.Start(ctx, "scheduling.list_waiting_list")
	defer endSpan(span, &err)
	defer s.observe("list_waiting_list", time.Now(), &err)

	items, err = s.repo.ListWaitingList(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrFetchFailed, err)
	}
	for _, item := range items {
		if verr := item.Validate(); verr != nil {
			s.logger.Warn("waiting list entry violates queue invariant", "error", verr)
		}
	}
	if err = wait(ctx, s.latency.List); err != nil {
		return nil, err
	}
	return items, nil
}

// ScheduleAppointment requests a new appointment for the given specialty and slot.
// The doctor, location and clinic are placeholders until allocation.
func (s *Store) ScheduleAppointment(ctx context.Context, specialty Specialty, preferred TimeSlot) (appt *Appointment, err error) {
	ctx, span := s.tracer.Start(ctx, "scheduling.schedule_appointment")
	defer endSpan(span, &err)
	defer s.observe("schedule_appointment", time.Now(), &err)
	span.SetAttributes(
		attribute.String("portal.specialty", string(specialty)),
		attribute.String("portal.time_slot", string(preferred)),
	)

	if !specialty.Valid() {
		return nil, fmt.Errorf("%w: %w: %q", ErrScheduleFailed, ErrInvalidSpecialty, specialty)
	}
	if !preferred.Valid() {
		return nil, fmt.Errorf("%w: %w: %q", ErrScheduleFailed, ErrInvalidTimeSlot, preferred)
	}
	if err = wait(ctx, s.latency.Schedule); err != nil {
		return nil, err
	}

	now := s.now()
	created := Appointment{
		ID:        newAppointmentID(now),
		Specialty: specialty,
		Doctor:    PlaceholderDoctor,
		Date:      now.UTC().AddDate(0, 0, leadDays+s.intn(leadSpread)).Format(DateLayout),
		Time:      preferred,
		Location:  PlaceholderLocation,
		Clinic:    PlaceholderClinic,
	}
	if err = s.repo.InsertAppointment(ctx, created); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrScheduleFailed, err)
	}

	patientID, _ := identity.PatientIDFromContext(ctx)
	s.logger.Info("appointment scheduled",
		"appointment_id", created.ID,
		"specialty", created.Specialty,
		"date", created.Date,
		"time", created.Time,
	)
	s.publish(ctx, created.ID, events.AppointmentScheduledV1{
		AppointmentID: created.ID,
		PatientID:     patientID,
		Specialty:     string(created.Specialty),
		Date:          created.Date,
		Time:          string(created.Time),
		OccurredAt:    now.UTC(),
	})
	s.record(ctx, audit.ActionScheduled, created, patientID)
	return &created, nil
}

// CancelAppointment permanently removes the appointment with id.
// A missing id fails with an error matching both ErrCancelFailed and ErrNotFound.
func (s *Store) CancelAppointment(ctx context.Context, id string) (err error) {
	ctx, span := s.tracer.Start(ctx, "scheduling.cancel_appointment")
	defer endSpan(span, &err)
	defer s.observe("cancel_appointment", time.Now(), &err)
	span.SetAttributes(attribute.String("portal.appointment_id", id))

	if err = wait(ctx, s.latency.Cancel); err != nil {
		return err
	}
	removed, err := s.repo.DeleteAppointment(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return fmt.Errorf("%w: %w: %s", ErrCancelFailed, ErrNotFound, id)
		}
		return fmt.Errorf("%w: %w", ErrCancelFailed, err)
	}

	patientID, _ := identity.PatientIDFromContext(ctx)
	s.logger.Info("appointment cancelled", "appointment_id", id)
	s.publish(ctx, id, events.AppointmentCancelledV1{
		AppointmentID: id,
		PatientID:     patientID,
		Specialty:     string(removed.Specialty),
		Date:          removed.Date,
		OccurredAt:    s.now().UTC(),
	})
	s.record(ctx, audit.ActionCancelled, removed, patientID)
	return nil
}

func (s *Store) publish(ctx context.Context, aggregate string, evt events.CanonicalEvent) {
	if s.publisher == nil {
		return
	}
	var opts []events.EnvelopeOption
	if reqID, ok := ctx.Value(requestIDKey{}).(string); ok {
		opts = append(opts, events.WithCorrelationID(reqID))
	}
	env, err := events.NewEnvelope(aggregate, evt, opts...)
	if err != nil {
		s.logger.Error("failed to build event envelope", "error", err, "event_type", evt.EventType())
		return
	}
	if err := s.publisher.Publish(ctx, env); err != nil {
		s.logger.Warn("failed to publish appointment event", "error", err, "event_type", env.EventType, "appointment_id", aggregate)
	}
}

func (s *Store) record(ctx context.Context, action audit.Action, appt Appointment, patientID string) {
	if s.auditor == nil {
		return
	}
	details, _ := json.Marshal(map[string]string{
		"specialty": string(appt.Specialty),
		"date":      appt.Date,
		"time":      string(appt.Time),
	})
	err := s.auditor.Record(ctx, audit.Entry{
		Action:        action,
		AppointmentID: appt.ID,
		PatientID:     patientID,
		Details:       details,
	})
	if err != nil {
		s.logger.Warn("failed to record audit entry", "error", err, "action", action, "appointment_id", appt.ID)
	}
}

// endSpan marks the span failed when the operation returned an error.
func endSpan(span trace.Span, errp *error) {
	if err := *errp; err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, operationStatus(err))
	}
	span.End()
}

func (s *Store) observe(operation string, start time.Time, errp *error) {
	if s.metrics == nil {
		return
	}
	s.metrics.ObserveOperation(operation, operationStatus(*errp), time.Since(start).Seconds())
}

func operationStatus(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "abandoned"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case IsInvalidInput(err):
		return "invalid"
	default:
		return "error"
	}
}

type requestIDKey struct{}

// WithRequestID tags ctx so published events carry the request id as correlation id.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	if requestID == "" {
		return ctx
	}
	return context.WithValue(ctx, requestIDKey{}, requestID)
}

func newAppointmentID(now time.Time) string {
	return fmt.Sprintf("app%d-%s", now.UnixMilli(), uuid.NewString()[:8])
}

// wait blocks for d or until ctx is done.
func wait(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
