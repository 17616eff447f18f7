package scheduling

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// uniqueViolation is the Postgres SQLSTATE for a duplicate key.
const uniqueViolation = "23505"

type pgQuerier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresRepository stores appointments and waiting-list entries in Postgres.
type PostgresRepository struct {
	pool pgQuerier
}

// NewPostgresRepository initializes a repo backed by pgxpool.
func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	if pool == nil {
		panic("scheduling: pgx pool required")
	}
	return &PostgresRepository{pool: pool}
}

func newPostgresRepositoryWithQuerier(q pgQuerier) *PostgresRepository {
	if q == nil {
		panic("scheduling: querier required")
	}
	return &PostgresRepository{pool: q}
}

func (r *PostgresRepository) ListAppointments(ctx context.Context) ([]Appointment, error) {
	query := `
		SELECT id, specialty, doctor, date, time, location, clinic
		FROM appointments
		ORDER BY date ASC, time ASC, id ASC
	`
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("scheduling: list appointments: %w", err)
	}
	defer rows.Close()

	appts := []Appointment{}
	for rows.Next() {
		var (
			appt      Appointment
			specialty string
			day       time.Time
			slot      string
		)
		if err := rows.Scan(&appt.ID, &specialty, &appt.Doctor, &day, &slot, &appt.Location, &appt.Clinic); err != nil {
			return nil, fmt.Errorf("scheduling: scan appointment: %w", err)
		}
		appt.Specialty = Specialty(specialty)
		appt.Date = day.Format(DateLayout)
		appt.Time = TimeSlot(slot)
		appts = append(appts, appt)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("scheduling: iterate appointments: %w", err)
	}
	return appts, nil
}

func (r *PostgresRepository) ListWaitingList(ctx context.Context) ([]WaitingListItem, error) {
	query := `
		SELECT id, specialty, position, total_in_queue, request_date, estimated_date
		FROM waiting_list_entries
		ORDER BY request_date ASC, id ASC
	`
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("scheduling: list waiting list: %w", err)
	}
	defer rows.Close()

	items := []WaitingListItem{}
	for rows.Next() {
		var (
			item               WaitingListItem
			specialty          string
			requested, expects time.Time
		)
		if err := rows.Scan(&item.ID, &specialty, &item.Position, &item.TotalInQueue, &requested, &expects); err != nil {
			return nil, fmt.Errorf("scheduling: scan waiting list entry: %w", err)
		}
		item.Specialty = Specialty(specialty)
		item.RequestDate = requested.Format(DateLayout)
		item.EstimatedDate = expects.Format(DateLayout)
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("scheduling: iterate waiting list: %w", err)
	}
	return items, nil
}

func (r *PostgresRepository) InsertAppointment(ctx context.Context, appt Appointment) error {
	day, err := appt.Day()
	if err != nil {
		return fmt.Errorf("scheduling: invalid appointment date %q: %w", appt.Date, err)
	}
	query := `
		INSERT INTO appointments (id, specialty, doctor, date, time, location, clinic)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	if _, err := r.pool.Exec(ctx, query,
		appt.ID,
		string(appt.Specialty),
		appt.Doctor,
		day,
		string(appt.Time),
		appt.Location,
		appt.Clinic,
	); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return fmt.Errorf("%w: %s", ErrDuplicateID, appt.ID)
		}
		return fmt.Errorf("scheduling: insert appointment: %w", err)
	}
	return nil
}

func (r *PostgresRepository) DeleteAppointment(ctx context.Context, id string) (Appointment, error) {
	query := `
		DELETE FROM appointments
		WHERE id = $1
		RETURNING id, specialty, doctor, date, time, location, clinic
	`
	var (
		appt      Appointment
		specialty string
		day       time.Time
		slot      string
	)
	err := r.pool.QueryRow(ctx, query, id).Scan(&appt.ID, &specialty, &appt.Doctor, &day, &slot, &appt.Location, &appt.Clinic)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Appointment{}, ErrNotFound
		}
		return Appointment{}, fmt.Errorf("scheduling: delete appointment: %w", err)
	}
	appt.Specialty = Specialty(specialty)
	appt.Date = day.Format(DateLayout)
	appt.Time = TimeSlot(slot)
	return appt, nil
}
