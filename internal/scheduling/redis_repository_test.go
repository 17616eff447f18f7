package scheduling

import (
	"context"
	"testing"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRedisRepo(t *testing.T) (*RedisRepository, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisRepository(client, "test:"), mr
}

func TestRedisRepository_SeedIsIdempotent(t *testing.T) {
	repo, mr := newRedisRepo(t)
	ctx := context.Background()

	require.NoError(t, repo.Seed(ctx, SeedAppointments(), SeedWaitingList()))
	require.NoError(t, repo.Seed(ctx, SeedAppointments(), SeedWaitingList()))

	appts, err := repo.ListAppointments(ctx)
	require.NoError(t, err)
	assert.Equal(t, SeedAppointments(), appts)

	items, err := repo.ListWaitingList(ctx)
	require.NoError(t, err)
	assert.Equal(t, SeedWaitingList(), items)

	assert.True(t, mr.Exists("test:seeded"))
}

func TestRedisRepository_FailedSeedLeavesNoMarker(t *testing.T) {
	repo, mr := newRedisRepo(t)
	ctx := context.Background()

	broken := SeedAppointments()
	broken[1].Date = "not-a-date"
	require.Error(t, repo.Seed(ctx, broken, SeedWaitingList()))

	assert.False(t, mr.Exists("test:seeded"))
	assert.False(t, mr.Exists("test:appointments"))
	assert.False(t, mr.Exists("test:waiting_list"))

	require.NoError(t, repo.Seed(ctx, SeedAppointments(), SeedWaitingList()))
	appts, err := repo.ListAppointments(ctx)
	require.NoError(t, err)
	assert.Equal(t, SeedAppointments(), appts)
	assert.True(t, mr.Exists("test:seeded"))
}

func TestRedisRepository_InsertRejectsDuplicateID(t *testing.T) {
	repo, _ := newRedisRepo(t)
	ctx := context.Background()
	require.NoError(t, repo.Seed(ctx, SeedAppointments(), nil))

	dup := SeedAppointments()[0]
	dup.Date = "2030-01-01"
	require.ErrorIs(t, repo.InsertAppointment(ctx, dup), ErrDuplicateID)

	appts, err := repo.ListAppointments(ctx)
	require.NoError(t, err)
	assert.Equal(t, SeedAppointments(), appts)
}

func TestRedisRepository_InsertKeepsDateOrder(t *testing.T) {
	repo, _ := newRedisRepo(t)
	ctx := context.Background()
	require.NoError(t, repo.Seed(ctx, SeedAppointments(), nil))

	require.NoError(t, repo.InsertAppointment(ctx, Appointment{ID: "early", Specialty: SpecialtyPediatria, Date: "2024-08-01", Time: "17:00"}))
	require.NoError(t, repo.InsertAppointment(ctx, Appointment{ID: "same-day-morning", Specialty: SpecialtyPediatria, Date: "2024-08-15", Time: "08:00"}))
	require.NoError(t, repo.InsertAppointment(ctx, Appointment{ID: "late", Specialty: SpecialtyPediatria, Date: "2025-01-10", Time: "08:00"}))

	appts, err := repo.ListAppointments(ctx)
	require.NoError(t, err)
	ids := make([]string, 0, len(appts))
	for _, a := range appts {
		ids = append(ids, a.ID)
	}
	assert.Equal(t, []string{"early", "same-day-morning", "1", "2", "late"}, ids)

	items, err := repo.ListWaitingList(ctx)
	require.NoError(t, err)
	assert.Empty(t, items)
}

func TestRedisRepository_Delete(t *testing.T) {
	repo, _ := newRedisRepo(t)
	ctx := context.Background()
	require.NoError(t, repo.Seed(ctx, SeedAppointments(), SeedWaitingList()))

	removed, err := repo.DeleteAppointment(ctx, "1")
	require.NoError(t, err)
	assert.Equal(t, "Dr. João da Silva", removed.Doctor)

	_, err = repo.DeleteAppointment(ctx, "1")
	assert.ErrorIs(t, err, ErrNotFound)

	appts, err := repo.ListAppointments(ctx)
	require.NoError(t, err)
	require.Len(t, appts, 1)
	assert.Equal(t, "2", appts[0].ID)
}

func TestStoreOverRedis_ScheduleThenList(t *testing.T) {
	repo, _ := newRedisRepo(t)
	ctx := context.Background()
	require.NoError(t, repo.Seed(ctx, SeedAppointments(), SeedWaitingList()))

	store := NewStore(repo, nil).WithLatency(Latency{})
	appt, err := store.ScheduleAppointment(ctx, SpecialtyCardiologia, "09:00")
	require.NoError(t, err)

	appts, err := store.ListAppointments(ctx)
	require.NoError(t, err)
	require.Len(t, appts, 3)
	assert.Equal(t, appt.ID, appts[2].ID)
}

func TestAppointmentScore(t *testing.T) {
	a, err := appointmentScore(Appointment{Date: "2024-08-15", Time: "10:30"})
	require.NoError(t, err)
	b, err := appointmentScore(Appointment{Date: "2024-08-15", Time: "13:00"})
	require.NoError(t, err)
	c, err := appointmentScore(Appointment{Date: "2024-08-16", Time: "08:00"})
	require.NoError(t, err)
	assert.Less(t, a, b)
	assert.Less(t, b, c)
	assert.Equal(t, 202408151030.0, a)

	_, err = appointmentScore(Appointment{Date: "bad"})
	assert.Error(t, err)
}
