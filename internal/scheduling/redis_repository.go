package scheduling

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/redis/go-redis/v9"
)

// RedisRepository keeps appointments as JSON in a hash, indexed by a sorted
// set scored on date and slot. The waiting list is a JSON list.
type RedisRepository struct {
	client *redis.Client
	prefix string
}

// NewRedisRepository creates a repository using keys under prefix.
func NewRedisRepository(client *redis.Client, prefix string) *RedisRepository {
	if client == nil {
		panic("scheduling: redis client required")
	}
	return &RedisRepository{client: client, prefix: prefix}
}

func (r *RedisRepository) appointmentsKey() string { return r.prefix + "appointments" }
func (r *RedisRepository) indexKey() string        { return r.prefix + "appointments:by_date" }
func (r *RedisRepository) waitingListKey() string  { return r.prefix + "waiting_list" }
func (r *RedisRepository) seededKey() string       { return r.prefix + "seeded" }

// Seed loads the given records once per key prefix. The seeded marker is
// written in the same transaction as the records, so it never exists
// without them.
func (r *RedisRepository) Seed(ctx context.Context, appointments []Appointment, waitingList []WaitingListItem) error {
	type encoded struct {
		id    string
		score float64
		data  []byte
	}
	appts := make([]encoded, 0, len(appointments))
	for _, appt := range appointments {
		score, err := appointmentScore(appt)
		if err != nil {
			return err
		}
		data, err := json.Marshal(appt)
		if err != nil {
			return fmt.Errorf("scheduling: marshal appointment: %w", err)
		}
		appts = append(appts, encoded{id: appt.ID, score: score, data: data})
	}
	values := make([]any, 0, len(waitingList))
	for _, item := range waitingList {
		data, err := json.Marshal(item)
		if err != nil {
			return fmt.Errorf("scheduling: marshal waiting list entry: %w", err)
		}
		values = append(values, data)
	}

	txf := func(tx *redis.Tx) error {
		n, err := tx.Exists(ctx, r.seededKey()).Result()
		if err != nil {
			return err
		}
		if n > 0 {
			return nil
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			for _, appt := range appts {
				pipe.HSet(ctx, r.appointmentsKey(), appt.id, appt.data)
				pipe.ZAdd(ctx, r.indexKey(), redis.Z{Score: appt.score, Member: appt.id})
			}
			if len(values) > 0 {
				pipe.RPush(ctx, r.waitingListKey(), values...)
			}
			pipe.Set(ctx, r.seededKey(), "1", 0)
			return nil
		})
		return err
	}
	err := r.client.Watch(ctx, txf, r.seededKey())
	if errors.Is(err, redis.TxFailedErr) {
		// another instance seeded concurrently
		return nil
	}
	if err != nil {
		return fmt.Errorf("scheduling: seed: %w", err)
	}
	return nil
}

func (r *RedisRepository) ListAppointments(ctx context.Context) ([]Appointment, error) {
	ids, err := r.client.ZRange(ctx, r.indexKey(), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("scheduling: list appointment index: %w", err)
	}
	appts := make([]Appointment, 0, len(ids))
	if len(ids) == 0 {
		return appts, nil
	}
	raw, err := r.client.HMGet(ctx, r.appointmentsKey(), ids...).Result()
	if err != nil {
		return nil, fmt.Errorf("scheduling: load appointments: %w", err)
	}
	for i, v := range raw {
		s, ok := v.(string)
		if !ok {
			// index entry without a record; removed concurrently
			continue
		}
		var appt Appointment
		if err := json.Unmarshal([]byte(s), &appt); err != nil {
			return nil, fmt.Errorf("scheduling: decode appointment %s: %w", ids[i], err)
		}
		appts = append(appts, appt)
	}
	return appts, nil
}

func (r *RedisRepository) ListWaitingList(ctx context.Context) ([]WaitingListItem, error) {
	raw, err := r.client.LRange(ctx, r.waitingListKey(), 0, -1).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("scheduling: list waiting list: %w", err)
	}
	items := make([]WaitingListItem, 0, len(raw))
	for _, s := range raw {
		var item WaitingListItem
		if err := json.Unmarshal([]byte(s), &item); err != nil {
			return nil, fmt.Errorf("scheduling: decode waiting list entry: %w", err)
		}
		items = append(items, item)
	}
	return items, nil
}

func (r *RedisRepository) InsertAppointment(ctx context.Context, appt Appointment) error {
	score, err := appointmentScore(appt)
	if err != nil {
		return err
	}
	data, err := json.Marshal(appt)
	if err != nil {
		return fmt.Errorf("scheduling: marshal appointment: %w", err)
	}
	txf := func(tx *redis.Tx) error {
		exists, err := tx.HExists(ctx, r.appointmentsKey(), appt.ID).Result()
		if err != nil {
			return err
		}
		if exists {
			return ErrDuplicateID
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.HSet(ctx, r.appointmentsKey(), appt.ID, data)
			pipe.ZAdd(ctx, r.indexKey(), redis.Z{Score: score, Member: appt.ID})
			return nil
		})
		return err
	}
	if err := r.client.Watch(ctx, txf, r.appointmentsKey()); err != nil {
		if errors.Is(err, ErrDuplicateID) {
			return fmt.Errorf("%w: %s", ErrDuplicateID, appt.ID)
		}
		return fmt.Errorf("scheduling: insert appointment: %w", err)
	}
	return nil
}

func (r *RedisRepository) DeleteAppointment(ctx context.Context, id string) (Appointment, error) {
	var removed Appointment
	txf := func(tx *redis.Tx) error {
		raw, err := tx.HGet(ctx, r.appointmentsKey(), id).Result()
		if errors.Is(err, redis.Nil) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		if err := json.Unmarshal([]byte(raw), &removed); err != nil {
			return fmt.Errorf("scheduling: decode appointment %s: %w", id, err)
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.HDel(ctx, r.appointmentsKey(), id)
			pipe.ZRem(ctx, r.indexKey(), id)
			return nil
		})
		return err
	}
	if err := r.client.Watch(ctx, txf, r.appointmentsKey()); err != nil {
		if errors.Is(err, ErrNotFound) {
			return Appointment{}, ErrNotFound
		}
		return Appointment{}, fmt.Errorf("scheduling: delete appointment: %w", err)
	}
	return removed, nil
}

// appointmentScore encodes date and slot as YYYYMMDDHHMM so ZRANGE yields date order.
func appointmentScore(appt Appointment) (float64, error) {
	day, err := appt.Day()
	if err != nil {
		return 0, fmt.Errorf("scheduling: invalid appointment date %q: %w", appt.Date, err)
	}
	clock := strings.ReplaceAll(string(appt.Time), ":", "")
	if clock == "" {
		clock = "0000"
	}
	hhmm, err := strconv.Atoi(clock)
	if err != nil {
		return 0, fmt.Errorf("scheduling: invalid appointment time %q: %w", appt.Time, err)
	}
	return float64(day.Year()*100000000+int(day.Month())*1000000+day.Day()*10000) + float64(hhmm), nil
}
