package notify

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (f *fakeClock) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *fakeClock) Advance(d time.Duration) {
	f.mu.Lock()
	f.now = f.now.Add(d)
	f.mu.Unlock()
}

type countingObserver struct {
	kinds []string
}

func (c *countingObserver) ObserveNotification(kind string) {
	c.kinds = append(c.kinds, kind)
}

func TestCenter_AutoDismissAfterTTL(t *testing.T) {
	clock := &fakeClock{now: time.Date(2024, 8, 1, 9, 0, 0, 0, time.UTC)}
	center := NewCenter(4 * time.Second).WithClock(clock.Now)

	n := center.Push("s1", KindSuccess, "Consulta cancelada com sucesso!")
	assert.Equal(t, clock.Now().Add(4*time.Second), n.ExpiresAt)

	clock.Advance(3 * time.Second)
	active := center.Active("s1")
	require.Len(t, active, 1)
	assert.Equal(t, "Consulta cancelada com sucesso!", active[0].Message)

	clock.Advance(time.Second)
	assert.Empty(t, center.Active("s1"))
}

func TestCenter_SessionsAreIsolated(t *testing.T) {
	center := NewCenter(time.Minute)
	center.Push("a", KindError, "Erro ao agendar consulta.")

	assert.Len(t, center.Active("a"), 1)
	assert.Empty(t, center.Active("b"))
}

func TestCenter_SubscribeReceivesPushes(t *testing.T) {
	obs := &countingObserver{}
	center := NewCenter(time.Minute).WithObserver(obs)

	ch, cancel := center.Subscribe("s1")
	center.Push("s1", KindSuccess, "ok")
	center.Push("s2", KindError, "other session")

	select {
	case n := <-ch:
		assert.Equal(t, "ok", n.Message)
		assert.Equal(t, KindSuccess, n.Kind)
	case <-time.After(time.Second):
		t.Fatal("expected notification on subscription")
	}

	cancel()
	cancel()
	_, open := <-ch
	assert.False(t, open)
	assert.Equal(t, []string{"success", "error"}, obs.kinds)
}

func TestCenter_DefaultTTL(t *testing.T) {
	assert.Equal(t, DefaultTTL, NewCenter(0).TTL())
}

func TestCenter_SweepReleasesIdleSessions(t *testing.T) {
	clock := &fakeClock{now: time.Date(2024, 8, 1, 9, 0, 0, 0, time.UTC)}
	center := NewCenter(4 * time.Second).WithClock(clock.Now)

	for i := 0; i < 1000; i++ {
		center.Push(fmt.Sprintf("session-%d", i), KindSuccess, "Consulta cancelada com sucesso!")
	}
	require.Equal(t, 1000, center.sessions())

	clock.Advance(time.Hour)
	center.Push("fresh", KindError, "Erro ao cancelar consulta.")

	assert.Equal(t, 1000, center.Sweep())
	assert.Equal(t, 1, center.sessions())
	assert.Len(t, center.Active("fresh"), 1)
}

func TestCenter_RunSweepsUntilCancelled(t *testing.T) {
	clock := &fakeClock{now: time.Date(2024, 8, 1, 9, 0, 0, 0, time.UTC)}
	center := NewCenter(4 * time.Second).WithClock(clock.Now)
	center.Push("idle", KindSuccess, "Solicitação para Cardiologia enviada com sucesso!")
	clock.Advance(5 * time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		center.Run(ctx, time.Millisecond)
		close(done)
	}()

	assert.Eventually(t, func() bool { return center.sessions() == 0 }, time.Second, 5*time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not stop after cancel")
	}
}
