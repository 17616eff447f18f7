// Package notify holds short-lived, per-session notifications shown after
// portal actions. Entries dismiss themselves once their TTL elapses.
package notify

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Kind distinguishes confirmation from failure notices.
type Kind string

const (
	KindSuccess Kind = "success"
	KindError   Kind = "error"
)

// DefaultTTL is how long a notification stays visible.
const DefaultTTL = 4 * time.Second

// Notification is a transient message for one session.
type Notification struct {
	ID        string    `json:"id"`
	Kind      Kind      `json:"type"`
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Observer counts raised notifications.
type Observer interface {
	ObserveNotification(kind string)
}

// Center stores notifications per session and fans them out to subscribers.
type Center struct {
	mu          sync.Mutex
	ttl         time.Duration
	now         func() time.Time
	bySession   map[string][]Notification
	subscribers map[string]map[chan Notification]struct{}
	observer    Observer
}

// NewCenter creates a center whose notifications expire after ttl.
func NewCenter(ttl time.Duration) *Center {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Center{
		ttl:         ttl,
		now:         time.Now,
		bySession:   make(map[string][]Notification),
		subscribers: make(map[string]map[chan Notification]struct{}),
	}
}

func (c *Center) WithObserver(o Observer) *Center {
	c.observer = o
	return c
}

func (c *Center) WithClock(now func() time.Time) *Center {
	if now != nil {
		c.now = now
	}
	return c
}

// TTL returns the visibility window.
func (c *Center) TTL() time.Duration {
	return c.ttl
}

// Push raises a notification for the session and delivers it to live subscribers.
func (c *Center) Push(sessionID string, kind Kind, message string) Notification {
	now := c.now()
	n := Notification{
		ID:        uuid.NewString(),
		Kind:      kind,
		Message:   message,
		CreatedAt: now,
		ExpiresAt: now.Add(c.ttl),
	}

	c.mu.Lock()
	c.bySession[sessionID] = append(c.prune(sessionID, now), n)
	// Sends happen under the lock so cancel cannot close a channel mid-send.
	for ch := range c.subscribers[sessionID] {
		select {
		case ch <- n:
		default:
			// slow subscriber; it still sees the entry through Active
		}
	}
	c.mu.Unlock()

	if c.observer != nil {
		c.observer.ObserveNotification(string(kind))
	}
	return n
}

// Active returns the session's unexpired notifications, oldest first.
func (c *Center) Active(sessionID string) []Notification {
	c.mu.Lock()
	defer c.mu.Unlock()
	live := c.prune(sessionID, c.now())
	if len(live) == 0 {
		delete(c.bySession, sessionID)
		return []Notification{}
	}
	c.bySession[sessionID] = live
	return append([]Notification(nil), live...)
}

// Subscribe streams future notifications for the session until cancel is called.
func (c *Center) Subscribe(sessionID string) (<-chan Notification, func()) {
	ch := make(chan Notification, 8)
	c.mu.Lock()
	if c.subscribers[sessionID] == nil {
		c.subscribers[sessionID] = make(map[chan Notification]struct{})
	}
	c.subscribers[sessionID][ch] = struct{}{}
	c.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			c.mu.Lock()
			delete(c.subscribers[sessionID], ch)
			if len(c.subscribers[sessionID]) == 0 {
				delete(c.subscribers, sessionID)
			}
			c.mu.Unlock()
			close(ch)
		})
	}
	return ch, cancel
}

// Sweep drops expired notifications of every session and forgets sessions
// left with none. It returns how many sessions were forgotten.
func (c *Center) Sweep() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.now()
	dropped := 0
	for sessionID := range c.bySession {
		live := c.prune(sessionID, now)
		if len(live) == 0 {
			delete(c.bySession, sessionID)
			dropped++
			continue
		}
		c.bySession[sessionID] = live
	}
	return dropped
}

// Run sweeps every interval until ctx is done. Sessions that never read
// their notifications again are released this way.
func (c *Center) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = c.ttl
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.Sweep()
		}
	}
}

// sessions reports how many sessions still hold notifications.
func (c *Center) sessions() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.bySession)
}

// prune drops expired entries; callers hold c.mu.
func (c *Center) prune(sessionID string, now time.Time) []Notification {
	current := c.bySession[sessionID]
	live := current[:0]
	for _, n := range current {
		if now.Before(n.ExpiresAt) {
			live = append(live, n)
		}
	}
	return live
}
