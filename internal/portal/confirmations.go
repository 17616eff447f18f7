package portal

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// DefaultConfirmationTTL bounds how long a cancellation prompt may stay open.
const DefaultConfirmationTTL = 2 * time.Minute

type pendingCancellation struct {
	sessionID     string
	appointmentID string
	expiresAt     time.Time
}

// confirmations tracks the second step of the cancel flow. A token is bound
// to one session and one appointment and can be used once.
type confirmations struct {
	mu      sync.Mutex
	ttl     time.Duration
	now     func() time.Time
	pending map[string]pendingCancellation
}

func newConfirmations(ttl time.Duration) *confirmations {
	if ttl <= 0 {
		ttl = DefaultConfirmationTTL
	}
	return &confirmations{
		ttl:     ttl,
		now:     time.Now,
		pending: make(map[string]pendingCancellation),
	}
}

func (c *confirmations) issue(sessionID, appointmentID string) (string, time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	for token, p := range c.pending {
		if !now.Before(p.expiresAt) {
			delete(c.pending, token)
		}
	}
	token := uuid.NewString()
	expiresAt := now.Add(c.ttl)
	c.pending[token] = pendingCancellation{
		sessionID:     sessionID,
		appointmentID: appointmentID,
		expiresAt:     expiresAt,
	}
	return token, expiresAt
}

// consume removes the token and reports whether it authorises cancelling
// appointmentID for sessionID right now.
func (c *confirmations) consume(sessionID, appointmentID, token string) bool {
	if token == "" {
		return false
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	p, ok := c.pending[token]
	if !ok || p.sessionID != sessionID {
		return false
	}
	delete(c.pending, token)
	return p.appointmentID == appointmentID && c.now().Before(p.expiresAt)
}
