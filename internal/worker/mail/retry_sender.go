// Package mailworker moves outbound email off the request path. Scheduling
// desk messages are queued by the event pipeline and delivered in the
// background with exponential backoff.
package mailworker

import (
	"context"
	"errors"
	"time"

	"github.com/wolfman30/patient-portal/internal/notify"
	"github.com/wolfman30/patient-portal/pkg/logging"
)

// ErrQueueFull is returned by Send when the backlog is at capacity.
var ErrQueueFull = errors.New("mailworker: queue full")

type job struct {
	msg      notify.EmailMessage
	attempts int
}

// RetrySender queues emails and delivers them until max attempts.
// It satisfies notify.EmailSender so it can sit in front of any provider.
type RetrySender struct {
	sender      notify.EmailSender
	logger      *logging.Logger
	queue       chan job
	maxAttempts int
	baseDelay   time.Duration
	maxDelay    time.Duration
	timeout     time.Duration
}

func NewRetrySender(sender notify.EmailSender, logger *logging.Logger) *RetrySender {
	if sender == nil {
		panic("mailworker: email sender required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &RetrySender{
		sender:      sender,
		logger:      logger,
		queue:       make(chan job, 64),
		maxAttempts: 5,
		baseDelay:   2 * time.Second,
		maxDelay:    5 * time.Minute,
		timeout:     15 * time.Second,
	}
}

func (r *RetrySender) WithMaxAttempts(n int) *RetrySender {
	if n > 0 {
		r.maxAttempts = n
	}
	return r
}

func (r *RetrySender) WithBaseDelay(d time.Duration) *RetrySender {
	if d > 0 {
		r.baseDelay = d
	}
	return r
}

func (r *RetrySender) WithMaxDelay(d time.Duration) *RetrySender {
	if d > 0 {
		r.maxDelay = d
	}
	return r
}

// WithQueueSize resizes the backlog. Call it before Run or Send.
func (r *RetrySender) WithQueueSize(n int) *RetrySender {
	if n > 0 {
		r.queue = make(chan job, n)
	}
	return r
}

// Send enqueues msg without blocking. Delivery errors surface in the logs only.
func (r *RetrySender) Send(_ context.Context, msg notify.EmailMessage) error {
	select {
	case r.queue <- job{msg: msg}:
		return nil
	default:
		r.logger.Warn("mail queue full, dropping email", "to", msg.To, "subject", msg.Subject)
		return ErrQueueFull
	}
}

// Pending reports how many emails are waiting for delivery.
func (r *RetrySender) Pending() int {
	return len(r.queue)
}

// Run delivers queued emails until ctx is done.
func (r *RetrySender) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			if n := len(r.queue); n > 0 {
				r.logger.Warn("mail worker stopped with pending emails", "pending", n)
			}
			return
		case j := <-r.queue:
			r.deliver(ctx, j)
		}
	}
}

func (r *RetrySender) deliver(ctx context.Context, j job) {
	for {
		sendCtx, cancel := context.WithTimeout(ctx, r.timeout)
		err := r.sender.Send(sendCtx, j.msg)
		cancel()
		if err == nil {
			if j.attempts > 0 {
				r.logger.Info("email delivered after retry", "to", j.msg.To, "attempts", j.attempts+1)
			}
			return
		}
		j.attempts++
		if j.attempts >= r.maxAttempts {
			r.logger.Error("giving up on email", "error", err, "to", j.msg.To, "subject", j.msg.Subject, "attempts", j.attempts)
			return
		}
		next := r.nextDelay(j.attempts - 1)
		r.logger.Warn("email send failed, retrying", "error", err, "to", j.msg.To, "attempt", j.attempts, "retry_in", next)

		timer := time.NewTimer(next)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
	}
}

func (r *RetrySender) nextDelay(attempts int) time.Duration {
	if attempts > 20 {
		return r.maxDelay
	}
	delay := r.baseDelay * time.Duration(1<<attempts)
	if delay > r.maxDelay {
		delay = r.maxDelay
	}
	return delay
}

var _ notify.EmailSender = (*RetrySender)(nil)
