package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/aws/aws-sdk-go-v2/service/sqs/types"
)

// Publisher delivers event envelopes to downstream consumers.
type Publisher interface {
	Publish(ctx context.Context, env Envelope) error
}

// DefaultMemoryCapacity bounds how many envelopes a MemoryPublisher keeps.
const DefaultMemoryCapacity = 256

// MemoryPublisher keeps the most recent envelopes in process; used in
// development and tests. Older envelopes are discarded once capacity is reached.
type MemoryPublisher struct {
	mu        sync.Mutex
	capacity  int
	envelopes []Envelope
}

func NewMemoryPublisher() *MemoryPublisher {
	return &MemoryPublisher{capacity: DefaultMemoryCapacity}
}

// WithCapacity changes how many envelopes are retained.
func (p *MemoryPublisher) WithCapacity(n int) *MemoryPublisher {
	if n > 0 {
		p.mu.Lock()
		p.capacity = n
		p.trim()
		p.mu.Unlock()
	}
	return p
}

func (p *MemoryPublisher) Publish(_ context.Context, env Envelope) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.envelopes = append(p.envelopes, env)
	p.trim()
	return nil
}

// Published returns a copy of the retained envelopes, oldest first.
func (p *MemoryPublisher) Published() []Envelope {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]Envelope(nil), p.envelopes...)
}

// trim drops the oldest envelopes beyond capacity; callers hold p.mu.
func (p *MemoryPublisher) trim() {
	if over := len(p.envelopes) - p.capacity; over > 0 {
		p.envelopes = append(p.envelopes[:0:0], p.envelopes[over:]...)
	}
}

type sqsAPI interface {
	SendMessage(ctx context.Context, params *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error)
}

// SQSPublisher sends envelopes to an AWS/LocalStack SQS queue.
type SQSPublisher struct {
	client   sqsAPI
	queueURL string
}

// NewSQSPublisher creates a publisher around the provided SQS client.
func NewSQSPublisher(client *sqs.Client, queueURL string) *SQSPublisher {
	if client == nil {
		panic("events: SQS client cannot be nil")
	}
	return newSQSPublisher(client, queueURL)
}

func newSQSPublisher(client sqsAPI, queueURL string) *SQSPublisher {
	if queueURL == "" {
		panic("events: SQS queueURL cannot be empty")
	}
	return &SQSPublisher{client: client, queueURL: queueURL}
}

func (p *SQSPublisher) Publish(ctx context.Context, env Envelope) error {
	body, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("events: marshal envelope: %w", err)
	}
	_, err = p.client.SendMessage(ctx, &sqs.SendMessageInput{
		QueueUrl:    aws.String(p.queueURL),
		MessageBody: aws.String(string(body)),
		MessageAttributes: map[string]types.MessageAttributeValue{
			"event_type": {
				DataType:    aws.String("String"),
				StringValue: aws.String(env.EventType),
			},
		},
	})
	if err != nil {
		return fmt.Errorf("events: failed to send SQS message: %w", err)
	}
	return nil
}

// FanoutPublisher delivers each envelope to every target and joins their errors.
type FanoutPublisher struct {
	targets []Publisher
}

func NewFanoutPublisher(targets ...Publisher) *FanoutPublisher {
	f := &FanoutPublisher{}
	for _, t := range targets {
		if t != nil {
			f.targets = append(f.targets, t)
		}
	}
	return f
}

func (f *FanoutPublisher) Publish(ctx context.Context, env Envelope) error {
	var errs []error
	for _, t := range f.targets {
		if err := t.Publish(ctx, env); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
