package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubSQS struct {
	inputs []*sqs.SendMessageInput
	err    error
}

func (s *stubSQS) SendMessage(_ context.Context, params *sqs.SendMessageInput, _ ...func(*sqs.Options)) (*sqs.SendMessageOutput, error) {
	s.inputs = append(s.inputs, params)
	if s.err != nil {
		return nil, s.err
	}
	return &sqs.SendMessageOutput{MessageId: aws.String("msg-1")}, nil
}

func TestNewEnvelope(t *testing.T) {
	fixed := time.Date(2024, 8, 1, 12, 0, 0, 0, time.UTC)
	orig := nowFunc
	nowFunc = func() time.Time { return fixed }
	t.Cleanup(func() { nowFunc = orig })

	id := uuid.New()
	env, err := NewEnvelope("app1", AppointmentScheduledV1{AppointmentID: "app1", Specialty: "Cardiologia"},
		WithEventID(id), WithCorrelationID(" req-1 "))
	require.NoError(t, err)

	assert.Equal(t, id, env.EventID)
	assert.Equal(t, TypeAppointmentScheduled, env.EventType)
	assert.Equal(t, "req-1", env.CorrelationID)
	assert.Equal(t, fixed.UnixMicro(), env.TimestampMicros)

	var payload AppointmentScheduledV1
	require.NoError(t, json.Unmarshal(env.Payload, &payload))
	assert.Equal(t, "Cardiologia", payload.Specialty)
}

func TestNewEnvelopeValidation(t *testing.T) {
	_, err := NewEnvelope(" ", AppointmentCancelledV1{})
	assert.ErrorIs(t, err, errMissingAggregate)

	_, err = NewEnvelope("app1", nil)
	assert.ErrorIs(t, err, errNilEvent)
}

func TestMemoryPublisherCopies(t *testing.T) {
	pub := NewMemoryPublisher()
	env, err := NewEnvelope("1", AppointmentCancelledV1{AppointmentID: "1"})
	require.NoError(t, err)
	require.NoError(t, pub.Publish(context.Background(), env))

	got := pub.Published()
	require.Len(t, got, 1)
	got[0].EventType = "mutated"
	assert.Equal(t, TypeAppointmentCancelled, pub.Published()[0].EventType)
}

func TestMemoryPublisherRetainsMostRecent(t *testing.T) {
	pub := NewMemoryPublisher()
	for i := 0; i < 10000; i++ {
		env, err := NewEnvelope(fmt.Sprintf("app%d", i), AppointmentCancelledV1{AppointmentID: fmt.Sprintf("app%d", i)})
		require.NoError(t, err)
		require.NoError(t, pub.Publish(context.Background(), env))
	}

	got := pub.Published()
	require.Len(t, got, DefaultMemoryCapacity)
	assert.Equal(t, "app9999", got[len(got)-1].Aggregate)
	assert.Equal(t, fmt.Sprintf("app%d", 10000-DefaultMemoryCapacity), got[0].Aggregate)

	pub.WithCapacity(2)
	got = pub.Published()
	require.Len(t, got, 2)
	assert.Equal(t, "app9998", got[0].Aggregate)
}

func TestSQSPublisherSendsEnvelope(t *testing.T) {
	client := &stubSQS{}
	pub := newSQSPublisher(client, "http://localhost:4566/queue/appointments")

	env, err := NewEnvelope("1", AppointmentCancelledV1{AppointmentID: "1"})
	require.NoError(t, err)
	require.NoError(t, pub.Publish(context.Background(), env))

	require.Len(t, client.inputs, 1)
	input := client.inputs[0]
	assert.Equal(t, "http://localhost:4566/queue/appointments", aws.ToString(input.QueueUrl))
	assert.Equal(t, TypeAppointmentCancelled, aws.ToString(input.MessageAttributes["event_type"].StringValue))

	var decoded Envelope
	require.NoError(t, json.Unmarshal([]byte(aws.ToString(input.MessageBody)), &decoded))
	assert.Equal(t, env.EventID, decoded.EventID)
}

func TestSQSPublisherWrapsErrors(t *testing.T) {
	boom := errors.New("boom")
	pub := newSQSPublisher(&stubSQS{err: boom}, "queue")
	env, err := NewEnvelope("1", AppointmentCancelledV1{AppointmentID: "1"})
	require.NoError(t, err)

	err = pub.Publish(context.Background(), env)
	assert.ErrorIs(t, err, boom)
}

type failingPublisher struct{ err error }

func (f failingPublisher) Publish(context.Context, Envelope) error { return f.err }

func TestFanoutPublisher_DeliversToAllTargets(t *testing.T) {
	first := NewMemoryPublisher()
	second := NewMemoryPublisher()
	boom := errors.New("boom")
	fanout := NewFanoutPublisher(first, nil, failingPublisher{err: boom}, second)

	env, err := NewEnvelope("app1", AppointmentCancelledV1{AppointmentID: "app1"})
	require.NoError(t, err)

	err = fanout.Publish(context.Background(), env)
	require.ErrorIs(t, err, boom)
	assert.Len(t, first.Published(), 1)
	assert.Len(t, second.Published(), 1)
}

func TestFanoutPublisher_Empty(t *testing.T) {
	env, err := NewEnvelope("app1", AppointmentCancelledV1{AppointmentID: "app1"})
	require.NoError(t, err)
	assert.NoError(t, NewFanoutPublisher().Publish(context.Background(), env))
}
