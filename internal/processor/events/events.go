// Package events publishes the terminal outcome of each processed submission.
package events

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strconv"
	"time"

	"forestclient/internal/submission/models"
)

// Kind is the terminal event type.
type Kind string

const (
	KindApproved Kind = "approved"
	KindReview   Kind = "review"
	KindRejected Kind = "rejected"
)

// Event is emitted exactly once per processed submission.
type Event struct {
	Kind          Kind                         `json:"kind"`
	SubmissionID  models.SubmissionID          `json:"submissionId"`
	CorrelationID string                       `json:"correlationId"`
	ClientNumber  string                       `json:"clientNumber,omitempty"`
	Reasons       []string                     `json:"reasons,omitempty"`
	Information   models.SubmissionInformation `json:"information"`
	OccurredAt    time.Time                    `json:"occurredAt"`
}

// ChannelPublisher delivers events on an in-process channel.
type ChannelPublisher struct {
	ch chan Event
}

func NewChannelPublisher(buffer int) *ChannelPublisher {
	return &ChannelPublisher{ch: make(chan Event, buffer)}
}

// Publish blocks until the event is accepted or ctx is done.
func (p *ChannelPublisher) Publish(ctx context.Context, event Event) error {
	select {
	case p.ch <- event:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Events is the receive side of the channel.
func (p *ChannelPublisher) Events() <-chan Event {
	return p.ch
}

// RecordProducer sends a keyed record to a topic.
type RecordProducer interface {
	Publish(ctx context.Context, key, value []byte, headers map[string]string) error
}

// KafkaPublisher writes events as JSON records keyed by submission id so all
// events for a submission land on the same partition.
type KafkaPublisher struct {
	producer RecordProducer
}

func NewKafkaPublisher(producer RecordProducer) *KafkaPublisher {
	return &KafkaPublisher{producer: producer}
}

func (p *KafkaPublisher) Publish(ctx context.Context, event Event) error {
	value, err := json.Marshal(event)
	if err != nil {
		return err
	}
	key := []byte(strconv.FormatInt(int64(event.SubmissionID), 10))
	return p.producer.Publish(ctx, key, value, map[string]string{
		"event-kind":     string(event.Kind),
		"correlation-id": event.CorrelationID,
	})
}

// Fanout publishes to every publisher, joining their errors.
type Fanout struct {
	publishers []Publisher
	logger     *slog.Logger
}

// Publisher emits events.
type Publisher interface {
	Publish(ctx context.Context, event Event) error
}

func NewFanout(logger *slog.Logger, publishers ...Publisher) *Fanout {
	return &Fanout{publishers: publishers, logger: logger}
}

func (f *Fanout) Publish(ctx context.Context, event Event) error {
	var errs []error
	for _, p := range f.publishers {
		if err := p.Publish(ctx, event); err != nil {
			f.logger.WarnContext(ctx, "event publish failed",
				"submission_id", event.SubmissionID,
				"kind", event.Kind,
				"error", err,
			)
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
