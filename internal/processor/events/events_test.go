package events

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"forestclient/internal/submission/models"
)

type recordingProducer struct {
	key     []byte
	value   []byte
	headers map[string]string
	err     error
}

func (r *recordingProducer) Publish(_ context.Context, key, value []byte, headers map[string]string) error {
	r.key, r.value, r.headers = key, value, headers
	return r.err
}

func sampleEvent() Event {
	return Event{
		Kind:          KindApproved,
		SubmissionID:  42,
		CorrelationID: "c0ffee00-0000-4000-8000-000000000001",
		ClientNumber:  "00100000",
		Information:   models.SubmissionInformation{SubmissionID: 42, LegalName: "Cedar Ridge Logging Ltd."},
		OccurredAt:    time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC),
	}
}

func TestKafkaPublisher(t *testing.T) {
	producer := &recordingProducer{}
	err := NewKafkaPublisher(producer).Publish(context.Background(), sampleEvent())
	require.NoError(t, err)

	assert.Equal(t, "42", string(producer.key))
	assert.Equal(t, "approved", producer.headers["event-kind"])

	var decoded Event
	require.NoError(t, json.Unmarshal(producer.value, &decoded))
	assert.Equal(t, "00100000", decoded.ClientNumber)
	assert.Equal(t, "Cedar Ridge Logging Ltd.", decoded.Information.LegalName)
}

func TestChannelPublisher(t *testing.T) {
	t.Run("delivers events", func(t *testing.T) {
		p := NewChannelPublisher(1)
		require.NoError(t, p.Publish(context.Background(), sampleEvent()))
		got := <-p.Events()
		assert.Equal(t, KindApproved, got.Kind)
	})

	t.Run("respects context when full", func(t *testing.T) {
		p := NewChannelPublisher(0)
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		assert.ErrorIs(t, p.Publish(ctx, sampleEvent()), context.Canceled)
	})
}

func TestFanout(t *testing.T) {
	boom := errors.New("broker down")
	ok := NewChannelPublisher(1)
	failing := NewKafkaPublisher(&recordingProducer{err: boom})

	err := NewFanout(slog.New(slog.NewTextHandler(io.Discard, nil)), failing, ok).Publish(context.Background(), sampleEvent())

	assert.ErrorIs(t, err, boom)
	assert.Len(t, ok.Events(), 1)
}
