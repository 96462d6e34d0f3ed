package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFromEnv(t *testing.T) {
	t.Run("defaults apply when unset", func(t *testing.T) {
		t.Setenv("PROCESSOR_ADDR", "")
		t.Setenv("KAFKA_BROKERS", "")
		t.Setenv("AGGREGATION_TIMEOUT", "")

		cfg := FromEnv()
		assert.Equal(t, ":8080", cfg.Server.Addr)
		assert.Empty(t, cfg.Kafka.Brokers)
		assert.Equal(t, 2*time.Minute, cfg.Pipeline.AggregationTimeout)
		assert.InDelta(t, 0.85, cfg.Pipeline.NameThreshold, 0.0001)
		assert.Equal(t, 16, cfg.Pipeline.EnrichWorkers)
		assert.Equal(t, 15*time.Second, cfg.Registry.LookupTimeout)
	})

	t.Run("overrides are parsed", func(t *testing.T) {
		t.Setenv("PROCESSOR_ADDR", ":9090")
		t.Setenv("KAFKA_BROKERS", "kafka-1:9092, kafka-2:9092,")
		t.Setenv("AGGREGATION_TIMEOUT", "45s")
		t.Setenv("PIPELINE_WORKERS", "8")
		t.Setenv("MATCHER_NAME_THRESHOLD", "0.9")

		cfg := FromEnv()
		assert.Equal(t, ":9090", cfg.Server.Addr)
		assert.Equal(t, []string{"kafka-1:9092", "kafka-2:9092"}, cfg.Kafka.Brokers)
		assert.Equal(t, 45*time.Second, cfg.Pipeline.AggregationTimeout)
		assert.Equal(t, 8, cfg.Pipeline.Workers)
		assert.InDelta(t, 0.9, cfg.Pipeline.NameThreshold, 0.0001)
	})

	t.Run("malformed values fall back to defaults", func(t *testing.T) {
		t.Setenv("PIPELINE_WORKERS", "many")
		t.Setenv("REMINDER_OLDER_THAN", "two days")

		cfg := FromEnv()
		assert.Equal(t, 4, cfg.Pipeline.Workers)
		assert.Equal(t, 48*time.Hour, cfg.Reminder.OlderThan)
	})
}
