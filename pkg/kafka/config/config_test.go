package kafka_config

import (
	"strings"
	"testing"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv(EnvKafkaBrokers, " broker-a:9092, broker-b:9092 ")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(cfg.Brokers) != 2 || cfg.Brokers[1] != "broker-b:9092" {
		t.Errorf("expected trimmed brokers, got %v", cfg.Brokers)
	}
	if cfg.OutcomesTopic != DefaultOutcomesTopic || cfg.RatingsGroupID != DefaultRatingsGroupID {
		t.Errorf("unexpected topic/group %q/%q", cfg.OutcomesTopic, cfg.RatingsGroupID)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"empty broker", func(c *Config) { c.Brokers = []string{""} }, "Broker 0 cannot be empty"},
		{"dlq equals topic", func(c *Config) { c.OutcomesDLQTopic = c.OutcomesTopic }, "OutcomesDLQTopic"},
		{"bad compression", func(c *Config) { c.ProducerCompression = "brotli" }, "ProducerCompression"},
		{"bad acks", func(c *Config) { c.ProducerRequireAcks = 2 }, "ProducerRequireAcks"},
		{"explicit offset", func(c *Config) { c.ConsumerStartOffset = 42 }, "ConsumerStartOffset"},
		{"negative retries", func(c *Config) { c.ConsumerMaxRetries = -1 }, "ConsumerMaxRetries"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := Load()
			if err != nil {
				t.Fatalf("defaults should validate: %v", err)
			}
			tt.mutate(cfg)
			err = cfg.Validate()
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("expected error containing %q, got %v", tt.wantErr, err)
			}
		})
	}
}
