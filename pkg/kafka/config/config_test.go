package kafka_config

import (
	"strings"
	"testing"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load([]string{"localhost:9092"})
	if err != nil {
		t.Fatalf("Load() unexpected error: %v", err)
	}
	if cfg.ProducerCompression != DefaultProducerCompression {
		t.Errorf("compression = %s", cfg.ProducerCompression)
	}
	if cfg.ProducerRequireAcks != -1 {
		t.Errorf("acks = %d", cfg.ProducerRequireAcks)
	}
}

func TestLoad_Invalid(t *testing.T) {
	t.Setenv(EnvKafkaProducerCompression, "brotli")
	t.Setenv(EnvKafkaProducerRequireAcks, "2")

	_, err := Load(nil)
	if err == nil {
		t.Fatal("expected validation error")
	}
	for _, want := range []string{"broker", "ProducerCompression", "ProducerRequireAcks"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error should mention %s: %v", want, err)
		}
	}
}
