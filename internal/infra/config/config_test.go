package config

import (
	"testing"
	"time"

	"github.com/gocql/gocql"
)

func TestFromEnvDefaults(t *testing.T) {
	cfg, err := FromEnv()
	if err != nil {
		t.Fatalf("from env: %v", err)
	}
	if cfg.StorageDriver != DriverMemory || cfg.HTTPAddr != ":8080" {
		t.Fatalf("unexpected defaults %+v", cfg)
	}
	if cfg.CommandMaxAttempts != 5 || cfg.IdempotencyTTL != 168*time.Hour {
		t.Fatalf("unexpected command defaults: attempts=%d ttl=%v", cfg.CommandMaxAttempts, cfg.IdempotencyTTL)
	}
	if cfg.Scylla.Consistency != gocql.Quorum {
		t.Fatalf("expected quorum, got %v", cfg.Scylla.Consistency)
	}
	if cfg.PublishingEnabled() || cfg.CacheEnabled() || cfg.FolioEnabled() {
		t.Fatal("expected optional integrations disabled by default")
	}
	if len(cfg.RetryBackoff) != 3 || cfg.RetryBackoff[2] != 30*time.Second {
		t.Fatalf("unexpected retry backoff %v", cfg.RetryBackoff)
	}
}

func TestFromEnvScylla(t *testing.T) {
	t.Setenv("STORAGE_DRIVER", "Scylla")
	t.Setenv("MONGO_URI", "mongodb://localhost:27017/?replicaSet=rs0")
	t.Setenv("SCYLLA_HOSTS", "scylla-1,scylla-2")
	t.Setenv("SCYLLA_CONSISTENCY", "LOCAL_QUORUM")
	t.Setenv("KAFKA_BROKERS", "kafka:9092")

	cfg, err := FromEnv()
	if err != nil {
		t.Fatalf("from env: %v", err)
	}
	if cfg.StorageDriver != DriverScylla {
		t.Fatalf("expected scylla driver, got %s", cfg.StorageDriver)
	}
	if len(cfg.Scylla.Hosts) != 2 || cfg.Scylla.Consistency != gocql.LocalQuorum {
		t.Fatalf("unexpected scylla config %+v", cfg.Scylla)
	}
	if !cfg.PublishingEnabled() {
		t.Fatal("expected publishing enabled")
	}
}

func TestFromEnvRejectsInvalid(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{name: "unknown driver", env: map[string]string{"STORAGE_DRIVER": "sqlite"}},
		{name: "mongo without uri", env: map[string]string{"STORAGE_DRIVER": "mongo"}},
		{name: "bad keyspace", env: map[string]string{"STORAGE_DRIVER": "scylla", "MONGO_URI": "mongodb://m", "SCYLLA_KEYSPACE": "guest-stay"}},
		{name: "bad consistency", env: map[string]string{"SCYLLA_CONSISTENCY": "most"}},
		{name: "zero attempts", env: map[string]string{"COMMAND_MAX_ATTEMPTS": "0"}},
		{name: "bad duration", env: map[string]string{"CACHE_TTL": "soon"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			if _, err := FromEnv(); err == nil {
				t.Fatal("expected configuration error")
			}
		})
	}
}
