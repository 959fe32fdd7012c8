package scylla

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/gocql/gocql"

	"gueststay/internal/infra/config"
)

// NewSession ensures the keyspace and event table exist and returns a
// session bound to the keyspace. The keyspace name is validated by config.
func NewSession(ctx context.Context, cfg config.Scylla, logger *slog.Logger) (*gocql.Session, error) {
	baseSession, err := newCluster(cfg, "").CreateSession()
	if err != nil {
		return nil, fmt.Errorf("connect to scylla: %w", err)
	}
	defer baseSession.Close()
	if err := ensureKeyspace(ctx, baseSession, cfg); err != nil {
		return nil, err
	}

	session, err := newCluster(cfg, cfg.Keyspace).CreateSession()
	if err != nil {
		return nil, fmt.Errorf("connect to keyspace %s: %w", cfg.Keyspace, err)
	}
	if err := ensureTables(ctx, session, cfg.Keyspace); err != nil {
		session.Close()
		return nil, err
	}
	if logger != nil {
		logger.Info("scylla connected", "hosts", cfg.Hosts, "keyspace", cfg.Keyspace)
	}
	return session, nil
}

func newCluster(cfg config.Scylla, keyspace string) *gocql.ClusterConfig {
	cluster := gocql.NewCluster(cfg.Hosts...)
	cluster.Keyspace = keyspace
	cluster.Timeout = cfg.Timeout
	cluster.ConnectTimeout = cfg.Timeout
	cluster.Consistency = cfg.Consistency
	cluster.SerialConsistency = gocql.Serial
	if cfg.Username != "" {
		cluster.Authenticator = gocql.PasswordAuthenticator{
			Username: cfg.Username,
			Password: cfg.Password,
		}
	}
	return cluster
}

func ensureKeyspace(ctx context.Context, session *gocql.Session, cfg config.Scylla) error {
	rf := cfg.ReplicationFactor
	if rf < 1 {
		rf = 1
	}
	cql := fmt.Sprintf(
		"CREATE KEYSPACE IF NOT EXISTS %s WITH replication = {'class': 'SimpleStrategy', 'replication_factor': %d}",
		cfg.Keyspace, rf,
	)
	if err := session.Query(cql).WithContext(ctx).Exec(); err != nil {
		return fmt.Errorf("create keyspace: %w", err)
	}
	return nil
}

func ensureTables(ctx context.Context, session *gocql.Session, keyspace string) error {
	events := fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS %s.%s (
	stream_id text,
	version bigint,
	event_id text,
	name text,
	payload blob,
	occurred_at timestamp,
	recorded_at timestamp,
	PRIMARY KEY (stream_id, version)
) WITH CLUSTERING ORDER BY (version ASC);`, keyspace, eventsTable)
	if err := session.Query(events).WithContext(ctx).Exec(); err != nil {
		return fmt.Errorf("create events table: %w", err)
	}
	return nil
}
