package store

import (
	"time"

	"murmur/internal/platform/config"
)

// Config aggregates per backend configuration
type Config struct {
	// AppName is reported to postgres as application_name and to clickhouse as client info
	AppName string
	// Role names the binary, eg api or rebuild
	Role string

	PG  PGConfig
	CH  CHConfig
	RDS RedisConfig
}

// PGConfig configures postgres connectivity and tracing
type PGConfig struct {
	Enabled     bool
	URL         string
	MaxConns    int32
	LogSQL      bool
	SlowQueryMs int

	ConnectRetries int           // default 20
	PingTimeout    time.Duration // default 3s
}

// CHConfig configures the clickhouse archive
type CHConfig struct {
	Enabled bool
	URL     string
}

// RedisConfig configures the redis cache backend
type RedisConfig struct {
	Enabled bool
	URL     string
}

// ConfigFromEnv reads SERVICE_PGSQL_*, SERVICE_CLICKHOUSE_* and SERVICE_REDIS_*
// postgres is mandatory, the other two turn on when their url is set
func ConfigFromEnv(root config.Conf, role string) Config {
	pg := root.Prefix("SERVICE_PGSQL_")
	ch := root.Prefix("SERVICE_CLICKHOUSE_")
	rd := root.Prefix("SERVICE_REDIS_")

	chURL := ch.MayString("DBURL", "")
	rdURL := rd.MayString("URL", "")

	return Config{
		AppName: "murmur",
		Role:    role,
		PG: PGConfig{
			Enabled:        true,
			URL:            pg.MustString("DBURL"),
			MaxConns:       int32(pg.MayInt("MAX_CONNS", 4)),
			SlowQueryMs:    pg.MayInt("SLOW_MS", 500),
			LogSQL:         pg.MayBool("LOG_SQL", false),
			ConnectRetries: pg.MayInt("CONNECT_RETRIES", 20),
			PingTimeout:    pg.MayDuration("PING_TIMEOUT", 3*time.Second),
		},
		CH:  CHConfig{Enabled: chURL != "", URL: chURL},
		RDS: RedisConfig{Enabled: rdURL != "", URL: rdURL},
	}
}
