// Package ch is the clickhouse archive client
package ch

import (
	"context"
	"fmt"
	"strings"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
)

// Config configures the clickhouse client
type Config struct {
	// URL is a clickhouse:// dsn
	URL     string
	AppName string
	Role    string
}

// CH wraps a native clickhouse connection
type CH struct {
	conn driver.Conn
}

var (
	parseDSN = clickhouse.ParseDSN
	dial     = clickhouse.Open
)

// Open parses the dsn, stamps client info and verifies the server answers
func Open(ctx context.Context, cfg Config) (*CH, error) {
	opts, err := parseDSN(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("clickhouse dsn: %w", err)
	}
	opts.ClientInfo = BuildClientInfo(cfg.AppName, cfg.Role)
	conn, err := dial(opts)
	if err != nil {
		return nil, fmt.Errorf("clickhouse open: %w", err)
	}
	c := &CH{conn: conn}
	if err := c.Ping(ctx); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("clickhouse ping: %w", err)
	}
	return c, nil
}

// Append writes rows to table in one batch
// every row must carry one value per column, in column order
func (c *CH) Append(ctx context.Context, table string, columns []string, rows [][]any) error {
	if len(rows) == 0 {
		return nil
	}
	b, err := c.conn.PrepareBatch(ctx, insertSQL(table, columns))
	if err != nil {
		return err
	}
	for i, r := range rows {
		if len(r) != len(columns) {
			_ = b.Abort()
			return fmt.Errorf("row %d has %d values, want %d", i, len(r), len(columns))
		}
		if err := b.Append(r...); err != nil {
			_ = b.Abort()
			return err
		}
	}
	return b.Send()
}

// Ping verifies connectivity
func (c *CH) Ping(ctx context.Context) error { return c.conn.Ping(ctx) }

// Close closes the connection
func (c *CH) Close() error { return c.conn.Close() }

func insertSQL(table string, columns []string) string {
	return "INSERT INTO " + table + " (" + strings.Join(columns, ", ") + ")"
}
