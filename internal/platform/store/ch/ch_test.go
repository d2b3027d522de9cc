package ch

import (
	"context"
	"errors"
	"strings"
	"testing"

	"murmur/internal/platform/testkit"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
)

func TestOpen_BadDSN(t *testing.T) {
	t.Parallel()

	_, err := Open(context.Background(), Config{URL: "://nope"})
	if err == nil || !strings.Contains(err.Error(), "clickhouse dsn") {
		t.Fatalf("expected dsn error, got %v", err)
	}
}

func TestOpen_StampsClientInfo(t *testing.T) {
	testkit.Serial(t)

	var seen *clickhouse.Options
	testkit.Swap(t, &dial, func(o *clickhouse.Options) (driver.Conn, error) {
		seen = o
		return nil, errors.New("no server")
	})

	_, err := Open(context.Background(), Config{URL: "clickhouse://localhost:9000/default", AppName: "murmur", Role: "api"})
	if err == nil {
		t.Fatal("expected dial error")
	}
	if seen == nil || len(seen.ClientInfo.Products) == 0 {
		t.Fatal("client info not set")
	}
	if p := seen.ClientInfo.Products[0]; p.Name != "murmur" || p.Version != "api" {
		t.Fatalf("first product = %+v", p)
	}
}

func TestInsertSQL(t *testing.T) {
	t.Parallel()

	got := insertSQL("activity_events", []string{"event_id", "activity_id", "kind"})
	want := "INSERT INTO activity_events (event_id, activity_id, kind)"
	if got != want {
		t.Fatalf("insertSQL = %q, want %q", got, want)
	}
}

func TestBuildClientInfo_DefaultsApp(t *testing.T) {
	t.Parallel()

	ci := BuildClientInfo("", "rebuild")
	if ci.Products[0].Name != "murmur" || ci.Products[0].Version != "rebuild" {
		t.Fatalf("unexpected products %+v", ci.Products)
	}
	if ci.Products[1].Name != "go" {
		t.Fatalf("go product missing: %+v", ci.Products)
	}
}
