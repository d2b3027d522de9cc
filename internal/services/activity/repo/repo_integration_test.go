//go:build integration_pg
// +build integration_pg

package repo

import (
	"context"
	"fmt"
	"testing"
	"time"

	"murmur/internal/core/query"
	"murmur/internal/modkit/repokit"
	"murmur/internal/platform/store"
	"murmur/internal/services/activity/domain"

	tc "github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

func startPG(t *testing.T) (*store.Store, func()) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Minute)

	c, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{
		ContainerRequest: tc.ContainerRequest{
			Image:        "postgres:16-alpine",
			ExposedPorts: []string{"5432/tcp"},
			Env: map[string]string{
				"POSTGRES_USER":     "murmur",
				"POSTGRES_PASSWORD": "murmur",
				"POSTGRES_DB":       "murmur",
			},
			WaitingFor: wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).WithStartupTimeout(2 * time.Minute),
		},
		Started: true,
	})
	if err != nil {
		cancel()
		t.Fatalf("start postgres: %v", err)
	}
	host, _ := c.Host(ctx)
	port, err := c.MappedPort(ctx, "5432/tcp")
	if err != nil {
		_ = c.Terminate(context.Background())
		cancel()
		t.Fatalf("mapped port: %v", err)
	}

	st, err := store.Open(ctx, store.Config{
		AppName: "murmur-test",
		PG: store.PGConfig{
			Enabled:  true,
			URL:      fmt.Sprintf("postgres://murmur:murmur@%s:%s/murmur?sslmode=disable", host, port.Port()),
			MaxConns: 4,
		},
	})
	if err != nil {
		_ = c.Terminate(context.Background())
		cancel()
		t.Fatalf("open store: %v", err)
	}
	return st, func() {
		_ = st.Close(context.Background())
		_ = c.Terminate(context.Background())
		cancel()
	}
}

func TestPG_Integration(t *testing.T) {
	st, stop := startPG(t)
	defer stop()

	ctx := context.Background()
	if err := EnsureSchema(ctx, st.PG); err != nil {
		t.Fatalf("schema: %v", err)
	}
	// twice, the schema is idempotent
	if err := EnsureSchema(ctx, st.PG); err != nil {
		t.Fatalf("schema again: %v", err)
	}
	if _, err := st.PG.Exec(ctx, `INSERT INTO users (id, login, nicename, email, display_name) VALUES (7, 'ada', 'ada', 'ada@example.org', 'Ada')`); err != nil {
		t.Fatal(err)
	}

	s := NewPG().Bind(st.PG)
	t0 := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	top, err := s.Insert(ctx, domain.Record{UserID: 7, Component: "activity", Type: domain.TypeUpdate, Content: "hello", DateRecorded: t0})
	if err != nil {
		t.Fatal(err)
	}
	c1, _ := s.Insert(ctx, domain.Record{UserID: 7, Component: "activity", Type: domain.TypeComment, Content: "a", ItemID: top, SecondaryItemID: top, DateRecorded: t0.Add(time.Minute)})
	c2, _ := s.Insert(ctx, domain.Record{UserID: 7, Component: "activity", Type: domain.TypeComment, Content: "b", ItemID: top, SecondaryItemID: c1, DateRecorded: t0.Add(2 * time.Minute), MPTTLeft: 40, MPTTRight: 41})
	if r, err := s.GetByID(ctx, c2); err != nil || r.MPTTLeft != 0 || r.MPTTRight != 0 {
		t.Fatalf("inserted bounds = [%d,%d] err = %v", r.MPTTLeft, r.MPTTRight, err)
	}

	kids, err := s.ChildIDs(ctx, top)
	if err != nil || len(kids) != 1 || kids[0] != c1 {
		t.Fatalf("children = %v err = %v", kids, err)
	}

	err = st.PG.Tx(ctx, func(q repokit.Queryer) error {
		tx := NewPG().Bind(q)
		if err := tx.LockTree(ctx, top); err != nil {
			return err
		}
		for _, b := range []struct{ id, l, r int64 }{{c2, 3, 4}, {c1, 2, 5}} {
			if err := tx.SetBounds(ctx, b.id, b.l, b.r, true); err != nil {
				return err
			}
		}
		return tx.SetBounds(ctx, top, 1, 6, false)
	})
	if err != nil {
		t.Fatalf("tx: %v", err)
	}

	desc, err := s.Descendants(ctx, top, 1, 6, query.HamOnly)
	if err != nil || len(desc) != 2 || desc[0].ID != c1 {
		t.Fatalf("descendants = %+v err = %v", desc, err)
	}

	roots, _ := s.ThreadRoots(ctx)
	if len(roots) != 1 || roots[0] != top {
		t.Fatalf("roots = %v", roots)
	}

	c := query.NewComposer(nil).Compose(ctx, query.Spec{Filter: query.Filter{UserIDs: []int64{7}}})
	ids, err := s.QueryIDs(ctx, query.Select{Composed: c, Limit: 10})
	if err != nil || len(ids) != 1 || ids[0] != top {
		t.Fatalf("query ids = %v err = %v", ids, err)
	}
	n, err := s.Count(ctx, query.Count{Composed: c})
	if err != nil || n != 1 {
		t.Fatalf("count = %d err = %v", n, err)
	}

	users, err := NewUsers(st.PG).Users(ctx, []int64{7, 8})
	if err != nil || users[7].Login != "ada" || len(users) != 1 {
		t.Fatalf("users = %+v err = %v", users, err)
	}

	if err := s.UpdateMeta(ctx, top, "mood", "sunny"); err != nil {
		t.Fatal(err)
	}
	if err := s.UpdateMeta(ctx, top, "mood", "grey"); err != nil {
		t.Fatal(err)
	}
	m, _ := s.Meta(ctx, top)
	if len(m) != 1 || m[0].Value != "grey" {
		t.Fatalf("meta = %+v", m)
	}

	gone, err := s.DeleteWhere(ctx, domain.DeleteFilter{IDs: []int64{c2}})
	if err != nil || len(gone) != 1 || gone[0].Content != "b" {
		t.Fatalf("deleted = %+v err = %v", gone, err)
	}
	if _, err := s.GetByID(ctx, c2); err == nil {
		t.Fatal("deleted row still readable")
	}

	if id, err := s.LastSeenID(ctx, 7); err != nil || id != 0 {
		t.Fatalf("last seen = %d err = %v", id, err)
	}
}
