package repokit

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
)

type fakeQ struct{ Queryer }

type txr struct {
	q     Queryer
	calls int
}

func (t *txr) Exec(ctx context.Context, sql string, args ...any) (CommandTag, error) {
	return nil, nil
}
func (t *txr) Query(ctx context.Context, sql string, args ...any) (Rows, error) { return nil, nil }
func (t *txr) QueryRow(ctx context.Context, sql string, args ...any) Row        { return nil }
func (t *txr) Tx(ctx context.Context, fn func(Queryer) error) error {
	t.calls++
	return fn(t.q)
}

type pinger struct{ err error }

func (p pinger) Ping(context.Context) error  { return p.err }
func (p pinger) Guard(context.Context) error { return p.err }

func TestWithTx_PassesQueryer(t *testing.T) {
	t.Parallel()

	q := fakeQ{}
	tx := &txr{q: q}
	var got Queryer
	if err := WithTx(context.Background(), tx, func(in Queryer) error { got = in; return nil }); err != nil {
		t.Fatal(err)
	}
	if tx.calls != 1 || got != q {
		t.Fatalf("calls = %d", tx.calls)
	}

	boom := errors.New("boom")
	if err := WithTx(context.Background(), tx, func(Queryer) error { return boom }); !errors.Is(err, boom) {
		t.Fatalf("err = %v", err)
	}
}

func TestBinder(t *testing.T) {
	t.Parallel()

	b := BindFunc[string](func(q Queryer) string { return fmt.Sprintf("%T", q) })
	if got := MustBind[string](b, fakeQ{}); got != "repokit.fakeQ" {
		t.Fatalf("bound = %q", got)
	}

	defer func() {
		if recover() == nil {
			t.Fatal("nil queryer should panic")
		}
	}()
	RequireQueryer(nil)
}

func TestMustPing(t *testing.T) {
	t.Parallel()

	MustPing(context.Background(), "pg", pinger{})

	defer func() {
		r := recover()
		if r == nil || !strings.Contains(fmt.Sprint(r), "redis ping failed") {
			t.Fatalf("recovered %v", r)
		}
	}()
	MustPing(context.Background(), "redis", pinger{err: errors.New("down")})
}

func TestMustGuard(t *testing.T) {
	t.Parallel()

	MustGuard(context.Background(), pinger{})
	defer func() {
		if recover() == nil {
			t.Fatal("failing guard should panic")
		}
	}()
	MustGuard(context.Background(), pinger{err: errors.New("down")})
}
