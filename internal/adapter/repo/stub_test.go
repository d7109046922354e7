package repo

import (
	"context"
	"fmt"
	"reflect"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"agencydesk/internal/infra"
)

type simpleRow struct {
	scan func(dest ...any) error
}

func (r simpleRow) Scan(dest ...any) error {
	if r.scan == nil {
		return pgx.ErrNoRows
	}
	return r.scan(dest...)
}

type testRowsBase struct{}

func (testRowsBase) CommandTag() pgconn.CommandTag { return pgconn.CommandTag{} }

func (testRowsBase) Conn() *pgx.Conn { return nil }

func (testRowsBase) FieldDescriptions() []pgconn.FieldDescription { return nil }

func (testRowsBase) Values() ([]any, error) {
	return nil, fmt.Errorf("values not supported in test rows")
}

func (testRowsBase) RawValues() [][]byte { return nil }

type sliceRows struct {
	testRowsBase
	rows [][]any
	idx  int
}

func (r *sliceRows) Next() bool {
	if r.idx >= len(r.rows) {
		return false
	}
	r.idx++
	return true
}

func (r *sliceRows) Scan(dest ...any) error { return fill(dest, r.rows[r.idx-1]...) }

func (r *sliceRows) Err() error { return nil }

func (r *sliceRows) Close() {}

// stubExecutor replays scripted results per query constant and records calls.
type stubExecutor struct {
	rows  map[string][]simpleRow
	lists map[string][][]any
	tags  map[string]pgconn.CommandTag
	err   error
	calls []call
}

type call struct {
	query string
	args  []any
}

func newStubExecutor() *stubExecutor {
	return &stubExecutor{
		rows:  map[string][]simpleRow{},
		lists: map[string][][]any{},
		tags:  map[string]pgconn.CommandTag{},
	}
}

func (s *stubExecutor) onRow(query string, vals ...any) {
	s.rows[query] = append(s.rows[query], simpleRow{scan: func(dest ...any) error { return fill(dest, vals...) }})
}

func (s *stubExecutor) onNoRows(query string) {
	s.rows[query] = append(s.rows[query], simpleRow{})
}

func (s *stubExecutor) onRowErr(query string, err error) {
	s.rows[query] = append(s.rows[query], simpleRow{scan: func(...any) error { return err }})
}

func (s *stubExecutor) count(query string) int {
	n := 0
	for _, c := range s.calls {
		if c.query == query {
			n++
		}
	}
	return n
}

func (s *stubExecutor) Exec(ctx context.Context, query string, args ...any) (pgconn.CommandTag, error) {
	s.calls = append(s.calls, call{query: query, args: args})
	return s.tags[query], s.err
}

func (s *stubExecutor) QueryRow(ctx context.Context, query string, args ...any) pgx.Row {
	s.calls = append(s.calls, call{query: query, args: args})
	queue := s.rows[query]
	if len(queue) == 0 {
		return simpleRow{}
	}
	s.rows[query] = queue[1:]
	return queue[0]
}

func (s *stubExecutor) Query(ctx context.Context, query string, args ...any) (pgx.Rows, error) {
	s.calls = append(s.calls, call{query: query, args: args})
	if s.err != nil {
		return nil, s.err
	}
	return &sliceRows{rows: s.lists[query]}, nil
}

// txStub runs InTx against itself so WithinTx can be exercised.
type txStub struct {
	*stubExecutor
	began int
}

func (t *txStub) InTx(ctx context.Context, fn func(infra.SQLExecutor) error) error {
	t.began++
	return fn(t.stubExecutor)
}

// fill assigns vals to scan destinations, converting between named types
// with the same underlying kind. A nil value leaves the destination zeroed.
func fill(dest []any, vals ...any) error {
	if len(dest) != len(vals) {
		return fmt.Errorf("scan: %d destinations, %d values", len(dest), len(vals))
	}
	for i, d := range dest {
		if vals[i] == nil {
			continue
		}
		target := reflect.ValueOf(d).Elem()
		v := reflect.ValueOf(vals[i])
		if target.Kind() == reflect.Pointer && v.Kind() != reflect.Pointer {
			p := reflect.New(target.Type().Elem())
			p.Elem().Set(v.Convert(target.Type().Elem()))
			target.Set(p)
			continue
		}
		target.Set(v.Convert(target.Type()))
	}
	return nil
}
