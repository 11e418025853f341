package postgres

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"sync"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// call records one statement sent to fakeDB.
type call struct {
	sql  string
	args []any
}

// fakeDB is a scripted [DB]. Each method pops the next queued result.
type fakeDB struct {
	mu    sync.Mutex
	calls []call

	execTags []pgconn.CommandTag
	execErrs []error
	rows     [][][]any
	queryErr error
	row      []any
	rowErr   error
}

var _ DB = (*fakeDB)(nil)

func (f *fakeDB) record(sql string, args []any) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call{sql: sql, args: args})
}

func (f *fakeDB) Calls() []call {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]call(nil), f.calls...)
}

func (f *fakeDB) Exec(_ context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	f.record(sql, args)
	f.mu.Lock()
	defer f.mu.Unlock()
	var err error
	if len(f.execErrs) > 0 {
		err, f.execErrs = f.execErrs[0], f.execErrs[1:]
	}
	tag := pgconn.NewCommandTag("UPDATE 1")
	if len(f.execTags) > 0 {
		tag, f.execTags = f.execTags[0], f.execTags[1:]
	}
	return tag, err
}

func (f *fakeDB) Query(_ context.Context, sql string, args ...any) (pgx.Rows, error) {
	f.record(sql, args)
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.queryErr != nil {
		return nil, f.queryErr
	}
	var data [][]any
	if len(f.rows) > 0 {
		data, f.rows = f.rows[0], f.rows[1:]
	}
	return &fakeRows{data: data, idx: -1}, nil
}

func (f *fakeDB) QueryRow(_ context.Context, sql string, args ...any) pgx.Row {
	f.record(sql, args)
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.rowErr != nil {
		return fakeRow{err: f.rowErr}
	}
	return fakeRow{values: f.row}
}

type fakeRow struct {
	values []any
	err    error
}

func (r fakeRow) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	return assign(r.values, dest)
}

// assign copies values into dest pointers. A nil value zeroes the target.
func assign(values []any, dest []any) error {
	if len(values) != len(dest) {
		return fmt.Errorf("fake: scan %d values into %d targets", len(values), len(dest))
	}
	for i, d := range dest {
		target := reflect.ValueOf(d).Elem()
		if values[i] == nil {
			target.Set(reflect.Zero(target.Type()))
			continue
		}
		v := reflect.ValueOf(values[i])
		if !v.Type().AssignableTo(target.Type()) {
			return fmt.Errorf("fake: column %d: cannot assign %s to %s", i, v.Type(), target.Type())
		}
		target.Set(v)
	}
	return nil
}

type fakeRows struct {
	data   [][]any
	idx    int
	closed bool
}

var _ pgx.Rows = (*fakeRows)(nil)

func (r *fakeRows) Close()                                       { r.closed = true }
func (r *fakeRows) Err() error                                   { return nil }
func (r *fakeRows) CommandTag() pgconn.CommandTag                { return pgconn.NewCommandTag("SELECT") }
func (r *fakeRows) FieldDescriptions() []pgconn.FieldDescription { return nil }
func (r *fakeRows) RawValues() [][]byte                          { return nil }
func (r *fakeRows) Conn() *pgx.Conn                              { return nil }

func (r *fakeRows) Next() bool {
	if r.closed {
		return false
	}
	r.idx++
	return r.idx < len(r.data)
}

func (r *fakeRows) Scan(dest ...any) error {
	if r.idx < 0 || r.idx >= len(r.data) {
		return errors.New("fake: scan outside rows")
	}
	return assign(r.data[r.idx], dest)
}

func (r *fakeRows) Values() ([]any, error) {
	if r.idx < 0 || r.idx >= len(r.data) {
		return nil, errors.New("fake: values outside rows")
	}
	return r.data[r.idx], nil
}
