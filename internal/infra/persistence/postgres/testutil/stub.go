// Package testutil provides a stub database/sql driver that understands the
// handful of statements the postgres snapshot store issues.
package testutil

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"io"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
)

var driverSeq atomic.Int64

// Failure toggles. Each makes the matching call fail once set.
var (
	ErrPing   = errors.New("stub: ping fail")
	ErrExec   = errors.New("stub: exec fail")
	ErrBegin  = errors.New("stub: begin fail")
	ErrCommit = errors.New("stub: commit fail")
	ErrQuery  = errors.New("stub: query fail")
)

// StubConn records statements and keeps a single key/payload table in memory.
// Uncommitted upserts are buffered per transaction and discarded on rollback.
type StubConn struct {
	mu sync.Mutex

	Execs  []string
	Rows   map[string][]byte
	Commit int

	FailPing   bool
	FailExec   bool
	FailBegin  bool
	FailCommit bool
	FailQuery  bool
	RowsErr    error
	// FailUpsertKey fails the upsert of one bucket.
	FailUpsertKey string

	pending map[string][]byte
}

// NewStubDB registers a sql.DB backed by a fresh stub connection.
func NewStubDB() (*sql.DB, *StubConn) {
	conn := &StubConn{Rows: make(map[string][]byte)}
	name := fmt.Sprintf("stubpg%d", driverSeq.Add(1))
	sql.Register(name, &stubDriver{conn: conn})
	db, err := sql.Open(name, "stub")
	if err != nil {
		panic(err)
	}
	db.SetMaxOpenConns(1)
	return db, conn
}

// Keys returns the stored keys in sorted order.
func (c *StubConn) Keys() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	keys := make([]string, 0, len(c.Rows))
	for k := range c.Rows {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

type stubDriver struct {
	conn *StubConn
}

func (d *stubDriver) Open(string) (driver.Conn, error) { return d.conn, nil }

// Prepare implements driver.Conn.
func (c *StubConn) Prepare(string) (driver.Stmt, error) { return nil, errors.New("not implemented") }

// Close implements driver.Conn.
func (c *StubConn) Close() error { return nil }

// Begin implements driver.Conn.
func (c *StubConn) Begin() (driver.Tx, error) {
	return c.BeginTx(context.Background(), driver.TxOptions{})
}

// Ping implements driver.Pinger.
func (c *StubConn) Ping(context.Context) error {
	if c.FailPing {
		return ErrPing
	}
	return nil
}

// BeginTx implements driver.ConnBeginTx.
func (c *StubConn) BeginTx(context.Context, driver.TxOptions) (driver.Tx, error) {
	if c.FailBegin {
		return nil, ErrBegin
	}
	c.mu.Lock()
	c.pending = make(map[string][]byte)
	c.mu.Unlock()
	return &stubTx{conn: c}, nil
}

// ExecContext implements driver.ExecerContext.
func (c *StubConn) ExecContext(_ context.Context, query string, args []driver.NamedValue) (driver.Result, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Execs = append(c.Execs, query)
	if c.FailExec {
		return nil, ErrExec
	}
	if !strings.HasPrefix(strings.ToUpper(strings.TrimSpace(query)), "INSERT INTO") {
		return driver.RowsAffected(0), nil
	}
	if len(args) != 2 {
		return nil, fmt.Errorf("stub: upsert expects 2 args, got %d", len(args))
	}
	key, ok := args[0].Value.(string)
	if !ok {
		return nil, fmt.Errorf("stub: key must be a string, got %T", args[0].Value)
	}
	if key == c.FailUpsertKey {
		return nil, fmt.Errorf("stub: upsert %s: %w", key, ErrExec)
	}
	var payload []byte
	switch v := args[1].Value.(type) {
	case []byte:
		payload = slices.Clone(v)
	case string:
		payload = []byte(v)
	default:
		return nil, fmt.Errorf("stub: unexpected payload %T", v)
	}
	if c.pending != nil {
		c.pending[key] = payload
	} else {
		c.Rows[key] = payload
	}
	return driver.RowsAffected(1), nil
}

// QueryContext implements driver.QueryerContext. Every query returns all
// committed key/payload pairs.
func (c *StubConn) QueryContext(_ context.Context, query string, _ []driver.NamedValue) (driver.Rows, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.FailQuery {
		return nil, ErrQuery
	}
	if !strings.HasPrefix(strings.ToUpper(strings.TrimSpace(query)), "SELECT") {
		return nil, fmt.Errorf("stub: cannot query %q", query)
	}
	keys := make([]string, 0, len(c.Rows))
	for k := range c.Rows {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	rows := make([][]driver.Value, 0, len(keys))
	for _, k := range keys {
		rows = append(rows, []driver.Value{k, slices.Clone(c.Rows[k])})
	}
	return &stubRows{rows: rows, err: c.RowsErr}, nil
}

type stubTx struct {
	conn *StubConn
}

func (t *stubTx) Commit() error {
	c := t.conn
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.FailCommit {
		c.pending = nil
		return ErrCommit
	}
	for k, v := range c.pending {
		c.Rows[k] = v
	}
	c.pending = nil
	c.Commit++
	return nil
}

func (t *stubTx) Rollback() error {
	t.conn.mu.Lock()
	t.conn.pending = nil
	t.conn.mu.Unlock()
	return nil
}

type stubRows struct {
	rows [][]driver.Value
	idx  int
	err  error
}

func (r *stubRows) Columns() []string { return []string{"bucket", "payload"} }
func (r *stubRows) Close() error      { return nil }

func (r *stubRows) Next(dest []driver.Value) error {
	if r.idx >= len(r.rows) {
		if r.err != nil {
			return r.err
		}
		return io.EOF
	}
	copy(dest, r.rows[r.idx])
	r.idx++
	return nil
}
