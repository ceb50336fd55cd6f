// Package fakedb provides an in-memory sqlexplorer.Dialer and Session for tests.
//
// Example usage:
//
//	dialer := fakedb.NewDialer().
//	    WithResult("SELECT 1", fakedb.Scalar("value", int64(1))).
//	    FailNext("SELECT * FROM flaky", mssql.Error{Number: 1205}).
//	    WithQueryDelay(10 * time.Millisecond)
package fakedb

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/vvka-141/sqlexplorer/pkg/sqlexplorer"
)

// QueryFunc overrides query handling for every session of a Dialer.
type QueryFunc func(ctx context.Context, s *Session, statement string, args []any) (*sqlexplorer.ResultSet, error)

// Dialer is a scripted sqlexplorer.Dialer. Safe for concurrent use.
type Dialer struct {
	mu         sync.Mutex
	dialErrs   []error
	results    map[string]*sqlexplorer.ResultSet
	queryErrs  map[string][]error
	queryDelay time.Duration
	onQuery    QueryFunc
	sessions   []*Session
	queries    int
	closed     bool
}

// NewDialer creates a dialer whose sessions answer unknown statements with a
// single-cell result.
func NewDialer() *Dialer {
	return &Dialer{
		results:   make(map[string]*sqlexplorer.ResultSet),
		queryErrs: make(map[string][]error),
	}
}

// WithResult answers statement with rs.
func (d *Dialer) WithResult(statement string, rs *sqlexplorer.ResultSet) *Dialer {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.results[statement] = rs
	return d
}

// FailNext makes the next len(errs) executions of statement fail, in order.
func (d *Dialer) FailNext(statement string, errs ...error) *Dialer {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.queryErrs[statement] = append(d.queryErrs[statement], errs...)
	return d
}

// FailDials makes the next len(errs) dials fail, in order.
func (d *Dialer) FailDials(errs ...error) *Dialer {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.dialErrs = append(d.dialErrs, errs...)
	return d
}

// WithQueryDelay makes every query block for delay, or until ctx is done.
func (d *Dialer) WithQueryDelay(delay time.Duration) *Dialer {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.queryDelay = delay
	return d
}

// OnQuery replaces the scripted behaviour entirely.
func (d *Dialer) OnQuery(f QueryFunc) *Dialer {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.onQuery = f
	return d
}

// Dial opens a new fake session.
func (d *Dialer) Dial(ctx context.Context) (sqlexplorer.Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return nil, errors.New("fakedb: dialer closed")
	}
	if len(d.dialErrs) > 0 {
		err := d.dialErrs[0]
		d.dialErrs = d.dialErrs[1:]
		return nil, err
	}
	s := &Session{id: len(d.sessions) + 1, dialer: d}
	d.sessions = append(d.sessions, s)
	return s, nil
}

// Close marks the dialer closed.
func (d *Dialer) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.closed = true
	return nil
}

// Closed reports whether Close was called.
func (d *Dialer) Closed() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.closed
}

// Dials is the number of successful dials.
func (d *Dialer) Dials() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.sessions)
}

// Queries is the number of queries executed across all sessions.
func (d *Dialer) Queries() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.queries
}

// Sessions returns every session dialed so far, in dial order.
func (d *Dialer) Sessions() []*Session {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]*Session(nil), d.sessions...)
}

// Session is a fake sqlexplorer.Session.
type Session struct {
	id      int
	dialer  *Dialer
	mu      sync.Mutex
	pingErr error
	pings   int
	closed  bool
}

// ID is the 1-based dial order of the session.
func (s *Session) ID() int { return s.id }

// SetPingError makes subsequent pings fail with err (nil restores health).
func (s *Session) SetPingError(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pingErr = err
}

// Pings is the number of pings received.
func (s *Session) Pings() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pings
}

// Closed reports whether Close was called.
func (s *Session) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

func (s *Session) Ping(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pings++
	if s.closed {
		return errors.New("fakedb: session closed")
	}
	return s.pingErr
}

func (s *Session) Query(ctx context.Context, statement string, args []any) (*sqlexplorer.ResultSet, error) {
	d := s.dialer
	d.mu.Lock()
	d.queries++
	delay := d.queryDelay
	hook := d.onQuery
	var scripted error
	if errs := d.queryErrs[statement]; len(errs) > 0 {
		scripted = errs[0]
		d.queryErrs[statement] = errs[1:]
	}
	rs, ok := d.results[statement]
	d.mu.Unlock()

	if delay > 0 {
		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
	}
	if hook != nil {
		return hook(ctx, s, statement, args)
	}
	if scripted != nil {
		return nil, scripted
	}
	if ok {
		return rs, nil
	}
	return Scalar("value", int64(1)), nil
}

func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// Scalar builds a one-row, one-column result.
func Scalar(column string, value any) *sqlexplorer.ResultSet {
	rs, _ := sqlexplorer.NewResultSet([]sqlexplorer.Column{{Name: column}}, [][]any{{value}}, 1)
	return rs
}

// Table builds a result from column names and row-major values.
func Table(columns []string, rows ...[]any) *sqlexplorer.ResultSet {
	cols := make([]sqlexplorer.Column, len(columns))
	for i, c := range columns {
		cols[i] = sqlexplorer.Column{Name: c}
	}
	rs, err := sqlexplorer.NewResultSet(cols, rows, int64(len(rows)))
	if err != nil {
		panic(err)
	}
	return rs
}
