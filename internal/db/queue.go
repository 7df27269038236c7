package db

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

type task struct {
	ctx  context.Context
	exec func(*sql.DB) (any, error)
	resp chan result
}

type result struct {
	data any
	err  error
}

// Queue serializes all database access through a single worker goroutine and
// retries failed tasks a few times, which keeps SQLite free of writer
// contention.
type Queue struct {
	tasks      chan task
	db         *sql.DB
	maxRetry   int
	retryDelay time.Duration
	linear     bool
}

func NewQueue(db *sql.DB) *Queue {
	q := &Queue{
		tasks:      make(chan task, 100),
		db:         db,
		maxRetry:   3,
		retryDelay: 100 * time.Millisecond,
	}
	go q.worker()
	return q
}

func NewQueueForTest(db *sql.DB) *Queue {
	q := &Queue{
		tasks:      make(chan task, 100),
		db:         db,
		maxRetry:   3,
		retryDelay: time.Millisecond,
		linear:     true,
	}
	go q.worker()
	return q
}

// permanentError stops the retry loop; the wrapped error is returned as is.
type permanentError struct {
	err error
}

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Permanent marks err as not worth retrying, e.g. a rejected domain rule.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

func (q *Queue) Execute(ctx context.Context, fn func(*sql.DB) (any, error)) (any, error) {
	resp := make(chan result, 1)
	select {
	case q.tasks <- task{ctx: ctx, exec: fn, resp: resp}:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	select {
	case r := <-resp:
		return r.data, r.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Run is Execute with a typed result.
func Run[T any](ctx context.Context, q *Queue, fn func(*sql.DB) (T, error)) (T, error) {
	data, err := q.Execute(ctx, func(db *sql.DB) (any, error) {
		return fn(db)
	})
	if err != nil {
		var zero T
		return zero, err
	}
	return data.(T), nil
}

func (q *Queue) worker() {
	for t := range q.tasks {
		t.resp <- q.executeWithRetry(t)
	}
}

func (q *Queue) executeWithRetry(t task) result {
	var lastErr error
	for attempt := 0; attempt < q.maxRetry; attempt++ {
		if err := t.ctx.Err(); err != nil {
			return result{err: err}
		}
		data, err := t.exec(q.db)
		if err == nil {
			return result{data: data}
		}
		var perm *permanentError
		if errors.As(err, &perm) {
			return result{err: perm.err}
		}
		lastErr = err
		if attempt < q.maxRetry-1 {
			if q.linear {
				time.Sleep(q.retryDelay)
			} else {
				time.Sleep(time.Duration(attempt+1) * q.retryDelay)
			}
		}
	}
	return result{err: lastErr}
}

func (q *Queue) Close() {
	close(q.tasks)
}

func (q *Queue) DB() *sql.DB {
	return q.db
}
