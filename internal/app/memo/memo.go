// Package memo provides a request-scoped cache so that one request never
// fetches the same key twice, even when goroutines ask for it concurrently.
//
//	m := memo.New()
//	ctx = memo.WithContext(ctx, m)
//
//	rec, err := memo.GetOrFetch(ctx, m, "isbn:9780306406157", func(ctx context.Context) (*domain.Record, error) {
//	    return engine.ResolveByISBN(ctx, "9780306406157", true, "")
//	})
//
// Errors are remembered along with values: a key that failed once fails
// the same way for the rest of the request.
package memo

import (
	"context"
	"fmt"
	"sync"
)

type ctxKey struct{}

// Memo holds the results fetched during one request.
type Memo struct {
	entries sync.Map // string -> *entry
}

type entry struct {
	once  sync.Once
	value any
	err   error
}

// New creates an empty memo.
func New() *Memo {
	return &Memo{}
}

// FromContext returns the memo stored in ctx, or nil.
func FromContext(ctx context.Context) *Memo {
	if ctx == nil {
		return nil
	}

	if m, ok := ctx.Value(ctxKey{}).(*Memo); ok {
		return m
	}

	return nil
}

// WithContext stores m in ctx.
func WithContext(ctx context.Context, m *Memo) context.Context {
	return context.WithValue(ctx, ctxKey{}, m)
}

// Len returns the number of keys fetched so far.
func (m *Memo) Len() int {
	n := 0

	m.entries.Range(func(_, _ any) bool {
		n++
		return true
	})

	return n
}

// GetOrFetch returns the value cached under key, calling fetch at most once
// per key. Concurrent callers for the same key wait for the first fetch. A
// nil memo disables caching.
func GetOrFetch[T any](ctx context.Context, m *Memo, key string, fetch func(context.Context) (T, error)) (T, error) {
	if m == nil {
		return fetch(ctx)
	}

	actual, _ := m.entries.LoadOrStore(key, &entry{})
	e := actual.(*entry) //nolint:forcetypeassert // only *entry is stored

	e.once.Do(func() {
		defer func() {
			if r := recover(); r != nil {
				e.err = fmt.Errorf("fetching %s: panic: %v", key, r)
			}
		}()

		e.value, e.err = fetch(ctx)
	})

	if e.err != nil {
		var zero T
		return zero, e.err
	}

	v, ok := e.value.(T)
	if !ok {
		var zero T
		return zero, fmt.Errorf("memo: key %s holds %T", key, e.value)
	}

	return v, nil
}
