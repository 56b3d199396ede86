package memo

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestContext_RoundTrip(t *testing.T) {
	m := New()
	ctx := WithContext(context.Background(), m)

	assert.Same(t, m, FromContext(ctx))
	assert.Nil(t, FromContext(context.Background()))
	assert.Nil(t, FromContext(nil)) //nolint:staticcheck // nil context is handled
}

func TestGetOrFetch_CachesValue(t *testing.T) {
	m := New()

	var calls atomic.Int32

	fetch := func(context.Context) (string, error) {
		calls.Add(1)
		return "record", nil
	}

	first, err := GetOrFetch(context.Background(), m, "isbn:1", fetch)
	require.NoError(t, err)

	second, err := GetOrFetch(context.Background(), m, "isbn:1", fetch)
	require.NoError(t, err)

	assert.Equal(t, "record", first)
	assert.Equal(t, "record", second)
	assert.Equal(t, int32(1), calls.Load())
	assert.Equal(t, 1, m.Len())
}

func TestGetOrFetch_RemembersError(t *testing.T) {
	m := New()
	boom := errors.New("source down")

	var calls atomic.Int32

	fetch := func(context.Context) (int, error) {
		calls.Add(1)
		return 0, boom
	}

	_, err := GetOrFetch(context.Background(), m, "k", fetch)
	require.ErrorIs(t, err, boom)

	_, err = GetOrFetch(context.Background(), m, "k", fetch)
	require.ErrorIs(t, err, boom)

	assert.Equal(t, int32(1), calls.Load())
}

func TestGetOrFetch_DifferentKeys(t *testing.T) {
	m := New()

	a, err := GetOrFetch(context.Background(), m, "a", func(context.Context) (string, error) { return "A", nil })
	require.NoError(t, err)

	b, err := GetOrFetch(context.Background(), m, "b", func(context.Context) (string, error) { return "B", nil })
	require.NoError(t, err)

	assert.Equal(t, "A", a)
	assert.Equal(t, "B", b)
	assert.Equal(t, 2, m.Len())
}

func TestGetOrFetch_Concurrent(t *testing.T) {
	m := New()

	var (
		calls   atomic.Int32
		release = make(chan struct{})
		wg      sync.WaitGroup
	)

	fetch := func(context.Context) (int, error) {
		calls.Add(1)
		<-release

		return 42, nil
	}

	results := make([]int, 8)

	for i := range results {
		wg.Go(func() {
			v, err := GetOrFetch(context.Background(), m, "same", fetch)
			assert.NoError(t, err)

			results[i] = v
		})
	}

	close(release)
	wg.Wait()

	assert.Equal(t, int32(1), calls.Load())

	for _, v := range results {
		assert.Equal(t, 42, v)
	}
}

func TestGetOrFetch_TypeMismatch(t *testing.T) {
	m := New()

	_, err := GetOrFetch(context.Background(), m, "k", func(context.Context) (int, error) { return 1, nil })
	require.NoError(t, err)

	_, err = GetOrFetch(context.Background(), m, "k", func(context.Context) (string, error) { return "x", nil })
	assert.ErrorContains(t, err, "holds int")
}

func TestGetOrFetch_Panic(t *testing.T) {
	m := New()

	_, err := GetOrFetch(context.Background(), m, "k", func(context.Context) (int, error) { panic("bad page") })

	assert.ErrorContains(t, err, "panic: bad page")
}

func TestGetOrFetch_NilMemo(t *testing.T) {
	var calls int

	fetch := func(context.Context) (int, error) {
		calls++
		return calls, nil
	}

	first, _ := GetOrFetch(context.Background(), nil, "k", fetch)
	second, _ := GetOrFetch(context.Background(), nil, "k", fetch)

	assert.Equal(t, 1, first)
	assert.Equal(t, 2, second)
}
