package lazy

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValue(t *testing.T) {
	var calls atomic.Int32
	v := NewValue(func(ctx context.Context) (string, error) {
		calls.Add(1)
		return "catalog", nil
	})

	var wg sync.WaitGroup
	for range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			got, err := v.Get(context.Background())
			assert.NoError(t, err)
			assert.Equal(t, "catalog", got)
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), calls.Load())

	v.Reset()
	_, err := v.Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int32(2), calls.Load())
}

func TestValueRetriesAfterError(t *testing.T) {
	fail := true
	v := NewValue(func(ctx context.Context) (int, error) {
		if fail {
			return 0, errors.New("unavailable")
		}
		return 42, nil
	})

	_, err := v.Get(context.Background())
	require.Error(t, err)

	fail = false
	got, err := v.Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 42, got)
}

func TestMap(t *testing.T) {
	var calls sync.Map
	m := NewMap(func(ctx context.Context, key string) (string, error) {
		n, _ := calls.LoadOrStore(key, new(atomic.Int32))
		n.(*atomic.Int32).Add(1)
		if key == "broken" {
			return "", errors.New("broken")
		}
		return "view:" + key, nil
	})

	var wg sync.WaitGroup
	for range 10 {
		for _, key := range []string{"gdho", "ec_meetings", ""} {
			wg.Add(1)
			go func() {
				defer wg.Done()
				got, err := m.Get(context.Background(), key)
				assert.NoError(t, err)
				assert.Equal(t, "view:"+key, got)
			}()
		}
	}
	wg.Wait()

	for _, key := range []string{"gdho", "ec_meetings", ""} {
		n, ok := calls.Load(key)
		require.True(t, ok)
		assert.Equal(t, int32(1), n.(*atomic.Int32).Load(), key)
	}

	_, err := m.Get(context.Background(), "broken")
	require.Error(t, err)
	_, err = m.Get(context.Background(), "broken")
	require.Error(t, err)
	n, _ := calls.Load("broken")
	assert.Equal(t, int32(2), n.(*atomic.Int32).Load())

	seen := map[string]string{}
	m.Range(func(key, value string) bool {
		seen[key] = value
		return true
	})
	assert.Equal(t, map[string]string{
		"gdho":        "view:gdho",
		"ec_meetings": "view:ec_meetings",
		"":            "view:",
	}, seen)
	assert.Equal(t, 3, m.Len())
}

func TestValueWaiterHonoursContext(t *testing.T) {
	started, unblock := make(chan struct{}), make(chan struct{})
	v := NewValue(func(ctx context.Context) (string, error) {
		close(started)
		<-unblock
		return "catalog", nil
	})

	done := make(chan struct{})
	go func() {
		defer close(done)
		got, err := v.Get(context.Background())
		assert.NoError(t, err)
		assert.Equal(t, "catalog", got)
	}()
	<-started

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err := v.Get(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	cancelled, cancelNow := context.WithCancel(context.Background())
	cancelNow()
	_, err = v.Get(cancelled)
	assert.ErrorIs(t, err, context.Canceled)

	close(unblock)
	<-done
	got, err := v.Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "catalog", got)
}

func TestMapWaiterHonoursContext(t *testing.T) {
	started, unblock := make(chan struct{}), make(chan struct{})
	var calls atomic.Int32
	m := NewMap(func(ctx context.Context, key string) (string, error) {
		calls.Add(1)
		if key == "slow" {
			close(started)
			<-unblock
		}
		return "view:" + key, nil
	})

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, err := m.Get(context.Background(), "slow")
		assert.NoError(t, err)
	}()
	<-started

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err := m.Get(ctx, "slow")
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	// other keys are not held up by the slow load
	got, err := m.Get(context.Background(), "gdho")
	require.NoError(t, err)
	assert.Equal(t, "view:gdho", got)

	close(unblock)
	<-done
	got, err = m.Get(context.Background(), "slow")
	require.NoError(t, err)
	assert.Equal(t, "view:slow", got)
	assert.Equal(t, int32(2), calls.Load())
}
