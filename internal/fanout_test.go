package internal

import (
	"context"
	"errors"
	"sort"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGatherReturnsOneResultPerItem(t *testing.T) {
	items := []int{1, 2, 3, 4, 5, 6, 7}
	out := Gather(context.Background(), items, 3,
		func(_ context.Context, n int) (int, error) { return n * 10, nil },
		func(n int, _ error) int { return -n },
	)

	sort.Ints(out)
	assert.Equal(t, []int{10, 20, 30, 40, 50, 60, 70}, out)
}

func TestGatherIsolatesFailures(t *testing.T) {
	items := []string{"ok1", "boom", "panic", "ok2"}
	out := Gather(context.Background(), items, 2,
		func(_ context.Context, s string) (string, error) {
			switch s {
			case "boom":
				return "", errors.New("exploded")
			case "panic":
				panic("bad item")
			}
			return s + ":done", nil
		},
		func(s string, err error) string { return s + ":failed:" + err.Error() },
	)

	sort.Strings(out)
	require.Len(t, out, 4)
	assert.Equal(t, "boom:failed:exploded", out[0])
	assert.Equal(t, "ok1:done", out[1])
	assert.Equal(t, "ok2:done", out[2])
	assert.Equal(t, "panic:failed:panic: bad item", out[3])
}

func TestGatherBoundsConcurrency(t *testing.T) {
	var inFlight, peak atomic.Int32
	items := []int{1, 2, 3, 4, 5}
	const delay = 100 * time.Millisecond

	start := time.Now()
	out := Gather(context.Background(), items, 2,
		func(_ context.Context, n int) (int, error) {
			cur := inFlight.Add(1)
			for {
				old := peak.Load()
				if cur <= old || peak.CompareAndSwap(old, cur) {
					break
				}
			}
			time.Sleep(delay)
			inFlight.Add(-1)
			return n, nil
		},
		func(n int, _ error) int { return n },
	)

	elapsed := time.Since(start)

	assert.Len(t, out, 5)
	assert.Equal(t, int32(2), peak.Load())
	// three waves of two, not five sequential calls
	assert.GreaterOrEqual(t, elapsed, 3*delay)
	assert.Less(t, elapsed, 4*delay)
}

func TestGatherReportsProgress(t *testing.T) {
	var mu sync.Mutex
	var seen []int

	Gather(context.Background(), []int{1, 2, 3}, 1,
		func(_ context.Context, n int) (int, error) { return n, nil },
		func(n int, _ error) int { return n },
		WithProgress(func(done, total int) {
			mu.Lock()
			defer mu.Unlock()
			assert.Equal(t, 3, total)
			seen = append(seen, done)
		}),
	)

	assert.Equal(t, []int{1, 2, 3}, seen)
}

func TestGatherEmpty(t *testing.T) {
	out := Gather(context.Background(), nil, 0,
		func(_ context.Context, n int) (int, error) { return n, nil },
		func(n int, _ error) int { return n },
	)
	assert.Empty(t, out)
}
