package llm

import (
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCache(ttl time.Duration, maxEntries int) *ResponseCache {
	return NewResponseCache(ttl, maxEntries, log.DefaultLogger)
}

func TestResponseCache_Key_Deterministic(t *testing.T) {
	c := newTestCache(time.Minute, 10)

	k1 := c.Key("openai", "gpt-4o-mini", "  why are you leaving?  ")
	k2 := c.Key("openai", "gpt-4o-mini", "why are you leaving?")
	assert.Equal(t, k1, k2, "normalization trims surrounding whitespace")

	k3 := c.Key("anthropic", "claude", "why are you leaving?")
	assert.NotEqual(t, k1, k3, "provider identity is part of the key")

	k4 := c.Key("openai", "gpt-4o-mini", "why are you leaving?", "itv-1")
	assert.NotEqual(t, k1, k4, "extra fields are part of the key")
}

func TestResponseCache_Key_EmptyPromptFallback(t *testing.T) {
	c := newTestCache(time.Minute, 10)

	// Missing prompt yields a stable fallback key instead of an error
	k1 := c.Key("openai", "m", "")
	k2 := c.Key("openai", "m", "   ")
	assert.Equal(t, k1, k2)
	assert.NotEmpty(t, k1)
}

func TestResponseCache_HitWithinTTL(t *testing.T) {
	c := newTestCache(time.Minute, 10)
	calls := 0

	compute := func() ResponseResult {
		calls++
		return ResponseResult{Text: "computed"}
	}

	first := c.GetOrCompute("k", compute)
	second := c.GetOrCompute("k", compute)

	assert.Equal(t, first, second)
	assert.Equal(t, 1, calls)
}

func TestResponseCache_ExpiryTriggersRecompute(t *testing.T) {
	c := newTestCache(30*time.Millisecond, 10)
	calls := 0

	compute := func() ResponseResult {
		calls++
		return ResponseResult{Text: fmt.Sprintf("v%d", calls)}
	}

	first := c.GetOrCompute("k", compute)
	assert.Equal(t, "v1", first.Text)

	time.Sleep(40 * time.Millisecond)

	second := c.GetOrCompute("k", compute)
	assert.Equal(t, "v2", second.Text)
	assert.Equal(t, 2, calls)
}

func TestResponseCache_ThunderingHerd(t *testing.T) {
	// 10 concurrent callers for the same missing key: exactly one compute,
	// every caller receives an equal result.
	c := newTestCache(time.Minute, 10)

	var computeCalls int64
	compute := func() ResponseResult {
		atomic.AddInt64(&computeCalls, 1)
		time.Sleep(50 * time.Millisecond) // slow fn widens the window
		return ResponseResult{Text: "expensive"}
	}

	const callers = 10
	results := make([]ResponseResult, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = c.GetOrCompute("herd", compute)
		}(i)
	}
	wg.Wait()

	assert.Equal(t, int64(1), atomic.LoadInt64(&computeCalls))
	for i := 0; i < callers; i++ {
		assert.Equal(t, "expensive", results[i].Text)
	}
}

func TestResponseCache_DifferentKeysDoNotBlock(t *testing.T) {
	c := newTestCache(time.Minute, 10)

	slowStarted := make(chan struct{})
	release := make(chan struct{})

	go c.GetOrCompute("slow", func() ResponseResult {
		close(slowStarted)
		<-release
		return ResponseResult{Text: "slow"}
	})

	<-slowStarted

	// While "slow" is computing, an unrelated key must complete immediately.
	done := make(chan ResponseResult, 1)
	go func() {
		done <- c.GetOrCompute("fast", func() ResponseResult {
			return ResponseResult{Text: "fast"}
		})
	}()

	select {
	case res := <-done:
		assert.Equal(t, "fast", res.Text)
	case <-time.After(time.Second):
		t.Fatal("unrelated key was blocked by an in-flight computation")
	}

	close(release)
}

func TestResponseCache_CapacityEviction(t *testing.T) {
	c := newTestCache(time.Minute, 3)

	for i := 0; i < 6; i++ {
		key := fmt.Sprintf("k%d", i)
		c.GetOrCompute(key, func() ResponseResult {
			return ResponseResult{Text: key}
		})
	}

	assert.LessOrEqual(t, c.Len(), 3)
}

func TestResponseCache_EvictsSoonestExpiringFirst(t *testing.T) {
	c := newTestCache(time.Minute, 2)

	c.GetOrCompute("oldest", func() ResponseResult { return ResponseResult{Text: "a"} })
	time.Sleep(5 * time.Millisecond)
	c.GetOrCompute("middle", func() ResponseResult { return ResponseResult{Text: "b"} })
	time.Sleep(5 * time.Millisecond)
	c.GetOrCompute("newest", func() ResponseResult { return ResponseResult{Text: "c"} })

	// "oldest" expires first, so it is the one evicted
	calls := 0
	c.GetOrCompute("oldest", func() ResponseResult {
		calls++
		return ResponseResult{Text: "a2"}
	})
	assert.Equal(t, 1, calls, "evicted entry must recompute")

	// "newest" survived
	calls = 0
	res := c.GetOrCompute("newest", func() ResponseResult {
		calls++
		return ResponseResult{}
	})
	_ = res
	assert.Equal(t, 0, calls)
}

func TestResponseCache_SweepExpired(t *testing.T) {
	c := newTestCache(20*time.Millisecond, 100)

	for i := 0; i < 5; i++ {
		key := fmt.Sprintf("k%d", i)
		c.GetOrCompute(key, func() ResponseResult { return ResponseResult{Text: key} })
	}
	require.Equal(t, 5, c.Len())

	time.Sleep(30 * time.Millisecond)

	removed := c.SweepExpired()
	assert.Equal(t, 5, removed)
	assert.Equal(t, 0, c.Len())

	// Guards are reclaimed along with their entries
	c.mu.RLock()
	guardCount := len(c.guards)
	c.mu.RUnlock()
	assert.Equal(t, 0, guardCount)
}

func TestResponseCache_DefaultsApplied(t *testing.T) {
	c := NewResponseCache(0, 0, log.DefaultLogger)
	assert.Equal(t, 5*time.Minute, c.ttl)
	assert.Equal(t, 1000, c.maxEntries)
}
