package broadcast

import (
	"context"
	"errors"
	"math"
	"sort"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storefront/internal/domain"
)

func receive(t *testing.T, ch <-chan Notification) Notification {
	t.Helper()
	select {
	case n, ok := <-ch:
		require.True(t, ok, "channel closed")
		return n
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for notification")
	}
	return Notification{}
}

func assertSilent(t *testing.T, ch <-chan Notification, wait time.Duration) {
	t.Helper()
	select {
	case n, ok := <-ch:
		if ok {
			t.Fatalf("unexpected notification %+v", n)
		}
	case <-time.After(wait):
	}
}

func TestLocalBus_DeliversToTopicSubscribers(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	bus := NewLocalBus(4)

	carts, err := bus.Subscribe(ctx, TopicCart)
	require.NoError(t, err)
	products, err := bus.Subscribe(ctx, TopicProducts)
	require.NoError(t, err)

	require.NoError(t, bus.Publish(ctx, Notification{Topic: TopicCart, Scope: "c1", At: time.Now()}))

	got := receive(t, carts)
	assert.Equal(t, "c1", got.Scope)
	assertSilent(t, products, 50*time.Millisecond)
}

func TestLocalBus_UnsubscribesOnCancel(t *testing.T) {
	bus := NewLocalBus(1)
	ctx, cancel := context.WithCancel(context.Background())

	ch, err := bus.Subscribe(ctx, TopicCart)
	require.NoError(t, err)
	require.Equal(t, 1, bus.Subscribers(TopicCart))

	cancel()
	require.Eventually(t, func() bool { return bus.Subscribers(TopicCart) == 0 }, time.Second, 5*time.Millisecond)
	_, ok := <-ch
	assert.False(t, ok)
	require.NoError(t, bus.Publish(context.Background(), Notification{Topic: TopicCart}))
}

func TestLocalBus_FullSubscriberDoesNotBlock(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	bus := NewLocalBus(1)
	_, err := bus.Subscribe(ctx, TopicCart)
	require.NoError(t, err)

	done := make(chan struct{})
	go func() {
		for i := 0; i < 10; i++ {
			_ = bus.Publish(ctx, Notification{Topic: TopicCart})
		}
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("publish blocked on a full subscriber")
	}
}

type failingAdapter struct {
	name string
	err  error
}

func (f failingAdapter) Name() string { return f.name }
func (f failingAdapter) Publish(context.Context, Notification) error {
	return f.err
}
func (f failingAdapter) Subscribe(context.Context, Topic) (<-chan Notification, error) {
	return nil, f.err
}

type countingMetrics struct {
	mu     sync.Mutex
	counts map[string]int
}

func (m *countingMetrics) IncNotification(adapter, _ string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.counts == nil {
		m.counts = map[string]int{}
	}
	key := adapter + ":ok"
	if err != nil {
		key = adapter + ":error"
	}
	m.counts[key]++
}

func TestFanout_SucceedsWhenAnyAdapterSucceeds(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	bus := NewLocalBus(4)
	metrics := &countingMetrics{}
	fan := NewFanout("node-1", zerolog.Nop(), metrics, failingAdapter{name: "down", err: errors.New("refused")}, bus)

	ch, err := fan.Subscribe(ctx, TopicCart)
	require.NoError(t, err)

	require.NoError(t, fan.Publish(ctx, Notification{Topic: TopicCart, Scope: "c1"}))

	got := receive(t, ch)
	assert.Equal(t, "node-1", got.Origin)
	assert.False(t, got.At.IsZero())
	assert.Equal(t, 1, metrics.counts["down:error"])
	assert.Equal(t, 1, metrics.counts["local:ok"])
}

func TestFanout_AllAdaptersFailingIsTransient(t *testing.T) {
	fan := NewFanout("n", zerolog.Nop(), nil,
		failingAdapter{name: "a", err: errors.New("x")},
		failingAdapter{name: "b", err: errors.New("y")},
	)

	err := fan.Publish(context.Background(), Notification{Topic: TopicProducts})
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrTransient)
	assert.Contains(t, err.Error(), "a: x")
	assert.Contains(t, err.Error(), "b: y")
}

func TestFanout_DeduplicatesAcrossAdapters(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	first := NewLocalBus(4)
	second := &namedBus{LocalBus: NewLocalBus(4), name: "second"}
	fan := NewFanout("n", zerolog.Nop(), nil, first, second)

	ch, err := fan.Subscribe(ctx, TopicCart)
	require.NoError(t, err)

	require.NoError(t, fan.Publish(ctx, Notification{Topic: TopicCart, Scope: "c1"}))

	receive(t, ch)
	assertSilent(t, ch, 100*time.Millisecond)
}

type namedBus struct {
	*LocalBus
	name string
}

func (b *namedBus) Name() string { return b.name }

// memorySortedSet is a fake of the sorted-set commands the sentinel uses.
type memorySortedSet struct {
	mu   sync.Mutex
	sets map[string]map[string]float64
}

func newMemorySortedSet() *memorySortedSet {
	return &memorySortedSet{sets: map[string]map[string]float64{}}
}

func (m *memorySortedSet) ZAddGT(_ context.Context, key string, members ...redis.Z) *redis.IntCmd {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.sets[key] == nil {
		m.sets[key] = map[string]float64{}
	}
	var added int64
	for _, z := range members {
		member := z.Member.(string)
		cur, ok := m.sets[key][member]
		if !ok {
			added++
		}
		if !ok || z.Score > cur {
			m.sets[key][member] = z.Score
		}
	}
	return redis.NewIntResult(added, nil)
}

func (m *memorySortedSet) ZRangeByScoreWithScores(_ context.Context, key string, opt *redis.ZRangeBy) *redis.ZSliceCmd {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []redis.Z
	for member, score := range m.sets[key] {
		if inRange(score, opt.Min, opt.Max) {
			out = append(out, redis.Z{Score: score, Member: member})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Score < out[j].Score })
	return redis.NewZSliceCmdResult(out, nil)
}

func (m *memorySortedSet) ZRemRangeByScore(_ context.Context, key, min, max string) *redis.IntCmd {
	m.mu.Lock()
	defer m.mu.Unlock()
	var removed int64
	for member, score := range m.sets[key] {
		if inRange(score, min, max) {
			delete(m.sets[key], member)
			removed++
		}
	}
	return redis.NewIntResult(removed, nil)
}

func (m *memorySortedSet) Expire(context.Context, string, time.Duration) *redis.BoolCmd {
	return redis.NewBoolResult(true, nil)
}

func (m *memorySortedSet) score(key, member string) (float64, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sets[key][member]
	return s, ok
}

func inRange(score float64, min, max string) bool {
	lo, loExcl := bound(min)
	hi, hiExcl := bound(max)
	if score < lo || (loExcl && score == lo) {
		return false
	}
	if score > hi || (hiExcl && score == hi) {
		return false
	}
	return true
}

func bound(s string) (float64, bool) {
	switch s {
	case "-inf":
		return math.Inf(-1), false
	case "+inf":
		return math.Inf(1), false
	}
	excl := strings.HasPrefix(s, "(")
	v, _ := strconv.ParseFloat(strings.TrimPrefix(s, "("), 64)
	return v, excl
}

func TestSentinel_OlderWriteNeverWins(t *testing.T) {
	store := newMemorySortedSet()
	s := NewSentinel(store, 10*time.Millisecond, time.Hour, zerolog.Nop())
	newer := time.Now().UTC().Truncate(time.Millisecond)
	older := newer.Add(-time.Second)

	require.NoError(t, s.Publish(context.Background(), Notification{Topic: TopicCart, Scope: "c1", Origin: "a", At: newer}))
	require.NoError(t, s.Publish(context.Background(), Notification{Topic: TopicCart, Scope: "c1", Origin: "a", At: older}))

	score, ok := store.score(sentinelKey(TopicCart), "c1"+memberSep+"a")
	require.True(t, ok)
	assert.Equal(t, float64(newer.UnixMilli()), score)
}

func TestSentinel_SubscribersSeeNewerTimestampsOnly(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	store := newMemorySortedSet()
	s := NewSentinel(store, 10*time.Millisecond, time.Hour, zerolog.Nop())
	base := time.Now().UTC().Truncate(time.Millisecond)

	require.NoError(t, s.Publish(ctx, Notification{Topic: TopicCart, Scope: "before", At: base}))

	ch, err := s.Subscribe(ctx, TopicCart)
	require.NoError(t, err)

	require.NoError(t, s.Publish(ctx, Notification{Topic: TopicCart, Scope: "c9", Origin: "tab-2", At: base.Add(time.Second)}))

	got := receive(t, ch)
	assert.Equal(t, "c9", got.Scope)
	assert.Equal(t, "tab-2", got.Origin)
	assert.True(t, got.At.Equal(base.Add(time.Second)))
	assertSilent(t, ch, 50*time.Millisecond)
}

func TestSentinel_PrunesExpiredEntries(t *testing.T) {
	store := newMemorySortedSet()
	s := NewSentinel(store, time.Second, time.Minute, zerolog.Nop())
	now := time.Now().UTC()

	require.NoError(t, s.Publish(context.Background(), Notification{Topic: TopicCart, Scope: "old", At: now.Add(-2 * time.Minute)}))
	require.NoError(t, s.Publish(context.Background(), Notification{Topic: TopicCart, Scope: "new", At: now}))

	_, ok := store.score(sentinelKey(TopicCart), "old"+memberSep)
	assert.False(t, ok)
}

func TestWatcher_RefreshesOnMatchingNotificationAndPoll(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	bus := NewLocalBus(8)

	var notified, polled atomic.Int32
	w := NewWatcher(bus, []Topic{TopicCart, TopicProducts}, 30*time.Millisecond,
		func(_ context.Context, tr Trigger) error {
			if tr.Poll() {
				polled.Add(1)
			} else {
				notified.Add(1)
			}
			return nil
		},
		WithMatch(func(n Notification) bool { return n.Topic == TopicProducts || n.Scope == "mine" }),
	)
	go func() { _ = w.Run(ctx) }()

	require.Eventually(t, func() bool { return bus.Subscribers(TopicCart) == 1 && bus.Subscribers(TopicProducts) == 1 }, time.Second, 5*time.Millisecond)

	require.NoError(t, bus.Publish(ctx, Notification{Topic: TopicCart, Scope: "other"}))
	require.NoError(t, bus.Publish(ctx, Notification{Topic: TopicCart, Scope: "mine"}))
	require.NoError(t, bus.Publish(ctx, Notification{Topic: TopicProducts}))

	require.Eventually(t, func() bool { return notified.Load() == 2 }, time.Second, 5*time.Millisecond)
	require.Eventually(t, func() bool { return polled.Load() > 0 }, time.Second, 5*time.Millisecond)
}

func TestWatcher_PollsWhenSubscribeFails(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var polled atomic.Int32
	w := NewWatcher(failingAdapter{name: "down", err: errors.New("no")}, []Topic{TopicCart}, 10*time.Millisecond,
		func(context.Context, Trigger) error {
			polled.Add(1)
			return nil
		})
	go func() { _ = w.Run(ctx) }()

	require.Eventually(t, func() bool { return polled.Load() >= 2 }, time.Second, 5*time.Millisecond)
}
