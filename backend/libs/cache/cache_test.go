package cache

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

type availability struct {
	StationID string         `json:"stationId"`
	Counts    map[string]int `json:"counts"`
	Tags      []string       `json:"tags"`
}

func newTestStore(t *testing.T) (*Store, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	t.Cleanup(func() { _ = client.Close() })
	return New(client, Options{Namespace: "test", ScanCount: 10}, zap.NewNop()), mr
}

func TestSetGetRoundTrip(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	want := availability{StationID: "st-1", Counts: map[string]int{"AVAILABLE": 2, "OFFLINE": 1}, Tags: []string{"ccs", "type2"}}
	store.Set(ctx, "availability:st-1", want, time.Minute)

	var got availability
	if !store.Get(ctx, "availability:st-1", &got) {
		t.Fatalf("expected cache hit")
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("round trip mismatch: got %+v want %+v", got, want)
	}
}

func TestGetMissAfterTTL(t *testing.T) {
	store, mr := newTestStore(t)
	ctx := context.Background()

	store.Set(ctx, "slots:c1:day", []int{1, 2}, 30*time.Second)
	mr.FastForward(31 * time.Second)

	var got []int
	if store.Get(ctx, "slots:c1:day", &got) {
		t.Fatalf("expected miss after ttl elapsed")
	}
}

func TestInvalidatePrefix(t *testing.T) {
	store, mr := newTestStore(t)
	ctx := context.Background()

	for i := 0; i < 35; i++ {
		store.Set(ctx, fmt.Sprintf("stations:search:{\"page\":%d}", i), i, time.Minute)
	}
	store.Set(ctx, "stations:availability:st-1", 1, time.Minute)
	store.Set(ctx, "slots:c1:2026-01-01", 1, time.Minute)

	deleted := store.InvalidatePrefix(ctx, "stations:search:")
	if deleted != 35 {
		t.Fatalf("expected 35 deleted keys, got %d", deleted)
	}

	var v int
	if store.Get(ctx, "stations:search:{\"page\":3}", &v) {
		t.Fatalf("expected miss after prefix invalidation")
	}
	if !store.Get(ctx, "stations:availability:st-1", &v) {
		t.Fatalf("unrelated key must survive")
	}
	if !mr.Exists("test:slots:c1:2026-01-01") {
		t.Fatalf("unrelated namespace key must survive")
	}
}

func TestInvalidatePrefixEscapesGlob(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	store.Set(ctx, "a*:1", 1, time.Minute)
	store.Set(ctx, "ab:1", 1, time.Minute)

	if n := store.InvalidatePrefix(ctx, "a*:"); n != 1 {
		t.Fatalf("expected only the literal prefix to match, deleted %d", n)
	}
	var v int
	if !store.Get(ctx, "ab:1", &v) {
		t.Fatalf("glob characters in prefix must be literal")
	}
}

func TestFailOpenWhenRedisDown(t *testing.T) {
	store, mr := newTestStore(t)
	ctx := context.Background()
	mr.Close()

	store.Set(ctx, "k", 1, time.Minute)
	var v int
	if store.Get(ctx, "k", &v) {
		t.Fatalf("expected miss when redis is down")
	}
	if n := store.InvalidatePrefix(ctx, "k"); n != 0 {
		t.Fatalf("expected no deletions when redis is down, got %d", n)
	}

	calls := 0
	got, err := Remember(ctx, store, "k", time.Minute, func(context.Context) (int, error) {
		calls++
		return 42, nil
	})
	if err != nil || got != 42 || calls != 1 {
		t.Fatalf("Remember must fall back to loader: got %d err %v calls %d", got, err, calls)
	}
}

func TestNilClientAlwaysMisses(t *testing.T) {
	store := New(nil, Options{}, nil)
	ctx := context.Background()
	store.Set(ctx, "k", 1, time.Minute)
	var v int
	if store.Get(ctx, "k", &v) || store.Enabled() {
		t.Fatalf("nil client store must be disabled")
	}
}

func TestRememberCachesOnlySuccess(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()
	boom := errors.New("boom")

	calls := 0
	load := func(context.Context) (string, error) {
		calls++
		if calls == 1 {
			return "", boom
		}
		return "value", nil
	}

	if _, err := Remember(ctx, store, "r", time.Minute, load); !errors.Is(err, boom) {
		t.Fatalf("expected loader error, got %v", err)
	}
	for i := 0; i < 3; i++ {
		got, err := Remember(ctx, store, "r", time.Minute, load)
		if err != nil || got != "value" {
			t.Fatalf("unexpected result %q %v", got, err)
		}
	}
	if calls != 2 {
		t.Fatalf("expected loader to run twice, ran %d times", calls)
	}
}

func TestRememberVersionedDropsFillRacingBump(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	state := []string{}
	load := func(context.Context) ([]string, error) {
		snapshot := append([]string(nil), state...)
		if len(state) == 0 {
			// a write commits and bumps after this reader loaded
			state = append(state, "r1")
			store.Bump(ctx, "slots:c1")
		}
		return snapshot, nil
	}

	first, err := RememberVersioned(ctx, store, "slots:c1", "slots:c1:2030-01-10", time.Minute, load)
	if err != nil || len(first) != 0 {
		t.Fatalf("first read must see the pre-write state, got %v %v", first, err)
	}
	second, err := RememberVersioned(ctx, store, "slots:c1", "slots:c1:2030-01-10", time.Minute, load)
	if err != nil || len(second) != 1 || second[0] != "r1" {
		t.Fatalf("racing fill must not be served after bump, got %v %v", second, err)
	}

	calls := 0
	counting := func(context.Context) ([]string, error) {
		calls++
		return state, nil
	}
	for i := 0; i < 2; i++ {
		if _, err := RememberVersioned(ctx, store, "slots:c1", "slots:c1:2030-01-10", time.Minute, counting); err != nil {
			t.Fatalf("unexpected error %v", err)
		}
	}
	if calls != 0 {
		t.Fatalf("current generation must be served from cache, loader ran %d times", calls)
	}
}

func TestRememberVersionedSkipsCacheWhenGenerationUnreadable(t *testing.T) {
	store, mr := newTestStore(t)
	ctx := context.Background()
	mr.Close()

	calls := 0
	for i := 0; i < 2; i++ {
		got, err := RememberVersioned(ctx, store, "s", "k", time.Minute, func(context.Context) (int, error) {
			calls++
			return 7, nil
		})
		if err != nil || got != 7 {
			t.Fatalf("unexpected result %d %v", got, err)
		}
	}
	if calls != 2 {
		t.Fatalf("expected loader on every call, ran %d times", calls)
	}
}

func TestKeyNormalization(t *testing.T) {
	lat := 52.52
	var nilPtr *float64

	a := Key("stations:search:", map[string]interface{}{
		"page":      1,
		"limit":     20,
		"city":      "Berlin",
		"operator":  "",
		"latitude":  &lat,
		"longitude": nilPtr,
		"types":     []string{},
	})
	b := Key("stations:search:", map[string]interface{}{
		"latitude": 52.52,
		"city":     " Berlin ",
		"limit":    20,
		"page":     1,
		"status":   nil,
	})
	if a != b {
		t.Fatalf("expected identical keys:\n%s\n%s", a, b)
	}

	c := Key("stations:search:", map[string]interface{}{"page": 2, "limit": 20, "city": "Berlin", "latitude": 52.52})
	if a == c {
		t.Fatalf("different pages must produce different keys")
	}
	if Key("p:", nil) != "p:{}" {
		t.Fatalf("unexpected key for empty params: %s", Key("p:", nil))
	}
}
