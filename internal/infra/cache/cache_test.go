package cache_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/boddenberg/farma-crm-bfa-go/internal/domain"
	"github.com/boddenberg/farma-crm-bfa-go/internal/infra/cache"
)

func TestCache_SetAndGet(t *testing.T) {
	c := cache.New[[]domain.Series](5 * time.Minute)
	defer c.Close()

	c.Set("daily", []domain.Series{{Name: "Seg", Value: 3}})
	val, ok := c.Get("daily")
	if !ok {
		t.Fatal("expected key to exist")
	}
	if len(val) != 1 || val[0].Value != 3 {
		t.Errorf("unexpected cached series: %+v", val)
	}
}

func TestCache_GetMiss(t *testing.T) {
	c := cache.New[string](5 * time.Minute)
	defer c.Close()

	if _, ok := c.Get("nonexistent"); ok {
		t.Fatal("expected cache miss for nonexistent key")
	}
}

func TestCache_Expiration(t *testing.T) {
	c := cache.New[string](50 * time.Millisecond)
	defer c.Close()

	c.Set("key1", "value1")
	time.Sleep(100 * time.Millisecond)

	if _, ok := c.Get("key1"); ok {
		t.Fatal("expected cache entry to be expired")
	}
}

func TestCache_GetOrLoad(t *testing.T) {
	c := cache.New[int](5 * time.Minute)
	defer c.Close()

	calls := 0
	load := func(context.Context) (int, error) {
		calls++
		return 42, nil
	}

	v, hit, err := c.GetOrLoad(context.Background(), "k", load)
	if err != nil || hit || v != 42 {
		t.Fatalf("first load: v=%d hit=%v err=%v", v, hit, err)
	}
	v, hit, err = c.GetOrLoad(context.Background(), "k", load)
	if err != nil || !hit || v != 42 {
		t.Fatalf("second load: v=%d hit=%v err=%v", v, hit, err)
	}
	if calls != 1 {
		t.Errorf("expected loader to run once, ran %d times", calls)
	}
}

func TestCache_GetOrLoadDoesNotCacheErrors(t *testing.T) {
	c := cache.New[int](5 * time.Minute)
	defer c.Close()

	_, _, err := c.GetOrLoad(context.Background(), "k", func(context.Context) (int, error) {
		return 0, errors.New("view unavailable")
	})
	if err == nil {
		t.Fatal("expected loader error")
	}
	if _, ok := c.Get("k"); ok {
		t.Fatal("expected error result not to be cached")
	}
	c.Close() // idempotent
}
