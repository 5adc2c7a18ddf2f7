// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package cache

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func setupBadgerCache(t *testing.T) *BadgerCache {
	t.Helper()
	c, err := NewBadgerCache(t.TempDir(), zerolog.Nop())
	if err != nil {
		t.Fatalf("failed to open badger cache: %v", err)
	}
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestBadgerCache_SetGet(t *testing.T) {
	cache := setupBadgerCache(t)

	cache.Set("test-key", "test-value", 5*time.Minute)

	val, found := cache.Get("test-key")
	if !found {
		t.Fatal("expected value to be found")
	}
	if val != "test-value" {
		t.Errorf("expected 'test-value', got %v", val)
	}

	stats := cache.Stats()
	if stats.Sets != 1 {
		t.Errorf("expected 1 set, got %d", stats.Sets)
	}
	if stats.Hits != 1 {
		t.Errorf("expected 1 hit, got %d", stats.Hits)
	}
}

func TestBadgerCache_GetMissing(t *testing.T) {
	cache := setupBadgerCache(t)

	val, found := cache.Get("nonexistent")
	if found {
		t.Error("expected value to not be found")
	}
	if val != nil {
		t.Errorf("expected nil value, got %v", val)
	}

	stats := cache.Stats()
	if stats.Misses != 1 {
		t.Errorf("expected 1 miss, got %d", stats.Misses)
	}
}

func TestBadgerCache_TTL(t *testing.T) {
	cache := setupBadgerCache(t)

	cache.Set("ttl-key", "ttl-value", 2*time.Second)

	val, found := cache.Get("ttl-key")
	if !found {
		t.Fatal("expected value to be found immediately")
	}
	if val != "ttl-value" {
		t.Errorf("expected 'ttl-value', got %v", val)
	}

	time.Sleep(3 * time.Second)

	_, found = cache.Get("ttl-key")
	if found {
		t.Error("expected value to be expired")
	}
}

func TestBadgerCache_Delete(t *testing.T) {
	cache := setupBadgerCache(t)

	cache.Set("delete-key", "delete-value", 5*time.Minute)

	_, found := cache.Get("delete-key")
	if !found {
		t.Fatal("expected value to exist before delete")
	}

	cache.Delete("delete-key")

	_, found = cache.Get("delete-key")
	if found {
		t.Error("expected value to be deleted")
	}
}

func TestBadgerCache_Clear(t *testing.T) {
	cache := setupBadgerCache(t)

	cache.Set("key1", "value1", 5*time.Minute)
	cache.Set("key2", "value2", 5*time.Minute)

	cache.Clear()

	_, found := cache.Get("key1")
	if found {
		t.Error("expected key1 to be cleared")
	}
	_, found = cache.Get("key2")
	if found {
		t.Error("expected key2 to be cleared")
	}
}

func TestBadgerCache_ComplexData(t *testing.T) {
	cache := setupBadgerCache(t)

	data := map[string]interface{}{
		"name":  "test",
		"count": float64(42),
		"items": []interface{}{"a", "b", "c"},
	}

	cache.Set("complex", data, 5*time.Minute)

	val, found := cache.Get("complex")
	if !found {
		t.Fatal("expected complex data to be found")
	}

	retrieved, ok := val.(map[string]interface{})
	if !ok {
		t.Fatalf("expected map, got %T", val)
	}
	if retrieved["name"] != "test" {
		t.Errorf("expected name='test', got %v", retrieved["name"])
	}
	if retrieved["count"] != float64(42) {
		t.Errorf("expected count=42, got %v", retrieved["count"])
	}
}
