package shader

import (
	"os"
	"path/filepath"
	"testing"
)

func writeShader(t *testing.T, dir, name string, code []byte) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, code, 0o644); err != nil {
		t.Fatalf("write shader file: %v", err)
	}
	return path
}

func TestCacheLoadsOnce(t *testing.T) {
	dir := t.TempDir()
	path := writeShader(t, dir, "test.spv", []byte{1, 2, 3, 4})

	cache := NewCache()
	first, err := cache.Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	second, err := cache.Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if first != second {
		t.Error("Expected the same shader handle for repeated loads")
	}
	if cache.Len() != 1 {
		t.Errorf("Expected 1 cached shader, got %d", cache.Len())
	}
	if len(first.Code) != 4 || first.Code[0] != 1 {
		t.Errorf("Unexpected shader code %v", first.Code)
	}
	if first.Label == "" {
		t.Error("Expected a generated label")
	}
}

func TestCacheResolvesPathSpellings(t *testing.T) {
	dir := t.TempDir()
	writeShader(t, dir, "a.spv", []byte{9})

	cache := NewCache()
	direct, err := cache.Load(filepath.Join(dir, "a.spv"))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	dotted, err := cache.Load(filepath.Join(dir, ".", "a.spv"))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if direct != dotted {
		t.Error("Expected both spellings to hit one cache entry")
	}
}

func TestCacheMissingFile(t *testing.T) {
	cache := NewCache()
	if _, err := cache.Load(filepath.Join(t.TempDir(), "missing.spv")); err == nil {
		t.Error("Expected an error for a missing shader file")
	}
	if cache.Len() != 0 {
		t.Errorf("Failed loads must not populate the cache, got %d entries", cache.Len())
	}
}

func TestCacheClear(t *testing.T) {
	dir := t.TempDir()
	path := writeShader(t, dir, "b.spv", []byte{1})

	cache := NewCache()
	before, err := cache.Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	cache.Clear()
	if cache.Len() != 0 {
		t.Errorf("Expected an empty cache after Clear, got %d", cache.Len())
	}
	after, err := cache.Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if before == after {
		t.Error("Expected a fresh handle after Clear")
	}
}
