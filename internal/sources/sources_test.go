package sources

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"
)

func TestManager_ReadSourceCaches(t *testing.T) {
	path := filepath.Join(t.TempDir(), "common.hlsli")
	if err := os.WriteFile(path, []byte("float4 tint;\r\n"), 0644); err != nil {
		t.Fatal(err)
	}

	m := NewManager()
	for i := 0; i < 3; i++ {
		text, err := m.ReadSource(path)
		if err != nil {
			t.Fatalf("ReadSource failed: %v", err)
		}
		if text != "float4 tint;\n" {
			t.Errorf("unexpected text %q", text)
		}
	}

	hits, misses := m.Stats()
	if hits != 2 || misses != 1 {
		t.Errorf("expected 2 hits and 1 miss, got %d/%d", hits, misses)
	}
}

func TestManager_ReloadsChangedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "common.hlsli")
	if err := os.WriteFile(path, []byte("old"), 0644); err != nil {
		t.Fatal(err)
	}

	m := NewManager()
	if _, err := m.ReadSource(path); err != nil {
		t.Fatal(err)
	}

	if err := os.WriteFile(path, []byte("newer"), 0644); err != nil {
		t.Fatal(err)
	}
	later := time.Now().Add(time.Hour)
	if err := os.Chtimes(path, later, later); err != nil {
		t.Fatal(err)
	}

	text, err := m.ReadSource(path)
	if err != nil {
		t.Fatal(err)
	}
	if text != "newer" {
		t.Errorf("expected reloaded text, got %q", text)
	}
}

func TestManager_Missing(t *testing.T) {
	m := NewManager()
	_, err := m.ReadSource(filepath.Join(t.TempDir(), "nope.hlsli"))
	if !errors.Is(err, fs.ErrNotExist) {
		t.Errorf("expected not-exist error, got %v", err)
	}
}

func TestManager_Concurrent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "common.hlsli")
	if err := os.WriteFile(path, []byte("uint index;"), 0644); err != nil {
		t.Fatal(err)
	}

	m := NewManager()
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := m.ReadSource(path); err != nil {
				t.Error(err)
			}
		}()
	}
	wg.Wait()

	hits, misses := m.Stats()
	if hits+misses != 16 {
		t.Errorf("expected 16 lookups, got %d", hits+misses)
	}
}

func TestCache_Clear(t *testing.T) {
	c := NewCache()
	stamp := Stamp{Size: 3, ModTime: time.Unix(100, 0)}
	c.Set("a", stamp, "abc")

	if _, ok := c.Get("a", Stamp{Size: 4, ModTime: stamp.ModTime}); ok {
		t.Error("stale stamp should miss")
	}
	if text, ok := c.Get("a", stamp); !ok || text != "abc" {
		t.Errorf("expected hit, got %q %v", text, ok)
	}

	c.Clear()
	if c.Len() != 0 {
		t.Errorf("expected empty cache, got %d", c.Len())
	}
	if hits, misses := c.Stats(); hits != 0 || misses != 0 {
		t.Errorf("stats not reset: %d/%d", hits, misses)
	}
}
