// Package sources handles shader source loading and caching.
//
// Batch builds parse many shaders that include the same headers; a shared
// Manager reads and decodes each header once per modification.
package sources

import (
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/Faultbox/shaderc/pkg/encoding"
	"github.com/Faultbox/shaderc/pkg/shader/parser"
)

// Manager loads decoded source text from disk through a Cache.
// It is safe for concurrent use.
type Manager struct {
	cache *Cache
}

var _ parser.FileReader = (*Manager)(nil)

// NewManager creates a new source manager.
func NewManager() *Manager {
	return &Manager{
		cache: NewCache(),
	}
}

// ReadSource returns the UTF-8 text of path. A cached copy is used while the
// file's size and modification time are unchanged.
func (m *Manager) ReadSource(path string) (string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return "", err
	}
	stamp := Stamp{Size: info.Size(), ModTime: info.ModTime()}

	// Check cache first
	if text, ok := m.cache.Get(path, stamp); ok {
		return text, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	text, err := encoding.DecodeSource(data)
	if err != nil {
		return "", fmt.Errorf("decoding %s: %w", path, err)
	}

	m.cache.Set(path, stamp, text)
	return text, nil
}

// Stats returns cache statistics.
func (m *Manager) Stats() (hits, misses int) {
	return m.cache.Stats()
}

// Close drops all cached sources.
func (m *Manager) Close() {
	m.cache.Clear()
}

// Stamp identifies one version of a file.
type Stamp struct {
	Size    int64
	ModTime time.Time
}

type entry struct {
	stamp Stamp
	text  string
}

// Cache is a simple in-memory cache of decoded sources.
type Cache struct {
	data map[string]entry
	mu   sync.Mutex

	// Stats
	hits   int
	misses int
}

// NewCache creates a new cache.
func NewCache() *Cache {
	return &Cache{
		data: make(map[string]entry),
	}
}

// Get retrieves an item from cache if it was stored with the same stamp.
func (c *Cache) Get(key string, stamp Stamp) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.data[key]
	if ok && e.stamp.Size == stamp.Size && e.stamp.ModTime.Equal(stamp.ModTime) {
		c.hits++
		return e.text, true
	}
	c.misses++
	return "", false
}

// Set stores an item in cache.
func (c *Cache) Set(key string, stamp Stamp, text string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[key] = entry{stamp: stamp, text: text}
}

// Len returns the number of cached files.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.data)
}

// Clear clears the cache.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data = make(map[string]entry)
	c.hits = 0
	c.misses = 0
}

// Stats returns cache statistics.
func (c *Cache) Stats() (hits, misses int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.hits, c.misses
}
