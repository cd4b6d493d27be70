// Package shader caches compiled shader binaries by file path so pipelines
// sharing a stage share one loaded blob. The cache is an explicit object the
// caller owns; there is no process-wide instance.
package shader

import (
	"os"
	"path/filepath"
	"sync"

	"github.com/google/uuid"

	halarenderer "github.com/zhing2006/hala-renderer"
)

// Shader is one loaded shader binary. Handles returned by the cache are
// shared; callers must not mutate Code.
type Shader struct {
	Label string
	Path  string
	Code  []byte
}

// Cache loads each shader file at most once, keyed by resolved absolute
// path. Safe for concurrent use.
type Cache struct {
	mu      sync.Mutex
	shaders map[string]*Shader
}

func NewCache() *Cache {
	return &Cache{shaders: make(map[string]*Shader)}
}

// Load returns the cached shader for path, reading it from disk on first
// use. Relative paths are resolved against the working directory so two
// spellings of the same file share one entry.
func (c *Cache) Load(path string) (*Shader, error) {
	resolved, err := filepath.Abs(path)
	if err != nil {
		return nil, halarenderer.NewError("resolve shader path failed", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if s, ok := c.shaders[resolved]; ok {
		return s, nil
	}

	code, err := os.ReadFile(resolved)
	if err != nil {
		return nil, halarenderer.NewError("read shader file failed", err)
	}
	s := &Shader{
		Label: filepath.Base(resolved) + "." + uuid.NewString(),
		Path:  resolved,
		Code:  code,
	}
	c.shaders[resolved] = s
	return s, nil
}

// Len reports the number of distinct shaders loaded.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.shaders)
}

// Clear drops every cached shader. Outstanding handles stay valid; the
// blobs are immutable.
func (c *Cache) Clear() {
	c.mu.Lock()
	c.shaders = make(map[string]*Shader)
	c.mu.Unlock()
}
