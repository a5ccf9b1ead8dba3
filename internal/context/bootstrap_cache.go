// Package context assembles the ordered list of chat messages sent to a
// provider for one turn: system prompt, active agent header, skill
// instructions, memory block, then the history window. See Assembler.
package context

import (
	"os"
	"sync"
	"time"
)

// BootstrapCache caches the contents of bootstrap files (SOUL.md,
// IDENTITY.md, AGENTS.md, ...) keyed by absolute path. A cache hit requires
// the stored mtime to equal the file's current mtime; otherwise the file is
// reloaded.
type BootstrapCache struct {
	mu      sync.Mutex
	entries map[string]bootstrapEntry

	// statFile is overridable in tests to avoid real filesystem timing.
	statFile func(path string) (time.Time, error)
	readFile func(path string) (string, error)
}

type bootstrapEntry struct {
	content string
	modTime time.Time
}

// NewBootstrapCache builds an empty cache backed by the real filesystem.
func NewBootstrapCache() *BootstrapCache {
	return &BootstrapCache{
		entries: make(map[string]bootstrapEntry),
		statFile: func(path string) (time.Time, error) {
			info, err := os.Stat(path)
			if err != nil {
				return time.Time{}, err
			}
			return info.ModTime(), nil
		},
		readFile: func(path string) (string, error) {
			data, err := os.ReadFile(path)
			if err != nil {
				return "", err
			}
			return string(data), nil
		},
	}
}

// Get returns the file's content, serving from cache when the file's mtime
// has not changed since the last load. Missing files return ("", nil) so
// callers can treat an absent bootstrap file as simply having no content.
func (c *BootstrapCache) Get(path string) (string, error) {
	mtime, err := c.statFile(path)
	if os.IsNotExist(err) {
		c.mu.Lock()
		delete(c.entries, path)
		c.mu.Unlock()
		return "", nil
	}
	if err != nil {
		return "", err
	}

	c.mu.Lock()
	entry, ok := c.entries[path]
	c.mu.Unlock()
	if ok && entry.modTime.Equal(mtime) {
		return entry.content, nil
	}

	content, err := c.readFile(path)
	if err != nil {
		return "", err
	}
	c.mu.Lock()
	c.entries[path] = bootstrapEntry{content: content, modTime: mtime}
	c.mu.Unlock()
	return content, nil
}

// Invalidate drops a single cached entry, forcing the next Get to reload.
func (c *BootstrapCache) Invalidate(path string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, path)
}
