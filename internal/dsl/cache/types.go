// Package cache holds the in-memory url to class map and the persisted
// module cache the factory compiles through.
package cache

import (
	"sync"

	"go.trai.ch/dslhost/internal/core/domain"
	"go.trai.ch/dslhost/internal/host/runtime"
	"go.trai.ch/zerr"
	"golang.org/x/sync/singleflight"
)

// TypeCache maps canonical script urls to the classes generated for them.
//
// Every Remove advances a generation counter and stamps the url with it. A
// load only caches the urls not removed since it started, so an eviction
// racing with an in-flight compile is never undone by its result.
type TypeCache struct {
	mu      sync.RWMutex
	types   map[domain.ScriptURL]*runtime.Class
	gen     uint64
	removed map[domain.ScriptURL]uint64
	loading int

	group singleflight.Group
}

// NewTypeCache returns an empty cache.
func NewTypeCache() *TypeCache {
	return &TypeCache{
		types:   make(map[domain.ScriptURL]*runtime.Class),
		removed: make(map[domain.ScriptURL]uint64),
	}
}

// Get returns the class cached for url.
func (c *TypeCache) Get(url string) (*runtime.Class, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	cls, ok := c.types[domain.NewScriptURL(url)]
	return cls, ok
}

// Set caches cls for url.
func (c *TypeCache) Set(url string, cls *runtime.Class) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.types[domain.NewScriptURL(url)] = cls
}

// Remove evicts url and reports whether it was cached. A load in flight
// for url or any batch containing it will not cache url.
func (c *TypeCache) Remove(url string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	key := domain.NewScriptURL(url)
	_, ok := c.types[key]
	delete(c.types, key)
	if c.loading > 0 {
		c.gen++
		c.removed[key] = c.gen
	}
	return ok
}

// Len returns the number of cached urls.
func (c *TypeCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.types)
}

// Load returns the class cached for url. On a miss load runs once for all
// concurrent callers asking for url, and every class it returns is cached
// under a single write lock. The cache is checked again before load runs,
// so a caller that lost the race never compiles. Urls removed while load
// ran are returned to the callers but not cached.
func (c *TypeCache) Load(url string, load func() (map[string]*runtime.Class, error)) (*runtime.Class, error) {
	if cls, ok := c.Get(url); ok {
		return cls, nil
	}

	v, err, _ := c.group.Do(url, func() (any, error) {
		c.mu.Lock()
		if cls, ok := c.types[domain.NewScriptURL(url)]; ok {
			c.mu.Unlock()
			return cls, nil
		}
		start := c.gen
		c.loading++
		c.mu.Unlock()

		batch, err := load()

		c.mu.Lock()
		defer c.mu.Unlock()
		defer c.done()
		if err != nil {
			return nil, err
		}
		cls, ok := batch[url]
		if !ok {
			return nil, zerr.With(zerr.Wrap(domain.ErrMissingGeneratedType, url), "url", url)
		}
		for u, t := range batch {
			key := domain.NewScriptURL(u)
			if c.removed[key] > start {
				continue
			}
			c.types[key] = t
		}
		return cls, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*runtime.Class), nil
}

// done must be called with mu held when a load finishes.
func (c *TypeCache) done() {
	c.loading--
	if c.loading == 0 {
		clear(c.removed)
	}
}
