package cache

import (
	"context"
	"errors"
	"sync"

	"go.trai.ch/dslhost/internal/core/domain"
	"go.trai.ch/dslhost/internal/core/ports"
	"go.trai.ch/dslhost/internal/dsl/engine"
	"go.trai.ch/dslhost/internal/host/compiler"
	"go.trai.ch/dslhost/internal/host/runtime"
	"go.trai.ch/zerr"
	"golang.org/x/sync/singleflight"
)

// LoadedFunc observes every module the cache loads. fromCache is true when
// the module was read from disk and false when it was compiled.
type LoadedFunc func(key string, mod *runtime.Module, fromCache bool)

// ModuleCache compiles batches through a persisted module store. A batch
// is identified by the checksum its engine's storage computes, so an
// unchanged batch is compiled once and then read from disk in later runs.
type ModuleCache struct {
	store  ports.ModuleStore
	logger ports.Logger

	mu        sync.RWMutex
	loaded    map[string]*engine.Result
	observers []LoadedFunc

	group singleflight.Group
}

// NewModuleCache returns a cache persisting modules in store.
func NewModuleCache(store ports.ModuleStore, logger ports.Logger) *ModuleCache {
	if logger == nil {
		logger = ports.NopLogger{}
	}
	return &ModuleCache{
		store:  store,
		logger: logger,
		loaded: make(map[string]*engine.Result),
	}
}

// OnModuleLoaded registers fn to run after every load.
func (c *ModuleCache) OnModuleLoaded(fn LoadedFunc) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.observers = append(c.observers, fn)
}

// Get returns the compiled batch for urls. A key is loaded or compiled at
// most once per cache; later calls return the same result.
func (c *ModuleCache) Get(ctx context.Context, e *engine.Engine, urls []string) (*engine.Result, error) {
	key, err := e.Storage().ChecksumForURLs(e.Name(), urls)
	if err != nil {
		return nil, zerr.Wrap(err, "failed to compute module key")
	}
	if res, ok := c.lookup(key); ok {
		return res, nil
	}

	v, err, _ := c.group.Do(key, func() (any, error) {
		if res, ok := c.lookup(key); ok {
			return res, nil
		}

		res, fromCache, err := c.load(ctx, e, key, urls)
		if err != nil {
			return nil, err
		}

		c.mu.Lock()
		c.loaded[key] = res
		observers := c.observers
		c.mu.Unlock()

		for _, fn := range observers {
			fn(key, res.Module, fromCache)
		}
		return res, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*engine.Result), nil
}

func (c *ModuleCache) lookup(key string) (*engine.Result, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	res, ok := c.loaded[key]
	return res, ok
}

func (c *ModuleCache) load(ctx context.Context, e *engine.Engine, key string, urls []string) (*engine.Result, bool, error) {
	if c.store.Exists(key) {
		data, err := c.store.Read(key)
		if err != nil {
			return nil, false, err
		}

		res, err := e.Load(data, urls)
		switch {
		case err == nil:
			c.logger.Debug("loaded module " + key)
			return res, true, nil
		case errors.Is(err, domain.ErrCorruptModule):
			c.logger.Warn("discarding corrupt module " + c.store.Path(key))
			if err := c.store.Remove(key); err != nil {
				return nil, false, err
			}
		case errors.Is(err, compiler.ErrMissingReference):
			c.logger.Debug("recompiling module " + key + ": " + err.Error())
		default:
			return nil, false, zerr.With(err, "key", key)
		}
	}

	res, err := e.ForceCompile(ctx, urls, c.store.Path(key))
	if err != nil {
		return nil, false, err
	}
	c.logger.Debug("compiled module " + key)
	return res, false, nil
}
