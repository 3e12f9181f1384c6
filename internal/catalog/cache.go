// Package catalog holds the coffee list fetched once per application load.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog/log"
	"github.com/vasiliy-maslov/coffee-order/internal/api"
)

var ErrNotLoaded = errors.New("catalog: not loaded")

type Status int

const (
	StatusUninitialized Status = iota
	StatusLoading
	StatusResolved
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusUninitialized:
		return "uninitialized"
	case StatusLoading:
		return "loading"
	case StatusResolved:
		return "resolved"
	case StatusFailed:
		return "failed"
	default:
		return "unknown"
	}
}

type Item = api.Coffee

type Fetcher interface {
	Coffees(ctx context.Context) ([]api.Coffee, error)
}

type Cache struct {
	fetcher Fetcher

	mu      sync.RWMutex
	status  Status
	items   []Item
	index   map[api.CoffeeID]int
	lastErr error
	// done is closed when the in-flight (or last) attempt settles.
	done chan struct{}
}

func NewCache(fetcher Fetcher) *Cache {
	return &Cache{fetcher: fetcher}
}

// Load fetches the catalog unless it is already resolved or being fetched;
// concurrent callers share one request. A failed load may be retried by calling
// Load again.
func (c *Cache) Load(ctx context.Context) error {
	c.mu.Lock()
	switch c.status {
	case StatusResolved:
		c.mu.Unlock()
		return nil
	case StatusLoading:
		done := c.done
		c.mu.Unlock()
		return c.wait(ctx, done)
	}
	c.status = StatusLoading
	done := make(chan struct{})
	c.done = done
	c.mu.Unlock()

	coffees, err := c.fetcher.Coffees(ctx)

	c.mu.Lock()
	defer close(done)
	defer c.mu.Unlock()

	if err != nil {
		c.status = StatusFailed
		c.lastErr = err
		log.Error().Err(err).Msg("catalog: failed to load coffees")
		return fmt.Errorf("catalog: load: %w", err)
	}

	c.items = coffees
	c.index = make(map[api.CoffeeID]int, len(coffees))
	for i, item := range coffees {
		if _, dup := c.index[item.ID]; dup {
			log.Warn().Stringer("coffee_id", item.ID).Msg("catalog: duplicate id, keeping first")
			continue
		}
		c.index[item.ID] = i
	}
	c.status = StatusResolved
	c.lastErr = nil
	log.Info().Int("items", len(coffees)).Msg("catalog: loaded")
	return nil
}

// Wait blocks until the current load attempt settles or ctx is done.
func (c *Cache) Wait(ctx context.Context) error {
	c.mu.RLock()
	status, done := c.status, c.done
	c.mu.RUnlock()

	switch status {
	case StatusResolved:
		return nil
	case StatusUninitialized:
		return ErrNotLoaded
	}
	return c.wait(ctx, done)
}

func (c *Cache) wait(ctx context.Context, done chan struct{}) error {
	select {
	case <-done:
	case <-ctx.Done():
		return ctx.Err()
	}

	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.status == StatusResolved {
		return nil
	}
	if c.lastErr != nil {
		return fmt.Errorf("catalog: load: %w", c.lastErr)
	}
	return ErrNotLoaded
}

func (c *Cache) Status() Status {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.status
}

// Lookup resolves an id as carried by a path segment. Before the catalog
// resolves it always reports not found.
func (c *Cache) Lookup(rawID string) (Item, bool) {
	id := api.ParseCoffeeID(rawID)

	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.status != StatusResolved {
		return Item{}, false
	}
	i, ok := c.index[id]
	if !ok {
		return Item{}, false
	}
	return c.items[i], true
}

// Items returns the catalog in display order; nil until resolved.
func (c *Cache) Items() []Item {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.status != StatusResolved {
		return nil
	}
	return append([]Item(nil), c.items...)
}
