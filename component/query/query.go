package query

import (
	"context"
	"sync"
	"time"

	"github.com/Dreamacro/clash-dashboard/log"

	"github.com/patrickmn/go-cache"
	"go.uber.org/atomic"
	"golang.org/x/sync/singleflight"
)

const defaultCacheTime = 5 * time.Minute

// Func loads the data of a query
type Func func(ctx context.Context) (interface{}, error)

// Result is a snapshot of a query entry.
// Data is the last successful result, Err the error of the last fetch.
type Result struct {
	Data       interface{}
	Err        error
	IsFetching bool
	UpdatedAt  time.Time
}

type entry struct {
	key      Key
	fetching *atomic.Bool

	mux         sync.RWMutex
	data        interface{}
	hasData     bool
	err         error
	updatedAt   time.Time
	invalidated bool
	version     uint64
}

func (e *entry) result() Result {
	e.mux.RLock()
	defer e.mux.RUnlock()
	return Result{
		Data:       e.data,
		Err:        e.err,
		IsFetching: e.fetching.Load(),
		UpdatedAt:  e.updatedAt,
	}
}

func (e *entry) invalidate() {
	e.mux.Lock()
	e.invalidated = true
	e.version++
	e.mux.Unlock()
}

// update stores a fetch result. An invalidation that raced with the
// fetch (version moved) leaves the entry stale.
func (e *entry) update(data interface{}, err error, version uint64) {
	e.mux.Lock()
	defer e.mux.Unlock()

	if err != nil {
		e.err = err
		return
	}

	e.data = data
	e.hasData = true
	e.err = nil
	e.updatedAt = time.Now()
	e.invalidated = e.version != version
}

type Option func(*Client)

// WithStaleTime makes entries stale d after their last successful fetch.
// Zero keeps entries fresh until they are invalidated.
func WithStaleTime(d time.Duration) Option {
	return func(c *Client) {
		c.staleTime = d
	}
}

// WithCacheTime drops entries that have not been queried for d
func WithCacheTime(d time.Duration) Option {
	return func(c *Client) {
		c.cacheTime = d
	}
}

// Client is a keyed query cache with prefix invalidation
type Client struct {
	entries   *cache.Cache
	group     singleflight.Group
	staleTime time.Duration
	cacheTime time.Duration
	metrics   *metrics

	ctx    context.Context
	cancel context.CancelFunc
}

func New(options ...Option) *Client {
	c := &Client{
		cacheTime: defaultCacheTime,
	}
	for _, option := range options {
		option(c)
	}

	expiration, cleanup := c.cacheTime, c.cacheTime
	if expiration <= 0 {
		expiration, cleanup = cache.NoExpiration, 0
	}
	c.entries = cache.New(expiration, cleanup)
	c.metrics = newMetrics(func() float64 { return float64(c.entries.ItemCount()) })
	c.ctx, c.cancel = context.WithCancel(context.Background())
	return c
}

// Query returns the cached result of key and fetches it with fn when needed.
// An empty entry is fetched before Query returns. A stale entry is returned
// as is with IsFetching set while it is refetched in the background.
func (c *Client) Query(ctx context.Context, key Key, fn Func) Result {
	c.metrics.queryTotal.Inc()
	e := c.loadEntry(key)

	e.mux.RLock()
	hasData, stale := e.hasData, c.isStale(e)
	e.mux.RUnlock()

	switch {
	case hasData && !stale:
		return e.result()
	case hasData:
		e.fetching.Store(true)
		go c.fetch(c.ctx, e, fn)
		return e.result()
	}

	if err := c.fetch(ctx, e, fn); err != nil {
		r := e.result()
		if r.Err == nil {
			r.Err = err
		}
		return r
	}
	return e.result()
}

// GetData returns the cached data of key without fetching
func (c *Client) GetData(key Key) (interface{}, bool) {
	v, ok := c.entries.Get(key.String())
	if !ok {
		return nil, false
	}
	e := v.(*entry)
	e.mux.RLock()
	defer e.mux.RUnlock()
	return e.data, e.hasData
}

// Invalidate marks every entry under prefix as stale and returns how many
// entries were hit. The next Query of such an entry refetches it.
func (c *Client) Invalidate(prefix Key) int {
	n := 0
	for _, item := range c.entries.Items() {
		e := item.Object.(*entry)
		if e.key.HasPrefix(prefix) {
			e.invalidate()
			n++
		}
	}
	c.metrics.invalidateTotal.Add(float64(n))
	log.Debugln("[Query] invalidate %v: %d entries", []string(prefix), n)
	return n
}

// Close stops background fetches
func (c *Client) Close() {
	c.cancel()
}

func (c *Client) isStale(e *entry) bool {
	if e.invalidated {
		return true
	}
	return c.staleTime > 0 && time.Since(e.updatedAt) > c.staleTime
}

func (c *Client) loadEntry(key Key) *entry {
	k := key.String()
	if v, ok := c.entries.Get(k); ok {
		// touch, so the entry outlives cacheTime while in use
		c.entries.SetDefault(k, v)
		return v.(*entry)
	}

	e := &entry{key: key.Copy(), fetching: atomic.NewBool(false)}
	if err := c.entries.Add(k, e, cache.DefaultExpiration); err != nil {
		if v, ok := c.entries.Get(k); ok {
			return v.(*entry)
		}
		c.entries.SetDefault(k, e)
	}
	return e
}

// fetch runs fn once per key at a time. The shared fetch is bound to the
// client lifetime, ctx only bounds how long this caller waits for it.
func (c *Client) fetch(ctx context.Context, e *entry, fn Func) error {
	ch := c.group.DoChan(e.key.String(), func() (interface{}, error) {
		e.fetching.Store(true)
		defer e.fetching.Store(false)

		e.mux.RLock()
		version := e.version
		e.mux.RUnlock()

		c.metrics.fetchTotal.Inc()
		data, err := fn(c.ctx)
		if err != nil {
			c.metrics.fetchErrorTotal.Inc()
			log.Warnln("[Query] fetch %v failed: %s", []string(e.key), err.Error())
		}
		e.update(data, err, version)
		return nil, nil
	})

	select {
	case <-ch:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
