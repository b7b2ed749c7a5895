// Package cache provides the content-addressed store of parsed provider results.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"

	"golang.org/x/sync/singleflight"

	"gameforge/pkg/logx"
	"gameforge/pkg/metrics"
)

// ErrMiss is returned by Store.Get when no entry exists.
var ErrMiss = errors.New("cache miss")

// Entry is one write-once cached result.
type Entry struct {
	Fingerprint string
	Response    json.RawMessage
	Model       string
}

// Store is the durable side of the cache. Put must ignore conflicts.
type Store interface {
	GetCacheEntry(ctx context.Context, fingerprint string) (*Entry, error)
	PutCacheEntry(ctx context.Context, entry Entry) error
}

// Fingerprint is the hex sha256 of the instructions followed by the input.
func Fingerprint(instructions, input string) string {
	h := sha256.New()
	h.Write([]byte(instructions))
	h.Write([]byte(input))
	return hex.EncodeToString(h.Sum(nil))
}

// Cache fronts a Store and collapses concurrent misses for one fingerprint
// into a single computation.
type Cache struct {
	store    Store
	group    singleflight.Group
	recorder metrics.Recorder
	logger   *logx.Logger
}

func New(store Store, recorder metrics.Recorder) *Cache {
	if recorder == nil {
		recorder = metrics.Nop()
	}
	return &Cache{
		store:    store,
		recorder: recorder,
		logger:   logx.NewLogger("cache"),
	}
}

// Get returns the cached entry or ErrMiss.
func (c *Cache) Get(ctx context.Context, fingerprint string) (*Entry, error) {
	entry, err := c.store.GetCacheEntry(ctx, fingerprint)
	switch {
	case err == nil:
		c.recorder.ObserveCacheLookup(true)
		return entry, nil
	case errors.Is(err, ErrMiss):
		c.recorder.ObserveCacheLookup(false)
		return nil, ErrMiss
	default:
		return nil, fmt.Errorf("cache lookup %s: %w", short(fingerprint), err)
	}
}

// Put writes entry if absent. A failed write is logged, not returned: the
// result is already valid for the caller.
func (c *Cache) Put(ctx context.Context, entry Entry) {
	if err := c.store.PutCacheEntry(ctx, entry); err != nil {
		c.logger.Warn("cache write for %s failed: %v", short(entry.Fingerprint), err)
	}
}

// Compute is the miss path: it produces the response JSON and the model that made it.
type Compute func(ctx context.Context) (json.RawMessage, string, error)

// flight is the shared result of one singleflight call.
type flight struct {
	raw json.RawMessage
	hit bool
}

// Do returns the cached response for fingerprint, or runs compute once across
// all concurrent callers, stores its result and returns it. hit reports
// whether the result came from the store.
//
// The shared computation runs detached from every caller's cancellation. A
// caller whose ctx is done stops waiting and gets ctx.Err(); the others still
// receive the result.
func (c *Cache) Do(ctx context.Context, fingerprint string, compute Compute) (response json.RawMessage, hit bool, err error) {
	if entry, err := c.Get(ctx, fingerprint); err == nil {
		return entry.Response, true, nil
	} else if !errors.Is(err, ErrMiss) {
		return nil, false, err
	}

	fctx := context.WithoutCancel(ctx)
	ch := c.group.DoChan(fingerprint, func() (any, error) {
		// A concurrent flight may have just finished.
		if entry, err := c.store.GetCacheEntry(fctx, fingerprint); err == nil {
			c.recorder.ObserveCacheLookup(true)
			return flight{raw: entry.Response, hit: true}, nil
		}
		raw, model, err := compute(fctx)
		if err != nil {
			return nil, err
		}
		c.Put(fctx, Entry{Fingerprint: fingerprint, Response: raw, Model: model})
		return flight{raw: raw}, nil
	})

	select {
	case <-ctx.Done():
		return nil, false, fmt.Errorf("waiting for %s: %w", short(fingerprint), ctx.Err())
	case res := <-ch:
		if res.Err != nil {
			return nil, false, res.Err //nolint:wrapcheck // compute errors are already classified
		}
		f := res.Val.(flight)
		return f.raw, f.hit, nil
	}
}

func short(fp string) string {
	if len(fp) > 12 {
		return fp[:12]
	}
	return fp
}
