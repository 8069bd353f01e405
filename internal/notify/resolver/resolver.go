package resolver

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"backoffice/internal/types"
)

// BindingSource is the subset of the binding repository the resolver needs.
type BindingSource interface {
	FindByEventCode(ctx context.Context, code string) (*types.ChannelBinding, error)
	FindByTemplate(ctx context.Context, tenantID int64, templateID int64) (*types.ChannelBinding, error)
}

type cacheEntry struct {
	binding *types.ChannelBinding
	expires time.Time
}

// Resolver answers "which channels and receivers does this event or
// template map to" through a read-through cache over the binding store.
// Entries expire after a fixed TTL and can be evicted early through the
// Invalidate hooks. Concurrent misses for the same key are collapsed
// into a single store lookup.
//
// A nil binding is a valid, cached answer: it means the key is not
// configured for delivery and the caller should skip, not fail.
type Resolver struct {
	source BindingSource
	ttl    time.Duration
	logger types.Logger
	clock  func() time.Time

	mu      sync.RWMutex
	entries map[string]cacheEntry
	group   singleflight.Group
}

// NewResolver creates a Resolver over source with the given entry TTL.
func NewResolver(source BindingSource, ttl time.Duration, logger types.Logger) *Resolver {
	return &Resolver{
		source:  source,
		ttl:     ttl,
		logger:  logger,
		clock:   time.Now,
		entries: make(map[string]cacheEntry),
	}
}

func eventKey(code string) string {
	return "code:" + code
}

func templateKey(tenantID, templateID int64) string {
	return "tpl:" + strconv.FormatInt(tenantID, 10) + ":" + strconv.FormatInt(templateID, 10)
}

// ResolveByEventCode returns the binding for a platform event code, or
// nil when the code is not configured or the binding is disabled.
func (r *Resolver) ResolveByEventCode(ctx context.Context, code string) (*types.ChannelBinding, error) {
	return r.resolve(ctx, eventKey(code), func(ctx context.Context) (*types.ChannelBinding, error) {
		return r.source.FindByEventCode(ctx, code)
	})
}

// ResolveByTemplate returns the binding for a tenant's template, or nil
// when no enabled binding exists.
func (r *Resolver) ResolveByTemplate(ctx context.Context, tenantID, templateID int64) (*types.ChannelBinding, error) {
	return r.resolve(ctx, templateKey(tenantID, templateID), func(ctx context.Context) (*types.ChannelBinding, error) {
		return r.source.FindByTemplate(ctx, tenantID, templateID)
	})
}

// InvalidateEventCode drops the cached entry for an event code.
func (r *Resolver) InvalidateEventCode(code string) {
	r.invalidate(eventKey(code))
}

// InvalidateTemplate drops the cached entry for a tenant template.
func (r *Resolver) InvalidateTemplate(tenantID, templateID int64) {
	r.invalidate(templateKey(tenantID, templateID))
}

func (r *Resolver) invalidate(key string) {
	r.mu.Lock()
	delete(r.entries, key)
	r.mu.Unlock()
}

func (r *Resolver) resolve(ctx context.Context, key string, fetch func(context.Context) (*types.ChannelBinding, error)) (*types.ChannelBinding, error) {
	now := r.clock()

	r.mu.RLock()
	entry, ok := r.entries[key]
	r.mu.RUnlock()
	if ok && now.Before(entry.expires) {
		return entry.binding, nil
	}

	v, err, _ := r.group.Do(key, func() (any, error) {
		binding, err := fetch(ctx)
		if err != nil {
			return nil, fmt.Errorf("resolving binding %s: %w", key, err)
		}
		if binding != nil && !binding.Enabled {
			binding = nil
		}
		r.mu.Lock()
		r.entries[key] = cacheEntry{binding: binding, expires: r.clock().Add(r.ttl)}
		r.mu.Unlock()
		return binding, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*types.ChannelBinding), nil
}
