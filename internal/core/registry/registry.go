// Package registry caches the retailer table for the hot lookup paths. The
// checker resolves a retailer per candidate, so lookups must not hit the
// store each time; the cache loads once and refreshes only on request.
package registry

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/stocklens/stocklens/internal/core"
)

// ErrUnknownRetailer marks lookups for retailers absent from the registry.
var ErrUnknownRetailer = errors.New("unknown retailer")

// Store is the slice of the store the registry reads from.
type Store interface {
	ListRetailers(ctx context.Context) ([]core.RetailerProfile, error)
}

// Registry memoizes retailer profiles by id and slug.
type Registry struct {
	Store Store

	mu     sync.RWMutex
	byID   map[int64]core.RetailerProfile
	bySlug map[string]core.RetailerProfile
	loaded bool
}

// Refresh reloads the cache from the store, replacing the previous snapshot
// wholesale.
func (r *Registry) Refresh(ctx context.Context) error {
	if r == nil || r.Store == nil {
		return errors.New("registry store is not configured")
	}

	profiles, err := r.Store.ListRetailers(ctx)
	if err != nil {
		return fmt.Errorf("refresh registry: %w", err)
	}

	byID := make(map[int64]core.RetailerProfile, len(profiles))
	bySlug := make(map[string]core.RetailerProfile, len(profiles))
	for _, profile := range profiles {
		byID[profile.ID] = profile
		bySlug[strings.ToLower(profile.Slug)] = profile
	}

	r.mu.Lock()
	r.byID = byID
	r.bySlug = bySlug
	r.loaded = true
	r.mu.Unlock()

	return nil
}

func (r *Registry) ensureLoaded(ctx context.Context) error {
	r.mu.RLock()
	loaded := r.loaded
	r.mu.RUnlock()
	if loaded {
		return nil
	}
	return r.Refresh(ctx)
}

// ByID returns the cached profile for a retailer id.
func (r *Registry) ByID(ctx context.Context, id int64) (*core.RetailerProfile, error) {
	if r == nil {
		return nil, errors.New("registry is not initialized")
	}
	if err := r.ensureLoaded(ctx); err != nil {
		return nil, err
	}

	r.mu.RLock()
	profile, ok := r.byID[id]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("retailer id %d: %w", id, ErrUnknownRetailer)
	}

	copied := profile
	return &copied, nil
}

// BySlug returns the cached profile for a retailer slug.
func (r *Registry) BySlug(ctx context.Context, slug string) (*core.RetailerProfile, error) {
	if r == nil {
		return nil, errors.New("registry is not initialized")
	}
	if err := r.ensureLoaded(ctx); err != nil {
		return nil, err
	}

	needle := strings.ToLower(strings.TrimSpace(slug))
	r.mu.RLock()
	profile, ok := r.bySlug[needle]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("retailer %q: %w", slug, ErrUnknownRetailer)
	}

	copied := profile
	return &copied, nil
}

// Active returns the cached profiles with the active flag set, sorted as
// loaded.
func (r *Registry) Active(ctx context.Context) ([]core.RetailerProfile, error) {
	if r == nil {
		return nil, errors.New("registry is not initialized")
	}
	if err := r.ensureLoaded(ctx); err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	var active []core.RetailerProfile
	for _, profile := range r.byID {
		if profile.Active {
			active = append(active, profile)
		}
	}
	return active, nil
}
