// Package configres resolves per-retailer runtime settings through an
// explicit, ordered provider chain instead of ambient globals. The chain is
// injected wherever settings are read, so tests swap providers freely.
package configres

import (
	"context"
	"fmt"
	"strconv"
	"strings"
)

// KeyPrefix scopes dynamic-store keys owned by the candidate checker.
const KeyPrefix = "config:url_candidate"

// KeyFor builds the dynamic-store key for a retailer-scoped setting,
// e.g. "config:url_candidate:render_behavior:target".
func KeyFor(setting, slug string) string {
	return fmt.Sprintf("%s:%s:%s", KeyPrefix, setting, slug)
}

// Provider supplies one layer of setting values. A miss at one layer falls
// through to the next.
type Provider interface {
	Lookup(ctx context.Context, setting, slug string) (string, bool)
}

// Resolver walks its providers in order and returns the first non-empty
// value, or the fallback when every layer misses.
type Resolver struct {
	Providers []Provider
}

// Resolve returns the effective string value for a setting.
func (r *Resolver) Resolve(ctx context.Context, setting, slug, fallback string) string {
	if r == nil {
		return fallback
	}
	for _, p := range r.Providers {
		if p == nil {
			continue
		}
		if v, ok := p.Lookup(ctx, setting, slug); ok && strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return fallback
}

// ResolveBool parses the effective value as a boolean. Values that do not
// parse are skipped so a typo in one layer cannot mask the layer below it.
func (r *Resolver) ResolveBool(ctx context.Context, setting, slug string, fallback bool) bool {
	if r == nil {
		return fallback
	}
	for _, p := range r.Providers {
		if p == nil {
			continue
		}
		v, ok := p.Lookup(ctx, setting, slug)
		if !ok {
			continue
		}
		parsed, err := strconv.ParseBool(strings.TrimSpace(v))
		if err != nil {
			continue
		}
		return parsed
	}
	return fallback
}

// ResolvePositiveInt parses the effective value as a positive integer.
// Zero, negative, and unparsable values are skipped rather than honored.
func (r *Resolver) ResolvePositiveInt(ctx context.Context, setting, slug string, fallback int) int {
	if r == nil {
		return fallback
	}
	for _, p := range r.Providers {
		if p == nil {
			continue
		}
		v, ok := p.Lookup(ctx, setting, slug)
		if !ok {
			continue
		}
		parsed, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil || parsed <= 0 {
			continue
		}
		return parsed
	}
	return fallback
}

// SettingStore is the slice of the store the dynamic provider needs.
type SettingStore interface {
	GetDynamicConfig(ctx context.Context, key string) (string, bool, error)
}

// DynamicProvider reads settings from the mutable dynamic-config store.
// Store errors degrade to a miss so an unreachable store never blocks
// resolution.
type DynamicProvider struct {
	Store SettingStore
}

func (p *DynamicProvider) Lookup(ctx context.Context, setting, slug string) (string, bool) {
	if p == nil || p.Store == nil {
		return "", false
	}
	value, ok, err := p.Store.GetDynamicConfig(ctx, KeyFor(setting, slug))
	if err != nil || !ok {
		return "", false
	}
	return value, true
}

// StaticProvider serves environment-derived settings: per-retailer values
// first, then a setting-wide default.
type StaticProvider struct {
	PerRetailer map[string]map[string]string
	Defaults    map[string]string
}

func (p *StaticProvider) Lookup(ctx context.Context, setting, slug string) (string, bool) {
	if p == nil {
		return "", false
	}
	if bySlug, ok := p.PerRetailer[setting]; ok {
		if v, ok := bySlug[strings.ToLower(slug)]; ok && strings.TrimSpace(v) != "" {
			return v, true
		}
	}
	if v, ok := p.Defaults[setting]; ok && strings.TrimSpace(v) != "" {
		return v, true
	}
	return "", false
}

// Settings understood by the checker. Slugs extend these into full dynamic
// keys via KeyFor.
const (
	SettingBudget         = "budget"
	SettingBurst          = "burst"
	SettingRenderBehavior = "render_behavior"
	SettingSessionReuse   = "session_reuse"
)
