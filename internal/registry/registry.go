// Package registry provides the process-wide catalogue of voice providers.
//
// Providers register under their descriptor name. At request time the
// registry resolves a provider with a fixed fallback policy: the explicitly
// requested provider first, the configured default second, the configured
// fallback chain third, and finally any remaining available provider in
// registration order — callers never observe total failure while any
// provider is usable.
//
// A provider being registered is distinct from it being available: lookup
// methods re-check ValidateConfiguration on every call, so a provider whose
// credentials appear (or disappear) at runtime changes availability without
// re-registration.
//
// Registry is safe for concurrent use.
package registry

import (
	"log/slog"
	"os"
	"slices"
	"strings"
	"sync"

	"github.com/fablecast/fablecast/pkg/provider/voice"
)

// Environment variables consumed by [NewFromEnv].
const (
	// EnvDefaultProvider names the default voice provider.
	EnvDefaultProvider = "DEFAULT_VOICE_PROVIDER"

	// EnvFallbackChain is a comma-separated ordered list of fallback
	// provider names. May be empty and may repeat the default.
	EnvFallbackChain = "VOICE_PROVIDER_FALLBACK"
)

// Config carries the resolution policy the registry is constructed with.
type Config struct {
	// DefaultProvider is the provider used when a lookup names none.
	DefaultProvider string

	// FallbackChain is the ordered list of provider names tried after the
	// requested provider and the default. Empty is valid.
	FallbackChain []string
}

// Registry is the catalogue of registered [voice.Provider] instances.
type Registry struct {
	cfg Config

	mu           sync.RWMutex
	providers    map[string]voice.Provider
	order        []string // registration order, for the best-effort walk
	defaultName  string
	fallbackList []string
}

// New creates a Registry with the given resolution policy.
func New(cfg Config) *Registry {
	return &Registry{
		cfg:          cfg,
		providers:    make(map[string]voice.Provider),
		defaultName:  cfg.DefaultProvider,
		fallbackList: slices.Clone(cfg.FallbackChain),
	}
}

// NewFromEnv creates a Registry configured from the environment:
// DEFAULT_VOICE_PROVIDER and VOICE_PROVIDER_FALLBACK (comma-separated).
func NewFromEnv() *Registry {
	return New(Config{
		DefaultProvider: strings.TrimSpace(os.Getenv(EnvDefaultProvider)),
		FallbackChain:   ParseFallbackChain(os.Getenv(EnvFallbackChain)),
	})
}

// ParseFallbackChain splits a comma-separated provider list, trimming
// whitespace and dropping empty entries. An empty input yields nil.
func ParseFallbackChain(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// Register stores p keyed by its descriptor name. A provider already
// registered under that name is replaced, which is logged but is not an
// error. The provider's configuration is probed once so operators see
// misconfigured registrations early, but a failing probe does not block
// registration — the provider is simply skipped by availability queries.
// Register never fails.
func (r *Registry) Register(p voice.Provider) {
	name := p.Descriptor().Name

	// Probe outside the lock; validation may touch provider-internal state.
	if !p.ValidateConfiguration() {
		slog.Warn("voice provider registered but not currently available",
			"provider", name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.providers[name]; exists {
		slog.Info("replacing registered voice provider", "provider", name)
	} else {
		r.order = append(r.order, name)
	}
	r.providers[name] = p
}

// Unregister removes the named provider and reports whether it was present.
func (r *Registry) Unregister(name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.providers[name]; !ok {
		return false
	}
	delete(r.providers, name)
	if i := slices.Index(r.order, name); i >= 0 {
		r.order = slices.Delete(r.order, i, i+1)
	}
	return true
}

// Get returns the named provider, or the default provider when name is
// empty. The provider is returned only if its configuration currently
// validates; a registered-but-unavailable provider yields (nil, false).
func (r *Registry) Get(name string) (voice.Provider, bool) {
	r.mu.RLock()
	if name == "" {
		name = r.defaultName
	}
	p, ok := r.providers[name]
	r.mu.RUnlock()

	if !ok || !p.ValidateConfiguration() {
		return nil, false
	}
	return p, true
}

// GetWithFallback resolves a usable provider in policy order:
//
//  1. the explicitly requested provider, if available;
//  2. the configured default, if available and not already tried;
//  3. each fallback chain entry in order, skipping unavailable entries and
//     duplicates already tried;
//  4. any remaining available provider, in registration order.
//
// Explicit intent first, configured preference second, configured resilience
// third, best effort last. Returns (nil, false) only when no registered
// provider is available at all.
func (r *Registry) GetWithFallback(name string) (voice.Provider, bool) {
	r.mu.RLock()
	candidates := make([]string, 0, 2+len(r.fallbackList)+len(r.order))
	if name != "" {
		candidates = append(candidates, name)
	}
	if r.defaultName != "" {
		candidates = append(candidates, r.defaultName)
	}
	candidates = append(candidates, r.fallbackList...)
	candidates = append(candidates, r.order...)

	snapshot := make(map[string]voice.Provider, len(r.providers))
	for n, p := range r.providers {
		snapshot[n] = p
	}
	r.mu.RUnlock()

	tried := make(map[string]bool, len(candidates))
	for _, n := range candidates {
		if tried[n] {
			continue
		}
		tried[n] = true
		p, ok := snapshot[n]
		if !ok || !p.ValidateConfiguration() {
			continue
		}
		return p, true
	}
	return nil, false
}

// ResolutionOrder returns the provider names GetWithFallback would try for
// the given requested name, deduplicated, without availability filtering.
// The orchestrator uses this to walk remaining providers after a failed
// synthesis without re-deriving the policy.
func (r *Registry) ResolutionOrder(name string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]string, 0, 2+len(r.fallbackList)+len(r.order))
	seen := make(map[string]bool)
	appendName := func(n string) {
		if n == "" || seen[n] {
			return
		}
		if _, ok := r.providers[n]; !ok {
			return
		}
		seen[n] = true
		out = append(out, n)
	}

	appendName(name)
	appendName(r.defaultName)
	for _, n := range r.fallbackList {
		appendName(n)
	}
	for _, n := range r.order {
		appendName(n)
	}
	return out
}

// ListRegistered returns the names of all registered providers, available or
// not, in registration order.
func (r *Registry) ListRegistered() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Clone(r.order)
}

// ListAvailable returns the names of registered providers whose
// configuration currently validates, in registration order.
func (r *Registry) ListAvailable() []string {
	r.mu.RLock()
	order := slices.Clone(r.order)
	snapshot := make(map[string]voice.Provider, len(r.providers))
	for n, p := range r.providers {
		snapshot[n] = p
	}
	r.mu.RUnlock()

	out := make([]string, 0, len(order))
	for _, n := range order {
		if p, ok := snapshot[n]; ok && p.ValidateConfiguration() {
			out = append(out, n)
		}
	}
	return out
}

// DefaultName returns the currently configured default provider name.
func (r *Registry) DefaultName() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.defaultName
}

// SetDefault reassigns the default provider. It fails (returns false) when
// name is not registered. The provider's configuration is deliberately not
// validated here: a default may be set before its credentials arrive.
func (r *Registry) SetDefault(name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.providers[name]; !ok {
		return false
	}
	r.defaultName = name
	return true
}

// SetFallback replaces the fallback chain. Unregistered names are allowed —
// the chain is resolved on every lookup, so providers may register later.
func (r *Registry) SetFallback(chain []string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.fallbackList = slices.Clone(chain)
}

// Reset clears all registered providers and restores the construction-time
// policy. Intended for test isolation only; production call paths never
// reset a registry.
func (r *Registry) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.providers = make(map[string]voice.Provider)
	r.order = nil
	r.defaultName = r.cfg.DefaultProvider
	r.fallbackList = slices.Clone(r.cfg.FallbackChain)
}
