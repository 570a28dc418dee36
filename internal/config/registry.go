package config

import (
	"errors"
	"fmt"
	"sync"

	"github.com/fablecast/fablecast/pkg/provider/textgen"
	"github.com/fablecast/fablecast/pkg/provider/voice"
)

// ErrProviderNotRegistered is returned by Create* methods when no factory has
// been registered under the requested provider name.
var ErrProviderNotRegistered = errors.New("config: provider not registered")

// Registry maps provider names to their constructor functions for each
// provider type. It is safe for concurrent use.
type Registry struct {
	mu      sync.RWMutex
	textgen map[string]func(ProviderEntry) (textgen.Provider, error)
	voice   map[string]func(ProviderEntry) (voice.Provider, error)
}

// NewRegistry returns an empty, ready-to-use [Registry].
func NewRegistry() *Registry {
	return &Registry{
		textgen: make(map[string]func(ProviderEntry) (textgen.Provider, error)),
		voice:   make(map[string]func(ProviderEntry) (voice.Provider, error)),
	}
}

// RegisterTextGen registers a text-generation provider factory under name.
// Subsequent calls with the same name overwrite the previous registration.
func (r *Registry) RegisterTextGen(name string, factory func(ProviderEntry) (textgen.Provider, error)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.textgen[name] = factory
}

// RegisterVoice registers a voice provider factory under name.
func (r *Registry) RegisterVoice(name string, factory func(ProviderEntry) (voice.Provider, error)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.voice[name] = factory
}

// CreateTextGen instantiates a text-generation provider using the factory
// registered under entry.Name. Returns [ErrProviderNotRegistered] if no
// factory has been registered for that name.
func (r *Registry) CreateTextGen(entry ProviderEntry) (textgen.Provider, error) {
	r.mu.RLock()
	factory, ok := r.textgen[entry.Name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: textgen/%q", ErrProviderNotRegistered, entry.Name)
	}
	return factory(entry)
}

// CreateVoice instantiates a voice provider using the factory registered
// under entry.Name.
func (r *Registry) CreateVoice(entry ProviderEntry) (voice.Provider, error) {
	r.mu.RLock()
	factory, ok := r.voice[entry.Name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: voice/%q", ErrProviderNotRegistered, entry.Name)
	}
	return factory(entry)
}
