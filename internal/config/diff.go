package config

import (
	"fmt"
	"slices"
)

// ConfigDiff describes what changed between two configs.
// Only fields that can be safely hot-reloaded are tracked.
type ConfigDiff struct {
	LogLevelChanged bool
	NewLogLevel     LogLevel

	// VoiceRoutingChanged is true when the default provider or fallback
	// chain changed.
	VoiceRoutingChanged bool
	NewDefault          string
	NewFallback         []string

	// RetryChanged is true when any retry tuning field changed.
	RetryChanged bool
	NewRetry     RetryConfig

	// ProviderChanges lists voice providers that were added, removed, or
	// reconfigured. Provider set changes require reconstructing the affected
	// providers; routing and retry changes apply in place.
	ProviderChanges []ProviderDiff
}

// ProviderDiff describes what changed for a single voice provider entry.
type ProviderDiff struct {
	Name         string
	Added        bool
	Removed      bool
	Reconfigured bool
}

// Diff compares old and new configs and returns what changed.
// Only tracks changes that are safe to apply without restart.
func Diff(old, new *Config) ConfigDiff {
	d := ConfigDiff{}

	if old.Server.LogLevel != new.Server.LogLevel {
		d.LogLevelChanged = true
		d.NewLogLevel = new.Server.LogLevel
	}

	if old.Voice.Default != new.Voice.Default || !slices.Equal(old.Voice.Fallback, new.Voice.Fallback) {
		d.VoiceRoutingChanged = true
		d.NewDefault = new.Voice.Default
		d.NewFallback = new.Voice.Fallback
	}

	if old.Retry != new.Retry {
		d.RetryChanged = true
		d.NewRetry = new.Retry
	}

	// Build provider lookup maps keyed by name.
	oldProviders := make(map[string]*ProviderEntry, len(old.Voice.Providers))
	for i := range old.Voice.Providers {
		oldProviders[old.Voice.Providers[i].Name] = &old.Voice.Providers[i]
	}
	newProviders := make(map[string]*ProviderEntry, len(new.Voice.Providers))
	for i := range new.Voice.Providers {
		newProviders[new.Voice.Providers[i].Name] = &new.Voice.Providers[i]
	}

	// Detect reconfigured and removed providers.
	for name, oldP := range oldProviders {
		newP, exists := newProviders[name]
		if !exists {
			d.ProviderChanges = append(d.ProviderChanges, ProviderDiff{Name: name, Removed: true})
			continue
		}
		if providerEntryChanged(oldP, newP) {
			d.ProviderChanges = append(d.ProviderChanges, ProviderDiff{Name: name, Reconfigured: true})
		}
	}

	// Detect added providers.
	for name := range newProviders {
		if _, exists := oldProviders[name]; !exists {
			d.ProviderChanges = append(d.ProviderChanges, ProviderDiff{Name: name, Added: true})
		}
	}

	return d
}

// providerEntryChanged compares the scalar fields of two provider entries.
// Options maps are compared shallowly by length and string representation of
// top-level values.
func providerEntryChanged(old, new *ProviderEntry) bool {
	if old.APIKey != new.APIKey || old.BaseURL != new.BaseURL || old.Model != new.Model {
		return true
	}
	if len(old.Options) != len(new.Options) {
		return true
	}
	for k, ov := range old.Options {
		nv, ok := new.Options[k]
		if !ok || fmt.Sprint(ov) != fmt.Sprint(nv) {
			return true
		}
	}
	return false
}
