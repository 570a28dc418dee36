package health

import (
	"context"
	"fmt"

	"github.com/fablecast/fablecast/internal/registry"
)

// Pinger is satisfied by *pgxpool.Pool and other connection pools that
// support liveness probing.
type Pinger interface {
	Ping(ctx context.Context) error
}

// VoiceRegistryChecker reports whether any registered voice provider passes
// its configuration check. Marked optional: a deployment with no usable
// voice provider still serves text-only stories.
func VoiceRegistryChecker(reg *registry.Registry) Checker {
	return Checker{
		Name:     "voice_providers",
		Optional: true,
		Check: func(_ context.Context) error {
			if len(reg.ListRegistered()) == 0 {
				return fmt.Errorf("no voice providers registered")
			}
			if len(reg.ListAvailable()) == 0 {
				return fmt.Errorf("no voice provider is currently available")
			}
			return nil
		},
	}
}

// DatabaseChecker reports ready when the outcome store's database answers a
// ping.
func DatabaseChecker(db Pinger) Checker {
	return Checker{
		Name: "database",
		Check: func(ctx context.Context) error {
			if err := db.Ping(ctx); err != nil {
				return fmt.Errorf("ping: %w", err)
			}
			return nil
		},
	}
}
