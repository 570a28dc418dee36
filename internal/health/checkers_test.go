package health

import (
	"context"
	"errors"
	"testing"

	"github.com/fablecast/fablecast/internal/registry"
	"github.com/fablecast/fablecast/pkg/provider/voice"
	"github.com/fablecast/fablecast/pkg/provider/voice/mock"
)

func TestVoiceRegistryChecker_EmptyRegistry(t *testing.T) {
	reg := registry.New(registry.Config{})
	c := VoiceRegistryChecker(reg)

	if !c.Optional {
		t.Error("voice availability must not gate readiness")
	}
	if err := c.Check(context.Background()); err == nil {
		t.Fatal("expected failure for empty registry")
	}
}

func TestVoiceRegistryChecker_NoAvailableProvider(t *testing.T) {
	reg := registry.New(registry.Config{})
	reg.Register(&mock.Provider{
		Desc:    voice.Descriptor{Name: "broken"},
		Invalid: true,
	})

	c := VoiceRegistryChecker(reg)
	if err := c.Check(context.Background()); err == nil {
		t.Fatal("expected failure when no provider is available")
	}
}

func TestVoiceRegistryChecker_Healthy(t *testing.T) {
	reg := registry.New(registry.Config{})
	reg.Register(&mock.Provider{Desc: voice.Descriptor{Name: "mock"}})

	c := VoiceRegistryChecker(reg)
	if err := c.Check(context.Background()); err != nil {
		t.Fatalf("unexpected failure: %v", err)
	}
}

type fakePinger struct{ err error }

func (p fakePinger) Ping(context.Context) error { return p.err }

func TestDatabaseChecker(t *testing.T) {
	ok := DatabaseChecker(fakePinger{})
	if err := ok.Check(context.Background()); err != nil {
		t.Errorf("healthy pinger should pass, got %v", err)
	}

	bad := DatabaseChecker(fakePinger{err: errors.New("connection refused")})
	if err := bad.Check(context.Background()); err == nil {
		t.Error("failing pinger should fail the check")
	}
}
