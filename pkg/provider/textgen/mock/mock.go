// Package mock provides a test double for the textgen.Provider interface.
//
// Use Provider to script a sequence of per-call results and verify retry
// behaviour: each call to Complete consumes the next entry of Script; when
// the script is exhausted the last entry repeats.
package mock

import (
	"context"
	"sync"

	"github.com/fablecast/fablecast/pkg/provider/textgen"
)

// Step is one scripted Complete outcome.
type Step struct {
	// Resp is returned when Err is nil.
	Resp *textgen.Response

	// Err is returned as the call's failure.
	Err error
}

// CompleteCall records a single invocation of Complete.
type CompleteCall struct {
	// Req is the request passed to Complete.
	Req textgen.Request
}

// Provider is a mock implementation of textgen.Provider.
type Provider struct {
	mu sync.Mutex

	// ModelID is returned by Model. Defaults to "mock-model".
	ModelID string

	// Script is the ordered sequence of outcomes. Empty means every call
	// succeeds with a canned response.
	Script []Step

	// CompleteCalls records every call to Complete in order.
	CompleteCalls []CompleteCall
}

// Compile-time interface assertion.
var _ textgen.Provider = (*Provider)(nil)

// Model implements textgen.Provider.
func (p *Provider) Model() string {
	if p.ModelID == "" {
		return "mock-model"
	}
	return p.ModelID
}

// Complete implements textgen.Provider, consuming the next scripted step.
func (p *Provider) Complete(ctx context.Context, req textgen.Request) (*textgen.Response, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	idx := len(p.CompleteCalls)
	p.CompleteCalls = append(p.CompleteCalls, CompleteCall{Req: req})

	if len(p.Script) == 0 {
		return &textgen.Response{
			Content: "mock story",
			Model:   p.Model(),
			Usage:   textgen.Usage{PromptTokens: 10, CompletionTokens: 20, TotalTokens: 30},
		}, nil
	}
	if idx >= len(p.Script) {
		idx = len(p.Script) - 1
	}
	step := p.Script[idx]
	if step.Err != nil {
		return nil, step.Err
	}
	return step.Resp, nil
}

// Calls returns the number of Complete invocations so far. Thread-safe.
func (p *Provider) Calls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.CompleteCalls)
}

// Reset clears all recorded calls. Thread-safe.
func (p *Provider) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.CompleteCalls = nil
}
