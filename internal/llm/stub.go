package llm

import (
	"context"
	"strings"
	"sync"
	"time"
)

// StubProvider is a deterministic in-memory Provider for tests and offline
// runs. Responses are selected by the first registered rule whose substring
// matches the last user message; unmatched prompts get the default response.
type StubProvider struct {
	mu       sync.Mutex
	rules    []stubRule
	fallback string
	err      error
	calls    int
}

type stubRule struct {
	contains string
	response string
}

// NewStubProvider creates a stub with the given default response.
func NewStubProvider(defaultResponse string) *StubProvider {
	return &StubProvider{fallback: defaultResponse}
}

// Respond registers a canned response returned when the last user message
// contains the given substring. Rules are checked in registration order.
func (p *StubProvider) Respond(contains, response string) *StubProvider {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.rules = append(p.rules, stubRule{contains: contains, response: response})
	return p
}

// Fail makes every subsequent Chat call return err.
func (p *StubProvider) Fail(err error) *StubProvider {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.err = err
	return p
}

// Calls returns how many Chat calls the stub has served.
func (p *StubProvider) Calls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls
}

func (p *StubProvider) Name() string     { return ProviderStub }
func (p *StubProvider) Models() []string { return []string{"stub-1"} }

// Ping always succeeds.
func (p *StubProvider) Ping(ctx context.Context) error { return nil }

// Chat returns the matching canned response.
func (p *StubProvider) Chat(ctx context.Context, messages []Message, tools []Tool, opts *ChatOptions) (*Response, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls++

	if p.err != nil {
		return nil, p.err
	}

	var lastUser string
	for _, m := range messages {
		if m.Role == RoleUser {
			lastUser = m.Content
		}
	}

	content := p.fallback
	for _, r := range p.rules {
		if strings.Contains(lastUser, r.contains) {
			content = r.response
			break
		}
	}

	return &Response{
		Content:      content,
		Model:        "stub-1",
		Provider:     ProviderStub,
		FinishReason: FinishStop,
		Latency:      time.Microsecond,
	}, nil
}
