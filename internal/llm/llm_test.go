package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

// ── ExtractJSON / Decode ──

func TestExtractJSON(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    string
		wantErr bool
	}{
		{"bare object", `{"a":1}`, `{"a":1}`, false},
		{"fenced", "Here you go:\n```json\n{\"a\": 1}\n```\n", `{"a": 1}`, false},
		{"preamble", `Sure! {"a":{"b":2}} hope that helps`, `{"a":{"b":2}}`, false},
		{"array", `[1,2,3]`, `[1,2,3]`, false},
		{"brace in string", `{"a":"}"}`, `{"a":"}"}`, false},
		{"no json", `I could not produce a structured answer.`, "", true},
		{"unbalanced", `{"a":1`, "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ExtractJSON(tt.content)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error, got %q", got)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if string(got) != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestDecodeStrict(t *testing.T) {
	type dest struct {
		Name string `json:"name"`
	}

	var d dest
	if err := Decode(`{"name":"x"}`, &d); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if d.Name != "x" {
		t.Errorf("expected x, got %q", d.Name)
	}

	// Unknown fields are a shape violation, not silently ignored.
	var d2 dest
	if err := Decode(`{"name":"x","extra":true}`, &d2); err == nil {
		t.Error("expected error for unknown field")
	}
}

// ── StubProvider ──

func TestStubProviderRules(t *testing.T) {
	stub := NewStubProvider("default").
		Respond("revenue", `{"kind":"financial"}`).
		Respond("risk", `{"kind":"risk"}`)

	resp, err := stub.Chat(context.Background(),
		[]Message{UserMessage("what was Apple's revenue?")}, nil, nil)
	if err != nil {
		t.Fatalf("chat: %v", err)
	}
	if resp.Content != `{"kind":"financial"}` {
		t.Errorf("expected financial rule, got %q", resp.Content)
	}

	resp, _ = stub.Chat(context.Background(), []Message{UserMessage("hello")}, nil, nil)
	if resp.Content != "default" {
		t.Errorf("expected default, got %q", resp.Content)
	}
	if stub.Calls() != 2 {
		t.Errorf("expected 2 calls, got %d", stub.Calls())
	}
}

func TestStubProviderFail(t *testing.T) {
	wantErr := errors.New("boom")
	stub := NewStubProvider("x").Fail(wantErr)
	_, err := stub.Chat(context.Background(), []Message{UserMessage("q")}, nil, nil)
	if !errors.Is(err, wantErr) {
		t.Errorf("expected boom, got %v", err)
	}
}

// ── Complete ──

func TestCompleteAppendsSchemaHint(t *testing.T) {
	var gotSystem string
	stub := NewStubProvider("ok")
	capture := providerFunc(func(ctx context.Context, messages []Message, tools []Tool, opts *ChatOptions) (*Response, error) {
		for _, m := range messages {
			if m.Role == RoleSystem {
				gotSystem = m.Content
			}
		}
		return stub.Chat(ctx, messages, tools, opts)
	})

	out, err := Complete(context.Background(), capture, "You extract entities.", "query", `{"companies":[]}`, nil, time.Second)
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if out != "ok" {
		t.Errorf("expected ok, got %q", out)
	}
	if !strings.Contains(gotSystem, `{"companies":[]}`) {
		t.Errorf("schema hint missing from system prompt: %q", gotSystem)
	}
}

func TestCompleteTimeout(t *testing.T) {
	slow := providerFunc(func(ctx context.Context, messages []Message, tools []Tool, opts *ChatOptions) (*Response, error) {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(5 * time.Second):
			return &Response{Content: "late"}, nil
		}
	})

	_, err := Complete(context.Background(), slow, "s", "p", "", nil, 20*time.Millisecond)
	if err == nil {
		t.Fatal("expected timeout error")
	}
}

// providerFunc adapts a function to the Provider interface for tests.
type providerFunc func(ctx context.Context, messages []Message, tools []Tool, opts *ChatOptions) (*Response, error)

func (f providerFunc) Name() string                   { return "func" }
func (f providerFunc) Models() []string               { return nil }
func (f providerFunc) Ping(ctx context.Context) error { return nil }
func (f providerFunc) Chat(ctx context.Context, messages []Message, tools []Tool, opts *ChatOptions) (*Response, error) {
	return f(ctx, messages, tools, opts)
}

// ── Router ──

func TestRouterFallsBackToSecondary(t *testing.T) {
	failing := &namedStub{name: "openai", inner: NewStubProvider("x").Fail(errors.New("down"))}
	working := &namedStub{name: "anthropic", inner: NewStubProvider("answer")}

	r := NewRouter("openai", WithFallbacks("anthropic"), WithMaxRetries(0), WithRetryDelay(time.Millisecond))
	r.RegisterProvider(failing)
	r.RegisterProvider(working)

	resp, err := r.Chat(context.Background(), []Message{UserMessage("q")}, nil, nil)
	if err != nil {
		t.Fatalf("chat: %v", err)
	}
	if resp.Content != "answer" {
		t.Errorf("expected fallback answer, got %q", resp.Content)
	}
}

func TestRouterAllFail(t *testing.T) {
	r := NewRouter("openai", WithMaxRetries(0), WithRetryDelay(time.Millisecond))
	r.RegisterProvider(&namedStub{name: "openai", inner: NewStubProvider("x").Fail(errors.New("down"))})

	_, err := r.Chat(context.Background(), []Message{UserMessage("q")}, nil, nil)
	if err == nil {
		t.Fatal("expected error when all providers fail")
	}
}

func TestRouterNoProviders(t *testing.T) {
	r := NewRouter("openai")
	r.providers = map[string]Provider{}
	r.primary = ""
	if _, err := r.Chat(context.Background(), nil, nil, nil); err == nil {
		t.Error("expected error with no providers")
	}
}

func TestRouterBreakerOpensAfterConsecutiveFailures(t *testing.T) {
	failing := &namedStub{name: "openai", inner: NewStubProvider("x").Fail(errors.New("down"))}
	r := NewRouter("openai", WithMaxRetries(0), WithRetryDelay(time.Millisecond))
	r.RegisterProvider(failing)

	// Trip the breaker.
	for i := 0; i < 5; i++ {
		r.Chat(context.Background(), []Message{UserMessage("q")}, nil, nil)
	}
	before := failing.inner.Calls()
	r.Chat(context.Background(), []Message{UserMessage("q")}, nil, nil)
	if failing.inner.Calls() != before {
		t.Errorf("expected open breaker to short-circuit, provider saw %d extra calls",
			failing.inner.Calls()-before)
	}
}

// namedStub wraps a StubProvider under a different provider name so the
// router treats it as a distinct backend.
type namedStub struct {
	name  string
	inner *StubProvider
}

func (s *namedStub) Name() string                   { return s.name }
func (s *namedStub) Models() []string               { return s.inner.Models() }
func (s *namedStub) Ping(ctx context.Context) error { return s.inner.Ping(ctx) }
func (s *namedStub) Chat(ctx context.Context, messages []Message, tools []Tool, opts *ChatOptions) (*Response, error) {
	return s.inner.Chat(ctx, messages, tools, opts)
}

// ── Tool registry ──

func TestToolRegistryExecute(t *testing.T) {
	reg := NewToolRegistry()
	reg.RegisterFunc("echo", "echoes input",
		ObjectSchema("", map[string]*JSONSchema{"text": StringProp("text to echo")}, "text"),
		func(ctx context.Context, args json.RawMessage) (string, error) {
			var in struct {
				Text string `json:"text"`
			}
			json.Unmarshal(args, &in)
			return in.Text, nil
		})

	out, err := reg.Execute(context.Background(), ToolCall{
		ID: "1", Name: "echo", Arguments: json.RawMessage(`{"text":"hi"}`),
	})
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if out != "hi" {
		t.Errorf("expected hi, got %q", out)
	}

	_, err = reg.Execute(context.Background(), ToolCall{Name: "missing"})
	if !errors.Is(err, ErrToolNotFound) {
		t.Errorf("expected ErrToolNotFound, got %v", err)
	}
}

func TestToolRegistryExecuteAllToleratesFailures(t *testing.T) {
	reg := NewToolRegistry()
	reg.RegisterFunc("ok", "", nil, func(ctx context.Context, args json.RawMessage) (string, error) {
		return "fine", nil
	})
	reg.RegisterFunc("bad", "", nil, func(ctx context.Context, args json.RawMessage) (string, error) {
		return "", errors.New("tool exploded")
	})

	results := reg.ExecuteAll(context.Background(), []ToolCall{
		{ID: "a", Name: "ok"},
		{ID: "b", Name: "bad"},
		{ID: "c", Name: "ok"},
	})

	if len(results) != 3 {
		t.Fatalf("expected 3 results, got %d", len(results))
	}
	if results[0].Err != nil || results[2].Err != nil {
		t.Error("expected ok calls to succeed")
	}
	if results[1].Err == nil {
		t.Error("expected bad call to carry its error")
	}
	// The failed call becomes an error placeholder message, not an abort.
	msg := results[1].ToMessage()
	if !strings.Contains(msg.Content, "tool exploded") {
		t.Errorf("expected error placeholder, got %q", msg.Content)
	}
}

func TestRunToolLoop(t *testing.T) {
	reg := NewToolRegistry()
	reg.RegisterFunc("lookup", "", nil, func(ctx context.Context, args json.RawMessage) (string, error) {
		return "42", nil
	})

	step := 0
	p := providerFunc(func(ctx context.Context, messages []Message, tools []Tool, opts *ChatOptions) (*Response, error) {
		step++
		if step == 1 {
			return &Response{
				ToolCalls:    []ToolCall{{ID: "1", Name: "lookup", Arguments: json.RawMessage(`{}`)}},
				FinishReason: FinishToolCalls,
			}, nil
		}
		// Second round: the tool result must be in the conversation.
		last := messages[len(messages)-1]
		if last.Role != RoleTool || last.Content != "42" {
			t.Errorf("expected tool result message, got %+v", last)
		}
		return &Response{Content: "the answer is 42", FinishReason: FinishStop}, nil
	})

	resp, msgs, err := RunToolLoop(context.Background(), p, reg,
		[]Message{UserMessage("q")}, reg.List(), nil, 5)
	if err != nil {
		t.Fatalf("tool loop: %v", err)
	}
	if resp.Content != "the answer is 42" {
		t.Errorf("unexpected content %q", resp.Content)
	}
	if len(msgs) < 3 {
		t.Errorf("expected conversation to grow, got %d messages", len(msgs))
	}
}

// ── OpenAI provider against httptest ──

func TestOpenAIProviderChat(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if auth := r.Header.Get("Authorization"); auth != "Bearer test-key" {
			t.Errorf("unexpected auth header %q", auth)
		}
		json.NewEncoder(w).Encode(map[string]any{
			"id":    "chatcmpl-1",
			"model": "gpt-4o",
			"choices": []map[string]any{{
				"index":         0,
				"message":       map[string]any{"role": "assistant", "content": "hello"},
				"finish_reason": "stop",
			}},
			"usage": map[string]int{"prompt_tokens": 3, "completion_tokens": 1, "total_tokens": 4},
		})
	}))
	defer srv.Close()

	p, err := NewOpenAIProvider("test-key", WithOpenAIBaseURL(srv.URL))
	if err != nil {
		t.Fatalf("new provider: %v", err)
	}

	resp, err := p.Chat(context.Background(), []Message{UserMessage("hi")}, nil, nil)
	if err != nil {
		t.Fatalf("chat: %v", err)
	}
	if resp.Content != "hello" {
		t.Errorf("expected hello, got %q", resp.Content)
	}
	if resp.Usage.TotalTokens != 4 {
		t.Errorf("expected 4 tokens, got %d", resp.Usage.TotalTokens)
	}
}

func TestOpenAIProviderNoKey(t *testing.T) {
	if _, err := NewOpenAIProvider(""); !errors.Is(err, ErrNoAPIKey) {
		t.Errorf("expected ErrNoAPIKey, got %v", err)
	}
}

// ── Anthropic provider against httptest ──

func TestAnthropicProviderChat(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if key := r.Header.Get("x-api-key"); key != "test-key" {
			t.Errorf("unexpected api key %q", key)
		}
		var req anthropicRequest
		json.NewDecoder(r.Body).Decode(&req)
		if req.System == "" {
			t.Error("expected system prompt as top-level field")
		}
		json.NewEncoder(w).Encode(map[string]any{
			"id":          "msg-1",
			"type":        "message",
			"role":        "assistant",
			"model":       "claude-sonnet-4-20250514",
			"content":     []map[string]any{{"type": "text", "text": "hello"}},
			"stop_reason": "end_turn",
			"usage":       map[string]int{"input_tokens": 3, "output_tokens": 1},
		})
	}))
	defer srv.Close()

	p, err := NewAnthropicProvider("test-key", WithAnthropicBaseURL(srv.URL))
	if err != nil {
		t.Fatalf("new provider: %v", err)
	}

	resp, err := p.Chat(context.Background(),
		[]Message{SystemMessage("be brief"), UserMessage("hi")}, nil, nil)
	if err != nil {
		t.Fatalf("chat: %v", err)
	}
	if resp.Content != "hello" {
		t.Errorf("expected hello, got %q", resp.Content)
	}
	if resp.Usage.TotalTokens != 4 {
		t.Errorf("expected 4 tokens, got %d", resp.Usage.TotalTokens)
	}
}
