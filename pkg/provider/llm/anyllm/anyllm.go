// Package anyllm implements [llm.Provider] for every backend supported by
// github.com/mozilla-ai/any-llm-go (Anthropic, Gemini, Ollama, Mistral and
// others).
//
// any-llm-go has no portable structured-output switch. A request's
// [llm.Schema] is therefore written into the system prompt, and a markdown
// code fence around the reply is removed before it is returned.
package anyllm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"slices"
	"strings"

	anyllmlib "github.com/mozilla-ai/any-llm-go"
	"github.com/mozilla-ai/any-llm-go/providers/anthropic"
	"github.com/mozilla-ai/any-llm-go/providers/deepseek"
	"github.com/mozilla-ai/any-llm-go/providers/gemini"
	"github.com/mozilla-ai/any-llm-go/providers/groq"
	"github.com/mozilla-ai/any-llm-go/providers/llamacpp"
	"github.com/mozilla-ai/any-llm-go/providers/llamafile"
	"github.com/mozilla-ai/any-llm-go/providers/mistral"
	"github.com/mozilla-ai/any-llm-go/providers/ollama"
	anyllmoai "github.com/mozilla-ai/any-llm-go/providers/openai"

	"github.com/MrWong99/interviewcoach/pkg/provider/llm"
)

type backendFunc func(...anyllmlib.Option) (anyllmlib.Provider, error)

// wrap adapts a backend constructor returning its concrete type.
func wrap[P anyllmlib.Provider](fn func(...anyllmlib.Option) (P, error)) backendFunc {
	return func(opts ...anyllmlib.Option) (anyllmlib.Provider, error) {
		return fn(opts...)
	}
}

var backends = map[string]backendFunc{
	"openai":    wrap(anyllmoai.New),
	"anthropic": wrap(anthropic.New),
	"gemini":    wrap(gemini.New),
	"ollama":    wrap(ollama.New),
	"deepseek":  wrap(deepseek.New),
	"mistral":   wrap(mistral.New),
	"groq":      wrap(groq.New),
	"llamacpp":  wrap(llamacpp.New),
	"llamafile": wrap(llamafile.New),
}

// Names lists the backend names accepted by [New], sorted.
var Names = slices.Sorted(maps.Keys(backends))

// Provider sends completions through one any-llm-go backend.
type Provider struct {
	backend anyllmlib.Provider
	model   string
}

var _ llm.Provider = (*Provider)(nil)

// New returns a Provider for model on the named backend. Without an API key
// option the backend reads its usual environment variable, for example
// ANTHROPIC_API_KEY.
func New(backend, model string, opts ...anyllmlib.Option) (*Provider, error) {
	switch {
	case backend == "":
		return nil, errors.New("anyllm: backend name must not be empty")
	case model == "":
		return nil, errors.New("anyllm: model must not be empty")
	}
	create, ok := backends[strings.ToLower(backend)]
	if !ok {
		return nil, fmt.Errorf("anyllm: unsupported backend %q (have %s)", backend, strings.Join(Names, ", "))
	}
	b, err := create(opts...)
	if err != nil {
		return nil, fmt.Errorf("anyllm: create %s backend: %w", backend, err)
	}
	return &Provider{backend: b, model: model}, nil
}

// Complete sends one completion request and waits for the reply.
func (p *Provider) Complete(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	params, err := p.buildParams(req)
	if err != nil {
		return nil, fmt.Errorf("anyllm: %w", err)
	}
	resp, err := p.backend.Completion(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("anyllm: completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, errors.New("anyllm: response has no choices")
	}

	choice := resp.Choices[0]
	out := &llm.CompletionResponse{
		Content:      choice.Message.ContentString(),
		FinishReason: string(choice.FinishReason),
	}
	if req.Schema != nil {
		out.Content = stripCodeFence(out.Content)
	}
	if u := resp.Usage; u != nil {
		out.Usage = llm.Usage{PromptTokens: u.PromptTokens, CompletionTokens: u.CompletionTokens, TotalTokens: u.TotalTokens}
	}
	return out, nil
}

// Capabilities reports the limits of the configured model.
func (p *Provider) Capabilities() llm.ModelCapabilities {
	return modelCapabilities(p.model)
}

func (p *Provider) buildParams(req llm.CompletionRequest) (anyllmlib.CompletionParams, error) {
	system := req.SystemPrompt
	if req.Schema != nil {
		instr, err := schemaInstruction(*req.Schema)
		if err != nil {
			return anyllmlib.CompletionParams{}, err
		}
		system = strings.TrimSpace(system + "\n\n" + instr)
	}

	msgs := make([]anyllmlib.Message, 0, len(req.Messages)+1)
	if system != "" {
		msgs = append(msgs, anyllmlib.Message{Role: anyllmlib.RoleSystem, Content: system})
	}
	for _, m := range req.Messages {
		msgs = append(msgs, convertMessage(m))
	}

	params := anyllmlib.CompletionParams{Model: p.model, Messages: msgs}
	if req.Temperature != 0 {
		params.Temperature = &req.Temperature
	}
	if req.MaxTokens > 0 {
		params.MaxTokens = &req.MaxTokens
	}
	return params, nil
}

// schemaInstruction renders s as a system prompt paragraph.
func schemaInstruction(s llm.Schema) (string, error) {
	def, err := json.Marshal(s.Definition)
	if err != nil {
		return "", fmt.Errorf("marshal schema %q: %w", s.Name, err)
	}
	what := "a single JSON document"
	if s.Description != "" {
		what += " (" + s.Description + ")"
	}
	return fmt.Sprintf("Reply with %s and no other text. It must validate against this JSON Schema:\n%s", what, def), nil
}

// stripCodeFence unwraps a reply the model put inside a ``` block.
func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	body, ok := strings.CutPrefix(s, "```")
	if !ok {
		return s
	}
	if _, rest, found := strings.Cut(body, "\n"); found {
		body = rest
	}
	body, _ = strings.CutSuffix(strings.TrimSpace(body), "```")
	return strings.TrimSpace(body)
}

func convertMessage(m llm.Message) anyllmlib.Message {
	return anyllmlib.Message{Role: m.Role, Content: m.Content}
}

// ─── Model table ────────────────────────────────────────────────────────────

// modelFamily matches model names containing substr. The first match in
// modelFamilies wins, so more specific names come first.
type modelFamily struct {
	substr    string
	window    int
	maxOutput int
}

var modelFamilies = []modelFamily{
	{"gpt-4o", 128_000, 16_384},
	{"gpt-4-turbo", 128_000, 4_096},
	{"gpt-4", 8_192, 4_096},
	{"gpt-3.5-turbo", 16_385, 4_096},
	{"claude-3-opus", 200_000, 4_096},
	{"claude", 200_000, 8_192},
	{"gemini-1.5-pro", 2_097_152, 8_192},
	{"gemini-2.0-flash", 1_048_576, 8_192},
	{"gemini-1.5-flash", 1_048_576, 8_192},
	{"gemini", 128_000, 8_192},
}

// modelCapabilities never reports native structured output: schemas always
// travel in the prompt through this adapter.
func modelCapabilities(model string) llm.ModelCapabilities {
	name := strings.ToLower(model)
	for _, f := range modelFamilies {
		if strings.Contains(name, f.substr) {
			return llm.ModelCapabilities{ContextWindow: f.window, MaxOutputTokens: f.maxOutput}
		}
	}
	return llm.ModelCapabilities{ContextWindow: 128_000, MaxOutputTokens: 4_096}
}
