// Package mock provides a scriptable [llm.Provider] for analysis tests.
//
// Replies are taken from Responses one per call; once the script runs out,
// CompleteResponse and CompleteErr answer every further call:
//
//	p := &mock.Provider{Responses: []mock.Response{
//	    {Content: `{"questions":["Why us?","Tell me about a failure."]}`},
//	    {Err: errors.New("rate limited")},
//	}}
package mock

import (
	"context"
	"slices"
	"sync"

	"github.com/MrWong99/interviewcoach/pkg/provider/llm"
)

// Response is one scripted reply. Err wins over Content.
type Response struct {
	Content string
	Err     error
}

// Provider is a recording [llm.Provider].
type Provider struct {
	Responses []Response

	// CompleteResponse answers calls past the end of Responses. Nil yields an
	// empty reply.
	CompleteResponse *llm.CompletionResponse
	CompleteErr      error

	// CompleteFunc, when set, answers every call instead of the fields
	// above. It may block on ctx.
	CompleteFunc func(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error)

	// ModelCapabilities is returned by Capabilities.
	ModelCapabilities llm.ModelCapabilities

	mu       sync.Mutex
	requests []llm.CompletionRequest
}

var _ llm.Provider = (*Provider)(nil)

// Complete records req and returns the next scripted reply.
func (p *Provider) Complete(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	p.mu.Lock()
	n := len(p.requests)
	p.requests = append(p.requests, req)
	p.mu.Unlock()

	if p.CompleteFunc != nil {
		return p.CompleteFunc(ctx, req)
	}
	if n < len(p.Responses) {
		r := p.Responses[n]
		if r.Err != nil {
			return nil, r.Err
		}
		return &llm.CompletionResponse{Content: r.Content, FinishReason: "stop"}, nil
	}
	if p.CompleteErr != nil {
		return nil, p.CompleteErr
	}
	if p.CompleteResponse == nil {
		return &llm.CompletionResponse{}, nil
	}
	resp := *p.CompleteResponse
	return &resp, nil
}

// Capabilities returns ModelCapabilities.
func (p *Provider) Capabilities() llm.ModelCapabilities {
	return p.ModelCapabilities
}

// Requests returns every request received so far, oldest first.
func (p *Provider) Requests() []llm.CompletionRequest {
	p.mu.Lock()
	defer p.mu.Unlock()
	return slices.Clone(p.requests)
}
