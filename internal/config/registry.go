package config

import (
	"errors"
	"fmt"
	"maps"
	"slices"
	"sync"

	"github.com/MrWong99/interviewcoach/pkg/provider/llm"
	"github.com/MrWong99/interviewcoach/pkg/provider/stt"
	"github.com/MrWong99/interviewcoach/pkg/provider/tts"
)

// Provider kinds, as used in [ValidProviderNames] and [Registry.Names].
const (
	KindLLM = "llm"
	KindSTT = "stt"
	KindTTS = "tts"
)

// ErrProviderNotRegistered is returned by the Create methods when no factory
// is registered under the requested name.
var ErrProviderNotRegistered = errors.New("config: provider not registered")

// Factory builds a provider of type P from its configuration entry.
type Factory[P any] func(ProviderEntry) (P, error)

// factories is a name-indexed set of constructors for one provider kind.
type factories[P any] struct {
	kind string
	m    map[string]Factory[P]
}

func newFactories[P any](kind string) factories[P] {
	return factories[P]{kind: kind, m: make(map[string]Factory[P])}
}

func (f factories[P]) create(entry ProviderEntry) (P, error) {
	build, ok := f.m[entry.Name]
	if !ok {
		var zero P
		return zero, fmt.Errorf("%w: %s/%q", ErrProviderNotRegistered, f.kind, entry.Name)
	}
	return build(entry)
}

// Registry maps provider names to constructors for the three provider kinds
// the coach uses. Registering a name twice replaces the earlier factory.
// A Registry is safe for concurrent use.
type Registry struct {
	mu  sync.RWMutex
	llm factories[llm.Provider]
	stt factories[stt.Provider]
	tts factories[tts.Provider]
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		llm: newFactories[llm.Provider](KindLLM),
		stt: newFactories[stt.Provider](KindSTT),
		tts: newFactories[tts.Provider](KindTTS),
	}
}

// RegisterLLM registers a language model factory under name.
func (r *Registry) RegisterLLM(name string, f Factory[llm.Provider]) {
	r.mu.Lock()
	r.llm.m[name] = f
	r.mu.Unlock()
}

// RegisterSTT registers a speech recogniser factory under name.
func (r *Registry) RegisterSTT(name string, f Factory[stt.Provider]) {
	r.mu.Lock()
	r.stt.m[name] = f
	r.mu.Unlock()
}

// RegisterTTS registers a speech synthesiser factory under name.
func (r *Registry) RegisterTTS(name string, f Factory[tts.Provider]) {
	r.mu.Lock()
	r.tts.m[name] = f
	r.mu.Unlock()
}

// CreateLLM builds the language model named by entry.Name.
func (r *Registry) CreateLLM(entry ProviderEntry) (llm.Provider, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.llm.create(entry)
}

// CreateSTT builds the speech recogniser named by entry.Name.
func (r *Registry) CreateSTT(entry ProviderEntry) (stt.Provider, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.stt.create(entry)
}

// CreateTTS builds the speech synthesiser named by entry.Name.
func (r *Registry) CreateTTS(entry ProviderEntry) (tts.Provider, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.tts.create(entry)
}

// Names returns the sorted provider names registered for kind. Unknown kinds
// yield nil.
func (r *Registry) Names(kind string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	switch kind {
	case KindLLM:
		return slices.Sorted(maps.Keys(r.llm.m))
	case KindSTT:
		return slices.Sorted(maps.Keys(r.stt.m))
	case KindTTS:
		return slices.Sorted(maps.Keys(r.tts.m))
	}
	return nil
}
