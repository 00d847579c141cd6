package sources

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/hoangpro267200/omen/internal/domain"
)

// ProviderConfig describes one configured source: its chosen provider name
// (a real provider identifier, or the literal "mock"), whether credentials
// are present, and whether it's enabled. Grounded on
// original_source/.../source_registry.py's _detect_* methods.
type ProviderConfig struct {
	Provider           string
	CredentialsPresent bool
	Enabled            bool
}

// entry pairs a registered adapter with its classification and an ordered
// fallback chain of alternate adapter names (supplemented feature: Python
// original's resilience.py fallback chains, §SPEC_FULL.md).
type entry struct {
	adapter      Adapter
	kind         domain.SourceKind
	reason       string
	fallbackChain []string
}

// Registry enumerates configured adapters, classifies each REAL/MOCK/
// DISABLED, and gates whether the process may switch to live mode
// (spec.md §4.2, C3).
type Registry struct {
	mu      sync.RWMutex
	entries map[string]*entry
}

// NewRegistry constructs an empty source registry.
func NewRegistry() *Registry {
	return &Registry{entries: make(map[string]*entry)}
}

// Register classifies and stores an adapter under cfg, with an optional
// ordered fallback chain of other registered adapter names.
func (r *Registry) Register(adapter Adapter, cfg ProviderConfig, fallbackChain ...string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	kind, reason := classify(cfg)
	r.entries[string(adapter.Name())] = &entry{
		adapter:       adapter,
		kind:          kind,
		reason:        reason,
		fallbackChain: fallbackChain,
	}
}

func classify(cfg ProviderConfig) (domain.SourceKind, string) {
	if !cfg.Enabled {
		return domain.SourceKindDisabled, "source not enabled"
	}
	if cfg.Provider == "" || cfg.Provider == "mock" {
		return domain.SourceKindMock, "no real provider configured"
	}
	if !cfg.CredentialsPresent {
		return domain.SourceKindMock, fmt.Sprintf("provider %q configured but credentials missing", cfg.Provider)
	}
	return domain.SourceKindReal, ""
}

// Get returns the adapter registered for name.
func (r *Registry) Get(name domain.Source) (Adapter, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[string(name)]
	if !ok {
		return nil, false
	}
	return e.adapter, true
}

// Kind returns the classification of a registered source.
func (r *Registry) Kind(name domain.Source) (domain.SourceKind, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[string(name)]
	if !ok {
		return "", false
	}
	return e.kind, true
}

// Enabled returns every non-DISABLED adapter, sorted by name for
// deterministic iteration order.
func (r *Registry) Enabled() []Adapter {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.entries))
	for name, e := range r.entries {
		if e.kind != domain.SourceKindDisabled {
			names = append(names, name)
		}
	}
	sort.Strings(names)

	out := make([]Adapter, 0, len(names))
	for _, name := range names {
		out = append(out, r.entries[name].adapter)
	}
	return out
}

// CanGoLive reports whether every enabled source is classified REAL. When
// false, blockers names each enabled-but-MOCK source and why.
func (r *Registry) CanGoLive() (bool, []string) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var blockers []string
	names := make([]string, 0, len(r.entries))
	for name := range r.entries {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		e := r.entries[name]
		if e.kind == domain.SourceKindDisabled {
			continue
		}
		if e.kind == domain.SourceKindMock {
			blockers = append(blockers, fmt.Sprintf("%s: %s", name, e.reason))
		}
	}
	return len(blockers) == 0, blockers
}

// FetchWithFallback calls the named adapter's FetchEvents; if its circuit
// is open or it errors, it walks the registered fallback chain in order
// before giving up.
func (r *Registry) FetchWithFallback(ctx context.Context, name domain.Source, limit int) ([]domain.RawEvent, error) {
	r.mu.RLock()
	e, ok := r.entries[string(name)]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("source %q not registered", name)
	}

	events, err := e.adapter.FetchEvents(ctx, limit)
	if err == nil {
		return events, nil
	}
	firstErr := err

	for _, fallbackName := range e.fallbackChain {
		r.mu.RLock()
		fb, ok := r.entries[fallbackName]
		r.mu.RUnlock()
		if !ok {
			continue
		}
		events, err = fb.adapter.FetchEvents(ctx, limit)
		if err == nil {
			return events, nil
		}
	}
	return nil, fmt.Errorf("source %q and its fallback chain all failed: %w", name, firstErr)
}
