// Package provider implements record sources that back query evaluation:
// an in-memory provider, a SQLite provider and a named set of providers.
package provider

import (
	"context"
	"log/slog"
	"strings"

	"github.com/sandrolain/searchexpr/pkg/metrics"
	"github.com/sandrolain/searchexpr/pkg/types"
)

// Provider is a single named record source.
type Provider interface {
	// ID is the name used to restrict a query to this provider ("id:text").
	ID() string
	// Query returns the records matching text. No work may happen before the
	// returned sequence is ranged.
	Query(ctx context.Context, text string, flags types.ExecFlags) types.Sequence
}

// Set dispatches queries to a group of providers in registration order.
type Set struct {
	providers []Provider
	byID      map[string]Provider
	metrics   *metrics.Metrics
	logger    *slog.Logger
}

// SetOption configures a Set.
type SetOption func(*Set)

// WithMetrics counts provider queries.
func WithMetrics(m *metrics.Metrics) SetOption {
	return func(s *Set) { s.metrics = m }
}

// WithLogger sets the logger used for query tracing.
func WithLogger(l *slog.Logger) SetOption {
	return func(s *Set) { s.logger = l }
}

// NewSet creates a provider set. Later providers with a duplicate id
// replace earlier ones.
func NewSet(providers []Provider, opts ...SetOption) *Set {
	s := &Set{byID: make(map[string]Provider), logger: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}
	for _, p := range providers {
		s.Add(p)
	}
	return s
}

// Add registers a provider.
func (s *Set) Add(p Provider) {
	if _, ok := s.byID[p.ID()]; ok {
		for i, old := range s.providers {
			if old.ID() == p.ID() {
				s.providers[i] = p
			}
		}
	} else {
		s.providers = append(s.providers, p)
	}
	s.byID[p.ID()] = p
}

// IDs returns the provider ids in registration order.
func (s *Set) IDs() []string {
	ids := make([]string, len(s.providers))
	for i, p := range s.providers {
		ids[i] = p.ID()
	}
	return ids
}

// route picks the providers a query runs against. An explicit list wins;
// otherwise a leading "id:" naming a registered provider restricts the
// query to it.
func (s *Set) route(providers []string, text string) ([]Provider, string) {
	if len(providers) > 0 {
		out := make([]Provider, 0, len(providers))
		for _, id := range providers {
			if p, ok := s.byID[id]; ok {
				out = append(out, p)
			}
		}
		return out, text
	}
	trimmed := strings.TrimSpace(text)
	if id, rest, ok := strings.Cut(trimmed, ":"); ok {
		if p, ok := s.byID[id]; ok {
			return []Provider{p}, strings.TrimSpace(rest)
		}
	}
	return s.providers, text
}

// Query implements types.RecordSource.
func (s *Set) Query(ctx context.Context, providers []string, text string, flags types.ExecFlags) types.Sequence {
	return func(yield func(types.Element, error) bool) {
		targets, q := s.route(providers, text)
		for _, p := range targets {
			s.logger.Debug("provider query", "provider", p.ID(), "query", q)
			var failed error
			stopped := false
			for el, err := range p.Query(ctx, q, flags) {
				if err != nil {
					failed = err
					yield(types.Pending, err)
					break
				}
				if el.Record() != nil && el.Record().Provider == "" {
					el.Record().Provider = p.ID()
				}
				if !yield(el, nil) {
					stopped = true
					break
				}
			}
			s.metrics.ObserveQuery(p.ID(), failed)
			if failed != nil || stopped {
				return
			}
		}
	}
}
