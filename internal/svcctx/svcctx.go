// Package svcctx provides service context for dependency injection via context.
// This package is separate from server to avoid import cycles with endpoints.
package svcctx

import (
	"context"
	"log/slog"

	"github.com/soulscribe/soulscribe/internal/home"
	"github.com/soulscribe/soulscribe/internal/llmcall"
	"github.com/soulscribe/soulscribe/internal/metrics"
	"github.com/soulscribe/soulscribe/internal/prompts"
	"github.com/soulscribe/soulscribe/internal/providers"
	"github.com/soulscribe/soulscribe/internal/storedb"
	"github.com/soulscribe/soulscribe/internal/story"
	"github.com/soulscribe/soulscribe/internal/storygen"
)

// Services holds all core services that flow through context.
// Components extract what they need via the individual extractors.
type Services struct {
	StoreClient     *storedb.Client
	StoreSink       *storedb.Sink
	StoryStore      *story.Store
	Runner          *storygen.Runner
	Registry        *providers.Registry
	Resolver        *prompts.Resolver
	PromptStore     *prompts.Store
	MetricsQuery    *metrics.Query
	MetricsRecorder *metrics.Recorder
	LLMCallStore    *llmcall.Store
	Home            *home.Dir
	Logger          *slog.Logger
}

type servicesKey struct{}

// WithServices returns a new context with services attached.
func WithServices(ctx context.Context, s *Services) context.Context {
	return context.WithValue(ctx, servicesKey{}, s)
}

// ServicesFrom extracts the full Services struct from context.
// Returns nil if not present.
func ServicesFrom(ctx context.Context) *Services {
	s, _ := ctx.Value(servicesKey{}).(*Services)
	return s
}

// StoreClientFrom extracts the document store client from context.
func StoreClientFrom(ctx context.Context) *storedb.Client {
	if s := ServicesFrom(ctx); s != nil {
		return s.StoreClient
	}
	return nil
}

// StoreSinkFrom extracts the document store write sink from context.
func StoreSinkFrom(ctx context.Context) *storedb.Sink {
	if s := ServicesFrom(ctx); s != nil {
		return s.StoreSink
	}
	return nil
}

// StoryStoreFrom extracts the story store from context.
func StoryStoreFrom(ctx context.Context) *story.Store {
	if s := ServicesFrom(ctx); s != nil {
		return s.StoryStore
	}
	return nil
}

// RunnerFrom extracts the generation runner from context.
func RunnerFrom(ctx context.Context) *storygen.Runner {
	if s := ServicesFrom(ctx); s != nil {
		return s.Runner
	}
	return nil
}

// RegistryFrom extracts the provider registry from context.
func RegistryFrom(ctx context.Context) *providers.Registry {
	if s := ServicesFrom(ctx); s != nil {
		return s.Registry
	}
	return nil
}

// ResolverFrom extracts the prompt resolver from context.
func ResolverFrom(ctx context.Context) *prompts.Resolver {
	if s := ServicesFrom(ctx); s != nil {
		return s.Resolver
	}
	return nil
}

// PromptStoreFrom extracts the prompt store from context.
func PromptStoreFrom(ctx context.Context) *prompts.Store {
	if s := ServicesFrom(ctx); s != nil {
		return s.PromptStore
	}
	return nil
}

// MetricsQueryFrom extracts the metrics query helper from context.
func MetricsQueryFrom(ctx context.Context) *metrics.Query {
	if s := ServicesFrom(ctx); s != nil {
		return s.MetricsQuery
	}
	return nil
}

// MetricsRecorderFrom extracts the metrics recorder from context.
func MetricsRecorderFrom(ctx context.Context) *metrics.Recorder {
	if s := ServicesFrom(ctx); s != nil {
		return s.MetricsRecorder
	}
	return nil
}

// LLMCallStoreFrom extracts the LLM call store from context.
func LLMCallStoreFrom(ctx context.Context) *llmcall.Store {
	if s := ServicesFrom(ctx); s != nil {
		return s.LLMCallStore
	}
	return nil
}

// HomeFrom extracts the home directory from context.
func HomeFrom(ctx context.Context) *home.Dir {
	if s := ServicesFrom(ctx); s != nil {
		return s.Home
	}
	return nil
}

// LoggerFrom extracts the logger from context. Falls back to the default
// logger so callers never get nil.
func LoggerFrom(ctx context.Context) *slog.Logger {
	if s := ServicesFrom(ctx); s != nil && s.Logger != nil {
		return s.Logger
	}
	return slog.Default()
}
