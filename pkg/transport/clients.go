package transport

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/coderloop/coderloop/pkg/llmclient"
)

// AgentType distinguishes the Coder and Critic facets configure_endpoint
// and set_system_prompts target independently (spec §6).
type AgentType string

const (
	AgentCoder  AgentType = "coder"
	AgentCritic AgentType = "critic"
)

// ClientFactory builds a fresh llmclient.Client from a provider_config
// record. CodeLoop's Non-goals exclude concrete model wire protocols,
// so the default factory (see NewScriptedClientFactory) always returns
// a deterministic in-process client; a real deployment would replace
// this with one that dials an actual provider.
type ClientFactory func(providerConfig map[string]any) (llmclient.Client, error)

// NewScriptedClientFactory returns a ClientFactory producing a
// breaker-wrapped ScriptedClient, the stand-in client every
// orchestrator test in the pack is built against.
func NewScriptedClientFactory() ClientFactory {
	return func(_ map[string]any) (llmclient.Client, error) {
		scripted := llmclient.NewScriptedClient()
		// Pre-script one Critique response so Configure's health-check
		// round-trip succeeds; real provider factories would perform an
		// actual connectivity probe instead.
		scripted.AddCritique(llmclient.ReviewFeedback{QualityScore: 100})
		return llmclient.NewBreakerClient(scripted, llmclient.DefaultBreakerConfig("coderloop")), nil
	}
}

// ClientRegistry is a swappable llmclient.Coder/llmclient.Critic that
// the Orchestrator is wired against once, for life. configure_endpoint
// replaces the underlying connection and prompt templates without the
// Orchestrator ever seeing a new object, mirroring the indirection the
// teacher's BreakerClient wraps around its inner Client.
type ClientRegistry struct {
	mu      sync.RWMutex
	factory ClientFactory

	coder  llmclient.Client
	critic llmclient.Client

	coderConfig  map[string]any
	criticConfig map[string]any

	prompts map[AgentType]map[string]string
}

// NewClientRegistry returns a registry with both facets backed by the
// same initial client.
func NewClientRegistry(factory ClientFactory, initial llmclient.Client) *ClientRegistry {
	return &ClientRegistry{
		factory: factory,
		coder:   initial,
		critic:  initial,
		prompts: map[AgentType]map[string]string{
			AgentCoder:  {},
			AgentCritic: {},
		},
	}
}

func (r *ClientRegistry) Generate(ctx context.Context, req llmclient.GenerateRequest) (llmclient.CodeResult, error) {
	r.mu.RLock()
	c := r.coder
	r.mu.RUnlock()
	return c.Generate(ctx, req)
}

func (r *ClientRegistry) Revise(ctx context.Context, req llmclient.ReviseRequest) (llmclient.CodeResult, error) {
	r.mu.RLock()
	c := r.coder
	r.mu.RUnlock()
	return c.Revise(ctx, req)
}

func (r *ClientRegistry) Critique(ctx context.Context, req llmclient.CritiqueRequest) (llmclient.ReviewFeedback, error) {
	r.mu.RLock()
	c := r.critic
	r.mu.RUnlock()
	return c.Critique(ctx, req)
}

// Configure swaps the client backing agentType, running a lightweight
// health check (a single Critique round-trip) before committing the
// swap (spec §6: "Swaps a Coder/Critic provider; runs a health check").
func (r *ClientRegistry) Configure(ctx context.Context, agentType AgentType, providerConfig map[string]any) error {
	client, err := r.factory(providerConfig)
	if err != nil {
		return fmt.Errorf("build client for %s: %w", agentType, err)
	}

	healthCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if _, err := client.Critique(healthCtx, llmclient.CritiqueRequest{SessionID: "healthcheck", Code: "", ReviewDepth: "quick"}); err != nil {
		_ = client.Close()
		return fmt.Errorf("health check failed for %s: %w", agentType, err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	switch agentType {
	case AgentCoder:
		r.coder = client
		r.coderConfig = providerConfig
	case AgentCritic:
		r.critic = client
		r.criticConfig = providerConfig
	default:
		return fmt.Errorf("unknown agent_type %q", agentType)
	}
	return nil
}

// SetPrompts records prompt templates for agentType (spec §6
// set_system_prompts: "Updates prompt templates").
func (r *ClientRegistry) SetPrompts(agentType AgentType, prompts map[string]string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.prompts[agentType] = prompts
}

// Prompts returns the currently configured prompt templates for
// agentType.
func (r *ClientRegistry) Prompts(agentType AgentType) map[string]string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]string, len(r.prompts[agentType]))
	for k, v := range r.prompts[agentType] {
		out[k] = v
	}
	return out
}
