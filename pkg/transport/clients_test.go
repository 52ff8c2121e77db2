package transport

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/coderloop/coderloop/pkg/llmclient"
)

func scriptedFactory(generate llmclient.CodeResult, critique llmclient.ReviewFeedback) ClientFactory {
	return func(_ map[string]any) (llmclient.Client, error) {
		c := llmclient.NewScriptedClient()
		c.AddGenerate(generate)
		c.AddCritique(critique)
		return c, nil
	}
}

func TestClientRegistryRoutesToCurrentClient(t *testing.T) {
	initial := llmclient.NewScriptedClient()
	initial.AddGenerate(llmclient.CodeResult{Content: "initial", Language: "go"})

	registry := NewClientRegistry(scriptedFactory(llmclient.CodeResult{Content: "swapped", Language: "go"}, llmclient.ReviewFeedback{QualityScore: 90}), initial)

	result, err := registry.Generate(context.Background(), llmclient.GenerateRequest{SessionID: "s1"})
	require.NoError(t, err)
	require.Equal(t, "initial", result.Content)

	require.NoError(t, registry.Configure(context.Background(), AgentCoder, map[string]any{"endpoint": "https://example.test"}))

	result, err = registry.Generate(context.Background(), llmclient.GenerateRequest{SessionID: "s1"})
	require.NoError(t, err)
	require.Equal(t, "swapped", result.Content)
}

func TestClientRegistryConfigureRejectsFailingHealthCheck(t *testing.T) {
	initial := llmclient.NewScriptedClient()
	factory := func(_ map[string]any) (llmclient.Client, error) {
		c := llmclient.NewScriptedClient()
		c.FailNextCritique(0, errors.New("boom"))
		return c, nil
	}

	registry := NewClientRegistry(factory, initial)
	err := registry.Configure(context.Background(), AgentCritic, nil)
	require.Error(t, err)
}

func TestClientRegistryPromptsRoundTrip(t *testing.T) {
	registry := NewClientRegistry(NewScriptedClientFactory(), llmclient.NewScriptedClient())
	registry.SetPrompts(AgentCoder, map[string]string{"system": "be terse"})
	require.Equal(t, map[string]string{"system": "be terse"}, registry.Prompts(AgentCoder))
	require.Empty(t, registry.Prompts(AgentCritic))
}
