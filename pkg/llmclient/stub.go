package llmclient

import (
	"context"
	"fmt"
	"sync"
)

// ScriptedClient is a deterministic Client for tests: each role
// consumes its scripted responses in order, mirroring tarsy's
// ScriptedLLMClient sequential-dispatch mock.
type ScriptedClient struct {
	mu sync.Mutex

	generateScript []CodeResult
	generateIdx    int
	generateErrs   map[int]error

	reviseScript []CodeResult
	reviseIdx    int
	reviseErrs   map[int]error

	critiqueScript []ReviewFeedback
	critiqueIdx    int
	critiqueErrs   map[int]error

	capturedGenerate []GenerateRequest
	capturedRevise   []ReviseRequest
	capturedCritique []CritiqueRequest
}

// NewScriptedClient returns an empty scripted client.
func NewScriptedClient() *ScriptedClient {
	return &ScriptedClient{
		generateErrs: make(map[int]error),
		reviseErrs:   make(map[int]error),
		critiqueErrs: make(map[int]error),
	}
}

// AddGenerate appends a scripted Coder.Generate response.
func (c *ScriptedClient) AddGenerate(result CodeResult) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.generateScript = append(c.generateScript, result)
}

// AddRevise appends a scripted Coder.Revise response.
func (c *ScriptedClient) AddRevise(result CodeResult) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.reviseScript = append(c.reviseScript, result)
}

// AddCritique appends a scripted Critic.Critique response.
func (c *ScriptedClient) AddCritique(feedback ReviewFeedback) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.critiqueScript = append(c.critiqueScript, feedback)
}

// FailNextCritique makes the call at the given zero-based index return err
// instead of consuming the script.
func (c *ScriptedClient) FailNextCritique(index int, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.critiqueErrs[index] = err
}

func (c *ScriptedClient) Generate(_ context.Context, req GenerateRequest) (CodeResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.capturedGenerate = append(c.capturedGenerate, req)

	if err, ok := c.generateErrs[c.generateIdx]; ok {
		c.generateIdx++
		return CodeResult{}, err
	}
	if c.generateIdx >= len(c.generateScript) {
		return CodeResult{}, fmt.Errorf("scripted client: no more Generate entries (called %d times)", c.generateIdx+1)
	}
	result := c.generateScript[c.generateIdx]
	c.generateIdx++
	return result, nil
}

func (c *ScriptedClient) Revise(_ context.Context, req ReviseRequest) (CodeResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.capturedRevise = append(c.capturedRevise, req)

	if err, ok := c.reviseErrs[c.reviseIdx]; ok {
		c.reviseIdx++
		return CodeResult{}, err
	}
	if c.reviseIdx >= len(c.reviseScript) {
		return CodeResult{}, fmt.Errorf("scripted client: no more Revise entries (called %d times)", c.reviseIdx+1)
	}
	result := c.reviseScript[c.reviseIdx]
	c.reviseIdx++
	return result, nil
}

func (c *ScriptedClient) Critique(_ context.Context, req CritiqueRequest) (ReviewFeedback, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.capturedCritique = append(c.capturedCritique, req)

	if err, ok := c.critiqueErrs[c.critiqueIdx]; ok {
		c.critiqueIdx++
		return ReviewFeedback{}, err
	}
	if c.critiqueIdx >= len(c.critiqueScript) {
		return ReviewFeedback{}, fmt.Errorf("scripted client: no more Critique entries (called %d times)", c.critiqueIdx+1)
	}
	result := c.critiqueScript[c.critiqueIdx]
	c.critiqueIdx++
	return result, nil
}

func (c *ScriptedClient) Close() error { return nil }

// CapturedGenerateRequests returns every GenerateRequest passed to Generate, in call order.
func (c *ScriptedClient) CapturedGenerateRequests() []GenerateRequest {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]GenerateRequest(nil), c.capturedGenerate...)
}

// CapturedCritiqueRequests returns every CritiqueRequest passed to Critique, in call order.
func (c *ScriptedClient) CapturedCritiqueRequests() []CritiqueRequest {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]CritiqueRequest(nil), c.capturedCritique...)
}
