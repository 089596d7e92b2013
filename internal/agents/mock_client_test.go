package agents

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/oakgrove/gradepipe/internal/domain"
	"github.com/oakgrove/gradepipe/internal/genclient"
)

// mockClient scripts CompleteTyped responses in call order. Each response is
// validated against the stage schema and unmarshalled exactly like the real
// client would, so tests exercise the same decode path.
type mockClient struct {
	mu        sync.Mutex
	responses []string
	failAt    map[int]error
	calls     int
}

var _ genclient.Client = (*mockClient)(nil)

func (m *mockClient) Complete(context.Context, string, string, genclient.Options) (*genclient.Response, error) {
	return nil, fmt.Errorf("mockClient: Complete not scripted")
}

func (m *mockClient) RecognizeText(context.Context, string) (*genclient.Response, error) {
	return nil, fmt.Errorf("mockClient: RecognizeText not scripted")
}

func (m *mockClient) CompleteTyped(
	_ context.Context,
	_, _ string,
	schema *genclient.Schema,
	_ int,
	out any,
) (*genclient.Response, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	idx := m.calls
	m.calls++

	if err, ok := m.failAt[idx]; ok {
		return nil, err
	}
	if idx >= len(m.responses) {
		return nil, fmt.Errorf("mockClient: unscripted call %d", idx)
	}

	content := m.responses[idx]
	if err := schema.Validate([]byte(content)); err != nil {
		return nil, &genclient.GenerationError{Cause: err}
	}
	if err := json.Unmarshal([]byte(content), out); err != nil {
		return nil, &genclient.GenerationError{Cause: err}
	}
	return &genclient.Response{
		Content: content,
		Model:   "mock-model",
		Usage:   domain.TokenUsage{Prompt: 10, Completion: 5, Total: 15},
	}, nil
}
