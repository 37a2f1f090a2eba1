// Package mock provides an in-process llms.Model for tests.
package mock

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/tmc/langchaingo/llms"
)

var ErrNoScript = errors.New("mock: no response scripted for prompt")

// Model is a test double for llms.Model. GenerateFunc decides every answer.
type Model struct {
	GenerateFunc func(ctx context.Context, prompt string) (string, error)

	mu      sync.Mutex
	prompts []string
}

func NewModel(fn func(ctx context.Context, prompt string) (string, error)) *Model {
	return &Model{GenerateFunc: fn}
}

func (m *Model) GenerateContent(ctx context.Context, messages []llms.MessageContent, options ...llms.CallOption) (*llms.ContentResponse, error) {
	var b strings.Builder
	for _, msg := range messages {
		for _, part := range msg.Parts {
			if text, ok := part.(llms.TextContent); ok {
				b.WriteString(text.Text)
			}
		}
	}

	text, err := m.Call(ctx, b.String(), options...)
	if err != nil {
		return nil, err
	}
	return &llms.ContentResponse{
		Choices: []*llms.ContentChoice{{Content: text}},
	}, nil
}

func (m *Model) Call(ctx context.Context, prompt string, options ...llms.CallOption) (string, error) {
	m.mu.Lock()
	m.prompts = append(m.prompts, prompt)
	m.mu.Unlock()

	if m.GenerateFunc == nil {
		return "", ErrNoScript
	}
	return m.GenerateFunc(ctx, prompt)
}

// Prompts returns every prompt received so far.
func (m *Model) Prompts() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.prompts...)
}

func (m *Model) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.prompts)
}

// Script answers each enhancer prompt kind with its own function. A nil
// function fails that kind of call.
type Script struct {
	Expand  func(prompt string) (string, error)
	Score   func(prompt string) (string, error)
	Verdict func(prompt string) (string, error)
	Snippet func(prompt string) (string, error)
}

// NewScriptedModel routes prompts on the answer cue they end with.
func NewScriptedModel(s Script) *Model {
	return NewModel(func(_ context.Context, prompt string) (string, error) {
		var fn func(string) (string, error)
		switch cue := strings.TrimSpace(prompt); {
		case strings.HasSuffix(cue, "Enhanced query:"):
			fn = s.Expand
		case strings.HasSuffix(cue, "Relevance score:"):
			fn = s.Score
		case strings.HasSuffix(cue, "Verdict:"):
			fn = s.Verdict
		case strings.HasSuffix(cue, "Snippet:"):
			fn = s.Snippet
		}
		if fn == nil {
			return "", ErrNoScript
		}
		return fn(prompt)
	})
}

// ByTitle picks an answer by the document title embedded in the prompt.
func ByTitle(answers map[string]string) func(string) (string, error) {
	return func(prompt string) (string, error) {
		for title, answer := range answers {
			if strings.Contains(prompt, "Document title: "+title+"\n") {
				return answer, nil
			}
		}
		return "", ErrNoScript
	}
}
