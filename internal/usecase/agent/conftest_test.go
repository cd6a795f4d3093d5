package agent

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/kailas-cloud/counsel/internal/domain"
)

type fakeThreads struct {
	mu       sync.Mutex
	messages map[string][]domain.Message

	appendCalls int
	appendErr   error
	readErr     error
}

func newFakeThreads() *fakeThreads {
	return &fakeThreads{messages: make(map[string][]domain.Message)}
}

func (f *fakeThreads) Read(_ context.Context, threadID string) ([]domain.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.readErr != nil {
		return nil, f.readErr
	}
	out := make([]domain.Message, len(f.messages[threadID]))
	copy(out, f.messages[threadID])
	return out, nil
}

func (f *fakeThreads) Append(_ context.Context, threadID string, messages []domain.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.appendCalls++
	if f.appendErr != nil {
		return f.appendErr
	}
	f.messages[threadID] = append(f.messages[threadID], messages...)
	return nil
}

func (f *fakeThreads) history(threadID string) []domain.Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]domain.Message, len(f.messages[threadID]))
	copy(out, f.messages[threadID])
	return out
}

// scriptedChat replays a fixed sequence of decisions, one per Decide call,
// and records the history it was shown at each step.
type scriptedChat struct {
	mu        sync.Mutex
	decisions []domain.Decision
	err       error
	errAt     int // 1-based call index at which err fires; 0 = first call

	calls     int
	histories [][]domain.Message
}

func (s *scriptedChat) Decide(_ context.Context, history []domain.Message) (domain.Decision, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	snapshot := make([]domain.Message, len(history))
	copy(snapshot, history)
	s.histories = append(s.histories, snapshot)

	if s.err != nil && (s.errAt == 0 || s.calls == s.errAt) {
		return domain.Decision{}, s.err
	}
	if len(s.decisions) == 0 {
		return domain.Decision{}, nil
	}
	d := s.decisions[0]
	s.decisions = s.decisions[1:]
	return d, nil
}

// answerAlways returns the same final content for every Decide call.
type answerAlways struct {
	content string

	mu    sync.Mutex
	calls int
}

func (a *answerAlways) Decide(_ context.Context, _ []domain.Message) (domain.Decision, error) {
	a.mu.Lock()
	a.calls++
	a.mu.Unlock()
	return domain.Decision{Content: a.content}, nil
}

type fakeRetriever struct {
	mu      sync.Mutex
	results []domain.RetrievalResult
	err     error

	queries []string
	ks      []int
}

func (f *fakeRetriever) Query(_ context.Context, _ string, text string, k int) ([]domain.RetrievalResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	f.queries = append(f.queries, text)
	f.ks = append(f.ks, k)
	return f.results, nil
}

func retrieveCall(id, query string, k int) domain.Decision {
	return domain.Decision{ToolCall: &domain.ToolCall{ID: id, Name: "retrieve", Query: query, K: k}}
}

func answer(content string) domain.Decision {
	return domain.Decision{Content: content}
}

func newTestAgent(threads Threads, chat Chat, index Retriever) *Service {
	return New(threads, chat, index, Config{
		Collection: "tax",
		MaxSteps:   3,
		TopK:       5,
	}, zap.NewNop())
}
