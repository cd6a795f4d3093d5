package agent

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/kailas-cloud/counsel/internal/domain"
)

func TestAskDirectAnswer(t *testing.T) {
	threads := newFakeThreads()
	chat := &scriptedChat{decisions: []domain.Decision{answer("Hello, how can I help?")}}
	svc := newTestAgent(threads, chat, &fakeRetriever{})

	got, err := svc.Ask(context.Background(), "hi", "t1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Question != "hi" || got.Answer != "Hello, how can I help?" {
		t.Errorf("unexpected answer %+v", got)
	}
	if chat.calls != 1 {
		t.Errorf("direct answer should take exactly one decide step, got %d", chat.calls)
	}

	history := threads.history("t1")
	wantRoles := []domain.Role{domain.RoleSystem, domain.RoleHuman, domain.RoleAI}
	if len(history) != len(wantRoles) {
		t.Fatalf("expected %d persisted messages, got %d", len(wantRoles), len(history))
	}
	for i, role := range wantRoles {
		if history[i].Role != role {
			t.Errorf("message %d role = %s, want %s", i, history[i].Role, role)
		}
	}
}

func TestAskRetrieveThenAnswer(t *testing.T) {
	threads := newFakeThreads()
	chat := &scriptedChat{decisions: []domain.Decision{
		retrieveCall("call-1", "capital gains tax rate", 0),
		answer("The rate is 10% [1] Nigeria Tax Act 2025, p. 44."),
	}}
	retriever := &fakeRetriever{results: []domain.RetrievalResult{{
		Content: "Capital gains are taxed at ten percent.",
		Meta:    domain.Metadata{ActName: "Nigeria Tax Act", PageNumber: 44},
	}}}
	svc := newTestAgent(threads, chat, retriever)

	got, err := svc.Ask(context.Background(), "what is the CGT rate?", "t1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(got.Answer, "10%") {
		t.Errorf("unexpected answer %q", got.Answer)
	}
	if len(retriever.queries) != 1 || retriever.queries[0] != "capital gains tax rate" {
		t.Errorf("unexpected retrieval queries %v", retriever.queries)
	}
	if retriever.ks[0] != 5 {
		t.Errorf("k=0 tool call should fall back to configured top_k, got %d", retriever.ks[0])
	}

	// One retrieval interleaves one tool message between two assistant steps.
	history := threads.history("t1")
	wantRoles := []domain.Role{domain.RoleSystem, domain.RoleHuman, domain.RoleAI, domain.RoleTool, domain.RoleAI}
	if len(history) != len(wantRoles) {
		t.Fatalf("expected %d persisted messages, got %d", len(wantRoles), len(history))
	}
	for i, role := range wantRoles {
		if history[i].Role != role {
			t.Errorf("message %d role = %s, want %s", i, history[i].Role, role)
		}
	}
	if history[2].ToolCall == nil || history[2].ToolCall.ID != "call-1" {
		t.Errorf("assistant message must carry its tool call, got %+v", history[2].ToolCall)
	}
	if history[3].ToolCallID != "call-1" {
		t.Errorf("tool message must link back to the call, got %q", history[3].ToolCallID)
	}
	if !strings.Contains(history[3].Content, "Nigeria Tax Act") {
		t.Errorf("tool message must carry cited evidence, got %q", history[3].Content)
	}
}

func TestAskMultipleRetrievals(t *testing.T) {
	threads := newFakeThreads()
	chat := &scriptedChat{decisions: []domain.Decision{
		retrieveCall("call-1", "VAT registration threshold", 3),
		retrieveCall("call-2", "VAT registration threshold small company", 3),
		answer("The threshold is 25 million naira."),
	}}
	svc := newTestAgent(threads, chat, &fakeRetriever{})

	if _, err := svc.Ask(context.Background(), "VAT threshold?", "t1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// N retrievals produce N tool messages and N+1 assistant steps.
	history := threads.history("t1")
	var tools, ais int
	for _, m := range history {
		switch m.Role {
		case domain.RoleTool:
			tools++
		case domain.RoleAI:
			ais++
		}
	}
	if tools != 2 || ais != 3 {
		t.Errorf("expected 2 tool and 3 ai messages, got %d and %d", tools, ais)
	}
}

func TestAskBudgetExhausted(t *testing.T) {
	threads := newFakeThreads()
	// Every decision requests retrieval; MaxSteps is 3 in the test config.
	chat := &scriptedChat{decisions: []domain.Decision{
		retrieveCall("c1", "q1", 2),
		retrieveCall("c2", "q2", 2),
		retrieveCall("c3", "q3", 2),
		retrieveCall("c4", "q4", 2),
	}}
	svc := newTestAgent(threads, chat, &fakeRetriever{})

	got, err := svc.Ask(context.Background(), "looping question", "t1")
	if err != nil {
		t.Fatalf("budget exhaustion must degrade, not fail: %v", err)
	}
	if got.Answer != unableToComplete {
		t.Errorf("expected the degraded answer, got %q", got.Answer)
	}
	if chat.calls != 3 {
		t.Errorf("expected exactly max_steps decide calls, got %d", chat.calls)
	}

	history := threads.history("t1")
	last := history[len(history)-1]
	if last.Role != domain.RoleAI || last.Content != unableToComplete {
		t.Errorf("transcript must end with the degraded answer, got %+v", last)
	}
}

func TestAskSystemPromptSeededOnce(t *testing.T) {
	threads := newFakeThreads()
	chat := &answerAlways{content: "fine"}
	svc := newTestAgent(threads, chat, &fakeRetriever{})

	for i := 0; i < 3; i++ {
		if _, err := svc.Ask(context.Background(), fmt.Sprintf("q%d", i), "t1"); err != nil {
			t.Fatalf("turn %d: %v", i, err)
		}
	}

	var systems int
	for _, m := range threads.history("t1") {
		if m.Role == domain.RoleSystem {
			systems++
		}
	}
	if systems != 1 {
		t.Errorf("system instruction must be seeded exactly once, got %d", systems)
	}
}

func TestAskAppendsOnlyTurnMessages(t *testing.T) {
	threads := newFakeThreads()
	chat := &answerAlways{content: "answer"}
	svc := newTestAgent(threads, chat, &fakeRetriever{})

	if _, err := svc.Ask(context.Background(), "first", "t1"); err != nil {
		t.Fatalf("first turn: %v", err)
	}
	before := len(threads.history("t1"))

	if _, err := svc.Ask(context.Background(), "second", "t1"); err != nil {
		t.Fatalf("second turn: %v", err)
	}

	// Second turn adds only [human, ai]; prior history is never rewritten.
	history := threads.history("t1")
	if len(history) != before+2 {
		t.Fatalf("expected %d messages, got %d", before+2, len(history))
	}
	if history[before].Role != domain.RoleHuman || history[before].Content != "second" {
		t.Errorf("unexpected turn start %+v", history[before])
	}
}

func TestAskCapabilityErrorLeavesThreadUntouched(t *testing.T) {
	threads := newFakeThreads()
	chat := &scriptedChat{err: fmt.Errorf("model timeout: %w", domain.ErrCapability)}
	svc := newTestAgent(threads, chat, &fakeRetriever{})

	_, err := svc.Ask(context.Background(), "q", "t1")
	if !errors.Is(err, domain.ErrCapability) {
		t.Fatalf("expected capability error, got %v", err)
	}
	if threads.appendCalls != 0 {
		t.Errorf("failed turn must not append, got %d appends", threads.appendCalls)
	}
	if len(threads.history("t1")) != 0 {
		t.Errorf("thread must stay empty after a failed turn")
	}
}

func TestAskMidTurnCapabilityErrorLeavesThreadUntouched(t *testing.T) {
	threads := newFakeThreads()
	chat := &scriptedChat{
		decisions: []domain.Decision{retrieveCall("c1", "q1", 2)},
		err:       fmt.Errorf("model timeout: %w", domain.ErrCapability),
		errAt:     2,
	}
	svc := newTestAgent(threads, chat, &fakeRetriever{})

	_, err := svc.Ask(context.Background(), "q", "t1")
	if !errors.Is(err, domain.ErrCapability) {
		t.Fatalf("expected capability error, got %v", err)
	}
	if len(threads.history("t1")) != 0 {
		t.Errorf("mid-turn failure must leave the thread empty")
	}
}

func TestAskRetrievalErrorSurfacesAsCapability(t *testing.T) {
	threads := newFakeThreads()
	chat := &scriptedChat{decisions: []domain.Decision{retrieveCall("c1", "q1", 2)}}
	retriever := &fakeRetriever{err: errors.New("store unavailable")}
	svc := newTestAgent(threads, chat, retriever)

	_, err := svc.Ask(context.Background(), "q", "t1")
	if !errors.Is(err, domain.ErrCapability) {
		t.Fatalf("expected capability error, got %v", err)
	}
	if threads.appendCalls != 0 {
		t.Errorf("failed turn must not append")
	}
}

func TestAskEmptyDecisionIsNoAnswer(t *testing.T) {
	threads := newFakeThreads()
	chat := &scriptedChat{decisions: []domain.Decision{{}}}
	svc := newTestAgent(threads, chat, &fakeRetriever{})

	_, err := svc.Ask(context.Background(), "q", "t1")
	if !errors.Is(err, domain.ErrNoAnswer) {
		t.Fatalf("expected no-answer error, got %v", err)
	}
	if len(threads.history("t1")) != 0 {
		t.Errorf("thread must stay empty")
	}
}

func TestAskConcurrentTurnsSameThread(t *testing.T) {
	threads := newFakeThreads()
	chat := &answerAlways{content: "ok"}
	svc := newTestAgent(threads, chat, &fakeRetriever{})

	const turns = 8
	var wg sync.WaitGroup
	for i := 0; i < turns; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if _, err := svc.Ask(context.Background(), fmt.Sprintf("q%d", i), "t1"); err != nil {
				t.Errorf("turn %d: %v", i, err)
			}
		}(i)
	}
	wg.Wait()

	// One system seed plus [human, ai] per serialized turn.
	history := threads.history("t1")
	if len(history) != 1+2*turns {
		t.Fatalf("expected %d messages, got %d", 1+2*turns, len(history))
	}
	var systems int
	for _, m := range history {
		if m.Role == domain.RoleSystem {
			systems++
		}
	}
	if systems != 1 {
		t.Errorf("concurrent turns must not duplicate the system seed, got %d", systems)
	}
	for i := 1; i < len(history); i += 2 {
		if history[i].Role != domain.RoleHuman || history[i+1].Role != domain.RoleAI {
			t.Fatalf("interleaved turn at message %d", i)
		}
	}
}

func TestAskDistinctThreadsIndependent(t *testing.T) {
	threads := newFakeThreads()
	chat := &answerAlways{content: "ok"}
	svc := newTestAgent(threads, chat, &fakeRetriever{})

	var wg sync.WaitGroup
	for _, id := range []string{"a", "b", "c"} {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			if _, err := svc.Ask(context.Background(), "q", id); err != nil {
				t.Errorf("thread %s: %v", id, err)
			}
		}(id)
	}
	wg.Wait()

	for _, id := range []string{"a", "b", "c"} {
		if got := len(threads.history(id)); got != 3 {
			t.Errorf("thread %s: expected 3 messages, got %d", id, got)
		}
	}
}

func TestFormatEvidence(t *testing.T) {
	results := []domain.RetrievalResult{
		{Content: "first excerpt", Meta: domain.Metadata{ActName: "Nigeria Tax Act", PageNumber: 3}},
		{Content: "second excerpt", Meta: domain.Metadata{DocumentTitle: "Finance Act 2024", PageNumber: 17}},
	}

	got := formatEvidence(results)
	if !strings.Contains(got, "[1] Nigeria Tax Act, p. 3") {
		t.Errorf("missing first citation in %q", got)
	}
	if !strings.Contains(got, "[2] Finance Act 2024, p. 17") {
		t.Errorf("missing second citation in %q", got)
	}
	if !strings.Contains(got, "second excerpt") {
		t.Errorf("missing excerpt text in %q", got)
	}

	if got := formatEvidence(nil); !strings.Contains(got, "No relevant documents") {
		t.Errorf("empty results must be stated explicitly, got %q", got)
	}
}
