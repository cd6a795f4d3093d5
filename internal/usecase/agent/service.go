package agent

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/kailas-cloud/counsel/internal/domain"
	"github.com/kailas-cloud/counsel/internal/metrics"
)

// Config holds orchestrator tuning.
type Config struct {
	// Collection is the indexed collection retrieval runs against.
	Collection string
	// MaxSteps bounds decide/retrieve cycles per turn.
	MaxSteps int
	// TopK is the retrieval k used when the model does not request one.
	TopK int
}

// Service drives one conversational turn through the decide/retrieve loop
// and persists the transcript atomically at the end of the turn.
type Service struct {
	threads Threads
	chat    Chat
	index   Retriever
	cfg     Config
	locks   *threadLocks
	logger  *zap.Logger
}

// New creates the agent orchestrator.
func New(threads Threads, chat Chat, index Retriever, cfg Config, logger *zap.Logger) *Service {
	if cfg.MaxSteps <= 0 {
		cfg.MaxSteps = 4
	}
	if cfg.TopK <= 0 {
		cfg.TopK = 5
	}
	return &Service{
		threads: threads,
		chat:    chat,
		index:   index,
		cfg:     cfg,
		locks:   newThreadLocks(),
		logger:  logger,
	}
}

// Ask runs one turn on the thread. New messages produced by the turn are
// buffered and appended in a single write only on success, so a failed or
// cancelled turn leaves the thread history untouched.
func (s *Service) Ask(ctx context.Context, question, threadID string) (domain.Answer, error) {
	s.locks.acquire(threadID)
	defer s.locks.release(threadID)

	history, err := s.threads.Read(ctx, threadID)
	if err != nil {
		return domain.Answer{}, fmt.Errorf("read thread %s: %w", threadID, err)
	}

	var buffer []domain.Message
	if len(history) == 0 {
		buffer = append(buffer, domain.Message{Role: domain.RoleSystem, Content: systemInstruction})
	}
	buffer = append(buffer, domain.Message{Role: domain.RoleHuman, Content: question})

	working := make([]domain.Message, 0, len(history)+len(buffer))
	working = append(working, history...)
	working = append(working, buffer...)

	for step := 1; step <= s.cfg.MaxSteps; step++ {
		decision, err := s.chat.Decide(ctx, working)
		if err != nil {
			metrics.AgentTurnsTotal.WithLabelValues("failed").Inc()
			return domain.Answer{}, fmt.Errorf("decide step %d: %w", step, err)
		}

		if decision.ToolCall == nil {
			if decision.Content == "" {
				metrics.AgentTurnsTotal.WithLabelValues("failed").Inc()
				return domain.Answer{}, fmt.Errorf("decide step %d: %w", step, domain.ErrNoAnswer)
			}
			buffer = append(buffer, domain.Message{Role: domain.RoleAI, Content: decision.Content})
			if err := s.threads.Append(ctx, threadID, buffer); err != nil {
				metrics.AgentTurnsTotal.WithLabelValues("failed").Inc()
				return domain.Answer{}, fmt.Errorf("append thread %s: %w", threadID, err)
			}
			metrics.AgentTurnsTotal.WithLabelValues("answered").Inc()
			metrics.AgentTurnSteps.Observe(float64(step))
			return domain.Answer{Question: question, Answer: decision.Content}, nil
		}

		evidence, err := s.retrieve(ctx, decision.ToolCall)
		if err != nil {
			metrics.AgentTurnsTotal.WithLabelValues("failed").Inc()
			return domain.Answer{}, err
		}

		aiMsg := domain.Message{Role: domain.RoleAI, Content: decision.Content, ToolCall: decision.ToolCall}
		toolMsg := domain.Message{Role: domain.RoleTool, Content: evidence, ToolCallID: decision.ToolCall.ID}
		buffer = append(buffer, aiMsg, toolMsg)
		working = append(working, aiMsg, toolMsg)

		s.logger.Debug("retrieval step",
			zap.String("thread_id", threadID),
			zap.Int("step", step),
			zap.String("query", decision.ToolCall.Query),
		)
	}

	// Budget exhausted: degrade to an explicit answer rather than failing
	// the turn, and persist the transcript including the degraded reply.
	buffer = append(buffer, domain.Message{Role: domain.RoleAI, Content: unableToComplete})
	if err := s.threads.Append(ctx, threadID, buffer); err != nil {
		metrics.AgentTurnsTotal.WithLabelValues("failed").Inc()
		return domain.Answer{}, fmt.Errorf("append thread %s: %w", threadID, err)
	}
	s.logger.Warn("step budget exhausted",
		zap.String("thread_id", threadID),
		zap.Int("max_steps", s.cfg.MaxSteps),
	)
	metrics.AgentTurnsTotal.WithLabelValues("budget_exhausted").Inc()
	metrics.AgentTurnSteps.Observe(float64(s.cfg.MaxSteps))
	return domain.Answer{Question: question, Answer: unableToComplete}, nil
}

func (s *Service) retrieve(ctx context.Context, tc *domain.ToolCall) (string, error) {
	k := tc.K
	if k <= 0 {
		k = s.cfg.TopK
	}

	results, err := s.index.Query(ctx, s.cfg.Collection, tc.Query, k)
	if err != nil {
		return "", fmt.Errorf("retrieve %q: %w: %w", tc.Query, domain.ErrCapability, err)
	}
	metrics.RetrievalResultsTotal.Add(float64(len(results)))
	return formatEvidence(results), nil
}
