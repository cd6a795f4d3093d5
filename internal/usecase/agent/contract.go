package agent

import (
	"context"

	"github.com/kailas-cloud/counsel/internal/domain"
)

// Threads is the append-only conversation store contract.
type Threads interface {
	Read(ctx context.Context, threadID string) ([]domain.Message, error)
	Append(ctx context.Context, threadID string, messages []domain.Message) error
}

// Chat is the decide/answer capability. It inspects the history and either
// produces final content or requests one retrieval.
type Chat interface {
	Decide(ctx context.Context, history []domain.Message) (domain.Decision, error)
}

// Retriever executes retrieval tool calls against the vector index.
type Retriever interface {
	Query(ctx context.Context, collection, text string, k int) ([]domain.RetrievalResult, error)
}
