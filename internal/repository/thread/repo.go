package thread

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/kailas-cloud/counsel/internal/domain"
)

// store is the consumer interface for thread persistence (ISP).
type store interface {
	RPush(ctx context.Context, key string, values ...string) error
	LRange(ctx context.Context, key string, start, stop int64) ([]string, error)
}

// Repo keeps one append-only message log per thread id.
// A multi-message append goes out as a single RPUSH, so concurrent readers
// never observe a half-written turn.
type Repo struct {
	store  store
	prefix string
}

// New creates a thread repository.
func New(s store, keyPrefix string) *Repo {
	return &Repo{store: s, prefix: keyPrefix}
}

func (r *Repo) key(threadID string) string {
	return r.prefix + "thread:" + threadID
}

// Append appends messages to the thread's history.
func (r *Repo) Append(ctx context.Context, threadID string, messages []domain.Message) error {
	if len(messages) == 0 {
		return nil
	}

	values := make([]string, len(messages))
	for i, m := range messages {
		data, err := json.Marshal(m)
		if err != nil {
			return fmt.Errorf("marshal message %d: %w", i, err)
		}
		values[i] = string(data)
	}

	if err := r.store.RPush(ctx, r.key(threadID), values...); err != nil {
		return fmt.Errorf("append thread %s: %w", threadID, err)
	}
	return nil
}

// Read returns the thread's ordered history.
// An unknown thread id yields an empty slice, not an error.
func (r *Repo) Read(ctx context.Context, threadID string) ([]domain.Message, error) {
	values, err := r.store.LRange(ctx, r.key(threadID), 0, -1)
	if err != nil {
		return nil, fmt.Errorf("read thread %s: %w", threadID, err)
	}

	messages := make([]domain.Message, 0, len(values))
	for i, v := range values {
		var m domain.Message
		if err := json.Unmarshal([]byte(v), &m); err != nil {
			return nil, fmt.Errorf("parse message %d of thread %s: %w", i, threadID, err)
		}
		messages = append(messages, m)
	}
	return messages, nil
}
