package builtin

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/damacus/iron-drawer/internal/errs"
	"github.com/redis/go-redis/v9"
)

// Comment is one entry in an object's thread.
type Comment struct {
	ID        string    `json:"id"`
	Author    string    `json:"author"`
	Body      string    `json:"body"`
	CreatedAt time.Time `json:"created_at"`
}

// CommentStore keeps comment threads keyed by object id.
type CommentStore interface {
	List(ctx context.Context, objectID string) ([]Comment, error)
	Add(ctx context.Context, objectID string, c Comment) error
	// Drop removes the thread of objectID.
	Drop(ctx context.Context, objectID string) error
	// Move re-keys a thread, appending to any thread already at to.
	Move(ctx context.Context, from, to string) error
}

// MemoryCommentStore keeps threads in process memory.
type MemoryCommentStore struct {
	mu      sync.RWMutex
	threads map[string][]Comment
}

func NewMemoryCommentStore() *MemoryCommentStore {
	return &MemoryCommentStore{threads: make(map[string][]Comment)}
}

func (s *MemoryCommentStore) List(ctx context.Context, objectID string) ([]Comment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]Comment(nil), s.threads[objectID]...), nil
}

func (s *MemoryCommentStore) Add(ctx context.Context, objectID string, c Comment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.threads[objectID] = append(s.threads[objectID], c)
	return nil
}

func (s *MemoryCommentStore) Drop(ctx context.Context, objectID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.threads, objectID)
	return nil
}

func (s *MemoryCommentStore) Move(ctx context.Context, from, to string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	thread, ok := s.threads[from]
	if !ok || from == to {
		return nil
	}
	s.threads[to] = append(s.threads[to], thread...)
	delete(s.threads, from)
	return nil
}

// RedisCommentStore keeps each thread in a Redis list of JSON comments.
type RedisCommentStore struct {
	client *redis.Client
	prefix string
}

// RedisOptions configures NewRedisCommentStore.
type RedisOptions struct {
	Addr     string
	Password string
	DB       int
}

func NewRedisCommentStore(opts RedisOptions) *RedisCommentStore {
	return &RedisCommentStore{
		client: redis.NewClient(&redis.Options{
			Addr:     opts.Addr,
			Password: opts.Password,
			DB:       opts.DB,
		}),
		prefix: "drawer:comments:",
	}
}

// Ping checks the Redis connection.
func (s *RedisCommentStore) Ping(ctx context.Context) error {
	if err := s.client.Ping(ctx).Err(); err != nil {
		return errs.Wrap(errs.ErrKindConnectionFailed, "redis ping failed", err)
	}
	return nil
}

func (s *RedisCommentStore) Close() error {
	return s.client.Close()
}

func (s *RedisCommentStore) key(objectID string) string {
	return s.prefix + objectID
}

func (s *RedisCommentStore) List(ctx context.Context, objectID string) ([]Comment, error) {
	raw, err := s.client.LRange(ctx, s.key(objectID), 0, -1).Result()
	if err != nil {
		return nil, errs.Wrap(errs.ErrKindStorageFailed, "failed to read comments", err)
	}
	comments := make([]Comment, 0, len(raw))
	for _, item := range raw {
		var c Comment
		if err := json.Unmarshal([]byte(item), &c); err != nil {
			return nil, errs.Wrap(errs.ErrKindStorageFailed, fmt.Sprintf("corrupt comment in thread %s", objectID), err)
		}
		comments = append(comments, c)
	}
	return comments, nil
}

func (s *RedisCommentStore) Add(ctx context.Context, objectID string, c Comment) error {
	data, err := json.Marshal(c)
	if err != nil {
		return errs.Wrap(errs.ErrKindInvalidInput, "failed to encode comment", err)
	}
	if err := s.client.RPush(ctx, s.key(objectID), data).Err(); err != nil {
		return errs.Wrap(errs.ErrKindStorageFailed, "failed to save comment", err)
	}
	return nil
}

func (s *RedisCommentStore) Drop(ctx context.Context, objectID string) error {
	if err := s.client.Del(ctx, s.key(objectID)).Err(); err != nil {
		return errs.Wrap(errs.ErrKindStorageFailed, "failed to drop comments", err)
	}
	return nil
}

func (s *RedisCommentStore) Move(ctx context.Context, from, to string) error {
	if from == to {
		return nil
	}
	src, dst := s.key(from), s.key(to)
	// LMOVE one element at a time keeps order and appends to an existing thread.
	for {
		err := s.client.LMove(ctx, src, dst, "LEFT", "RIGHT").Err()
		if err == redis.Nil {
			return nil
		}
		if err != nil {
			return errs.Wrap(errs.ErrKindStorageFailed, "failed to move comments", err)
		}
	}
}
