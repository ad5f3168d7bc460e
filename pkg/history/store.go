package history

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrInvalidEntry indicates a stored entry could not be decoded
var ErrInvalidEntry = errors.New("invalid history entry")

// DefaultKey is the Redis list holding recent searches.
const DefaultKey = "tutti:history:searches"

// Entry summarizes one retrieval call.
type Entry struct {
	Query string `json:"query"`

	// Listings is the number of listings returned (0 on failure).
	Listings int `json:"listings"`

	// ErrorClass is the failure class, empty on success.
	ErrorClass string `json:"error_class,omitempty"`

	Duration  time.Duration `json:"duration"`
	Timestamp time.Time     `json:"timestamp"`
}

// Succeeded reports whether the recorded call returned listings.
func (e Entry) Succeeded() bool {
	return e.ErrorClass == ""
}

// Config holds store configuration.
type Config struct {
	// Key is the Redis list key.
	Key string
	// Limit is the maximum number of entries kept.
	Limit int
}

// DefaultConfig keeps the 50 most recent searches under DefaultKey.
func DefaultConfig() Config {
	return Config{
		Key:   DefaultKey,
		Limit: 50,
	}
}

// Store records searches in a capped Redis list, newest first.
type Store struct {
	redis  *redis.Client
	config Config
}

// NewStore creates a new history store with Redis backend.
func NewStore(redisClient *redis.Client, cfg Config) *Store {
	if redisClient == nil {
		panic("redis client cannot be nil")
	}
	if cfg.Key == "" {
		cfg.Key = DefaultKey
	}
	if cfg.Limit <= 0 {
		cfg.Limit = DefaultConfig().Limit
	}
	return &Store{
		redis:  redisClient,
		config: cfg,
	}
}

// Record pushes entry to the head of the list and trims it to the limit.
func (s *Store) Record(ctx context.Context, entry Entry) error {
	data, err := json.Marshal(entry)
	if err != nil {
		Errors.WithLabelValues("record").Inc()
		return fmt.Errorf("marshal history entry: %w", err)
	}

	_, err = s.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.LPush(ctx, s.config.Key, data)
		pipe.LTrim(ctx, s.config.Key, 0, int64(s.config.Limit-1))
		return nil
	})
	if err != nil {
		Errors.WithLabelValues("record").Inc()
		return fmt.Errorf("redis record: %w", err)
	}

	RecordsTotal.Inc()
	return nil
}

// Recent returns up to n entries, newest first. n <= 0 returns all kept entries.
func (s *Store) Recent(ctx context.Context, n int) ([]Entry, error) {
	stop := int64(-1)
	if n > 0 {
		stop = int64(n - 1)
	}

	raw, err := s.redis.LRange(ctx, s.config.Key, 0, stop).Result()
	if err != nil {
		Errors.WithLabelValues("recent").Inc()
		return nil, fmt.Errorf("redis lrange: %w", err)
	}

	entries := make([]Entry, 0, len(raw))
	for _, item := range raw {
		var entry Entry
		if err := json.Unmarshal([]byte(item), &entry); err != nil {
			Errors.WithLabelValues("recent").Inc()
			return nil, fmt.Errorf("%w: %v", ErrInvalidEntry, err)
		}
		entries = append(entries, entry)
	}

	return entries, nil
}

// Queries returns the distinct recent query strings, newest first.
func (s *Store) Queries(ctx context.Context, n int) ([]string, error) {
	entries, err := s.Recent(ctx, 0)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]struct{}, len(entries))
	var queries []string
	for _, e := range entries {
		if _, ok := seen[e.Query]; ok {
			continue
		}
		seen[e.Query] = struct{}{}
		queries = append(queries, e.Query)
		if n > 0 && len(queries) == n {
			break
		}
	}
	return queries, nil
}

// Clear removes all entries.
func (s *Store) Clear(ctx context.Context) error {
	if err := s.redis.Del(ctx, s.config.Key).Err(); err != nil {
		Errors.WithLabelValues("clear").Inc()
		return fmt.Errorf("redis del: %w", err)
	}
	return nil
}
