// Package history keeps a short, Redis-backed list of recent searches.
//
// It records what was searched and how it went (listing count, error class,
// duration), never the listings themselves. Entries are pushed to the head of
// a Redis list and the list is trimmed to a fixed length, so the store is
// bounded and the newest search is always first.
//
// # Basic Usage
//
//	redisClient := redis.NewClient(&redis.Options{
//		Addr: "localhost:6379",
//	})
//
//	store := history.NewStore(redisClient, history.DefaultConfig())
//
//	cfg := client.DefaultConfig()
//	cfg.History = store
//	c, err := client.New(cfg)
//
//	// later
//	recent, err := store.Recent(ctx, 10)
//
// # Metrics
//
//   - tutti_history_records_total - Entries written
//   - tutti_history_errors_total{operation} - Redis operation errors
package history
