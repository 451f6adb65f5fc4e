package checkpoint

import (
	"context"
	"errors"
	"fmt"

	"cblcrawl/pkg/logger"

	"github.com/redis/go-redis/v9"
)

// RedisStore keeps the checkpoint document under a single Redis key. SET
// replaces the value atomically, so readers never see a partial document.
type RedisStore struct {
	client *redis.Client
	key    string
	logger logger.Logger
}

// RedisOptions configures a RedisStore
type RedisOptions struct {
	Addr     string
	Password string
	DB       int
	Prefix   string
}

// NewRedisStore connects to Redis and returns a store for the given entity
func NewRedisStore(ctx context.Context, opts RedisOptions, entity string, log logger.Logger) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", opts.Addr, err)
	}

	return NewRedisStoreWithClient(client, opts.Prefix+entity, log), nil
}

// NewRedisStoreWithClient wraps an existing client
func NewRedisStoreWithClient(client *redis.Client, key string, log logger.Logger) *RedisStore {
	if log == nil {
		log = logger.GetLogger()
	}
	return &RedisStore{
		client: client,
		key:    key,
		logger: log.WithField("checkpoint", "redis:"+key),
	}
}

// Location returns the Redis key
func (s *RedisStore) Location() string {
	return "redis:" + s.key
}

// Load fetches the document. A missing key yields nil; an undecodable value
// is logged and yields nil. Connection errors are returned.
func (s *RedisStore) Load(ctx context.Context) (*string, error) {
	data, err := s.client.Get(ctx, s.key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read checkpoint key: %w", err)
	}

	cursor, err := decode(data)
	if err != nil {
		s.logger.WithError(err).Warn("Checkpoint value is corrupted")
		return nil, nil
	}
	return cursor, nil
}

// Save stores the document with no expiry
func (s *RedisStore) Save(ctx context.Context, cursor *string) error {
	data, err := encode(cursor)
	if err != nil {
		return fmt.Errorf("failed to encode checkpoint: %w", err)
	}
	if err := s.client.Set(ctx, s.key, data, 0).Err(); err != nil {
		return fmt.Errorf("failed to write checkpoint key: %w", err)
	}
	s.logger.DebugWithFields("Checkpoint saved", map[string]interface{}{"cursor": cursor})
	return nil
}

// Close releases the Redis connection pool
func (s *RedisStore) Close() error {
	return s.client.Close()
}
