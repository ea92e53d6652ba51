package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/aretw0/stagehand/pkg/domain"
	backend "github.com/redis/go-redis/v9"
)

// DefaultPrefix namespaces machine config keys.
const DefaultPrefix = "stagehand:machine:"

// noExpiry is the index score used for configs saved without a TTL (2100-01-01).
const noExpiry = 4102444800

// Store implements ports.ConfigStore using Redis.
//
// Each config is a JSON string under prefix+machineID. A sorted set at
// prefix+"index" tracks IDs scored by expiry so List can prune lazily.
type Store struct {
	client *backend.Client
	prefix string
	ttl    time.Duration
	now    func() time.Time
}

type Option func(*Store)

// WithTTL sets the expiration for stored configs.
func WithTTL(ttl time.Duration) Option {
	return func(s *Store) {
		s.ttl = ttl
	}
}

// WithPrefix sets the key prefix.
func WithPrefix(prefix string) Option {
	return func(s *Store) {
		s.prefix = prefix
	}
}

// WithClock overrides the clock used to score the index.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		s.now = now
	}
}

// New creates a new Redis store with options.
func New(address, password string, db int, opts ...Option) *Store {
	rdb := backend.NewClient(&backend.Options{
		Addr:     address,
		Password: password,
		DB:       db,
	})
	return NewFromClient(rdb, opts...)
}

// NewFromClient creates a new Redis store from an existing client.
func NewFromClient(client *backend.Client, opts ...Option) *Store {
	store := &Store{
		client: client,
		prefix: DefaultPrefix,
		now:    time.Now,
	}

	for _, opt := range opts {
		opt(store)
	}

	return store
}

// Client exposes the underlying client, e.g. to build a Locker on the same connection.
func (s *Store) Client() *backend.Client {
	return s.client
}

// Prefix returns the key prefix in use.
func (s *Store) Prefix() string {
	return s.prefix
}

func (s *Store) key(machineID string) string {
	return s.prefix + machineID
}

func (s *Store) indexKey() string {
	return s.prefix + "index"
}

// Save persists the config to Redis.
func (s *Store) Save(ctx context.Context, machineID string, cfg *domain.MachineConfig) error {
	data, err := json.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	score := float64(s.now().Add(s.ttl).Unix())
	if s.ttl == 0 {
		score = noExpiry
	}

	pipe := s.client.Pipeline()
	pipe.Set(ctx, s.key(machineID), data, s.ttl)
	pipe.ZAdd(ctx, s.indexKey(), backend.Z{
		Score:  score,
		Member: machineID,
	})

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to save to redis: %w", err)
	}

	return nil
}

// Load retrieves the config from Redis.
func (s *Store) Load(ctx context.Context, machineID string) (*domain.MachineConfig, error) {
	val, err := s.client.Get(ctx, s.key(machineID)).Bytes()
	if err != nil {
		if errors.Is(err, backend.Nil) {
			return nil, domain.ErrConfigNotFound
		}
		return nil, fmt.Errorf("failed to get from redis: %w", err)
	}

	var cfg domain.MachineConfig
	if err := json.Unmarshal(val, &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

// Delete removes the config and its index entry.
func (s *Store) Delete(ctx context.Context, machineID string) error {
	pipe := s.client.Pipeline()
	pipe.Del(ctx, s.key(machineID))
	pipe.ZRem(ctx, s.indexKey(), machineID)

	_, err := pipe.Exec(ctx)
	return err
}

// List returns the IDs of configs that have not expired.
func (s *Store) List(ctx context.Context) ([]string, error) {
	now := float64(s.now().Unix())

	// Lazy cleanup of index members whose key has expired.
	err := s.client.ZRemRangeByScore(ctx, s.indexKey(), "-inf", fmt.Sprintf("%f", now)).Err()
	if err != nil {
		return nil, fmt.Errorf("failed to prune expired configs: %w", err)
	}

	ids, err := s.client.ZRange(ctx, s.indexKey(), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list configs: %w", err)
	}

	return ids, nil
}

// Close closes the redis client.
func (s *Store) Close() error {
	return s.client.Close()
}
