// internal/cache/redis.go
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// Rdb is the global Redis client. Connect it once at application startup.
var Rdb *redis.Client

// ErrCacheMiss is returned by GetJSON when the key does not exist.
var ErrCacheMiss = errors.New("cache miss")

// SnapshotTTL bounds how long entity snapshots live without refresh.
var SnapshotTTL = 30 * time.Minute

// Logical pub/sub channels. Payload shapes mirror the outbound events; every
// process subscribes so in-memory views converge across server instances.
const (
	ChannelTableMessage = "table-message-send"
	ChannelTableUpdated = "table-updated"
	ChannelSeatUpdated  = "seat-updated"
	ChannelUserMute     = "user-mute"
	ChannelGameState    = "game-state"
)

// ConnectRedis initializes the global Redis client with environment variables:
//   - REDIS_ADDR (default "localhost:6379")
//   - REDIS_DB (optional, default 0)
//
// Rdb stays nil unless the ping succeeds, so a dead Redis at startup leaves
// every Rdb != nil guard on the degraded single-process path.
func ConnectRedis() error {
	addr := getEnv("REDIS_ADDR", "localhost:6379")
	dbIdx := getEnvInt("REDIS_DB", 0)

	client := redis.NewClient(&redis.Options{
		Addr: addr,
		DB:   dbIdx,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return fmt.Errorf("failed to connect to Redis at %s: %w", addr, err)
	}
	Rdb = client
	return nil
}

// SetJSON serializes v and writes it under key. Write failures are returned
// so callers can abort instead of committing inconsistent state.
func SetJSON(ctx context.Context, key string, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", key, err)
	}
	if err := Rdb.Set(ctx, key, data, SnapshotTTL).Err(); err != nil {
		return fmt.Errorf("failed to SET %s: %w", key, err)
	}
	return nil
}

// GetJSON reads key into out. Returns ErrCacheMiss when absent.
func GetJSON(ctx context.Context, key string, out interface{}) error {
	data, err := Rdb.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return ErrCacheMiss
	}
	if err != nil {
		return fmt.Errorf("failed to GET %s: %w", key, err)
	}
	return json.Unmarshal(data, out)
}

// Del removes a key. Missing keys are not an error.
func Del(ctx context.Context, key string) error {
	if err := Rdb.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("failed to DEL %s: %w", key, err)
	}
	return nil
}

// Publish fans a payload out to every subscribing process on a logical
// channel. This does not block beyond the network send.
func Publish(ctx context.Context, channel string, payload interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal payload for %s: %w", channel, err)
	}
	if err := Rdb.Publish(ctx, channel, data).Err(); err != nil {
		return fmt.Errorf("failed to PUBLISH to %s: %w", channel, err)
	}
	return nil
}

// Subscriber dispatches incoming pub/sub messages to registered handlers.
// Each process runs one subscriber for the logical channels it mirrors.
type Subscriber struct {
	mu       sync.Mutex
	handlers map[string][]func(payload []byte)
	log      *logrus.Logger
}

// NewSubscriber returns an empty handler registry.
func NewSubscriber(logger *logrus.Logger) *Subscriber {
	if logger == nil {
		logger = logrus.New()
	}
	return &Subscriber{
		handlers: make(map[string][]func(payload []byte)),
		log:      logger,
	}
}

// Handle registers a handler for one logical channel. Register everything
// before calling Run.
func (s *Subscriber) Handle(channel string, fn func(payload []byte)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handlers[channel] = append(s.handlers[channel], fn)
}

// Run subscribes to every registered channel and dispatches messages until
// the context is cancelled. Blocks; run it in its own goroutine.
func (s *Subscriber) Run(ctx context.Context) error {
	s.mu.Lock()
	channels := make([]string, 0, len(s.handlers))
	for ch := range s.handlers {
		channels = append(channels, ch)
	}
	s.mu.Unlock()
	if len(channels) == 0 {
		return nil
	}

	sub := Rdb.Subscribe(ctx, channels...)
	defer sub.Close()

	for {
		msg, err := sub.ReceiveMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("pub/sub receive failed: %w", err)
		}
		s.Deliver(msg.Channel, []byte(msg.Payload))
	}
}

// Deliver runs every handler registered for the channel. Run calls this for
// each received message; tests call it directly.
func (s *Subscriber) Deliver(channel string, payload []byte) {
	s.mu.Lock()
	fns := append([]func([]byte){}, s.handlers[channel]...)
	s.mu.Unlock()
	for _, fn := range fns {
		fn(payload)
	}
}

// getEnv is a helper to read an environment variable or return a default value.
func getEnv(key, def string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return def
}

// getEnvInt is a helper to parse an environment variable as integer, else a default value.
func getEnvInt(key string, def int) int {
	s := os.Getenv(key)
	if s == "" {
		return def
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return v
}
