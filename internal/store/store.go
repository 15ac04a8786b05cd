// Package store is the persistence collaborator: a string-keyed store of
// JSON values. Reads tolerate missing keys and malformed payloads.
package store

import (
	"context"
	"encoding/json"
	"reflect"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	KeyLastCriteria   = "last_search_criteria"
	KeyLastResults    = "last_search_results"
	KeyCarriers       = "carrier_dictionary"
	KeyRecentSearches = "recent_searches"
	KeyBookingHandoff = "booking_handoff"
	schemaVersion     = 1
)

type KV interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte) error
	Close() error
}

type RedisStore struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
	Prefix   string
	TTL      time.Duration
}

func DefaultRedisConfig() RedisConfig {
	return RedisConfig{
		Host:     "localhost",
		Port:     "6379",
		Password: "",
		DB:       0,
		Prefix:   "offers:",
		TTL:      0,
	}
}

func NewRedisStore(cfg RedisConfig) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Host + ":" + cfg.Port,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, err
	}

	return NewRedisStoreWithClient(client, cfg.Prefix, cfg.TTL), nil
}

func NewRedisStoreWithClient(client *redis.Client, prefix string, ttl time.Duration) *RedisStore {
	return &RedisStore{
		client: client,
		prefix: prefix,
		ttl:    ttl,
	}
}

func (s *RedisStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	data, err := s.client.Get(ctx, s.prefix+key).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return data, true, nil
}

func (s *RedisStore) Set(ctx context.Context, key string, value []byte) error {
	return s.client.Set(ctx, s.prefix+key, value, s.ttl).Err()
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}

type MemoryStore struct {
	mu   sync.RWMutex
	data map[string][]byte
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: make(map[string][]byte)}
}

func (s *MemoryStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	v, ok := s.data[key]
	if !ok {
		return nil, false, nil
	}
	return append([]byte(nil), v...), true, nil
}

func (s *MemoryStore) Set(ctx context.Context, key string, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.data[key] = append([]byte(nil), value...)
	return nil
}

func (s *MemoryStore) Close() error {
	return nil
}

type envelope struct {
	Version int             `json:"v"`
	Data    json.RawMessage `json:"data"`
}

// GetJSON decodes the value stored under key into dst. It reports false,
// leaving dst untouched, when the key is missing, unreadable or malformed.
// Values written before versioning are read as bare JSON.
func GetJSON(ctx context.Context, kv KV, key string, dst any) bool {
	data, ok, err := kv.Get(ctx, key)
	if err != nil || !ok {
		return false
	}

	payload := data
	var env envelope
	if err := json.Unmarshal(data, &env); err == nil && env.Version > 0 && len(env.Data) > 0 {
		payload = env.Data
	}

	// Decode into a scratch value first so a partial decode never leaks.
	target := reflect.ValueOf(dst)
	if target.Kind() != reflect.Pointer || target.IsNil() {
		return false
	}
	scratch := reflect.New(target.Elem().Type())
	if err := json.Unmarshal(payload, scratch.Interface()); err != nil {
		return false
	}
	target.Elem().Set(scratch.Elem())
	return true
}

func SetJSON(ctx context.Context, kv KV, key string, value any) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	wrapped, err := json.Marshal(envelope{Version: schemaVersion, Data: data})
	if err != nil {
		return err
	}
	return kv.Set(ctx, key, wrapped)
}

// carriersMu serializes the read-modify-write in MergeCarriers so sessions
// merging at the same time do not drop each other's names.
var carriersMu sync.Mutex

// MergeCarriers accumulates carrier names across sessions. Known names are
// only replaced by non-empty ones.
func MergeCarriers(ctx context.Context, kv KV, carriers map[string]string) (map[string]string, error) {
	carriersMu.Lock()
	defer carriersMu.Unlock()

	merged := map[string]string{}
	GetJSON(ctx, kv, KeyCarriers, &merged)
	if merged == nil {
		merged = map[string]string{}
	}

	changed := false
	for code, name := range carriers {
		if code == "" || name == "" || merged[code] == name {
			continue
		}
		merged[code] = name
		changed = true
	}

	if !changed {
		return merged, nil
	}
	return merged, SetJSON(ctx, kv, KeyCarriers, merged)
}
