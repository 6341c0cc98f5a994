package internal

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/cespare/xxhash"
	"github.com/redis/go-redis/v9"
	bolt "go.etcd.io/bbolt"
)

// TranscriptCache stores fetched transcripts between runs
type TranscriptCache interface {
	Get(ctx context.Context, key string) (string, bool)
	Set(ctx context.Context, key, value string) error
	Close() error
}

// TranscriptKey derives the cache key for a video and language preference
func TranscriptKey(videoID string, langs []string) string {
	return strconv.FormatUint(xxhash.Sum64String(videoID+"|"+strings.Join(langs, ",")), 16)
}

// NewTranscriptCache opens the configured cache backend
func NewTranscriptCache(config *Config) (TranscriptCache, error) {
	switch strings.ToLower(config.CacheBackend) {
	case "", "none", "off":
		return NopCache{}, nil
	case "bolt":
		return NewBoltCache(filepath.Join(config.CacheDir, "transcripts.db"), config.CacheTTL)
	case "redis":
		return NewRedisCache(config.RedisURL, config.CacheTTL)
	default:
		return nil, fmt.Errorf("unknown cache backend %q (supported: bolt, redis, none)", config.CacheBackend)
	}
}

// NopCache never stores anything
type NopCache struct{}

func (NopCache) Get(context.Context, string) (string, bool) { return "", false }
func (NopCache) Set(context.Context, string, string) error { return nil }
func (NopCache) Close() error { return nil }

var transcriptsBucket = []byte("transcripts")

type cachedTranscript struct {
	Text     string    `json:"text"`
	CachedAt time.Time `json:"cached_at"`
}

// BoltCache keeps transcripts in a local bbolt file
type BoltCache struct {
	db  *bolt.DB
	ttl time.Duration
}

// NewBoltCache opens or creates the cache file at path
func NewBoltCache(path string, ttl time.Duration) (*BoltCache, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("creating cache directory: %w", err)
	}
	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("opening bolt cache: %w", err)
	}
	if err := db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(transcriptsBucket)
		return err
	}); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating transcripts bucket: %w", err)
	}
	return &BoltCache{db: db, ttl: ttl}, nil
}

func (b *BoltCache) Get(_ context.Context, key string) (string, bool) {
	var entry cachedTranscript
	found := false
	_ = b.db.View(func(tx *bolt.Tx) error {
		raw := tx.Bucket(transcriptsBucket).Get([]byte(key))
		if raw == nil {
			return nil
		}
		if err := json.Unmarshal(raw, &entry); err != nil {
			return err
		}
		found = true
		return nil
	})
	if !found {
		return "", false
	}
	if b.ttl > 0 && time.Since(entry.CachedAt) > b.ttl {
		return "", false
	}
	return entry.Text, true
}

func (b *BoltCache) Set(_ context.Context, key, value string) error {
	raw, err := json.Marshal(cachedTranscript{Text: value, CachedAt: time.Now().UTC()})
	if err != nil {
		return fmt.Errorf("marshaling transcript: %w", err)
	}
	return b.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(transcriptsBucket).Put([]byte(key), raw)
	})
}

// Prune removes expired entries and returns how many were deleted
func (b *BoltCache) Prune() (int, error) {
	if b.ttl <= 0 {
		return 0, nil
	}
	removed := 0
	err := b.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(transcriptsBucket)
		var stale [][]byte
		if err := bucket.ForEach(func(k, v []byte) error {
			var entry cachedTranscript
			if err := json.Unmarshal(v, &entry); err != nil || time.Since(entry.CachedAt) > b.ttl {
				stale = append(stale, append([]byte(nil), k...))
			}
			return nil
		}); err != nil {
			return err
		}
		for _, k := range stale {
			if err := bucket.Delete(k); err != nil {
				return err
			}
			removed++
		}
		return nil
	})
	return removed, err
}

func (b *BoltCache) Close() error {
	return b.db.Close()
}

const redisKeyPrefix = "ytscout:transcript:"

// RedisCache keeps transcripts in Redis with an expiry
type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisCache connects to the Redis server at redisURL
func NewRedisCache(redisURL string, ttl time.Duration) (*RedisCache, error) {
	if redisURL == "" {
		return nil, errors.New("redis_url is required for the redis cache backend")
	}
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parsing redis url: %w", err)
	}
	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("connecting to redis: %w", err)
	}
	return &RedisCache{client: client, ttl: ttl}, nil
}

func (r *RedisCache) Get(ctx context.Context, key string) (string, bool) {
	val, err := r.client.Get(ctx, redisKeyPrefix+key).Result()
	if err != nil {
		return "", false
	}
	return val, true
}

func (r *RedisCache) Set(ctx context.Context, key, value string) error {
	if err := r.client.Set(ctx, redisKeyPrefix+key, value, r.ttl).Err(); err != nil {
		return fmt.Errorf("caching transcript: %w", err)
	}
	return nil
}

func (r *RedisCache) Close() error {
	return r.client.Close()
}
