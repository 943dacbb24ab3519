package registry

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sort"

	"github.com/redis/go-redis/v9"
	"gopkg.in/yaml.v3"
)

// FileSource reads a YAML table from disk. A missing file is not an error.
type FileSource struct {
	Path string
}

// Name implements Source
func (s FileSource) Name() string {
	return "file:" + s.Path
}

// Load implements Source
func (s FileSource) Load(ctx context.Context) (*Table, error) {
	data, err := os.ReadFile(s.Path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading registry file: %w", err)
	}
	var t Table
	if err := yaml.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("parsing registry file: %w", err)
	}
	for i, v := range t.Variants {
		if v.Name == "" {
			return nil, fmt.Errorf("registry file: variant %d has no name", i)
		}
	}
	return &t, nil
}

// Key names for the shared registry in Redis
const (
	KeyVariants       = "cardforge:registry:variants"
	KeySelectors      = "cardforge:registry:selectors"
	KeyDefaultVariant = "cardforge:registry:default"
)

// HashReader is the slice of the redis client the source needs.
type HashReader interface {
	HGetAll(ctx context.Context, key string) *redis.MapStringStringCmd
	Get(ctx context.Context, key string) *redis.StringCmd
}

// RedisSource reads variants shared by several installations. Variants are
// stored in a hash keyed by name with JSON values; their order is the
// "order" field of each value.
type RedisSource struct {
	Client HashReader
}

// NewRedisSource creates a source backed by a redis client
func NewRedisSource(client HashReader) *RedisSource {
	return &RedisSource{Client: client}
}

// Name implements Source
func (s *RedisSource) Name() string {
	return "redis"
}

type redisVariant struct {
	Variant
	Order int `json:"order"`
}

// Load implements Source
func (s *RedisSource) Load(ctx context.Context) (*Table, error) {
	raw, err := s.Client.HGetAll(ctx, KeyVariants).Result()
	if err != nil {
		return nil, fmt.Errorf("reading variants: %w", err)
	}

	entries := make([]redisVariant, 0, len(raw))
	for name, data := range raw {
		var rv redisVariant
		if err := json.Unmarshal([]byte(data), &rv); err != nil {
			return nil, fmt.Errorf("decoding variant %s: %w", name, err)
		}
		rv.Name = name
		entries = append(entries, rv)
	}
	sortByOrder(entries)

	t := &Table{Selectors: make(map[string][]string)}
	for _, e := range entries {
		t.Variants = append(t.Variants, e.Variant)
	}

	sels, err := s.Client.HGetAll(ctx, KeySelectors).Result()
	if err != nil {
		return nil, fmt.Errorf("reading selectors: %w", err)
	}
	for el, data := range sels {
		var list []string
		if err := json.Unmarshal([]byte(data), &list); err != nil {
			return nil, fmt.Errorf("decoding selectors for %s: %w", el, err)
		}
		t.Selectors[el] = list
	}

	def, err := s.Client.Get(ctx, KeyDefaultVariant).Result()
	switch {
	case errors.Is(err, redis.Nil):
	case err != nil:
		return nil, fmt.Errorf("reading default variant: %w", err)
	default:
		t.DefaultVariant = def
	}

	return t, nil
}

func sortByOrder(entries []redisVariant) {
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Order != entries[j].Order {
			return entries[i].Order < entries[j].Order
		}
		return entries[i].Name < entries[j].Name
	})
}
