package cache

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"

	"github.com/nexuscrm/formengine/internal/config"
	"github.com/nexuscrm/formengine/internal/domain/ports"
	"github.com/nexuscrm/formengine/pkg/constants"
	"github.com/nexuscrm/formengine/pkg/models"
)

const keyPrefix = "formengine:lookup"

// NewRedisClient builds a client from config
func NewRedisClient(cfg config.RedisConfig) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
}

// LookupCache wraps a LookupSource and keeps candidate lists in Redis for a TTL.
// Redis failures fall through to the wrapped source.
type LookupCache struct {
	inner   ports.LookupSource
	rdb     *redis.Client
	ttl     time.Duration
	metrics ports.MetricsRecorder
	logger  *zap.Logger
}

var _ ports.LookupSource = (*LookupCache)(nil)

func NewLookupCache(inner ports.LookupSource, rdb *redis.Client, ttl time.Duration, metrics ports.MetricsRecorder, logger *zap.Logger) *LookupCache {
	if metrics == nil {
		metrics = ports.NopMetrics{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if ttl <= 0 {
		ttl = time.Minute
	}
	return &LookupCache{inner: inner, rdb: rdb, ttl: ttl, metrics: metrics, logger: logger}
}

// Key is formengine:lookup:<tenant>:<type>[:k=v&k=v] with filter keys sorted
func Key(tenantID, lookupType string, filter map[string]string) string {
	key := keyPrefix + ":" + tenantID + ":" + lookupType
	if len(filter) == 0 {
		return key
	}
	keys := make([]string, 0, len(filter))
	for k := range filter {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+"="+filter[k])
	}
	return key + ":" + strings.Join(parts, "&")
}

func (c *LookupCache) FetchEntities(ctx context.Context, tenantID, lookupType string, filter map[string]string) ([]models.Entity, error) {
	key := Key(tenantID, lookupType, filter)

	raw, err := c.rdb.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		var cached []models.Entity
		if jsonErr := json.Unmarshal(raw, &cached); jsonErr == nil {
			c.metrics.LookupCompleted(lookupType, ports.ResultCache)
			return cached, nil
		}
		c.logger.Warn("Discarding corrupt cached lookup", zap.String("key", key))
	case !errors.Is(err, redis.Nil):
		c.logger.Warn("Lookup cache read failed", zap.String("key", key), zap.Error(err))
	}

	entities, err := c.inner.FetchEntities(ctx, tenantID, lookupType, filter)
	if err != nil {
		return nil, err
	}

	if encoded, jsonErr := json.Marshal(entities); jsonErr == nil {
		if setErr := c.rdb.Set(ctx, key, encoded, c.ttl).Err(); setErr != nil {
			c.logger.Warn("Lookup cache write failed", zap.String("key", key), zap.Error(setErr))
		}
	}
	return entities, nil
}

// Invalidate drops every cached list of lookupType for the tenant, e.g. after a record was created
func (c *LookupCache) Invalidate(ctx context.Context, tenantID, lookupType string) error {
	base := Key(tenantID, lookupType, nil)
	keys := []string{base}
	var cursor uint64
	for {
		found, next, err := c.rdb.Scan(ctx, cursor, base+":*", 200).Result()
		if err != nil {
			return err
		}
		keys = append(keys, found...)
		cursor = next
		if cursor == 0 {
			break
		}
	}
	return c.rdb.Del(ctx, keys...).Err()
}

// entityLookups maps a submitted entity type to the candidate list it appears in
var entityLookups = map[string]string{
	constants.EntityAccount: constants.LookupAccounts,
	constants.EntityContact: constants.LookupContacts,
	constants.EntityProduct: constants.LookupProducts,
}

// InvalidateEntity drops the cached candidate lists a newly submitted record of entityType belongs to
func (c *LookupCache) InvalidateEntity(ctx context.Context, tenantID, entityType string) error {
	lookupType, ok := entityLookups[entityType]
	if !ok {
		return nil
	}
	return c.Invalidate(ctx, tenantID, lookupType)
}
