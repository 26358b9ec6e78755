package cache

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/nexuscrm/formengine/internal/domain/ports"
	"github.com/nexuscrm/formengine/pkg/models"
)

type countingSource struct {
	mu    sync.Mutex
	calls int
	data  []models.Entity
	err   error
}

func (s *countingSource) FetchEntities(ctx context.Context, tenantID, lookupType string, filter map[string]string) ([]models.Entity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	return s.data, s.err
}

type hitCounter struct {
	ports.NopMetrics
	mu   sync.Mutex
	hits map[string]int
}

func (h *hitCounter) LookupCompleted(lookupType, result string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.hits == nil {
		h.hits = map[string]int{}
	}
	h.hits[lookupType+"/"+result]++
}

func setupCache(t *testing.T, src *countingSource) (*miniredis.Miniredis, *LookupCache, *hitCounter) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	metrics := &hitCounter{}
	return mr, NewLookupCache(src, rdb, time.Minute, metrics, zap.NewNop()), metrics
}

func TestKey(t *testing.T) {
	assert.Equal(t, "formengine:lookup:t1:accounts", Key("t1", "accounts", nil))
	assert.Equal(t, "formengine:lookup:t1:contacts:account_id=a1&b=2",
		Key("t1", "contacts", map[string]string{"b": "2", "account_id": "a1"}))
}

func TestLookupCache_HitAfterMiss(t *testing.T) {
	src := &countingSource{data: []models.Entity{{"id": "a1", "account_name": "Acme"}}}
	mr, c, metrics := setupCache(t, src)
	ctx := context.Background()

	first, err := c.FetchEntities(ctx, "t1", "accounts", nil)
	require.NoError(t, err)
	second, err := c.FetchEntities(ctx, "t1", "accounts", nil)
	require.NoError(t, err)

	assert.Equal(t, 1, src.calls)
	assert.Equal(t, first, second)
	assert.Equal(t, 1, metrics.hits["accounts/cache"])
	assert.True(t, mr.Exists("formengine:lookup:t1:accounts"))
	assert.Greater(t, mr.TTL("formengine:lookup:t1:accounts"), time.Duration(0))

	// other tenants and filters miss
	_, err = c.FetchEntities(ctx, "t2", "accounts", nil)
	require.NoError(t, err)
	_, err = c.FetchEntities(ctx, "t1", "accounts", map[string]string{"x": "y"})
	require.NoError(t, err)
	assert.Equal(t, 3, src.calls)
}

func TestLookupCache_Expiry(t *testing.T) {
	src := &countingSource{data: []models.Entity{{"id": "u1"}}}
	mr, c, _ := setupCache(t, src)
	ctx := context.Background()

	_, err := c.FetchEntities(ctx, "t1", "users", nil)
	require.NoError(t, err)
	mr.FastForward(2 * time.Minute)
	_, err = c.FetchEntities(ctx, "t1", "users", nil)
	require.NoError(t, err)
	assert.Equal(t, 2, src.calls)
}

func TestLookupCache_SourceErrorNotCached(t *testing.T) {
	src := &countingSource{err: errors.New("backend down")}
	mr, c, _ := setupCache(t, src)

	_, err := c.FetchEntities(context.Background(), "t1", "products", nil)
	assert.Error(t, err)
	assert.False(t, mr.Exists("formengine:lookup:t1:products"))
}

func TestLookupCache_RedisDownFallsThrough(t *testing.T) {
	src := &countingSource{data: []models.Entity{{"id": "p1"}}}
	mr, c, _ := setupCache(t, src)
	mr.Close()

	entities, err := c.FetchEntities(context.Background(), "t1", "products", nil)
	require.NoError(t, err)
	assert.Len(t, entities, 1)
	assert.Equal(t, 1, src.calls)
}

func TestLookupCache_CorruptEntryRefetched(t *testing.T) {
	src := &countingSource{data: []models.Entity{{"id": "a1"}}}
	mr, c, _ := setupCache(t, src)
	require.NoError(t, mr.Set("formengine:lookup:t1:accounts", "not json"))

	entities, err := c.FetchEntities(context.Background(), "t1", "accounts", nil)
	require.NoError(t, err)
	assert.Equal(t, "a1", entities[0].ID())
	assert.Equal(t, 1, src.calls)
}

func TestLookupCache_InvalidateEntity(t *testing.T) {
	src := &countingSource{data: []models.Entity{{"id": "c1"}}}
	mr, c, _ := setupCache(t, src)
	ctx := context.Background()

	_, err := c.FetchEntities(ctx, "t1", "contacts", nil)
	require.NoError(t, err)
	_, err = c.FetchEntities(ctx, "t1", "contacts", map[string]string{"account_id": "a1"})
	require.NoError(t, err)
	_, err = c.FetchEntities(ctx, "t2", "contacts", nil)
	require.NoError(t, err)

	require.NoError(t, c.InvalidateEntity(ctx, "t1", "contact"))
	assert.False(t, mr.Exists("formengine:lookup:t1:contacts"))
	assert.False(t, mr.Exists("formengine:lookup:t1:contacts:account_id=a1"))
	assert.True(t, mr.Exists("formengine:lookup:t2:contacts"))

	// leads have no candidate list
	assert.NoError(t, c.InvalidateEntity(ctx, "t1", "lead"))
}
