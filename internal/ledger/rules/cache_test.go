package rules

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

type countingRepo struct {
	rules []Rule
	calls int
}

func (r *countingRepo) ListActive(ctx context.Context, tenantID, businessID int64, eventCode string) ([]Rule, error) {
	r.calls++
	return r.rules, nil
}

func newTestCache(t *testing.T, repo Repository) (*CachedSource, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewCachedSource(repo, client, time.Minute), mr
}

func TestCachedSourceHitsRepositoryOnce(t *testing.T) {
	repo := &countingRepo{rules: []Rule{{ID: 1, EventCode: "EVT_VOUCHER_SOLD", Active: true, Priority: 1, Amount: AmountSpec{Type: AmountFixed, Value: 100}}}}
	source, _ := newTestCache(t, repo)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		rules, err := source.ActiveRules(ctx, 1, 10, "EVT_VOUCHER_SOLD")
		require.NoError(t, err)
		require.Len(t, rules, 1)
		require.Equal(t, int64(1), rules[0].ID)
	}
	require.Equal(t, 1, repo.calls)
}

func TestCachedSourceInvalidate(t *testing.T) {
	repo := &countingRepo{rules: []Rule{{ID: 1, Active: true}}}
	source, _ := newTestCache(t, repo)
	ctx := context.Background()

	_, err := source.ActiveRules(ctx, 1, 10, "EVT_VOUCHER_SOLD")
	require.NoError(t, err)
	require.NoError(t, source.Invalidate(ctx, 1, 10, "EVT_VOUCHER_SOLD"))

	_, err = source.ActiveRules(ctx, 1, 10, "EVT_VOUCHER_SOLD")
	require.NoError(t, err)
	require.Equal(t, 2, repo.calls)
}

func TestCachedSourceExpires(t *testing.T) {
	repo := &countingRepo{}
	source, mr := newTestCache(t, repo)
	ctx := context.Background()

	_, err := source.ActiveRules(ctx, 1, 10, "EVT_TICKET_DONE")
	require.NoError(t, err)

	mr.FastForward(2 * time.Minute)

	_, err = source.ActiveRules(ctx, 1, 10, "EVT_TICKET_DONE")
	require.NoError(t, err)
	require.Equal(t, 2, repo.calls)
}

func TestCachedSourceWithoutRedisPassesThrough(t *testing.T) {
	repo := &countingRepo{}
	source := NewCachedSource(repo, nil, time.Minute)

	_, err := source.ActiveRules(context.Background(), 1, 10, "EVT_X")
	require.NoError(t, err)
	_, err = source.ActiveRules(context.Background(), 1, 10, "EVT_X")
	require.NoError(t, err)
	require.Equal(t, 2, repo.calls)
}
