package storage

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/radiusdt/vector-metrics/internal/models"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return mr, client
}

func sampleResult(fingerprint string) *models.RunResult {
	return &models.RunResult{
		ID:          "run-" + fingerprint,
		Fingerprint: fingerprint,
		StartedAt:   time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		Elapsed:     time.Second,
		Report: &models.Report{
			UnitEconomics: models.UnitEconomicsReport{
				ROMI: []models.ChannelROMI{
					{SourceID: 1, LTV: 10, Spend: 0, ROMI: models.UndefinedRatio()},
					{SourceID: 2, LTV: 10, Spend: 5, ROMI: models.DefinedRatio(2)},
				},
			},
		},
	}
}

func TestRedisReportStore_SaveAndGet(t *testing.T) {
	ctx := context.Background()
	mr, client := newTestRedis(t)
	store := NewRedisReportStore(client, time.Hour)

	require.NoError(t, store.SaveResult(ctx, sampleResult("abc")))
	assert.True(t, mr.Exists(reportKey("abc")))
	assert.Equal(t, time.Hour, mr.TTL(reportKey("abc")))

	got, err := store.GetResult(ctx, "abc")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "run-abc", got.ID)
	require.Len(t, got.Report.UnitEconomics.ROMI, 2)
	assert.False(t, got.Report.UnitEconomics.ROMI[0].ROMI.Defined)
	assert.Equal(t, models.DefinedRatio(2), got.Report.UnitEconomics.ROMI[1].ROMI)
}

func TestRedisReportStore_Missing(t *testing.T) {
	ctx := context.Background()
	_, client := newTestRedis(t)
	store := NewRedisReportStore(client, 0)

	got, err := store.GetResult(ctx, "nope")
	require.NoError(t, err)
	assert.Nil(t, got)

	latest, err := store.LatestResult(ctx)
	require.NoError(t, err)
	assert.Nil(t, latest)
}

func TestRedisReportStore_Latest(t *testing.T) {
	ctx := context.Background()
	_, client := newTestRedis(t)
	store := NewRedisReportStore(client, 0)

	require.NoError(t, store.SaveResult(ctx, sampleResult("first")))
	require.NoError(t, store.SaveResult(ctx, sampleResult("second")))

	latest, err := store.LatestResult(ctx)
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.Equal(t, "second", latest.Fingerprint)
}

func TestRedisReportStore_Unavailable(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	defer client.Close()
	store := NewRedisReportStore(client, 0)
	mr.Close()

	_, err = store.GetResult(context.Background(), "abc")
	assert.Error(t, err)
}
