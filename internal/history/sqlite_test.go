package history

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/speedwagon-io/sensorwatch/internal/lib/logger/sl"
	"github.com/speedwagon-io/sensorwatch/internal/model"
)

type fakeClock struct {
	t time.Time
}

func (c *fakeClock) now() time.Time { return c.t }

func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestStore(t *testing.T) (*SQLiteStore, *fakeClock) {
	t.Helper()
	store, err := NewSQLiteStore(sl.Discard(), filepath.Join(t.TempDir(), "nested", "history.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	clock := &fakeClock{t: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)}
	store.now = clock.now
	return store, clock
}

func parse(t *testing.T, body string) []model.Reading {
	t.Helper()
	r, err := model.ParseReadings([]byte(body))
	require.NoError(t, err)
	return r
}

func TestSQLiteStore_storeAndLatest(t *testing.T) {
	ctx := context.Background()
	store, clock := newTestStore(t)

	latest, err := store.LatestReadings(ctx)
	require.NoError(t, err)
	assert.Nil(t, latest)

	require.NoError(t, store.StoreReadings(ctx, parse(t, `[{"id":1},{"id":2}]`)))
	clock.advance(5 * time.Second)
	require.NoError(t, store.StoreReadings(ctx, parse(t, `[{"id":3,"RH_ERROR_pred":6.2},{"id":4},{"id":5}]`)))

	latest, err = store.LatestReadings(ctx)
	require.NoError(t, err)
	require.Len(t, latest, 3)
	assert.Equal(t, "3", latest[0].ID)
	assert.Equal(t, "4", latest[1].ID)
	assert.Equal(t, "5", latest[2].ID)
	require.NotNil(t, latest[0].RHErrorPred)
	assert.Equal(t, 6.2, *latest[0].RHErrorPred)

	count, err := store.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(5), count)
}

func TestSQLiteStore_recentReadings(t *testing.T) {
	ctx := context.Background()
	store, clock := newTestStore(t)

	require.NoError(t, store.StoreReadings(ctx, parse(t, `[{"id":"a"},{"id":"b"}]`)))
	clock.advance(time.Second)
	require.NoError(t, store.StoreReadings(ctx, parse(t, `[{"id":"c","RH_ERROR_pred":-1.5}]`)))

	recs, err := store.RecentReadings(ctx, 2)
	require.NoError(t, err)
	require.Len(t, recs, 2)

	assert.Equal(t, "c", recs[0].ReadingID)
	require.NotNil(t, recs[0].RHError)
	assert.Equal(t, -1.5, *recs[0].RHError)
	assert.JSONEq(t, `{"id":"c","RH_ERROR_pred":-1.5}`, string(recs[0].Raw))
	assert.True(t, clock.t.Equal(recs[0].FetchedAt))

	assert.Equal(t, "a", recs[1].ReadingID)
	assert.Nil(t, recs[1].RHError)
	assert.NotEqual(t, recs[0].BatchID, recs[1].BatchID)
}

func TestSQLiteStore_storeEmptyBatch(t *testing.T) {
	ctx := context.Background()
	store, _ := newTestStore(t)

	require.NoError(t, store.StoreReadings(ctx, nil))

	count, err := store.Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestSQLiteStore_cleanup(t *testing.T) {
	ctx := context.Background()
	store, clock := newTestStore(t)

	require.NoError(t, store.StoreReadings(ctx, parse(t, `[{"id":"old"}]`)))
	v := 3.3
	require.NoError(t, store.StorePrediction(ctx, model.Prediction{Raw: []byte("3.3"), Value: &v}))

	clock.advance(2 * time.Hour)
	require.NoError(t, store.StoreReadings(ctx, parse(t, `[{"id":"new"}]`)))

	require.NoError(t, store.Cleanup(ctx, time.Hour))

	recs, err := store.RecentReadings(ctx, 10)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "new", recs[0].ReadingID)

	var predictions int
	require.NoError(t, store.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM predictions").Scan(&predictions))
	assert.Zero(t, predictions)
}

func TestSQLiteStore_reopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "history.db")

	store, err := NewSQLiteStore(sl.Discard(), path)
	require.NoError(t, err)
	require.NoError(t, store.StoreReadings(ctx, parse(t, `[{"id":42}]`)))
	require.NoError(t, store.Close())

	reopened, err := NewSQLiteStore(sl.Discard(), path)
	require.NoError(t, err)
	defer reopened.Close()

	latest, err := reopened.LatestReadings(ctx)
	require.NoError(t, err)
	require.Len(t, latest, 1)
	assert.Equal(t, "42", latest[0].ID)
}
