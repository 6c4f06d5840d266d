package gateway

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "folio/internal/errors"
	"folio/internal/models"
	"folio/internal/store"
)

type recordedOp struct {
	collection string
	operation  string
	failed     bool
}

type fakeRecorder struct {
	mu  sync.Mutex
	ops []recordedOp
}

func (r *fakeRecorder) RecordStoreOperation(collection, operation string, _ time.Duration, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ops = append(r.ops, recordedOp{collection, operation, err != nil})
}

// brokenStore fails every call
type brokenStore struct{}

var errBackend = errors.New("connection reset by peer")

func (brokenStore) List(context.Context, string) ([]store.Document, error) { return nil, errBackend }
func (brokenStore) Create(context.Context, string, map[string]interface{}) (store.Document, error) {
	return store.Document{}, errBackend
}
func (brokenStore) Get(context.Context, string, string) (store.Document, error) {
	return store.Document{}, errBackend
}
func (brokenStore) Replace(context.Context, string, string, map[string]interface{}) (store.Document, error) {
	return store.Document{}, errBackend
}
func (brokenStore) Delete(context.Context, string, string) error { return errBackend }
func (brokenStore) Ping(context.Context) error                  { return errBackend }
func (brokenStore) Close() error                                { return nil }

func TestServiceLifecycle(t *testing.T) {
	ctx := context.Background()
	recorder := &fakeRecorder{}
	assets := New[models.Asset](store.NewMemoryStore(), recorder)

	created, err := assets.Create(ctx, models.Asset{Symbol: "AAPL", Price: 150, Volume: 10, PortfolioID: "p1"})
	require.NoError(t, err)
	require.NotEmpty(t, created.ID)
	assert.Equal(t, "AAPL", created.Symbol)
	assert.Equal(t, models.Ref("p1"), created.PortfolioID)

	got, err := assets.Get(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, created, got)

	updated, err := assets.Update(ctx, created.ID, models.Asset{Symbol: "AAPL", Price: 155, Volume: 10})
	require.NoError(t, err)
	assert.Equal(t, created.ID, updated.ID)
	assert.Equal(t, 155.0, updated.Price)
	assert.Empty(t, updated.PortfolioID)

	list, err := assets.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, updated, list[0])

	require.NoError(t, assets.Delete(ctx, created.ID))

	_, err = assets.Get(ctx, created.ID)
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeNotFound))

	assert.Len(t, recorder.ops, 6)
	for _, op := range recorder.ops {
		assert.Equal(t, "assets", op.collection)
		assert.False(t, op.failed, op.operation)
	}
}

func TestServiceIgnoresClientSuppliedID(t *testing.T) {
	ctx := context.Background()
	orders := New[models.Order](store.NewMemoryStore(), nil)

	created, err := orders.Create(ctx, models.Order{ID: "chosen", OrderType: models.OrderTypeBuy, Amount: 3})
	require.NoError(t, err)
	assert.NotEqual(t, "chosen", created.ID)

	_, err = orders.Get(ctx, "chosen")
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeNotFound))
}

func TestServiceCollectionsAreSeparate(t *testing.T) {
	ctx := context.Background()
	documents := store.NewMemoryStore()
	funds := New[models.Fund](documents, nil)
	clients := New[models.Client](documents, nil)

	fund, err := funds.Create(ctx, models.Fund{Name: "Growth"})
	require.NoError(t, err)

	_, err = clients.Get(ctx, fund.ID)
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeNotFound))

	list, err := clients.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestServiceUnknownID(t *testing.T) {
	ctx := context.Background()
	ratings := New[models.TradeRating](store.NewMemoryStore(), nil)

	_, err := ratings.Update(ctx, "missing", models.TradeRating{Rating: 4})
	appErr := apperrors.GetAppError(err)
	require.NotNil(t, appErr)
	assert.Equal(t, apperrors.ErrCodeNotFound, appErr.Code)
	assert.Equal(t, "Trade rating not found", appErr.Message)

	err = ratings.Delete(ctx, "missing")
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeNotFound))
}

func TestServiceStoreFailure(t *testing.T) {
	ctx := context.Background()
	recorder := &fakeRecorder{}
	forecasts := New[models.AIForecast](brokenStore{}, recorder)

	_, err := forecasts.List(ctx)
	appErr := apperrors.GetAppError(err)
	require.NotNil(t, appErr)
	assert.Equal(t, apperrors.ErrCodeInternal, appErr.Code)
	assert.NotContains(t, appErr.Message, "connection reset")
	assert.ErrorIs(t, err, errBackend)

	_, err = forecasts.Create(ctx, models.AIForecast{Forecast: "up"})
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeInternal))

	require.Len(t, recorder.ops, 2)
	assert.True(t, recorder.ops[0].failed)
}
