//go:build integration

package db_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"penpal/internal/db"
	"penpal/internal/db/testhelper"
	"penpal/internal/types"
)

func seedTransit(t *testing.T, store *db.Store, sender, recipient string, due time.Time) (*types.TransitRecord, *types.Letter) {
	t.Helper()
	ctx := context.Background()

	letter := &types.Letter{
		ID:          uuid.NewString(),
		SenderID:    sender,
		RecipientID: &recipient,
		Kind:        types.LetterKindOriginal,
		Content:     "hello",
		Status:      types.LetterStatusSent,
		CreatedAt:   due.Add(-time.Hour),
	}
	rec := &types.TransitRecord{
		ID:               uuid.NewString(),
		SenderID:         sender,
		RecipientID:      recipient,
		LetterID:         letter.ID,
		SenderCountry:    "Portugal",
		RecipientCountry: "Spain",
		DeliveryMinutes:  60,
		DelayMode:        "fast",
		TierName:         "medium",
		DeliveryDate:     due,
		SentAt:           due.Add(-time.Hour),
		LetterType:       types.LetterTypeRegular,
	}
	err := store.RunInTx(ctx, func(ctx context.Context, repos types.RepositoryRegistry) error {
		if err := repos.Letters().Create(ctx, letter); err != nil {
			return err
		}
		return repos.Transits().Create(ctx, rec)
	})
	require.NoError(t, err)
	return rec, letter
}

func TestIntegration_MarkDeliveredOnce(t *testing.T) {
	pool := testhelper.SetupTestDB(t)
	store := db.NewStore(pool)
	ctx := context.Background()

	sender, recipient := uuid.NewString(), uuid.NewString()
	testhelper.InsertUser(t, pool, sender, "Portugal")
	testhelper.InsertUser(t, pool, recipient, "Spain")

	now := time.Now().UTC().Truncate(time.Microsecond)
	rec, _ := seedTransit(t, store, sender, recipient, now.Add(-time.Minute))

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		flipped int
	)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			changed, err := store.Transits().MarkDelivered(ctx, rec.ID, now)
			assert.NoError(t, err)
			if changed {
				mu.Lock()
				flipped++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, flipped, "exactly one caller may flip a record")

	got, err := store.Transits().GetByID(ctx, rec.ID)
	require.NoError(t, err)
	assert.True(t, got.IsDelivered)
	require.NotNil(t, got.DeliveredAt)
	assert.False(t, got.DeliveredAt.Before(got.DeliveryDate))

	stats, err := store.Transits().Stats(ctx, recipient)
	require.NoError(t, err)
	assert.Equal(t, types.TransitStats{TotalDelivered: 1}, *stats)
}

func TestIntegration_NotYetDueIsNotDelivered(t *testing.T) {
	pool := testhelper.SetupTestDB(t)
	store := db.NewStore(pool)
	ctx := context.Background()

	sender, recipient := uuid.NewString(), uuid.NewString()
	testhelper.InsertUser(t, pool, sender, "Portugal")
	testhelper.InsertUser(t, pool, recipient, "Spain")

	now := time.Now().UTC()
	rec, _ := seedTransit(t, store, sender, recipient, now.Add(time.Hour))

	changed, err := store.Transits().MarkDelivered(ctx, rec.ID, now)
	require.NoError(t, err)
	assert.False(t, changed)

	due, err := store.Transits().FindDue(ctx, now, 10)
	require.NoError(t, err)
	assert.Empty(t, due)

	pending, err := store.Transits().FindPendingForUser(ctx, recipient)
	require.NoError(t, err)
	assert.Len(t, pending, 1)
}

func TestIntegration_DeliveryCopyUnique(t *testing.T) {
	pool := testhelper.SetupTestDB(t)
	store := db.NewStore(pool)
	ctx := context.Background()

	author, reader := uuid.NewString(), uuid.NewString()
	testhelper.InsertUser(t, pool, author, "Japan", "tea")
	testhelper.InsertUser(t, pool, reader, "Kenya", "tea")

	original := &types.Letter{
		ID:        uuid.NewString(),
		SenderID:  author,
		Kind:      types.LetterKindOriginal,
		Content:   "open letter",
		Status:    types.LetterStatusSent,
		CreatedAt: time.Now().UTC(),
	}
	require.NoError(t, store.Letters().Create(ctx, original))

	newCopy := func() *types.Letter {
		return &types.Letter{
			ID:               uuid.NewString(),
			SenderID:         author,
			RecipientID:      &reader,
			Kind:             types.LetterKindDelivery,
			OriginalLetterID: &original.ID,
			Content:          original.Content,
			Status:           types.LetterStatusDelivered,
			CreatedAt:        time.Now().UTC(),
		}
	}

	created, err := store.Letters().CreateDelivery(ctx, newCopy())
	require.NoError(t, err)
	assert.True(t, created)

	created, err = store.Letters().CreateDelivery(ctx, newCopy())
	require.NoError(t, err)
	assert.False(t, created, "second copy for the same reader must be ignored")
}

func TestIntegration_JobLock(t *testing.T) {
	pool := testhelper.SetupTestDB(t)
	store := db.NewStore(pool)
	ctx := context.Background()
	now := time.Now().UTC()

	ok, err := store.JobLocks.Acquire(ctx, "daily_cycle:2026-10-19", "a", now, time.Hour)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = store.JobLocks.Acquire(ctx, "daily_cycle:2026-10-19", "b", now.Add(time.Minute), time.Hour)
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = store.JobLocks.Acquire(ctx, "daily_cycle:2026-10-19", "b", now.Add(2*time.Hour), time.Hour)
	require.NoError(t, err)
	assert.True(t, ok, "expired locks are reclaimable")
}
