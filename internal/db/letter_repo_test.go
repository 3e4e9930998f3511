package db

import (
	"context"
	"errors"
	"testing"
	"time"

	pgxmock "github.com/pashagolub/pgxmock/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"penpal/internal/types"
)

func anyArgs(n int) []any {
	args := make([]any, n)
	for i := range args {
		args[i] = pgxmock.AnyArg()
	}
	return args
}

func TestLetterRepository_Create(t *testing.T) {
	pool := newPgxMock(t)
	l := &types.Letter{
		ID:        "l1",
		SenderID:  "user-a",
		Kind:      types.LetterKindOriginal,
		Content:   "hello from Lisbon",
		Status:    types.LetterStatusSent,
		CreatedAt: time.Now().UTC(),
	}

	pool.ExpectExec(`INSERT INTO letters`).
		WithArgs(anyArgs(10)...).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	require.NoError(t, NewLetterRepository(pool).Create(context.Background(), l))
}

func TestLetterRepository_CreateDelivery(t *testing.T) {
	tests := []struct {
		name     string
		affected int64
		want     bool
	}{
		{"inserted", 1, true},
		{"recipient already holds a copy", 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pool := newPgxMock(t)
			pool.ExpectExec(`INSERT INTO letters .* ON CONFLICT \(recipient_id, original_letter_id\) WHERE kind = 'delivery' DO NOTHING`).
				WithArgs(anyArgs(10)...).
				WillReturnResult(pgxmock.NewResult("INSERT", tt.affected))

			created, err := NewLetterRepository(pool).CreateDelivery(context.Background(), &types.Letter{
				ID:               "d1",
				SenderID:         "user-a",
				RecipientID:      strPtr("user-b"),
				Kind:             types.LetterKindDelivery,
				OriginalLetterID: strPtr("l1"),
				Status:           types.LetterStatusDelivered,
			})
			require.NoError(t, err)
			assert.Equal(t, tt.want, created)
		})
	}
}

func TestLetterRepository_UpdateStatus_Delivered(t *testing.T) {
	pool := newPgxMock(t)
	at := time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC)

	// status, delivered_at, id, status IN (sent)
	pool.ExpectExec(`UPDATE letters SET status = \$1, delivered_at = \$2 WHERE id = \$3 AND status IN \(\$4\)`).
		WithArgs("delivered", at, "l1", "sent").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	changed, err := NewLetterRepository(pool).UpdateStatus(context.Background(), "l1", types.LetterStatusUpdate{
		Status: types.LetterStatusDelivered,
		At:     at,
		From:   []types.LetterStatus{types.LetterStatusSent},
	})
	require.NoError(t, err)
	assert.True(t, changed)
}

func TestLetterRepository_UpdateStatus_NoTransition(t *testing.T) {
	pool := newPgxMock(t)

	pool.ExpectExec(`UPDATE letters SET status = \$1, archived_at = \$2`).
		WithArgs(anyArgs(5)...).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))
	pool.ExpectQuery(`SELECT EXISTS \(SELECT 1 FROM letters`).
		WithArgs("l1").
		WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(true))

	changed, err := NewLetterRepository(pool).UpdateStatus(context.Background(), "l1", types.LetterStatusUpdate{
		Status: types.LetterStatusArchived,
		At:     time.Now().UTC(),
		From:   []types.LetterStatus{types.LetterStatusDelivered, types.LetterStatusRead},
	})
	require.NoError(t, err)
	assert.False(t, changed)
}

func TestLetterRepository_UpdateStatus_NotFound(t *testing.T) {
	pool := newPgxMock(t)

	pool.ExpectExec(`UPDATE letters SET status = \$1 WHERE id = \$2`).
		WithArgs("read", "missing").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))
	pool.ExpectQuery(`SELECT EXISTS`).
		WithArgs("missing").
		WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(false))

	_, err := NewLetterRepository(pool).UpdateStatus(context.Background(), "missing", types.LetterStatusUpdate{
		Status: types.LetterStatusRead,
	})
	assert.Equal(t, types.ErrCodeNotFoundLetter, types.CodeOf(err))
}

func TestLetterRepository_Find(t *testing.T) {
	pool := newPgxMock(t)
	cutoff := time.Date(2026, 10, 18, 12, 0, 0, 0, time.UTC)
	deliveredAt := cutoff.Add(-time.Hour)

	rows := pgxmock.NewRows(letterColumns).
		AddRow("l1", "user-a", strPtr("user-b"), "original", (*string)(nil), "hi",
			"read", cutoff.Add(-48*time.Hour), &deliveredAt, (*time.Time)(nil))

	pool.ExpectQuery(`SELECT .* FROM letters WHERE status IN \(\$1,\$2\) AND delivered_at < \$3 ORDER BY created_at DESC, id ASC LIMIT 10`).
		WithArgs("delivered", "read", cutoff).
		WillReturnRows(rows)

	letters, err := NewLetterRepository(pool).Find(context.Background(), types.LetterFilter{
		Statuses:        []types.LetterStatus{types.LetterStatusDelivered, types.LetterStatusRead},
		DeliveredBefore: cutoff,
		Limit:           10,
	})
	require.NoError(t, err)
	require.Len(t, letters, 1)
	assert.Equal(t, types.LetterStatusRead, letters[0].Status)
	assert.Equal(t, types.LetterKindOriginal, letters[0].Kind)
	require.NotNil(t, letters[0].RecipientID)
	assert.Equal(t, "user-b", *letters[0].RecipientID)
	assert.Nil(t, letters[0].ArchivedAt)
}

func TestLetterRepository_Find_ExcludeIDs(t *testing.T) {
	pool := newPgxMock(t)
	pool.ExpectQuery(`SELECT .* FROM letters WHERE id NOT IN \(\$1,\$2\) AND status IN \(\$3\) ORDER BY created_at DESC, id ASC LIMIT 2`).
		WithArgs("l1", "l2", "delivered").
		WillReturnRows(pgxmock.NewRows(letterColumns))

	letters, err := NewLetterRepository(pool).Find(context.Background(), types.LetterFilter{
		ExcludeIDs: []string{"l1", "l2"},
		Statuses:   []types.LetterStatus{types.LetterStatusDelivered},
		Limit:      2,
	})
	require.NoError(t, err)
	assert.Empty(t, letters)
}

func TestLetterRepository_Find_QueryError(t *testing.T) {
	pool := newPgxMock(t)
	pool.ExpectQuery(`FROM letters`).WillReturnError(errors.New("timeout"))

	_, err := NewLetterRepository(pool).Find(context.Background(), types.LetterFilter{})
	assert.Equal(t, types.ErrCodeInternalDB, types.CodeOf(err))
}

func TestLetterRepository_DistinctSenders(t *testing.T) {
	pool := newPgxMock(t)
	since := time.Date(2026, 10, 18, 3, 0, 0, 0, time.UTC)

	pool.ExpectQuery(`SELECT DISTINCT sender_id FROM letters WHERE kind = \$1 AND created_at >= \$2 ORDER BY sender_id ASC`).
		WithArgs("original", since).
		WillReturnRows(pgxmock.NewRows([]string{"sender_id"}).AddRow("user-a").AddRow("user-c"))

	senders, err := NewLetterRepository(pool).DistinctSenders(context.Background(), types.LetterFilter{
		Kind:         types.LetterKindOriginal,
		CreatedAfter: since,
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"user-a", "user-c"}, senders)
}
