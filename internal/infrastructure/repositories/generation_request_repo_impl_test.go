package repositories

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"github.com/volatiletech/null/v8"

	"stylize.backend/internal/domain/entities"
	domainerrors "stylize.backend/internal/domain/errors"
)

func newRequest(quoteID, ownerID string, status entities.GenerationStatus) *entities.GenerationRequest {
	return &entities.GenerationRequest{
		ID:             uuid.New(),
		QuoteID:        quoteID,
		OwnerID:        ownerID,
		PromptText:     "cartoon style",
		SourceImageURL: "https://img.example/pfp.png",
		Status:         status,
	}
}

func TestGenerationRequestRepository_CreateAndGet(t *testing.T) {
	db := newTestDB(t)
	createGenerationRequestTable(t, db)
	repo := NewGenerationRequestRepository(db)
	ctx := context.Background()

	req := newRequest("q-1", "alice", entities.GenerationStatusPendingPayment)
	require.NoError(t, repo.Create(ctx, req))

	got, err := repo.GetByQuoteID(ctx, "q-1")
	require.NoError(t, err)
	require.Equal(t, req.ID, got.ID)
	require.Equal(t, "alice", got.OwnerID)
	require.Equal(t, entities.GenerationStatusPendingPayment, got.Status)
	require.False(t, got.TxHash.Valid)

	_, err = repo.GetByQuoteID(ctx, "missing")
	require.ErrorIs(t, err, domainerrors.ErrNotFound)
}

func TestGenerationRequestRepository_DuplicateQuoteID(t *testing.T) {
	db := newTestDB(t)
	createGenerationRequestTable(t, db)
	repo := NewGenerationRequestRepository(db)
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, newRequest("q-dup", "alice", entities.GenerationStatusPendingPayment)))

	err := repo.Create(ctx, newRequest("q-dup", "bob", entities.GenerationStatusPendingPayment))
	require.ErrorIs(t, err, domainerrors.ErrDuplicateQuote)
}

func TestGenerationRequestRepository_CompareAndTransition(t *testing.T) {
	db := newTestDB(t)
	createGenerationRequestTable(t, db)
	repo := NewGenerationRequestRepository(db)
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, newRequest("q-cas", "alice", entities.GenerationStatusPendingPayment)))

	err := repo.CompareAndTransition(ctx, "q-cas",
		entities.GenerationStatusPendingPayment, entities.GenerationStatusQueued,
		entities.TransitionFields{TxHash: null.StringFrom("0xabc")})
	require.NoError(t, err)

	got, err := repo.GetByQuoteID(ctx, "q-cas")
	require.NoError(t, err)
	require.Equal(t, entities.GenerationStatusQueued, got.Status)
	require.Equal(t, "0xabc", got.TxHash.String)

	// Same transition again: the row is no longer pending_payment.
	err = repo.CompareAndTransition(ctx, "q-cas",
		entities.GenerationStatusPendingPayment, entities.GenerationStatusQueued,
		entities.TransitionFields{TxHash: null.StringFrom("0xdef")})
	require.ErrorIs(t, err, domainerrors.ErrStaleStatus)

	// The losing proof must not overwrite the winning one.
	got, err = repo.GetByQuoteID(ctx, "q-cas")
	require.NoError(t, err)
	require.Equal(t, "0xabc", got.TxHash.String)
}

func TestGenerationRequestRepository_CompareAndTransition_MissingRow(t *testing.T) {
	db := newTestDB(t)
	createGenerationRequestTable(t, db)
	repo := NewGenerationRequestRepository(db)

	err := repo.CompareAndTransition(context.Background(), "nope",
		entities.GenerationStatusQueued, entities.GenerationStatusGenerating,
		entities.TransitionFields{})
	require.ErrorIs(t, err, domainerrors.ErrStaleStatus)
}

func TestGenerationRequestRepository_CompareAndTransition_IllegalMove(t *testing.T) {
	db := newTestDB(t)
	createGenerationRequestTable(t, db)
	repo := NewGenerationRequestRepository(db)
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, newRequest("q-ill", "alice", entities.GenerationStatusCompleted)))

	err := repo.CompareAndTransition(ctx, "q-ill",
		entities.GenerationStatusCompleted, entities.GenerationStatusQueued,
		entities.TransitionFields{})
	require.ErrorIs(t, err, domainerrors.ErrInvalidState)
}

func TestGenerationRequestRepository_ResetClearsTxHash(t *testing.T) {
	db := newTestDB(t)
	createGenerationRequestTable(t, db)
	repo := NewGenerationRequestRepository(db)
	ctx := context.Background()

	req := newRequest("q-reset", "alice", entities.GenerationStatusPaymentError)
	req.TxHash = null.StringFrom("0xbad")
	require.NoError(t, repo.Create(ctx, req))

	err := repo.CompareAndTransition(ctx, "q-reset",
		entities.GenerationStatusPaymentError, entities.GenerationStatusPendingPayment,
		entities.TransitionFields{})
	require.NoError(t, err)

	got, err := repo.GetByQuoteID(ctx, "q-reset")
	require.NoError(t, err)
	require.Equal(t, entities.GenerationStatusPendingPayment, got.Status)
	require.False(t, got.TxHash.Valid, "failed proof should be cleared on reset")
}

func TestGenerationRequestRepository_ListByOwner(t *testing.T) {
	db := newTestDB(t)
	createGenerationRequestTable(t, db)
	repo := NewGenerationRequestRepository(db)
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, newRequest("q-a1", "alice", entities.GenerationStatusQueued)))
	require.NoError(t, repo.Create(ctx, newRequest("q-a2", "alice", entities.GenerationStatusGenerating)))
	require.NoError(t, repo.Create(ctx, newRequest("q-a3", "alice", entities.GenerationStatusCompleted)))
	require.NoError(t, repo.Create(ctx, newRequest("q-b1", "bob", entities.GenerationStatusQueued)))

	jobs, total, err := repo.ListByOwner(ctx, "alice", entities.InProgressStatuses(), 10, 0)
	require.NoError(t, err)
	require.Equal(t, 2, total)
	require.Len(t, jobs, 2)
	for _, j := range jobs {
		require.Equal(t, "alice", j.OwnerID)
		require.NotEqual(t, entities.GenerationStatusCompleted, j.Status)
	}

	images, total, err := repo.ListByOwner(ctx, "alice",
		[]entities.GenerationStatus{entities.GenerationStatusCompleted}, 10, 0)
	require.NoError(t, err)
	require.Equal(t, 1, total)
	require.Len(t, images, 1)
	require.Equal(t, "q-a3", images[0].QuoteID)

	all, total, err := repo.ListByOwner(ctx, "alice", nil, 10, 0)
	require.NoError(t, err)
	require.Equal(t, 3, total)
	require.Len(t, all, 3)

	none, total, err := repo.ListByOwner(ctx, "carol", nil, 10, 0)
	require.NoError(t, err)
	require.Zero(t, total)
	require.Empty(t, none)
}
