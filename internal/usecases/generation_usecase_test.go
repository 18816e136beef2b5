package usecases_test

import (
	"context"
	"errors"
	"math/big"
	"os"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"stylize.backend/internal/domain/entities"
	domainerrors "stylize.backend/internal/domain/errors"
	"stylize.backend/internal/infrastructure/blockchain"
	"stylize.backend/internal/infrastructure/queue"
	"stylize.backend/internal/usecases"
	"stylize.backend/pkg/logger"
)

func TestMain(m *testing.M) {
	logger.Init("development")
	os.Exit(m.Run())
}

func testPaymentSettings() usecases.PaymentSettings {
	return usecases.PaymentSettings{
		Address:   "0x1111111111111111111111111111111111111111",
		AmountETH: "0.00001",
		AmountWei: big.NewInt(10_000_000_000_000),
	}
}

func pendingRequest(quoteID, ownerID string) *entities.GenerationRequest {
	return &entities.GenerationRequest{
		QuoteID:        quoteID,
		OwnerID:        ownerID,
		PromptText:     "cartoon style",
		SourceImageURL: "https://img.example/pfp.png",
		Status:         entities.GenerationStatusPendingPayment,
	}
}

func TestCreateQuote_Success(t *testing.T) {
	repo := new(MockGenerationRequestRepository)
	uc := usecases.NewGenerationUsecase(repo, nil, nil, testPaymentSettings())

	repo.On("Create", mock.Anything, mock.MatchedBy(func(r *entities.GenerationRequest) bool {
		return r.OwnerID == "alice" &&
			r.Status == entities.GenerationStatusPendingPayment &&
			r.QuoteID != ""
	})).Return(nil)

	out, err := uc.CreateQuote(context.Background(), usecases.CreateQuoteInput{
		OwnerID:        "alice",
		Prompt:         "cartoon style",
		SourceImageURL: "https://img.example/pfp.png",
	})
	require.NoError(t, err)
	require.NotEmpty(t, out.QuoteID)
	require.Equal(t, "0x1111111111111111111111111111111111111111", out.PaymentAddress)
	require.Equal(t, "0.00001", out.AmountDue)
	require.Equal(t, "10000000000000", out.AmountDueWei)
	// Calldata is the quote id bytes, hex encoded.
	require.Equal(t, "0x"+hexOf(out.QuoteID), out.Calldata)
	repo.AssertExpectations(t)
}

func hexOf(s string) string {
	const digits = "0123456789abcdef"
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		b.WriteByte(digits[s[i]>>4])
		b.WriteByte(digits[s[i]&0xf])
	}
	return b.String()
}

func TestCreateQuote_Validation(t *testing.T) {
	repo := new(MockGenerationRequestRepository)
	uc := usecases.NewGenerationUsecase(repo, nil, nil, testPaymentSettings())
	ctx := context.Background()

	_, err := uc.CreateQuote(ctx, usecases.CreateQuoteInput{Prompt: "x", SourceImageURL: "y"})
	require.ErrorIs(t, err, domainerrors.ErrUnauthorized)

	_, err = uc.CreateQuote(ctx, usecases.CreateQuoteInput{OwnerID: "alice", Prompt: "  ", SourceImageURL: "y"})
	require.ErrorIs(t, err, domainerrors.ErrInvalidInput)

	_, err = uc.CreateQuote(ctx, usecases.CreateQuoteInput{OwnerID: "alice", Prompt: "cartoon style"})
	require.ErrorIs(t, err, domainerrors.ErrInvalidInput)

	repo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestSubmitPayment_VerifiedAdmitsOneJob(t *testing.T) {
	repo := new(MockGenerationRequestRepository)
	verifier := new(MockPaymentVerifier)
	jobQueue := new(MockJobQueue)
	uc := usecases.NewGenerationUsecase(repo, verifier, jobQueue, testPaymentSettings())
	ctx := context.Background()

	repo.On("GetByQuoteID", mock.Anything, "q-1").Return(pendingRequest("q-1", "alice"), nil)
	verifier.On("VerifyPayment", mock.Anything, "0xabc", mock.MatchedBy(func(e blockchain.ExpectedPayment) bool {
		return e.QuoteID == "q-1" && e.MinValueWei.Cmp(big.NewInt(10_000_000_000_000)) == 0
	})).Return(nil)
	repo.On("CompareAndTransition", mock.Anything, "q-1",
		entities.GenerationStatusPendingPayment, entities.GenerationStatusQueued,
		mock.MatchedBy(func(f entities.TransitionFields) bool {
			return f.TxHash.Valid && f.TxHash.String == "0xabc"
		})).Return(nil)
	jobQueue.On("Enqueue", mock.Anything, queue.StylizeImageQueue, mock.MatchedBy(func(p interface{}) bool {
		job, ok := p.(entities.StylizeJob)
		return ok && job.QuoteID == "q-1" && job.OwnerID == "alice" && job.Prompt == "cartoon style"
	})).Return("job-1", nil)

	out, err := uc.SubmitPayment(ctx, usecases.SubmitPaymentInput{QuoteID: "q-1", TxHash: "0xabc", OwnerID: "alice"})
	require.NoError(t, err)
	require.Equal(t, entities.GenerationStatusQueued, out.Status)
	require.Equal(t, "job-1", out.JobID)
	require.False(t, out.AlreadyProcessed)

	repo.AssertExpectations(t)
	verifier.AssertExpectations(t)
	jobQueue.AssertExpectations(t)
}

func TestSubmitPayment_UnknownQuote(t *testing.T) {
	repo := new(MockGenerationRequestRepository)
	verifier := new(MockPaymentVerifier)
	uc := usecases.NewGenerationUsecase(repo, verifier, nil, testPaymentSettings())

	repo.On("GetByQuoteID", mock.Anything, "nope").Return(nil, domainerrors.ErrNotFound)

	_, err := uc.SubmitPayment(context.Background(), usecases.SubmitPaymentInput{QuoteID: "nope", TxHash: "0xabc"})
	require.ErrorIs(t, err, domainerrors.ErrNotFound)
	verifier.AssertNotCalled(t, "VerifyPayment", mock.Anything, mock.Anything, mock.Anything)
}

func TestSubmitPayment_WrongStatusSkipsVerifier(t *testing.T) {
	for _, status := range []entities.GenerationStatus{
		entities.GenerationStatusQueued,
		entities.GenerationStatusGenerating,
		entities.GenerationStatusCompleted,
		entities.GenerationStatusPaymentError,
		entities.GenerationStatusError,
	} {
		t.Run(string(status), func(t *testing.T) {
			repo := new(MockGenerationRequestRepository)
			verifier := new(MockPaymentVerifier)
			uc := usecases.NewGenerationUsecase(repo, verifier, nil, testPaymentSettings())

			req := pendingRequest("q-1", "alice")
			req.Status = status
			repo.On("GetByQuoteID", mock.Anything, "q-1").Return(req, nil)

			_, err := uc.SubmitPayment(context.Background(), usecases.SubmitPaymentInput{QuoteID: "q-1", TxHash: "0xabc", OwnerID: "alice"})
			require.ErrorIs(t, err, domainerrors.ErrInvalidState)
			require.Contains(t, err.(*domainerrors.AppError).Message, string(status))
			verifier.AssertNotCalled(t, "VerifyPayment", mock.Anything, mock.Anything, mock.Anything)
		})
	}
}

func TestSubmitPayment_WrongOwner(t *testing.T) {
	repo := new(MockGenerationRequestRepository)
	verifier := new(MockPaymentVerifier)
	uc := usecases.NewGenerationUsecase(repo, verifier, nil, testPaymentSettings())

	repo.On("GetByQuoteID", mock.Anything, "q-1").Return(pendingRequest("q-1", "alice"), nil)

	_, err := uc.SubmitPayment(context.Background(), usecases.SubmitPaymentInput{QuoteID: "q-1", TxHash: "0xabc", OwnerID: "mallory"})
	require.ErrorIs(t, err, domainerrors.ErrForbidden)
	verifier.AssertNotCalled(t, "VerifyPayment", mock.Anything, mock.Anything, mock.Anything)
}

func TestSubmitPayment_ChainErrorKeepsRequestPayable(t *testing.T) {
	repo := new(MockGenerationRequestRepository)
	verifier := new(MockPaymentVerifier)
	uc := usecases.NewGenerationUsecase(repo, verifier, nil, testPaymentSettings())

	repo.On("GetByQuoteID", mock.Anything, "q-1").Return(pendingRequest("q-1", "alice"), nil)
	verifier.On("VerifyPayment", mock.Anything, "0xabc", mock.Anything).
		Return(&blockchain.ChainError{Reason: "confirmation wait timed out"})

	_, err := uc.SubmitPayment(context.Background(), usecases.SubmitPaymentInput{QuoteID: "q-1", TxHash: "0xabc", OwnerID: "alice"})
	require.ErrorIs(t, err, domainerrors.ErrChainUnavailable)

	// No transition: the request stays pending_payment for a retry.
	repo.AssertNotCalled(t, "CompareAndTransition",
		mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestSubmitPayment_MismatchMovesToPaymentError(t *testing.T) {
	repo := new(MockGenerationRequestRepository)
	verifier := new(MockPaymentVerifier)
	uc := usecases.NewGenerationUsecase(repo, verifier, nil, testPaymentSettings())

	repo.On("GetByQuoteID", mock.Anything, "q-1").Return(pendingRequest("q-1", "alice"), nil)
	verifier.On("VerifyPayment", mock.Anything, "0xabc", mock.Anything).
		Return(&blockchain.MismatchError{Field: "amount"})
	repo.On("CompareAndTransition", mock.Anything, "q-1",
		entities.GenerationStatusPendingPayment, entities.GenerationStatusPaymentError,
		mock.MatchedBy(func(f entities.TransitionFields) bool {
			return f.TxHash.Valid && f.TxHash.String == "0xabc"
		})).Return(nil)

	_, err := uc.SubmitPayment(context.Background(), usecases.SubmitPaymentInput{QuoteID: "q-1", TxHash: "0xabc", OwnerID: "alice"})
	require.ErrorIs(t, err, domainerrors.ErrPaymentMismatch)
	repo.AssertExpectations(t)
}

func TestSubmitPayment_LostRaceIsAlreadyProcessed(t *testing.T) {
	repo := new(MockGenerationRequestRepository)
	verifier := new(MockPaymentVerifier)
	jobQueue := new(MockJobQueue)
	uc := usecases.NewGenerationUsecase(repo, verifier, jobQueue, testPaymentSettings())

	repo.On("GetByQuoteID", mock.Anything, "q-1").Return(pendingRequest("q-1", "alice"), nil)
	verifier.On("VerifyPayment", mock.Anything, "0xabc", mock.Anything).Return(nil)
	repo.On("CompareAndTransition", mock.Anything, "q-1",
		entities.GenerationStatusPendingPayment, entities.GenerationStatusQueued,
		mock.Anything).Return(domainerrors.ErrStaleStatus)

	out, err := uc.SubmitPayment(context.Background(), usecases.SubmitPaymentInput{QuoteID: "q-1", TxHash: "0xabc", OwnerID: "alice"})
	require.NoError(t, err)
	require.True(t, out.AlreadyProcessed)
	require.Equal(t, entities.GenerationStatusQueued, out.Status)
	jobQueue.AssertNotCalled(t, "Enqueue", mock.Anything, mock.Anything, mock.Anything)
}

func TestSubmitPayment_EnqueueFailureSurfaces(t *testing.T) {
	repo := new(MockGenerationRequestRepository)
	verifier := new(MockPaymentVerifier)
	jobQueue := new(MockJobQueue)
	uc := usecases.NewGenerationUsecase(repo, verifier, jobQueue, testPaymentSettings())

	repo.On("GetByQuoteID", mock.Anything, "q-1").Return(pendingRequest("q-1", "alice"), nil)
	verifier.On("VerifyPayment", mock.Anything, "0xabc", mock.Anything).Return(nil)
	repo.On("CompareAndTransition", mock.Anything, "q-1",
		entities.GenerationStatusPendingPayment, entities.GenerationStatusQueued,
		mock.Anything).Return(nil)
	jobQueue.On("Enqueue", mock.Anything, queue.StylizeImageQueue, mock.Anything).
		Return("", errors.New("redis down"))

	_, err := uc.SubmitPayment(context.Background(), usecases.SubmitPaymentInput{QuoteID: "q-1", TxHash: "0xabc", OwnerID: "alice"})
	require.Error(t, err)
}

// raceRepo is a functional in-memory store whose CompareAndTransition has
// real conditional-update semantics, for exercising concurrent submissions.
type raceRepo struct {
	mu     sync.Mutex
	status entities.GenerationStatus
	req    *entities.GenerationRequest
}

func (r *raceRepo) Create(context.Context, *entities.GenerationRequest) error { return nil }

func (r *raceRepo) GetByQuoteID(_ context.Context, _ string) (*entities.GenerationRequest, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *r.req
	cp.Status = r.status
	return &cp, nil
}

func (r *raceRepo) CompareAndTransition(_ context.Context, _ string, from, to entities.GenerationStatus, _ entities.TransitionFields) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.status != from {
		return domainerrors.ErrStaleStatus
	}
	r.status = to
	return nil
}

func (r *raceRepo) ListByOwner(context.Context, string, []entities.GenerationStatus, int, int) ([]*entities.GenerationRequest, int, error) {
	return nil, 0, nil
}

type countingQueue struct {
	mu    sync.Mutex
	count int
}

func (q *countingQueue) Enqueue(context.Context, string, interface{}) (string, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.count++
	return "job-1", nil
}

func TestSubmitPayment_ConcurrentSubmissionsAdmitOnce(t *testing.T) {
	repo := &raceRepo{
		status: entities.GenerationStatusPendingPayment,
		req:    pendingRequest("q-1", "alice"),
	}
	verifier := new(MockPaymentVerifier)
	verifier.On("VerifyPayment", mock.Anything, mock.Anything, mock.Anything).Return(nil)
	jobQueue := &countingQueue{}
	uc := usecases.NewGenerationUsecase(repo, verifier, jobQueue, testPaymentSettings())

	const submitters = 8
	outputs := make([]*usecases.SubmitPaymentOutput, submitters)
	errs := make([]error, submitters)

	var wg sync.WaitGroup
	for i := 0; i < submitters; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			outputs[i], errs[i] = uc.SubmitPayment(context.Background(), usecases.SubmitPaymentInput{
				QuoteID: "q-1", TxHash: "0xabc", OwnerID: "alice",
			})
		}(i)
	}
	wg.Wait()

	winners := 0
	for i := 0; i < submitters; i++ {
		if errs[i] != nil {
			// Late arrivals see status queued at the precondition check.
			require.ErrorIs(t, errs[i], domainerrors.ErrInvalidState)
			continue
		}
		require.Equal(t, entities.GenerationStatusQueued, outputs[i].Status)
		if !outputs[i].AlreadyProcessed {
			winners++
		}
	}
	require.Equal(t, 1, winners, "exactly one submission should win admission")
	require.Equal(t, 1, jobQueue.count, "exactly one job should be enqueued")
}

func TestResetPaymentError(t *testing.T) {
	repo := new(MockGenerationRequestRepository)
	uc := usecases.NewGenerationUsecase(repo, nil, nil, testPaymentSettings())
	ctx := context.Background()

	repo.On("CompareAndTransition", mock.Anything, "q-err",
		entities.GenerationStatusPaymentError, entities.GenerationStatusPendingPayment,
		entities.TransitionFields{}).Return(nil).Once()
	require.NoError(t, uc.ResetPaymentError(ctx, "q-err"))

	repo.On("CompareAndTransition", mock.Anything, "q-ok",
		entities.GenerationStatusPaymentError, entities.GenerationStatusPendingPayment,
		entities.TransitionFields{}).Return(domainerrors.ErrStaleStatus).Once()
	err := uc.ResetPaymentError(ctx, "q-ok")
	require.ErrorIs(t, err, domainerrors.ErrInvalidState)
}

func TestFailGeneration_TruncatesMessage(t *testing.T) {
	repo := new(MockGenerationRequestRepository)
	uc := usecases.NewGenerationUsecase(repo, nil, nil, testPaymentSettings())

	long := strings.Repeat("x", 1000)
	repo.On("CompareAndTransition", mock.Anything, "q-1",
		entities.GenerationStatusGenerating, entities.GenerationStatusError,
		mock.MatchedBy(func(f entities.TransitionFields) bool {
			return f.ErrorMessage.Valid && len(f.ErrorMessage.String) == 500
		})).Return(nil)

	require.NoError(t, uc.FailGeneration(context.Background(), "q-1", long))
	repo.AssertExpectations(t)
}

func TestListJobsAndImages(t *testing.T) {
	repo := new(MockGenerationRequestRepository)
	uc := usecases.NewGenerationUsecase(repo, nil, nil, testPaymentSettings())
	ctx := context.Background()

	repo.On("ListByOwner", mock.Anything, "alice", entities.InProgressStatuses(), 20, 0).
		Return([]*entities.GenerationRequest{pendingRequest("q-1", "alice")}, 1, nil)
	jobs, total, err := uc.ListJobs(ctx, "alice", 20, 0)
	require.NoError(t, err)
	require.Equal(t, 1, total)
	require.Len(t, jobs, 1)

	repo.On("ListByOwner", mock.Anything, "alice",
		[]entities.GenerationStatus{entities.GenerationStatusCompleted}, 20, 0).
		Return(nil, 0, nil)
	images, total, err := uc.ListImages(ctx, "alice", 20, 0)
	require.NoError(t, err)
	require.Zero(t, total)
	require.Empty(t, images)
}
