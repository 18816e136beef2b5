package usecases

import (
	"context"
	"errors"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/volatiletech/null/v8"
	"go.uber.org/zap"

	"stylize.backend/internal/domain/entities"
	domainerrors "stylize.backend/internal/domain/errors"
	domainRepos "stylize.backend/internal/domain/repositories"
	"stylize.backend/internal/infrastructure/blockchain"
	"stylize.backend/internal/infrastructure/metrics"
	"stylize.backend/internal/infrastructure/queue"
	"stylize.backend/pkg/logger"
	"stylize.backend/pkg/utils"
)

const maxStoredErrorLen = 500

// PaymentVerifier is the oracle query deciding whether a transaction
// satisfies a quote's payment contract
type PaymentVerifier interface {
	VerifyPayment(ctx context.Context, txHash string, expected blockchain.ExpectedPayment) error
}

// JobQueue is the admission sink. Enqueue is fire-and-forget from the
// admission service's perspective; delivery belongs to the worker.
type JobQueue interface {
	Enqueue(ctx context.Context, name string, payload interface{}) (string, error)
}

// PaymentSettings are the deployment's payment parameters, injected at
// construction time rather than read from the environment ad hoc.
type PaymentSettings struct {
	Address   string
	AmountETH string
	AmountWei *big.Int
}

// GenerationUsecase orchestrates quote issuance, payment-proof submission,
// verification, status transitions and job admission.
type GenerationUsecase struct {
	requestRepo domainRepos.GenerationRequestRepository
	verifier    PaymentVerifier
	jobQueue    JobQueue
	payment     PaymentSettings
}

func NewGenerationUsecase(
	requestRepo domainRepos.GenerationRequestRepository,
	verifier PaymentVerifier,
	jobQueue JobQueue,
	payment PaymentSettings,
) *GenerationUsecase {
	return &GenerationUsecase{
		requestRepo: requestRepo,
		verifier:    verifier,
		jobQueue:    jobQueue,
		payment:     payment,
	}
}

type CreateQuoteInput struct {
	OwnerID        string
	Prompt         string
	SourceImageURL string
}

type CreateQuoteOutput struct {
	QuoteID        string `json:"quoteId"`
	PaymentAddress string `json:"paymentAddress"`
	AmountDue      string `json:"amountDue"`
	AmountDueWei   string `json:"amountDueWei"`
	Calldata       string `json:"calldata"`
}

// CreateQuote persists a pending_payment request and returns the payment
// instructions. Calldata is the exact bytes the client must place in the
// transaction's data field: the quote id hex-encoded.
func (uc *GenerationUsecase) CreateQuote(ctx context.Context, input CreateQuoteInput) (*CreateQuoteOutput, error) {
	if input.OwnerID == "" {
		return nil, domainerrors.Unauthorized("unauthorized")
	}
	if strings.TrimSpace(input.Prompt) == "" {
		return nil, domainerrors.BadRequest("a non-empty prompt is required for a quote")
	}
	if input.SourceImageURL == "" {
		return nil, domainerrors.BadRequest("a source image is required for a quote")
	}
	if uc.payment.Address == "" {
		return nil, domainerrors.InternalError(errors.New("payment address not configured"))
	}

	quoteID := utils.GenerateQuoteID()
	ctx = logger.WithQuoteID(ctx, quoteID)

	req := &entities.GenerationRequest{
		ID:             utils.GenerateUUIDv7(),
		QuoteID:        quoteID,
		OwnerID:        input.OwnerID,
		PromptText:     input.Prompt,
		SourceImageURL: input.SourceImageURL,
		Status:         entities.GenerationStatusPendingPayment,
	}

	if err := uc.requestRepo.Create(ctx, req); err != nil {
		if errors.Is(err, domainerrors.ErrDuplicateQuote) {
			// UUID collision; a retry gets a fresh id.
			return nil, domainerrors.InternalError(errors.New("failed to generate a unique quote id"))
		}
		return nil, domainerrors.InternalError(err)
	}

	metrics.QuotesCreated.Inc()
	logger.Info(ctx, "quote created", zap.String("owner_id", input.OwnerID))

	return &CreateQuoteOutput{
		QuoteID:        quoteID,
		PaymentAddress: uc.payment.Address,
		AmountDue:      uc.payment.AmountETH,
		AmountDueWei:   uc.payment.AmountWei.String(),
		Calldata:       hexutil.Encode([]byte(quoteID)),
	}, nil
}

type SubmitPaymentInput struct {
	QuoteID string
	TxHash  string
	OwnerID string
}

type SubmitPaymentOutput struct {
	QuoteID          string                    `json:"quoteId"`
	Status           entities.GenerationStatus `json:"status"`
	JobID            string                    `json:"jobId,omitempty"`
	AlreadyProcessed bool                      `json:"alreadyProcessed,omitempty"`
}

// SubmitPayment verifies a payment proof and, on success, admits exactly
// one stylize job for the quote. Concurrent submissions for the same quote
// are safe: the compare-and-transition from pending_payment to queued is
// the only admission gate, and the loser of that race is reported as
// already processed rather than as an error.
func (uc *GenerationUsecase) SubmitPayment(ctx context.Context, input SubmitPaymentInput) (*SubmitPaymentOutput, error) {
	if input.QuoteID == "" || input.TxHash == "" {
		return nil, domainerrors.BadRequest("quoteId and transactionHash are required for payment submission")
	}
	ctx = logger.WithQuoteID(ctx, input.QuoteID)

	req, err := uc.requestRepo.GetByQuoteID(ctx, input.QuoteID)
	if err != nil {
		if errors.Is(err, domainerrors.ErrNotFound) {
			return nil, domainerrors.NotFound("invalid quoteId, request not found")
		}
		return nil, domainerrors.InternalError(err)
	}
	if input.OwnerID != "" && req.OwnerID != input.OwnerID {
		return nil, domainerrors.Forbidden("request belongs to another owner")
	}
	if req.Status != entities.GenerationStatusPendingPayment {
		return nil, domainerrors.Conflict(
			"request status is '" + string(req.Status) + "', not 'pending_payment'")
	}

	expected := blockchain.ExpectedPayment{
		Recipient:   common.HexToAddress(uc.payment.Address),
		MinValueWei: uc.payment.AmountWei,
		QuoteID:     input.QuoteID,
	}

	// The confirmation wait can take tens of seconds; no lock is held
	// here. The transition below is the only serialization point.
	verifyErr := uc.verifier.VerifyPayment(ctx, input.TxHash, expected)
	switch {
	case verifyErr == nil:
		return uc.admit(ctx, req, input.TxHash)

	case errors.Is(verifyErr, domainerrors.ErrChainUnavailable):
		// Retryable: the transaction may confirm moments later. The
		// request stays pending_payment so the client can resubmit.
		metrics.PaymentVerifications.WithLabelValues(metrics.OutcomeChainErr).Inc()
		return nil, domainerrors.ServiceUnavailable("on-chain verification unavailable, please retry")

	case errors.Is(verifyErr, domainerrors.ErrPaymentMismatch):
		metrics.PaymentVerifications.WithLabelValues(metrics.OutcomeMismatch).Inc()
		return nil, uc.rejectPayment(ctx, req, input.TxHash, verifyErr)

	default:
		return nil, domainerrors.InternalError(verifyErr)
	}
}

func (uc *GenerationUsecase) admit(ctx context.Context, req *entities.GenerationRequest, txHash string) (*SubmitPaymentOutput, error) {
	fields := entities.TransitionFields{TxHash: null.StringFrom(txHash)}
	err := uc.requestRepo.CompareAndTransition(ctx, req.QuoteID,
		entities.GenerationStatusPendingPayment, entities.GenerationStatusQueued, fields)
	if err != nil {
		if errors.Is(err, domainerrors.ErrStaleStatus) {
			// Lost the admission race: another submission already moved
			// the request out of pending_payment and enqueued the job.
			metrics.PaymentVerifications.WithLabelValues(metrics.OutcomeDuplicate).Inc()
			logger.Info(ctx, "duplicate payment submission, treating as processed")
			return &SubmitPaymentOutput{
				QuoteID:          req.QuoteID,
				Status:           entities.GenerationStatusQueued,
				AlreadyProcessed: true,
			}, nil
		}
		return nil, domainerrors.InternalError(err)
	}

	job := entities.StylizeJob{
		QuoteID:        req.QuoteID,
		OwnerID:        req.OwnerID,
		Prompt:         req.PromptText,
		SourceImageURL: req.SourceImageURL,
	}
	jobID, err := uc.jobQueue.Enqueue(ctx, queue.StylizeImageQueue, job)
	if err != nil {
		// The transition already committed; surface the fault rather
		// than risking a second admission for this quote.
		logger.Error(ctx, "job enqueue failed after admission", zap.Error(err))
		return nil, domainerrors.InternalError(err)
	}

	metrics.PaymentVerifications.WithLabelValues(metrics.OutcomeVerified).Inc()
	metrics.JobsEnqueued.Inc()
	logger.Info(ctx, "payment verified, job admitted",
		zap.String("tx_hash", txHash),
		zap.String("job_id", jobID),
	)

	return &SubmitPaymentOutput{
		QuoteID: req.QuoteID,
		Status:  entities.GenerationStatusQueued,
		JobID:   jobID,
	}, nil
}

func (uc *GenerationUsecase) rejectPayment(ctx context.Context, req *entities.GenerationRequest, txHash string, verifyErr error) error {
	fields := entities.TransitionFields{TxHash: null.StringFrom(txHash)}
	err := uc.requestRepo.CompareAndTransition(ctx, req.QuoteID,
		entities.GenerationStatusPendingPayment, entities.GenerationStatusPaymentError, fields)
	if err != nil && !errors.Is(err, domainerrors.ErrStaleStatus) {
		return domainerrors.InternalError(err)
	}
	if errors.Is(err, domainerrors.ErrStaleStatus) {
		// A concurrent submission settled the request first; keep its
		// outcome and still report this proof as rejected.
		logger.Warn(ctx, "payment rejection lost a transition race")
	}
	return domainerrors.PaymentRequired(verifyErr.Error())
}

// GetRequest returns an owner's request by quote id
func (uc *GenerationUsecase) GetRequest(ctx context.Context, quoteID, ownerID string) (*entities.GenerationRequest, error) {
	req, err := uc.requestRepo.GetByQuoteID(ctx, quoteID)
	if err != nil {
		if errors.Is(err, domainerrors.ErrNotFound) {
			return nil, domainerrors.NotFound("generation request not found")
		}
		return nil, domainerrors.InternalError(err)
	}
	if ownerID != "" && req.OwnerID != ownerID {
		return nil, domainerrors.NotFound("generation request not found")
	}
	return req, nil
}

// ListJobs returns the owner's in-progress requests, newest first
func (uc *GenerationUsecase) ListJobs(ctx context.Context, ownerID string, limit, offset int) ([]*entities.GenerationRequest, int, error) {
	return uc.requestRepo.ListByOwner(ctx, ownerID, entities.InProgressStatuses(), limit, offset)
}

// ListImages returns the owner's completed requests, newest first
func (uc *GenerationUsecase) ListImages(ctx context.Context, ownerID string, limit, offset int) ([]*entities.GenerationRequest, int, error) {
	statuses := []entities.GenerationStatus{entities.GenerationStatusCompleted}
	return uc.requestRepo.ListByOwner(ctx, ownerID, statuses, limit, offset)
}

// ResetPaymentError is the operator path that makes a payment_error
// request payable again with a fresh transaction. The failed proof is
// cleared; clients otherwise have to request a new quote.
func (uc *GenerationUsecase) ResetPaymentError(ctx context.Context, quoteID string) error {
	ctx = logger.WithQuoteID(ctx, quoteID)
	err := uc.requestRepo.CompareAndTransition(ctx, quoteID,
		entities.GenerationStatusPaymentError, entities.GenerationStatusPendingPayment,
		entities.TransitionFields{})
	if err != nil {
		if errors.Is(err, domainerrors.ErrStaleStatus) {
			return domainerrors.Conflict("request is not in payment_error")
		}
		return domainerrors.InternalError(err)
	}
	logger.Info(ctx, "payment error reset by operator")
	return nil
}

// MarkGenerating is the worker-side transition out of queued. A stale
// result means another worker claimed the job.
func (uc *GenerationUsecase) MarkGenerating(ctx context.Context, quoteID string) error {
	return uc.requestRepo.CompareAndTransition(ctx, quoteID,
		entities.GenerationStatusQueued, entities.GenerationStatusGenerating,
		entities.TransitionFields{})
}

// CompleteGeneration records the generated image
func (uc *GenerationUsecase) CompleteGeneration(ctx context.Context, quoteID, resultImageURL string) error {
	fields := entities.TransitionFields{ResultImageURL: null.StringFrom(resultImageURL)}
	return uc.requestRepo.CompareAndTransition(ctx, quoteID,
		entities.GenerationStatusGenerating, entities.GenerationStatusCompleted, fields)
}

// FailGeneration records a truncated worker failure message
func (uc *GenerationUsecase) FailGeneration(ctx context.Context, quoteID, message string) error {
	if len(message) > maxStoredErrorLen {
		message = message[:maxStoredErrorLen]
	}
	fields := entities.TransitionFields{ErrorMessage: null.StringFrom(message)}
	return uc.requestRepo.CompareAndTransition(ctx, quoteID,
		entities.GenerationStatusGenerating, entities.GenerationStatusError, fields)
}
