package entities

import (
	"time"

	"github.com/google/uuid"
	"github.com/volatiletech/null/v8"
)

// GenerationStatus represents the lifecycle state of a generation request
type GenerationStatus string

const (
	GenerationStatusPendingPayment GenerationStatus = "pending_payment"
	GenerationStatusPaid           GenerationStatus = "paid"
	GenerationStatusQueued         GenerationStatus = "queued"
	GenerationStatusGenerating     GenerationStatus = "generating"
	GenerationStatusCompleted      GenerationStatus = "completed"
	GenerationStatusPaymentError   GenerationStatus = "payment_error"
	GenerationStatusError          GenerationStatus = "error"
)

// statusTransitions is the single source of truth for legal status moves.
// pending_payment -> queued happens atomically on verified payment; "paid"
// is retained in the enum for wire compatibility with older rows but no
// new transition produces it.
var statusTransitions = map[GenerationStatus][]GenerationStatus{
	GenerationStatusPendingPayment: {GenerationStatusQueued, GenerationStatusPaymentError},
	GenerationStatusPaid:           {GenerationStatusQueued},
	GenerationStatusPaymentError:   {GenerationStatusPendingPayment}, // operator reset only
	GenerationStatusQueued:         {GenerationStatusGenerating},
	GenerationStatusGenerating:     {GenerationStatusCompleted, GenerationStatusError},
}

// CanTransitionTo reports whether moving from s to next is legal
func (s GenerationStatus) CanTransitionTo(next GenerationStatus) bool {
	for _, allowed := range statusTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no further transitions are possible
func (s GenerationStatus) IsTerminal() bool {
	return len(statusTransitions[s]) == 0
}

// InProgressStatuses are the states shown in the "my jobs" view
func InProgressStatuses() []GenerationStatus {
	return []GenerationStatus{
		GenerationStatusPaid,
		GenerationStatusQueued,
		GenerationStatusGenerating,
	}
}

// GenerationRequest is the durable record of a single stylization request,
// from quote issuance through payment verification to the generated image.
// Rows are never deleted; they double as the payment audit trail.
type GenerationRequest struct {
	ID             uuid.UUID        `json:"id"`
	QuoteID        string           `json:"quoteId"`
	OwnerID        string           `json:"ownerId"`
	PromptText     string           `json:"promptText"`
	SourceImageURL string           `json:"sourceImageUrl"`
	Status         GenerationStatus `json:"status"`
	TxHash         null.String      `json:"transactionHash,omitempty"`
	ResultImageURL null.String      `json:"resultImageUrl,omitempty"`
	ErrorMessage   null.String      `json:"errorMessage,omitempty"`
	CreatedAt      time.Time        `json:"createdAt"`
	UpdatedAt      time.Time        `json:"updatedAt"`
}

// TransitionFields carries the optional columns a status transition may set.
// Unset fields are left untouched by the store.
type TransitionFields struct {
	TxHash         null.String
	ResultImageURL null.String
	ErrorMessage   null.String
}

// StylizeJob is the payload admitted to the stylize queue after a verified
// payment. Exactly one job is ever admitted per quote id.
type StylizeJob struct {
	JobID          string    `json:"jobId"`
	QuoteID        string    `json:"quoteId"`
	OwnerID        string    `json:"ownerId"`
	Prompt         string    `json:"prompt"`
	SourceImageURL string    `json:"sourceImageUrl"`
	EnqueuedAt     time.Time `json:"enqueuedAt"`
}
