package blockchain

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"go.uber.org/zap"

	domainerrors "stylize.backend/internal/domain/errors"
	"stylize.backend/pkg/logger"
)

// ETHReceived is emitted by the payment receiver contract when it is paid.
// The recipient address must have delegated to the receiver implementation
// for the event to appear at the expected address.
const ethReceivedABI = `[{"anonymous":false,"inputs":[{"indexed":true,"name":"from","type":"address"},{"indexed":true,"name":"amount","type":"uint256"},{"indexed":false,"name":"data","type":"bytes"}],"name":"ETHReceived","type":"event"}]`

var ethReceivedEvent abi.Event

func init() {
	parsed, err := abi.JSON(strings.NewReader(ethReceivedABI))
	if err != nil {
		panic(err)
	}
	ethReceivedEvent = parsed.Events["ETHReceived"]
}

// ChainError covers oracle faults: unknown hash, revert, timeout, transport
// errors. These are retryable from the caller's point of view and must be
// kept distinct from payment mismatches.
type ChainError struct {
	Reason string
	Err    error
}

func (e *ChainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("chain error: %s: %v", e.Reason, e.Err)
	}
	return "chain error: " + e.Reason
}

func (e *ChainError) Unwrap() error {
	return domainerrors.ErrChainUnavailable
}

// MismatchError covers a confirmed transaction that does not satisfy the
// payment contract. Field names the first constraint that failed; it never
// echoes the expected values.
type MismatchError struct {
	Field string
}

func (e *MismatchError) Error() string {
	return "payment mismatch: " + e.Field
}

func (e *MismatchError) Unwrap() error {
	return domainerrors.ErrPaymentMismatch
}

// ExpectedPayment is the contract a transaction must satisfy: the exact
// recipient, at least the quoted value, and the quote id as byte-exact
// call data in the event payload.
type ExpectedPayment struct {
	Recipient   common.Address
	MinValueWei *big.Int
	QuoteID     string
}

// Verifier decides whether an on-chain transaction constitutes a valid
// payment for a quote. It is a pure oracle query: no side effects, safe to
// call repeatedly with the same input.
type Verifier struct {
	oracle           ChainOracle
	minConfirmations uint64
	pollInterval     time.Duration
	waitTimeout      time.Duration
}

// NewVerifier creates a payment verifier over a chain oracle
func NewVerifier(oracle ChainOracle, minConfirmations uint64, pollInterval, waitTimeout time.Duration) *Verifier {
	if minConfirmations == 0 {
		minConfirmations = 1
	}
	if pollInterval <= 0 {
		pollInterval = 2 * time.Second
	}
	if waitTimeout <= 0 {
		waitTimeout = 60 * time.Second
	}
	return &Verifier{
		oracle:           oracle,
		minConfirmations: minConfirmations,
		pollInterval:     pollInterval,
		waitTimeout:      waitTimeout,
	}
}

// VerifyPayment blocks until the transaction is confirmed to the minimum
// depth, then checks its ETHReceived logs against the expected payment.
// Returns nil when verified, *MismatchError when the transaction is
// confirmed but does not satisfy the contract, *ChainError otherwise.
func (v *Verifier) VerifyPayment(ctx context.Context, txHash string, expected ExpectedPayment) error {
	hash := common.HexToHash(txHash)

	receipt, err := v.waitForConfirmedReceipt(ctx, hash)
	if err != nil {
		logger.Warn(ctx, "payment verification chain error",
			zap.String("tx_hash", txHash),
			zap.Error(err),
		)
		return err
	}

	field := "recipient"
	for _, log := range receipt.Logs {
		if log.Address != expected.Recipient {
			continue
		}
		if len(log.Topics) < 3 || log.Topics[0] != ethReceivedEvent.ID {
			continue
		}

		amount := new(big.Int).SetBytes(log.Topics[2].Bytes())
		data, err := unpackEventData(log.Data)
		if err != nil {
			// Malformed log data on a matching topic; skip it rather
			// than failing the whole receipt.
			continue
		}

		if amount.Cmp(expected.MinValueWei) < 0 {
			if field == "recipient" {
				field = "amount"
			}
			continue
		}
		if !bytes.Equal(data, []byte(expected.QuoteID)) {
			field = "calldata"
			continue
		}

		logger.Info(ctx, "payment verified",
			zap.String("tx_hash", txHash),
			zap.String("amount_wei", amount.String()),
		)
		return nil
	}

	logger.Warn(ctx, "payment mismatch",
		zap.String("tx_hash", txHash),
		zap.String("field", field),
	)
	return &MismatchError{Field: field}
}

func (v *Verifier) waitForConfirmedReceipt(ctx context.Context, hash common.Hash) (*types.Receipt, error) {
	ctx, cancel := context.WithTimeout(ctx, v.waitTimeout)
	defer cancel()

	ticker := time.NewTicker(v.pollInterval)
	defer ticker.Stop()

	for {
		receipt, err := v.oracle.TransactionReceipt(ctx, hash)
		switch {
		case err == nil:
			if receipt.Status != types.ReceiptStatusSuccessful {
				return nil, &ChainError{Reason: "transaction reverted"}
			}
			confirmed, err := v.isConfirmed(ctx, receipt)
			if err != nil {
				return nil, &ChainError{Reason: "head lookup failed", Err: err}
			}
			if confirmed {
				return receipt, nil
			}
		case errors.Is(err, ethereum.NotFound):
			// Not mined yet; keep polling until the deadline.
		default:
			return nil, &ChainError{Reason: "receipt lookup failed", Err: err}
		}

		select {
		case <-ctx.Done():
			return nil, &ChainError{Reason: "confirmation wait timed out", Err: ctx.Err()}
		case <-ticker.C:
		}
	}
}

func (v *Verifier) isConfirmed(ctx context.Context, receipt *types.Receipt) (bool, error) {
	head, err := v.oracle.BlockNumber(ctx)
	if err != nil {
		return false, err
	}
	if head < receipt.BlockNumber.Uint64() {
		return false, nil
	}
	// The including block counts as the first confirmation.
	return head-receipt.BlockNumber.Uint64()+1 >= v.minConfirmations, nil
}

func unpackEventData(data []byte) ([]byte, error) {
	vals, err := ethReceivedEvent.Inputs.NonIndexed().Unpack(data)
	if err != nil {
		return nil, err
	}
	payload, ok := vals[0].([]byte)
	if !ok {
		return nil, errors.New("unexpected event data type")
	}
	return payload, nil
}
