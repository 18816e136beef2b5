package usecases_test

import (
	"context"

	"github.com/stretchr/testify/mock"

	"stylize.backend/internal/domain/entities"
	"stylize.backend/internal/infrastructure/blockchain"
)

// Mock GenerationRequestRepository
type MockGenerationRequestRepository struct {
	mock.Mock
}

func (m *MockGenerationRequestRepository) Create(ctx context.Context, req *entities.GenerationRequest) error {
	args := m.Called(ctx, req)
	return args.Error(0)
}

func (m *MockGenerationRequestRepository) GetByQuoteID(ctx context.Context, quoteID string) (*entities.GenerationRequest, error) {
	args := m.Called(ctx, quoteID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.GenerationRequest), args.Error(1)
}

func (m *MockGenerationRequestRepository) CompareAndTransition(ctx context.Context, quoteID string, from, to entities.GenerationStatus, fields entities.TransitionFields) error {
	args := m.Called(ctx, quoteID, from, to, fields)
	return args.Error(0)
}

func (m *MockGenerationRequestRepository) ListByOwner(ctx context.Context, ownerID string, statuses []entities.GenerationStatus, limit, offset int) ([]*entities.GenerationRequest, int, error) {
	args := m.Called(ctx, ownerID, statuses, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Int(1), args.Error(2)
	}
	return args.Get(0).([]*entities.GenerationRequest), args.Int(1), args.Error(2)
}

// Mock PaymentVerifier
type MockPaymentVerifier struct {
	mock.Mock
}

func (m *MockPaymentVerifier) VerifyPayment(ctx context.Context, txHash string, expected blockchain.ExpectedPayment) error {
	args := m.Called(ctx, txHash, expected)
	return args.Error(0)
}

// Mock JobQueue
type MockJobQueue struct {
	mock.Mock
}

func (m *MockJobQueue) Enqueue(ctx context.Context, name string, payload interface{}) (string, error) {
	args := m.Called(ctx, name, payload)
	return args.String(0), args.Error(1)
}

// Mock UserRepository
type MockUserRepository struct {
	mock.Mock
}

func (m *MockUserRepository) GetByOwnerID(ctx context.Context, ownerID string) (*entities.User, error) {
	args := m.Called(ctx, ownerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.User), args.Error(1)
}

func (m *MockUserRepository) Create(ctx context.Context, user *entities.User) error {
	args := m.Called(ctx, user)
	return args.Error(0)
}
