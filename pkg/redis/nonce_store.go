package redis

import (
	"context"
	"errors"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/google/uuid"
)

var ErrNonceUnknown = errors.New("nonce unknown or already used")

const noncePrefix = "auth:nonce:"

var (
	setNonceValue    = SetNX
	getDelNonceValue = GetDel
)

// NonceStore issues and consumes single-use sign-in challenges backed by Redis.
// A nonce is valid for one Consume call within its TTL.
type NonceStore struct {
	ttl time.Duration
}

// NewNonceStore creates a nonce store with the given challenge lifetime
func NewNonceStore(ttl time.Duration) *NonceStore {
	if ttl <= 0 {
		ttl = 60 * time.Second
	}
	return &NonceStore{ttl: ttl}
}

// Issue creates a fresh nonce and stores it with the configured TTL
func (s *NonceStore) Issue(ctx context.Context) (string, error) {
	nonce := uuid.New().String()
	ok, err := setNonceValue(ctx, noncePrefix+nonce, "1", s.ttl)
	if err != nil {
		return "", err
	}
	if !ok {
		// UUID collision is not a realistic path; treat as a storage fault.
		return "", errors.New("nonce already exists")
	}
	return nonce, nil
}

// Consume validates and burns a nonce. Unknown, expired, and replayed
// nonces are indistinguishable to the caller.
func (s *NonceStore) Consume(ctx context.Context, nonce string) error {
	if nonce == "" {
		return ErrNonceUnknown
	}
	_, err := getDelNonceValue(ctx, noncePrefix+nonce)
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return ErrNonceUnknown
		}
		return err
	}
	return nil
}
