package usecases

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/volatiletech/null/v8"
	"go.uber.org/zap"

	"stylize.backend/internal/domain/entities"
	domainerrors "stylize.backend/internal/domain/errors"
	domainRepos "stylize.backend/internal/domain/repositories"
	"stylize.backend/pkg/jwt"
	"stylize.backend/pkg/logger"
	"stylize.backend/pkg/redis"
	"stylize.backend/pkg/utils"
)

// Credentials is a signed sign-in challenge. Wallet sign-ins leave Fid
// zero; Farcaster sign-ins set Fid and sign with the custody address.
type Credentials struct {
	Address   string
	Fid       int64
	Message   string
	Signature string
	Nonce     string
}

// Authenticator reduces a signed challenge to a stable owner id. The rest
// of the system only ever sees the owner id, never the scheme.
type Authenticator interface {
	Method() entities.AuthMethod
	Authenticate(ctx context.Context, creds Credentials) (ownerID string, err error)
}

// AuthUsecase handles challenge issuance, signature sign-in and token minting
type AuthUsecase struct {
	userRepo   domainRepos.UserRepository
	nonceStore *redis.NonceStore
	jwtService *jwt.JWTService
	adminAddrs map[string]bool
}

// NewAuthUsecase creates a new auth usecase. adminAddresses are lowercased
// wallet addresses granted the admin role on sign-in.
func NewAuthUsecase(
	userRepo domainRepos.UserRepository,
	nonceStore *redis.NonceStore,
	jwtService *jwt.JWTService,
	adminAddresses []string,
) *AuthUsecase {
	admins := make(map[string]bool, len(adminAddresses))
	for _, addr := range adminAddresses {
		admins[strings.ToLower(addr)] = true
	}
	return &AuthUsecase{
		userRepo:   userRepo,
		nonceStore: nonceStore,
		jwtService: jwtService,
		adminAddrs: admins,
	}
}

// IssueNonce creates a single-use sign-in challenge
func (u *AuthUsecase) IssueNonce(ctx context.Context) (string, error) {
	nonce, err := u.nonceStore.Issue(ctx)
	if err != nil {
		return "", domainerrors.InternalError(err)
	}
	return nonce, nil
}

type SignInOutput struct {
	User   *entities.User `json:"user"`
	Tokens jwt.TokenPair  `json:"tokens"`
}

// SignIn burns the challenge nonce, runs the authenticator and returns a
// token pair for the recovered owner. The nonce is consumed before the
// signature check so a failed attempt still invalidates it.
func (u *AuthUsecase) SignIn(ctx context.Context, auth Authenticator, creds Credentials) (*SignInOutput, error) {
	if creds.Message == "" || creds.Signature == "" {
		return nil, domainerrors.BadRequest("message and signature are required")
	}
	if err := u.nonceStore.Consume(ctx, creds.Nonce); err != nil {
		if errors.Is(err, redis.ErrNonceUnknown) {
			return nil, domainerrors.Unauthorized("unknown or expired nonce")
		}
		return nil, domainerrors.InternalError(err)
	}
	if !strings.Contains(creds.Message, creds.Nonce) {
		return nil, domainerrors.Unauthorized("signed message does not contain the challenge nonce")
	}

	ownerID, err := auth.Authenticate(ctx, creds)
	if err != nil {
		logger.Warn(ctx, "sign-in rejected",
			zap.String("method", string(auth.Method())),
			zap.Error(err),
		)
		return nil, domainerrors.Unauthorized("signature verification failed")
	}

	user, err := u.getOrCreateUser(ctx, auth.Method(), ownerID, creds)
	if err != nil {
		return nil, domainerrors.InternalError(err)
	}

	tokens, err := u.jwtService.GenerateTokenPair(user.OwnerID, string(auth.Method()), user.Role)
	if err != nil {
		return nil, domainerrors.InternalError(err)
	}

	logger.Info(ctx, "sign-in succeeded",
		zap.String("owner_id", user.OwnerID),
		zap.String("method", string(auth.Method())),
	)
	return &SignInOutput{User: user, Tokens: *tokens}, nil
}

// GetUser returns the stored principal for an owner id
func (u *AuthUsecase) GetUser(ctx context.Context, ownerID string) (*entities.User, error) {
	user, err := u.userRepo.GetByOwnerID(ctx, ownerID)
	if err != nil {
		if errors.Is(err, domainerrors.ErrNotFound) {
			return nil, domainerrors.NotFound("user not found")
		}
		return nil, domainerrors.InternalError(err)
	}
	return user, nil
}

func (u *AuthUsecase) getOrCreateUser(ctx context.Context, method entities.AuthMethod, ownerID string, creds Credentials) (*entities.User, error) {
	user, err := u.userRepo.GetByOwnerID(ctx, ownerID)
	if err == nil {
		return user, nil
	}
	if !errors.Is(err, domainerrors.ErrNotFound) {
		return nil, err
	}

	user = &entities.User{
		ID:      utils.GenerateUUIDv7(),
		OwnerID: ownerID,
		Role:    entities.UserRoleUser,
	}
	switch method {
	case entities.AuthMethodWallet:
		user.WalletAddress = null.StringFrom(ownerID)
		if u.adminAddrs[ownerID] {
			user.Role = entities.UserRoleAdmin
		}
	case entities.AuthMethodFarcaster:
		user.Fid = null.Int64From(creds.Fid)
		user.WalletAddress = null.StringFrom(strings.ToLower(creds.Address))
	}

	if err := u.userRepo.Create(ctx, user); err != nil {
		// A concurrent sign-in may have created the row first.
		if existing, getErr := u.userRepo.GetByOwnerID(ctx, ownerID); getErr == nil {
			return existing, nil
		}
		return nil, err
	}
	return user, nil
}

// recoverSigner recovers the address that produced a personal_sign
// signature over message.
func recoverSigner(message, signature string) (common.Address, error) {
	sig, err := hexutil.Decode(signature)
	if err != nil {
		return common.Address{}, fmt.Errorf("malformed signature: %w", err)
	}
	if len(sig) != 65 {
		return common.Address{}, fmt.Errorf("signature must be 65 bytes, got %d", len(sig))
	}
	// Wallets emit V as 27/28; crypto wants 0/1.
	if sig[64] >= 27 {
		sig = append([]byte(nil), sig...)
		sig[64] -= 27
	}
	pub, err := ethcrypto.SigToPub(accounts.TextHash([]byte(message)), sig)
	if err != nil {
		return common.Address{}, fmt.Errorf("signature recovery failed: %w", err)
	}
	return ethcrypto.PubkeyToAddress(*pub), nil
}

// WalletAuthenticator verifies an EIP-191 personal_sign challenge and
// yields the lowercased signer address as the owner id.
type WalletAuthenticator struct{}

func (WalletAuthenticator) Method() entities.AuthMethod { return entities.AuthMethodWallet }

func (WalletAuthenticator) Authenticate(_ context.Context, creds Credentials) (string, error) {
	if creds.Address == "" {
		return "", errors.New("address is required")
	}
	if !common.IsHexAddress(creds.Address) {
		return "", fmt.Errorf("invalid address %q", creds.Address)
	}
	signer, err := recoverSigner(creds.Message, creds.Signature)
	if err != nil {
		return "", err
	}
	if signer != common.HexToAddress(creds.Address) {
		return "", fmt.Errorf("signer %s does not match claimed address", signer.Hex())
	}
	return strings.ToLower(signer.Hex()), nil
}

// FarcasterAuthenticator verifies a challenge signed by a Farcaster
// custody address and yields "fid:<n>" as the owner id. Custody ownership
// of the fid is attested by the signing client.
type FarcasterAuthenticator struct{}

func (FarcasterAuthenticator) Method() entities.AuthMethod { return entities.AuthMethodFarcaster }

func (FarcasterAuthenticator) Authenticate(_ context.Context, creds Credentials) (string, error) {
	if creds.Fid <= 0 {
		return "", errors.New("a positive fid is required")
	}
	if creds.Address == "" {
		return "", errors.New("custody address is required")
	}
	if !common.IsHexAddress(creds.Address) {
		return "", fmt.Errorf("invalid custody address %q", creds.Address)
	}
	signer, err := recoverSigner(creds.Message, creds.Signature)
	if err != nil {
		return "", err
	}
	if signer != common.HexToAddress(creds.Address) {
		return "", fmt.Errorf("signer %s does not match custody address", signer.Hex())
	}
	return fmt.Sprintf("fid:%d", creds.Fid), nil
}
