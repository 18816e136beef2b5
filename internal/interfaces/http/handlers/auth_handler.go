package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"stylize.backend/internal/domain/entities"
	domainerrors "stylize.backend/internal/domain/errors"
	"stylize.backend/internal/interfaces/http/middleware"
	"stylize.backend/internal/interfaces/http/response"
	"stylize.backend/internal/usecases"
)

type AuthService interface {
	IssueNonce(ctx context.Context) (string, error)
	SignIn(ctx context.Context, auth usecases.Authenticator, creds usecases.Credentials) (*usecases.SignInOutput, error)
	GetUser(ctx context.Context, ownerID string) (*entities.User, error)
}

// AuthHandler handles sign-in endpoints
type AuthHandler struct {
	authUsecase AuthService
	wallet      usecases.Authenticator
	farcaster   usecases.Authenticator
}

// NewAuthHandler creates a new auth handler
func NewAuthHandler(authUsecase AuthService) *AuthHandler {
	return &AuthHandler{
		authUsecase: authUsecase,
		wallet:      usecases.WalletAuthenticator{},
		farcaster:   usecases.FarcasterAuthenticator{},
	}
}

// Nonce issues a single-use sign-in challenge
// POST /api/v1/auth/nonce
func (h *AuthHandler) Nonce(c *gin.Context) {
	nonce, err := h.authUsecase.IssueNonce(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"nonce": nonce})
}

type signInRequest struct {
	Address   string `json:"address" binding:"required"`
	Message   string `json:"message" binding:"required"`
	Signature string `json:"signature" binding:"required"`
	Nonce     string `json:"nonce" binding:"required"`
}

// SignIn authenticates a wallet signature over the challenge
// POST /api/v1/auth/signin
func (h *AuthHandler) SignIn(c *gin.Context) {
	var req signInRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, domainerrors.BadRequest(err.Error()))
		return
	}

	out, err := h.authUsecase.SignIn(c.Request.Context(), h.wallet, usecases.Credentials{
		Address:   req.Address,
		Message:   req.Message,
		Signature: req.Signature,
		Nonce:     req.Nonce,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, out)
}

type farcasterSignInRequest struct {
	Fid       int64  `json:"fid" binding:"required"`
	Custody   string `json:"custody" binding:"required"`
	Message   string `json:"message" binding:"required"`
	Signature string `json:"signature" binding:"required"`
	Nonce     string `json:"nonce" binding:"required"`
}

// FarcasterSignIn authenticates a Farcaster custody signature
// POST /api/v1/auth/farcaster/signin
func (h *AuthHandler) FarcasterSignIn(c *gin.Context) {
	var req farcasterSignInRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, domainerrors.BadRequest(err.Error()))
		return
	}

	out, err := h.authUsecase.SignIn(c.Request.Context(), h.farcaster, usecases.Credentials{
		Address:   req.Custody,
		Fid:       req.Fid,
		Message:   req.Message,
		Signature: req.Signature,
		Nonce:     req.Nonce,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, out)
}

// Me returns the authenticated principal
// GET /api/v1/auth/me
func (h *AuthHandler) Me(c *gin.Context) {
	ownerID, ok := middleware.GetOwnerID(c)
	if !ok {
		response.Error(c, domainerrors.Unauthorized("not authenticated"))
		return
	}

	user, err := h.authUsecase.GetUser(c.Request.Context(), ownerID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"user": user})
}
