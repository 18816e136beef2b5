package entities

import (
	"time"

	"github.com/google/uuid"
	"github.com/volatiletech/null/v8"
)

// AuthMethod identifies which scheme authenticated a principal
type AuthMethod string

const (
	AuthMethodWallet    AuthMethod = "wallet"
	AuthMethodFarcaster AuthMethod = "farcaster"
)

// User is an authenticated principal. OwnerID is the stable identifier the
// rest of the system keys on: a lowercased wallet address for wallet
// sign-ins, "fid:<n>" for Farcaster sign-ins. The admission pipeline never
// needs to know which scheme produced it.
type User struct {
	ID            uuid.UUID   `json:"id"`
	OwnerID       string      `json:"ownerId"`
	WalletAddress null.String `json:"walletAddress,omitempty"`
	Fid           null.Int64  `json:"fid,omitempty"`
	Role          string      `json:"role"`
	CreatedAt     time.Time   `json:"createdAt"`
	UpdatedAt     time.Time   `json:"updatedAt"`
}

const (
	UserRoleUser  = "user"
	UserRoleAdmin = "admin"
)
