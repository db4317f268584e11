package models

import (
	"time"
)

type ClaimRecord struct {
	Code      string     `json:"code" bson:"_id"`
	Address   string     `json:"address" bson:"address"`
	ExpiresAt time.Time  `json:"expires_at" bson:"expires_at"`
	Used      bool       `json:"used" bson:"used"`
	UsedAt    *time.Time `json:"used_at,omitempty" bson:"used_at,omitempty"`
	CreatedAt time.Time  `json:"created_at" bson:"created_at"`
}

type IssuedClaim struct {
	Code      string
	ExpiresAt time.Time
}

// Request bodies carry no binding tags: missing fields are reported by the
// claim service with their own error codes.
type ClaimRequest struct {
	Address string `json:"address"`
}

type RedeemRequest struct {
	Code string `json:"code"`
}

type ClaimResponse struct {
	ClaimCode string `json:"claimCode"`
	Expires   int64  `json:"expires"`
}

type RedeemResponse struct {
	OK      bool   `json:"ok"`
	Address string `json:"address"`
}

type ClaimDetailsResponse struct {
	ClaimCode string `json:"claimCode"`
	Address   string `json:"address"`
	Expires   int64  `json:"expires"`
	Used      bool   `json:"used"`
	UsedAt    *int64 `json:"usedAt,omitempty"`
}

type ErrorResponse struct {
	Error   string   `json:"error"`
	Balance *float64 `json:"balance,omitempty"`
}
