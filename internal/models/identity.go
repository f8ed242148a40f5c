package models

import "github.com/golang-jwt/jwt/v5"

// IdentityKind tells client and session tokens apart.
type IdentityKind string

const (
	IdentityClient  IdentityKind = "client"
	IdentitySession IdentityKind = "session"
)

// Identity names the browser and browsing session behind a request.
type Identity struct {
	ClientID  string
	SessionID string
}

// IdentityClaims are carried by the signed identity cookies. The id lives in
// the registered Subject claim.
type IdentityClaims struct {
	Kind IdentityKind `json:"kind"`
	jwt.RegisteredClaims
}
