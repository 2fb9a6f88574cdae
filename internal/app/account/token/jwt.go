package token

import (
	"crypto/ecdsa"
	"os"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	customErrors "github.com/tianwen-game/tw-account/internal/domain/account/errors"
	"github.com/tianwen-game/tw-account/internal/infra/config"
)

// JWTUtil signs and validates stateless access tokens. Signing is ES256 with
// an asymmetric pair, so replicas holding only the public key can validate
// without shared mutable state.
type JWTUtil struct {
	privateKey *ecdsa.PrivateKey
	publicKey  *ecdsa.PublicKey
	accessTTL  time.Duration
	issuer     string
}

func NewJWTUtil(cfg *config.Config) (*JWTUtil, error) {
	privPem, err := os.ReadFile(cfg.JWTPrivateKeyPath)
	if err != nil {
		return nil, customErrors.WrapInternal(err, "read private key")
	}
	privKey, err := jwt.ParseECPrivateKeyFromPEM(privPem)
	if err != nil {
		return nil, customErrors.WrapInternal(err, "parse private key")
	}

	pubPem, err := os.ReadFile(cfg.JWTPublicKeyPath)
	if err != nil {
		return nil, customErrors.WrapInternal(err, "read public key")
	}
	pubKey, err := jwt.ParseECPublicKeyFromPEM(pubPem)
	if err != nil {
		return nil, customErrors.WrapInternal(err, "parse public key")
	}

	return &JWTUtil{
		privateKey: privKey,
		publicKey:  pubKey,
		accessTTL:  cfg.AccessTokenTTL,
		issuer:     cfg.JWTIssuer,
	}, nil
}

func (j *JWTUtil) AccessTTL() time.Duration { return j.accessTTL }

func (j *JWTUtil) GenerateAccessToken(accountID uuid.UUID, now time.Time) (string, time.Time, error) {
	exp := now.Add(j.accessTTL)
	claims := jwt.RegisteredClaims{
		Subject:   accountID.String(),
		Issuer:    j.issuer,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(exp),
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodES256, claims).SignedString(j.privateKey)
	if err != nil {
		return "", time.Time{}, customErrors.WrapInternal(err, "sign access token")
	}

	return signed, exp, nil
}

// ValidateAccessToken checks signature and expiry and returns the subject
// account id. A valid token is necessary but not sufficient for access; the
// caller still has to check the account's status.
func (j *JWTUtil) ValidateAccessToken(raw string) (uuid.UUID, error) {
	token, err := jwt.ParseWithClaims(raw, &jwt.RegisteredClaims{}, func(t *jwt.Token) (interface{}, error) {
		if t.Method.Alg() != jwt.SigningMethodES256.Alg() {
			return nil, customErrors.ErrInvalidToken
		}
		return j.publicKey, nil
	}, jwt.WithIssuedAt(), jwt.WithLeeway(30*time.Second))

	if err != nil || !token.Valid {
		return uuid.Nil, customErrors.ErrInvalidToken
	}

	claims, ok := token.Claims.(*jwt.RegisteredClaims)
	if !ok {
		return uuid.Nil, customErrors.ErrInvalidToken
	}

	if j.issuer != "" && claims.Issuer != j.issuer {
		return uuid.Nil, customErrors.ErrInvalidToken
	}

	uid, err := uuid.Parse(claims.Subject)
	if err != nil {
		return uuid.Nil, customErrors.ErrInvalidToken
	}

	return uid, nil
}
