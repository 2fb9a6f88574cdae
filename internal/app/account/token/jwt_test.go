package token

import (
	"testing"
	"time"

	"github.com/google/uuid"

	customErrors "github.com/tianwen-game/tw-account/internal/domain/account/errors"
	"github.com/tianwen-game/tw-account/internal/infra/config"
)

func testConfig() *config.Config {
	return &config.Config{
		JWTPrivateKeyPath: "testdata/priv.pem",
		JWTPublicKeyPath:  "testdata/pub.pem",
		AccessTokenTTL:    time.Minute,
		JWTIssuer:         "tw-account",
	}
}

func TestJWTUtil_GenerateValidate(t *testing.T) {
	util, err := NewJWTUtil(testConfig())
	if err != nil {
		t.Fatal(err)
	}

	uid := uuid.New()
	now := time.Now()
	raw, exp, err := util.GenerateAccessToken(uid, now)
	if err != nil || raw == "" {
		t.Fatalf("bad generate: %v", err)
	}
	if want := now.Add(time.Minute); exp.Sub(want) > time.Second || want.Sub(exp) > time.Second {
		t.Fatalf("expiry %v, want about %v", exp, want)
	}

	got, err := util.ValidateAccessToken(raw)
	if err != nil {
		t.Fatal(err)
	}
	if got != uid {
		t.Fatalf("subject %s, want %s", got, uid)
	}
}

func TestJWTUtil_ValidateErrors(t *testing.T) {
	util, _ := NewJWTUtil(testConfig())

	if _, err := util.ValidateAccessToken("bad"); !customErrors.IsInvalidToken(err) {
		t.Fatalf("expected invalid token, got %v", err)
	}

	// wrong issuer
	other, _ := NewJWTUtil(&config.Config{
		JWTPrivateKeyPath: "testdata/priv.pem",
		JWTPublicKeyPath:  "testdata/pub.pem",
		AccessTokenTTL:    time.Minute,
		JWTIssuer:         "someone-else",
	})
	raw, _, _ := other.GenerateAccessToken(uuid.New(), time.Now())
	if _, err := util.ValidateAccessToken(raw); !customErrors.IsInvalidToken(err) {
		t.Fatalf("expected issuer rejection, got %v", err)
	}
}

func TestJWTUtil_Expired(t *testing.T) {
	util, _ := NewJWTUtil(testConfig())

	// issued far enough in the past to be outside TTL plus leeway
	raw, _, err := util.GenerateAccessToken(uuid.New(), time.Now().Add(-time.Hour))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := util.ValidateAccessToken(raw); !customErrors.IsInvalidToken(err) {
		t.Fatalf("expected expiry rejection, got %v", err)
	}
}

func TestNewJWTUtil_BadKeyPath(t *testing.T) {
	_, err := NewJWTUtil(&config.Config{
		JWTPrivateKeyPath: "testdata/missing.pem",
		JWTPublicKeyPath:  "testdata/pub.pem",
	})
	if err == nil {
		t.Fatal("expected error for missing key file")
	}
}
