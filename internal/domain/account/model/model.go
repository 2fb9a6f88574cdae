package model

import (
	"time"

	"github.com/google/uuid"
)

type AccountStatus string

const (
	StatusNormal   AccountStatus = "NORMAL"
	StatusDeleted  AccountStatus = "DELETED"
	StatusDisabled AccountStatus = "DISABLED"
)

type Account struct {
	ID         uuid.UUID     `gorm:"type:uuid;primaryKey"`
	Email      string        `gorm:"size:129;uniqueIndex;not null"`
	TOTPSecret string        `gorm:"size:32;not null"`
	Status     AccountStatus `gorm:"size:16;not null"`
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

func (Account) TableName() string { return "account" }

// Character references its owner through OwnerID only; lookups by owner go
// through the index, there is no back-pointer on Account.
type Character struct {
	Name    string    `gorm:"size:15;primaryKey"`
	OwnerID uuid.UUID `gorm:"type:uuid;index;not null"`
}

func (Character) TableName() string { return "character" }

// VerificationCode is the single live code for an email address. ExpiresAt is
// a POSIX timestamp in milliseconds so the conditional delete in the repo
// compares the same way on every SQL backend.
type VerificationCode struct {
	Email     string `gorm:"size:129;primaryKey"`
	Code      string `gorm:"size:6;not null"`
	ExpiresAt int64  `gorm:"not null"`
}

func (VerificationCode) TableName() string { return "email_verification_code" }

func (c VerificationCode) Expired(now time.Time) bool {
	return c.ExpiresAt < now.UnixMilli()
}

// RefreshToken splits the credential into a non-secret indexable LookupID and
// a Secret that is only ever compared after retrieval.
type RefreshToken struct {
	LookupID  uuid.UUID
	Secret    string
	OwnerID   uuid.UUID
	ExpiresAt time.Time
}

type TokenPair struct {
	AccessToken  string
	RefreshToken string
	AccessTTL    time.Duration
	RefreshTTL   time.Duration
	AccountID    uuid.UUID
}
