package service

import (
	"context"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/pquerna/otp/totp"

	"github.com/tianwen-game/tw-account/internal/adapters/transport/http/dto"
	"github.com/tianwen-game/tw-account/internal/app/account/code"
	"github.com/tianwen-game/tw-account/internal/app/account/refresh"
	"github.com/tianwen-game/tw-account/internal/app/account/token"
	customErrors "github.com/tianwen-game/tw-account/internal/domain/account/errors"
	"github.com/tianwen-game/tw-account/internal/domain/account/model"
	"github.com/tianwen-game/tw-account/internal/domain/account/repo"
	"github.com/tianwen-game/tw-account/internal/infra/config"
)

const totpIssuer = "tw-account"

// CodeSender delivers a freshly issued verification code to the address.
// Delivery is fire-and-forget: the request that triggered it has already
// been answered.
type CodeSender interface {
	SendVerificationCode(email, code string)
}

type Service interface {
	DomainRestrictionInfo() dto.DomainRestrictionInfoDTO
	SendVerificationCode(ctx context.Context, in dto.SendCodeDTO) error
	Register(ctx context.Context, in dto.RegisterDTO) error
	Login(ctx context.Context, in dto.LoginDTO) (model.TokenPair, error)
	Refresh(ctx context.Context, rawRefreshToken string) (model.TokenPair, error)
	Authenticate(ctx context.Context, rawAccessToken string) (model.Account, error)
	ListCharacters(ctx context.Context, accountID uuid.UUID) ([]model.Character, error)
}

type accountService struct {
	accounts repo.AccountRepo
	codes    *code.Store
	refresh  *refresh.Manager
	jwtUtil  *token.JWTUtil
	sender   CodeSender
	validate *validator.Validate

	restrictMode string
	domains      map[string]struct{}
	domainList   []string
}

func New(
	accounts repo.AccountRepo,
	codes *code.Store,
	refreshMgr *refresh.Manager,
	jwtUtil *token.JWTUtil,
	sender CodeSender,
	cfg *config.Config,
) Service {
	domains := make(map[string]struct{}, len(cfg.RestrictedEmailDomains))
	list := make([]string, 0, len(cfg.RestrictedEmailDomains))
	for _, d := range cfg.RestrictedEmailDomains {
		d = strings.ToLower(strings.TrimSpace(d))
		if d == "" {
			continue
		}
		if _, ok := domains[d]; ok {
			continue
		}
		domains[d] = struct{}{}
		list = append(list, d)
	}

	return &accountService{
		accounts:     accounts,
		codes:        codes,
		refresh:      refreshMgr,
		jwtUtil:      jwtUtil,
		sender:       sender,
		validate:     validator.New(),
		restrictMode: cfg.RestrictEmailDomains,
		domains:      domains,
		domainList:   list,
	}
}

func (s *accountService) DomainRestrictionInfo() dto.DomainRestrictionInfoDTO {
	return dto.DomainRestrictionInfoDTO{
		RestrictEmailDomains:   s.restrictMode,
		RestrictedEmailDomains: s.domainList,
	}
}

func (s *accountService) SendVerificationCode(ctx context.Context, in dto.SendCodeDTO) error {
	if err := s.validate.Struct(in); err != nil {
		return customErrors.NewInvalidArgument("invalid email")
	}
	if err := s.checkDomain(in.Email); err != nil {
		return err
	}

	issued, err := s.codes.Issue(ctx, in.Email)
	if err != nil {
		return customErrors.WrapInternal(err, "issue verification code")
	}
	s.sender.SendVerificationCode(in.Email, issued)
	return nil
}

func (s *accountService) Register(ctx context.Context, in dto.RegisterDTO) error {
	if err := s.validate.Struct(in); err != nil {
		return customErrors.NewInvalidArgument("invalid email or code")
	}
	if err := s.checkDomain(in.Email); err != nil {
		return err
	}

	if _, err := s.accounts.GetByEmail(ctx, in.Email); err == nil {
		return customErrors.ErrAlreadyExists
	} else if !customErrors.IsNotFound(err) {
		return customErrors.WrapInternal(err, "lookup account")
	}

	ok, err := s.codes.VerifyAndConsume(ctx, in.Email, in.VerifyCode)
	if err != nil {
		return customErrors.WrapInternal(err, "consume verification code")
	}
	if !ok {
		return customErrors.ErrInvalidCode
	}

	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      totpIssuer,
		AccountName: in.Email,
	})
	if err != nil {
		return customErrors.WrapInternal(err, "generate totp secret")
	}

	acc := model.Account{
		ID:         uuid.New(),
		Email:      in.Email,
		TOTPSecret: key.Secret(),
		Status:     model.StatusNormal,
	}
	if err := s.accounts.Create(ctx, acc); err != nil {
		if customErrors.IsAlreadyExists(err) {
			return customErrors.ErrAlreadyExists
		}
		return customErrors.WrapInternal(err, "create account")
	}
	return nil
}

func (s *accountService) Login(ctx context.Context, in dto.LoginDTO) (model.TokenPair, error) {
	if err := s.validate.Struct(in); err != nil {
		return model.TokenPair{}, customErrors.NewInvalidArgument("invalid email or code")
	}

	acc, accErr := s.accounts.GetByEmail(ctx, in.Email)
	if accErr != nil && !customErrors.IsNotFound(accErr) {
		return model.TokenPair{}, customErrors.WrapInternal(accErr, "lookup account")
	}

	// the code is always checked, even for unknown emails, so the two
	// failure modes are indistinguishable from outside
	ok, err := s.codes.VerifyAndConsume(ctx, in.Email, in.VerifyCode)
	if err != nil {
		return model.TokenPair{}, customErrors.WrapInternal(err, "consume verification code")
	}
	if accErr != nil || !ok {
		return model.TokenPair{}, customErrors.ErrInvalidCredentials
	}

	return s.issuePair(ctx, acc.ID)
}

func (s *accountService) Refresh(ctx context.Context, rawRefreshToken string) (model.TokenPair, error) {
	next, rec, err := s.refresh.ValidateAndRotate(ctx, rawRefreshToken, time.Now())
	if err != nil {
		return model.TokenPair{}, err
	}

	access, _, err := s.jwtUtil.GenerateAccessToken(rec.OwnerID, time.Now())
	if err != nil {
		return model.TokenPair{}, customErrors.WrapInternal(err, "sign access token")
	}

	return model.TokenPair{
		AccessToken:  access,
		RefreshToken: next,
		AccessTTL:    s.jwtUtil.AccessTTL(),
		RefreshTTL:   time.Until(rec.ExpiresAt),
		AccountID:    rec.OwnerID,
	}, nil
}

func (s *accountService) Authenticate(ctx context.Context, rawAccessToken string) (model.Account, error) {
	accountID, err := s.jwtUtil.ValidateAccessToken(rawAccessToken)
	if err != nil {
		return model.Account{}, err
	}

	acc, err := s.accounts.GetByID(ctx, accountID)
	if err != nil {
		if customErrors.IsNotFound(err) {
			return model.Account{}, customErrors.ErrInvalidToken
		}
		return model.Account{}, customErrors.WrapInternal(err, "lookup account")
	}
	if acc.Status != model.StatusNormal {
		return model.Account{}, customErrors.ErrInvalidToken
	}
	return acc, nil
}

func (s *accountService) ListCharacters(ctx context.Context, accountID uuid.UUID) ([]model.Character, error) {
	chars, err := s.accounts.ListCharactersByOwner(ctx, accountID)
	if err != nil {
		return nil, customErrors.WrapInternal(err, "list characters")
	}
	return chars, nil
}

func (s *accountService) issuePair(ctx context.Context, accountID uuid.UUID) (model.TokenPair, error) {
	now := time.Now()

	access, _, err := s.jwtUtil.GenerateAccessToken(accountID, now)
	if err != nil {
		return model.TokenPair{}, customErrors.WrapInternal(err, "sign access token")
	}
	raw, rec, err := s.refresh.Issue(ctx, accountID, now)
	if err != nil {
		return model.TokenPair{}, customErrors.WrapInternal(err, "issue refresh token")
	}

	return model.TokenPair{
		AccessToken:  access,
		RefreshToken: raw,
		AccessTTL:    s.jwtUtil.AccessTTL(),
		RefreshTTL:   rec.ExpiresAt.Sub(now),
		AccountID:    accountID,
	}, nil
}

func (s *accountService) checkDomain(email string) error {
	at := strings.LastIndexByte(email, '@')
	if at < 0 {
		return customErrors.NewInvalidArgument("invalid email")
	}
	domain := strings.ToLower(email[at+1:])

	switch s.restrictMode {
	case config.RestrictBlacklist:
		if _, listed := s.domains[domain]; listed {
			return customErrors.NewInvalidArgument("邮箱域名处于黑名单中")
		}
	case config.RestrictWhitelist:
		if _, listed := s.domains[domain]; !listed {
			return customErrors.NewInvalidArgument("邮箱域名不处于白名单中")
		}
	}
	return nil
}
