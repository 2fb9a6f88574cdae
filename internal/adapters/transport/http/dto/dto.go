package dto

// SendCodeDTO asks for a one-time code to be mailed to Email.
type SendCodeDTO struct {
	Email string `json:"email" validate:"required,email,max=129"`
}

// RegisterDTO creates an account after the mailed code is presented back.
type RegisterDTO struct {
	Email      string `json:"email" validate:"required,email,max=129"`
	VerifyCode string `json:"verify_code" validate:"required,len=6"`
}

// LoginDTO exchanges an email plus a fresh code for a token pair.
type LoginDTO struct {
	Email      string `json:"email" validate:"required,email,max=129"`
	VerifyCode string `json:"verify_code" validate:"required,len=6"`
}

// DomainRestrictionInfoDTO mirrors the server's email domain policy so
// clients can reject hopeless addresses before calling send-code.
type DomainRestrictionInfoDTO struct {
	RestrictEmailDomains   string   `json:"restrict_email_domains"`
	RestrictedEmailDomains []string `json:"restricted_email_domains"`
}

// TokenPairDTO is the login/refresh response body. The refresh token
// itself travels in a cookie, never in the body.
type TokenPairDTO struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int64  `json:"expires_in"`
}

// AccountInfoDTO describes the authenticated account.
type AccountInfoDTO struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

// CharacterDTO is one game character owned by an account.
type CharacterDTO struct {
	Name string `json:"name"`
}
