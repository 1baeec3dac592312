package types

import (
	"errors"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	"github.com/labstack/echo/v4"
)

var errPasswordsDoNotMatch = errors.New("passwords do not match")

type RegisterRequest struct {
	Email     string `json:"email"`
	Username  string `json:"username"`
	Password  string `json:"password"`
	Password2 string `json:"password2"`
	Image     string `json:"image,omitempty"`
}

type VerifyEmailRequest struct {
	Email string `json:"email"`
	Code  string `json:"code"`
}

type ResendVerificationCodeRequest struct {
	Email string `json:"email"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type RefreshTokenRequest struct {
	Refresh string `json:"refresh"`
}

type LogoutRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type RequestPasswordResetRequest struct {
	Email string `json:"email"`
}

type CheckResetTokenRequest struct {
	UIDB64 string `json:"uidb64"`
	Token  string `json:"token"`
}

type SetNewPasswordRequest struct {
	Password  string `json:"password"`
	Password2 string `json:"password2"`
	Token     string `json:"token"`
	UIDB64    string `json:"uidb64"`
}

type FederatedLoginRequest struct {
	IDToken string `json:"idToken"`
}

type ValidateTokenRequest struct {
	Token string `json:"token"`
}

func NewRegisterRequestFromContext(ctx echo.Context) (*RegisterRequest, error) {
	var body RegisterRequest
	if err := ctx.Bind(&body); err != nil {
		return nil, err
	}

	return &body, nil
}

func (r *RegisterRequest) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.Email, validation.Required, validation.Length(3, 254), is.Email),
		validation.Field(&r.Username, validation.Required, validation.Length(1, 150)),
		validation.Field(&r.Password, validation.Required, validation.Length(1, 128)),
		validation.Field(&r.Password2, validation.Required, validation.By(equals(r.Password))),
		validation.Field(&r.Image, validation.Length(0, 512)),
	)
}

func NewVerifyEmailRequestFromContext(ctx echo.Context) (*VerifyEmailRequest, error) {
	var body VerifyEmailRequest
	if err := ctx.Bind(&body); err != nil {
		return nil, err
	}

	return &body, nil
}

func (r *VerifyEmailRequest) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.Email, validation.Required, is.Email),
		validation.Field(&r.Code, validation.Required, validation.Length(6, 6), is.Digit),
	)
}

func NewResendVerificationCodeRequestFromContext(ctx echo.Context) (*ResendVerificationCodeRequest, error) {
	var body ResendVerificationCodeRequest
	if err := ctx.Bind(&body); err != nil {
		return nil, err
	}

	return &body, nil
}

func (r *ResendVerificationCodeRequest) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.Email, validation.Required, is.Email),
	)
}

func NewLoginRequestFromContext(ctx echo.Context) (*LoginRequest, error) {
	var body LoginRequest
	if err := ctx.Bind(&body); err != nil {
		return nil, err
	}

	return &body, nil
}

func (r *LoginRequest) Validate() error {
	if strings.TrimSpace(r.Email) == "" || r.Password == "" {
		return errors.New("email and password are required")
	}

	return nil
}

func NewRefreshTokenRequestFromContext(ctx echo.Context) (*RefreshTokenRequest, error) {
	var body RefreshTokenRequest
	if err := ctx.Bind(&body); err != nil {
		return nil, err
	}

	return &body, nil
}

func (r *RefreshTokenRequest) Validate() error {
	if strings.TrimSpace(r.Refresh) == "" {
		return errors.New("refresh token is required")
	}

	return nil
}

// NewLogoutRequestFromContext tolerates an unparsable body: logout never fails.
func NewLogoutRequestFromContext(ctx echo.Context) *LogoutRequest {
	var body LogoutRequest
	_ = ctx.Bind(&body)

	return &body
}

func NewRequestPasswordResetRequestFromContext(ctx echo.Context) (*RequestPasswordResetRequest, error) {
	var body RequestPasswordResetRequest
	if err := ctx.Bind(&body); err != nil {
		return nil, err
	}

	return &body, nil
}

func (r *RequestPasswordResetRequest) Validate() error {
	if strings.TrimSpace(r.Email) == "" {
		return errors.New("email is required")
	}

	return nil
}

func NewCheckResetTokenRequestFromContext(ctx echo.Context) *CheckResetTokenRequest {
	return &CheckResetTokenRequest{
		UIDB64: ctx.Param("uidb64"),
		Token:  ctx.Param("token"),
	}
}

func (r *CheckResetTokenRequest) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.UIDB64, validation.Required),
		validation.Field(&r.Token, validation.Required),
	)
}

func NewSetNewPasswordRequestFromContext(ctx echo.Context) (*SetNewPasswordRequest, error) {
	var body SetNewPasswordRequest
	if err := ctx.Bind(&body); err != nil {
		return nil, err
	}

	return &body, nil
}

func (r *SetNewPasswordRequest) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.Password, validation.Required, validation.Length(1, 128)),
		validation.Field(&r.Password2, validation.Required, validation.By(equals(r.Password))),
		validation.Field(&r.Token, validation.Required),
		validation.Field(&r.UIDB64, validation.Required),
	)
}

func NewFederatedLoginRequestFromContext(ctx echo.Context) (*FederatedLoginRequest, error) {
	var body FederatedLoginRequest
	if err := ctx.Bind(&body); err != nil {
		return nil, err
	}

	return &body, nil
}

func (r *FederatedLoginRequest) Validate() error {
	if strings.TrimSpace(r.IDToken) == "" {
		return errors.New("firebase ID token is required")
	}

	return nil
}

func NewValidateTokenRequestFromContext(ctx echo.Context) (*ValidateTokenRequest, error) {
	var body ValidateTokenRequest
	if err := ctx.Bind(&body); err != nil {
		return nil, err
	}

	return &body, nil
}

func (r *ValidateTokenRequest) Validate() error {
	if strings.TrimSpace(r.Token) == "" {
		return errors.New("token is required")
	}

	return nil
}

func equals(expected string) validation.RuleFunc {
	return func(value interface{}) error {
		s, _ := value.(string)
		if s != expected {
			return errPasswordsDoNotMatch
		}
		return nil
	}
}
