package service

import (
	"context"
	"crypto/subtle"
	"database/sql"
	"encoding/base64"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/vibast-solutions/ms-go-accounts/app/entity"
	"github.com/vibast-solutions/ms-go-accounts/app/firebase"
	"github.com/vibast-solutions/ms-go-accounts/app/mailer"
	"github.com/vibast-solutions/ms-go-accounts/app/repository"
	"github.com/vibast-solutions/ms-go-accounts/app/types"
	"github.com/vibast-solutions/ms-go-accounts/config"

	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"
)

type verificationCodeRepository interface {
	Create(ctx context.Context, code *entity.VerificationCode) error
	FindByUserID(ctx context.Context, userID uint64) (*entity.VerificationCode, error)
	DeleteByUserID(ctx context.Context, userID uint64) (int64, error)
}

type identityVerifier interface {
	Verify(ctx context.Context, rawToken string) (*entity.IdentityClaim, error)
}

type mailSender interface {
	Send(ctx context.Context, msg mailer.Message) error
}

type emailTemplates interface {
	VerificationEmail(to, username, code string, expiryMinutes int) (mailer.Message, error)
	PasswordResetEmail(to, username, resetURL string, expiryMinutes int) (mailer.Message, error)
}

type AccountService interface {
	Register(ctx context.Context, req *types.RegisterRequest) (*types.RegisterResponse, error)
	VerifyEmail(ctx context.Context, req *types.VerifyEmailRequest) (*types.VerifyEmailResponse, error)
	ResendVerificationCode(ctx context.Context, req *types.ResendVerificationCodeRequest) (*types.MessageResponse, error)
	Login(ctx context.Context, req *types.LoginRequest) (*types.SessionResponse, error)
	RefreshToken(ctx context.Context, req *types.RefreshTokenRequest) (*types.SessionResponse, error)
	Logout(ctx context.Context, req *types.LogoutRequest) *types.MessageResponse
	RequestPasswordReset(ctx context.Context, req *types.RequestPasswordResetRequest) (*types.RequestPasswordResetResponse, error)
	CheckResetToken(ctx context.Context, req *types.CheckResetTokenRequest) (*types.CheckResetTokenResponse, error)
	SetNewPassword(ctx context.Context, req *types.SetNewPasswordRequest) (*types.SetNewPasswordResponse, error)
	FederatedLogin(ctx context.Context, req *types.FederatedLoginRequest) (*types.SessionResponse, error)
	ValidateToken(ctx context.Context, req *types.ValidateTokenRequest) (*types.ValidateTokenResponse, error)
	ValidateAccessToken(token string) (*Claims, error)
	Me(ctx context.Context, userID uint64) (*types.UserResponse, error)
}

type AccountServiceOption func(*accountService)

type accountService struct {
	db        *sql.DB
	users     userRepository
	codes     verificationCodeRepository
	blacklist blacklistedTokenRepository
	identity  identityVerifier
	mail      mailSender
	templates emailTemplates
	cfg       *config.Config

	now        func() time.Time
	bcryptCost int

	generator *CodeGenerator
	resets    *ResetTokenCodec
	sessions  *SessionIssuer
	bridge    *IdentityBridge
}

func NewAccountService(
	db *sql.DB,
	users userRepository,
	codes verificationCodeRepository,
	blacklist blacklistedTokenRepository,
	identity identityVerifier,
	mail mailSender,
	templates emailTemplates,
	cfg *config.Config,
	opts ...AccountServiceOption,
) AccountService {
	svc := &accountService{
		db:         db,
		users:      users,
		codes:      codes,
		blacklist:  blacklist,
		identity:   identity,
		mail:       mail,
		templates:  templates,
		cfg:        cfg,
		now:        time.Now,
		bcryptCost: bcrypt.DefaultCost,
	}
	for _, opt := range opts {
		opt(svc)
	}

	svc.generator = NewCodeGenerator(svc.now)
	svc.resets = NewResetTokenCodec(cfg.Tokens.ResetSecret, svc.now)
	svc.sessions = NewSessionIssuer(cfg.JWT, blacklist, svc.now)
	svc.bridge = NewIdentityBridge(users, svc.bcryptCost, svc.now)
	return svc
}

func WithClock(now func() time.Time) AccountServiceOption {
	return func(s *accountService) {
		if now != nil {
			s.now = now
		}
	}
}

func WithBcryptCost(cost int) AccountServiceOption {
	return func(s *accountService) {
		if cost >= bcrypt.MinCost && cost <= bcrypt.MaxCost {
			s.bcryptCost = cost
		}
	}
}

func (s *accountService) Register(ctx context.Context, req *types.RegisterRequest) (*types.RegisterResponse, error) {
	email := NormalizeEmail(req.Email)
	username := strings.TrimSpace(req.Username)
	if email == "" || username == "" {
		return nil, fmt.Errorf("%w: email and username are required", ErrValidation)
	}
	if req.Password != req.Password2 {
		return nil, ErrPasswordMismatch
	}
	if err := s.cfg.Password.Policy.Validate(req.Password); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrWeakPassword, err.Error())
	}

	existing, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, ErrUserExists
	}
	taken, err := s.users.ExistsByUsername(ctx, username)
	if err != nil {
		return nil, err
	}
	if taken {
		return nil, ErrUsernameTaken
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), s.bcryptCost)
	if err != nil {
		return nil, err
	}

	now := s.now()
	user := &entity.User{
		Email:        email,
		Username:     username,
		PasswordHash: string(hash),
		IsVerified:   false,
		IsActive:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if image := strings.TrimSpace(req.Image); image != "" {
		user.Image = sql.NullString{String: image, Valid: true}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	if err = repository.NewUserRepository(tx).Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, ErrDuplicateAccount
		}
		return nil, err
	}

	code, err := s.generator.Generate(ctx, repository.NewVerificationCodeRepository(tx), user.ID)
	if err != nil {
		return nil, err
	}

	if err = tx.Commit(); err != nil {
		return nil, err
	}

	if err = s.sendVerificationEmail(ctx, user, code); err != nil {
		return nil, err
	}

	return &types.RegisterResponse{
		Email:   user.Email,
		Message: "Verification code sent to your email",
	}, nil
}

func (s *accountService) VerifyEmail(ctx context.Context, req *types.VerifyEmailRequest) (*types.VerifyEmailResponse, error) {
	user, err := s.users.FindByEmail(ctx, NormalizeEmail(req.Email))
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrUserNotFound
	}

	code, err := s.codes.FindByUserID(ctx, user.ID)
	if err != nil {
		return nil, err
	}
	if code == nil || subtle.ConstantTimeCompare([]byte(code.Code), []byte(strings.TrimSpace(req.Code))) != 1 {
		return nil, ErrInvalidCode
	}
	if !code.IsValid(s.now()) {
		return nil, ErrCodeExpired
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	user.IsVerified = true
	if err = repository.NewUserRepository(tx).Update(ctx, user); err != nil {
		return nil, err
	}
	if _, err = repository.NewVerificationCodeRepository(tx).DeleteByUserID(ctx, user.ID); err != nil {
		return nil, err
	}

	if err = tx.Commit(); err != nil {
		return nil, err
	}

	pair, err := s.sessions.IssuePair(user)
	if err != nil {
		return nil, err
	}

	return &types.VerifyEmailResponse{
		Message: "Email successfully verified",
		Access:  pair.Access,
		Refresh: pair.Refresh,
		User:    userResponse(user),
	}, nil
}

func (s *accountService) ResendVerificationCode(ctx context.Context, req *types.ResendVerificationCodeRequest) (*types.MessageResponse, error) {
	user, err := s.users.FindByEmail(ctx, NormalizeEmail(req.Email))
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrUserNotFound
	}
	if user.IsVerified {
		return &types.MessageResponse{Message: "Email is already verified"}, nil
	}

	if err = s.issueVerificationCode(ctx, user); err != nil {
		return nil, err
	}

	return &types.MessageResponse{Message: "Verification code resent to your email"}, nil
}

// Login refuses unverified users before looking at the password: they get a
// fresh code mailed and ErrEmailNotVerified so the client can prompt for it.
func (s *accountService) Login(ctx context.Context, req *types.LoginRequest) (*types.SessionResponse, error) {
	user, err := s.users.FindByEmail(ctx, NormalizeEmail(req.Email))
	if err != nil {
		return nil, err
	}
	if user == nil || !user.IsActive {
		return nil, ErrInvalidCredentials
	}

	if !user.IsVerified {
		if err = s.issueVerificationCode(ctx, user); err != nil {
			return nil, err
		}
		return nil, ErrEmailNotVerified
	}

	if err = bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		return nil, ErrInvalidCredentials
	}

	return s.openSession(user)
}

func (s *accountService) RefreshToken(ctx context.Context, req *types.RefreshTokenRequest) (*types.SessionResponse, error) {
	claims, err := s.sessions.Redeem(ctx, req.Refresh)
	if err != nil {
		return nil, err
	}

	user, err := s.users.FindByID(ctx, claims.UserID)
	if err != nil {
		return nil, err
	}
	if user == nil || !user.IsActive {
		return nil, ErrInvalidToken
	}

	return s.openSession(user)
}

func (s *accountService) Logout(ctx context.Context, req *types.LogoutRequest) *types.MessageResponse {
	if err := s.sessions.Blacklist(ctx, req.RefreshToken); err != nil {
		logrus.WithError(err).Error("Failed to blacklist refresh token on logout")
	}

	return &types.MessageResponse{Message: "Successfully logged out"}
}

func (s *accountService) RequestPasswordReset(ctx context.Context, req *types.RequestPasswordResetRequest) (*types.RequestPasswordResetResponse, error) {
	user, err := s.users.FindByEmail(ctx, NormalizeEmail(req.Email))
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrUserNotFound
	}

	token, err := s.resets.Issue(user)
	if err != nil {
		return nil, err
	}

	resetURL := s.cfg.App.FrontendURL + "/reset-password/" + EncodeUID(user.ID) + "/" + token
	msg, err := s.templates.PasswordResetEmail(user.Email, user.Username, resetURL, int(ResetTokenTimeout/time.Minute))
	if err != nil {
		return nil, err
	}
	if err = s.mail.Send(ctx, msg); err != nil {
		return nil, fmt.Errorf("%w: send password reset email: %w", ErrUpstream, err)
	}

	return &types.RequestPasswordResetResponse{Success: "Password reset link sent to your email"}, nil
}

func (s *accountService) CheckResetToken(ctx context.Context, req *types.CheckResetTokenRequest) (*types.CheckResetTokenResponse, error) {
	user, err := s.resetTarget(ctx, req.UIDB64)
	if err != nil {
		return nil, err
	}

	if err = s.resets.Verify(user, req.Token).Err(); err != nil {
		return nil, err
	}

	return &types.CheckResetTokenResponse{
		Success: true,
		Message: "Credentials Valid",
		UIDB64:  req.UIDB64,
		Token:   req.Token,
		Email:   user.Email,
	}, nil
}

// SetNewPassword stores the new hash, which voids every outstanding reset
// token. Existing sessions are left untouched.
func (s *accountService) SetNewPassword(ctx context.Context, req *types.SetNewPasswordRequest) (*types.SetNewPasswordResponse, error) {
	if req.Password != req.Password2 {
		return nil, ErrPasswordMismatch
	}
	if err := s.cfg.Password.Policy.Validate(req.Password); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrWeakPassword, err.Error())
	}

	user, err := s.resetTarget(ctx, req.UIDB64)
	if err != nil {
		return nil, err
	}
	if err = s.resets.Verify(user, req.Token).Err(); err != nil {
		return nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), s.bcryptCost)
	if err != nil {
		return nil, err
	}
	user.PasswordHash = string(hash)
	if err = s.users.Update(ctx, user); err != nil {
		return nil, err
	}

	return &types.SetNewPasswordResponse{Success: true, Message: "Password reset successful"}, nil
}

func (s *accountService) FederatedLogin(ctx context.Context, req *types.FederatedLoginRequest) (*types.SessionResponse, error) {
	claim, err := s.identity.Verify(ctx, req.IDToken)
	if err != nil {
		if errors.Is(err, firebase.ErrInvalidIDToken) {
			return nil, fmt.Errorf("%w: %w", ErrInvalidToken, err)
		}
		return nil, fmt.Errorf("%w: verify identity token: %w", ErrUpstream, err)
	}

	user, err := s.bridge.Resolve(ctx, claim)
	if err != nil {
		return nil, err
	}
	if !user.IsActive {
		return nil, ErrInvalidCredentials
	}

	return s.openSession(user)
}

func (s *accountService) ValidateToken(_ context.Context, req *types.ValidateTokenRequest) (*types.ValidateTokenResponse, error) {
	claims, err := s.sessions.ValidateAccess(req.Token)
	if err != nil {
		return nil, err
	}

	resp := &types.ValidateTokenResponse{
		Valid:      true,
		UserID:     claims.UserID,
		Username:   claims.Username,
		Email:      claims.Email,
		IsVerified: claims.IsVerified,
	}
	if claims.ExpiresAt != nil {
		resp.ExpiresAt = claims.ExpiresAt.Unix()
	}
	return resp, nil
}

func (s *accountService) ValidateAccessToken(token string) (*Claims, error) {
	return s.sessions.ValidateAccess(token)
}

func (s *accountService) Me(ctx context.Context, userID uint64) (*types.UserResponse, error) {
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user == nil || !user.IsActive {
		return nil, ErrInvalidToken
	}

	resp := userResponse(user)
	return &resp, nil
}

// issueVerificationCode replaces the user's code and mails the new one.
func (s *accountService) issueVerificationCode(ctx context.Context, user *entity.User) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	code, err := s.generator.Generate(ctx, repository.NewVerificationCodeRepository(tx), user.ID)
	if err != nil {
		return err
	}
	if err = tx.Commit(); err != nil {
		return err
	}

	return s.sendVerificationEmail(ctx, user, code)
}

func (s *accountService) sendVerificationEmail(ctx context.Context, user *entity.User, code *entity.VerificationCode) error {
	msg, err := s.templates.VerificationEmail(user.Email, user.Username, code.Code, int(VerificationCodeTTL/time.Minute))
	if err != nil {
		return err
	}

	if err = s.mail.Send(ctx, msg); err != nil {
		logrus.WithError(err).WithField("user_id", user.ID).Warn("Failed to send verification email")
		return fmt.Errorf("%w: send verification email: %w", ErrUpstream, err)
	}
	return nil
}

func (s *accountService) openSession(user *entity.User) (*types.SessionResponse, error) {
	pair, err := s.sessions.IssuePair(user)
	if err != nil {
		return nil, err
	}

	return &types.SessionResponse{
		Access:  pair.Access,
		Refresh: pair.Refresh,
		User:    userResponse(user),
	}, nil
}

// resetTarget resolves the user a reset link points at. An undecodable id or a
// missing user is reported as an invalid token.
func (s *accountService) resetTarget(ctx context.Context, uidb64 string) (*entity.User, error) {
	id, err := DecodeUID(uidb64)
	if err != nil {
		return nil, ErrInvalidToken
	}

	user, err := s.users.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrInvalidToken
	}
	return user, nil
}

func userResponse(user *entity.User) types.UserResponse {
	return types.UserResponse{
		ID:         user.ID,
		Email:      user.Email,
		Username:   user.Username,
		IsVerified: user.IsVerified,
	}
}

// EncodeUID renders a user id the way reset links carry it.
func EncodeUID(id uint64) string {
	return base64.RawURLEncoding.EncodeToString([]byte(strconv.FormatUint(id, 10)))
}

func DecodeUID(uidb64 string) (uint64, error) {
	raw, err := base64.RawURLEncoding.DecodeString(strings.TrimRight(uidb64, "="))
	if err != nil {
		return 0, err
	}
	return strconv.ParseUint(string(raw), 10, 64)
}
