package grpc

import (
	"context"
	"errors"

	"github.com/vibast-solutions/ms-go-accounts/app/service"
	"github.com/vibast-solutions/ms-go-accounts/app/types"

	"github.com/sirupsen/logrus"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

type AccountServer struct {
	accounts service.AccountService
}

func NewAccountServer(accounts service.AccountService) *AccountServer {
	return &AccountServer{accounts: accounts}
}

func (s *AccountServer) Register(ctx context.Context, req *types.RegisterRequest) (*types.RegisterResponse, error) {
	if err := req.Validate(); err != nil {
		logrus.WithField("email", req.Email).Debug("Register validation failed (grpc)")
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}

	logrus.WithField("email", req.Email).Info("Register request received (grpc)")
	res, err := s.accounts.Register(ctx, req)
	if err != nil {
		return nil, toStatus("Register", err, logrus.Fields{"email": req.Email}, codes.InvalidArgument)
	}

	logrus.WithField("email", res.Email).Info("User registered (grpc)")
	return res, nil
}

func (s *AccountServer) VerifyEmail(ctx context.Context, req *types.VerifyEmailRequest) (*types.VerifyEmailResponse, error) {
	if err := req.Validate(); err != nil {
		logrus.WithField("email", req.Email).Debug("Verify email validation failed (grpc)")
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}

	logrus.WithField("email", req.Email).Info("Verify email request received (grpc)")
	res, err := s.accounts.VerifyEmail(ctx, req)
	if err != nil {
		return nil, toStatus("Verify email", err, logrus.Fields{"email": req.Email}, codes.InvalidArgument)
	}

	logrus.WithField("user_id", res.User.ID).Info("Email verified (grpc)")
	return res, nil
}

func (s *AccountServer) ResendVerificationCode(ctx context.Context, req *types.ResendVerificationCodeRequest) (*types.MessageResponse, error) {
	if err := req.Validate(); err != nil {
		logrus.WithField("email", req.Email).Debug("Resend verification code validation failed (grpc)")
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}

	logrus.WithField("email", req.Email).Info("Resend verification code request received (grpc)")
	res, err := s.accounts.ResendVerificationCode(ctx, req)
	if err != nil {
		return nil, toStatus("Resend verification code", err, logrus.Fields{"email": req.Email}, codes.InvalidArgument)
	}

	return res, nil
}

func (s *AccountServer) Login(ctx context.Context, req *types.LoginRequest) (*types.SessionResponse, error) {
	if err := req.Validate(); err != nil {
		logrus.WithField("email", req.Email).Debug("Login validation failed (grpc)")
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}

	logrus.WithField("email", req.Email).Info("Login request received (grpc)")
	res, err := s.accounts.Login(ctx, req)
	if err != nil {
		return nil, toStatus("Login", err, logrus.Fields{"email": req.Email}, codes.Unauthenticated)
	}

	logrus.WithField("user_id", res.User.ID).Info("Login successful (grpc)")
	return res, nil
}

func (s *AccountServer) RefreshToken(ctx context.Context, req *types.RefreshTokenRequest) (*types.SessionResponse, error) {
	if err := req.Validate(); err != nil {
		logrus.Debug("Refresh token validation failed (grpc)")
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}

	logrus.Info("Refresh token request received (grpc)")
	res, err := s.accounts.RefreshToken(ctx, req)
	if err != nil {
		return nil, toStatus("Refresh token", err, nil, codes.Unauthenticated)
	}

	logrus.WithField("user_id", res.User.ID).Info("Refresh token successful (grpc)")
	return res, nil
}

func (s *AccountServer) Logout(ctx context.Context, req *types.LogoutRequest) (*types.MessageResponse, error) {
	logrus.Info("Logout request received (grpc)")
	return s.accounts.Logout(ctx, req), nil
}

func (s *AccountServer) RequestPasswordReset(ctx context.Context, req *types.RequestPasswordResetRequest) (*types.RequestPasswordResetResponse, error) {
	if err := req.Validate(); err != nil {
		logrus.Debug("Request password reset validation failed (grpc)")
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}

	logrus.WithField("email", req.Email).Info("Password reset requested (grpc)")
	res, err := s.accounts.RequestPasswordReset(ctx, req)
	if err != nil {
		return nil, toStatus("Request password reset", err, logrus.Fields{"email": req.Email}, codes.InvalidArgument)
	}

	logrus.WithField("email", req.Email).Info("Password reset link sent (grpc)")
	return res, nil
}

func (s *AccountServer) CheckResetToken(ctx context.Context, req *types.CheckResetTokenRequest) (*types.CheckResetTokenResponse, error) {
	if err := req.Validate(); err != nil {
		logrus.Debug("Check reset token validation failed (grpc)")
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}

	res, err := s.accounts.CheckResetToken(ctx, req)
	if err != nil {
		if errors.Is(err, service.ErrExpired) {
			logrus.Warn("Check reset token failed: token expired (grpc)")
			return nil, status.Error(codes.Unauthenticated, "Token is invalid or expired")
		}
		return nil, toStatus("Check reset token", err, nil, codes.Unauthenticated)
	}

	return res, nil
}

func (s *AccountServer) SetNewPassword(ctx context.Context, req *types.SetNewPasswordRequest) (*types.SetNewPasswordResponse, error) {
	if err := req.Validate(); err != nil {
		logrus.Debug("Set new password validation failed (grpc)")
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}

	logrus.Info("Set new password request received (grpc)")
	res, err := s.accounts.SetNewPassword(ctx, req)
	if err != nil {
		return nil, toStatus("Set new password", err, nil, codes.InvalidArgument)
	}

	logrus.Info("Password reset successful (grpc)")
	return res, nil
}

func (s *AccountServer) FederatedLogin(ctx context.Context, req *types.FederatedLoginRequest) (*types.SessionResponse, error) {
	if err := req.Validate(); err != nil {
		logrus.Debug("Federated login validation failed (grpc)")
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}

	logrus.Info("Federated login request received (grpc)")
	res, err := s.accounts.FederatedLogin(ctx, req)
	if err != nil {
		return nil, toStatus("Federated login", err, nil, codes.Unauthenticated)
	}

	logrus.WithField("user_id", res.User.ID).Info("Federated login successful (grpc)")
	return res, nil
}

func (s *AccountServer) ValidateToken(ctx context.Context, req *types.ValidateTokenRequest) (*types.ValidateTokenResponse, error) {
	if err := req.Validate(); err != nil {
		logrus.Debug("Validate token validation failed (grpc)")
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}

	res, err := s.accounts.ValidateToken(ctx, req)
	if err != nil {
		logrus.Debug("Validate token failed (grpc)")
		return &types.ValidateTokenResponse{Valid: false}, nil
	}

	logrus.WithField("user_id", res.UserID).Debug("Validate token succeeded (grpc)")
	return res, nil
}

func toStatus(op string, err error, fields logrus.Fields, invalidCode codes.Code) error {
	entry := logrus.WithFields(fields).WithError(err)

	var code codes.Code
	switch service.Kind(err) {
	case service.ErrValidation:
		code = codes.InvalidArgument
	case service.ErrNotFound:
		code = codes.NotFound
	case service.ErrExpired:
		code = codes.FailedPrecondition
	case service.ErrInvalid:
		code = invalidCode
	case service.ErrConflict:
		code = codes.AlreadyExists
	case service.ErrUnverified:
		code = codes.PermissionDenied
	case service.ErrUpstream:
		entry.Error(op + " failed: upstream unavailable (grpc)")
		return status.Error(codes.Unavailable, "upstream service unavailable")
	default:
		entry.Error(op + " failed (grpc)")
		return status.Error(codes.Internal, "internal server error")
	}

	entry.Warn(op + " failed (grpc)")
	return status.Error(code, err.Error())
}
