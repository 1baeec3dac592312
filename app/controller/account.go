package controller

import (
	"errors"
	"net/http"

	"github.com/vibast-solutions/ms-go-accounts/app/middleware"
	"github.com/vibast-solutions/ms-go-accounts/app/service"
	"github.com/vibast-solutions/ms-go-accounts/app/types"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"
)

const unverifiedDetail = "Email not verified. A new verification code has been sent to your email."

type AccountController struct {
	accounts service.AccountService
}

func NewAccountController(accounts service.AccountService) *AccountController {
	return &AccountController{accounts: accounts}
}

func (c *AccountController) Register(ctx echo.Context) error {
	req, err := types.NewRegisterRequestFromContext(ctx)
	if err != nil {
		logrus.WithError(err).Debug("Invalid register request body")
		return ctx.JSON(http.StatusBadRequest, types.ErrorResponse{Error: "invalid request body"})
	}
	if err = req.Validate(); err != nil {
		logrus.WithField("email", req.Email).Debug("Register validation failed")
		return ctx.JSON(http.StatusBadRequest, types.ErrorResponse{Error: err.Error()})
	}

	logrus.WithField("email", req.Email).Info("Register request received")
	res, err := c.accounts.Register(ctx.Request().Context(), req)
	if err != nil {
		return c.fail(ctx, "Register", err, logrus.Fields{"email": req.Email}, http.StatusBadRequest)
	}

	logrus.WithField("email", res.Email).Info("User registered")
	return ctx.JSON(http.StatusCreated, res)
}

func (c *AccountController) VerifyEmail(ctx echo.Context) error {
	req, err := types.NewVerifyEmailRequestFromContext(ctx)
	if err != nil {
		logrus.WithError(err).Debug("Invalid verify email request body")
		return ctx.JSON(http.StatusBadRequest, types.ErrorResponse{Error: "invalid request body"})
	}
	if err = req.Validate(); err != nil {
		logrus.WithField("email", req.Email).Debug("Verify email validation failed")
		return ctx.JSON(http.StatusBadRequest, types.ErrorResponse{Error: err.Error()})
	}

	logrus.WithField("email", req.Email).Info("Verify email request received")
	res, err := c.accounts.VerifyEmail(ctx.Request().Context(), req)
	if err != nil {
		return c.fail(ctx, "Verify email", err, logrus.Fields{"email": req.Email}, http.StatusBadRequest)
	}

	logrus.WithField("user_id", res.User.ID).Info("Email verified")
	return ctx.JSON(http.StatusOK, res)
}

func (c *AccountController) ResendVerificationCode(ctx echo.Context) error {
	req, err := types.NewResendVerificationCodeRequestFromContext(ctx)
	if err != nil {
		logrus.WithError(err).Debug("Invalid resend verification code request body")
		return ctx.JSON(http.StatusBadRequest, types.ErrorResponse{Error: "invalid request body"})
	}
	if err = req.Validate(); err != nil {
		logrus.WithField("email", req.Email).Debug("Resend verification code validation failed")
		return ctx.JSON(http.StatusBadRequest, types.ErrorResponse{Error: err.Error()})
	}

	logrus.WithField("email", req.Email).Info("Resend verification code request received")
	res, err := c.accounts.ResendVerificationCode(ctx.Request().Context(), req)
	if err != nil {
		return c.fail(ctx, "Resend verification code", err, logrus.Fields{"email": req.Email}, http.StatusBadRequest)
	}

	return ctx.JSON(http.StatusOK, res)
}

func (c *AccountController) Login(ctx echo.Context) error {
	req, err := types.NewLoginRequestFromContext(ctx)
	if err != nil {
		logrus.WithError(err).Debug("Invalid login request body")
		return ctx.JSON(http.StatusBadRequest, types.ErrorResponse{Error: "invalid request body"})
	}
	if err = req.Validate(); err != nil {
		logrus.WithField("email", req.Email).Debug("Login validation failed")
		return ctx.JSON(http.StatusBadRequest, types.ErrorResponse{Error: err.Error()})
	}

	logrus.WithField("email", req.Email).Info("Login request received")
	res, err := c.accounts.Login(ctx.Request().Context(), req)
	if err != nil {
		if errors.Is(err, service.ErrEmailNotVerified) {
			logrus.WithField("email", req.Email).Warn("Login refused: email not verified, code resent")
			return ctx.JSON(http.StatusForbidden, types.UnverifiedResponse{
				Detail: unverifiedDetail,
				Email:  service.NormalizeEmail(req.Email),
			})
		}
		return c.fail(ctx, "Login", err, logrus.Fields{"email": req.Email}, http.StatusUnauthorized)
	}

	logrus.WithField("user_id", res.User.ID).Info("Login successful")
	return ctx.JSON(http.StatusOK, res)
}

func (c *AccountController) RefreshToken(ctx echo.Context) error {
	req, err := types.NewRefreshTokenRequestFromContext(ctx)
	if err != nil {
		logrus.WithError(err).Debug("Invalid refresh token request body")
		return ctx.JSON(http.StatusBadRequest, types.ErrorResponse{Error: "invalid request body"})
	}
	if err = req.Validate(); err != nil {
		logrus.Debug("Refresh token validation failed")
		return ctx.JSON(http.StatusBadRequest, types.ErrorResponse{Error: err.Error()})
	}

	logrus.Info("Refresh token request received")
	res, err := c.accounts.RefreshToken(ctx.Request().Context(), req)
	if err != nil {
		return c.fail(ctx, "Refresh token", err, nil, http.StatusUnauthorized)
	}

	logrus.WithField("user_id", res.User.ID).Info("Refresh token successful")
	return ctx.JSON(http.StatusOK, res)
}

func (c *AccountController) Logout(ctx echo.Context) error {
	req := types.NewLogoutRequestFromContext(ctx)

	logrus.Info("Logout request received")
	return ctx.JSON(http.StatusOK, c.accounts.Logout(ctx.Request().Context(), req))
}

func (c *AccountController) RequestPasswordReset(ctx echo.Context) error {
	req, err := types.NewRequestPasswordResetRequestFromContext(ctx)
	if err != nil {
		logrus.WithError(err).Debug("Invalid request password reset body")
		return ctx.JSON(http.StatusBadRequest, types.ErrorResponse{Error: "invalid request body"})
	}
	if err = req.Validate(); err != nil {
		logrus.Debug("Request password reset validation failed")
		return ctx.JSON(http.StatusBadRequest, types.ErrorResponse{Error: err.Error()})
	}

	logrus.WithField("email", req.Email).Info("Password reset requested")
	res, err := c.accounts.RequestPasswordReset(ctx.Request().Context(), req)
	if err != nil {
		return c.fail(ctx, "Request password reset", err, logrus.Fields{"email": req.Email}, http.StatusBadRequest)
	}

	logrus.WithField("email", req.Email).Info("Password reset link sent")
	return ctx.JSON(http.StatusOK, res)
}

func (c *AccountController) CheckResetToken(ctx echo.Context) error {
	req := types.NewCheckResetTokenRequestFromContext(ctx)
	if err := req.Validate(); err != nil {
		logrus.Debug("Check reset token validation failed")
		return ctx.JSON(http.StatusBadRequest, types.ErrorResponse{Error: err.Error()})
	}

	res, err := c.accounts.CheckResetToken(ctx.Request().Context(), req)
	if err != nil {
		kind := service.Kind(err)
		if kind == service.ErrInvalid || kind == service.ErrExpired {
			logrus.WithError(err).Warn("Check reset token failed")
			return ctx.JSON(http.StatusUnauthorized, types.ErrorResponse{Error: "Token is invalid or expired"})
		}
		return c.fail(ctx, "Check reset token", err, nil, http.StatusUnauthorized)
	}

	return ctx.JSON(http.StatusOK, res)
}

func (c *AccountController) SetNewPassword(ctx echo.Context) error {
	req, err := types.NewSetNewPasswordRequestFromContext(ctx)
	if err != nil {
		logrus.WithError(err).Debug("Invalid set new password request body")
		return ctx.JSON(http.StatusBadRequest, types.ErrorResponse{Error: "invalid request body"})
	}
	if err = req.Validate(); err != nil {
		logrus.Debug("Set new password validation failed")
		return ctx.JSON(http.StatusBadRequest, types.ErrorResponse{Error: err.Error()})
	}

	logrus.Info("Set new password request received")
	res, err := c.accounts.SetNewPassword(ctx.Request().Context(), req)
	if err != nil {
		return c.fail(ctx, "Set new password", err, nil, http.StatusBadRequest)
	}

	logrus.Info("Password reset successful")
	return ctx.JSON(http.StatusOK, res)
}

func (c *AccountController) FederatedLogin(ctx echo.Context) error {
	req, err := types.NewFederatedLoginRequestFromContext(ctx)
	if err != nil {
		logrus.WithError(err).Debug("Invalid federated login request body")
		return ctx.JSON(http.StatusBadRequest, types.ErrorResponse{Error: "invalid request body"})
	}
	if err = req.Validate(); err != nil {
		logrus.Debug("Federated login validation failed")
		return ctx.JSON(http.StatusBadRequest, types.ErrorResponse{Error: err.Error()})
	}

	logrus.Info("Federated login request received")
	res, err := c.accounts.FederatedLogin(ctx.Request().Context(), req)
	if err != nil {
		return c.fail(ctx, "Federated login", err, nil, http.StatusBadRequest)
	}

	logrus.WithField("user_id", res.User.ID).Info("Federated login successful")
	return ctx.JSON(http.StatusOK, res)
}

func (c *AccountController) ValidateToken(ctx echo.Context) error {
	req, err := types.NewValidateTokenRequestFromContext(ctx)
	if err != nil {
		logrus.WithError(err).Debug("Invalid validate token request body")
		return ctx.JSON(http.StatusBadRequest, types.ErrorResponse{Error: "invalid request body"})
	}
	if err = req.Validate(); err != nil {
		logrus.Debug("Validate token validation failed")
		return ctx.JSON(http.StatusBadRequest, types.ErrorResponse{Error: err.Error()})
	}

	res, err := c.accounts.ValidateToken(ctx.Request().Context(), req)
	if err != nil {
		logrus.Debug("Validate token failed")
		return ctx.JSON(http.StatusUnauthorized, types.ValidateTokenResponse{Valid: false})
	}

	logrus.WithField("user_id", res.UserID).Debug("Validate token succeeded")
	return ctx.JSON(http.StatusOK, res)
}

// Me expects RequireAuth to have run.
func (c *AccountController) Me(ctx echo.Context) error {
	userID, ok := ctx.Get(middleware.ContextUserID).(uint64)
	if !ok {
		return ctx.JSON(http.StatusUnauthorized, types.ErrorResponse{Error: "unauthorized"})
	}

	res, err := c.accounts.Me(ctx.Request().Context(), userID)
	if err != nil {
		return c.fail(ctx, "Me", err, logrus.Fields{"user_id": userID}, http.StatusUnauthorized)
	}

	return ctx.JSON(http.StatusOK, res)
}

// fail writes the response for a service error. invalidStatus is used for ErrInvalid,
// which means bad credentials on session endpoints and a bad payload elsewhere.
func (c *AccountController) fail(ctx echo.Context, op string, err error, fields logrus.Fields, invalidStatus int) error {
	entry := logrus.WithFields(fields).WithError(err)

	var code int
	switch service.Kind(err) {
	case service.ErrValidation, service.ErrExpired:
		code = http.StatusBadRequest
	case service.ErrNotFound:
		code = http.StatusNotFound
	case service.ErrInvalid:
		code = invalidStatus
	case service.ErrConflict:
		code = http.StatusConflict
	case service.ErrUnverified:
		code = http.StatusForbidden
	case service.ErrUpstream:
		entry.Error(op + " failed: upstream unavailable")
		return ctx.JSON(http.StatusBadGateway, types.ErrorResponse{Error: "upstream service unavailable"})
	default:
		entry.Error(op + " failed")
		return ctx.JSON(http.StatusInternalServerError, types.ErrorResponse{Error: "internal server error"})
	}

	entry.Warn(op + " failed")
	return ctx.JSON(code, types.ErrorResponse{Error: err.Error()})
}
