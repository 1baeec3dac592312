package grpc

import (
	"context"

	"github.com/vibast-solutions/ms-go-accounts/app/types"

	gogrpc "google.golang.org/grpc"
)

// AccountClient calls AccountService over a connection using the JSON codec.
type AccountClient struct {
	cc gogrpc.ClientConnInterface
}

func NewAccountClient(cc gogrpc.ClientConnInterface) *AccountClient {
	return &AccountClient{cc: cc}
}

func (c *AccountClient) Register(ctx context.Context, in *types.RegisterRequest, opts ...gogrpc.CallOption) (*types.RegisterResponse, error) {
	return invoke[types.RegisterResponse](ctx, c.cc, "Register", in, opts)
}

func (c *AccountClient) VerifyEmail(ctx context.Context, in *types.VerifyEmailRequest, opts ...gogrpc.CallOption) (*types.VerifyEmailResponse, error) {
	return invoke[types.VerifyEmailResponse](ctx, c.cc, "VerifyEmail", in, opts)
}

func (c *AccountClient) ResendVerificationCode(ctx context.Context, in *types.ResendVerificationCodeRequest, opts ...gogrpc.CallOption) (*types.MessageResponse, error) {
	return invoke[types.MessageResponse](ctx, c.cc, "ResendVerificationCode", in, opts)
}

func (c *AccountClient) Login(ctx context.Context, in *types.LoginRequest, opts ...gogrpc.CallOption) (*types.SessionResponse, error) {
	return invoke[types.SessionResponse](ctx, c.cc, "Login", in, opts)
}

func (c *AccountClient) RefreshToken(ctx context.Context, in *types.RefreshTokenRequest, opts ...gogrpc.CallOption) (*types.SessionResponse, error) {
	return invoke[types.SessionResponse](ctx, c.cc, "RefreshToken", in, opts)
}

func (c *AccountClient) Logout(ctx context.Context, in *types.LogoutRequest, opts ...gogrpc.CallOption) (*types.MessageResponse, error) {
	return invoke[types.MessageResponse](ctx, c.cc, "Logout", in, opts)
}

func (c *AccountClient) RequestPasswordReset(ctx context.Context, in *types.RequestPasswordResetRequest, opts ...gogrpc.CallOption) (*types.RequestPasswordResetResponse, error) {
	return invoke[types.RequestPasswordResetResponse](ctx, c.cc, "RequestPasswordReset", in, opts)
}

func (c *AccountClient) CheckResetToken(ctx context.Context, in *types.CheckResetTokenRequest, opts ...gogrpc.CallOption) (*types.CheckResetTokenResponse, error) {
	return invoke[types.CheckResetTokenResponse](ctx, c.cc, "CheckResetToken", in, opts)
}

func (c *AccountClient) SetNewPassword(ctx context.Context, in *types.SetNewPasswordRequest, opts ...gogrpc.CallOption) (*types.SetNewPasswordResponse, error) {
	return invoke[types.SetNewPasswordResponse](ctx, c.cc, "SetNewPassword", in, opts)
}

func (c *AccountClient) FederatedLogin(ctx context.Context, in *types.FederatedLoginRequest, opts ...gogrpc.CallOption) (*types.SessionResponse, error) {
	return invoke[types.SessionResponse](ctx, c.cc, "FederatedLogin", in, opts)
}

func (c *AccountClient) ValidateToken(ctx context.Context, in *types.ValidateTokenRequest, opts ...gogrpc.CallOption) (*types.ValidateTokenResponse, error) {
	return invoke[types.ValidateTokenResponse](ctx, c.cc, "ValidateToken", in, opts)
}

func invoke[Res any](ctx context.Context, cc gogrpc.ClientConnInterface, method string, in any, opts []gogrpc.CallOption) (*Res, error) {
	out := new(Res)
	opts = append([]gogrpc.CallOption{gogrpc.CallContentSubtype(CodecName)}, opts...)
	if err := cc.Invoke(ctx, fullMethod(method), in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}
