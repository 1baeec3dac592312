package grpc

import (
	"context"

	"github.com/vibast-solutions/ms-go-accounts/app/types"

	gogrpc "google.golang.org/grpc"
)

const ServiceName = "accounts.v1.AccountService"

type AccountServiceServer interface {
	Register(context.Context, *types.RegisterRequest) (*types.RegisterResponse, error)
	VerifyEmail(context.Context, *types.VerifyEmailRequest) (*types.VerifyEmailResponse, error)
	ResendVerificationCode(context.Context, *types.ResendVerificationCodeRequest) (*types.MessageResponse, error)
	Login(context.Context, *types.LoginRequest) (*types.SessionResponse, error)
	RefreshToken(context.Context, *types.RefreshTokenRequest) (*types.SessionResponse, error)
	Logout(context.Context, *types.LogoutRequest) (*types.MessageResponse, error)
	RequestPasswordReset(context.Context, *types.RequestPasswordResetRequest) (*types.RequestPasswordResetResponse, error)
	CheckResetToken(context.Context, *types.CheckResetTokenRequest) (*types.CheckResetTokenResponse, error)
	SetNewPassword(context.Context, *types.SetNewPasswordRequest) (*types.SetNewPasswordResponse, error)
	FederatedLogin(context.Context, *types.FederatedLoginRequest) (*types.SessionResponse, error)
	ValidateToken(context.Context, *types.ValidateTokenRequest) (*types.ValidateTokenResponse, error)
}

func RegisterAccountServiceServer(s gogrpc.ServiceRegistrar, srv AccountServiceServer) {
	s.RegisterService(&accountServiceDesc, srv)
}

var accountServiceDesc = gogrpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*AccountServiceServer)(nil),
	Methods: []gogrpc.MethodDesc{
		unary("Register", AccountServiceServer.Register),
		unary("VerifyEmail", AccountServiceServer.VerifyEmail),
		unary("ResendVerificationCode", AccountServiceServer.ResendVerificationCode),
		unary("Login", AccountServiceServer.Login),
		unary("RefreshToken", AccountServiceServer.RefreshToken),
		unary("Logout", AccountServiceServer.Logout),
		unary("RequestPasswordReset", AccountServiceServer.RequestPasswordReset),
		unary("CheckResetToken", AccountServiceServer.CheckResetToken),
		unary("SetNewPassword", AccountServiceServer.SetNewPassword),
		unary("FederatedLogin", AccountServiceServer.FederatedLogin),
		unary("ValidateToken", AccountServiceServer.ValidateToken),
	},
	Streams:  []gogrpc.StreamDesc{},
	Metadata: "accounts/v1/account_service",
}

func unary[Req, Res any](method string, call func(AccountServiceServer, context.Context, *Req) (*Res, error)) gogrpc.MethodDesc {
	return gogrpc.MethodDesc{
		MethodName: method,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor gogrpc.UnaryServerInterceptor) (any, error) {
			in := new(Req)
			if err := dec(in); err != nil {
				return nil, err
			}
			server := srv.(AccountServiceServer)
			if interceptor == nil {
				return call(server, ctx, in)
			}

			info := &gogrpc.UnaryServerInfo{
				Server:     srv,
				FullMethod: fullMethod(method),
			}
			handler := func(ctx context.Context, req any) (any, error) {
				return call(server, ctx, req.(*Req))
			}
			return interceptor(ctx, in, info, handler)
		},
	}
}

func fullMethod(method string) string {
	return "/" + ServiceName + "/" + method
}
