package grpc

import (
	"context"

	"github.com/exoticlogicbuilder/auth-service/app/types"

	gogrpc "google.golang.org/grpc"
)

const ServiceName = "auth.v1.AuthService"

const (
	MethodRegister           = "/" + ServiceName + "/Register"
	MethodLogin              = "/" + ServiceName + "/Login"
	MethodRefreshToken       = "/" + ServiceName + "/RefreshToken"
	MethodLogout             = "/" + ServiceName + "/Logout"
	MethodVerifyEmail        = "/" + ServiceName + "/VerifyEmail"
	MethodResendVerification = "/" + ServiceName + "/ResendVerification"
	MethodForgotPassword     = "/" + ServiceName + "/ForgotPassword"
	MethodResetPassword      = "/" + ServiceName + "/ResetPassword"
	MethodValidateToken      = "/" + ServiceName + "/ValidateToken"
	MethodGetProfile         = "/" + ServiceName + "/GetProfile"
	MethodChangePassword     = "/" + ServiceName + "/ChangePassword"
	MethodLogoutAll          = "/" + ServiceName + "/LogoutAll"
	MethodVerifyToken        = "/" + ServiceName + "/VerifyToken"
)

// InternalMethods are reserved for other services and require an API key.
var InternalMethods = []string{MethodVerifyToken}

type AuthServiceServer interface {
	Register(context.Context, *types.RegisterRequest) (*types.RegisterResponse, error)
	Login(context.Context, *types.LoginRequest) (*types.SessionResponse, error)
	RefreshToken(context.Context, *types.RefreshTokenRequest) (*types.SessionResponse, error)
	Logout(context.Context, *types.LogoutRequest) (*types.MessageResponse, error)
	VerifyEmail(context.Context, *types.VerifyEmailRequest) (*types.MessageResponse, error)
	ResendVerification(context.Context, *types.ResendVerificationRequest) (*types.EmailTokenResponse, error)
	ForgotPassword(context.Context, *types.ForgotPasswordRequest) (*types.EmailTokenResponse, error)
	ResetPassword(context.Context, *types.ResetPasswordRequest) (*types.MessageResponse, error)
	ValidateToken(context.Context, *types.ValidateTokenRequest) (*types.ValidateTokenResponse, error)
	GetProfile(context.Context, *types.Empty) (*types.UserResponse, error)
	ChangePassword(context.Context, *types.ChangePasswordRequest) (*types.MessageResponse, error)
	LogoutAll(context.Context, *types.Empty) (*types.LogoutAllResponse, error)
	VerifyToken(context.Context, *types.InternalVerifyTokenRequest) (*types.ValidateTokenResponse, error)
}

var AuthServiceDesc = gogrpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*AuthServiceServer)(nil),
	Methods: []gogrpc.MethodDesc{
		unaryMethod("Register", AuthServiceServer.Register),
		unaryMethod("Login", AuthServiceServer.Login),
		unaryMethod("RefreshToken", AuthServiceServer.RefreshToken),
		unaryMethod("Logout", AuthServiceServer.Logout),
		unaryMethod("VerifyEmail", AuthServiceServer.VerifyEmail),
		unaryMethod("ResendVerification", AuthServiceServer.ResendVerification),
		unaryMethod("ForgotPassword", AuthServiceServer.ForgotPassword),
		unaryMethod("ResetPassword", AuthServiceServer.ResetPassword),
		unaryMethod("ValidateToken", AuthServiceServer.ValidateToken),
		unaryMethod("GetProfile", AuthServiceServer.GetProfile),
		unaryMethod("ChangePassword", AuthServiceServer.ChangePassword),
		unaryMethod("LogoutAll", AuthServiceServer.LogoutAll),
		unaryMethod("VerifyToken", AuthServiceServer.VerifyToken),
	},
	Streams:  []gogrpc.StreamDesc{},
	Metadata: "app/grpc/service.go",
}

func RegisterAuthServiceServer(s gogrpc.ServiceRegistrar, srv AuthServiceServer) {
	s.RegisterService(&AuthServiceDesc, srv)
}

func unaryMethod[Req, Resp any](name string, call func(AuthServiceServer, context.Context, *Req) (*Resp, error)) gogrpc.MethodDesc {
	fullMethod := "/" + ServiceName + "/" + name
	return gogrpc.MethodDesc{
		MethodName: name,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor gogrpc.UnaryServerInterceptor) (any, error) {
			in := new(Req)
			if err := dec(in); err != nil {
				return nil, err
			}
			if interceptor == nil {
				return call(srv.(AuthServiceServer), ctx, in)
			}
			info := &gogrpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
			handler := func(ctx context.Context, req any) (any, error) {
				return call(srv.(AuthServiceServer), ctx, req.(*Req))
			}
			return interceptor(ctx, in, info, handler)
		},
	}
}

// AuthServiceClient calls AuthServiceServer over a connection. Every call
// selects the JSON codec.
type AuthServiceClient struct {
	cc gogrpc.ClientConnInterface
}

func NewAuthServiceClient(cc gogrpc.ClientConnInterface) *AuthServiceClient {
	return &AuthServiceClient{cc: cc}
}

func invoke[Resp any](ctx context.Context, cc gogrpc.ClientConnInterface, method string, in any, opts []gogrpc.CallOption) (*Resp, error) {
	out := new(Resp)
	opts = append([]gogrpc.CallOption{gogrpc.CallContentSubtype(ContentSubtype)}, opts...)
	if err := cc.Invoke(ctx, method, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *AuthServiceClient) Register(ctx context.Context, in *types.RegisterRequest, opts ...gogrpc.CallOption) (*types.RegisterResponse, error) {
	return invoke[types.RegisterResponse](ctx, c.cc, MethodRegister, in, opts)
}

func (c *AuthServiceClient) Login(ctx context.Context, in *types.LoginRequest, opts ...gogrpc.CallOption) (*types.SessionResponse, error) {
	return invoke[types.SessionResponse](ctx, c.cc, MethodLogin, in, opts)
}

func (c *AuthServiceClient) RefreshToken(ctx context.Context, in *types.RefreshTokenRequest, opts ...gogrpc.CallOption) (*types.SessionResponse, error) {
	return invoke[types.SessionResponse](ctx, c.cc, MethodRefreshToken, in, opts)
}

func (c *AuthServiceClient) Logout(ctx context.Context, in *types.LogoutRequest, opts ...gogrpc.CallOption) (*types.MessageResponse, error) {
	return invoke[types.MessageResponse](ctx, c.cc, MethodLogout, in, opts)
}

func (c *AuthServiceClient) VerifyEmail(ctx context.Context, in *types.VerifyEmailRequest, opts ...gogrpc.CallOption) (*types.MessageResponse, error) {
	return invoke[types.MessageResponse](ctx, c.cc, MethodVerifyEmail, in, opts)
}

func (c *AuthServiceClient) ResendVerification(ctx context.Context, in *types.ResendVerificationRequest, opts ...gogrpc.CallOption) (*types.EmailTokenResponse, error) {
	return invoke[types.EmailTokenResponse](ctx, c.cc, MethodResendVerification, in, opts)
}

func (c *AuthServiceClient) ForgotPassword(ctx context.Context, in *types.ForgotPasswordRequest, opts ...gogrpc.CallOption) (*types.EmailTokenResponse, error) {
	return invoke[types.EmailTokenResponse](ctx, c.cc, MethodForgotPassword, in, opts)
}

func (c *AuthServiceClient) ResetPassword(ctx context.Context, in *types.ResetPasswordRequest, opts ...gogrpc.CallOption) (*types.MessageResponse, error) {
	return invoke[types.MessageResponse](ctx, c.cc, MethodResetPassword, in, opts)
}

func (c *AuthServiceClient) ValidateToken(ctx context.Context, in *types.ValidateTokenRequest, opts ...gogrpc.CallOption) (*types.ValidateTokenResponse, error) {
	return invoke[types.ValidateTokenResponse](ctx, c.cc, MethodValidateToken, in, opts)
}

func (c *AuthServiceClient) GetProfile(ctx context.Context, in *types.Empty, opts ...gogrpc.CallOption) (*types.UserResponse, error) {
	return invoke[types.UserResponse](ctx, c.cc, MethodGetProfile, in, opts)
}

func (c *AuthServiceClient) ChangePassword(ctx context.Context, in *types.ChangePasswordRequest, opts ...gogrpc.CallOption) (*types.MessageResponse, error) {
	return invoke[types.MessageResponse](ctx, c.cc, MethodChangePassword, in, opts)
}

func (c *AuthServiceClient) LogoutAll(ctx context.Context, in *types.Empty, opts ...gogrpc.CallOption) (*types.LogoutAllResponse, error) {
	return invoke[types.LogoutAllResponse](ctx, c.cc, MethodLogoutAll, in, opts)
}

func (c *AuthServiceClient) VerifyToken(ctx context.Context, in *types.InternalVerifyTokenRequest, opts ...gogrpc.CallOption) (*types.ValidateTokenResponse, error) {
	return invoke[types.ValidateTokenResponse](ctx, c.cc, MethodVerifyToken, in, opts)
}
