package grpc

import (
	"context"
	"errors"

	"github.com/exoticlogicbuilder/auth-service/app/middleware"
	"github.com/exoticlogicbuilder/auth-service/app/service"
	"github.com/exoticlogicbuilder/auth-service/app/token"
	"github.com/exoticlogicbuilder/auth-service/app/types"
	"github.com/exoticlogicbuilder/auth-service/config"

	"github.com/sirupsen/logrus"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

const (
	resendVerificationMessage = "if the account exists and is not verified, a verification email has been sent"
	forgotPasswordMessage     = "if the email exists, a password reset email has been sent"
)

// AuthServer mirrors the HTTP routes. Methods acting on the caller's own
// account read the access token from the "authorization" metadata.
type AuthServer struct {
	authService   *service.AuthService
	exposeSecrets bool
}

func NewAuthServer(authService *service.AuthService, cfg *config.Config) *AuthServer {
	return &AuthServer{
		authService:   authService,
		exposeSecrets: cfg.Tokens.ExposeSecrets,
	}
}

var _ AuthServiceServer = (*AuthServer)(nil)

func (s *AuthServer) Register(ctx context.Context, req *types.RegisterRequest) (*types.RegisterResponse, error) {
	if err := req.Validate(); err != nil {
		logrus.WithField("email", req.Email).Debug("Register validation failed (grpc)")
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}

	logrus.WithField("email", req.Email).Info("Register request received (grpc)")
	res, err := s.authService.RegisterUser(ctx, req.Name, req.Email, req.Password)
	if err != nil {
		if errors.Is(err, service.ErrDuplicateEmail) {
			logrus.WithField("email", req.Email).Warn("Register failed: email already registered (grpc)")
			return nil, status.Error(codes.AlreadyExists, "email already registered")
		}
		if errors.Is(err, service.ErrValidation) {
			return nil, status.Error(codes.InvalidArgument, err.Error())
		}
		logrus.WithError(err).WithField("email", req.Email).Error("Register failed (grpc)")
		return nil, status.Error(codes.Internal, "internal server error")
	}

	logrus.WithFields(logrus.Fields{
		"user_id": res.User.ID,
		"email":   res.User.Email,
	}).Info("User registered (grpc)")

	return types.NewRegisterResponse(res, s.exposeSecrets), nil
}

func (s *AuthServer) Login(ctx context.Context, req *types.LoginRequest) (*types.SessionResponse, error) {
	if err := req.Validate(); err != nil {
		logrus.WithField("email", req.Email).Debug("Login validation failed (grpc)")
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}

	logrus.WithField("email", req.Email).Info("Login request received (grpc)")
	session, err := s.authService.Login(ctx, req.Email, req.Password)
	if err != nil {
		if errors.Is(err, service.ErrInvalidCredentials) || errors.Is(err, service.ErrValidation) {
			logrus.WithField("email", req.Email).Warn("Login failed: invalid credentials (grpc)")
			return nil, status.Error(codes.Unauthenticated, "invalid credentials")
		}
		if errors.Is(err, service.ErrAccountNotConfirmed) {
			logrus.WithField("email", req.Email).Warn("Login failed: account not confirmed (grpc)")
			return nil, status.Error(codes.PermissionDenied, "account not confirmed")
		}
		logrus.WithError(err).WithField("email", req.Email).Error("Login failed (grpc)")
		return nil, status.Error(codes.Internal, "internal server error")
	}

	logrus.WithField("user_id", session.UserID).Info("Login successful (grpc)")
	return types.NewSessionResponse(session), nil
}

func (s *AuthServer) RefreshToken(ctx context.Context, req *types.RefreshTokenRequest) (*types.SessionResponse, error) {
	if err := req.Validate(); err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}

	session, err := s.authService.RotateRefreshToken(ctx, req.RefreshToken)
	if err != nil {
		if errors.Is(err, service.ErrInvalidRefreshToken) {
			logrus.Warn("Refresh token failed: invalid or expired token (grpc)")
			return nil, status.Error(codes.Unauthenticated, "invalid refresh token")
		}
		logrus.WithError(err).Error("Refresh token failed (grpc)")
		return nil, status.Error(codes.Internal, "internal server error")
	}

	logrus.WithField("user_id", session.UserID).Info("Refresh token rotated (grpc)")
	return types.NewSessionResponse(session), nil
}

func (s *AuthServer) Logout(ctx context.Context, req *types.LogoutRequest) (*types.MessageResponse, error) {
	if req.RefreshToken != "" {
		if _, err := s.authService.RevokeRefreshToken(ctx, req.RefreshToken); err != nil {
			logrus.WithError(err).Error("Logout failed (grpc)")
			return nil, status.Error(codes.Internal, "internal server error")
		}
	}
	return &types.MessageResponse{Message: "logged out successfully"}, nil
}

func (s *AuthServer) VerifyEmail(ctx context.Context, req *types.VerifyEmailRequest) (*types.MessageResponse, error) {
	if err := req.Validate(); err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}

	if err := s.authService.VerifyEmailToken(ctx, req.Token); err != nil {
		if errors.Is(err, service.ErrTokenNotFound) {
			logrus.Warn("Verify email failed: invalid token (grpc)")
			return nil, status.Error(codes.InvalidArgument, "invalid token")
		}
		if errors.Is(err, service.ErrTokenExpired) {
			logrus.Warn("Verify email failed: token expired (grpc)")
			return nil, status.Error(codes.InvalidArgument, "token has expired")
		}
		logrus.WithError(err).Error("Verify email failed (grpc)")
		return nil, status.Error(codes.Internal, "internal server error")
	}

	return &types.MessageResponse{Message: "email verified successfully"}, nil
}

func (s *AuthServer) ResendVerification(ctx context.Context, req *types.ResendVerificationRequest) (*types.EmailTokenResponse, error) {
	if err := req.Validate(); err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}

	res, err := s.authService.ResendVerification(ctx, req.Email)
	if err != nil {
		if errors.Is(err, service.ErrValidation) {
			return nil, status.Error(codes.InvalidArgument, err.Error())
		}
		logrus.WithError(err).WithField("email", req.Email).Error("Resend verification failed (grpc)")
		return nil, status.Error(codes.Internal, "internal server error")
	}

	return types.NewEmailTokenResponse(resendVerificationMessage, res, s.exposeSecrets), nil
}

func (s *AuthServer) ForgotPassword(ctx context.Context, req *types.ForgotPasswordRequest) (*types.EmailTokenResponse, error) {
	if err := req.Validate(); err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}

	res, err := s.authService.RequestPasswordReset(ctx, req.Email)
	if err != nil {
		if errors.Is(err, service.ErrValidation) {
			return nil, status.Error(codes.InvalidArgument, err.Error())
		}
		logrus.WithError(err).WithField("email", req.Email).Error("Request password reset failed (grpc)")
		return nil, status.Error(codes.Internal, "internal server error")
	}

	return types.NewEmailTokenResponse(forgotPasswordMessage, res, s.exposeSecrets), nil
}

func (s *AuthServer) ResetPassword(ctx context.Context, req *types.ResetPasswordRequest) (*types.MessageResponse, error) {
	if err := req.Validate(); err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}

	if err := s.authService.ResetPassword(ctx, req.Token, req.NewPassword); err != nil {
		if errors.Is(err, service.ErrTokenNotFound) {
			return nil, status.Error(codes.InvalidArgument, "invalid token")
		}
		if errors.Is(err, service.ErrTokenExpired) {
			return nil, status.Error(codes.InvalidArgument, "token has expired")
		}
		if errors.Is(err, service.ErrValidation) {
			return nil, status.Error(codes.InvalidArgument, err.Error())
		}
		logrus.WithError(err).Error("Reset password failed (grpc)")
		return nil, status.Error(codes.Internal, "internal server error")
	}

	logrus.Info("Password reset successful (grpc)")
	return &types.MessageResponse{Message: "password reset successfully"}, nil
}

func (s *AuthServer) ValidateToken(_ context.Context, req *types.ValidateTokenRequest) (*types.ValidateTokenResponse, error) {
	if err := req.Validate(); err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}

	claims, err := s.authService.VerifyAccessToken(req.AccessToken)
	if err != nil {
		return types.NewRejectedTokenResponse(err), nil
	}
	return types.NewValidateTokenResponse(claims), nil
}

func (s *AuthServer) GetProfile(ctx context.Context, _ *types.Empty) (*types.UserResponse, error) {
	claims, err := s.authenticate(ctx)
	if err != nil {
		return nil, err
	}

	user, err := s.authService.GetProfile(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, service.ErrUserNotFound) {
			return nil, status.Error(codes.NotFound, "user not found")
		}
		logrus.WithError(err).WithField("user_id", claims.UserID).Error("Get profile failed (grpc)")
		return nil, status.Error(codes.Internal, "internal server error")
	}

	return types.NewUserResponse(user), nil
}

func (s *AuthServer) ChangePassword(ctx context.Context, req *types.ChangePasswordRequest) (*types.MessageResponse, error) {
	if err := req.Validate(); err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}

	claims, err := s.authenticate(ctx)
	if err != nil {
		return nil, err
	}

	logrus.WithField("user_id", claims.UserID).Info("Change password request received (grpc)")
	err = s.authService.ChangePassword(ctx, claims.UserID, req.OldPassword, req.NewPassword)
	if err != nil {
		if errors.Is(err, service.ErrUserNotFound) {
			return nil, status.Error(codes.NotFound, "user not found")
		}
		if errors.Is(err, service.ErrPasswordMismatch) {
			return nil, status.Error(codes.InvalidArgument, "old password is incorrect")
		}
		if errors.Is(err, service.ErrValidation) {
			return nil, status.Error(codes.InvalidArgument, err.Error())
		}
		logrus.WithError(err).WithField("user_id", claims.UserID).Error("Change password failed (grpc)")
		return nil, status.Error(codes.Internal, "internal server error")
	}

	return &types.MessageResponse{Message: "password changed successfully"}, nil
}

func (s *AuthServer) LogoutAll(ctx context.Context, _ *types.Empty) (*types.LogoutAllResponse, error) {
	claims, err := s.authenticate(ctx)
	if err != nil {
		return nil, err
	}

	revoked, err := s.authService.RevokeAllSessions(ctx, claims.UserID)
	if err != nil {
		logrus.WithError(err).WithField("user_id", claims.UserID).Error("Logout all failed (grpc)")
		return nil, status.Error(codes.Internal, "internal server error")
	}

	return &types.LogoutAllResponse{RevokedSessions: revoked}, nil
}

func (s *AuthServer) VerifyToken(ctx context.Context, req *types.InternalVerifyTokenRequest) (*types.ValidateTokenResponse, error) {
	if err := req.Validate(); err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}

	claims, err := s.authService.VerifyAccessToken(req.Token)
	if err != nil {
		logrus.WithError(err).WithField("caller_service", CallerService(ctx)).Debug("Internal verify token rejected (grpc)")
		return nil, status.Error(codes.Unauthenticated, middleware.TokenRejection(err))
	}

	return types.NewValidateTokenResponse(claims), nil
}

func (s *AuthServer) authenticate(ctx context.Context) (*token.Claims, error) {
	md, _ := metadata.FromIncomingContext(ctx)
	values := md.Get("authorization")
	if len(values) == 0 {
		return nil, status.Error(codes.Unauthenticated, "missing authorization metadata")
	}

	tokenString, ok := middleware.BearerToken(values[0])
	if !ok {
		return nil, status.Error(codes.Unauthenticated, "invalid authorization metadata")
	}

	claims, err := s.authService.VerifyAccessToken(tokenString)
	if err != nil {
		return nil, status.Error(codes.Unauthenticated, middleware.TokenRejection(err))
	}
	return claims, nil
}
