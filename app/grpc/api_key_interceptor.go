package grpc

import (
	"context"
	"errors"
	"strings"

	"github.com/exoticlogicbuilder/auth-service/app/service"

	gogrpc "google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

type callerServiceKey struct{}

// APIKeyUnaryInterceptor requires a valid x-api-key for the listed methods
// and lets every other method through.
func APIKeyUnaryInterceptor(authService service.InternalAuthService, methods ...string) gogrpc.UnaryServerInterceptor {
	guarded := make(map[string]struct{}, len(methods))
	for _, m := range methods {
		guarded[m] = struct{}{}
	}

	return func(ctx context.Context, req any, info *gogrpc.UnaryServerInfo, handler gogrpc.UnaryHandler) (any, error) {
		if _, ok := guarded[info.FullMethod]; !ok {
			return handler(ctx, req)
		}

		apiKey := incomingAPIKeyFromMetadata(ctx)
		if apiKey == "" {
			return nil, status.Error(codes.Unauthenticated, "unauthorized")
		}

		result, err := authService.ValidateInternalAPIKey(ctx, apiKey)
		if err != nil {
			if errors.Is(err, service.ErrInvalidInternalAPIKey) {
				return nil, status.Error(codes.Unauthenticated, "unauthorized")
			}
			return nil, status.Error(codes.Internal, "internal server error")
		}

		ctx = context.WithValue(ctx, callerServiceKey{}, result.ServiceName)
		return handler(ctx, req)
	}
}

// CallerService returns the service name attached by APIKeyUnaryInterceptor.
func CallerService(ctx context.Context) string {
	name, _ := ctx.Value(callerServiceKey{}).(string)
	return name
}

func incomingAPIKeyFromMetadata(ctx context.Context) string {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return ""
	}
	values := md.Get("x-api-key")
	if len(values) == 0 {
		return ""
	}
	return strings.TrimSpace(values[0])
}
