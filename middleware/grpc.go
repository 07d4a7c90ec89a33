package middleware

import (
	"context"
	"errors"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"github.com/swipewise/authsession"
)

// UnaryServerInterceptor applies the gate rules to the "authorization"
// metadata of unary calls. excludedMethods are full method names such as
// "/swipewise.v1.Auth/Login".
func UnaryServerInterceptor(v Verifier, excludedMethods ...string) grpc.UnaryServerInterceptor {
	excluded := make(map[string]struct{}, len(excludedMethods))
	for _, m := range excludedMethods {
		excluded[m] = struct{}{}
	}

	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		if _, ok := excluded[info.FullMethod]; ok {
			return handler(ctx, req)
		}

		var header string
		if md, ok := metadata.FromIncomingContext(ctx); ok {
			if values := md.Get("authorization"); len(values) > 0 {
				header = values[0]
			}
		}
		token, ok := bearerToken(header)
		if !ok {
			return handler(ctx, req)
		}

		p, err := v.Verify(ctx, token)
		if err != nil {
			return nil, grpcError(err)
		}
		return handler(authsession.WithPrincipal(ctx, p), req)
	}
}

// RequirePrincipal returns codes.Unauthenticated when ctx has no principal.
// Handlers behind UnaryServerInterceptor call it for protected methods.
func RequirePrincipal(ctx context.Context) (authsession.Principal, error) {
	p, ok := authsession.PrincipalFromContext(ctx)
	if !ok {
		return authsession.Principal{}, status.Error(codes.Unauthenticated, "not authenticated")
	}
	return p, nil
}

func grpcError(err error) error {
	switch {
	case errors.Is(err, authsession.ErrTokenInvalid):
		return status.Error(codes.Unauthenticated, "invalid token")
	case errors.Is(err, authsession.ErrStoreUnavailable):
		return status.Error(codes.Unavailable, "service unavailable")
	default:
		return status.Error(codes.Internal, "internal error")
	}
}
