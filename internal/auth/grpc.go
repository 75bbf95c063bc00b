package auth

import (
	"context"
	"strings"

	"ambulanceDispatch/models"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// NewUnaryAuthInterceptor returns a gRPC unary interceptor that extracts and validates
// a Bearer JWT from incoming metadata and injects the Principal into the context.
// Methods listed in allowUnauthenticated will bypass authentication (health checks, login).
func NewUnaryAuthInterceptor(secret string, allowUnauthenticated ...string) grpc.UnaryServerInterceptor {
	allow := make(map[string]struct{}, len(allowUnauthenticated))
	for _, m := range allowUnauthenticated {
		allow[strings.TrimSpace(m)] = struct{}{}
	}
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		if _, ok := allow[info.FullMethod]; ok {
			return handler(ctx, req)
		}
		p, err := ParseFromMD(ctx, secret)
		if err != nil {
			return nil, status.Errorf(codes.Unauthenticated, "auth error: %v", err)
		}
		return handler(WithPrincipal(ctx, p), req)
	}
}

// RequirePrincipal ensures a principal is present in context.
func RequirePrincipal(ctx context.Context) (*Principal, error) {
	p, ok := FromContext(ctx)
	if !ok {
		return nil, status.Error(codes.Unauthenticated, "missing principal")
	}
	return p, nil
}

// RequireKind ensures the principal has the given kind (lowercased compare).
func RequireKind(ctx context.Context, kind string) (*Principal, error) {
	p, err := RequirePrincipal(ctx)
	if err != nil {
		return nil, err
	}
	if p.Kind != strings.ToLower(kind) {
		return nil, status.Errorf(codes.PermissionDenied, "only %s can perform this action", strings.ToLower(kind))
	}
	return p, nil
}

// RequireDriver ensures the caller is a driver unit. The principal name is the driver id.
func RequireDriver(ctx context.Context) (*Principal, error) {
	return RequireKind(ctx, KindDriver)
}

// OperatorLookup resolves HQ operators by username.
type OperatorLookup interface {
	GetOperator(ctx context.Context, username string) (*models.Operator, error)
}

// RequireHQ ensures the caller is an HQ principal AND that the operator still
// exists. A token minted for a deleted operator is refused.
func RequireHQ(ctx context.Context, operators OperatorLookup) (*Principal, error) {
	p, err := RequireKind(ctx, KindHQ)
	if err != nil {
		return nil, err
	}
	if operators == nil {
		return nil, status.Error(codes.Internal, "operators repository not configured")
	}
	op, err := operators.GetOperator(ctx, p.Name)
	if err != nil {
		return nil, status.Errorf(codes.Unavailable, "get operator: %v", err)
	}
	if op == nil {
		return nil, status.Error(codes.PermissionDenied, "only hq operators can perform this action")
	}
	return p, nil
}
