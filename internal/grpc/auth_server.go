package grpcserver

import (
	"context"
	"strings"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"ambulanceDispatch/internal/dispatch"
)

// AuthServer implements AuthServiceServer.
type AuthServer struct {
	Accounts *dispatch.AccountService
}

var _ AuthServiceServer = (*AuthServer)(nil)

// SignupDriver registers a new unit and returns its account.
func (s *AuthServer) SignupDriver(ctx context.Context, req *SignupDriverRequest) (*SignupDriverResponse, error) {
	acct, err := s.Accounts.SignupDriver(ctx, dispatch.DriverSignup{
		Username:     req.Username,
		Password:     req.Password,
		FullName:     req.FullName,
		Phone:        req.Phone,
		VehicleID:    req.VehicleID,
		BaseLocation: req.BaseLocation,
	})
	if err != nil {
		return nil, toStatus(err)
	}
	return &SignupDriverResponse{Account: acct}, nil
}

func (s *AuthServer) LoginDriver(ctx context.Context, req *LoginRequest) (*LoginResponse, error) {
	if strings.TrimSpace(req.Login) == "" || req.Password == "" {
		return nil, status.Error(codes.InvalidArgument, "login and password are required")
	}
	tok, acct, err := s.Accounts.LoginDriver(ctx, req.Login, req.Password)
	if err != nil {
		return nil, toStatus(err)
	}
	return &LoginResponse{Token: tok, Principal: acct.DriverID, DisplayName: acct.FullName}, nil
}

func (s *AuthServer) LoginOperator(ctx context.Context, req *LoginRequest) (*LoginResponse, error) {
	if strings.TrimSpace(req.Login) == "" || req.Password == "" {
		return nil, status.Error(codes.InvalidArgument, "login and password are required")
	}
	tok, op, err := s.Accounts.LoginOperator(ctx, req.Login, req.Password)
	if err != nil {
		return nil, toStatus(err)
	}
	return &LoginResponse{Token: tok, Principal: op.Username, DisplayName: op.DisplayName}, nil
}
