package grpcserver

import (
	"errors"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"ambulanceDispatch/internal/auth"
	"ambulanceDispatch/internal/dispatch"
)

// toStatus maps coordinator errors onto gRPC codes. Errors that already carry
// a status pass through unchanged.
func toStatus(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := status.FromError(err); ok {
		return err
	}
	switch {
	case errors.Is(err, dispatch.ErrStoreUnavailable):
		return status.Error(codes.Unavailable, err.Error())
	case errors.Is(err, dispatch.ErrMissionAlreadyTaken), errors.Is(err, dispatch.ErrConflict):
		return status.Error(codes.Aborted, err.Error())
	case errors.Is(err, dispatch.ErrDuplicateMissionID):
		return status.Error(codes.AlreadyExists, err.Error())
	case errors.Is(err, dispatch.ErrInvalidTransition), errors.Is(err, dispatch.ErrDriverBusy):
		return status.Error(codes.FailedPrecondition, err.Error())
	case errors.Is(err, dispatch.ErrNotFound):
		return status.Error(codes.NotFound, err.Error())
	case errors.Is(err, dispatch.ErrInvalidInput):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, auth.ErrInvalidCredentials):
		return status.Error(codes.Unauthenticated, "invalid credentials")
	default:
		return status.Errorf(codes.Internal, "internal: %v", err)
	}
}
