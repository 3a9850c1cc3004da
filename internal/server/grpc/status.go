package grpc

import (
	"errors"
	"time"

	"github.com/dmitrijs2005/gophauth/internal/common"
	"google.golang.org/genproto/googleapis/rpc/errdetails"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/durationpb"
)

// StatusFromError maps a service error onto a gRPC status. Internal faults
// get a fixed message; the cause stays in the server log. A locked account
// carries a RetryInfo detail with the remaining lock time.
func StatusFromError(err error) error {
	switch common.Kind(err) {
	case common.KindNone:
		return nil
	case common.KindValidation:
		return status.Error(codes.InvalidArgument, err.Error())
	case common.KindConflict:
		return status.Error(codes.AlreadyExists, "already exists")
	case common.KindInvalidCredentials:
		return status.Error(codes.Unauthenticated, "invalid credentials")
	case common.KindAccountLocked:
		return lockedStatus(err)
	case common.KindTokenInvalid:
		return status.Error(codes.Unauthenticated, "invalid token")
	case common.KindNotFound:
		return status.Error(codes.NotFound, "not found")
	case common.KindForbidden:
		return status.Error(codes.PermissionDenied, "forbidden")
	default:
		return status.Error(codes.Internal, "internal error")
	}
}

func lockedStatus(err error) error {
	st := status.New(codes.ResourceExhausted, "account locked")

	var locked *common.AccountLockedError
	if !errors.As(err, &locked) {
		return st.Err()
	}

	delay := time.Duration(locked.RemainingSeconds()) * time.Second
	detailed, derr := st.WithDetails(&errdetails.RetryInfo{RetryDelay: durationpb.New(delay)})
	if derr != nil {
		return st.Err()
	}
	return detailed.Err()
}
