package api

import (
	"context"
	"errors"

	"github.com/matheus3301/flowchat/internal/dispatch"
	"github.com/matheus3301/flowchat/internal/ingest"
	"github.com/matheus3301/flowchat/internal/mind2flow"
	"github.com/matheus3301/flowchat/internal/settings"
	"github.com/matheus3301/flowchat/internal/status"
	"github.com/matheus3301/flowchat/internal/store"
	"google.golang.org/grpc/codes"
	grpcstatus "google.golang.org/grpc/status"
)

// Code maps a domain error to the gRPC code reported to clients.
func Code(err error) codes.Code {
	switch {
	case err == nil:
		return codes.OK
	case errors.Is(err, store.ErrNotFound):
		return codes.NotFound
	case errors.Is(err, dispatch.ErrInvalidInput),
		errors.Is(err, ingest.ErrInvalidInbound),
		errors.Is(err, mind2flow.ErrInvalidEndpoint):
		return codes.InvalidArgument
	case errors.Is(err, settings.ErrNotConfigured),
		errors.Is(err, ingest.ErrUnknownContact),
		errors.Is(err, status.ErrInvalidTransition):
		return codes.FailedPrecondition
	case errors.Is(err, context.Canceled):
		return codes.Canceled
	case errors.Is(err, context.DeadlineExceeded):
		return codes.DeadlineExceeded
	default:
		return codes.Internal
	}
}

func toStatus(op string, err error) error {
	return grpcstatus.Errorf(Code(err), "%s: %v", op, err)
}

func invalidArgument(msg string) error {
	return grpcstatus.Error(codes.InvalidArgument, msg)
}
