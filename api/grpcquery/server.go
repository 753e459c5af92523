package grpcquery

import (
	"context"
	"log/slog"

	"github.com/ruteri/envelope-registry/codec"
	"github.com/ruteri/envelope-registry/interfaces"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// Server exposes an interfaces.QueryServer over envelope.v1.Query.
type Server struct {
	UnimplementedQueryServiceServer
	queries interfaces.QueryServer
	log     *slog.Logger
}

func NewServer(queries interfaces.QueryServer, log *slog.Logger) *Server {
	return &Server{queries: queries, log: log}
}

func (s *Server) Params(ctx context.Context, in *wrapperspb.BytesValue) (*wrapperspb.BytesValue, error) {
	return serve(ctx, s, in, s.queries.QueryParams)
}

func (s *Server) Algorithms(ctx context.Context, in *wrapperspb.BytesValue) (*wrapperspb.BytesValue, error) {
	return serve(ctx, s, in, s.queries.QueryAlgorithms)
}

func (s *Server) RecipientKey(ctx context.Context, in *wrapperspb.BytesValue) (*wrapperspb.BytesValue, error) {
	return serve(ctx, s, in, s.queries.QueryRecipientKey)
}

func (s *Server) KeyByFingerprint(ctx context.Context, in *wrapperspb.BytesValue) (*wrapperspb.BytesValue, error) {
	return serve(ctx, s, in, s.queries.QueryKeyByFingerprint)
}

func (s *Server) ValidateEnvelope(ctx context.Context, in *wrapperspb.BytesValue) (*wrapperspb.BytesValue, error) {
	return serve(ctx, s, in, s.queries.QueryValidateEnvelope)
}

func (s *Server) Recipients(ctx context.Context, in *wrapperspb.BytesValue) (*wrapperspb.BytesValue, error) {
	return serve(ctx, s, in, s.queries.QueryRecipients)
}

func (s *Server) Envelope(ctx context.Context, in *wrapperspb.BytesValue) (*wrapperspb.BytesValue, error) {
	return serve(ctx, s, in, s.queries.QueryEnvelope)
}

func (s *Server) AccountSequence(ctx context.Context, in *wrapperspb.BytesValue) (*wrapperspb.BytesValue, error) {
	return serve(ctx, s, in, s.queries.QueryAccountSequence)
}

func serve[Req, Resp any](ctx context.Context, s *Server, in *wrapperspb.BytesValue, query func(context.Context, *Req) (*Resp, error)) (*wrapperspb.BytesValue, error) {
	req := new(Req)
	if err := codec.Unmarshal(in.GetValue(), req); err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	resp, err := query(ctx, req)
	if err != nil {
		code := codeFor(err)
		if code == codes.Internal {
			s.log.Error("Query failed", "err", err)
		}
		return nil, status.Error(code, err.Error())
	}
	out, err := codec.Marshal(resp)
	if err != nil {
		return nil, status.Error(codes.Internal, err.Error())
	}
	return wrapperspb.Bytes(out), nil
}

func codeFor(err error) codes.Code {
	switch interfaces.CategoryOf(err) {
	case interfaces.CategoryPolicy, interfaces.CategoryCrypto:
		return codes.InvalidArgument
	case interfaces.CategoryState:
		return codes.FailedPrecondition
	case interfaces.CategoryLookup:
		return codes.NotFound
	case interfaces.CategoryAuthorization:
		return codes.PermissionDenied
	default:
		return codes.Internal
	}
}
