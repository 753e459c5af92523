package grpcquery

import (
	"context"
	"fmt"
	"time"

	"github.com/ruteri/envelope-registry/codec"
	"github.com/ruteri/envelope-registry/interfaces"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// Client implements interfaces.QueryServer over envelope.v1.Query.
type Client struct {
	cc     *grpc.ClientConn
	client QueryServiceClient

	// Timeout applies per RPC when non-zero.
	Timeout time.Duration
}

type DialOptions struct {
	// MaxMsgBytes sets both send and receive limits when non-zero.
	MaxMsgBytes int

	// Extra is appended to the dial options, e.g. a custom dialer in tests.
	Extra []grpc.DialOption
}

// Dial creates a plaintext client for target.
func Dial(target string, opts DialOptions) (*Client, error) {
	dialOpts := []grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	}
	if opts.MaxMsgBytes > 0 {
		dialOpts = append(dialOpts,
			grpc.WithDefaultCallOptions(
				grpc.MaxCallRecvMsgSize(opts.MaxMsgBytes),
				grpc.MaxCallSendMsgSize(opts.MaxMsgBytes),
			),
		)
	}
	dialOpts = append(dialOpts, opts.Extra...)

	cc, err := grpc.NewClient(target, dialOpts...)
	if err != nil {
		return nil, fmt.Errorf("could not create grpc client: %w", err)
	}
	return &Client{cc: cc, client: NewQueryServiceClient(cc)}, nil
}

func (c *Client) Close() error {
	if c == nil || c.cc == nil {
		return nil
	}
	return c.cc.Close()
}

func (c *Client) QueryParams(ctx context.Context, req *interfaces.QueryParamsRequest) (*interfaces.QueryParamsResponse, error) {
	return invoke[interfaces.QueryParamsResponse](ctx, c, c.client.Params, req)
}

func (c *Client) QueryAlgorithms(ctx context.Context, req *interfaces.QueryAlgorithmsRequest) (*interfaces.QueryAlgorithmsResponse, error) {
	return invoke[interfaces.QueryAlgorithmsResponse](ctx, c, c.client.Algorithms, req)
}

func (c *Client) QueryRecipientKey(ctx context.Context, req *interfaces.QueryRecipientKeyRequest) (*interfaces.QueryRecipientKeyResponse, error) {
	return invoke[interfaces.QueryRecipientKeyResponse](ctx, c, c.client.RecipientKey, req)
}

func (c *Client) QueryKeyByFingerprint(ctx context.Context, req *interfaces.QueryKeyByFingerprintRequest) (*interfaces.QueryKeyByFingerprintResponse, error) {
	return invoke[interfaces.QueryKeyByFingerprintResponse](ctx, c, c.client.KeyByFingerprint, req)
}

func (c *Client) QueryValidateEnvelope(ctx context.Context, req *interfaces.QueryValidateEnvelopeRequest) (*interfaces.QueryValidateEnvelopeResponse, error) {
	return invoke[interfaces.QueryValidateEnvelopeResponse](ctx, c, c.client.ValidateEnvelope, req)
}

func (c *Client) QueryRecipients(ctx context.Context, req *interfaces.QueryRecipientsRequest) (*interfaces.QueryRecipientsResponse, error) {
	return invoke[interfaces.QueryRecipientsResponse](ctx, c, c.client.Recipients, req)
}

func (c *Client) QueryEnvelope(ctx context.Context, req *interfaces.QueryEnvelopeRequest) (*interfaces.QueryEnvelopeResponse, error) {
	return invoke[interfaces.QueryEnvelopeResponse](ctx, c, c.client.Envelope, req)
}

func (c *Client) QueryAccountSequence(ctx context.Context, req *interfaces.QueryAccountSequenceRequest) (*interfaces.QueryAccountSequenceResponse, error) {
	return invoke[interfaces.QueryAccountSequenceResponse](ctx, c, c.client.AccountSequence, req)
}

type rpc func(context.Context, *wrapperspb.BytesValue, ...grpc.CallOption) (*wrapperspb.BytesValue, error)

func invoke[Resp any](ctx context.Context, c *Client, method rpc, req any) (*Resp, error) {
	in, err := codec.Marshal(req)
	if err != nil {
		return nil, err
	}

	if c.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.Timeout)
		defer cancel()
	}

	out, err := method(ctx, wrapperspb.Bytes(in))
	if err != nil {
		return nil, mapRPC(err)
	}

	resp := new(Resp)
	if err := codec.Unmarshal(out.GetValue(), resp); err != nil {
		return nil, fmt.Errorf("could not parse response: %w", err)
	}
	return resp, nil
}

// mapRPC recovers the sentinel error from a status message.
func mapRPC(err error) error {
	st, ok := status.FromError(err)
	if !ok {
		return err
	}
	return interfaces.ErrorFromMessage(st.Message())
}
