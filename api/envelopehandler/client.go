package envelopehandler

import (
	"bytes"
	"context"
	"crypto/ecdsa"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/ruteri/envelope-registry/codec"
	"github.com/ruteri/envelope-registry/cryptoutils"
	"github.com/ruteri/envelope-registry/interfaces"
)

// Client talks to a Handler using the binary encoding. Errors returned by the
// server are mapped back to their sentinels, so errors.Is works across the wire.
//
// A message sent with Sequence 0 goes out with one past the sender's last
// accepted sequence, fetched from the node. The caller's message is left as is.
type Client struct {
	BaseURL string
	Client  *http.Client

	// Key signs state-mutating requests. Its address must be the message sender.
	Key *ecdsa.PrivateKey
}

func NewClient(baseURL string, key *ecdsa.PrivateKey) *Client {
	return &Client{
		BaseURL: strings.TrimSuffix(baseURL, "/"),
		Client:  http.DefaultClient,
		Key:     key,
	}
}

// Sender returns the address requests are signed as.
func (c *Client) Sender() (interfaces.Address, error) {
	if c.Key == nil {
		return interfaces.Address{}, errors.New("client has no signing key")
	}
	return cryptoutils.ClientAddress(c.Key), nil
}

func (c *Client) RegisterRecipientKey(ctx context.Context, msg *interfaces.RegisterRecipientKey) (*interfaces.RegisterRecipientKeyResponse, error) {
	m := *msg
	if err := c.fillSequence(ctx, m.Sender, &m.Sequence); err != nil {
		return nil, err
	}
	return call[interfaces.RegisterRecipientKeyResponse](ctx, c, http.MethodPost, "/api/v1/keys/register", &m, true)
}

func (c *Client) RevokeRecipientKey(ctx context.Context, msg *interfaces.RevokeRecipientKey) (*interfaces.RevokeRecipientKeyResponse, error) {
	m := *msg
	if err := c.fillSequence(ctx, m.Sender, &m.Sequence); err != nil {
		return nil, err
	}
	return call[interfaces.RevokeRecipientKeyResponse](ctx, c, http.MethodPost, "/api/v1/keys/revoke", &m, true)
}

func (c *Client) UpdateKeyLabel(ctx context.Context, msg *interfaces.UpdateKeyLabel) (*interfaces.UpdateKeyLabelResponse, error) {
	m := *msg
	if err := c.fillSequence(ctx, m.Sender, &m.Sequence); err != nil {
		return nil, err
	}
	return call[interfaces.UpdateKeyLabelResponse](ctx, c, http.MethodPost, "/api/v1/keys/label", &m, true)
}

func (c *Client) UpdateParams(ctx context.Context, msg *interfaces.UpdateParams) (*interfaces.UpdateParamsResponse, error) {
	m := *msg
	if err := c.fillSequence(ctx, m.Authority, &m.Sequence); err != nil {
		return nil, err
	}
	return call[interfaces.UpdateParamsResponse](ctx, c, http.MethodPost, "/api/v1/params", &m, true)
}

func (c *Client) SubmitEnvelope(ctx context.Context, msg *interfaces.SubmitEnvelope) (*interfaces.SubmitEnvelopeResponse, error) {
	m := *msg
	if err := c.fillSequence(ctx, m.Sender, &m.Sequence); err != nil {
		return nil, err
	}
	return call[interfaces.SubmitEnvelopeResponse](ctx, c, http.MethodPost, "/api/v1/envelopes", &m, true)
}

// fillSequence sets *seq to the sender's next sequence unless it is already set.
func (c *Client) fillSequence(ctx context.Context, sender interfaces.Address, seq *uint64) error {
	if *seq != 0 {
		return nil
	}
	resp, err := c.QueryAccountSequence(ctx, &interfaces.QueryAccountSequenceRequest{Address: sender})
	if err != nil {
		return fmt.Errorf("could not fetch sequence of %s: %w", sender, err)
	}
	*seq = resp.Sequence + 1
	return nil
}

func (c *Client) QueryParams(ctx context.Context, req *interfaces.QueryParamsRequest) (*interfaces.QueryParamsResponse, error) {
	return call[interfaces.QueryParamsResponse](ctx, c, http.MethodGet, "/api/v1/params", nil, false)
}

func (c *Client) QueryAlgorithms(ctx context.Context, req *interfaces.QueryAlgorithmsRequest) (*interfaces.QueryAlgorithmsResponse, error) {
	return call[interfaces.QueryAlgorithmsResponse](ctx, c, http.MethodGet, "/api/v1/algorithms", nil, false)
}

func (c *Client) QueryRecipientKey(ctx context.Context, req *interfaces.QueryRecipientKeyRequest) (*interfaces.QueryRecipientKeyResponse, error) {
	return call[interfaces.QueryRecipientKeyResponse](ctx, c, http.MethodGet, "/api/v1/keys/"+req.Address.String(), nil, false)
}

func (c *Client) QueryKeyByFingerprint(ctx context.Context, req *interfaces.QueryKeyByFingerprintRequest) (*interfaces.QueryKeyByFingerprintResponse, error) {
	return call[interfaces.QueryKeyByFingerprintResponse](ctx, c, http.MethodGet, "/api/v1/fingerprints/"+url.PathEscape(req.Fingerprint.String()), nil, false)
}

func (c *Client) QueryValidateEnvelope(ctx context.Context, req *interfaces.QueryValidateEnvelopeRequest) (*interfaces.QueryValidateEnvelopeResponse, error) {
	return call[interfaces.QueryValidateEnvelopeResponse](ctx, c, http.MethodPost, "/api/v1/envelopes/validate", req, false)
}

func (c *Client) QueryRecipients(ctx context.Context, req *interfaces.QueryRecipientsRequest) (*interfaces.QueryRecipientsResponse, error) {
	q := url.Values{}
	q.Set("mode", req.Mode.String())
	if req.Mode == interfaces.RecipientModeCommittee {
		q.Set("epoch", strconv.FormatUint(req.CommitteeEpoch, 10))
	}
	for _, fp := range req.Fingerprints {
		q.Add("fingerprint", fp.String())
	}

	return call[interfaces.QueryRecipientsResponse](ctx, c, http.MethodGet, "/api/v1/recipients?"+q.Encode(), nil, false)
}

func (c *Client) QueryEnvelope(ctx context.Context, req *interfaces.QueryEnvelopeRequest) (*interfaces.QueryEnvelopeResponse, error) {
	return call[interfaces.QueryEnvelopeResponse](ctx, c, http.MethodGet, "/api/v1/envelopes/"+req.EnvelopeID.String(), nil, false)
}

func (c *Client) QueryAccountSequence(ctx context.Context, req *interfaces.QueryAccountSequenceRequest) (*interfaces.QueryAccountSequenceResponse, error) {
	return call[interfaces.QueryAccountSequenceResponse](ctx, c, http.MethodGet, "/api/v1/accounts/"+req.Address.String()+"/sequence", nil, false)
}

// GetActiveKeys implements interfaces.RecipientKeyReader against the server.
func (c *Client) GetActiveKeys(address interfaces.Address) ([]interfaces.RecipientKeyRecord, error) {
	resp, err := c.QueryRecipientKey(context.Background(), &interfaces.QueryRecipientKeyRequest{Address: address})
	if err != nil {
		return nil, err
	}
	return resp.Keys, nil
}

func (c *Client) GetByFingerprint(fp interfaces.KeyFingerprint) (interfaces.RecipientKeyRecord, error) {
	resp, err := c.QueryKeyByFingerprint(context.Background(), &interfaces.QueryKeyByFingerprintRequest{Fingerprint: fp})
	if err != nil {
		return interfaces.RecipientKeyRecord{}, err
	}
	return resp.Key, nil
}

// Resolve implements interfaces.RecipientResolver against the server.
func (c *Client) Resolve(ctx context.Context, selection interfaces.RecipientSelection) ([]interfaces.KeyFingerprint, error) {
	req := &interfaces.QueryRecipientsRequest{}
	switch s := selection.(type) {
	case interfaces.FullValidatorSet:
		req.Mode = interfaces.RecipientModeFullValidatorSet
	case interfaces.Committee:
		req.Mode = interfaces.RecipientModeCommittee
		req.CommitteeEpoch = s.Epoch
	case interfaces.Specific:
		req.Mode = interfaces.RecipientModeSpecific
		req.Fingerprints = s.Fingerprints
	default:
		return nil, fmt.Errorf("%w: %v", interfaces.ErrInvalidRecipientMode, selection)
	}
	resp, err := c.QueryRecipients(ctx, req)
	if err != nil {
		return nil, err
	}
	return resp.Fingerprints, nil
}

func call[Resp any](ctx context.Context, c *Client, method, path string, reqMsg any, sign bool) (*Resp, error) {
	resp := new(Resp)
	if err := c.do(ctx, method, path, reqMsg, resp, sign); err != nil {
		return nil, err
	}
	return resp, nil
}

func (c *Client) do(ctx context.Context, method, path string, reqMsg, respMsg any, sign bool) error {
	var body []byte
	if reqMsg != nil {
		var err error
		body, err = codec.Marshal(reqMsg)
		if err != nil {
			return err
		}
	}

	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("could not initialize request: %w", err)
	}
	req.Header.Set("Accept", ContentTypeProtobuf)
	if reqMsg != nil {
		req.Header.Set("Content-Type", ContentTypeProtobuf)
	}

	if sign {
		if c.Key == nil {
			return errors.New("client has no signing key")
		}
		sig, err := cryptoutils.SignClient(c.Key, body)
		if err != nil {
			return err
		}
		req.Header.Set(SenderSignatureHeader, hex.EncodeToString(sig))
	}

	httpClient := c.Client
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	resp, err := httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("could not request %s: %w", path, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("could not read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return interfaces.ErrorFromMessage(string(respBody))
	}

	if err := codec.Unmarshal(respBody, respMsg); err != nil {
		return fmt.Errorf("could not parse response: %w", err)
	}
	return nil
}
