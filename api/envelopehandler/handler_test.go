package envelopehandler

import (
	"bytes"
	"context"
	"crypto/ecdsa"
	"encoding/hex"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/go-chi/chi/v5"
	"github.com/ruteri/envelope-registry/algorithms"
	"github.com/ruteri/envelope-registry/codec"
	"github.com/ruteri/envelope-registry/cryptoutils"
	"github.com/ruteri/envelope-registry/envelope"
	"github.com/ruteri/envelope-registry/interfaces"
	"github.com/ruteri/envelope-registry/keeper"
	"github.com/ruteri/envelope-registry/membership"
	"github.com/ruteri/envelope-registry/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testServer struct {
	srv       *httptest.Server
	keeper    *keeper.Keeper
	authority *ecdsa.PrivateKey
	user      *ecdsa.PrivateKey
}

func newTestServer(t *testing.T) *testServer {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	authority, err := crypto.GenerateKey()
	require.NoError(t, err)
	user, err := crypto.GenerateKey()
	require.NoError(t, err)

	k, err := keeper.New(keeper.Config{
		KV:         storage.NewMemoryStore(),
		Membership: membership.NewStatic(nil, nil),
		Log:        logger,
		Authority:  cryptoutils.ClientAddress(authority),
		Params: interfaces.Params{
			MaxRecipientsPerEnvelope: 8,
			MaxKeysPerAccount:        2,
			AllowedAlgorithms:        []string{"x25519-chacha20", "mlkem768-aes256gcm"},
		},
	})
	require.NoError(t, err)

	mux := chi.NewRouter()
	NewHandler(k, k, logger).RegisterRoutes(mux)
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	return &testServer{srv: srv, keeper: k, authority: authority, user: user}
}

func (s *testServer) client(key *ecdsa.PrivateKey) *Client {
	return NewClient(s.srv.URL, key)
}

func (s *testServer) post(t *testing.T, path, contentType string, body []byte, sig string) *http.Response {
	req, err := http.NewRequest(http.MethodPost, s.srv.URL+path, bytes.NewReader(body))
	require.NoError(t, err)
	req.Header.Set("Content-Type", contentType)
	if sig != "" {
		req.Header.Set(SenderSignatureHeader, sig)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func TestClientEndToEnd(t *testing.T) {
	s := newTestServer(t)
	ctx := context.Background()
	c := s.client(s.user)
	sender, err := c.Sender()
	require.NoError(t, err)

	pub, priv, err := cryptoutils.GenerateRecipientKey("mlkem768-aes256gcm")
	require.NoError(t, err)
	reg, err := c.RegisterRecipientKey(ctx, &interfaces.RegisterRecipientKey{
		Sender:      sender,
		PublicKey:   pub,
		AlgorithmID: "mlkem768-aes256gcm",
		Label:       "ops",
	})
	require.NoError(t, err)
	assert.Equal(t, interfaces.ComputeFingerprint(pub), reg.KeyFingerprint)

	_, err = c.UpdateKeyLabel(ctx, &interfaces.UpdateKeyLabel{Sender: sender, KeyFingerprint: reg.KeyFingerprint, Label: "ops-2"})
	require.NoError(t, err)

	keys, err := c.GetActiveKeys(sender)
	require.NoError(t, err)
	require.Len(t, keys, 1)
	assert.Equal(t, "ops-2", keys[0].Label)

	// Build locally against the remote state.
	paramsResp, err := c.QueryParams(ctx, &interfaces.QueryParamsRequest{})
	require.NoError(t, err)
	algsResp, err := c.QueryAlgorithms(ctx, &interfaces.QueryAlgorithmsRequest{})
	require.NoError(t, err)
	algs, err := algorithms.NewRegistry(interfaces.FixedParams(paramsResp.Params), algsResp.Algorithms...)
	require.NoError(t, err)

	builder := envelope.NewBuilder(algs, c, c, interfaces.FixedParams(paramsResp.Params), slog.New(slog.NewTextHandler(io.Discard, nil)))
	env, err := builder.Build(ctx, []byte("hello"), "x25519-chacha20",
		interfaces.Specific{Fingerprints: []interfaces.KeyFingerprint{reg.KeyFingerprint}},
		&envelope.SigningMaterial{ClientKey: s.user})
	require.NoError(t, err)

	report, err := c.QueryValidateEnvelope(ctx, &interfaces.QueryValidateEnvelopeRequest{Envelope: *env})
	require.NoError(t, err)
	assert.True(t, report.Report.Valid, report.Report.Error)
	assert.True(t, report.Report.SignatureValid)

	submitted, err := c.SubmitEnvelope(ctx, &interfaces.SubmitEnvelope{Sender: sender, Envelope: *env})
	require.NoError(t, err)

	fetched, err := c.QueryEnvelope(ctx, &interfaces.QueryEnvelopeRequest{EnvelopeID: submitted.EnvelopeID})
	require.NoError(t, err)
	plaintext, err := envelope.Open(&fetched.Envelope, reg.KeyFingerprint, priv, algs)
	require.NoError(t, err)
	assert.Equal(t, []byte("hello"), plaintext)

	_, err = c.RevokeRecipientKey(ctx, &interfaces.RevokeRecipientKey{Sender: sender, KeyFingerprint: reg.KeyFingerprint})
	require.NoError(t, err)
	record, err := c.GetByFingerprint(reg.KeyFingerprint)
	require.NoError(t, err)
	assert.False(t, record.IsActive())

	_, err = c.Resolve(ctx, interfaces.Specific{Fingerprints: []interfaces.KeyFingerprint{reg.KeyFingerprint}})
	assert.ErrorIs(t, err, interfaces.ErrUnknownRecipient)

	// Four messages went out, each with the next sequence filled in by the client.
	seq, err := c.QueryAccountSequence(ctx, &interfaces.QueryAccountSequenceRequest{Address: sender})
	require.NoError(t, err)
	assert.Equal(t, uint64(4), seq.Sequence)

	_, err = c.UpdateKeyLabel(ctx, &interfaces.UpdateKeyLabel{Sender: sender, KeyFingerprint: reg.KeyFingerprint, Label: "late", Sequence: 4})
	assert.ErrorIs(t, err, interfaces.ErrStaleSequence)
}

func TestErrorsCrossTheWire(t *testing.T) {
	s := newTestServer(t)
	ctx := context.Background()
	c := s.client(s.user)
	sender, err := c.Sender()
	require.NoError(t, err)

	_, err = c.GetByFingerprint(interfaces.ComputeFingerprint([]byte("nothing")))
	assert.ErrorIs(t, err, interfaces.ErrNotFound)

	pub, _, err := cryptoutils.GenerateRecipientKey("x25519-chacha20")
	require.NoError(t, err)
	msg := &interfaces.RegisterRecipientKey{Sender: sender, PublicKey: pub, AlgorithmID: "x25519-chacha20"}
	_, err = c.RegisterRecipientKey(ctx, msg)
	require.NoError(t, err)
	_, err = c.RegisterRecipientKey(ctx, msg)
	assert.ErrorIs(t, err, interfaces.ErrDuplicateFingerprint)

	_, err = c.RegisterRecipientKey(ctx, &interfaces.RegisterRecipientKey{Sender: sender, PublicKey: pub[:5], AlgorithmID: "x25519-chacha20"})
	assert.ErrorIs(t, err, interfaces.ErrMalformedKey)

	// The user signs as the authority address but is not it.
	_, err = c.UpdateParams(ctx, &interfaces.UpdateParams{Authority: sender, Params: interfaces.Params{MaxRecipientsPerEnvelope: 1, MaxKeysPerAccount: 1}})
	assert.ErrorIs(t, err, interfaces.ErrUnauthorized)

	_, err = c.SubmitEnvelope(ctx, &interfaces.SubmitEnvelope{Sender: sender, Envelope: interfaces.MultiRecipientEnvelope{Version: 7}})
	assert.ErrorIs(t, err, interfaces.ErrEnvelopeRejected)
}

func TestUpdateParamsByAuthority(t *testing.T) {
	s := newTestServer(t)
	ctx := context.Background()
	c := s.client(s.authority)
	authority, err := c.Sender()
	require.NoError(t, err)

	params := interfaces.Params{
		MaxRecipientsPerEnvelope: 3,
		MaxKeysPerAccount:        1,
		AllowedAlgorithms:        []string{"x25519-chacha20"},
		RequireSignature:         true,
	}
	_, err = c.UpdateParams(ctx, &interfaces.UpdateParams{Authority: authority, Params: params})
	require.NoError(t, err)

	resp, err := s.client(nil).QueryParams(ctx, &interfaces.QueryParamsRequest{})
	require.NoError(t, err)
	assert.Equal(t, params, resp.Params)
}

func TestReplayedRequestRejected(t *testing.T) {
	s := newTestServer(t)
	ctx := context.Background()
	authority := cryptoutils.ClientAddress(s.authority)

	signed := func(msg *interfaces.UpdateParams) ([]byte, []byte, string) {
		body, err := codec.Marshal(msg)
		require.NoError(t, err)
		jsonBody, err := codec.MarshalJSON(msg)
		require.NoError(t, err)
		sig, err := cryptoutils.SignClient(s.authority, body)
		require.NoError(t, err)
		return body, jsonBody, hex.EncodeToString(sig)
	}

	paramsA := interfaces.Params{
		MaxRecipientsPerEnvelope: 8,
		MaxKeysPerAccount:        2,
		AllowedAlgorithms:        []string{"x25519-chacha20", "mlkem768-aes256gcm"},
	}
	paramsB := interfaces.Params{
		MaxRecipientsPerEnvelope: 8,
		MaxKeysPerAccount:        2,
		AllowedAlgorithms:        []string{"mlkem768-aes256gcm"},
		RequireSignature:         true,
	}
	bodyA, jsonA, sigA := signed(&interfaces.UpdateParams{Authority: authority, Params: paramsA, Sequence: 1})
	bodyB, _, sigB := signed(&interfaces.UpdateParams{Authority: authority, Params: paramsB, Sequence: 2})

	steps := []struct {
		name        string
		contentType string
		body        []byte
		sig         string
		status      int
	}{
		{"params A", ContentTypeProtobuf, bodyA, sigA, http.StatusOK},
		{"params B", ContentTypeProtobuf, bodyB, sigB, http.StatusOK},
		{"params A replayed", ContentTypeProtobuf, bodyA, sigA, http.StatusConflict},
		{"params A replayed as JSON", ContentTypeJSON, jsonA, sigA, http.StatusConflict},
		{"params B replayed", ContentTypeProtobuf, bodyB, sigB, http.StatusConflict},
	}
	for _, step := range steps {
		resp := s.post(t, "/api/v1/params", step.contentType, step.body, step.sig)
		respBody, _ := io.ReadAll(resp.Body)
		require.Equal(t, step.status, resp.StatusCode, "%s: %s", step.name, respBody)
	}

	params, err := s.client(nil).QueryParams(ctx, &interfaces.QueryParamsRequest{})
	require.NoError(t, err)
	assert.Equal(t, paramsB, params.Params)

	getResp, err := http.Get(s.srv.URL + "/api/v1/accounts/" + authority.String() + "/sequence")
	require.NoError(t, err)
	defer getResp.Body.Close()
	getBody, err := io.ReadAll(getResp.Body)
	require.NoError(t, err)
	assert.JSONEq(t, `{"sequence":"2"}`, string(getBody))
}

func TestSenderSignature(t *testing.T) {
	s := newTestServer(t)
	sender := cryptoutils.ClientAddress(s.user)
	pub, _, err := cryptoutils.GenerateRecipientKey("x25519-chacha20")
	require.NoError(t, err)
	msg := &interfaces.RegisterRecipientKey{Sender: sender, PublicKey: pub, AlgorithmID: "x25519-chacha20", Sequence: 1}
	body, err := codec.Marshal(msg)
	require.NoError(t, err)

	sign := func(key *ecdsa.PrivateKey, data []byte) string {
		sig, err := cryptoutils.SignClient(key, data)
		require.NoError(t, err)
		return hex.EncodeToString(sig)
	}

	tests := []struct {
		name   string
		sig    string
		status int
	}{
		{"missing", "", http.StatusForbidden},
		{"not hex", "zz", http.StatusUnprocessableEntity},
		{"truncated", sign(s.user, body)[:20], http.StatusUnprocessableEntity},
		{"other signer", sign(s.authority, body), http.StatusForbidden},
		{"other body", sign(s.user, []byte("something else")), http.StatusForbidden},
		{"valid", "0x" + sign(s.user, body), http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := s.post(t, "/api/v1/keys/register", ContentTypeProtobuf, body, tt.sig)
			respBody, _ := io.ReadAll(resp.Body)
			assert.Equal(t, tt.status, resp.StatusCode, string(respBody))
		})
	}
}

func TestJSONRequests(t *testing.T) {
	s := newTestServer(t)
	sender := cryptoutils.ClientAddress(s.user)
	pub, _, err := cryptoutils.GenerateRecipientKey("x25519-chacha20")
	require.NoError(t, err)
	msg := &interfaces.RegisterRecipientKey{Sender: sender, PublicKey: pub, AlgorithmID: "x25519-chacha20", Label: "json", Sequence: 1}

	jsonBody, err := codec.MarshalJSON(msg)
	require.NoError(t, err)
	binaryBody, err := codec.Marshal(msg)
	require.NoError(t, err)
	sig, err := cryptoutils.SignClient(s.user, binaryBody)
	require.NoError(t, err)

	// The signature covers the binary encoding even when the body is JSON.
	resp := s.post(t, "/api/v1/keys/register", ContentTypeJSON, jsonBody, hex.EncodeToString(sig))
	respBody, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(respBody))
	assert.Equal(t, ContentTypeJSON, resp.Header.Get("Content-Type"))

	var reg interfaces.RegisterRecipientKeyResponse
	require.NoError(t, codec.UnmarshalJSON(respBody, &reg))
	assert.Equal(t, interfaces.ComputeFingerprint(pub), reg.KeyFingerprint)

	getResp, err := http.Get(s.srv.URL + "/api/v1/keys/" + sender.String())
	require.NoError(t, err)
	defer getResp.Body.Close()
	getBody, err := io.ReadAll(getResp.Body)
	require.NoError(t, err)
	var keys interfaces.QueryRecipientKeyResponse
	require.NoError(t, codec.UnmarshalJSON(getBody, &keys))
	require.Len(t, keys.Keys, 1)
	assert.Equal(t, "json", keys.Keys[0].Label)
}

func TestBadRequests(t *testing.T) {
	s := newTestServer(t)

	for _, path := range []string{
		"/api/v1/keys/not-an-address",
		"/api/v1/fingerprints/xyz",
		"/api/v1/envelopes/1234",
		"/api/v1/recipients?mode=everyone",
		"/api/v1/recipients?mode=committee&epoch=-1",
		"/api/v1/accounts/0x12/sequence",
	} {
		resp, err := http.Get(s.srv.URL + path)
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode, path)
	}

	resp := s.post(t, "/api/v1/envelopes/validate", ContentTypeJSON, []byte("{not json"), "")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = s.post(t, "/api/v1/keys/register", ContentTypeProtobuf, []byte{0xff, 0xff, 0xff}, "")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestRecipientsQuery(t *testing.T) {
	s := newTestServer(t)
	ctx := context.Background()

	resp, err := http.Get(s.srv.URL + "/api/v1/recipients?mode=committee&epoch=4")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	_, err = s.keeper.BeginEpoch(ctx, 4)
	require.NoError(t, err)
	fps, err := s.client(nil).Resolve(ctx, interfaces.Committee{Epoch: 4})
	require.NoError(t, err)
	assert.Empty(t, fps)

	fps, err = s.client(nil).Resolve(ctx, interfaces.FullValidatorSet{})
	require.NoError(t, err)
	assert.Empty(t, fps)
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err    error
		status int
	}{
		{interfaces.ErrTooManyRecipients, http.StatusBadRequest},
		{interfaces.ErrAlreadyRevoked, http.StatusConflict},
		{interfaces.ErrStaleSequence, http.StatusConflict},
		{&interfaces.UnknownRecipientError{}, http.StatusNotFound},
		{interfaces.ErrDecryptionFailed, http.StatusUnprocessableEntity},
		{interfaces.ErrUnauthorized, http.StatusForbidden},
		{errors.New("disk on fire"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.status, StatusFor(tt.err), tt.err.Error())
	}
}
