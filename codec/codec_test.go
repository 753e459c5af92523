package codec

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/ruteri/envelope-registry/interfaces"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/encoding/protowire"
	"pgregory.net/rapid"
)

var testFingerprint = interfaces.ComputeFingerprint([]byte("recipient"))

func testEnvelope() *interfaces.MultiRecipientEnvelope {
	return &interfaces.MultiRecipientEnvelope{
		Version:           interfaces.EnvelopeVersion,
		AlgorithmID:       "x25519-chacha20",
		AlgorithmVersion:  1,
		RecipientMode:     interfaces.RecipientModeCommittee,
		PayloadCiphertext: []byte("ciphertext"),
		PayloadNonce:      make([]byte, 12),
		WrappedKeys: []interfaces.WrappedKeyEntry{{
			RecipientID:     testFingerprint,
			WrappedKey:      []byte("wrapped"),
			Algorithm:       "x25519-chacha20",
			EphemeralPubKey: []byte("ephemeral"),
		}},
		ClientID:       "0x000000000000000000000000000000000000dEaD",
		Metadata:       map[string]string{"b": "2", "a": "1", "c_d": "3"},
		CommitteeEpoch: 1 << 40,
	}
}

func TestBinaryRoundTrip(t *testing.T) {
	env := testEnvelope()
	data, err := Marshal(env)
	require.NoError(t, err)

	var decoded interfaces.MultiRecipientEnvelope
	require.NoError(t, Unmarshal(data, &decoded))
	require.Equal(t, *env, decoded)
}

func TestBinaryDeterministic(t *testing.T) {
	first, err := Marshal(testEnvelope())
	require.NoError(t, err)
	for i := 0; i < 20; i++ {
		again, err := Marshal(testEnvelope())
		require.NoError(t, err)
		require.Equal(t, first, again)
	}
}

func TestBinarySkipsUnknownFields(t *testing.T) {
	data, err := Marshal(&interfaces.RegisterRecipientKeyResponse{KeyFingerprint: testFingerprint})
	require.NoError(t, err)

	data = protowire.AppendTag(data, 99, protowire.VarintType)
	data = protowire.AppendVarint(data, 7)
	data = protowire.AppendTag(data, 98, protowire.Fixed32Type)
	data = protowire.AppendFixed32(data, 7)

	var resp interfaces.RegisterRecipientKeyResponse
	require.NoError(t, Unmarshal(data, &resp))
	require.Equal(t, testFingerprint, resp.KeyFingerprint)
}

func TestBinaryMalformed(t *testing.T) {
	var env interfaces.MultiRecipientEnvelope
	require.ErrorIs(t, Unmarshal([]byte{0x0a, 0x05, 0x01}, &env), ErrMalformed)

	// Version encoded as bytes instead of varint.
	bad := protowire.AppendTag(nil, 1, protowire.BytesType)
	bad = protowire.AppendBytes(bad, []byte("x"))
	require.ErrorIs(t, Unmarshal(bad, &env), ErrMalformed)
}

func TestUnsupportedType(t *testing.T) {
	_, err := Marshal(struct{}{})
	require.ErrorIs(t, err, ErrUnsupportedType)
	_, err = MarshalJSON(&struct{}{})
	require.ErrorIs(t, err, ErrUnsupportedType)
}

func TestJSONShape(t *testing.T) {
	data, err := MarshalJSON(testEnvelope())
	require.NoError(t, err)

	var raw map[string]any
	require.NoError(t, json.Unmarshal(data, &raw))
	require.Equal(t, "1099511627776", raw["committeeEpoch"])
	require.Equal(t, "RECIPIENT_MODE_COMMITTEE", raw["recipientMode"])
	require.Equal(t, float64(1), raw["version"])
	require.Equal(t, "Y2lwaGVydGV4dA==", raw["payloadCiphertext"])
	require.Contains(t, raw, "wrappedKeys")
	require.NotContains(t, raw, "clientSignature")

	var decoded interfaces.MultiRecipientEnvelope
	require.NoError(t, UnmarshalJSON(data, &decoded))
	require.Equal(t, *testEnvelope(), decoded)
}

func TestJSONAcceptsSnakeCase(t *testing.T) {
	in := `{
		"version": 1,
		"algorithm_id": "x25519-chacha20",
		"algorithm_version": "1",
		"recipient_mode": "committee",
		"committee_epoch": 42,
		"wrapped_keys": [{"recipient_id": "` + string(testFingerprint) + `", "ephemeral_pub_key": "AQI="}],
		"metadata": {"trace_id": "abc"}
	}`
	var env interfaces.MultiRecipientEnvelope
	require.NoError(t, UnmarshalJSON([]byte(in), &env))

	require.Equal(t, "x25519-chacha20", env.AlgorithmID)
	require.Equal(t, uint32(1), env.AlgorithmVersion)
	require.Equal(t, interfaces.RecipientModeCommittee, env.RecipientMode)
	require.Equal(t, uint64(42), env.CommitteeEpoch)
	require.Len(t, env.WrappedKeys, 1)
	require.Equal(t, testFingerprint, env.WrappedKeys[0].RecipientID)
	require.Equal(t, []byte{1, 2}, env.WrappedKeys[0].EphemeralPubKey)
	// Metadata keys are user data and stay untouched.
	require.Equal(t, map[string]string{"trace_id": "abc"}, env.Metadata)
}

func TestJSONNumericMode(t *testing.T) {
	var req interfaces.QueryRecipientsRequest
	require.NoError(t, UnmarshalJSON([]byte(`{"mode": 3, "fingerprints": ["`+string(testFingerprint)+`"]}`), &req))
	require.Equal(t, interfaces.RecipientModeSpecific, req.Mode)
	require.Equal(t, []interfaces.KeyFingerprint{testFingerprint}, req.Fingerprints)

	require.Error(t, UnmarshalJSON([]byte(`{"mode": "sideways"}`), &req))
}

func TestJSONDuplicateSpelling(t *testing.T) {
	var env interfaces.MultiRecipientEnvelope
	err := UnmarshalJSON([]byte(`{"algorithm_id": "a", "algorithmId": "b"}`), &env)
	require.ErrorIs(t, err, ErrMalformed)
}

func TestJSONAddresses(t *testing.T) {
	sender, err := interfaces.NewAddressFromHex("0x000000000000000000000000000000000000dead")
	require.NoError(t, err)

	msg := &interfaces.RegisterRecipientKey{Sender: sender, PublicKey: []byte{1}, AlgorithmID: "x25519-chacha20", Label: "ops"}
	data, err := MarshalJSON(msg)
	require.NoError(t, err)
	require.True(t, strings.Contains(string(data), `"sender":"0x000000000000000000000000000000000000dEaD"`), string(data))

	var decoded interfaces.RegisterRecipientKey
	require.NoError(t, UnmarshalJSON(data, &decoded))
	require.Equal(t, *msg, decoded)

	require.Error(t, UnmarshalJSON([]byte(`{"sender": "0x1234"}`), &decoded))
}

func TestQueryResponses(t *testing.T) {
	resp := &interfaces.QueryValidateEnvelopeResponse{Report: interfaces.ValidationReport{
		Error:          "keys",
		RecipientCount: 2,
		Algorithm:      "x25519-chacha20",
		SignatureValid: true,
		MissingKeys:    []interfaces.KeyFingerprint{testFingerprint},
	}}

	bin, err := Marshal(resp)
	require.NoError(t, err)
	var fromBin interfaces.QueryValidateEnvelopeResponse
	require.NoError(t, Unmarshal(bin, &fromBin))
	require.Equal(t, *resp, fromBin)

	js, err := MarshalJSON(resp)
	require.NoError(t, err)
	var fromJS interfaces.QueryValidateEnvelopeResponse
	require.NoError(t, UnmarshalJSON(js, &fromJS))
	require.Equal(t, *resp, fromJS)
}

// The sequence is part of the signed bytes, so two messages differing only in
// sequence never share a signature.
func TestMessageSequence(t *testing.T) {
	sender := interfaces.Address{0xde, 0xad}
	tests := []struct {
		name string
		msg  func(seq uint64) any
		into func() any
	}{
		{"register", func(seq uint64) any {
			return &interfaces.RegisterRecipientKey{Sender: sender, PublicKey: []byte{1}, AlgorithmID: "x25519-chacha20", Sequence: seq}
		}, func() any { return &interfaces.RegisterRecipientKey{} }},
		{"revoke", func(seq uint64) any {
			return &interfaces.RevokeRecipientKey{Sender: sender, KeyFingerprint: testFingerprint, Sequence: seq}
		}, func() any { return &interfaces.RevokeRecipientKey{} }},
		{"label", func(seq uint64) any {
			return &interfaces.UpdateKeyLabel{Sender: sender, KeyFingerprint: testFingerprint, Label: "ops", Sequence: seq}
		}, func() any { return &interfaces.UpdateKeyLabel{} }},
		{"params", func(seq uint64) any {
			return &interfaces.UpdateParams{Authority: sender, Params: interfaces.Params{MaxRecipientsPerEnvelope: 3}, Sequence: seq}
		}, func() any { return &interfaces.UpdateParams{} }},
		{"submit", func(seq uint64) any {
			return &interfaces.SubmitEnvelope{Sender: sender, Envelope: *testEnvelope(), Sequence: seq}
		}, func() any { return &interfaces.SubmitEnvelope{} }},
		{"sequence response", func(seq uint64) any {
			return &interfaces.QueryAccountSequenceResponse{Sequence: seq}
		}, func() any { return &interfaces.QueryAccountSequenceResponse{} }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			first, err := Marshal(tt.msg(7))
			require.NoError(t, err)
			second, err := Marshal(tt.msg(8))
			require.NoError(t, err)
			require.NotEqual(t, first, second)

			fromBin := tt.into()
			require.NoError(t, Unmarshal(first, fromBin))
			require.Equal(t, tt.msg(7), fromBin)

			js, err := MarshalJSON(tt.msg(1 << 60))
			require.NoError(t, err)
			require.Contains(t, string(js), `"sequence":"1152921504606846976"`)
			fromJS := tt.into()
			require.NoError(t, UnmarshalJSON(js, fromJS))
			require.Equal(t, tt.msg(1<<60), fromJS)
		})
	}
}

func envelopeGen() *rapid.Generator[*interfaces.MultiRecipientEnvelope] {
	return rapid.Custom(func(t *rapid.T) *interfaces.MultiRecipientEnvelope {
		env := &interfaces.MultiRecipientEnvelope{
			Version:           rapid.Uint32().Draw(t, "version"),
			AlgorithmID:       rapid.String().Draw(t, "algorithm"),
			AlgorithmVersion:  rapid.Uint32().Draw(t, "algorithmVersion"),
			RecipientMode:     interfaces.RecipientMode(rapid.IntRange(0, 3).Draw(t, "mode")),
			PayloadCiphertext: rapid.SliceOf(rapid.Byte()).Draw(t, "ciphertext"),
			PayloadNonce:      rapid.SliceOf(rapid.Byte()).Draw(t, "nonce"),
			ClientSignature:   rapid.SliceOf(rapid.Byte()).Draw(t, "clientSig"),
			ClientID:          rapid.String().Draw(t, "clientID"),
			Metadata:          rapid.MapOf(rapid.String(), rapid.String()).Draw(t, "metadata"),
			CommitteeEpoch:    rapid.Uint64().Draw(t, "epoch"),
		}
		n := rapid.IntRange(0, 4).Draw(t, "wraps")
		for i := 0; i < n; i++ {
			env.WrappedKeys = append(env.WrappedKeys, interfaces.WrappedKeyEntry{
				RecipientID:     interfaces.KeyFingerprint(rapid.StringMatching(`[0-9a-f]{64}`).Draw(t, "fp")),
				WrappedKey:      rapid.SliceOf(rapid.Byte()).Draw(t, "wrapped"),
				Algorithm:       rapid.String().Draw(t, "wrapAlgorithm"),
				EphemeralPubKey: rapid.SliceOf(rapid.Byte()).Draw(t, "ephemeral"),
			})
		}
		return env
	})
}

// Decoding and re-encoding reproduces the exact bytes in both encodings.
func TestReencodeIsStable(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		env := envelopeGen().Draw(t, "envelope")

		bin, err := Marshal(env)
		require.NoError(t, err)
		var fromBin interfaces.MultiRecipientEnvelope
		require.NoError(t, Unmarshal(bin, &fromBin))
		again, err := Marshal(&fromBin)
		require.NoError(t, err)
		require.Equal(t, bin, again)

		js, err := MarshalJSON(env)
		require.NoError(t, err)
		var fromJS interfaces.MultiRecipientEnvelope
		require.NoError(t, UnmarshalJSON(js, &fromJS))
		jsAgain, err := MarshalJSON(&fromJS)
		require.NoError(t, err)
		require.Equal(t, js, jsAgain)

		// Both encodings describe the same value.
		binFromJS, err := Marshal(&fromJS)
		require.NoError(t, err)
		require.Equal(t, bin, binFromJS)
	})
}
