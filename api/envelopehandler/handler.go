package envelopehandler

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/ruteri/envelope-registry/codec"
	"github.com/ruteri/envelope-registry/cryptoutils"
	"github.com/ruteri/envelope-registry/interfaces"
)

const (
	ContentTypeJSON     = "application/json"
	ContentTypeProtobuf = "application/x-protobuf"

	// SenderSignatureHeader carries the hex secp256k1 signature over
	// keccak256 of the binary encoding of a state-mutating message.
	SenderSignatureHeader = "X-Sender-Signature"

	maxBodySize = 8 << 20
)

// Handler serves the envelope registry over HTTP.
//
// State-mutating requests must be signed by the message sender (the authority
// for params updates) and carry a sequence above the sender's last accepted
// one, so a captured request cannot be applied twice. The body is decoded according to Content-Type and the
// response encoded according to Accept; JSON is the default for both.
type Handler struct {
	msgs    interfaces.MsgServer
	queries interfaces.QueryServer
	log     *slog.Logger
}

func NewHandler(msgs interfaces.MsgServer, queries interfaces.QueryServer, log *slog.Logger) *Handler {
	return &Handler{
		msgs:    msgs,
		queries: queries,
		log:     log,
	}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/keys/register", h.HandleRegisterKey)
		r.Post("/keys/revoke", h.HandleRevokeKey)
		r.Post("/keys/label", h.HandleUpdateKeyLabel)
		r.Post("/params", h.HandleUpdateParams)
		r.Post("/envelopes", h.HandleSubmitEnvelope)
		r.Post("/envelopes/validate", h.HandleValidateEnvelope)

		r.Get("/params", h.HandleParams)
		r.Get("/algorithms", h.HandleAlgorithms)
		r.Get("/keys/{address}", h.HandleRecipientKeys)
		r.Get("/fingerprints/{fingerprint}", h.HandleKeyByFingerprint)
		r.Get("/envelopes/{id}", h.HandleEnvelope)
		r.Get("/recipients", h.HandleRecipients)
		r.Get("/accounts/{address}/sequence", h.HandleAccountSequence)
	})
}

// HandleRegisterKey registers a recipient public key for the sender.
//
// URL format: POST /api/v1/keys/register
// Response: RegisterRecipientKeyResponse with the key fingerprint
func (h *Handler) HandleRegisterKey(w http.ResponseWriter, r *http.Request) {
	handleMsg(h, w, r,
		func(m *interfaces.RegisterRecipientKey) interfaces.Address { return m.Sender },
		h.msgs.RegisterRecipientKey)
}

func (h *Handler) HandleRevokeKey(w http.ResponseWriter, r *http.Request) {
	handleMsg(h, w, r,
		func(m *interfaces.RevokeRecipientKey) interfaces.Address { return m.Sender },
		h.msgs.RevokeRecipientKey)
}

func (h *Handler) HandleUpdateKeyLabel(w http.ResponseWriter, r *http.Request) {
	handleMsg(h, w, r,
		func(m *interfaces.UpdateKeyLabel) interfaces.Address { return m.Sender },
		h.msgs.UpdateKeyLabel)
}

// HandleUpdateParams replaces the params. The request must be signed by the authority.
func (h *Handler) HandleUpdateParams(w http.ResponseWriter, r *http.Request) {
	handleMsg(h, w, r,
		func(m *interfaces.UpdateParams) interfaces.Address { return m.Authority },
		h.msgs.UpdateParams)
}

// HandleSubmitEnvelope validates and accepts an envelope.
//
// URL format: POST /api/v1/envelopes
// Response: SubmitEnvelopeResponse with the content-addressed envelope id.
// An envelope failing validation is rejected with 400 and the first failure.
func (h *Handler) HandleSubmitEnvelope(w http.ResponseWriter, r *http.Request) {
	handleMsg(h, w, r,
		func(m *interfaces.SubmitEnvelope) interfaces.Address { return m.Sender },
		h.msgs.SubmitEnvelope)
}

// HandleValidateEnvelope validates an envelope without accepting it. The
// response is always a report; validation failures are not HTTP errors.
func (h *Handler) HandleValidateEnvelope(w http.ResponseWriter, r *http.Request) {
	var req interfaces.QueryValidateEnvelopeRequest
	if err := decodeBody(r, &req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	h.respond(w, r, func(ctx context.Context) (any, error) {
		return h.queries.QueryValidateEnvelope(ctx, &req)
	})
}

func (h *Handler) HandleParams(w http.ResponseWriter, r *http.Request) {
	h.respond(w, r, func(ctx context.Context) (any, error) {
		return h.queries.QueryParams(ctx, &interfaces.QueryParamsRequest{})
	})
}

func (h *Handler) HandleAlgorithms(w http.ResponseWriter, r *http.Request) {
	h.respond(w, r, func(ctx context.Context) (any, error) {
		return h.queries.QueryAlgorithms(ctx, &interfaces.QueryAlgorithmsRequest{})
	})
}

// HandleRecipientKeys returns the active keys of an address.
//
// URL format: GET /api/v1/keys/{address}
func (h *Handler) HandleRecipientKeys(w http.ResponseWriter, r *http.Request) {
	address, err := interfaces.NewAddressFromHex(chi.URLParam(r, "address"))
	if err != nil {
		http.Error(w, fmt.Errorf("invalid address: %w", err).Error(), http.StatusBadRequest)
		return
	}
	h.respond(w, r, func(ctx context.Context) (any, error) {
		return h.queries.QueryRecipientKey(ctx, &interfaces.QueryRecipientKeyRequest{Address: address})
	})
}

// HandleKeyByFingerprint returns a key, revoked or not.
//
// URL format: GET /api/v1/fingerprints/{fingerprint}
func (h *Handler) HandleKeyByFingerprint(w http.ResponseWriter, r *http.Request) {
	fp, err := interfaces.NewKeyFingerprint(chi.URLParam(r, "fingerprint"))
	if err != nil {
		http.Error(w, fmt.Errorf("invalid fingerprint: %w", err).Error(), http.StatusBadRequest)
		return
	}
	h.respond(w, r, func(ctx context.Context) (any, error) {
		return h.queries.QueryKeyByFingerprint(ctx, &interfaces.QueryKeyByFingerprintRequest{Fingerprint: fp})
	})
}

// HandleEnvelope returns an accepted envelope by its content id.
//
// URL format: GET /api/v1/envelopes/{id}
func (h *Handler) HandleEnvelope(w http.ResponseWriter, r *http.Request) {
	id, err := interfaces.NewContentIDFromHex(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, fmt.Errorf("invalid envelope id: %w", err).Error(), http.StatusBadRequest)
		return
	}
	h.respond(w, r, func(ctx context.Context) (any, error) {
		return h.queries.QueryEnvelope(ctx, &interfaces.QueryEnvelopeRequest{EnvelopeID: id})
	})
}

// HandleAccountSequence returns the last sequence accepted from an address.
//
// URL format: GET /api/v1/accounts/{address}/sequence
func (h *Handler) HandleAccountSequence(w http.ResponseWriter, r *http.Request) {
	address, err := interfaces.NewAddressFromHex(chi.URLParam(r, "address"))
	if err != nil {
		http.Error(w, fmt.Errorf("invalid address: %w", err).Error(), http.StatusBadRequest)
		return
	}
	h.respond(w, r, func(ctx context.Context) (any, error) {
		return h.queries.QueryAccountSequence(ctx, &interfaces.QueryAccountSequenceRequest{Address: address})
	})
}

// HandleRecipients resolves a recipient selection.
//
// URL format: GET /api/v1/recipients?mode=committee&epoch=7
// or GET /api/v1/recipients?mode=specific&fingerprint=<fp>&fingerprint=<fp>
func (h *Handler) HandleRecipients(w http.ResponseWriter, r *http.Request) {
	req, err := parseRecipientsQuery(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	h.respond(w, r, func(ctx context.Context) (any, error) {
		return h.queries.QueryRecipients(ctx, req)
	})
}

func parseRecipientsQuery(r *http.Request) (*interfaces.QueryRecipientsRequest, error) {
	q := r.URL.Query()
	mode, err := interfaces.ParseRecipientMode(q.Get("mode"))
	if err != nil {
		return nil, err
	}
	req := &interfaces.QueryRecipientsRequest{Mode: mode}
	if s := q.Get("epoch"); s != "" {
		req.CommitteeEpoch, err = strconv.ParseUint(s, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid epoch: %w", err)
		}
	}
	for _, s := range q["fingerprint"] {
		fp, err := interfaces.NewKeyFingerprint(s)
		if err != nil {
			return nil, fmt.Errorf("invalid fingerprint: %w", err)
		}
		req.Fingerprints = append(req.Fingerprints, fp)
	}
	return req, nil
}

// handleMsg decodes a message, checks it was signed by sender(msg) and applies it.
func handleMsg[Req, Resp any](h *Handler, w http.ResponseWriter, r *http.Request, sender func(*Req) interfaces.Address, apply func(context.Context, *Req) (*Resp, error)) {
	msg := new(Req)
	if err := decodeBody(r, msg); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err := authenticate(r, msg, sender(msg)); err != nil {
		h.writeError(w, r, err)
		return
	}
	h.respond(w, r, func(ctx context.Context) (any, error) {
		return apply(ctx, msg)
	})
}

// authenticate requires the signature header to recover to sender.
func authenticate(r *http.Request, msg any, sender interfaces.Address) error {
	sigHex := r.Header.Get(SenderSignatureHeader)
	if sigHex == "" {
		return fmt.Errorf("%w: missing %s header", interfaces.ErrUnauthorized, SenderSignatureHeader)
	}
	sig, err := hex.DecodeString(strings.TrimPrefix(sigHex, "0x"))
	if err != nil {
		return fmt.Errorf("%w: %s is not hex", interfaces.ErrInvalidSignature, SenderSignatureHeader)
	}

	body, err := codec.Marshal(msg)
	if err != nil {
		return err
	}
	signer, err := cryptoutils.RecoverClient(body, sig)
	if err != nil {
		return err
	}
	if signer != sender {
		return fmt.Errorf("%w: request signed by %s, not by sender %s", interfaces.ErrUnauthorized, signer, sender)
	}
	return nil
}

func decodeBody(r *http.Request, msg any) error {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodySize+1))
	if err != nil {
		return fmt.Errorf("failed to read request body: %w", err)
	}
	if len(body) > maxBodySize {
		return errors.New("request body too large")
	}

	if isProtobuf(r.Header.Get("Content-Type")) {
		err = codec.Unmarshal(body, msg)
	} else {
		err = codec.UnmarshalJSON(body, msg)
	}
	if err != nil {
		return fmt.Errorf("could not decode request: %w", err)
	}
	return nil
}

func (h *Handler) respond(w http.ResponseWriter, r *http.Request, call func(context.Context) (any, error)) {
	resp, err := call(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	var data []byte
	contentType := ContentTypeJSON
	if isProtobuf(r.Header.Get("Accept")) {
		contentType = ContentTypeProtobuf
		data, err = codec.Marshal(resp)
	} else {
		data, err = codec.MarshalJSON(resp)
	}
	if err != nil {
		http.Error(w, fmt.Errorf("could not encode response: %w", err).Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", contentType)
	if _, err := w.Write(data); err != nil {
		h.log.Debug("Failed to write response", "err", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := StatusFor(err)
	if status == http.StatusInternalServerError {
		h.log.Error("Request failed", "path", r.URL.Path, "err", err)
	} else {
		h.log.Debug("Request rejected", "path", r.URL.Path, "status", status, "err", err)
	}
	http.Error(w, err.Error(), status)
}

// StatusFor maps an error to its HTTP status by category.
func StatusFor(err error) int {
	switch interfaces.CategoryOf(err) {
	case interfaces.CategoryPolicy:
		return http.StatusBadRequest
	case interfaces.CategoryState:
		return http.StatusConflict
	case interfaces.CategoryLookup:
		return http.StatusNotFound
	case interfaces.CategoryCrypto:
		return http.StatusUnprocessableEntity
	case interfaces.CategoryAuthorization:
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}

func isProtobuf(contentType string) bool {
	return strings.Contains(contentType, ContentTypeProtobuf)
}
