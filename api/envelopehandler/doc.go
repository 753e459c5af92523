/*
Package envelopehandler exposes the envelope registry over HTTP.

# Routes

	POST /api/v1/keys/register         RegisterRecipientKey   (signed)
	POST /api/v1/keys/revoke           RevokeRecipientKey     (signed)
	POST /api/v1/keys/label            UpdateKeyLabel         (signed)
	POST /api/v1/params                UpdateParams           (signed by the authority)
	POST /api/v1/envelopes             SubmitEnvelope         (signed)
	POST /api/v1/envelopes/validate    ValidateEnvelope
	GET  /api/v1/params
	GET  /api/v1/algorithms
	GET  /api/v1/keys/{address}
	GET  /api/v1/fingerprints/{fingerprint}
	GET  /api/v1/envelopes/{id}
	GET  /api/v1/recipients?mode=...&epoch=...&fingerprint=...

Bodies are JSON unless Content-Type is application/x-protobuf, in which case
they use the binary codec. Responses follow Accept the same way.

# Sender authentication

Signed requests carry X-Sender-Signature: a hex secp256k1 recoverable
signature over keccak256 of the binary encoding of the message, whatever the
body encoding. The recovered address must equal the message sender.

# Errors

Errors are written as plain text starting with the sentinel message, with a
status derived from the error category: policy 400, state 409, lookup 404,
crypto 422, authorization 403, anything else 500. Client maps them back.
*/
package envelopehandler
