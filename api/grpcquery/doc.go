// Package grpcquery serves the read-only queries over gRPC as the
// envelope.v1.Query service. The service is described by hand instead of
// generated: each method carries the binary codec encoding of the
// corresponding interfaces query type inside a google.protobuf.BytesValue.
//
//	service Query {
//	  rpc Params(google.protobuf.BytesValue) returns (google.protobuf.BytesValue);
//	  rpc Algorithms(google.protobuf.BytesValue) returns (google.protobuf.BytesValue);
//	  rpc RecipientKey(google.protobuf.BytesValue) returns (google.protobuf.BytesValue);
//	  rpc KeyByFingerprint(google.protobuf.BytesValue) returns (google.protobuf.BytesValue);
//	  rpc ValidateEnvelope(google.protobuf.BytesValue) returns (google.protobuf.BytesValue);
//	  rpc Recipients(google.protobuf.BytesValue) returns (google.protobuf.BytesValue);
//	  rpc Envelope(google.protobuf.BytesValue) returns (google.protobuf.BytesValue);
//	}
package grpcquery
