/*
Package api holds what the transports of the envelope registry share.

  - envelopehandler serves messages and queries over HTTP with chi, in JSON or
    the binary codec, and provides a matching client
  - grpcquery serves the queries as the envelope.v1.Query gRPC service
  - NodeServerConfig configures the HTTP, gRPC and metrics listeners run by
    package httpserver

A Node is anything serving both messages and queries: the keeper itself, or
the HTTP client pointed at a remote node.
*/
package api
