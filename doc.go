// Package redisc is a pipelined Redis client protocol engine.
//
// A Conn multiplexes concurrent commands over one connection, matching
// replies to requests by submission order, and routes pub/sub push
// frames to Subscription handles. Client layers typed command builders
// on top; SimpleClient offers a strictly request/response alternative;
// Connector establishes and authenticates the underlying streams.
package redisc
