// Package http is the outbound transport layer of hitwire.
//
// Requests are assembled with RequestBuilder and sent through one of two
// transports that share the Client interface:
//   - PooledClient, synchronous, on net/http with a bounded connection pool
//   - AsyncClient, future based, on fasthttp; calls run on the Executor
//     installed in the context when there is one
//
// Both transports follow redirects with a per-call cookie jar and surface
// every cookie seen along the way as a Set-Cookie header on the final
// response. Redirect hops only carry cookies whose domain, or the host that
// set them, matches the destination; credentials are dropped when a
// redirect leaves the original domain. A connection the peer closed without
// answering is retried once.
// Basic, Digest and AWS Signature v4 auth are applied per client.
//
// Header, Request and Response are also the types the server pipeline in
// package server works with.
package http
