// Package server dispatches inbound requests to a pluggable engine.
//
// Handler.Handle runs each request through these steps, stopping at the
// first that produces a response:
//   - path normalization: host context path stripped, "/" mapped to the
//     home page
//   - context resolution through the ContextFactory (API or page route)
//   - static resources, served by the ResponseBuilder without a session
//   - session resolution from the session cookie; a visitor without a
//     session is redirected to the sign-in page unless global or
//     auto-created sessions are configured
//   - the Cycle, which calls the Engine (API) or TemplateEngine (pages)
//   - the ResponseBuilder, which writes cookies, redirects and defaults
//
// Engines steer the cycle with an Outcome (Continue, SwitchTo, Abort) and
// with the Context: Redirect, Close, BodyAppend and SetCookie.
//
// ServeHTTP and FastHandler adapt the handler to net/http and fasthttp.
package server
