// Package mock serves declared routes from a YAML routes file.
//
// Engine implements server.Engine and server.TemplateEngine: a request is
// matched against the routes in file order by method and path, with
// {{param}} path segments captured as parameters. The route's response is
// rendered with templates that read path parameters, file variables, the
// request (body fields via gjson paths, query, headers), the session and
// builtin functions such as {{$uuid()}}.
//
// Routes may also validate JSON request bodies against a JSON schema (400
// on failure), sign a visitor in, store session values, set cookies,
// redirect, close the session and delay the response.
//
// API requests are matched on the path after the handler's API prefix;
// the mock command uses "/" as the prefix so routes see the full path.
// Server runs a handler over net/http or fasthttp, and Watch reloads the
// routes file on change.
package mock
