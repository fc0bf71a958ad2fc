// Package httpmw holds the outer HTTP middleware that wraps the request
// pipeline: request IDs, client IP extraction, request-scoped loggers, route
// annotation for traces, trace response headers, panic recovery and the
// security header set shared with the pipeline stage and the ops listener.
//
// httpserver.NewHandler composes them with Chain. Each API router tags its
// requests with Scope. StatusRecorder is the response writer shared by the
// metrics middleware and the development request log. User-supplied data
// such as query strings, cookies and user agents stays out of log fields.
package httpmw
