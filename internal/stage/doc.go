// Package stage holds the request stages of the tours API pipeline and
// Build, which assembles them in their fixed order:
//
//	views, static, devlog (non-production only), security-headers,
//	ratelimit (/api only), body, cookies, sanitize, hpp, tag, dispatch,
//	notfound
//
// followed by the global error handler. The order is part of the API
// contract; Build is the only place it is expressed.
package stage
