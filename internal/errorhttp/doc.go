// Package errorhttp is the global error handler. It translates library and
// store errors into operational ones, logs defects with their stack, and
// writes the {"status","message"} body. In development the body also carries
// the error detail and stack; in production defects collapse to a generic
// 500.
package errorhttp
