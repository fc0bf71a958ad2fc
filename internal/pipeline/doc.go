// Package pipeline runs a fixed, ordered list of request stages.
//
// Each [Stage] returns an [Outcome] instead of calling a continuation:
// [Next] hands the (possibly updated) request to the following stage,
// [Respond] ends the request with a handler, and [Fail] ends it by handing
// the error to the pipeline's [ErrorHandler]. A [Pipeline] is built once by
// [New] and cannot be changed afterwards.
//
// Every request gets exactly one terminal outcome. Panics in a stage or a
// responding handler are recovered and become failures, unless the response
// has already started, in which case the connection is aborted.
package pipeline
