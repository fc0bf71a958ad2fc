// Package apperr holds the application's error vocabulary.
//
// [Error] is the typed, operational error: a client-safe message, an HTTP
// status code and a "fail"/"error" classification derived from it. Anything
// that is not an [*Error] is treated as a defect by the global error handler.
//
// The package also provides stack-capturing helpers ([Errorf], [Wrap],
// [Wrapf], [WithStack], [EnsureTrace]) so defects logged at error level carry
// the frame they were created at.
package apperr
