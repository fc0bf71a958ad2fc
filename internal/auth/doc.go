// Package auth issues and checks the HS256 session tokens, hashes passwords
// with bcrypt, and provides the Protect and RestrictTo router middleware.
package auth
