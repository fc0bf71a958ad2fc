package auth

import (
	"errors"

	"golang.org/x/crypto/bcrypt"

	"github.com/keithlinneman/tours-api/internal/apperr"
)

// HashCost is the bcrypt cost for new hashes.
var HashCost = 12

func HashPassword(pw string) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(pw), HashCost)
	if err != nil {
		return "", apperr.Wrap(err, "hash password")
	}
	return string(b), nil
}

// CheckPassword reports whether pw matches hash. A malformed hash is an
// error; a mismatch is not.
func CheckPassword(hash, pw string) (bool, error) {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(pw))
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, bcrypt.ErrMismatchedHashAndPassword):
		return false, nil
	default:
		return false, apperr.Wrap(err, "compare password")
	}
}
