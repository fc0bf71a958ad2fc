package errorhttp

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/golang-jwt/jwt/v5"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/keithlinneman/tours-api/internal/apperr"
	"github.com/keithlinneman/tours-api/internal/store"
)

const (
	msgDuplicate    = "Duplicate field value. Please use another value!"
	msgTokenInvalid = "Invalid token. Please log in again!"
	msgTokenExpired = "Your token has expired! Please log in again."
	msgTooLarge     = "Request body too large"
	msgNotFound     = "No document found with that ID"
)

var jwtInvalid = []error{
	jwt.ErrTokenMalformed,
	jwt.ErrTokenUnverifiable,
	jwt.ErrTokenSignatureInvalid,
	jwt.ErrTokenRequiredClaimMissing,
	jwt.ErrTokenInvalidClaims,
	jwt.ErrTokenNotValidYet,
	jwt.ErrTokenUsedBeforeIssued,
	jwt.ErrTokenInvalidAudience,
	jwt.ErrTokenInvalidIssuer,
	jwt.ErrTokenInvalidSubject,
	jwt.ErrTokenInvalidId,
	jwt.ErrSignatureInvalid,
}

// Translate maps known library and store errors to operational errors with
// client-safe messages. Errors that are already operational, and errors it
// does not know, are returned unchanged.
func Translate(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := apperr.As(err); ok {
		return err
	}

	var invalidID *store.InvalidIDError
	if errors.As(err, &invalidID) {
		return apperr.FromCause(err, "Invalid _id: "+invalidID.Value, http.StatusBadRequest)
	}
	if errors.Is(err, store.ErrNotFound) {
		return apperr.FromCause(err, msgNotFound, http.StatusNotFound)
	}
	if mongo.IsDuplicateKeyError(err) {
		return apperr.FromCause(err, msgDuplicate, http.StatusBadRequest)
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		return apperr.FromCause(err, validationMessage(verrs), http.StatusBadRequest)
	}
	var mbe *http.MaxBytesError
	if errors.As(err, &mbe) {
		return apperr.FromCause(err, msgTooLarge, http.StatusRequestEntityTooLarge)
	}
	if errors.Is(err, jwt.ErrTokenExpired) {
		return apperr.FromCause(err, msgTokenExpired, http.StatusUnauthorized)
	}
	for _, target := range jwtInvalid {
		if errors.Is(err, target) {
			return apperr.FromCause(err, msgTokenInvalid, http.StatusUnauthorized)
		}
	}
	return err
}

func validationMessage(verrs validator.ValidationErrors) string {
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fieldMessage(fe))
	}
	return "Invalid input data. " + strings.Join(msgs, ". ")
}

func fieldMessage(fe validator.FieldError) string {
	f := fe.Field()
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", f)
	case "email":
		return "Please provide a valid email"
	case "min":
		return fmt.Sprintf("%s must have at least %s characters", f, fe.Param())
	case "max":
		return fmt.Sprintf("%s must have at most %s characters", f, fe.Param())
	case "gt", "gte":
		return fmt.Sprintf("%s must be at least %s", f, fe.Param())
	case "lt", "lte":
		return fmt.Sprintf("%s must be at most %s", f, fe.Param())
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", f, strings.ReplaceAll(fe.Param(), " ", ", "))
	case "ltfield":
		return fmt.Sprintf("%s must be below %s", f, lowerFirst(fe.Param()))
	case "eqfield":
		return "Passwords are not the same!"
	default:
		return fmt.Sprintf("%s is invalid", f)
	}
}

func lowerFirst(s string) string {
	if s == "" {
		return s
	}
	return strings.ToLower(s[:1]) + s[1:]
}
