package auth

import (
	"context"
	"errors"
	"net/http"
	"slices"
	"strings"

	"github.com/keithlinneman/tours-api/internal/apperr"
	"github.com/keithlinneman/tours-api/internal/log"
	"github.com/keithlinneman/tours-api/internal/pipeline"
	"github.com/keithlinneman/tours-api/internal/reqctx"
	"github.com/keithlinneman/tours-api/internal/store"
)

const (
	msgNotLoggedIn     = "You are not logged in! Please log in to get access."
	msgUserGone        = "The user belonging to this token does no longer exist."
	msgPasswordChanged = "User recently changed password! Please log in again."
	msgForbidden       = "You do not have permission to perform this action"
)

// UserLookup finds an active user by id.
type UserLookup interface {
	Get(ctx context.Context, id string) (*store.User, error)
}

type userKey struct{}

func WithUser(ctx context.Context, u *store.User) context.Context {
	return context.WithValue(ctx, userKey{}, u)
}

// UserFrom returns the user Protect attached, if any.
func UserFrom(ctx context.Context) (*store.User, bool) {
	u, ok := ctx.Value(userKey{}).(*store.User)
	return u, ok && u != nil
}

// TokenFrom reads a bearer token, falling back to the session cookie.
func TokenFrom(r *http.Request) string {
	if h := r.Header.Get("Authorization"); h != "" {
		if scheme, tok, ok := strings.Cut(h, " "); ok && strings.EqualFold(scheme, "Bearer") {
			return strings.TrimSpace(tok)
		}
	}
	if v, ok := reqctx.Cookie(r.Context(), CookieName); ok {
		return v
	}
	if c, err := r.Cookie(CookieName); err == nil {
		return c.Value
	}
	return ""
}

// Protect requires a valid token for a user that still exists and has not
// changed password since the token was issued.
func Protect(s *Signer, users UserLookup, errs pipeline.ErrorHandler) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			u, err := authenticate(r, s, users)
			if err != nil {
				errs.ServeError(w, r, err)
				return
			}
			ctx := WithUser(r.Context(), u)
			ctx = log.WithContext(ctx, log.FromContext(ctx).With("user.id", u.ID.Hex()))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func authenticate(r *http.Request, s *Signer, users UserLookup) (*store.User, error) {
	tok := TokenFrom(r)
	if tok == "" {
		return nil, apperr.Unauthorized(msgNotLoggedIn)
	}
	claims, err := s.Parse(tok)
	if err != nil {
		return nil, err
	}
	u, err := users.Get(r.Context(), claims.Subject)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, apperr.Unauthorized(msgUserGone)
		}
		return nil, err
	}
	if u.ChangedPasswordAfter(claims.IssuedAt.Time) {
		return nil, apperr.Unauthorized(msgPasswordChanged)
	}
	return u, nil
}

// RestrictTo allows only users with one of roles. It must run after Protect.
func RestrictTo(errs pipeline.ErrorHandler, roles ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			u, ok := UserFrom(r.Context())
			if !ok || !slices.Contains(roles, u.Role) {
				errs.ServeError(w, r, apperr.Forbidden(msgForbidden))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// Guard bundles what Protect and RestrictTo need so routers can take one
// value.
type Guard struct {
	Signer *Signer
	Users  UserLookup
	Errors pipeline.ErrorHandler
}

func (g Guard) Protect() func(http.Handler) http.Handler {
	return Protect(g.Signer, g.Users, g.Errors)
}

func (g Guard) RestrictTo(roles ...string) func(http.Handler) http.Handler {
	return RestrictTo(g.Errors, roles...)
}

// Optional attaches the user when the request carries a valid token and
// continues either way. Used by pages that only change with a session.
func (g Guard) Optional() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if TokenFrom(r) != "" {
				if u, err := authenticate(r, g.Signer, g.Users); err == nil {
					r = r.WithContext(WithUser(r.Context(), u))
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}
