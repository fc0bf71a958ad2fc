// Package userhttp is the /api/v1/users router: accounts, sessions and
// admin user management.
package userhttp

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/keithlinneman/tours-api/internal/apperr"
	"github.com/keithlinneman/tours-api/internal/auth"
	"github.com/keithlinneman/tours-api/internal/errorhttp"
	"github.com/keithlinneman/tours-api/internal/httpmw"
	"github.com/keithlinneman/tours-api/internal/httpjson"
	"github.com/keithlinneman/tours-api/internal/log"
	"github.com/keithlinneman/tours-api/internal/store"
)

const (
	msgMissingCredentials = "Please provide email and password!"
	msgBadCredentials     = "Incorrect email or password"
)

type UserStore interface {
	Create(ctx context.Context, u *store.User) error
	ByEmail(ctx context.Context, email string) (*store.User, error)
	Get(ctx context.Context, id string) (*store.User, error)
	List(ctx context.Context) ([]store.User, error)
	Deactivate(ctx context.Context, id string) error
}

type API struct {
	users  UserStore
	errs   *errorhttp.Handler
	guard  auth.Guard
	logger log.Logger

	// SecureCookies marks the session cookie Secure.
	SecureCookies bool
	now           func() time.Time
}

func NewAPI(users UserStore, errs *errorhttp.Handler, guard auth.Guard, logger log.Logger) *API {
	if logger == nil {
		logger = log.Nop()
	}
	return &API{users: users, errs: errs, guard: guard, logger: logger, now: time.Now}
}

func (api *API) Router() chi.Router {
	r := chi.NewRouter()
	r.Use(httpmw.Scope("user"))
	api.RegisterRoutes(r)
	return r
}

func (api *API) RegisterRoutes(r chi.Router) {
	r.Post("/signup", api.errs.Wrap(api.handleSignup).ServeHTTP)
	r.Post("/login", api.errs.Wrap(api.handleLogin).ServeHTTP)
	r.Get("/logout", api.handleLogout)

	r.With(api.guard.Protect()).Get("/me", api.errs.Wrap(api.handleMe).ServeHTTP)

	r.Group(func(r chi.Router) {
		r.Use(api.guard.Protect(), api.guard.RestrictTo(store.RoleAdmin))
		r.Get("/", api.errs.Wrap(api.handleList).ServeHTTP)
		r.Get("/{id}", api.errs.Wrap(api.handleGet).ServeHTTP)
		r.Delete("/{id}", api.errs.Wrap(api.handleDelete).ServeHTTP)
	})
}

type signupInput struct {
	Name            string `json:"name" validate:"required"`
	Email           string `json:"email" validate:"required,email"`
	Photo           string `json:"photo"`
	Password        string `json:"password" validate:"required,min=8"`
	PasswordConfirm string `json:"passwordConfirm" validate:"required,eqfield=Password"`
}

type loginInput struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// handleSignup creates a regular user; a role in the body is ignored.
func (api *API) handleSignup(w http.ResponseWriter, r *http.Request) error {
	ctx := r.Context()
	var in signupInput
	if err := httpjson.DecodeBody(ctx, &in); err != nil {
		return err
	}
	if err := store.Validate(&in); err != nil {
		return err
	}
	hash, err := auth.HashPassword(in.Password)
	if err != nil {
		return err
	}
	u := &store.User{
		Name:         in.Name,
		Email:        in.Email,
		Photo:        in.Photo,
		Role:         store.RoleUser,
		PasswordHash: hash,
	}
	if err := api.users.Create(ctx, u); err != nil {
		return err
	}
	api.logger.Info(ctx, "user signed up", "user.id", u.ID.Hex())
	return api.sendToken(w, r, http.StatusCreated, u)
}

func (api *API) handleLogin(w http.ResponseWriter, r *http.Request) error {
	ctx := r.Context()
	var in loginInput
	if err := httpjson.DecodeBody(ctx, &in); err != nil {
		return err
	}
	if in.Email == "" || in.Password == "" {
		return apperr.BadRequest(msgMissingCredentials)
	}
	u, err := api.users.ByEmail(ctx, in.Email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return apperr.Unauthorized(msgBadCredentials)
		}
		return err
	}
	ok, err := auth.CheckPassword(u.PasswordHash, in.Password)
	if err != nil {
		return err
	}
	if !ok {
		return apperr.Unauthorized(msgBadCredentials)
	}
	return api.sendToken(w, r, http.StatusOK, u)
}

func (api *API) handleLogout(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, auth.LogoutCookie(api.now(), api.SecureCookies))
	httpjson.Write(r.Context(), w, http.StatusOK, map[string]string{"status": "success"})
}

func (api *API) handleMe(w http.ResponseWriter, r *http.Request) error {
	u, ok := auth.UserFrom(r.Context())
	if !ok {
		return apperr.Errorf("me: no user on an authenticated route")
	}
	httpjson.Success(r.Context(), w, http.StatusOK, "user", u)
	return nil
}

func (api *API) handleList(w http.ResponseWriter, r *http.Request) error {
	users, err := api.users.List(r.Context())
	if err != nil {
		return err
	}
	httpjson.List(r.Context(), w, "users", users)
	return nil
}

func (api *API) handleGet(w http.ResponseWriter, r *http.Request) error {
	u, err := api.users.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		return err
	}
	httpjson.Success(r.Context(), w, http.StatusOK, "user", u)
	return nil
}

func (api *API) handleDelete(w http.ResponseWriter, r *http.Request) error {
	id := chi.URLParam(r, "id")
	if err := api.users.Deactivate(r.Context(), id); err != nil {
		return err
	}
	api.logger.Info(r.Context(), "user deactivated", "target.user.id", id)
	httpjson.NoContent(w)
	return nil
}

func (api *API) sendToken(w http.ResponseWriter, r *http.Request, status int, u *store.User) error {
	tok, exp, err := api.guard.Signer.Sign(u.ID.Hex())
	if err != nil {
		return err
	}
	http.SetCookie(w, auth.Cookie(tok, exp, api.SecureCookies))
	httpjson.Write(r.Context(), w, status, httpjson.Envelope{
		Status: "success",
		Token:  tok,
		Data:   map[string]any{"user": u},
	})
	return nil
}
