// Package reviewhttp is the /api/v1/reviews router. It is also mounted
// under /api/v1/tours/{tourId}/reviews.
package reviewhttp

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/keithlinneman/tours-api/internal/apperr"
	"github.com/keithlinneman/tours-api/internal/auth"
	"github.com/keithlinneman/tours-api/internal/errorhttp"
	"github.com/keithlinneman/tours-api/internal/httpmw"
	"github.com/keithlinneman/tours-api/internal/httpjson"
	"github.com/keithlinneman/tours-api/internal/log"
	"github.com/keithlinneman/tours-api/internal/store"
)

type ReviewStore interface {
	List(ctx context.Context, tourID string) ([]store.Review, error)
	Get(ctx context.Context, id string) (*store.Review, error)
	Create(ctx context.Context, r *store.Review) error
	Replace(ctx context.Context, r *store.Review) error
	Delete(ctx context.Context, id string) error
}

type API struct {
	reviews ReviewStore
	errs    *errorhttp.Handler
	guard   auth.Guard
	logger  log.Logger
}

func NewAPI(reviews ReviewStore, errs *errorhttp.Handler, guard auth.Guard, logger log.Logger) *API {
	if logger == nil {
		logger = log.Nop()
	}
	return &API{reviews: reviews, errs: errs, guard: guard, logger: logger}
}

func (api *API) Router() chi.Router {
	r := chi.NewRouter()
	r.Use(httpmw.Scope("review"))
	api.RegisterRoutes(r)
	return r
}

func (api *API) RegisterRoutes(r chi.Router) {
	r.Get("/", api.errs.Wrap(api.handleList).ServeHTTP)
	r.Get("/{id}", api.errs.Wrap(api.handleGet).ServeHTTP)

	r.With(api.guard.Protect(), api.guard.RestrictTo(store.RoleUser)).
		Post("/", api.errs.Wrap(api.handleCreate).ServeHTTP)

	r.Group(func(r chi.Router) {
		r.Use(api.guard.Protect(), api.guard.RestrictTo(store.RoleUser, store.RoleAdmin))
		r.Patch("/{id}", api.errs.Wrap(api.handleUpdate).ServeHTTP)
		r.Delete("/{id}", api.errs.Wrap(api.handleDelete).ServeHTTP)
	})
}

func (api *API) handleList(w http.ResponseWriter, r *http.Request) error {
	reviews, err := api.reviews.List(r.Context(), chi.URLParam(r, "tourId"))
	if err != nil {
		return err
	}
	httpjson.List(r.Context(), w, "reviews", reviews)
	return nil
}

func (api *API) handleGet(w http.ResponseWriter, r *http.Request) error {
	rev, err := api.reviews.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		return err
	}
	httpjson.Success(r.Context(), w, http.StatusOK, "review", rev)
	return nil
}

// handleCreate takes the tour from the nested route when present and the
// author from the session.
func (api *API) handleCreate(w http.ResponseWriter, r *http.Request) error {
	ctx := r.Context()
	var rev store.Review
	if err := httpjson.DecodeBody(ctx, &rev); err != nil {
		return err
	}
	rev.ID = primitive.NilObjectID
	if tourID := chi.URLParam(r, "tourId"); tourID != "" {
		oid, err := store.ParseID(tourID)
		if err != nil {
			return err
		}
		rev.Tour = oid
	}
	if u, ok := auth.UserFrom(ctx); ok {
		rev.User = u.ID
	}
	if err := api.reviews.Create(ctx, &rev); err != nil {
		return err
	}
	httpjson.Success(ctx, w, http.StatusCreated, "review", &rev)
	return nil
}

// handleUpdate lets authors edit their own review; admins may edit any.
func (api *API) handleUpdate(w http.ResponseWriter, r *http.Request) error {
	ctx := r.Context()
	rev, err := api.owned(ctx, chi.URLParam(r, "id"))
	if err != nil {
		return err
	}
	id, tour, user, created := rev.ID, rev.Tour, rev.User, rev.CreatedAt
	if err := httpjson.MergeBody(ctx, rev); err != nil {
		return err
	}
	rev.ID, rev.Tour, rev.User, rev.CreatedAt = id, tour, user, created
	if err := api.reviews.Replace(ctx, rev); err != nil {
		return err
	}
	httpjson.Success(ctx, w, http.StatusOK, "review", rev)
	return nil
}

func (api *API) handleDelete(w http.ResponseWriter, r *http.Request) error {
	ctx := r.Context()
	rev, err := api.owned(ctx, chi.URLParam(r, "id"))
	if err != nil {
		return err
	}
	if err := api.reviews.Delete(ctx, rev.ID.Hex()); err != nil {
		return err
	}
	httpjson.NoContent(w)
	return nil
}

func (api *API) owned(ctx context.Context, id string) (*store.Review, error) {
	rev, err := api.reviews.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	u, ok := auth.UserFrom(ctx)
	if !ok || (u.Role != store.RoleAdmin && u.ID != rev.User) {
		return nil, apperr.Forbidden("You can only change your own reviews")
	}
	return rev, nil
}
