// Package viewhttp serves the server-rendered pages mounted at the root:
// the tour overview, a tour's detail page and the login form.
package viewhttp

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/keithlinneman/tours-api/internal/apperr"
	"github.com/keithlinneman/tours-api/internal/auth"
	"github.com/keithlinneman/tours-api/internal/errorhttp"
	"github.com/keithlinneman/tours-api/internal/httpmw"
	"github.com/keithlinneman/tours-api/internal/log"
	"github.com/keithlinneman/tours-api/internal/store"
)

type TourStore interface {
	List(ctx context.Context, q store.ListQuery) ([]store.Tour, error)
	BySlug(ctx context.Context, slug string) (*store.Tour, error)
}

type ReviewStore interface {
	List(ctx context.Context, tourID string) ([]store.Review, error)
}

type API struct {
	engine  *Engine
	tours   TourStore
	reviews ReviewStore
	errs    *errorhttp.Handler
	guard   auth.Guard
	logger  log.Logger
}

func NewAPI(engine *Engine, tours TourStore, reviews ReviewStore, errs *errorhttp.Handler, guard auth.Guard, logger log.Logger) *API {
	if logger == nil {
		logger = log.Nop()
	}
	return &API{engine: engine, tours: tours, reviews: reviews, errs: errs, guard: guard, logger: logger}
}

func (api *API) Router() chi.Router {
	r := chi.NewRouter()
	r.Use(httpmw.Scope("view"))
	api.RegisterRoutes(r)
	return r
}

func (api *API) RegisterRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(api.guard.Optional())
		r.Get("/", api.errs.Wrap(api.handleOverview).ServeHTTP)
		r.Get("/tour/{slug}", api.errs.Wrap(api.handleTour).ServeHTTP)
		r.Get("/login", api.errs.Wrap(api.handleLogin).ServeHTTP)
	})
}

func (api *API) handleOverview(w http.ResponseWriter, r *http.Request) error {
	tours, err := api.tours.List(r.Context(), store.ParseListQuery(nil))
	if err != nil {
		return err
	}
	return api.render(w, r, "overview", pageData{Title: "All Tours", Tours: tours})
}

func (api *API) handleTour(w http.ResponseWriter, r *http.Request) error {
	ctx := r.Context()
	tour, err := api.tours.BySlug(ctx, chi.URLParam(r, "slug"))
	if errors.Is(err, store.ErrNotFound) {
		return apperr.NotFound("There is no tour with that name.")
	}
	if err != nil {
		return err
	}
	reviews, err := api.reviews.List(ctx, tour.ID.Hex())
	if err != nil {
		return err
	}
	return api.render(w, r, "tour", pageData{Title: tour.Name + " Tour", Tour: tour, Reviews: reviews})
}

func (api *API) handleLogin(w http.ResponseWriter, r *http.Request) error {
	return api.render(w, r, "login", pageData{Title: "Log into your account"})
}

func (api *API) render(w http.ResponseWriter, r *http.Request, page string, data pageData) error {
	if u, ok := userFrom(r); ok {
		data.User = u
	}
	return api.engine.Render(w, http.StatusOK, page, data)
}

func userFrom(r *http.Request) (*store.User, bool) {
	return auth.UserFrom(r.Context())
}
