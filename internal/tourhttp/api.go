// Package tourhttp is the /api/v1/tours router.
package tourhttp

import (
	"context"
	"net/http"
	"net/url"
	"strconv"

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

// TourStore is the slice of store.Tours the router uses.
type TourStore interface {
	List(ctx context.Context, q store.ListQuery) ([]store.Tour, error)
	Get(ctx context.Context, id string) (*store.Tour, error)
	Create(ctx context.Context, t *store.Tour) error
	Replace(ctx context.Context, t *store.Tour) error
	Delete(ctx context.Context, id string) error
	Stats(ctx context.Context) ([]store.TourStats, error)
	MonthlyPlan(ctx context.Context, year int) ([]store.MonthPlan, error)
}

// API implements the tour endpoints.
type API struct {
	tours  TourStore
	errs   *errorhttp.Handler
	guard  auth.Guard
	logger log.Logger

	// Reviews is mounted at /{tourId}/reviews when set.
	Reviews http.Handler
}

func NewAPI(tours TourStore, errs *errorhttp.Handler, guard auth.Guard, logger log.Logger) *API {
	if logger == nil {
		logger = log.Nop()
	}
	return &API{tours: tours, errs: errs, guard: guard, logger: logger}
}

// Router returns the chi router mounted at /api/v1/tours.
func (api *API) Router() chi.Router {
	r := chi.NewRouter()
	r.Use(httpmw.Scope("tour"))
	api.RegisterRoutes(r)
	return r
}

func (api *API) RegisterRoutes(r chi.Router) {
	staff := []string{store.RoleAdmin, store.RoleLeadGuide}

	r.Get("/top-5-cheap", api.errs.Wrap(api.handleTopCheap).ServeHTTP)
	r.Get("/tour-stats", api.errs.Wrap(api.handleStats).ServeHTTP)
	r.With(api.guard.Protect(), api.guard.RestrictTo(append(staff, store.RoleGuide)...)).
		Get("/monthly-plan/{year}", api.errs.Wrap(api.handleMonthlyPlan).ServeHTTP)

	r.Get("/", api.errs.Wrap(api.handleList).ServeHTTP)
	r.Get("/{id}", api.errs.Wrap(api.handleGet).ServeHTTP)

	r.Group(func(r chi.Router) {
		r.Use(api.guard.Protect(), api.guard.RestrictTo(staff...))
		r.Post("/", api.errs.Wrap(api.handleCreate).ServeHTTP)
		r.Patch("/{id}", api.errs.Wrap(api.handleUpdate).ServeHTTP)
		r.Delete("/{id}", api.errs.Wrap(api.handleDelete).ServeHTTP)
	})

	if api.Reviews != nil {
		r.Mount("/{tourId}/reviews", api.Reviews)
	}
}

func (api *API) handleList(w http.ResponseWriter, r *http.Request) error {
	tours, err := api.tours.List(r.Context(), store.ParseListQuery(r.URL.Query()))
	if err != nil {
		return err
	}
	httpjson.List(r.Context(), w, "tours", tours)
	return nil
}

// handleTopCheap is the list endpoint with a fixed query.
func (api *API) handleTopCheap(w http.ResponseWriter, r *http.Request) error {
	q := url.Values{
		"limit":  {"5"},
		"sort":   {"-ratingsAverage,price"},
		"fields": {"name,price,ratingsAverage,summary,difficulty"},
	}
	tours, err := api.tours.List(r.Context(), store.ParseListQuery(q))
	if err != nil {
		return err
	}
	httpjson.List(r.Context(), w, "tours", tours)
	return nil
}

func (api *API) handleGet(w http.ResponseWriter, r *http.Request) error {
	tour, err := api.tours.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		return err
	}
	httpjson.Success(r.Context(), w, http.StatusOK, "tour", tour)
	return nil
}

func (api *API) handleCreate(w http.ResponseWriter, r *http.Request) error {
	var tour store.Tour
	if err := httpjson.DecodeBody(r.Context(), &tour); err != nil {
		return err
	}
	tour.ID = primitive.NilObjectID
	if err := api.tours.Create(r.Context(), &tour); err != nil {
		return err
	}
	api.logger.Info(r.Context(), "tour created", "tour.id", tour.ID.Hex(), "tour.slug", tour.Slug)
	httpjson.Success(r.Context(), w, http.StatusCreated, "tour", &tour)
	return nil
}

// handleUpdate applies the body over the stored tour and revalidates the
// result.
func (api *API) handleUpdate(w http.ResponseWriter, r *http.Request) error {
	ctx := r.Context()
	tour, err := api.tours.Get(ctx, chi.URLParam(r, "id"))
	if err != nil {
		return err
	}
	id := tour.ID
	if err := httpjson.MergeBody(ctx, tour); err != nil {
		return err
	}
	tour.ID = id
	if err := api.tours.Replace(ctx, tour); err != nil {
		return err
	}
	httpjson.Success(ctx, w, http.StatusOK, "tour", tour)
	return nil
}

func (api *API) handleDelete(w http.ResponseWriter, r *http.Request) error {
	if err := api.tours.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		return err
	}
	httpjson.NoContent(w)
	return nil
}

func (api *API) handleStats(w http.ResponseWriter, r *http.Request) error {
	stats, err := api.tours.Stats(r.Context())
	if err != nil {
		return err
	}
	httpjson.Success(r.Context(), w, http.StatusOK, "stats", stats)
	return nil
}

func (api *API) handleMonthlyPlan(w http.ResponseWriter, r *http.Request) error {
	raw := chi.URLParam(r, "year")
	year, err := strconv.Atoi(raw)
	if err != nil || year < 1970 || year > 9999 {
		return apperr.BadRequest("Invalid year: %s", raw)
	}
	plan, err := api.tours.MonthlyPlan(r.Context(), year)
	if err != nil {
		return err
	}
	httpjson.Success(r.Context(), w, http.StatusOK, "plan", plan)
	return nil
}
