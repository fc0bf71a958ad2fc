package stage

import (
	"context"
	"net/http"
	"sort"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/keithlinneman/tours-api/internal/apperr"
	"github.com/keithlinneman/tours-api/internal/pipeline"
)

// Router is what a mount needs from a chi router.
type Router interface {
	http.Handler
	chi.Routes
}

// Mount attaches a router under a path prefix. "/" (or "") mounts at the root.
type Mount struct {
	Prefix string
	Router Router
}

// Dispatch hands the request to the first mount whose prefix holds the path
// on a segment boundary and whose router has a route for the method and
// remaining path. Longer prefixes are tried first, so the root mount only
// sees what no API router claims. At most one router handles a request.
func Dispatch(mounts ...Mount) pipeline.Stage {
	ms := make([]Mount, 0, len(mounts))
	for _, m := range mounts {
		if m.Router == nil {
			continue
		}
		m.Prefix = strings.TrimSuffix(m.Prefix, "/")
		ms = append(ms, m)
	}
	sort.SliceStable(ms, func(i, j int) bool { return len(ms[i].Prefix) > len(ms[j].Prefix) })

	return pipeline.Stage{
		Name: "dispatch",
		Run: func(_ http.ResponseWriter, r *http.Request) pipeline.Outcome {
			for _, m := range ms {
				sub, ok := stripPrefix(r.URL.Path, m.Prefix)
				if !ok {
					continue
				}
				if !m.Router.Match(chi.NewRouteContext(), r.Method, sub) {
					continue
				}
				return pipeline.Respond(mounted(m, sub, r))
			}
			return pipeline.Next(r)
		},
	}
}

// mounted serves the request through m's router the way chi's Mount does:
// the shared route context gets the remaining path and the mount pattern,
// so the full route pattern is visible to outer middleware afterwards.
func mounted(m Mount, sub string, r *http.Request) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		rctx := chi.RouteContext(r.Context())
		req := r
		if rctx == nil {
			rctx = chi.NewRouteContext()
			req = r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
		}
		rctx.RoutePath = sub
		rctx.RoutePatterns = append(rctx.RoutePatterns, m.Prefix+"/*")
		m.Router.ServeHTTP(w, req)
	})
}

// stripPrefix returns the path below prefix when path sits on prefix at a
// segment boundary.
func stripPrefix(path, prefix string) (string, bool) {
	if prefix == "" {
		return path, true
	}
	if !strings.HasPrefix(path, prefix) {
		return "", false
	}
	rest := path[len(prefix):]
	switch {
	case rest == "":
		return "/", true
	case rest[0] == '/':
		return rest, true
	default:
		return "", false
	}
}

// NotFound fails every request that reaches it with a typed 404 naming the
// URL as the client sent it.
func NotFound() pipeline.Stage {
	return pipeline.Stage{
		Name: "notfound",
		Run: func(_ http.ResponseWriter, r *http.Request) pipeline.Outcome {
			return pipeline.Fail(apperr.NotFound("Can't find %s", originalURL(r)))
		},
	}
}

func originalURL(r *http.Request) string {
	if r.RequestURI != "" {
		return r.RequestURI
	}
	return r.URL.RequestURI()
}
