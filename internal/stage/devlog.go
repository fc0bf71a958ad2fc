package stage

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/keithlinneman/tours-api/internal/httpmw"
	"github.com/keithlinneman/tours-api/internal/log"
	"github.com/keithlinneman/tours-api/internal/pipeline"
)

// DevLog emits one access log line per request once it has its terminal
// outcome. Build installs it only outside production.
func DevLog(fallback log.Logger) pipeline.Stage {
	if fallback == nil {
		fallback = log.Nop()
	}
	return pipeline.Stage{
		Name: "devlog",
		Run: func(w http.ResponseWriter, r *http.Request) pipeline.Outcome {
			start := time.Now()
			rw := httpmw.NewStatusRecorder(w)

			// dispatch fills an existing route context in place, so the
			// matched pattern is readable here once the request is done
			if chi.RouteContext(r.Context()) == nil {
				r = r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, chi.NewRouteContext()))
			}

			return pipeline.Next(r).WithWriter(rw).Finally(func() {
				ctx := r.Context()
				log.FromContextOr(ctx, fallback).Info(ctx, "http request",
					"http.request.method", r.Method,
					"url.path", r.URL.Path,
					"http.route", httpmw.RoutePattern(r),
					"http.response.status_code", rw.Status(),
					"http.server.request.duration", time.Since(start).Seconds(),
					"http.response.body.size", rw.Bytes(),
					"http.request.body.size", max(r.ContentLength, 0),
				)
			})
		},
	}
}
