package stage

import (
	"net/http"
	"net/url"
	"time"

	"github.com/keithlinneman/tours-api/internal/pipeline"
	"github.com/keithlinneman/tours-api/internal/reqctx"
	"github.com/keithlinneman/tours-api/internal/sanitize"
)

// DefaultHPPWhitelist lists query parameters that may legitimately repeat.
var DefaultHPPWhitelist = []string{
	"duration",
	"ratingsQuantity",
	"ratingsAverage",
	"maxGroupSize",
	"difficulty",
	"price",
}

// Sanitize drops operator keys and strips markup from the decoded body and
// the query string.
func Sanitize() pipeline.Stage {
	return pipeline.Stage{
		Name: "sanitize",
		Run: func(_ http.ResponseWriter, r *http.Request) pipeline.Outcome {
			if body := reqctx.Body(r.Context()); body != nil {
				sanitize.Operators(body)
				sanitize.Markup(body)
			}
			if r.URL.RawQuery == "" {
				return pipeline.Next(r)
			}
			return pipeline.Next(withQuery(r, sanitize.Query(r.URL.Query())))
		},
	}
}

// HPP collapses repeated query parameters to their last value, except for
// whitelisted names which keep every value in order. Urlencoded bodies get
// the same treatment.
func HPP(whitelist []string) pipeline.Stage {
	allow := make(map[string]bool, len(whitelist))
	for _, k := range whitelist {
		allow[k] = true
	}
	return pipeline.Stage{
		Name: "hpp",
		Run: func(_ http.ResponseWriter, r *http.Request) pipeline.Outcome {
			if mediaType(r) == mimeForm {
				for k, v := range reqctx.Body(r.Context()) {
					if arr, ok := v.([]any); ok && !allow[k] && len(arr) > 0 {
						reqctx.Body(r.Context())[k] = arr[len(arr)-1]
					}
				}
			}
			if r.URL.RawQuery == "" {
				return pipeline.Next(r)
			}
			q := r.URL.Query()
			changed := false
			for k, vs := range q {
				if len(vs) > 1 && !allow[k] {
					q[k] = vs[len(vs)-1:]
					changed = true
				}
			}
			if !changed {
				return pipeline.Next(r)
			}
			return pipeline.Next(withQuery(r, q))
		},
	}
}

// Tag stamps the request with its receipt time in UTC.
func Tag(now func() time.Time) pipeline.Stage {
	if now == nil {
		now = time.Now
	}
	return pipeline.Stage{
		Name: "tag",
		Run: func(_ http.ResponseWriter, r *http.Request) pipeline.Outcome {
			return pipeline.Next(reqctx.WithRequestTime(r, now().UTC()))
		},
	}
}

// withQuery returns a shallow copy of r whose URL carries q. r.RequestURI
// keeps the original target.
func withQuery(r *http.Request, q url.Values) *http.Request {
	r2 := new(http.Request)
	*r2 = *r
	u := *r.URL
	u.RawQuery = q.Encode()
	r2.URL = &u
	return r2
}
