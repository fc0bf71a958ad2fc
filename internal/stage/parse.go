package stage

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"mime"
	"net/http"
	"net/url"

	"github.com/keithlinneman/tours-api/internal/apperr"
	"github.com/keithlinneman/tours-api/internal/pipeline"
	"github.com/keithlinneman/tours-api/internal/reqctx"
)

const (
	mimeJSON = "application/json"
	mimeForm = "application/x-www-form-urlencoded"
)

// Body decodes JSON and urlencoded bodies of at most limit bytes into
// reqctx.Body. Other content types are left for the router to read, still
// capped at limit; chunked bodies of those types are buffered first so the
// cap is enforced before dispatch.
func Body(limit int64) pipeline.Stage {
	return pipeline.Stage{
		Name: "body",
		Run: func(w http.ResponseWriter, r *http.Request) pipeline.Outcome {
			if r.ContentLength > limit {
				return pipeline.Fail(tooLarge(limit, nil))
			}

			body := map[string]any{}
			mt := mediaType(r)
			if r.Body == nil || r.Body == http.NoBody {
				return pipeline.Next(reqctx.WithBody(r, body))
			}
			if mt != mimeJSON && mt != mimeForm {
				if r.ContentLength >= 0 {
					r.Body = http.MaxBytesReader(w, r.Body, limit)
					return pipeline.Next(reqctx.WithBody(r, body))
				}
				// unknown length: buffer so an oversized upload is refused
				// before any router sees it
				buf, err := io.ReadAll(io.LimitReader(r.Body, limit+1))
				_ = r.Body.Close()
				if err != nil {
					return pipeline.Fail(apperr.FromCause(err, "Could not read request body", http.StatusBadRequest))
				}
				if int64(len(buf)) > limit {
					return pipeline.Fail(tooLarge(limit, nil))
				}
				r.Body = io.NopCloser(bytes.NewReader(buf))
				r.ContentLength = int64(len(buf))
				return pipeline.Next(reqctx.WithBody(r, body))
			}

			raw, err := io.ReadAll(http.MaxBytesReader(w, r.Body, limit))
			_ = r.Body.Close()
			if err != nil {
				var mbe *http.MaxBytesError
				if errors.As(err, &mbe) {
					return pipeline.Fail(tooLarge(limit, err))
				}
				return pipeline.Fail(apperr.FromCause(err, "Could not read request body", http.StatusBadRequest))
			}
			// the decoded copy is the only one routers may use; it is the one
			// the sanitize stage cleans
			r.Body = http.NoBody

			switch mt {
			case mimeJSON:
				if len(raw) > 0 {
					if err := json.Unmarshal(raw, &body); err != nil {
						return pipeline.Fail(apperr.FromCause(err, "Invalid JSON in request body", http.StatusBadRequest))
					}
					if body == nil {
						body = map[string]any{}
					}
				}
			case mimeForm:
				vals, err := url.ParseQuery(string(raw))
				if err != nil {
					return pipeline.Fail(apperr.FromCause(err, "Invalid form body", http.StatusBadRequest))
				}
				for k, vs := range vals {
					if len(vs) == 1 {
						body[k] = vs[0]
						continue
					}
					arr := make([]any, len(vs))
					for i, v := range vs {
						arr[i] = v
					}
					body[k] = arr
				}
			}
			return pipeline.Next(reqctx.WithBody(r, body))
		},
	}
}

func tooLarge(limit int64, cause error) *apperr.Error {
	if cause == nil {
		cause = &http.MaxBytesError{Limit: limit}
	}
	return apperr.FromCause(cause, "Request body too large", http.StatusRequestEntityTooLarge)
}

func mediaType(r *http.Request) string {
	ct := r.Header.Get("Content-Type")
	if ct == "" {
		return ""
	}
	mt, _, err := mime.ParseMediaType(ct)
	if err != nil {
		return ""
	}
	return mt
}

// Cookies parses request cookies into reqctx.Cookies. For repeated names the
// first one wins, matching net/http's Request.Cookie.
func Cookies() pipeline.Stage {
	return pipeline.Stage{
		Name: "cookies",
		Run: func(_ http.ResponseWriter, r *http.Request) pipeline.Outcome {
			cs := r.Cookies()
			m := make(map[string]string, len(cs))
			for _, c := range cs {
				if _, seen := m[c.Name]; !seen {
					m[c.Name] = c.Value
				}
			}
			return pipeline.Next(reqctx.WithCookies(r, m))
		},
	}
}
