package httpmw

import (
	"fmt"
	"net/http"

	"github.com/keithlinneman/tours-api/internal/apperr"
	"github.com/keithlinneman/tours-api/internal/log"
)

// Recover turns a panic below it into a plain 500 and an error log. The
// request pipeline recovers its own stages; this guards the outer middleware
// and the ops listener.
func Recover(L log.Logger, onPanic func()) func(http.Handler) http.Handler {
	if L == nil {
		L = log.Nop()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				v := recover()
				if v == nil {
					return
				}
				if v == http.ErrAbortHandler {
					panic(v)
				}
				if onPanic != nil {
					onPanic()
				}
				err, ok := v.(error)
				if !ok {
					err = fmt.Errorf("%v", v)
				}
				L.With(
					"http.request.method", r.Method,
					"url.path", r.URL.Path,
				).Error(r.Context(), apperr.WithStack(err), "httpserver panic recovered")
				http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
			}()
			next.ServeHTTP(w, r)
		})
	}
}
