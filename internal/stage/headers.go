package stage

import (
	"net/http"

	"github.com/keithlinneman/tours-api/internal/httpmw"
	"github.com/keithlinneman/tours-api/internal/pipeline"
)

// SecurityHeaders sets the hardening headers on every response that passes
// this point, error responses included.
func SecurityHeaders() pipeline.Stage {
	return pipeline.Stage{
		Name: "security-headers",
		Run: func(w http.ResponseWriter, r *http.Request) pipeline.Outcome {
			httpmw.ApplySecurityHeaders(w.Header())
			return pipeline.Next(r)
		},
	}
}
