package stage

import (
	"io/fs"
	"net/http"
	"time"

	"github.com/keithlinneman/tours-api/internal/apperr"
	"github.com/keithlinneman/tours-api/internal/log"
	"github.com/keithlinneman/tours-api/internal/pipeline"
	"github.com/keithlinneman/tours-api/internal/ratelimit"
)

// ViewEngine is the template engine the views stage configures. Load runs
// once while the pipeline is built.
type ViewEngine interface {
	Load() error
}

// Views loads the template engine at construction. At request time it only
// continues.
func Views(engine ViewEngine) (pipeline.Stage, error) {
	if engine == nil {
		return pipeline.Stage{}, apperr.Errorf("views: nil engine")
	}
	if err := engine.Load(); err != nil {
		return pipeline.Stage{}, apperr.Wrap(err, "load view templates")
	}
	return pipeline.Stage{
		Name: "views",
		Run: func(_ http.ResponseWriter, r *http.Request) pipeline.Outcome {
			return pipeline.Next(r)
		},
	}, nil
}

type Options struct {
	Production bool
	Logger     log.Logger

	Views     ViewEngine
	PublicFS  fs.FS
	BodyLimit int64

	Limiter   *ratelimit.IPLimiter
	APIPrefix string

	HPPWhitelist []string
	Now          func() time.Time

	Mounts []Mount
	Errors pipeline.ErrorHandler
}

func (o *Options) setDefaults() {
	if o.Logger == nil {
		o.Logger = log.Nop()
	}
	if o.BodyLimit <= 0 {
		o.BodyLimit = 10 << 10
	}
	if o.APIPrefix == "" {
		o.APIPrefix = "/api"
	}
	if o.HPPWhitelist == nil {
		o.HPPWhitelist = DefaultHPPWhitelist
	}
	if o.Now == nil {
		o.Now = time.Now
	}
}

// Build assembles the request pipeline. It is called once at startup; the
// result cannot be changed afterwards.
func Build(opts Options) (*pipeline.Pipeline, error) {
	opts.setDefaults()
	if opts.Errors == nil {
		return nil, apperr.Errorf("stage: Errors handler is required")
	}
	if opts.Limiter == nil {
		return nil, apperr.Errorf("stage: Limiter is required")
	}

	views, err := Views(opts.Views)
	if err != nil {
		return nil, err
	}

	stages := []pipeline.Stage{
		views,
		Static(opts.PublicFS),
	}
	if !opts.Production {
		stages = append(stages, DevLog(opts.Logger))
	}
	stages = append(stages,
		SecurityHeaders(),
		opts.Limiter.Stage(opts.APIPrefix),
		Body(opts.BodyLimit),
		Cookies(),
		Sanitize(),
		HPP(opts.HPPWhitelist),
		Tag(opts.Now),
		Dispatch(opts.Mounts...),
		NotFound(),
	)
	return pipeline.New(opts.Errors, stages...), nil
}
