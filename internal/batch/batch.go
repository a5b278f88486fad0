package batch

import (
	"context"
	"errors"
	"strings"

	"github.com/dmorgan81/visualizer/internal/image"
	"github.com/dmorgan81/visualizer/internal/log"
	"github.com/dmorgan81/visualizer/internal/notify"
	"github.com/samber/do"
	"github.com/samber/lo"
)

const (
	MinCount = 1
	MaxCount = 4
)

var (
	ErrEmptyPrompt  = errors.New("please enter a prompt to generate an image")
	ErrInvalidCount = errors.New("number of images must be between 1 and 4")
)

type Request struct {
	Prompt         string
	NegativePrompt string
	Count          int
}

func (r Request) Validate() error {
	if strings.TrimSpace(r.Prompt) == "" {
		return ErrEmptyPrompt
	}
	if r.Count < MinCount || r.Count > MaxCount {
		return ErrInvalidCount
	}
	return nil
}

// Check runs every precondition a caller must hold before starting a batch.
// The credential is checked first so that nothing else is reported when it is
// absent.
func Check(token string, req Request) error {
	if token == "" {
		return image.ErrMissingCredential
	}
	return req.Validate()
}

// Result is the outcome of one attempt: either Image or Err is set.
type Result struct {
	Image []byte
	Err   error
}

func (r Result) OK() bool { return r.Err == nil }

type Status string

const (
	StatusSuccess Status = "success"
	StatusPartial Status = "partial"
	StatusFailed  Status = "failed"
)

type Outcome struct {
	Results []Result
}

func (o Outcome) Succeeded() int {
	return lo.CountBy(o.Results, func(r Result) bool { return r.OK() })
}

func (o Outcome) Failed() int {
	return len(o.Results) - o.Succeeded()
}

func (o Outcome) Images() [][]byte {
	return lo.FilterMap(o.Results, func(r Result, _ int) ([]byte, bool) {
		return r.Image, r.OK()
	})
}

func (o Outcome) Status() Status {
	switch o.Succeeded() {
	case 0:
		return StatusFailed
	case len(o.Results):
		return StatusSuccess
	default:
		return StatusPartial
	}
}

// Generator runs one image request per requested image, strictly one after
// the other. Requests are not fanned out: a cold model may be loading and
// every call can block on its retry wait.
type Generator struct {
	images image.Generator
}

func New(images image.Generator) *Generator {
	return &Generator{images: images}
}

func NewGenerator(i *do.Injector) (*Generator, error) {
	return New(do.MustInvoke[image.Generator](i)), nil
}

// Generate attempts exactly req.Count images. A failed attempt is recorded
// and reported immediately; it never stops the remaining attempts.
func (g *Generator) Generate(ctx context.Context, token string, req Request) Outcome {
	log := log.FromContextOrDiscard(ctx).WithGroup("batch").With("count", req.Count)
	log.Info("generating batch")

	params := image.Params{Prompt: req.Prompt, NegativePrompt: req.NegativePrompt}
	results := make([]Result, 0, req.Count)
	for i := 1; i <= req.Count; i++ {
		notify.Info(ctx, "Creating image %d of %d...", i, req.Count)
		img, err := g.images.Generate(ctx, token, params)
		if err != nil {
			log.Warn("image attempt failed", "attempt", i, "error", err)
			notify.Error(ctx, err)
		}
		results = append(results, Result{Image: img, Err: err})
		notify.Progress(ctx, i, req.Count)
	}

	outcome := Outcome{Results: results}
	log.Info("batch finished", "succeeded", outcome.Succeeded(), "status", outcome.Status())
	switch outcome.Status() {
	case StatusSuccess:
		notify.Success(ctx, "Your images have been generated successfully!")
	case StatusPartial:
		notify.Warning(ctx, "Generated %d of %d images.", outcome.Succeeded(), req.Count)
	default:
		notify.Warning(ctx, "No images were generated.")
	}
	return outcome
}
