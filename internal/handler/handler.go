package handler

import (
	"context"
	"fmt"

	"github.com/dmorgan81/visualizer/internal/batch"
	"github.com/dmorgan81/visualizer/internal/log"
	"github.com/dmorgan81/visualizer/internal/notify"
	"github.com/google/uuid"
	"github.com/samber/do"
	"github.com/samber/lo"
)

const contentType = "image/png"

type Input struct {
	Prompt         string `json:"prompt" form:"prompt"`
	NegativePrompt string `json:"negative_prompt" form:"negative_prompt"`
	Count          int    `json:"count" form:"count" binding:"omitempty,min=1,max=4"`
}

func (i Input) toRequest() batch.Request {
	return batch.Request{
		Prompt:         i.Prompt,
		NegativePrompt: i.NegativePrompt,
		Count:          lo.Ternary(i.Count == 0, batch.MinCount, i.Count),
	}
}

type Image struct {
	Name        string `json:"name"`
	Caption     string `json:"caption"`
	ContentType string `json:"content_type"`
	Data        []byte `json:"data"`
}

type Failure struct {
	Attempt int        `json:"attempt"`
	Code    batch.Code `json:"code"`
	Message string     `json:"message"`
}

type Output struct {
	ID        string         `json:"id"`
	Status    batch.Status   `json:"status"`
	Requested int            `json:"requested"`
	Images    []Image        `json:"images"`
	Failures  []Failure      `json:"failures,omitempty"`
	Events    []notify.Event `json:"events,omitempty"`
}

// Error is returned when a batch cannot start at all.
type Error struct {
	Code batch.Code
	Err  error
}

func (e *Error) Error() string { return e.Err.Error() }

func (e *Error) Unwrap() error { return e.Err }

type Handler struct {
	generator *batch.Generator
	token     string
}

func New(generator *batch.Generator, token string) *Handler {
	return &Handler{generator: generator, token: token}
}

func NewHandler(i *do.Injector) (*Handler, error) {
	return New(
		do.MustInvoke[*batch.Generator](i),
		do.MustInvokeNamed[string](i, "hf_token"),
	), nil
}

// Handle is the Lambda entry point. Notices raised while generating are
// returned in Output.Events.
func (h *Handler) Handle(ctx context.Context, input Input) (Output, error) {
	rec := &notify.Recorder{}
	out, err := h.Run(notify.NewContext(ctx, rec), input)
	out.Events = rec.Events()
	return out, err
}

// Run checks preconditions, then generates the batch. Notices go to the
// notifier carried by ctx as they happen.
func (h *Handler) Run(ctx context.Context, input Input) (Output, error) {
	id := uuid.NewString()
	log := log.FromContextOrDiscard(ctx).WithGroup("Handler").With("id", id, "count", input.Count)
	log.Info("handling generate request")

	req := input.toRequest()
	if err := batch.Check(h.token, req); err != nil {
		log.Warn("request rejected", "error", err)
		code := batch.CodeOf(err)
		switch code {
		case batch.CodeMissingCredential:
			notify.Error(ctx, fmt.Errorf("authentication error: hugging face %w", err))
			notify.Info(ctx, "Please add your HF_TOKEN to your secrets.")
		case batch.CodeEmptyPrompt:
			notify.Warning(ctx, "Please enter a prompt to generate an image.")
		default:
			notify.Warning(ctx, "Number of images must be between %d and %d.", batch.MinCount, batch.MaxCount)
		}
		return Output{ID: id, Requested: req.Count}, &Error{Code: code, Err: err}
	}

	notify.Info(ctx, "Generating %d image(s)...", req.Count)
	outcome := h.generator.Generate(ctx, h.token, req)

	out := Output{
		ID:        id,
		Status:    outcome.Status(),
		Requested: req.Count,
		Images: lo.Map(outcome.Images(), func(data []byte, i int) Image {
			return Image{
				Name:        fmt.Sprintf("generated_image_%d.png", i+1),
				Caption:     fmt.Sprintf("Image %d", i+1),
				ContentType: contentType,
				Data:        data,
			}
		}),
	}
	for n, r := range outcome.Results {
		if r.OK() {
			continue
		}
		out.Failures = append(out.Failures, Failure{Attempt: n + 1, Code: batch.CodeOf(r.Err), Message: r.Err.Error()})
	}
	return out, nil
}
