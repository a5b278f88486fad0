package image

import "context"

type Params struct {
	Prompt         string
	NegativePrompt string
}

// Generator produces the bytes of a single image. Implementations never
// panic on upstream failures; every failure comes back as an error.
type Generator interface {
	Generate(ctx context.Context, token string, params Params) ([]byte, error)
}
