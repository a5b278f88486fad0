package param

import "context"

// Fetcher resolves a secret by name. A secret that does not exist resolves to
// "" with a nil error; absence is a valid state, not a failure.
type Fetcher interface {
	Fetch(context.Context, string) (string, error)
}
