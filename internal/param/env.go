package param

import (
	"context"
	"os"
	"strings"

	"github.com/dmorgan81/visualizer/internal/log"
)

// EnvFetcher reads secrets from the process environment, which the local
// server seeds from a .env file.
type EnvFetcher struct{}

func (EnvFetcher) Fetch(ctx context.Context, name string) (string, error) {
	log.FromContextOrDiscard(ctx).WithGroup("env").Info("fetching variable", "name", name)
	return strings.TrimSpace(os.Getenv(name)), nil
}
