package inject

import (
	"context"
	"fmt"
	"net/http"
	"os"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	"github.com/dmorgan81/visualizer/internal/batch"
	"github.com/dmorgan81/visualizer/internal/handler"
	"github.com/dmorgan81/visualizer/internal/image"
	"github.com/dmorgan81/visualizer/internal/log"
	"github.com/dmorgan81/visualizer/internal/page"
	"github.com/dmorgan81/visualizer/internal/param"
	"github.com/dmorgan81/visualizer/internal/web"
	"github.com/samber/do"
	"github.com/samber/lo"
)

// Setup wires every component. The API token comes from Parameter Store when
// HF_TOKEN_PARAM is set, otherwise from the HF_TOKEN environment variable.
func Setup(ctx context.Context) *do.Injector {
	log := log.FromContextOrDiscard(ctx)

	injector := do.NewWithOpts(&do.InjectorOpts{
		Logf: func(format string, args ...any) {
			log.Debug(fmt.Sprintf(format, args...))
		},
	})
	do.Provide[aws.Config](injector, func(i *do.Injector) (aws.Config, error) {
		return config.LoadDefaultConfig(ctx)
	})
	do.Provide[*ssm.Client](injector, func(i *do.Injector) (*ssm.Client, error) {
		return ssm.NewFromConfig(do.MustInvoke[aws.Config](i)), nil
	})
	do.ProvideValue[*http.Client](injector, &http.Client{Timeout: image.RequestTimeout})

	tokenParam, fromSSM := os.LookupEnv("HF_TOKEN_PARAM")
	if fromSSM {
		do.Provide[param.Fetcher](injector, param.NewParameterStoreFetcher)
	} else {
		do.ProvideValue[param.Fetcher](injector, param.EnvFetcher{})
	}
	do.Provide[image.Generator](injector, image.NewHuggingFaceGenerator)
	do.Provide[*batch.Generator](injector, batch.NewGenerator)
	do.Provide[*handler.Handler](injector, handler.NewHandler)
	do.Provide[*page.Templator](injector, page.NewTemplator)
	do.Provide[*web.Server](injector, web.NewServer)

	do.ProvideNamed[string](injector, "hf_token", func(i *do.Injector) (string, error) {
		name := lo.Ternary(fromSSM, tokenParam, "HF_TOKEN")
		return do.MustInvoke[param.Fetcher](i).Fetch(ctx, name)
	})
	do.ProvideNamedValue[string](injector, "hf_api_url", envOr("HF_API_URL", image.DefaultAPIURL))
	do.ProvideNamedValue[string](injector, "hf_model_id", envOr("HF_MODEL_ID", image.DefaultModelID))

	return injector
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
