package image

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/dmorgan81/visualizer/internal/log"
	"github.com/dmorgan81/visualizer/internal/notify"
	"github.com/samber/do"
)

const (
	DefaultAPIURL  = "https://api-inference.huggingface.co"
	DefaultModelID = "stabilityai/stable-diffusion-xl-base-1.0"

	// RequestTimeout covers cold starts, which can take minutes.
	RequestTimeout = 300 * time.Second

	defaultLoadingWait = 20 * time.Second
)

type parameters struct {
	NegativePrompt string `json:"negative_prompt"`
}

type payload struct {
	Inputs     string     `json:"inputs"`
	Parameters parameters `json:"parameters"`
}

// HuggingFaceGenerator calls the hosted inference API for a single
// text-to-image model. A 503 while the model is loading is retried once after
// the wait the API estimates.
type HuggingFaceGenerator struct {
	Client  *http.Client
	APIURL  string
	ModelID string

	// Sleep waits out the model loading estimate; nil means a timer that
	// honours ctx.
	Sleep func(context.Context, time.Duration) error
}

func NewHuggingFaceGenerator(i *do.Injector) (Generator, error) {
	return &HuggingFaceGenerator{
		Client:  do.MustInvoke[*http.Client](i),
		APIURL:  do.MustInvokeNamed[string](i, "hf_api_url"),
		ModelID: do.MustInvokeNamed[string](i, "hf_model_id"),
	}, nil
}

func (g *HuggingFaceGenerator) Endpoint() string {
	base := g.APIURL
	if base == "" {
		base = DefaultAPIURL
	}
	model := g.ModelID
	if model == "" {
		model = DefaultModelID
	}
	return strings.TrimRight(base, "/") + "/models/" + model
}

func (g *HuggingFaceGenerator) Generate(ctx context.Context, token string, params Params) ([]byte, error) {
	log := log.FromContextOrDiscard(ctx).WithGroup("huggingface").With("endpoint", g.Endpoint())
	if token == "" {
		return nil, ErrMissingCredential
	}

	body, err := json.Marshal(payload{
		Inputs:     params.Prompt,
		Parameters: parameters{NegativePrompt: params.NegativePrompt},
	})
	if err != nil {
		return nil, err
	}

	log.Info("generating image via huggingface inference api")
	status, data, err := g.post(ctx, token, body)
	if err != nil {
		log.Warn("request failed", "error", err)
		return nil, err
	}

	switch {
	case success(status):
		return received(log, data)
	case status == http.StatusServiceUnavailable:
		wait := estimatedWait(data)
		log.Info("model is loading, waiting before retry", "wait", wait)
		notify.Info(ctx, "Model is currently loading. Please wait... (Est. time: %d seconds)", int(wait.Seconds()))
		if err := g.sleep(ctx, wait); err != nil {
			return nil, &NetworkError{Err: err}
		}

		status, data, err = g.post(ctx, token, body)
		if err != nil {
			log.Warn("retry failed", "error", err)
			return nil, err
		}
		if success(status) {
			return received(log, data)
		}
		log.Warn("retry rejected", "status", status)
		return nil, &StatusError{StatusCode: status, Body: text(data), Retried: true}
	case status == http.StatusUnauthorized:
		log.Warn("api token rejected")
		return nil, ErrInvalidCredential
	default:
		log.Warn("request rejected", "status", status)
		return nil, &StatusError{StatusCode: status, Body: text(data)}
	}
}

func (g *HuggingFaceGenerator) post(ctx context.Context, token string, body []byte) (int, []byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.Endpoint(), bytes.NewReader(body))
	if err != nil {
		return 0, nil, err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")

	client := g.Client
	if client == nil {
		client = &http.Client{Timeout: RequestTimeout}
	}

	resp, err := client.Do(req)
	if err != nil {
		return 0, nil, &NetworkError{Err: err}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, &NetworkError{Err: fmt.Errorf("reading response: %w", err)}
	}
	return resp.StatusCode, data, nil
}

func (g *HuggingFaceGenerator) sleep(ctx context.Context, d time.Duration) error {
	if g.Sleep != nil {
		return g.Sleep(ctx, d)
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func received(log *slog.Logger, data []byte) ([]byte, error) {
	if len(data) == 0 {
		return nil, &NetworkError{Err: errors.New("empty response body")}
	}
	log.Info("received image", "bytes", len(data))
	return data, nil
}

// estimatedWait reads estimated_time (seconds) from a loading response.
func estimatedWait(data []byte) time.Duration {
	var body struct {
		EstimatedTime *float64 `json:"estimated_time"`
	}
	if err := json.Unmarshal(data, &body); err != nil || body.EstimatedTime == nil || *body.EstimatedTime < 0 {
		return defaultLoadingWait
	}
	return time.Duration(*body.EstimatedTime * float64(time.Second))
}

func success(status int) bool {
	return status >= 200 && status < 300
}

func text(data []byte) string {
	return strings.TrimSpace(string(data))
}
