package batch

import (
	"errors"

	"github.com/dmorgan81/visualizer/internal/image"
)

type Code string

const (
	CodeMissingCredential Code = "missing_credential"
	CodeInvalidCredential Code = "invalid_credential"
	CodeUpstream          Code = "upstream_error"
	CodeNetwork           Code = "network_error"
	CodeEmptyPrompt       Code = "empty_prompt"
	CodeInvalidCount      Code = "invalid_count"
	CodeUnknown           Code = "unknown"
)

// CodeOf classifies err for callers that present it to a user.
func CodeOf(err error) Code {
	var (
		status *image.StatusError
		netErr *image.NetworkError
	)
	switch {
	case errors.Is(err, image.ErrMissingCredential):
		return CodeMissingCredential
	case errors.Is(err, image.ErrInvalidCredential):
		return CodeInvalidCredential
	case errors.Is(err, ErrEmptyPrompt):
		return CodeEmptyPrompt
	case errors.Is(err, ErrInvalidCount):
		return CodeInvalidCount
	case errors.As(err, &status):
		return CodeUpstream
	case errors.As(err, &netErr):
		return CodeNetwork
	default:
		return CodeUnknown
	}
}
