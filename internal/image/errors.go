package image

import (
	"errors"
	"fmt"
)

var (
	ErrMissingCredential = errors.New("api token not found")
	ErrInvalidCredential = errors.New("the api token is invalid or has expired")
)

// StatusError is a non-success response other than 401.
type StatusError struct {
	StatusCode int
	Body       string
	Retried    bool
}

func (e *StatusError) Error() string {
	if e.Retried {
		return fmt.Sprintf("error after retry: %d - %s", e.StatusCode, e.Body)
	}
	return fmt.Sprintf("error: %d - %s", e.StatusCode, e.Body)
}

// NetworkError is a transport level failure: dial, timeout, truncated or
// empty response.
type NetworkError struct {
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("an unexpected network error occurred: %v", e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }
