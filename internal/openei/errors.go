package openei

import (
	"errors"
	"fmt"
)

// ErrMalformedPayload is returned when a response body cannot be decoded.
var ErrMalformedPayload = errors.New("openei: malformed payload")

// NetworkError reports that a request could not be completed: the transport
// failed, the context ended, or the body could not be read.
type NetworkError struct {
	URL string
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("openei: request %s: %v", e.URL, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// APIError is an error reported by the API itself, either through a non-2xx
// status or an error envelope in the body.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *APIError) Error() string {
	switch {
	case e.Code != "" && e.Message != "":
		return fmt.Sprintf("openei: api error %d (%s): %s", e.StatusCode, e.Code, e.Message)
	case e.Message != "":
		return fmt.Sprintf("openei: api error %d: %s", e.StatusCode, e.Message)
	default:
		return fmt.Sprintf("openei: api returned status %d", e.StatusCode)
	}
}
