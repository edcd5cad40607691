package httpclient

import (
	"fmt"
	"net/http"
)

const maxErrorBody = 256

// StatusError is returned for responses with status >= 400 when no custom
// ResponseErrorHandler is set.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("http %d %s: %s", e.StatusCode, http.StatusText(e.StatusCode), e.Body)
}

// StatusErrorHandler is the default ResponseErrorHandler.
func StatusErrorHandler(statusCode int, body []byte) error {
	if statusCode < http.StatusBadRequest {
		return nil
	}
	b := string(body)
	if len(b) > maxErrorBody {
		b = b[:maxErrorBody]
	}
	return &StatusError{StatusCode: statusCode, Body: b}
}
