package remote

import (
	"errors"
	"fmt"
	"strings"
)

// RemoteCallError reports a non-success response from the service.
type RemoteCallError struct {
	Method     string
	Path       string
	StatusCode int
	Body       string
}

func newRemoteCallError(method, path string, status int, body []byte) *RemoteCallError {
	if len(body) > maxErrorBody {
		body = body[:maxErrorBody]
	}
	return &RemoteCallError{
		Method:     method,
		Path:       path,
		StatusCode: status,
		Body:       string(body),
	}
}

func (e *RemoteCallError) Error() string {
	body := strings.TrimSpace(e.Body)
	if body == "" {
		return fmt.Sprintf("%s %s: HTTP %d", e.Method, e.Path, e.StatusCode)
	}
	return fmt.Sprintf("%s %s: HTTP %d: %s", e.Method, e.Path, e.StatusCode, body)
}

// IsRemoteCallError returns true if err is or wraps a RemoteCallError.
func IsRemoteCallError(err error) bool {
	var re *RemoteCallError
	return errors.As(err, &re)
}

// StatusCode extracts the HTTP status from a RemoteCallError, or 0.
func StatusCode(err error) int {
	var re *RemoteCallError
	if errors.As(err, &re) {
		return re.StatusCode
	}
	return 0
}
