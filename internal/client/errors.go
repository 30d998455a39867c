package client

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
)

var (
	ErrNotSignedIn = errors.New("not signed in")
	errNoIdentity  = errors.New("sign-in answer carried no user")
)

// APIError is a non-2xx answer from the API. Error returns the server's message.
type APIError struct {
	Status    int
	Code      string
	Message   string
	RequestID string
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return fmt.Sprintf("request failed with status %d", e.Status)
}

// IsStatus reports whether err is an APIError with the given HTTP status.
func IsStatus(err error, status int) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Status == status
}

type errorEnvelope struct {
	Error struct {
		Code      string `json:"code"`
		Message   string `json:"message"`
		RequestID string `json:"requestId"`
	} `json:"error"`
}

func decodeError(res *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(res.Body, 64<<10))

	out := &APIError{Status: res.StatusCode}

	var env errorEnvelope
	if json.Unmarshal(body, &env) == nil && env.Error.Message != "" {
		out.Code = env.Error.Code
		out.Message = env.Error.Message
		out.RequestID = env.Error.RequestID
		return out
	}

	out.Message = strings.TrimSpace(string(body))
	if out.Message == "" {
		out.Message = http.StatusText(res.StatusCode)
	}
	return out
}
