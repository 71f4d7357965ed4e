package httputil

import (
	"errors"
	"fmt"
	"io"
	"net/http"
)

type Error struct {
	code    int
	message string
	headers map[string][]string
}

func (e *Error) Error() string {
	return fmt.Sprintf("http error %v: %v", e.code, e.message)
}

func (e *Error) Code() int       { return e.code }
func (e *Error) Message() string { return e.message }

func (e *Error) ApplyHeaders(w http.ResponseWriter) {
	for k, vs := range e.headers {
		for _, v := range vs {
			w.Header().Add(k, v)
		}
	}
}

func MakeError(code int, message string) error {
	return &Error{code: code, message: message}
}

func MakeRetryError(message string, retryAfterSecs int) error {
	return &Error{
		code:    http.StatusTooManyRequests,
		message: message,
		headers: map[string][]string{
			"Retry-After": {fmt.Sprint(retryAfterSecs)},
		},
	}
}

func WriteErrorResponse(err error, w http.ResponseWriter) error {
	var (
		httpErr *Error
		code    int
		message string
	)
	if errors.As(err, &httpErr) {
		code = httpErr.code
		message = httpErr.message
	} else {
		code = http.StatusInternalServerError
		message = "internal server error"
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	if httpErr != nil {
		httpErr.ApplyHeaders(w)
	}
	w.WriteHeader(code)
	if _, err := io.WriteString(w, message); err != nil {
		return fmt.Errorf("write response: %w", err)
	}
	return nil
}
