package error

import (
	"errors"
	"net/http"
)

// NotFoundError wraps a domain "not found" sentinel and the key that was
// looked up. errors.Is against the sentinel still matches after mapping.
type NotFoundError struct {
	Err error
	Key string
}

func NotFound(err error, key string) NotFoundError {
	if err == nil {
		err = errors.New("not found")
	}
	return NotFoundError{Err: err, Key: key}
}

func (err NotFoundError) Error() string {
	if err.Key == "" {
		return err.Err.Error()
	}
	return err.Err.Error() + ": " + err.Key
}

func (err NotFoundError) Unwrap() error {
	return err.Err
}

func (err NotFoundError) ErrCode() string {
	return "NOT_FOUND_ERROR"
}

func (err NotFoundError) StatusCode() int {
	return http.StatusNotFound
}
