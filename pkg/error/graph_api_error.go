package error

import (
	"fmt"
	"net/http"
)

// GraphAPIError wraps a non-2xx answer from the WhatsApp Cloud API.
type GraphAPIError struct {
	HTTPStatus int
	Code       int
	Type       string
	Message    string
}

func (err *GraphAPIError) Error() string {
	return fmt.Sprintf("graph api error (http %d, code %d, %s): %s", err.HTTPStatus, err.Code, err.Type, err.Message)
}

func (err *GraphAPIError) ErrCode() string {
	return "GRAPH_API_ERROR"
}

func (err *GraphAPIError) StatusCode() int {
	return http.StatusBadGateway
}
