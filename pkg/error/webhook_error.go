package error

import "net/http"

// WebhookError is returned when an inbound webhook cannot be accepted
// (bad signature, bad verify token).
type WebhookError string

func (err WebhookError) Error() string {
	return string(err)
}

func (err WebhookError) ErrCode() string {
	return "WEBHOOK_ERROR"
}

func (err WebhookError) StatusCode() int {
	return http.StatusForbidden
}
