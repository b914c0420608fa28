package domain

import "errors"

var (
	ErrInvalidSignature  = errors.New("invalid webhook signature")
	ErrMissingSignature  = errors.New("missing X-Hub-Signature-256 header")
	ErrSecretNotSet      = errors.New("app secret not configured")
	ErrVerificationFail  = errors.New("webhook verification failed")
	ErrInvalidRetention  = errors.New("days must be between 1 and 365")
	ErrUnsupportedObject = errors.New("unsupported webhook object")
)
