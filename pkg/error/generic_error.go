package error

// GenericError is implemented by every error that knows how to render itself
// as an HTTP response.
type GenericError interface {
	Error() string
	ErrCode() string
	StatusCode() int
}
