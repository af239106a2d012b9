package errors

import (
	"net/http"

	"github.com/morikuni/failure/v2"
)

type ErrorCode string

const (
	ErrNotFound        ErrorCode = "NotFound"
	ErrInternal        ErrorCode = "Internal"
	ErrInvalidArgument ErrorCode = "InvalidArgument"
	ErrUnavailable     ErrorCode = "Unavailable"
)

// HTTPStatus maps an error to the status code it is surfaced with.
func HTTPStatus(err error) int {
	switch {
	case failure.Is(err, ErrInvalidArgument):
		return http.StatusBadRequest
	case failure.Is(err, ErrNotFound):
		return http.StatusNotFound
	case failure.Is(err, ErrUnavailable):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// Detail returns the client facing message of err. Errors without a message
// and internal errors are reduced to a generic text so that nothing from the
// storage layer leaks into responses.
func Detail(err error) string {
	status := HTTPStatus(err)
	if status == http.StatusInternalServerError {
		return "Internal server error."
	}
	if msg := string(failure.MessageOf(err)); msg != "" {
		return msg
	}
	return http.StatusText(status)
}
