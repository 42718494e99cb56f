package wehttp

import (
	"net/http"

	"github.com/go-chi/render"
	"github.com/pkg/errors"

	"github.com/weegigs/wee-counter-go/we"
)

type statusMapping struct {
	target error
	status int
}

// StatusFor answers requests failing with an error matching target with
// status.
func StatusFor[T any](target error, status int) HandlerOption[T] {
	return func(service *httpService[T]) {
		service.statuses = append(service.statuses, statusMapping{target: target, status: status})
	}
}

func (service *httpService[T]) statusOf(err error) int {
	for _, mapping := range service.statuses {
		if errors.Is(err, mapping.target) {
			return mapping.status
		}
	}

	return StatusOf(err)
}

// StatusOf maps framework errors onto HTTP status codes.
func StatusOf(err error) int {
	var notFound we.CommandNotFoundError
	var unexpected we.UnexpectedCommandError
	var payload we.InvalidPayloadError
	var encoding *we.InvalidEncodingError
	var entity we.UnknownEntityError

	switch {
	case errors.As(err, &notFound), errors.As(err, &unexpected), errors.As(err, &payload), errors.As(err, &encoding):
		return http.StatusBadRequest
	case errors.As(err, &entity):
		return http.StatusNotFound
	case errors.Is(err, we.RevisionConflict):
		return http.StatusConflict
	case errors.Is(err, we.ErrStoreClosed):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

type errorResponse struct {
	Error string `json:"error"`
}

func renderError(w http.ResponseWriter, r *http.Request, status int, message string) {
	render.Status(r, status)
	render.JSON(w, r, errorResponse{Error: message})
}
