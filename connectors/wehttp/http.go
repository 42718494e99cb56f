package wehttp

import (
	"fmt"
	"io"
	"mime"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/goccy/go-json"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/time/rate"

	"github.com/weegigs/wee-counter-go/we"
)

type HandlerOption[T any] func(service *httpService[T])

func Logger[T any](log *zerolog.Logger) HandlerOption[T] {
	return func(service *httpService[T]) {
		service.log = log
	}
}

// RateLimit bounds how fast commands are accepted. Reads are not limited.
func RateLimit[T any](limiter *rate.Limiter) HandlerOption[T] {
	return func(service *httpService[T]) {
		service.limiter = limiter
	}
}

func Serializer[T any](serializer EntitySerializer[T]) HandlerOption[T] {
	return func(service *httpService[T]) {
		service.encoder.Serializer = serializer
	}
}

// NewHandler serves GET and POST on /{type}/{key}. When entityService can
// stream snapshots, GET /{type}/{key}/events serves them as server-sent
// events.
func NewHandler[T any](entityService we.EntityService[T], options ...HandlerOption[T]) http.Handler {
	service := &httpService[T]{controller: entityService}
	for _, option := range options {
		option(service)
	}
	if service.log == nil {
		service.log = &log.Logger
	}

	r := chi.NewRouter()

	r.Use(render.SetContentType(render.ContentTypeJSON))

	r.Method(http.MethodGet, "/{type}/{key}", service.getResource())
	r.With(service.limit).Method(http.MethodPost, "/{type}/{key}", service.executeCommand())

	if subscriber, ok := entityService.(we.EntitySubscriber[T]); ok {
		r.Method(http.MethodGet, "/{type}/{key}/events", service.streamEvents(subscriber))
	}

	return otelhttp.NewHandler(r, "we-http")
}

type httpService[T any] struct {
	log        *zerolog.Logger
	controller we.EntityService[T]
	encoder    ResourceEncoder[T]
	limiter    *rate.Limiter
	statuses   []statusMapping
}

func aggregateId(r *http.Request) we.AggregateId {
	return we.AggregateId{Type: chi.URLParam(r, "type"), Key: chi.URLParam(r, "key")}
}

func (service *httpService[T]) limit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if service.limiter != nil && !service.limiter.Allow() {
			renderError(w, r, http.StatusTooManyRequests, "too many requests")
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (service *httpService[T]) fail(w http.ResponseWriter, r *http.Request, err error, message string) {
	status := service.statusOf(err)

	event := service.log.Info()
	if status >= http.StatusInternalServerError {
		event = service.log.Error()
	}
	event.Err(err).Str("aggregate", aggregateId(r).String()).Int("status", status).Msg(message)

	renderError(w, r, status, err.Error())
}

func (service *httpService[T]) encode(w http.ResponseWriter, r *http.Request, entity we.Entity[T]) {
	if err := service.encoder.Encode(w, r, entity); err != nil {
		service.fail(w, r, err, "failed to encode resource")
	}
}

func (service *httpService[T]) getResource() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		entity, err := service.controller.Load(r.Context(), aggregateId(r))
		if err != nil {
			service.fail(w, r, err, "failed to load resource")
			return
		}

		service.encode(w, r, entity)
	}
}

func (service *httpService[T]) executeCommand() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		contentType := r.Header.Get("Content-type")
		mediaType, _, err := mime.ParseMediaType(contentType)
		if mediaType != "application/json" || err != nil {
			renderError(w, r, http.StatusUnsupportedMediaType, "unsupported content type")
			return
		}

		body, err := io.ReadAll(r.Body)
		if err != nil {
			renderError(w, r, http.StatusBadRequest, "invalid request body")
			return
		}

		var command we.RemoteCommand
		if err := json.UnmarshalContext(r.Context(), body, &command); err != nil || command.CommandName == "" {
			service.log.Info().Err(err).Msg("failed to unmarshal command")
			renderError(w, r, http.StatusBadRequest, "invalid request body")
			return
		}

		entity, err := service.controller.Execute(r.Context(), aggregateId(r), command)
		if err != nil {
			service.fail(w, r, err, "failed to execute command")
			return
		}

		service.encode(w, r, entity)
	}
}

func (service *httpService[T]) streamEvents(subscriber we.EntitySubscriber[T]) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		flusher, ok := w.(http.Flusher)
		if !ok {
			renderError(w, r, http.StatusNotImplemented, "streaming unsupported")
			return
		}

		id := aggregateId(r)

		// updates holds only the newest snapshot. A slow client skips
		// intermediate states but always ends on the current one.
		updates := make(chan we.Entity[T], 1)

		current, unsubscribe, err := subscriber.Subscribe(r.Context(), id, func(entity we.Entity[T]) {
			for {
				select {
				case updates <- entity:
					return
				default:
				}

				select {
				case stale := <-updates:
					service.log.Debug().Str("aggregate", id.String()).Str("revision", stale.Revision.String()).Msg("event stream superseded update")
				default:
				}
			}
		})
		if err != nil {
			service.fail(w, r, err, "failed to subscribe")
			return
		}
		defer unsubscribe()

		w.Header().Set("Content-Type", "text/event-stream")
		w.Header().Set("Cache-Control", "no-cache")
		w.Header().Set("Connection", "keep-alive")
		w.WriteHeader(http.StatusOK)

		send := func(entity we.Entity[T]) bool {
			resource, err := service.encoder.Resource(entity)
			if err != nil {
				service.log.Error().Err(err).Str("aggregate", id.String()).Msg("failed to encode resource")
				return false
			}

			data, err := json.Marshal(resource)
			if err != nil {
				service.log.Error().Err(err).Str("aggregate", id.String()).Msg("failed to encode resource")
				return false
			}

			if _, err := fmt.Fprintf(w, "id: %s\nevent: state\ndata: %s\n\n", entity.Revision, data); err != nil {
				return false
			}

			flusher.Flush()
			return true
		}

		if !send(current) {
			return
		}

		for {
			select {
			case <-r.Context().Done():
				return
			case entity := <-updates:
				if !send(entity) {
					return
				}
			}
		}
	}
}
