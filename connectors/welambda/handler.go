package welambda

import (
	"context"
	"encoding/base64"
	"net/http"

	"github.com/aws/aws-lambda-go/events"
	"github.com/goccy/go-json"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/weegigs/wee-counter-go/connectors/wehttp"
	"github.com/weegigs/wee-counter-go/we"
)

type GatewayHandler = func(ctx context.Context, event events.APIGatewayV2HTTPRequest) (events.APIGatewayV2HTTPResponse, error)

type HandlerOption[T any] func(handler *gatewayHandler[T])

func Logger[T any](log *zerolog.Logger) HandlerOption[T] {
	return func(handler *gatewayHandler[T]) {
		handler.log = log
	}
}

func StatusFor[T any](target error, status int) HandlerOption[T] {
	return func(handler *gatewayHandler[T]) {
		handler.statuses = append(handler.statuses, func(err error) (int, bool) {
			return status, errors.Is(err, target)
		})
	}
}

// NewHandler answers API Gateway v2 requests routed with {type} and {key}
// path parameters: GET loads the entity, POST executes a remote command.
func NewHandler[T any](service we.EntityService[T], options ...HandlerOption[T]) GatewayHandler {
	handler := &gatewayHandler[T]{service: service}
	for _, option := range options {
		option(handler)
	}
	if handler.log == nil {
		handler.log = &log.Logger
	}

	return handler.handle
}

type gatewayHandler[T any] struct {
	log      *zerolog.Logger
	service  we.EntityService[T]
	encoder  wehttp.ResourceEncoder[T]
	statuses []func(err error) (int, bool)
}

func (h *gatewayHandler[T]) handle(ctx context.Context, event events.APIGatewayV2HTTPRequest) (events.APIGatewayV2HTTPResponse, error) {
	id := we.AggregateId{Type: event.PathParameters["type"], Key: event.PathParameters["key"]}
	if id.Type == "" || id.Key == "" {
		return respond(http.StatusBadRequest, errorBody("type and key are required"))
	}

	switch event.RequestContext.HTTP.Method {
	case http.MethodGet:
		entity, err := h.service.Load(ctx, id)
		if err != nil {
			return h.fail(id, err, "failed to load resource")
		}
		return h.resource(entity)

	case http.MethodPost:
		body := []byte(event.Body)
		if event.IsBase64Encoded {
			decoded, err := base64.StdEncoding.DecodeString(event.Body)
			if err != nil {
				return respond(http.StatusBadRequest, errorBody("invalid request body"))
			}
			body = decoded
		}

		var command we.RemoteCommand
		if err := json.UnmarshalContext(ctx, body, &command); err != nil || command.CommandName == "" {
			h.log.Info().Err(err).Msg("failed to unmarshal command")
			return respond(http.StatusBadRequest, errorBody("invalid request body"))
		}

		entity, err := h.service.Execute(ctx, id, command)
		if err != nil {
			return h.fail(id, err, "failed to execute command")
		}
		return h.resource(entity)

	default:
		return respond(http.StatusMethodNotAllowed, errorBody("method not allowed"))
	}
}

func (h *gatewayHandler[T]) resource(entity we.Entity[T]) (events.APIGatewayV2HTTPResponse, error) {
	resource, err := h.encoder.Resource(entity)
	if err != nil {
		return events.APIGatewayV2HTTPResponse{}, errors.Wrap(err, "failed to encode resource")
	}

	return respond(http.StatusOK, resource)
}

func (h *gatewayHandler[T]) fail(id we.AggregateId, err error, message string) (events.APIGatewayV2HTTPResponse, error) {
	status := wehttp.StatusOf(err)
	for _, mapping := range h.statuses {
		if mapped, ok := mapping(err); ok {
			status = mapped
			break
		}
	}

	h.log.Info().Err(err).Str("aggregate", id.String()).Int("status", status).Msg(message)
	return respond(status, errorBody(err.Error()))
}

func errorBody(message string) map[string]string {
	return map[string]string{"error": message}
}

func respond(status int, body any) (events.APIGatewayV2HTTPResponse, error) {
	encoded, err := json.Marshal(body)
	if err != nil {
		return events.APIGatewayV2HTTPResponse{}, err
	}

	return events.APIGatewayV2HTTPResponse{
		StatusCode: status,
		Headers:    map[string]string{"Content-Type": "application/json"},
		Body:       string(encoded),
	}, nil
}
