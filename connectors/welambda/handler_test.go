package welambda_test

import (
	"context"
	"encoding/base64"
	"errors"
	"net/http"
	"testing"

	"github.com/aws/aws-lambda-go/events"
	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/weegigs/wee-counter-go/connectors/welambda"
	"github.com/weegigs/wee-counter-go/counter"
	"github.com/weegigs/wee-counter-go/we"
)

func request(method string, key string, body string) events.APIGatewayV2HTTPRequest {
	event := events.APIGatewayV2HTTPRequest{
		PathParameters: map[string]string{"type": "counter", "key": key},
		Body:           body,
	}
	event.RequestContext.HTTP.Method = method

	return event
}

func commandBody(t *testing.T, name string, payload any) string {
	remote, err := we.NewRemoteCommand(we.CommandName(name), payload)
	require.NoError(t, err)

	body, err := json.Marshal(remote)
	require.NoError(t, err)

	return string(body)
}

func value(t *testing.T, response events.APIGatewayV2HTTPResponse) int {
	var resource struct {
		Value int `json:"value"`
	}
	require.NoError(t, json.Unmarshal([]byte(response.Body), &resource))

	return resource.Value
}

func TestGatewayHandler(t *testing.T) {
	ctx := context.Background()

	failing := counter.FetcherFunc(func(ctx context.Context, amount int) (counter.CountResponse, error) {
		return counter.CountResponse{}, errors.New("upstream unavailable")
	})

	service := we.NewEntityService(counter.Factory(failing, nil))
	defer service.Close()

	handler := welambda.NewHandler[counter.State](service, welambda.StatusFor[counter.State](counter.ErrFetchFailure, http.StatusBadGateway))

	t.Run("loads entities", func(t *testing.T) {
		response, err := handler(ctx, request(http.MethodGet, "loaded", ""))
		require.NoError(t, err)

		assert.Equal(t, http.StatusOK, response.StatusCode)
		assert.Equal(t, 0, value(t, response))
	})

	t.Run("executes commands", func(t *testing.T) {
		response, err := handler(ctx, request(http.MethodPost, "executed", commandBody(t, counter.IncrementByAmountCmd, counter.IncrementByAmount{Amount: 4})))
		require.NoError(t, err)

		assert.Equal(t, http.StatusOK, response.StatusCode)
		assert.Equal(t, 4, value(t, response))
	})

	t.Run("accepts base64 encoded bodies", func(t *testing.T) {
		event := request(http.MethodPost, "encoded", base64.StdEncoding.EncodeToString([]byte(commandBody(t, counter.IncrementCmd, nil))))
		event.IsBase64Encoded = true

		response, err := handler(ctx, event)
		require.NoError(t, err)
		assert.Equal(t, 1, value(t, response))
	})

	t.Run("requires type and key", func(t *testing.T) {
		response, err := handler(ctx, request(http.MethodGet, "", ""))
		require.NoError(t, err)
		assert.Equal(t, http.StatusBadRequest, response.StatusCode)
	})

	t.Run("rejects unknown commands", func(t *testing.T) {
		response, err := handler(ctx, request(http.MethodPost, "unknown", commandBody(t, "counter/reset", nil)))
		require.NoError(t, err)
		assert.Equal(t, http.StatusBadRequest, response.StatusCode)
	})

	t.Run("maps fetch failures", func(t *testing.T) {
		response, err := handler(ctx, request(http.MethodPost, "fetch", commandBody(t, counter.IncrementAsyncCmd, counter.IncrementAsync{Amount: 1})))
		require.NoError(t, err)
		assert.Equal(t, http.StatusBadGateway, response.StatusCode)
	})

	t.Run("rejects other methods", func(t *testing.T) {
		response, err := handler(ctx, request(http.MethodDelete, "deleted", ""))
		require.NoError(t, err)
		assert.Equal(t, http.StatusMethodNotAllowed, response.StatusCode)
	})
}
