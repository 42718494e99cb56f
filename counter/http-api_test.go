package counter

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTTPAPI(t *testing.T) {
	ctx := context.Background()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Query().Get("amount") {
		case "3":
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"data": 3}`))
		case "4":
			_, _ = w.Write([]byte(`{"data":`))
		default:
			w.WriteHeader(http.StatusServiceUnavailable)
		}
	}))
	defer server.Close()

	api, err := NewHTTPAPI(server.URL+"/api", WithHTTPClient(server.Client()))
	require.NoError(t, err)

	t.Run("resolves the delta", func(t *testing.T) {
		response, err := api.FetchCount(ctx, 3)
		require.NoError(t, err)
		assert.Equal(t, CountResponse{Data: 3}, response)
	})

	t.Run("rejects unexpected statuses", func(t *testing.T) {
		_, err := api.FetchCount(ctx, 5)
		assert.Equal(t, UnexpectedStatusError{StatusCode: http.StatusServiceUnavailable}, err)
	})

	t.Run("rejects malformed bodies", func(t *testing.T) {
		_, err := api.FetchCount(ctx, 4)
		assert.Error(t, err)
	})

	t.Run("rejects unsupported schemes", func(t *testing.T) {
		_, err := NewHTTPAPI("ftp://example.com")
		assert.Error(t, err)
	})

	t.Run("settles the counter through the store", func(t *testing.T) {
		store := NewStoreWithState(State{Value: 1}, api, nil)

		entity, err := wait(t, store.IncrementAsync(ctx, 3))
		require.NoError(t, err)
		assert.Equal(t, State{Value: 4, Status: Idle}, entity.State)
	})
}
