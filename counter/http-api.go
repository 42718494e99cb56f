package counter

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"

	"github.com/goccy/go-json"
	"github.com/pkg/errors"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

type HTTPAPIOption func(api *HTTPAPI)

func WithHTTPClient(client *http.Client) HTTPAPIOption {
	return func(api *HTTPAPI) {
		api.client = client
	}
}

// HTTPAPI fetches counts from GET <base>/count?amount=<n>, which answers
// {"data": <delta>}.
type HTTPAPI struct {
	base   *url.URL
	client *http.Client
}

func NewHTTPAPI(base string, options ...HTTPAPIOption) (*HTTPAPI, error) {
	parsed, err := url.Parse(base)
	if err != nil {
		return nil, errors.Wrap(err, "invalid count api url")
	}

	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return nil, errors.Errorf("unsupported count api scheme %q", parsed.Scheme)
	}

	api := &HTTPAPI{
		base:   parsed,
		client: &http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport)},
	}

	for _, option := range options {
		option(api)
	}

	return api, nil
}

type UnexpectedStatusError struct {
	StatusCode int
}

func (e UnexpectedStatusError) Error() string {
	return fmt.Sprintf("count api responded %d", e.StatusCode)
}

func (api *HTTPAPI) FetchCount(ctx context.Context, amount int) (CountResponse, error) {
	endpoint := api.base.JoinPath("count")
	query := endpoint.Query()
	query.Set("amount", strconv.Itoa(amount))
	endpoint.RawQuery = query.Encode()

	request, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint.String(), nil)
	if err != nil {
		return CountResponse{}, err
	}
	request.Header.Set("Accept", "application/json")

	response, err := api.client.Do(request)
	if err != nil {
		return CountResponse{}, err
	}
	defer response.Body.Close()

	if response.StatusCode < 200 || response.StatusCode > 299 {
		return CountResponse{}, UnexpectedStatusError{StatusCode: response.StatusCode}
	}

	body, err := io.ReadAll(response.Body)
	if err != nil {
		return CountResponse{}, errors.Wrap(err, "failed to read count response")
	}

	var count CountResponse
	if err := json.UnmarshalContext(ctx, body, &count); err != nil {
		return CountResponse{}, errors.Wrap(err, "failed to decode count response")
	}

	return count, nil
}
