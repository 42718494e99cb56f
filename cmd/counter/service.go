package main

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/wire"
	"github.com/nats-io/nats.go"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/weegigs/wee-counter-go/connectors/wehttp"
	"github.com/weegigs/wee-counter-go/connectors/welambda"
	"github.com/weegigs/wee-counter-go/connectors/wemetrics"
	"github.com/weegigs/wee-counter-go/counter"
	"github.com/weegigs/wee-counter-go/stores/ds"
	"github.com/weegigs/wee-counter-go/stores/jetstream"
	"github.com/weegigs/wee-counter-go/stores/memory"
	"github.com/weegigs/wee-counter-go/support"
	"github.com/weegigs/wee-counter-go/we"
)

type CounterService = we.StoreService[counter.State]

// Application is everything a command needs to serve counters.
type Application struct {
	Config   support.Config
	Service  *CounterService
	Registry *prometheus.Registry
}

func Fetcher(cfg support.Config) (counter.Fetcher, error) {
	if cfg.Fetch.URL == "" {
		return counter.MockAPI{Delay: cfg.Fetch.Delay}, nil
	}

	return counter.NewHTTPAPI(cfg.Fetch.URL)
}

func Registry() *prometheus.Registry {
	return prometheus.NewRegistry()
}

func Gauges() []wemetrics.Gauge[counter.State] {
	return []wemetrics.Gauge[counter.State]{
		{
			Name:  "value",
			Help:  "Current counter value.",
			Value: func(state counter.State) float64 { return float64(counter.SelectCount(state)) },
		},
		{
			Name: "loading",
			Help: "1 while a fetch is outstanding.",
			Value: func(state counter.State) float64 {
				if counter.SelectStatus(state) == counter.Loading {
					return 1
				}
				return 0
			},
		},
	}
}

func NewCounterService(api counter.Fetcher, events we.EventStore, registry *prometheus.Registry) (*CounterService, func(), error) {
	collector, err := wemetrics.NewCollector(registry, "counter", Gauges()...)
	if err != nil {
		return nil, nil, err
	}

	service := we.NewEntityService(counter.Factory(api, events, we.WithLogger(&log.Logger)))
	service.Observe(collector.Observe)

	return service, service.Close, nil
}

func MemoryEventStore() *memory.EventStore {
	return memory.NewEventStore()
}

func TableName(cfg support.Config) ds.EventStoreTableName {
	return ds.EventStoreTableName(cfg.Dynamo.Table)
}

func NatsConnection(cfg support.Config) (*nats.Conn, func(), error) {
	conn, err := nats.Connect(cfg.Nats.URL, nats.Name("wee-counter"))
	if err != nil {
		return nil, nil, err
	}

	return conn, conn.Close, nil
}

func JetStreamEventStore(cfg support.Config, conn *nats.Conn) (*jetstream.EventStore, error) {
	return jetstream.NewEventStore(cfg.Nats.Stream, conn)
}

var application = wire.NewSet(
	Fetcher,
	Registry,
	NewCounterService,
	wire.Struct(new(Application), "*"),
)

var Memory = wire.NewSet(
	MemoryEventStore,
	wire.Bind(new(we.EventStore), new(*memory.EventStore)),
)

var Dynamo = wire.NewSet(ds.Live, TableName)

var JetStream = wire.NewSet(
	NatsConnection,
	JetStreamEventStore,
	wire.Bind(new(we.EventStore), new(*jetstream.EventStore)),
)

// Initialize builds the application for the configured journal.
func Initialize(ctx context.Context, cfg support.Config) (*Application, func(), error) {
	switch cfg.Journal {
	case support.DynamoJournal:
		return dynamoApplication(ctx, cfg)
	case support.LocalDynamoJournal:
		return localDynamoApplication(ctx, cfg)
	case support.JetStreamJournal:
		return jetStreamApplication(ctx, cfg)
	default:
		return memoryApplication(ctx, cfg)
	}
}

func (app *Application) statusOptions() []wehttp.HandlerOption[counter.State] {
	return []wehttp.HandlerOption[counter.State]{
		wehttp.Logger[counter.State](&log.Logger),
		wehttp.StatusFor[counter.State](counter.ErrFetchFailure, http.StatusBadGateway),
	}
}

// Handler serves the counter routes and /metrics.
func (app *Application) Handler() http.Handler {
	options := app.statusOptions()
	if limit := app.Config.Limit; limit.Rate > 0 {
		options = append(options, wehttp.RateLimit[counter.State](rate.NewLimiter(rate.Limit(limit.Rate), limit.Burst)))
	}

	r := chi.NewRouter()
	r.Handle("/metrics", promhttp.HandlerFor(app.Registry, promhttp.HandlerOpts{}))
	r.Mount("/", wehttp.NewHandler[counter.State](app.Service, options...))

	return withLogging(logrus.StandardLogger(), r)
}

func (app *Application) Gateway() welambda.GatewayHandler {
	return welambda.NewHandler[counter.State](
		app.Service,
		welambda.Logger[counter.State](&log.Logger),
		welambda.StatusFor[counter.State](counter.ErrFetchFailure, http.StatusBadGateway),
	)
}
