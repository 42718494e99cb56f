package ds

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/google/wire"
	"go.opentelemetry.io/contrib/instrumentation/github.com/aws/aws-sdk-go-v2/otelaws"

	"github.com/weegigs/wee-counter-go/we"
)

// Live needs an EventStoreTableName from the caller.
var Live = wire.NewSet(
	DefaultAWSConfig,
	Client,
	NewEventStore,
	wire.Bind(new(we.EventStore), new(*DynamoEventStore)),
)

var Local = wire.NewSet(
	LocalEventsTableName,
	LocalDynamoStore,
	wire.Bind(new(we.EventStore), new(*DynamoEventStore)),
)

func LocalEventsTableName() EventStoreTableName {
	return EventStoreTableName("wee-counter")
}

func DefaultAWSConfig(ctx context.Context) (aws.Config, error) {
	return config.LoadDefaultConfig(ctx)
}

func Client(cfg aws.Config) *dynamodb.Client {
	otelaws.AppendMiddlewares(&cfg.APIOptions)
	return dynamodb.NewFromConfig(cfg)
}
