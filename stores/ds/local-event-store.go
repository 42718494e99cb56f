package ds

import (
	"context"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

const LocalEndpoint = "http://localhost:8000"

// LocalDynamoStore connects to dynamodb-local, creating the events table on
// first use.
func LocalDynamoStore(ctx context.Context, table EventStoreTableName) (*DynamoEventStore, error) {
	cfg, err := localConfig(ctx, LocalEndpoint)
	if err != nil {
		return nil, err
	}

	client := Client(cfg)
	if err := EnsureTable(ctx, client, table); err != nil {
		return nil, err
	}

	return NewEventStore(client, table), nil
}

func localConfig(ctx context.Context, endpoint string) (aws.Config, error) {
	return config.LoadDefaultConfig(ctx,
		config.WithRegion("us-east-1"),
		config.WithEndpointResolverWithOptions(aws.EndpointResolverWithOptionsFunc(
			func(service, region string, options ...interface{}) (aws.Endpoint, error) {
				return aws.Endpoint{URL: endpoint, SigningRegion: region}, nil
			})),
		config.WithCredentialsProvider(credentials.StaticCredentialsProvider{
			Value: aws.Credentials{
				AccessKeyID: "dummy", SecretAccessKey: "dummy", SessionToken: "dummy",
				Source: "Hard-coded credentials; values are irrelevant for local DynamoDB",
			},
		}))
}

func EnsureTable(ctx context.Context, client *dynamodb.Client, table EventStoreTableName) error {
	exists, err := tableExists(ctx, client, table)
	if err != nil {
		return err
	}

	if exists {
		return nil
	}

	return createTable(ctx, client, table)
}

func tableExists(ctx context.Context, client *dynamodb.Client, table EventStoreTableName) (bool, error) {
	description, err := client.DescribeTable(ctx, &dynamodb.DescribeTableInput{TableName: aws.String(table.String())})
	if err != nil {
		var notFound *types.ResourceNotFoundException
		if errors.As(err, &notFound) {
			return false, nil
		}
		return false, err
	}

	if description.Table.TableStatus != types.TableStatusActive {
		return false, errors.Errorf("events table %s exists but is not active", table)
	}

	return true, nil
}

func createTable(ctx context.Context, client *dynamodb.Client, table EventStoreTableName) error {
	log.WithField("table", table.String()).Info("creating events table")

	_, err := client.CreateTable(
		ctx, &dynamodb.CreateTableInput{
			TableName: aws.String(table.String()),
			AttributeDefinitions: []types.AttributeDefinition{
				{AttributeName: aws.String("pk"), AttributeType: types.ScalarAttributeTypeS},
				{AttributeName: aws.String("sk"), AttributeType: types.ScalarAttributeTypeS},
			},
			KeySchema: []types.KeySchemaElement{
				{AttributeName: aws.String("pk"), KeyType: types.KeyTypeHash},
				{AttributeName: aws.String("sk"), KeyType: types.KeyTypeRange},
			},
			BillingMode: types.BillingModePayPerRequest,
		},
	)
	if err != nil {
		return err
	}

	return dynamodb.NewTableExistsWaiter(client).Wait(ctx, &dynamodb.DescribeTableInput{TableName: aws.String(table.String())}, 2*time.Minute)
}
