package ds

import (
	"context"
	"time"

	"github.com/avast/retry-go"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/expression"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/aws/smithy-go"
	"github.com/pkg/errors"

	"github.com/weegigs/wee-counter-go/we"
)

type EventStoreTableName string

func (name EventStoreTableName) String() string {
	return string(name)
}

// DynamoEventStore journals change sets to a single table keyed by
// pk = encoded aggregate id and sk = change-set#<revision>. A latest-revision
// item per aggregate makes each publish a conditional transaction.
type DynamoEventStore struct {
	db       *dynamodb.Client
	table    string
	revision *we.RevisionGenerator
	now      func() time.Time
}

func NewEventStore(db *dynamodb.Client, table EventStoreTableName) *DynamoEventStore {
	return &DynamoEventStore{
		db:       db,
		table:    table.String(),
		revision: we.NewRevisionGenerator(),
		now:      time.Now,
	}
}

func (ds *DynamoEventStore) Load(ctx context.Context, id we.AggregateId) (we.Aggregate, error) {
	events, err := ds.read(ctx, id)
	if err != nil {
		return we.Aggregate{}, err
	}

	return we.Aggregate{
		Id:       id,
		Revision: we.RevisionOf(events),
		Events:   events,
	}, nil
}

func (ds *DynamoEventStore) Publish(ctx context.Context, aggregateId we.AggregateId, options we.PublishOptions, events ...we.DomainEvent) ([]we.RecordedEvent, error) {
	if len(events) == 0 {
		return nil, we.ErrNoEvents
	}

	var recorded []we.RecordedEvent

	err := retry.Do(
		func() error {
			changes, err := ds.record(aggregateId, options, events)
			if err != nil {
				return err
			}

			if err := ds.write(ctx, changes, options.ExpectedRevision); err != nil {
				return err
			}

			recorded = changes.events
			return nil
		},
		retry.RetryIf(func(err error) bool {
			return errors.Is(err, we.RevisionConflict) && len(options.ExpectedRevision) == 0
		}),
		retry.LastErrorOnly(true),
		retry.Context(ctx),
	)
	if err != nil {
		return nil, err
	}

	return recorded, nil
}

// Remove deletes every item stored for id, the latest-revision guard
// included, and reports how many items were removed.
func (ds *DynamoEventStore) Remove(ctx context.Context, id we.AggregateId) (int, error) {
	type record struct {
		PartitionKey string `dynamodbav:"pk"`
		SortKey      string `dynamodbav:"sk"`
	}

	query := expression.Key("pk").Equal(expression.Value(partitionKey(id)))
	projection := expression.NamesList(expression.Name("pk"), expression.Name("sk"))

	expr, err := expression.NewBuilder().WithKeyCondition(query).WithProjection(projection).Build()
	if err != nil {
		return 0, err
	}

	var count int
	var start map[string]types.AttributeValue
	for {
		out, err := ds.db.Query(ctx, &dynamodb.QueryInput{
			TableName:                 aws.String(ds.table),
			ExclusiveStartKey:         start,
			ExpressionAttributeNames:  expr.Names(),
			ExpressionAttributeValues: expr.Values(),
			KeyConditionExpression:    expr.KeyCondition(),
			ProjectionExpression:      expr.Projection(),
			Limit:                     aws.Int32(25),
		})
		if err != nil {
			return count, err
		}

		if len(out.Items) > 0 {
			var items []record
			if err := attributevalue.UnmarshalListOfMaps(out.Items, &items); err != nil {
				return count, err
			}

			actions := make([]types.TransactWriteItem, 0, len(items))
			for _, item := range items {
				key, err := attributevalue.MarshalMap(item)
				if err != nil {
					return count, err
				}

				actions = append(actions, types.TransactWriteItem{
					Delete: &types.Delete{Key: key, TableName: aws.String(ds.table)},
				})
			}

			if _, err := ds.db.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{TransactItems: actions}); err != nil {
				return count, err
			}

			count += len(items)
		}

		start = out.LastEvaluatedKey
		if start == nil {
			break
		}
	}

	return count, nil
}

// internal

type pendingChanges struct {
	*ChangeSet
	events []we.RecordedEvent
}

func (ds *DynamoEventStore) record(id we.AggregateId, options we.PublishOptions, events []we.DomainEvent) (*pendingChanges, error) {
	now := ds.now()
	timestamp := we.TimestampFromTime(now)

	recorded := make([]we.RecordedEvent, len(events))
	for index, event := range events {
		data, err := we.MarshalToData(event)
		if err != nil {
			return nil, errors.Wrap(err, "failed to marshal event")
		}

		revision := ds.revision.NewRevision(now)
		recorded[index] = we.RecordedEvent{
			EventID:     we.EventID(revision),
			EventType:   we.EventTypeOf(event),
			AggregateId: id,
			Data:        data,
			Revision:    revision,
			Timestamp:   timestamp,
			Metadata:    options.RecordedEventMetadata,
		}
	}

	changes, err := NewChangeSet(id, recorded)
	if err != nil {
		return nil, err
	}

	return &pendingChanges{ChangeSet: changes, events: recorded}, nil
}

func (ds *DynamoEventStore) write(ctx context.Context, changes *pendingChanges, expected we.Revision) error {
	latest, err := attributevalue.MarshalMap(changes.Latest())
	if err != nil {
		return err
	}

	record, err := attributevalue.MarshalMap(changes.ChangeSet)
	if err != nil {
		return err
	}

	condition, err := expression.NewBuilder().WithCondition(latestCondition(changes.Revision, expected)).Build()
	if err != nil {
		return err
	}

	_, err = ds.db.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{
		TransactItems: []types.TransactWriteItem{
			{
				Put: &types.Put{
					Item:                                latest,
					TableName:                           aws.String(ds.table),
					ConditionExpression:                 condition.Condition(),
					ExpressionAttributeNames:            condition.Names(),
					ExpressionAttributeValues:           condition.Values(),
					ReturnValuesOnConditionCheckFailure: types.ReturnValuesOnConditionCheckFailureNone,
				},
			},
			{
				Put: &types.Put{
					Item:      record,
					TableName: aws.String(ds.table),
				},
			},
		},
	})

	return maybeRevisionConflict(err)
}

func (ds *DynamoEventStore) read(ctx context.Context, id we.AggregateId) ([]we.RecordedEvent, error) {
	query := expression.Key("pk").Equal(expression.Value(partitionKey(id))).And(
		expression.Key("sk").BeginsWith(changeSetPrefix),
	)
	projection := expression.NamesList(expression.Name("events"))

	expr, err := expression.NewBuilder().WithKeyCondition(query).WithProjection(projection).Build()
	if err != nil {
		return nil, err
	}

	var events []we.RecordedEvent
	var start map[string]types.AttributeValue
	for {
		out, err := ds.db.Query(ctx, &dynamodb.QueryInput{
			TableName:                 aws.String(ds.table),
			ExclusiveStartKey:         start,
			ExpressionAttributeNames:  expr.Names(),
			ExpressionAttributeValues: expr.Values(),
			KeyConditionExpression:    expr.KeyCondition(),
			ProjectionExpression:      expr.Projection(),
			ConsistentRead:            aws.Bool(true),
		})
		if err != nil {
			return nil, err
		}

		var items []ChangeSet
		if err := attributevalue.UnmarshalListOfMaps(out.Items, &items); err != nil {
			return nil, err
		}

		for _, item := range items {
			recorded, err := item.RecordedEvents()
			if err != nil {
				return nil, err
			}
			events = append(events, recorded...)
		}

		start = out.LastEvaluatedKey
		if start == nil {
			break
		}
	}

	return events, nil
}

func latestCondition(revision we.Revision, expected we.Revision) expression.ConditionBuilder {
	if len(expected) == 0 {
		return expression.Name("revision").LessThan(expression.Value(revision)).Or(
			expression.AttributeNotExists(expression.Name("revision")),
		)
	}

	if expected == we.InitialRevision {
		return expression.AttributeNotExists(expression.Name("revision"))
	}

	return expression.Name("revision").Equal(expression.Value(expected))
}

func maybeRevisionConflict(err error) error {
	if err == nil {
		return nil
	}

	var oe *smithy.OperationError
	if !errors.As(err, &oe) {
		return err
	}

	var tc *types.TransactionCanceledException
	if errors.As(oe.Unwrap(), &tc) {
		for _, reason := range tc.CancellationReasons {
			if reason.Code != nil && *reason.Code == "ConditionalCheckFailed" {
				return we.RevisionConflict
			}
		}
	}

	return err
}
