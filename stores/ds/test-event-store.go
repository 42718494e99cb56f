package ds

import (
	"context"
	"fmt"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

// DynamoTestStore starts dynamodb-local in a container. The returned function
// terminates it.
func DynamoTestStore(ctx context.Context) (*DynamoEventStore, func(), error) {
	db, err := testcontainers.GenericContainer(
		ctx, testcontainers.GenericContainerRequest{
			ContainerRequest: testcontainers.ContainerRequest{
				Image:        "amazon/dynamodb-local",
				ExposedPorts: []string{"8000/tcp"},
				WaitingFor:   wait.ForListeningPort("8000"),
			},
			Started: true,
		},
	)
	if err != nil {
		return nil, nil, err
	}

	tearDown := func() {
		if err := db.Terminate(ctx); err != nil {
			panic(err)
		}
	}

	host, err := db.Host(ctx)
	if err != nil {
		tearDown()
		return nil, nil, err
	}

	port, err := db.MappedPort(ctx, "8000")
	if err != nil {
		tearDown()
		return nil, nil, err
	}

	cfg, err := localConfig(ctx, fmt.Sprintf("http://%s:%s", host, port.Port()))
	if err != nil {
		tearDown()
		return nil, nil, err
	}

	client := Client(cfg)
	table := EventStoreTableName("test-events")
	if err := EnsureTable(ctx, client, table); err != nil {
		tearDown()
		return nil, nil, err
	}

	return NewEventStore(client, table), tearDown, nil
}
