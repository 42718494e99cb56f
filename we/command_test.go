package we

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type TestCommand struct{}

type TestNamedCommand struct{}

func (TestNamedCommand) TypeName() string {
	return "test:named"
}

type TestPayloadCommand struct {
	Amount int `json:"amount"`
}

func resolvesExplicitName(t *testing.T) {
	assert.Equal(t, CommandName("test:named"), CommandNameOf(TestNamedCommand{}))
}

func resolvesImplicitName(t *testing.T) {
	assert.Equal(t, CommandName("we:test-command"), CommandNameOf(TestCommand{}))
}

func resolvesRemoteName(t *testing.T) {
	remote := RemoteCommand{CommandName: "test:remote"}
	assert.Equal(t, CommandName("test:remote"), CommandNameOf(remote))
	assert.Equal(t, CommandName("test:remote"), CommandNameOf(&remote))
}

func decodesRemotePayload(t *testing.T) {
	var received TestPayloadCommand
	var handler CommandHandlerFunction[tally, TestPayloadCommand] = func(ctx context.Context, cmd TestPayloadCommand, state Entity[tally], publish EventPublisher) error {
		received = cmd
		return nil
	}

	remote, err := NewRemoteCommand("test:payload", TestPayloadCommand{Amount: 3})
	require.NoError(t, err)

	err = handler.HandleRemoteCommand(context.Background(), remote, Entity[tally]{}, nil)
	require.NoError(t, err)
	assert.Equal(t, 3, received.Amount)
}

func rejectsInvalidPayload(t *testing.T) {
	var handler CommandHandlerFunction[tally, TestPayloadCommand] = func(ctx context.Context, cmd TestPayloadCommand, state Entity[tally], publish EventPublisher) error {
		return nil
	}

	remote := RemoteCommand{
		CommandName: "test:payload",
		Payload:     Data{Encoding: JsonEncoding, Data: []byte(`{"amount": "three"}`)},
	}

	err := handler.HandleRemoteCommand(context.Background(), remote, Entity[tally]{}, nil)
	assert.ErrorAs(t, err, &InvalidPayloadError{})
}

func rejectsUnexpectedCommand(t *testing.T) {
	var handler CommandHandlerFunction[tally, TestPayloadCommand] = func(ctx context.Context, cmd TestPayloadCommand, state Entity[tally], publish EventPublisher) error {
		return nil
	}

	err := handler.HandleCommand(context.Background(), TestCommand{}, Entity[tally]{}, nil)
	assert.Equal(t, UnexpectedCommandError{Command: "we:test-command"}, err)
}

func TestCommands(t *testing.T) {
	t.Run("resolves explicit name", resolvesExplicitName)
	t.Run("resolves implicit name", resolvesImplicitName)
	t.Run("resolves remote name", resolvesRemoteName)
	t.Run("decodes remote payload", decodesRemotePayload)
	t.Run("rejects invalid payload", rejectsInvalidPayload)
	t.Run("rejects unexpected command", rejectsUnexpectedCommand)
}
