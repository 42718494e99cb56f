package we

import (
	"context"
	"fmt"

	"github.com/goccy/go-json"
)

type CommandName string

func (name CommandName) String() string {
	return string(name)
}

type Command any

// RemoteCommand is a command received from outside the process, its payload
// is decoded by the handler registered for CommandName.
type RemoteCommand struct {
	CommandName CommandName `json:"command"`
	Payload     Data        `json:"payload"`
}

func NewRemoteCommand(name CommandName, payload any) (RemoteCommand, error) {
	data, err := MarshalToData(payload)
	if err != nil {
		return RemoteCommand{}, err
	}

	return RemoteCommand{CommandName: name, Payload: data}, nil
}

func CommandNameOf(command Command) CommandName {
	switch cmd := command.(type) {
	case RemoteCommand:
		return cmd.CommandName
	case *RemoteCommand:
		return cmd.CommandName
	default:
		return CommandName(NameOf(command))
	}
}

type CommandHandler[T any] interface {
	HandleCommand(ctx context.Context, cmd Command, state Entity[T], publish EventPublisher) error
	HandleRemoteCommand(ctx context.Context, cmd RemoteCommand, state Entity[T], publish EventPublisher) error
}

type CommandHandlerFunction[T any, C any] func(ctx context.Context, cmd C, state Entity[T], publish EventPublisher) error

func (f CommandHandlerFunction[T, C]) HandleCommand(ctx context.Context, cmd Command, state Entity[T], publish EventPublisher) error {
	command, ok := cmd.(C)
	if !ok {
		return UnexpectedCommand(cmd)
	}

	return f(ctx, command, state, publish)
}

func (f CommandHandlerFunction[T, C]) HandleRemoteCommand(ctx context.Context, cmd RemoteCommand, state Entity[T], publish EventPublisher) error {
	var command C

	if len(cmd.Payload.Data) > 0 {
		if cmd.Payload.Encoding != JsonEncoding {
			return InvalidEncoding(JsonEncoding, cmd.Payload.Encoding)
		}

		if err := json.UnmarshalContext(ctx, cmd.Payload.Data, &command); err != nil {
			return InvalidPayload(cmd.CommandName, err)
		}
	}

	return f(ctx, command, state, publish)
}

type UnexpectedCommandError struct {
	Command CommandName
}

func (e UnexpectedCommandError) Error() string {
	return fmt.Sprintf("unexpected command %s", e.Command)
}

func UnexpectedCommand(command Command) error {
	return UnexpectedCommandError{Command: CommandNameOf(command)}
}

type InvalidPayloadError struct {
	Command CommandName
	Err     error
}

func (e InvalidPayloadError) Error() string {
	return fmt.Sprintf("invalid payload for %s: %v", e.Command, e.Err)
}

func (e InvalidPayloadError) Unwrap() error {
	return e.Err
}

func InvalidPayload(command CommandName, err error) error {
	return InvalidPayloadError{Command: command, Err: err}
}
