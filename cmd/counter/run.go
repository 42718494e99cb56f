package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/goccy/go-json"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/weegigs/wee-counter-go/counter"
	"github.com/weegigs/wee-counter-go/we"
)

// parseAction reads increment, decrement, add:<n>, fetch:<n> and if-odd:<n>.
func parseAction(arg string) (counter.Action, error) {
	name, value, hasValue := strings.Cut(arg, ":")

	amount := 0
	if hasValue {
		parsed, err := strconv.Atoi(value)
		if err != nil {
			return nil, errors.Wrapf(err, "invalid amount in %q", arg)
		}
		amount = parsed
	}

	switch name {
	case "increment":
		return counter.Increment{}, nil
	case "decrement":
		return counter.Decrement{}, nil
	case "add":
		return counter.IncrementByAmount{Amount: amount}, nil
	case "fetch":
		return counter.IncrementAsync{Amount: amount}, nil
	case "if-odd":
		return counter.IncrementIfOdd{Amount: amount}, nil
	default:
		return nil, errors.Errorf("unknown action %q", arg)
	}
}

func runCmd() *cobra.Command {
	var key string

	cmd := &cobra.Command{
		Use:   "run [action...]",
		Short: "Apply actions to a counter and print every state it passes through",
		Long:  "Actions are increment, decrement, add:<n>, fetch:<n> and if-odd:<n>. The first failing action stops the run.",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

			actions := make([]counter.Action, len(args))
			for i, arg := range args {
				action, err := parseAction(arg)
				if err != nil {
					return err
				}
				actions[i] = action
			}

			app, cleanup, err := Initialize(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer cleanup()

			id := we.AggregateId{Type: counter.EntityType.String(), Key: key}
			current, unsubscribe, err := app.Service.Subscribe(cmd.Context(), id, func(entity we.Entity[counter.State]) {
				printState(cmd, entity)
			})
			if err != nil {
				return err
			}
			defer unsubscribe()

			printState(cmd, current)

			for _, action := range actions {
				if _, err := app.Service.Execute(cmd.Context(), id, action); err != nil {
					log.Error().Err(err).Str("action", action.TypeName()).Msg("action failed")
					return errors.Wrapf(err, "%s failed", action.TypeName())
				}
			}

			return nil
		},
	}

	cmd.Flags().StringVarP(&key, "key", "k", "cli", "counter key")
	return cmd
}

func printState(cmd *cobra.Command, entity we.Entity[counter.State]) {
	state, err := json.Marshal(entity.State)
	if err != nil {
		log.Error().Err(err).Msg("failed to encode state")
		return
	}

	fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", entity.Revision, state)
}
