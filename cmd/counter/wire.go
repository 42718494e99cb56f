//go:build wireinject
// +build wireinject

package main

import (
	"context"

	"github.com/google/wire"

	"github.com/weegigs/wee-counter-go/stores/ds"
	"github.com/weegigs/wee-counter-go/support"
)

func memoryApplication(ctx context.Context, cfg support.Config) (*Application, func(), error) {
	panic(wire.Build(application, Memory))
}

func dynamoApplication(ctx context.Context, cfg support.Config) (*Application, func(), error) {
	panic(wire.Build(application, Dynamo))
}

func localDynamoApplication(ctx context.Context, cfg support.Config) (*Application, func(), error) {
	panic(wire.Build(application, ds.Local))
}

func jetStreamApplication(ctx context.Context, cfg support.Config) (*Application, func(), error) {
	panic(wire.Build(application, JetStream))
}
