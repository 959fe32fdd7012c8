package main

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
)

func TestRunReturnsConfigurationErrors(t *testing.T) {
	t.Setenv("STORAGE_DRIVER", "cassandra")
	if err := run(); err == nil {
		t.Fatal("expected run to fail on an unknown storage driver")
	}
}

func TestApplicationCloseRunsEveryCloserInReverse(t *testing.T) {
	var order []string
	app := &application{closers: []func(context.Context) error{
		func(context.Context) error { order = append(order, "mongo"); return nil },
		func(context.Context) error { order = append(order, "redis"); return errors.New("already closed") },
		func(context.Context) error { order = append(order, "kafka"); return nil },
	}}
	app.close(slog.New(slog.NewTextHandler(io.Discard, nil)))
	if len(order) != 3 || order[0] != "kafka" || order[1] != "redis" || order[2] != "mongo" {
		t.Fatalf("unexpected close order %v", order)
	}
}
