package mongo

import (
	"context"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

type Testing interface {
	require.TestingT
	Context() context.Context
	Logf(format string, args ...any)
	Cleanup(func())
}

// NewTestContainer starts a MongoDB server for the duration of the test and
// returns a Config pointing at it.
func NewTestContainer(t Testing) Config {
	ctx := t.Context()
	mongoC, err := testcontainers.Run(
		ctx, "mongo:7",
		testcontainers.WithExposedPorts("27017/tcp"),
		testcontainers.WithWaitStrategy(
			wait.ForListeningPort("27017/tcp"),
			wait.ForLog("Waiting for connections"),
		),
	)
	require.NoError(t, err)

	t.Cleanup(func() {
		if err := testcontainers.TerminateContainer(mongoC); err != nil {
			t.Errorf("failed to terminate container: %s", err.Error())
		}
	})

	endpoint, err := mongoC.PortEndpoint(ctx, "27017/tcp", "mongodb")
	require.NoError(t, err)
	t.Logf("mongo endpoint: %s", endpoint)

	return Config{
		ConnectionURL:  endpoint,
		Database:       "lrukv",
		ConnectTimeout: 10 * time.Second,
		MaxPoolSize:    10,
		RetryAttempts:  3,
		RetryInterval:  time.Second,
	}
}
