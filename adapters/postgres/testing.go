package postgres

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

// NewTestContainer starts a PostgreSQL server for the duration of the test
// and returns a Config pointing at it.
func NewTestContainer(t Testing) Config {
	ctx := t.Context()
	pgC, err := testcontainers.Run(
		ctx, "postgres:16-alpine",
		testcontainers.WithExposedPorts("5432/tcp"),
		testcontainers.WithEnv(map[string]string{
			"POSTGRES_USER":     "lrukv",
			"POSTGRES_PASSWORD": "lrukv",
			"POSTGRES_DB":       "lrukv",
		}),
		testcontainers.WithWaitStrategy(
			wait.ForListeningPort("5432/tcp"),
			wait.ForLog("database system is ready to accept connections").WithOccurrence(2),
		),
	)
	require.NoError(t, err)

	t.Cleanup(func() {
		if err := testcontainers.TerminateContainer(pgC); err != nil {
			t.Errorf("failed to terminate container: %s", err.Error())
		}
	})

	endpoint, err := pgC.PortEndpoint(ctx, "5432/tcp", "")
	require.NoError(t, err)
	t.Logf("postgres endpoint: %s", endpoint)

	return Config{
		ConnectionString: "postgres://lrukv:lrukv@" + endpoint + "/lrukv?sslmode=disable",
		MaxOpenConns:     4,
		RetryAttempts:    5,
		RetryInterval:    time.Second,
	}
}
