// Package postgres starts a disposable postgres server for integration
// tests of the networked connector path.
package postgres

import (
	"context"
	"log"
	"testing"
	"time"

	"github.com/docker/go-connections/nat"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

const (
	postgresContainerImage = "docker.io/postgres:16-alpine"
	postgresContainerPort  = "5432/tcp"

	DbName     = "aperture"
	DbUser     = "postgres"
	DbPassword = "password"
)

// PostgresContainer - a running postgres server and how to reach it.
type PostgresContainer struct {
	Container  *postgres.PostgresContainer
	MappedPort nat.Port
	Host       string
	DbName     string
	DbUser     string
	DbPassword string
}

// StartPostgresContainer - run a postgres server in a container and wait
// until it accepts connections.
func StartPostgresContainer(ctx context.Context, t *testing.T) *PostgresContainer {
	pg, err := postgres.Run(ctx,
		postgresContainerImage,
		postgres.WithDatabase(DbName),
		postgres.WithUsername(DbUser),
		postgres.WithPassword(DbPassword),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(10*time.Second)),
	)

	require.NoError(t, err)
	require.NotNil(t, pg)

	err = pg.Start(ctx)
	require.NoError(t, err)

	mappedPort, err := pg.MappedPort(ctx, postgresContainerPort)
	require.NoError(t, err)

	host, err := pg.Host(ctx)
	require.NoError(t, err)

	log.Printf("postgres running at %s:%s", host, mappedPort.Port())

	return &PostgresContainer{
		Container:  pg,
		MappedPort: mappedPort,
		Host:       host,
		DbName:     DbName,
		DbUser:     DbUser,
		DbPassword: DbPassword,
	}
}

// StopContainer - terminate the server, waiting briefly for a clean stop.
func (c *PostgresContainer) StopContainer(ctx context.Context, t *testing.T) {
	timeout := time.Second * 3

	err := c.Container.Stop(ctx, &timeout)
	require.NoError(t, err, "error stopping the container")
}
