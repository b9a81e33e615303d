// Package test starts disposable postgres containers for store tests.
package test

import (
	"context"
	"database/sql"
	"strconv"
	"time"

	"github.com/ory/dockertest/v3"
	"github.com/ory/dockertest/v3/docker"
	"github.com/pkg/errors"

	_ "github.com/jackc/pgx/v4/stdlib" //nolint:revive

	pg "github.com/code-payments/code-vault/pkg/database/postgres"
	"github.com/code-payments/code-vault/pkg/retry"
	"github.com/code-payments/code-vault/pkg/retry/backoff"
)

const (
	image    = "postgres"
	imageTag = "14-alpine"

	// Containers are killed after this long even if the test binary never
	// calls Close.
	autoKill = 120 * time.Second

	startupTimeout  = 30 * time.Second
	startupInterval = 500 * time.Millisecond
)

// Container is a running postgres container.
type Container struct {
	// DB is connected with the plain pgx driver.
	DB *sql.DB

	// Config reaches the same database through pg.Open.
	Config *pg.Config

	pool     *dockertest.Pool
	resource *dockertest.Resource
}

// StartPostgresDB starts a postgres container and waits until it accepts
// connections.
func StartPostgresDB(pool *dockertest.Pool) (*Container, error) {
	cfg := &pg.Config{
		User:     "localtest",
		Password: "localpassword",
		DbName:   "testdb",
		Host:     "localhost",
	}

	resource, err := pool.RunWithOptions(&dockertest.RunOptions{
		Repository: image,
		Tag:        imageTag,
		Env: []string{
			"POSTGRES_USER=" + cfg.User,
			"POSTGRES_PASSWORD=" + cfg.Password,
			"POSTGRES_DB=" + cfg.DbName,
		},
	}, func(hostConfig *docker.HostConfig) {
		hostConfig.AutoRemove = true
		hostConfig.RestartPolicy = docker.RestartPolicy{Name: "no"}
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to start postgres container")
	}

	// Expire never returns an error.
	_ = resource.Expire(uint(autoKill.Seconds()))

	c := &Container{
		Config:   cfg,
		pool:     pool,
		resource: resource,
	}

	port, err := strconv.Atoi(resource.GetPort("5432/tcp"))
	if err != nil {
		c.Close()
		return nil, errors.Wrap(err, "invalid mapped postgres port")
	}
	cfg.Port = port

	ctx, cancel := context.WithTimeout(context.Background(), startupTimeout)
	defer cancel()

	_, err = retry.Retry(
		func() error {
			db, err := sql.Open("pgx", cfg.URL())
			if err != nil {
				return err
			}
			if err := db.PingContext(ctx); err != nil {
				db.Close()
				return err
			}
			c.DB = db
			return nil
		},
		retry.Context(ctx),
		retry.Backoff(backoff.Constant(startupInterval), startupInterval),
	)
	if err != nil {
		c.Close()
		return nil, errors.Wrap(err, "timed out waiting for postgres container")
	}
	return c, nil
}

// Close disconnects and purges the container.
func (c *Container) Close() {
	if c.DB != nil {
		c.DB.Close()
	}
	_ = c.pool.Purge(c.resource)
}
