//go:build integration

package integration

import (
	"context"
	"fmt"
	"log"
	"os"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/mongodb"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	"golang.org/x/sync/errgroup"

	"mediaclient/config"
	"mediaclient/internal/uploadstate"
)

const testDatabase = "mediaclient_test"

// sessionBackend is a database holding upload sessions for the tests. The store is built
// the way the client builds it, so the schema the tests read is the one production creates.
type sessionBackend struct {
	name      string
	storage   config.StorageConfig
	sessions  *uploadstate.Result
	terminate func(context.Context) error
}

var (
	testCtx  context.Context
	backends []*sessionBackend
)

func TestMain(m *testing.M) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	testCtx = ctx

	started := make([]*sessionBackend, 2)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		started[0], err = startPostgreSQL(gctx)
		return err
	})
	g.Go(func() (err error) {
		started[1], err = startMongoDB(gctx)
		return err
	})
	err := g.Wait()
	for _, b := range started {
		if b != nil {
			backends = append(backends, b)
		}
	}
	if err != nil {
		log.Printf("session backend setup failed: %v", err)
		shutdown()
		cancel()
		os.Exit(1)
	}

	code := m.Run()
	shutdown()
	cancel()
	os.Exit(code)
}

func startPostgreSQL(ctx context.Context) (*sessionBackend, error) {
	container, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase(testDatabase),
		postgres.WithUsername("test"),
		postgres.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("start postgresql: %w", err)
	}
	b := &sessionBackend{name: "postgresql", terminate: func(ctx context.Context) error { return container.Terminate(ctx) }}

	url, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		return b, fmt.Errorf("postgresql connection string: %w", err)
	}
	b.storage.Type = "postgresql"
	b.storage.PostgreSQL.URL = url
	b.storage.PostgreSQL.MaxConns = 4
	return b, b.open(ctx)
}

func startMongoDB(ctx context.Context) (*sessionBackend, error) {
	container, err := mongodb.Run(ctx, "mongo:7")
	if err != nil {
		return nil, fmt.Errorf("start mongodb: %w", err)
	}
	b := &sessionBackend{name: "mongodb", terminate: func(ctx context.Context) error { return container.Terminate(ctx) }}

	url, err := container.ConnectionString(ctx)
	if err != nil {
		return b, fmt.Errorf("mongodb connection string: %w", err)
	}
	b.storage.Type = "mongodb"
	b.storage.MongoDB.URL = url
	b.storage.MongoDB.Database = testDatabase
	return b, b.open(ctx)
}

// open creates the session store, which also creates its table or indexes.
func (b *sessionBackend) open(ctx context.Context) error {
	result, err := uploadstate.New(ctx, b.config())
	if err != nil {
		return fmt.Errorf("%s session store: %w", b.name, err)
	}
	b.sessions = result
	log.Printf("%s session store ready", b.name)
	return nil
}

// config returns a client configuration persisting sessions to b.
func (b *sessionBackend) config() *config.Config {
	cfg := config.Default()
	cfg.Storage = b.storage
	cfg.Storage.Enabled = true
	return cfg
}

func shutdown() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	for _, b := range backends {
		if b.sessions != nil {
			if err := b.sessions.Close(); err != nil {
				log.Printf("close %s session store: %v", b.name, err)
			}
		}
		if err := b.terminate(ctx); err != nil {
			log.Printf("terminate %s container: %v", b.name, err)
		}
	}
}
