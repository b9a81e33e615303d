// Package node serves the vault program over a Solana compatible JSON-RPC
// endpoint, backed by a memory or postgres ledger.
package node

import (
	"context"
	"database/sql"
	"net/http"
	"sync"

	"github.com/newrelic/go-agent/v3/newrelic"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/code-payments/code-vault/pkg/app"
	"github.com/code-payments/code-vault/pkg/code/server/rpc"
	"github.com/code-payments/code-vault/pkg/code/vault"
	pg "github.com/code-payments/code-vault/pkg/database/postgres"
	"github.com/code-payments/code-vault/pkg/ledger"
	memory_ledger "github.com/code-payments/code-vault/pkg/ledger/memory"
	postgres_ledger "github.com/code-payments/code-vault/pkg/ledger/postgres"
	"github.com/code-payments/code-vault/pkg/metrics"
	"github.com/code-payments/code-vault/pkg/rent"
	"github.com/code-payments/code-vault/pkg/solana"
)

type nodeApp struct {
	log *logrus.Entry

	db     *sql.DB
	ledger ledger.Ledger
	server *rpc.Server

	shutdownOnce sync.Once
	shutdownCh   chan struct{}
}

// New returns the node app, to be run with app.Run.
func New() app.App {
	return &nodeApp{
		log:        logrus.StandardLogger().WithField("type", "node/app"),
		shutdownCh: make(chan struct{}),
	}
}

// Init implements app.App.Init
func (a *nodeApp) Init(appConfig app.Config, metricsProvider *newrelic.Application) error {
	config, err := decodeConfig(appConfig)
	if err != nil {
		return err
	}

	ctx := metrics.WithApplication(context.Background(), metricsProvider)

	program, err := config.program()
	if err != nil {
		return err
	}

	var genesis *Genesis
	if len(config.Genesis) > 0 {
		data, err := app.LoadFile(config.Genesis)
		if err != nil {
			return errors.Wrap(err, "error loading genesis file")
		}

		genesis, err = parseGenesis(data)
		if err != nil {
			return err
		}
	}

	switch config.Ledger.Type {
	case LedgerTypePostgres:
		a.db, err = pg.Open(ctx, config.Ledger.Postgres.toPgConfig())
		if err != nil {
			return errors.Wrap(err, "error connecting to postgres")
		}

		if err := postgres_ledger.Migrate(ctx, a.db); err != nil {
			a.closeDB()
			return errors.Wrap(err, "error migrating ledger schema")
		}

		a.ledger = postgres_ledger.New(a.db)
	default:
		a.ledger = memory_ledger.New()
	}

	var calculator rent.Calculator
	switch config.Rent.Type {
	case RentTypeConfig:
		calculator = rent.NewConfigCalculator(rent.WithEnvConfigs())
	case RentTypeRPC:
		calculator = rent.NewRPCCalculator(solana.New(config.Rent.Endpoint))
	default:
		calculator = rent.NewStaticCalculator(config.rentParams())
	}

	processor, err := vault.NewProcessor(&vault.ProcessorConfig{
		Program: program,
		Ledger:  a.ledger,
		Rent:    calculator,
	}, vault.WithEnvConfigs())
	if err != nil {
		a.closeDB()
		return errors.Wrap(err, "error creating vault processor")
	}

	if genesis != nil {
		genesisCtx, end := metrics.StartTransaction(ctx, "node genesis")
		err := genesis.apply(genesisCtx, a.log, a.ledger)
		end()
		if err != nil {
			a.closeDB()
			return err
		}
	}

	a.server = rpc.NewServer(processor, a.ledger, calculator, rpc.WithEnvConfigs())

	a.log.WithFields(logrus.Fields{
		"program": config.ProgramID,
		"ledger":  config.Ledger.Type,
		"rent":    config.Rent.Type,
	}).Info("node initialized")

	return nil
}

// RegisterWithHTTP implements app.App.RegisterWithHTTP
func (a *nodeApp) RegisterWithHTTP(mux *http.ServeMux) {
	mux.Handle("/", a.server)
}

// ShutdownChan implements app.App.ShutdownChan
func (a *nodeApp) ShutdownChan() <-chan struct{} {
	return a.shutdownCh
}

// Stop implements app.App.Stop
func (a *nodeApp) Stop() {
	a.shutdownOnce.Do(func() {
		close(a.shutdownCh)
		a.closeDB()
	})
}

func (a *nodeApp) closeDB() {
	if a.db == nil {
		return
	}
	if err := a.db.Close(); err != nil {
		a.log.WithError(err).Warn("failure closing database")
	}
	a.db = nil
}
