package node

import (
	"crypto/ed25519"

	"github.com/mitchellh/mapstructure"
	"github.com/mr-tron/base58"
	"github.com/pkg/errors"

	"github.com/code-payments/code-vault/pkg/app"
	"github.com/code-payments/code-vault/pkg/code/common"
	pg "github.com/code-payments/code-vault/pkg/database/postgres"
	"github.com/code-payments/code-vault/pkg/rent"
	anchor_vault "github.com/code-payments/code-vault/pkg/solana/anchorvault"
)

const (
	LedgerTypeMemory   = "memory"
	LedgerTypePostgres = "postgres"

	RentTypeStatic = "static"
	RentTypeConfig = "config"
	RentTypeRPC    = "rpc"
)

// Config is the node's app config, under the "app" key of the config file.
type Config struct {
	// ProgramID is the base58 address the vault program is served at
	ProgramID string `mapstructure:"program_id"`

	Ledger LedgerConfig `mapstructure:"ledger"`
	Rent   RentConfig   `mapstructure:"rent"`

	// Genesis is an optional file URL, loaded with app.LoadFile, listing
	// accounts funded at startup.
	Genesis string `mapstructure:"genesis"`
}

type LedgerConfig struct {
	Type     string         `mapstructure:"type"`
	Postgres PostgresConfig `mapstructure:"postgres"`
}

type PostgresConfig struct {
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	DbName   string `mapstructure:"db_name"`

	UseAwsIam bool `mapstructure:"use_aws_iam"`

	MaxOpenConnections int `mapstructure:"max_open_connections"`
	MaxIdleConnections int `mapstructure:"max_idle_connections"`
}

// RentConfig selects the rent policy. The static policy uses the configured
// parameters, config reads RENT_ environment variables on every call and rpc
// follows another cluster's policy.
type RentConfig struct {
	Type string `mapstructure:"type"`

	LamportsPerByteYear uint64  `mapstructure:"lamports_per_byte_year"`
	ExemptionThreshold  float64 `mapstructure:"exemption_threshold"`

	Endpoint string `mapstructure:"endpoint"`
}

var defaultConfig = Config{
	ProgramID: base58.Encode(anchor_vault.PROGRAM_ID),
	Ledger: LedgerConfig{
		Type: LedgerTypeMemory,
		Postgres: PostgresConfig{
			Port: 5432,
		},
	},
	Rent: RentConfig{
		Type:                RentTypeStatic,
		LamportsPerByteYear: rent.DefaultLamportsPerByteYear,
		ExemptionThreshold:  rent.DefaultExemptionThreshold,
	},
}

func decodeConfig(raw app.Config) (*Config, error) {
	config := defaultConfig

	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &config,
		WeaklyTypedInput: true,
		ErrorUnused:      true,
	})
	if err != nil {
		return nil, err
	}
	if err := decoder.Decode(map[string]interface{}(raw)); err != nil {
		return nil, errors.Wrap(err, "invalid app config")
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &config, nil
}

func (c *Config) Validate() error {
	if _, err := c.program(); err != nil {
		return err
	}

	switch c.Ledger.Type {
	case LedgerTypeMemory:
	case LedgerTypePostgres:
		if len(c.Ledger.Postgres.Host) == 0 || len(c.Ledger.Postgres.DbName) == 0 {
			return errors.New("postgres ledger requires a host and db name")
		}
	default:
		return errors.Errorf("unknown ledger type: %s", c.Ledger.Type)
	}

	switch c.Rent.Type {
	case RentTypeStatic:
		return c.rentParams().Validate()
	case RentTypeConfig:
	case RentTypeRPC:
		if len(c.Rent.Endpoint) == 0 {
			return errors.New("rpc rent requires an endpoint")
		}
	default:
		return errors.Errorf("unknown rent type: %s", c.Rent.Type)
	}

	return nil
}

func (c *Config) program() (ed25519.PublicKey, error) {
	program, err := common.NewAccountFromPublicKeyString(c.ProgramID)
	if err != nil {
		return nil, errors.Wrap(err, "invalid program id")
	}
	return program.ToPublicKey(), nil
}

func (c *Config) rentParams() rent.Params {
	return rent.Params{
		LamportsPerByteYear: c.Rent.LamportsPerByteYear,
		ExemptionThreshold:  c.Rent.ExemptionThreshold,
	}
}

func (c *PostgresConfig) toPgConfig() *pg.Config {
	return &pg.Config{
		User:               c.User,
		Password:           c.Password,
		Host:               c.Host,
		Port:               c.Port,
		DbName:             c.DbName,
		UseAwsIam:          c.UseAwsIam,
		MaxOpenConnections: c.MaxOpenConnections,
		MaxIdleConnections: c.MaxIdleConnections,
	}
}
