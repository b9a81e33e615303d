package pg

import (
	"context"
	"database/sql"
	"net"
	"net/url"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws/external"
	"github.com/aws/aws-sdk-go-v2/service/rds"
	"github.com/aws/aws-sdk-go-v2/service/rds/rdsutils"
	"github.com/pkg/errors"

	_ "github.com/newrelic/go-agent/v3/integrations/nrpgx"
)

// driverName is the instrumented pgx driver registered by nrpgx.
const driverName = "nrpgx"

type Config struct {
	User     string
	Host     string
	Password string
	Port     int
	DbName   string

	// UseAwsIam generates a short lived RDS auth token instead of using Password.
	// Only supported on provisioned Aurora clusters.
	UseAwsIam bool

	MaxOpenConnections int
	MaxIdleConnections int
}

func (c *Config) address() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// URL is the connection string for password authentication.
func (c *Config) URL() string {
	// TODO: enable SSL once the cluster certificate is distributed with deployments
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(c.User, c.Password),
		Host:     c.address(),
		Path:     "/" + c.DbName,
		RawQuery: "sslmode=disable",
	}
	return u.String()
}

// Open returns a pinged connection pool for the provided config, with pool
// limits applied.
func Open(ctx context.Context, cfg *Config) (*sql.DB, error) {
	dsn := cfg.URL()
	if cfg.UseAwsIam {
		var err error
		if dsn, err = awsIamDSN(cfg); err != nil {
			return nil, err
		}
	}

	db, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, err
	}

	if cfg.MaxOpenConnections > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConnections)
	}
	if cfg.MaxIdleConnections > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConnections)
	}
	db.SetConnMaxIdleTime(time.Hour)
	db.SetConnMaxLifetime(time.Hour)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "error connecting to database")
	}
	return db, nil
}

// awsIamDSN authenticates with an RDS IAM token built from the default AWS
// credential chain.
//
// https://docs.aws.amazon.com/AmazonRDS/latest/AuroraUserGuide/UsingWithRDS.IAMDBAuth.Connecting.Go.html
func awsIamDSN(cfg *Config) (string, error) {
	awsConfig, err := external.LoadDefaultAWSConfig()
	if err != nil {
		return "", errors.Wrap(err, "error loading aws config")
	}
	rdsClient := rds.New(awsConfig)

	authToken, err := rdsutils.BuildAuthToken(cfg.address(), rdsClient.Region, cfg.User, rdsClient.Credentials)
	if err != nil {
		return "", errors.Wrap(err, "error building rds auth token")
	}

	withToken := *cfg
	withToken.Password = authToken
	return withToken.URL(), nil
}
