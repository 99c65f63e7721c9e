package database

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/pkg/errors"

	"github.com/armadaproject/launchpad/internal/common/config"
)

// CreateConnectionString renders a libpq keyword/value connection string. Keys are sorted so that the output is stable.
func CreateConnectionString(values map[string]string) string {
	// https://www.postgresql.org/docs/10/libpq-connect.html#id-1.7.3.8.3.5
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	replacer := strings.NewReplacer(`\`, `\\`, `'`, `\'`)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+"='"+replacer.Replace(values[k])+"'")
	}
	return strings.Join(parts, " ")
}

func OpenPgxPool(ctx context.Context, config config.PostgresConfig) (*pgxpool.Pool, error) {
	poolConfig, err := pgxpool.ParseConfig(CreateConnectionString(config.Connection))
	if err != nil {
		return nil, errors.WithStack(err)
	}
	if config.PoolMaxOpenConns > 0 {
		poolConfig.MaxConns = int32(config.PoolMaxOpenConns)
	}
	if config.PoolMaxIdleConns > 0 {
		poolConfig.MinConns = int32(config.PoolMaxIdleConns)
	}
	if config.PoolMaxConnLifetime > 0 {
		poolConfig.MaxConnLifetime = config.PoolMaxConnLifetime
	}
	db, err := pgxpool.ConnectConfig(ctx, poolConfig)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	err = db.Ping(ctx)
	if err != nil {
		db.Close()
		return nil, errors.Wrap(err, fmt.Sprintf("failed to ping postgres at %s", config.Connection["host"]))
	}
	return db, nil
}
