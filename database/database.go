package database

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

type Database struct {
	dsn           string
	managementDsn string
	pool          *pgxpool.Pool
	logger        *zap.Logger
}

// NewDatabase describes a run-history database. managementDsn points at a
// database on the same server that is used to drop and recreate it.
func NewDatabase(dsn string, managementDsn string, logger *zap.Logger) *Database {
	return &Database{
		dsn:           dsn,
		managementDsn: managementDsn,
		logger:        logger.With(zap.String("component", "database")),
	}
}

// Connect opens the pgx connection pool and checks the server is reachable.
func (db *Database) Connect(ctx context.Context) error {
	pool, err := pgxpool.New(ctx, db.dsn)
	if err != nil {
		return fmt.Errorf("unable to create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return fmt.Errorf("unable to reach database: %w", err)
	}

	db.pool = pool
	db.logger.Debug("connected", zap.String("database", pool.Config().ConnConfig.Database))
	return nil
}

func (db *Database) Pool() *pgxpool.Pool {
	return db.pool
}

func (db *Database) Close() {
	if db.pool != nil {
		db.pool.Close()
		db.pool = nil
	}
}

// Reset drops and recreates the database, then applies the schema.
func (db *Database) Reset(ctx context.Context) error {
	return ResetDatabase(ctx, db.managementDsn, db.dsn, db.logger)
}
