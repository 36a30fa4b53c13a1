package database

import (
	"context"
	_ "embed"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

//go:embed schema.sql
var schemaSQL string

// ApplySchema creates any missing tables and indexes.
func ApplySchema(ctx context.Context, pool *pgxpool.Pool) error {
	if _, err := pool.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("failed to create tables: %w", err)
	}
	return nil
}

// ResetDatabase drops the database named in dsn through the management
// connection, creates it again and applies the schema.
func ResetDatabase(ctx context.Context, managementDsn string, dsn string, logger *zap.Logger) error {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return fmt.Errorf("invalid dsn: %w", err)
	}
	name := cfg.ConnConfig.Database
	if name == "" {
		return fmt.Errorf("dsn does not name a database")
	}
	quoted := pgx.Identifier{name}.Sanitize()

	managementPool, err := pgxpool.New(ctx, managementDsn)
	if err != nil {
		return fmt.Errorf("unable to connect to management database: %w", err)
	}
	defer managementPool.Close()

	if _, err := managementPool.Exec(ctx, "DROP DATABASE IF EXISTS "+quoted); err != nil {
		return fmt.Errorf("failed to drop database %s: %w", name, err)
	}
	logger.Info("database dropped", zap.String("database", name))

	if _, err := managementPool.Exec(ctx, "CREATE DATABASE "+quoted); err != nil {
		return fmt.Errorf("failed to create database %s: %w", name, err)
	}
	logger.Info("database created", zap.String("database", name))
	managementPool.Close()

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return fmt.Errorf("unable to connect to %s: %w", name, err)
	}
	defer pool.Close()

	if err := ApplySchema(ctx, pool); err != nil {
		return err
	}
	logger.Info("tables created", zap.String("database", name))
	return nil
}

// Helper functions for UUID conversion

func uuidToPgtype(id uuid.UUID) pgtype.UUID {
	return pgtype.UUID{Bytes: id, Valid: true}
}

func pgtypeToUUID(id pgtype.UUID) *uuid.UUID {
	if !id.Valid {
		return nil
	}
	result := uuid.UUID(id.Bytes)
	return &result
}

func timestamptz(t time.Time) pgtype.Timestamptz {
	return pgtype.Timestamptz{Time: t, Valid: true}
}

func pgtypeToTime(ts pgtype.Timestamptz) *time.Time {
	if !ts.Valid {
		return nil
	}
	t := ts.Time
	return &t
}
