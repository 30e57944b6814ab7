package database

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sirupsen/logrus"
)

var DB *pgxpool.Pool

// ConnectDB opens the shared pgx pool from POSTGRES_* / PG_* environment
// variables and verifies connectivity. The process cannot serve tables
// without durable storage, so any failure here is fatal.
func ConnectDB() {
	dsn := fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s",
		os.Getenv("POSTGRES_USER"),
		os.Getenv("POSTGRES_PASSWORD"),
		os.Getenv("PG_HOST"),
		os.Getenv("PG_PORT"),
		os.Getenv("PG_DATABASE"),
	)

	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		logrus.Fatalf("invalid postgres config: %v", err)
	}

	pool, err := pgxpool.NewWithConfig(context.Background(), cfg)
	if err != nil {
		logrus.Fatalf("create pgx pool: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := pool.Ping(ctx); err != nil {
		logrus.Fatalf("postgres ping: %v", err)
	}

	DB = pool
	logrus.WithFields(logrus.Fields{
		"host": os.Getenv("PG_HOST"),
		"db":   os.Getenv("PG_DATABASE"),
	}).Info("connected to postgres")
}
