package sessionkeeper

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"time"

	"github.com/drstein77/storefront/internal/models"
	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"go.uber.org/zap"
)

//go:embed migrations/*.sql
var migrations embed.FS

type Log interface {
	Info(string, ...zap.Field)
	Error(string, ...zap.Field)
}

// Keeper stores sessions in PostgreSQL.
type Keeper struct {
	pool *pgxpool.Pool
	log  Log
}

// NewKeeper connects to the database and applies migrations.
// It returns nil when the DSN is empty or the database cannot be prepared.
func NewKeeper(ctx context.Context, dsn func() string, log Log) *Keeper {
	addr := dsn()
	if addr == "" {
		log.Info("database dsn is empty, sessions are kept in memory only")
		return nil
	}

	config, err := pgxpool.ParseConfig(addr)
	if err != nil {
		log.Error("Unable to parse database DSN: ", zap.Error(err))
		return nil
	}

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		log.Error("Unable to connect to database: ", zap.Error(err))
		return nil
	}

	if err := migrateUp(config.ConnConfig); err != nil {
		log.Error("Error while performing migration: ", zap.Error(err))
		pool.Close()
		return nil
	}

	log.Info("Connected!")

	return &Keeper{
		pool: pool,
		log:  log,
	}
}

func migrateUp(connConfig *pgx.ConnConfig) error {
	sqlDB := stdlib.OpenDB(*connConfig)
	defer sqlDB.Close()

	driver, err := postgres.WithInstance(sqlDB, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("get migration driver: %w", err)
	}

	src, err := iofs.New(migrations, "migrations")
	if err != nil {
		return fmt.Errorf("open migrations: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", src, "postgres", driver)
	if err != nil {
		return fmt.Errorf("create migration instance: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return err
	}
	return nil
}

func (kp *Keeper) LoadSessions(ctx context.Context, since time.Time) ([]models.Session, error) {
	if kp.pool == nil {
		return nil, fmt.Errorf("database connection pool is nil")
	}

	query := `
		SELECT id, token, username, created_at
		FROM sessions
		WHERE created_at >= $1
	`

	rows, err := kp.pool.Query(ctx, query, since)
	if err != nil {
		kp.log.Error("Failed to execute query", zap.Error(err))
		return nil, fmt.Errorf("failed to execute query: %w", err)
	}
	defer rows.Close()

	var sessions []models.Session
	for rows.Next() {
		var s models.Session
		if err := rows.Scan(&s.ID, &s.Token, &s.Username, &s.CreatedAt); err != nil {
			kp.log.Error("Failed to scan row", zap.Error(err))
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		sessions = append(sessions, s)
	}

	if rows.Err() != nil {
		kp.log.Error("Error occurred during rows iteration", zap.Error(rows.Err()))
		return nil, fmt.Errorf("error during rows iteration: %w", rows.Err())
	}

	return sessions, nil
}

func (kp *Keeper) SaveSession(ctx context.Context, s models.Session) error {
	if kp.pool == nil {
		return fmt.Errorf("database connection pool is nil")
	}

	stmt := `
		INSERT INTO sessions (id, token, username, created_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO UPDATE SET token = EXCLUDED.token, username = EXCLUDED.username
	`
	if _, err := kp.pool.Exec(ctx, stmt, s.ID, s.Token, s.Username, s.CreatedAt); err != nil {
		kp.log.Error("Failed to save session", zap.Error(err))
		return fmt.Errorf("failed to save session: %w", err)
	}
	return nil
}

func (kp *Keeper) DeleteSession(ctx context.Context, id string) error {
	if kp.pool == nil {
		return fmt.Errorf("database connection pool is nil")
	}

	if _, err := kp.pool.Exec(ctx, `DELETE FROM sessions WHERE id = $1`, id); err != nil {
		kp.log.Error("Failed to delete session", zap.Error(err))
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}

func (kp *Keeper) Ping(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()

	if err := kp.pool.Ping(ctx); err != nil {
		return false
	}

	return true
}

func (kp *Keeper) Close() bool {
	if kp.pool != nil {
		kp.pool.Close()
		kp.log.Info("Database connection pool closed")
		return true
	}
	kp.log.Info("Attempted to close a nil database connection pool")
	return false
}
