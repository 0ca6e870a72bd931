package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/lib/pq"

	"spreadwatch/internal/config"
	"spreadwatch/pkg/retry"
	"spreadwatch/pkg/utils"
)

// db.go - подключение к долговременному хранилищу (PostgreSQL)

// Ошибки репозиториев
var (
	ErrNotFound      = errors.New("record not found")
	ErrAlreadyClosed = errors.New("tracking already closed")
)

// Open открывает пул соединений и дожидается доступности базы.
// На старте база может подниматься параллельно с сервисом, поэтому
// ping выполняется с retry.
func Open(ctx context.Context, cfg config.DatabaseConfig, log *utils.Logger) (*sql.DB, error) {
	db, err := sql.Open("postgres", cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(30 * time.Minute)

	retryer := retry.NewRetryer(retry.StartupConfig())
	err = retryer.Do(ctx, func() error {
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if perr := db.PingContext(pingCtx); perr != nil {
			log.Warn("database not ready", utils.Err(perr))
			return perr
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	log.Info("database connected", utils.String("dsn", cfg.DSNWithoutPassword()))
	return db, nil
}
