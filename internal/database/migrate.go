package database

import (
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/golang-migrate/migrate/v4"
	// postgres driver для golang-migrate.
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	// file source для чтения миграций с диска.
	_ "github.com/golang-migrate/migrate/v4/source/file"
)

// Migrate применяет все миграции из каталога migrationsPath.
func Migrate(databaseURL, migrationsPath string, logger *slog.Logger) error {
	absPath, err := filepath.Abs(migrationsPath)
	if err != nil {
		return fmt.Errorf("не удалось определить путь к миграциям: %w", err)
	}

	m, err := migrate.New("file://"+absPath, databaseURL)
	if err != nil {
		return fmt.Errorf("не удалось создать экземпляр migrate: %w", err)
	}

	defer func() {
		srcErr, dbErr := m.Close()
		if srcErr != nil || dbErr != nil {
			logger.Warn("Ошибка при закрытии migrate", "sourceError", srcErr, "dbError", dbErr)
		}
	}()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("не удалось применить миграции: %w", err)
	}

	version, dirty, err := m.Version()
	if err != nil && !errors.Is(err, migrate.ErrNilVersion) {
		return fmt.Errorf("не удалось получить версию схемы: %w", err)
	}

	logger.Info("Миграции применены", "version", version, "dirty", dirty)

	return nil
}
