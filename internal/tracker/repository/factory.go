package repository

import (
	"log/slog"

	"github.com/central-university-dev/go-listing-tracker/internal/config"
	"github.com/central-university-dev/go-listing-tracker/internal/database"
	"github.com/central-university-dev/go-listing-tracker/internal/domain/errors"
	"github.com/central-university-dev/go-listing-tracker/internal/tracker/repository/memory"
	"github.com/central-university-dev/go-listing-tracker/internal/tracker/repository/postgres"
	"github.com/central-university-dev/go-listing-tracker/pkg/txs"
)

type Repositories struct {
	Keywords   KeywordRepository
	Chats      ChatRepository
	Listings   ListingRepository
	Deliveries DeliveryRepository
	Tx         txs.Transactor
}

// New создает набор репозиториев для выбранного типа доступа.
// Для MEMORY db может быть nil.
func New(cfg *config.Config, db *database.PostgresDB, logger *slog.Logger) (*Repositories, error) {
	switch cfg.DatabaseAccessType {
	case config.SquirrelAccess:
		logger.Info("Создание Squirrel репозиториев")

		return &Repositories{
			Keywords:   postgres.NewKeywordRepository(db),
			Chats:      postgres.NewChatRepository(db),
			Listings:   postgres.NewListingRepository(db),
			Deliveries: postgres.NewDeliveryRepository(db),
			Tx:         txs.NewTxManager(db.Pool, logger),
		}, nil
	case config.MemoryAccess:
		logger.Info("Создание in-memory репозиториев")

		store := memory.NewDB()

		return &Repositories{
			Keywords:   memory.NewKeywordRepository(store),
			Chats:      memory.NewChatRepository(store),
			Listings:   memory.NewListingRepository(store),
			Deliveries: memory.NewDeliveryRepository(store),
			Tx:         txs.NoopTxManager{},
		}, nil
	default:
		return nil, &errors.ErrUnknownDBAccessType{AccessType: string(cfg.DatabaseAccessType)}
	}
}
