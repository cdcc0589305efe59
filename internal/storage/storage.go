package storage

import (
	"context"
	"fmt"

	"github.com/skalibog/mtpa/internal/config"
	"github.com/skalibog/mtpa/pkg/models"
)

// Storage интерфейс для работы с хранилищем данных.
// GetCandles всегда возвращает свечи по возрастанию времени открытия
type Storage interface {
	// Методы для свечей
	SaveCandles(ctx context.Context, candles []models.Candle) error
	GetCandles(ctx context.Context, symbol, interval string, limit int) ([]models.Candle, error)

	// Методы для сигналов
	SaveSignal(ctx context.Context, result *models.TimeframeResult) error
	GetSignalHistory(ctx context.Context, symbol string, limit int) ([]*models.TimeframeResult, error)

	// Методы для закрытых позиций
	SaveClosedPosition(ctx context.Context, position *models.Position) error
	GetClosedPositions(ctx context.Context, limit int) ([]*models.Position, error)

	Close()
}

// New создает хранилище указанного в конфигурации типа
func New(cfg config.StorageConfig) (Storage, error) {
	switch cfg.Type {
	case "influxdb":
		return NewInfluxDBStorage(cfg)
	case "memory", "":
		return NewMemoryStorage(), nil
	default:
		return nil, fmt.Errorf("неизвестный тип хранилища: %s", cfg.Type)
	}
}
