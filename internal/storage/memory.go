package storage

import (
	"context"
	"sort"
	"sync"

	"github.com/skalibog/mtpa/pkg/models"
)

// MemoryStorage хранит данные в памяти процесса.
// Используется по умолчанию и в тестах, когда InfluxDB не сконфигурирован
type MemoryStorage struct {
	mu sync.RWMutex

	// Ключ — symbol + "/" + interval, свечи отсортированы по OpenTime
	candles   map[string][]models.Candle
	signals   map[string][]*models.TimeframeResult
	positions []*models.Position
}

// NewMemoryStorage создает новое хранилище в памяти
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{
		candles: make(map[string][]models.Candle),
		signals: make(map[string][]*models.TimeframeResult),
	}
}

// Close освобождает хранилище
func (s *MemoryStorage) Close() {}

// SaveCandles сохраняет свечи, заменяя дубликаты по времени открытия
func (s *MemoryStorage) SaveCandles(ctx context.Context, candles []models.Candle) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, candle := range candles {
		key := candle.Symbol + "/" + candle.Interval
		series := s.candles[key]

		replaced := false
		for i := range series {
			if series[i].OpenTime.Equal(candle.OpenTime) {
				series[i] = candle
				replaced = true
				break
			}
		}
		if !replaced {
			series = append(series, candle)
		}

		sort.Slice(series, func(i, j int) bool {
			return series[i].OpenTime.Before(series[j].OpenTime)
		})
		s.candles[key] = series
	}

	return nil
}

// GetCandles возвращает последние limit свечей по возрастанию времени
func (s *MemoryStorage) GetCandles(ctx context.Context, symbol, interval string, limit int) ([]models.Candle, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	series := s.candles[symbol+"/"+interval]
	if len(series) > limit {
		series = series[len(series)-limit:]
	}

	result := make([]models.Candle, len(series))
	copy(result, series)
	return result, nil
}

// SaveSignal сохраняет результат оценки таймфрейма
func (s *MemoryStorage) SaveSignal(ctx context.Context, result *models.TimeframeResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.signals[result.Symbol] = append(s.signals[result.Symbol], result)
	return nil
}

// GetSignalHistory возвращает последние limit сигналов, новые первыми
func (s *MemoryStorage) GetSignalHistory(ctx context.Context, symbol string, limit int) ([]*models.TimeframeResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	history := s.signals[symbol]
	result := make([]*models.TimeframeResult, 0, limit)
	for i := len(history) - 1; i >= 0 && len(result) < limit; i-- {
		result = append(result, history[i])
	}
	return result, nil
}

// SaveClosedPosition сохраняет закрытую позицию
func (s *MemoryStorage) SaveClosedPosition(ctx context.Context, position *models.Position) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.positions = append(s.positions, position)
	return nil
}

// GetClosedPositions возвращает последние limit закрытых позиций, новые первыми
func (s *MemoryStorage) GetClosedPositions(ctx context.Context, limit int) ([]*models.Position, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*models.Position, 0, limit)
	for i := len(s.positions) - 1; i >= 0 && len(result) < limit; i-- {
		result = append(result, s.positions[i])
	}
	return result, nil
}
